// Package bitmap provides compressed 64-bit id sets.
//
// A Bitmap represents an ordered set of event ids. The backing store is a
// Roaring bitmap, so dense ranges (the common case: ids are assigned
// monotonically per partition) compress to run containers.
package bitmap

import (
	"io"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Bitmap is an ordered set of uint64 ids.
//
// The zero value is not usable; call New or one of the set operations.
// Bitmaps are not safe for concurrent mutation; treat results handed to
// queries as immutable.
type Bitmap struct {
	rb *roaring64.Bitmap
}

// New returns an empty bitmap.
func New() *Bitmap {
	return &Bitmap{rb: roaring64.New()}
}

// Of returns a bitmap holding the given ids.
func Of(ids ...uint64) *Bitmap {
	b := New()
	b.rb.AddMany(ids)
	return b
}

// Add inserts one id.
func (b *Bitmap) Add(id uint64) { b.rb.Add(id) }

// AddRange inserts all ids in [start, end).
func (b *Bitmap) AddRange(start, end uint64) {
	if start >= end {
		return
	}
	b.rb.AddRange(start, end)
}

// Contains reports membership.
func (b *Bitmap) Contains(id uint64) bool { return b.rb.Contains(id) }

// Cardinality returns the number of ids in the set.
func (b *Bitmap) Cardinality() uint64 { return b.rb.GetCardinality() }

// IsEmpty reports whether the set has no ids.
func (b *Bitmap) IsEmpty() bool { return b.rb.IsEmpty() }

// Min returns the smallest id; ok is false on the empty set.
func (b *Bitmap) Min() (uint64, bool) {
	if b.rb.IsEmpty() {
		return 0, false
	}
	return b.rb.Minimum(), true
}

// Max returns the largest id; ok is false on the empty set.
func (b *Bitmap) Max() (uint64, bool) {
	if b.rb.IsEmpty() {
		return 0, false
	}
	return b.rb.Maximum(), true
}

// Rank returns the number of ids less than or equal to id.
func (b *Bitmap) Rank(id uint64) uint64 { return b.rb.Rank(id) }

// Select returns the n-th id in ascending order (0-indexed).
func (b *Bitmap) Select(n uint64) (uint64, bool) {
	id, err := b.rb.Select(n)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Union returns a new bitmap holding b ∪ other.
func (b *Bitmap) Union(other *Bitmap) *Bitmap {
	return &Bitmap{rb: roaring64.Or(b.rb, other.rb)}
}

// Intersect returns a new bitmap holding b ∩ other.
func (b *Bitmap) Intersect(other *Bitmap) *Bitmap {
	return &Bitmap{rb: roaring64.And(b.rb, other.rb)}
}

// Difference returns a new bitmap holding b \ other.
func (b *Bitmap) Difference(other *Bitmap) *Bitmap {
	return &Bitmap{rb: roaring64.AndNot(b.rb, other.rb)}
}

// UnionWith adds all ids of other to b in place.
func (b *Bitmap) UnionWith(other *Bitmap) { b.rb.Or(other.rb) }

// IntersectWith removes all ids of b not present in other, in place.
func (b *Bitmap) IntersectWith(other *Bitmap) { b.rb.And(other.rb) }

// DifferenceWith removes all ids of other from b in place.
func (b *Bitmap) DifferenceWith(other *Bitmap) { b.rb.AndNot(other.rb) }

// Overlaps reports whether b and other share at least one id.
func (b *Bitmap) Overlaps(other *Bitmap) bool { return b.rb.Intersects(other.rb) }

// Iterate calls fn for each id in ascending order until fn returns false.
func (b *Bitmap) Iterate(fn func(id uint64) bool) {
	it := b.rb.Iterator()
	for it.HasNext() {
		if !fn(it.Next()) {
			return
		}
	}
}

// ToSlice materializes the set in ascending order.
func (b *Bitmap) ToSlice() []uint64 { return b.rb.ToArray() }

// Clone returns an independent copy.
func (b *Bitmap) Clone() *Bitmap { return &Bitmap{rb: b.rb.Clone()} }

// Equal reports set equality.
func (b *Bitmap) Equal(other *Bitmap) bool { return b.rb.Equals(other.rb) }

// WriteTo serializes the bitmap in the portable Roaring format.
func (b *Bitmap) WriteTo(w io.Writer) (int64, error) {
	b.rb.RunOptimize()
	return b.rb.WriteTo(w)
}

// ReadFrom deserializes a bitmap written by WriteTo.
func ReadFrom(r io.Reader) (*Bitmap, error) {
	rb := roaring64.New()
	if _, err := rb.ReadFrom(r); err != nil {
		return nil, err
	}
	return &Bitmap{rb: rb}, nil
}

// String renders the set for debugging.
func (b *Bitmap) String() string { return b.rb.String() }

// Iterator walks the set in ascending order with forward skipping.
type Iterator struct {
	it roaring64.IntPeekable64
}

// Iterator returns a fresh iterator positioned before the smallest id.
func (b *Bitmap) Iterator() *Iterator {
	return &Iterator{it: b.rb.Iterator()}
}

// HasNext reports whether ids remain.
func (it *Iterator) HasNext() bool { return it.it.HasNext() }

// Next returns the next id.
func (it *Iterator) Next() uint64 { return it.it.Next() }

// Peek returns the next id without consuming it.
func (it *Iterator) Peek() uint64 { return it.it.PeekNext() }

// AdvanceIfNeeded skips forward so the next id is >= min.
func (it *Iterator) AdvanceIfNeeded(min uint64) { it.it.AdvanceIfNeeded(min) }
