package vindex

import (
	"math"

	"github.com/hupe1980/eventgo/bitmap"
	"github.com/hupe1980/eventgo/data"
)

// bsiIndex is a bit-sliced index over numeric scalars. Every cell maps to
// an order-preserving 64-bit key; plane b holds the ids whose key has bit b
// set. Equality intersects 64 planes, range predicates use the classic
// MSB-to-LSB bit-slice scan, so cost is constant in the bit width.
type bsiIndex struct {
	base
	kind   data.Kind
	planes [64]*bitmap.Bitmap
}

func newBSIIndex(kind data.Kind) *bsiIndex {
	ix := &bsiIndex{base: newBase(), kind: kind}
	for i := range ix.planes {
		ix.planes[i] = bitmap.New()
	}
	return ix
}

// cellKey maps a column cell onto the order-preserving key space.
func cellKey(kind data.Kind, d data.Data) (uint64, bool) {
	switch kind {
	case data.KindCount:
		u, ok := d.AsCount()
		return u, ok
	case data.KindEnum:
		u, ok := d.AsEnum()
		return u, ok
	case data.KindInt:
		i, ok := d.AsInt()
		return signedKey(i), ok
	case data.KindTime:
		t, ok := d.AsTime()
		return signedKey(t.UnixNano()), ok
	case data.KindDuration:
		dur, ok := d.AsDuration()
		return signedKey(int64(dur)), ok
	case data.KindReal:
		f, ok := d.AsReal()
		if !ok || math.IsNaN(f) {
			return 0, false
		}
		return realKey(f), true
	}
	return 0, false
}

// signedKey flips the sign bit so unsigned key order equals signed order.
func signedKey(i int64) uint64 {
	return uint64(i) ^ (1 << 63)
}

// realKey is the standard total order embedding for IEEE-754 doubles:
// positive floats keep their bit pattern with the sign bit set, negative
// floats are bitwise inverted.
func realKey(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func (ix *bsiIndex) Append(id uint64, d data.Data) error {
	if err := ix.admit(id, d.IsNil()); err != nil {
		return err
	}
	if d.IsNil() {
		return nil
	}
	key, ok := cellKey(ix.kind, d)
	if !ok {
		return ErrUnsupported
	}
	for bit := 0; bit < 64; bit++ {
		if key&(1<<bit) != 0 {
			ix.planes[bit].Add(id)
		}
	}
	return nil
}

// domain classification for a right-hand side relative to the column's key
// space: -1 below every representable value, +1 above, 0 in range.
type boundKey struct {
	key    uint64
	domain int
}

// floorKey returns the largest key whose value is <= rhs.
func (ix *bsiIndex) floorKey(rhs data.Data) (boundKey, bool) {
	return ix.boundKey(rhs, false)
}

// ceilKey returns the smallest key whose value is >= rhs.
func (ix *bsiIndex) ceilKey(rhs data.Data) (boundKey, bool) {
	return ix.boundKey(rhs, true)
}

func (ix *bsiIndex) boundKey(rhs data.Data, ceil bool) (boundKey, bool) {
	// Same-kind comparisons are exact.
	if rhs.Kind() == ix.kind {
		key, ok := cellKey(ix.kind, rhs)
		if !ok {
			return boundKey{}, false
		}
		return boundKey{key: key}, true
	}
	// The float bounds below are the largest exactly-representable
	// doubles inside each integral domain, so the uint64/int64
	// conversions after the range check cannot overflow.
	const (
		maxCountFloat = 18446744073709549568.0 // 2^64 - 2048
		maxIntFloat   = 9223372036854774784.0  // 2^63 - 1024
		minIntFloat   = -9223372036854775808.0 // -2^63
	)
	switch ix.kind {
	case data.KindCount, data.KindEnum:
		if i, ok := rhs.AsInt(); ok {
			if i < 0 {
				return boundKey{domain: -1}, true
			}
			return boundKey{key: uint64(i)}, true
		}
		if f, ok := rhs.AsReal(); ok {
			return realBound(f, ceil, 0, maxCountFloat, func(x float64) uint64 { return uint64(x) })
		}
	case data.KindInt:
		if u, ok := rhs.AsCount(); ok {
			if u > math.MaxInt64 {
				return boundKey{domain: 1}, true
			}
			return boundKey{key: signedKey(int64(u))}, true
		}
		if f, ok := rhs.AsReal(); ok {
			return realBound(f, ceil, minIntFloat, maxIntFloat, func(x float64) uint64 { return signedKey(int64(x)) })
		}
	case data.KindReal:
		if i, ok := rhs.AsInt(); ok {
			return boundKey{key: realKey(float64(i))}, true
		}
		if u, ok := rhs.AsCount(); ok {
			return boundKey{key: realKey(float64(u))}, true
		}
	}
	return boundKey{}, false
}

func realBound(f float64, ceil bool, lo, hi float64, conv func(float64) uint64) (boundKey, bool) {
	if math.IsNaN(f) {
		return boundKey{}, false
	}
	rounded := math.Floor(f)
	if ceil {
		rounded = math.Ceil(f)
	}
	if rounded < lo {
		return boundKey{domain: -1}, true
	}
	if rounded > hi {
		return boundKey{domain: 1}, true
	}
	return boundKey{key: conv(rounded)}, true
}

// eqKey returns the ids whose key equals k.
func (ix *bsiIndex) eqKey(k uint64) *bitmap.Bitmap {
	cand := ix.present.Clone()
	for bit := 63; bit >= 0 && !cand.IsEmpty(); bit-- {
		if k&(1<<bit) != 0 {
			cand.IntersectWith(ix.planes[bit])
		} else {
			cand.DifferenceWith(ix.planes[bit])
		}
	}
	return cand
}

// ltKey returns the ids whose key is strictly below k.
func (ix *bsiIndex) ltKey(k uint64) *bitmap.Bitmap {
	result := bitmap.New()
	cand := ix.present.Clone()
	for bit := 63; bit >= 0 && !cand.IsEmpty(); bit-- {
		if k&(1<<bit) != 0 {
			result.UnionWith(cand.Difference(ix.planes[bit]))
			cand.IntersectWith(ix.planes[bit])
		} else {
			cand.DifferenceWith(ix.planes[bit])
		}
	}
	return result
}

func (ix *bsiIndex) lookupEqual(rhs data.Data) (*bitmap.Bitmap, error) {
	// Equality needs an exactly representable right-hand side; a
	// fractional literal on an integral column matches nothing.
	floor, okF := ix.floorKey(rhs)
	ceil, okC := ix.ceilKey(rhs)
	if !okF || !okC {
		return nil, ErrUnsupported
	}
	if floor.domain != 0 || ceil.domain != 0 || floor.key != ceil.key {
		return bitmap.New(), nil
	}
	return ix.eqKey(floor.key), nil
}

func (ix *bsiIndex) Lookup(op data.Operator, rhs data.Data) (*bitmap.Bitmap, error) {
	if bm, handled := ix.nilLookup(op, rhs); handled {
		return bm, nil
	}
	switch op {
	case data.OpEqual:
		return ix.lookupEqual(rhs)
	case data.OpNotEqual:
		eq, err := ix.lookupEqual(rhs)
		if err != nil {
			return nil, err
		}
		return ix.present.Difference(eq), nil
	case data.OpLess:
		ceil, ok := ix.ceilKey(rhs)
		if !ok {
			return nil, ErrUnsupported
		}
		switch ceil.domain {
		case -1:
			return bitmap.New(), nil
		case 1:
			return ix.present.Clone(), nil
		}
		return ix.ltKey(ceil.key), nil
	case data.OpLessEqual:
		floor, ok := ix.floorKey(rhs)
		if !ok {
			return nil, ErrUnsupported
		}
		switch floor.domain {
		case -1:
			return bitmap.New(), nil
		case 1:
			return ix.present.Clone(), nil
		}
		if floor.key == math.MaxUint64 {
			return ix.present.Clone(), nil
		}
		return ix.ltKey(floor.key + 1), nil
	case data.OpGreater:
		le, err := ix.Lookup(data.OpLessEqual, rhs)
		if err != nil {
			return nil, err
		}
		return ix.present.Difference(le), nil
	case data.OpGreaterEqual:
		lt, err := ix.Lookup(data.OpLess, rhs)
		if err != nil {
			return nil, err
		}
		return ix.present.Difference(lt), nil
	case data.OpIn:
		xs, ok := rhs.AsList()
		if !ok || rhs.Kind() != data.KindList {
			return nil, ErrUnsupported
		}
		out := bitmap.New()
		for _, x := range xs {
			eq, err := ix.lookupEqual(x)
			if err != nil {
				return nil, err
			}
			out.UnionWith(eq)
		}
		return out, nil
	case data.OpNotIn:
		in, err := ix.Lookup(data.OpIn, rhs)
		if err != nil {
			return nil, err
		}
		return ix.present.Difference(in), nil
	}
	return nil, ErrUnsupported
}

func (ix *bsiIndex) MemUsage() int {
	total := 0
	for _, p := range ix.planes {
		total += int(p.Cardinality() / 8)
	}
	return total
}

func (ix *bsiIndex) tag() byte { return tagBSI }

func (ix *bsiIndex) appendBody(buf []byte) ([]byte, error) {
	buf, err := ix.base.appendTo(buf)
	if err != nil {
		return nil, err
	}
	buf = append(buf, byte(ix.kind))
	for _, p := range ix.planes {
		if buf, err = appendBitmap(buf, p); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func decodeBSIIndex(body []byte) (*bsiIndex, error) {
	b, pos, err := decodeBase(body)
	if err != nil {
		return nil, err
	}
	if len(body) < pos+1 {
		return nil, ErrCorrupt
	}
	ix := &bsiIndex{base: b, kind: data.Kind(body[pos])}
	pos++
	for i := range ix.planes {
		if ix.planes[i], pos, err = readBitmap(body, pos); err != nil {
			return nil, err
		}
	}
	return ix, nil
}
