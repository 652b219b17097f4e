// Package vindex implements exact per-column inverted indexes.
//
// An index maps a column's values to the bitmap of row ids satisfying a
// relational predicate. Appends carry explicit ids so that columns absent
// from some layouts skip id ranges naturally. A nil cell matches only
// equality with nil; a skipped id, never appended, matches no predicate,
// not even equality with nil.
//
// Numeric columns use bit-sliced decomposition: one bitmap per bit of the
// order-preserving 64-bit key, so range queries cost a constant number of
// bitmap operations in the bit width. Categorical columns keep one posting
// bitmap per distinct value. List columns index element-wise with position
// tags.
package vindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/eventgo/bitmap"
	"github.com/hupe1980/eventgo/data"
)

var (
	// ErrUnsupported is returned for operator/type combinations the index
	// cannot answer.
	ErrUnsupported = errors.New("unsupported operator/type combination")
	// ErrCorrupt indicates an index buffer that fails to decode.
	ErrCorrupt = errors.New("corrupt value index")
	// ErrOutOfOrder is returned when ids do not arrive strictly
	// increasing.
	ErrOutOfOrder = errors.New("index append out of order")
)

// Index is an exact inverted index over one column.
type Index interface {
	// Append records the cell for the given row id. Ids must be strictly
	// increasing across calls; gaps are fine and act as skips.
	Append(id uint64, d data.Data) error
	// Lookup returns the exact set of row ids satisfying `row op rhs`.
	Lookup(op data.Operator, rhs data.Data) (*bitmap.Bitmap, error)
	// MemUsage returns a rough in-memory footprint in bytes.
	MemUsage() int
	// Coverage returns the ids ever offered to the index, nil cells
	// included.
	Coverage() *bitmap.Bitmap

	tag() byte
	appendBody(buf []byte) ([]byte, error)
}

// ForType picks the index implementation for a column type. Map columns
// carry no index; ok is false for them.
func ForType(t data.Type) (Index, bool) {
	switch t.Kind() {
	case data.KindBool:
		return newBoolIndex(), true
	case data.KindInt, data.KindCount, data.KindReal, data.KindTime, data.KindDuration, data.KindEnum:
		return newBSIIndex(t.Kind()), true
	case data.KindString, data.KindPattern, data.KindAddr, data.KindSubnet:
		return newHashIndex(), true
	case data.KindList:
		return newListIndex(), true
	}
	return nil, false
}

const (
	tagBool byte = 1
	tagBSI  byte = 2
	tagHash byte = 3
	tagList byte = 4
)

// Serialize renders an index as its type tag followed by the body.
func Serialize(ix Index) ([]byte, error) {
	body, err := ix.appendBody([]byte{ix.tag()})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Deserialize decodes a buffer produced by Serialize.
func Deserialize(buf []byte) (Index, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrCorrupt)
	}
	switch buf[0] {
	case tagBool:
		return decodeBoolIndex(buf[1:])
	case tagBSI:
		return decodeBSIIndex(buf[1:])
	case tagHash:
		return decodeHashIndex(buf[1:])
	case tagList:
		return decodeListIndex(buf[1:])
	}
	return nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrCorrupt, buf[0])
}

// base tracks the id bookkeeping shared by all index variants: which ids
// were offered at all and which carried a non-nil cell.
type base struct {
	seen    *bitmap.Bitmap // every appended id, nil cells included
	present *bitmap.Bitmap // ids with a non-nil cell
	nextID  uint64
}

func newBase() base {
	return base{seen: bitmap.New(), present: bitmap.New()}
}

func (b *base) admit(id uint64, isNil bool) error {
	if id < b.nextID {
		return fmt.Errorf("%w: id %d after %d", ErrOutOfOrder, id, b.nextID)
	}
	b.nextID = id + 1
	b.seen.Add(id)
	if !isNil {
		b.present.Add(id)
	}
	return nil
}

// Coverage returns a copy of the offered-id set.
func (b *base) Coverage() *bitmap.Bitmap { return b.seen.Clone() }

// nilLookup answers the predicates that only concern nil-ness; handled is
// false when the predicate concerns values.
func (b *base) nilLookup(op data.Operator, rhs data.Data) (*bitmap.Bitmap, bool) {
	if !rhs.IsNil() {
		return nil, false
	}
	switch op {
	case data.OpEqual:
		return b.seen.Difference(b.present), true
	case data.OpNotEqual:
		return b.present.Clone(), true
	}
	return bitmap.New(), true
}

func (b *base) appendTo(buf []byte) ([]byte, error) {
	var err error
	if buf, err = appendBitmap(buf, b.seen); err != nil {
		return nil, err
	}
	if buf, err = appendBitmap(buf, b.present); err != nil {
		return nil, err
	}
	return binary.AppendUvarint(buf, b.nextID), nil
}

func decodeBase(buf []byte) (base, int, error) {
	b := base{}
	var err error
	pos := 0
	if b.seen, pos, err = readBitmap(buf, pos); err != nil {
		return base{}, 0, err
	}
	if b.present, pos, err = readBitmap(buf, pos); err != nil {
		return base{}, 0, err
	}
	next, n := binary.Uvarint(buf[pos:])
	if n <= 0 {
		return base{}, 0, ErrCorrupt
	}
	b.nextID = next
	return b, pos + n, nil
}

func appendBitmap(buf []byte, bm *bitmap.Bitmap) ([]byte, error) {
	var tmp bytes.Buffer
	if _, err := bm.WriteTo(&tmp); err != nil {
		return nil, err
	}
	buf = binary.AppendUvarint(buf, uint64(tmp.Len()))
	return append(buf, tmp.Bytes()...), nil
}

func readBitmap(buf []byte, pos int) (*bitmap.Bitmap, int, error) {
	l, n := binary.Uvarint(buf[pos:])
	if n <= 0 || len(buf) < pos+n+int(l) {
		return nil, 0, ErrCorrupt
	}
	bm, err := bitmap.ReadFrom(bytes.NewReader(buf[pos+n : pos+n+int(l)]))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return bm, pos + n + int(l), nil
}
