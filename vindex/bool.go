package vindex

import (
	"github.com/hupe1980/eventgo/bitmap"
	"github.com/hupe1980/eventgo/data"
)

// boolIndex keeps one bitmap per truth value.
type boolIndex struct {
	base
	trues  *bitmap.Bitmap
	falses *bitmap.Bitmap
}

func newBoolIndex() *boolIndex {
	return &boolIndex{base: newBase(), trues: bitmap.New(), falses: bitmap.New()}
}

func (ix *boolIndex) Append(id uint64, d data.Data) error {
	if err := ix.admit(id, d.IsNil()); err != nil {
		return err
	}
	if b, ok := d.AsBool(); ok {
		if b {
			ix.trues.Add(id)
		} else {
			ix.falses.Add(id)
		}
	}
	return nil
}

func (ix *boolIndex) Lookup(op data.Operator, rhs data.Data) (*bitmap.Bitmap, error) {
	if bm, handled := ix.nilLookup(op, rhs); handled {
		return bm, nil
	}
	b, ok := rhs.AsBool()
	if !ok {
		return nil, ErrUnsupported
	}
	switch op {
	case data.OpEqual:
		if b {
			return ix.trues.Clone(), nil
		}
		return ix.falses.Clone(), nil
	case data.OpNotEqual:
		if b {
			return ix.falses.Clone(), nil
		}
		return ix.trues.Clone(), nil
	}
	return nil, ErrUnsupported
}

func (ix *boolIndex) MemUsage() int {
	return int(ix.trues.Cardinality()/8 + ix.falses.Cardinality()/8)
}

func (ix *boolIndex) tag() byte { return tagBool }

func (ix *boolIndex) appendBody(buf []byte) ([]byte, error) {
	buf, err := ix.base.appendTo(buf)
	if err != nil {
		return nil, err
	}
	if buf, err = appendBitmap(buf, ix.trues); err != nil {
		return nil, err
	}
	return appendBitmap(buf, ix.falses)
}

func decodeBoolIndex(body []byte) (*boolIndex, error) {
	b, pos, err := decodeBase(body)
	if err != nil {
		return nil, err
	}
	ix := &boolIndex{base: b}
	if ix.trues, pos, err = readBitmap(body, pos); err != nil {
		return nil, err
	}
	if ix.falses, _, err = readBitmap(body, pos); err != nil {
		return nil, err
	}
	return ix, nil
}
