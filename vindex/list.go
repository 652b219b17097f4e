package vindex

import (
	"encoding/binary"

	"github.com/hupe1980/eventgo/bitmap"
	"github.com/hupe1980/eventgo/data"
)

// listIndex indexes list columns element-wise. Every element posts under
// its value together with its list position, so a row matches a
// containment predicate iff any position matches. Whole-list equality goes
// through a second posting set over the full list value.
type listIndex struct {
	base
	// elements: value key -> position -> rows having that value there.
	elements map[string]*listPosting
	// whole: full list value key -> rows.
	whole map[string]*posting
}

type listPosting struct {
	value     data.Data
	positions map[int]*bitmap.Bitmap
}

func (lp *listPosting) allRows() *bitmap.Bitmap {
	out := bitmap.New()
	for _, rows := range lp.positions {
		out.UnionWith(rows)
	}
	return out
}

func newListIndex() *listIndex {
	return &listIndex{
		base:     newBase(),
		elements: make(map[string]*listPosting),
		whole:    make(map[string]*posting),
	}
}

func (ix *listIndex) Append(id uint64, d data.Data) error {
	if err := ix.admit(id, d.IsNil()); err != nil {
		return err
	}
	if d.IsNil() {
		return nil
	}
	xs, ok := d.AsList()
	if !ok {
		return ErrUnsupported
	}
	for pos, x := range xs {
		key := x.Key()
		lp, ok := ix.elements[key]
		if !ok {
			lp = &listPosting{value: x, positions: make(map[int]*bitmap.Bitmap)}
			ix.elements[key] = lp
		}
		rows, ok := lp.positions[pos]
		if !ok {
			rows = bitmap.New()
			lp.positions[pos] = rows
		}
		rows.Add(id)
	}
	wkey := d.Key()
	wp, ok := ix.whole[wkey]
	if !ok {
		wp = &posting{value: d, rows: bitmap.New()}
		ix.whole[wkey] = wp
	}
	wp.rows.Add(id)
	return nil
}

func (ix *listIndex) Lookup(op data.Operator, rhs data.Data) (*bitmap.Bitmap, error) {
	if bm, handled := ix.nilLookup(op, rhs); handled {
		return bm, nil
	}
	switch op {
	case data.OpEqual:
		if p, ok := ix.whole[rhs.Key()]; ok {
			return p.rows.Clone(), nil
		}
		return bitmap.New(), nil
	case data.OpNotEqual:
		eq, err := ix.Lookup(data.OpEqual, rhs)
		if err != nil {
			return nil, err
		}
		return ix.present.Difference(eq), nil
	case data.OpNi:
		// Row list contains rhs at any position.
		out := bitmap.New()
		for _, lp := range ix.elements {
			if data.Match(lp.value, data.OpEqual, rhs) {
				out.UnionWith(lp.allRows())
			}
		}
		return out, nil
	case data.OpNotNi:
		ni, err := ix.Lookup(data.OpNi, rhs)
		if err != nil {
			return nil, err
		}
		return ix.present.Difference(ni), nil
	}
	return nil, ErrUnsupported
}

func (ix *listIndex) MemUsage() int {
	total := 0
	for key, lp := range ix.elements {
		total += len(key)
		for _, rows := range lp.positions {
			total += int(rows.Cardinality() / 8)
		}
	}
	for key, p := range ix.whole {
		total += len(key) + int(p.rows.Cardinality()/8)
	}
	return total
}

func (ix *listIndex) tag() byte { return tagList }

func (ix *listIndex) appendBody(buf []byte) ([]byte, error) {
	buf, err := ix.base.appendTo(buf)
	if err != nil {
		return nil, err
	}
	buf = binary.AppendUvarint(buf, uint64(len(ix.elements)))
	for _, lp := range ix.elements {
		buf = lp.value.AppendBinary(buf)
		buf = binary.AppendUvarint(buf, uint64(len(lp.positions)))
		for pos, rows := range lp.positions {
			buf = binary.AppendUvarint(buf, uint64(pos))
			if buf, err = appendBitmap(buf, rows); err != nil {
				return nil, err
			}
		}
	}
	buf = binary.AppendUvarint(buf, uint64(len(ix.whole)))
	for _, p := range ix.whole {
		buf = p.value.AppendBinary(buf)
		if buf, err = appendBitmap(buf, p.rows); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func decodeListIndex(body []byte) (*listIndex, error) {
	b, pos, err := decodeBase(body)
	if err != nil {
		return nil, err
	}
	ix := &listIndex{base: b, elements: make(map[string]*listPosting), whole: make(map[string]*posting)}

	readUvarint := func() (uint64, bool) {
		v, n := binary.Uvarint(body[pos:])
		if n <= 0 {
			return 0, false
		}
		pos += n
		return v, true
	}

	nElems, ok := readUvarint()
	if !ok {
		return nil, ErrCorrupt
	}
	for i := uint64(0); i < nElems; i++ {
		value, consumed, err := data.DecodeBinary(body[pos:])
		if err != nil {
			return nil, ErrCorrupt
		}
		pos += consumed
		nPos, ok := readUvarint()
		if !ok {
			return nil, ErrCorrupt
		}
		lp := &listPosting{value: value, positions: make(map[int]*bitmap.Bitmap, nPos)}
		for j := uint64(0); j < nPos; j++ {
			position, ok := readUvarint()
			if !ok {
				return nil, ErrCorrupt
			}
			rows, next, err := readBitmap(body, pos)
			if err != nil {
				return nil, err
			}
			pos = next
			lp.positions[int(position)] = rows
		}
		ix.elements[value.Key()] = lp
	}

	nWhole, ok := readUvarint()
	if !ok {
		return nil, ErrCorrupt
	}
	for i := uint64(0); i < nWhole; i++ {
		value, consumed, err := data.DecodeBinary(body[pos:])
		if err != nil {
			return nil, ErrCorrupt
		}
		pos += consumed
		rows, next, err := readBitmap(body, pos)
		if err != nil {
			return nil, err
		}
		pos = next
		ix.whole[value.Key()] = &posting{value: value, rows: rows}
	}
	return ix, nil
}
