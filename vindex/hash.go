package vindex

import (
	"encoding/binary"

	"github.com/hupe1980/eventgo/bitmap"
	"github.com/hupe1980/eventgo/data"
)

// hashIndex keeps one posting bitmap per distinct value, keyed by the
// stable value key. Equality hits the posting directly; the remaining
// operators iterate the distinct values and defer to the reference Match
// semantics, which keeps the index exact for substring, subnet, and
// pattern predicates at a cost linear in distinct values, not rows.
type hashIndex struct {
	base
	postings map[string]*posting
}

type posting struct {
	value data.Data
	rows  *bitmap.Bitmap
}

func newHashIndex() *hashIndex {
	return &hashIndex{base: newBase(), postings: make(map[string]*posting)}
}

func (ix *hashIndex) Append(id uint64, d data.Data) error {
	if err := ix.admit(id, d.IsNil()); err != nil {
		return err
	}
	if d.IsNil() {
		return nil
	}
	ix.add(id, d)
	return nil
}

func (ix *hashIndex) add(id uint64, d data.Data) {
	key := d.Key()
	p, ok := ix.postings[key]
	if !ok {
		p = &posting{value: d, rows: bitmap.New()}
		ix.postings[key] = p
	}
	p.rows.Add(id)
}

func (ix *hashIndex) Lookup(op data.Operator, rhs data.Data) (*bitmap.Bitmap, error) {
	if bm, handled := ix.nilLookup(op, rhs); handled {
		return bm, nil
	}
	switch op {
	case data.OpEqual:
		if rhs.Kind() != data.KindPattern {
			if p, ok := ix.postings[rhs.Key()]; ok {
				return p.rows.Clone(), nil
			}
			return bitmap.New(), nil
		}
	case data.OpNotEqual:
		eq, err := ix.Lookup(data.OpEqual, rhs)
		if err != nil {
			return nil, err
		}
		return ix.present.Difference(eq), nil
	case data.OpNotIn, data.OpNotNi:
		pos, err := ix.Lookup(op.Negate(), rhs)
		if err != nil {
			return nil, err
		}
		return ix.present.Difference(pos), nil
	}
	// Scan the distinct values for everything else: pattern equality,
	// membership, containment.
	out := bitmap.New()
	for _, p := range ix.postings {
		if data.Match(p.value, op, rhs) {
			out.UnionWith(p.rows)
		}
	}
	return out, nil
}

func (ix *hashIndex) MemUsage() int {
	total := 0
	for key, p := range ix.postings {
		total += len(key) + int(p.rows.Cardinality()/8)
	}
	return total
}

func (ix *hashIndex) tag() byte { return tagHash }

func (ix *hashIndex) appendBody(buf []byte) ([]byte, error) {
	buf, err := ix.base.appendTo(buf)
	if err != nil {
		return nil, err
	}
	buf = binary.AppendUvarint(buf, uint64(len(ix.postings)))
	// Posting order is irrelevant; decode rebuilds the map.
	for _, p := range ix.postings {
		buf = p.value.AppendBinary(buf)
		if buf, err = appendBitmap(buf, p.rows); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func decodeHashIndex(body []byte) (*hashIndex, error) {
	b, pos, err := decodeBase(body)
	if err != nil {
		return nil, err
	}
	n, used := binary.Uvarint(body[pos:])
	if used <= 0 {
		return nil, ErrCorrupt
	}
	pos += used
	ix := &hashIndex{base: b, postings: make(map[string]*posting, n)}
	for i := uint64(0); i < n; i++ {
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
		ix.postings[value.Key()] = &posting{value: value, rows: rows}
	}
	return ix, nil
}
