package synopsis

import (
	"fmt"

	"github.com/hupe1980/eventgo/data"
)

// boolSynopsis tracks whether the column contains any true, any false, or
// any nil cell. Equality against a boolean literal is decidable exactly.
type boolSynopsis struct {
	anyTrue  bool
	anyFalse bool
	anyNil   bool
}

func newBoolSynopsis() *boolSynopsis { return &boolSynopsis{} }

func (s *boolSynopsis) Add(d data.Data) {
	if d.IsNil() {
		s.anyNil = true
		return
	}
	if b, ok := d.AsBool(); ok {
		if b {
			s.anyTrue = true
		} else {
			s.anyFalse = true
		}
	}
}

func (s *boolSynopsis) Lookup(op data.Operator, rhs data.Data) (bool, bool) {
	b, isBool := rhs.AsBool()
	if !isBool {
		return false, false
	}
	var any, other bool
	switch op {
	case data.OpEqual:
		any, other = s.anyTrue, s.anyFalse
		if !b {
			any, other = s.anyFalse, s.anyTrue
		}
	case data.OpNotEqual:
		any, other = s.anyFalse, s.anyTrue
		if !b {
			any, other = s.anyTrue, s.anyFalse
		}
	default:
		return false, false
	}
	if !any {
		return false, true
	}
	if !other && !s.anyNil {
		return true, true
	}
	return false, false
}

func (s *boolSynopsis) MemUsage() int { return 3 }

func (s *boolSynopsis) tag() byte { return tagBool }

func (s *boolSynopsis) appendBody(buf []byte) []byte {
	var flags byte
	if s.anyTrue {
		flags |= 1
	}
	if s.anyFalse {
		flags |= 2
	}
	if s.anyNil {
		flags |= 4
	}
	return append(buf, flags)
}

func decodeBoolSynopsis(body []byte) (*boolSynopsis, error) {
	if len(body) != 1 {
		return nil, fmt.Errorf("%w: bool synopsis body has %d bytes", ErrCorrupt, len(body))
	}
	return &boolSynopsis{
		anyTrue:  body[0]&1 != 0,
		anyFalse: body[0]&2 != 0,
		anyNil:   body[0]&4 != 0,
	}, nil
}
