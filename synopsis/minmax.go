package synopsis

import (
	"github.com/hupe1980/eventgo/data"
)

// minMaxSynopsis keeps the smallest and largest value of an ordered scalar
// column. Range predicates decide against the bounds; equality decides
// negatively outside them.
type minMaxSynopsis struct {
	min, max data.Data
	anyNil   bool
	empty    bool
}

func newMinMaxSynopsis() *minMaxSynopsis { return &minMaxSynopsis{empty: true} }

func (s *minMaxSynopsis) Add(d data.Data) {
	if d.IsNil() {
		s.anyNil = true
		return
	}
	if s.empty {
		s.min, s.max = d, d
		s.empty = false
		return
	}
	if d.Compare(s.min) < 0 {
		s.min = d
	}
	if d.Compare(s.max) > 0 {
		s.max = d
	}
}

func (s *minMaxSynopsis) Lookup(op data.Operator, rhs data.Data) (bool, bool) {
	if rhs.IsNil() {
		return false, false
	}
	if s.empty {
		// No non-nil cell can match anything.
		switch op {
		case data.OpEqual, data.OpLess, data.OpLessEqual, data.OpGreater, data.OpGreaterEqual:
			return false, true
		}
		return false, false
	}
	switch op {
	case data.OpEqual:
		if data.Match(rhs, data.OpLess, s.min) || data.Match(rhs, data.OpGreater, s.max) {
			return false, true
		}
		if !s.anyNil && s.min.Equal(s.max) && data.Match(s.min, data.OpEqual, rhs) {
			return true, true
		}
		return false, false
	case data.OpNotEqual:
		if data.Match(rhs, data.OpLess, s.min) || data.Match(rhs, data.OpGreater, s.max) {
			if !s.anyNil {
				return true, true
			}
			return false, false
		}
		if s.min.Equal(s.max) && data.Match(s.min, data.OpEqual, rhs) {
			return false, true
		}
		return false, false
	case data.OpLess, data.OpLessEqual, data.OpGreater, data.OpGreaterEqual:
		// If even the extreme value fails, no row matches; if both extremes
		// pass, every non-nil row does.
		var lo, hi data.Data
		switch op {
		case data.OpLess, data.OpLessEqual:
			lo, hi = s.min, s.max
		default:
			lo, hi = s.max, s.min
		}
		if !data.Match(lo, op, rhs) {
			return false, true
		}
		if data.Match(hi, op, rhs) && !s.anyNil {
			return true, true
		}
		return false, false
	}
	return false, false
}

func (s *minMaxSynopsis) MemUsage() int { return 2 * 16 }

func (s *minMaxSynopsis) tag() byte { return tagMinMax }

func (s *minMaxSynopsis) appendBody(buf []byte) []byte {
	var flags byte
	if s.anyNil {
		flags |= 1
	}
	if s.empty {
		flags |= 2
	}
	buf = append(buf, flags)
	if !s.empty {
		buf = appendData(buf, s.min)
		buf = appendData(buf, s.max)
	}
	return buf
}

func decodeMinMaxSynopsis(body []byte) (*minMaxSynopsis, error) {
	if len(body) < 1 {
		return nil, ErrCorrupt
	}
	s := &minMaxSynopsis{
		anyNil: body[0]&1 != 0,
		empty:  body[0]&2 != 0,
	}
	if s.empty {
		return s, nil
	}
	lo, n, err := readData(body[1:])
	if err != nil {
		return nil, err
	}
	hi, _, err := readData(body[1+n:])
	if err != nil {
		return nil, err
	}
	s.min, s.max = lo, hi
	return s, nil
}
