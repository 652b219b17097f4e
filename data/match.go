package data

import (
	"regexp"
	"strings"
)

// Match evaluates `lhs op rhs` on concrete values. It is the reference
// semantics that synopses approximate and value indexes accelerate; both
// must agree with it.
//
// Numeric kinds (integer, count, real) compare across kinds by promotion.
// A pattern on either side of an equality matches the other side as a
// regular expression. Nil matches only `== nil` and `!= x`.
func Match(lhs Data, op Operator, rhs Data) bool {
	switch op {
	case OpEqual:
		return matchEqual(lhs, rhs)
	case OpNotEqual:
		return !matchEqual(lhs, rhs)
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		if lhs.kind == KindNil || rhs.kind == KindNil {
			return false
		}
		c, ok := orderedCompare(lhs, rhs)
		if !ok {
			return false
		}
		switch op {
		case OpLess:
			return c < 0
		case OpLessEqual:
			return c <= 0
		case OpGreater:
			return c > 0
		default:
			return c >= 0
		}
	case OpIn:
		return matchIn(lhs, rhs)
	case OpNotIn:
		return !matchIn(lhs, rhs)
	case OpNi:
		return matchIn(rhs, lhs)
	case OpNotNi:
		return !matchIn(rhs, lhs)
	}
	return false
}

func isNumeric(d Data) bool {
	return d.kind == KindInt || d.kind == KindCount || d.kind == KindReal
}

func numericValue(d Data) float64 {
	switch d.kind {
	case KindInt:
		return float64(d.i)
	case KindCount:
		return float64(d.u)
	default:
		return d.f
	}
}

func matchEqual(lhs, rhs Data) bool {
	if lhs.kind == rhs.kind {
		return lhs.Equal(rhs)
	}
	if isNumeric(lhs) && isNumeric(rhs) {
		if lhs.kind != KindReal && rhs.kind != KindReal {
			// Exact comparison between integer and count.
			if lhs.kind == KindInt && lhs.i < 0 || rhs.kind == KindInt && rhs.i < 0 {
				return false
			}
			return toUint(lhs) == toUint(rhs)
		}
		return numericValue(lhs) == numericValue(rhs)
	}
	if lhs.kind == KindPattern {
		return patternMatch(lhs.str, rhs)
	}
	if rhs.kind == KindPattern {
		return patternMatch(rhs.str, lhs)
	}
	return false
}

func toUint(d Data) uint64 {
	if d.kind == KindInt {
		return uint64(d.i)
	}
	return d.u
}

func patternMatch(pattern string, d Data) bool {
	s, ok := d.AsString()
	if !ok {
		return false
	}
	matched, err := regexp.MatchString(pattern, s)
	return err == nil && matched
}

// orderedCompare compares values that admit ordering, with numeric
// promotion across integer/count/real.
func orderedCompare(lhs, rhs Data) (int, bool) {
	if lhs.kind != rhs.kind {
		if isNumeric(lhs) && isNumeric(rhs) {
			a, b := numericValue(lhs), numericValue(rhs)
			switch {
			case a < b:
				return -1, true
			case a > b:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch lhs.kind {
	case KindBool, KindInt, KindCount, KindReal, KindString, KindTime, KindDuration, KindEnum, KindAddr:
		return lhs.Compare(rhs), true
	}
	return 0, false
}

func matchIn(element, container Data) bool {
	switch container.kind {
	case KindList:
		for _, x := range container.list {
			if matchEqual(element, x) {
				return true
			}
		}
		return false
	case KindSubnet:
		if ip, ok := element.AsAddr(); ok {
			return container.pfx.Contains(ip)
		}
		if sub, ok := element.AsSubnet(); ok {
			return container.pfx.Overlaps(sub) && container.pfx.Bits() <= sub.Bits()
		}
		return false
	case KindString:
		if s, ok := element.AsString(); ok && element.kind == KindString {
			return strings.Contains(container.str, s)
		}
		if element.kind == KindPattern {
			matched, err := regexp.MatchString(element.str, container.str)
			return err == nil && matched
		}
		return false
	case KindMap:
		for _, kv := range container.kvs {
			if matchEqual(element, kv.Key) {
				return true
			}
		}
		return false
	}
	return false
}
