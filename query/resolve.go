package query

import (
	"strings"

	"github.com/hupe1980/eventgo/data"
)

// Resolve rewrites field, type, and time extractors against a schema into
// concrete column extractors. A field reference matches every column whose
// qualified path ends in the reference on a dot boundary; a type reference
// matches every column of that kind. Predicates matching more than one
// column become a disjunction; predicates matching none become the empty
// disjunction, which evaluates to the empty set.
//
// Meta predicates on #type and #import_time pass through untouched; they
// resolve against partition metadata at evaluation time, not against the
// schema.
func Resolve(e Expr, schema *data.Schema) Expr {
	switch x := e.(type) {
	case Conjunction:
		out := make(Conjunction, len(x))
		for i, sub := range x {
			out[i] = Resolve(sub, schema)
		}
		return out
	case Disjunction:
		out := make(Disjunction, len(x))
		for i, sub := range x {
			out[i] = Resolve(sub, schema)
		}
		return out
	case Negation:
		return Negation{Inner: Resolve(x.Inner, schema)}
	case Predicate:
		return resolvePredicate(x, schema)
	}
	return e
}

func resolvePredicate(p Predicate, schema *data.Schema) Expr {
	var columns []ColumnExtractor
	switch lhs := p.LHS.(type) {
	case ColumnExtractor:
		return p
	case MetaExtractor:
		if lhs.Kind != MetaTime {
			return p
		}
		// #time resolves to every timestamp column.
		columns = matchColumns(schema, func(path string, t data.Type) bool {
			return t.Kind() == data.KindTime
		})
	case FieldExtractor:
		columns = matchColumns(schema, func(path string, t data.Type) bool {
			return pathHasSuffix(path, lhs.Path)
		})
	case TypeExtractor:
		columns = matchColumns(schema, func(path string, t data.Type) bool {
			return t.Kind() == lhs.Kind
		})
	}

	out := make(Disjunction, 0, len(columns))
	for _, col := range columns {
		rhs, ok := coerceRHS(col.Type, p.Op, p.RHS)
		if !ok {
			continue
		}
		out = append(out, Predicate{LHS: col, Op: p.Op, RHS: rhs})
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func matchColumns(schema *data.Schema, accept func(path string, t data.Type) bool) []ColumnExtractor {
	var out []ColumnExtractor
	for _, layout := range schema.Types() {
		for _, leaf := range layout.Flatten() {
			qualified := layout.Name() + "." + leaf.Path
			if accept(qualified, leaf.Type) {
				out = append(out, ColumnExtractor{Path: qualified, Type: leaf.Type})
			}
		}
	}
	return out
}

// pathHasSuffix reports whether the dotted path ends in the dotted suffix,
// aligned on dot boundaries.
func pathHasSuffix(path, suffix string) bool {
	if path == suffix {
		return true
	}
	return strings.HasSuffix(path, "."+suffix)
}

// coerceRHS adapts a literal to the column it compares against. Strings
// comparing against enumeration columns become ordinals; list literals
// coerce element-wise. A literal that cannot fit an equality comparison
// drops the column from resolution entirely.
func coerceRHS(t data.Type, op data.Operator, rhs data.Data) (data.Data, bool) {
	if rhs.IsNil() {
		return rhs, true
	}
	if t.Kind() == data.KindEnum {
		if s, ok := rhs.AsString(); ok && rhs.Kind() == data.KindString {
			ord, ok := t.Ordinal(s)
			if !ok {
				return data.Data{}, false
			}
			return data.Enum(ord), true
		}
	}
	if op == data.OpIn || op == data.OpNotIn {
		if xs, ok := rhs.AsList(); ok && rhs.Kind() == data.KindList {
			out := make([]data.Data, 0, len(xs))
			for _, x := range xs {
				coerced, ok := coerceRHS(t, data.OpEqual, x)
				if !ok {
					continue
				}
				out = append(out, coerced)
			}
			return data.List(out...), true
		}
	}
	return rhs, true
}
