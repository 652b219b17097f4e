package query

import (
	"fmt"

	"github.com/hupe1980/eventgo/bitmap"
	"github.com/hupe1980/eventgo/data"
)

// Backend is the partition-side surface evaluation runs against. The
// synopsis is always consulted before the value index; a decided synopsis
// answer suppresses the index lookup entirely.
type Backend interface {
	// AllIDs returns the full id set of the backing partition.
	AllIDs() *bitmap.Bitmap
	// ColumnIDs returns the ids covered by the column (rows of layouts
	// that carry it, nil cells included).
	ColumnIDs(path string) *bitmap.Bitmap
	// SynopsisLookup consults the column's synopsis. decided == false
	// means the synopsis cannot answer and the index must be consulted.
	SynopsisLookup(path string, op data.Operator, rhs data.Data) (matches bool, decided bool)
	// IndexLookup consults the column's exact value index.
	IndexLookup(path string, op data.Operator, rhs data.Data) (*bitmap.Bitmap, error)
	// MetaLookup answers #type and #import_time predicates from partition
	// metadata.
	MetaLookup(kind MetaKind, op data.Operator, rhs data.Data) (*bitmap.Bitmap, error)
}

// Eval computes the id bitmap of rows satisfying the expression. The
// expression must be normalized and resolved; unresolved field or type
// extractors evaluate to the empty set.
func Eval(e Expr, b Backend) (*bitmap.Bitmap, error) {
	switch x := e.(type) {
	case Conjunction:
		// Empty conjunction is true.
		result := b.AllIDs()
		for _, sub := range x {
			if result.IsEmpty() {
				return result, nil
			}
			part, err := Eval(sub, b)
			if err != nil {
				return nil, err
			}
			result = result.Intersect(part)
		}
		return result, nil
	case Disjunction:
		result := bitmap.New()
		for _, sub := range x {
			part, err := Eval(sub, b)
			if err != nil {
				return nil, err
			}
			result.UnionWith(part)
		}
		return result, nil
	case Negation:
		inner, err := Eval(x.Inner, b)
		if err != nil {
			return nil, err
		}
		return b.AllIDs().Difference(inner), nil
	case Predicate:
		return evalPredicate(x, b)
	}
	return nil, fmt.Errorf("unknown expression node %T", e)
}

func evalPredicate(p Predicate, b Backend) (*bitmap.Bitmap, error) {
	switch lhs := p.LHS.(type) {
	case ColumnExtractor:
		if matches, decided := b.SynopsisLookup(lhs.Path, p.Op, p.RHS); decided {
			if !matches {
				return bitmap.New(), nil
			}
			return b.ColumnIDs(lhs.Path), nil
		}
		return b.IndexLookup(lhs.Path, p.Op, p.RHS)
	case MetaExtractor:
		return b.MetaLookup(lhs.Kind, p.Op, p.RHS)
	}
	// Unresolved extractors match nothing.
	return bitmap.New(), nil
}
