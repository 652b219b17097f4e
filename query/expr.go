// Package query implements the expression layer: a boolean tree of
// predicates over field, type, and meta extractors, its normalization, the
// resolution of extractors against a schema, and the pushdown evaluation
// that turns an expression into an id bitmap.
package query

import (
	"fmt"
	"strings"

	"github.com/hupe1980/eventgo/data"
)

// Expr is a node of the boolean expression tree.
type Expr interface {
	isExpr()
	String() string
}

// Conjunction is the AND of its operands. An empty conjunction is true.
type Conjunction []Expr

// Disjunction is the OR of its operands. An empty disjunction is false.
type Disjunction []Expr

// Negation inverts its operand.
type Negation struct {
	Inner Expr
}

// Predicate compares the value an extractor selects against a literal.
type Predicate struct {
	LHS Extractor
	Op  data.Operator
	RHS data.Data
}

func (Conjunction) isExpr() {}
func (Disjunction) isExpr() {}
func (Negation) isExpr()    {}
func (Predicate) isExpr()   {}

func (c Conjunction) String() string { return joinExprs([]Expr(c), " && ", "true") }
func (d Disjunction) String() string { return joinExprs([]Expr(d), " || ", "false") }

func (n Negation) String() string { return "! " + n.Inner.String() }

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.LHS, p.Op, p.RHS)
}

func joinExprs(xs []Expr, sep, empty string) string {
	if len(xs) == 0 {
		return empty
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = "(" + x.String() + ")"
	}
	return strings.Join(parts, sep)
}

// Extractor addresses the left-hand side of a predicate.
type Extractor interface {
	isExtractor()
	String() string
}

// FieldExtractor references a column by dotted path suffix, e.g. "id.orig_h"
// or "zeek.conn.duration".
type FieldExtractor struct {
	Path string
}

// TypeExtractor references every column of one value kind, e.g. all
// address columns.
type TypeExtractor struct {
	Kind data.Kind
}

// MetaKind selects event metadata instead of a column.
type MetaKind uint8

const (
	// MetaType selects the event's layout name.
	MetaType MetaKind = iota
	// MetaTime selects the event's timestamp columns.
	MetaTime
	// MetaImportTime selects the time the event entered the store.
	MetaImportTime
)

// MetaExtractor references event metadata.
type MetaExtractor struct {
	Kind MetaKind
}

// ColumnExtractor is a resolved reference to one concrete column of one
// layout. Produced by Resolve; evaluation only sees this form.
type ColumnExtractor struct {
	Path string // qualified: "<layout>.<field path>"
	Type data.Type
}

func (FieldExtractor) isExtractor()  {}
func (TypeExtractor) isExtractor()   {}
func (MetaExtractor) isExtractor()   {}
func (ColumnExtractor) isExtractor() {}

func (e FieldExtractor) String() string { return e.Path }
func (e TypeExtractor) String() string  { return ":" + e.Kind.String() }

func (e MetaExtractor) String() string {
	switch e.Kind {
	case MetaType:
		return "#type"
	case MetaTime:
		return "#time"
	default:
		return "#import_time"
	}
}

func (e ColumnExtractor) String() string { return e.Path }
