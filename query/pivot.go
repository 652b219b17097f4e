package query

import (
	"strings"

	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/slice"
)

// PivotField returns the field connecting a matched layout to the pivot
// target. Zeek layouts pivoting into other Zeek layouts share the
// connection id "uid"; everything else joins on "community_id".
//
// This heuristic is an interim policy until a runtime type registry can
// derive the shared field from the target layout itself.
func PivotField(target, layout string) string {
	if strings.HasPrefix(target, "zeek") && strings.HasPrefix(layout, "zeek") {
		return "uid"
	}
	return "community_id"
}

// Pivoter collects pivot-field values from matched slices and derives the
// follow-up query. Values deduplicate across slices; slices whose layout
// lacks the pivot field are skipped.
type Pivoter struct {
	target string
	seen   map[string]struct{}
	values []data.Data
}

// NewPivoter creates a pivoter for the given target layout name.
func NewPivoter(target string) *Pivoter {
	return &Pivoter{target: target, seen: make(map[string]struct{})}
}

// Target returns the pivot target layout name.
func (p *Pivoter) Target() string { return p.target }

// Feed extracts pivot-field values from one matched slice. It reports
// whether the slice contributed (false when the layout has no pivot
// field).
func (p *Pivoter) Feed(s *slice.Slice) bool {
	field := PivotField(p.target, s.Layout().Name())
	col, ok := s.ColumnByPath(field)
	if !ok {
		return false
	}
	for _, cell := range col {
		if cell.IsNil() {
			continue
		}
		key := cell.Key()
		if _, dup := p.seen[key]; dup {
			continue
		}
		p.seen[key] = struct{}{}
		p.values = append(p.values, cell)
	}
	return true
}

// Values returns the distinct pivot values collected so far.
func (p *Pivoter) Values() []data.Data { return p.values }

// Expr derives the follow-up query:
//
//	#type == target && <pivot field> in {collected values}
//
// ok is false when no values were collected.
func (p *Pivoter) Expr() (Expr, bool) {
	if len(p.values) == 0 {
		return nil, false
	}
	field := PivotField(p.target, p.target)
	return Conjunction{
		Predicate{LHS: MetaExtractor{Kind: MetaType}, Op: data.OpEqual, RHS: data.Str(p.target)},
		Predicate{LHS: FieldExtractor{Path: field}, Op: data.OpIn, RHS: data.List(p.values...)},
	}, true
}
