package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventgo/bitmap"
	"github.com/hupe1980/eventgo/data"
)

// fakeBackend evaluates predicates over an in-memory column table and
// records which layers were consulted, for pushdown assertions.
type fakeBackend struct {
	universe uint64
	columns  map[string][]data.Data
	synopses map[string]func(op data.Operator, rhs data.Data) (bool, bool)

	synopsisCalls int
	indexCalls    []string
}

func (f *fakeBackend) AllIDs() *bitmap.Bitmap {
	ids := bitmap.New()
	ids.AddRange(0, f.universe)
	return ids
}

func (f *fakeBackend) ColumnIDs(path string) *bitmap.Bitmap {
	if _, ok := f.columns[path]; !ok {
		return bitmap.New()
	}
	return f.AllIDs()
}

func (f *fakeBackend) SynopsisLookup(path string, op data.Operator, rhs data.Data) (bool, bool) {
	f.synopsisCalls++
	if syn, ok := f.synopses[path]; ok {
		return syn(op, rhs)
	}
	return false, false
}

func (f *fakeBackend) IndexLookup(path string, op data.Operator, rhs data.Data) (*bitmap.Bitmap, error) {
	f.indexCalls = append(f.indexCalls, path)
	out := bitmap.New()
	for id, cell := range f.columns[path] {
		if !cell.IsNil() && data.Match(cell, op, rhs) {
			out.Add(uint64(id))
		}
	}
	return out, nil
}

func (f *fakeBackend) MetaLookup(kind MetaKind, op data.Operator, rhs data.Data) (*bitmap.Bitmap, error) {
	return bitmap.New(), nil
}

func testSchema(t *testing.T) *data.Schema {
	t.Helper()
	conn := data.RecordType("zeek.conn",
		data.Field{Name: "ts", Type: data.TimeType},
		data.Field{Name: "id", Type: data.RecordType("",
			data.Field{Name: "orig_h", Type: data.AddrType},
			data.Field{Name: "resp_p", Type: data.CountType},
		)},
		data.Field{Name: "uid", Type: data.StringType},
	)
	dns := data.RecordType("zeek.dns",
		data.Field{Name: "ts", Type: data.TimeType},
		data.Field{Name: "query", Type: data.StringType},
	)
	schema, err := data.NewSchema(conn, dns)
	require.NoError(t, err)
	return schema
}

func TestNormalizePushesNegations(t *testing.T) {
	e := Negation{Inner: Conjunction{
		Predicate{LHS: FieldExtractor{Path: "a"}, Op: data.OpEqual, RHS: data.Int(1)},
		Negation{Inner: Predicate{LHS: FieldExtractor{Path: "b"}, Op: data.OpLess, RHS: data.Int(2)}},
	}}
	got := Normalize(e)

	want := Disjunction{
		Predicate{LHS: FieldExtractor{Path: "a"}, Op: data.OpNotEqual, RHS: data.Int(1)},
		Predicate{LHS: FieldExtractor{Path: "b"}, Op: data.OpLess, RHS: data.Int(2)},
	}
	assert.Equal(t, want.String(), got.String())
}

func TestNormalizeFlattens(t *testing.T) {
	p1 := Predicate{LHS: FieldExtractor{Path: "a"}, Op: data.OpEqual, RHS: data.Int(1)}
	p2 := Predicate{LHS: FieldExtractor{Path: "b"}, Op: data.OpEqual, RHS: data.Int(2)}
	p3 := Predicate{LHS: FieldExtractor{Path: "c"}, Op: data.OpEqual, RHS: data.Int(3)}
	e := Conjunction{Conjunction{p1, p2}, p3}
	got := Normalize(e)
	conj, ok := got.(Conjunction)
	require.True(t, ok)
	assert.Len(t, conj, 3)
}

func TestResolveFieldSuffix(t *testing.T) {
	schema := testSchema(t)
	p := Predicate{LHS: FieldExtractor{Path: "id.resp_p"}, Op: data.OpGreater, RHS: data.Count(1028)}
	got := Resolve(p, schema)
	resolved, ok := got.(Predicate)
	require.True(t, ok, "single match unwraps the disjunction: %s", got)
	col, ok := resolved.LHS.(ColumnExtractor)
	require.True(t, ok)
	assert.Equal(t, "zeek.conn.id.resp_p", col.Path)
	assert.Equal(t, data.KindCount, col.Type.Kind())
}

func TestResolveAmbiguousFieldBecomesDisjunction(t *testing.T) {
	schema := testSchema(t)
	p := Predicate{LHS: FieldExtractor{Path: "ts"}, Op: data.OpGreater, RHS: data.Time(time.Unix(0, 0))}
	got := Resolve(p, schema)
	disj, ok := got.(Disjunction)
	require.True(t, ok)
	assert.Len(t, disj, 2)
}

func TestResolveTypeExtractor(t *testing.T) {
	schema := testSchema(t)
	p := Predicate{LHS: TypeExtractor{Kind: data.KindString}, Op: data.OpEqual, RHS: data.Str("x")}
	got := Resolve(p, schema)
	disj, ok := got.(Disjunction)
	require.True(t, ok)
	assert.Len(t, disj, 2, "uid and query are the string columns")
}

func TestResolveUnknownFieldIsEmptyDisjunction(t *testing.T) {
	schema := testSchema(t)
	p := Predicate{LHS: FieldExtractor{Path: "no.such.field"}, Op: data.OpEqual, RHS: data.Int(1)}
	got := Resolve(p, schema)
	disj, ok := got.(Disjunction)
	require.True(t, ok)
	assert.Empty(t, disj)
}

func evalResolved(t *testing.T, e Expr, b Backend) []uint64 {
	t.Helper()
	ids, err := Eval(e, b)
	require.NoError(t, err)
	return ids.ToSlice()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		universe: 4,
		columns: map[string][]data.Data{
			"zeek.conn.id.resp_p": {data.Count(80), data.Count(443), data.Count(1089), data.Count(53)},
			"zeek.conn.uid":       {data.Str("A"), data.Str("B"), data.Str("A"), data.Str("C")},
		},
		synopses: map[string]func(op data.Operator, rhs data.Data) (bool, bool){},
	}
}

func TestEvalBooleanAlgebra(t *testing.T) {
	b := newFakeBackend()
	port := ColumnExtractor{Path: "zeek.conn.id.resp_p", Type: data.CountType}
	uid := ColumnExtractor{Path: "zeek.conn.uid", Type: data.StringType}

	e := Conjunction{
		Predicate{LHS: port, Op: data.OpGreater, RHS: data.Count(100)},
		Predicate{LHS: uid, Op: data.OpEqual, RHS: data.Str("A")},
	}
	assert.Equal(t, []uint64{2}, evalResolved(t, e, b))

	e2 := Disjunction{
		Predicate{LHS: uid, Op: data.OpEqual, RHS: data.Str("B")},
		Predicate{LHS: uid, Op: data.OpEqual, RHS: data.Str("C")},
	}
	assert.Equal(t, []uint64{1, 3}, evalResolved(t, e2, b))

	e3 := Negation{Inner: Predicate{LHS: uid, Op: data.OpEqual, RHS: data.Str("A")}}
	assert.Equal(t, []uint64{1, 3}, evalResolved(t, e3, b))
}

// Normalization must not change results (pipeline equivalence).
func TestEvalNormalizeEquivalence(t *testing.T) {
	b := newFakeBackend()
	port := ColumnExtractor{Path: "zeek.conn.id.resp_p", Type: data.CountType}
	uid := ColumnExtractor{Path: "zeek.conn.uid", Type: data.StringType}

	exprs := []Expr{
		Negation{Inner: Conjunction{
			Predicate{LHS: port, Op: data.OpGreater, RHS: data.Count(100)},
			Negation{Inner: Predicate{LHS: uid, Op: data.OpEqual, RHS: data.Str("A")}},
		}},
		Negation{Inner: Negation{Inner: Predicate{LHS: uid, Op: data.OpEqual, RHS: data.Str("B")}}},
		Disjunction{Disjunction{
			Predicate{LHS: uid, Op: data.OpEqual, RHS: data.Str("C")},
		}, Predicate{LHS: port, Op: data.OpLess, RHS: data.Count(100)}},
	}
	for _, e := range exprs {
		direct := evalResolved(t, e, b)
		normalized := evalResolved(t, Normalize(e), b)
		assert.Equal(t, direct, normalized, "expr %s", e)
	}
}

// A decided synopsis answer must suppress the value-index lookup.
func TestEvalSynopsisShortCircuit(t *testing.T) {
	b := newFakeBackend()
	b.synopses["zeek.conn.id.resp_p"] = func(op data.Operator, rhs data.Data) (bool, bool) {
		return false, true // guaranteed no match
	}
	port := ColumnExtractor{Path: "zeek.conn.id.resp_p", Type: data.CountType}
	e := Predicate{LHS: port, Op: data.OpGreater, RHS: data.Count(100000)}

	got := evalResolved(t, e, b)
	assert.Empty(t, got)
	assert.Equal(t, 1, b.synopsisCalls)
	assert.Empty(t, b.indexCalls, "synopsis decision must not trigger the index")
}

func TestEvalUnresolvedPredicateIsEmpty(t *testing.T) {
	b := newFakeBackend()
	e := Predicate{LHS: FieldExtractor{Path: "unknown"}, Op: data.OpEqual, RHS: data.Int(1)}
	assert.Empty(t, evalResolved(t, e, b))
}

func TestPivotHeuristic(t *testing.T) {
	assert.Equal(t, "uid", PivotField("zeek.conn", "zeek.dns"))
	assert.Equal(t, "community_id", PivotField("zeek.conn", "suricata.alert"))
	assert.Equal(t, "community_id", PivotField("suricata.flow", "zeek.conn"))
}

