package vindex

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventgo/data"
)

// checkExactness verifies P4: the index bitmap equals the brute-force row
// scan under the reference Match semantics.
func checkExactness(t *testing.T, ix Index, cells []data.Data, op data.Operator, rhs data.Data) {
	t.Helper()
	got, err := ix.Lookup(op, rhs)
	require.NoError(t, err, "%s %s", op, rhs)
	for id, cell := range cells {
		want := !cell.IsNil() && data.Match(cell, op, rhs)
		if rhs.IsNil() {
			// Nil right-hand sides follow the skip rule: only == nil
			// matches absent cells.
			want = cell.IsNil() == (op == data.OpEqual)
		}
		assert.Equal(t, want, got.Contains(uint64(id)),
			"id %d cell %s op %s rhs %s", id, cell, op, rhs)
	}
}

func fill(t *testing.T, ix Index, cells []data.Data) {
	t.Helper()
	for id, cell := range cells {
		require.NoError(t, ix.Append(uint64(id), cell))
	}
}

func TestBoolIndex(t *testing.T) {
	ix, ok := ForType(data.BoolType)
	require.True(t, ok)
	cells := []data.Data{
		data.Bool(true), data.Bool(false), data.Nil(), data.Bool(true),
	}
	fill(t, ix, cells)
	for _, op := range []data.Operator{data.OpEqual, data.OpNotEqual} {
		checkExactness(t, ix, cells, op, data.Bool(true))
		checkExactness(t, ix, cells, op, data.Bool(false))
	}
	checkExactness(t, ix, cells, data.OpEqual, data.Nil())
	checkExactness(t, ix, cells, data.OpNotEqual, data.Nil())
}

func TestBSIIndexIntegers(t *testing.T) {
	ix, ok := ForType(data.IntType)
	require.True(t, ok)
	cells := []data.Data{
		data.Int(-100), data.Int(-1), data.Int(0), data.Nil(),
		data.Int(1), data.Int(42), data.Int(42), data.Int(1 << 40),
	}
	fill(t, ix, cells)

	ops := []data.Operator{
		data.OpEqual, data.OpNotEqual,
		data.OpLess, data.OpLessEqual, data.OpGreater, data.OpGreaterEqual,
	}
	rhss := []data.Data{
		data.Int(-101), data.Int(-100), data.Int(0), data.Int(42),
		data.Int(1 << 40), data.Int(1<<40 + 1),
		data.Count(42), data.Real(41.5), data.Real(-0.5),
	}
	for _, op := range ops {
		for _, rhs := range rhss {
			checkExactness(t, ix, cells, op, rhs)
		}
	}
	checkExactness(t, ix, cells, data.OpIn, data.List(data.Int(-1), data.Int(42)))
	checkExactness(t, ix, cells, data.OpNotIn, data.List(data.Int(-1), data.Int(42)))
}

func TestBSIIndexCounts(t *testing.T) {
	ix, ok := ForType(data.CountType)
	require.True(t, ok)
	cells := []data.Data{
		data.Count(1027), data.Count(1089), data.Nil(), data.Count(0),
		data.Count(1 << 63),
	}
	fill(t, ix, cells)

	// The S1 scenario predicate: port > 1028 selects exactly the 1089 row
	// and the large outlier.
	got, err := ix.Lookup(data.OpGreater, data.Count(1028))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 4}, got.ToSlice())

	for _, rhs := range []data.Data{
		data.Count(0), data.Count(1028), data.Int(-5), data.Real(1027.5),
	} {
		for _, op := range []data.Operator{data.OpLess, data.OpGreaterEqual, data.OpEqual} {
			checkExactness(t, ix, cells, op, rhs)
		}
	}
}

func TestBSIIndexReals(t *testing.T) {
	ix, ok := ForType(data.RealType)
	require.True(t, ok)
	cells := []data.Data{
		data.Real(-2.5), data.Real(0), data.Real(0.25), data.Real(1e9), data.Nil(),
	}
	fill(t, ix, cells)
	for _, rhs := range []data.Data{
		data.Real(-2.5), data.Real(0), data.Real(0.1), data.Int(2), data.Count(1),
	} {
		for _, op := range []data.Operator{
			data.OpEqual, data.OpLess, data.OpLessEqual, data.OpGreater, data.OpGreaterEqual,
		} {
			checkExactness(t, ix, cells, op, rhs)
		}
	}
}

func TestBSIIndexTime(t *testing.T) {
	ix, ok := ForType(data.TimeType)
	require.True(t, ok)
	t0 := time.Date(2011, 8, 12, 13, 0, 36, 349948000, time.UTC)
	cells := []data.Data{
		data.Time(t0), data.Time(t0.Add(time.Hour)), data.Time(t0.Add(-time.Hour)),
	}
	fill(t, ix, cells)
	for _, op := range []data.Operator{data.OpLess, data.OpGreaterEqual, data.OpEqual} {
		checkExactness(t, ix, cells, op, data.Time(t0))
	}
}

func TestHashIndexStrings(t *testing.T) {
	ix, ok := ForType(data.StringType)
	require.True(t, ok)
	cells := []data.Data{
		data.Str("alpha"), data.Str("beta"), data.Str("alpha"), data.Nil(), data.Str("gamma ray"),
	}
	fill(t, ix, cells)

	checkExactness(t, ix, cells, data.OpEqual, data.Str("alpha"))
	checkExactness(t, ix, cells, data.OpNotEqual, data.Str("alpha"))
	checkExactness(t, ix, cells, data.OpEqual, data.Str("absent"))
	checkExactness(t, ix, cells, data.OpIn, data.List(data.Str("beta"), data.Str("gamma ray")))
	// Substring containment: row value contains "amma".
	checkExactness(t, ix, cells, data.OpNi, data.Str("amma"))
	// Pattern equality.
	checkExactness(t, ix, cells, data.OpEqual, data.Pattern("^al.*"))
}

func TestHashIndexAddresses(t *testing.T) {
	ix, ok := ForType(data.AddrType)
	require.True(t, ok)
	cells := []data.Data{
		data.Addr(netip.MustParseAddr("127.0.0.1")),
		data.Addr(netip.MustParseAddr("147.32.84.165")),
		data.Addr(netip.MustParseAddr("2001:db8::1")),
		data.Nil(),
	}
	fill(t, ix, cells)

	// v4-mapped equality (S2).
	got, err := ix.Lookup(data.OpEqual, data.Addr(netip.MustParseAddr("::ffff:127.0.0.1")))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, got.ToSlice())

	// Subnet membership (S2).
	got, err = ix.Lookup(data.OpIn, data.Subnet(netip.MustParsePrefix("127.0.0.0/8")))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, got.ToSlice())

	got, err = ix.Lookup(data.OpIn, data.Subnet(netip.MustParsePrefix("147.32.0.0/16")))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, got.ToSlice())
}

func TestListIndexPositional(t *testing.T) {
	ix, ok := ForType(data.ListType(data.StringType))
	require.True(t, ok)
	cells := []data.Data{
		data.List(data.Str("A"), data.Str("B")),
		data.List(data.Str("B")),
		data.Nil(),
		data.List(),
		data.List(data.Str("C"), data.Str("A")),
	}
	fill(t, ix, cells)

	// Containment matches any position.
	got, err := ix.Lookup(data.OpNi, data.Str("A"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 4}, got.ToSlice())

	got, err = ix.Lookup(data.OpNi, data.Str("B"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, got.ToSlice())

	// Whole-list equality.
	got, err = ix.Lookup(data.OpEqual, data.List(data.Str("B")))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, got.ToSlice())
}

func TestAppendRejectsOutOfOrderIDs(t *testing.T) {
	ix, _ := ForType(data.CountType)
	require.NoError(t, ix.Append(5, data.Count(1)))
	err := ix.Append(5, data.Count(2))
	require.ErrorIs(t, err, ErrOutOfOrder)
}

func TestIDGapsActAsSkips(t *testing.T) {
	ix, _ := ForType(data.CountType)
	require.NoError(t, ix.Append(100, data.Count(7)))
	require.NoError(t, ix.Append(200, data.Count(7)))

	got, err := ix.Lookup(data.OpEqual, data.Count(7))
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 200}, got.ToSlice())

	// Ids never offered do not surface, not even for == nil.
	got, err = ix.Lookup(data.OpEqual, data.Nil())
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, []uint64{100, 200}, ix.Coverage().ToSlice())
}

func TestUnsupportedCombinationsError(t *testing.T) {
	ix, _ := ForType(data.CountType)
	require.NoError(t, ix.Append(0, data.Count(1)))
	_, err := ix.Lookup(data.OpNi, data.Count(1))
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = ix.Lookup(data.OpEqual, data.Str("nope"))
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		typ   data.Type
		cells []data.Data
		op    data.Operator
		rhs   data.Data
	}{
		{"bool", data.BoolType,
			[]data.Data{data.Bool(true), data.Nil(), data.Bool(false)},
			data.OpEqual, data.Bool(true)},
		{"bsi", data.IntType,
			[]data.Data{data.Int(-3), data.Int(99), data.Nil()},
			data.OpGreaterEqual, data.Int(0)},
		{"hash", data.StringType,
			[]data.Data{data.Str("x"), data.Str("y")},
			data.OpEqual, data.Str("y")},
		{"list", data.ListType(data.StringType),
			[]data.Data{data.List(data.Str("a"), data.Str("b"))},
			data.OpNi, data.Str("b")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, ok := ForType(tt.typ)
			require.True(t, ok)
			fill(t, ix, tt.cells)
			want, err := ix.Lookup(tt.op, tt.rhs)
			require.NoError(t, err)

			buf, err := Serialize(ix)
			require.NoError(t, err)
			restored, err := Deserialize(buf)
			require.NoError(t, err)

			got, err := restored.Lookup(tt.op, tt.rhs)
			require.NoError(t, err)
			assert.True(t, want.Equal(got))
			assert.Equal(t, ix.Coverage().ToSlice(), restored.Coverage().ToSlice())
		})
	}
}
