package synopsis

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventgo/data"
)

// checkSoundness verifies the core synopsis contract: for every added
// value and every predicate it satisfies, the synopsis never answers
// "definitely no".
func checkSoundness(t *testing.T, s Synopsis, values []data.Data, ops []data.Operator, rhss []data.Data) {
	t.Helper()
	for _, v := range values {
		s.Add(v)
	}
	for _, op := range ops {
		for _, rhs := range rhss {
			matches, decided := s.Lookup(op, rhs)
			if !decided {
				continue
			}
			anyMatch := false
			allMatch := true
			for _, v := range values {
				if data.Match(v, op, rhs) {
					anyMatch = true
				} else {
					allMatch = false
				}
			}
			if !matches {
				assert.False(t, anyMatch, "synopsis denied %s %s but a row matches", op, rhs)
			} else {
				assert.True(t, allMatch, "synopsis affirmed %s %s but a row does not match", op, rhs)
			}
		}
	}
}

func TestBoolSynopsis(t *testing.T) {
	s, ok := ForType(data.BoolType, DefaultOptions())
	require.True(t, ok)

	s.Add(data.Bool(true))
	matches, decided := s.Lookup(data.OpEqual, data.Bool(true))
	assert.True(t, decided)
	assert.True(t, matches, "all-true column decides == true exactly")

	matches, decided = s.Lookup(data.OpEqual, data.Bool(false))
	assert.True(t, decided)
	assert.False(t, matches)

	s.Add(data.Bool(false))
	_, decided = s.Lookup(data.OpEqual, data.Bool(true))
	assert.False(t, decided, "mixed column cannot decide")
}

func TestBoolSynopsisNilSuppressesAllMatch(t *testing.T) {
	s, _ := ForType(data.BoolType, DefaultOptions())
	s.Add(data.Bool(true))
	s.Add(data.Nil())
	matches, decided := s.Lookup(data.OpEqual, data.Bool(true))
	if decided {
		assert.False(t, matches, "nil rows forbid an all-match answer")
	}
}

func TestMinMaxSynopsisRangeDecisions(t *testing.T) {
	s, ok := ForType(data.CountType, DefaultOptions())
	require.True(t, ok)
	for _, v := range []uint64{1027, 1089, 2000} {
		s.Add(data.Count(v))
	}

	tests := []struct {
		op          data.Operator
		rhs         uint64
		wantMatch   bool
		wantDecided bool
	}{
		{data.OpGreater, 2000, false, true},
		{data.OpGreater, 1000, true, true},
		{data.OpGreater, 1028, false, false},
		{data.OpLess, 1000, false, true},
		{data.OpLess, 5000, true, true},
		{data.OpEqual, 50, false, true},
		{data.OpEqual, 1089, false, false},
		{data.OpGreaterEqual, 1027, true, true},
		{data.OpLessEqual, 1026, false, true},
	}
	for _, tt := range tests {
		matches, decided := s.Lookup(tt.op, data.Count(tt.rhs))
		assert.Equal(t, tt.wantDecided, decided, "%s %d decided", tt.op, tt.rhs)
		if decided {
			assert.Equal(t, tt.wantMatch, matches, "%s %d match", tt.op, tt.rhs)
		}
	}
}

func TestMinMaxSoundnessProperty(t *testing.T) {
	values := []data.Data{
		data.Int(-5), data.Int(0), data.Int(17), data.Int(17), data.Int(9000),
	}
	rhss := []data.Data{
		data.Int(-100), data.Int(-5), data.Int(3), data.Int(17), data.Int(9000), data.Int(10000),
	}
	ops := []data.Operator{
		data.OpEqual, data.OpNotEqual, data.OpLess, data.OpLessEqual, data.OpGreater, data.OpGreaterEqual,
	}
	s, ok := ForType(data.IntType, DefaultOptions())
	require.True(t, ok)
	checkSoundness(t, s, values, ops, rhss)
}

func TestTimeSynopsis(t *testing.T) {
	s, ok := ForType(data.TimeType, DefaultOptions())
	require.True(t, ok)
	t0 := time.Date(2011, 8, 12, 13, 0, 36, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)
	s.Add(data.Time(t0))
	s.Add(data.Time(t1))

	matches, decided := s.Lookup(data.OpLess, data.Time(t0))
	assert.True(t, decided)
	assert.False(t, matches)

	matches, decided = s.Lookup(data.OpGreaterEqual, data.Time(t0))
	assert.True(t, decided)
	assert.True(t, matches)
}

func TestBloomSynopsis(t *testing.T) {
	s, ok := ForType(data.StringType, DefaultOptions())
	require.True(t, ok)
	s.Add(data.Str("alpha"))
	s.Add(data.Str("beta"))

	_, decided := s.Lookup(data.OpEqual, data.Str("alpha"))
	assert.False(t, decided, "a may-contain answer is not a decision")

	matches, decided := s.Lookup(data.OpEqual, data.Str("certainly-absent-value"))
	assert.True(t, decided)
	assert.False(t, matches)

	matches, decided = s.Lookup(data.OpIn, data.List(data.Str("nope-1"), data.Str("nope-2")))
	assert.True(t, decided)
	assert.False(t, matches)

	_, decided = s.Lookup(data.OpLess, data.Str("x"))
	assert.False(t, decided, "ordering is never pushable to a bloom synopsis")
}

func TestBloomSynopsisAddressesAndSubnets(t *testing.T) {
	s, ok := ForType(data.AddrType, DefaultOptions())
	require.True(t, ok)
	s.Add(data.Addr(netip.MustParseAddr("127.0.0.1")))

	// v4 and v4-mapped v6 hash to the same key.
	_, decided := s.Lookup(data.OpEqual, data.Addr(netip.MustParseAddr("::ffff:127.0.0.1")))
	assert.False(t, decided)

	// Subnet membership cannot hash; must fall through to the index.
	_, decided = s.Lookup(data.OpIn, data.Subnet(netip.MustParsePrefix("127.0.0.0/8")))
	assert.False(t, decided)
}

func TestSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		typ  data.Type
		add  []data.Data
		op   data.Operator
		rhs  data.Data
	}{
		{"bool", data.BoolType, []data.Data{data.Bool(true)}, data.OpEqual, data.Bool(false)},
		{"minmax", data.CountType, []data.Data{data.Count(5), data.Count(10)}, data.OpGreater, data.Count(12)},
		{"minmax empty", data.IntType, nil, data.OpEqual, data.Int(1)},
		{"bloom", data.StringType, []data.Data{data.Str("x")}, data.OpEqual, data.Str("absent")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := ForType(tt.typ, DefaultOptions())
			require.True(t, ok)
			for _, v := range tt.add {
				s.Add(v)
			}
			wantMatch, wantDecided := s.Lookup(tt.op, tt.rhs)

			restored, err := Deserialize(Serialize(s))
			require.NoError(t, err)
			gotMatch, gotDecided := restored.Lookup(tt.op, tt.rhs)
			assert.Equal(t, wantDecided, gotDecided)
			assert.Equal(t, wantMatch, gotMatch)
		})
	}
}

func TestContainerTypesHaveNoSynopsis(t *testing.T) {
	_, ok := ForType(data.ListType(data.StringType), DefaultOptions())
	assert.False(t, ok)
	_, ok = ForType(data.MapType(data.StringType, data.CountType), DefaultOptions())
	assert.False(t, ok)
}
