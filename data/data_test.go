package data

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualityRespectsTagOnly(t *testing.T) {
	assert.True(t, Int(5).Equal(Int(5)))
	assert.False(t, Int(5).Equal(Count(5)), "integer and count differ by tag")
	assert.True(t, Nil().Equal(Nil()))
	assert.False(t, Str("a").Equal(Pattern("a")))
}

func TestAddressEqualityIsValueBased(t *testing.T) {
	v4 := Addr(netip.MustParseAddr("127.0.0.1"))
	mapped := Addr(netip.MustParseAddr("::ffff:127.0.0.1"))
	assert.True(t, v4.Equal(mapped))
	assert.Equal(t, 0, v4.Compare(mapped))
	assert.Equal(t, v4.Key(), mapped.Key())
}

func TestCompareTotalOrderWithinKind(t *testing.T) {
	tests := []struct {
		name string
		a, b Data
		want int
	}{
		{"int", Int(-3), Int(4), -1},
		{"count", Count(9), Count(2), 1},
		{"real", Real(1.5), Real(1.5), 0},
		{"string", Str("abc"), Str("abd"), -1},
		{"time", Time(time.Unix(1, 0)), Time(time.Unix(2, 0)), -1},
		{"duration", Duration(3 * time.Second), Duration(time.Second), 1},
		{"bool", Bool(false), Bool(true), -1},
		{"list", List(Int(1), Int(2)), List(Int(1), Int(3)), -1},
		{"list length", List(Int(1)), List(Int(1), Int(1)), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestCompareAcrossKindsOrdersByTag(t *testing.T) {
	a, b := Bool(true), Str("x")
	require.NotEqual(t, a.Kind(), b.Kind())
	assert.Equal(t, -b.Compare(a), a.Compare(b))
	assert.NotEqual(t, 0, a.Compare(b))
}

func TestKeyIsStablePerValue(t *testing.T) {
	assert.Equal(t, Int(7).Key(), Int(7).Key())
	assert.NotEqual(t, Int(7).Key(), Count(7).Key())
	assert.NotEqual(t, Str("1").Key(), Int(1).Key())
	assert.Equal(t,
		List(Str("a"), Str("b")).Key(),
		List(Str("a"), Str("b")).Key(),
	)
	assert.NotEqual(t,
		List(Str("a"), Str("b")).Key(),
		List(Str("ab")).Key(),
	)
}

func TestSubnetNormalizesMappedPrefixes(t *testing.T) {
	plain := Subnet(netip.MustParsePrefix("10.0.0.0/8"))
	mapped := Subnet(netip.PrefixFrom(netip.MustParseAddr("::ffff:10.0.0.0"), 104))
	assert.True(t, plain.Equal(mapped))
}
