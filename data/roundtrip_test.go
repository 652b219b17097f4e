package data

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// corpus returns one value per kind plus nesting, shared by the text and
// binary round-trip properties.
func corpus() []Data {
	return []Data{
		Nil(),
		Bool(true),
		Bool(false),
		Int(-42),
		Int(0),
		Int(9000000000),
		Count(0),
		Count(18446744073709551615),
		Real(3.25),
		Real(-0.5),
		Real(5),
		Str(""),
		Str("hello, world"),
		Str("with \"quotes\" and \n newline"),
		Pattern("^foo.*bar$"),
		Addr(netip.MustParseAddr("147.32.84.165")),
		Addr(netip.MustParseAddr("2001:db8::1")),
		Addr(netip.MustParseAddr("::ffff:10.1.2.3")),
		Subnet(netip.MustParsePrefix("147.32.0.0/16")),
		Subnet(netip.MustParsePrefix("2001:db8::/32")),
		Time(time.Date(2011, 8, 12, 13, 0, 36, 349948000, time.UTC)),
		Duration(90 * time.Second),
		Duration(-1500 * time.Millisecond),
		Enum(3),
		List(),
		List(Int(1), Int(2), Int(3)),
		List(Str("a"), Str("b")),
		Record(Str("x"), Count(1), Nil()),
		Map(),
		Map(MapEntry{Key: Str("k"), Value: Count(1)}),
		List(List(Count(1)), List(Count(2), Count(3))),
	}
}

func TestTextRoundTrip(t *testing.T) {
	for _, v := range corpus() {
		printed := v.String()
		parsed, err := Parse(printed)
		require.NoError(t, err, "parse %q", printed)
		require.True(t, v.Equal(parsed), "round trip %q: got %s", printed, parsed)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	for _, v := range corpus() {
		buf := v.AppendBinary(nil)
		decoded, n, err := DecodeBinary(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n, "full consumption for %s", v)
		require.True(t, v.Equal(decoded), "round trip %s", v)
	}
}

func TestBinaryRejectsTruncation(t *testing.T) {
	buf := Str("hello").AppendBinary(nil)
	for cut := 1; cut < len(buf); cut++ {
		_, _, err := DecodeBinary(buf[:cut])
		require.Error(t, err, "cut at %d", cut)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "[1, 2", "{1 -> }", "bogus~", "+abc", "#x"} {
		_, err := Parse(input)
		require.ErrorIs(t, err, ErrParse, "input %q", input)
	}
}
