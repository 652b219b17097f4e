package slice

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventgo/data"
)

func connLayout() data.Type {
	return data.RecordType("test.conn",
		data.Field{Name: "ts", Type: data.TimeType},
		data.Field{Name: "id", Type: data.RecordType("",
			data.Field{Name: "orig_h", Type: data.AddrType},
			data.Field{Name: "resp_p", Type: data.CountType},
		)},
		data.Field{Name: "proto", Type: data.EnumType("proto", "tcp", "udp", "icmp")},
		data.Field{Name: "tags", Type: data.ListType(data.StringType)},
	)
}

func buildConnSlice(t *testing.T) *Slice {
	t.Helper()
	b, err := NewBuilder(connLayout(), EncodingColV1)
	require.NoError(t, err)
	require.Equal(t, 5, b.Columns(), "flattened leaf count")

	rows := [][]data.Data{
		{
			data.Time(time.Date(2011, 8, 12, 13, 0, 36, 0, time.UTC)),
			data.Addr(netip.MustParseAddr("147.32.84.165")),
			data.Count(1027),
			data.Str("tcp"),
			data.List(data.Str("a"), data.Str("b")),
		},
		{
			data.Time(time.Date(2011, 8, 13, 13, 4, 24, 0, time.UTC)),
			data.Addr(netip.MustParseAddr("147.32.84.165")),
			data.Count(1089),
			data.Str("udp"),
			data.Nil(),
		},
	}
	for _, row := range rows {
		require.NoError(t, b.AddRow(row...))
	}
	return b.Finish()
}

func TestBuilderProducesImmutableSlice(t *testing.T) {
	s := buildConnSlice(t)
	assert.Equal(t, 2, s.Rows())
	assert.Equal(t, 5, s.Columns())
	assert.Equal(t, uint64(0), s.Offset())
	assert.Equal(t, "test.conn", s.Layout().Name())

	// Enum text widened to its ordinal.
	ord, ok := s.At(0, 3).AsEnum()
	require.True(t, ok)
	assert.Equal(t, uint64(0), ord)
	ord, ok = s.At(1, 3).AsEnum()
	require.True(t, ok)
	assert.Equal(t, uint64(1), ord)

	// Nested record fields flatten to dotted paths.
	col, ok := s.ColumnByPath("id.resp_p")
	require.True(t, ok)
	port, ok := col[1].AsCount()
	require.True(t, ok)
	assert.Equal(t, uint64(1089), port)
}

func TestBuilderRejectsTypeClash(t *testing.T) {
	b, err := NewBuilder(connLayout(), EncodingColV1)
	require.NoError(t, err)

	err = b.Add(data.Str("not a time"))
	require.ErrorIs(t, err, ErrTypeClash)

	// Nil is accepted everywhere.
	require.NoError(t, b.Add(data.Nil()))

	// Unknown enum name fails, and the failed row rolls back.
	b, err = NewBuilder(connLayout(), EncodingColV1)
	require.NoError(t, err)
	err = b.AddRow(
		data.Time(time.Now()),
		data.Nil(),
		data.Count(1),
		data.Str("quic"),
		data.Nil(),
	)
	require.ErrorIs(t, err, ErrTypeClash)
}

func TestBuilderResetAfterFinish(t *testing.T) {
	b, err := NewBuilder(connLayout(), EncodingColV1)
	require.NoError(t, err)
	require.NoError(t, b.AddRow(
		data.Time(time.Now()), data.Nil(), data.Count(1), data.Str("tcp"), data.Nil(),
	))
	first := b.Finish()
	assert.Equal(t, 1, first.Rows())
	assert.Equal(t, 0, b.Rows())

	second := b.Finish()
	assert.Equal(t, 0, second.Rows())
}

func TestSerializeRoundTrip(t *testing.T) {
	s := buildConnSlice(t).WithOffset(42)
	buf, err := Serialize(s)
	require.NoError(t, err)

	decoded, err := Deserialize(buf)
	require.NoError(t, err)
	assert.True(t, s.Equal(decoded))
	assert.Equal(t, uint64(42), decoded.Offset())
	assert.Equal(t, EncodingColV1, decoded.Encoding())
}

func TestDeserializeRejectsUnknownEncoding(t *testing.T) {
	_, err := Deserialize([]byte{6, 'n', 'o', 'p', 'e', '0', '1'})
	require.Error(t, err)
}

func TestUnknownEncodingAtBuild(t *testing.T) {
	_, err := NewBuilder(connLayout(), "bogus")
	require.Error(t, err)
}
