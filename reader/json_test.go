package reader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/slice"
)

func dnsSchema(t *testing.T) *data.Schema {
	t.Helper()
	schema, err := data.NewSchema(data.RecordType("zeek.dns",
		data.Field{Name: "ts", Type: data.TimeType},
		data.Field{Name: "id", Type: data.RecordType("",
			data.Field{Name: "orig_h", Type: data.AddrType},
		)},
		data.Field{Name: "query", Type: data.StringType},
		data.Field{Name: "rcode", Type: data.CountType},
	))
	require.NoError(t, err)
	return schema
}

func TestJSONReadsNestedAndDottedKeys(t *testing.T) {
	input := strings.Join([]string{
		`{"ts": 1313154036.5, "id": {"orig_h": "10.0.0.1"}, "query": "example.com", "rcode": 0}`,
		`{"ts": "2011-08-13T13:04:24Z", "id.orig_h": "10.0.0.2", "query": "other.org", "extra": true}`,
		``,
		`not json`,
	}, "\n")

	r := NewJSON(strings.NewReader(input), JSONOptions{Layout: "zeek.dns"})
	require.NoError(t, r.SetSchema(dnsSchema(t)))

	var got []*slice.Slice
	rows, err := r.Read(100, 100, func(s *slice.Slice) error {
		got = append(got, s)
		return nil
	})
	require.ErrorIs(t, err, ErrEndOfInput)
	assert.Equal(t, 2, rows, "blank and malformed lines skip")
	require.Len(t, got, 1)

	s := got[0]
	q, ok := s.At(0, 2).AsString()
	require.True(t, ok)
	assert.Equal(t, "example.com", q)

	// A literal dotted key fills the nested column; missing field becomes nil.
	addrCol, ok := s.ColumnByPath("id.orig_h")
	require.True(t, ok)
	addr, ok := addrCol[1].AsAddr()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2", addr.String())
	assert.True(t, s.At(1, 3).IsNil(), "missing rcode is nil")
}

func TestJSONUnknownLayout(t *testing.T) {
	r := NewJSON(strings.NewReader(""), JSONOptions{Layout: "no.such"})
	err := r.SetSchema(dnsSchema(t))
	require.ErrorIs(t, err, ErrFormat)
}
