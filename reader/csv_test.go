package reader

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/slice"
)

func flowSchema(t *testing.T) *data.Schema {
	t.Helper()
	schema, err := data.NewSchema(data.RecordType("test.flow",
		data.Field{Name: "ts", Type: data.TimeType},
		data.Field{Name: "addr", Type: data.AddrType},
		data.Field{Name: "port", Type: data.CountType},
	))
	require.NoError(t, err)
	return schema
}

const flowCSV = `ts,addr,port
2011-08-12T13:00:36.349948Z,147.32.84.165,1027
2011-08-13T13:04:24.640406Z,147.32.84.165,1089
`

func TestCSVSelectsLayoutFromHeader(t *testing.T) {
	r := NewCSV(strings.NewReader(flowCSV), CSVOptions{})
	require.NoError(t, r.SetSchema(flowSchema(t)))

	var got []*slice.Slice
	rows, err := r.Read(1000, 1000, func(s *slice.Slice) error {
		got = append(got, s)
		return nil
	})
	require.ErrorIs(t, err, ErrEndOfInput)
	assert.Equal(t, 2, rows)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, "test.flow", s.Layout().Name())
	assert.Equal(t, 2, s.Rows())

	ts, ok := s.At(0, 0).AsTime()
	require.True(t, ok)
	assert.Equal(t, time.Date(2011, 8, 12, 13, 0, 36, 349948000, time.UTC), ts)

	port, ok := s.At(1, 2).AsCount()
	require.True(t, ok)
	assert.Equal(t, uint64(1089), port)
}

func TestCSVSliceRotation(t *testing.T) {
	r := NewCSV(strings.NewReader(flowCSV), CSVOptions{})
	require.NoError(t, r.SetSchema(flowSchema(t)))

	var sizes []int
	rows, err := r.Read(1000, 1, func(s *slice.Slice) error {
		sizes = append(sizes, s.Rows())
		return nil
	})
	require.ErrorIs(t, err, ErrEndOfInput)
	assert.Equal(t, 2, rows)
	assert.Equal(t, []int{1, 1}, sizes)
}

func TestCSVSkipsMalformedRecords(t *testing.T) {
	input := "ts,addr,port\n" +
		"2011-08-12T13:00:36Z,147.32.84.165,1027\n" +
		"not-a-time,147.32.84.165,1028\n" +
		"2011-08-13T13:04:24Z,147.32.84.165,1089\n"
	r := NewCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, r.SetSchema(flowSchema(t)))

	total := 0
	rows, err := r.Read(1000, 1000, func(s *slice.Slice) error {
		total += s.Rows()
		return nil
	})
	require.ErrorIs(t, err, ErrEndOfInput)
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, total, "the malformed record degrades to a skip")
}

func TestCSVUnknownHeaderIsFormatError(t *testing.T) {
	r := NewCSV(strings.NewReader("a,b,c\n1,2,3\n"), CSVOptions{})
	require.NoError(t, r.SetSchema(flowSchema(t)))
	_, err := r.Read(10, 10, func(*slice.Slice) error { return nil })
	require.ErrorIs(t, err, ErrFormat)
}

func TestCSVRejectsMapColumns(t *testing.T) {
	schema, err := data.NewSchema(data.RecordType("test.mapped",
		data.Field{Name: "kv", Type: data.MapType(data.StringType, data.CountType)},
	))
	require.NoError(t, err)

	r := NewCSV(strings.NewReader("kv\na=1\n"), CSVOptions{})
	require.NoError(t, r.SetSchema(schema))
	_, err = r.Read(10, 10, func(*slice.Slice) error { return nil })
	require.ErrorIs(t, err, ErrFormat)
}

func TestCSVListCells(t *testing.T) {
	schema, err := data.NewSchema(data.RecordType("test.tagged",
		data.Field{Name: "name", Type: data.StringType},
		data.Field{Name: "tags", Type: data.ListType(data.StringType)},
	))
	require.NoError(t, err)

	r := NewCSV(strings.NewReader("name,tags\nhost1,web db\n"), CSVOptions{})
	require.NoError(t, r.SetSchema(schema))

	var got *slice.Slice
	_, err = r.Read(10, 10, func(s *slice.Slice) error {
		got = s
		return nil
	})
	require.ErrorIs(t, err, ErrEndOfInput)
	require.NotNil(t, got)
	assert.True(t, got.At(0, 1).Equal(data.List(data.Str("web"), data.Str("db"))))
}

func TestCSVEmptyCellIsNil(t *testing.T) {
	r := NewCSV(strings.NewReader("ts,addr,port\n2011-08-12T13:00:36Z,,1027\n"), CSVOptions{})
	require.NoError(t, r.SetSchema(flowSchema(t)))

	var got *slice.Slice
	_, err := r.Read(10, 10, func(s *slice.Slice) error {
		got = s
		return nil
	})
	require.ErrorIs(t, err, ErrEndOfInput)
	require.NotNil(t, got)
	assert.True(t, got.At(0, 1).IsNil())
}
