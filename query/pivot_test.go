package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/slice"
)

func TestPivoterDerivesFollowUpQuery(t *testing.T) {
	layout := data.RecordType("zeek.dns",
		data.Field{Name: "uid", Type: data.StringType},
		data.Field{Name: "query", Type: data.StringType},
	)
	b, err := slice.NewBuilder(layout, slice.EncodingColV1)
	require.NoError(t, err)
	for _, row := range [][]string{{"A", "x"}, {"B", "y"}, {"A", "z"}} {
		require.NoError(t, b.AddRow(data.Str(row[0]), data.Str(row[1])))
	}
	matched := b.Finish()

	p := NewPivoter("zeek.conn")
	require.True(t, p.Feed(matched))
	assert.Len(t, p.Values(), 2, "duplicate uids collapse")

	followUp, ok := p.Expr()
	require.True(t, ok)
	conj, isConj := followUp.(Conjunction)
	require.True(t, isConj)
	require.Len(t, conj, 2)

	typePred, isPred := conj[0].(Predicate)
	require.True(t, isPred)
	meta, isMeta := typePred.LHS.(MetaExtractor)
	require.True(t, isMeta)
	assert.Equal(t, MetaType, meta.Kind)
	assert.True(t, typePred.RHS.Equal(data.Str("zeek.conn")))

	inPred, isPred := conj[1].(Predicate)
	require.True(t, isPred)
	field, isField := inPred.LHS.(FieldExtractor)
	require.True(t, isField)
	assert.Equal(t, "uid", field.Path)
	assert.Equal(t, data.OpIn, inPred.Op)
	assert.True(t, inPred.RHS.Equal(data.List(data.Str("A"), data.Str("B"))))
}

func TestPivoterSkipsSlicesWithoutPivotField(t *testing.T) {
	layout := data.RecordType("zeek.files",
		data.Field{Name: "fuid", Type: data.StringType},
	)
	b, err := slice.NewBuilder(layout, slice.EncodingColV1)
	require.NoError(t, err)
	require.NoError(t, b.AddRow(data.Str("F1")))

	p := NewPivoter("zeek.conn")
	assert.False(t, p.Feed(b.Finish()))
	_, ok := p.Expr()
	assert.False(t, ok)
}
