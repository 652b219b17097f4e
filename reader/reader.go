// Package reader defines the ingest contract and the line-based readers
// shipping with the store.
//
// A reader turns a byte stream into table slices under a schema-selected
// layout. Per-record parse failures degrade (the record is skipped with a
// log entry); per-batch failures surface to the caller.
package reader

import (
	"errors"

	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/slice"
)

var (
	// ErrEndOfInput signals a cleanly exhausted input stream.
	ErrEndOfInput = errors.New("end of input")
	// ErrTimeout signals that the input produced nothing in time.
	ErrTimeout = errors.New("input timed out")
	// ErrStalled signals an input that stopped making progress.
	ErrStalled = errors.New("input stalled")
	// ErrFormat signals input that cannot map onto the schema.
	ErrFormat = errors.New("format error")
)

// Consumer receives finished table slices.
type Consumer func(s *slice.Slice) error

// Reader produces table slices from a byte stream.
type Reader interface {
	// SetSchema supplies the layouts the reader may produce.
	SetSchema(schema *data.Schema) error
	// Schema returns the reader's current schema.
	Schema() *data.Schema
	// Read produces up to maxEvents rows, cutting slices of at most
	// maxSliceSize rows, and hands each finished slice to consume. It
	// returns the number of rows produced; err is ErrEndOfInput when the
	// stream is exhausted.
	Read(maxEvents, maxSliceSize int, consume Consumer) (int, error)
}

// checkIndexable rejects layouts the storage layer cannot index yet. Map
// columns are rejected until map cells parse reliably.
func checkIndexable(layout data.Type) error {
	for _, leaf := range layout.Flatten() {
		if leaf.Type.Kind() == data.KindMap {
			return errors.Join(ErrFormat, errors.New("map-typed column "+leaf.Path+" is not supported"))
		}
	}
	return nil
}
