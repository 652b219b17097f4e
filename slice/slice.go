// Package slice implements the columnar table slice: an immutable batch of
// events sharing one record layout.
//
// Slices are built row-major through a Builder, then frozen. A frozen slice
// is shareable across goroutines without locking. The binary representation
// is pluggable per encoding tag; the tag travels with the payload so readers
// dispatch without prior knowledge of the slice type.
package slice

import (
	"errors"
	"fmt"

	"github.com/hupe1980/eventgo/data"
)

// ErrTypeClash is returned when a cell value does not fit its column type.
var ErrTypeClash = errors.New("type clash")

// Slice is an immutable columnar batch of events of one layout.
type Slice struct {
	layout   data.Type
	leaves   []data.LeafField
	offset   uint64
	encoding string
	cols     [][]data.Data // column-major: cols[c][r]
	rows     int
}

// Layout returns the (non-flattened) record layout.
func (s *Slice) Layout() data.Type { return s.layout }

// Leaves returns the flattened leaf columns of the layout.
func (s *Slice) Leaves() []data.LeafField { return s.leaves }

// Rows returns the number of events in the slice.
func (s *Slice) Rows() int { return s.rows }

// Columns returns the number of leaf columns.
func (s *Slice) Columns() int { return len(s.leaves) }

// Offset returns the id of the first row.
func (s *Slice) Offset() uint64 { return s.offset }

// Encoding returns the encoding tag the slice serializes under.
func (s *Slice) Encoding() string { return s.encoding }

// At returns the cell at (row, col). Out-of-range access is a programmer
// error and panics like a slice access would.
func (s *Slice) At(row, col int) data.Data {
	return s.cols[col][row]
}

// Column returns one whole column. The returned slice is shared; callers
// must not mutate it.
func (s *Slice) Column(col int) []data.Data {
	return s.cols[col]
}

// ColumnByPath returns the column with the given flattened path.
func (s *Slice) ColumnByPath(path string) ([]data.Data, bool) {
	for i, leaf := range s.leaves {
		if leaf.Path == path {
			return s.cols[i], true
		}
	}
	return nil, false
}

// WithOffset returns a copy of the slice whose first row has the given id.
// The column data is shared, not copied.
func (s *Slice) WithOffset(offset uint64) *Slice {
	dup := *s
	dup.offset = offset
	return &dup
}

// Equal reports structural equality: same layout, offset, and cells.
func (s *Slice) Equal(other *Slice) bool {
	if s.rows != other.rows || s.offset != other.offset || !s.layout.Equal(other.layout) {
		return false
	}
	for c := range s.cols {
		for r := range s.cols[c] {
			if !s.cols[c][r].Equal(other.cols[c][r]) {
				return false
			}
		}
	}
	return true
}

// Builder accumulates cells in row-major order and freezes them into a
// Slice. A builder is single-goroutine; Finish resets it for reuse.
type Builder struct {
	layout   data.Type
	leaves   []data.LeafField
	encoding string
	cols     [][]data.Data
	cursor   int // next column within the current row
	rows     int
}

// NewBuilder creates a builder for the given record layout and encoding
// tag. The encoding must be registered.
func NewBuilder(layout data.Type, encoding string) (*Builder, error) {
	if layout.Kind() != data.KindRecord {
		return nil, fmt.Errorf("%w: layout must be a record, got %s", ErrTypeClash, layout.Kind())
	}
	if _, ok := lookupCodec(encoding); !ok {
		return nil, fmt.Errorf("unknown slice encoding %q", encoding)
	}
	leaves := layout.Flatten()
	b := &Builder{
		layout:   layout,
		leaves:   leaves,
		encoding: encoding,
		cols:     make([][]data.Data, len(leaves)),
	}
	return b, nil
}

// Layout returns the builder's record layout.
func (b *Builder) Layout() data.Type { return b.layout }

// Columns returns the number of leaf columns.
func (b *Builder) Columns() int { return len(b.leaves) }

// Rows returns the number of complete rows added so far.
func (b *Builder) Rows() int { return b.rows }

// Add appends one cell, following row-major column order. Values must fit
// the column type after the permitted widenings; enumeration columns accept
// their ordinal names as strings.
func (b *Builder) Add(d data.Data) error {
	leaf := b.leaves[b.cursor]
	if leaf.Type.Kind() == data.KindEnum {
		if s, ok := d.AsString(); ok {
			ord, ok := leaf.Type.Ordinal(s)
			if !ok {
				return fmt.Errorf("%w: %s: no ordinal for %q", ErrTypeClash, leaf.Path, s)
			}
			d = data.Enum(ord)
		}
	}
	if err := leaf.Type.CheckValue(d); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTypeClash, leaf.Path, err)
	}
	b.cols[b.cursor] = append(b.cols[b.cursor], d)
	b.cursor++
	if b.cursor == len(b.leaves) {
		b.cursor = 0
		b.rows++
	}
	return nil
}

// AddRow appends one full row of cells. On failure the builder rolls back
// to the previous row boundary, so a rejected row never skews later rows.
func (b *Builder) AddRow(cells ...data.Data) error {
	if len(cells) != len(b.leaves) {
		return fmt.Errorf("%w: row has %d cells, layout has %d columns", ErrTypeClash, len(cells), len(b.leaves))
	}
	if b.cursor != 0 {
		return fmt.Errorf("%w: AddRow within a partially added row", ErrTypeClash)
	}
	for i, c := range cells {
		if err := b.Add(c); err != nil {
			for col := 0; col < i; col++ {
				b.cols[col] = b.cols[col][:b.rows]
			}
			b.cursor = 0
			return err
		}
	}
	return nil
}

// Finish freezes the accumulated rows into an immutable Slice and resets
// the builder. A partially added row is discarded.
func (b *Builder) Finish() *Slice {
	cols := make([][]data.Data, len(b.cols))
	for i := range b.cols {
		cols[i] = b.cols[i][:b.rows]
		b.cols[i] = nil
	}
	s := &Slice{
		layout:   b.layout,
		leaves:   b.leaves,
		encoding: b.encoding,
		cols:     cols,
		rows:     b.rows,
	}
	b.rows = 0
	b.cursor = 0
	return s
}
