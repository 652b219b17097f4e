package reader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/slice"
)

// CSVOptions tunes the CSV reader.
type CSVOptions struct {
	// Separator is the field separator; ',' by default.
	Separator rune
	// ListSeparator splits list cells; a space by default.
	ListSeparator string
	// Logger receives per-record skip notices.
	Logger *slog.Logger
}

// CSV reads comma-separated events. The header row selects the layout: the
// schema record whose flattened column paths equal the header fields, in
// order.
type CSV struct {
	opts   CSVOptions
	log    *slog.Logger
	schema *data.Schema
	csv    *csv.Reader
	layout data.Type
	leaves []data.LeafField
	done   bool
}

// NewCSV creates a CSV reader over r. The layout is chosen lazily from the
// first row.
func NewCSV(r io.Reader, opts CSVOptions) *CSV {
	if opts.Separator == 0 {
		opts.Separator = ','
	}
	if opts.ListSeparator == "" {
		opts.ListSeparator = " "
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	cr := csv.NewReader(r)
	cr.Comma = opts.Separator
	cr.FieldsPerRecord = -1
	return &CSV{
		opts: opts,
		log:  log.With("component", "csv-reader"),
		csv:  cr,
	}
}

// SetSchema implements Reader.
func (c *CSV) SetSchema(schema *data.Schema) error {
	c.schema = schema
	return nil
}

// Schema implements Reader.
func (c *CSV) Schema() *data.Schema { return c.schema }

// selectLayout picks the schema record whose flattened paths match the
// header exactly.
func (c *CSV) selectLayout(header []string) error {
	for _, layout := range c.schema.Types() {
		leaves := layout.Flatten()
		if len(leaves) != len(header) {
			continue
		}
		match := true
		for i, leaf := range leaves {
			if leaf.Path != header[i] {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		if err := checkIndexable(layout); err != nil {
			return err
		}
		c.layout = layout
		c.leaves = leaves
		return nil
	}
	return fmt.Errorf("%w: no layout matches header %v", ErrFormat, header)
}

// Read implements Reader.
func (c *CSV) Read(maxEvents, maxSliceSize int, consume Consumer) (int, error) {
	if c.done {
		return 0, ErrEndOfInput
	}
	if c.schema == nil || c.schema.Len() == 0 {
		return 0, fmt.Errorf("%w: reader has no schema", ErrFormat)
	}
	if c.layout.Kind() != data.KindRecord {
		header, err := c.csv.Read()
		if err != nil {
			c.done = true
			if errors.Is(err, io.EOF) {
				return 0, ErrEndOfInput
			}
			return 0, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if err := c.selectLayout(header); err != nil {
			c.done = true
			return 0, err
		}
	}

	builder, err := slice.NewBuilder(c.layout, slice.EncodingColV1)
	if err != nil {
		return 0, err
	}
	produced := 0
	flush := func() error {
		if builder.Rows() == 0 {
			return nil
		}
		return consume(builder.Finish())
	}

	for produced < maxEvents {
		record, err := c.csv.Read()
		if errors.Is(err, io.EOF) {
			c.done = true
			if ferr := flush(); ferr != nil {
				return produced, ferr
			}
			return produced, ErrEndOfInput
		}
		if err != nil {
			c.log.Warn("skipping malformed csv record", "error", err)
			continue
		}
		if err := c.appendRecord(builder, record); err != nil {
			c.log.Warn("skipping csv record", "error", err)
			continue
		}
		produced++
		if builder.Rows() >= maxSliceSize {
			if err := flush(); err != nil {
				return produced, err
			}
		}
	}
	if err := flush(); err != nil {
		return produced, err
	}
	return produced, nil
}

func (c *CSV) appendRecord(builder *slice.Builder, record []string) error {
	if len(record) != len(c.leaves) {
		return fmt.Errorf("%w: %d fields, layout has %d", ErrFormat, len(record), len(c.leaves))
	}
	cells := make([]data.Data, len(record))
	for i, cell := range record {
		parsed, err := data.ParseAs(cell, c.leaves[i].Type, c.opts.ListSeparator)
		if err != nil {
			return fmt.Errorf("%s: %w", c.leaves[i].Path, err)
		}
		cells[i] = parsed
	}
	return builder.AddRow(cells...)
}
