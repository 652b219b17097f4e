package reader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/netip"
	"strings"
	"time"

	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/slice"
)

// JSONOptions tunes the NDJSON reader.
type JSONOptions struct {
	// Layout names the schema record every line maps onto.
	Layout string
	// Logger receives per-record skip notices.
	Logger *slog.Logger
}

// JSON reads newline-delimited JSON objects against one explicit layout.
// Unknown fields are ignored; missing fields become nil.
type JSON struct {
	opts    JSONOptions
	log     *slog.Logger
	schema  *data.Schema
	scanner *bufio.Scanner
	layout  data.Type
	leaves  []data.LeafField
	done    bool
}

// NewJSON creates an NDJSON reader over r producing events of the named
// layout.
func NewJSON(r io.Reader, opts JSONOptions) *JSON {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &JSON{
		opts:    opts,
		log:     log.With("component", "json-reader", "layout", opts.Layout),
		scanner: scanner,
	}
}

// SetSchema implements Reader.
func (j *JSON) SetSchema(schema *data.Schema) error {
	layout, ok := schema.Find(j.opts.Layout)
	if !ok {
		return fmt.Errorf("%w: schema has no layout %q", ErrFormat, j.opts.Layout)
	}
	if err := checkIndexable(layout); err != nil {
		return err
	}
	j.schema = schema
	j.layout = layout
	j.leaves = layout.Flatten()
	return nil
}

// Schema implements Reader.
func (j *JSON) Schema() *data.Schema { return j.schema }

// Read implements Reader.
func (j *JSON) Read(maxEvents, maxSliceSize int, consume Consumer) (int, error) {
	if j.done {
		return 0, ErrEndOfInput
	}
	if j.schema == nil {
		return 0, fmt.Errorf("%w: reader has no schema", ErrFormat)
	}

	builder, err := slice.NewBuilder(j.layout, slice.EncodingColV1)
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
		if !j.scanner.Scan() {
			j.done = true
			if ferr := flush(); ferr != nil {
				return produced, ferr
			}
			if err := j.scanner.Err(); err != nil {
				return produced, fmt.Errorf("%w: %v", ErrFormat, err)
			}
			return produced, ErrEndOfInput
		}
		line := strings.TrimSpace(j.scanner.Text())
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			j.log.Warn("skipping malformed json line", "error", err)
			continue
		}
		if err := j.appendObject(builder, obj); err != nil {
			j.log.Warn("skipping json record", "error", err)
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

func (j *JSON) appendObject(builder *slice.Builder, obj map[string]any) error {
	cells := make([]data.Data, len(j.leaves))
	for i, leaf := range j.leaves {
		raw, ok := lookupPath(obj, leaf.Path)
		if !ok || raw == nil {
			cells[i] = data.Nil()
			continue
		}
		cell, err := convertJSON(raw, leaf.Type)
		if err != nil {
			return fmt.Errorf("%s: %w", leaf.Path, err)
		}
		cells[i] = cell
	}
	return builder.AddRow(cells...)
}

// lookupPath walks dotted paths into nested objects, preferring a literal
// dotted key (Zeek style) over nesting.
func lookupPath(obj map[string]any, path string) (any, bool) {
	if v, ok := obj[path]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}
	nested, ok := obj[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return lookupPath(nested, rest)
}

func convertJSON(raw any, t data.Type) (data.Data, error) {
	switch t.Kind() {
	case data.KindBool:
		if b, ok := raw.(bool); ok {
			return data.Bool(b), nil
		}
	case data.KindInt:
		if f, ok := raw.(float64); ok && f == math.Trunc(f) {
			return data.Int(int64(f)), nil
		}
	case data.KindCount:
		if f, ok := raw.(float64); ok && f == math.Trunc(f) && f >= 0 {
			return data.Count(uint64(f)), nil
		}
	case data.KindReal:
		if f, ok := raw.(float64); ok {
			return data.Real(f), nil
		}
	case data.KindString, data.KindPattern:
		if s, ok := raw.(string); ok {
			if t.Kind() == data.KindPattern {
				return data.Pattern(s), nil
			}
			return data.Str(s), nil
		}
	case data.KindAddr:
		if s, ok := raw.(string); ok {
			ip, err := netip.ParseAddr(s)
			if err != nil {
				return data.Data{}, err
			}
			return data.Addr(ip), nil
		}
	case data.KindSubnet:
		if s, ok := raw.(string); ok {
			pfx, err := netip.ParsePrefix(s)
			if err != nil {
				return data.Data{}, err
			}
			return data.Subnet(pfx), nil
		}
	case data.KindTime:
		switch v := raw.(type) {
		case string:
			ts, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return data.Data{}, err
			}
			return data.Time(ts), nil
		case float64:
			sec := int64(v)
			nsec := int64((v - float64(sec)) * 1e9)
			return data.Time(time.Unix(sec, nsec)), nil
		}
	case data.KindDuration:
		switch v := raw.(type) {
		case string:
			dur, err := time.ParseDuration(v)
			if err != nil {
				return data.Data{}, err
			}
			return data.Duration(dur), nil
		case float64:
			return data.Duration(time.Duration(v * float64(time.Second))), nil
		}
	case data.KindEnum:
		if s, ok := raw.(string); ok {
			if ord, found := t.Ordinal(s); found {
				return data.Enum(ord), nil
			}
			return data.Data{}, fmt.Errorf("no ordinal for %q", s)
		}
	case data.KindList:
		elem, _ := t.Elem()
		if xs, ok := raw.([]any); ok {
			out := make([]data.Data, 0, len(xs))
			for _, x := range xs {
				converted, err := convertJSON(x, elem)
				if err != nil {
					return data.Data{}, err
				}
				out = append(out, converted)
			}
			return data.List(out...), nil
		}
	}
	return data.Data{}, fmt.Errorf("cannot convert %T to %s", raw, t)
}
