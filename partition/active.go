package partition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/fsys"
	"github.com/hupe1980/eventgo/segment"
	"github.com/hupe1980/eventgo/slice"
	"github.com/hupe1980/eventgo/status"
	"github.com/hupe1980/eventgo/synopsis"
	"github.com/hupe1980/eventgo/vindex"
)

// Options tunes active partitions.
type Options struct {
	// Capacity is the row count at which the partition reports Full.
	Capacity uint64
	// Synopsis tunes per-column synopses.
	Synopsis synopsis.Options
	// Logger receives lifecycle events.
	Logger *slog.Logger
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		Capacity: 1 << 20,
		Synopsis: synopsis.DefaultOptions(),
	}
}

// Active is a partition still accepting slices. It owns its builders
// exclusively; a single upstream feeds Add. Concurrent writers are a
// programmer error.
type Active struct {
	id      uuid.UUID
	opts    Options
	log     *slog.Logger
	schema  *data.Schema
	builder *segment.Builder
	syns    map[string]synopsis.Synopsis
	idxs    map[string]vindex.Index
	layouts []layoutRange
	firstID uint64
	nextID  uint64
	sealed  bool
}

// NewActive creates an empty active partition whose first row gets the
// given id.
func NewActive(firstID uint64, opts Options) *Active {
	if opts.Capacity == 0 {
		opts.Capacity = DefaultOptions().Capacity
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	id := uuid.New()
	schema, _ := data.NewSchema()
	return &Active{
		id:      id,
		opts:    opts,
		log:     log.With("component", "partition", "uuid", id.String()),
		schema:  schema,
		builder: segment.NewBuilderWithID(id),
		syns:    make(map[string]synopsis.Synopsis),
		idxs:    make(map[string]vindex.Index),
		firstID: firstID,
		nextID:  firstID,
	}
}

// ID returns the partition uuid.
func (a *Active) ID() uuid.UUID { return a.id }

// Rows returns the number of rows added so far.
func (a *Active) Rows() uint64 { return a.nextID - a.firstID }

// Full reports whether the partition reached its row capacity.
func (a *Active) Full() bool { return a.Rows() >= a.opts.Capacity }

// Schema returns the union of the layouts added so far.
func (a *Active) Schema() *data.Schema { return a.schema }

// Add assigns the slice the next id range, forwards it to the segment
// builder, and streams its cells into the per-column synopses and value
// indexes. The returned slice carries the assigned offset.
func (a *Active) Add(s *slice.Slice) (*slice.Slice, error) {
	if a.sealed {
		return nil, ErrSealed
	}
	layout := s.Layout()
	if err := a.schema.Add(layout); err != nil {
		return nil, err
	}
	placed := s.WithOffset(a.nextID)
	if err := a.builder.Add(placed); err != nil {
		return nil, err
	}

	for col, leaf := range placed.Leaves() {
		qualified := layout.Name() + "." + leaf.Path
		syn, hasSyn := a.syns[qualified]
		if !hasSyn {
			if fresh, ok := synopsis.ForType(leaf.Type, a.opts.Synopsis); ok {
				syn, hasSyn = fresh, true
				a.syns[qualified] = fresh
			}
		}
		idx, hasIdx := a.idxs[qualified]
		if !hasIdx {
			if fresh, ok := vindex.ForType(leaf.Type); ok {
				idx, hasIdx = fresh, true
				a.idxs[qualified] = fresh
			}
		}
		if !hasSyn && !hasIdx {
			continue
		}
		column := placed.Column(col)
		for row, cell := range column {
			if hasSyn {
				syn.Add(cell)
			}
			if hasIdx {
				if err := idx.Append(placed.Offset()+uint64(row), cell); err != nil {
					return nil, fmt.Errorf("%s: %w", qualified, err)
				}
			}
		}
	}

	a.layouts = appendLayoutRange(a.layouts, layout.Name(), placed.Offset(), placed.Offset()+uint64(placed.Rows()))
	a.nextID = placed.Offset() + uint64(placed.Rows())
	a.log.Debug("slice added",
		"layout", layout.Name(),
		"rows", placed.Rows(),
		"offset", placed.Offset(),
	)
	return placed, nil
}

// appendLayoutRange extends the previous range when the same layout
// continues contiguously.
func appendLayoutRange(ranges []layoutRange, name string, first, last uint64) []layoutRange {
	if n := len(ranges); n > 0 && ranges[n-1].Name == name && ranges[n-1].Last == first {
		ranges[n-1].Last = last
		return ranges
	}
	return append(ranges, layoutRange{Name: name, First: first, Last: last})
}

// Seal builds the final artifacts and writes the partition directory
// through the filesystem actor. meta.json goes last; on any failure the
// partially written directory is removed so a later scan skips it.
func (a *Active) Seal(ctx context.Context, fs *fsys.Actor) (uuid.UUID, error) {
	if a.sealed {
		return uuid.Nil, ErrSealed
	}
	a.sealed = true
	dir := Dir(a.id)

	err := a.writeArtifacts(ctx, fs, dir)
	if err != nil {
		// Best effort: a directory without meta.json is garbage anyway.
		if eraseErr := fs.Erase(ctx, dir); eraseErr != nil {
			a.log.Error("cleanup after failed seal", "error", eraseErr)
		}
		return uuid.Nil, err
	}
	a.log.Info("partition sealed", "rows", a.Rows(), "layouts", a.schema.Len())
	return a.id, nil
}

func (a *Active) writeArtifacts(ctx context.Context, fs *fsys.Actor, dir string) error {
	segBytes := a.builder.Finish()
	if err := fs.Write(ctx, path.Join(dir, SegmentFile), segBytes); err != nil {
		return fmt.Errorf("segment: %w", err)
	}

	synFrames := make([]frame, 0, len(a.syns))
	for qualified, syn := range a.syns {
		synFrames = append(synFrames, frame{
			path:  qualified,
			kind:  a.columnKind(qualified),
			bytes: synopsis.Serialize(syn),
		})
	}
	if err := fs.Write(ctx, path.Join(dir, SynopsesFile), encodeFrames(synFrames)); err != nil {
		return fmt.Errorf("synopses: %w", err)
	}

	idxFrames := make([]frame, 0, len(a.idxs))
	for qualified, idx := range a.idxs {
		body, err := vindex.Serialize(idx)
		if err != nil {
			return fmt.Errorf("index %s: %w", qualified, err)
		}
		idxFrames = append(idxFrames, frame{
			path:  qualified,
			kind:  a.columnKind(qualified),
			bytes: body,
		})
	}
	if err := fs.Write(ctx, path.Join(dir, IndexesFile), encodeFrames(idxFrames)); err != nil {
		return fmt.Errorf("indexes: %w", err)
	}

	m := meta{
		Version:    metaVersion,
		UUID:       a.id.String(),
		FirstID:    a.firstID,
		LastID:     a.nextID,
		Rows:       a.Rows(),
		Encoding:   slice.EncodingColV1,
		ImportTime: time.Now().UTC(),
		Layouts:    a.layouts,
		Schema:     a.schema,
	}
	metaBytes, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return fmt.Errorf("meta: %w", err)
	}
	if err := fs.Write(ctx, path.Join(dir, MetaFile), metaBytes); err != nil {
		return fmt.Errorf("meta: %w", err)
	}
	return nil
}

// columnKind resolves the kind of a qualified column from the schema.
func (a *Active) columnKind(qualified string) data.Kind {
	for _, layout := range a.schema.Types() {
		prefix := layout.Name() + "."
		for _, leaf := range layout.Flatten() {
			if prefix+leaf.Path == qualified {
				return leaf.Type.Kind()
			}
		}
	}
	return data.KindInvalid
}

// Status reports the active partition's state.
func (a *Active) Status(v status.Verbosity) data.Data {
	state := StateActive
	if a.Rows() == 0 {
		state = StateWaiting
	}
	entries := []data.MapEntry{
		status.Entry("type", data.Str("partition")),
		status.Entry("state", data.Str(state.String())),
	}
	if v >= status.Info {
		entries = append(entries,
			status.Entry("uuid", data.Str(a.id.String())),
			status.Entry("rows", data.Count(a.Rows())),
		)
	}
	if v >= status.Detailed {
		entries = append(entries,
			status.Entry("layouts", data.Count(uint64(a.schema.Len()))),
			status.Entry("indexes", data.Count(uint64(len(a.idxs)))),
			status.Entry("synopses", data.Count(uint64(len(a.syns)))),
		)
	}
	if v >= status.Debug {
		memory := 0
		for _, idx := range a.idxs {
			memory += idx.MemUsage()
		}
		for _, syn := range a.syns {
			memory += syn.MemUsage()
		}
		entries = append(entries,
			status.Entry("first_id", data.Count(a.firstID)),
			status.Entry("next_id", data.Count(a.nextID)),
			status.Entry("index_memory", data.Count(uint64(memory))),
		)
	}
	return data.Map(entries...)
}
