package partition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/eventgo/bitmap"
	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/fsys"
	"github.com/hupe1980/eventgo/query"
	"github.com/hupe1980/eventgo/segment"
	"github.com/hupe1980/eventgo/slice"
	"github.com/hupe1980/eventgo/status"
	"github.com/hupe1980/eventgo/synopsis"
	"github.com/hupe1980/eventgo/vindex"
)

// Passive is a sealed partition loaded from disk. It shares its segment
// with running queries through the underlying chunk; all mutating entry
// points are gone.
type Passive struct {
	id         uuid.UUID
	fs         *fsys.Actor
	log        *slog.Logger
	schema     *data.Schema
	seg        *segment.Segment
	chunk      *fsys.Chunk
	syns       map[string]synopsis.Synopsis
	idxs       map[string]vindex.Index
	layouts    []layoutRange
	firstID    uint64
	lastID     uint64
	rows       uint64
	importTime time.Time
	state      State
}

// Load reads a partition by uuid through the filesystem actor. A directory
// without meta.json is not a partition; a partition whose segment fails
// checksum or version checks is a hard load error.
func Load(ctx context.Context, fs *fsys.Actor, id uuid.UUID, log *slog.Logger) (*Passive, error) {
	if log == nil {
		log = slog.Default()
	}
	p := &Passive{
		id:    id,
		fs:    fs,
		log:   log.With("component", "partition", "uuid", id.String()),
		state: StateLoading,
	}
	if err := p.load(ctx); err != nil {
		p.release()
		return nil, err
	}
	p.state = StateReady
	return p, nil
}

func (p *Passive) load(ctx context.Context) error {
	dir := Dir(p.id)

	metaBytes, err := p.fs.Read(ctx, path.Join(dir, MetaFile))
	if err != nil {
		if errors.Is(err, fsys.ErrNoSuchFile) {
			return fmt.Errorf("%w: %s", ErrNotAPartition, p.id)
		}
		return err
	}
	var m meta
	if err := json.Unmarshal(metaBytes, &m); err != nil {
		return fmt.Errorf("meta.json: %w", err)
	}
	if err := m.validate(); err != nil {
		return err
	}
	p.schema = m.Schema
	p.layouts = m.Layouts
	p.firstID = m.FirstID
	p.lastID = m.LastID
	p.rows = m.Rows
	p.importTime = m.ImportTime

	chunk, err := p.fs.Mmap(ctx, path.Join(dir, SegmentFile))
	if err != nil {
		return fmt.Errorf("segment: %w", err)
	}
	p.chunk = chunk
	seg, err := segment.Open(chunk.Bytes())
	if err != nil {
		return err
	}
	if seg.ID() != p.id {
		return fmt.Errorf("%w: segment uuid %s does not match partition %s", segment.ErrCorrupt, seg.ID(), p.id)
	}
	p.seg = seg

	synBytes, err := p.fs.Read(ctx, path.Join(dir, SynopsesFile))
	if err != nil {
		return fmt.Errorf("synopses: %w", err)
	}
	synFrames, err := decodeFrames(synBytes)
	if err != nil {
		return fmt.Errorf("synopses: %w", err)
	}
	p.syns = make(map[string]synopsis.Synopsis, len(synFrames))
	for _, f := range synFrames {
		syn, err := synopsis.Deserialize(f.bytes)
		if err != nil {
			return fmt.Errorf("synopsis %s: %w", f.path, err)
		}
		p.syns[f.path] = syn
	}

	idxBytes, err := p.fs.Read(ctx, path.Join(dir, IndexesFile))
	if err != nil {
		return fmt.Errorf("indexes: %w", err)
	}
	idxFrames, err := decodeFrames(idxBytes)
	if err != nil {
		return fmt.Errorf("indexes: %w", err)
	}
	p.idxs = make(map[string]vindex.Index, len(idxFrames))
	for _, f := range idxFrames {
		idx, err := vindex.Deserialize(f.bytes)
		if err != nil {
			return fmt.Errorf("index %s: %w", f.path, err)
		}
		p.idxs[f.path] = idx
	}
	return nil
}

func (p *Passive) release() {
	if p.chunk != nil {
		_ = p.chunk.Close()
		p.chunk = nil
	}
	p.seg = nil
	p.syns = nil
	p.idxs = nil
}

// ID returns the partition uuid.
func (p *Passive) ID() uuid.UUID { return p.id }

// Schema returns the partition's schema.
func (p *Passive) Schema() *data.Schema { return p.schema }

// Rows returns the partition's row count.
func (p *Passive) Rows() uint64 { return p.rows }

// IDRange returns the id range [first, last) the partition covers.
func (p *Passive) IDRange() (uint64, uint64) { return p.firstID, p.lastID }

// ImportTime returns when the partition was sealed.
func (p *Passive) ImportTime() time.Time { return p.importTime }

// Lookup normalizes and resolves the expression against the partition's
// schema and evaluates it to the matching id set.
func (p *Passive) Lookup(e query.Expr) (*bitmap.Bitmap, error) {
	if p.state == StateErased {
		return nil, ErrErased
	}
	resolved := query.Resolve(query.Normalize(e), p.schema)
	return query.Eval(resolved, p)
}

// Evaluate runs Lookup and resolves the matching ids to decoded slices.
func (p *Passive) Evaluate(e query.Expr) ([]*slice.Slice, error) {
	ids, err := p.Lookup(e)
	if err != nil {
		return nil, err
	}
	if ids.IsEmpty() {
		return nil, nil
	}
	return p.seg.Lookup(ids)
}

// Slices resolves an already-computed id set to decoded slices.
func (p *Passive) Slices(ids *bitmap.Bitmap) ([]*slice.Slice, error) {
	if p.state == StateErased {
		return nil, ErrErased
	}
	return p.seg.Lookup(ids)
}

// Erase removes the partition's backing files and transitions it to the
// terminal state. Subsequent operations fail with ErrErased.
func (p *Passive) Erase(ctx context.Context) error {
	if p.state == StateErased {
		return ErrErased
	}
	if err := p.fs.Erase(ctx, Dir(p.id)); err != nil {
		return err
	}
	p.state = StateErased
	p.release()
	p.log.Info("partition erased")
	return nil
}

// AllIDs implements query.Backend.
func (p *Passive) AllIDs() *bitmap.Bitmap {
	ids := bitmap.New()
	ids.AddRange(p.firstID, p.lastID)
	return ids
}

// ColumnIDs implements query.Backend.
func (p *Passive) ColumnIDs(path string) *bitmap.Bitmap {
	if idx, ok := p.idxs[path]; ok {
		return idx.Coverage()
	}
	return bitmap.New()
}

// SynopsisLookup implements query.Backend.
func (p *Passive) SynopsisLookup(path string, op data.Operator, rhs data.Data) (bool, bool) {
	syn, ok := p.syns[path]
	if !ok {
		return false, false
	}
	return syn.Lookup(op, rhs)
}

// IndexLookup implements query.Backend.
func (p *Passive) IndexLookup(path string, op data.Operator, rhs data.Data) (*bitmap.Bitmap, error) {
	idx, ok := p.idxs[path]
	if !ok {
		return bitmap.New(), nil
	}
	return idx.Lookup(op, rhs)
}

// MetaLookup implements query.Backend.
func (p *Passive) MetaLookup(kind query.MetaKind, op data.Operator, rhs data.Data) (*bitmap.Bitmap, error) {
	switch kind {
	case query.MetaType:
		out := bitmap.New()
		for _, lr := range p.layouts {
			if data.Match(data.Str(lr.Name), op, rhs) {
				out.AddRange(lr.First, lr.Last)
			}
		}
		return out, nil
	case query.MetaImportTime:
		if data.Match(data.Time(p.importTime), op, rhs) {
			return p.AllIDs(), nil
		}
		return bitmap.New(), nil
	}
	return bitmap.New(), nil
}

// Status reports the passive partition's state.
func (p *Passive) Status(v status.Verbosity) data.Data {
	entries := []data.MapEntry{
		status.Entry("type", data.Str("partition")),
		status.Entry("state", data.Str(p.state.String())),
	}
	if v >= status.Info {
		entries = append(entries,
			status.Entry("uuid", data.Str(p.id.String())),
			status.Entry("rows", data.Count(p.rows)),
		)
	}
	if v >= status.Detailed && p.state == StateReady {
		entries = append(entries,
			status.Entry("layouts", data.Count(uint64(p.schema.Len()))),
			status.Entry("indexes", data.Count(uint64(len(p.idxs)))),
			status.Entry("synopses", data.Count(uint64(len(p.syns)))),
			status.Entry("import_time", data.Time(p.importTime)),
		)
	}
	if v >= status.Debug {
		entries = append(entries,
			status.Entry("first_id", data.Count(p.firstID)),
			status.Entry("last_id", data.Count(p.lastID)),
		)
	}
	return data.Map(entries...)
}
