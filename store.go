package eventgo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/eventgo/bitmap"
	"github.com/hupe1980/eventgo/blobstore"
	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/fsys"
	"github.com/hupe1980/eventgo/partition"
	"github.com/hupe1980/eventgo/query"
	"github.com/hupe1980/eventgo/reader"
	"github.com/hupe1980/eventgo/slice"
	"github.com/hupe1980/eventgo/status"
)

// Store is the embedded event store: one root directory, one active
// partition absorbing ingest, and the set of sealed partitions answering
// queries.
//
// Ingest is single-writer; queries run concurrently against sealed
// partitions. Call Flush to seal the active partition and make its rows
// queryable.
type Store struct {
	opts Options
	log  *slog.Logger
	fs   *fsys.Actor

	mu       sync.Mutex
	active   *partition.Active
	passives map[uuid.UUID]*partition.Passive
	nextID   uint64
	closed   bool
}

// Open opens (or initializes) a store rooted at dir. Partition directories
// without meta.json are garbage from interrupted seals and are removed;
// partitions that fail to load are excluded and logged, not fatal.
func Open(ctx context.Context, dir string, options ...Option) (*Store, error) {
	opts := DefaultOptions()
	for _, apply := range options {
		apply(&opts)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	fs, err := fsys.New(dir, log)
	if err != nil {
		return nil, err
	}
	s := &Store{
		opts:     opts,
		log:      log.With("component", "store"),
		fs:       fs,
		passives: make(map[uuid.UUID]*partition.Passive),
	}
	if err := s.scan(ctx); err != nil {
		fs.Close()
		return nil, err
	}
	s.active = s.newActive()
	return s, nil
}

// scan loads sealed partitions and garbage-collects orphan directories.
func (s *Store) scan(ctx context.Context) error {
	names, err := s.fs.List(ctx, "partitions")
	if err != nil {
		return err
	}
	for _, name := range names {
		id, err := uuid.Parse(name)
		if err != nil {
			s.log.Warn("ignoring foreign entry in partitions directory", "name", name)
			continue
		}
		p, err := partition.Load(ctx, s.fs, id, s.log)
		if err != nil {
			if errors.Is(err, partition.ErrNotAPartition) {
				// Leftover from an interrupted seal.
				s.log.Info("removing orphan partition directory", "uuid", name)
				if eraseErr := s.fs.Erase(ctx, partition.Dir(id)); eraseErr != nil {
					s.log.Error("orphan cleanup failed", "uuid", name, "error", eraseErr)
				}
				continue
			}
			s.log.Error("excluding unreadable partition", "uuid", name, "error", err)
			continue
		}
		s.passives[id] = p
		if _, last := p.IDRange(); last > s.nextID {
			s.nextID = last
		}
	}
	s.log.Info("store opened", "partitions", len(s.passives), "next_id", s.nextID)
	return nil
}

func (s *Store) newActive() *partition.Active {
	return partition.NewActive(s.nextID, partition.Options{
		Capacity: s.opts.PartitionCapacity,
		Synopsis: s.opts.Synopsis,
		Logger:   s.log,
	})
}

func (s *Store) count(name string, value float64) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.Record(name, value)
	}
}

// Append adds one table slice to the active partition, sealing and
// rotating it when capacity is reached.
func (s *Store) Append(ctx context.Context, sl *slice.Slice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	placed, err := s.active.Add(sl)
	if err != nil {
		return err
	}
	s.nextID = placed.Offset() + uint64(placed.Rows())
	s.count("store.rows-ingested", float64(placed.Rows()))
	if s.active.Full() {
		return s.sealLocked(ctx)
	}
	return nil
}

// Ingest drains a reader into the store. The reader keeps its schema; the
// count of ingested rows is returned together with the terminating error
// (ErrEndOfInput for a clean drain).
func (s *Store) Ingest(ctx context.Context, r reader.Reader) (int, error) {
	total := 0
	for {
		produced, err := r.Read(s.opts.IngestBatch, s.opts.MaxSliceSize, func(sl *slice.Slice) error {
			return s.Append(ctx, sl)
		})
		total += produced
		if err != nil {
			if errors.Is(err, reader.ErrEndOfInput) {
				return total, nil
			}
			return total, err
		}
		if produced == 0 {
			return total, ErrStalled
		}
	}
}

// Flush seals the active partition, making its rows queryable. A partition
// without rows is left in place.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.sealLocked(ctx)
}

func (s *Store) sealLocked(ctx context.Context) error {
	if s.active.Rows() == 0 {
		return nil
	}
	id, err := s.active.Seal(ctx, s.fs)
	if err != nil {
		// The active partition is spent either way; start fresh so ingest
		// can continue.
		s.active = s.newActive()
		return err
	}
	p, err := partition.Load(ctx, s.fs, id, s.log)
	if err != nil {
		s.active = s.newActive()
		return fmt.Errorf("reload sealed partition %s: %w", id, err)
	}
	s.passives[id] = p
	s.active = s.newActive()
	s.count("store.partitions-sealed", 1)
	return nil
}

// Partitions returns the uuids of all sealed partitions in id order.
func (s *Store) Partitions() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, 0, len(s.passives))
	for id := range s.passives {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := s.passives[out[i]].IDRange()
		b, _ := s.passives[out[j]].IDRange()
		return a < b
	})
	return out
}

func (s *Store) snapshot() []*partition.Passive {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*partition.Passive, 0, len(s.passives))
	for _, p := range s.passives {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i].IDRange()
		b, _ := out[j].IDRange()
		return a < b
	})
	return out
}

// Query evaluates the expression against every sealed partition and
// streams matching slices to fn in id order within each partition.
// Partition lookups run concurrently; fn is called from a single
// goroutine. Cancelling the context stops the query; results computed by
// in-flight lookups are dropped.
func (s *Store) Query(ctx context.Context, e query.Expr, fn func(*slice.Slice) error) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.count("store.queries", 1)
	parts := s.snapshot()
	results := make(chan []*slice.Slice, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.QueryParallelism)
	go func() {
		for _, p := range parts {
			g.Go(func() error {
				matched, err := p.Evaluate(e)
				if err != nil {
					return fmt.Errorf("partition %s: %w", p.ID(), err)
				}
				select {
				case results <- matched:
				case <-gctx.Done():
				}
				return gctx.Err()
			})
		}
		g.Wait()
		close(results)
	}()

	var consumeErr error
	for batch := range results {
		if consumeErr != nil {
			continue // drain
		}
		for _, sl := range batch {
			if err := fn(sl); err != nil {
				consumeErr = err
				break
			}
		}
	}
	if err := g.Wait(); err != nil && consumeErr == nil {
		consumeErr = err
	}
	return consumeErr
}

// Lookup returns only the matching id set, unioned across partitions.
func (s *Store) Lookup(ctx context.Context, e query.Expr) (*bitmap.Bitmap, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	var mu sync.Mutex
	union := bitmap.New()
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.QueryParallelism)
	for _, p := range s.snapshot() {
		g.Go(func() error {
			ids, err := p.Lookup(e)
			if err != nil {
				return fmt.Errorf("partition %s: %w", p.ID(), err)
			}
			mu.Lock()
			union.UnionWith(ids)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return union, nil
}

// Pivot runs the source query, extracts the pivot field for the target
// layout from every matching slice, and returns the follow-up expression
// `#type == target && field in {values}`. ok is false when nothing
// matched or no slice carried the pivot field.
func (s *Store) Pivot(ctx context.Context, target string, source query.Expr) (query.Expr, bool, error) {
	pivoter := query.NewPivoter(target)
	err := s.Query(ctx, source, func(sl *slice.Slice) error {
		if !pivoter.Feed(sl) {
			s.log.Warn("slice without pivot field",
				"layout", sl.Layout().Name(),
				"target", target,
			)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	followUp, ok := pivoter.Expr()
	return followUp, ok, nil
}

// Erase removes a sealed partition and its backing files.
func (s *Store) Erase(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	p, ok := s.passives[id]
	if ok {
		delete(s.passives, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown partition %s", ErrInvalidArgument, id)
	}
	return p.Erase(ctx)
}

// Archive uploads a sealed partition's files to the blob store under
// partitions/<uuid>/.
func (s *Store) Archive(ctx context.Context, id uuid.UUID, bs blobstore.Store) error {
	s.mu.Lock()
	_, ok := s.passives[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown partition %s", ErrInvalidArgument, id)
	}
	for _, name := range partitionFiles() {
		rel := path.Join(partition.Dir(id), name)
		b, err := s.fs.Read(ctx, rel)
		if err != nil {
			return fmt.Errorf("archive %s: %w", rel, err)
		}
		if err := bs.Put(ctx, rel, b); err != nil {
			return fmt.Errorf("archive %s: %w", rel, err)
		}
	}
	s.log.Info("partition archived", "uuid", id.String())
	return nil
}

// Restore downloads a partition from the blob store and loads it.
// meta.json is written last so an interrupted restore leaves garbage, not
// a half-valid partition.
func (s *Store) Restore(ctx context.Context, id uuid.UUID, bs blobstore.Store) error {
	for _, name := range partitionFiles() {
		rel := path.Join(partition.Dir(id), name)
		b, err := bs.Get(ctx, rel)
		if err != nil {
			return fmt.Errorf("restore %s: %w", rel, err)
		}
		if err := s.fs.Write(ctx, rel, b); err != nil {
			return fmt.Errorf("restore %s: %w", rel, err)
		}
	}
	p, err := partition.Load(ctx, s.fs, id, s.log)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.passives[id] = p
	if _, last := p.IDRange(); last > s.nextID {
		s.nextID = last
	}
	s.mu.Unlock()
	s.log.Info("partition restored", "uuid", id.String())
	return nil
}

// partitionFiles returns the directory contents in write order, meta.json
// last.
func partitionFiles() []string {
	return []string{
		partition.SegmentFile,
		partition.SynopsesFile,
		partition.IndexesFile,
		partition.MetaFile,
	}
}

// Status reports the store and its components.
func (s *Store) Status(ctx context.Context, v status.Verbosity) (data.Data, error) {
	fsStatus, err := s.fs.Status(ctx, v)
	if err != nil {
		return data.Data{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := []data.MapEntry{
		status.Entry("type", data.Str("store")),
		status.Entry("partitions", data.Count(uint64(len(s.passives)))),
	}
	if v >= status.Info {
		entries = append(entries,
			status.Entry("next_id", data.Count(s.nextID)),
			status.Entry("active", s.active.Status(v)),
		)
	}
	if v >= status.Detailed {
		entries = append(entries, status.Entry("filesystem", fsStatus))
		var passives []data.Data
		for _, p := range s.passives {
			passives = append(passives, p.Status(v))
		}
		entries = append(entries, status.Entry("passive", data.List(passives...)))
	}
	return data.Map(entries...), nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close seals buffered rows and stops the filesystem actor.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	err := s.sealLocked(ctx)
	s.closed = true
	s.mu.Unlock()
	s.fs.Close()
	return err
}
