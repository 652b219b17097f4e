// Package fsys provides the filesystem actor: a single goroutine that
// serializes durable I/O for one root directory.
//
// Callers submit write, read, mmap, check, and erase requests and receive
// independent per-request replies. Requests are processed one at a time per
// actor; no ordering is guaranteed across concurrent callers. Counter state
// lives inside the actor goroutine and is therefore race-free.
package fsys

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/internal/mmap"
	"github.com/hupe1980/eventgo/status"
)

var (
	// ErrNoSuchFile is returned when the requested path does not exist.
	ErrNoSuchFile = errors.New("no such file")
	// ErrIO is returned for all other I/O failures.
	ErrIO = errors.New("i/o error")
	// ErrClosed is returned for requests after Close.
	ErrClosed = errors.New("filesystem closed")
)

// Chunk is an immutable byte buffer backed by a memory mapping. It is
// shared by handle; Close releases the mapping once all users are done
// (callers coordinate, typically the owning partition).
type Chunk struct {
	m *mmap.Mapping
}

// Bytes returns the chunk contents. The slice aliases the mapping and
// becomes invalid after Close.
func (c *Chunk) Bytes() []byte { return c.m.Bytes() }

// Len returns the chunk size in bytes.
func (c *Chunk) Len() int { return len(c.m.Bytes()) }

// Close releases the mapping.
func (c *Chunk) Close() error { return c.m.Close() }

type opStats struct {
	successful uint64
	failed     uint64
	bytes      uint64
}

func (s *opStats) record(n int, err error) {
	if err != nil {
		s.failed++
		return
	}
	s.successful++
	s.bytes += uint64(n)
}

type request struct {
	op    string // "write", "read", "mmap", "check", "erase", "list", "status"
	path  string
	bytes []byte
	verb  status.Verbosity
	reply chan reply
}

type reply struct {
	bytes  []byte
	chunk  *Chunk
	exists bool
	names  []string
	stat   data.Data
	err    error
}

// Actor serializes filesystem access for one root directory.
type Actor struct {
	root      string
	log       *slog.Logger
	requests  chan request
	done      chan struct{}
	closeOnce sync.Once

	// Touched only inside run().
	checks, writes, reads, mmaps, erases opStats
}

// New starts a filesystem actor rooted at dir. The root is created if
// missing.
func New(dir string, log *slog.Logger) (*Actor, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	a := &Actor{
		root:     dir,
		log:      log.With("component", "filesystem", "root", dir),
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	go a.run()
	return a, nil
}

// Root returns the configured root directory.
func (a *Actor) Root() string { return a.root }

// Close stops the actor. In-flight requests complete; later requests fail
// with ErrClosed.
func (a *Actor) Close() {
	a.closeOnce.Do(func() { close(a.done) })
}

func (a *Actor) run() {
	for {
		select {
		case <-a.done:
			return
		case req := <-a.requests:
			req.reply <- a.handle(req)
		}
	}
}

func (a *Actor) submit(ctx context.Context, req request) (reply, error) {
	req.reply = make(chan reply, 1)
	select {
	case a.requests <- req:
	case <-a.done:
		return reply{}, ErrClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep, rep.err
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

// resolve joins relative paths onto the root; absolute paths are honored
// verbatim.
func (a *Actor) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.root, path)
}

func (a *Actor) handle(req request) reply {
	switch req.op {
	case "write":
		err := a.doWrite(req.path, req.bytes)
		a.writes.record(len(req.bytes), err)
		return reply{err: err}
	case "read":
		b, err := a.doRead(req.path)
		a.reads.record(len(b), err)
		return reply{bytes: b, err: err}
	case "mmap":
		c, err := a.doMmap(req.path)
		n := 0
		if c != nil {
			n = c.Len()
		}
		a.mmaps.record(n, err)
		return reply{chunk: c, err: err}
	case "check":
		exists, err := a.doCheck(req.path)
		a.checks.record(0, err)
		return reply{exists: exists, err: err}
	case "erase":
		err := a.doErase(req.path)
		a.erases.record(0, err)
		return reply{err: err}
	case "list":
		names, err := a.doList(req.path)
		a.checks.record(0, err)
		return reply{names: names, err: err}
	case "status":
		return reply{stat: a.status(req.verb)}
	}
	return reply{err: fmt.Errorf("%w: unknown request %q", ErrIO, req.op)}
}

func (a *Actor) doWrite(path string, b []byte) error {
	target := a.resolve(path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	// Temp-and-rename keeps partial writes invisible to readers.
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(b); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	tmpName = "" // deferred remove becomes a no-op
	return nil
}

func (a *Actor) doRead(path string) ([]byte, error) {
	b, err := os.ReadFile(a.resolve(path))
	if err != nil {
		return nil, mapPathError(err)
	}
	return b, nil
}

func (a *Actor) doMmap(path string) (*Chunk, error) {
	m, err := mmap.Open(a.resolve(path))
	if err != nil {
		return nil, mapPathError(err)
	}
	return &Chunk{m: m}, nil
}

func (a *Actor) doCheck(path string) (bool, error) {
	_, err := os.Stat(a.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrIO, err)
}

func (a *Actor) doErase(path string) error {
	if err := os.RemoveAll(a.resolve(path)); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (a *Actor) doList(path string) ([]string, error) {
	entries, err := os.ReadDir(a.resolve(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func mapPathError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNoSuchFile, err)
	}
	return fmt.Errorf("%w: %v", ErrIO, err)
}

// Write stores bytes at path, atomically replacing any previous content.
func (a *Actor) Write(ctx context.Context, path string, b []byte) error {
	_, err := a.submit(ctx, request{op: "write", path: path, bytes: b})
	return err
}

// Read returns the full content of the file at path.
func (a *Actor) Read(ctx context.Context, path string) ([]byte, error) {
	rep, err := a.submit(ctx, request{op: "read", path: path})
	return rep.bytes, err
}

// Mmap maps the file at path and returns the chunk.
func (a *Actor) Mmap(ctx context.Context, path string) (*Chunk, error) {
	rep, err := a.submit(ctx, request{op: "mmap", path: path})
	return rep.chunk, err
}

// Check reports whether the file at path exists.
func (a *Actor) Check(ctx context.Context, path string) (bool, error) {
	rep, err := a.submit(ctx, request{op: "check", path: path})
	return rep.exists, err
}

// Erase removes the file or directory tree at path.
func (a *Actor) Erase(ctx context.Context, path string) error {
	_, err := a.submit(ctx, request{op: "erase", path: path})
	return err
}

// List returns the entry names of the directory at path; a missing
// directory lists as empty.
func (a *Actor) List(ctx context.Context, path string) ([]string, error) {
	rep, err := a.submit(ctx, request{op: "list", path: path})
	return rep.names, err
}

// Status returns the actor's structured status record.
func (a *Actor) Status(ctx context.Context, v status.Verbosity) (data.Data, error) {
	rep, err := a.submit(ctx, request{op: "status", verb: v})
	return rep.stat, err
}

func (a *Actor) status(v status.Verbosity) data.Data {
	entries := []data.MapEntry{
		status.Entry("type", data.Str("filesystem")),
	}
	if v >= status.Info {
		entries = append(entries, status.Entry("root", data.Str(a.root)))
	}
	if v >= status.Detailed {
		for _, group := range []struct {
			name  string
			stats *opStats
		}{
			{"checks", &a.checks},
			{"writes", &a.writes},
			{"reads", &a.reads},
			{"mmaps", &a.mmaps},
			{"erases", &a.erases},
		} {
			entries = append(entries, status.Entry(group.name, data.Map(
				status.Entry("successful", data.Count(group.stats.successful)),
				status.Entry("failed", data.Count(group.stats.failed)),
				status.Entry("bytes", data.Count(group.stats.bytes)),
			)))
		}
	}
	return data.Map(entries...)
}
