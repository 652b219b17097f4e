// Package partition implements the unit of persisted, indexed data: a
// segment plus per-column synopses and value indexes under one uuid.
//
// A partition starts active, accepting table slices until it reaches
// capacity. Sealing builds the indexes, writes the directory
//
//	partitions/<uuid>/{segment.bin, indexes.bin, synopses.bin, meta.json}
//
// through the filesystem actor, and freezes the partition. A passive
// partition loads on demand by uuid and answers expression lookups;
// meta.json is written last, so its absence marks a directory as not a
// partition.
package partition

import (
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/eventgo/data"
)

var (
	// ErrSealed is returned when slices arrive at a sealed partition.
	ErrSealed = errors.New("partition already sealed")
	// ErrErased is returned for operations on an erased partition.
	ErrErased = errors.New("partition erased")
	// ErrNotAPartition is returned when a directory lacks meta.json.
	ErrNotAPartition = errors.New("not a partition")
)

// State is the lifecycle state of a partition.
type State uint8

const (
	// StateWaiting means the partition exists but no data arrived yet.
	StateWaiting State = iota
	// StateActive means the partition accepts slices.
	StateActive
	// StateLoading means a passive partition is reading its files.
	StateLoading
	// StateReady means the partition answers lookups.
	StateReady
	// StateErased is terminal; the backing files are gone.
	StateErased
)

// String returns the state name as reported by status queries.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting for chunk"
	case StateActive:
		return "active"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateErased:
		return "erased"
	}
	return "unknown"
}

// Dir returns the directory of a partition relative to the store root.
func Dir(id uuid.UUID) string {
	return path.Join("partitions", id.String())
}

// File names within a partition directory.
const (
	SegmentFile  = "segment.bin"
	IndexesFile  = "indexes.bin"
	SynopsesFile = "synopses.bin"
	MetaFile     = "meta.json"
)

// layoutRange records which layout produced the rows of one id range.
// Slices of one layout need not be contiguous, so a layout may own many
// ranges.
type layoutRange struct {
	Name  string `json:"name"`
	First uint64 `json:"first"`
	Last  uint64 `json:"last"` // exclusive
}

// meta is the persisted shape of meta.json. It is written last during
// seal; readers treat a directory without it as garbage.
type meta struct {
	Version    int           `json:"version"`
	UUID       string        `json:"uuid"`
	FirstID    uint64        `json:"first_id"`
	LastID     uint64        `json:"last_id"` // exclusive
	Rows       uint64        `json:"rows"`
	Encoding   string        `json:"encoding"`
	ImportTime time.Time     `json:"import_time"`
	Layouts    []layoutRange `json:"layouts"`
	Schema     *data.Schema  `json:"schema"`
}

const metaVersion = 1

func (m *meta) validate() error {
	if m.Version != metaVersion {
		return fmt.Errorf("unsupported partition meta version %d", m.Version)
	}
	if _, err := uuid.Parse(m.UUID); err != nil {
		return fmt.Errorf("bad partition uuid: %w", err)
	}
	return nil
}
