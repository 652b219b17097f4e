package eventgo

import (
	"errors"

	"github.com/hupe1980/eventgo/data"
	"github.com/hupe1980/eventgo/fsys"
	"github.com/hupe1980/eventgo/reader"
	"github.com/hupe1980/eventgo/segment"
	"github.com/hupe1980/eventgo/slice"
)

// The store surfaces one error kind per failure class. Sub-packages own
// the sentinels their layer produces; the aliases below give callers a
// single import to match against.
var (
	// ErrInvalidArgument is returned for malformed API usage.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrParse is returned for malformed textual input.
	ErrParse = data.ErrParse
	// ErrConvert is returned when a value cannot convert to a target type.
	ErrConvert = errors.New("convert error")
	// ErrFormat is returned for input that cannot map onto a schema.
	ErrFormat = reader.ErrFormat
	// ErrNoSuchFile is returned when a requested path does not exist.
	ErrNoSuchFile = fsys.ErrNoSuchFile
	// ErrIO is returned for filesystem failures.
	ErrIO = fsys.ErrIO
	// ErrEndOfInput signals a cleanly exhausted reader.
	ErrEndOfInput = reader.ErrEndOfInput
	// ErrTimeout signals an input that produced nothing in time.
	ErrTimeout = reader.ErrTimeout
	// ErrStalled signals an input that stopped making progress.
	ErrStalled = reader.ErrStalled
	// ErrVersionMismatch is returned for unknown on-disk format versions.
	ErrVersionMismatch = segment.ErrVersionMismatch
	// ErrTypeClash is returned when a value does not fit a column type.
	ErrTypeClash = slice.ErrTypeClash
	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store closed")
)
