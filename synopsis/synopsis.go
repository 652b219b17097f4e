// Package synopsis implements lossy per-column summaries used to skip
// value-index lookups.
//
// A synopsis answers Lookup with three-valued logic: (false, true) means no
// row in the column can satisfy the predicate, (true, true) means every row
// does, and ok == false means the synopsis cannot decide and the caller
// must fall through to the exact value index.
package synopsis

import (
	"errors"
	"fmt"

	"github.com/hupe1980/eventgo/data"
)

// ErrCorrupt indicates a synopsis buffer that fails to decode.
var ErrCorrupt = errors.New("corrupt synopsis")

// Synopsis is a compact, lossy column summary. Add is monotone: the
// accepted set only ever grows.
type Synopsis interface {
	// Add folds one cell into the summary. Nil cells are tracked so that
	// the synopsis never overstates "every row matches".
	Add(d data.Data)
	// Lookup evaluates a predicate against the summary. ok == false means
	// the synopsis cannot decide.
	Lookup(op data.Operator, rhs data.Data) (matches bool, ok bool)
	// MemUsage returns the summary's in-memory footprint in bytes.
	MemUsage() int

	tag() byte
	appendBody(buf []byte) []byte
}

// Options tunes synopsis construction.
type Options struct {
	// BloomCapacity is the expected distinct-value count per column.
	BloomCapacity int
	// BloomFPR is the target false-positive rate.
	BloomFPR float64
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{BloomCapacity: 1 << 16, BloomFPR: 0.01}
}

// ForType picks the synopsis implementation for a column type. Columns of
// container type carry no synopsis; ok is false for them.
func ForType(t data.Type, opts Options) (Synopsis, bool) {
	switch t.Kind() {
	case data.KindBool:
		return newBoolSynopsis(), true
	case data.KindInt, data.KindCount, data.KindReal, data.KindTime, data.KindDuration, data.KindEnum:
		return newMinMaxSynopsis(), true
	case data.KindString, data.KindPattern, data.KindAddr, data.KindSubnet:
		return newBloomSynopsis(opts.BloomCapacity, opts.BloomFPR), true
	}
	return nil, false
}

const (
	tagBool   byte = 1
	tagMinMax byte = 2
	tagBloom  byte = 3
)

// Serialize renders a synopsis as its type tag followed by the body.
func Serialize(s Synopsis) []byte {
	buf := []byte{s.tag()}
	return s.appendBody(buf)
}

// Deserialize decodes a buffer produced by Serialize.
func Deserialize(buf []byte) (Synopsis, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrCorrupt)
	}
	switch buf[0] {
	case tagBool:
		return decodeBoolSynopsis(buf[1:])
	case tagMinMax:
		return decodeMinMaxSynopsis(buf[1:])
	case tagBloom:
		return decodeBloomSynopsis(buf[1:])
	}
	return nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrCorrupt, buf[0])
}

func appendData(buf []byte, d data.Data) []byte {
	return d.AppendBinary(buf)
}

func readData(buf []byte) (data.Data, int, error) {
	d, n, err := data.DecodeBinary(buf)
	if err != nil {
		return data.Data{}, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return d, n, nil
}
