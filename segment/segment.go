// Package segment implements the immutable on-disk container that packs
// many table slices together with an id index.
//
// Layout (all integers little-endian):
//
//	header  : magic "VSEG", u16 version (=0), 16-byte uuid
//	index   : u32 n_slices, n_slices × { u64 offset, u32 rows, u32 byte_off }
//	payload : concatenated serialized slices, each u32 length-prefixed
//	trailer : u32 payload_len, u32 index_len, u32 crc32c(header‖index‖payload)
//
// Segments are content-addressable by uuid and memory-mappable; slices
// decode lazily on lookup.
package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/hupe1980/eventgo/bitmap"
	"github.com/hupe1980/eventgo/internal/hash"
	"github.com/hupe1980/eventgo/slice"
)

// Magic identifies a segment file.
const Magic = "VSEG"

// Version is the current framing version.
const Version uint16 = 0

const headerSize = 4 + 2 + 16
const indexEntrySize = 8 + 4 + 4
const trailerSize = 4 + 4 + 4

var (
	// ErrVersionMismatch is returned for unknown framing versions.
	ErrVersionMismatch = errors.New("segment version mismatch")
	// ErrCorrupt is returned when magic, sizes, or checksum do not line up.
	ErrCorrupt = errors.New("corrupt segment")
	// ErrOutOfOrder is returned when a slice's offset overlaps its
	// predecessor.
	ErrOutOfOrder = errors.New("slice offset out of order")
)

type indexEntry struct {
	offset  uint64 // id of the slice's first row
	rows    uint32
	byteOff uint32 // position of the slice's length prefix within payload
}

// Builder packs table slices, received in id order, into a segment buffer.
type Builder struct {
	id      uuid.UUID
	entries []indexEntry
	payload []byte
	nextID  uint64
	rows    uint64
}

// NewBuilder creates a builder with a fresh random uuid.
func NewBuilder() *Builder {
	return &Builder{id: uuid.New()}
}

// NewBuilderWithID creates a builder for a caller-chosen uuid.
func NewBuilderWithID(id uuid.UUID) *Builder {
	return &Builder{id: id}
}

// ID returns the segment uuid.
func (b *Builder) ID() uuid.UUID { return b.id }

// Rows returns the total number of rows added so far.
func (b *Builder) Rows() uint64 { return b.rows }

// Slices returns the number of slices added so far.
func (b *Builder) Slices() int { return len(b.entries) }

// Add appends one slice. Slices must arrive in id order: the offset must be
// at least the previous offset plus the previous row count.
func (b *Builder) Add(s *slice.Slice) error {
	if s.Offset() < b.nextID {
		return fmt.Errorf("%w: offset %d < %d", ErrOutOfOrder, s.Offset(), b.nextID)
	}
	body, err := slice.Serialize(s)
	if err != nil {
		return err
	}
	b.entries = append(b.entries, indexEntry{
		offset:  s.Offset(),
		rows:    uint32(s.Rows()),
		byteOff: uint32(len(b.payload)),
	})
	b.payload = binary.LittleEndian.AppendUint32(b.payload, uint32(len(body)))
	b.payload = append(b.payload, body...)
	b.nextID = s.Offset() + uint64(s.Rows())
	b.rows += uint64(s.Rows())
	return nil
}

// Finish emits the segment bytes and resets the builder for reuse under a
// new uuid.
func (b *Builder) Finish() []byte {
	index := binary.LittleEndian.AppendUint32(nil, uint32(len(b.entries)))
	for _, e := range b.entries {
		index = binary.LittleEndian.AppendUint64(index, e.offset)
		index = binary.LittleEndian.AppendUint32(index, e.rows)
		index = binary.LittleEndian.AppendUint32(index, e.byteOff)
	}

	out := make([]byte, 0, headerSize+len(index)+len(b.payload)+trailerSize)
	out = append(out, Magic...)
	out = binary.LittleEndian.AppendUint16(out, Version)
	out = append(out, b.id[:]...)
	out = append(out, index...)
	out = append(out, b.payload...)

	crc := hash.CRC32C(out)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b.payload)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(index)))
	out = binary.LittleEndian.AppendUint32(out, crc)

	b.id = uuid.New()
	b.entries = nil
	b.payload = nil
	b.nextID = 0
	b.rows = 0
	return out
}

// Segment is a read view over an encoded segment buffer. The buffer is
// typically a memory-mapped chunk; the segment never copies it.
type Segment struct {
	id      uuid.UUID
	entries []indexEntry
	payload []byte
	rows    uint64
}

// Open parses and verifies a segment buffer. The buffer is retained.
func Open(buf []byte) (*Segment, error) {
	if len(buf) < headerSize+4+trailerSize {
		return nil, fmt.Errorf("%w: short buffer (%d bytes)", ErrCorrupt, len(buf))
	}
	if string(buf[:4]) != Magic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	version := binary.LittleEndian.Uint16(buf[4:6])
	if version != Version {
		return nil, fmt.Errorf("%w: got v%d, want v%d", ErrVersionMismatch, version, Version)
	}
	var id uuid.UUID
	copy(id[:], buf[6:22])

	trailer := buf[len(buf)-trailerSize:]
	payloadLen := binary.LittleEndian.Uint32(trailer[0:4])
	indexLen := binary.LittleEndian.Uint32(trailer[4:8])
	wantCRC := binary.LittleEndian.Uint32(trailer[8:12])

	body := buf[:len(buf)-trailerSize]
	if uint64(headerSize)+uint64(indexLen)+uint64(payloadLen) != uint64(len(body)) {
		return nil, fmt.Errorf("%w: trailer sizes do not add up", ErrCorrupt)
	}
	if got := hash.CRC32C(body); got != wantCRC {
		return nil, fmt.Errorf("%w: checksum mismatch: got 0x%08x, want 0x%08x", ErrCorrupt, got, wantCRC)
	}

	index := buf[headerSize : headerSize+indexLen]
	n := binary.LittleEndian.Uint32(index[0:4])
	if uint64(len(index)) != 4+uint64(n)*indexEntrySize {
		return nil, fmt.Errorf("%w: index length mismatch", ErrCorrupt)
	}
	entries := make([]indexEntry, n)
	var rows uint64
	var nextID uint64
	for i := range entries {
		at := 4 + i*indexEntrySize
		entries[i] = indexEntry{
			offset:  binary.LittleEndian.Uint64(index[at:]),
			rows:    binary.LittleEndian.Uint32(index[at+8:]),
			byteOff: binary.LittleEndian.Uint32(index[at+12:]),
		}
		if entries[i].offset < nextID {
			return nil, fmt.Errorf("%w: index offsets overlap", ErrCorrupt)
		}
		nextID = entries[i].offset + uint64(entries[i].rows)
		rows += uint64(entries[i].rows)
	}

	return &Segment{
		id:      id,
		entries: entries,
		payload: buf[headerSize+indexLen : headerSize+indexLen+payloadLen],
		rows:    rows,
	}, nil
}

// ID returns the segment uuid.
func (s *Segment) ID() uuid.UUID { return s.id }

// Rows returns the total row count across all slices.
func (s *Segment) Rows() uint64 { return s.rows }

// Slices returns the number of embedded slices.
func (s *Segment) Slices() int { return len(s.entries) }

// IDRange returns the inclusive-exclusive id range [first, last) covered by
// the segment; ok is false for an empty segment.
func (s *Segment) IDRange() (first, last uint64, ok bool) {
	if len(s.entries) == 0 {
		return 0, 0, false
	}
	head := s.entries[0]
	tail := s.entries[len(s.entries)-1]
	return head.offset, tail.offset + uint64(tail.rows), true
}

func (s *Segment) decode(e indexEntry) (*slice.Slice, error) {
	if uint64(e.byteOff)+4 > uint64(len(s.payload)) {
		return nil, fmt.Errorf("%w: slice offset beyond payload", ErrCorrupt)
	}
	l := binary.LittleEndian.Uint32(s.payload[e.byteOff:])
	start := uint64(e.byteOff) + 4
	if start+uint64(l) > uint64(len(s.payload)) {
		return nil, fmt.Errorf("%w: slice length beyond payload", ErrCorrupt)
	}
	decoded, err := slice.Deserialize(s.payload[start : start+uint64(l)])
	if err != nil {
		return nil, err
	}
	return decoded.WithOffset(e.offset), nil
}

// Lookup decodes the slices whose id range intersects ids. Slices without
// matching ids are passed over by binary search of the index, so work grows
// with the number of matching slices, not the total; the id iterator skips
// forward past each slice boundary instead of rescanning.
func (s *Segment) Lookup(ids *bitmap.Bitmap) ([]*slice.Slice, error) {
	var out []*slice.Slice
	it := ids.Iterator()
	for i := 0; i < len(s.entries) && it.HasNext(); i++ {
		next := it.Peek()
		rest := s.entries[i:]
		i += sort.Search(len(rest), func(k int) bool {
			return rest[k].offset+uint64(rest[k].rows) > next
		})
		if i == len(s.entries) {
			break
		}
		e := s.entries[i]
		it.AdvanceIfNeeded(e.offset)
		if !it.HasNext() {
			break
		}
		if it.Peek() >= e.offset+uint64(e.rows) {
			continue
		}
		decoded, err := s.decode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
		it.AdvanceIfNeeded(e.offset + uint64(e.rows))
	}
	return out, nil
}

// All decodes every slice in id order.
func (s *Segment) All() ([]*slice.Slice, error) {
	out := make([]*slice.Slice, 0, len(s.entries))
	for _, e := range s.entries {
		decoded, err := s.decode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}
