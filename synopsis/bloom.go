package synopsis

import (
	"encoding/binary"
	"math"

	"github.com/hupe1980/eventgo/data"
)

// bloomSynopsis summarizes high-cardinality categorical columns (strings,
// addresses, subnets) with a Bloom filter over the stable value keys. Only
// equality and membership are pushable; a negative answer is exact, a
// positive one falls through to the value index.
type bloomSynopsis struct {
	bits    []uint64
	numBits uint64
	k       uint32
	count   uint32
	anyNil  bool
}

// bloomSize computes the bit count and hash count for the target false
// positive rate: m = -n·ln(p)/ln(2)², k = (m/n)·ln(2).
func bloomSize(expected int, fpr float64) (uint64, uint32) {
	if expected <= 0 {
		expected = 1
	}
	if fpr <= 0 || fpr >= 1 {
		fpr = 0.01
	}
	m := float64(-expected) * math.Log(fpr) / (math.Ln2 * math.Ln2)
	numBits := ((uint64(m) + 63) / 64) * 64
	if numBits < 64 {
		numBits = 64
	}
	k := uint32(math.Ceil((m / float64(expected)) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > 16 {
		k = 16
	}
	return numBits, k
}

func newBloomSynopsis(expected int, fpr float64) *bloomSynopsis {
	numBits, k := bloomSize(expected, fpr)
	return &bloomSynopsis{
		bits:    make([]uint64, numBits/64),
		numBits: numBits,
		k:       k,
	}
}

func (s *bloomSynopsis) Add(d data.Data) {
	if d.IsNil() {
		s.anyNil = true
		return
	}
	h1, h2 := bloomHash(d.Key())
	for i := uint32(0); i < s.k; i++ {
		bit := (h1 + uint64(i)*h2) % s.numBits
		s.bits[bit/64] |= 1 << (bit % 64)
	}
	s.count++
}

func (s *bloomSynopsis) mayContain(d data.Data) bool {
	h1, h2 := bloomHash(d.Key())
	for i := uint32(0); i < s.k; i++ {
		bit := (h1 + uint64(i)*h2) % s.numBits
		if s.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

func (s *bloomSynopsis) Lookup(op data.Operator, rhs data.Data) (bool, bool) {
	if rhs.IsNil() {
		return false, false
	}
	switch op {
	case data.OpEqual:
		if rhs.Kind() == data.KindPattern {
			return false, false
		}
		if !s.mayContain(rhs) {
			return false, true
		}
	case data.OpIn:
		// Only list membership is decidable; subnet and substring
		// containment do not hash.
		xs, ok := rhs.AsList()
		if !ok || rhs.Kind() != data.KindList {
			return false, false
		}
		for _, x := range xs {
			if s.mayContain(x) {
				return false, false
			}
		}
		return false, true
	}
	return false, false
}

func (s *bloomSynopsis) MemUsage() int { return len(s.bits)*8 + 16 }

func (s *bloomSynopsis) tag() byte { return tagBloom }

func (s *bloomSynopsis) appendBody(buf []byte) []byte {
	var flags byte
	if s.anyNil {
		flags |= 1
	}
	buf = append(buf, flags)
	buf = binary.LittleEndian.AppendUint64(buf, s.numBits)
	buf = binary.LittleEndian.AppendUint32(buf, s.k)
	buf = binary.LittleEndian.AppendUint32(buf, s.count)
	for _, word := range s.bits {
		buf = binary.LittleEndian.AppendUint64(buf, word)
	}
	return buf
}

func decodeBloomSynopsis(body []byte) (*bloomSynopsis, error) {
	if len(body) < 1+8+4+4 {
		return nil, ErrCorrupt
	}
	s := &bloomSynopsis{anyNil: body[0]&1 != 0}
	s.numBits = binary.LittleEndian.Uint64(body[1:])
	s.k = binary.LittleEndian.Uint32(body[9:])
	s.count = binary.LittleEndian.Uint32(body[13:])
	if s.numBits < 64 || s.numBits%64 != 0 || s.k < 1 || s.k > 16 {
		return nil, ErrCorrupt
	}
	words := int(s.numBits / 64)
	if len(body) != 17+words*8 {
		return nil, ErrCorrupt
	}
	s.bits = make([]uint64, words)
	for i := range s.bits {
		s.bits[i] = binary.LittleEndian.Uint64(body[17+i*8:])
	}
	return s, nil
}

// bloomHash derives two independent 64-bit hashes for double hashing,
// using FNV-1a with a reversed second pass.
func bloomHash(s string) (h1, h2 uint64) {
	const (
		fnvOffset = 14695981039346656037
		fnvPrime  = 1099511628211
	)
	h1 = fnvOffset
	for i := 0; i < len(s); i++ {
		h1 ^= uint64(s[i])
		h1 *= fnvPrime
	}
	h2 = fnvOffset ^ 0x5555555555555555
	for i := len(s) - 1; i >= 0; i-- {
		h2 ^= uint64(s[i])
		h2 *= fnvPrime
	}
	h2 |= 1
	return h1, h2
}
