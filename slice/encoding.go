package slice

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Codec turns a slice into bytes and back. Implementations are registered
// once at process start; the registry is read-only afterwards.
type Codec interface {
	Name() string
	Encode(s *Slice) ([]byte, error)
	Decode(body []byte) (*Slice, error)
}

var (
	codecMu sync.RWMutex
	codecs  = make(map[string]Codec)
)

// RegisterCodec adds an encoding to the process-wide registry. Registering
// a duplicate name panics; this is a startup-time programming error.
func RegisterCodec(c Codec) {
	codecMu.Lock()
	defer codecMu.Unlock()
	if _, dup := codecs[c.Name()]; dup {
		panic(fmt.Sprintf("slice: codec %q registered twice", c.Name()))
	}
	codecs[c.Name()] = c
}

func lookupCodec(name string) (Codec, bool) {
	codecMu.RLock()
	defer codecMu.RUnlock()
	c, ok := codecs[name]
	return c, ok
}

// Serialize renders the slice as its encoding tag followed by the codec
// body, so deserializers can dispatch on the tag alone.
func Serialize(s *Slice) ([]byte, error) {
	c, ok := lookupCodec(s.encoding)
	if !ok {
		return nil, fmt.Errorf("unknown slice encoding %q", s.encoding)
	}
	body, err := c.Encode(s)
	if err != nil {
		return nil, err
	}
	out := binary.AppendUvarint(nil, uint64(len(s.encoding)))
	out = append(out, s.encoding...)
	out = append(out, body...)
	return out, nil
}

// Deserialize decodes a buffer produced by Serialize.
func Deserialize(buf []byte) (*Slice, error) {
	l, n := binary.Uvarint(buf)
	if n <= 0 || len(buf) < n+int(l) {
		return nil, fmt.Errorf("truncated slice encoding tag")
	}
	name := string(buf[n : n+int(l)])
	c, ok := lookupCodec(name)
	if !ok {
		return nil, fmt.Errorf("unknown slice encoding %q", name)
	}
	return c.Decode(buf[n+int(l):])
}
