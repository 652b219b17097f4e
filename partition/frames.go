package partition

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/eventgo/data"
)

// frame is one serialized per-column artifact: the qualified field path,
// the column's type kind, and the opaque synopsis or index bytes.
type frame struct {
	path  string
	kind  data.Kind
	bytes []byte
}

// frameMagic identifies the framed container holding indexes.bin and
// synopses.bin. The frame payload is zstd-compressed as one block.
const frameMagic = "VFRM"

const frameVersion uint16 = 0

var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder
	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func encoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		zstdEnc, _ = zstd.NewWriter(nil)
	})
	return zstdEnc
}

func decoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		zstdDec, _ = zstd.NewReader(nil)
	})
	return zstdDec
}

func encodeFrames(frames []frame) []byte {
	payload := binary.AppendUvarint(nil, uint64(len(frames)))
	for _, f := range frames {
		payload = binary.AppendUvarint(payload, uint64(len(f.path)))
		payload = append(payload, f.path...)
		payload = append(payload, byte(f.kind))
		payload = binary.AppendUvarint(payload, uint64(len(f.bytes)))
		payload = append(payload, f.bytes...)
	}

	out := append([]byte(nil), frameMagic...)
	out = binary.LittleEndian.AppendUint16(out, frameVersion)
	return encoder().EncodeAll(payload, out)
}

func decodeFrames(buf []byte) ([]frame, error) {
	if len(buf) < 6 || string(buf[:4]) != frameMagic {
		return nil, fmt.Errorf("bad frame container magic")
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != frameVersion {
		return nil, fmt.Errorf("unsupported frame container version %d", v)
	}
	payload, err := decoder().DecodeAll(buf[6:], nil)
	if err != nil {
		return nil, fmt.Errorf("frame container: %w", err)
	}

	pos := 0
	n, used := binary.Uvarint(payload)
	if used <= 0 {
		return nil, fmt.Errorf("truncated frame container")
	}
	pos += used
	frames := make([]frame, 0, n)
	for i := uint64(0); i < n; i++ {
		pathLen, used := binary.Uvarint(payload[pos:])
		if used <= 0 || len(payload) < pos+used+int(pathLen)+1 {
			return nil, fmt.Errorf("truncated frame %d", i)
		}
		pos += used
		fieldPath := string(payload[pos : pos+int(pathLen)])
		pos += int(pathLen)
		kind := data.Kind(payload[pos])
		pos++
		bodyLen, used := binary.Uvarint(payload[pos:])
		if used <= 0 || len(payload) < pos+used+int(bodyLen) {
			return nil, fmt.Errorf("truncated frame %d body", i)
		}
		pos += used
		body := payload[pos : pos+int(bodyLen)]
		pos += int(bodyLen)
		frames = append(frames, frame{path: fieldPath, kind: kind, bytes: body})
	}
	return frames, nil
}
