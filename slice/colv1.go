package slice

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/eventgo/data"
)

// EncodingColV1 is the default columnar encoding: the layout as JSON, then
// one LZ4-compressed block per column of concatenated binary cells.
const EncodingColV1 = "colv1"

func init() {
	RegisterCodec(colV1{})
}

type colV1 struct{}

func (colV1) Name() string { return EncodingColV1 }

// Encode lays the body out as:
//
//	uvarint layoutLen, layout JSON
//	uvarint offset, uvarint rows, uvarint cols
//	cols × { uvarint rawLen, uvarint compLen, compLen bytes }
//
// A column whose LZ4 block would not shrink is stored raw (compLen == 0
// marks that case, followed by rawLen bytes).
func (colV1) Encode(s *Slice) ([]byte, error) {
	layoutJSON, err := json.Marshal(s.layout)
	if err != nil {
		return nil, err
	}
	out := binary.AppendUvarint(nil, uint64(len(layoutJSON)))
	out = append(out, layoutJSON...)
	out = binary.AppendUvarint(out, s.offset)
	out = binary.AppendUvarint(out, uint64(s.rows))
	out = binary.AppendUvarint(out, uint64(len(s.cols)))
	for _, col := range s.cols {
		var raw []byte
		for _, cell := range col {
			raw = cell.AppendBinary(raw)
		}
		out = binary.AppendUvarint(out, uint64(len(raw)))
		comp := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, comp, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 || n >= len(raw) {
			// Incompressible; store raw.
			out = binary.AppendUvarint(out, 0)
			out = append(out, raw...)
			continue
		}
		out = binary.AppendUvarint(out, uint64(n))
		out = append(out, comp[:n]...)
	}
	return out, nil
}

func (colV1) Decode(body []byte) (*Slice, error) {
	pos := 0
	readUvarint := func() (uint64, error) {
		v, n := binary.Uvarint(body[pos:])
		if n <= 0 {
			return 0, fmt.Errorf("colv1: truncated body")
		}
		pos += n
		return v, nil
	}

	layoutLen, err := readUvarint()
	if err != nil {
		return nil, err
	}
	if len(body) < pos+int(layoutLen) {
		return nil, fmt.Errorf("colv1: truncated layout")
	}
	var layout data.Type
	if err := json.Unmarshal(body[pos:pos+int(layoutLen)], &layout); err != nil {
		return nil, fmt.Errorf("colv1: bad layout: %w", err)
	}
	pos += int(layoutLen)

	offset, err := readUvarint()
	if err != nil {
		return nil, err
	}
	rows, err := readUvarint()
	if err != nil {
		return nil, err
	}
	ncols, err := readUvarint()
	if err != nil {
		return nil, err
	}
	leaves := layout.Flatten()
	if int(ncols) != len(leaves) {
		return nil, fmt.Errorf("colv1: column count %d does not match layout (%d leaves)", ncols, len(leaves))
	}

	cols := make([][]data.Data, ncols)
	for c := range cols {
		rawLen, err := readUvarint()
		if err != nil {
			return nil, err
		}
		compLen, err := readUvarint()
		if err != nil {
			return nil, err
		}
		var raw []byte
		if compLen == 0 {
			if len(body) < pos+int(rawLen) {
				return nil, fmt.Errorf("colv1: truncated column %d", c)
			}
			raw = body[pos : pos+int(rawLen)]
			pos += int(rawLen)
		} else {
			if len(body) < pos+int(compLen) {
				return nil, fmt.Errorf("colv1: truncated column %d", c)
			}
			raw = make([]byte, rawLen)
			n, err := lz4.UncompressBlock(body[pos:pos+int(compLen)], raw)
			if err != nil {
				return nil, fmt.Errorf("colv1: column %d: %w", c, err)
			}
			if uint64(n) != rawLen {
				return nil, fmt.Errorf("colv1: column %d: short decompression", c)
			}
			pos += int(compLen)
		}
		col := make([]data.Data, 0, rows)
		at := 0
		for r := uint64(0); r < rows; r++ {
			cell, used, err := data.DecodeBinary(raw[at:])
			if err != nil {
				return nil, fmt.Errorf("colv1: column %d row %d: %w", c, r, err)
			}
			col = append(col, cell)
			at += used
		}
		cols[c] = col
	}

	return &Slice{
		layout:   layout,
		leaves:   leaves,
		encoding: EncodingColV1,
		offset:   offset,
		cols:     cols,
		rows:     int(rows),
	}, nil
}
