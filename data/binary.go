package data

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/netip"
)

// ErrTruncated indicates a binary buffer that ends mid-value.
var ErrTruncated = errors.New("truncated data encoding")

// AppendBinary appends the binary encoding of the value: one tag byte
// followed by a kind-specific payload. All integers are varint or
// little-endian; the encoding is stable because segments persist it.
func (d Data) AppendBinary(buf []byte) []byte {
	buf = append(buf, byte(d.kind))
	switch d.kind {
	case KindNil:
	case KindBool:
		if d.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindInt, KindTime, KindDuration:
		buf = binary.AppendVarint(buf, d.i)
	case KindCount, KindEnum:
		buf = binary.AppendUvarint(buf, d.u)
	case KindReal:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(d.f))
	case KindString, KindPattern:
		buf = binary.AppendUvarint(buf, uint64(len(d.str)))
		buf = append(buf, d.str...)
	case KindAddr:
		raw := addrBytes(d.ip)
		buf = append(buf, byte(len(raw)))
		buf = append(buf, raw...)
	case KindSubnet:
		raw := addrBytes(d.pfx.Addr())
		buf = append(buf, byte(len(raw)))
		buf = append(buf, raw...)
		buf = append(buf, byte(d.pfx.Bits()))
	case KindList, KindRecord:
		buf = binary.AppendUvarint(buf, uint64(len(d.list)))
		for i := range d.list {
			buf = d.list[i].AppendBinary(buf)
		}
	case KindMap:
		buf = binary.AppendUvarint(buf, uint64(len(d.kvs)))
		for i := range d.kvs {
			buf = d.kvs[i].Key.AppendBinary(buf)
			buf = d.kvs[i].Value.AppendBinary(buf)
		}
	}
	return buf
}

func addrBytes(ip netip.Addr) []byte {
	if ip.Is4() {
		b := ip.As4()
		return b[:]
	}
	b := ip.As16()
	return b[:]
}

// DecodeBinary reads one value from the front of buf and returns it together
// with the number of bytes consumed.
func DecodeBinary(buf []byte) (Data, int, error) {
	if len(buf) == 0 {
		return Data{}, 0, ErrTruncated
	}
	kind := Kind(buf[0])
	pos := 1
	switch kind {
	case KindNil:
		return Nil(), pos, nil
	case KindBool:
		if len(buf) < pos+1 {
			return Data{}, 0, ErrTruncated
		}
		return Bool(buf[pos] != 0), pos + 1, nil
	case KindInt, KindTime, KindDuration:
		i, n := binary.Varint(buf[pos:])
		if n <= 0 {
			return Data{}, 0, ErrTruncated
		}
		return Data{kind: kind, i: i}, pos + n, nil
	case KindCount, KindEnum:
		u, n := binary.Uvarint(buf[pos:])
		if n <= 0 {
			return Data{}, 0, ErrTruncated
		}
		return Data{kind: kind, u: u}, pos + n, nil
	case KindReal:
		if len(buf) < pos+8 {
			return Data{}, 0, ErrTruncated
		}
		f := math.Float64frombits(binary.LittleEndian.Uint64(buf[pos:]))
		return Real(f), pos + 8, nil
	case KindString, KindPattern:
		l, n := binary.Uvarint(buf[pos:])
		if n <= 0 || len(buf) < pos+n+int(l) {
			return Data{}, 0, ErrTruncated
		}
		s := string(buf[pos+n : pos+n+int(l)])
		return Data{kind: kind, str: s}, pos + n + int(l), nil
	case KindAddr:
		ip, n, err := decodeAddr(buf[pos:])
		if err != nil {
			return Data{}, 0, err
		}
		return Addr(ip), pos + n, nil
	case KindSubnet:
		ip, n, err := decodeAddr(buf[pos:])
		if err != nil {
			return Data{}, 0, err
		}
		if len(buf) < pos+n+1 {
			return Data{}, 0, ErrTruncated
		}
		bits := int(buf[pos+n])
		return Subnet(netip.PrefixFrom(ip, bits)), pos + n + 1, nil
	case KindList, KindRecord:
		cnt, n := binary.Uvarint(buf[pos:])
		if n <= 0 {
			return Data{}, 0, ErrTruncated
		}
		pos += n
		xs := make([]Data, 0, cnt)
		for i := uint64(0); i < cnt; i++ {
			x, used, err := DecodeBinary(buf[pos:])
			if err != nil {
				return Data{}, 0, err
			}
			xs = append(xs, x)
			pos += used
		}
		return Data{kind: kind, list: xs}, pos, nil
	case KindMap:
		cnt, n := binary.Uvarint(buf[pos:])
		if n <= 0 {
			return Data{}, 0, ErrTruncated
		}
		pos += n
		kvs := make([]MapEntry, 0, cnt)
		for i := uint64(0); i < cnt; i++ {
			k, used, err := DecodeBinary(buf[pos:])
			if err != nil {
				return Data{}, 0, err
			}
			pos += used
			v, used2, err := DecodeBinary(buf[pos:])
			if err != nil {
				return Data{}, 0, err
			}
			pos += used2
			kvs = append(kvs, MapEntry{Key: k, Value: v})
		}
		return Map(kvs...), pos, nil
	}
	return Data{}, 0, fmt.Errorf("unknown data tag 0x%02x", buf[0])
}

func decodeAddr(buf []byte) (netip.Addr, int, error) {
	if len(buf) < 1 {
		return netip.Addr{}, 0, ErrTruncated
	}
	l := int(buf[0])
	if l != 4 && l != 16 {
		return netip.Addr{}, 0, fmt.Errorf("bad address length %d", l)
	}
	if len(buf) < 1+l {
		return netip.Addr{}, 0, ErrTruncated
	}
	ip, ok := netip.AddrFromSlice(buf[1 : 1+l])
	if !ok {
		return netip.Addr{}, 0, fmt.Errorf("bad address bytes")
	}
	return ip, 1 + l, nil
}
