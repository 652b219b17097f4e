package data

import (
	"strconv"
	"strings"
	"time"
)

// String renders the value in the store's textual notation. Parse inverts
// it for every well-formed value.
func (d Data) String() string {
	var sb strings.Builder
	d.print(&sb)
	return sb.String()
}

func (d Data) print(sb *strings.Builder) {
	switch d.kind {
	case KindNil:
		sb.WriteString("nil")
	case KindBool:
		if d.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindInt:
		// A leading sign distinguishes integers from counts.
		if d.i >= 0 {
			sb.WriteByte('+')
		}
		sb.WriteString(strconv.FormatInt(d.i, 10))
	case KindCount:
		sb.WriteString(strconv.FormatUint(d.u, 10))
	case KindReal:
		s := strconv.FormatFloat(d.f, 'g', -1, 64)
		sb.WriteString(s)
		if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
			sb.WriteString(".0")
		}
	case KindString:
		sb.WriteString(strconv.Quote(d.str))
	case KindPattern:
		sb.WriteByte('/')
		sb.WriteString(d.str)
		sb.WriteByte('/')
	case KindAddr:
		sb.WriteString(d.ip.String())
	case KindSubnet:
		sb.WriteString(d.pfx.String())
	case KindTime:
		sb.WriteString(time.Unix(0, d.i).UTC().Format(time.RFC3339Nano))
	case KindDuration:
		sb.WriteString(time.Duration(d.i).String())
	case KindEnum:
		sb.WriteByte('#')
		sb.WriteString(strconv.FormatUint(d.u, 10))
	case KindList:
		sb.WriteByte('[')
		for i := range d.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			d.list[i].print(sb)
		}
		sb.WriteByte(']')
	case KindRecord:
		sb.WriteByte('<')
		for i := range d.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			d.list[i].print(sb)
		}
		sb.WriteByte('>')
	case KindMap:
		sb.WriteByte('{')
		for i := range d.kvs {
			if i > 0 {
				sb.WriteString(", ")
			}
			d.kvs[i].Key.print(sb)
			sb.WriteString(" -> ")
			d.kvs[i].Value.print(sb)
		}
		sb.WriteByte('}')
	default:
		sb.WriteString("invalid")
	}
}
