package data

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// ErrParse indicates malformed textual input.
var ErrParse = errors.New("parse error")

// Parse reads one value in the notation produced by Data.String.
func Parse(s string) (Data, error) {
	p := &parser{input: s}
	d, err := p.parse()
	if err != nil {
		return Data{}, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return Data{}, fmt.Errorf("%w: trailing input at offset %d", ErrParse, p.pos)
	}
	return d, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) parse() (Data, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return Data{}, fmt.Errorf("%w: unexpected end of input", ErrParse)
	}
	switch c := p.input[p.pos]; c {
	case '[':
		return p.parseSeq(']', func(xs []Data) Data { return List(xs...) })
	case '<':
		return p.parseSeq('>', func(xs []Data) Data { return Record(xs...) })
	case '{':
		return p.parseMap()
	case '"':
		rest := p.input[p.pos:]
		quoted, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return Data{}, fmt.Errorf("%w: bad string literal", ErrParse)
		}
		s, err := strconv.Unquote(quoted)
		if err != nil {
			return Data{}, fmt.Errorf("%w: bad string literal", ErrParse)
		}
		p.pos += len(quoted)
		return Str(s), nil
	case '/':
		end := strings.IndexByte(p.input[p.pos+1:], '/')
		if end < 0 {
			return Data{}, fmt.Errorf("%w: unterminated pattern", ErrParse)
		}
		pat := p.input[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return Pattern(pat), nil
	case '#':
		tok := p.token(p.pos + 1)
		u, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return Data{}, fmt.Errorf("%w: bad enumeration ordinal %q", ErrParse, tok)
		}
		p.pos += 1 + len(tok)
		return Enum(u), nil
	}
	tok := p.token(p.pos)
	if tok == "" {
		return Data{}, fmt.Errorf("%w: unexpected character %q", ErrParse, p.input[p.pos])
	}
	d, err := parseScalarToken(tok)
	if err != nil {
		return Data{}, err
	}
	p.pos += len(tok)
	return d, nil
}

// token scans from offset to the next structural delimiter.
func (p *parser) token(from int) string {
	end := from
	for end < len(p.input) {
		switch p.input[end] {
		case ',', ']', '>', '}':
			return p.input[from:end]
		case ' ':
			// Only " -> " acts as a delimiter; RFC 3339 has no spaces.
			if strings.HasPrefix(p.input[end:], " -> ") {
				return p.input[from:end]
			}
		}
		end++
	}
	return p.input[from:end]
}

func parseScalarToken(tok string) (Data, error) {
	switch tok {
	case "nil":
		return Nil(), nil
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}
	if tok[0] == '+' || tok[0] == '-' {
		if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return Int(i), nil
		}
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return Real(f), nil
		}
		if dur, err := time.ParseDuration(tok); err == nil {
			return Duration(dur), nil
		}
		return Data{}, fmt.Errorf("%w: bad signed literal %q", ErrParse, tok)
	}
	if isDigits(tok) {
		u, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return Data{}, fmt.Errorf("%w: bad count %q", ErrParse, tok)
		}
		return Count(u), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, tok); err == nil {
		return Time(t), nil
	}
	if strings.ContainsAny(tok, "/") {
		if pfx, err := netip.ParsePrefix(tok); err == nil {
			return Subnet(pfx), nil
		}
	}
	if ip, err := netip.ParseAddr(tok); err == nil {
		return Addr(ip), nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return Real(f), nil
	}
	if dur, err := time.ParseDuration(tok); err == nil {
		return Duration(dur), nil
	}
	return Data{}, fmt.Errorf("%w: unrecognized literal %q", ErrParse, tok)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (p *parser) parseSeq(close byte, wrap func([]Data) Data) (Data, error) {
	p.pos++ // opening bracket
	var xs []Data
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == close {
		p.pos++
		return wrap(nil), nil
	}
	for {
		d, err := p.parse()
		if err != nil {
			return Data{}, err
		}
		xs = append(xs, d)
		p.skipSpace()
		if p.pos >= len(p.input) {
			return Data{}, fmt.Errorf("%w: unterminated sequence", ErrParse)
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case close:
			p.pos++
			return wrap(xs), nil
		default:
			return Data{}, fmt.Errorf("%w: unexpected character %q in sequence", ErrParse, p.input[p.pos])
		}
	}
}

func (p *parser) parseMap() (Data, error) {
	p.pos++ // '{'
	var kvs []MapEntry
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == '}' {
		p.pos++
		return Map(), nil
	}
	for {
		k, err := p.parse()
		if err != nil {
			return Data{}, err
		}
		p.skipSpace()
		if !strings.HasPrefix(p.input[p.pos:], "->") {
			return Data{}, fmt.Errorf("%w: expected '->' in map entry", ErrParse)
		}
		p.pos += 2
		v, err := p.parse()
		if err != nil {
			return Data{}, err
		}
		kvs = append(kvs, MapEntry{Key: k, Value: v})
		p.skipSpace()
		if p.pos >= len(p.input) {
			return Data{}, fmt.Errorf("%w: unterminated map", ErrParse)
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return Map(kvs...), nil
		default:
			return Data{}, fmt.Errorf("%w: unexpected character %q in map", ErrParse, p.input[p.pos])
		}
	}
}

// ParseAs reads a bare cell (as found in CSV or similar line formats) under
// the direction of a type. Strings arrive unquoted; empty cells are nil;
// list elements are separated by listSep.
func ParseAs(cell string, t Type, listSep string) (Data, error) {
	if cell == "" || cell == "nil" || cell == "-" {
		return Nil(), nil
	}
	switch t.Kind() {
	case KindBool:
		switch cell {
		case "T", "true", "1":
			return Bool(true), nil
		case "F", "false", "0":
			return Bool(false), nil
		}
		return Data{}, fmt.Errorf("%w: bad bool %q", ErrParse, cell)
	case KindInt:
		i, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return Data{}, fmt.Errorf("%w: bad integer %q", ErrParse, cell)
		}
		return Int(i), nil
	case KindCount:
		u, err := strconv.ParseUint(cell, 10, 64)
		if err != nil {
			return Data{}, fmt.Errorf("%w: bad count %q", ErrParse, cell)
		}
		return Count(u), nil
	case KindReal:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return Data{}, fmt.Errorf("%w: bad real %q", ErrParse, cell)
		}
		return Real(f), nil
	case KindString:
		return Str(cell), nil
	case KindPattern:
		return Pattern(strings.Trim(cell, "/")), nil
	case KindAddr:
		ip, err := netip.ParseAddr(cell)
		if err != nil {
			return Data{}, fmt.Errorf("%w: bad address %q", ErrParse, cell)
		}
		return Addr(ip), nil
	case KindSubnet:
		pfx, err := netip.ParsePrefix(cell)
		if err != nil {
			return Data{}, fmt.Errorf("%w: bad subnet %q", ErrParse, cell)
		}
		return Subnet(pfx), nil
	case KindTime:
		return parseTimeCell(cell)
	case KindDuration:
		if dur, err := time.ParseDuration(cell); err == nil {
			return Duration(dur), nil
		}
		if secs, err := strconv.ParseFloat(cell, 64); err == nil {
			return Duration(time.Duration(secs * float64(time.Second))), nil
		}
		return Data{}, fmt.Errorf("%w: bad duration %q", ErrParse, cell)
	case KindEnum:
		if ord, ok := t.Ordinal(cell); ok {
			return Enum(ord), nil
		}
		return Data{}, fmt.Errorf("%w: no ordinal for %q", ErrParse, cell)
	case KindList:
		elem, _ := t.Elem()
		parts := strings.Split(cell, listSep)
		xs := make([]Data, 0, len(parts))
		for _, part := range parts {
			x, err := ParseAs(part, elem, listSep)
			if err != nil {
				return Data{}, err
			}
			xs = append(xs, x)
		}
		return List(xs...), nil
	}
	return Data{}, fmt.Errorf("%w: cannot parse cell of type %s", ErrParse, t)
}

// parseTimeCell accepts RFC 3339 or fractional epoch seconds.
func parseTimeCell(cell string) (Data, error) {
	if t, err := time.Parse(time.RFC3339Nano, cell); err == nil {
		return Time(t), nil
	}
	if secs, err := strconv.ParseFloat(cell, 64); err == nil {
		sec := int64(secs)
		nsec := int64((secs - float64(sec)) * 1e9)
		return Time(time.Unix(sec, nsec)), nil
	}
	return Data{}, fmt.Errorf("%w: bad timestamp %q", ErrParse, cell)
}
