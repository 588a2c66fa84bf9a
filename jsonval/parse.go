// File: jsonval/parse.go
// Package jsonval
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Recursive-descent parser producing arena-resident nodes. Depth is capped
// to bound the stack; malformed input reports the byte offset. A failed
// parse leaves partial allocations in the arena; they are reclaimed at the
// caller's next Reset.

package jsonval

import (
	"fmt"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
	"unsafe"

	"github.com/momentics/hioload-mcp/arena"
)

// stringFromArenaBytes views arena bytes as a string without copying; the
// string dies with the arena cycle like the bytes do.
func stringFromArenaBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// MaxDepth bounds nesting of arrays and objects.
const MaxDepth = 100

// ParseError reports a syntax or depth violation with its byte offset.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("json parse error at offset %d: %s", e.Offset, e.Msg)
}

type parser struct {
	data  []byte
	pos   int
	arena *arena.Arena
	depth int
}

// Parse decodes data into a node tree allocated in a. The input must hold
// exactly one JSON document.
func Parse(data []byte, a *arena.Arena) (*Node, error) {
	p := &parser{data: data, arena: a}
	p.skipSpace()
	n, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.data) {
		return nil, p.errorf("trailing data")
	}
	return n, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) value() (*Node, error) {
	if p.pos >= len(p.data) {
		return nil, p.errorf("unexpected end of input")
	}
	switch c := p.data[p.pos]; c {
	case '{':
		return p.object()
	case '[':
		return p.array()
	case '"':
		s, err := p.string()
		if err != nil {
			return nil, err
		}
		return newStringNoCopy(p.arena, s)
	case 't':
		if err := p.literal("true"); err != nil {
			return nil, err
		}
		return NewBool(p.arena, true)
	case 'f':
		if err := p.literal("false"); err != nil {
			return nil, err
		}
		return NewBool(p.arena, false)
	case 'n':
		if err := p.literal("null"); err != nil {
			return nil, err
		}
		return NewNull(p.arena)
	default:
		if c == '-' || (c >= '0' && c <= '9') {
			return p.number()
		}
		return nil, p.errorf("unexpected character %q", c)
	}
}

func (p *parser) literal(lit string) error {
	if p.pos+len(lit) > len(p.data) || string(p.data[p.pos:p.pos+len(lit)]) != lit {
		return p.errorf("invalid literal")
	}
	p.pos += len(lit)
	return nil
}

func (p *parser) number() (*Node, error) {
	start := p.pos
	if p.pos < len(p.data) && p.data[p.pos] == '-' {
		p.pos++
	}
	digits := 0
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c >= '0' && c <= '9' {
			digits++
			p.pos++
			continue
		}
		if c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			p.pos++
			continue
		}
		break
	}
	if digits == 0 {
		p.pos = start
		return nil, p.errorf("invalid number")
	}
	f, err := strconv.ParseFloat(string(p.data[start:p.pos]), 64)
	if err != nil {
		p.pos = start
		return nil, p.errorf("invalid number")
	}
	return NewNumber(p.arena, f)
}

// string decodes a quoted string, unescaping into arena storage. The fast
// path (no escapes) copies the raw bytes once.
func (p *parser) string() (string, error) {
	// Opening quote.
	p.pos++
	start := p.pos
	hasEscape := false
	for {
		if p.pos >= len(p.data) {
			return "", p.errorf("unterminated string")
		}
		c := p.data[p.pos]
		if c == '"' {
			break
		}
		if c == '\\' {
			hasEscape = true
			p.pos++
			if p.pos >= len(p.data) {
				return "", p.errorf("unterminated escape")
			}
		} else if c < 0x20 {
			return "", p.errorf("raw control character in string")
		}
		p.pos++
	}
	raw := p.data[start:p.pos]
	p.pos++ // closing quote

	if !hasEscape {
		return arena.String(p.arena, string(raw))
	}
	return p.unescape(raw, start)
}

func (p *parser) unescape(raw []byte, base int) (string, error) {
	out, err := p.arena.Alloc(len(raw))
	if err != nil {
		return "", err
	}
	out = out[:0]
	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '\\' {
			out = append(out, c)
			i++
			continue
		}
		i++
		switch raw[i] {
		case '"':
			out = append(out, '"')
		case '\\':
			out = append(out, '\\')
		case '/':
			out = append(out, '/')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'u':
			r, consumed, ok := decodeUnicodeEscape(raw[i-1:])
			if !ok {
				p.pos = base + i - 1
				return "", p.errorf("invalid \\u escape")
			}
			var enc [4]byte
			out = append(out, enc[:utf8.EncodeRune(enc[:], r)]...)
			i += consumed - 2 // loop adds the final +1 below
		default:
			p.pos = base + i
			return "", p.errorf("invalid escape character")
		}
		i++
	}
	s := out
	return stringFromArenaBytes(s), nil
}

// decodeUnicodeEscape reads \uXXXX at the start of b, combining surrogate
// pairs into one rune. consumed counts bytes of b used.
func decodeUnicodeEscape(b []byte) (r rune, consumed int, ok bool) {
	hi, ok := hex4(b)
	if !ok {
		return 0, 0, false
	}
	consumed = 6
	if !utf16.IsSurrogate(rune(hi)) {
		return rune(hi), consumed, true
	}
	// High surrogate must be followed by \uXXXX low surrogate.
	if len(b) < 12 || b[6] != '\\' || b[7] != 'u' {
		return utf8.RuneError, consumed, true
	}
	lo, ok := hex4(b[6:])
	if !ok {
		return 0, 0, false
	}
	combined := utf16.DecodeRune(rune(hi), rune(lo))
	if combined == utf8.RuneError {
		return utf8.RuneError, consumed, true
	}
	return combined, 12, true
}

// hex4 parses the XXXX of a \uXXXX sequence starting at b[0]=='\\'.
func hex4(b []byte) (uint16, bool) {
	if len(b) < 6 {
		return 0, false
	}
	var v uint16
	for _, c := range b[2:6] {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint16(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint16(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= uint16(c-'A') + 10
		default:
			return 0, false
		}
	}
	return v, true
}

func (p *parser) array() (*Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		return nil, p.errorf("nesting exceeds depth limit %d", MaxDepth)
	}
	n, err := NewArray(p.arena)
	if err != nil {
		return nil, err
	}
	p.pos++ // '['
	p.skipSpace()
	if p.pos < len(p.data) && p.data[p.pos] == ']' {
		p.pos++
		return n, nil
	}
	for {
		p.skipSpace()
		child, err := p.value()
		if err != nil {
			return nil, err
		}
		if err := n.Append(p.arena, child); err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.data) {
			return nil, p.errorf("unterminated array")
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return n, nil
		default:
			return nil, p.errorf("expected ',' or ']'")
		}
	}
}

func (p *parser) object() (*Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		return nil, p.errorf("nesting exceeds depth limit %d", MaxDepth)
	}
	n, err := NewObject(p.arena)
	if err != nil {
		return nil, err
	}
	p.pos++ // '{'
	p.skipSpace()
	if p.pos < len(p.data) && p.data[p.pos] == '}' {
		p.pos++
		return n, nil
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.data) || p.data[p.pos] != '"' {
			return nil, p.errorf("expected object key")
		}
		key, err := p.string()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.data) || p.data[p.pos] != ':' {
			return nil, p.errorf("expected ':'")
		}
		p.pos++
		p.skipSpace()
		child, err := p.value()
		if err != nil {
			return nil, err
		}
		if err := n.Set(p.arena, key, child); err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.data) {
			return nil, p.errorf("unterminated object")
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return n, nil
		default:
			return nil, p.errorf("expected ',' or '}'")
		}
	}
}
