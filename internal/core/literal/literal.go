// Package literal parses the stringified list/dict values found in movie
// metadata exports, e.g. "[{'id': 16, 'name': 'Animation'}]".
//
// The accepted grammar is the literal subset those exports are written in:
// None, True, False, integers, floats, single- or double-quoted strings,
// lists, tuples and dicts. Anything else is a syntax error; the parser never
// guesses.
//
// Parsed values map to plain Go values so they encode directly as JSON:
//
//	None        -> nil
//	True/False  -> bool
//	123         -> int64
//	1.5         -> float64
//	'abc'       -> string
//	[..], (..)  -> []any
//	{k: v}      -> map[string]any (non-string keys are formatted)
package literal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// SyntaxError describes where and why a literal could not be parsed.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("literal: %s at offset %d", e.Msg, e.Offset)
}

// Parse parses s as a single literal. Leading and trailing whitespace is
// ignored; any other trailing input is an error.
func Parse(s string) (any, error) {
	p := &parser{src: s}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty input")
	}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q after value", p.peek())
	}
	return v, nil
}

// IsEmpty reports whether v is an empty list, tuple or dict.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) value() (any, error) {
	switch c := p.peek(); {
	case c == '[':
		return p.sequence('[', ']')
	case c == '(':
		return p.sequence('(', ')')
	case c == '{':
		return p.dict()
	case c == '\'' || c == '"':
		return p.str()
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return p.number()
	case isIdentStart(c):
		return p.keyword()
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	default:
		return nil, p.errorf("unexpected %q", c)
	}
}

func (p *parser) sequence(open, closing byte) (any, error) {
	p.pos++ // open
	out := []any{}
	for {
		p.skipSpace()
		if p.peek() == closing {
			p.pos++
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case closing:
			p.pos++
			return out, nil
		default:
			if p.eof() {
				return nil, p.errorf("unterminated %q", open)
			}
			return nil, p.errorf("expected ',' or %q, got %q", closing, p.peek())
		}
	}
}

func (p *parser) dict() (any, error) {
	p.pos++ // {
	out := map[string]any{}
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return out, nil
		}
		keyPos := p.pos
		k, err := p.value()
		if err != nil {
			return nil, err
		}
		key, err := dictKey(k)
		if err != nil {
			return nil, &SyntaxError{Offset: keyPos, Msg: err.Error()}
		}

		p.skipSpace()
		if p.peek() != ':' {
			if p.eof() {
				return nil, p.errorf("unterminated '{'")
			}
			return nil, p.errorf("expected ':' after dict key, got %q", p.peek())
		}
		p.pos++
		p.skipSpace()

		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out[key] = v

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return out, nil
		default:
			if p.eof() {
				return nil, p.errorf("unterminated '{'")
			}
			return nil, p.errorf("expected ',' or '}', got %q", p.peek())
		}
	}
}

func dictKey(k any) (string, error) {
	switch t := k.(type) {
	case string:
		return t, nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case bool:
		if t {
			return "True", nil
		}
		return "False", nil
	case nil:
		return "None", nil
	default:
		return "", fmt.Errorf("unhashable dict key of type %T", k)
	}
}

func (p *parser) str() (any, error) {
	quote := p.src[p.pos]
	start := p.pos
	p.pos++

	var b strings.Builder
	for {
		if p.eof() {
			return nil, &SyntaxError{Offset: start, Msg: "unterminated string"}
		}
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\n':
			return nil, p.errorf("newline in string")
		case c == '\\':
			if err := p.escape(&b); err != nil {
				return nil, err
			}
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
}

func (p *parser) escape(b *strings.Builder) error {
	p.pos++ // backslash
	if p.eof() {
		return p.errorf("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case '\\', '\'', '"':
		b.WriteByte(c)
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'a':
		b.WriteByte('\a')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0', '1', '2', '3', '4', '5', '6', '7':
		p.octalEscape(b, c)
	case '\n':
		// line continuation
	case 'x':
		return p.hexEscape(b, 2)
	case 'u':
		return p.hexEscape(b, 4)
	case 'U':
		return p.hexEscape(b, 8)
	default:
		// Unknown escapes keep the backslash.
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

// octalEscape reads up to three octal digits, the first already consumed.
func (p *parser) octalEscape(b *strings.Builder, first byte) {
	n := rune(first - '0')
	for i := 1; i < 3 && !p.eof() && isOctal(p.src[p.pos]); i++ {
		n = n*8 + rune(p.src[p.pos]-'0')
		p.pos++
	}
	b.WriteRune(n)
}

func (p *parser) hexEscape(b *strings.Builder, digits int) error {
	if p.pos+digits > len(p.src) {
		return p.errorf("truncated escape")
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+digits], 16, 32)
	if err != nil || n > utf8.MaxRune {
		return p.errorf("invalid escape %q", p.src[p.pos:p.pos+digits])
	}
	b.WriteRune(rune(n))
	p.pos += digits
	return nil
}

func (p *parser) number() (any, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	isFloat := false
scan:
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case isDigit(c) || c == '_':
		case c == '.' || c == 'e' || c == 'E':
			isFloat = true
		case (c == '-' || c == '+') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E'):
		default:
			break scan
		}
		p.pos++
	}
	text := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("invalid number %q", text)}
		}
		return f, nil
	}
	if hasLeadingZero(text) {
		return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("leading zeros in integer %q", text)}
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		// Integers beyond int64 still parse as floats.
		if f, ferr := strconv.ParseFloat(text, 64); ferr == nil && text != "" && text != "-" && text != "+" {
			return f, nil
		}
		return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("invalid number %q", text)}
	}
	return n, nil
}

func (p *parser) keyword() (any, error) {
	start := p.pos
	for !p.eof() && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	switch word := p.src[start:p.pos]; word {
	case "None":
		return nil, nil
	case "True":
		return true, nil
	case "False":
		return false, nil
	default:
		return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("unknown name %q", word)}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isOctal(c byte) bool { return c >= '0' && c <= '7' }

// hasLeadingZero reports a nonzero integer written with a leading 0.
// Zero itself may repeat: "00" is 0.
func hasLeadingZero(text string) bool {
	digits := strings.TrimLeft(text, "+-")
	return len(digits) > 1 && digits[0] == '0' && strings.Trim(digits, "0") != ""
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
