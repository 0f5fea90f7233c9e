package ats

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var errBadList = errors.New("bad keyword list")

// ParseKeywordList parses a bracketed list of quoted strings such as
// ['python', "machine learning"]. Single and double quotes are accepted,
// backslash escapes are honoured and a trailing comma is allowed. Anything
// else is rejected.
func ParseKeywordList(s string) ([]string, error) {
	p := listParser{src: []rune(strings.TrimSpace(s))}
	return p.parse()
}

type listParser struct {
	src []rune
	pos int
}

func (p *listParser) parse() ([]string, error) {
	if !p.consume('[') {
		return nil, p.fail("expected '['")
	}
	out := []string{}
	p.skipSpace()
	if p.consume(']') {
		return out, p.end()
	}
	for {
		p.skipSpace()
		if p.consume(']') {
			// trailing comma
			return out, p.end()
		}
		str, err := p.str()
		if err != nil {
			return nil, err
		}
		out = append(out, str)
		p.skipSpace()
		if p.consume(',') {
			continue
		}
		if p.consume(']') {
			return out, p.end()
		}
		return nil, p.fail("expected ',' or ']'")
	}
}

func (p *listParser) str() (string, error) {
	if p.pos >= len(p.src) {
		return "", p.fail("unexpected end")
	}
	quote := p.src[p.pos]
	if quote != '\'' && quote != '"' {
		return "", p.fail("expected quoted string")
	}
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		p.pos++
		switch {
		case r == quote:
			return b.String(), nil
		case r == '\\':
			if p.pos >= len(p.src) {
				return "", p.fail("dangling escape")
			}
			e := p.src[p.pos]
			p.pos++
			switch e {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case '\\', '\'', '"':
				b.WriteRune(e)
			default:
				b.WriteRune('\\')
				b.WriteRune(e)
			}
		case r == '\n':
			return "", p.fail("newline in string")
		default:
			b.WriteRune(r)
		}
	}
	return "", p.fail("unterminated string")
}

func (p *listParser) end() error {
	p.skipSpace()
	if p.pos != len(p.src) {
		return p.fail("trailing data")
	}
	return nil
}

func (p *listParser) consume(r rune) bool {
	if p.pos < len(p.src) && p.src[p.pos] == r {
		p.pos++
		return true
	}
	return false
}

func (p *listParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *listParser) fail(msg string) error {
	return fmt.Errorf("%w: %s at offset %d", errBadList, msg, p.pos)
}
