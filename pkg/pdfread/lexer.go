package pdfread

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

var errSyntax = errors.New("pdf syntax error")

// lexer walks a byte buffer parsing one object at a time. The whole file is
// held in memory; documents this package targets are library books, not
// multi-gigabyte scans.
type lexer struct {
	data []byte
	pos  int
}

func isWhitespace(b byte) bool {
	switch b {
	case 0x00, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(b byte) bool {
	return !isWhitespace(b) && !isDelimiter(b)
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) {
			l.pos++
			continue
		}
		if b == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		break
	}
}

// keyword reads the regular-character run at the cursor.
func (l *lexer) keyword() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// expectKeyword consumes the given keyword or fails.
func (l *lexer) expectKeyword(kw string) error {
	if got := l.keyword(); got != kw {
		return fmt.Errorf("%w: expected %q, got %q at %d", errSyntax, kw, got, l.pos)
	}
	return nil
}

// parseObject parses the next object at the cursor.
func (l *lexer) parseObject() (Object, error) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return nil, fmt.Errorf("%w: unexpected end of input", errSyntax)
	}

	switch b := l.data[l.pos]; {
	case b == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			return l.parseDict()
		}
		return l.parseHexString()
	case b == '(':
		return l.parseLiteralString()
	case b == '/':
		return l.parseName()
	case b == '[':
		return l.parseArray()
	case b >= '0' && b <= '9', b == '+', b == '-', b == '.':
		return l.parseNumberOrRef()
	case b == 't' || b == 'f' || b == 'n':
		return l.parseKeywordObject()
	}
	return nil, fmt.Errorf("%w: unexpected byte %q at %d", errSyntax, l.data[l.pos], l.pos)
}

func (l *lexer) parseKeywordObject() (Object, error) {
	switch kw := l.keyword(); kw {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "null":
		return Null{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown keyword %q", errSyntax, kw)
	}
}

func (l *lexer) parseName() (Object, error) {
	l.pos++ // slash
	var out []byte
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		b := l.data[l.pos]
		if b == '#' && l.pos+2 < len(l.data) {
			if v, err := strconv.ParseUint(string(l.data[l.pos+1:l.pos+3]), 16, 8); err == nil {
				out = append(out, byte(v))
				l.pos += 3
				continue
			}
		}
		out = append(out, b)
		l.pos++
	}
	return Name(out), nil
}

func (l *lexer) parseArray() (Object, error) {
	l.pos++ // [
	var arr Array
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("%w: unterminated array", errSyntax)
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		obj, err := l.parseObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (l *lexer) parseDict() (Object, error) {
	l.pos += 2 // <<
	dict := make(Dict)
	for {
		l.skipSpace()
		if l.pos+1 < len(l.data) && l.data[l.pos] == '>' && l.data[l.pos+1] == '>' {
			l.pos += 2
			return dict, nil
		}
		if l.pos >= len(l.data) || l.data[l.pos] != '/' {
			return nil, fmt.Errorf("%w: dict key must be a name at %d", errSyntax, l.pos)
		}
		key, err := l.parseName()
		if err != nil {
			return nil, err
		}
		val, err := l.parseObject()
		if err != nil {
			return nil, err
		}
		dict[key.(Name)] = val
	}
}

func (l *lexer) parseHexString() (Object, error) {
	l.pos++ // <
	var raw []byte
	var hi byte
	var have bool
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		l.pos++
		if b == '>' {
			if have {
				raw = append(raw, hi<<4)
			}
			return String(decodeTextString(raw)), nil
		}
		v, ok := hexVal(b)
		if !ok {
			continue
		}
		if have {
			raw = append(raw, hi<<4|v)
			have = false
		} else {
			hi = v
			have = true
		}
	}
	return nil, fmt.Errorf("%w: unterminated hex string", errSyntax)
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

func (l *lexer) parseLiteralString() (Object, error) {
	l.pos++ // (
	var raw []byte
	depth := 1
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		l.pos++
		switch b {
		case '\\':
			if l.pos >= len(l.data) {
				return nil, fmt.Errorf("%w: dangling escape", errSyntax)
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				raw = append(raw, '\n')
			case 'r':
				raw = append(raw, '\r')
			case 't':
				raw = append(raw, '\t')
			case 'b':
				raw = append(raw, '\b')
			case 'f':
				raw = append(raw, '\f')
			case '(', ')', '\\':
				raw = append(raw, e)
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
				// line continuation, emits nothing
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data); i++ {
						d := l.data[l.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						l.pos++
					}
					raw = append(raw, byte(v))
				} else {
					raw = append(raw, e)
				}
			}
		case '(':
			depth++
			raw = append(raw, b)
		case ')':
			depth--
			if depth == 0 {
				return String(decodeTextString(raw)), nil
			}
			raw = append(raw, b)
		default:
			raw = append(raw, b)
		}
	}
	return nil, fmt.Errorf("%w: unterminated string", errSyntax)
}

func (l *lexer) parseNumberOrRef() (Object, error) {
	start := l.pos
	tok := l.keyword()
	if tok == "" {
		return nil, fmt.Errorf("%w: empty number at %d", errSyntax, start)
	}

	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		// A non-negative integer may start an "N G R" reference.
		if i >= 0 {
			save := l.pos
			genTok := l.keyword()
			if gen, err := strconv.ParseInt(genTok, 10, 64); err == nil && gen >= 0 {
				if l.keyword() == "R" {
					return Ref{Num: int(i), Gen: int(gen)}, nil
				}
			}
			l.pos = save
		}
		return Integer(i), nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return Real(f), nil
	}
	return nil, fmt.Errorf("%w: bad number %q at %d", errSyntax, tok, start)
}

// decodeTextString maps a raw string to UTF-8. Text strings with a UTF-16BE
// byte order mark are converted; everything else passes through with
// non-UTF-8 bytes kept as Latin-1.
func decodeTextString(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		raw = raw[2:]
		codes := make([]uint16, 0, len(raw)/2)
		for i := 0; i+1 < len(raw); i += 2 {
			codes = append(codes, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return string(utf16.Decode(codes))
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}
