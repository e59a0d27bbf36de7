package scanner

import (
	"strings"

	"stacklua.dev/pkg/internal/token"
)

// shortString scans a '...' or "..." literal per spec.md §4.1, handling
// the teacher's escape-sequence set (internal/lualex/lex.go
// shortLiteralString): \a \b \f \n \r \t \v \\ \' \" \newline \z \xXX
// and decimal \ddd.
func (s *Scanner) shortString(quote byte) (token.Token, error) {
	pos := s.prev
	sb := new(strings.Builder)
	for {
		b, err := s.readByte()
		if err != nil {
			return token.Token{Kind: token.ILLEGAL, Position: pos}, s.fail(pos, "unterminated string")
		}
		switch {
		case b == quote:
			return token.Token{Kind: token.STRING, Lexeme: sb.String(), Position: pos}, nil
		case b == '\n' || b == '\r':
			return token.Token{Kind: token.ILLEGAL, Position: pos}, s.fail(s.prev, "unescaped newline in string")
		case b != '\\':
			sb.WriteByte(b)
		default:
			if err := s.escape(sb); err != nil {
				return token.Token{Kind: token.ILLEGAL, Position: pos}, err
			}
		}
	}
}

func (s *Scanner) escape(sb *strings.Builder) error {
	b, err := s.readByte()
	if err != nil {
		return s.fail(s.prev, "unterminated string")
	}
	switch b {
	case 'a':
		sb.WriteByte('\a')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case 'v':
		sb.WriteByte('\v')
	case '\\', '\'', '"':
		sb.WriteByte(b)
	case '\n', '\r':
		sb.WriteByte('\n')
		if nb, err := s.readByte(); err == nil {
			other := byte('\r')
			if b == '\r' {
				other = '\n'
			}
			if nb != other {
				s.unreadByte()
			}
		}
	case 'z':
		for {
			nb, err := s.readByte()
			if err != nil {
				break
			}
			if !isSpace(nb) && nb != '\n' && nb != '\r' {
				s.unreadByte()
				break
			}
		}
	case 'x':
		var v byte
		for range 2 {
			nb, err := s.readByte()
			if err != nil || !isHexDigit(nb) {
				return s.fail(s.prev, "malformed \\x escape: want two hex digits")
			}
			v = v<<4 | hexDigitValue(nb)
		}
		sb.WriteByte(v)
	default:
		if !isDigit(b) {
			return s.fail(s.prev, "invalid escape sequence")
		}
		v := int(b - '0')
		for range 2 {
			nb, err := s.readByte()
			if err != nil || !isDigit(nb) {
				if err == nil {
					s.unreadByte()
				}
				break
			}
			v = v*10 + int(nb-'0')
		}
		if v > 255 {
			return s.fail(s.prev, "decimal escape too large")
		}
		sb.WriteByte(byte(v))
	}
	return nil
}

// peekLongBracketLevel reports whether the stream, positioned right
// after a '[' already consumed by the caller, opens a long bracket
// ("[[", "[=[", "[==[", ...), and if so, consumes the opening bracket
// and returns its level (the number of '=' signs).
func (s *Scanner) peekLongBracketLevel() (level int, ok bool) {
	for {
		b, err := s.readByte()
		if err != nil {
			s.pendingEquals = level
			return 0, false
		}
		switch {
		case b == '=':
			level++
		case b == '[':
			return level, true
		default:
			s.unreadByte()
			s.pendingEquals = level
			return 0, false
		}
	}
}

// longBracket reads the body of a long string/comment at the given
// level up to the matching closing bracket ("]=...=]"), per spec.md's
// long-bracket supplement (SPEC_FULL.md §3). A leading newline
// immediately after the opening bracket is discarded, matching Lua.
func (s *Scanner) longBracket(level int) (string, error) {
	sb := new(strings.Builder)
	first := true
	for {
		b, err := s.readByte()
		if err != nil {
			return sb.String(), s.fail(s.prev, "unterminated long bracket")
		}
		if first {
			first = false
			if b == '\n' || b == '\r' {
				continue
			}
		}
		if b == ']' {
			if s.tryCloseLongBracket(level) {
				return sb.String(), nil
			}
			sb.WriteByte(b)
			continue
		}
		sb.WriteByte(b)
	}
}

func (s *Scanner) tryCloseLongBracket(level int) bool {
	n := 0
	for n < level {
		b, err := s.readByte()
		if err != nil || b != '=' {
			if err == nil {
				s.unreadByte()
			}
			return false
		}
		n++
	}
	b, err := s.readByte()
	if err != nil || b != ']' {
		if err == nil {
			s.unreadByte()
		}
		return false
	}
	return true
}
