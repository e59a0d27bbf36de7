package scanner

import "stacklua.dev/pkg/internal/token"

// readByte reads the next byte, advancing s.next/s.prev, mirroring the
// teacher scanner's bookkeeping in internal/lualex/lex.go.
func (s *Scanner) readByte() (byte, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, err
	}
	s.prev = s.next
	if b == '\n' {
		s.next = token.Position{Line: s.next.Line + 1, Column: 1}
	} else {
		s.next.Column++
	}
	return b, nil
}

func (s *Scanner) unreadByte() {
	if err := s.r.UnreadByte(); err != nil {
		panic("scanner: unreadByte called without a pending byte: " + err.Error())
	}
	s.next = s.prev
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\v', '\f':
		return true
	default:
		return false
	}
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

func isLetter(b byte) bool {
	return 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || 'a' <= b && b <= 'f' || 'A' <= b && b <= 'F'
}

func hexDigitValue(b byte) byte {
	switch {
	case isDigit(b):
		return b - '0'
	case 'a' <= b && b <= 'f':
		return b - 'a' + 10
	default:
		return b - 'A' + 10
	}
}
