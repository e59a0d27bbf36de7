package scanner

import (
	"strings"

	"stacklua.dev/pkg/internal/token"
)

// number scans a numeral lexeme (spec.md §4.1): decimal integers or
// reals with an optional fractional part and e/E exponent, or
// 0x/0X, 0o/0O, 0b/0B prefixed integers in the corresponding digit
// class; a 0x/0X numeral may also carry a fractional part and a p/P
// exponent. The lexeme text is returned verbatim; parsing its value is
// the compiler's job (see internal/compiler), matching the teacher's
// split between lualex (text) and ParseInt/ParseNumber (value).
func (s *Scanner) number() (token.Token, error) {
	pos := s.prev
	sb := new(strings.Builder)

	first, _ := s.readByte()
	sb.WriteByte(first)

	if first == '0' {
		if b, err := s.readByte(); err == nil {
			switch {
			case b == 'x' || b == 'X':
				sb.WriteByte(b)
				return s.hexNumeral(pos, sb)
			case b == 'o' || b == 'O':
				sb.WriteByte(b)
				return s.basedNumeral(pos, sb, isOctalDigit, "octal")
			case b == 'b' || b == 'B':
				sb.WriteByte(b)
				return s.basedNumeral(pos, sb, isBinaryDigit, "binary")
			default:
				s.unreadByte()
			}
		}
	}

	return s.decimalNumeral(pos, sb)
}

func isOctalDigit(b byte) bool { return '0' <= b && b <= '7' }
func isBinaryDigit(b byte) bool { return b == '0' || b == '1' }

func (s *Scanner) basedNumeral(pos token.Position, sb *strings.Builder, digit func(byte) bool, name string) (token.Token, error) {
	n := 0
	for {
		b, err := s.readByte()
		if err != nil {
			break
		}
		if !digit(b) {
			s.unreadByte()
			break
		}
		sb.WriteByte(b)
		n++
	}
	if n == 0 {
		return token.Token{Kind: token.ILLEGAL, Position: pos},
			s.fail(pos, "malformed "+name+" integer: no digits")
	}
	return token.Token{Kind: token.NUMBER, Lexeme: sb.String(), Position: pos}, nil
}

func (s *Scanner) hexNumeral(pos token.Position, sb *strings.Builder) (token.Token, error) {
	n := 0
	for {
		b, err := s.readByte()
		if err != nil {
			break
		}
		if !isHexDigit(b) {
			s.unreadByte()
			break
		}
		sb.WriteByte(b)
		n++
	}
	hasDot := false
	if b, err := s.readByte(); err == nil {
		if b == '.' {
			hasDot = true
			sb.WriteByte(b)
			for {
				b, err := s.readByte()
				if err != nil {
					break
				}
				if !isHexDigit(b) {
					s.unreadByte()
					break
				}
				sb.WriteByte(b)
				n++
			}
		} else {
			s.unreadByte()
		}
	}
	if n == 0 {
		return token.Token{Kind: token.ILLEGAL, Position: pos},
			s.fail(pos, "malformed hexadecimal integer: no digits")
	}
	if b, err := s.readByte(); err == nil {
		if b == 'p' || b == 'P' {
			sb.WriteByte(b)
			if err := s.exponent(sb); err != nil {
				return token.Token{Kind: token.ILLEGAL, Position: pos}, err
			}
		} else {
			s.unreadByte()
		}
	}
	_ = hasDot
	return token.Token{Kind: token.NUMBER, Lexeme: sb.String(), Position: pos}, nil
}

func (s *Scanner) decimalNumeral(pos token.Position, sb *strings.Builder) (token.Token, error) {
	for {
		b, err := s.readByte()
		if err != nil {
			break
		}
		if !isDigit(b) {
			s.unreadByte()
			break
		}
		sb.WriteByte(b)
	}
	if b, err := s.readByte(); err == nil {
		if b == '.' {
			sb.WriteByte(b)
			for {
				b, err := s.readByte()
				if err != nil {
					break
				}
				if !isDigit(b) {
					s.unreadByte()
					break
				}
				sb.WriteByte(b)
			}
		} else {
			s.unreadByte()
		}
	}
	if b, err := s.readByte(); err == nil {
		if b == 'e' || b == 'E' {
			sb.WriteByte(b)
			if err := s.exponent(sb); err != nil {
				return token.Token{Kind: token.ILLEGAL, Position: pos}, err
			}
		} else {
			s.unreadByte()
		}
	}
	return token.Token{Kind: token.NUMBER, Lexeme: sb.String(), Position: pos}, nil
}

// exponent scans the digits (with optional sign) following an e/E or p/P
// marker already written to sb.
func (s *Scanner) exponent(sb *strings.Builder) error {
	pos := s.prev
	if b, err := s.readByte(); err == nil {
		if b == '+' || b == '-' {
			sb.WriteByte(b)
		} else {
			s.unreadByte()
		}
	}
	n := 0
	for {
		b, err := s.readByte()
		if err != nil {
			break
		}
		if !isDigit(b) {
			s.unreadByte()
			break
		}
		sb.WriteByte(b)
		n++
	}
	if n == 0 {
		return s.fail(pos, "malformed number: missing exponent digits")
	}
	return nil
}
