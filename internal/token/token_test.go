package token

import "testing"

func TestKeywordsMapToDistinctKinds(t *testing.T) {
	seen := make(map[Kind]string)
	for word, kind := range Keywords {
		if other, ok := seen[kind]; ok {
			t.Errorf("both %q and %q map to %v", word, other, kind)
		}
		seen[kind] = word
		if got := kind.String(); got != word {
			t.Errorf("Keywords[%q].String() = %q; want %q", word, got, word)
		}
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{ILLEGAL, "illegal token"},
		{EOF, "end of file"},
		{NAME, "name"},
		{PLUS, "+"},
		{ELLIPSIS, "..."},
		{Kind(127), "token.Kind(127)"},
	}
	for _, test := range tests {
		if got := test.kind.String(); got != test.want {
			t.Errorf("Kind(%d).String() = %q; want %q", test.kind, got, test.want)
		}
	}
}

func TestKindGoString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{AND, "'and'"},
		{WHILE, "'while'"},
		{PLUS, "'+'"},
		{DOT, "'.'"},
		{NAME, "name"},
		{EOF, "end of file"},
	}
	for _, test := range tests {
		if got := test.kind.GoString(); got != test.want {
			t.Errorf("Kind(%v).GoString() = %q; want %q", test.kind, got, test.want)
		}
	}
}

func TestPositionString(t *testing.T) {
	tests := []struct {
		pos  Position
		want string
	}{
		{Position{Line: 1, Column: 1}, "1:1"},
		{Position{Line: 12, Column: 34}, "12:34"},
		{Position{}, "<invalid position>"},
	}
	for _, test := range tests {
		if got := test.pos.String(); got != test.want {
			t.Errorf("%+v.String() = %q; want %q", test.pos, got, test.want)
		}
		if got := test.pos.IsValid(); got != (test.pos.Line > 0 && test.pos.Column > 0) {
			t.Errorf("%+v.IsValid() = %v", test.pos, got)
		}
	}
}

func TestTokenString(t *testing.T) {
	tests := []struct {
		tok  Token
		want string
	}{
		{Token{Kind: NAME, Lexeme: "x"}, "x"},
		{Token{Kind: NUMBER, Lexeme: "42"}, "42"},
		{Token{Kind: STRING, Lexeme: "hi"}, `"hi"`},
		{Token{Kind: EOF}, "<eof>"},
		{Token{Kind: PLUS}, "+"},
	}
	for _, test := range tests {
		if got := test.tok.String(); got != test.want {
			t.Errorf("%+v.String() = %q; want %q", test.tok, got, test.want)
		}
	}
}
