package scanner

import (
	"bytes"
	"errors"
	"testing"

	"stacklua.dev/pkg/internal/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	s := New(bytes.NewReader([]byte(src)))
	var toks []token.Token
	for {
		tok, err := s.Scan()
		if err != nil {
			t.Fatalf("scan %q: %v", src, err)
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, tok := range toks {
		ks[i] = tok.Kind
	}
	return ks
}

func assertKinds(t *testing.T, src string, want ...token.Kind) {
	t.Helper()
	want = append(want, token.EOF)
	got := kinds(scanAll(t, src))
	if len(got) != len(want) {
		t.Fatalf("scan %q: got %v kinds, want %v", src, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("scan %q: kind[%d] = %v; want %v", src, i, got[i], want[i])
		}
	}
}

func TestIdentifiersAndKeywords(t *testing.T) {
	assertKinds(t, "foo", token.NAME)
	assertKinds(t, "_bar9", token.NAME)
	assertKinds(t, "while", token.WHILE)
	assertKinds(t, "whiled", token.NAME)

	toks := scanAll(t, "foo")
	if toks[0].Lexeme != "foo" {
		t.Errorf("Lexeme = %q; want %q", toks[0].Lexeme, "foo")
	}
}

func TestNumbers(t *testing.T) {
	tests := []string{"0", "42", "3.14", "1e10", "1.5e-3", "0x1F", "0x1.8p3", "0o17", "0b101"}
	for _, src := range tests {
		toks := scanAll(t, src)
		if len(toks) != 2 || toks[0].Kind != token.NUMBER || toks[1].Kind != token.EOF {
			t.Fatalf("scan %q: got %v", src, kinds(toks))
		}
		if toks[0].Lexeme != src {
			t.Errorf("scan %q: Lexeme = %q", src, toks[0].Lexeme)
		}
	}
}

func TestMalformedNumberExponent(t *testing.T) {
	s := New(bytes.NewReader([]byte("1e")))
	_, err := s.Scan()
	var scanErr *Error
	if !errors.As(err, &scanErr) {
		t.Fatalf("Scan(%q) error = %v; want *Error", "1e", err)
	}
}

func TestShortStrings(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`"hi"`, "hi"},
		{`'hi'`, "hi"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"\65\66"`, "AB"},
		{`"\x41\x42"`, "AB"},
		{"\"line\\\ncontinued\"", "line\ncontinued"},
	}
	for _, test := range tests {
		toks := scanAll(t, test.src)
		if len(toks) != 2 || toks[0].Kind != token.STRING {
			t.Fatalf("scan %q: got %v", test.src, kinds(toks))
		}
		if toks[0].Lexeme != test.want {
			t.Errorf("scan %q: Lexeme = %q; want %q", test.src, toks[0].Lexeme, test.want)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	s := New(bytes.NewReader([]byte(`"abc`)))
	_, err := s.Scan()
	var scanErr *Error
	if !errors.As(err, &scanErr) {
		t.Fatalf("Scan error = %v; want *Error", err)
	}
}

func TestUnescapedNewlineInString(t *testing.T) {
	s := New(bytes.NewReader([]byte("\"abc\ndef\"")))
	_, err := s.Scan()
	var scanErr *Error
	if !errors.As(err, &scanErr) {
		t.Fatalf("Scan error = %v; want *Error", err)
	}
}

func TestLongBracketStrings(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"[[hello]]", "hello"},
		{"[=[a]]b]=]", "a]]b"},
		{"[[\nfirst line discarded]]", "first line discarded"},
		{"[==[plain text, level two]==]", "plain text, level two"},
	}
	for _, test := range tests {
		toks := scanAll(t, test.src)
		if len(toks) != 2 || toks[0].Kind != token.STRING {
			t.Fatalf("scan %q: got %v", test.src, kinds(toks))
		}
		if toks[0].Lexeme != test.want {
			t.Errorf("scan %q: Lexeme = %q; want %q", test.src, toks[0].Lexeme, test.want)
		}
	}
}

func TestLineComment(t *testing.T) {
	assertKinds(t, "-- a comment\nx", token.NEWLINE, token.NAME)
	assertKinds(t, "x -- trailing comment", token.NAME)
}

func TestLongBracketComment(t *testing.T) {
	assertKinds(t, "x --[[ a\nmultiline\ncomment ]] y", token.NAME, token.NAME)
}

func TestCommentWithBareEqualsNotLongBracket(t *testing.T) {
	// "--[==" opens no long bracket (no closing '['), so the '=' signs
	// belong to the comment text, not to replayed ASSIGN/EQ tokens.
	assertKinds(t, "--[== not a bracket\nx", token.NEWLINE, token.NAME)
}

func TestDashIsNotAlwaysAComment(t *testing.T) {
	assertKinds(t, "a-b", token.NAME, token.MINUS, token.NAME)
}

func TestOperators(t *testing.T) {
	tests := []struct {
		src  string
		want token.Kind
	}{
		{"/", token.SLASH},
		{"//", token.IDIV},
		{"~", token.TILDE},
		{"~=", token.NE},
		{"<", token.LT},
		{"<<", token.SHL},
		{"<=", token.LE},
		{">", token.GT},
		{">>", token.SHR},
		{">=", token.GE},
		{"=", token.ASSIGN},
		{"==", token.EQ},
		{":", token.COLON},
		{"::", token.LABEL},
		{".", token.DOT},
		{"..", token.CONCAT},
		{"...", token.ELLIPSIS},
	}
	for _, test := range tests {
		assertKinds(t, test.src, test.want)
	}
}

func TestAmbiguousOperatorPrefixesDisambiguateByFollowup(t *testing.T) {
	assertKinds(t, "a//b", token.NAME, token.IDIV, token.NAME)
	assertKinds(t, "a/b", token.NAME, token.SLASH, token.NAME)
	assertKinds(t, "...a", token.ELLIPSIS, token.NAME)
	assertKinds(t, "..a", token.CONCAT, token.NAME)
	assertKinds(t, ".a", token.DOT, token.NAME)
}

func TestNewlineNormalization(t *testing.T) {
	// \r\n and \n\r both collapse into a single NEWLINE token, never two.
	assertKinds(t, "a\r\nb", token.NAME, token.NEWLINE, token.NAME)
	assertKinds(t, "a\n\rb", token.NAME, token.NEWLINE, token.NAME)
	assertKinds(t, "a\nb", token.NAME, token.NEWLINE, token.NAME)
	assertKinds(t, "a\rb", token.NAME, token.NEWLINE, token.NAME)
}

func TestPositionsAreOneBased(t *testing.T) {
	toks := scanAll(t, "foo bar")
	if toks[0].Position != (token.Position{Line: 1, Column: 1}) {
		t.Errorf("foo position = %v", toks[0].Position)
	}
	if toks[1].Position != (token.Position{Line: 1, Column: 5}) {
		t.Errorf("bar position = %v", toks[1].Position)
	}
}

func TestPositionAdvancesAcrossLines(t *testing.T) {
	toks := scanAll(t, "a\nbc")
	// toks: NAME(a) NEWLINE NAME(bc) EOF
	name2 := toks[2]
	if name2.Kind != token.NAME || name2.Position != (token.Position{Line: 2, Column: 1}) {
		t.Errorf("second name = %+v; want NAME at 2:1", name2)
	}
}

func TestIllegalCharacter(t *testing.T) {
	s := New(bytes.NewReader([]byte("@")))
	_, err := s.Scan()
	var scanErr *Error
	if !errors.As(err, &scanErr) {
		t.Fatalf("Scan(%q) error = %v; want *Error", "@", err)
	}
}

func TestScanAfterErrorKeepsReturningError(t *testing.T) {
	s := New(bytes.NewReader([]byte("@x")))
	_, err1 := s.Scan()
	if err1 == nil {
		t.Fatal("first Scan returned nil error")
	}
	_, err2 := s.Scan()
	if err2 != err1 {
		t.Errorf("second Scan error = %v; want the same error %v", err2, err1)
	}
}

func TestEOFAtEmptyInput(t *testing.T) {
	assertKinds(t, "")
}
