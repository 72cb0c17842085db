package lexer

import "testing"

func kinds(t []Token) []Kind {
	ks := make([]Kind, len(t))
	for i, tok := range t {
		ks[i] = tok.Kind
	}
	return ks
}

func TestTokenizeBasicDecl(t *testing.T) {
	toks, err := Tokenize("t.cpp", "int x = 1 + 2;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Kind{KwInt, Identifier, Assign, IntegerLiteral, Plus, IntegerLiteral, Semi, EOF}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMaximalMunchShiftVsTemplateCloser(t *testing.T) {
	toks, err := Tokenize("t.cpp", "a >> b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[1].Kind != RShift {
		t.Fatalf("expected a single RShift token for '>>', got %v", toks[1].Kind)
	}
	if !IsTemplateCloser(RShift) {
		t.Fatalf("RShift must be reported as a template closer")
	}
}

func TestAlternativeTokens(t *testing.T) {
	toks, err := Tokenize("t.cpp", "a and b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[1].Kind != AmpAmp {
		t.Fatalf("'and' must lex as AmpAmp, got %v", toks[1].Kind)
	}
}

func TestRawStringLiteral(t *testing.T) {
	toks, err := Tokenize("t.cpp", `R"(hello "world")"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Kind != StringLiteral {
		t.Fatalf("expected a string literal, got %v (%q)", toks[0].Kind, toks[0].Text)
	}
}

func TestRawStringWithDelimiter(t *testing.T) {
	toks, err := Tokenize("t.cpp", `R"delim(a)not-the-end)delim"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Kind != StringLiteral {
		t.Fatalf("expected a string literal, got %v", toks[0].Kind)
	}
}

func TestIntegerSuffixesAndSeparators(t *testing.T) {
	toks, err := Tokenize("t.cpp", "1'000'000ULL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Kind != IntegerLiteral {
		t.Fatalf("expected integer literal, got %v", toks[0].Kind)
	}
	if toks[0].IntValue != 1000000 {
		t.Fatalf("digit separators should be stripped: got %d", toks[0].IntValue)
	}
	if !toks[0].IsUnsigned || toks[0].IsLong != 2 {
		t.Fatalf("expected unsigned long long suffix, got unsigned=%v long=%d", toks[0].IsUnsigned, toks[0].IsLong)
	}
}

func TestHexAndBinaryLiterals(t *testing.T) {
	toks, err := Tokenize("t.cpp", "0xFF 0b1010")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].IntValue != 0xFF {
		t.Fatalf("hex literal: got %d", toks[0].IntValue)
	}
	if toks[1].IntValue != 0b1010 {
		t.Fatalf("binary literal: got %d", toks[1].IntValue)
	}
}

func TestOversizedIntegerLiteralIsLexError(t *testing.T) {
	_, err := Tokenize("t.cpp", "99999999999999999999999999")
	if err == nil {
		t.Fatalf("expected an error for an integer literal too large for any integer type")
	}
}

func TestFloatLiteral(t *testing.T) {
	toks, err := Tokenize("t.cpp", "3.14f")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Kind != FloatLiteral || !toks[0].IsFloat32 {
		t.Fatalf("expected a float32 literal, got %+v", toks[0])
	}
}

func TestLineAndBlockComments(t *testing.T) {
	toks, err := Tokenize("t.cpp", "int x; // trailing\n/* block */ int y;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Kind{KwInt, Identifier, Semi, KwInt, Identifier, Semi, EOF}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
