package lexer

import "testing"

func kinds(toks []Token) []Kind {
	ks := make([]Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestIdentityAdditionTokens(t *testing.T) {
	toks, errs := NewScanner("function add(a, b) { return a + b; }", "t").Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []Kind{
		KwFunction, Ident, LParen, Ident, Comma, Ident, RParen, LBrace,
		KwReturn, Ident, Plus, Ident, Semicolon, RBrace, EOF,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("token count mismatch: got %d want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestGreedyOperatorMatching(t *testing.T) {
	toks, errs := NewScanner("a === b !== c == d != e", "t").Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []Kind{Ident, EqEqEq, Ident, NotEqEq, Ident, EqEq, Ident, NotEq, Ident, EOF}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("token count mismatch: got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestUnterminatedStringProducesLexError(t *testing.T) {
	_, errs := NewScanner(`"unterminated`, "t").Scan()
	if len(errs) == 0 {
		t.Fatalf("expected a LexError for unterminated string")
	}
}

func TestUnrecognizedCharacterProducesLexError(t *testing.T) {
	_, errs := NewScanner("a ^ b", "t").Scan()
	if len(errs) == 0 {
		t.Fatalf("expected a LexError for unrecognized character")
	}
}

func TestNumberWithFractionRequiresDigitAfterDot(t *testing.T) {
	toks, _ := NewScanner("1.5 2.", "t").Scan()
	if toks[0].Kind != Number || toks[0].Value != "1.5" {
		t.Fatalf("expected '1.5' as a single number token, got %+v", toks[0])
	}
	if toks[1].Kind != Number || toks[1].Value != "2" {
		t.Fatalf("expected trailing dot to be rejected, leaving '2', got %+v", toks[1])
	}
	if toks[2].Kind != Dot {
		t.Fatalf("expected the rejected '.' to surface as its own token, got %+v", toks[2])
	}
}

func TestLineAndBlockCommentsAreSkipped(t *testing.T) {
	toks, errs := NewScanner("a // comment\n/* block\ncomment */ b", "t").Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []Kind{Ident, Ident, EOF}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("token count mismatch: got %v", got)
	}
}

func TestKeywordTableOverridesIdentifiers(t *testing.T) {
	toks, _ := NewScanner("function functiona", "t").Scan()
	if toks[0].Kind != KwFunction {
		t.Fatalf("expected 'function' to lex as keyword")
	}
	if toks[1].Kind != Ident {
		t.Fatalf("expected 'functiona' to lex as identifier, got %s", toks[1].Kind)
	}
}

func TestStringEscapes(t *testing.T) {
	toks, errs := NewScanner(`"a\nb" 'c\'d'`, "t").Scan()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if toks[0].Value != "a\nb" {
		t.Fatalf("expected escaped newline, got %q", toks[0].Value)
	}
	if toks[1].Value != "c'd" {
		t.Fatalf("expected escaped quote, got %q", toks[1].Value)
	}
}
