package css

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func types(toks []Token) []TokenType {
	var out []TokenType
	for _, t := range toks {
		out = append(out, t.Type)
	}
	return out
}

func TestTokenStreamConsume(t *testing.T) {
	s := NewTokenStream("a (b c) d")
	var got []string
	for !s.AtEnd() {
		got = append(got, s.ConsumeIncludingWhitespace().Raw)
	}
	// Consuming a block start skips the block.
	want := []string{"a", "(", "d"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Consume returned diff (-want, +got): %s", diff)
	}
	if got := s.Consume(); got.Type != TokenEOF {
		t.Errorf("Consume at end = %v, want EOF", got)
	}
}

func TestTokenStreamPeekDoesNotConsume(t *testing.T) {
	s := NewTokenStream("a b")
	if s.Peek().Raw != "a" || s.Peek().Raw != "a" {
		t.Fatalf("Peek consumed a token")
	}
	if got := s.Offset(); got != 0 {
		t.Errorf("Offset after Peek = %d, want 0", got)
	}
	s.Consume()
	if got := s.Offset(); got != 1 {
		t.Errorf("Offset after Consume = %d, want 1", got)
	}
}

func TestTokenStreamComponentValue(t *testing.T) {
	s := NewTokenStream("f(a, [b]) c")
	got := s.ConsumeComponentValue()
	want := []TokenType{
		TokenFunction, TokenIdent, TokenComma, TokenWhitespace,
		TokenBracketOpen, TokenIdent, TokenBracketClose, TokenParenClose,
	}
	if diff := cmp.Diff(want, types(got)); diff != "" {
		t.Errorf("ConsumeComponentValue returned diff (-want, +got): %s", diff)
	}
	s.ConsumeWhitespace()
	if got := s.Peek().Raw; got != "c" {
		t.Errorf("next token = %q, want %q", got, "c")
	}

	unterminated := NewTokenStream("(a b")
	if got := len(unterminated.ConsumeComponentValue()); got != 4 {
		t.Errorf("unterminated block consumed %d tokens, want 4", got)
	}
}

func TestTokenStreamConsumeUntil(t *testing.T) {
	s := NewTokenStream("a (b, c), d; e")
	got := s.ConsumeUntil(TokenComma, TokenSemicolon)
	if diff := cmp.Diff("a (b, c)", SerializeTokens(got)); diff != "" {
		t.Errorf("ConsumeUntil returned diff (-want, +got): %s", diff)
	}
	if got := s.Consume().Type; got != TokenComma {
		t.Errorf("stopped at %v, want comma", got)
	}
}

func TestTokenStreamSaveRestore(t *testing.T) {
	s := NewTokenStream("a b c")
	s.ConsumeIncludingWhitespace()
	st := s.Save()
	s.ConsumeIncludingWhitespace()
	s.ConsumeIncludingWhitespace()
	if !s.AtEnd() {
		t.Fatalf("expected end of stream")
	}
	s.Restore(st)
	if got := s.Peek().Raw; got != "b" {
		t.Errorf("after Restore next token = %q, want %q", got, "b")
	}

	// Restoring without consuming is a no-op.
	st = s.Save()
	s.Restore(st)
	if got := s.Peek().Raw; got != "b" {
		t.Errorf("after no-op Restore next token = %q, want %q", got, "b")
	}
}

func TestTokenStreamRestoreUndoesLookahead(t *testing.T) {
	s := NewTokenStream("a (b) c")
	s.Consume()
	st := s.Save()
	// Skipping the whitespace peeks the block start, which pushes a block.
	// Restoring must pop it.
	s.ConsumeWhitespace()
	s.Restore(st)
	if got := s.Peek().Type; got != TokenWhitespace {
		t.Fatalf("after Restore next token = %v, want whitespace", got)
	}
	s.ConsumeWhitespace()
	g := s.EnterBlock()
	if got := s.Consume().Raw; got != "b" {
		t.Errorf("block contents = %q, want %q", got, "b")
	}
	g.Close()
	s.ConsumeWhitespace()
	if got := s.Consume().Raw; got != "c" {
		t.Errorf("after block = %q, want %q", got, "c")
	}
}

func TestTokenStreamRestoreAcrossBlockPanics(t *testing.T) {
	s := NewTokenStream("(a b)")
	st := s.Save()
	s.EnterBlock()
	s.Consume()
	defer func() {
		if recover() == nil {
			t.Errorf("Restore across a block boundary didn't panic")
		}
	}()
	s.Restore(st)
}

func TestTokenStreamBoundary(t *testing.T) {
	s := NewTokenStream("a b, (c, d), e")
	b := s.Boundary(TokenComma)
	var got []string
	for !s.AtEnd() {
		got = append(got, s.Consume().Raw)
	}
	if diff := cmp.Diff([]string{"a", " ", "b"}, got); diff != "" {
		t.Errorf("tokens before boundary returned diff (-want, +got): %s", diff)
	}
	if got := s.Peek().Type; got != TokenEOF {
		t.Errorf("Peek at boundary = %v, want EOF", got)
	}

	b.Close()
	s.Consume()
	s.ConsumeWhitespace()

	// Boundaries don't apply inside blocks.
	b = s.Boundary(TokenComma)
	g := s.EnterBlock()
	got = nil
	for !s.AtEnd() {
		got = append(got, s.Consume().Raw)
	}
	if diff := cmp.Diff([]string{"c", ",", " ", "d"}, got); diff != "" {
		t.Errorf("tokens in block returned diff (-want, +got): %s", diff)
	}
	g.Close()
	if !s.AtEnd() || s.Peek().Type != TokenEOF {
		t.Errorf("boundary not restored after leaving the block")
	}
	b.Close()
	if got := s.Consume().Type; got != TokenComma {
		t.Errorf("after closing the boundary got %v, want comma", got)
	}
}

func TestBlockGuardSkipsRemainder(t *testing.T) {
	s := NewTokenStream("[a b (c)] d")
	g := s.EnterBlock()
	s.Consume()
	g.Close()
	g.Close()
	s.ConsumeWhitespace()
	if got := s.Consume().Raw; got != "d" {
		t.Errorf("after block = %q, want %q", got, "d")
	}
}

func TestEnterBlockPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("EnterBlock on an ident didn't panic")
		}
	}()
	NewTokenStream("a").EnterBlock()
}

func TestRestoringBlockGuard(t *testing.T) {
	s := NewTokenStream("(a) b")
	g := s.EnterRestoringBlock()
	s.Consume()
	if !g.Release() {
		t.Fatalf("Release at block end failed")
	}
	g.Close()
	s.ConsumeWhitespace()
	if got := s.Consume().Raw; got != "b" {
		t.Errorf("after released block = %q, want %q", got, "b")
	}

	s = NewTokenStream("(a b) c")
	g = s.EnterRestoringBlock()
	s.Consume()
	if g.Release() {
		t.Fatalf("Release with tokens left succeeded")
	}
	g.Close()
	if got := s.Peek().Type; got != TokenParenOpen {
		t.Errorf("after unreleased block next token = %v, want (", got)
	}
	if got := s.Offset(); got != 0 {
		t.Errorf("after unreleased block offset = %d, want 0", got)
	}
}

func TestRestoringBlockGuardAtEOF(t *testing.T) {
	s := NewTokenStream("a (b")
	s.ConsumeIncludingWhitespace()
	g := s.EnterRestoringBlock()
	g.Close()
	if got := s.Peek().Type; got != TokenParenOpen {
		t.Errorf("next token = %v, want (", got)
	}
}

func TestTokenStreamUnicodeRange(t *testing.T) {
	s := NewTokenStream("u+a b")
	if got := s.Peek().Type; got != TokenUnicodeRange {
		t.Fatalf("Peek() = %v, want a unicode-range token", got)
	}
	// The lookahead is read again.
	prev := s.SetUnicodeRange(false)
	var got []string
	for !s.AtEnd() {
		got = append(got, s.Consume().Raw)
	}
	s.SetUnicodeRange(prev)
	want := []string{"u", "+", "a", " ", "b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens after SetUnicodeRange(false) returned diff (-want, +got): %s", diff)
	}
}
