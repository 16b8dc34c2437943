package css

// TokenStream wraps a Tokenizer with one token of lookahead, nested block
// scoping and cheap save/restore for speculative parsing.
//
// The tokenizer's block stack is mutated when a token is peeked, not when it
// is consumed. Restore relies on this: undoing a lookahead must also undo the
// block mutation it caused.
type TokenStream struct {
	tz *Tokenizer

	next         Token
	hasLookahead bool
	// offset is the source position of the last fully consumed token's end.
	offset int
	// boundaries is a bitmask of token types that currently act as EOF.
	boundaries uint64
}

// NewTokenStream returns a stream reading from s.
func NewTokenStream(s string) *TokenStream {
	return &TokenStream{tz: NewTokenizer(s)}
}

// StreamState is a save point returned by Save.
type StreamState struct {
	offset int
	depth  int
}

func (s *TokenStream) ensureLookahead() {
	if s.hasLookahead {
		return
	}
	s.offset = s.tz.Offset()
	s.next = s.tz.Next()
	s.hasLookahead = true
}

// Offset returns the source position of the next unconsumed token,
// including any comments preceding it.
func (s *TokenStream) Offset() int {
	if s.hasLookahead {
		return s.offset
	}
	return s.tz.Offset()
}

// SetUnicodeRange turns unicode-range tokens on or off for the tokens not
// yet consumed and returns the previous setting. A unicode-range lookahead
// is re-read when they're turned off.
func (s *TokenStream) SetUnicodeRange(on bool) bool {
	prev := s.tz.SetUnicodeRange(on)
	if !on && s.hasLookahead && s.next.Type == TokenUnicodeRange {
		s.hasLookahead = false
		s.tz.Restore(s.offset)
	}
	return prev
}

// AtEnd reports whether the stream is at EOF, at the end of the current
// block, or at an active boundary.
func (s *TokenStream) AtEnd() bool {
	s.ensureLookahead()
	return s.next.Type == TokenEOF ||
		s.next.Block == BlockEnd ||
		s.boundaries&(1<<s.next.Type) != 0
}

// Peek returns the next token without consuming it. An EOF token is
// returned when the stream is AtEnd.
func (s *TokenStream) Peek() Token {
	if s.AtEnd() {
		return Token{Type: TokenEOF, Pos: s.next.Pos}
	}
	return s.next
}

func (s *TokenStream) consumeRaw() Token {
	s.ensureLookahead()
	t := s.next
	s.hasLookahead = false
	s.offset = s.tz.Offset()
	return t
}

// Consume consumes and returns the next token. At the end of the stream it
// returns EOF and consumes nothing. Consuming a block start skips the whole
// block; use EnterBlock or ConsumeComponentValue to read its contents.
func (s *TokenStream) Consume() Token {
	if s.AtEnd() {
		return Token{Type: TokenEOF, Pos: s.next.Pos}
	}
	t := s.consumeRaw()
	if t.Block == BlockStart {
		s.skipToBlockEnd(s.tz.BlockDepth())
	}
	return t
}

// ConsumeIncludingWhitespace consumes the next token and any whitespace
// following it.
func (s *TokenStream) ConsumeIncludingWhitespace() Token {
	t := s.Consume()
	s.ConsumeWhitespace()
	return t
}

// ConsumeWhitespace skips whitespace tokens.
func (s *TokenStream) ConsumeWhitespace() {
	for s.Peek().Type == TokenWhitespace {
		s.consumeRaw()
	}
}

// ConsumeComponentValue consumes a single token, or an entire block when the
// next token starts one, and returns the consumed tokens. An unterminated
// block ends at EOF.
//
// https://drafts.csswg.org/css-syntax-3/#consume-component-value
func (s *TokenStream) ConsumeComponentValue() []Token {
	if s.AtEnd() {
		return nil
	}
	t := s.consumeRaw()
	toks := []Token{t}
	if t.Block != BlockStart {
		return toks
	}
	depth := s.tz.BlockDepth()
	for {
		s.ensureLookahead()
		n := s.next
		if n.Type == TokenEOF {
			return toks
		}
		s.consumeRaw()
		toks = append(toks, n)
		if n.Block == BlockEnd && s.tz.BlockDepth() == depth-1 {
			return toks
		}
	}
}

// ConsumeUntil consumes component values until the next token outside any
// block has one of the given types, or the stream is at its end.
func (s *TokenStream) ConsumeUntil(types ...TokenType) []Token {
	var mask uint64
	for _, t := range types {
		mask |= 1 << t
	}
	var toks []Token
	for !s.AtEnd() && mask&(1<<s.next.Type) == 0 {
		toks = append(toks, s.ConsumeComponentValue()...)
	}
	return toks
}

// skipToBlockEnd consumes tokens until the block entered at depth is closed.
func (s *TokenStream) skipToBlockEnd(depth int) {
	for {
		s.ensureLookahead()
		n := s.next
		if n.Type == TokenEOF {
			return
		}
		s.consumeRaw()
		if n.Block == BlockEnd && s.tz.BlockDepth() == depth-1 {
			return
		}
	}
}

// Save returns a save point for the current position. The save point is
// only valid until a block boundary is crossed.
func (s *TokenStream) Save() StreamState {
	s.ensureLookahead()
	return StreamState{offset: s.offset, depth: s.depthBeforeLookahead()}
}

// depthBeforeLookahead is the block depth with the lookahead's mutation of
// the block stack undone.
func (s *TokenStream) depthBeforeLookahead() int {
	d := s.tz.BlockDepth()
	if s.hasLookahead {
		switch s.next.Block {
		case BlockStart:
			d--
		case BlockEnd:
			d++
		}
	}
	return d
}

// Restore rewinds the stream to a save point. Restoring without any
// consumption since Save is a no-op. Restoring across a block boundary is a
// programming error and panics.
func (s *TokenStream) Restore(st StreamState) {
	if s.hasLookahead && s.offset == st.offset {
		return
	}
	if s.hasLookahead && s.next.Type == TokenEOF && s.tz.BlockDepth() > st.depth {
		// Blocks left open at EOF are implicitly closed.
		s.tz.blocks = s.tz.blocks[:st.depth]
	}
	if s.depthBeforeLookahead() != st.depth {
		panic("css: token stream restored across a block boundary")
	}
	if s.hasLookahead {
		switch s.next.Block {
		case BlockStart:
			s.tz.popBlock()
		case BlockEnd:
			s.tz.pushBlock(s.next.Type)
		}
	}
	s.hasLookahead = false
	s.tz.Restore(st.offset)
	s.ensureLookahead()
}

// Boundary makes a token type act as EOF until Close is called.
type Boundary struct {
	s    *TokenStream
	prev uint64
}

// Boundary adds t to the set of token types treated as EOF. Boundaries don't
// apply inside nested blocks.
//
//	defer s.Boundary(TokenCurlyOpen).Close()
func (s *TokenStream) Boundary(t TokenType) Boundary {
	b := Boundary{s: s, prev: s.boundaries}
	s.boundaries |= 1 << t
	return b
}

// Close restores the boundaries active before the Boundary was created.
func (b Boundary) Close() {
	b.s.boundaries = b.prev
}

// BlockGuard scopes parsing to the contents of a block. Close skips whatever
// the caller left unconsumed, leaving the stream after the block end.
type BlockGuard struct {
	s      *TokenStream
	prev   uint64
	depth  int
	closed bool
}

// EnterBlock consumes the block start at the head of the stream. It panics
// if the next token doesn't start a block.
func (s *TokenStream) EnterBlock() *BlockGuard {
	s.ensureLookahead()
	if s.next.Block != BlockStart {
		panic("css: EnterBlock called without a block start")
	}
	g := &BlockGuard{s: s, prev: s.boundaries}
	s.consumeRaw()
	g.depth = s.tz.BlockDepth()
	s.boundaries = 0
	return g
}

// Close consumes the remainder of the block.
func (g *BlockGuard) Close() {
	if g.closed {
		return
	}
	g.closed = true
	g.s.skipToBlockEnd(g.depth)
	g.s.boundaries = g.prev
}

// RestoringBlockGuard is a BlockGuard that rewinds the stream to before the
// block start unless the block was consumed completely.
type RestoringBlockGuard struct {
	BlockGuard
	state    StreamState
	released bool
}

// EnterRestoringBlock is like EnterBlock, but Close restores the stream to
// the block start unless Release succeeded.
func (s *TokenStream) EnterRestoringBlock() *RestoringBlockGuard {
	st := s.Save()
	return &RestoringBlockGuard{BlockGuard: *s.EnterBlock(), state: st}
}

// Release commits the block when the stream is exactly at its end, consuming
// the block end. It reports whether it did.
func (g *RestoringBlockGuard) Release() bool {
	if g.closed {
		return g.released
	}
	s := g.s
	s.ensureLookahead()
	if s.next.Type != TokenEOF && s.next.Block != BlockEnd {
		return false
	}
	if s.next.Type != TokenEOF {
		s.consumeRaw()
	}
	s.boundaries = g.prev
	g.closed, g.released = true, true
	return true
}

// Close restores the stream to before the block unless Release succeeded.
func (g *RestoringBlockGuard) Close() {
	if g.closed {
		return
	}
	g.BlockGuard.Close()
	g.s.Restore(g.state)
}
