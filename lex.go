package css

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Tokenizer implements tokenization for CSS. The algorithm follows CSS Syntax
// Level 3. Tokenization never fails: malformed input produces
// bad-string, bad-url or delim tokens instead.
//
// The tokenizer also tracks a stack of open blocks so that every token can
// be tagged as starting or ending a block.
//
// https://www.w3.org/TR/css-syntax-3/#tokenization
type Tokenizer struct {
	s   string
	pos int
	// blocks holds the closing token type expected for each open block.
	blocks []TokenType
	// noUnicodeRange reads "u+a" as an ident, a '+' delim and an ident.
	noUnicodeRange bool
}

// NewTokenizer returns a tokenizer reading from s.
func NewTokenizer(s string) *Tokenizer {
	return &Tokenizer{s: s}
}

// TokenizeToEOF returns every token in s, excluding comments and the final
// EOF token.
func TokenizeToEOF(s string) []Token {
	t := NewTokenizer(s)
	var toks []Token
	for {
		tok := t.Next()
		if tok.Type == TokenEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

// TokenizeSingle returns the first token of s.
func TokenizeSingle(s string) Token {
	return NewTokenizer(s).Next()
}

// Offset returns the byte offset of the next token.
func (l *Tokenizer) Offset() int {
	return l.pos
}

// Restore moves the tokenizer to a byte offset previously returned by
// Offset. The block stack is left untouched: callers that re-read tokens are
// responsible for undoing the block mutations of those tokens.
func (l *Tokenizer) Restore(offset int) {
	l.pos = offset
}

// SetUnicodeRange turns the lexing of unicode-range tokens on or off and
// returns the previous setting. It's on by default. Selectors turn it off,
// since "u+a" there is a type selector, a combinator and a type selector.
func (l *Tokenizer) SetUnicodeRange(on bool) bool {
	prev := !l.noUnicodeRange
	l.noUnicodeRange = !on
	return prev
}

// BlockDepth returns the number of currently open blocks.
func (l *Tokenizer) BlockDepth() int {
	return len(l.blocks)
}

func (l *Tokenizer) pushBlock(closer TokenType) {
	l.blocks = append(l.blocks, closer)
}

func (l *Tokenizer) popBlock() {
	l.blocks = l.blocks[:len(l.blocks)-1]
}

// Next returns the next token, skipping comments.
func (l *Tokenizer) Next() Token {
	for {
		t := l.NextWithComments()
		if t.Type != TokenComment {
			return t
		}
	}
}

// NextWithComments returns the next token, including comment tokens.
func (l *Tokenizer) NextWithComments() Token {
	t := l.next()
	switch t.Type {
	case TokenFunction, TokenParenOpen, TokenBracketOpen, TokenCurlyOpen:
		l.pushBlock(t.closer())
		t.Block = BlockStart
	case TokenParenClose, TokenBracketClose, TokenCurlyClose:
		// A closer that doesn't match the innermost open block is an
		// ordinary token.
		if n := len(l.blocks); n > 0 && l.blocks[n-1] == t.Type {
			l.popBlock()
			t.Block = BlockEnd
		}
	}
	return t
}

const eof = 0

// decode returns the code point at pos after input preprocessing: CRLF, CR
// and FF become LF, NUL becomes U+FFFD. The width is the number of source
// bytes consumed.
func (l *Tokenizer) decode(pos int) (rune, int) {
	if pos >= len(l.s) {
		return eof, 0
	}
	c := l.s[pos]
	if c < utf8.RuneSelf {
		switch c {
		case '\r':
			if pos+1 < len(l.s) && l.s[pos+1] == '\n' {
				return '\n', 2
			}
			return '\n', 1
		case '\f':
			return '\n', 1
		case 0:
			return utf8.RuneError, 1
		}
		return rune(c), 1
	}
	return utf8.DecodeRuneInString(l.s[pos:])
}

// verbatim reports whether the code point at pos decodes to the same bytes
// as the source, allowing names to be sliced rather than copied.
func (l *Tokenizer) verbatim(pos int) bool {
	c := l.s[pos]
	if c == 0 {
		return false
	}
	if c < utf8.RuneSelf {
		return true
	}
	r, n := utf8.DecodeRuneInString(l.s[pos:])
	return !(r == utf8.RuneError && n == 1)
}

func (l *Tokenizer) peek() rune {
	r, _ := l.decode(l.pos)
	return r
}

func (l *Tokenizer) peekN(n int) rune {
	var r rune
	pos := l.pos
	for i := 0; i <= n; i++ {
		var w int
		r, w = l.decode(pos)
		if w == 0 {
			return eof
		}
		pos += w
	}
	return r
}

func (l *Tokenizer) pop() rune {
	r, n := l.decode(l.pos)
	l.pos += n
	return r
}

func (l *Tokenizer) popN(n int) {
	for i := 0; i < n; i++ {
		l.pop()
	}
}

func (l *Tokenizer) token(typ TokenType, start int) Token {
	return Token{Type: typ, Pos: start, Raw: l.s[start:l.pos]}
}

func (l *Tokenizer) delim(r rune, start int) Token {
	t := l.token(TokenDelim, start)
	t.Delim = r
	return t
}

// https://www.w3.org/TR/css-syntax-3/#consume-token
func (l *Tokenizer) next() Token {
	start := l.pos
	r := l.peek()

	switch {
	case r == eof:
		return l.token(TokenEOF, start)
	case isWhitespace(r):
		for isWhitespace(l.peek()) {
			l.pop()
		}
		return l.token(TokenWhitespace, start)
	case r == '/' && l.peekN(1) == '*':
		return l.consumeComment(start)
	case isDigit(r):
		return l.consumeNumericToken(start)
	case !l.noUnicodeRange && (r == 'u' || r == 'U') && l.peekN(1) == '+' && (isHex(l.peekN(2)) || l.peekN(2) == '?'):
		return l.consumeUnicodeRange(start)
	case isNameStart(r):
		return l.consumeIdentLikeToken(start)
	}

	l.pop()
	switch r {
	case '"', '\'':
		return l.consumeString(r, start)
	case '#':
		if isName(l.peek()) || isValidEscape(l.peek(), l.peekN(1)) {
			t := Token{Type: TokenHash}
			if isIdentStart(l.peek(), l.peekN(1), l.peekN(2)) {
				t.Hash = HashID
			}
			t.Value = l.consumeName()
			t.Pos, t.Raw = start, l.s[start:l.pos]
			return t
		}
	case '(':
		return l.token(TokenParenOpen, start)
	case ')':
		return l.token(TokenParenClose, start)
	case '[':
		return l.token(TokenBracketOpen, start)
	case ']':
		return l.token(TokenBracketClose, start)
	case '{':
		return l.token(TokenCurlyOpen, start)
	case '}':
		return l.token(TokenCurlyClose, start)
	case ',':
		return l.token(TokenComma, start)
	case ':':
		return l.token(TokenColon, start)
	case ';':
		return l.token(TokenSemicolon, start)
	case '+', '.':
		if isNumStart(r, l.peek(), l.peekN(1)) {
			l.pos = start
			return l.consumeNumericToken(start)
		}
	case '-':
		if isNumStart(r, l.peek(), l.peekN(1)) {
			l.pos = start
			return l.consumeNumericToken(start)
		}
		if l.peek() == '-' && l.peekN(1) == '>' {
			l.popN(2)
			return l.token(TokenCDC, start)
		}
		if isIdentStart(r, l.peek(), l.peekN(1)) {
			l.pos = start
			return l.consumeIdentLikeToken(start)
		}
	case '<':
		if l.peek() == '!' && l.peekN(1) == '-' && l.peekN(2) == '-' {
			l.popN(3)
			return l.token(TokenCDO, start)
		}
	case '@':
		if isIdentStart(l.peek(), l.peekN(1), l.peekN(2)) {
			name := l.consumeName()
			t := l.token(TokenAtKeyword, start)
			t.Value = name
			return t
		}
	case '\\':
		if isValidEscape(r, l.peek()) {
			l.pos = start
			return l.consumeIdentLikeToken(start)
		}
	case '~':
		if l.peek() == '=' {
			l.pop()
			return l.token(TokenIncludeMatch, start)
		}
	case '|':
		switch l.peek() {
		case '=':
			l.pop()
			return l.token(TokenDashMatch, start)
		case '|':
			l.pop()
			return l.token(TokenColumn, start)
		}
	case '^':
		if l.peek() == '=' {
			l.pop()
			return l.token(TokenPrefixMatch, start)
		}
	case '$':
		if l.peek() == '=' {
			l.pop()
			return l.token(TokenSuffixMatch, start)
		}
	case '*':
		if l.peek() == '=' {
			l.pop()
			return l.token(TokenSubstringMatch, start)
		}
	}
	return l.delim(r, start)
}

// https://www.w3.org/TR/css-syntax-3/#consume-comment
func (l *Tokenizer) consumeComment(start int) Token {
	l.popN(2)
	if i := strings.Index(l.s[l.pos:], "*/"); i >= 0 {
		l.pos += i + 2
	} else {
		l.pos = len(l.s)
	}
	return l.token(TokenComment, start)
}

// https://www.w3.org/TR/css-syntax-3/#consume-a-string-token
func (l *Tokenizer) consumeString(quote rune, start int) Token {
	valueStart := l.pos
	var (
		b     strings.Builder
		owned bool
	)
	own := func() {
		if !owned {
			owned = true
			b.WriteString(l.s[valueStart:l.pos])
		}
	}
	value := func() string {
		if owned {
			return b.String()
		}
		return l.s[valueStart:l.pos]
	}
	for {
		r, n := l.decode(l.pos)
		switch {
		case r == quote:
			v := value()
			l.pos += n
			t := l.token(TokenString, start)
			t.Value = v
			return t
		case r == eof:
			t := l.token(TokenString, start)
			t.Value = value()
			return t
		case r == '\n':
			// The newline is not consumed.
			t := l.token(TokenBadString, start)
			t.Value = value()
			return t
		case r == '\\':
			own()
			next, w := l.decode(l.pos + 1)
			switch {
			case next == eof:
				l.pos++
			case next == '\n':
				// Line continuation.
				l.pos += 1 + w
			default:
				l.pos++
				b.WriteRune(l.consumeEscape())
			}
		default:
			if !l.verbatim(l.pos) {
				own()
			}
			if owned {
				b.WriteRune(r)
			}
			l.pos += n
		}
	}
}

// consumeEscape is called after the '\' has been consumed.
//
// https://www.w3.org/TR/css-syntax-3/#consume-an-escaped-code-point
func (l *Tokenizer) consumeEscape() rune {
	r := l.peek()
	if r == eof {
		return utf8.RuneError
	}
	if !isHex(r) {
		l.pop()
		return r
	}
	var v rune
	for n := 0; n < 6 && isHex(l.peek()); n++ {
		v = v*16 + hexValue(l.pop())
	}
	if isWhitespace(l.peek()) {
		l.pop()
	}
	if v == 0 || (0xD800 <= v && v <= 0xDFFF) || v > utf8.MaxRune {
		return utf8.RuneError
	}
	return v
}

// consumeName returns a slice of the source when the name contains no
// escapes, and an owned copy otherwise.
//
// https://www.w3.org/TR/css-syntax-3/#consume-a-name
func (l *Tokenizer) consumeName() string {
	start := l.pos
	for {
		r, n := l.decode(l.pos)
		if isName(r) && l.verbatim(l.pos) {
			l.pos += n
			continue
		}
		if isName(r) || isValidEscape(r, l.peekN(1)) {
			break
		}
		return l.s[start:l.pos]
	}

	var b strings.Builder
	b.WriteString(l.s[start:l.pos])
	for {
		r := l.peek()
		if isName(r) {
			l.pop()
			b.WriteRune(r)
			continue
		}
		if isValidEscape(r, l.peekN(1)) {
			l.pop()
			b.WriteRune(l.consumeEscape())
			continue
		}
		return b.String()
	}
}

// https://www.w3.org/TR/css-syntax-3/#consume-a-numeric-token
func (l *Tokenizer) consumeNumericToken(start int) Token {
	repr, typ, sign := l.consumeNumber()
	num, _ := strconv.ParseFloat(repr, 64)

	var t Token
	switch {
	case isIdentStart(l.peek(), l.peekN(1), l.peekN(2)):
		unit := l.consumeName()
		t = l.token(TokenDimension, start)
		t.Unit = unit
	case l.peek() == '%':
		l.pop()
		t = l.token(TokenPercentage, start)
	default:
		t = l.token(TokenNumber, start)
	}
	t.Value, t.Num, t.NumType, t.Sign = repr, num, typ, sign
	return t
}

// https://www.w3.org/TR/css-syntax-3/#consume-a-number
func (l *Tokenizer) consumeNumber() (string, NumericType, Sign) {
	start := l.pos
	typ, sign := Integer, NoSign
	switch l.peek() {
	case '+':
		sign = PlusSign
		l.pop()
	case '-':
		sign = MinusSign
		l.pop()
	}

	for isDigit(l.peek()) {
		l.pop()
	}

	if l.peek() == '.' && isDigit(l.peekN(1)) {
		typ = Number
		l.popN(2)
		for isDigit(l.peek()) {
			l.pop()
		}
	}

	r1 := l.peek()
	r2 := l.peekN(1)
	r3 := l.peekN(2)

	if r1 == 'E' || r1 == 'e' {
		if isDigit(r2) {
			typ = Number
			l.popN(2)
			for isDigit(l.peek()) {
				l.pop()
			}
		} else if (r2 == '+' || r2 == '-') && isDigit(r3) {
			typ = Number
			l.popN(3)
			for isDigit(l.peek()) {
				l.pop()
			}
		}
	}
	return l.s[start:l.pos], typ, sign
}

// https://www.w3.org/TR/css-syntax-3/#consume-an-ident-like-token
func (l *Tokenizer) consumeIdentLikeToken(start int) Token {
	name := l.consumeName()

	if equalFold(name, "url") && l.peek() == '(' {
		l.pop()
		for isWhitespace(l.peek()) && isWhitespace(l.peekN(1)) {
			l.pop()
		}
		r1, r2 := l.peek(), l.peekN(1)
		if isQuote(r1) || (isWhitespace(r1) && isQuote(r2)) {
			t := l.token(TokenFunction, start)
			t.Value = name
			return t
		}
		return l.consumeURL(start)
	}

	if l.peek() == '(' {
		l.pop()
		t := l.token(TokenFunction, start)
		t.Value = name
		return t
	}

	t := l.token(TokenIdent, start)
	t.Value = name
	return t
}

// consumeURL is called after "url(" has been consumed.
//
// https://www.w3.org/TR/css-syntax-3/#consume-a-url-token
func (l *Tokenizer) consumeURL(start int) Token {
	for isWhitespace(l.peek()) {
		l.pop()
	}
	valueStart := l.pos
	var (
		b     strings.Builder
		owned bool
	)
	own := func() {
		if !owned {
			owned = true
			b.WriteString(l.s[valueStart:l.pos])
		}
	}
	done := func() Token {
		t := Token{Type: TokenURL, Pos: start}
		if owned {
			t.Value = b.String()
		} else {
			t.Value = l.s[valueStart:l.pos]
		}
		return t
	}

	for {
		r, n := l.decode(l.pos)
		switch {
		case r == ')':
			t := done()
			l.pos += n
			t.Raw = l.s[start:l.pos]
			return t
		case r == eof:
			t := done()
			t.Raw = l.s[start:l.pos]
			return t
		case isWhitespace(r):
			t := done()
			for isWhitespace(l.peek()) {
				l.pop()
			}
			switch l.peek() {
			case ')':
				l.pop()
				fallthrough
			case eof:
				t.Raw = l.s[start:l.pos]
				return t
			}
			return l.consumeBadURLRemnants(start)
		case isQuote(r), r == '(', isNonPrintable(r):
			l.pos += n
			return l.consumeBadURLRemnants(start)
		case r == '\\':
			if !isValidEscape(r, l.peekN(1)) {
				l.pos += n
				return l.consumeBadURLRemnants(start)
			}
			own()
			l.pos += n
			b.WriteRune(l.consumeEscape())
		default:
			if !l.verbatim(l.pos) {
				own()
			}
			if owned {
				b.WriteRune(r)
			}
			l.pos += n
		}
	}
}

// https://www.w3.org/TR/css-syntax-3/#consume-the-remnants-of-a-bad-url
func (l *Tokenizer) consumeBadURLRemnants(start int) Token {
	for {
		r := l.pop()
		if r == ')' || r == eof {
			return l.token(TokenBadURL, start)
		}
		if isValidEscape(r, l.peek()) {
			l.consumeEscape()
		}
	}
}

// consumeUnicodeRange reads "U+" followed by up to six hex digits or '?'
// wildcards, optionally followed by '-' and an end value.
//
// https://www.w3.org/TR/2014/CR-css-syntax-3-20140220/#consume-a-unicode-range-token
func (l *Tokenizer) consumeUnicodeRange(start int) Token {
	l.popN(2)
	var lo, hi rune
	n := 0
	for ; n < 6 && isHex(l.peek()); n++ {
		lo = lo*16 + hexValue(l.pop())
	}
	hi = lo
	wildcard := false
	for ; n < 6 && l.peek() == '?'; n++ {
		l.pop()
		lo, hi = lo*16, hi*16+0xF
		wildcard = true
	}
	if !wildcard && l.peek() == '-' && isHex(l.peekN(1)) {
		l.pop()
		hi = 0
		for n := 0; n < 6 && isHex(l.peek()); n++ {
			hi = hi*16 + hexValue(l.pop())
		}
	}
	t := l.token(TokenUnicodeRange, start)
	t.RangeStart, t.RangeEnd = lo, hi
	return t
}

// https://www.w3.org/TR/css-syntax-3/#whitespace
func isWhitespace(r rune) bool {
	switch r {
	case '\n', '\t', ' ':
		return true
	default:
		return false
	}
}

func isQuote(r rune) bool {
	return r == '"' || r == '\''
}

// https://www.w3.org/TR/css-syntax-3/#hex-digit
func isHex(r rune) bool {
	return isDigit(r) || ('A' <= r && r <= 'F') || ('a' <= r && r <= 'f')
}

func hexValue(r rune) rune {
	switch {
	case isDigit(r):
		return r - '0'
	case 'a' <= r && r <= 'f':
		return r - 'a' + 10
	default:
		return r - 'A' + 10
	}
}

// https://www.w3.org/TR/css-syntax-3/#digit
func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

// https://www.w3.org/TR/css-syntax-3/#letter
func isLetter(r rune) bool {
	return ('A' <= r && r <= 'Z') || ('a' <= r && r <= 'z')
}

// https://www.w3.org/TR/css-syntax-3/#non-ascii-code-point
func isNonASCII(r rune) bool {
	return r >= 0x80
}

// https://www.w3.org/TR/css-syntax-3/#name-code-point
func isName(r rune) bool {
	return isNameStart(r) || isDigit(r) || r == '-'
}

// https://www.w3.org/TR/css-syntax-3/#name-start-code-point
func isNameStart(r rune) bool {
	return isLetter(r) || isNonASCII(r) || r == '_'
}

// https://www.w3.org/TR/css-syntax-3/#check-if-three-code-points-would-start-a-number
func isNumStart(r1, r2, r3 rune) bool {
	if r1 == '+' || r1 == '-' {
		if isDigit(r2) {
			return true
		}
		if r2 == '.' && isDigit(r3) {
			return true
		}
		return false
	}

	if r1 == '.' {
		return isDigit(r2)
	}
	return isDigit(r1)
}

// https://www.w3.org/TR/css-syntax-3/#check-if-two-code-points-are-a-valid-escape
func isValidEscape(r1, r2 rune) bool {
	return r1 == '\\' && r2 != '\n'
}

// https://www.w3.org/TR/css-syntax-3/#check-if-three-code-points-would-start-an-identifier
func isIdentStart(r1, r2, r3 rune) bool {
	switch {
	case r1 == '-':
		return isNameStart(r2) || r2 == '-' || isValidEscape(r2, r3)
	case isNameStart(r1):
		return true
	case r1 == '\\':
		return isValidEscape(r1, r2)
	}
	return false
}

// https://www.w3.org/TR/css-syntax-3/#non-printable-code-point
func isNonPrintable(r rune) bool {
	return (0x0 <= r && r <= 0x8) || r == 0xB || (0xE <= r && r <= 0x1F) || r == 0x7F
}
