package css

import "fmt"

// TokenType identifies the kind of a CSS token.
type TokenType uint8

// Create a shorter type aliases so links to csswg.org don't wrap.
type tt = TokenType

const (
	_                   tt = iota
	TokenAtKeyword         // https://drafts.csswg.org/css-syntax-3/#typedef-at-keyword-token
	TokenBadString         // https://drafts.csswg.org/css-syntax-3/#typedef-bad-string-token
	TokenBadURL            // https://drafts.csswg.org/css-syntax-3/#typedef-bad-url-token
	TokenBracketClose      // https://drafts.csswg.org/css-syntax-3/#tokendef-close-square
	TokenBracketOpen       // https://drafts.csswg.org/css-syntax-3/#tokendef-open-square
	TokenCDC               // https://drafts.csswg.org/css-syntax-3/#typedef-cdc-token
	TokenCDO               // https://drafts.csswg.org/css-syntax-3/#typedef-cdo-token
	TokenColon             // https://drafts.csswg.org/css-syntax-3/#typedef-colon-token
	TokenColumn            // https://www.w3.org/TR/2014/CR-css-syntax-3-20140220/#typedef-column-token
	TokenComma             // https://drafts.csswg.org/css-syntax-3/#typedef-comma-token
	TokenComment           // https://drafts.csswg.org/css-syntax-3/#consume-comment
	TokenCurlyClose        // https://drafts.csswg.org/css-syntax-3/#tokendef-close-curly
	TokenCurlyOpen         // https://drafts.csswg.org/css-syntax-3/#tokendef-open-curly
	TokenDashMatch         // https://www.w3.org/TR/2014/CR-css-syntax-3-20140220/#typedef-dash-match-token
	TokenDelim             // https://drafts.csswg.org/css-syntax-3/#typedef-delim-token
	TokenDimension         // https://drafts.csswg.org/css-syntax-3/#typedef-dimension-token
	TokenEOF               // https://drafts.csswg.org/css-syntax-3/#typedef-eof-token
	TokenFunction          // https://drafts.csswg.org/css-syntax-3/#typedef-function-token
	TokenHash              // https://drafts.csswg.org/css-syntax-3/#typedef-hash-token
	TokenIdent             // https://www.w3.org/TR/css-syntax-3/#typedef-ident-token
	TokenIncludeMatch      // https://www.w3.org/TR/2014/CR-css-syntax-3-20140220/#typedef-include-match-token
	TokenNumber            // https://drafts.csswg.org/css-syntax-3/#typedef-number-token
	TokenParenClose        // https://drafts.csswg.org/css-syntax-3/#tokendef-close-paren
	TokenParenOpen         // https://drafts.csswg.org/css-syntax-3/#tokendef-open-paren
	TokenPercentage        // https://drafts.csswg.org/css-syntax-3/#typedef-percentage-token
	TokenPrefixMatch       // https://www.w3.org/TR/2014/CR-css-syntax-3-20140220/#typedef-prefix-match-token
	TokenSemicolon         // https://drafts.csswg.org/css-syntax-3/#typedef-semicolon-token
	TokenString            // https://drafts.csswg.org/css-syntax-3/#typedef-string-token
	TokenSubstringMatch    // https://www.w3.org/TR/2014/CR-css-syntax-3-20140220/#typedef-substring-match-token
	TokenSuffixMatch       // https://www.w3.org/TR/2014/CR-css-syntax-3-20140220/#typedef-suffix-match-token
	TokenUnicodeRange      // https://www.w3.org/TR/2014/CR-css-syntax-3-20140220/#typedef-unicode-range-token
	TokenURL               // https://drafts.csswg.org/css-syntax-3/#typedef-url-token
	TokenWhitespace        // https://drafts.csswg.org/css-syntax-3/#typedef-whitespace-token
)

var tokenTypeString = map[TokenType]string{
	TokenAtKeyword:      "<at-keyword-token>",
	TokenBadString:      "<bad-string-token>",
	TokenBadURL:         "<bad-url-token>",
	TokenBracketClose:   "<]-token>",
	TokenBracketOpen:    "<[-token>",
	TokenCDC:            "<CDC-token>",
	TokenCDO:            "<CDO-token>",
	TokenColon:          "<colon-token>",
	TokenColumn:         "<column-token>",
	TokenComma:          "<comma-token>",
	TokenComment:        "<comment-token>",
	TokenCurlyClose:     "<}-token>",
	TokenCurlyOpen:      "<{-token>",
	TokenDashMatch:      "<dash-match-token>",
	TokenDelim:          "<delim-token>",
	TokenDimension:      "<dimension-token>",
	TokenEOF:            "<eof-token>",
	TokenFunction:       "<function-token>",
	TokenHash:           "<hash-token>",
	TokenIdent:          "<ident-token>",
	TokenIncludeMatch:   "<include-match-token>",
	TokenNumber:         "<number-token>",
	TokenParenClose:     "<)-token>",
	TokenParenOpen:      "<(-token>",
	TokenPercentage:     "<percentage-token>",
	TokenPrefixMatch:    "<prefix-match-token>",
	TokenSemicolon:      "<semicolon-token>",
	TokenString:         "<string-token>",
	TokenSubstringMatch: "<substring-match-token>",
	TokenSuffixMatch:    "<suffix-match-token>",
	TokenUnicodeRange:   "<unicode-range-token>",
	TokenURL:            "<url-token>",
	TokenWhitespace:     "<whitespace-token>",
}

func (t TokenType) String() string {
	if s, ok := tokenTypeString[t]; ok {
		return s
	}
	return fmt.Sprintf("<0x%x-token>", int(t))
}

// BlockType reports whether a token opens or closes a block.
type BlockType uint8

const (
	NotBlock BlockType = iota
	BlockStart
	BlockEnd
)

// NumericType distinguishes integers from other numbers, as required by
// the An+B microsyntax and for serialization.
type NumericType uint8

const (
	Integer NumericType = iota
	Number
)

// Sign records an explicit leading sign on a numeric token.
type Sign uint8

const (
	NoSign Sign = iota
	PlusSign
	MinusSign
)

// HashType is the "type flag" of a hash token.
type HashType uint8

const (
	HashUnrestricted HashType = iota
	HashID
)

// Token is a single CSS token.
//
// Value holds the name of ident, function, at-keyword and hash tokens (without
// the '(', '@' or '#'), the contents of string and url tokens, and the
// numeric representation of number, percentage and dimension tokens. Value
// is a slice of the source unless the source contained escapes.
type Token struct {
	Type  TokenType
	Block BlockType
	// Pos is the byte offset of the token in the source.
	Pos int
	// Raw is the source text of the token.
	Raw   string
	Value string

	Delim rune

	Num     float64
	NumType NumericType
	Sign    Sign
	Unit    string

	Hash HashType

	RangeStart rune
	RangeEnd   rune
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q pos=%d", t.Type, t.Raw, t.Pos)
}

func (t Token) isDelim(r rune) bool {
	return t.Type == TokenDelim && t.Delim == r
}

func (t Token) isIdent(s string) bool {
	return t.Type == TokenIdent && equalFold(t.Value, s)
}

// closer returns the token type that ends a block started by t.
func (t Token) closer() TokenType {
	switch t.Type {
	case TokenFunction, TokenParenOpen:
		return TokenParenClose
	case TokenBracketOpen:
		return TokenBracketClose
	case TokenCurlyOpen:
		return TokenCurlyClose
	}
	return 0
}

// equalFold is an ASCII case-insensitive comparison. CSS keywords are ASCII.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if toLower(a[i]) != toLower(b[i]) {
			return false
		}
	}
	return true
}

func toLower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

// asciiLower lowercases ASCII letters, leaving other code points intact.
func asciiLower(s string) string {
	for i := 0; i < len(s); i++ {
		if 'A' <= s[i] && s[i] <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				b[j] = toLower(b[j])
			}
			return string(b)
		}
	}
	return s
}
