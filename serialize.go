package css

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Serialize returns CSS text that tokenizes back to an equivalent token.
// Numbers are printed from their parsed value, so "2.0" becomes "2".
//
// https://drafts.csswg.org/cssom/#common-serializing-idioms
func (t Token) Serialize() string {
	var b strings.Builder
	t.serialize(&b)
	return b.String()
}

func (t Token) serialize(b *strings.Builder) {
	switch t.Type {
	case TokenIdent:
		b.WriteString(serializeIdentifier(t.Value))
	case TokenFunction:
		b.WriteString(serializeIdentifier(t.Value))
		b.WriteByte('(')
	case TokenAtKeyword:
		b.WriteByte('@')
		b.WriteString(serializeIdentifier(t.Value))
	case TokenHash:
		b.WriteByte('#')
		if t.Hash == HashID {
			b.WriteString(serializeIdentifier(t.Value))
		} else {
			b.WriteString(serializeName(t.Value))
		}
	case TokenString:
		b.WriteString(serializeString(t.Value))
	case TokenBadString:
		b.WriteString("'\n")
	case TokenURL:
		b.WriteString("url(")
		b.WriteString(serializeURL(t.Value))
		b.WriteByte(')')
	case TokenBadURL:
		b.WriteString("url(()")
	case TokenDelim:
		if t.Delim == '\\' {
			b.WriteString("\\\n")
		} else {
			b.WriteRune(t.Delim)
		}
	case TokenNumber:
		b.WriteString(t.number())
	case TokenPercentage:
		b.WriteString(t.number())
		b.WriteByte('%')
	case TokenDimension:
		b.WriteString(t.number())
		b.WriteString(serializeUnit(t.Unit))
	case TokenUnicodeRange:
		if t.RangeStart == t.RangeEnd {
			fmt.Fprintf(b, "U+%X", t.RangeStart)
		} else {
			fmt.Fprintf(b, "U+%X-%X", t.RangeStart, t.RangeEnd)
		}
	case TokenWhitespace:
		b.WriteByte(' ')
	case TokenComment:
		b.WriteString(t.Raw)
	case TokenEOF:
	default:
		b.WriteString(punctuation[t.Type])
	}
}

var punctuation = map[TokenType]string{
	TokenCDO:            "<!--",
	TokenCDC:            "-->",
	TokenColon:          ":",
	TokenSemicolon:      ";",
	TokenComma:          ",",
	TokenParenOpen:      "(",
	TokenParenClose:     ")",
	TokenBracketOpen:    "[",
	TokenBracketClose:   "]",
	TokenCurlyOpen:      "{",
	TokenCurlyClose:     "}",
	TokenIncludeMatch:   "~=",
	TokenDashMatch:      "|=",
	TokenPrefixMatch:    "^=",
	TokenSuffixMatch:    "$=",
	TokenSubstringMatch: "*=",
	TokenColumn:         "||",
}

func (t Token) number() string {
	if math.IsInf(t.Num, 0) || math.IsNaN(t.Num) {
		// Out of float64 range; the source text is the only faithful form.
		return t.Value
	}
	s := strconv.FormatFloat(t.Num, 'f', -1, 64)
	switch {
	case t.Sign == PlusSign:
		s = "+" + s
	case t.Sign == MinusSign && s[0] != '-':
		s = "-" + s
	}
	return s
}

// serializeUnit escapes an 'e' that would otherwise be read back as an
// exponent, as in "1e3px".
func serializeUnit(unit string) string {
	s := serializeIdentifier(unit)
	if len(unit) >= 2 && (unit[0] == 'e' || unit[0] == 'E') &&
		(isDigit(rune(unit[1])) || (unit[1] == '-' && len(unit) >= 3 && isDigit(rune(unit[2])))) {
		return `\` + strconv.FormatInt(int64(unit[0]), 16) + " " + s[1:]
	}
	return s
}

// SerializeTokens concatenates the serialization of toks, inserting an empty
// comment between tokens that would otherwise merge when read back.
//
// https://drafts.csswg.org/css-syntax-3/#serialization
func SerializeTokens(toks []Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && needsComment(toks[i-1], t) {
			b.WriteString("/**/")
		}
		t.serialize(&b)
	}
	return b.String()
}

type tokenClass uint8

const (
	classOther tokenClass = iota
	classIdent
	classFunction
	classURL
	classNumber
	classPercentage
	classDimension
	classCDC
	classParenOpen
	classAtKeyword
	classHash
	classUnicodeRange
)

func classify(t Token) tokenClass {
	switch t.Type {
	case TokenIdent:
		return classIdent
	case TokenFunction:
		return classFunction
	case TokenURL, TokenBadURL:
		return classURL
	case TokenNumber:
		return classNumber
	case TokenPercentage:
		return classPercentage
	case TokenDimension:
		return classDimension
	case TokenCDC:
		return classCDC
	case TokenParenOpen:
		return classParenOpen
	case TokenAtKeyword:
		return classAtKeyword
	case TokenHash:
		return classHash
	case TokenUnicodeRange:
		return classUnicodeRange
	}
	return classOther
}

func identLike(c tokenClass) bool {
	return c == classIdent || c == classFunction || c == classURL
}

func numeric(c tokenClass) bool {
	return c == classNumber || c == classPercentage || c == classDimension
}

func needsComment(a, b Token) bool {
	ca, cb := classify(a), classify(b)
	switch {
	case ca == classIdent:
		return identLike(cb) || b.isDelim('-') || numeric(cb) || cb == classCDC || cb == classParenOpen
	case ca == classAtKeyword || ca == classHash || ca == classDimension:
		return identLike(cb) || b.isDelim('-') || numeric(cb) || cb == classCDC
	case a.isDelim('#') || a.isDelim('-'):
		return identLike(cb) || b.isDelim('-') || numeric(cb)
	case ca == classNumber:
		return identLike(cb) || numeric(cb) || b.isDelim('%')
	case a.isDelim('@'):
		return identLike(cb) || b.isDelim('-')
	case ca == classUnicodeRange:
		return cb == classIdent || cb == classFunction || numeric(cb) || b.isDelim('?')
	case a.isDelim('.') || a.isDelim('+'):
		return numeric(cb)
	case a.isDelim('$') || a.isDelim('*') || a.isDelim('^') || a.isDelim('~'):
		return b.isDelim('=')
	case a.isDelim('|'):
		return b.isDelim('=') || b.isDelim('|')
	case a.isDelim('/'):
		return b.isDelim('*')
	}
	return false
}

// https://drafts.csswg.org/cssom/#serialize-an-identifier
func serializeIdentifier(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == 0:
			b.WriteRune(utf8.RuneError)
		case (0x1 <= r && r <= 0x1F) || r == 0x7F:
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && isDigit(r):
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 1 && isDigit(r) && s[0] == '-':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r == '-' && len(s) == 1:
			b.WriteString(`\-`)
		case r >= 0x80 || r == '-' || r == '_' || isDigit(r) || isLetter(r):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

// serializeName escapes the code points of s that aren't name code points,
// for unrestricted hashes that may start with a digit.
func serializeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == 0:
			b.WriteRune(utf8.RuneError)
		case (0x1 <= r && r <= 0x1F) || r == 0x7F:
			fmt.Fprintf(&b, "\\%x ", r)
		case isName(r):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

// https://drafts.csswg.org/cssom/#serialize-a-string
func serializeString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == 0:
			b.WriteRune(utf8.RuneError)
		case (0x1 <= r && r <= 0x1F) || r == 0x7F:
			fmt.Fprintf(&b, "\\%x ", r)
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// serializeURL escapes the code points that would end an unquoted url
// token or turn it into a bad-url token.
func serializeURL(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == 0:
			b.WriteRune(utf8.RuneError)
		case r <= 0x20 || r == 0x7F:
			fmt.Fprintf(&b, "\\%x ", r)
		case r == '"' || r == '\'' || r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SelectorsText returns the canonical text of the list. Complex selectors
// are separated by ", ". The invalid sentinel list serializes to "".
func (l *SelectorList) SelectorsText() string {
	var b strings.Builder
	for i := l.First(); i >= 0; i = l.Next(i) {
		if i > 0 {
			b.WriteString(", ")
		}
		l.writeComplex(&b, i)
	}
	return b.String()
}

// ComplexText returns the text of the complex selector starting at i.
func (l *SelectorList) ComplexText(i int) string {
	var b strings.Builder
	l.writeComplex(&b, i)
	return b.String()
}

func (l *SelectorList) writeComplex(b *strings.Builder, start int) {
	// Compounds are stored rightmost first. Collect their bounds and print
	// them in source order.
	type bounds struct{ start, end int }
	var compounds []bounds
	for i := start; i >= 0; i = l.NextSimpleSelector(i) {
		c := bounds{start: i, end: l.LastInCompound(i)}
		compounds = append(compounds, c)
		i = c.end
	}

	last := len(compounds) - 1
	if l.SelectorAt(compounds[last].start).Pseudo == PseudoRelativeAnchor {
		last--
		b.WriteString(combinatorText(l.SelectorAt(compounds[last].end).Relation))
	}
	for c := last; c >= 0; c-- {
		l.writeCompound(b, compounds[c].start, compounds[c].end)
		if c > 0 {
			b.WriteString(combinatorText(l.SelectorAt(compounds[c-1].end).Relation))
		}
	}
}

func combinatorText(r Relation) string {
	switch r {
	case RelationDescendant:
		return " "
	case RelationChild:
		return " > "
	case RelationDirectAdjacent:
		return " + "
	case RelationIndirectAdjacent:
		return " ~ "
	case RelationRelativeChild:
		return "> "
	case RelationRelativeDirectAdjacent:
		return "+ "
	case RelationRelativeIndirectAdjacent:
		return "~ "
	}
	return ""
}

func (l *SelectorList) writeCompound(b *strings.Builder, start, end int) {
	for i := start; i <= end; i++ {
		s := l.SelectorAt(i)
		if i == start && i == end && s.Match == MatchUniversal && s.Namespace == NamespaceAny {
			if s.Relation == RelationUAShadow || s.Relation == RelationShadowSlot || s.Relation == RelationShadowPart {
				continue
			}
		}
		s.writeSimple(b)
	}
}

func writeNamespace(b *strings.Builder, ns string) {
	if ns == NamespaceAny {
		return
	}
	b.WriteString(serializeIdentifier(ns))
	b.WriteByte('|')
}

var attrOps = map[MatchType]string{
	MatchAttributeExact:   "=",
	MatchAttributeList:    "~=",
	MatchAttributeHyphen:  "|=",
	MatchAttributeBegin:   "^=",
	MatchAttributeEnd:     "$=",
	MatchAttributeContain: "*=",
}

func (s *Selector) writeSimple(b *strings.Builder) {
	switch s.Match {
	case MatchTag:
		writeNamespace(b, s.Namespace)
		b.WriteString(serializeIdentifier(s.Value.String()))
	case MatchUniversal:
		writeNamespace(b, s.Namespace)
		b.WriteByte('*')
	case MatchID:
		b.WriteByte('#')
		b.WriteString(serializeIdentifier(s.Value.String()))
	case MatchClass:
		b.WriteByte('.')
		b.WriteString(serializeIdentifier(s.Value.String()))
	case MatchPseudoClass, MatchPseudoElement:
		s.writePseudo(b)
	default:
		if !s.Match.IsAttribute() {
			return
		}
		b.WriteByte('[')
		writeNamespace(b, s.Namespace)
		b.WriteString(serializeIdentifier(s.Attr.String()))
		if s.Match != MatchAttributeSet {
			b.WriteString(attrOps[s.Match])
			b.WriteString(serializeString(s.Text))
			if s.CaseInsensitive {
				b.WriteString(" i")
			}
		}
		b.WriteByte(']')
	}
}

// SimpleText returns the text of the simple selector alone, without
// combinators.
func (s *Selector) SimpleText() string {
	var b strings.Builder
	s.writeSimple(&b)
	return b.String()
}

func (s *Selector) writePseudo(b *strings.Builder) {
	switch s.Pseudo {
	case PseudoParent:
		b.WriteByte('&')
		return
	case PseudoRelativeAnchor:
		return
	}
	if s.Match == MatchPseudoElement {
		b.WriteString("::")
	} else {
		b.WriteByte(':')
	}
	if s.Pseudo == PseudoWebKitCustomElement {
		b.WriteString(serializeIdentifier(s.Value.String()))
		return
	}
	b.WriteString(s.Pseudo.String())

	switch s.Pseudo {
	case PseudoNthChild, PseudoNthLastChild, PseudoNthOfType, PseudoNthLastOfType:
		b.WriteByte('(')
		b.WriteString(s.Nth.String())
		if s.List != nil {
			b.WriteString(" of ")
			b.WriteString(s.List.SelectorsText())
		}
		b.WriteByte(')')
	case PseudoLang:
		b.WriteByte('(')
		for i, r := range strings.Split(s.Text, ",") {
			if i > 0 {
				b.WriteString(", ")
			}
			if isIdentText(r) {
				b.WriteString(r)
			} else {
				b.WriteString(serializeString(r))
			}
		}
		b.WriteByte(')')
	case PseudoDir, PseudoPart:
		b.WriteByte('(')
		b.WriteString(s.Text)
		b.WriteByte(')')
	default:
		if s.List != nil {
			b.WriteByte('(')
			b.WriteString(s.List.SelectorsText())
			b.WriteByte(')')
		}
	}
}

// isIdentText reports whether s already reads back as a single identifier.
func isIdentText(s string) bool {
	return s != "" && serializeIdentifier(s) == s
}

// String returns the An+B text, such as "2n+1".
func (nth Nth) String() string {
	var a string
	switch nth.A {
	case 0:
		return strconv.Itoa(nth.B)
	case 1:
		a = "n"
	case -1:
		a = "-n"
	default:
		a = strconv.Itoa(nth.A) + "n"
	}
	switch {
	case nth.B > 0:
		return a + "+" + strconv.Itoa(nth.B)
	case nth.B < 0:
		return a + strconv.Itoa(nth.B)
	}
	return a
}
