package css

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxNestingDepth bounds how deeply selector lists may nest inside
// functional pseudo-classes. Deeper selectors are rejected.
const MaxNestingDepth = 32

type parseErr struct {
	msg string
	t   Token
}

func (p *parseErr) Error() string {
	return fmt.Sprintf("consuming %s: %s", p.t, p.msg)
}

// ParseOptions controls how a selector list is parsed.
type ParseOptions struct {
	// Forgiving drops invalid complex selectors instead of rejecting the
	// whole list.
	Forgiving bool
	// Nested parses the list as the prelude of a nested style rule: complex
	// selectors that don't contain '&' are made relative to Parent.
	Nested bool
	// Parent is the selector list '&' refers to.
	Parent *SelectorList
}

// ConsumeSelectorList parses a selector list directly from a token stream,
// stopping at the end of the stream or the current block or boundary. It
// fails if any tokens other than whitespace remain before that point.
func ConsumeSelectorList(s *TokenStream, opts ParseOptions) (*SelectorList, error) {
	prev := s.SetUnicodeRange(false)
	defer s.SetUnicodeRange(prev)

	p := &parser{s: s, opts: opts}
	s.ConsumeWhitespace()
	sels, err := p.selectorList(listKind{forgiving: opts.Forgiving, nested: opts.Nested})
	if err == nil {
		s.ConsumeWhitespace()
		if !s.AtEnd() {
			err = p.errorf(s.Peek(), "expected ',' or EOF")
		}
	}
	if err != nil {
		return EmptySelectorList(), toParseError(err)
	}
	return AdoptSelectors(sels), nil
}

func toParseError(err error) error {
	if perr, ok := err.(*parseErr); ok {
		return &ParseError{perr.t.Pos, perr.msg}
	}
	return err
}

type parser struct {
	s     *TokenStream
	opts  ParseOptions
	depth int
	inHas bool
}

func (p *parser) errorf(t Token, msg string, v ...interface{}) error {
	return &parseErr{fmt.Sprintf(msg, v...), t}
}

type listKind struct {
	forgiving bool
	relative  bool
	nested    bool
}

// selectorList returns the records of every complex selector in the list.
// A forgiving list that ends up empty returns no records.
func (p *parser) selectorList(kind listKind) ([]Selector, error) {
	var out []Selector
	for {
		p.s.ConsumeWhitespace()
		if kind.forgiving {
			b := p.s.Boundary(TokenComma)
			cs, err := p.complexSelector(kind)
			if err == nil {
				p.s.ConsumeWhitespace()
				if !p.s.AtEnd() {
					err = p.errorf(p.s.Peek(), "expected ',' or ')'")
				}
			}
			if err != nil {
				p.s.ConsumeUntil(TokenComma)
			} else {
				out = append(out, cs...)
			}
			b.Close()
		} else {
			cs, err := p.complexSelector(kind)
			if err != nil {
				return nil, err
			}
			out = append(out, cs...)
			p.s.ConsumeWhitespace()
		}
		if p.s.Peek().Type != TokenComma {
			return out, nil
		}
		p.s.Consume()
	}
}

// complexBuilder collects the compounds of one complex selector in source
// order. rels[i] is the relation between compounds[i] and compounds[i+1].
type complexBuilder struct {
	compounds [][]Selector
	rels      []Relation
}

// split ends the current compound at a shadow-piercing pseudo-element.
func (b *complexBuilder) split(cur []Selector, rel Relation) {
	if len(cur) == 0 {
		cur = append(cur, Selector{Match: MatchUniversal, Namespace: NamespaceAny})
	}
	b.compounds = append(b.compounds, cur)
	b.rels = append(b.rels, rel)
}

// combinator consumes an explicit combinator.
func (p *parser) combinator() (Relation, bool) {
	t := p.s.Peek()
	var rel Relation
	switch {
	case t.isDelim('>'):
		rel = RelationChild
	case t.isDelim('+'):
		rel = RelationDirectAdjacent
	case t.isDelim('~'):
		rel = RelationIndirectAdjacent
	default:
		return RelationSubSelector, false
	}
	p.s.Consume()
	p.s.ConsumeWhitespace()
	return rel, true
}

func startsCompound(t Token) bool {
	switch t.Type {
	case TokenIdent, TokenHash, TokenBracketOpen, TokenColon:
		return true
	case TokenDelim:
		switch t.Delim {
		case '.', '*', '|', '&':
			return true
		}
	}
	return false
}

// complexSelector parses one complex selector and returns its records
// rightmost compound first.
//
// <complex-selector> = <compound-selector> [ <combinator>? <compound-selector> ]*
func (p *parser) complexSelector(kind listKind) ([]Selector, error) {
	leading, explicit := RelationDescendant, false
	if kind.relative || kind.nested {
		if rel, ok := p.combinator(); ok {
			leading, explicit = rel, true
		}
	}

	b := &complexBuilder{}
	t := p.s.Peek()
	ok, err := p.compoundSelector(b)
	if err != nil {
		return nil, err
	}
	if !ok {
		//  <compound-selector> can start with:
		//  |-- <type-selector>
		//  | \-- <ns-prefix>? [ '*' | <ident-token> ]
		//  |   \-- [ <ident-token> | '*' ]? '|'
		//  |-- <subclass-selector>
		//  | |-- <id-selector> = <hash-token>
		//  | |-- <class-selector> = '.' <ident-token>
		//  | |-- <attribute-selector> = '[' ...
		//  | \-- <pseudo-class-selector> = ':' ...
		//  |-- <pseudo-element-selector> = ':' ...
		//  \-- '&'
		return nil, p.errorf(t, "expected identifier, '#', '*', '.', '|', '[', ':', '&'")
	}

	for {
		ws := p.s.Peek().Type == TokenWhitespace
		p.s.ConsumeWhitespace()
		rel, ok := p.combinator()
		if !ok {
			if !ws || !startsCompound(p.s.Peek()) {
				break
			}
			rel = RelationDescendant
		}
		t := p.s.Peek()
		b.rels = append(b.rels, rel)
		ok, err := p.compoundSelector(b)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, p.errorf(t, "expected selector after combinator")
		}
	}

	if kind.nested && !kind.relative && (explicit || !b.containsParent()) {
		parent := []Selector{{Match: MatchPseudoClass, Pseudo: PseudoParent, List: p.opts.Parent}}
		b.compounds = append([][]Selector{parent}, b.compounds...)
		b.rels = append([]Relation{leading}, b.rels...)
	}

	var out []Selector
	for i := len(b.compounds) - 1; i >= 0; i-- {
		c := b.compounds[i]
		for j := range c {
			c[j].Relation = RelationSubSelector
		}
		if i > 0 {
			c[len(c)-1].Relation = b.rels[i-1]
		}
		out = append(out, c...)
	}
	if kind.relative {
		out[len(out)-1].Relation = relativeRelation(leading)
		out = append(out, Selector{Match: MatchPseudoClass, Pseudo: PseudoRelativeAnchor})
	}
	out[len(out)-1].lastInComplex = true
	return out, nil
}

func relativeRelation(r Relation) Relation {
	switch r {
	case RelationChild:
		return RelationRelativeChild
	case RelationDirectAdjacent:
		return RelationRelativeDirectAdjacent
	case RelationIndirectAdjacent:
		return RelationRelativeIndirectAdjacent
	}
	return RelationRelativeDescendant
}

func (b *complexBuilder) containsParent() bool {
	for _, c := range b.compounds {
		for i := range c {
			if c[i].Pseudo == PseudoParent {
				return true
			}
			if c[i].List != nil && c[i].List.HasParentSelector() {
				return true
			}
		}
	}
	return false
}

// compoundSelector appends one compound selector to b. Shadow-piercing
// pseudo-elements split it into several compounds.
//
// <compound-selector> = [ <type-selector>? <subclass-selector>*
//                         [ <pseudo-element-selector> <pseudo-class-selector>* ]* ]!
//
// Whitespace is disallowed between top level elements.
func (p *parser) compoundSelector(b *complexBuilder) (bool, error) {
	var cur []Selector
	found := false

	t := p.s.Peek()
	if t.Type == TokenIdent || t.isDelim('*') || t.isDelim('|') {
		sel, err := p.typeSelector()
		if err != nil {
			return false, err
		}
		cur = append(cur, sel)
		found = true
	}

	afterElement := false
	for {
		t := p.s.Peek()
		if afterElement && t.Type != TokenColon && startsCompound(t) {
			return false, p.errorf(t, "selector after pseudo-element")
		}
		switch {
		case t.Type == TokenHash:
			// <id-selector> = <hash-token>
			if t.Hash != HashID {
				return false, p.errorf(t, "invalid id selector")
			}
			p.s.Consume()
			cur = append(cur, Selector{Match: MatchID, Value: Intern(t.Value)})
		case t.isDelim('.'):
			// <class-selector> = '.' <ident-token>
			p.s.Consume()
			ident := p.s.Peek()
			if ident.Type != TokenIdent {
				return false, p.errorf(ident, "expected identifier")
			}
			p.s.Consume()
			cur = append(cur, Selector{Match: MatchClass, Value: Intern(ident.Value)})
		case t.isDelim('&'):
			p.s.Consume()
			cur = append(cur, Selector{Match: MatchPseudoClass, Pseudo: PseudoParent, List: p.opts.Parent})
		case t.Type == TokenBracketOpen:
			sel, err := p.attributeSelector()
			if err != nil {
				return false, err
			}
			cur = append(cur, sel)
		case t.Type == TokenColon:
			sel, err := p.pseudoSelector()
			if err != nil {
				return false, err
			}
			switch rel := shadowRelation(sel); {
			case rel != RelationSubSelector:
				b.split(cur, rel)
				cur = []Selector{sel}
			default:
				cur = append(cur, sel)
			}
			if sel.Match == MatchPseudoElement {
				afterElement = true
			}
		default:
			if len(cur) == 0 {
				return found, nil
			}
			b.compounds = append(b.compounds, cur)
			return true, nil
		}
		found = true
	}
}

// shadowRelation returns the relation that separates a pseudo-element living
// in another tree from the compound it is attached to.
func shadowRelation(sel Selector) Relation {
	if sel.Match != MatchPseudoElement {
		return RelationSubSelector
	}
	switch sel.Pseudo {
	case PseudoSlotted:
		return RelationShadowSlot
	case PseudoPart:
		return RelationShadowPart
	case PseudoWebKitCustomElement:
		return RelationUAShadow
	}
	return RelationSubSelector
}

// <type-selector> = <wq-name> | <ns-prefix>? '*'
func (p *parser) typeSelector() (Selector, error) {
	name, err := p.parseName(true)
	if err != nil {
		return Selector{}, err
	}
	if name.value == "*" {
		return Selector{Match: MatchUniversal, Namespace: name.namespace()}, nil
	}
	return Selector{
		Match:     MatchTag,
		Value:     Intern(asciiLower(name.value)),
		Namespace: name.namespace(),
	}, nil
}

type wqName struct {
	hasPrefix bool
	prefix    string
	value     string
}

func (n wqName) namespace() string {
	if !n.hasPrefix {
		return NamespaceAny
	}
	return n.prefix
}

// parseName handles either <wq-name> or <type-selector>, which are almost
// identical. However <type-selector> allows '*' as the final element.
//
// <wq-name>       = <ns-prefix>? <ident-token>
// <type-selector> = <ns-prefix>? [ <ident-token> | '*' ]
// <ns-prefix>     = [ <ident-token> | '*' ]? '|'
//
// https://www.w3.org/TR/selectors-4/#typedef-wq-name
// https://www.w3.org/TR/selectors-4/#typedef-type-selector
func (p *parser) parseName(allowStar bool) (wqName, error) {
	nameAfterBar := func() (string, bool) {
		t := p.s.Peek()
		if t.Type == TokenIdent {
			p.s.Consume()
			return t.Value, true
		}
		if allowStar && t.isDelim('*') {
			p.s.Consume()
			return "*", true
		}
		return "", false
	}

	t := p.s.Peek()
	if t.isDelim('|') {
		p.s.Consume()
		v, ok := nameAfterBar()
		if !ok {
			return wqName{}, p.errorf(p.s.Peek(), "expected identifier")
		}
		return wqName{true, "", v}, nil
	}
	if !(t.Type == TokenIdent || t.isDelim('*')) {
		return wqName{}, p.errorf(t, "expected identifier")
	}
	p.s.Consume()
	first := t.Value
	if t.isDelim('*') {
		first = "*"
	}

	// See if the stream contains '|' <ident-token>.
	if p.s.Peek().isDelim('|') {
		st := p.s.Save()
		p.s.Consume()
		if v, ok := nameAfterBar(); ok {
			return wqName{true, first, v}, nil
		}
		p.s.Restore(st)
	}
	if first == "*" && !allowStar {
		return wqName{}, p.errorf(p.s.Peek(), "expected '|'")
	}
	return wqName{false, "", first}, nil
}

// <attribute-selector> = '[' <wq-name> ']' |
//                        '[' <wq-name> <attr-matcher> [ <string-token> | <ident-token> ] <attr-modifier>? ']'
// <attr-matcher> = [ '~' | '|' | '^' | '$' | '*' ]? '='
// <attr-modifier> = i | s
//
// https://www.w3.org/TR/selectors-4/#typedef-attribute-selector
func (p *parser) attributeSelector() (Selector, error) {
	g := p.s.EnterBlock()
	defer g.Close()

	p.s.ConsumeWhitespace()
	name, err := p.parseName(false)
	if err != nil {
		return Selector{}, err
	}
	sel := Selector{
		Match:     MatchAttributeSet,
		Attr:      Intern(asciiLower(name.value)),
		Namespace: name.namespace(),
	}
	p.s.ConsumeWhitespace()
	if p.s.AtEnd() {
		return sel, nil
	}

	t := p.s.Consume()
	switch {
	case t.isDelim('='):
		sel.Match = MatchAttributeExact
	case t.Type == TokenIncludeMatch:
		sel.Match = MatchAttributeList
	case t.Type == TokenDashMatch:
		sel.Match = MatchAttributeHyphen
	case t.Type == TokenPrefixMatch:
		sel.Match = MatchAttributeBegin
	case t.Type == TokenSuffixMatch:
		sel.Match = MatchAttributeEnd
	case t.Type == TokenSubstringMatch:
		sel.Match = MatchAttributeContain
	default:
		return Selector{}, p.errorf(t, "expected '~', '|', '^', '$', '*' or '='")
	}
	p.s.ConsumeWhitespace()

	// [ <string-token> | <ident-token> ]
	v := p.s.Consume()
	if !(v.Type == TokenString || v.Type == TokenIdent) {
		return Selector{}, p.errorf(v, "expected identifier or string")
	}
	sel.Text = v.Value
	p.s.ConsumeWhitespace()

	// <attr-modifier>?
	if !p.s.AtEnd() {
		m := p.s.Consume()
		switch {
		case m.isIdent("i"):
			sel.CaseInsensitive = true
		case m.isIdent("s"):
		default:
			return Selector{}, p.errorf(m, "expected ']'")
		}
		p.s.ConsumeWhitespace()
	}
	if !p.s.AtEnd() {
		return Selector{}, p.errorf(p.s.Peek(), "expected ']'")
	}
	return sel, nil
}

// pseudoSelector parses a pseudo-class or pseudo-element, including the
// arguments of functional ones.
//
// https://www.w3.org/TR/selectors-4/#typedef-pseudo-class-selector
// https://www.w3.org/TR/selectors-4/#typedef-pseudo-element-selector
func (p *parser) pseudoSelector() (Selector, error) {
	p.s.Consume()
	element := false
	if p.s.Peek().Type == TokenColon {
		p.s.Consume()
		element = true
	}

	t := p.s.Peek()
	switch t.Type {
	case TokenIdent:
		p.s.Consume()
		if !element && isLegacyPseudoElement(t.Value) {
			element = true
		}
		typ := lookupPseudo(t.Value, false, element)
		if typ == PseudoUnknown {
			return Selector{}, p.errorf(t, "unknown pseudo: %s", t.Value)
		}
		return p.newPseudo(t, typ, element)
	case TokenFunction:
		typ := lookupPseudo(t.Value, true, element)
		if typ == PseudoUnknown {
			return Selector{}, p.errorf(t, "unknown pseudo: %s()", t.Value)
		}
		sel, err := p.newPseudo(t, typ, element)
		if err != nil {
			return Selector{}, err
		}
		g := p.s.EnterBlock()
		defer g.Close()
		p.s.ConsumeWhitespace()
		if err := p.pseudoArgument(&sel); err != nil {
			return Selector{}, err
		}
		p.s.ConsumeWhitespace()
		if !p.s.AtEnd() {
			return Selector{}, p.errorf(p.s.Peek(), "unexpected token in %s()", t.Value)
		}
		return sel, nil
	}
	return Selector{}, p.errorf(t, "expected identifier or function")
}

func (p *parser) newPseudo(t Token, typ PseudoType, element bool) (Selector, error) {
	if element && p.inHas {
		return Selector{}, p.errorf(t, "pseudo-elements are not allowed in :has()")
	}
	sel := Selector{Match: MatchPseudoClass, Pseudo: typ, Value: Intern(asciiLower(t.Value))}
	if element {
		sel.Match = MatchPseudoElement
	}
	return sel, nil
}

func (p *parser) pseudoArgument(sel *Selector) error {
	switch sel.Pseudo {
	case PseudoIs, PseudoWhere:
		return p.nestedList(sel, listKind{forgiving: true, nested: false})
	case PseudoNot:
		return p.nestedList(sel, listKind{})
	case PseudoHas:
		if p.inHas {
			return p.errorf(p.s.Peek(), ":has() may not be nested")
		}
		p.inHas = true
		defer func() { p.inHas = false }()
		return p.nestedList(sel, listKind{relative: true})
	case PseudoHost, PseudoHostContext, PseudoSlotted:
		return p.nestedCompound(sel)
	case PseudoNthChild, PseudoNthLastChild, PseudoNthOfType, PseudoNthLastOfType:
		nth, err := p.aNPlusB()
		if err != nil {
			return err
		}
		sel.Nth = nth
		p.s.ConsumeWhitespace()
		if (sel.Pseudo == PseudoNthChild || sel.Pseudo == PseudoNthLastChild) && p.s.Peek().isIdent("of") {
			p.s.ConsumeIncludingWhitespace()
			return p.nestedList(sel, listKind{})
		}
		return nil
	case PseudoLang:
		var langs []string
		for {
			t := p.s.Consume()
			if t.Type != TokenIdent && t.Type != TokenString {
				return p.errorf(t, "expected language range")
			}
			langs = append(langs, t.Value)
			p.s.ConsumeWhitespace()
			if p.s.Peek().Type != TokenComma {
				break
			}
			p.s.ConsumeIncludingWhitespace()
		}
		sel.Text = strings.Join(langs, ",")
		return nil
	case PseudoDir:
		t := p.s.Consume()
		if !(t.isIdent("ltr") || t.isIdent("rtl")) {
			return p.errorf(t, "expected 'ltr' or 'rtl'")
		}
		sel.Text = asciiLower(t.Value)
		return nil
	case PseudoPart:
		var names []string
		for p.s.Peek().Type == TokenIdent {
			names = append(names, p.s.ConsumeIncludingWhitespace().Value)
		}
		if len(names) == 0 {
			return p.errorf(p.s.Peek(), "expected part name")
		}
		sel.Text = strings.Join(names, " ")
		return nil
	}
	return p.errorf(p.s.Peek(), "unexpected argument")
}

func (p *parser) enterNesting() error {
	p.depth++
	if p.depth > MaxNestingDepth {
		return p.errorf(p.s.Peek(), "selector nesting too deep")
	}
	return nil
}

func (p *parser) nestedList(sel *Selector, kind listKind) error {
	if err := p.enterNesting(); err != nil {
		return err
	}
	defer func() { p.depth-- }()
	sels, err := p.selectorList(kind)
	if err != nil {
		return err
	}
	sel.List = AdoptSelectors(sels)
	return nil
}

func (p *parser) nestedCompound(sel *Selector) error {
	if err := p.enterNesting(); err != nil {
		return err
	}
	defer func() { p.depth-- }()
	t := p.s.Peek()
	b := &complexBuilder{}
	ok, err := p.compoundSelector(b)
	if err != nil {
		return err
	}
	if !ok || len(b.compounds) != 1 {
		return p.errorf(t, "expected a compound selector")
	}
	c := b.compounds[0]
	for i := range c {
		c[i].Relation = RelationSubSelector
	}
	sel.List = AdoptSelectors(c)
	return nil
}

// https://drafts.csswg.org/css-syntax-3/#typedef-n-dimension
func isNDimension(t Token) bool {
	return t.Type == TokenDimension && t.NumType == Integer && equalFold(t.Unit, "n")
}

// https://drafts.csswg.org/css-syntax-3/#typedef-ndash-dimension
func isNDashDimension(t Token) bool {
	return t.Type == TokenDimension && t.NumType == Integer && equalFold(t.Unit, "n-")
}

func isPrefixWithDigits(s, prefix string) bool {
	s = asciiLower(s)
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	if len(s) == len(prefix) {
		return false
	}
	for _, c := range s[len(prefix):] {
		if !isDigit(c) {
			return false
		}
	}
	return true
}

// isNDashDigitDimension looks for patterns like "n-13213".
//
// https://drafts.csswg.org/css-syntax-3/#typedef-ndashdigit-dimension
func isNDashDigitDimension(t Token) bool {
	return t.Type == TokenDimension && t.NumType == Integer && isPrefixWithDigits(t.Unit, "n-")
}

// https://drafts.csswg.org/css-syntax-3/#typedef-ndashdigit-ident
func isNDashDigitIdent(t Token) bool {
	return t.Type == TokenIdent && isPrefixWithDigits(t.Value, "n-")
}

// https://drafts.csswg.org/css-syntax-3/#typedef-dashndashdigit-ident
func isDashNDashDigitIdent(t Token) bool {
	return t.Type == TokenIdent && isPrefixWithDigits(t.Value, "-n-")
}

// https://drafts.csswg.org/css-syntax-3/#typedef-integer
func isInteger(t Token) bool {
	return t.Type == TokenNumber && t.NumType == Integer
}

// https://drafts.csswg.org/css-syntax-3/#typedef-signed-integer
func isSignedInteger(t Token) bool {
	return isInteger(t) && t.Sign != NoSign
}

// https://drafts.csswg.org/css-syntax-3/#typedef-signless-integer
func isSignlessInteger(t Token) bool {
	return isInteger(t) && t.Sign == NoSign
}

func (p *parser) parseInt(t Token, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, p.errorf(t, "parsing value as integer: %v", err)
	}
	return n, nil
}

// b parses the common pattern of <signed-integer> | ['+' | '-'] <signless-integer>.
// It returns 0 when the An+B value has no B part.
func (p *parser) b() (int, error) {
	p.s.ConsumeWhitespace()
	t := p.s.Peek()
	if t.Type == TokenEOF || t.isIdent("of") {
		return 0, nil
	}
	p.s.Consume()

	if isSignedInteger(t) {
		return p.parseInt(t, t.Value)
	}
	if !(t.isDelim('+') || t.isDelim('-')) {
		return 0, p.errorf(t, "expected one of the following: <signed-integer>, '+', '-'")
	}
	isNeg := t.isDelim('-')

	p.s.ConsumeWhitespace()
	t = p.s.Consume()
	if !isSignlessInteger(t) {
		return 0, p.errorf(t, "expected <signless-integer>")
	}
	n, err := p.parseInt(t, t.Value)
	if err != nil {
		return 0, err
	}
	if isNeg {
		return 0 - n, nil
	}
	return n, nil
}

// signlessAfter parses the <signless-integer> following "n-" forms and
// returns its negation.
func (p *parser) signlessAfter() (int, error) {
	p.s.ConsumeWhitespace()
	t := p.s.Consume()
	if !isSignlessInteger(t) {
		return 0, p.errorf(t, "expected unsigned integer")
	}
	n, err := p.parseInt(t, t.Value)
	return 0 - n, err
}

// https://drafts.csswg.org/css-syntax-3/#the-anb-type
func (p *parser) aNPlusB() (Nth, error) {
	p.s.ConsumeWhitespace()
	t := p.s.Consume()
	if t.isIdent("even") {
		return Nth{A: 2}, nil
	}
	if t.isIdent("odd") {
		return Nth{A: 2, B: 1}, nil
	}
	if isInteger(t) {
		b, err := p.parseInt(t, t.Value)
		return Nth{B: b}, err
	}

	if isNDimension(t) {
		a, err := p.parseInt(t, t.Value)
		if err != nil {
			return Nth{}, err
		}
		b, err := p.b()
		return Nth{A: a, B: b}, err
	}

	if isNDashDigitDimension(t) {
		// Token is of form "4n-3" where "4" is the value and "n-3" is the
		// unit.
		a, err := p.parseInt(t, t.Value)
		if err != nil {
			return Nth{}, err
		}
		b, err := p.parseInt(t, t.Unit[1:])
		return Nth{A: a, B: b}, err
	}

	if isNDashDimension(t) {
		// String is of form "4n- 3".
		a, err := p.parseInt(t, t.Value)
		if err != nil {
			return Nth{}, err
		}
		b, err := p.signlessAfter()
		return Nth{A: a, B: b}, err
	}

	if isDashNDashDigitIdent(t) {
		// Token is of form "-n-3".
		b, err := p.parseInt(t, t.Value[2:])
		return Nth{A: -1, B: b}, err
	}

	if t.isIdent("-n-") {
		// String is of form "-n- 3".
		b, err := p.signlessAfter()
		return Nth{A: -1, B: b}, err
	}

	if t.isIdent("-n") {
		b, err := p.b()
		return Nth{A: -1, B: b}, err
	}

	if t.isDelim('+') {
		// No whitespace is allowed between '+' and 'n'.
		if p.s.Peek().Type != TokenIdent {
			return Nth{}, p.errorf(p.s.Peek(), "expected 'n'")
		}
		t = p.s.Consume()
	}

	if t.isIdent("n") {
		b, err := p.b()
		return Nth{A: 1, B: b}, err
	}

	if isNDashDigitIdent(t) {
		// Token is of form "n-3".
		b, err := p.parseInt(t, t.Value[1:])
		return Nth{A: 1, B: b}, err
	}

	if t.isIdent("n-") {
		b, err := p.signlessAfter()
		return Nth{A: 1, B: b}, err
	}
	return Nth{}, p.errorf(t, "expected 'even', 'odd', or integer type")
}
