package css

import (
	"strings"
)

// StyleSheet is a parsed stylesheet flattened into its style rules. Rules
// nested inside other rules or inside conditional group rules appear in
// the same list, after their parents.
type StyleSheet struct {
	Rules []*StyleRule
	// Errors holds the problems that caused rules to be dropped.
	Errors []error
}

// StyleRule is a style rule and its declarations.
type StyleRule struct {
	Selectors    *SelectorList
	Declarations []Declaration
	// Scope is the innermost @scope rule containing the rule, or nil.
	Scope *StyleScope
	// Parent is the style rule this rule is nested in, or nil.
	Parent *StyleRule
}

// Declaration is a property declaration. Values aren't interpreted.
type Declaration struct {
	Name      string
	Value     []Token
	Important bool
}

// StyleScope is an @scope rule's prelude. From is nil for an implicit scope
// and To is nil without a scoping limit.
type StyleScope struct {
	From   *SelectorList
	To     *SelectorList
	Parent *StyleScope
}

// ParseStyleSheet parses a stylesheet. Invalid rules are dropped and
// reported in the Errors field; parsing never fails as a whole.
//
// https://drafts.csswg.org/css-syntax-3/#parse-stylesheet
func ParseStyleSheet(text string) *StyleSheet {
	p := &sheetParser{s: NewTokenStream(text), sheet: &StyleSheet{}}
	p.ruleList(true, nil)
	return p.sheet
}

type sheetParser struct {
	s     *TokenStream
	sheet *StyleSheet
	depth int
}

func (p *sheetParser) error(err error) {
	p.sheet.Errors = append(p.sheet.Errors, err)
}

// ruleList consumes rules until the end of the stream or the current block.
func (p *sheetParser) ruleList(top bool, scope *StyleScope) {
	for {
		p.s.ConsumeWhitespace()
		if p.s.AtEnd() {
			return
		}
		t := p.s.Peek()
		switch {
		case top && (t.Type == TokenCDO || t.Type == TokenCDC):
			p.s.Consume()
		case t.Type == TokenAtKeyword:
			p.atRule(scope, nil)
		default:
			p.qualifiedRule(scope, nil)
		}
	}
}

// skipRule drops an at-rule or qualified rule: everything up to and
// including the next block or semicolon.
func (p *sheetParser) skipRule() {
	p.s.ConsumeUntil(TokenCurlyOpen, TokenSemicolon)
	p.s.Consume()
}

func (p *sheetParser) qualifiedRule(scope *StyleScope, parent *StyleRule) {
	start := p.s.Peek()
	opts := ParseOptions{}
	switch {
	case parent != nil:
		opts.Nested = true
		opts.Parent = parent.Selectors
	case scope != nil:
		opts.Parent = scope.From
	}

	b := p.s.Boundary(TokenCurlyOpen)
	if parent != nil {
		// A nested prelude ending in ';' is an invalid declaration.
		p.s.Boundary(TokenSemicolon)
	}
	list, err := ConsumeSelectorList(p.s, opts)
	if err != nil {
		p.s.ConsumeUntil()
	}
	b.Close()

	if p.s.Peek().Type != TokenCurlyOpen {
		if err == nil {
			err = errorf(start.Pos, "expected '{' after selector")
		}
		p.error(err)
		if p.s.Peek().Type == TokenSemicolon {
			p.s.Consume()
		}
		return
	}
	if err != nil {
		p.error(err)
		p.s.Consume()
		return
	}
	rule := &StyleRule{Selectors: list, Scope: scope, Parent: parent}
	p.sheet.Rules = append(p.sheet.Rules, rule)
	p.block(func() { p.blockContents(rule) })
}

// block enters the block at the head of the stream and runs fn over its
// contents, refusing blocks nested too deeply.
func (p *sheetParser) block(fn func()) {
	t := p.s.Peek()
	g := p.s.EnterBlock()
	defer g.Close()
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxNestingDepth {
		p.error(errorf(t.Pos, "rules nested too deeply"))
		return
	}
	fn()
}

// blockContents consumes the declarations and nested rules of a style rule.
//
// https://drafts.csswg.org/css-syntax-3/#consume-block-contents
func (p *sheetParser) blockContents(rule *StyleRule) {
	for {
		p.s.ConsumeWhitespace()
		if p.s.AtEnd() {
			return
		}
		t := p.s.Peek()
		switch {
		case t.Type == TokenSemicolon:
			p.s.Consume()
		case t.Type == TokenAtKeyword:
			p.atRule(rule.Scope, rule)
		case t.Type == TokenIdent:
			if d, ok := p.declaration(); ok {
				rule.Declarations = append(rule.Declarations, d)
				continue
			}
			p.qualifiedRule(rule.Scope, rule)
		default:
			p.qualifiedRule(rule.Scope, rule)
		}
	}
}

// declaration speculatively parses a declaration. A value containing a {}
// block means the tokens were a nested rule's prelude; the stream is then
// restored and ok is false.
func (p *sheetParser) declaration() (d Declaration, ok bool) {
	st := p.s.Save()
	name := p.s.ConsumeIncludingWhitespace()
	if p.s.Peek().Type != TokenColon {
		p.s.Restore(st)
		return Declaration{}, false
	}
	p.s.ConsumeIncludingWhitespace()

	b := p.s.Boundary(TokenSemicolon)
	value := p.s.ConsumeUntil()
	b.Close()

	if !strings.HasPrefix(name.Value, "--") {
		for _, t := range value {
			if t.Type == TokenCurlyOpen && t.Block == BlockStart {
				p.s.Restore(st)
				return Declaration{}, false
			}
		}
	}
	value = trimWhitespace(value)
	d = Declaration{Name: name.Value, Value: value}
	if n := len(value); n >= 2 && value[n-2].isDelim('!') && value[n-1].isIdent("important") {
		d.Important = true
		d.Value = trimWhitespace(value[:n-2])
	}
	return d, true
}

func trimWhitespace(toks []Token) []Token {
	for len(toks) > 0 && toks[0].Type == TokenWhitespace {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].Type == TokenWhitespace {
		toks = toks[:len(toks)-1]
	}
	return toks
}

func (p *sheetParser) atRule(scope *StyleScope, parent *StyleRule) {
	t := p.s.Consume()
	switch asciiLower(t.Value) {
	case "media", "supports", "container", "layer", "document", "starting-style":
		p.s.ConsumeUntil(TokenCurlyOpen, TokenSemicolon)
		if p.s.Peek().Type != TokenCurlyOpen {
			// Statement form such as "@layer a, b;".
			p.s.Consume()
			return
		}
		p.groupBlock(scope, parent)
	case "scope":
		p.scopeRule(t, scope, parent)
	default:
		p.skipRule()
	}
}

// groupBlock consumes the block of a conditional group rule. Inside a style
// rule its bare declarations belong to an implicit "&" rule.
func (p *sheetParser) groupBlock(scope *StyleScope, parent *StyleRule) {
	if parent == nil {
		p.block(func() { p.ruleList(false, scope) })
		return
	}
	amp, _ := ParseWithOptions("&", ParseOptions{Nested: true, Parent: parent.Selectors})
	rule := &StyleRule{Selectors: amp, Scope: scope, Parent: parent}
	p.block(func() { p.blockContents(rule) })
	if len(rule.Declarations) > 0 {
		p.sheet.Rules = append(p.sheet.Rules, rule)
	}
}

// scopeRule parses "@scope (<from>)? [to (<to>)]? { ... }".
//
// https://drafts.csswg.org/css-cascade-6/#scope-atrule
func (p *sheetParser) scopeRule(at Token, scope *StyleScope, parent *StyleRule) {
	sc := &StyleScope{Parent: scope}
	var parentList *SelectorList
	if parent != nil {
		parentList = parent.Selectors
	}

	p.s.ConsumeWhitespace()
	if p.s.Peek().Type == TokenParenOpen {
		list, err := p.scopeSelectors(ParseOptions{Parent: parentList})
		if err != nil {
			p.error(err)
			p.skipRule()
			return
		}
		sc.From = list
		p.s.ConsumeWhitespace()
	}
	if p.s.Peek().isIdent("to") {
		p.s.ConsumeIncludingWhitespace()
		if p.s.Peek().Type != TokenParenOpen {
			p.error(errorf(p.s.Peek().Pos, "expected '(' after 'to'"))
			p.skipRule()
			return
		}
		list, err := p.scopeSelectors(ParseOptions{Parent: sc.From})
		if err != nil {
			p.error(err)
			p.skipRule()
			return
		}
		sc.To = list
		p.s.ConsumeWhitespace()
	}
	if p.s.Peek().Type != TokenCurlyOpen {
		p.error(errorf(at.Pos, "invalid @scope prelude"))
		p.skipRule()
		return
	}
	p.groupBlock(sc, parent)
}

// scopeSelectors parses a parenthesized selector list. On failure the stream
// is left before the '('.
func (p *sheetParser) scopeSelectors(opts ParseOptions) (*SelectorList, error) {
	g := p.s.EnterRestoringBlock()
	defer g.Close()
	list, err := ConsumeSelectorList(p.s, opts)
	if err != nil {
		return nil, err
	}
	if !g.Release() {
		return nil, errorf(p.s.Peek().Pos, "unexpected token in @scope prelude")
	}
	return list, nil
}
