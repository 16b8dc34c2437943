package css

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MatchContext supplies element state that isn't part of the DOM.
type MatchContext struct {
	// States holds the dynamic pseudo-classes an element is in, such as
	// :hover or :focus.
	States map[*html.Node]map[PseudoType]bool
	// Scope is the element matched by :scope and by '&' at the top level.
	// When nil, the root element is used.
	Scope *html.Node
}

// SetState records whether n is in the given dynamic state.
func (c *MatchContext) SetState(n *html.Node, p PseudoType, on bool) {
	if c.States == nil {
		c.States = map[*html.Node]map[PseudoType]bool{}
	}
	if c.States[n] == nil {
		c.States[n] = map[PseudoType]bool{}
	}
	if on {
		c.States[n][p] = true
	} else {
		delete(c.States[n], p)
	}
}

// State reports whether n is in the dynamic state p. A nil context has no
// states.
func (c *MatchContext) State(n *html.Node, p PseudoType) bool {
	if c == nil {
		return false
	}
	return c.States[n][p]
}

// Matches reports whether element n matches any complex selector in the
// list. Pseudo-elements match their originating element. Selectors crossing
// shadow tree boundaries never match since HTML documents here have none.
func (l *SelectorList) Matches(n *html.Node, ctx *MatchContext) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	m := &matcher{ctx: ctx}
	return m.matchList(l, n)
}

type matcher struct {
	ctx *MatchContext
	// anchor is the element whose :has() argument is being matched.
	anchor *html.Node
}

func (m *matcher) matchList(l *SelectorList, n *html.Node) bool {
	for i := l.First(); i >= 0; i = l.Next(i) {
		if m.matchFrom(l, i, n) {
			return true
		}
	}
	return false
}

// matchFrom matches the compound starting at record i against n, then the
// rest of the complex selector against n's relatives.
func (m *matcher) matchFrom(l *SelectorList, i int, n *html.Node) bool {
	last := i
	for j := i; ; j++ {
		if !m.matchSimple(l.SelectorAt(j), n) {
			return false
		}
		if l.SelectorAt(j).IsLastInCompound() {
			last = j
			break
		}
	}
	s := l.SelectorAt(last)
	if s.IsLastInComplex() {
		return true
	}
	next := last + 1
	switch s.Relation {
	case RelationDescendant, RelationRelativeDescendant:
		for p := parentElement(n); p != nil; p = parentElement(p) {
			if m.matchFrom(l, next, p) {
				return true
			}
		}
	case RelationChild, RelationRelativeChild:
		if p := parentElement(n); p != nil {
			return m.matchFrom(l, next, p)
		}
	case RelationDirectAdjacent, RelationRelativeDirectAdjacent:
		if p := prevElement(n); p != nil {
			return m.matchFrom(l, next, p)
		}
	case RelationIndirectAdjacent, RelationRelativeIndirectAdjacent:
		for p := prevElement(n); p != nil; p = prevElement(p) {
			if m.matchFrom(l, next, p) {
				return true
			}
		}
	}
	return false
}

func (m *matcher) matchSimple(s *Selector, n *html.Node) bool {
	switch s.Match {
	case MatchUniversal:
		return namespaceMatches(s.Namespace, n.Namespace)
	case MatchTag:
		return tagMatches(s.Value, n) && namespaceMatches(s.Namespace, n.Namespace)
	case MatchID:
		id, ok := attr(n, "id")
		return ok && id == s.Value.String()
	case MatchClass:
		class, ok := attr(n, "class")
		return ok && includesMatcher(class, s.Value.String())
	case MatchPseudoClass:
		return m.matchPseudo(s, n)
	case MatchPseudoElement:
		switch s.Pseudo {
		case PseudoSlotted, PseudoPart, PseudoWebKitCustomElement:
			return false
		}
		return true
	}
	if s.Match.IsAttribute() {
		return attrSelectorMatches(s, n)
	}
	return false
}

func tagMatches(a Atom, n *html.Node) bool {
	if n.DataAtom != 0 {
		return Atom(n.DataAtom) == a
	}
	got, ok := LookupAtom(asciiLower(n.Data))
	return ok && got == a
}

// namespaceMatches applies a selector's namespace prefix. The empty prefix
// matches only elements without a namespace.
func namespaceMatches(prefix, ns string) bool {
	return prefix == NamespaceAny || prefix == ns
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrSelectorMatches(s *Selector, n *html.Node) bool {
	key := s.Attr.String()
	for _, a := range n.Attr {
		if a.Key != key || !namespaceMatches(s.Namespace, a.Namespace) {
			continue
		}
		got, want := a.Val, s.Text
		if s.CaseInsensitive {
			got, want = strings.ToLower(got), strings.ToLower(want)
		}
		var ok bool
		switch s.Match {
		case MatchAttributeSet:
			ok = true
		case MatchAttributeExact:
			ok = got == want
		case MatchAttributeList:
			ok = includesMatcher(got, want)
		case MatchAttributeHyphen:
			ok = dashMatcher(got, want)
		case MatchAttributeBegin:
			ok = want != "" && strings.HasPrefix(got, want)
		case MatchAttributeEnd:
			ok = want != "" && strings.HasSuffix(got, want)
		case MatchAttributeContain:
			ok = want != "" && strings.Contains(got, want)
		}
		if ok {
			return true
		}
	}
	return false
}

func includesMatcher(got, want string) bool {
	if want == "" || strings.ContainsAny(want, " \t\n\r\f") {
		return false
	}
	for _, s := range strings.Fields(got) {
		if s == want {
			return true
		}
	}
	return false
}

func dashMatcher(got, want string) bool {
	return got == want || strings.HasPrefix(got, want+"-")
}

func (m *matcher) matchPseudo(s *Selector, n *html.Node) bool {
	switch s.Pseudo {
	case PseudoIs, PseudoWhere:
		return m.matchList(s.List, n)
	case PseudoNot:
		return !m.matchList(s.List, n)
	case PseudoHas:
		return m.has(s.List, n)
	case PseudoRelativeAnchor:
		return n == m.anchor
	case PseudoParent:
		if s.List == nil {
			return n == m.scope(n)
		}
		return m.matchList(s.List, n)
	case PseudoScope:
		return n == m.scope(n)
	case PseudoRoot:
		return root(n)
	case PseudoEmpty:
		return empty(n)
	case PseudoFirstChild:
		return firstChild(n)
	case PseudoLastChild:
		return lastChild(n)
	case PseudoOnlyChild:
		return onlyChild(n)
	case PseudoFirstOfType:
		return firstOfType(n)
	case PseudoLastOfType:
		return lastOfType(n)
	case PseudoOnlyOfType:
		return onlyOfType(n)
	case PseudoNthChild:
		pos := m.position(s, n, prevElement)
		return pos > 0 && s.Nth.Matches(pos)
	case PseudoNthLastChild:
		pos := m.position(s, n, nextElement)
		return pos > 0 && s.Nth.Matches(pos)
	case PseudoNthOfType:
		return s.Nth.Matches(typePosition(n, prevElement))
	case PseudoNthLastOfType:
		return s.Nth.Matches(typePosition(n, nextElement))
	case PseudoLink, PseudoAnyLink:
		return isLink(n) && !m.ctx.State(n, PseudoVisited)
	case PseudoVisited:
		return isLink(n) && m.ctx.State(n, PseudoVisited)
	case PseudoChecked:
		return checked(n)
	case PseudoDefault:
		return checked(n)
	case PseudoDisabled:
		return isFormControl(n) && hasAttr(n, "disabled")
	case PseudoEnabled:
		return isFormControl(n) && !hasAttr(n, "disabled")
	case PseudoRequired:
		return isInput(n) && hasAttr(n, "required")
	case PseudoOptional:
		return isInput(n) && !hasAttr(n, "required")
	case PseudoReadWrite:
		return readWrite(n)
	case PseudoReadOnly:
		return !readWrite(n)
	case PseudoPlaceholderShown:
		return placeholderShown(n)
	case PseudoLang:
		return langMatches(n, s.Text)
	case PseudoDir:
		return direction(n) == s.Text
	case PseudoDefined:
		return !strings.Contains(n.Data, "-") || m.ctx.State(n, PseudoDefined)
	case PseudoFocusWithin:
		focused := false
		walk(n, func(c *html.Node) {
			focused = focused || m.ctx.State(c, PseudoFocus)
		})
		return focused
	case PseudoHost, PseudoHostContext:
		return false
	}
	return m.ctx.State(n, s.Pseudo)
}

func (m *matcher) scope(n *html.Node) *html.Node {
	if m.ctx != nil && m.ctx.Scope != nil {
		return m.ctx.Scope
	}
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && (p.Parent == nil || p.Parent.Type == html.DocumentNode) {
			return p
		}
	}
	return nil
}

// has matches a relative selector list anchored at n.
func (m *matcher) has(l *SelectorList, n *html.Node) bool {
	prev := m.anchor
	m.anchor = n
	defer func() { m.anchor = prev }()

	found := false
	try := func(c *html.Node) {
		if !found && c != n && m.matchList(l, c) {
			found = true
		}
	}
	walk(n, try)
	for sib := nextElement(n); sib != nil && !found; sib = nextElement(sib) {
		walk(sib, try)
	}
	return found
}

// position is the one-based index of n among its element siblings, counting
// only those matching the "of S" list when there is one.
func (m *matcher) position(s *Selector, n *html.Node, step func(*html.Node) *html.Node) int {
	if s.List != nil && !m.matchList(s.List, n) {
		return 0
	}
	pos := 1
	for sib := step(n); sib != nil; sib = step(sib) {
		if s.List == nil || m.matchList(s.List, sib) {
			pos++
		}
	}
	return pos
}

func typePosition(n *html.Node, step func(*html.Node) *html.Node) int {
	pos := 1
	for sib := step(n); sib != nil; sib = step(sib) {
		if sib.Data == n.Data {
			pos++
		}
	}
	return pos
}

func parentElement(n *html.Node) *html.Node {
	if p := n.Parent; p != nil && p.Type == html.ElementNode {
		return p
	}
	return nil
}

func prevElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := attr(n, key)
	return ok
}

func empty(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.CommentNode {
			return false
		}
	}
	return true
}

func firstChild(n *html.Node) bool {
	return prevElement(n) == nil
}

func firstOfType(n *html.Node) bool {
	return typePosition(n, prevElement) == 1
}

func lastChild(n *html.Node) bool {
	return nextElement(n) == nil
}

func lastOfType(n *html.Node) bool {
	return typePosition(n, nextElement) == 1
}

func onlyChild(n *html.Node) bool {
	return firstChild(n) && lastChild(n)
}

func onlyOfType(n *html.Node) bool {
	return firstOfType(n) && lastOfType(n)
}

func root(n *html.Node) bool {
	return n.Parent == nil || n.Parent.Type == html.DocumentNode
}

func isLink(n *html.Node) bool {
	switch n.DataAtom {
	case atom.A, atom.Area, atom.Link:
		return hasAttr(n, "href")
	}
	return false
}

func isFormControl(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Button, atom.Input, atom.Select, atom.Textarea, atom.Option, atom.Optgroup, atom.Fieldset:
		return true
	}
	return false
}

func isInput(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Input, atom.Select, atom.Textarea:
		return true
	}
	return false
}

func checked(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Input:
		t, _ := attr(n, "type")
		t = asciiLower(t)
		return (t == "checkbox" || t == "radio") && hasAttr(n, "checked")
	case atom.Option:
		return hasAttr(n, "selected")
	}
	return false
}

func readWrite(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Input, atom.Textarea:
		return !hasAttr(n, "readonly") && !hasAttr(n, "disabled")
	}
	v, ok := attr(n, "contenteditable")
	return ok && (v == "" || equalFold(v, "true"))
}

func placeholderShown(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Input, atom.Textarea:
	default:
		return false
	}
	if !hasAttr(n, "placeholder") {
		return false
	}
	if n.DataAtom == atom.Textarea {
		return n.FirstChild == nil
	}
	v, _ := attr(n, "value")
	return v == ""
}

// langMatches implements basic filtering of a comma separated list of
// language ranges against the nearest lang attribute.
func langMatches(n *html.Node, ranges string) bool {
	lang := ""
	for p := n; p != nil; p = p.Parent {
		if v, ok := attr(p, "lang"); ok && p.Type == html.ElementNode {
			lang = strings.ToLower(v)
			break
		}
	}
	for _, r := range strings.Split(ranges, ",") {
		r = strings.ToLower(r)
		if r == "*" && lang != "" {
			return true
		}
		if lang == r || strings.HasPrefix(lang, r+"-") {
			return true
		}
	}
	return false
}

func direction(n *html.Node) string {
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if v, ok := attr(p, "dir"); ok {
			switch v = asciiLower(v); v {
			case "ltr", "rtl":
				return v
			}
		}
	}
	return "ltr"
}
