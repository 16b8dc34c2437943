package invalidation

import (
	"log/slog"
	"strings"

	css "github.com/ericchiang/css-invalidation"
	"github.com/ericchiang/css-invalidation/internal/metrics"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Invalidator performs mutations on an HTML document and reports the
// elements whose style must be recomputed, using the sets of a RuleData.
//
// An Invalidator isn't safe for concurrent use. Several invalidators may
// share one finalized RuleData.
type Invalidator struct {
	data    *RuleData
	state   *css.MatchContext
	log     *slog.Logger
	metrics *metrics.Metrics

	scheduled map[*html.Node]bool
}

// NewInvalidator returns an invalidator applying data. A nil logger
// discards output.
func NewInvalidator(data *RuleData, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = discardLogger()
	}
	return &Invalidator{data: data, state: &css.MatchContext{}, log: logger}
}

// SetMetrics records mutations on m.
func (inv *Invalidator) SetMetrics(m *metrics.Metrics) {
	inv.metrics = m
}

// MatchContext holds the element states changed through SetState. Pass it
// to css.SelectorList.Matches to match against the current state.
func (inv *Invalidator) MatchContext() *css.MatchContext {
	return inv.state
}

// attributePseudos are the pseudo-classes the matcher derives from an
// attribute's presence or value.
var attributePseudos = map[string][]css.PseudoType{
	"checked":         {css.PseudoChecked, css.PseudoDefault},
	"selected":        {css.PseudoChecked, css.PseudoDefault},
	"type":            {css.PseudoChecked, css.PseudoDefault},
	"disabled":        {css.PseudoDisabled, css.PseudoEnabled, css.PseudoReadWrite, css.PseudoReadOnly},
	"required":        {css.PseudoRequired, css.PseudoOptional},
	"readonly":        {css.PseudoReadWrite, css.PseudoReadOnly},
	"contenteditable": {css.PseudoReadWrite, css.PseudoReadOnly},
	"href":            {css.PseudoLink, css.PseudoAnyLink, css.PseudoVisited},
	"placeholder":     {css.PseudoPlaceholderShown},
	"value":           {css.PseudoPlaceholderShown},
}

// inheritedPseudos are derived from the nearest ancestor carrying the
// attribute, so a change affects the whole subtree.
var inheritedPseudos = map[string]css.PseudoType{
	"lang": css.PseudoLang,
	"dir":  css.PseudoDir,
}

// SetAttribute sets an attribute of element n and returns the elements to
// restyle, in document order.
func (inv *Invalidator) SetAttribute(n *html.Node, key, val string) []*html.Node {
	old, had := getAttr(n, key)
	if had && old == val {
		return nil
	}
	inv.begin()
	inv.attributeChanged(n, key, old, val)
	setAttr(n, key, val)
	return inv.finish("attribute", n)
}

// RemoveAttribute removes an attribute of element n and returns the
// elements to restyle, in document order.
func (inv *Invalidator) RemoveAttribute(n *html.Node, key string) []*html.Node {
	old, had := getAttr(n, key)
	if !had {
		return nil
	}
	inv.begin()
	inv.attributeChanged(n, key, old, "")
	removeAttr(n, key)
	return inv.finish("attribute", n)
}

func (inv *Invalidator) attributeChanged(n *html.Node, key, old, val string) {
	d := inv.data
	switch key {
	case "class":
		for _, c := range classDiff(old, val) {
			inv.applyLists(n, d.CollectInvalidationSetsForClass(c))
			if d.NeedsHasInvalidationForClass(c) {
				inv.invalidateHasAnchors(n)
			}
		}
	case "id":
		for _, id := range []string{old, val} {
			if id == "" {
				continue
			}
			inv.applyLists(n, d.CollectInvalidationSetsForID(id))
			if d.NeedsHasInvalidationForID(id) {
				inv.invalidateHasAnchors(n)
			}
		}
	}
	inv.applyLists(n, d.CollectInvalidationSetsForAttribute(key))
	if d.NeedsHasInvalidationForAttribute(key) {
		inv.invalidateHasAnchors(n)
	}
	for _, p := range attributePseudos[key] {
		inv.pseudoChanged(n, p)
	}
	if p, ok := inheritedPseudos[key]; ok {
		walkElements(n, func(e *html.Node) { inv.pseudoChanged(e, p) })
	}
}

// classDiff returns the class names present in exactly one of the two
// class attribute values.
func classDiff(old, val string) []string {
	before := map[string]bool{}
	for _, c := range strings.Fields(old) {
		before[c] = true
	}
	after := map[string]bool{}
	var diff []string
	for _, c := range strings.Fields(val) {
		if after[c] {
			continue
		}
		after[c] = true
		if !before[c] {
			diff = append(diff, c)
		}
	}
	for _, c := range strings.Fields(old) {
		if !after[c] {
			diff = append(diff, c)
			after[c] = true
		}
	}
	return diff
}

// SetState puts element n in or out of a dynamic pseudo-class such as
// :hover, and returns the elements to restyle.
func (inv *Invalidator) SetState(n *html.Node, p css.PseudoType, on bool) []*html.Node {
	if inv.state.State(n, p) == on {
		return nil
	}
	inv.begin()
	inv.state.SetState(n, p, on)
	inv.pseudoChanged(n, p)
	switch p {
	case css.PseudoFocus:
		for e := n; e != nil; e = parentElement(e) {
			inv.pseudoChanged(e, css.PseudoFocusWithin)
		}
	case css.PseudoVisited:
		inv.pseudoChanged(n, css.PseudoLink)
		inv.pseudoChanged(n, css.PseudoAnyLink)
	}
	return inv.finish("state", n)
}

func (inv *Invalidator) pseudoChanged(n *html.Node, p css.PseudoType) {
	inv.applyLists(n, inv.data.CollectInvalidationSetsForPseudoClass(p))
	if inv.data.NeedsHasInvalidationForPseudoClass(p) {
		inv.invalidateHasAnchors(n)
	}
}

// InsertBefore inserts child into parent before ref, or last when ref is
// nil, and returns the elements to restyle. The inserted subtree is always
// restyled.
func (inv *Invalidator) InsertBefore(parent, child, ref *html.Node) []*html.Node {
	inv.begin()
	parent.InsertBefore(child, ref)
	if child.Type == html.ElementNode {
		inv.scheduleSubtree(child)
		// Every element before child is now one further from the elements
		// after it.
		for e := prevElement(child); e != nil; e = prevElement(e) {
			inv.siblingSetsFor(e, 1)
		}
		inv.siblingSetsFor(child, 0)
		inv.applySibling(child, inv.data.UniversalSiblingInvalidationSet(), 0)
		inv.applyNth(parent)
		inv.structuralChange(parent, prevElement(child), nextElement(child))
		if inv.data.usesHas() {
			inv.invalidateHasAnchors(child)
		}
	} else {
		inv.pseudoChanged(parent, css.PseudoEmpty)
	}
	return inv.finish("insert", parent)
}

// RemoveChild removes child from parent and returns the elements to
// restyle. Elements of the removed subtree are never returned.
func (inv *Invalidator) RemoveChild(parent, child *html.Node) []*html.Node {
	inv.begin()
	if child.Type != html.ElementNode {
		parent.RemoveChild(child)
		inv.pseudoChanged(parent, css.PseudoEmpty)
		return inv.finish("remove", parent)
	}

	// The removed element's own sets reach its following siblings; apply
	// them while it's still in place.
	inv.siblingSetsFor(child, 0)
	inv.applySibling(child, inv.data.UniversalSiblingInvalidationSet(), 0)
	if inv.data.usesHas() {
		inv.invalidateHasAnchors(child)
	}
	prev, next := prevElement(child), nextElement(child)
	parent.RemoveChild(child)

	for e := prev; e != nil; e = prevElement(e) {
		inv.siblingSetsFor(e, 0)
	}
	inv.applyNth(parent)
	inv.structuralChange(parent, prev, next)
	return inv.finish("remove", parent)
}

// structuralChange applies the sets of the pseudo-classes that depend on
// an element's position among its siblings, for the elements next to an
// insertion or removal point.
func (inv *Invalidator) structuralChange(parent, prev, next *html.Node) {
	for _, e := range []*html.Node{prev, next} {
		if e == nil {
			continue
		}
		inv.pseudoChanged(e, css.PseudoFirstChild)
		inv.pseudoChanged(e, css.PseudoLastChild)
		inv.pseudoChanged(e, css.PseudoOnlyChild)
	}
	if parent.Type == html.ElementNode {
		inv.pseudoChanged(parent, css.PseudoEmpty)
	}
}

// siblingSetsFor applies the sibling sets keyed by the features of e,
// reaching extra siblings further than the sets say.
func (inv *Invalidator) siblingSetsFor(e *html.Node, extra int) {
	d := inv.data
	var lists []InvalidationLists
	if class, ok := getAttr(e, "class"); ok {
		for _, c := range strings.Fields(class) {
			lists = append(lists, d.CollectInvalidationSetsForClass(c))
		}
	}
	if id, ok := getAttr(e, "id"); ok && id != "" {
		lists = append(lists, d.CollectInvalidationSetsForID(id))
	}
	for _, a := range e.Attr {
		if a.Namespace == "" {
			lists = append(lists, d.CollectInvalidationSetsForAttribute(a.Key))
		}
	}
	for _, l := range lists {
		for _, s := range l.Siblings {
			inv.applySibling(e, s, extra)
		}
	}
}

// invalidateHasAnchors applies the :has() sets to every element whose
// :has() argument may match n: its ancestors, and the preceding siblings
// of n and of its ancestors.
func (inv *Invalidator) invalidateHasAnchors(n *html.Node) {
	lists := inv.data.CollectInvalidationSetsForPseudoClass(css.PseudoHas)
	if lists.IsEmpty() {
		return
	}
	for e := n; e != nil; e = parentElement(e) {
		for s := prevElement(e); s != nil; s = prevElement(s) {
			inv.applyLists(s, lists)
		}
		if p := parentElement(e); p != nil {
			inv.applyLists(p, lists)
		}
	}
}

func (inv *Invalidator) applyLists(e *html.Node, l InvalidationLists) {
	nth := false
	for _, s := range l.Descendants {
		inv.applyDescendants(e, s)
		nth = nth || s.InvalidatesNth()
	}
	for _, s := range l.Siblings {
		inv.applySibling(e, s, 0)
		nth = nth || s.InvalidatesNth()
	}
	if nth && e.Parent != nil {
		inv.applyNth(e.Parent)
	}
}

func (inv *Invalidator) applyDescendants(e *html.Node, s *Set) {
	if s.InvalidatesSelf() {
		inv.schedule(e)
	}
	if s.WholeSubtreeInvalid() {
		inv.scheduleSubtree(e)
		return
	}
	if !s.hasFeatures() {
		return
	}
	for c := e.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, func(d *html.Node) {
			if s.matchesElement(d) {
				inv.schedule(d)
			}
		})
	}
}

// applySibling applies a sibling set to the elements following e.
func (inv *Invalidator) applySibling(e *html.Node, s *Set, extra int) {
	if s == nil {
		return
	}
	reach := s.MaxDirectAdjacentSelectors()
	if reach != DirectAdjacentMax {
		reach += extra
	}
	n := 0
	for sib := nextElement(e); sib != nil; sib = nextElement(sib) {
		n++
		if reach != DirectAdjacentMax && n > reach {
			return
		}
		inv.matchSibling(sib, s)
	}
}

func (inv *Invalidator) matchSibling(sib *html.Node, s *Set) {
	if s.WholeSubtreeInvalid() {
		inv.scheduleSubtree(sib)
		return
	}
	if s.hasFeatures() && !s.matchesElement(sib) {
		return
	}
	if s.InvalidatesSelf() {
		inv.schedule(sib)
	}
	if sd := s.SiblingDescendants(); sd != nil {
		inv.applyDescendants(sib, sd)
	}
}

// applyNth applies the nth set to every child of parent after its child
// list changed.
func (inv *Invalidator) applyNth(parent *html.Node) {
	s := inv.data.NthInvalidationSet()
	if s == nil {
		return
	}
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			inv.matchSibling(c, s)
		}
	}
}

// matchesElement reports whether e has one of the names of s.
func (s *Set) matchesElement(e *html.Node) bool {
	if len(s.tagNames) > 0 {
		if a, ok := tagAtom(e); ok && s.HasTagName(a) {
			return true
		}
	}
	for _, a := range e.Attr {
		if a.Namespace != "" {
			continue
		}
		switch a.Key {
		case "class":
			for _, c := range strings.Fields(a.Val) {
				if n, ok := css.LookupAtom(c); ok && s.HasClass(n) {
					return true
				}
			}
		case "id":
			if n, ok := css.LookupAtom(a.Val); ok && s.HasID(n) {
				return true
			}
		}
		if n, ok := css.LookupAtom(a.Key); ok && s.HasAttribute(n) {
			return true
		}
	}
	return false
}

func tagAtom(e *html.Node) (css.Atom, bool) {
	if e.DataAtom != 0 {
		return css.Atom(e.DataAtom), true
	}
	return css.LookupAtom(strings.ToLower(e.Data))
}

func (inv *Invalidator) begin() {
	inv.scheduled = map[*html.Node]bool{}
}

func (inv *Invalidator) schedule(e *html.Node) {
	inv.scheduled[e] = true
}

func (inv *Invalidator) scheduleSubtree(e *html.Node) {
	walkElements(e, inv.schedule)
}

// finish returns the scheduled elements still in the document containing
// n, in document order.
func (inv *Invalidator) finish(kind string, n *html.Node) []*html.Node {
	root := n
	for root.Parent != nil {
		root = root.Parent
	}
	if inv.data.NeedsFullRecalc() {
		inv.scheduleSubtree(root)
	}
	var out []*html.Node
	walkElements(root, func(e *html.Node) {
		if inv.scheduled[e] {
			out = append(out, e)
		}
	})
	inv.scheduled = nil
	inv.metrics.Mutation(kind, len(out))
	inv.log.Debug("mutation invalidated elements", "kind", kind, "scheduled", len(out))
	return out
}

// walkElements calls fn for n and every element below it, in document
// order.
func walkElements(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, fn)
	}
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

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// NewElement returns a detached element for InsertBefore. Attributes are
// given as key, value pairs.
func NewElement(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}
