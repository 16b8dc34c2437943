package invalidation

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync/atomic"

	css "github.com/ericchiang/css-invalidation"
)

// SetType says which elements a Set is applied to.
type SetType uint8

const (
	// DescendantSet is applied to the descendants of the changed element.
	DescendantSet SetType = iota
	// SiblingSet is applied to the following siblings of the changed
	// element.
	SiblingSet
)

func (t SetType) String() string {
	if t == SiblingSet {
		return "sibling"
	}
	return "descendant"
}

// DirectAdjacentMax marks a sibling set that reaches every following
// sibling rather than a bounded number of them.
const DirectAdjacentMax = math.MaxInt

// Set describes the elements to restyle when a feature changes on an
// element: which of its descendants or following siblings, and whether the
// element itself.
//
// Sets are shared between RuleData values by reference counting. A set
// referenced more than once, or frozen by Finalize, is copied before it is
// modified.
type Set struct {
	typ    SetType
	refs   atomic.Int32
	frozen bool
	self   bool // the shared self-invalidation singleton

	invalidatesSelf        bool
	invalidatesNth         bool
	wholeSubtree           bool
	treeBoundaryCrossing   bool
	insertionPointCrossing bool
	invalidatesSlotted     bool
	invalidatesParts       bool
	customPseudoInvalid    bool

	classes    map[css.Atom]struct{}
	ids        map[css.Atom]struct{}
	tagNames   map[css.Atom]struct{}
	attributes map[css.Atom]struct{}

	// Sibling sets only.
	maxDirectAdjacent  int
	siblingDescendants *Set
	descendants        *Set
}

func newSet(typ SetType) *Set {
	s := &Set{typ: typ}
	s.refs.Store(1)
	return s
}

// newSiblingSet creates a sibling set taking ownership of descendants, the
// descendant set of the same key.
func newSiblingSet(descendants *Set) *Set {
	s := newSet(SiblingSet)
	s.maxDirectAdjacent = 1
	s.descendants = descendants
	return s
}

var selfSet = func() *Set {
	s := newSet(DescendantSet)
	s.invalidatesSelf = true
	s.self = true
	s.frozen = true
	return s
}()

// SelfInvalidationSet returns the shared set that invalidates only the
// changed element. It's returned for names recorded in the Bloom filter and
// stored for features that only appear in subject position.
func SelfInvalidationSet() *Set {
	return selfSet
}

// IsSelfInvalidationSet reports whether s is the shared singleton.
func (s *Set) IsSelfInvalidationSet() bool { return s.self }

func (s *Set) Type() SetType                { return s.typ }
func (s *Set) InvalidatesSelf() bool        { return s.invalidatesSelf }
func (s *Set) InvalidatesNth() bool         { return s.invalidatesNth }
func (s *Set) WholeSubtreeInvalid() bool    { return s.wholeSubtree }
func (s *Set) TreeBoundaryCrossing() bool   { return s.treeBoundaryCrossing }
func (s *Set) InvalidatesSlotted() bool     { return s.invalidatesSlotted }
func (s *Set) InvalidatesParts() bool       { return s.invalidatesParts }
func (s *Set) CustomPseudoInvalid() bool    { return s.customPseudoInvalid }
func (s *Set) InsertionPointCrossing() bool { return s.insertionPointCrossing }

// MaxDirectAdjacentSelectors is the number of following siblings a sibling
// set reaches, or DirectAdjacentMax.
func (s *Set) MaxDirectAdjacentSelectors() int { return s.maxDirectAdjacent }

// SiblingDescendants is applied to the descendants of each sibling a
// sibling set matches. May be nil.
func (s *Set) SiblingDescendants() *Set { return s.siblingDescendants }

// Descendants is the descendant set stored with a sibling set under the
// same key. May be nil.
func (s *Set) Descendants() *Set { return s.descendants }

func (s *Set) HasClass(a css.Atom) bool     { return has(s.classes, a) }
func (s *Set) HasID(a css.Atom) bool        { return has(s.ids, a) }
func (s *Set) HasTagName(a css.Atom) bool   { return has(s.tagNames, a) }
func (s *Set) HasAttribute(a css.Atom) bool { return has(s.attributes, a) }

func has(m map[css.Atom]struct{}, a css.Atom) bool {
	_, ok := m[a]
	return ok
}

func (s *Set) Classes() []string    { return names(s.classes) }
func (s *Set) IDs() []string        { return names(s.ids) }
func (s *Set) TagNames() []string   { return names(s.tagNames) }
func (s *Set) Attributes() []string { return names(s.attributes) }

func names(m map[css.Atom]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for a := range m {
		out = append(out, a.String())
	}
	sort.Strings(out)
	return out
}

// hasFeatures reports whether any feature key is recorded.
func (s *Set) hasFeatures() bool {
	return len(s.classes)+len(s.ids)+len(s.tagNames)+len(s.attributes) > 0
}

// IsEmpty reports whether applying s can't invalidate anything.
func (s *Set) IsEmpty() bool {
	if s.hasFeatures() || s.invalidatesSelf || s.wholeSubtree || s.invalidatesNth ||
		s.invalidatesSlotted || s.invalidatesParts || s.customPseudoInvalid {
		return false
	}
	if s.typ == SiblingSet {
		return s.siblingDescendants == nil && s.descendants == nil
	}
	return true
}

func (s *Set) mutate() {
	if s.frozen {
		panic("invalidation: modifying a frozen set")
	}
}

func (s *Set) setInvalidatesSelf() {
	if s.invalidatesSelf {
		return
	}
	s.mutate()
	s.invalidatesSelf = true
}

func (s *Set) setInvalidatesNth() {
	if s.invalidatesNth {
		return
	}
	s.mutate()
	s.invalidatesNth = true
}

// setWholeSubtreeInvalid drops the feature keys, which no longer narrow
// anything.
func (s *Set) setWholeSubtreeInvalid() {
	if s.wholeSubtree {
		return
	}
	s.mutate()
	s.wholeSubtree = true
	s.customPseudoInvalid = false
	s.invalidatesParts = false
	s.invalidatesSlotted = false
	s.classes, s.ids, s.tagNames, s.attributes = nil, nil, nil, nil
}

func (s *Set) setTreeBoundaryCrossing() {
	if !s.treeBoundaryCrossing {
		s.mutate()
		s.treeBoundaryCrossing = true
	}
}

func (s *Set) setInsertionPointCrossing() {
	if !s.insertionPointCrossing {
		s.mutate()
		s.insertionPointCrossing = true
	}
}

func (s *Set) setInvalidatesSlotted() {
	if !s.invalidatesSlotted && !s.wholeSubtree {
		s.mutate()
		s.invalidatesSlotted = true
	}
}

func (s *Set) setInvalidatesParts() {
	if !s.invalidatesParts && !s.wholeSubtree {
		s.mutate()
		s.invalidatesParts = true
	}
}

func (s *Set) setCustomPseudoInvalid() {
	if !s.customPseudoInvalid && !s.wholeSubtree {
		s.mutate()
		s.customPseudoInvalid = true
	}
}

func (s *Set) add(m *map[css.Atom]struct{}, a css.Atom) {
	if s.wholeSubtree || has(*m, a) {
		return
	}
	s.mutate()
	if *m == nil {
		*m = map[css.Atom]struct{}{}
	}
	(*m)[a] = struct{}{}
}

func (s *Set) addClass(a css.Atom)     { s.add(&s.classes, a) }
func (s *Set) addID(a css.Atom)        { s.add(&s.ids, a) }
func (s *Set) addTagName(a css.Atom)   { s.add(&s.tagNames, a) }
func (s *Set) addAttribute(a css.Atom) { s.add(&s.attributes, a) }

func (s *Set) updateMaxDirectAdjacent(n int) {
	if n > s.maxDirectAdjacent {
		s.mutate()
		s.maxDirectAdjacent = n
	}
}

func (s *Set) ensureSiblingDescendants() *Set {
	if s.siblingDescendants == nil {
		s.mutate()
		s.siblingDescendants = newSet(DescendantSet)
	}
	return s.siblingDescendants
}

func (s *Set) ensureDescendants() *Set {
	if s.descendants == nil {
		s.mutate()
		s.descendants = newSet(DescendantSet)
	}
	return s.descendants
}

// Combine adds everything other invalidates to s. Both must have the same
// type. Combining into the self-invalidation singleton is a no-op.
func (s *Set) Combine(other *Set) {
	if s.typ != other.typ {
		panic(fmt.Sprintf("invalidation: combining %s set into %s set", other.typ, s.typ))
	}
	if s.self {
		return
	}
	if s.typ == SiblingSet {
		s.updateMaxDirectAdjacent(other.maxDirectAdjacent)
		if other.siblingDescendants != nil {
			s.ensureSiblingDescendants().Combine(other.siblingDescendants)
		}
		if other.descendants != nil {
			s.ensureDescendants().Combine(other.descendants)
		}
	}
	if other.invalidatesNth {
		s.setInvalidatesNth()
	}
	if other.invalidatesSelf {
		s.setInvalidatesSelf()
	}
	if other.treeBoundaryCrossing {
		s.setTreeBoundaryCrossing()
	}
	if other.insertionPointCrossing {
		s.setInsertionPointCrossing()
	}
	if s.wholeSubtree {
		return
	}
	if other.wholeSubtree {
		s.setWholeSubtreeInvalid()
		return
	}
	if other.customPseudoInvalid {
		s.setCustomPseudoInvalid()
	}
	if other.invalidatesSlotted {
		s.setInvalidatesSlotted()
	}
	if other.invalidatesParts {
		s.setInvalidatesParts()
	}
	for a := range other.classes {
		s.addClass(a)
	}
	for a := range other.ids {
		s.addID(a)
	}
	for a := range other.tagNames {
		s.addTagName(a)
	}
	for a := range other.attributes {
		s.addAttribute(a)
	}
}

// clone returns an unshared deep copy. The copy of the singleton is an
// ordinary set that invalidates self.
func (s *Set) clone() *Set {
	c := newSet(s.typ)
	c.Combine(s)
	return c
}

func (s *Set) acquire() *Set {
	if !s.self {
		s.refs.Add(1)
	}
	return s
}

func (s *Set) release() {
	if !s.self {
		s.refs.Add(-1)
	}
}

func (s *Set) shared() bool {
	return s.refs.Load() > 1
}

func (s *Set) freeze() {
	if s.frozen {
		return
	}
	s.frozen = true
	if s.siblingDescendants != nil {
		s.siblingDescendants.freeze()
	}
	if s.descendants != nil {
		s.descendants.freeze()
	}
}

// position is where a simple selector sits in its complex selector: in the
// rightmost compound or to the left of a combinator.
type position uint8

const (
	subject position = iota
	ancestor
)

// ensureMutable returns a set of type typ stored in *slot that can be
// modified, creating it when *slot is nil. A stored set shared with another
// owner is replaced by a private copy first. Asking for a sibling set where
// a descendant set is stored wraps the descendant set; asking for a
// descendant set where a sibling set is stored returns its descendants.
//
// A descendant set for a feature in subject position, outside :nth-child(),
// starts out as the self-invalidation singleton.
func ensureMutable(slot **Set, typ SetType, pos position, inNth bool) (s *Set, created bool) {
	cur := *slot
	if cur == nil {
		switch {
		case typ == SiblingSet:
			cur = newSiblingSet(nil)
		case pos == subject && !inNth:
			cur = selfSet
		default:
			cur = newSet(DescendantSet)
		}
		*slot = cur
		return cur, true
	}
	if cur.self && typ == DescendantSet && pos == subject && !inNth {
		return cur, false
	}
	if cur.self || cur.shared() || cur.frozen {
		c := cur.clone()
		cur.release()
		cur = c
		*slot = cur
	}
	if cur.typ == typ {
		return cur, false
	}
	if typ == DescendantSet {
		return cur.ensureDescendants(), false
	}
	cur = newSiblingSet(cur)
	*slot = cur
	return cur, false
}

// String returns a compact description such as "{ .b #c span [href] $self }".
func (s *Set) String() string {
	var b strings.Builder
	b.WriteString("{")
	write := func(prefix string, list []string, suffix string) {
		for _, n := range list {
			b.WriteString(" " + prefix + n + suffix)
		}
	}
	write(".", s.Classes(), "")
	write("#", s.IDs(), "")
	write("", s.TagNames(), "")
	write("[", s.Attributes(), "]")
	flags := []struct {
		on   bool
		name string
	}{
		{s.invalidatesSelf, "$self"},
		{s.wholeSubtree, "*"},
		{s.invalidatesNth, "$nth"},
		{s.treeBoundaryCrossing, "$tree-boundary"},
		{s.insertionPointCrossing, "$insertion-point"},
		{s.invalidatesSlotted, "$slotted"},
		{s.invalidatesParts, "$parts"},
		{s.customPseudoInvalid, "$custom-pseudo"},
	}
	for _, f := range flags {
		if f.on {
			b.WriteString(" " + f.name)
		}
	}
	if s.typ == SiblingSet {
		if s.maxDirectAdjacent == DirectAdjacentMax {
			b.WriteString(" ~")
		} else {
			fmt.Fprintf(&b, " +%d", s.maxDirectAdjacent)
		}
		if s.siblingDescendants != nil {
			b.WriteString(" sibling-descendants" + s.siblingDescendants.String())
		}
		if s.descendants != nil {
			b.WriteString(" descendants" + s.descendants.String())
		}
	}
	b.WriteString(" }")
	return b.String()
}

// SetSummary is the serializable form of a Set.
type SetSummary struct {
	Type               string      `yaml:"type"`
	InvalidatesSelf    bool        `yaml:"invalidates_self,omitempty"`
	InvalidatesNth     bool        `yaml:"invalidates_nth,omitempty"`
	WholeSubtree       bool        `yaml:"whole_subtree,omitempty"`
	Flags              []string    `yaml:"flags,omitempty"`
	Classes            []string    `yaml:"classes,omitempty"`
	IDs                []string    `yaml:"ids,omitempty"`
	TagNames           []string    `yaml:"tag_names,omitempty"`
	Attributes         []string    `yaml:"attributes,omitempty"`
	MaxDirectAdjacent  string      `yaml:"max_direct_adjacent,omitempty"`
	SiblingDescendants *SetSummary `yaml:"sibling_descendants,omitempty"`
	Descendants        *SetSummary `yaml:"descendants,omitempty"`
}

// Summary returns the serializable form of s.
func (s *Set) Summary() *SetSummary {
	if s == nil {
		return nil
	}
	sum := &SetSummary{
		Type:            s.typ.String(),
		InvalidatesSelf: s.invalidatesSelf,
		InvalidatesNth:  s.invalidatesNth,
		WholeSubtree:    s.wholeSubtree,
		Classes:         s.Classes(),
		IDs:             s.IDs(),
		TagNames:        s.TagNames(),
		Attributes:      s.Attributes(),
	}
	for _, f := range []struct {
		on   bool
		name string
	}{
		{s.treeBoundaryCrossing, "tree-boundary-crossing"},
		{s.insertionPointCrossing, "insertion-point-crossing"},
		{s.invalidatesSlotted, "invalidates-slotted"},
		{s.invalidatesParts, "invalidates-parts"},
		{s.customPseudoInvalid, "custom-pseudo"},
	} {
		if f.on {
			sum.Flags = append(sum.Flags, f.name)
		}
	}
	if s.typ == SiblingSet {
		if s.maxDirectAdjacent == DirectAdjacentMax {
			sum.MaxDirectAdjacent = "unbounded"
		} else {
			sum.MaxDirectAdjacent = fmt.Sprint(s.maxDirectAdjacent)
		}
		sum.SiblingDescendants = s.siblingDescendants.Summary()
		sum.Descendants = s.descendants.Summary()
	}
	slices.Sort(sum.Flags)
	return sum
}
