package css

// MatchType is the kind of test a simple selector performs.
type MatchType uint8

const (
	// MatchUnknown marks the sentinel record of an invalid selector list.
	MatchUnknown MatchType = iota
	MatchTag
	MatchUniversal
	MatchID
	MatchClass
	MatchAttributeSet      // [a]
	MatchAttributeExact    // [a=v]
	MatchAttributeList     // [a~=v]
	MatchAttributeHyphen   // [a|=v]
	MatchAttributeBegin    // [a^=v]
	MatchAttributeEnd      // [a$=v]
	MatchAttributeContain  // [a*=v]
	MatchPseudoClass
	MatchPseudoElement
)

// IsAttribute reports whether m is one of the attribute matchers.
func (m MatchType) IsAttribute() bool {
	return MatchAttributeSet <= m && m <= MatchAttributeContain
}

// Relation is the relation between a simple selector and the next record in
// a SelectorList. Within a compound it is RelationSubSelector; the last
// record of a compound holds the combinator to the compound on its left.
type Relation uint8

const (
	RelationSubSelector Relation = iota
	RelationDescendant
	RelationChild
	RelationDirectAdjacent
	RelationIndirectAdjacent
	// RelationUAShadow precedes a UA shadow pseudo-element like ::-webkit-foo.
	RelationUAShadow
	// RelationShadowSlot precedes ::slotted().
	RelationShadowSlot
	// RelationShadowPart precedes ::part().
	RelationShadowPart

	// Relative relations connect the leftmost compound of a :has() argument
	// to the :has() anchor.
	RelationRelativeDescendant
	RelationRelativeChild
	RelationRelativeDirectAdjacent
	RelationRelativeIndirectAdjacent
)

// IsAdjacent reports the sibling combinators, relative or not.
func (r Relation) IsAdjacent() bool {
	switch r {
	case RelationDirectAdjacent, RelationIndirectAdjacent,
		RelationRelativeDirectAdjacent, RelationRelativeIndirectAdjacent:
		return true
	}
	return false
}

// IsRelative reports the relations used by :has() arguments.
func (r Relation) IsRelative() bool {
	return r >= RelationRelativeDescendant
}

// Nth is an An+B value.
type Nth struct {
	A, B int
}

// Matches reports whether a one-based index satisfies An+B for some n >= 0.
func (nth Nth) Matches(index int) bool {
	if nth.A == 0 {
		return index == nth.B
	}
	n := index - nth.B
	return n%nth.A == 0 && n/nth.A >= 0
}

// Selector is one simple selector record in a SelectorList.
type Selector struct {
	Match    MatchType
	Relation Relation
	Pseudo   PseudoType

	// Value is the tag name, id, class, or pseudo name.
	Value Atom
	// Attr is the attribute local name of attribute selectors.
	Attr Atom
	// Namespace is the namespace prefix of type and attribute selectors.
	// NamespaceAny when no prefix was given.
	Namespace string
	// Text is the attribute value or the argument of :lang() and :dir().
	Text            string
	CaseInsensitive bool

	Nth Nth
	// List is the argument of :is(), :where(), :not(), :has(), the nth "of S"
	// clause, :host(), :host-context() and ::slotted(). For '&' it is the
	// parent rule's selector list, or nil at the top level.
	List *SelectorList

	lastInComplex bool
	lastInList    bool
}

// NamespaceAny is the Namespace of selectors written without a prefix.
const NamespaceAny = "*"

// IsLastInCompound reports whether s ends its compound selector.
func (s *Selector) IsLastInCompound() bool {
	return s.lastInComplex || s.Relation != RelationSubSelector
}

// IsLastInComplex reports whether s ends its complex selector.
func (s *Selector) IsLastInComplex() bool {
	return s.lastInComplex
}

// IsLastInList reports whether s is the final record of its list.
func (s *Selector) IsLastInList() bool {
	return s.lastInList
}

// IsIDClassOrAttribute reports selectors keyed by an element feature that
// can change at runtime.
func (s *Selector) IsIDClassOrAttribute() bool {
	return s.Match == MatchID || s.Match == MatchClass || s.Match.IsAttribute()
}

// SelectorList is a list of complex selectors stored as one flat array of
// simple selector records. Each complex selector is stored rightmost compound
// first; end markers take the place of lengths.
type SelectorList struct {
	sels []Selector
}

// EmptySelectorList returns the invalid sentinel list.
func EmptySelectorList() *SelectorList {
	return &SelectorList{sels: []Selector{{
		Match:         MatchUnknown,
		lastInComplex: true,
		lastInList:    true,
	}}}
}

// AdoptSelectors takes ownership of a flat record array and marks its final
// record as the end of the list. An empty array yields the sentinel list.
func AdoptSelectors(sels []Selector) *SelectorList {
	if len(sels) == 0 {
		return EmptySelectorList()
	}
	for i := range sels {
		sels[i].lastInList = false
	}
	last := &sels[len(sels)-1]
	last.lastInComplex = true
	last.lastInList = true
	return &SelectorList{sels: sels}
}

// IsValid reports whether the list holds at least one selector.
func (l *SelectorList) IsValid() bool {
	return l != nil && len(l.sels) > 0 && l.sels[0].Match != MatchUnknown
}

// First returns the index of the first complex selector, or -1 for an
// invalid list.
func (l *SelectorList) First() int {
	if !l.IsValid() {
		return -1
	}
	return 0
}

// SelectorAt returns the record at index i.
func (l *SelectorList) SelectorAt(i int) *Selector {
	return &l.sels[i]
}

// Len returns the number of records.
func (l *SelectorList) Len() int {
	return len(l.sels)
}

// Next returns the index of the complex selector following the one that
// starts at i, or -1 after the last one.
func (l *SelectorList) Next(i int) int {
	return l.IndexOfNextSelectorAfter(i)
}

// IndexOfNextSelectorAfter returns the start of the next complex selector
// after the one containing record i, or -1.
func (l *SelectorList) IndexOfNextSelectorAfter(i int) int {
	for ; i < len(l.sels); i++ {
		if l.sels[i].lastInList {
			return -1
		}
		if l.sels[i].lastInComplex {
			return i + 1
		}
	}
	return -1
}

// NextSimpleSelector returns the record after i in the same complex
// selector, crossing combinators, or -1.
func (l *SelectorList) NextSimpleSelector(i int) int {
	if l.sels[i].lastInComplex {
		return -1
	}
	return i + 1
}

// NextInCompound returns the record after i in the same compound, or -1.
func (l *SelectorList) NextInCompound(i int) int {
	if l.sels[i].IsLastInCompound() {
		return -1
	}
	return i + 1
}

// LastInCompound returns the index of the record ending the compound that
// contains i.
func (l *SelectorList) LastInCompound(i int) int {
	for !l.sels[i].IsLastInCompound() {
		i++
	}
	return i
}

// ComplexCount returns the number of complex selectors in the list.
func (l *SelectorList) ComplexCount() int {
	n := 0
	for i := l.First(); i >= 0; i = l.Next(i) {
		n++
	}
	return n
}

// Reparent points every nesting selector in the list at parent.
func (l *SelectorList) Reparent(parent *SelectorList) {
	l.reparent(parent, 0)
}

func (l *SelectorList) reparent(parent *SelectorList, depth int) {
	if l == nil || depth > MaxNestingDepth {
		return
	}
	for i := range l.sels {
		s := &l.sels[i]
		if s.Pseudo == PseudoParent {
			s.List = parent
			continue
		}
		if s.List != nil && s.List != parent {
			s.List.reparent(parent, depth+1)
		}
	}
}

// HasParentSelector reports whether any selector in the list, including
// nested lists, is '&'.
func (l *SelectorList) HasParentSelector() bool {
	return l.hasParent(0)
}

func (l *SelectorList) hasParent(depth int) bool {
	if l == nil || depth > MaxNestingDepth {
		return false
	}
	for i := range l.sels {
		s := &l.sels[i]
		if s.Pseudo == PseudoParent {
			return true
		}
		if s.List != nil && s.List.hasParent(depth+1) {
			return true
		}
	}
	return false
}
