package invalidation

import (
	"cmp"
	"slices"

	css "github.com/ericchiang/css-invalidation"
	"github.com/ericchiang/css-invalidation/internal/bloom"
)

// Salts keep class and id names apart in the shared Bloom filter.
const (
	classSalt = 13
	idSalt    = 29
)

type keyKind uint8

const (
	keyClass keyKind = iota
	keyID
	keyAttribute
	keyPseudo
	keyTag
	keyNth
	keyUniversalSibling
)

func (k keyKind) String() string {
	switch k {
	case keyClass:
		return "class"
	case keyID:
		return "id"
	case keyAttribute:
		return "attribute"
	case keyPseudo:
		return "pseudo"
	case keyTag:
		return "tag"
	case keyNth:
		return "nth"
	}
	return "universal-sibling"
}

// setKey names an invalidation set: a feature of the changed element, or
// one of the two global sibling sets.
type setKey struct {
	kind   keyKind
	atom   css.Atom
	pseudo css.PseudoType
}

func classKey(a css.Atom) setKey        { return setKey{kind: keyClass, atom: a} }
func idKey(a css.Atom) setKey           { return setKey{kind: keyID, atom: a} }
func attributeKey(a css.Atom) setKey    { return setKey{kind: keyAttribute, atom: a} }
func pseudoKey(p css.PseudoType) setKey { return setKey{kind: keyPseudo, pseudo: p} }
func tagKey(a css.Atom) setKey          { return setKey{kind: keyTag, atom: a} }
func globalKey(kind keyKind) setKey     { return setKey{kind: kind} }
func (k setKey) isGlobal() bool         { return k.kind == keyNth || k.kind == keyUniversalSibling }
func (k setKey) compare(o setKey) int   { return cmp.Compare(k.String(), o.String()) }

// String returns the selector-like name of the key, such as ".a" or ":hover".
func (k setKey) String() string {
	switch k.kind {
	case keyClass:
		return "." + k.atom.String()
	case keyID:
		return "#" + k.atom.String()
	case keyAttribute:
		return "[" + k.atom.String() + "]"
	case keyPseudo:
		return ":" + k.pseudo.String()
	case keyTag:
		return k.atom.String()
	case keyNth:
		return ":nth-child"
	}
	return "*"
}

// Metadata summarizes properties of the indexed selectors that a style
// engine checks before using the sets.
type Metadata struct {
	UsesFirstLineRules                    bool `yaml:"uses_first_line_rules"`
	MaxDirectAdjacentSelectors            int  `yaml:"max_direct_adjacent_selectors"`
	InvalidatesParts                      bool `yaml:"invalidates_parts"`
	UsesHasInsideNth                      bool `yaml:"uses_has_inside_nth"`
	NeedsFullRecalcForRuleSetInvalidation bool `yaml:"needs_full_recalc_for_rule_set_invalidation"`
}

func (m *Metadata) merge(o Metadata) {
	m.UsesFirstLineRules = m.UsesFirstLineRules || o.UsesFirstLineRules
	m.MaxDirectAdjacentSelectors = max(m.MaxDirectAdjacentSelectors, o.MaxDirectAdjacentSelectors)
	m.InvalidatesParts = m.InvalidatesParts || o.InvalidatesParts
	m.UsesHasInsideNth = m.UsesHasInsideNth || o.UsesHasInsideNth
	m.NeedsFullRecalcForRuleSetInvalidation = m.NeedsFullRecalcForRuleSetInvalidation || o.NeedsFullRecalcForRuleSetInvalidation
}

// RuleData holds the invalidation sets built from a set of style rules.
// It's built by a Builder, then read by any number of goroutines once
// Finalize has been called.
type RuleData struct {
	sets map[setKey]*Set
	// hasValues are the names appearing inside :has() arguments.
	hasValues      map[setKey]bool
	universalInHas bool

	// Names only ever used in subject position are recorded in the filter
	// once enough candidates have been seen, instead of being stored as
	// sets.
	names          *bloom.Filter
	numCandidates  int
	bloomThreshold int

	needsFullRecalc bool
	meta            Metadata
	finalized       bool
}

func newRuleData(threshold int) *RuleData {
	return &RuleData{
		sets:           map[setKey]*Set{},
		hasValues:      map[setKey]bool{},
		bloomThreshold: threshold,
	}
}

// InvalidationLists are the sets to apply for one changed feature.
type InvalidationLists struct {
	Descendants []*Set
	Siblings    []*Set
}

func (l *InvalidationLists) add(s *Set) {
	if s == nil {
		return
	}
	if s.typ == DescendantSet {
		l.Descendants = append(l.Descendants, s)
		return
	}
	l.Siblings = append(l.Siblings, s)
	if s.descendants != nil {
		l.Descendants = append(l.Descendants, s.descendants)
	}
}

// IsEmpty reports whether there's nothing to apply.
func (l *InvalidationLists) IsEmpty() bool {
	return len(l.Descendants) == 0 && len(l.Siblings) == 0
}

func (d *RuleData) mayContain(name css.Atom, salt uint64) bool {
	return d.names != nil && d.names.MayContain(bloom.Key(name.String(), salt))
}

// CollectInvalidationSetsForClass returns the sets to apply when class
// name is added to or removed from an element.
func (d *RuleData) CollectInvalidationSetsForClass(name string) InvalidationLists {
	var l InvalidationLists
	a, ok := css.LookupAtom(name)
	if !ok {
		return l
	}
	if d.mayContain(a, classSalt) {
		l.Descendants = append(l.Descendants, selfSet)
	}
	l.add(d.sets[classKey(a)])
	return l
}

// CollectInvalidationSetsForID returns the sets to apply when an element's
// id changes to or from name.
func (d *RuleData) CollectInvalidationSetsForID(name string) InvalidationLists {
	var l InvalidationLists
	a, ok := css.LookupAtom(name)
	if !ok {
		return l
	}
	if d.mayContain(a, idSalt) {
		l.Descendants = append(l.Descendants, selfSet)
	}
	l.add(d.sets[idKey(a)])
	return l
}

// CollectInvalidationSetsForAttribute returns the sets to apply when the
// named attribute changes.
func (d *RuleData) CollectInvalidationSetsForAttribute(name string) InvalidationLists {
	var l InvalidationLists
	if a, ok := css.LookupAtom(name); ok {
		l.add(d.sets[attributeKey(a)])
	}
	return l
}

// CollectInvalidationSetsForPseudoClass returns the sets to apply when an
// element enters or leaves the pseudo-class.
func (d *RuleData) CollectInvalidationSetsForPseudoClass(p css.PseudoType) InvalidationLists {
	var l InvalidationLists
	l.add(d.sets[pseudoKey(p)])
	return l
}

// NthInvalidationSet is applied to all children of an element whose child
// list changed. May be nil.
func (d *RuleData) NthInvalidationSet() *Set {
	return d.sets[globalKey(keyNth)]
}

// UniversalSiblingInvalidationSet is applied to the following siblings of
// any inserted or removed element. May be nil.
func (d *RuleData) UniversalSiblingInvalidationSet() *Set {
	return d.sets[globalKey(keyUniversalSibling)]
}

func (d *RuleData) NeedsHasInvalidationForClass(name string) bool {
	return d.hasValue(keyClass, name)
}

func (d *RuleData) NeedsHasInvalidationForID(name string) bool {
	return d.hasValue(keyID, name)
}

func (d *RuleData) NeedsHasInvalidationForAttribute(name string) bool {
	return d.hasValue(keyAttribute, name)
}

func (d *RuleData) NeedsHasInvalidationForTagName(name string) bool {
	return d.hasValue(keyTag, name)
}

func (d *RuleData) NeedsHasInvalidationForPseudoClass(p css.PseudoType) bool {
	return d.hasValues[pseudoKey(p)]
}

func (d *RuleData) hasValue(kind keyKind, name string) bool {
	a, ok := css.LookupAtom(name)
	return ok && d.hasValues[setKey{kind: kind, atom: a}]
}

// UniversalInHasArgument reports whether some :has() argument has a
// compound without any name to key on, so any insertion or removal may
// change it.
func (d *RuleData) UniversalInHasArgument() bool {
	return d.universalInHas
}

func (d *RuleData) usesHas() bool {
	return len(d.hasValues) > 0 || d.universalInHas
}

// NeedsFullRecalc reports that a selector was too deeply nested to index.
// Every mutation must then restyle the whole document.
func (d *RuleData) NeedsFullRecalc() bool {
	return d.needsFullRecalc
}

// Metadata returns properties of the indexed selectors.
func (d *RuleData) Metadata() Metadata {
	return d.meta
}

// Finalize freezes the sets. Finalized data may be read concurrently and
// merged into other RuleData values, which copy shared sets before
// modifying them.
func (d *RuleData) Finalize() {
	if d.finalized {
		return
	}
	for _, s := range d.sets {
		s.freeze()
	}
	d.finalized = true
}

// Merge adds the sets of other to d. Sets present only in other are shared
// rather than copied.
func (d *RuleData) Merge(other *RuleData) {
	if d.finalized {
		panic("invalidation: merging into finalized rule data")
	}
	for _, k := range other.keys() {
		s := other.sets[k]
		slot := d.sets[k]
		if slot == nil {
			d.sets[k] = s.acquire()
			continue
		}
		pos := ancestor
		if s.self {
			pos = subject
		}
		m, _ := ensureMutable(&slot, s.typ, pos, s.invalidatesNth)
		m.Combine(s)
		d.sets[k] = slot
	}
	for k := range other.hasValues {
		d.hasValues[k] = true
	}
	d.universalInHas = d.universalInHas || other.universalInHas
	if other.names != nil {
		if d.names == nil {
			d.names = other.names.Clone()
		} else {
			d.names.Union(other.names)
		}
	}
	d.numCandidates += other.numCandidates
	d.needsFullRecalc = d.needsFullRecalc || other.needsFullRecalc
	d.meta.merge(other.meta)
}

// keys returns the set keys in a stable order.
func (d *RuleData) keys() []setKey {
	keys := make([]setKey, 0, len(d.sets))
	for k := range d.sets {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, setKey.compare)
	return keys
}

// ForEachSet calls fn with every indexed set, ordered by key.
func (d *RuleData) ForEachSet(fn func(key string, s *Set)) {
	for _, k := range d.keys() {
		fn(k.String(), d.sets[k])
	}
}

// Summary is the serializable form of RuleData.
type Summary struct {
	Sets            map[string]*SetSummary `yaml:"sets"`
	HasArgument     []string               `yaml:"has_argument,omitempty"`
	UniversalInHas  bool                   `yaml:"universal_in_has,omitempty"`
	BloomFilter     bool                   `yaml:"bloom_filter"`
	BloomBitsSet    int                    `yaml:"bloom_bits_set,omitempty"`
	Candidates      int                    `yaml:"bloom_candidates"`
	NeedsFullRecalc bool                   `yaml:"needs_full_recalc,omitempty"`
	Metadata        Metadata               `yaml:"metadata"`
}

// Summary describes the indexed sets.
func (d *RuleData) Summary() *Summary {
	sum := &Summary{
		Sets:            make(map[string]*SetSummary, len(d.sets)),
		UniversalInHas:  d.universalInHas,
		BloomFilter:     d.names != nil,
		Candidates:      d.numCandidates,
		NeedsFullRecalc: d.needsFullRecalc,
		Metadata:        d.meta,
	}
	for k, s := range d.sets {
		sum.Sets[k.String()] = s.Summary()
	}
	if d.names != nil {
		sum.BloomBitsSet = d.names.PopCount()
	}
	for k := range d.hasValues {
		sum.HasArgument = append(sum.HasArgument, k.String())
	}
	slices.Sort(sum.HasArgument)
	return sum
}
