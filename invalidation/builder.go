// Package invalidation builds invalidation sets from style rules and applies
// them to DOM mutations.
//
// For every simple selector to the left of a complex selector's rightmost
// compound, the builder records which elements must be restyled when the
// selector's feature (class, id, attribute or pseudo-class) changes on an
// element: descendants or following siblings carrying the rightmost
// compound's features, or whole subtrees when those can't be narrowed.
package invalidation

import (
	"io"
	"log/slog"

	css "github.com/ericchiang/css-invalidation"
	"github.com/ericchiang/css-invalidation/internal/bloom"
	"github.com/ericchiang/css-invalidation/internal/metrics"
)

// Options tune the builder.
type Options struct {
	// BloomThreshold is the number of subject-position class and id names
	// stored as sets before the rest go to a Bloom filter. Negative
	// disables the filter.
	BloomThreshold int
	// MaxDepth bounds recursion into nested selector lists. Deeper
	// selectors make RuleData.NeedsFullRecalc report true.
	MaxDepth int
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		BloomThreshold: 50,
		MaxDepth:       64,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Builder indexes style rules into RuleData.
type Builder struct {
	data    *RuleData
	v       *visitor
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewBuilder returns a builder with empty data. Zero fields of opts take
// their default values.
func NewBuilder(opts Options) *Builder {
	def := DefaultOptions()
	if opts.BloomThreshold == 0 {
		opts.BloomThreshold = def.BloomThreshold
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	b := &Builder{
		data:    newRuleData(opts.BloomThreshold),
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	b.v = newVisitor(&buildMode{b: b}, opts.MaxDepth)
	return b
}

// CollectFeaturesFromSelector indexes every complex selector of a style
// rule's selector list. scope is the rule's innermost @scope, or nil.
func (b *Builder) CollectFeaturesFromSelector(list *css.SelectorList, scope *css.StyleScope) {
	if b.data.finalized {
		panic("invalidation: builder used after Data")
	}
	if !list.IsValid() {
		return
	}
	for i := list.First(); i >= 0; i = list.Next(i) {
		b.v.depth = 0
		b.v.collectFeatures(list, i, scope)
		b.metrics.SelectorIndexed()
	}
}

// AddStyleSheet indexes every style rule of sheet.
func (b *Builder) AddStyleSheet(sheet *css.StyleSheet) {
	for _, r := range sheet.Rules {
		b.CollectFeaturesFromSelector(r.Selectors, r.Scope)
		b.metrics.RuleIndexed()
	}
	b.log.Debug("indexed stylesheet",
		"rules", len(sheet.Rules),
		"sets", len(b.data.sets),
		"bloom", b.data.names != nil)
}

// Data finalizes and returns the built data. The builder can't be used
// afterwards.
func (b *Builder) Data() *RuleData {
	b.data.Finalize()
	return b.data
}

type buildMode struct {
	b *Builder
}

func (m *buildMode) ensure(k setKey, typ SetType, pos position, inNth bool, via *css.Selector) setRef {
	d := m.b.data
	if k.isGlobal() {
		typ, pos, inNth = SiblingSet, ancestor, false
	}
	slot := d.sets[k]
	s, created := ensureMutable(&slot, typ, pos, inNth)
	d.sets[k] = slot
	if created {
		m.b.metrics.SetMaterialized(k.kind.String(), slot.typ.String())
	}
	return setRef{key: k, set: s, via: via}
}

func (m *buildMode) siblingDescendants(r setRef) setRef {
	return setRef{key: r.key, part: "sibling-descendants", set: r.set.ensureSiblingDescendants(), via: r.via}
}

func (m *buildMode) insertIntoBloom(k setKey, via *css.Selector, salt uint64) bool {
	d := m.b.data
	// Names that already have a set keep using it, and count once.
	if d.bloomThreshold < 0 || d.sets[k] != nil {
		return false
	}
	if d.names == nil {
		n := d.numCandidates
		d.numCandidates++
		if n < d.bloomThreshold {
			// Not worth the filter's memory yet; store a self set.
			return false
		}
		d.names = bloom.New()
		m.b.log.Debug("allocated self-invalidation filter", "candidates", d.numCandidates)
	}
	d.names.Add(bloom.Key(k.atom.String(), salt))
	m.b.metrics.BloomInsertion()
	return true
}

func (m *buildMode) addFeatures(r setRef, f *features) {
	s := r.set
	if f.flags.treeBoundaryCrossing {
		s.setTreeBoundaryCrossing()
	}
	if f.flags.insertionPointCrossing {
		s.setInsertionPointCrossing()
	}
	if f.flags.invalidatesSlotted {
		s.setInvalidatesSlotted()
	}
	if f.flags.wholeSubtree {
		s.setWholeSubtreeInvalid()
		return
	}
	if f.flags.invalidatesParts {
		s.setInvalidatesParts()
	}
	if f.flags.customPseudo {
		s.setCustomPseudoInvalid()
	}
	for _, a := range f.ids {
		s.addID(a)
	}
	for _, a := range f.classes {
		s.addClass(a)
	}
	for _, a := range f.tagNames {
		s.addTagName(a)
	}
	for _, a := range f.attributes {
		s.addAttribute(a)
	}
}

func (m *buildMode) setInvalidatesSelf(r setRef)             { r.set.setInvalidatesSelf() }
func (m *buildMode) setInvalidatesNth(r setRef)              { r.set.setInvalidatesNth() }
func (m *buildMode) setWholeSubtreeInvalid(r setRef)         { r.set.setWholeSubtreeInvalid() }
func (m *buildMode) updateMaxDirectAdjacent(r setRef, n int) { r.set.updateMaxDirectAdjacent(n) }
func (m *buildMode) collectHasValue(k setKey)                { m.b.data.hasValues[k] = true }
func (m *buildMode) setUniversalInHas()                      { m.b.data.universalInHas = true }
func (m *buildMode) metadata() *Metadata                     { return &m.b.data.meta }

func (m *buildMode) fullRecalc() {
	if !m.b.data.needsFullRecalc {
		m.b.log.Warn("selector nested too deeply to index; falling back to full recalc")
	}
	m.b.data.needsFullRecalc = true
	m.b.metrics.FullRecalcFallback()
}
