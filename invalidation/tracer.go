package invalidation

import (
	"log/slog"

	css "github.com/ericchiang/css-invalidation"
)

// TraceEntry records one change the builder made, or would make, to a set
// while indexing a selector.
type TraceEntry struct {
	// Key names the set, such as ".a" or ":hover".
	Key string `yaml:"key"`
	// Part is empty for the set itself, or names the nested set written to:
	// "descendants", "sibling-descendants" or "bloom".
	Part string `yaml:"part,omitempty"`
	// Selector is the complex selector of the style rule being indexed.
	Selector string `yaml:"selector"`
	// Simple is the simple selector whose feature keys the set.
	Simple string `yaml:"simple"`
	// Features are the names added, or a flag: "$self", "$nth" or "*".
	Features string `yaml:"features"`
	// Emitted are type selectors dropped for a narrower feature.
	Emitted []string `yaml:"emitted,omitempty"`
	// Set is the indexed set, or nil when the data has no such set.
	Set *Set `yaml:"-"`
}

// Tracer replays the indexing of selectors against finalized data without
// modifying it, reporting which simple selectors feed which sets.
type Tracer struct {
	data    *RuleData
	log     *slog.Logger
	v       *visitor
	current string
	entries []TraceEntry
	// meta absorbs metadata updates, which the tracer doesn't report.
	meta Metadata
}

// NewTracer returns a tracer over data. A nil logger discards output.
func NewTracer(data *RuleData, logger *slog.Logger) *Tracer {
	if logger == nil {
		logger = discardLogger()
	}
	t := &Tracer{data: data, log: logger}
	t.v = newVisitor(&traceMode{t: t}, DefaultOptions().MaxDepth)
	return t
}

// TraceSelector returns the entries produced by indexing list.
func (t *Tracer) TraceSelector(list *css.SelectorList, scope *css.StyleScope) []TraceEntry {
	t.entries = nil
	t.trace(list, scope)
	return t.entries
}

func (t *Tracer) trace(list *css.SelectorList, scope *css.StyleScope) {
	if !list.IsValid() {
		return
	}
	for i := list.First(); i >= 0; i = list.Next(i) {
		t.current = list.ComplexText(i)
		t.v.depth = 0
		t.v.collectFeatures(list, i, scope)
	}
}

// TraceStyleSheet returns the entries produced by indexing every rule of
// sheet.
func (t *Tracer) TraceStyleSheet(sheet *css.StyleSheet) []TraceEntry {
	t.entries = nil
	for _, r := range sheet.Rules {
		t.trace(r.Selectors, r.Scope)
	}
	t.log.Debug("traced stylesheet", "rules", len(sheet.Rules), "entries", len(t.entries))
	return t.entries
}

// TraceSet returns the entries of sheet that write to the set named key,
// such as ".a", "#b", "[href]", ":hover", ":nth-child" or "*".
func (t *Tracer) TraceSet(sheet *css.StyleSheet, key string) []TraceEntry {
	var out []TraceEntry
	for _, e := range t.TraceStyleSheet(sheet) {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out
}

func (t *Tracer) record(r setRef, features string, emitted []css.Atom) {
	e := TraceEntry{
		Key:      r.key.String(),
		Part:     r.part,
		Selector: t.current,
		Features: features,
		Set:      r.set,
	}
	if r.via != nil {
		e.Simple = r.via.SimpleText()
	}
	for _, a := range emitted {
		e.Emitted = append(e.Emitted, a.String())
	}
	t.entries = append(t.entries, e)
}

type traceMode struct {
	t *Tracer
}

func (m *traceMode) ensure(k setKey, typ SetType, pos position, inNth bool, via *css.Selector) setRef {
	if k.isGlobal() {
		typ = SiblingSet
	}
	r := setRef{key: k, set: m.t.data.sets[k], via: via}
	if r.set != nil && typ == DescendantSet && r.set.typ == SiblingSet {
		r.part = "descendants"
		r.set = r.set.descendants
	}
	return r
}

func (m *traceMode) siblingDescendants(r setRef) setRef {
	r.part = "sibling-descendants"
	if r.set != nil {
		r.set = r.set.siblingDescendants
	}
	return r
}

func (m *traceMode) insertIntoBloom(k setKey, via *css.Selector, salt uint64) bool {
	d := m.t.data
	if !d.mayContain(k.atom, salt) {
		return false
	}
	m.t.record(setRef{key: k, part: "bloom", set: selfSet, via: via}, "$self", nil)
	// The name may have been added to the filter before it got a set in
	// another position; report the set too.
	return d.sets[k] == nil
}

func (m *traceMode) addFeatures(r setRef, f *features) {
	m.t.record(r, f.String(), f.emittedTagNames)
}

func (m *traceMode) setInvalidatesSelf(r setRef)         { m.t.record(r, "$self", nil) }
func (m *traceMode) setInvalidatesNth(r setRef)          { m.t.record(r, "$nth", nil) }
func (m *traceMode) setWholeSubtreeInvalid(r setRef)     { m.t.record(r, "*", nil) }
func (m *traceMode) updateMaxDirectAdjacent(setRef, int) {}
func (m *traceMode) collectHasValue(setKey)              {}
func (m *traceMode) setUniversalInHas()                  {}
func (m *traceMode) metadata() *Metadata                 { return &m.t.meta }

func (m *traceMode) fullRecalc() {
	m.t.log.Warn("selector nested too deeply to trace", "selector", m.t.current)
}
