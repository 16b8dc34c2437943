package invalidation

import (
	"slices"
	"strings"

	css "github.com/ericchiang/css-invalidation"
)

// flags are the parts of a feature bag that aren't keyed by name.
type flags struct {
	wholeSubtree           bool
	treeBoundaryCrossing   bool
	insertionPointCrossing bool
	invalidatesSlotted     bool
	invalidatesParts       bool
	customPseudo           bool
}

func (f *flags) merge(o flags) {
	f.wholeSubtree = f.wholeSubtree || o.wholeSubtree
	f.treeBoundaryCrossing = f.treeBoundaryCrossing || o.treeBoundaryCrossing
	f.insertionPointCrossing = f.insertionPointCrossing || o.insertionPointCrossing
	f.invalidatesSlotted = f.invalidatesSlotted || o.invalidatesSlotted
	f.invalidatesParts = f.invalidatesParts || o.invalidatesParts
	f.customPseudo = f.customPseudo || o.customPseudo
}

// features describes the elements a compound selector can match: an
// element matching it has at least one of the listed names. No names and
// no name-less flags means nothing narrows the match.
type features struct {
	classes    []css.Atom
	ids        []css.Atom
	tagNames   []css.Atom
	attributes []css.Atom
	// emittedTagNames are type selectors dropped in favor of a narrower
	// feature. They're reported by the tracer but never stored in sets.
	emittedTagNames []css.Atom

	maxDirectAdjacent int
	flags             flags
	hasNthPseudo      bool
	// hasFeaturesForRuleSetInvalidation is set once an id, class or
	// attribute selector was seen anywhere in the complex selector.
	hasFeaturesForRuleSetInvalidation bool
	// descendantDepth counts the descendant-like combinators crossed while
	// walking left.
	descendantDepth int
}

func (f *features) size() int {
	return len(f.classes) + len(f.ids) + len(f.tagNames) + len(f.attributes)
}

// hasFeatures reports whether the bag narrows invalidation at all.
func (f *features) hasFeatures() bool {
	return f.size() > 0 || f.flags.customPseudo || f.flags.invalidatesParts
}

func (f *features) clearFeatures() {
	for _, t := range f.tagNames {
		f.emittedTagNames = appendAtom(f.emittedTagNames, t)
	}
	f.classes, f.ids, f.tagNames, f.attributes = nil, nil, nil, nil
}

func appendAtom(list []css.Atom, a css.Atom) []css.Atom {
	if slices.Contains(list, a) {
		return list
	}
	return append(list, a)
}

// A single narrowing feature is kept unless the new one is more specific:
// ids beat classes, classes beat attributes, attributes beat tag names.

func (f *features) narrowToID(a css.Atom) {
	if f.size() == 1 && len(f.ids) == 1 {
		return
	}
	f.clearFeatures()
	f.ids = []css.Atom{a}
}

func (f *features) narrowToClass(a css.Atom) {
	if f.size() == 1 && (len(f.ids) == 1 || len(f.classes) == 1) {
		return
	}
	f.clearFeatures()
	f.classes = []css.Atom{a}
}

func (f *features) narrowToAttribute(a css.Atom) {
	if f.size() == 1 && len(f.tagNames) == 0 {
		return
	}
	f.clearFeatures()
	f.attributes = []css.Atom{a}
}

func (f *features) narrowToTag(a css.Atom) {
	if f.size() == 1 {
		f.emittedTagNames = appendAtom(f.emittedTagNames, a)
		return
	}
	f.clearFeatures()
	f.tagNames = []css.Atom{a}
}

// narrowToFeatures replaces the names with the union of a selector list's
// branches when that's narrower.
func (f *features) narrowToFeatures(o *features) {
	size, other := f.size(), o.size()
	if size == 0 || (other >= 1 && other < size) {
		f.clearFeatures()
		f.addNames(o)
	}
}

func (f *features) addNames(o *features) {
	for _, a := range o.classes {
		f.classes = appendAtom(f.classes, a)
	}
	for _, a := range o.ids {
		f.ids = appendAtom(f.ids, a)
	}
	for _, a := range o.tagNames {
		f.tagNames = appendAtom(f.tagNames, a)
	}
	for _, a := range o.attributes {
		f.attributes = appendAtom(f.attributes, a)
	}
	for _, a := range o.emittedTagNames {
		f.emittedTagNames = appendAtom(f.emittedTagNames, a)
	}
}

// add merges another bag in, as for the branches of a selector list.
func (f *features) add(o *features) {
	f.addNames(o)
	f.maxDirectAdjacent = max(f.maxDirectAdjacent, o.maxDirectAdjacent)
	f.flags.merge(o.flags)
	f.hasNthPseudo = f.hasNthPseudo || o.hasNthPseudo
}

// String describes the names and flags for traces, such as ".b span".
func (f *features) String() string {
	var parts []string
	for _, a := range f.ids {
		parts = append(parts, "#"+a.String())
	}
	for _, a := range f.classes {
		parts = append(parts, "."+a.String())
	}
	for _, a := range f.attributes {
		parts = append(parts, "["+a.String()+"]")
	}
	for _, a := range f.tagNames {
		parts = append(parts, a.String())
	}
	if f.flags.wholeSubtree {
		parts = append(parts, "*")
	}
	if f.flags.customPseudo {
		parts = append(parts, "$custom-pseudo")
	}
	if f.flags.invalidatesParts {
		parts = append(parts, "$parts")
	}
	return strings.Join(parts, " ")
}
