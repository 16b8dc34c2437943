package invalidation

import (
	css "github.com/ericchiang/css-invalidation"
)

// mode is the strategy the visitor runs with. The builder creates and
// modifies sets; the tracer looks up existing sets and records what the
// builder would have added to them.
type mode interface {
	// ensure returns the set for k of type typ. Global keys always name
	// sibling sets.
	ensure(k setKey, typ SetType, pos position, inNth bool, via *css.Selector) setRef
	siblingDescendants(r setRef) setRef
	// insertIntoBloom reports whether name is covered by the Bloom filter
	// instead of a set.
	insertIntoBloom(k setKey, via *css.Selector, salt uint64) bool

	addFeatures(r setRef, f *features)
	setInvalidatesSelf(r setRef)
	setInvalidatesNth(r setRef)
	setWholeSubtreeInvalid(r setRef)
	updateMaxDirectAdjacent(r setRef, n int)

	collectHasValue(k setKey)
	setUniversalInHas()
	fullRecalc()
	metadata() *Metadata
}

// setRef is a set handed out by a mode. The set is nil when tracing a
// selector that the traced data never indexed.
type setRef struct {
	key  setKey
	part string
	set  *Set
	// via is the simple selector whose feature keys the set.
	via *css.Selector
}

// addMethod selects the compounds of a logical combination inside :has()
// that get features added.
type addMethod uint8

const (
	forAllNonRightmostCompounds addMethod = iota
	forCompoundImmediatelyFollowsAdjacent
)

type visitor struct {
	m        mode
	maxDepth int
	depth    int
}

func newVisitor(m mode, maxDepth int) *visitor {
	return &visitor{m: m, maxDepth: maxDepth}
}

// enter guards recursion into nested selector lists. Past the limit the
// data is marked as needing a full recalc and the caller must not recurse.
func (v *visitor) enter() bool {
	if v.depth >= v.maxDepth {
		v.m.fullRecalc()
		return false
	}
	v.depth++
	return true
}

func (v *visitor) leave() { v.depth-- }

// collectFeatures indexes the complex selector of a style rule starting at
// record i.
func (v *visitor) collectFeatures(l *css.SelectorList, i int, scope *css.StyleScope) {
	v.collectMetadata(l, i)
	var f features
	v.updateForComplex(l, i, false, scope, &f, subject, css.PseudoUnknown)
	if !f.hasFeaturesForRuleSetInvalidation {
		v.m.metadata().NeedsFullRecalcForRuleSetInvalidation = true
	}
}

// updateForComplex extracts the features of the rightmost compound, then
// adds them to the sets of every simple selector to its left. It returns
// the last record of the rightmost compound when there are compounds to
// its left, or -1.
//
// When the rightmost compound needs subtree invalidation, the walk starts
// at the rightmost compound itself.
func (v *visitor) updateForComplex(l *css.SelectorList, i int, inNth bool, scope *css.StyleScope, f *features, pos position, pseudo css.PseudoType) int {
	var sib *features

	last := v.extractFromCompound(l, i, f, pos, false, inNth)

	wasWhole := f.flags.wholeSubtree
	if wasWhole {
		f.hasFeaturesForRuleSetInvalidation = false
	} else if !f.hasFeatures() {
		f.flags.wholeSubtree = true
	}

	// Only the outermost complex selector feeds the nth set; nested ones
	// report hasNthPseudo upwards.
	if pseudo == css.PseudoUnknown && f.hasNthPseudo {
		nth := v.m.ensure(globalKey(keyNth), SiblingSet, ancestor, false, l.SelectorAt(i))
		v.m.addFeatures(nth, f)
		v.m.setInvalidatesSelf(nth)
	}

	next := i
	if last >= 0 {
		next = l.NextSimpleSelector(last)
	}
	if next >= 0 {
		if last >= 0 {
			v.updateFromCombinator(l.SelectorAt(last).Relation, nil, -1, f, &sib, f, false, inNth)
		}
		v.addFeaturesToInvalidationSets(l, next, inNth, sib, f)
		v.markWithinNthChild(l, next, inNth)
	}

	if scope != nil {
		desc := f
		if sib != nil {
			desc = sib
		}
		v.addFeaturesForStyleScope(scope, desc)
	}

	if next < 0 {
		return -1
	}
	// Callers must tell "needs a subtree recalc" from "has no features".
	f.flags.wholeSubtree = wasWhole
	return last
}

// requiresSubtreeInvalidation reports simple selectors whose effect can't be
// narrowed to the element carrying the feature.
func requiresSubtreeInvalidation(s *css.Selector) bool {
	if s.Match != css.MatchPseudoClass && s.Match != css.MatchPseudoElement {
		return false
	}
	switch s.Pseudo {
	case css.PseudoFirstLine, css.PseudoFirstLetter:
		return true
	case css.PseudoHostContext:
		// The argument matches an ancestor of the host, not the host.
		return true
	}
	return false
}

// extractFromCompound adds the features of the compound starting at i to f
// and registers self-invalidation for it in subject position. It returns
// the compound's last record, or -1 if the compound needs subtree
// invalidation.
func (v *visitor) extractFromCompound(l *css.SelectorList, i int, f *features, pos position, forHas, inNth bool) int {
	for j := i; ; j++ {
		s := l.SelectorAt(j)
		if requiresSubtreeInvalidation(s) {
			f.flags.wholeSubtree = true
			return -1
		}

		// :not(.b) matches elements without .b, so .b can't narrow. It still
		// gets a set below, since its changes must be seen.
		if !(s.Match == css.MatchPseudoClass && s.Pseudo == css.PseudoNot) {
			extractFromSimple(s, f)
		}

		if r, ok := v.setFor(s, DescendantSet, pos, inNth); ok {
			if r.key.kind == keyNth {
				f.hasNthPseudo = true
			} else if pos == subject {
				v.m.setInvalidatesSelf(r)
				if inNth {
					v.m.setInvalidatesNth(r)
				}
			}
		}

		if s.Match == css.MatchPseudoClass && s.Pseudo == css.PseudoHas && !forHas {
			v.collectValuesInHas(s)
			v.addFeaturesForHas(s, l, i, nil, f, inNth)
		}

		v.extractFromSelectorList(s, inNth, f, pos)

		if f.flags.invalidatesParts {
			v.m.metadata().InvalidatesParts = true
		}
		if s.IsLastInCompound() {
			return j
		}
	}
}

func extractFromSimple(s *css.Selector, f *features) {
	switch {
	case s.Match == css.MatchTag:
		f.narrowToTag(s.Value)
	case s.Match == css.MatchID:
		f.narrowToID(s.Value)
		f.hasFeaturesForRuleSetInvalidation = true
	case s.Match == css.MatchClass:
		f.narrowToClass(s.Value)
		f.hasFeaturesForRuleSetInvalidation = true
	case s.Match.IsAttribute():
		f.narrowToAttribute(s.Attr)
		f.hasFeaturesForRuleSetInvalidation = true
	case s.Match == css.MatchPseudoElement:
		switch s.Pseudo {
		case css.PseudoWebKitCustomElement:
			f.flags.customPseudo = true
		case css.PseudoSlotted:
			f.flags.invalidatesSlotted = true
		case css.PseudoPart:
			f.flags.invalidatesParts = true
			f.flags.treeBoundaryCrossing = true
		}
	}
}

// takesInvalidationList reports pseudos whose selector list arguments are
// indexed.
func takesInvalidationList(s *css.Selector) bool {
	if s.List == nil || !s.List.IsValid() {
		return false
	}
	switch s.Pseudo {
	case css.PseudoIs, css.PseudoWhere, css.PseudoNot, css.PseudoParent,
		css.PseudoNthChild, css.PseudoNthLastChild,
		css.PseudoHost, css.PseudoHostContext, css.PseudoSlotted:
		return true
	}
	return false
}

// extractFromSelectorList indexes the branches of a selector list argument
// in the rightmost compound, and narrows f to the union of their features
// when every branch has some. :has() arguments are handled separately
// since they describe other elements.
func (v *visitor) extractFromSelectorList(s *css.Selector, inNth bool, f *features, pos position) {
	if !takesInvalidationList(s) || s.Pseudo == css.PseudoHas {
		return
	}
	if !v.enter() {
		f.flags.wholeSubtree = true
		return
	}
	defer v.leave()
	saved := f.save()
	defer f.restore(saved)

	innerNth := inNth || s.Pseudo == css.PseudoNthChild || s.Pseudo == css.PseudoNthLastChild
	all := true
	var union features
	for j := s.List.First(); j >= 0; j = s.List.Next(j) {
		var cf features
		v.updateForComplex(s.List, j, innerNth, nil, &cf, pos, s.Pseudo)
		if cf.hasNthPseudo {
			f.hasNthPseudo = true
		}
		if cf.hasFeaturesForRuleSetInvalidation {
			f.hasFeaturesForRuleSetInvalidation = true
		}
		if !all {
			continue
		}
		if cf.hasFeatures() {
			union.add(&cf)
		} else {
			// A branch like "*" or "span:hover" matches elements with no
			// feature in common with the others.
			all = false
		}
	}
	if s.Pseudo == css.PseudoNot {
		return
	}
	if all {
		f.narrowToFeatures(&union)
	}
	f.flags.merge(union.flags)
}

// restorePoint holds the parts of a feature bag that nested selector lists
// change only for their own duration.
type restorePoint struct {
	maxDirectAdjacent      int
	descendantDepth        int
	treeBoundaryCrossing   bool
	insertionPointCrossing bool
}

func (f *features) save() restorePoint {
	if f == nil {
		return restorePoint{}
	}
	return restorePoint{
		maxDirectAdjacent:      f.maxDirectAdjacent,
		descendantDepth:        f.descendantDepth,
		treeBoundaryCrossing:   f.flags.treeBoundaryCrossing,
		insertionPointCrossing: f.flags.insertionPointCrossing,
	}
}

func (f *features) restore(r restorePoint) {
	if f == nil {
		return
	}
	f.maxDirectAdjacent = r.maxDirectAdjacent
	f.descendantDepth = r.descendantDepth
	f.flags.treeBoundaryCrossing = r.treeBoundaryCrossing
	f.flags.insertionPointCrossing = r.insertionPointCrossing
}

// invalidatingPseudos are the pseudo-classes an element can enter or leave
// without any of its names changing.
var invalidatingPseudos = map[css.PseudoType]bool{
	css.PseudoEmpty:            true,
	css.PseudoFirstChild:       true,
	css.PseudoLastChild:        true,
	css.PseudoOnlyChild:        true,
	css.PseudoLink:             true,
	css.PseudoVisited:          true,
	css.PseudoAnyLink:          true,
	css.PseudoHover:            true,
	css.PseudoFocus:            true,
	css.PseudoFocusVisible:     true,
	css.PseudoFocusWithin:      true,
	css.PseudoActive:           true,
	css.PseudoChecked:          true,
	css.PseudoEnabled:          true,
	css.PseudoDefault:          true,
	css.PseudoDisabled:         true,
	css.PseudoOptional:         true,
	css.PseudoPlaceholderShown: true,
	css.PseudoRequired:         true,
	css.PseudoReadOnly:         true,
	css.PseudoReadWrite:        true,
	css.PseudoValid:            true,
	css.PseudoInvalid:          true,
	css.PseudoIndeterminate:    true,
	css.PseudoTarget:           true,
	css.PseudoLang:             true,
	css.PseudoDir:              true,
	css.PseudoDefined:          true,
	css.PseudoHas:              true,
}

// setFor returns the set keyed by the feature of simple selector s. ok is
// false when s has no feature to key on, or when a subject-position class
// or id went to the Bloom filter.
func (v *visitor) setFor(s *css.Selector, typ SetType, pos position, inNth bool) (setRef, bool) {
	selfOnly := typ == DescendantSet && pos == subject && !inNth
	switch {
	case s.Match == css.MatchClass:
		k := classKey(s.Value)
		if selfOnly && v.m.insertIntoBloom(k, s, classSalt) {
			return setRef{}, false
		}
		return v.m.ensure(k, typ, pos, inNth, s), true
	case s.Match == css.MatchID:
		k := idKey(s.Value)
		if selfOnly && v.m.insertIntoBloom(k, s, idSalt) {
			return setRef{}, false
		}
		return v.m.ensure(k, typ, pos, inNth, s), true
	case s.Match.IsAttribute():
		return v.m.ensure(attributeKey(s.Attr), typ, pos, inNth, s), true
	case s.Match == css.MatchPseudoClass:
		switch s.Pseudo {
		case css.PseudoFirstOfType, css.PseudoLastOfType, css.PseudoOnlyOfType,
			css.PseudoNthChild, css.PseudoNthOfType, css.PseudoNthLastChild, css.PseudoNthLastOfType:
			return v.m.ensure(globalKey(keyNth), SiblingSet, ancestor, false, s), true
		}
		if invalidatingPseudos[s.Pseudo] {
			return v.m.ensure(pseudoKey(s.Pseudo), typ, pos, inNth, s), true
		}
	}
	return setRef{}, false
}

// addFeaturesToInvalidationSets walks the compounds from record i leftward,
// adding desc (or sib, across sibling combinators) to each simple
// selector's set.
func (v *visitor) addFeaturesToInvalidationSets(l *css.SelectorList, i int, inNth bool, sib, desc *features) {
	var chain features
	for c := i; c >= 0; {
		last := v.addFeaturesForCompound(l, c, inNth, sib, desc)
		v.updateFromCombinator(l.SelectorAt(last).Relation, l, c, &chain, &sib, desc, false, inNth)
		c = l.NextSimpleSelector(last)
	}
}

func (v *visitor) addFeaturesForCompound(l *css.SelectorList, i int, inNth bool, sib, desc *features) int {
	keyed := false
	j := i
	for ; ; j++ {
		s := l.SelectorAt(j)
		v.addFeaturesForSimple(l, j, i, inNth, sib, desc)
		if s.IsIDClassOrAttribute() {
			keyed = true
		}
		if s.IsLastInCompound() {
			break
		}
	}
	if keyed {
		desc.hasFeaturesForRuleSetInvalidation = true
	} else if sib != nil {
		// Nothing keys this compound, so inserting or removing any element
		// may change which siblings match.
		v.addFeaturesToUniversalSiblingSet(l.SelectorAt(i), sib, desc)
	}
	return j
}

func (v *visitor) addFeaturesToUniversalSiblingSet(via *css.Selector, sib, desc *features) {
	r := v.m.ensure(globalKey(keyUniversalSibling), SiblingSet, ancestor, false, via)
	v.m.addFeatures(r, sib)
	v.m.updateMaxDirectAdjacent(r, sib.maxDirectAdjacent)
	if sib == desc {
		v.m.setInvalidatesSelf(r)
		return
	}
	v.m.addFeatures(v.m.siblingDescendants(r), desc)
}

func (v *visitor) addFeaturesForSimple(l *css.SelectorList, j, compound int, inNth bool, sib, desc *features) {
	s := l.SelectorAt(j)
	if s.IsIDClassOrAttribute() {
		desc.hasFeaturesForRuleSetInvalidation = true
	}
	isHas := s.Match == css.MatchPseudoClass && s.Pseudo == css.PseudoHas
	if isHas {
		v.collectValuesInHas(s)
		v.addFeaturesForHas(s, l, compound, sib, desc, inNth)
	}

	typ := DescendantSet
	if sib != nil {
		typ = SiblingSet
	}
	if r, ok := v.setFor(s, typ, ancestor, inNth); ok {
		if sib == nil {
			if r.key.kind == keyNth {
				v.m.setWholeSubtreeInvalid(r)
				v.m.addFeatures(v.m.siblingDescendants(r), desc)
				return
			}
			v.m.addFeatures(r, desc)
			return
		}
		v.m.updateMaxDirectAdjacent(r, sib.maxDirectAdjacent)
		v.m.addFeatures(r, sib)
		if sib == desc {
			v.m.setInvalidatesSelf(r)
			if inNth {
				v.m.setInvalidatesNth(r)
			}
		} else {
			v.m.addFeatures(v.m.siblingDescendants(r), desc)
		}
		return
	}
	if isHas {
		return
	}
	if s.Pseudo == css.PseudoPart {
		desc.flags.invalidatesParts = true
	}
	v.addFeaturesForSelectorList(s, inNth, sib, desc)
}

// addFeaturesForSelectorList walks each branch of a selector list argument
// in a non-rightmost compound as if it replaced the compound.
func (v *visitor) addFeaturesForSelectorList(s *css.Selector, inNth bool, sib, desc *features) {
	if !takesInvalidationList(s) {
		return
	}
	if !v.enter() {
		return
	}
	defer v.leave()

	sibSaved, descSaved := sib.save(), desc.save()
	defer func() {
		sib.restore(sibSaved)
		desc.restore(descSaved)
	}()

	switch s.Pseudo {
	case css.PseudoHost:
		desc.flags.treeBoundaryCrossing = true
	case css.PseudoHostContext:
		desc.flags.treeBoundaryCrossing = true
		// The argument may match any shadow-including ancestor of the host.
		wasWhole := desc.flags.wholeSubtree
		desc.flags.wholeSubtree = true
		defer func() { desc.flags.wholeSubtree = wasWhole }()
	case css.PseudoSlotted:
		desc.flags.insertionPointCrossing = true
	}
	innerNth := inNth || s.Pseudo == css.PseudoNthChild || s.Pseudo == css.PseudoNthLastChild
	for j := s.List.First(); j >= 0; j = s.List.Next(j) {
		bs, bd := sib.save(), desc.save()
		v.addFeaturesToInvalidationSets(s.List, j, innerNth, sib, desc)
		sib.restore(bs)
		desc.restore(bd)
	}
}

// updateFromCombinator moves the walk across the combinator rel to the left
// of the compound starting at compound. Sibling combinators start or extend
// a sibling chain whose features are those of the compound to their right;
// any other combinator ends it.
func (v *visitor) updateFromCombinator(rel css.Relation, l *css.SelectorList, compound int, chain *features, sib **features, desc *features, forHas, inNth bool) {
	if rel == css.RelationDirectAdjacent || rel == css.RelationIndirectAdjacent {
		if *sib == nil {
			*sib = chain
			if l != nil && compound >= 0 {
				v.extractFromCompound(l, compound, chain, ancestor, forHas, inNth)
				if !chain.hasFeatures() {
					chain.flags.wholeSubtree = true
				}
			}
		}
		s := *sib
		switch {
		case s.maxDirectAdjacent == DirectAdjacentMax:
		case rel == css.RelationDirectAdjacent:
			s.maxDirectAdjacent++
		default:
			s.maxDirectAdjacent = DirectAdjacentMax
		}
		return
	}

	desc.descendantDepth++
	if *sib != nil && chain.maxDirectAdjacent != 0 {
		*chain = features{}
	}
	*sib = nil

	switch rel {
	case css.RelationUAShadow, css.RelationShadowPart:
		desc.flags.treeBoundaryCrossing = true
	case css.RelationShadowSlot:
		desc.flags.insertionPointCrossing = true
	}
}

// markWithinNthChild flags the sets of every simple selector inside an
// :nth-child(… of S) argument, so changes there recount siblings.
func (v *visitor) markWithinNthChild(l *css.SelectorList, i int, inNth bool) {
	for j := i; j >= 0; j = l.NextSimpleSelector(j) {
		s := l.SelectorAt(j)
		if inNth {
			if r, ok := v.setFor(s, DescendantSet, ancestor, true); ok {
				v.m.setInvalidatesNth(r)
			}
		}
		if !takesInvalidationList(s) || s.Pseudo == css.PseudoParent {
			continue
		}
		if !v.enter() {
			return
		}
		sub := inNth || s.Pseudo == css.PseudoNthChild || s.Pseudo == css.PseudoNthLastChild
		for k := s.List.First(); k >= 0; k = s.List.Next(k) {
			v.markWithinNthChild(s.List, k, sub)
		}
		v.leave()
	}
}

// addFeaturesForStyleScope makes changes to the features of an @scope
// prelude invalidate the elements the rule can match. The scoping root and
// limit elements are invalidated themselves as well as their subtrees.
func (v *visitor) addFeaturesForStyleScope(scope *css.StyleScope, desc *features) {
	for sc := scope; sc != nil; sc = sc.Parent {
		for _, l := range []*css.SelectorList{sc.From, sc.To} {
			if !l.IsValid() {
				continue
			}
			for j := l.First(); j >= 0; j = l.Next(j) {
				v.addFeaturesToInvalidationSets(l, j, false, nil, desc)
				for k := j; ; k++ {
					s := l.SelectorAt(k)
					if r, ok := v.setFor(s, DescendantSet, ancestor, false); ok {
						v.m.setInvalidatesSelf(r)
					}
					if s.IsLastInCompound() {
						break
					}
				}
			}
		}
	}
}

// collectMetadata records the properties reported by RuleData.Metadata.
func (v *visitor) collectMetadata(l *css.SelectorList, i int) {
	meta := v.m.metadata()
	adjacent := 0
	for j := i; j >= 0; j = l.NextSimpleSelector(j) {
		s := l.SelectorAt(j)
		switch s.Pseudo {
		case css.PseudoFirstLine:
			if s.Match == css.MatchPseudoElement {
				meta.UsesFirstLineRules = true
			}
		case css.PseudoPart:
			meta.InvalidatesParts = true
		}
		if s.IsLastInCompound() && !s.IsLastInComplex() {
			if s.Relation == css.RelationDirectAdjacent {
				adjacent++
				meta.MaxDirectAdjacentSelectors = max(meta.MaxDirectAdjacentSelectors, adjacent)
			} else {
				adjacent = 0
			}
		}
		if s.List == nil || s.Pseudo == css.PseudoParent {
			continue
		}
		if !v.enter() {
			return
		}
		for k := s.List.First(); k >= 0; k = s.List.Next(k) {
			v.collectMetadata(s.List, k)
		}
		v.leave()
	}
}
