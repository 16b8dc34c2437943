package invalidation

import (
	css "github.com/ericchiang/css-invalidation"
)

// :has() arguments describe descendants and following siblings of the
// element carrying :has(). Changes inside that subtree are handled by
// walking up from the changed element (see Invalidator), using the names
// collected by collectValuesInHas. Sets are only needed for the parts of a
// logical combination inside :has() that can match outside that subtree,
// as in ".a:has(:is(.b .c))" where .b may be an ancestor of .a.

func isLogicalCombination(s *css.Selector) bool {
	if s.Match != css.MatchPseudoClass || s.List == nil || !s.List.IsValid() {
		return false
	}
	switch s.Pseudo {
	case css.PseudoIs, css.PseudoWhere, css.PseudoNot, css.PseudoParent:
		return true
	}
	return false
}

// hasComplex reports whether any selector in l has a combinator.
func hasComplex(l *css.SelectorList) bool {
	for i := 0; i < l.Len(); i++ {
		s := l.SelectorAt(i)
		if s.IsLastInCompound() && !s.IsLastInComplex() {
			return true
		}
	}
	return false
}

// containsComplexLogicalCombinations reports whether the :has() argument l
// holds a logical combination with a complex selector in it, at any depth.
func (v *visitor) containsComplexLogicalCombinations(l *css.SelectorList) bool {
	if !v.enter() {
		return true
	}
	defer v.leave()
	for i := 0; i < l.Len(); i++ {
		s := l.SelectorAt(i)
		if !isLogicalCombination(s) {
			continue
		}
		if hasComplex(s.List) || v.containsComplexLogicalCombinations(s.List) {
			return true
		}
	}
	return false
}

// addFeaturesForHas adds the features of the compound containing :has()
// to the sets of logical combinations inside its argument.
func (v *visitor) addFeaturesForHas(has *css.Selector, l *css.SelectorList, containing int, sib, desc *features, inNth bool) {
	if inNth {
		v.m.metadata().UsesHasInsideNth = true
	}
	if has.List == nil || !v.containsComplexLogicalCombinations(has.List) {
		return
	}

	// In ".a :has(:is(.b .c)).d" the features of the compound aren't known
	// yet when :has() is reached.
	wasWhole := desc.flags.wholeSubtree
	defer func() { desc.flags.wholeSubtree = wasWhole }()
	if !desc.hasFeatures() {
		desc.flags.wholeSubtree = true
	}

	// In subject position the changed element may be a preceding sibling of
	// the subject.
	if sib == nil && desc.descendantDepth == 0 {
		sib = desc
	}

	arg := has.List
	for j := arg.First(); j >= 0; j = arg.Next(j) {
		for k := j; ; k++ {
			s := arg.SelectorAt(k)
			if s.Pseudo == css.PseudoRelativeAnchor && s.Match == css.MatchPseudoClass {
				break
			}
			if isLogicalCombination(s) {
				// For ".a:has(:is(.b ~ .c)) .d", .b changing affects .d through
				// both passes: as a non-rightmost compound, and as the compound
				// right after a sibling combinator.
				v.addFeaturesForLogicalCombinationInHas(s, l, containing, sib, desc, css.RelationSubSelector, forAllNonRightmostCompounds)
				v.addFeaturesForLogicalCombinationInHas(s, l, containing, sib, desc, css.RelationSubSelector, forCompoundImmediatelyFollowsAdjacent)
			}
			if s.IsLastInComplex() {
				break
			}
		}
	}
}

func (v *visitor) addFeaturesForLogicalCombinationInHas(logical *css.Selector, l *css.SelectorList, containing int, sib, desc *features, prev css.Relation, method addMethod) {
	if !v.enter() {
		return
	}
	defer v.leave()

	list := logical.List
	for j := list.First(); j >= 0; j = list.Next(j) {
		rel := prev
		sibSaved, descSaved := sib.save(), desc.save()

		inner := sib
		var chain features
		for c := j; c >= 0; {
			var last int
			switch {
			case method == forAllNonRightmostCompounds && c == j:
				last = v.skipAddingInHas(list, c, l, containing, inner, desc, rel, method)
			case method == forCompoundImmediatelyFollowsAdjacent && !rel.IsAdjacent():
				last = v.skipAddingInHas(list, c, l, containing, inner, desc, rel, method)
			default:
				last = v.addFeaturesForCompound(list, c, false, inner, desc)
			}
			s := list.SelectorAt(last)
			if s.IsLastInComplex() {
				break
			}
			rel = s.Relation
			v.updateFromCombinatorInHas(rel, l, containing, &chain, &inner, desc)
			c = list.NextSimpleSelector(last)
		}

		sib.restore(sibSaved)
		desc.restore(descSaved)
	}
}

// skipAddingInHas steps over a compound without adding to its sets, but
// still visits logical combinations nested in it.
func (v *visitor) skipAddingInHas(list *css.SelectorList, c int, l *css.SelectorList, containing int, sib, desc *features, prev css.Relation, method addMethod) int {
	for j := c; ; j++ {
		s := list.SelectorAt(j)
		if isLogicalCombination(s) {
			v.addFeaturesForLogicalCombinationInHas(s, l, containing, sib, desc, prev, method)
		}
		if s.IsLastInCompound() {
			return j
		}
	}
}

// updateFromCombinatorInHas always uses the indirect form of a combinator.
// Distances across :has() can't be counted, as in
// ".a:has(~ :is(.b + .c + .d))". The compound containing :has() takes the
// place of the compound to the right of a sibling combinator.
func (v *visitor) updateFromCombinatorInHas(rel css.Relation, l *css.SelectorList, containing int, chain *features, sib **features, desc *features) {
	switch rel {
	case css.RelationDirectAdjacent, css.RelationIndirectAdjacent:
		rel = css.RelationIndirectAdjacent
	default:
		rel = css.RelationDescendant
	}
	v.updateFromCombinator(rel, l, containing, chain, sib, desc, true, false)
}

// collectValuesInHas records every name in a :has() argument, so a change
// to one of them triggers a :has() walk. A compound without a name makes
// any insertion or removal relevant.
func (v *visitor) collectValuesInHas(has *css.Selector) {
	if has.List != nil {
		v.collectHasList(has.List)
	}
}

func (v *visitor) collectHasList(l *css.SelectorList) {
	if !v.enter() {
		return
	}
	defer v.leave()
	for j := l.First(); j >= 0; j = l.Next(j) {
		keyed := false
		for k := j; ; k++ {
			s := l.SelectorAt(k)
			anchor := s.Match == css.MatchPseudoClass && s.Pseudo == css.PseudoRelativeAnchor
			switch {
			case s.Match == css.MatchClass:
				v.m.collectHasValue(classKey(s.Value))
				keyed = true
			case s.Match == css.MatchID:
				v.m.collectHasValue(idKey(s.Value))
				keyed = true
			case s.Match == css.MatchTag:
				v.m.collectHasValue(tagKey(s.Value))
				keyed = true
			case s.Match.IsAttribute():
				v.m.collectHasValue(attributeKey(s.Attr))
				keyed = true
			case s.Match == css.MatchPseudoClass && !anchor:
				v.m.collectHasValue(pseudoKey(s.Pseudo))
			}
			if s.List != nil && s.List.IsValid() {
				v.collectHasList(s.List)
			}
			if s.IsLastInCompound() {
				if !keyed && !anchor {
					v.m.setUniversalInHas()
				}
				keyed = false
			}
			if s.IsLastInComplex() {
				break
			}
		}
	}
}
