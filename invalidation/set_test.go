package invalidation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	css "github.com/ericchiang/css-invalidation"
)

func TestEnsureMutable(t *testing.T) {
	var slot *Set

	s, created := ensureMutable(&slot, DescendantSet, subject, false)
	assert.True(t, created)
	assert.Same(t, selfSet, s)
	assert.Same(t, selfSet, slot)

	// Still only self-invalidating.
	s, created = ensureMutable(&slot, DescendantSet, subject, false)
	assert.False(t, created)
	assert.Same(t, selfSet, s)

	// Recording a descendant feature copies the singleton.
	s, _ = ensureMutable(&slot, DescendantSet, ancestor, false)
	require.NotSame(t, selfSet, s)
	assert.True(t, s.InvalidatesSelf())
	assert.False(t, s.IsSelfInvalidationSet())
	s.addClass(css.Intern("b"))
	assert.False(t, selfSet.HasClass(css.Intern("b")))

	// A sibling set wraps the descendant set.
	desc := slot
	sib, _ := ensureMutable(&slot, SiblingSet, ancestor, false)
	assert.Equal(t, SiblingSet, sib.Type())
	assert.Same(t, desc, sib.Descendants())
	assert.Equal(t, 1, sib.MaxDirectAdjacentSelectors())

	// Asking for the descendant set again returns the wrapped one.
	d, _ := ensureMutable(&slot, DescendantSet, ancestor, false)
	assert.Same(t, desc, d)
}

func TestEnsureMutableCopiesShared(t *testing.T) {
	orig := newSet(DescendantSet)
	orig.addClass(css.Intern("b"))
	slot := orig.acquire()
	require.True(t, orig.shared())

	s, _ := ensureMutable(&slot, DescendantSet, ancestor, false)
	require.NotSame(t, orig, s)
	s.addClass(css.Intern("c"))

	assert.Equal(t, []string{"b"}, orig.Classes())
	assert.Equal(t, []string{"b", "c"}, s.Classes())
	assert.False(t, orig.shared())
}

func TestEnsureMutableCopiesFrozen(t *testing.T) {
	orig := newSet(DescendantSet)
	orig.addClass(css.Intern("b"))
	orig.freeze()
	assert.Panics(t, func() { orig.addClass(css.Intern("c")) })

	slot := orig
	s, _ := ensureMutable(&slot, DescendantSet, ancestor, false)
	require.NotSame(t, orig, s)
	assert.NotPanics(t, func() { s.addClass(css.Intern("c")) })
}

func TestEnsureMutableInNth(t *testing.T) {
	var slot *Set
	s, _ := ensureMutable(&slot, DescendantSet, subject, true)
	assert.False(t, s.IsSelfInvalidationSet())
}

func TestSetWholeSubtree(t *testing.T) {
	s := newSet(DescendantSet)
	s.addClass(css.Intern("b"))
	s.addAttribute(css.Intern("href"))
	s.setWholeSubtreeInvalid()

	assert.True(t, s.WholeSubtreeInvalid())
	assert.Nil(t, s.Classes())
	assert.Nil(t, s.Attributes())

	// Names added afterwards are ignored.
	s.addID(css.Intern("x"))
	assert.Nil(t, s.IDs())
	assert.False(t, s.IsEmpty())
}

func TestSetCombine(t *testing.T) {
	a := newSiblingSet(nil)
	a.addClass(css.Intern("b"))
	a.updateMaxDirectAdjacent(2)

	b := newSiblingSet(nil)
	b.addClass(css.Intern("c"))
	b.setInvalidatesSelf()
	b.updateMaxDirectAdjacent(DirectAdjacentMax)
	b.ensureSiblingDescendants().addTagName(css.Intern("span"))

	a.Combine(b)
	assert.Equal(t, []string{"b", "c"}, a.Classes())
	assert.True(t, a.InvalidatesSelf())
	assert.Equal(t, DirectAdjacentMax, a.MaxDirectAdjacentSelectors())
	require.NotNil(t, a.SiblingDescendants())
	assert.Equal(t, []string{"span"}, a.SiblingDescendants().TagNames())

	whole := newSet(DescendantSet)
	whole.setWholeSubtreeInvalid()
	d := newSet(DescendantSet)
	d.addClass(css.Intern("b"))
	d.Combine(whole)
	assert.True(t, d.WholeSubtreeInvalid())
	assert.Nil(t, d.Classes())

	assert.Panics(t, func() { d.Combine(a) })
}

func TestSelfSetCombineIsNoop(t *testing.T) {
	other := newSet(DescendantSet)
	other.addClass(css.Intern("b"))
	selfSet.Combine(other)
	assert.Nil(t, selfSet.Classes())
}

func TestSetIsEmpty(t *testing.T) {
	assert.True(t, newSet(DescendantSet).IsEmpty())
	assert.True(t, newSiblingSet(nil).IsEmpty())
	assert.False(t, SelfInvalidationSet().IsEmpty())

	s := newSiblingSet(nil)
	s.ensureSiblingDescendants()
	assert.False(t, s.IsEmpty())
}

func TestSetString(t *testing.T) {
	s := newSiblingSet(nil)
	s.addClass(css.Intern("b"))
	s.addTagName(css.Intern("span"))
	s.setInvalidatesSelf()
	s.ensureSiblingDescendants().addID(css.Intern("c"))
	assert.Equal(t, "{ .b span $self +1 sibling-descendants{ #c } }", s.String())

	s.updateMaxDirectAdjacent(DirectAdjacentMax)
	assert.Equal(t, "{ .b span $self ~ sibling-descendants{ #c } }", s.String())
}

func TestSetSummary(t *testing.T) {
	s := newSiblingSet(nil)
	s.addAttribute(css.Intern("href"))
	s.setTreeBoundaryCrossing()
	sum := s.Summary()
	assert.Equal(t, &SetSummary{
		Type:              "sibling",
		Attributes:        []string{"href"},
		Flags:             []string{"tree-boundary-crossing"},
		MaxDirectAdjacent: "1",
	}, sum)

	var nilSet *Set
	assert.Nil(t, nilSet.Summary())
}
