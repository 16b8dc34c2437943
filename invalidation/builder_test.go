package invalidation

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	css "github.com/ericchiang/css-invalidation"
	"github.com/ericchiang/css-invalidation/internal/metrics"
)

func build(t *testing.T, sheet string) *RuleData {
	t.Helper()
	s := css.ParseStyleSheet(sheet)
	require.Empty(t, s.Errors, "parsing %q", sheet)
	b := NewBuilder(DefaultOptions())
	b.AddStyleSheet(s)
	return b.Data()
}

func classSet(d *RuleData, name string) *Set { return d.sets[classKey(css.Intern(name))] }
func idSet(d *RuleData, name string) *Set    { return d.sets[idKey(css.Intern(name))] }
func attrSet(d *RuleData, name string) *Set  { return d.sets[attributeKey(css.Intern(name))] }
func pseudoSet(d *RuleData, p css.PseudoType) *Set {
	return d.sets[pseudoKey(p)]
}

func TestBuilderDescendant(t *testing.T) {
	d := build(t, `.a .b { color: red }`)

	a := classSet(d, "a")
	require.NotNil(t, a)
	assert.Equal(t, DescendantSet, a.Type())
	assert.True(t, a.HasClass(css.Intern("b")))
	assert.False(t, a.InvalidatesSelf())
	assert.False(t, a.WholeSubtreeInvalid())

	b := classSet(d, "b")
	require.NotNil(t, b)
	assert.True(t, b.IsSelfInvalidationSet())
}

func TestBuilderSubjectPseudo(t *testing.T) {
	d := build(t, `.a:hover { color: red }`)
	assert.True(t, pseudoSet(d, css.PseudoHover).IsSelfInvalidationSet())
	assert.True(t, classSet(d, "a").IsSelfInvalidationSet())
}

func TestBuilderAncestorPseudo(t *testing.T) {
	d := build(t, `.m:hover .n { color: red }`)
	hover := pseudoSet(d, css.PseudoHover)
	require.NotNil(t, hover)
	assert.True(t, hover.HasClass(css.Intern("n")))
	assert.False(t, hover.InvalidatesSelf())
}

func TestBuilderSiblings(t *testing.T) {
	tests := []struct {
		sheet   string
		class   string
		max     int
		self    bool
		names   []string
		sibDesc []string
	}{
		{".a + .b {}", "a", 1, true, []string{"b"}, nil},
		{".a ~ .b {}", "a", DirectAdjacentMax, true, []string{"b"}, nil},
		{".a + .b + .c {}", "a", 2, true, []string{"c"}, nil},
		{".a + .b + .c {}", "b", 1, true, []string{"c"}, nil},
		{".a ~ .b + .c {}", "a", DirectAdjacentMax, true, []string{"c"}, nil},
		{".a + .b .c {}", "a", 1, false, []string{"b"}, []string{"c"}},
	}
	for _, test := range tests {
		t.Run(test.sheet+test.class, func(t *testing.T) {
			d := build(t, test.sheet)
			s := classSet(d, test.class)
			require.NotNil(t, s)
			require.Equal(t, SiblingSet, s.Type(), "%s", s)
			assert.Equal(t, test.max, s.MaxDirectAdjacentSelectors())
			assert.Equal(t, test.self, s.InvalidatesSelf())
			assert.Equal(t, test.names, s.Classes())
			if test.sibDesc == nil {
				assert.Nil(t, s.SiblingDescendants())
				return
			}
			require.NotNil(t, s.SiblingDescendants())
			assert.Equal(t, test.sibDesc, s.SiblingDescendants().Classes())
		})
	}
}

func TestBuilderSiblingWrapsDescendants(t *testing.T) {
	d := build(t, `.a .b {} .a + .c {}`)
	a := classSet(d, "a")
	require.Equal(t, SiblingSet, a.Type())
	require.NotNil(t, a.Descendants())
	assert.Equal(t, []string{"b"}, a.Descendants().Classes())
	assert.Equal(t, []string{"c"}, a.Classes())

	l := d.CollectInvalidationSetsForClass("a")
	assert.Len(t, l.Descendants, 1)
	assert.Len(t, l.Siblings, 1)
}

func TestBuilderSelectorLists(t *testing.T) {
	tests := []struct {
		sheet string
		whole bool
		names []string
	}{
		{".x :is(.a, .b) {}", false, []string{"a", "b"}},
		{".x :where(.a) {}", false, []string{"a"}},
		{".x :is(.a, *) {}", true, nil},
		// :not(.a) matches elements without .a, so it can't narrow.
		{".x :not(.a) {}", true, nil},
		{".x span:not(.a) {}", false, nil},
	}
	for _, test := range tests {
		t.Run(test.sheet, func(t *testing.T) {
			d := build(t, test.sheet)
			x := classSet(d, "x")
			require.NotNil(t, x)
			assert.Equal(t, test.whole, x.WholeSubtreeInvalid(), "%s", x)
			assert.Equal(t, test.names, x.Classes())
		})
	}
}

func TestBuilderNegatedClassGetsSet(t *testing.T) {
	d := build(t, `:not(.p) > .q {}`)
	p := classSet(d, "p")
	require.NotNil(t, p)
	assert.True(t, p.HasClass(css.Intern("q")))

	d = build(t, `.a:not(.b) {}`)
	assert.True(t, classSet(d, "b").IsSelfInvalidationSet())
}

func TestBuilderIDAndAttribute(t *testing.T) {
	d := build(t, `#x span {} [data-on] > .k {}`)
	x := idSet(d, "x")
	require.NotNil(t, x)
	assert.Equal(t, []string{"span"}, x.TagNames())

	on := attrSet(d, "data-on")
	require.NotNil(t, on)
	assert.Equal(t, []string{"k"}, on.Classes())
}

func TestBuilderNth(t *testing.T) {
	d := build(t, `li:nth-child(2) {}`)
	nth := d.NthInvalidationSet()
	require.NotNil(t, nth)
	assert.Equal(t, SiblingSet, nth.Type())
	assert.True(t, nth.InvalidatesSelf())
	assert.True(t, nth.HasTagName(css.Intern("li")))

	d = build(t, `:nth-child(2 of .a) {}`)
	a := classSet(d, "a")
	require.NotNil(t, a)
	assert.True(t, a.InvalidatesNth())
}

func TestBuilderUniversalSibling(t *testing.T) {
	d := build(t, `li + .b {}`)
	u := d.UniversalSiblingInvalidationSet()
	require.NotNil(t, u)
	assert.Equal(t, []string{"b"}, u.Classes())
	assert.Equal(t, 1, u.MaxDirectAdjacentSelectors())

	d = build(t, `.a + .b {}`)
	assert.Nil(t, d.UniversalSiblingInvalidationSet())
}

func TestBuilderHas(t *testing.T) {
	d := build(t, `.v:has(> .w[data-x]) {} .y:has(*) {}`)
	assert.True(t, d.NeedsHasInvalidationForClass("w"))
	assert.True(t, d.NeedsHasInvalidationForAttribute("data-x"))
	assert.False(t, d.NeedsHasInvalidationForClass("v"))
	assert.False(t, d.NeedsHasInvalidationForClass("unknown"))
	assert.True(t, d.UniversalInHasArgument())
	assert.True(t, pseudoSet(d, css.PseudoHas).IsSelfInvalidationSet())
}

func TestBuilderHasLogicalCombination(t *testing.T) {
	// .b may be an ancestor of .a, so changing it must reach .a.
	d := build(t, `.a:has(:is(.b .c)) {}`)
	b := classSet(d, "b")
	require.NotNil(t, b)
	assert.True(t, b.HasClass(css.Intern("a")), "%s", b)
}

func TestBuilderBloomFilter(t *testing.T) {
	var sheet strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sheet, ".bloom%d {}\n", i)
	}
	d := build(t, sheet.String())
	require.NotNil(t, d.names)
	// Counting stops once the filter exists.
	assert.Equal(t, 51, d.numCandidates)

	assert.NotNil(t, classSet(d, "bloom0"))
	assert.Nil(t, classSet(d, "bloom55"))
	for _, name := range []string{"bloom0", "bloom55"} {
		l := d.CollectInvalidationSetsForClass(name)
		require.NotEmpty(t, l.Descendants, name)
		assert.True(t, l.Descendants[0].IsSelfInvalidationSet(), name)
	}
}

func TestBuilderBloomCountsDistinctNames(t *testing.T) {
	b := NewBuilder(Options{BloomThreshold: 2})
	b.CollectFeaturesFromSelector(css.MustParse(".a, .a, .a:hover, .b"), nil)
	d := b.Data()
	assert.Nil(t, d.names)
	assert.Equal(t, 2, d.numCandidates)
	assert.True(t, classSet(d, "a").IsSelfInvalidationSet())
	assert.True(t, classSet(d, "b").IsSelfInvalidationSet())
}

func TestBuilderBloomDisabled(t *testing.T) {
	b := NewBuilder(Options{BloomThreshold: -1})
	for i := 0; i < 60; i++ {
		b.CollectFeaturesFromSelector(css.MustParse(fmt.Sprintf("#nobloom%d", i)), nil)
	}
	d := b.Data()
	assert.Nil(t, d.names)
	assert.NotNil(t, idSet(d, "nobloom59"))
}

func TestBuilderDepthLimit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	b := NewBuilder(Options{MaxDepth: 2, Logger: logger})
	b.CollectFeaturesFromSelector(css.MustParse(":is(:is(:is(.a))) .b"), nil)
	d := b.Data()
	assert.True(t, d.NeedsFullRecalc())
	assert.Contains(t, buf.String(), "full recalc")

	assert.False(t, build(t, ":is(:is(:is(.a))) .b {}").NeedsFullRecalc())
}

func TestBuilderStyleSheet(t *testing.T) {
	d := build(t, `
@media screen { .a .b { color: red } }
@scope (.scope) to (.limit) { .c { color: red } }
.p { & .q { color: red } }
`)
	assert.True(t, classSet(d, "a").HasClass(css.Intern("b")))

	scope := classSet(d, "scope")
	require.NotNil(t, scope)
	assert.True(t, scope.InvalidatesSelf())
	assert.True(t, scope.HasClass(css.Intern("c")))
	limit := classSet(d, "limit")
	require.NotNil(t, limit)
	assert.True(t, limit.InvalidatesSelf())

	assert.True(t, classSet(d, "p").HasClass(css.Intern("q")))
}

func TestBuilderMetadata(t *testing.T) {
	d := build(t, `.a + .b + .c {} p::first-line {} span {}`)
	m := d.Metadata()
	assert.Equal(t, 2, m.MaxDirectAdjacentSelectors)
	assert.True(t, m.UsesFirstLineRules)
	assert.True(t, m.NeedsFullRecalcForRuleSetInvalidation)

	m = build(t, `.a {}`).Metadata()
	assert.False(t, m.NeedsFullRecalcForRuleSetInvalidation)
}

func TestBuilderSubtreePseudos(t *testing.T) {
	tests := []struct {
		sheet string
		whole []string
	}{
		{`.a p::first-line {}`, []string{"a"}},
		{`.a p::first-letter {}`, []string{"a"}},
		{`:host-context(.b) .c {}`, []string{"b"}},
		{`.a :host-context(.b) {}`, []string{"a", "b"}},
	}
	for _, test := range tests {
		d := build(t, test.sheet)
		for _, name := range test.whole {
			s := classSet(d, name)
			if assert.NotNil(t, s, "%s: no set for .%s", test.sheet, name) {
				assert.True(t, s.WholeSubtreeInvalid(), "%s: .%s doesn't invalidate the whole subtree", test.sheet, name)
			}
		}
	}

	// The rightmost compound of ":host-context(.b) .c" still narrows to .c
	// for its own class.
	d := build(t, `:host-context(.b) .c {}`)
	assert.True(t, classSet(d, "c").InvalidatesSelf())
}

func TestBuilderUsedAfterData(t *testing.T) {
	b := NewBuilder(DefaultOptions())
	b.Data()
	assert.Panics(t, func() { b.CollectFeaturesFromSelector(css.MustParse(".a"), nil) })
}

func TestBuilderMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New("test", reg)
	require.NoError(t, err)

	b := NewBuilder(Options{Metrics: m})
	b.AddStyleSheet(css.ParseStyleSheet(`.a .b, .c {} .d {}`))
	b.Data()

	families, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			got[f.GetName()] += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, got["test_index_rules_total"])
	assert.Equal(t, 3.0, got["test_index_selectors_total"])
	assert.Equal(t, 4.0, got["test_index_sets_materialized_total"])
}
