package invalidation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	css "github.com/ericchiang/css-invalidation"
)

func TestTraceSet(t *testing.T) {
	sheet := css.ParseStyleSheet(`.a .b {} .a > span.c {} .x .y {}`)
	d := build(t, `.a .b {} .a > span.c {} .x .y {}`)

	entries := NewTracer(d, nil).TraceSet(sheet, ".a")
	require.Len(t, entries, 2)

	assert.Equal(t, ".a .b", entries[0].Selector)
	assert.Equal(t, ".a", entries[0].Simple)
	assert.Equal(t, ".b", entries[0].Features)
	assert.Same(t, classSet(d, "a"), entries[0].Set)

	assert.Equal(t, ".a > span.c", entries[1].Selector)
	assert.Equal(t, ".c", entries[1].Features)
	assert.Equal(t, []string{"span"}, entries[1].Emitted)
}

func TestTraceSelectorSelf(t *testing.T) {
	d := build(t, `.a:hover {}`)
	entries := NewTracer(d, nil).TraceSelector(css.MustParse(".a:hover"), nil)

	var keys []string
	for _, e := range entries {
		assert.Equal(t, "$self", e.Features)
		keys = append(keys, e.Key)
	}
	assert.ElementsMatch(t, []string{".a", ":hover"}, keys)
}

func TestTraceSiblingDescendants(t *testing.T) {
	d := build(t, `.a + .b .c {}`)
	entries := NewTracer(d, nil).TraceSelector(css.MustParse(".a + .b .c"), nil)

	var found bool
	for _, e := range entries {
		if e.Key == ".a" && e.Part == "sibling-descendants" {
			found = true
			assert.Equal(t, ".c", e.Features)
			assert.Same(t, classSet(d, "a").SiblingDescendants(), e.Set)
		}
	}
	assert.True(t, found, "no sibling-descendants entry in %v", entries)
}

func TestTraceDoesNotModify(t *testing.T) {
	d := build(t, `.a .b {}`)
	before := d.Summary()

	// Selectors that were never indexed produce entries without sets.
	entries := NewTracer(d, nil).TraceSelector(css.MustParse(".p .q"), nil)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Nil(t, e.Set, "%s", e.Key)
	}
	assert.Equal(t, before, d.Summary())
}

func TestTraceBloom(t *testing.T) {
	b := NewBuilder(Options{BloomThreshold: 1})
	b.CollectFeaturesFromSelector(css.MustParse(".first, .second"), nil)
	d := b.Data()
	require.NotNil(t, d.names)

	entries := NewTracer(d, nil).TraceSelector(css.MustParse(".second"), nil)
	require.Len(t, entries, 1)
	assert.Equal(t, "bloom", entries[0].Part)
	assert.Same(t, SelfInvalidationSet(), entries[0].Set)
}

func TestTraceBloomAndSet(t *testing.T) {
	b := NewBuilder(Options{BloomThreshold: 1})
	b.CollectFeaturesFromSelector(css.MustParse(".first, .second"), nil)
	b.CollectFeaturesFromSelector(css.MustParse(".second .third"), nil)
	d := b.Data()
	require.NotNil(t, d.names)
	require.NotNil(t, classSet(d, "second"))

	entries := NewTracer(d, nil).TraceSelector(css.MustParse(".second"), nil)
	var parts []string
	for _, e := range entries {
		assert.Equal(t, ".second", e.Key)
		parts = append(parts, e.Part)
	}
	assert.Contains(t, parts, "bloom")
	assert.Contains(t, parts, "")
}
