package invalidation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	css "github.com/ericchiang/css-invalidation"
)

const invalidatorSheet = `
.a .b { color: red }
.c > .d { color: red }
.e + .f { color: red }
.g ~ .h { color: red }
#x span { color: red }
[data-on] .k { color: red }
.m:hover .n { color: red }
:not(.p) > .q { color: red }
.r:is(.s, .t) .u { color: red }
li:first-child { color: red }
li:nth-child(2) { color: red }
.v:has(.w) { color: red }
`

const invalidatorDoc = `<div data-t="root">
<p data-t="p" class="c"><span data-t="d" class="d b">x</span></p>
<ul data-t="ul"><li data-t="li1" class="e">1</li><li data-t="li2" class="f">2</li><li data-t="li3" class="h">3</li></ul>
<section data-t="sec" class="m"><span data-t="k" class="k"></span><em data-t="n" class="n"></em><b data-t="q" class="q"></b></section>
<div data-t="v" class="v"><i data-t="w"></i></div>
<div data-t="r" class="r s"><i data-t="u" class="u"></i></div>
</div>`

func find(t *testing.T, root *html.Node, name string) *html.Node {
	t.Helper()
	var found *html.Node
	walkElements(root, func(e *html.Node) {
		if v, ok := getAttr(e, "data-t"); ok && v == name {
			found = e
		}
	})
	require.NotNil(t, found, "no element %q", name)
	return found
}

// matchedRules returns, for every element under root, the indexes of the
// rules it matches.
func matchedRules(sheet *css.StyleSheet, root *html.Node, ctx *css.MatchContext) map[*html.Node]string {
	m := map[*html.Node]string{}
	walkElements(root, func(e *html.Node) {
		var b strings.Builder
		for i, r := range sheet.Rules {
			if r.Selectors.Matches(e, ctx) {
				fmt.Fprintf(&b, "%d,", i)
			}
		}
		m[e] = b.String()
	})
	return m
}

func TestInvalidatorSchedulesChangedElements(t *testing.T) {
	sheet := css.ParseStyleSheet(invalidatorSheet)
	require.Empty(t, sheet.Errors)
	require.Len(t, sheet.Rules, 12)

	b := NewBuilder(DefaultOptions())
	b.AddStyleSheet(sheet)
	data := b.Data()

	tests := []struct {
		name   string
		mutate func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node
	}{
		{"add ancestor class", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.SetAttribute(find(t, root, "p"), "class", "c a")
		}},
		{"remove parent class", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.SetAttribute(find(t, root, "p"), "class", "")
		}},
		{"remove class attribute", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.RemoveAttribute(find(t, root, "p"), "class")
		}},
		{"add subject class", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.SetAttribute(find(t, root, "w"), "class", "b")
		}},
		{"direct adjacent", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.SetAttribute(find(t, root, "li1"), "class", "")
		}},
		{"indirect adjacent", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.SetAttribute(find(t, root, "li1"), "class", "e g")
		}},
		{"id", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.SetAttribute(find(t, root, "sec"), "id", "x")
		}},
		{"attribute", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.SetAttribute(find(t, root, "sec"), "data-on", "")
		}},
		{"hover", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.SetState(find(t, root, "sec"), css.PseudoHover, true)
		}},
		{"negated class", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.SetAttribute(find(t, root, "sec"), "class", "m p")
		}},
		{"class in :is()", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.SetAttribute(find(t, root, "r"), "class", "r")
		}},
		{"class in :has()", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.SetAttribute(find(t, root, "w"), "class", "w")
		}},
		{"insert first", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			ul := find(t, root, "ul")
			return inv.InsertBefore(ul, NewElement("li"), ul.FirstChild)
		}},
		{"insert middle", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.InsertBefore(find(t, root, "ul"), NewElement("li", "class", "h"), find(t, root, "li2"))
		}},
		{"append", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.InsertBefore(find(t, root, "ul"), NewElement("li"), nil)
		}},
		{"insert into :has() subject", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.InsertBefore(find(t, root, "v"), NewElement("b", "class", "w"), nil)
		}},
		{"remove first", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.RemoveChild(find(t, root, "ul"), find(t, root, "li1"))
		}},
		{"remove middle", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.RemoveChild(find(t, root, "ul"), find(t, root, "li2"))
		}},
		{"remove ancestor", func(t *testing.T, inv *Invalidator, root *html.Node) []*html.Node {
			return inv.RemoveChild(find(t, root, "root"), find(t, root, "p"))
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			root, err := html.Parse(strings.NewReader(invalidatorDoc))
			require.NoError(t, err)
			inv := NewInvalidator(data, nil)

			before := matchedRules(sheet, root, inv.MatchContext())
			scheduled := test.mutate(t, inv, root)
			after := matchedRules(sheet, root, inv.MatchContext())

			set := map[*html.Node]bool{}
			for _, e := range scheduled {
				set[e] = true
			}
			for e, got := range after {
				want, ok := before[e]
				if !ok {
					assert.True(t, set[e], "inserted element <%s> not scheduled", e.Data)
					continue
				}
				if got != want {
					name, _ := getAttr(e, "data-t")
					assert.True(t, set[e], "element %s changed rules from %q to %q but wasn't scheduled", name, want, got)
				}
			}
			for _, e := range scheduled {
				_, ok := after[e]
				assert.True(t, ok, "scheduled element <%s> isn't in the document", e.Data)
			}
		})
	}
}

func TestInvalidatorNarrowsToFeatures(t *testing.T) {
	b := NewBuilder(DefaultOptions())
	b.AddStyleSheet(css.ParseStyleSheet(`.a .b { color: red }`))
	inv := NewInvalidator(b.Data(), nil)

	root, err := html.Parse(strings.NewReader(
		`<div data-t="a"><span data-t="b" class="b"></span><span data-t="other"></span></div>`))
	require.NoError(t, err)

	got := inv.SetAttribute(find(t, root, "a"), "class", "a")
	require.Len(t, got, 1)
	assert.Equal(t, find(t, root, "b"), got[0])

	assert.Empty(t, inv.SetAttribute(find(t, root, "a"), "class", "a"), "unchanged attribute")
	assert.Empty(t, inv.SetAttribute(find(t, root, "a"), "title", "x"), "unindexed attribute")
}

func TestInvalidatorFullRecalc(t *testing.T) {
	b := NewBuilder(Options{MaxDepth: 1})
	b.AddStyleSheet(css.ParseStyleSheet(`:is(:is(.a)) .b { color: red }`))
	data := b.Data()
	require.True(t, data.NeedsFullRecalc())

	root, err := html.Parse(strings.NewReader(`<div data-t="x"><p></p></div>`))
	require.NoError(t, err)
	inv := NewInvalidator(data, nil)
	got := inv.SetAttribute(find(t, root, "x"), "title", "y")

	var all []*html.Node
	walkElements(root, func(e *html.Node) { all = append(all, e) })
	assert.Equal(t, all, got)
}

func TestClassDiff(t *testing.T) {
	tests := []struct {
		old, val string
		want     []string
	}{
		{"", "a", []string{"a"}},
		{"a b", "b a", nil},
		{"a b", "b c", []string{"c", "a"}},
		{"a a", "", []string{"a"}},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, classDiff(test.old, test.val), "classDiff(%q, %q)", test.old, test.val)
	}
}
