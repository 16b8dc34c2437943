package css

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// record is the comparable part of a Selector.
type record struct {
	Match    MatchType
	Relation Relation
	Pseudo   PseudoType
	Value    string
	Attr     string
	Text     string
	CI       bool
	Nth      Nth
	End      bool
}

func records(l *SelectorList) []record {
	var out []record
	for i := 0; i < l.Len(); i++ {
		s := l.SelectorAt(i)
		out = append(out, record{
			Match:    s.Match,
			Relation: s.Relation,
			Pseudo:   s.Pseudo,
			Value:    s.Value.String(),
			Attr:     s.Attr.String(),
			Text:     s.Text,
			CI:       s.CaseInsensitive,
			Nth:      s.Nth,
			End:      s.IsLastInComplex(),
		})
	}
	return out
}

func TestParse(t *testing.T) {
	tests := []struct {
		s    string
		want []record
	}{
		{"foo", []record{
			{Match: MatchTag, Value: "foo", End: true},
		}},
		{"*", []record{
			{Match: MatchUniversal, End: true},
		}},
		{"foo bar > spam", []record{
			{Match: MatchTag, Relation: RelationChild, Value: "spam"},
			{Match: MatchTag, Relation: RelationDescendant, Value: "bar"},
			{Match: MatchTag, Value: "foo", End: true},
		}},
		{"a.b#c", []record{
			{Match: MatchTag, Value: "a"},
			{Match: MatchClass, Value: "b"},
			{Match: MatchID, Value: "c", End: true},
		}},
		{"a ~ b + c", []record{
			{Match: MatchTag, Relation: RelationDirectAdjacent, Value: "c"},
			{Match: MatchTag, Relation: RelationIndirectAdjacent, Value: "b"},
			{Match: MatchTag, Value: "a", End: true},
		}},
		{".a, .b", []record{
			{Match: MatchClass, Value: "a", End: true},
			{Match: MatchClass, Value: "b", End: true},
		}},
		{"[foo^=bar i]", []record{
			{Match: MatchAttributeBegin, Attr: "foo", Text: "bar", CI: true, End: true},
		}},
		{"[ foo = \"bar\" s ]", []record{
			{Match: MatchAttributeExact, Attr: "foo", Text: "bar", End: true},
		}},
		{"[foo]", []record{
			{Match: MatchAttributeSet, Attr: "foo", End: true},
		}},
		{":nth-child(4n + 3)", []record{
			{Match: MatchPseudoClass, Pseudo: PseudoNthChild, Value: "nth-child", Nth: Nth{4, 3}, End: true},
		}},
		{"p::before", []record{
			{Match: MatchTag, Value: "p"},
			{Match: MatchPseudoElement, Pseudo: PseudoBefore, Value: "before", End: true},
		}},
		{"a:HOVER", []record{
			{Match: MatchTag, Value: "a"},
			{Match: MatchPseudoClass, Pseudo: PseudoHover, Value: "hover", End: true},
		}},
		{":lang(en, fr)", []record{
			{Match: MatchPseudoClass, Pseudo: PseudoLang, Value: "lang", Text: "en,fr", End: true},
		}},
		{"u+a", []record{
			{Match: MatchTag, Relation: RelationDirectAdjacent, Value: "a"},
			{Match: MatchTag, Value: "u", End: true},
		}},
		{".u+b", []record{
			{Match: MatchTag, Relation: RelationDirectAdjacent, Value: "b"},
			{Match: MatchClass, Value: "u", End: true},
		}},
		{"a\n\t>\tb", []record{
			{Match: MatchTag, Relation: RelationChild, Value: "b"},
			{Match: MatchTag, Value: "a", End: true},
		}},
	}
	for _, test := range tests {
		l, err := Parse(test.s)
		if err != nil {
			t.Errorf("parsing %q: %v", test.s, err)
			continue
		}
		if diff := cmp.Diff(test.want, records(l)); diff != "" {
			t.Errorf("parsing %q returned diff (-want, +got): %s", test.s, diff)
		}
	}
}

func TestParseRelative(t *testing.T) {
	l := MustParse(":has(> a, b)")
	has := l.SelectorAt(0)
	if has.Pseudo != PseudoHas || has.List == nil {
		t.Fatalf("parsed %+v, want :has()", has)
	}
	want := []record{
		{Match: MatchTag, Relation: RelationRelativeChild, Value: "a"},
		{Match: MatchPseudoClass, Pseudo: PseudoRelativeAnchor, End: true},
		{Match: MatchTag, Relation: RelationRelativeDescendant, Value: "b"},
		{Match: MatchPseudoClass, Pseudo: PseudoRelativeAnchor, End: true},
	}
	if diff := cmp.Diff(want, records(has.List)); diff != "" {
		t.Errorf(":has() argument returned diff (-want, +got): %s", diff)
	}
}

func TestParseNamespace(t *testing.T) {
	tests := []struct {
		s    string
		want string
	}{
		{"a", NamespaceAny},
		{"ns|a", "ns"},
		{"|a", ""},
		{"*|a", NamespaceAny},
		{"*|*", NamespaceAny},
		{"ns|*", "ns"},
		{"[*|foo=bar]", NamespaceAny},
		{"[ns|foo]", "ns"},
	}
	for _, test := range tests {
		l, err := Parse(test.s)
		if err != nil {
			t.Errorf("parsing %q: %v", test.s, err)
			continue
		}
		if got := l.SelectorAt(0).Namespace; got != test.want {
			t.Errorf("parsing %q got namespace %q, want %q", test.s, got, test.want)
		}
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		s   string
		pos int
	}{
		{"", 0},
		{"a >", 3},
		{": foo", 1}, // https://www.w3.org/TR/selectors-4/#white-space
		{".foo()", 1},
		{"*foo", 1},
		{"foo| bar", 3},
		{"a #1", 2},
		{"a,,b", 2},
		{":unknown", 1},
		{"::hover", 2},
		{"[foo~bar]", 4},
		{".a::before.b", 10},
		{":has(::before)", 7},
		{":has(:has(a))", 10},
		{":nth-child(foo)", 11},
		{":dir(up)", 5},
		{":not(.a, $)", 9},
		{".a {", 3},
	}
	for _, test := range tests {
		l, err := Parse(test.s)
		if err == nil {
			t.Errorf("expected parsing %q to fail", test.s)
			continue
		}
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("parsing %q got err %v, want *ParseError", test.s, err)
			continue
		}
		if perr.Pos != test.pos {
			t.Errorf("parsing %q got error at pos %d, want %d: %v", test.s, perr.Pos, test.pos, err)
		}
		if l.IsValid() {
			t.Errorf("parsing %q failed but returned a valid list", test.s)
		}
	}
}

func TestParseForgiving(t *testing.T) {
	tests := []struct {
		s    string
		opts ParseOptions
		want string
	}{
		{":is(.a, $, .b)", ParseOptions{}, ":is(.a, .b)"},
		{":where($$, a > b)", ParseOptions{}, ":where(a > b)"},
		{":is($)", ParseOptions{}, ":is()"},
		{".a, $, .b", ParseOptions{Forgiving: true}, ".a, .b"},
		{".a, :is(.b, .c $)", ParseOptions{Forgiving: true}, ".a, :is(.b)"},
	}
	for _, test := range tests {
		l, err := ParseWithOptions(test.s, test.opts)
		if err != nil {
			t.Errorf("parsing %q: %v", test.s, err)
			continue
		}
		if got := l.SelectorsText(); got != test.want {
			t.Errorf("parsing %q = %q, want %q", test.s, got, test.want)
		}
	}

	l := MustParse(":is($)")
	if l.SelectorAt(0).List.IsValid() {
		t.Errorf(":is() with no valid arguments has a valid list")
	}
}

func TestParseNestingDepth(t *testing.T) {
	nest := func(n int) string {
		return strings.Repeat(":not(", n) + "a" + strings.Repeat(")", n)
	}
	if _, err := Parse(nest(MaxNestingDepth)); err != nil {
		t.Errorf("parsing %d nested lists: %v", MaxNestingDepth, err)
	}
	if _, err := Parse(nest(MaxNestingDepth + 1)); err == nil {
		t.Errorf("parsing %d nested lists didn't fail", MaxNestingDepth+1)
	}
}

func TestParseNested(t *testing.T) {
	parent := MustParse(".p")
	l, err := ParseWithOptions(".a, & > .b", ParseOptions{Nested: true, Parent: parent})
	if err != nil {
		t.Fatalf("parsing nested list: %v", err)
	}
	var parents int
	for i := 0; i < l.Len(); i++ {
		if s := l.SelectorAt(i); s.Pseudo == PseudoParent {
			parents++
			if s.List != parent {
				t.Errorf("record %d: & refers to %v, want the parent list", i, s.List)
			}
		}
	}
	if parents != 2 {
		t.Errorf("got %d nesting selectors, want 2", parents)
	}
	if !l.HasParentSelector() {
		t.Errorf("HasParentSelector() = false")
	}

	// Without Nested, a leading combinator is an error.
	if _, err := ParseWithOptions("> .b", ParseOptions{Parent: parent}); err == nil {
		t.Errorf("expected leading combinator to fail outside nesting")
	}
}

func TestANPlusB(t *testing.T) {
	tests := []struct {
		s       string
		a       int
		b       int
		wantErr bool
	}{
		{"even", 2, 0, false},
		{"odd", 2, 1, false},
		{"EVEN", 2, 0, false},
		{"even odd", 0, 0, true},
		{"3", 0, 3, false},
		{"-3", 0, -3, false},
		{"4n", 4, 0, false},
		{"+4n", 4, 0, false},
		{"-4n", -4, 0, false},
		{"2N+1", 2, 1, false},
		{"+ 4n", 0, 0, true},
		{"4n +3", 4, 3, false},
		{"4n -3", 4, -3, false},
		{"4n + 3", 4, 3, false},
		{"4n - 3", 4, -3, false},
		{"4n+3", 4, 3, false},
		{"4n-3", 4, -3, false},
		{"4n + -3", 0, 0, true},
		{"n", 1, 0, false},
		{"n-3", 1, -3, false},
		{"n- 3", 1, -3, false},
		{"-n-3", -1, -3, false},
		{"-n -3", -1, -3, false},
		{"-n - 3", -1, -3, false},
		{"-n + 3", -1, 3, false},
		{"-n", -1, 0, false},
		{"4n- 3", 4, -3, false},
		{"-n- 3", -1, -3, false},
		{"+n", 1, 0, false},
		{"+n- 3", 1, -3, false},
		{"+n- -3", 0, 0, true},
		{"foo", 0, 0, true},
		{"1.5", 0, 0, true},
	}

	for _, test := range tests {
		l, err := Parse(":nth-child(" + test.s + ")")
		if err != nil {
			if !test.wantErr {
				t.Errorf("Failed to parse string %s: %v", test.s, err)
			}
			continue
		}
		if test.wantErr {
			t.Errorf("Expected error parsing %s", test.s)
			continue
		}
		got := l.SelectorAt(0).Nth
		if got != (Nth{test.a, test.b}) {
			t.Errorf("Parsing failed for %s, got a=%d, b=%d, want a=%d, b=%d", test.s, got.A, got.B, test.a, test.b)
		}
	}
}
