// Package css implements CSS tokenization, Selectors Level 4 parsing and
// matching for HTML elements.
//
// Parsed selectors are stored as a flat SelectorList that the invalidation
// package indexes to decide which elements need their style recomputed
// after a DOM mutation.
package css

import (
	"fmt"

	"golang.org/x/net/html"
)

// ParseError is returned indicating a lex or parse error with the associated
// position in the string the error occurred.
type ParseError struct {
	Pos int
	Msg string
}

// Error returns a formatted version of the error.
func (p *ParseError) Error() string {
	return fmt.Sprintf("css: %s at position %d", p.Msg, p.Pos)
}

func errorf(pos int, msg string, v ...interface{}) error {
	return &ParseError{pos, fmt.Sprintf(msg, v...)}
}

// MustParse is like Parse but panics on errors.
func MustParse(s string) *SelectorList {
	sel, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// Parse parses a complex selector list from a string. The parser supports
// Selectors Level 4, including :is(), :where(), :not(), :has() and the
// nesting selector '&'.
//
// Multiple selectors are supported through comma separated values. For example
// "h1, h2". One invalid selector rejects the whole list.
//
// Parse reports the first error hit when parsing, along with the invalid
// sentinel list.
func Parse(s string) (*SelectorList, error) {
	return ParseWithOptions(s, ParseOptions{})
}

// ParseWithOptions is like Parse with options.
func ParseWithOptions(s string, opts ParseOptions) (*SelectorList, error) {
	return ConsumeSelectorList(NewTokenStream(s), opts)
}

// Select returns the elements of a parsed HTML document matching any selector
// of the list, in document order.
func (l *SelectorList) Select(n *html.Node) []*html.Node {
	return l.SelectWithContext(n, nil)
}

// SelectWithContext is like Select, using ctx for element state.
func (l *SelectorList) SelectWithContext(n *html.Node, ctx *MatchContext) []*html.Node {
	selected := []*html.Node{}
	walk(n, func(n *html.Node) {
		if l.Matches(n, ctx) {
			selected = append(selected, n)
		}
	})
	return selected
}

// walk calls fn for every element under n, including n, in document order.
func walk(n *html.Node, fn func(n *html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
