package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/net/html"

	css "github.com/ericchiang/css-invalidation"
	"github.com/ericchiang/css-invalidation/invalidation"
)

var data = `
<div id="menu">
  <h2 id="foo">a header</h2>
  <h2 id="bar" class="item">another header</h2>
</div>`

var sheet = `
#menu.open .item { color: red }
h2:hover { color: blue }
`

func main() {
	sel, err := css.Parse("h2#foo")
	if err != nil {
		panic(err)
	}
	node, err := html.Parse(strings.NewReader(data))
	if err != nil {
		panic(err)
	}
	for _, ele := range sel.Select(node) {
		html.Render(os.Stdout, ele)
	}
	fmt.Println()

	b := invalidation.NewBuilder(invalidation.DefaultOptions())
	b.AddStyleSheet(css.ParseStyleSheet(sheet))
	inv := invalidation.NewInvalidator(b.Data(), nil)

	menu := css.MustParse("#menu").Select(node)[0]
	for _, ele := range inv.SetAttribute(menu, "class", "open") {
		fmt.Printf("restyle <%s id=%q>\n", ele.Data, attr(ele, "id"))
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
