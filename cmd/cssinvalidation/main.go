// Command cssinvalidation inspects CSS selectors, stylesheets and the
// invalidation sets built from them.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
