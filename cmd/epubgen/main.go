// Command epubgen builds ePub packages from a YAML book description.
package main

import (
	"os"

	"github.com/simp-lee/epubpack/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
