// Command videods inspects video datasets: it parses metadata files, loads
// single examples through the sampling and transform pipeline and pulls
// dataset trees from object storage.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
