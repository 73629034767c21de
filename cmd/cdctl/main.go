// Command cdctl is the operator tool for the tracking engine: it replays
// recorded tracks offline and mints development tokens.
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
