// Package main provides the itree command, which loads a serialized interval
// file and runs queries against it.
package main

import (
	"fmt"
	"os"

	"github.com/henderiw/intervaltree/cmd/itree/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
