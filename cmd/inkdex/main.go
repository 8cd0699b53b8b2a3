// Package main provides the entry point for the inkdex CLI.
package main

import (
	"os"

	"github.com/inkdown/inkdex/cmd/inkdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
