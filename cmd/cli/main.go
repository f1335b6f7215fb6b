// Package main is the entry point for the testdeck CLI.
// The CLI is the developer terminal tool for interacting with the
// orchestrator API.
package main

import (
	"os"

	"testdeck/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
