// Package main is the entry point for the meshlora CLI.
package main

import (
	"os"

	"github.com/meshlora/meshlora/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
