// Package main provides the entry point for kvstash.
//
// kvstash is the command-line management tool for kvstash stores,
// covering entry access, bulk transfer, and store administration.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/kvstash-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
