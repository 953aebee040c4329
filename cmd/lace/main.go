// Package main provides the entry point for the Lace operator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/laceai/lace-core/cmd/lace/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
