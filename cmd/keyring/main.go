// Package main is the entry point for the keyring CLI.
package main

import (
	"os"

	"github.com/sendnodes-io/sendwallet-sub000/cmd/keyring/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
