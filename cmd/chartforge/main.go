// Package main is the entry point for the chartforge CLI binary.
package main

import (
	"os"

	cli "chartforge/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
