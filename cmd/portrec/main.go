package main

import (
	"os"

	"github.com/portrec/portrec/cmd/portrec/commands"
)

// main is the entry point for the portrec CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
