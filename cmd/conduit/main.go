package main

import (
	"os"

	"github.com/tfkr-ae/conduit/cmd/conduit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
