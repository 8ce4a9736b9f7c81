package main

import (
	"os"

	"github.com/pagelens/docr/cmd/docr/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
