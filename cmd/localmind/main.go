package main

import (
	"os"

	"github.com/localmind/localmind/cmd/localmind/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
