package main

import (
	"os"

	"github.com/settled-dev/settled/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
