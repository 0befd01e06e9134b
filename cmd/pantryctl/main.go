package main

import (
	"fmt"
	"os"

	"github.com/benvon/smart-pantry/cmd/pantryctl/commands"
)

func main() {
	if err := commands.NewRootCmd(commands.OpenConfigured).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
