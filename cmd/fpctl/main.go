package main

import (
	"os"

	"github.com/abcfood/fingerprint-bridge/cmd/fpctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
