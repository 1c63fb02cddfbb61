package main

import (
	"os"

	"github.com/wonny/marketviews/cmd/painel/commands"
)

// main is the entry point for the painel CLI
// ⭐ single CLI entry point: go run ./cmd/painel [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
