// Package main provides the entry point for the search engine server and CLI.
package main

import (
	"os"

	"github.com/gcbaptista/go-searcher/cmd/search_engine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
