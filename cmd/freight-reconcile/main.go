package main

import (
	"os"

	"github.com/eshaffer321/freight-reconcile/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
