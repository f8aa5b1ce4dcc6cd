package main

import (
	"os"

	"github.com/mrlokans/autobooks/internal/cli"
	"github.com/mrlokans/autobooks/internal/cli/colours"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	root := cli.NewRootCommand(Version + " (" + Commit + ")")
	if err := root.Execute(); err != nil {
		colours.Error.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
