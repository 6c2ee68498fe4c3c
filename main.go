package main

import (
	"os"

	"github.com/mrlokans/spinestock/internal/cli"
	"github.com/mrlokans/spinestock/internal/config"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	root := cli.NewRootCommand(Version+" ("+Commit+")", config.NewConfig())

	// No arguments runs the server, as before the client commands existed.
	if len(os.Args) < 2 {
		root.SetArgs([]string{"serve"})
	}

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
