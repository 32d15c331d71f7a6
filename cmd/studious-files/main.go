// studious-files - CLI and interactive browser for a class's file library.
package main

import (
	"os"

	"github.com/studious-lms/studious-files/internal/cli"
)

// Version information
var (
	Version   = "v1.2.0"
	BuildTime = "2026-08-28"
)

func main() {
	cli.Version = Version
	cli.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
