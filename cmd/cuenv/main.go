package main

import (
	"fmt"
	"os"

	"github.com/cuenv/cuenv/internal/cli"
	"github.com/cuenv/cuenv/pkg/console"
)

// version is set by GoReleaser at build time.
var version = "dev"

func main() {
	rootCmd := cli.NewRootCommand(version)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(2)
	}
}
