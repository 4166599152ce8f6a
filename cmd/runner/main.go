// main.go — CLI entry point. Command-per-concern cobra tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "runner",
	Short: "runlattice drives one autonomous web-UI test run end to end",
	Long: `runner assembles a Run Descriptor from flags, opens a browser
session, and drives it through Navigate, Preflight, an optional
Diagnose pass, and a self-healing Plan/Execute loop until the run
reaches a terminal outcome.`,
}

func main() {
	rootCmd.AddCommand(newRunCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
