// Command onlinebuild drives the online index builder against a local
// Pebble-backed record store, in place of the teacher's readline REPL
// (cmd/main.go) — there is no CRDT object graph to inspect here, only an
// index build to run and watch. Grounded on the agentic-research-mache
// example's cmd package: a cobra root command with flag-bearing
// subcommands, no other framework machinery.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
