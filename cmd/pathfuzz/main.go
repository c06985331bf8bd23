// Package main implements the pathfuzz CLI.
// It computes target distances for directed fuzzing: call-graph distances
// per function, then basic-block distances per control-flow graph.
package main

import (
	"os"

	"github.com/julianzuo526/pathfuzz/cmd/pathfuzz/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate(`pathfuzz version {{.Version}}
`)
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
