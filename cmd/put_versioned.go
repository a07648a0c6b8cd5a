package cmd

import (
	"github.com/shyim/kvprobe/internal/command"
)

var putVersionedCmd = newProbeCommand(command.KindPutVersioned.String(), `  kvprobe put-versioned localhost:8080 cart add apple '[]'
  kvprobe put-versioned localhost:8080 cart remove apple '[{"node":"node-0","timestamp":1}]'`)

func init() {
	rootCmd.AddCommand(putVersionedCmd)
}
