package cmd

import (
	"github.com/shyim/kvprobe/internal/command"
)

// Each write is a full {"op","item","version"} object. All writes are
// released at the same time against the same key.
var concurrentPutCmd = newProbeCommand(command.ConcurrentPut, `  kvprobe concurrent-put localhost:8080 cart '{"op":"add","item":"a","version":[]}' '{"op":"add","item":"b","version":[]}'`)

func init() {
	rootCmd.AddCommand(concurrentPutCmd)
}
