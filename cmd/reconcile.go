package cmd

import (
	"github.com/shyim/kvprobe/internal/command"
)

var reconcileCmd = newProbeCommand(command.KindReconcile.String(), `  kvprobe reconcile localhost:8080 cart '[{"items":["a"],"clocks":[{"node":"n1","timestamp":2}]},{"items":["b"],"clocks":[{"node":"n2","timestamp":1}]}]'`)

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
