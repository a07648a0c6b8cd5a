package cmd

import (
	"github.com/shyim/kvprobe/internal/command"
)

var getCmd = newProbeCommand(command.KindGet.String(), "  kvprobe get localhost:8080 cart")

func init() {
	rootCmd.AddCommand(getCmd)
}
