package cmd

import (
	"github.com/shyim/kvprobe/internal/command"
)

var putPlainCmd = newProbeCommand(command.KindPutPlain.String(), "  kvprobe put-plain localhost:8080 greeting hello")

func init() {
	rootCmd.AddCommand(putPlainCmd)
}
