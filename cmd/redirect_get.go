package cmd

import (
	"github.com/shyim/kvprobe/internal/command"
)

// The hash key is sent as given, the store decides whether it owns it.
var redirectGetCmd = newProbeCommand(command.KindRedirectGet.String(), "  kvprobe redirect-get localhost:8080 17 cart")

func init() {
	rootCmd.AddCommand(redirectGetCmd)
}
