package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shyim/kvprobe/internal/command"
	"github.com/shyim/kvprobe/internal/executor"
	"github.com/shyim/kvprobe/internal/verify"
	"github.com/spf13/cobra"
)

var configFile = ".kvprobe.yml"

var (
	requestTimeout  time.Duration
	noFollow        bool
	escapeKeys      bool
	assertVersioned bool
	debug           bool
)

var rootCmd = &cobra.Command{
	Use:   "kvprobe",
	Short: "kvprobe sends requests to a key-value store and checks its HTTP contract",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the CLI and returns the process exit status.
func Execute(ctx context.Context) int {
	return exitCode(rootCmd.ExecuteContext(ctx), os.Stderr)
}

// exitCode is 2 for usage errors, 1 for every other error.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}

	var usageErr *command.UsageError

	if errors.As(err, &usageErr) {
		_, _ = fmt.Fprintln(stderr, usageErr.Error())

		return 2
	}

	log.Error(err)

	return 1
}

func executorOptions() []executor.Option {
	return []executor.Option{
		executor.WithTimeout(requestTimeout),
		executor.WithFollowRedirects(!noFollow),
		executor.WithEscapedKeys(escapeKeys),
	}
}

// applyFlagPolicy applies --assert-versioned on top of policy.
func applyFlagPolicy(policy verify.Policy) verify.Policy {
	if assertVersioned {
		return policy.With(command.KindPutVersioned, verify.ModeAssert)
	}

	return policy
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVar(&configFile, "config", configFile, "Path to the suite file")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 0, "Timeout of a single request, 0 keeps the transport default")
	rootCmd.PersistentFlags().BoolVar(&noFollow, "no-follow", false, "Do not follow redirects")
	rootCmd.PersistentFlags().BoolVar(&escapeKeys, "escape-keys", false, "Path-escape keys instead of sending them verbatim")
	rootCmd.PersistentFlags().BoolVar(&assertVersioned, "assert-versioned", false, "Fail versioned writes that do not return 200")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
