package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/shyim/kvprobe/internal/command"
	"github.com/shyim/kvprobe/internal/executor"
	"github.com/shyim/kvprobe/internal/verify"
	"github.com/spf13/cobra"
)

// newProbeCommand builds the cobra command of one request shape. Arguments
// are checked by the command table, not by cobra, so too few arguments
// turn into a *command.UsageError before anything is sent.
func newProbeCommand(name string, example string) *cobra.Command {
	usage, ok := command.LookupUsage(name)

	if !ok {
		panic(fmt.Sprintf("no usage registered for %s", name))
	}

	return &cobra.Command{
		Use:     usage.Name + " " + usage.Args,
		Short:   usage.Short,
		Example: example,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			commands, err := command.ParseGroup(name, args)

			if err != nil {
				return err
			}

			return probe(cmd.Context(), cmd.OutOrStdout(), commands, applyFlagPolicy(verify.DefaultPolicy()), executorOptions()...)
		},
	}
}

// probe sends commands, reports every exchange and returns
// verify.ErrAssertionFailed when one of them failed. More than one command
// is sent at the same time.
func probe(ctx context.Context, out io.Writer, commands []command.Command, policy verify.Policy, opts ...executor.Option) error {
	exec := executor.New(opts...)
	reporter := verify.NewReporter(out)

	var outcomes []*executor.Outcome
	var errs []error

	if len(commands) == 1 {
		outcome, err := exec.Execute(ctx, commands[0])
		outcomes, errs = []*executor.Outcome{outcome}, []error{err}
	} else {
		outcomes, errs = exec.ExecuteTogether(ctx, commands)
	}

	var firstErr error
	failed := 0

	for i, cmd := range commands {
		if errs[i] != nil {
			reporter.ReportError(cmd, cmd.URL(escapeKeys), errs[i])

			if firstErr == nil {
				firstErr = errs[i]
			}

			continue
		}

		result := verify.Validate(outcomes[i], policy)
		reporter.Report(outcomes[i], result)

		if result.Notice {
			log.Warnf("%s %s: %s", cmd.Kind(), outcomes[i].URL, result.Detail)
		}

		if !result.Passed {
			failed++

			if firstErr == nil {
				firstErr = result.Err()
			}
		}
	}

	if firstErr == nil {
		return nil
	}

	if len(commands) > 1 {
		return fmt.Errorf("%d of %d requests failed, first: %w", failed+countErrors(errs), len(commands), firstErr)
	}

	return firstErr
}

func countErrors(errs []error) int {
	n := 0

	for _, err := range errs {
		if err != nil {
			n++
		}
	}

	return n
}
