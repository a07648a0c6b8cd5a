package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/pterm/pterm"
	"github.com/shyim/kvprobe/internal/config"
	"github.com/shyim/kvprobe/internal/executor"
	"github.com/shyim/kvprobe/internal/history"
	"github.com/shyim/kvprobe/internal/suite"
	"github.com/shyim/kvprobe/internal/verify"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const defaultHistoryFile = ".kvprobe.db"

var suiteCmd = &cobra.Command{
	Use:   "suite",
	Short: "Runs all cases of the suite file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.CreateConfig(configFile)

		if err != nil {
			return err
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		watch, _ := cmd.Flags().GetBool("watch")
		record, _ := cmd.Flags().GetString("record")

		runner, err := newSuiteRunner(cmd, cfg, quiet)

		if err != nil {
			return err
		}

		historyFile := cfg.History

		if record != "" {
			historyFile = record
		}

		var db *history.DB

		if historyFile != "" {
			db, err = history.Open(historyFile)

			if err != nil {
				return err
			}

			defer func() {
				if err := db.Close(); err != nil {
					log.Warnf("Failed to close history: %s", err)
				}
			}()
		}

		if watch {
			if cfg.Schedule == "" {
				return fmt.Errorf("suite %s has no schedule, set schedule in %s", cfg.Name, configFile)
			}

			return runner.Watch(cmd.Context(), cfg.Schedule, func(results *suite.Results) {
				printSummary(cmd.OutOrStdout(), results)

				if err := recordResults(cmd.Context(), db, results); err != nil {
					log.Errorf("Could not record run: %s", err)
				}
			})
		}

		results, err := runSuite(cmd.Context(), runner, cfg, quiet)

		if err != nil {
			return err
		}

		printSummary(cmd.OutOrStdout(), results)

		if err := recordResults(cmd.Context(), db, results); err != nil {
			return err
		}

		if !results.Passed() {
			return fmt.Errorf("%w: %d of %d cases failed", verify.ErrAssertionFailed, results.Failed(), len(results.Cases()))
		}

		return nil
	},
}

func newSuiteRunner(cmd *cobra.Command, cfg *config.SuiteConfig, quiet bool) (*suite.Runner, error) {
	policy, err := cfg.ParsedPolicy()

	if err != nil {
		return nil, err
	}

	opts := []suite.Option{suite.WithPolicy(applyFlagPolicy(policy))}

	if !quiet {
		opts = append(opts, suite.WithReporter(verify.NewReporter(cmd.OutOrStdout())))
	}

	var execOpts []executor.Option

	if requestTimeout > 0 {
		execOpts = append(execOpts, executor.WithTimeout(requestTimeout))
	}

	if noFollow {
		execOpts = append(execOpts, executor.WithFollowRedirects(false))
	}

	if escapeKeys {
		execOpts = append(execOpts, executor.WithEscapedKeys(true))
	}

	opts = append(opts, suite.WithExecutorOptions(execOpts...))

	return suite.NewRunner(cfg, opts...)
}

func runSuite(ctx context.Context, runner *suite.Runner, cfg *config.SuiteConfig, quiet bool) (*suite.Results, error) {
	if !quiet || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runner.Run(ctx)
	}

	spinnerInfo, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Running suite %s", cfg.Name))

	results, err := runner.Run(ctx)

	switch {
	case err != nil:
		spinnerInfo.Fail(fmt.Sprintf("Suite %s aborted: %s", cfg.Name, err))
	case !results.Passed():
		spinnerInfo.Fail(fmt.Sprintf("Suite %s: %d cases failed", cfg.Name, results.Failed()))
	default:
		spinnerInfo.Success(fmt.Sprintf("Suite %s passed", cfg.Name))
	}

	return results, err
}

func recordResults(ctx context.Context, db *history.DB, results *suite.Results) error {
	if db == nil {
		return nil
	}

	return db.Record(ctx, results)
}

func printSummary(out io.Writer, results *suite.Results) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("Case", "Command", "Result", "Duration", "Detail")

	for _, c := range results.Cases() {
		t.Row(c.Name, c.Command, resultLabel(c.Passed, c.Notice), c.Duration.Round(time.Millisecond).String(), c.Detail)
	}

	_, _ = fmt.Fprintln(out, t.Render())
	_, _ = fmt.Fprintf(out, "%s: %d cases, %d failed in %s\n", results.Suite, len(results.Cases()), results.Failed(), results.Duration.Round(time.Millisecond))
}

func resultLabel(passed, notice bool) string {
	switch {
	case !passed:
		return "FAIL"
	case notice:
		return "NOTICE"
	}

	return "PASS"
}

func init() {
	rootCmd.AddCommand(suiteCmd)
	suiteCmd.Flags().Bool("quiet", false, "Only print the summary")
	suiteCmd.Flags().Bool("watch", false, "Run the suite on its schedule until interrupted")
	suiteCmd.Flags().String("record", "", "Record the results into this history database")
	suiteCmd.Flags().Lookup("record").NoOptDefVal = defaultHistoryFile
}
