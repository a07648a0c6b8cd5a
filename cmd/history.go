package cmd

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/shyim/kvprobe/internal/config"
	"github.com/shyim/kvprobe/internal/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [case]",
	Short: "Shows the last recorded suite runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbFile, _ := cmd.Flags().GetString("db")
		limit, _ := cmd.Flags().GetInt("limit")
		prune, _ := cmd.Flags().GetDuration("prune")

		if dbFile == "" {
			dbFile = historyFileFromConfig()
		}

		db, err := history.Open(dbFile)

		if err != nil {
			return err
		}

		defer func() {
			if err := db.Close(); err != nil {
				log.Warnf("Failed to close history: %s", err)
			}
		}()

		if prune > 0 {
			deleted, err := db.Prune(cmd.Context(), prune)

			if err != nil {
				return err
			}

			log.Infof("Deleted %d runs older than %s", deleted, prune)
		}

		caseID := ""

		if len(args) > 0 {
			caseID = args[0]
		}

		entries, err := db.List(cmd.Context(), caseID, limit)

		if err != nil {
			return err
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
			Headers("ID", "Run at", "Suite", "Case", "Status", "Result", "Execution time")

		for _, e := range entries {
			status := "-"

			if e.Status != nil {
				status = strconv.Itoa(*e.Status)
			}

			t.Row(strconv.Itoa(e.ID), e.RunAt, e.Suite, e.CaseID, status, resultLabel(e.Passed, e.Notice), formatDuration(e.Duration))
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), t.Render())

		return nil
	},
}

// historyFileFromConfig uses the history setting of the suite file when
// there is a readable one.
func historyFileFromConfig() string {
	cfg, err := config.CreateConfig(configFile)

	if err != nil || cfg.History == "" {
		return defaultHistoryFile
	}

	return cfg.History
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "invalid duration"
	}

	seconds := d.Seconds()
	minutes := seconds / 60

	if seconds < 60 {
		return fmt.Sprintf("%.2fs", math.Floor(seconds*100)/100)
	}

	remainingSeconds := math.Mod(seconds, 60)
	return fmt.Sprintf("%.0fm %.2fs", math.Floor(minutes), math.Floor(remainingSeconds*100)/100)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("db", "", "History database, defaults to the history setting of the suite file or "+defaultHistoryFile)
	historyCmd.Flags().Int("limit", 20, "Number of runs to show")
	historyCmd.Flags().Duration("prune", 0, "Delete runs older than this before listing")
}
