package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dagforge/internal/state"
)

var (
	historyLimit     int
	historyJSON      bool
	historyOlderThan time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded repair runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent repair runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistoryDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		if historyJSON {
			if runs == nil {
				runs = []state.Run{}
			}
			return printJSON(cmd.OutOrStdout(), runs)
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one repair run with its iterations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistoryDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.GetRun(args[0])
		if isNotFound(err) {
			return fmt.Errorf("no repair run with id %q", args[0])
		}
		if err != nil {
			return err
		}
		if historyJSON {
			return printJSON(cmd.OutOrStdout(), run)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run:       %s\n", run.ID)
		fmt.Fprintf(out, "DAG:       %s\n", run.SpecID)
		fmt.Fprintf(out, "Outcome:   %s", run.Outcome)
		if run.AbortReason != "" {
			fmt.Fprintf(out, " (%s)", run.AbortReason)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Errors:    %d  Warnings: %d\n", run.ErrorCount, run.WarningCount)
		fmt.Fprintf(out, "Started:   %s\n", run.StartedAt.Local().Format(time.RFC1123))
		fmt.Fprintf(out, "Duration:  %s\n\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
		fmt.Fprintln(out, renderIterations(run.Iterations))
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete one repair run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistoryDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteRun(args[0]); isNotFound(err) {
			return fmt.Errorf("no repair run with id %q", args[0])
		} else if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
		return nil
	},
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete runs older than --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistoryDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.PurgeRuns(historyOlderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s)\n", n)
		return nil
	},
}

// openHistoryDB opens the configured history file regardless of
// history.enabled, so past runs stay readable after disabling it.
func openHistoryDB() (*state.DB, error) {
	db, err := state.OpenHistory(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return db, nil
}

// isNotFound reports whether err is a missing run.
func isNotFound(err error) bool {
	return errors.Is(err, state.ErrNotFound)
}

func init() {
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Print as JSON")
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list (0 for all)")
	historyPurgeCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "Age of runs to delete")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyPurgeCmd)
}
