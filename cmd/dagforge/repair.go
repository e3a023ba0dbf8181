package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dagforge/internal/repair"
	"github.com/ShayCichocki/dagforge/internal/specfile"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

var (
	repairIterations int
	repairOutput     string
	repairNoHistory  bool
	repairJSON       bool
)

var repairCmd = &cobra.Command{
	Use:   "repair <file>",
	Short: "Repair a DAG specification with the configured LLM",
	Long: `Run the bounded validate-and-fix loop on a specification file.

Each attempt sends the current specification and its findings to the fix
proposer and re-validates the answer. The loop stops when the specification
is valid, when an attempt does not reduce the error count, when the proposer
fails, or after -n attempts (1 to 5).

The final specification is written to -o, or printed when -o is omitted.
Exits with status 1 unless the run converged.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepair,
}

func init() {
	repairCmd.Flags().IntVarP(&repairIterations, "max-iterations", "n", 0, "Fix attempts, 1-5 (default repair.max_iterations)")
	repairCmd.Flags().StringVarP(&repairOutput, "output", "o", "", "Write the repaired specification to this file")
	repairCmd.Flags().BoolVar(&repairNoHistory, "no-history", false, "Do not record this run")
	repairCmd.Flags().BoolVar(&repairJSON, "json", false, "Print the full run result as JSON")
}

// checkIterations rejects budgets outside 1..5 before any model call.
func checkIterations(n int) error {
	if n < repair.MinIterations || n > repair.MaxIterations {
		return fmt.Errorf("%w: got %d, want %d..%d", repair.ErrInvalidMaxIterations, n, repair.MinIterations, repair.MaxIterations)
	}
	return nil
}

// resolveIterations returns the flag value, or the configured default when
// the flag was not set.
func resolveIterations(cmd *cobra.Command, flagValue, configured int) int {
	if cmd.Flags().Changed("max-iterations") {
		return flagValue
	}
	return configured
}

func runRepair(cmd *cobra.Command, args []string) error {
	spec, err := specfile.Load(args[0])
	if err != nil {
		return err
	}
	maxIter := resolveIterations(cmd, repairIterations, cfg.Repair.MaxIterations)
	if err := repair.CheckInput(spec, maxIter); err != nil {
		return err
	}

	runner, err := createRunner(cfg)
	if err != nil {
		return err
	}
	return repairAndReport(cmd, runner, spec, maxIter, repairOutput, repairNoHistory, repairJSON)
}

// repairAndReport runs the loop on spec, prints the summary, writes the
// final specification and records the run.
func repairAndReport(cmd *cobra.Command, p llmRunner, spec *models.Specification, maxIter int, output string, noHistory, asJSON bool) error {
	v, _ := createValidator(cfg, nil, logger)
	driver := createDriver(cfg, v, p, nil, logger)

	res, err := driver.Repair(cmd.Context(), spec, maxIter)
	if err != nil {
		return err
	}

	usage := p.Tracker().Snapshot()
	logger.Info("token usage", "calls", usage.Calls, "input_tokens", usage.Input, "output_tokens", usage.Output)

	if !noHistory {
		history, err := openHistory(cfg)
		if err != nil {
			logger.Warn("repair history unavailable", "error", err)
		} else if history != nil {
			recordRun(history, res, logger)
			history.Close()
		}
	}

	out := cmd.OutOrStdout()
	if asJSON {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		printRepairSummary(cmd.ErrOrStderr(), res)
	}

	switch {
	case output != "":
		if err := specfile.Save(output, res.FinalSpec); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
	case !asJSON:
		data, err := specfile.Marshal(res.FinalSpec, specfile.FormatJSON)
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	}

	if !res.Converged {
		return errInvalid
	}
	return nil
}
