package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dagforge/internal/generate"
	"github.com/ShayCichocki/dagforge/internal/repair"
	"github.com/ShayCichocki/dagforge/internal/rules"
)

var (
	generateIterations int
	generateOutput     string
	generateNoHistory  bool
)

var generateCmd = &cobra.Command{
	Use:   `generate "<description>"`,
	Short: "Generate a DAG specification from a description",
	Long: `Ask the configured LLM for a DAG specification matching a plain
English description, then run the repair loop on it so the result
validates.

Example:
  dagforge generate "load yesterday's orders from S3 into Postgres every night" -o orders.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().IntVarP(&generateIterations, "max-iterations", "n", 0, "Repair attempts, 1-5 (default repair.max_iterations)")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Write the specification to this file")
	generateCmd.Flags().BoolVar(&generateNoHistory, "no-history", false, "Do not record the repair run")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	description := strings.Join(args, " ")
	maxIter := resolveIterations(cmd, generateIterations, cfg.Repair.MaxIterations)
	if err := checkIterations(maxIter); err != nil {
		return err
	}

	runner, err := createRunner(cfg)
	if err != nil {
		return err
	}
	gen := generate.New(runner,
		generate.WithVocabulary(rules.DefaultVocabulary()),
		generate.WithLogger(logger),
	)

	spec, err := gen.Generate(cmd.Context(), description)
	if err != nil {
		return err
	}
	if err := repair.CheckInput(spec, maxIter); err != nil {
		return err
	}

	return repairAndReport(cmd, runner, spec, maxIter, generateOutput, generateNoHistory, false)
}
