package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dagforge/internal/metrics"
	"github.com/ShayCichocki/dagforge/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the validation and repair HTTP service",
	Long: `Serve the HTTP API:

  POST /validate/dag           semantic validation (200 valid, 422 invalid)
  POST /validate/environment   check connections and operators against a deployment
  POST /v1/specs/validate      schema + semantic validation
  POST /v1/specs/repair        bounded repair loop
  GET  /v1/runs[/:id]          recorded repair runs
  GET  /health, /metrics

Repair is disabled (503) when no LLM credentials are configured.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	v, checker := createValidator(cfg, m, logger)

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithGatherer(prometheus.DefaultGatherer),
		server.WithDefaultMaxIterations(cfg.Repair.MaxIterations),
	}

	runner, err := createRunner(cfg)
	if err != nil {
		logger.Warn("repair endpoint disabled", "error", err)
	} else {
		opts = append(opts, server.WithRepairDriver(createDriver(cfg, v, runner, m, logger)))
	}

	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
		opts = append(opts, server.WithHistory(history))
	}

	return server.New(checker, v, opts...).Run(cmd.Context(), addr)
}
