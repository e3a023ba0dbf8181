package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/dagforge/internal/api"
	"github.com/ShayCichocki/dagforge/internal/config"
	"github.com/ShayCichocki/dagforge/internal/metrics"
	"github.com/ShayCichocki/dagforge/internal/repair"
	"github.com/ShayCichocki/dagforge/internal/rules"
	"github.com/ShayCichocki/dagforge/internal/schema"
	"github.com/ShayCichocki/dagforge/internal/semantic"
	"github.com/ShayCichocki/dagforge/internal/state"
	"github.com/ShayCichocki/dagforge/internal/validation"
)

// llmRunner is what the CLI needs from a model: free-form completion for
// generation and fix proposals for repair.
type llmRunner interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ProposeFix(ctx context.Context, prompt string) (string, error)
	Tracker() *api.TokenTracker
}

// createRunner builds the runner for the configured provider.
func createRunner(cfg *config.Config) (llmRunner, error) {
	opts := []api.RunnerOption{
		api.WithMaxTokens(int64(cfg.LLM.MaxTokens)),
		api.WithRequestsPerMinute(cfg.LLM.RequestsPerMinute),
	}

	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		return api.NewOpenAIRunner(api.OpenAIConfig{
			APIKey:  key,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		}, opts...)

	default:
		clientCfg := api.ClientConfig{
			Model:         anthropic.Model(cfg.LLM.Model),
			UseAWSBedrock: cfg.LLM.UseBedrock,
			AWSRegion:     cfg.LLM.AWSRegion,
			AWSProfile:    cfg.LLM.AWSProfile,
			BaseURL:       cfg.LLM.BaseURL,
		}
		if !cfg.LLM.UseBedrock {
			key, err := config.GetAPIKey(cfg)
			if err != nil {
				return nil, err
			}
			clientCfg.APIKey = key
		}
		client, err := api.NewClient(clientCfg)
		if err != nil {
			return nil, fmt.Errorf("create API client: %w", err)
		}
		return api.NewRunner(client, opts...), nil
	}
}

// createValidator builds the schema validator plus the semantic layer
// selected by semantic.mode. The checker is returned for the HTTP routes
// that call it directly.
func createValidator(cfg *config.Config, m *metrics.Metrics, log *slog.Logger) (*validation.Validator, *semantic.Checker) {
	vocab := rules.DefaultVocabulary()
	checker := semantic.NewChecker(vocab)

	opts := []validation.Option{
		validation.WithTimeout(cfg.Semantic.Timeout),
		validation.WithLogger(log),
		validation.WithMetrics(m),
	}
	switch cfg.Semantic.Mode {
	case "remote":
		opts = append(opts, validation.WithSemantic(
			semantic.NewClient(cfg.Semantic.URL).WithTimeout(cfg.Semantic.Timeout),
		))
	case "local":
		opts = append(opts, validation.WithSemantic(semantic.NewLocal(checker)))
	}

	return validation.New(schema.New(schema.WithVocabulary(vocab)), opts...), checker
}

// createDriver wires a repair driver around v and the fix proposer p.
func createDriver(cfg *config.Config, v *validation.Validator, p repair.Proposer, m *metrics.Metrics, log *slog.Logger) *repair.Driver {
	return repair.NewDriver(v, p,
		repair.WithProposerTimeout(cfg.Repair.ProposerTimeout),
		repair.WithLogger(log),
		repair.WithMetrics(m),
	)
}

// openHistory opens the run history, or returns nil when it is disabled.
func openHistory(cfg *config.Config) (state.HistoryStore, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	db, err := state.OpenHistory(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return db, nil
}

// recordRun stores a finished repair run. Failures are logged, not returned.
func recordRun(history state.HistoryStore, res *repair.Result, log *slog.Logger) {
	if history == nil {
		return
	}
	if err := history.SaveRun(state.FromResult(res)); err != nil {
		log.Warn("failed to record repair run", "run_id", res.RunID, "error", err)
	}
}
