package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"golang.org/x/time/rate"
)

// fixSystemPrompt frames every fix request.
const fixSystemPrompt = `You are an expert data engineer who repairs DAG specifications.
You answer with a single JSON object and nothing else.`

// Runner provides simple text-in/text-out Claude API calls.
type Runner struct {
	client    *Client
	maxTokens int64
	limiter   *rate.Limiter
}

// RunnerOption configures a Runner or an OpenAIRunner.
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	maxTokens int64
	limiter   *rate.Limiter
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) RunnerOption {
	return func(o *runnerOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithRequestsPerMinute throttles calls made through the runner. Zero or a
// negative value disables throttling.
func WithRequestsPerMinute(n int) RunnerOption {
	return func(o *runnerOptions) {
		o.limiter = newLimiter(n)
	}
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

func applyRunnerOptions(opts []RunnerOption) runnerOptions {
	o := runnerOptions{maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// wait blocks until the limiter admits a request. A nil limiter admits all.
func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return ctx.Err()
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// NewRunner creates a new API runner.
func NewRunner(client *Client, opts ...RunnerOption) *Runner {
	o := applyRunnerOptions(opts)
	return &Runner{client: client, maxTokens: o.maxTokens, limiter: o.limiter}
}

// Tracker returns the usage tracker of the underlying client.
func (r *Runner) Tracker() *TokenTracker {
	return r.client.Tracker()
}

// Complete sends prompt without a system prompt.
func (r *Runner) Complete(ctx context.Context, prompt string) (string, error) {
	return r.RunWithSystem(ctx, "", prompt)
}

// ProposeFix asks the model for a corrected specification.
func (r *Runner) ProposeFix(ctx context.Context, prompt string) (string, error) {
	return r.RunWithSystem(ctx, fixSystemPrompt, prompt)
}

// RunWithSystem executes a prompt with an optional system message.
func (r *Runner) RunWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := wait(ctx, r.limiter); err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:     r.client.Model(),
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := r.client.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}

	r.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	return result.String(), nil
}
