package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAIRunner.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. If empty, uses OPENAI_API_KEY.
	APIKey string
	// Model defaults to DefaultOpenAIModel.
	Model string
	// BaseURL overrides the API endpoint, e.g. for compatible gateways.
	BaseURL string
}

// OpenAIRunner is a text completer backed by the OpenAI chat API.
type OpenAIRunner struct {
	client    *openai.Client
	model     string
	maxTokens int
	limiter   *rate.Limiter
	tracker   *TokenTracker
}

// NewOpenAIRunner creates a runner for the OpenAI chat API.
func NewOpenAIRunner(cfg OpenAIConfig, opts ...RunnerOption) (*OpenAIRunner, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrMissingAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	o := applyRunnerOptions(opts)
	slog.Debug("initializing OpenAI runner", "model", model)
	return &OpenAIRunner{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: int(o.maxTokens),
		limiter:   o.limiter,
		tracker:   NewTokenTracker(),
	}, nil
}

// Model returns the configured model name.
func (o *OpenAIRunner) Model() string {
	return o.model
}

// Tracker returns the token tracker for this runner.
func (o *OpenAIRunner) Tracker() *TokenTracker {
	return o.tracker
}

// Complete executes a prompt and returns the text response.
func (o *OpenAIRunner) Complete(ctx context.Context, prompt string) (string, error) {
	return o.RunWithSystem(ctx, "", prompt)
}

// ProposeFix asks the model for a corrected specification.
func (o *OpenAIRunner) ProposeFix(ctx context.Context, prompt string) (string, error) {
	return o.RunWithSystem(ctx, fixSystemPrompt, prompt)
}

// RunWithSystem executes a prompt with an optional system message.
func (o *OpenAIRunner) RunWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := wait(ctx, o.limiter); err != nil {
		return "", err
	}

	var messages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userPrompt})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               o.model,
		Messages:            messages,
		MaxCompletionTokens: o.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	o.tracker.Add(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
