// Package api provides the LLM integrations used to generate and repair DAG
// specifications.
package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// DefaultMaxTokens caps the length of a completion.
const DefaultMaxTokens = 8192

// DefaultModel is used when ClientConfig.Model is empty.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

// ErrMissingAPIKey is returned when no API key is configured for a provider.
var ErrMissingAPIKey = errors.New("API key is not set")

// bedrockProfiles maps Anthropic model ids to Bedrock cross-region
// inference profiles.
var bedrockProfiles = map[anthropic.Model]anthropic.Model{
	anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
	anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
	anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
	anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
	anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
}

// Client is an Anthropic Messages client bound to one model. Usage of every
// call made through it is added to its tracker.
type Client struct {
	inner   anthropic.Client
	model   anthropic.Model
	tracker *TokenTracker
}

// ClientConfig selects the model and how to reach it.
type ClientConfig struct {
	// Model is the Claude model id. Empty selects DefaultModel.
	Model anthropic.Model
	// APIKey falls back to ANTHROPIC_API_KEY. Ignored for Bedrock.
	APIKey string
	// UseAWSBedrock sends requests through AWS Bedrock using the default
	// AWS credential chain.
	UseAWSBedrock bool
	AWSRegion     string
	AWSProfile    string
	// BaseURL overrides the API endpoint, e.g. for a proxy or tests.
	BaseURL string
}

// NewClient creates a client. Without Bedrock an API key is required.
func NewClient(cfg ClientConfig) (*Client, error) {
	opts, err := requestOptions(cfg)
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if cfg.UseAWSBedrock {
		model = bedrockProfile(model)
	}

	return &Client{
		inner:   anthropic.NewClient(opts...),
		model:   model,
		tracker: NewTokenTracker(),
	}, nil
}

func requestOptions(cfg ClientConfig) ([]option.RequestOption, error) {
	var opts []option.RequestOption
	if cfg.UseAWSBedrock {
		var load []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			load = append(load, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			load = append(load, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), load...))
	} else {
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("ANTHROPIC_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("anthropic: %w (set ANTHROPIC_API_KEY)", ErrMissingAPIKey)
		}
		opts = append(opts, option.WithAPIKey(key))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return opts, nil
}

// bedrockProfile returns the inference profile for model. Ids that are
// already profiles, and unknown ids, pass through.
func bedrockProfile(model anthropic.Model) anthropic.Model {
	if strings.HasPrefix(string(model), "us.anthropic.") {
		return model
	}
	if p, ok := bedrockProfiles[model]; ok {
		return p
	}
	return model
}

// Model returns the model id requests are sent with.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Tracker returns the client's usage tracker.
func (c *Client) Tracker() *TokenTracker {
	return c.tracker
}

// Usage is a token count snapshot.
type Usage struct {
	Input  int64
	Output int64
	Calls  int
}

// TokenTracker accumulates token usage. It is safe for concurrent use.
type TokenTracker struct {
	mu    sync.Mutex
	usage Usage
}

// NewTokenTracker returns an empty tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records one call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	t.usage.Input += input
	t.usage.Output += output
	t.usage.Calls++
	t.mu.Unlock()
}

// Snapshot returns the current totals.
func (t *TokenTracker) Snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

// Total returns input and output tokens.
func (t *TokenTracker) Total() (input, output int64) {
	u := t.Snapshot()
	return u.Input, u.Output
}

// Calls returns the number of recorded calls.
func (t *TokenTracker) Calls() int {
	return t.Snapshot().Calls
}

// Reset zeroes the totals.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	t.usage = Usage{}
	t.mu.Unlock()
}
