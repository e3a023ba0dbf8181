// Package generate turns a natural-language description into a DAG
// specification with the help of an LLM.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ShayCichocki/dagforge/internal/repair"
	"github.com/ShayCichocki/dagforge/internal/rules"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

// ErrEmptyDescription is returned for a blank request.
var ErrEmptyDescription = errors.New("description is empty")

// TextCompleter returns the model's answer to a prompt.
// *api.Runner and *api.OpenAIRunner satisfy it.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator drafts specifications. The draft is not validated; callers
// normally hand it to the repair driver.
type Generator struct {
	llm    TextCompleter
	vocab  *rules.Vocabulary
	logger *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithVocabulary restricts the operators suggested to the model.
func WithVocabulary(v rules.Vocabulary) Option {
	return func(g *Generator) { g.vocab = &v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Generator backed by llm.
func New(llm TextCompleter, opts ...Option) *Generator {
	g := &Generator{llm: llm, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Prompt renders the generation request for description.
func (g *Generator) Prompt(description string) string {
	var hint string
	if g.vocab != nil {
		if ops := g.vocab.Operators(); len(ops) > 0 {
			hint = fmt.Sprintf(operatorHint, strings.Join(ops, ", "))
		}
		if presets := g.vocab.Presets(); len(presets) > 0 {
			hint += fmt.Sprintf(presetHint, strings.Join(presets, ", "))
		}
	}
	return fmt.Sprintf(generationPrompt, strings.TrimSpace(description), hint)
}

// Generate asks the model for a specification matching description.
func (g *Generator) Generate(ctx context.Context, description string) (*models.Specification, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}

	response, err := g.llm.Complete(ctx, g.Prompt(description))
	if err != nil {
		return nil, fmt.Errorf("generate specification: %w", err)
	}

	spec, err := repair.ExtractSpecification(response)
	if err != nil {
		return nil, fmt.Errorf("parse generated specification: %w", err)
	}

	g.logger.Debug("specification generated", "spec_id", spec.ID, "tasks", len(spec.Tasks))
	return spec, nil
}
