package validation

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/dagforge/internal/metrics"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

// DefaultSemanticTimeout bounds one semantic validation call.
const DefaultSemanticTimeout = 5 * time.Second

// SchemaValidator checks a specification without I/O.
type SchemaValidator interface {
	Validate(spec *models.Specification) models.ValidationResult
}

// SemanticValidator performs deeper checks, possibly over the network.
// An error means the check could not be performed, not that the
// specification is invalid.
type SemanticValidator interface {
	Validate(ctx context.Context, spec *models.Specification) (models.ValidationResult, error)
}

// Validator runs the schema validator and an optional semantic validator
// concurrently and aggregates their results.
//
// Validator keeps no per-call state and is safe for concurrent use.
type Validator struct {
	schema     SchemaValidator
	semantic   SemanticValidator
	aggregator Aggregator
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Validator.
type Option func(*Validator)

// WithSemantic sets the semantic validator. Without one, validation is
// schema-only and never reported as degraded.
func WithSemantic(s SemanticValidator) Option {
	return func(v *Validator) { v.semantic = s }
}

// WithTimeout bounds each semantic call.
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithAggregator overrides the source labels.
func WithAggregator(a Aggregator) Option {
	return func(v *Validator) { v.aggregator = a }
}

// WithLogger sets the logger used for degraded-mode warnings.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithMetrics records validation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// New creates a validator around schema.
func New(schema SchemaValidator, opts ...Option) *Validator {
	v := &Validator{
		schema:     schema,
		aggregator: DefaultAggregator(),
		timeout:    DefaultSemanticTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks spec with both layers and merges the findings.
//
// A semantic failure or timeout degrades the result to schema-only; it is
// logged and counted, never returned.
func (v *Validator) Validate(ctx context.Context, spec *models.Specification) Result {
	var (
		schemaResult   models.ValidationResult
		semanticResult *models.ValidationResult
		semanticErr    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		schemaResult = v.schema.Validate(spec)
		return nil
	})
	if v.semantic != nil {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, v.timeout)
			defer cancel()

			res, err := v.semantic.Validate(callCtx, spec)
			if err != nil {
				semanticErr = err
				return nil
			}
			semanticResult = &res
			return nil
		})
	}
	// Both goroutines always return nil.
	_ = g.Wait()

	result := v.aggregator.Aggregate(schemaResult, semanticResult)
	if semanticErr != nil {
		result.Degraded = true
		result.SemanticError = semanticErr.Error()
		v.logger.Warn("semantic validation unavailable, using schema-only result",
			"spec_id", specID(spec),
			"error", semanticErr,
		)
		v.metrics.SemanticDegraded()
	}
	v.metrics.Validation(result.Valid())

	return result
}

// ValidateAggregate runs the schema validator on spec and merges it with a
// semantic result obtained elsewhere. semanticResult may be nil.
func (v *Validator) ValidateAggregate(spec *models.Specification, semanticResult *models.ValidationResult) Result {
	return v.aggregator.Aggregate(v.schema.Validate(spec), semanticResult)
}

// ValidateSchema runs only the schema validator.
func (v *Validator) ValidateSchema(spec *models.Specification) models.ValidationResult {
	return v.schema.Validate(spec)
}

func specID(spec *models.Specification) string {
	if spec == nil {
		return ""
	}
	return spec.ID
}
