// Package repair drives the bounded validate-and-fix loop for DAG
// specifications.
//
// A run validates the input, and while errors remain asks a Proposer for a
// corrected specification, re-validates the candidate and keeps it as the
// new baseline. The loop is greedy and never rolls back: a regressed
// candidate still replaces the previous one, but the run stops as soon as an
// attempt fails to reduce the error count. Every step is recorded as an
// immutable RepairIteration carrying its own copy of the specification.
package repair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/dagforge/internal/metrics"
	"github.com/ShayCichocki/dagforge/internal/validation"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

// DefaultProposerTimeout bounds a single fix proposer call.
const DefaultProposerTimeout = 60 * time.Second

var tracer = otel.Tracer("dagforge/repair")

// Proposer returns a candidate replacement specification as raw text.
// The text may contain prose or Markdown around the JSON.
type Proposer interface {
	ProposeFix(ctx context.Context, prompt string) (string, error)
}

// ProposerFunc adapts a function to the Proposer interface.
type ProposerFunc func(ctx context.Context, prompt string) (string, error)

// ProposeFix calls f.
func (f ProposerFunc) ProposeFix(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Validator produces the aggregated findings for a specification.
// *validation.Validator satisfies it.
type Validator interface {
	Validate(ctx context.Context, spec *models.Specification) validation.Result
}

// Outcome is the terminal state of a repair run.
type Outcome string

const (
	// OutcomeConverged means the final specification has no errors.
	OutcomeConverged Outcome = "converged"
	// OutcomeStalled means an attempt did not reduce the error count.
	OutcomeStalled Outcome = "stalled"
	// OutcomeExhausted means the iteration budget ran out while improving.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeAborted means the run was cut short; see AbortReason.
	OutcomeAborted Outcome = "aborted"
)

// AbortReason explains an aborted run.
type AbortReason string

const (
	// AbortParseError means the proposer's text held no usable specification.
	AbortParseError AbortReason = "parse_error"
	// AbortProposerError means the proposer call failed or timed out.
	AbortProposerError AbortReason = "proposer_error"
	// AbortCancelled means the caller cancelled the run.
	AbortCancelled AbortReason = "cancelled"
)

// Result is the outcome of one repair run.
type Result struct {
	// RunID identifies the run.
	RunID string `json:"runId"`
	// FinalSpec is the last specification that parsed successfully.
	FinalSpec *models.Specification `json:"finalSpec"`
	// FinalValidation holds the findings for FinalSpec.
	FinalValidation validation.Result `json:"finalValidation"`
	// Iterations is the audit trail, starting with the initial snapshot.
	Iterations []models.RepairIteration `json:"iterations"`
	// Converged is true iff FinalSpec has no errors.
	Converged bool `json:"converged"`
	// Outcome is the terminal state.
	Outcome Outcome `json:"outcome"`
	// AbortReason is set when Outcome is OutcomeAborted.
	AbortReason AbortReason `json:"abortReason,omitempty"`
	// MaxIterations is the budget the run was given.
	MaxIterations int `json:"maxIterations"`
	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// LastIteration returns the final audit entry.
func (r *Result) LastIteration() models.RepairIteration {
	return r.Iterations[len(r.Iterations)-1]
}

// Driver runs repair loops. It holds no per-run state, so one Driver may
// serve concurrent runs.
type Driver struct {
	validator       Validator
	proposer        Proposer
	proposerTimeout time.Duration
	logger          *slog.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithProposerTimeout bounds each proposer call.
func WithProposerTimeout(d time.Duration) Option {
	return func(dr *Driver) {
		if d > 0 {
			dr.proposerTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(dr *Driver) {
		if l != nil {
			dr.logger = l
		}
	}
}

// WithMetrics records run and iteration counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(dr *Driver) { dr.metrics = m }
}

// WithClock overrides the time source for iteration timestamps.
func WithClock(now func() time.Time) Option {
	return func(dr *Driver) {
		if now != nil {
			dr.now = now
		}
	}
}

// NewDriver creates a driver.
func NewDriver(v Validator, p Proposer, opts ...Option) *Driver {
	d := &Driver{
		validator:       v,
		proposer:        p,
		proposerTimeout: DefaultProposerTimeout,
		logger:          slog.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CheckInput reports whether spec and maxIterations may enter the loop.
func CheckInput(spec *models.Specification, maxIterations int) error {
	if maxIterations < MinIterations || maxIterations > MaxIterations {
		return fmt.Errorf("%w: got %d, want %d..%d", ErrInvalidMaxIterations, maxIterations, MinIterations, MaxIterations)
	}
	switch {
	case spec == nil:
		return &InputError{Field: "specification", Reason: "is missing"}
	case spec.ID == "":
		return &InputError{Field: "dag_id", Reason: "is missing"}
	case spec.Description == "":
		return &InputError{Field: "description", Reason: "is missing"}
	case len(spec.Tasks) == 0:
		return &InputError{Field: "tasks", Reason: "must not be empty"}
	}
	return nil
}

// Repair runs the loop on spec with at most maxIterations fix attempts.
//
// An error is returned only for input errors or when ctx is done before
// the initial validation. Every other outcome, including proposer failures,
// is a Result. The caller's spec is never modified.
func (d *Driver) Repair(ctx context.Context, spec *models.Specification, maxIterations int) (*Result, error) {
	if err := CheckInput(spec, maxIterations); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := &Result{
		RunID:         uuid.New().String(),
		MaxIterations: maxIterations,
		StartedAt:     d.now(),
	}
	log := d.logger.With("run_id", run.RunID, "spec_id", spec.ID)

	ctx, span := tracer.Start(ctx, "repair.Run", trace.WithAttributes(
		attribute.String("run_id", run.RunID),
		attribute.String("spec_id", spec.ID),
		attribute.Int("max_iterations", maxIterations),
	))
	defer span.End()

	current := spec.Clone()
	findings := d.validator.Validate(ctx, current)
	d.record(run, models.RepairIteration{
		Iteration:    0,
		ErrorCount:   len(findings.Errors),
		WarningCount: len(findings.Warnings),
		Status:       models.IterationInitial,
		Degraded:     findings.Degraded,
		Spec:         current.Clone(),
	})
	log.Info("repair started", "errors", len(findings.Errors), "warnings", len(findings.Warnings))

	ctrl := NewController(maxIterations, len(findings.Errors))
	for ctrl.Next() {
		if ctx.Err() != nil {
			ctrl.Abort()
			run.AbortReason = AbortCancelled
			break
		}

		candidate, reason, detail := d.attempt(ctx, ctrl.Iteration(), current, findings)
		if candidate == nil {
			d.record(run, models.RepairIteration{
				Iteration:    ctrl.Iteration(),
				ErrorCount:   len(findings.Errors),
				WarningCount: len(findings.Warnings),
				Status:       models.IterationParseError,
				Detail:       detail,
			})
			log.Warn("repair attempt failed", "iteration", ctrl.Iteration(), "reason", reason, "detail", detail)
			ctrl.Abort()
			run.AbortReason = reason
			break
		}

		next := d.validator.Validate(ctx, candidate)
		if ctx.Err() != nil && next.Degraded {
			// The candidate was measured without the semantic layer because
			// the run was cancelled; its count cannot be compared.
			log.Warn("repair cancelled during validation", "iteration", ctrl.Iteration())
			ctrl.Abort()
			run.AbortReason = AbortCancelled
			break
		}
		reduction, status := ctrl.Observe(len(next.Errors))
		d.record(run, models.RepairIteration{
			Iteration:      ctrl.Iteration(),
			ErrorCount:     len(next.Errors),
			WarningCount:   len(next.Warnings),
			ErrorReduction: &reduction,
			Status:         status,
			Degraded:       next.Degraded,
			Spec:           candidate.Clone(),
		})
		log.Info("repair iteration",
			"iteration", ctrl.Iteration(),
			"errors", len(next.Errors),
			"reduction", reduction,
			"status", status,
		)

		current = candidate
		findings = next
	}

	run.Outcome = ctrl.Outcome()
	run.FinalSpec = current
	run.FinalValidation = findings
	run.Converged = findings.Valid()
	run.FinishedAt = d.now()

	span.SetAttributes(
		attribute.String("outcome", string(run.Outcome)),
		attribute.Int("iterations", len(run.Iterations)),
	)
	if run.Outcome == OutcomeAborted {
		span.SetStatus(codes.Error, string(run.AbortReason))
	}
	d.metrics.RepairRun(string(run.Outcome))
	log.Info("repair finished",
		"outcome", run.Outcome,
		"abort_reason", run.AbortReason,
		"converged", run.Converged,
		"iterations", len(run.Iterations),
	)

	return run, nil
}

// attempt asks the proposer for a fix and parses the answer. On failure it
// returns a nil specification, the abort reason and a detail message.
func (d *Driver) attempt(ctx context.Context, iteration int, current *models.Specification, findings validation.Result) (*models.Specification, AbortReason, string) {
	ctx, span := tracer.Start(ctx, "repair.Iteration", trace.WithAttributes(
		attribute.Int("iteration", iteration),
		attribute.Int("errors", len(findings.Errors)),
	))
	defer span.End()

	prompt, err := BuildPrompt(current, findings.Errors, findings.Warnings)
	if err != nil {
		span.RecordError(err)
		return nil, AbortProposerError, err.Error()
	}

	callCtx, cancel := context.WithTimeout(ctx, d.proposerTimeout)
	defer cancel()

	start := time.Now()
	text, err := d.proposer.ProposeFix(callCtx, prompt)
	d.metrics.ProposerCall(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "proposer failed")
		if ctx.Err() != nil {
			return nil, AbortCancelled, ctx.Err().Error()
		}
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return nil, AbortProposerError, fmt.Sprintf("fix proposer timed out after %s", d.proposerTimeout)
		}
		return nil, AbortProposerError, fmt.Sprintf("fix proposer failed: %v", err)
	}

	candidate, err := ExtractSpecification(text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, AbortParseError, err.Error()
	}
	return candidate, "", ""
}

func (d *Driver) record(run *Result, it models.RepairIteration) {
	it.Timestamp = d.now()
	run.Iterations = append(run.Iterations, it)
	d.metrics.RepairIteration(string(it.Status))
}
