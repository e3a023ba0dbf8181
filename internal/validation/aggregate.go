package validation

import (
	"encoding/json"

	"github.com/ShayCichocki/dagforge/pkg/models"
)

// Default source labels.
const (
	SchemaLabel   = "schema"
	SemanticLabel = "python"
)

// Result is the merged output of the schema and semantic validators.
type Result struct {
	// Errors lists schema errors first, then semantic errors.
	Errors []models.Entry
	// Warnings lists schema warnings first, then semantic warnings.
	Warnings []models.Entry
	// Degraded is true when the semantic layer was configured but gave no result.
	Degraded bool
	// SemanticError describes why the semantic layer gave no result.
	SemanticError string
}

// Valid returns true iff there are no errors.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// ValidationResult returns the errors and warnings as a plain result.
func (r Result) ValidationResult() models.ValidationResult {
	return models.ValidationResult{Errors: r.Errors, Warnings: r.Warnings}
}

// MarshalJSON encodes the result with its derived "valid" flag.
func (r Result) MarshalJSON() ([]byte, error) {
	errs := r.Errors
	if errs == nil {
		errs = []models.Entry{}
	}
	warns := r.Warnings
	if warns == nil {
		warns = []models.Entry{}
	}
	return json.Marshal(struct {
		Valid         bool           `json:"valid"`
		Errors        []models.Entry `json:"errors"`
		Warnings      []models.Entry `json:"warnings"`
		Degraded      bool           `json:"degraded,omitempty"`
		SemanticError string         `json:"semantic_error,omitempty"`
	}{
		Valid:         len(errs) == 0,
		Errors:        errs,
		Warnings:      warns,
		Degraded:      r.Degraded,
		SemanticError: r.SemanticError,
	})
}

// Aggregator merges results under configurable source labels.
type Aggregator struct {
	SchemaLabel   string
	SemanticLabel string
}

// DefaultAggregator uses the "schema" and "python" labels.
func DefaultAggregator() Aggregator {
	return Aggregator{SchemaLabel: SchemaLabel, SemanticLabel: SemanticLabel}
}

// Aggregate merges schemaResult and, if non-nil, semanticResult using the
// default labels.
func Aggregate(schemaResult models.ValidationResult, semanticResult *models.ValidationResult) Result {
	return DefaultAggregator().Aggregate(schemaResult, semanticResult)
}

// Aggregate merges the two results. A nil semanticResult means the semantic
// layer gave nothing and only schema entries are returned; that alone does
// not mark the result degraded.
func (a Aggregator) Aggregate(schemaResult models.ValidationResult, semanticResult *models.ValidationResult) Result {
	size := len(schemaResult.Errors)
	wsize := len(schemaResult.Warnings)
	if semanticResult != nil {
		size += len(semanticResult.Errors)
		wsize += len(semanticResult.Warnings)
	}

	out := Result{
		Errors:   make([]models.Entry, 0, size),
		Warnings: make([]models.Entry, 0, wsize),
	}
	out.Errors = appendLabeled(out.Errors, schemaResult.Errors, a.SchemaLabel)
	out.Warnings = appendLabeled(out.Warnings, schemaResult.Warnings, a.SchemaLabel)
	if semanticResult != nil {
		out.Errors = appendLabeled(out.Errors, semanticResult.Errors, a.SemanticLabel)
		out.Warnings = appendLabeled(out.Warnings, semanticResult.Warnings, a.SemanticLabel)
	}
	return out
}

// appendLabeled copies entries into dst with their type prefixed by label.
func appendLabeled(dst, entries []models.Entry, label string) []models.Entry {
	for _, e := range entries {
		if e.Type == "" {
			e.Type = label
		} else {
			e.Type = label + ":" + e.Type
		}
		dst = append(dst, e)
	}
	return dst
}
