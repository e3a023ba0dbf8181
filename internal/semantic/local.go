package semantic

import (
	"context"

	"github.com/ShayCichocki/dagforge/pkg/models"
)

// Local runs the semantic rules in-process behind the same call shape as
// Client.
type Local struct {
	checker *Checker
}

// NewLocal wraps checker.
func NewLocal(checker *Checker) *Local {
	return &Local{checker: checker}
}

// Validate checks spec. It only fails if ctx is already done.
func (l *Local) Validate(ctx context.Context, spec *models.Specification) (models.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return models.ValidationResult{}, err
	}
	return l.checker.Check(spec), nil
}
