// Package schema implements the structural validator for DAG specifications.
//
// The validator makes no external calls and never panics on a malformed
// specification: every problem is reported as an entry in the returned
// ValidationResult, appended in a fixed order so the output is stable across
// runs on the same input.
package schema

import (
	"fmt"

	"github.com/ShayCichocki/dagforge/internal/rules"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

// Entry types emitted by the schema validator.
const (
	TypeField      = "field"
	TypeStructure  = "structure"
	TypeFormat     = "format"
	TypeDuplicate  = "duplicate"
	TypeOperator   = "operator"
	TypeDependency = "dependency"
)

// Validator checks required fields, identifier formats, duplicate task ids,
// forward references and self-dependencies.
//
// A Validator holds only read-only configuration and is safe for concurrent
// use.
type Validator struct {
	// vocab is the advisory operator vocabulary. Nil means every non-empty
	// operator is accepted without a warning.
	vocab *rules.Vocabulary
}

// Option configures a Validator.
type Option func(*Validator)

// WithVocabulary enables unknown-operator warnings against v.
func WithVocabulary(v rules.Vocabulary) Option {
	return func(val *Validator) {
		val.vocab = &v
	}
}

// New creates a schema validator.
func New(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the open-world schema validator (no operator vocabulary) on
// spec, so it never emits unknown-operator warnings. The CLI and server build
// their validator with New(WithVocabulary(...)) to get them.
func Validate(spec *models.Specification) models.ValidationResult {
	return New().Validate(spec)
}

// Validate checks spec and returns every error and warning found.
// A nil spec is treated as an empty one.
func (v *Validator) Validate(spec *models.Specification) models.ValidationResult {
	result := models.ValidationResult{
		Errors:   []models.Entry{},
		Warnings: []models.Entry{},
	}
	if spec == nil {
		spec = &models.Specification{}
	}

	v.checkRequired(spec, &result)
	v.checkSpecID(spec, &result)
	v.checkTasks(spec.Tasks, &result)
	v.checkSelfDependencies(spec.Tasks, &result)

	return result
}

// checkRequired reports missing top-level fields. A missing schedule is only
// a warning.
func (v *Validator) checkRequired(spec *models.Specification, r *models.ValidationResult) {
	if spec.ID == "" {
		r.AddError(models.Entry{
			Type:    TypeField,
			Field:   "dag_id",
			Message: "Required field \"dag_id\" is missing",
		})
	}
	if spec.Description == "" {
		r.AddError(models.Entry{
			Type:    TypeField,
			Field:   "description",
			Message: "Required field \"description\" is missing",
		})
	}
	if spec.ScheduleValue() == "" {
		r.AddWarning(models.Entry{
			Type:    TypeField,
			Field:   "schedule",
			Message: "Schedule is not set - DAG will not run automatically",
		})
	}
	if len(spec.Tasks) == 0 {
		r.AddError(models.Entry{
			Type:    TypeStructure,
			Field:   "tasks",
			Message: "DAG must contain at least one task",
		})
	}
}

func (v *Validator) checkSpecID(spec *models.Specification, r *models.ValidationResult) {
	if spec.ID == "" || rules.IsValidSpecID(spec.ID) {
		return
	}
	r.AddError(models.Entry{
		Type:    TypeFormat,
		Field:   "dag_id",
		Message: fmt.Sprintf("DAG ID %q contains invalid characters. Use only letters, numbers, underscores, and hyphens.", spec.ID),
	})
}

// checkTasks walks the tasks in declaration order. The seen-set grows as the
// walk proceeds, so a dependency on a later task is reported as a forward
// reference and a repeated id is reported at each repeat.
func (v *Validator) checkTasks(tasks []models.Task, r *models.ValidationResult) {
	seen := make(map[string]bool, len(tasks))

	for i, task := range tasks {
		label := taskLabel(i, task)

		if task.TaskID == "" {
			r.AddError(models.Entry{
				Type:    TypeField,
				Field:   fmt.Sprintf("tasks[%d].task_id", i),
				Message: fmt.Sprintf("Task at index %d is missing task_id", i),
			})
		}
		if task.OperatorType == "" {
			r.AddError(models.Entry{
				Type:    TypeField,
				Field:   fmt.Sprintf("tasks[%d].operator_type", i),
				Message: fmt.Sprintf("%s is missing operator_type", label),
			})
		}

		if task.TaskID != "" && !rules.IsValidTaskID(task.TaskID) {
			r.AddError(models.Entry{
				Type:    TypeFormat,
				Field:   fmt.Sprintf("tasks[%d].task_id", i),
				Message: fmt.Sprintf("Task ID %q contains invalid characters. Use only letters, numbers, and underscores.", task.TaskID),
			})
		}

		if task.TaskID != "" {
			if seen[task.TaskID] {
				r.AddError(models.Entry{
					Type:    TypeDuplicate,
					Field:   fmt.Sprintf("tasks[%d].task_id", i),
					Message: fmt.Sprintf("Duplicate task_id: %q", task.TaskID),
				})
			}
			seen[task.TaskID] = true
		}

		if task.OperatorType != "" && v.vocab != nil && !v.vocab.KnownOperator(task.OperatorType) {
			r.AddWarning(models.Entry{
				Type:    TypeOperator,
				Field:   fmt.Sprintf("tasks[%d].operator_type", i),
				Message: fmt.Sprintf("Unknown operator type: %q. May not be supported.", task.OperatorType),
			})
		}

		for _, dep := range task.Dependencies {
			if seen[dep] {
				continue
			}
			r.AddWarning(models.Entry{
				Type:    TypeDependency,
				Field:   fmt.Sprintf("tasks[%d].dependencies", i),
				Message: fmt.Sprintf("%s depends on %q which hasn't been defined yet", label, dep),
			})
		}
	}
}

// checkSelfDependencies is a separate pass over all tasks and is independent
// of duplicate detection: two tasks sharing an id that both depend on it
// produce two errors.
func (v *Validator) checkSelfDependencies(tasks []models.Task, r *models.ValidationResult) {
	for i, task := range tasks {
		if !rules.HasSelfDependency(task) {
			continue
		}
		r.AddError(models.Entry{
			Type:    TypeDependency,
			Field:   fmt.Sprintf("tasks[%d].dependencies", i),
			Message: fmt.Sprintf("Task %q cannot depend on itself", task.TaskID),
		})
	}
}

func taskLabel(i int, task models.Task) string {
	if task.TaskID == "" {
		return fmt.Sprintf("Task at index %d", i)
	}
	return fmt.Sprintf("Task %q", task.TaskID)
}
