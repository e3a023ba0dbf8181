// Package semantic implements the deeper DAG checks that sit behind the
// schema validator: schedule and start date formats, connection and variable
// definitions, dangling dependencies and multi-hop cycles.
//
// The checks run in-process through Checker and Local, or remotely through
// Client against a service exposing the same rules over HTTP.
package semantic

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ShayCichocki/dagforge/internal/graph"
	"github.com/ShayCichocki/dagforge/internal/rules"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

// MaxDAGIDLength is the longest dag_id Airflow accepts.
const MaxDAGIDLength = 100

// cronPattern accepts presets, @every durations and 5 to 7 field cron
// expressions. The outer group anchors the match at the start only, so a
// preset followed by trailing text is still accepted.
var cronPattern = regexp.MustCompile(`^(?:^(@(yearly|annually|monthly|weekly|daily|hourly|reboot))|(@every (\d+(ns|us|µs|ms|s|m|h))+)|((((\d+,)+\d+|(\d+(\/|-)\d+)|\d+|\*) ?){5,7})$)`)

// startDateLayouts are the ISO 8601 forms accepted for start_date.
var startDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
	time.RFC3339,
	time.RFC3339Nano,
}

// Checker runs the semantic rules against a specification. It is stateless
// apart from its vocabulary and is safe for concurrent use.
type Checker struct {
	vocab rules.Vocabulary
}

// NewChecker creates a checker that warns about operators missing from vocab.
func NewChecker(vocab rules.Vocabulary) *Checker {
	return &Checker{vocab: vocab}
}

// Check validates spec and returns all findings in a fixed order: required
// fields, dag_id, schedule, start_date, tasks, connections, variables and
// finally dependencies.
func (c *Checker) Check(spec *models.Specification) models.ValidationResult {
	r := models.ValidationResult{
		Errors:   []models.Entry{},
		Warnings: []models.Entry{},
	}

	if isEmpty(spec) {
		r.AddError(models.Entry{
			Type:    "structure",
			Field:   "root",
			Message: "DAG specification is empty",
		})
		return r
	}

	c.checkRequired(spec, &r)
	c.checkDAGID(spec.ID, &r)
	c.checkSchedule(spec.Schedule, &r)
	c.checkStartDate(spec.StartDate, &r)
	c.checkTasks(spec.Tasks, &r)
	c.checkConnections(spec.Connections, &r)
	c.checkVariables(spec.Variables, &r)
	c.checkDependencies(spec.Tasks, &r)

	return r
}

func isEmpty(spec *models.Specification) bool {
	return spec == nil ||
		(spec.ID == "" && spec.Description == "" && spec.Schedule == nil && spec.StartDate == "" &&
			spec.Tasks == nil && spec.Connections == nil && spec.Variables == nil && len(spec.Extra) == 0)
}

func (c *Checker) checkRequired(spec *models.Specification, r *models.ValidationResult) {
	missing := func(field string) {
		r.AddError(models.Entry{
			Type:    "field",
			Field:   field,
			Message: fmt.Sprintf("Required field %q is missing or null", field),
		})
	}

	if spec.ID == "" {
		missing("dag_id")
	}
	if spec.Description == "" {
		missing("description")
	}
	if spec.Schedule == nil {
		r.AddWarning(models.Entry{
			Type:    "field",
			Field:   "schedule",
			Message: "Schedule is None - DAG will not run automatically",
		})
	}
	if spec.Tasks == nil {
		missing("tasks")
	}
}

func (c *Checker) checkDAGID(id string, r *models.ValidationResult) {
	if id == "" {
		return
	}
	if !rules.IsValidSpecID(id) {
		r.AddError(models.Entry{
			Type:    "format",
			Field:   "dag_id",
			Message: fmt.Sprintf("DAG ID %q contains invalid characters. Use only letters, numbers, underscores, and hyphens.", id),
		})
	}
	if len(id) > MaxDAGIDLength {
		r.AddError(models.Entry{
			Type:    "format",
			Field:   "dag_id",
			Message: fmt.Sprintf("DAG ID is too long (%d chars). Maximum is %d characters.", len(id), MaxDAGIDLength),
		})
	}
	if lower := strings.ToLower(id); lower != id {
		r.AddWarning(models.Entry{
			Type:    "format",
			Field:   "dag_id",
			Message: fmt.Sprintf("DAG ID should be lowercase for consistency. Consider: %q", lower),
		})
	}
}

// ValidSchedule reports whether s is a known preset, "None"/"null", or looks
// like a cron expression.
func (c *Checker) ValidSchedule(s string) bool {
	if s == "None" || s == "null" || c.vocab.KnownPreset(s) {
		return true
	}
	return cronPattern.MatchString(strings.TrimSpace(s))
}

func (c *Checker) checkSchedule(schedule *string, r *models.ValidationResult) {
	if schedule == nil || c.ValidSchedule(*schedule) {
		return
	}
	r.AddWarning(models.Entry{
		Type:    "format",
		Field:   "schedule",
		Message: fmt.Sprintf("Schedule %q may not be a valid cron expression or preset", *schedule),
	})
}

func (c *Checker) checkStartDate(startDate string, r *models.ValidationResult) {
	if startDate == "" {
		r.AddWarning(models.Entry{
			Type:    "field",
			Field:   "start_date",
			Message: "No start_date specified. Will use default.",
		})
		return
	}
	for _, layout := range startDateLayouts {
		if _, err := time.Parse(layout, startDate); err == nil {
			return
		}
	}
	r.AddError(models.Entry{
		Type:    "format",
		Field:   "start_date",
		Message: fmt.Sprintf("Invalid date format %q. Use YYYY-MM-DD.", startDate),
	})
}

func (c *Checker) checkTasks(tasks []models.Task, r *models.ValidationResult) {
	if len(tasks) == 0 {
		r.AddError(models.Entry{
			Type:    "structure",
			Field:   "tasks",
			Message: "DAG must contain at least one task",
		})
		return
	}

	seen := make(map[string]bool, len(tasks))
	for i, task := range tasks {
		if task.TaskID == "" {
			r.AddError(models.Entry{
				Type:    "field",
				Field:   fmt.Sprintf("tasks[%d].task_id", i),
				Message: fmt.Sprintf("Task at index %d is missing task_id", i),
			})
			continue
		}

		if seen[task.TaskID] {
			r.AddError(models.Entry{
				Type:    "duplicate",
				Field:   "task_id",
				Message: fmt.Sprintf("Duplicate task_id: %q", task.TaskID),
			})
		}
		seen[task.TaskID] = true

		// The service accepts hyphens in task ids, unlike the schema layer.
		if !rules.IsValidSpecID(task.TaskID) {
			r.AddError(models.Entry{
				Type:    "format",
				Field:   fmt.Sprintf("tasks[%d].task_id", i),
				Message: fmt.Sprintf("Task ID %q contains invalid characters", task.TaskID),
			})
		}

		switch {
		case task.OperatorType == "":
			r.AddError(models.Entry{
				Type:    "field",
				Field:   fmt.Sprintf("tasks[%d].operator_type", i),
				Message: fmt.Sprintf("Task %q is missing operator_type", task.TaskID),
			})
		case !c.vocab.KnownOperator(task.OperatorType):
			r.AddWarning(models.Entry{
				Type:    "operator",
				Field:   fmt.Sprintf("tasks[%d].operator_type", i),
				Message: fmt.Sprintf("Unknown operator type: %q. May not be supported.", task.OperatorType),
			})
		}

		if task.OperatorType != "" && len(task.Params) == 0 {
			r.AddWarning(models.Entry{
				Type:    "params",
				Field:   fmt.Sprintf("tasks[%d].params", i),
				Message: fmt.Sprintf("Task %q has no parameters. Operator may require configuration.", task.TaskID),
			})
		}
	}
}

func (c *Checker) checkConnections(conns []models.Record, r *models.ValidationResult) {
	seen := make(map[string]bool, len(conns))
	for i, conn := range conns {
		if !conn.Has("conn_id") {
			r.AddError(models.Entry{
				Type:    "field",
				Field:   fmt.Sprintf("connections[%d].conn_id", i),
				Message: fmt.Sprintf("Connection at index %d is missing conn_id", i),
			})
			continue
		}

		id := fmt.Sprint(conn["conn_id"])
		if seen[id] {
			r.AddError(models.Entry{
				Type:    "duplicate",
				Field:   "conn_id",
				Message: fmt.Sprintf("Duplicate connection ID: %q", id),
			})
		}
		seen[id] = true

		if !conn.Has("conn_type") {
			r.AddError(models.Entry{
				Type:    "field",
				Field:   fmt.Sprintf("connections[%d].conn_type", i),
				Message: fmt.Sprintf("Connection %q is missing conn_type", id),
			})
		}
	}
}

func (c *Checker) checkVariables(vars []models.Record, r *models.ValidationResult) {
	seen := make(map[string]bool, len(vars))
	for i, v := range vars {
		if !v.Has("key") {
			r.AddError(models.Entry{
				Type:    "field",
				Field:   fmt.Sprintf("variables[%d].key", i),
				Message: fmt.Sprintf("Variable at index %d is missing key", i),
			})
			continue
		}

		key := fmt.Sprint(v["key"])
		if seen[key] {
			r.AddWarning(models.Entry{
				Type:    "duplicate",
				Field:   "variable_key",
				Message: fmt.Sprintf("Duplicate variable key: %q", key),
			})
		}
		seen[key] = true
	}
}

// checkDependencies reports dangling and self references per task, then a
// single error for the first cycle found in the whole graph.
func (c *Checker) checkDependencies(tasks []models.Task, r *models.ValidationResult) {
	if len(tasks) == 0 {
		return
	}

	ids := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.TaskID != "" {
			ids[t.TaskID] = true
		}
	}

	for _, t := range tasks {
		if t.TaskID == "" {
			continue
		}
		for _, dep := range t.Dependencies {
			if !ids[dep] {
				r.AddError(models.Entry{
					Type:    "dependency",
					Field:   "dependencies",
					Message: fmt.Sprintf("Task %q depends on non-existent task %q", t.TaskID, dep),
				})
			}
			if dep == t.TaskID {
				r.AddError(models.Entry{
					Type:    "dependency",
					Field:   "dependencies",
					Message: fmt.Sprintf("Task %q cannot depend on itself", t.TaskID),
				})
			}
		}
	}

	g := graph.New()
	g.Build(tasks)
	if cycle := g.FindCycle(); cycle != nil {
		r.AddError(models.Entry{
			Type:    "dependency",
			Field:   "dependencies",
			Message: fmt.Sprintf("Circular dependency detected in task graph: %s", strings.Join(cycle, " -> ")),
		})
	}
}
