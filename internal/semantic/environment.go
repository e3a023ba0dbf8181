package semantic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/dagforge/pkg/models"
)

// Environment describes what a target Airflow deployment provides.
// A nil list means the deployment did not declare it, and the matching check
// is skipped.
type Environment struct {
	// Connections are the conn_ids configured in the deployment.
	Connections []string `json:"connections"`
	// Operators are the operator classes installed in the deployment.
	Operators []string `json:"operators"`
}

// CheckEnvironment verifies that every connection the specification needs
// exists in env and that every operator it uses is installed.
//
// A connection is needed when it is declared in spec.Connections or named by
// a task parameter ending in "conn_id" (postgres_conn_id, aws_conn_id, ...).
// Connections the specification defines itself count as available.
func CheckEnvironment(spec *models.Specification, env Environment) models.ValidationResult {
	r := models.ValidationResult{
		Errors:   []models.Entry{},
		Warnings: []models.Entry{},
	}
	if spec == nil {
		return r
	}

	if env.Connections != nil {
		checkEnvConnections(spec, env, &r)
	}
	if env.Operators != nil {
		checkEnvOperators(spec, env, &r)
	}
	return r
}

func checkEnvConnections(spec *models.Specification, env Environment, r *models.ValidationResult) {
	available := make(map[string]bool, len(env.Connections))
	for _, id := range env.Connections {
		available[id] = true
	}

	defined := make(map[string]bool, len(spec.Connections))
	for i, conn := range spec.Connections {
		id := conn.String("conn_id")
		if id == "" {
			continue
		}
		defined[id] = true
		if !available[id] {
			r.AddWarning(models.Entry{
				Type:    "environment",
				Field:   fmt.Sprintf("connections[%d].conn_id", i),
				Message: fmt.Sprintf("Connection %q is defined by the DAG but not configured in the environment", id),
			})
		}
	}

	for i, task := range spec.Tasks {
		for _, key := range sortedParamKeys(task.Params) {
			if !strings.HasSuffix(key, "conn_id") {
				continue
			}
			id, ok := task.Params[key].(string)
			if !ok || id == "" || available[id] || defined[id] {
				continue
			}
			r.AddError(models.Entry{
				Type:    "environment",
				Field:   fmt.Sprintf("tasks[%d].params.%s", i, key),
				Message: fmt.Sprintf("Task %q uses connection %q which does not exist in the environment", task.TaskID, id),
			})
		}
	}
}

func checkEnvOperators(spec *models.Specification, env Environment, r *models.ValidationResult) {
	installed := make(map[string]bool, len(env.Operators))
	for _, op := range env.Operators {
		installed[op] = true
	}

	for i, task := range spec.Tasks {
		if task.OperatorType == "" || installed[task.OperatorType] {
			continue
		}
		r.AddError(models.Entry{
			Type:    "environment",
			Field:   fmt.Sprintf("tasks[%d].operator_type", i),
			Message: fmt.Sprintf("Operator %q used by task %q is not available in the environment", task.OperatorType, task.TaskID),
		})
	}
}

func sortedParamKeys(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
