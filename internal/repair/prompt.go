package repair

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/dagforge/internal/rules"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

// fixPrompt is the prompt template for a repair attempt.
const fixPrompt = `The following Apache Airflow DAG specification failed validation. Fix every error listed below and return the corrected specification.

Current specification:
%s

Errors (%d):
%s
%s
Rules:
- dag_id may only contain letters, numbers, underscores and hyphens
- task_id may only contain letters, numbers and underscores (no hyphens)
- every task_id must be unique; rename or merge duplicated tasks
- a task must not list its own task_id in dependencies
- dependencies may only reference task_ids defined in the specification
- keep every field that is not involved in an error unchanged

Return ONLY the corrected specification as a single JSON object (no other text).`

// BuildPrompt renders the fix request for spec given its current findings.
// Warnings are included as context but the model is only asked to fix errors.
func BuildPrompt(spec *models.Specification, errs, warnings []models.Entry) (string, error) {
	body, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal specification: %w", err)
	}

	var extra strings.Builder
	if dups := rules.FindDuplicateIDs(spec.Tasks); len(dups) > 0 {
		fmt.Fprintf(&extra, "\nDuplicated task_ids: %s\n", strings.Join(dups, ", "))
	}
	if len(warnings) > 0 {
		fmt.Fprintf(&extra, "\nWarnings (fix only if it helps resolve an error):\n%s\n", FormatErrors(warnings))
	}

	return fmt.Sprintf(fixPrompt, body, len(errs), FormatErrors(errs), extra.String()), nil
}
