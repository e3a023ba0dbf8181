package repair

import (
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/dagforge/pkg/models"
)

func TestExtractSpecification(t *testing.T) {
	const obj = `{"dag_id":"fixed","description":"d","tasks":[{"task_id":"a","operator_type":"BashOperator","dependencies":[]}]}`

	tests := []struct {
		name    string
		input   string
		wantID  string
		wantErr bool
	}{
		{"bare object", obj, "fixed", false},
		{"json fence", "```json\n" + obj + "\n```", "fixed", false},
		{"plain fence", "```\n" + obj + "\n```", "fixed", false},
		{"surrounding whitespace", "\n\n  " + obj + "  \n", "fixed", false},
		{"prose around", "Here is the corrected DAG:\n" + obj + "\nLet me know if you need more.", "fixed", false},
		{"prose and fence", "Sure!\n```json\n" + obj + "\n```\nDone.", "fixed", false},
		{"braces in prose before fence", "Note: use {placeholders} for secrets.\n```json\n" + obj + "\n```", "fixed", false},
		{"inline fence", "```json " + obj + "```", "fixed", false},
		{"id alias", `{"id":"aliased","tasks":[]}`, "aliased", false},
		{"not json", "not json at all", "", true},
		{"empty", "   ", "", true},
		{"null", "null", "", true},
		{"object inside array", `[{"dag_id":"x"}]`, "x", false},
		{"truncated", `{"dag_id":"x","tasks":[`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ExtractSpecification(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got spec %+v", spec)
				}
				if !errors.Is(err, ErrNoSpecification) {
					t.Errorf("expected ErrNoSpecification, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if spec.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", spec.ID, tt.wantID)
			}
		})
	}
}

func TestExtractSpecification_KeepsUnknownFields(t *testing.T) {
	spec, err := ExtractSpecification(`{"dag_id":"x","owner":"data","tasks":[{"task_id":"a","retries":2}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := spec.Extra["owner"]; !ok {
		t.Error("owner dropped")
	}
	if _, ok := spec.Tasks[0].Extra["retries"]; !ok {
		t.Error("retries dropped")
	}
}

func TestFormatErrors(t *testing.T) {
	entries := []models.Entry{
		{Type: "schema:duplicate", Message: `Duplicate task_id: "t1"`, Field: "tasks[1].task_id"},
		{Type: "python:syntax", Message: "Unexpected indent", Line: models.IntPtr(12)},
		{Type: "schema", Message: "plain"},
		{Type: "python:format", Message: "both", Field: "dag_id", Line: models.IntPtr(0)},
	}

	got := FormatErrors(entries)

	want := strings.Join([]string{
		`1. [schema:duplicate] Duplicate task_id: "t1" (tasks[1].task_id)`,
		`2. [python:syntax] Unexpected indent at line 12`,
		`3. [schema] plain`,
		`4. [python:format] both (dag_id) at line 0`,
	}, "\n")
	if got != want {
		t.Errorf("FormatErrors() =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatErrors_Empty(t *testing.T) {
	if got := FormatErrors(nil); got != "" {
		t.Errorf("FormatErrors(nil) = %q", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	spec := &models.Specification{
		ID:          "dag",
		Description: "d",
		Tasks: []models.Task{
			{TaskID: "t1", OperatorType: "BashOperator"},
			{TaskID: "t1", OperatorType: "BashOperator"},
		},
	}
	errs := []models.Entry{{Type: "schema:duplicate", Message: `Duplicate task_id: "t1"`}}
	warns := []models.Entry{{Type: "schema:field", Message: "Schedule is not set"}}

	prompt, err := BuildPrompt(spec, errs, warns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		`"dag_id": "dag"`,
		"Errors (1):",
		`1. [schema:duplicate] Duplicate task_id: "t1"`,
		"Duplicated task_ids: t1",
		"1. [schema:field] Schedule is not set",
		"Return ONLY the corrected specification",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
