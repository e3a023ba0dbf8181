package semantic

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/dagforge/internal/rules"
	"github.com/ShayCichocki/dagforge/pkg/models"
)

func newChecker() *Checker {
	return NewChecker(rules.DefaultVocabulary())
}

func goodSpec() *models.Specification {
	return &models.Specification{
		ID:          "sales_etl",
		Description: "Load daily sales",
		Schedule:    models.StringPtr("@daily"),
		StartDate:   "2024-01-01",
		Tasks: []models.Task{
			{TaskID: "extract", OperatorType: "PythonOperator", Params: map[string]any{"python_callable": "extract"}},
			{TaskID: "load", OperatorType: "PostgresOperator", Params: map[string]any{"sql": "insert"}, Dependencies: []string{"extract"}},
		},
		Connections: []models.Record{{"conn_id": "warehouse", "conn_type": "postgres"}},
		Variables:   []models.Record{{"key": "batch_size", "value": "100"}},
	}
}

func messages(entries []models.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func hasMessage(entries []models.Entry, substr string) bool {
	for _, e := range entries {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestCheck_GoodSpec(t *testing.T) {
	r := newChecker().Check(goodSpec())

	if !r.Valid() {
		t.Errorf("expected valid, got %v", messages(r.Errors))
	}
	if len(r.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", messages(r.Warnings))
	}
}

func TestCheck_EmptySpec(t *testing.T) {
	for _, spec := range []*models.Specification{nil, {}} {
		r := newChecker().Check(spec)
		if len(r.Errors) != 1 || r.Errors[0].Field != "root" {
			t.Errorf("expected single root error, got %v", r.Errors)
		}
	}
}

func TestCheck_Findings(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*models.Specification)
		wantError   string
		wantWarning string
	}{
		{
			name:      "missing description",
			mutate:    func(s *models.Specification) { s.Description = "" },
			wantError: `Required field "description" is missing or null`,
		},
		{
			name:        "null schedule",
			mutate:      func(s *models.Specification) { s.Schedule = nil },
			wantWarning: "will not run automatically",
		},
		{
			name:      "dag id too long",
			mutate:    func(s *models.Specification) { s.ID = strings.Repeat("a", 101) },
			wantError: "too long (101 chars)",
		},
		{
			name:        "dag id upper case",
			mutate:      func(s *models.Specification) { s.ID = "Sales_ETL" },
			wantWarning: `Consider: "sales_etl"`,
		},
		{
			name:        "bad schedule",
			mutate:      func(s *models.Specification) { s.Schedule = models.StringPtr("every tuesday") },
			wantWarning: "may not be a valid cron expression",
		},
		{
			name:        "missing start date",
			mutate:      func(s *models.Specification) { s.StartDate = "" },
			wantWarning: "No start_date specified",
		},
		{
			name:      "bad start date",
			mutate:    func(s *models.Specification) { s.StartDate = "01/02/2024" },
			wantError: `Invalid date format "01/02/2024"`,
		},
		{
			name:      "empty tasks",
			mutate:    func(s *models.Specification) { s.Tasks = []models.Task{} },
			wantError: "at least one task",
		},
		{
			name: "duplicate task",
			mutate: func(s *models.Specification) {
				s.Tasks = append(s.Tasks, s.Tasks[0])
			},
			wantError: `Duplicate task_id: "extract"`,
		},
		{
			name:        "unknown operator",
			mutate:      func(s *models.Specification) { s.Tasks[0].OperatorType = "MagicOperator" },
			wantWarning: `Unknown operator type: "MagicOperator"`,
		},
		{
			name:        "no params",
			mutate:      func(s *models.Specification) { s.Tasks[0].Params = nil },
			wantWarning: `Task "extract" has no parameters`,
		},
		{
			name: "connection without type",
			mutate: func(s *models.Specification) {
				s.Connections = []models.Record{{"conn_id": "warehouse"}}
			},
			wantError: `Connection "warehouse" is missing conn_type`,
		},
		{
			name: "duplicate variable",
			mutate: func(s *models.Specification) {
				s.Variables = append(s.Variables, models.Record{"key": "batch_size"})
			},
			wantWarning: `Duplicate variable key: "batch_size"`,
		},
		{
			name:      "dangling dependency",
			mutate:    func(s *models.Specification) { s.Tasks[1].Dependencies = []string{"ghost"} },
			wantError: `depends on non-existent task "ghost"`,
		},
		{
			name: "multi hop cycle",
			mutate: func(s *models.Specification) {
				s.Tasks[0].Dependencies = []string{"load"}
			},
			wantError: "Circular dependency detected in task graph: extract -> load -> extract",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := goodSpec()
			tt.mutate(spec)

			r := newChecker().Check(spec)

			if tt.wantError != "" && !hasMessage(r.Errors, tt.wantError) {
				t.Errorf("expected error containing %q, got %v", tt.wantError, messages(r.Errors))
			}
			if tt.wantError == "" && !r.Valid() {
				t.Errorf("expected no errors, got %v", messages(r.Errors))
			}
			if tt.wantWarning != "" && !hasMessage(r.Warnings, tt.wantWarning) {
				t.Errorf("expected warning containing %q, got %v", tt.wantWarning, messages(r.Warnings))
			}
		})
	}
}

func TestCheck_SelfDependencyAlsoCycle(t *testing.T) {
	spec := goodSpec()
	spec.Tasks[0].Dependencies = []string{"extract"}

	r := newChecker().Check(spec)

	if !hasMessage(r.Errors, `Task "extract" cannot depend on itself`) {
		t.Errorf("expected self-dependency error, got %v", messages(r.Errors))
	}
	if !hasMessage(r.Errors, "extract -> extract") {
		t.Errorf("expected cycle error, got %v", messages(r.Errors))
	}
}

func TestCheck_HyphenatedTaskIDAccepted(t *testing.T) {
	spec := goodSpec()
	spec.Tasks[0].TaskID = "extract-orders"
	spec.Tasks[1].Dependencies = []string{"extract-orders"}

	r := newChecker().Check(spec)

	if !r.Valid() {
		t.Errorf("expected valid, got %v", messages(r.Errors))
	}
}

func TestValidSchedule(t *testing.T) {
	c := newChecker()
	tests := []struct {
		input string
		want  bool
	}{
		{"@daily", true},
		{"@once", true},
		{"@reboot", true},
		{"None", true},
		{"0 * * * *", true},
		{"0 0 1,15 * 1-5", true},
		{"*/15 * * * *", false},
		{"0 0 * * * 2024", true},
		{"@every 5m", true},
		{"  0 6 * * *  ", true},
		{"every day", false},
		{"* *", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := c.ValidSchedule(tt.input); got != tt.want {
				t.Errorf("ValidSchedule(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
