package models

import (
	"encoding/json"
	"testing"
)

func TestSpecification_UnmarshalIDAlias(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID string
	}{
		{"dag_id key", `{"dag_id":"etl_daily"}`, "etl_daily"},
		{"id alias", `{"id":"etl_daily"}`, "etl_daily"},
		{"dag_id wins over id", `{"dag_id":"a","id":"b"}`, "a"},
		{"neither", `{"description":"x"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var spec Specification
			if err := json.Unmarshal([]byte(tt.input), &spec); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if spec.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", spec.ID, tt.wantID)
			}
		})
	}
}

func TestSpecification_PreservesUnknownFields(t *testing.T) {
	input := `{"dag_id":"d","description":"x","schedule":"@daily","owner":"data-team",
		"tasks":[{"task_id":"t1","operator_type":"BashOperator","retries":3,"dependencies":[]}]}`

	var spec Specification
	if err := json.Unmarshal([]byte(input), &spec); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if _, ok := spec.Extra["owner"]; !ok {
		t.Error("expected owner to be kept in Extra")
	}
	if _, ok := spec.Tasks[0].Extra["retries"]; !ok {
		t.Error("expected retries to be kept in task Extra")
	}

	out, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var round map[string]any
	if err := json.Unmarshal(out, &round); err != nil {
		t.Fatalf("Unmarshal round trip failed: %v", err)
	}
	if round["owner"] != "data-team" {
		t.Errorf("owner = %v, want data-team", round["owner"])
	}
	tasks := round["tasks"].([]any)
	task := tasks[0].(map[string]any)
	if task["retries"] != float64(3) {
		t.Errorf("retries = %v, want 3", task["retries"])
	}
}

func TestSpecification_NullSchedule(t *testing.T) {
	var spec Specification
	if err := json.Unmarshal([]byte(`{"dag_id":"d","schedule":null}`), &spec); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if spec.Schedule != nil {
		t.Errorf("Schedule = %q, want nil", *spec.Schedule)
	}
	if spec.ScheduleValue() != "" {
		t.Errorf("ScheduleValue() = %q, want empty", spec.ScheduleValue())
	}
}

func TestSpecification_CloneIsIndependent(t *testing.T) {
	orig := &Specification{
		ID:          "d",
		Description: "desc",
		Schedule:    StringPtr("@daily"),
		Tasks: []Task{
			{
				TaskID:       "t1",
				OperatorType: "BashOperator",
				Params:       map[string]any{"bash_command": "echo", "env": map[string]any{"A": "1"}},
				Dependencies: []string{"t0"},
			},
		},
		Connections: []Record{{"conn_id": "pg", "conn_type": "postgres"}},
		Extra:       map[string]json.RawMessage{"owner": json.RawMessage(`"me"`)},
	}

	c := orig.Clone()

	*c.Schedule = "@hourly"
	c.Tasks[0].Dependencies[0] = "changed"
	c.Tasks[0].Params["env"].(map[string]any)["A"] = "2"
	c.Connections[0]["conn_id"] = "other"
	c.Extra["owner"][1] = 'X'
	c.Tasks = append(c.Tasks, Task{TaskID: "t2"})

	if *orig.Schedule != "@daily" {
		t.Errorf("original schedule mutated: %q", *orig.Schedule)
	}
	if orig.Tasks[0].Dependencies[0] != "t0" {
		t.Errorf("original dependencies mutated: %v", orig.Tasks[0].Dependencies)
	}
	if orig.Tasks[0].Params["env"].(map[string]any)["A"] != "1" {
		t.Error("original nested params mutated")
	}
	if orig.Connections[0]["conn_id"] != "pg" {
		t.Error("original connections mutated")
	}
	if string(orig.Extra["owner"]) != `"me"` {
		t.Errorf("original extra mutated: %s", orig.Extra["owner"])
	}
	if len(orig.Tasks) != 1 {
		t.Errorf("original task count = %d, want 1", len(orig.Tasks))
	}
}

func TestSpecification_CloneNil(t *testing.T) {
	var s *Specification
	if s.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestRecord_Accessors(t *testing.T) {
	r := Record{"conn_id": "pg", "port": 5432, "empty": nil}

	if r.String("conn_id") != "pg" {
		t.Errorf("String(conn_id) = %q", r.String("conn_id"))
	}
	if r.String("port") != "" {
		t.Error("String on a non-string value should be empty")
	}
	if !r.Has("port") {
		t.Error("Has(port) should be true")
	}
	if r.Has("empty") {
		t.Error("Has on a nil value should be false")
	}

	var nilRecord Record
	if nilRecord.Has("x") || nilRecord.String("x") != "" {
		t.Error("nil record should report nothing")
	}
}
