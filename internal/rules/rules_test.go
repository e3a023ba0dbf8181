package rules

import (
	"reflect"
	"testing"

	"github.com/ShayCichocki/dagforge/pkg/models"
)

func TestIsValidSpecID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"ok_dag", true},
		{"daily-etl", true},
		{"DAG_01", true},
		{"", false},
		{"a b", false},
		{"dag.v2", false},
		{"résumé", false},
		{"x/y", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsValidSpecID(tt.input); got != tt.want {
				t.Errorf("IsValidSpecID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValidTaskID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"t1", true},
		{"extract_orders", true},
		{"", false},
		{"extract-orders", false},
		{"has space", false},
		{"tab\t", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsValidTaskID(tt.input); got != tt.want {
				t.Errorf("IsValidTaskID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHasSelfDependency(t *testing.T) {
	tests := []struct {
		name string
		task models.Task
		want bool
	}{
		{"self", models.Task{TaskID: "t1", Dependencies: []string{"t1"}}, true},
		{"self among others", models.Task{TaskID: "t1", Dependencies: []string{"t0", "t1"}}, true},
		{"other only", models.Task{TaskID: "t1", Dependencies: []string{"t0"}}, false},
		{"no deps", models.Task{TaskID: "t1"}, false},
		{"missing id", models.Task{Dependencies: []string{""}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasSelfDependency(tt.task); got != tt.want {
				t.Errorf("HasSelfDependency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindDuplicateIDs(t *testing.T) {
	tasks := func(ids ...string) []models.Task {
		out := make([]models.Task, len(ids))
		for i, id := range ids {
			out[i] = models.Task{TaskID: id}
		}
		return out
	}

	tests := []struct {
		name  string
		tasks []models.Task
		want  []string
	}{
		{"none", tasks("a", "b", "c"), nil},
		{"one pair", tasks("a", "b", "a"), []string{"a"}},
		{"first occurrence order", tasks("b", "a", "a", "b"), []string{"b", "a"}},
		{"triple listed once", tasks("x", "x", "x"), []string{"x"}},
		{"blank ids ignored", tasks("", "", "a"), nil},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindDuplicateIDs(tt.tasks)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindDuplicateIDs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVocabulary(t *testing.T) {
	v := DefaultVocabulary()

	if !v.KnownOperator("BashOperator") {
		t.Error("BashOperator should be known")
	}
	if v.KnownOperator("Op") {
		t.Error("Op should not be known")
	}
	if !v.KnownPreset("@daily") || v.KnownPreset("daily") {
		t.Error("preset lookup is wrong")
	}

	custom := NewVocabulary([]string{"MyOperator"}, nil)
	if !custom.KnownOperator("MyOperator") || custom.KnownOperator("BashOperator") {
		t.Error("custom vocabulary should only know its own operators")
	}
}

func TestVocabulary_AccessorsReturnCopies(t *testing.T) {
	v := DefaultVocabulary()
	ops := v.Operators()
	ops[0] = "Mutated"

	if v.KnownOperator("Mutated") {
		t.Error("mutating Operators() result leaked into the vocabulary")
	}
	if len(v.Presets()) != len(defaultPresets) {
		t.Errorf("Presets() len = %d, want %d", len(v.Presets()), len(defaultPresets))
	}
}
