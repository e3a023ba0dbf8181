package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/dagforge/internal/repair"
	"github.com/ShayCichocki/dagforge/internal/rules"
)

type stubCompleter struct {
	reply  string
	err    error
	prompt string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func TestGenerate(t *testing.T) {
	llm := &stubCompleter{reply: "Here you go:\n```json\n" +
		`{"dag_id":"daily_orders","description":"Load orders","schedule":"@daily",` +
		`"tasks":[{"task_id":"extract","operator_type":"PythonOperator","dependencies":[]}]}` +
		"\n```"}
	g := New(llm)

	spec, err := g.Generate(context.Background(), "load orders every day")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if spec.ID != "daily_orders" {
		t.Errorf("ID = %q", spec.ID)
	}
	if len(spec.Tasks) != 1 || spec.Tasks[0].TaskID != "extract" {
		t.Errorf("tasks = %+v", spec.Tasks)
	}
	if !strings.Contains(llm.prompt, "load orders every day") {
		t.Error("prompt should contain the description")
	}
}

func TestGenerate_EmptyDescription(t *testing.T) {
	llm := &stubCompleter{}
	g := New(llm)

	_, err := g.Generate(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyDescription) {
		t.Errorf("expected ErrEmptyDescription, got %v", err)
	}
	if llm.prompt != "" {
		t.Error("model should not be called for an empty description")
	}
}

func TestGenerate_CompleterError(t *testing.T) {
	boom := errors.New("boom")
	g := New(&stubCompleter{err: boom})

	_, err := g.Generate(context.Background(), "anything")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped completer error, got %v", err)
	}
}

func TestGenerate_Unparseable(t *testing.T) {
	g := New(&stubCompleter{reply: "I cannot help with that."})

	_, err := g.Generate(context.Background(), "anything")
	if !errors.Is(err, repair.ErrNoSpecification) {
		t.Errorf("expected ErrNoSpecification, got %v", err)
	}
}

func TestPrompt_Vocabulary(t *testing.T) {
	vocab := rules.NewVocabulary([]string{"BashOperator", "PythonOperator"}, nil)

	with := New(nil, WithVocabulary(vocab)).Prompt("x")
	if !strings.Contains(with, "operator_type must be one of: BashOperator, PythonOperator") {
		t.Errorf("prompt missing operator hint:\n%s", with)
	}
	if strings.Contains(with, "preset schedule") {
		t.Error("prompt should not list presets when the vocabulary has none")
	}

	presets := New(nil, WithVocabulary(rules.DefaultVocabulary())).Prompt("x")
	if !strings.Contains(presets, "a preset schedule must be one of: @annually, @daily") {
		t.Errorf("prompt missing preset hint:\n%s", presets)
	}

	without := New(nil).Prompt("x")
	if strings.Contains(without, "must be one of") {
		t.Error("prompt should not list operators without a vocabulary")
	}
}
