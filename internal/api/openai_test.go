package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIRunner {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r, err := NewOpenAIRunner(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIRunner failed: %v", err)
	}
	return r
}

func TestNewOpenAIRunner_NoAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIRunner(OpenAIConfig{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewOpenAIRunner_DefaultModel(t *testing.T) {
	r, err := NewOpenAIRunner(OpenAIConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAIRunner failed: %v", err)
	}
	if r.Model() != DefaultOpenAIModel {
		t.Errorf("Model = %q, want %q", r.Model(), DefaultOpenAIModel)
	}
}

func TestOpenAIRunner_ProposeFix(t *testing.T) {
	var got openai.ChatCompletionRequest
	r := newTestOpenAI(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, req)
			return
		}
		_ = json.NewDecoder(req.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID: "chatcmpl-1",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: `{"dag_id":"x"}`},
			}},
			Usage: openai.Usage{PromptTokens: 9, CompletionTokens: 4},
		})
	})

	text, err := r.ProposeFix(context.Background(), "fix it")
	if err != nil {
		t.Fatalf("ProposeFix failed: %v", err)
	}
	if text != `{"dag_id":"x"}` {
		t.Errorf("ProposeFix = %q", text)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("expected system + user messages, got %+v", got.Messages)
	}
	if got.Messages[1].Content != "fix it" {
		t.Errorf("user content = %q", got.Messages[1].Content)
	}
	if in, out := r.Tracker().Total(); in != 9 || out != 4 {
		t.Errorf("tracked tokens = %d/%d, want 9/4", in, out)
	}
}

func TestOpenAIRunner_NoChoices(t *testing.T) {
	r := newTestOpenAI(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","choices":[]}`))
	})

	if _, err := r.Complete(context.Background(), "p"); err == nil {
		t.Fatal("expected error when no choices are returned")
	}
}
