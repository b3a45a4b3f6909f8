package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateMapsChatResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected authorization header: %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Fatalf("unexpected model: %s", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": " answer [1] "}},
			},
			"usage": map[string]any{"prompt_tokens": 100, "completion_tokens": 20},
		})
	}))
	defer server.Close()

	backend := New(server.URL, "secret", "gpt-4o-mini")
	if backend.Name() != "openai-compat/gpt-4o-mini" {
		t.Fatalf("unexpected name: %s", backend.Name())
	}

	result, err := backend.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Text != "answer [1]" {
		t.Fatalf("expected trimmed content, got %q", result.Text)
	}
	if result.PromptTokens != 100 || result.CompletionTokens != 20 {
		t.Fatalf("usage not mapped: %+v", result)
	}
}

func TestGenerateOmitsAuthHeaderWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Fatalf("authorization header must be absent without an api key")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	backend := New(server.URL, "", "gpt-4o-mini")
	if _, err := backend.Generate(context.Background(), "prompt"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
}

func TestGenerateSurfacesStatusAndEmptyChoices(t *testing.T) {
	serverErr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "model overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer serverErr.Close()

	backend := New(serverErr.URL, "", "gpt-4o-mini")
	_, err := backend.Generate(context.Background(), "prompt")
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected status error carrying the body, got %v", err)
	}

	serverEmpty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{}})
	}))
	defer serverEmpty.Close()

	backendEmpty := New(serverEmpty.URL, "", "gpt-4o-mini")
	if _, err := backendEmpty.Generate(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}
