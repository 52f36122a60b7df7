package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/metrics"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens int `json:"max_tokens"`
}

func chatServer(t *testing.T, content string, got *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 30, "completion_tokens": 7, "total_tokens": 37},
		})
	}))
}

func TestCompleter_Complete(t *testing.T) {
	var req chatRequest
	server := chatServer(t, "  The fox was red.  ", &req)
	defer server.Close()

	stats := &metrics.CallStats{}
	c := NewCompleter(&Config{
		APIKey:   "test-key",
		BaseURL:  server.URL,
		Model:    "gpt-4o-mini",
		Provider: "test",
		Stats:    stats,
		Logger:   zap.NewNop(),
	}, CompleterOptions{MaxTokens: 256})

	res, err := c.Complete(context.Background(), domain.CompletionRequest{
		System: "answer from context",
		Prompt: "What colour was the fox?",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if res.Text != "The fox was red." {
		t.Errorf("Text = %q", res.Text)
	}
	if res.PromptTokens != 30 || res.CompletionTokens != 7 {
		t.Errorf("usage = %d/%d", res.PromptTokens, res.CompletionTokens)
	}

	if req.Model != "gpt-4o-mini" || req.MaxTokens != 256 {
		t.Errorf("request model=%q max_tokens=%d", req.Model, req.MaxTokens)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
	if req.Messages[1].Content != "What colour was the fox?" {
		t.Errorf("user content = %q", req.Messages[1].Content)
	}
	if snap := stats.Snapshot(); snap.Calls != 1 || snap.Failures != 0 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestCompleter_NoSystemMessage(t *testing.T) {
	var req chatRequest
	server := chatServer(t, "ok", &req)
	defer server.Close()

	c := NewCompleter(&Config{APIKey: "k", BaseURL: server.URL, Model: "m", Provider: "test"}, CompleterOptions{})
	if _, err := c.Complete(context.Background(), domain.CompletionRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Messages) != 1 {
		t.Errorf("expected only the user message, got %d", len(req.Messages))
	}
}

func TestCompleter_EmptyCompletionIsTransient(t *testing.T) {
	server := chatServer(t, "   ", nil)
	defer server.Close()

	stats := &metrics.CallStats{}
	c := NewCompleter(&Config{APIKey: "k", BaseURL: server.URL, Model: "m", Provider: "test", Stats: stats},
		CompleterOptions{})

	_, err := c.Complete(context.Background(), domain.CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, domain.ErrTransient) {
		t.Errorf("expected transient error, got %v", err)
	}
	if snap := stats.Snapshot(); snap.Failures != 1 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestCompleter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "overloaded", "type": "server_error"},
		})
	}))
	defer server.Close()

	c := NewCompleter(&Config{APIKey: "k", BaseURL: server.URL, Model: "m", Provider: "test"}, CompleterOptions{})

	_, err := c.Complete(context.Background(), domain.CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, domain.ErrTransient) {
		t.Errorf("503 should be transient, got %v", err)
	}
}
