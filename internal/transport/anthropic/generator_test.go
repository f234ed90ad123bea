package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func messagesServer(t *testing.T, handler func(w http.ResponseWriter, req messagesRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("unexpected api key header: %q", r.Header.Get("X-Api-Key"))
		}
		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGenerator(url string) *Generator {
	return NewGenerator(&Config{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "claude-test",
		Logger:  zap.NewNop(),
	})
}

func TestGenerator_Generate(t *testing.T) {
	srv := messagesServer(t, func(w http.ResponseWriter, req messagesRequest) {
		if req.Model != "claude-test" || req.MaxTokens != defaultMaxTokens {
			t.Errorf("request = %+v", req)
		}
		if len(req.System) != 1 || req.System[0].Text != "only excerpts" {
			t.Errorf("system = %+v", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" ||
			len(req.Messages[0].Content) != 1 || req.Messages[0].Content[0].Text != "question" {
			t.Errorf("messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_1",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-test",
			"content": []map[string]any{
				{"type": "text", "text": "Enable SELinux "},
				{"type": "text", "text": "with setenforce [2]."},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 40, "output_tokens": 9},
		})
	})

	g := newTestGenerator(srv.URL)
	if g.Name() != "anthropic" {
		t.Errorf("Name() = %q", g.Name())
	}
	got, err := g.Generate(context.Background(), "only excerpts", "question")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Enable SELinux with setenforce [2]." {
		t.Errorf("Generate = %q", got)
	}
}

func TestGenerator_NoText(t *testing.T) {
	srv := messagesServer(t, func(w http.ResponseWriter, _ messagesRequest) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-test",
			"content": []any{}, "stop_reason": "max_tokens",
			"usage": map[string]any{"input_tokens": 1, "output_tokens": 0},
		})
	})

	_, err := newTestGenerator(srv.URL).Generate(context.Background(), "", "q")
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

func TestGenerator_APIError(t *testing.T) {
	srv := messagesServer(t, func(w http.ResponseWriter, _ messagesRequest) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "invalid_request_error", "message": "model: not found"},
		})
	})

	_, err := newTestGenerator(srv.URL).Generate(context.Background(), "", "q")
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should carry the status: %v", err)
	}
}
