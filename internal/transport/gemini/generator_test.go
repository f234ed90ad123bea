package gemini

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

type generateRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction"`
}

func geminiServer(t *testing.T, status int, body any, check func(generateRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if check != nil {
			check(req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGenerator(t *testing.T, url string) *Generator {
	t.Helper()
	g, err := NewGenerator(context.Background(), &Config{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "gemini-test",
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestGenerator_Generate(t *testing.T) {
	body := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": "Mount the ISO [1]."}},
			},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{"promptTokenCount": 50, "candidatesTokenCount": 7},
	}
	srv := geminiServer(t, http.StatusOK, body, func(req generateRequest) {
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "question" {
			t.Errorf("contents = %+v", req.Contents)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "only excerpts" {
			t.Errorf("system instruction = %+v", req.SystemInstruction)
		}
	})

	g := newTestGenerator(t, srv.URL)
	if g.Name() != "gemini" {
		t.Errorf("Name() = %q", g.Name())
	}
	got, err := g.Generate(context.Background(), "only excerpts", "question")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Mount the ISO [1]." {
		t.Errorf("Generate = %q", got)
	}
}

func TestGenerator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
	}{
		{
			name:   "api error",
			status: http.StatusForbidden,
			body: map[string]any{"error": map[string]any{
				"code": 403, "message": "API key not valid", "status": "PERMISSION_DENIED",
			}},
		},
		{
			name:   "no candidates",
			status: http.StatusOK,
			body:   map[string]any{"candidates": []any{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := geminiServer(t, tt.status, tt.body, nil)
			_, err := newTestGenerator(t, srv.URL).Generate(context.Background(), "", "q")
			if !errors.Is(err, ErrProvider) {
				t.Fatalf("expected ErrProvider, got %v", err)
			}
		})
	}
}
