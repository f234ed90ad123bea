// Package openai generates answers through an OpenAI-compatible chat
// completions API (OpenAI itself, vLLM, Llama Stack, ...).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/metrics"
)

const provider = "openai"

// ErrProvider wraps every failure reported by the chat API.
var ErrProvider = errors.New("chat provider error")

// Config holds the generator settings.
type Config struct {
	APIKey      string
	BaseURL     string // empty keeps the OpenAI default
	Model       string
	MaxTokens   int
	Temperature float32
	Metrics     *metrics.LLM
	Logger      *zap.Logger
}

// Generator answers prompts with a chat completion.
type Generator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	metrics     *metrics.LLM
	logger      *zap.Logger
}

// NewGenerator creates an OpenAI-compatible generator.
func NewGenerator(cfg *Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// Name implements answer.Generator.
func (g *Generator) Name() string { return provider }

// Generate sends a system + user turn and returns the first choice.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
	}
	if g.maxTokens > 0 {
		req.MaxTokens = g.maxTokens
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		err = parseAPIError(err)
		g.metrics.ObserveRequest(provider, g.model, time.Since(start), err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		err = fmt.Errorf("empty chat response: %w", ErrProvider)
		g.metrics.ObserveRequest(provider, g.model, time.Since(start), err)
		return "", err
	}
	g.metrics.ObserveRequest(provider, g.model, time.Since(start), nil)
	g.metrics.AddTokens(provider, g.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	g.logger.Debug("chat completion",
		zap.String("model", g.model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// parseAPIError extracts a human-readable error from the API response.
// Every result wraps ErrProvider.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("chat API error %d: %s: %w", reqErr.HTTPStatusCode, detail, ErrProvider)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, ErrProvider)
	}

	return fmt.Errorf("chat request failed: %w: %w", ErrProvider, err)
}

// extractDetail pulls "detail" out of a JSON error body (Llama Stack / FastAPI format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
