// Package gemini generates answers with the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/rhokp/internal/metrics"
)

const provider = "gemini"

// ErrProvider wraps every failure reported by the Gemini API.
var ErrProvider = errors.New("gemini provider error")

// Config holds the generator settings.
type Config struct {
	APIKey      string
	BaseURL     string // empty keeps the SDK default
	Model       string
	MaxTokens   int
	Temperature float32
	Metrics     *metrics.LLM
	Logger      *zap.Logger
}

// Generator answers prompts with GenerateContent.
type Generator struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	metrics     *metrics.LLM
	logger      *zap.Logger
}

// NewGenerator creates a Gemini generator. Unlike the other providers the SDK
// client is built eagerly, so a missing key fails here.
func NewGenerator(ctx context.Context, cfg *Config) (*Generator, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:      client,
		model:       cfg.Model,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: cfg.Temperature,
		metrics:     cfg.Metrics,
		logger:      logger,
	}, nil
}

// Name implements answer.Generator.
func (g *Generator) Name() string { return provider }

// Generate sends prompt as the user turn; system becomes the system instruction.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if g.maxTokens > 0 {
		config.MaxOutputTokens = g.maxTokens
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		err = fmt.Errorf("generate content: %w: %w", ErrProvider, err)
		g.metrics.ObserveRequest(provider, g.model, time.Since(start), err)
		return "", err
	}
	text := resp.Text()
	if text == "" {
		err = fmt.Errorf("empty response: %w", ErrProvider)
		g.metrics.ObserveRequest(provider, g.model, time.Since(start), err)
		return "", err
	}

	g.metrics.ObserveRequest(provider, g.model, time.Since(start), nil)
	if u := resp.UsageMetadata; u != nil {
		g.metrics.AddTokens(provider, g.model, int(u.PromptTokenCount), int(u.CandidatesTokenCount))
		g.logger.Debug("content generated",
			zap.String("model", g.model),
			zap.Int32("prompt_tokens", u.PromptTokenCount),
			zap.Int32("candidates_tokens", u.CandidatesTokenCount),
		)
	}
	return text, nil
}
