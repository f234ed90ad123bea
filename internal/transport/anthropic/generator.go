// Package anthropic generates answers with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/metrics"
)

const (
	provider         = "anthropic"
	defaultMaxTokens = 1024
)

// ErrProvider wraps every failure reported by the Messages API.
var ErrProvider = errors.New("anthropic provider error")

// Config holds the generator settings.
type Config struct {
	APIKey      string
	BaseURL     string // empty keeps the SDK default
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  int
	Metrics     *metrics.LLM
	Logger      *zap.Logger
}

// Generator answers prompts with a single Messages call.
type Generator struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	metrics     *metrics.LLM
	logger      *zap.Logger
}

// NewGenerator creates an Anthropic generator.
func NewGenerator(cfg *Config) *Generator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// Name implements answer.Generator.
func (g *Generator) Name() string { return provider }

// Generate sends prompt as the user turn with system as the system prompt.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   g.maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(g.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		err = parseAPIError(err)
		g.metrics.ObserveRequest(provider, g.model, time.Since(start), err)
		return "", err
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	if b.Len() == 0 {
		err = fmt.Errorf("no text in response (stop reason %q): %w", msg.StopReason, ErrProvider)
		g.metrics.ObserveRequest(provider, g.model, time.Since(start), err)
		return "", err
	}

	g.metrics.ObserveRequest(provider, g.model, time.Since(start), nil)
	g.metrics.AddTokens(provider, g.model, int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens))
	g.logger.Debug("message created",
		zap.String("model", g.model),
		zap.String("stop_reason", string(msg.StopReason)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return b.String(), nil
}

func parseAPIError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("messages API error %d: %w: %w", apiErr.StatusCode, ErrProvider, err)
	}
	return fmt.Errorf("messages request failed: %w: %w", ErrProvider, err)
}
