package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/rhokp/internal/config"
	"github.com/kailas-cloud/rhokp/internal/domain"
	"github.com/kailas-cloud/rhokp/internal/metrics"
	anthropicGen "github.com/kailas-cloud/rhokp/internal/transport/anthropic"
	geminiGen "github.com/kailas-cloud/rhokp/internal/transport/gemini"
	openaiGen "github.com/kailas-cloud/rhokp/internal/transport/openai"
	answeruc "github.com/kailas-cloud/rhokp/internal/usecase/answer"
)

// Default models per provider when llm.model is empty.
var defaultModels = map[string]string{
	config.ProviderOpenAI:    "gpt-4o-mini",
	config.ProviderAnthropic: "claude-sonnet-4-5",
	config.ProviderGemini:    "gemini-2.5-flash",
}

var errMissingAPIKey = errors.New("llm.api_key (LLM_API_KEY) is required")

// newGenerator builds the answer generator selected by llm.provider.
func (a *app) newGenerator(ctx context.Context, reg prometheus.Registerer) (answeruc.Generator, error) {
	c := a.cfg.LLM
	model := c.Model
	if model == "" {
		model = defaultModels[c.Provider]
	}
	// OpenAI-compatible servers (Llama Stack, vLLM) often run without a key.
	if c.APIKey == "" && (c.Provider != config.ProviderOpenAI || c.BaseURL == "") {
		return nil, domain.Validation("llm", errMissingAPIKey)
	}

	var m *metrics.LLM
	if reg != nil {
		var err error
		if m, err = metrics.NewLLM(reg); err != nil {
			return nil, err
		}
	}

	switch c.Provider {
	case config.ProviderAnthropic:
		return anthropicGen.NewGenerator(&anthropicGen.Config{
			APIKey:      c.APIKey,
			BaseURL:     c.BaseURL,
			Model:       model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
			MaxRetries:  a.cfg.OKP.Retries,
			Metrics:     m,
			Logger:      a.logger,
		}), nil
	case config.ProviderGemini:
		return geminiGen.NewGenerator(ctx, &geminiGen.Config{
			APIKey:      c.APIKey,
			BaseURL:     c.BaseURL,
			Model:       model,
			MaxTokens:   c.MaxTokens,
			Temperature: float32(c.Temperature),
			Metrics:     m,
			Logger:      a.logger,
		})
	default:
		return openaiGen.NewGenerator(&openaiGen.Config{
			APIKey:      c.APIKey,
			BaseURL:     c.BaseURL,
			Model:       model,
			MaxTokens:   c.MaxTokens,
			Temperature: float32(c.Temperature),
			Metrics:     m,
			Logger:      a.logger,
		}), nil
	}
}
