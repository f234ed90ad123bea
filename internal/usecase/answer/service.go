// Package answer grounds a language-model answer on retrieved portal excerpts.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/domain"
	"github.com/kailas-cloud/rhokp/internal/logger"
)

// SystemPrompt restricts the model to the supplied excerpts.
const SystemPrompt = "You are a Red Hat expert. Answer the user's question using ONLY the " +
	"following documentation excerpts. Cite excerpts by their [n] number. If the excerpts " +
	"do not contain enough information, say so. Do not invent details."

// NoDocuments is sent in place of excerpts when retrieval found nothing.
const NoDocuments = "No documentation found."

// ErrEmptyAnswer is returned when the model produced no text.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// Source is one cited excerpt.
type Source struct {
	N     int
	Title string
	URL   string
}

// Answer is a generated reply plus what it was grounded on.
type Answer struct {
	Question  string
	Text      string
	Provider  string
	NumFound  int
	Sources   []Source
	Retrieval time.Duration
	Generate  time.Duration
}

// Service answers questions.
type Service struct {
	retriever Retriever
	generator Generator
	logger    *zap.Logger
}

// New creates a Service.
func New(r Retriever, g Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{retriever: r, generator: g, logger: logger}
}

// Ask retrieves excerpts for question and asks the generator to answer from them.
// Retrieval errors are returned unchanged so callers can inspect their Kind.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.Validation("ask", domain.ErrEmptyQuery)
	}
	ctx, log := logger.ForRequest(ctx, s.logger)

	start := time.Now()
	res, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	retrieval := time.Since(start)

	excerpts := res.Context
	if strings.TrimSpace(excerpts) == "" {
		excerpts = NoDocuments
	}

	start = time.Now()
	text, err := s.generator.Generate(ctx, SystemPrompt, Prompt(question, excerpts))
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", s.generator.Name(), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%s: %w", s.generator.Name(), ErrEmptyAnswer)
	}
	gen := time.Since(start)

	log.Info("answer generated",
		zap.String("provider", s.generator.Name()),
		zap.Int("num_found", res.NumFound),
		zap.Int("docs", len(res.Docs)),
		zap.Duration("retrieval", retrieval),
		zap.Duration("generate", gen),
	)

	return &Answer{
		Question:  question,
		Text:      text,
		Provider:  s.generator.Name(),
		NumFound:  res.NumFound,
		Sources:   sources(res.Docs),
		Retrieval: retrieval,
		Generate:  gen,
	}, nil
}

// Prompt renders the user turn.
func Prompt(question, excerpts string) string {
	return "Documentation excerpts:\n\n" + excerpts + "\n\nQuestion: " + question
}

func sources(docs []domain.Document) []Source {
	out := make([]Source, 0, len(docs))
	for i, d := range docs {
		out = append(out, Source{N: i + 1, Title: d.Title, URL: d.URL})
	}
	return out
}
