package answer

import (
	"context"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

// Retriever fetches the excerpts an answer is grounded on.
type Retriever interface {
	Retrieve(ctx context.Context, question string) (*domain.RetrieveResult, error)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, question string) (*domain.RetrieveResult, error)

// Retrieve implements Retriever.
func (f RetrieverFunc) Retrieve(ctx context.Context, question string) (*domain.RetrieveResult, error) {
	return f(ctx, question)
}

// Generator is a chat model that turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}
