// Package evaluate scores retrieval quality over a labelled query set:
// Precision@k and reciprocal rank against the expected document kinds.
package evaluate

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

// Query is one labelled line of a query set.
type Query struct {
	Query         string   `json:"query"`
	ExpectedKinds []string `json:"expected_kinds"`
	Product       string   `json:"product,omitempty"`
}

// Retriever runs one evaluation query.
type Retriever interface {
	Retrieve(ctx context.Context, q Query, rows int) (*domain.RetrieveResult, error)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, q Query, rows int) (*domain.RetrieveResult, error)

// Retrieve implements Retriever.
func (f RetrieverFunc) Retrieve(ctx context.Context, q Query, rows int) (*domain.RetrieveResult, error) {
	return f(ctx, q, rows)
}

// ErrNoQueries is returned for an empty query set.
var ErrNoQueries = errors.New("no queries")

// LoadQueries reads JSONL; blank lines are skipped.
func LoadQueries(r io.Reader) ([]Query, error) {
	var out []Query
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var q Query
		if err := json.Unmarshal([]byte(text), &q); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(q.Query) == "" {
			return nil, fmt.Errorf("line %d: %w", line, domain.ErrEmptyQuery)
		}
		out = append(out, q)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	return out, nil
}

// LoadQueriesFile reads a JSONL query set from path.
func LoadQueriesFile(path string) ([]Query, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open queries: %w", err)
	}
	defer f.Close()
	return LoadQueries(f)
}

// PrecisionAtK is the share of the top k kinds found in expected.
// An empty expectation scores 1; an empty result scores 0.
func PrecisionAtK(expected, got []string, k int) float64 {
	if len(expected) == 0 {
		return 1
	}
	if k < len(got) {
		got = got[:k]
	}
	if len(got) == 0 {
		return 0
	}
	hits := 0
	for _, kind := range got {
		if slices.Contains(expected, kind) {
			hits++
		}
	}
	return float64(hits) / float64(len(got))
}

// ReciprocalRank is 1/rank of the first kind found in expected, 0 when none is.
func ReciprocalRank(expected, got []string) float64 {
	if len(expected) == 0 {
		return 1
	}
	for i, kind := range got {
		if slices.Contains(expected, kind) {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// Result scores a single query.
type Result struct {
	Query     Query
	Precision float64
	RR        float64
	NumFound  int
	Kinds     []string
	Err       error
}

// Hit reports whether at least one relevant document came back.
func (r Result) Hit() bool { return r.Precision > 0 }

// Report aggregates a run.
type Report struct {
	Rows      int
	Results   []Result
	Precision float64 // mean Precision@Rows
	MRR       float64
	Errors    int
}

// Service runs evaluations.
type Service struct {
	retriever Retriever
	rows      int
	logger    *zap.Logger
}

// New creates a Service retrieving rows documents per query.
func New(r Retriever, rows int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rows < domain.MinRows {
		rows = domain.MinRows
	}
	return &Service{retriever: r, rows: rows, logger: logger}
}

// Run scores every query. A failed query scores zero and is counted in
// Report.Errors; only context cancellation aborts the run.
func (s *Service) Run(ctx context.Context, queries []Query) (Report, error) {
	if len(queries) == 0 {
		return Report{}, ErrNoQueries
	}
	rep := Report{Rows: s.rows, Results: make([]Result, 0, len(queries))}
	var sumP, sumRR float64

	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		r := Result{Query: q}
		res, err := s.retriever.Retrieve(ctx, q, s.rows)
		if err != nil {
			r.Err = err
			rep.Errors++
			s.logger.Warn("evaluation query failed",
				zap.String("query", q.Query),
				zap.String("kind", domain.KindOf(err).String()),
				zap.Error(err),
			)
		} else {
			r.NumFound = res.NumFound
			r.Kinds = make([]string, len(res.Docs))
			for i, d := range res.Docs {
				r.Kinds[i] = d.Kind
			}
			r.Precision = PrecisionAtK(q.ExpectedKinds, r.Kinds, s.rows)
			r.RR = ReciprocalRank(q.ExpectedKinds, r.Kinds)
		}
		sumP += r.Precision
		sumRR += r.RR
		rep.Results = append(rep.Results, r)
	}

	n := float64(len(rep.Results))
	rep.Precision = sumP / n
	rep.MRR = sumRR / n
	s.logger.Info("evaluation finished",
		zap.Int("queries", len(rep.Results)),
		zap.Int("errors", rep.Errors),
		zap.Float64("precision", rep.Precision),
		zap.Float64("mrr", rep.MRR),
	)
	return rep, nil
}
