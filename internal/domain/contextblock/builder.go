// Package contextblock assembles retrieved documents into a numbered,
// citation-annotated text block sized for a language-model prompt.
//
// Token counts are estimated, not measured: EstimateTokens charges one token
// per four runes, rounded up. The estimate is deterministic, so a block built
// under a budget always re-measures within that budget.
package contextblock

import (
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

const (
	runesPerToken = 4
	separator     = "\n\n"
)

// Order selects the sequence documents appear in.
type Order string

const (
	// OrderRelevance keeps the backend ranking.
	OrderRelevance Order = "relevance"
	// OrderRecency lists the most recently modified documents first; ties keep ranking.
	OrderRecency Order = "recency"
)

// ParseOrder maps user input to an Order; empty means relevance.
func ParseOrder(s string) (Order, bool) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderRelevance:
		return OrderRelevance, true
	case OrderRecency:
		return OrderRecency, true
	default:
		return "", false
	}
}

// Options tunes Build.
type Options struct {
	// MaxTokens caps the estimated size of the block; 0 means unlimited.
	MaxTokens int
	Order     Order
}

// EstimateTokens approximates the token count of s as ceil(runes/4).
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + runesPerToken - 1) / runesPerToken
}

// Build renders docs as numbered entries. Whole entries are dropped from the
// tail once the budget is reached; an entry is never cut.
func Build(docs []domain.Document, opts Options) string {
	if opts.Order == OrderRecency {
		docs = slices.Clone(docs)
		slices.SortStableFunc(docs, func(a, b domain.Document) int {
			return b.LastModified.Compare(a.LastModified)
		})
	}

	var b strings.Builder
	for i, d := range docs {
		e := entry(i+1, d)
		if opts.MaxTokens > 0 {
			next := b.String()
			if next != "" {
				next += separator
			}
			if EstimateTokens(next+e) > opts.MaxTokens {
				break
			}
		}
		if b.Len() > 0 {
			b.WriteString(separator)
		}
		b.WriteString(e)
	}
	return b.String()
}

func entry(n int, d domain.Document) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strconv.Itoa(n))
	b.WriteString("] ")
	b.WriteString(d.Title)

	var meta []string
	if d.Kind != "" {
		meta = append(meta, d.Kind)
	}
	if d.Product != "" {
		meta = append(meta, d.Product)
	}
	if d.Version != "" {
		meta = append(meta, "v"+d.Version)
	}
	if len(meta) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(meta, ", "))
		b.WriteByte(')')
	}
	if d.Severity != "" {
		b.WriteString(" [")
		b.WriteString(d.Severity)
		b.WriteByte(']')
	}

	if body := body(d); body != "" {
		b.WriteByte('\n')
		b.WriteString(body)
	}
	if d.URL != "" {
		b.WriteString("\nSource: ")
		b.WriteString(d.URL)
	}
	return b.String()
}

// body prefers the advisory synopsis; advisories carry both when they differ.
func body(d domain.Document) string {
	if d.Synopsis == "" {
		return d.Snippet
	}
	if d.AdvisoryType != "" && d.Snippet != "" && d.Snippet != d.Synopsis {
		return d.Synopsis + "\n" + d.Snippet
	}
	return d.Synopsis
}
