package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// SearchRequest is what a backend receives: sanitized query text, row count and filter clauses.
type SearchRequest struct {
	Query   string
	Rows    int
	Filters Filters
}

// CacheKey derives the response-cache key for the request. Queries that
// differ only in whitespace share a key; filter values are compared exactly.
func (r SearchRequest) CacheKey() string {
	parts := []string{
		strings.Join(strings.Fields(r.Query), " "),
		strconv.Itoa(r.Rows),
		strings.TrimSpace(r.Filters.Product),
		strings.TrimSpace(r.Filters.Version),
		strings.TrimSpace(r.Filters.Kind),
	}
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

const cacheKeyPrefix = "rhokp:resp:"

// SearchResponse is a parsed backend answer.
type SearchResponse struct {
	Docs     []Document
	NumFound int
	Facets   FacetCounts
}

// ProbeResult is returned by backend health probes.
type ProbeResult struct {
	NumIndexed int
	Products   []string
}
