package rhokp

import (
	"github.com/kailas-cloud/rhokp/internal/domain"
	"github.com/kailas-cloud/rhokp/internal/domain/contextblock"
	"github.com/kailas-cloud/rhokp/internal/usecase/retrieve"
)

// Core types re-exported from the domain layer.
type (
	Config         = domain.Config
	TLSMode        = domain.TLSMode
	Document       = domain.Document
	Filters        = domain.Filters
	FacetCounts    = domain.FacetCounts
	RetrieveResult = domain.RetrieveResult
	SearchRequest  = domain.SearchRequest
	SearchResponse = domain.SearchResponse
	ProbeResult    = domain.ProbeResult
	Order          = contextblock.Order
)

// SearchBackend is what the client searches. Implementations may also
// implement Probe(ctx) (ProbeResult, error) for health checks and
// Name() string for metric labels.
type SearchBackend = retrieve.Backend

// Cache is a response cache. Implementations must return copies.
type Cache = retrieve.Cache

// TLS verification modes.
const (
	TLSVerify     = domain.TLSVerify
	TLSSkipVerify = domain.TLSSkipVerify
	TLSCABundle   = domain.TLSCABundle
)

// Row limits accepted by WithRows.
const (
	MinRows = domain.MinRows
	MaxRows = domain.MaxRows
)

// Context orderings.
const (
	OrderRelevance = contextblock.OrderRelevance
	OrderRecency   = contextblock.OrderRecency
)

// Facet dimensions present in RetrieveResult.Facets.
const (
	FacetProduct        = domain.FacetProduct
	FacetDocumentKind   = domain.FacetDocumentKind
	FacetVersion        = domain.FacetVersion
	FacetContentSubtype = domain.FacetContentSubtype
)

// DefaultConfig returns the portal defaults. Adjust fields and pass it to WithConfig.
func DefaultConfig() Config { return domain.DefaultConfig() }

// EstimateTokens approximates the model token count of s.
func EstimateTokens(s string) int { return contextblock.EstimateTokens(s) }

// ParseOrder maps "relevance" / "recency" (case-insensitive, empty means
// relevance) to an Order.
func ParseOrder(s string) (Order, bool) { return contextblock.ParseOrder(s) }
