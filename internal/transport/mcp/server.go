// Package mcp exposes portal search to LLM agents as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp"
	"github.com/kailas-cloud/rhokp/internal/version"
)

// Tool names.
const (
	ToolSearch = "search_red_hat_docs"
	ToolHealth = "check_okp_health"
)

const (
	defaultResults = 5
	maxResults     = 20
	noResults      = "No results found."
)

// Client is the consumer interface for the retrieval client.
type Client interface {
	Retrieve(ctx context.Context, query string, opts ...rhokp.RetrieveOption) (*rhokp.RetrieveResult, error)
	Health(ctx context.Context) (*rhokp.HealthStatus, error)
}

// Server holds the MCP server and the product names used to resolve fuzzy product filters.
type Server struct {
	client Client
	server *mcp.Server
	logger *zap.Logger

	mu       sync.RWMutex
	products []string
}

// SearchArgs are the search_red_hat_docs arguments.
type SearchArgs struct {
	Query        string `json:"query" jsonschema:"search terms, e.g. 'OpenShift 4.16 bare metal install' or 'RHEL 9 kernel tuning parameters'"`
	Product      string `json:"product,omitempty" jsonschema:"optional product filter; full official name preferred (e.g. 'Red Hat Enterprise Linux'), partial names are resolved"`
	Version      string `json:"version,omitempty" jsonschema:"optional version filter, e.g. '4.16' or '9.4'"`
	DocumentKind string `json:"document_kind,omitempty" jsonschema:"optional document type filter, e.g. 'documentation', 'solution' or 'errata'"`
	MaxResults   int    `json:"max_results,omitempty" jsonschema:"maximum number of excerpts to return (1-20, default 5)"`
}

// HealthArgs are the check_okp_health arguments (none).
type HealthArgs struct{}

type searchDoc struct {
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Product string `json:"product"`
	Version string `json:"version"`
	Source  string `json:"source"`
}

type searchResult struct {
	NumFound int         `json:"num_found"`
	Context  string      `json:"context,omitempty"`
	Docs     []searchDoc `json:"docs"`
	Error    string      `json:"error,omitempty"`
}

// NewServer creates the MCP server and registers both tools.
func NewServer(client Client, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		client: client,
		logger: logger,
		server: mcp.NewServer(&mcp.Implementation{Name: "okp-search", Version: version.Version}, nil),
	}
	s.server.AddReceivingMiddleware(s.logging)

	no := false
	mcp.AddTool(s.server, &mcp.Tool{
		Name: ToolSearch,
		Description: "Search the Red Hat Offline Knowledge Portal for official product documentation, " +
			"solutions and errata. Returns numbered excerpts with source references. " +
			"Only use this tool for questions about Red Hat products (OpenShift, RHEL, Ansible, ...).",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Search Red Hat Documentation",
			ReadOnlyHint:    true,
			IdempotentHint:  true,
			DestructiveHint: &no,
			OpenWorldHint:   &no,
		},
	}, s.search)
	mcp.AddTool(s.server, &mcp.Tool{
		Name: ToolHealth,
		Description: "Check whether the OKP search backend is reachable. Reports the number of " +
			"indexed documents, the configured base URL and the Solr handler.",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Check OKP Health",
			ReadOnlyHint:    true,
			IdempotentHint:  true,
			DestructiveHint: &no,
			OpenWorldHint:   &no,
		},
	}, s.health)
	return s
}

// MCP returns the underlying server (for custom transports).
func (s *Server) MCP() *mcp.Server { return s.server }

// LoadProducts fetches the indexed product names used for filter resolution.
// On failure product filters are passed through unchanged.
func (s *Server) LoadProducts(ctx context.Context) error {
	res, err := s.client.Retrieve(ctx, "test", rhokp.WithRows(1))
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	products := res.Facets.Values(rhokp.FacetProduct)
	slices.Sort(products)

	s.mu.Lock()
	s.products = products
	s.mu.Unlock()
	s.logger.Info("Loaded product names for filter resolution", zap.Int("products", len(products)))
	return nil
}

// RunStdio serves MCP over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves stateless streamable HTTP with JSON responses.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: true, JSONResponse: true})
}

func (s *Server) knownProducts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products
}

func (s *Server) search(ctx context.Context, _ *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	rows := args.MaxResults
	if rows == 0 {
		rows = defaultResults
	}
	rows = max(1, min(rows, maxResults))

	product := ResolveProduct(args.Product, s.knownProducts())
	if product != args.Product {
		s.logger.Info("Product filter resolved", zap.String("from", args.Product), zap.String("to", product))
	}

	opts := []rhokp.RetrieveOption{rhokp.WithRows(rows)}
	if product != "" {
		opts = append(opts, rhokp.Product(product))
	}
	if args.Version != "" {
		opts = append(opts, rhokp.Version(args.Version))
	}
	if args.DocumentKind != "" {
		opts = append(opts, rhokp.DocumentKind(args.DocumentKind))
	}

	res, err := s.client.Retrieve(ctx, args.Query, opts...)
	if err != nil {
		s.logger.Warn("OKP search failed",
			zap.String("query", args.Query),
			zap.String("kind", rhokp.KindOf(err).String()),
			zap.Error(err),
		)
		r, jerr := jsonResult(searchResult{Docs: []searchDoc{}, Error: err.Error()}, true)
		return r, nil, jerr
	}

	out := searchResult{NumFound: res.NumFound, Context: res.Context, Docs: make([]searchDoc, 0, len(res.Docs))}
	if len(res.Docs) == 0 {
		out.NumFound = 0
		out.Context = noResults
	}
	for _, d := range res.Docs {
		out.Docs = append(out.Docs, searchDoc{
			Title:   d.Title,
			Kind:    d.Kind,
			Product: d.Product,
			Version: d.Version,
			Source:  d.URL,
		})
	}
	r, err := jsonResult(out, false)
	return r, nil, err
}

func (s *Server) health(ctx context.Context, _ *mcp.CallToolRequest, _ HealthArgs) (*mcp.CallToolResult, any, error) {
	status, err := s.client.Health(ctx)
	if err != nil {
		r, jerr := jsonResult(map[string]string{"status": rhokp.HealthError, "error": err.Error()}, true)
		return r, nil, jerr
	}
	r, err := jsonResult(status, false)
	return r, nil, err
}

// logging emits one line per MCP request.
func (s *Server) logging(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		start := time.Now()
		res, err := next(ctx, method, req)
		fields := []zap.Field{
			zap.String("method", method),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			s.logger.Warn("mcp_request", append(fields, zap.Error(err))...)
		} else {
			s.logger.Debug("mcp_request", fields...)
		}
		return res, err
	}
}

func jsonResult(v any, isError bool) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: isError,
	}, nil
}
