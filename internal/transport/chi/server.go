// Package chi exposes the retrieval client over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp"
	logpkg "github.com/kailas-cloud/rhokp/internal/logger"
	"github.com/kailas-cloud/rhokp/internal/metrics"
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest      = "bad_request"
	codeUnauthorized    = "unauthorized"
	codeValidation      = "validation_failed"
	codeBackendDown     = "backend_unavailable"
	codeCircuitOpen     = "circuit_open"
	codeBackendTimeout  = "backend_timeout"
	codeBackendResponse = "bad_backend_response"
	codeInternal        = "internal_error"
)

// Retriever is the consumer interface for the retrieval client.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts ...rhokp.RetrieveOption) (*rhokp.RetrieveResult, error)
}

// HealthChecker reports client health.
type HealthChecker interface {
	Health(ctx context.Context) (*rhokp.HealthStatus, error)
}

// Server serves /v1/retrieve and /health.
type Server struct {
	client Retriever
	health HealthChecker
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(client Retriever, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{client: client, health: health, logger: logger}
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	APIKeys []string
	// Metrics records per-route metrics; nil disables.
	Metrics *metrics.HTTP
	// Gatherer backs /metrics; nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// NewRouter wires the middleware stack and the routes.
func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(cfg.APIKeys))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}

	r.Get("/v1/retrieve", s.Retrieve)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeBadRequest, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
	return r
}

// DocumentResponse is the JSON form of one hit.
type DocumentResponse struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Snippet      string     `json:"snippet,omitempty"`
	URL          string     `json:"url,omitempty"`
	Product      string     `json:"product,omitempty"`
	Version      string     `json:"version,omitempty"`
	Kind         string     `json:"kind,omitempty"`
	Score        float64    `json:"score"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	Severity     string     `json:"severity,omitempty"`
	AdvisoryType string     `json:"advisory_type,omitempty"`
	Synopsis     string     `json:"synopsis,omitempty"`
}

// RetrieveResponse is the JSON body of a retrieve call, shared with the CLI.
type RetrieveResponse struct {
	Query     string                    `json:"query"`
	NumFound  int                       `json:"num_found"`
	Docs      []DocumentResponse        `json:"docs"`
	Facets    map[string]map[string]int `json:"facets,omitempty"`
	Context   string                    `json:"context"`
	ElapsedMS float64                   `json:"elapsed_ms"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Retrieve handles GET /v1/retrieve?q=&rows=&product=&version=&kind=&order=&max_tokens=.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := []rhokp.RetrieveOption{
		rhokp.WithOrder(rhokp.Order(q.Get("order"))),
	}
	for _, p := range []struct {
		name string
		opt  func(int) rhokp.RetrieveOption
	}{
		{"rows", rhokp.WithRows},
		{"max_tokens", rhokp.WithMaxTokens},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, p.name+" must be an integer")
			return
		}
		opts = append(opts, p.opt(n))
	}
	for _, key := range []string{"product", "version", "kind"} {
		if v := q.Get(key); v != "" {
			opts = append(opts, rhokp.Filter(key, v))
		}
	}

	res, err := s.client.Retrieve(r.Context(), q.Get("q"), opts...)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewRetrieveResponse(res))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, err := s.health.Health(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	httpStatus := http.StatusOK
	if !status.OK() {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, status)
}

// NewRetrieveResponse converts a result to its JSON form.
func NewRetrieveResponse(res *rhokp.RetrieveResult) RetrieveResponse {
	docs := make([]DocumentResponse, 0, len(res.Docs))
	for _, d := range res.Docs {
		dr := DocumentResponse{
			ID:           d.ID,
			Title:        d.Title,
			Snippet:      d.Snippet,
			URL:          d.URL,
			Product:      d.Product,
			Version:      d.Version,
			Kind:         d.Kind,
			Score:        d.Score,
			Severity:     d.Severity,
			AdvisoryType: d.AdvisoryType,
			Synopsis:     d.Synopsis,
		}
		if !d.LastModified.IsZero() {
			lm := d.LastModified
			dr.LastModified = &lm
		}
		docs = append(docs, dr)
	}
	return RetrieveResponse{
		Query:     res.Query,
		NumFound:  res.NumFound,
		Docs:      docs,
		Facets:    res.Facets,
		Context:   res.Context,
		ElapsedMS: float64(res.Elapsed.Microseconds()) / 1000,
	}
}

// handleError maps the error kind to a status code with a message that does
// not leak backend internals.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.logger
	if id := logpkg.RequestIDFromContext(r.Context()); id != "" {
		log = log.With(zap.String("request_id", id))
	}

	var rerr *rhokp.Error
	if !errors.As(err, &rerr) {
		log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}

	switch rerr.Kind {
	case rhokp.KindValidation:
		msg := "invalid request"
		if rerr.Err != nil {
			msg = rerr.Err.Error()
		}
		writeError(w, http.StatusBadRequest, codeValidation, msg)
	case rhokp.KindConnection:
		if errors.Is(err, rhokp.ErrCircuitOpen) {
			writeError(w, http.StatusServiceUnavailable, codeCircuitOpen, "backend temporarily unavailable")
			return
		}
		log.Warn("backend unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, codeBackendDown, "backend unavailable")
	case rhokp.KindTimeout:
		log.Warn("backend timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, codeBackendTimeout, "backend timed out")
	case rhokp.KindResponse:
		log.Warn("bad backend response", zap.Error(err))
		writeError(w, http.StatusBadGateway, codeBackendResponse, "backend returned an unusable response")
	default:
		log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
