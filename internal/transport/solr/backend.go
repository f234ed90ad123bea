// Package solr talks to the portal's Solr select handler.
package solr

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/domain"
	"github.com/kailas-cloud/rhokp/internal/domain/query"
	"github.com/kailas-cloud/rhokp/internal/version"
)

const (
	// maxBodyBytes bounds a select response. Larger bodies are a Response error.
	maxBodyBytes = 16 << 20
	// maxDrainBytes bounds how much of an unread body is drained before close.
	maxDrainBytes = 64 << 10
)

// Name identifies this backend in metrics and logs.
const Name = "solr"

// Backend is a SearchBackend over HTTP. One Backend owns one pooled transport.
type Backend struct {
	searchURL   string
	token       string
	userAgent   string
	client      *http.Client
	transport   *http.Transport
	slots       chan struct{}
	poolTimeout time.Duration
	readTimeout time.Duration
	logger      *zap.Logger
}

// New builds a Backend from a validated config.
func New(cfg domain.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tlsCfg, err := tlsConfig(cfg)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       tlsCfg,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxConnsPerHost:       cfg.PoolSize,
		MaxIdleConns:          cfg.PoolSize,
		MaxIdleConnsPerHost:   cfg.PoolSize,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &Backend{
		searchURL:   cfg.SearchURL(),
		token:       cfg.AuthToken,
		userAgent:   version.UserAgent(),
		client:      &http.Client{Transport: transport},
		transport:   transport,
		slots:       make(chan struct{}, cfg.PoolSize),
		poolTimeout: cfg.PoolTimeout,
		readTimeout: cfg.ReadTimeout,
		logger:      logger,
	}, nil
}

func tlsConfig(cfg domain.Config) (*tls.Config, error) {
	switch cfg.TLSMode {
	case domain.TLSSkipVerify:
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // opt-in for self-signed lab portals
	case domain.TLSCABundle:
		pem, err := os.ReadFile(cfg.CABundlePath)
		if err != nil {
			return nil, domain.Validation("config", fmt.Errorf("%w: read ca bundle: %w", domain.ErrInvalidConfig, err))
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, domain.Validation("config",
				fmt.Errorf("%w: no certificates in %s", domain.ErrInvalidConfig, cfg.CABundlePath))
		}
		return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
	default:
		return &tls.Config{MinVersion: tls.VersionTLS12}, nil
	}
}

// Name implements the named-backend hook used for metrics labels.
func (b *Backend) Name() string { return Name }

// Search runs one select request.
func (b *Backend) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("rows", strconv.Itoa(req.Rows))
	params.Set("wt", "json")
	for _, fq := range FilterQueries(req.Filters) {
		params.Add("fq", fq)
	}
	return b.do(ctx, "search", params)
}

// Probe asks for the index size and facet summary without fetching documents.
func (b *Backend) Probe(ctx context.Context) (domain.ProbeResult, error) {
	params := url.Values{}
	params.Set("q", "*:*")
	params.Set("rows", "0")
	params.Set("wt", "json")

	resp, err := b.do(ctx, "probe", params)
	if err != nil {
		return domain.ProbeResult{}, err
	}
	return domain.ProbeResult{
		NumIndexed: resp.NumFound,
		Products:   resp.Facets.Values(domain.FacetProduct),
	}, nil
}

// Close releases idle pooled connections.
func (b *Backend) Close() error {
	b.transport.CloseIdleConnections()
	return nil
}

// FilterQueries renders filters as fq clauses with quoted, escaped values.
func FilterQueries(f domain.Filters) []string {
	var fqs []string
	if f.Product != "" {
		fqs = append(fqs, domain.FacetProduct+":"+query.QuoteValue(f.Product))
	}
	if f.Version != "" {
		fqs = append(fqs, domain.FacetVersion+":"+query.QuoteValue(f.Version))
	}
	if f.Kind != "" {
		fqs = append(fqs, domain.FacetDocumentKind+":"+query.QuoteValue(f.Kind))
	}
	return fqs
}

func (b *Backend) do(ctx context.Context, op string, params url.Values) (domain.SearchResponse, error) {
	if err := b.acquire(ctx); err != nil {
		return domain.SearchResponse{}, err
	}
	defer func() { <-b.slots }()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, b.searchURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return domain.SearchResponse{}, domain.NewError(domain.KindConnection, op, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("User-Agent", b.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if b.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.token)
	}

	start := time.Now()
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return domain.SearchResponse{}, classify(ctx, op, err)
	}
	// ResponseHeaderTimeout covers the wait for headers; the body gets the
	// same budget between reads.
	rd := newIdleReader(resp.Body, b.readTimeout, cancel)
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(rd, maxDrainBytes))
		_ = resp.Body.Close()
		rd.stop()
	}()

	body, err := io.ReadAll(io.LimitReader(rd, maxBodyBytes+1))
	if err != nil {
		return domain.SearchResponse{}, classify(ctx, op, fmt.Errorf("read body: %w", err))
	}

	b.logger.Debug("solr request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	switch {
	case unavailable(resp.StatusCode):
		return domain.SearchResponse{}, &domain.Error{
			Kind:       domain.KindConnection,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("backend unavailable: %s", http.StatusText(resp.StatusCode)),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return domain.SearchResponse{}, domain.ResponseError(op, resp.StatusCode, body,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	case len(body) > maxBodyBytes:
		return domain.SearchResponse{}, domain.ResponseError(op, resp.StatusCode, body,
			fmt.Errorf("response body exceeds %d bytes", maxBodyBytes))
	}

	return Parse(body)
}

// idleReader fails a body read that makes no progress for timeout.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newIdleReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleReader {
	ir := &idleReader{r: r, timeout: timeout}
	ir.timer = time.AfterFunc(timeout, func() {
		ir.fired.Store(true)
		cancel()
	})
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 && !ir.fired.Load() {
		ir.timer.Reset(ir.timeout)
	}
	if err != nil && !errors.Is(err, io.EOF) && ir.fired.Load() {
		err = fmt.Errorf("no data within read timeout %s: %w", ir.timeout, os.ErrDeadlineExceeded)
	}
	return n, err
}

func (ir *idleReader) stop() { ir.timer.Stop() }

// acquire takes a pool slot, waiting at most poolTimeout.
func (b *Backend) acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(b.poolTimeout)
	defer timer.Stop()
	select {
	case b.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return domain.NewError(domain.KindTimeout, "pool",
			fmt.Errorf("no free connection within %s", b.poolTimeout))
	case <-ctx.Done():
		return classify(ctx, "pool", ctx.Err())
	}
}

// 429 / 502 / 503 / 504: backend says "not now". Retryable, counts against the breaker.
func unavailable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// classify maps a transport failure onto the error taxonomy.
func classify(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.NewError(domain.KindTimeout, op, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return domain.NewError(domain.KindTimeout, op, err)
	default:
		return domain.NewError(domain.KindConnection, op, err)
	}
}
