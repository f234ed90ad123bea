package rhokp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const solrFixture = "internal/transport/solr/testdata/install_openshift.json"

func testDocs() []Document {
	return []Document{
		{ID: "a", Title: "Installing OpenShift", Snippet: "Run the installer.", URL: "/a",
			Product: "OpenShift Container Platform", Version: "4.16", Kind: "documentation", Score: 9.1},
		{ID: "b", Title: "Installer troubleshooting", Snippet: "Check the logs.", URL: "/b",
			Product: "OpenShift Container Platform", Version: "4.16", Kind: "solution", Score: 7.3},
	}
}

func newMockClient(t *testing.T, b *MockBackend, opts ...Option) *Client {
	t.Helper()
	c, err := New(append([]Option{WithBackend(b)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func solrServer(t *testing.T, status int, body []byte) (*httptest.Server, *hitCounter) {
	t.Helper()
	hits := &hitCounter{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

type hitCounter struct {
	mu sync.Mutex
	n  int
}

func (c *hitCounter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *hitCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(WithBaseURL("ftp://portal"))
	if !IsKind(err, KindValidation) || !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNew_MissingLocalIndex(t *testing.T) {
	_, err := New(WithLocalIndex("testdata/does-not-exist.jsonl"))
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClient_Retrieve_Mock(t *testing.T) {
	b := NewMockBackend(testDocs())
	c := newMockClient(t, b)

	res, err := c.Retrieve(context.Background(), "install OpenShift",
		Product("OpenShift Container Platform"), Version("4.16"), WithRows(2))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Docs) != 2 || res.Docs[0].Score != 9.1 {
		t.Fatalf("unexpected docs: %+v", res.Docs)
	}
	if !strings.HasPrefix(res.Context, "[1] Installing OpenShift") || !strings.Contains(res.Context, "[2] Installer troubleshooting") {
		t.Errorf("unexpected context:\n%s", res.Context)
	}

	calls := b.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Rows != 2 || calls[0].Filters.Product != "OpenShift Container Platform" || calls[0].Filters.Version != "4.16" {
		t.Errorf("unexpected call: %+v", calls[0])
	}
}

func TestClient_Retrieve_OptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opts []RetrieveOption
		want error
	}{
		{"unknown filter", []RetrieveOption{Filter("color", "red")}, ErrUnknownFilter},
		{"unknown filter in map", []RetrieveOption{WithFilters(map[string]string{"arch": "x86_64"})}, ErrUnknownFilter},
		{"zero rows", []RetrieveOption{WithRows(0)}, nil},
		{"too many rows", []RetrieveOption{WithRows(500)}, nil},
		{"bad order", []RetrieveOption{WithOrder("alphabetical")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewMockBackend(testDocs())
			c := newMockClient(t, b)

			_, err := c.Retrieve(context.Background(), "install", tt.opts...)
			if !IsKind(err, KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if b.CallCount() != 0 {
				t.Errorf("backend must not be called, got %d calls", b.CallCount())
			}
		})
	}
}

func TestClient_Retrieve_FilterAliases(t *testing.T) {
	b := NewMockBackend(testDocs())
	c := newMockClient(t, b)

	_, err := c.Retrieve(context.Background(), "install",
		WithFilters(map[string]string{"document_kind": "solution"}), Product("RHEL"))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	f := b.Calls()[0].Filters
	if f.Kind != "solution" || f.Product != "RHEL" {
		t.Errorf("unexpected filters: %+v", f)
	}
}

func TestClient_Retrieve_Solr(t *testing.T) {
	body, err := os.ReadFile(solrFixture)
	if err != nil {
		t.Fatal(err)
	}
	srv, hits := solrServer(t, http.StatusOK, body)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.CacheTTL = time.Minute
	c, err := New(WithConfig(cfg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Close() }()

	for range 2 {
		res, err := c.Retrieve(context.Background(), "install OpenShift")
		if err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
		if len(res.Docs) != 2 || res.Docs[0].Score != 9.1 || res.Docs[1].Score != 7.3 {
			t.Fatalf("unexpected docs: %+v", res.Docs)
		}
		if !strings.Contains(res.Context, "Source: ") {
			t.Errorf("context misses sources:\n%s", res.Context)
		}
	}
	if hits.get() != 1 {
		t.Errorf("second call should be served from cache, backend hits = %d", hits.get())
	}
}

func TestClient_Retrieve_ResponseError(t *testing.T) {
	srv, hits := solrServer(t, http.StatusOK, []byte(`{"response": "nope"}`))

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	c, err := New(WithConfig(cfg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Close() }()

	_, err = c.Retrieve(context.Background(), "install")
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Kind != KindResponse {
		t.Fatalf("expected response error, got %v", err)
	}
	if len(rerr.Payload) == 0 {
		t.Error("response error should carry the payload")
	}
	if hits.get() != 1 {
		t.Errorf("response errors must not be retried, hits = %d", hits.get())
	}
}

func TestClient_CircuitOpen(t *testing.T) {
	refused := &Error{Kind: KindConnection, Op: "search", Err: errors.New("connection refused")}
	b := NewMockBackend(testDocs(), MockErrors(refused, refused))

	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	cfg.BreakerLimit = 2
	cfg.BreakerCool = time.Hour
	c := newMockClient(t, b, WithConfig(cfg))

	for range 2 {
		if _, err := c.Retrieve(context.Background(), "install"); !IsKind(err, KindConnection) {
			t.Fatalf("expected connection error, got %v", err)
		}
	}

	start := time.Now()
	_, err := c.Retrieve(context.Background(), "install")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("open breaker should fail fast, took %s", time.Since(start))
	}
	if b.CallCount() != 2 {
		t.Errorf("expected 2 backend calls, got %d", b.CallCount())
	}

	hs, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if hs.Status != HealthDegraded || hs.Breaker != "open" {
		t.Errorf("expected degraded with open breaker, got %+v", hs)
	}
}

func TestClient_Health(t *testing.T) {
	b := NewMockBackend(testDocs(), MockProbe(ProbeResult{NumIndexed: 1200, Products: []string{"RHEL", "OCP"}}))
	c := newMockClient(t, b)

	hs, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !hs.OK() {
		t.Fatalf("expected ok, got %+v", hs)
	}
	if hs.NumIndexed != 1200 || hs.ProductsAvailable != 2 {
		t.Errorf("unexpected counts: %+v", hs)
	}
	if hs.Checks["backend"] != "ok" {
		t.Errorf("unexpected checks: %v", hs.Checks)
	}
	if b.CallCount() != 0 {
		t.Errorf("health must not search, got %d calls", b.CallCount())
	}
}

func TestClient_Health_Unavailable(t *testing.T) {
	srv, _ := solrServer(t, http.StatusServiceUnavailable, []byte("maintenance"))

	c, err := New(WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Close() }()

	hs, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if hs.Status != HealthError || hs.ErrorKind != "connection" || hs.Error == "" {
		t.Errorf("unexpected status: %+v", hs)
	}
	if hs.BaseURL != srv.URL || hs.Handler != "/solr/portal/select" {
		t.Errorf("unexpected target: %s%s", hs.BaseURL, hs.Handler)
	}
}

func TestClient_RetrieveAsync(t *testing.T) {
	c := newMockClient(t, NewMockBackend(testDocs()))

	ch1 := c.RetrieveAsync(context.Background(), "install")
	ch2 := c.RetrieveAsync(context.Background(), "", WithRows(1))

	r1 := <-ch1
	if r1.Err != nil || len(r1.Result.Docs) != 2 {
		t.Fatalf("unexpected result: %+v", r1)
	}
	r2 := <-ch2
	if !errors.Is(r2.Err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", r2.Err)
	}
	if _, ok := <-ch1; ok {
		t.Error("channel should be closed after the result")
	}
}

func TestClient_Close(t *testing.T) {
	c := newMockClient(t, NewMockBackend(testDocs()))

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := c.Retrieve(context.Background(), "install"); !errors.Is(err, ErrClientClosed) || !IsKind(err, KindValidation) {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
	if _, err := c.Health(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed from Health, got %v", err)
	}
}

func TestClient_Config_Copy(t *testing.T) {
	c := newMockClient(t, NewMockBackend(nil))
	cfg := c.Config()
	cfg.Rows = 99
	if c.Config().Rows != DefaultConfig().Rows {
		t.Error("Config must return a copy")
	}
}

func TestClient_ClearCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Minute
	b := NewMockBackend(testDocs())
	c := newMockClient(t, b, WithConfig(cfg))
	ctx := context.Background()

	for range 2 {
		if _, err := c.Retrieve(ctx, "install"); err != nil {
			t.Fatalf("Retrieve: %v", err)
		}
	}
	if n := b.CallCount(); n != 1 {
		t.Fatalf("expected second call served from cache, backend calls = %d", n)
	}

	c.ClearCache()
	if _, err := c.Retrieve(ctx, "install"); err != nil {
		t.Fatalf("Retrieve after clear: %v", err)
	}
	if n := b.CallCount(); n != 2 {
		t.Errorf("expected backend hit after ClearCache, calls = %d", n)
	}
}

func TestClient_ClearCache_NoCache(t *testing.T) {
	c := newMockClient(t, NewMockBackend(testDocs()))
	c.ClearCache()
}

func TestClient_Concurrent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Minute
	c := newMockClient(t, NewMockBackend(testDocs()), WithConfig(cfg))

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := "install"
			if i%2 == 0 {
				q = "upgrade"
			}
			if _, err := c.Retrieve(context.Background(), q); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Retrieve: %v", err)
	}
}

func TestClient_Prometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewMockBackend(testDocs())
	c := newMockClient(t, b, WithPrometheus(reg))

	if _, err := c.Retrieve(context.Background(), "install"); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	// second client on the same registry reuses the collectors
	c2, err := New(WithBackend(b), WithPrometheus(reg))
	if err != nil {
		t.Fatalf("second client: %v", err)
	}
	_ = c2.Close()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	seen := make(map[string]bool)
	for _, f := range families {
		seen[f.GetName()] = true
	}
	for _, name := range []string{
		"rhokp_retrieve_total",
		"rhokp_backend_requests_total",
		"rhokp_circuit_breaker_state",
	} {
		if !seen[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestClient_LocalIndex(t *testing.T) {
	c, err := New(WithLocalIndex("internal/transport/bleve/testdata/portal.jsonl"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = c.Close() }()

	res, err := c.Retrieve(context.Background(), "SELinux", Product("Red Hat Enterprise Linux"))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Docs) == 0 || res.Docs[0].ID != "rhel-selinux" {
		t.Fatalf("unexpected docs: %+v", res.Docs)
	}

	hs, err := c.Health(context.Background())
	if err != nil || !hs.OK() || hs.NumIndexed != 4 {
		t.Errorf("unexpected health: %+v, %v", hs, err)
	}
}

func TestRetrieve_OneShot(t *testing.T) {
	body, err := os.ReadFile(solrFixture)
	if err != nil {
		t.Fatal(err)
	}
	srv, _ := solrServer(t, http.StatusOK, body)
	t.Setenv("RHOKP_BASE_URL", srv.URL)
	t.Setenv("RHOKP_RAG_ROWS", "3")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.BaseURL != srv.URL || cfg.Rows != 3 {
		t.Errorf("unexpected config: %+v", cfg)
	}

	res, err := Retrieve(context.Background(), "install OpenShift")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Docs) != 2 {
		t.Errorf("expected 2 docs, got %d", len(res.Docs))
	}

	ar := <-RetrieveAsync(context.Background(), "install OpenShift")
	if ar.Err != nil || ar.Result == nil {
		t.Errorf("async one-shot failed: %+v", ar)
	}
}

func TestRetrieve_OneShot_BadEnv(t *testing.T) {
	t.Setenv("RHOKP_TIMEOUT_READ", "whenever")
	_, err := Retrieve(context.Background(), "install")
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
