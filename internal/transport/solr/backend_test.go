package solr

import (
	"context"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

func testConfig(baseURL string) domain.Config {
	cfg := domain.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.ConnectTimeout = time.Second
	cfg.ReadTimeout = 2 * time.Second
	cfg.PoolTimeout = time.Second
	return cfg
}

func newTestBackend(t *testing.T, cfg domain.Config) *Backend {
	t.Helper()
	b, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend_Search_Request(t *testing.T) {
	fixture := loadFixture(t, "install_openshift.json")
	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixture)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL + "/")
	cfg.AuthToken = "s3cret"
	b := newTestBackend(t, cfg)

	resp, err := b.Search(context.Background(), domain.SearchRequest{
		Query:   `install OpenShift`,
		Rows:    7,
		Filters: domain.Filters{Product: `OpenShift "Container" Platform`, Version: "4.16", Kind: "documentation"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Docs) != 2 {
		t.Errorf("len(Docs) = %d", len(resp.Docs))
	}

	got := <-reqs
	if got.URL.Path != "/solr/portal/select" {
		t.Errorf("path = %q", got.URL.Path)
	}
	q := got.URL.Query()
	if q.Get("q") != "install OpenShift" || q.Get("rows") != "7" || q.Get("wt") != "json" {
		t.Errorf("query params = %v", q)
	}
	wantFQ := []string{
		`product:"OpenShift \"Container\" Platform"`,
		`documentation_version:"4.16"`,
		`documentKind:"documentation"`,
	}
	if fq := q["fq"]; strings.Join(fq, "|") != strings.Join(wantFQ, "|") {
		t.Errorf("fq = %q, want %q", fq, wantFQ)
	}
	for _, forbidden := range []string{"defType", "qf", "pf", "bq", "sort"} {
		if q.Has(forbidden) {
			t.Errorf("request must not carry %s", forbidden)
		}
	}
	if ua := got.Header.Get("User-Agent"); !strings.HasPrefix(ua, "rhokp-go/") {
		t.Errorf("User-Agent = %q", ua)
	}
	if auth := got.Header.Get("Authorization"); auth != "Bearer s3cret" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.Header.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", got.Header.Get("Accept"))
	}
}

func TestBackend_Search_NoAuthHeaderWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("unexpected Authorization header")
		}
		_, _ = w.Write([]byte(`{"response":{"numFound":0,"docs":[]}}`))
	}))
	t.Cleanup(srv.Close)

	b := newTestBackend(t, testConfig(srv.URL))
	if _, err := b.Search(context.Background(), domain.SearchRequest{Query: "x", Rows: 1}); err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestBackend_Search_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		kind   domain.Kind
	}{
		{http.StatusTooManyRequests, "slow down", domain.KindConnection},
		{http.StatusBadGateway, "", domain.KindConnection},
		{http.StatusServiceUnavailable, "maintenance", domain.KindConnection},
		{http.StatusGatewayTimeout, "", domain.KindConnection},
		{http.StatusBadRequest, `{"error":{"msg":"undefined field"}}`, domain.KindResponse},
		{http.StatusUnauthorized, "no", domain.KindResponse},
		{http.StatusInternalServerError, "boom", domain.KindResponse},
		{http.StatusOK, "not json", domain.KindResponse},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			b := newTestBackend(t, testConfig(srv.URL))
			_, err := b.Search(context.Background(), domain.SearchRequest{Query: "x", Rows: 1})

			var de *domain.Error
			if !errors.As(err, &de) {
				t.Fatalf("expected *domain.Error, got %v", err)
			}
			if de.Kind != tc.kind {
				t.Errorf("Kind = %s, want %s", de.Kind, tc.kind)
			}
			if tc.status != http.StatusOK && de.StatusCode != tc.status {
				t.Errorf("StatusCode = %d, want %d", de.StatusCode, tc.status)
			}
			if tc.kind == domain.KindResponse && string(de.Payload) != tc.body {
				t.Errorf("Payload = %q, want %q", de.Payload, tc.body)
			}
		})
	}
}

func TestBackend_Search_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b := newTestBackend(t, testConfig(url))
	_, err := b.Search(context.Background(), domain.SearchRequest{Query: "x", Rows: 1})
	if !domain.IsKind(err, domain.KindConnection) {
		t.Fatalf("expected Connection error, got %v", err)
	}
}

func TestBackend_Search_ReadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := testConfig(srv.URL)
	cfg.ReadTimeout = 50 * time.Millisecond
	b := newTestBackend(t, cfg)

	_, err := b.Search(context.Background(), domain.SearchRequest{Query: "x", Rows: 1})
	if !domain.IsKind(err, domain.KindTimeout) {
		t.Fatalf("expected Timeout error, got %v", err)
	}
}

func TestBackend_Search_StalledBody(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":`))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := testConfig(srv.URL)
	cfg.ReadTimeout = 50 * time.Millisecond
	b := newTestBackend(t, cfg)

	errc := make(chan error, 1)
	go func() {
		_, err := b.Search(context.Background(), domain.SearchRequest{Query: "x", Rows: 1})
		errc <- err
	}()

	select {
	case err := <-errc:
		if !domain.IsKind(err, domain.KindTimeout) {
			t.Fatalf("expected Timeout error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Search did not honour the read timeout while reading the body")
	}

	if n := len(b.slots); n != 0 {
		t.Errorf("pool slots still held after body timeout: %d", n)
	}
}

func TestBackend_Search_SlowButSteadyBody(t *testing.T) {
	fixture := loadFixture(t, "install_openshift.json")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		half := len(fixture) / 2
		_, _ = w.Write(fixture[:half])
		w.(http.Flusher).Flush()
		time.Sleep(30 * time.Millisecond)
		_, _ = w.Write(fixture[half:])
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	cfg.ReadTimeout = 200 * time.Millisecond
	b := newTestBackend(t, cfg)

	if _, err := b.Search(context.Background(), domain.SearchRequest{Query: "x", Rows: 1}); err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestBackend_Search_CallerCancel(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	b := newTestBackend(t, testConfig(srv.URL))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-entered
		cancel()
	}()

	_, err := b.Search(ctx, domain.SearchRequest{Query: "x", Rows: 1})
	if !domain.IsKind(err, domain.KindTimeout) {
		t.Fatalf("expected Timeout error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected error to wrap context.Canceled, got %v", err)
	}

	// slot must be free again
	if len(b.slots) != 0 {
		t.Errorf("pool slots in use = %d, want 0", len(b.slots))
	}
}

func TestBackend_Search_PoolTimeout(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{"response":{"numFound":0,"docs":[]}}`))
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	cfg.PoolSize = 1
	cfg.PoolTimeout = 50 * time.Millisecond
	b := newTestBackend(t, cfg)

	firstDone := make(chan error, 1)
	go func() {
		_, err := b.Search(context.Background(), domain.SearchRequest{Query: "first", Rows: 1})
		firstDone <- err
	}()
	<-entered

	_, err := b.Search(context.Background(), domain.SearchRequest{Query: "second", Rows: 1})
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindTimeout || de.Op != "pool" {
		t.Fatalf("expected pool Timeout, got %v", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Errorf("first request: %v", err)
	}
}

func TestBackend_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "*:*" || q.Get("rows") != "0" {
			t.Errorf("probe params = %v", q)
		}
		_, _ = w.Write([]byte(`{"response":{"numFound":120000,"docs":[]},
			"facet_counts":{"facet_fields":{"product":["RHEL",70000,"OpenShift",50000]}}}`))
	}))
	t.Cleanup(srv.Close)

	b := newTestBackend(t, testConfig(srv.URL))
	res, err := b.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.NumIndexed != 120000 {
		t.Errorf("NumIndexed = %d", res.NumIndexed)
	}
	if len(res.Products) != 2 || res.Products[0] != "RHEL" {
		t.Errorf("Products = %v", res.Products)
	}
}

func TestBackend_TLSModes(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"numFound":1,"docs":[]}}`))
	}))
	t.Cleanup(srv.Close)

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(bundle, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mode    domain.TLSMode
		wantErr bool
	}{
		{"verify rejects self-signed", domain.TLSVerify, true},
		{"skip accepts self-signed", domain.TLSSkipVerify, false},
		{"ca bundle accepts pinned cert", domain.TLSCABundle, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(srv.URL)
			cfg.TLSMode = tc.mode
			cfg.CABundlePath = bundle
			b := newTestBackend(t, cfg)

			_, err := b.Search(context.Background(), domain.SearchRequest{Query: "x", Rows: 1})
			if tc.wantErr {
				if !domain.IsKind(err, domain.KindConnection) {
					t.Fatalf("expected Connection error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
		})
	}
}

func TestNew_BadCABundle(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(bundle, []byte("not a cert"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig("https://okp.example")
	cfg.TLSMode = domain.TLSCABundle
	cfg.CABundlePath = bundle

	_, err := New(cfg, nil)
	if !domain.IsKind(err, domain.KindValidation) || !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config Validation error, got %v", err)
	}
}

func TestFilterQueries(t *testing.T) {
	if fqs := FilterQueries(domain.Filters{}); len(fqs) != 0 {
		t.Errorf("empty filters = %v", fqs)
	}
	got := FilterQueries(domain.Filters{Kind: `a\b`})
	if len(got) != 1 || got[0] != `documentKind:"a\\b"` {
		t.Errorf("FilterQueries = %v", got)
	}
}
