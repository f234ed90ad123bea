package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRetrieval_NilSafe(t *testing.T) {
	var m *Retrieval
	m.ObserveRetrieve("timeout", false, time.Second)
	m.ObserveBackend("solr", "ok", time.Millisecond)
	m.IncRetry("connection")
	m.IncCache("hit")
	m.SetBreakerState("solr", 1)
	m.IncBreakerTransition("solr", "closed", "open")
}

func TestRetrieval_Records(t *testing.T) {
	m, err := NewRetrieval(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewRetrieval: %v", err)
	}

	m.ObserveRetrieve("", true, 2*time.Millisecond)
	m.ObserveRetrieve("timeout", false, time.Second)
	m.IncRetry("connection")
	m.IncRetry("connection")
	m.IncCache("miss")
	m.SetBreakerState("solr", 2)
	m.IncBreakerTransition("solr", "open", "half_open")

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"retrieve ok", testutil.ToFloat64(m.retrieveTotal.WithLabelValues("ok", "")), 1},
		{"retrieve timeout", testutil.ToFloat64(m.retrieveTotal.WithLabelValues("error", "timeout")), 1},
		{"retries", testutil.ToFloat64(m.retriesTotal.WithLabelValues("connection")), 2},
		{"cache miss", testutil.ToFloat64(m.cacheTotal.WithLabelValues("miss")), 1},
		{"breaker state", testutil.ToFloat64(m.breakerState.WithLabelValues("solr")), 2},
		{"transitions", testutil.ToFloat64(m.breakerTransitions.WithLabelValues("solr", "open", "half_open")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestRetrieval_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewRetrieval(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewRetrieval(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	a.IncCache("hit")
	b.IncCache("hit")

	if v := testutil.ToFloat64(a.cacheTotal.WithLabelValues("hit")); v != 2 {
		t.Errorf("shared counter = %v, want 2", v)
	}
}

func TestRegisterOrReuse_IncompatibleType(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "clash", Help: "x"})
	if err := registerOrReuse(reg, &c); err != nil {
		t.Fatalf("register: %v", err)
	}
	g := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "clash", Help: "x"}, nil)
	if err := registerOrReuse(reg, &g); err == nil {
		t.Error("expected error for incompatible collector type")
	}
}
