package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrieval holds the client-side collectors. A nil *Retrieval is valid and records nothing.
type Retrieval struct {
	retrieveTotal      *prometheus.CounterVec
	retrieveDuration   *prometheus.HistogramVec
	backendTotal       *prometheus.CounterVec
	backendDuration    *prometheus.HistogramVec
	retriesTotal       *prometheus.CounterVec
	cacheTotal         *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
}

// NewRetrieval creates the collectors and registers them on reg (reusing any
// already registered there).
func NewRetrieval(reg prometheus.Registerer) (*Retrieval, error) {
	m := &Retrieval{
		retrieveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieve_total",
			Help:      "Retrieve calls by outcome and error kind.",
		}, []string{"status", "kind"}),
		retrieveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieve_duration_seconds",
			Help:      "Retrieve call duration, cache hits included.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"cache"}),
		backendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend search requests by backend and outcome.",
		}, []string{"backend", "status"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend search request duration.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}, []string{"backend"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retry attempts by error kind.",
		}, []string{"kind"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Response cache lookups and stores.",
		}, []string{"result"}), // hit / miss / error / store_error
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker position (0 closed, 1 open, 2 half-open).",
		}, []string{"breaker"}),
		breakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker transitions.",
		}, []string{"breaker", "from", "to"}),
	}
	for _, err := range []error{
		registerOrReuse(reg, &m.retrieveTotal),
		registerOrReuse(reg, &m.retrieveDuration),
		registerOrReuse(reg, &m.backendTotal),
		registerOrReuse(reg, &m.backendDuration),
		registerOrReuse(reg, &m.retriesTotal),
		registerOrReuse(reg, &m.cacheTotal),
		registerOrReuse(reg, &m.breakerState),
		registerOrReuse(reg, &m.breakerTransitions),
	} {
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRetrieve records a finished retrieve call. kind is empty on success.
func (m *Retrieval) ObserveRetrieve(kind string, cached bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if kind != "" {
		status = "error"
	}
	cache := "miss"
	if cached {
		cache = "hit"
	}
	m.retrieveTotal.WithLabelValues(status, kind).Inc()
	m.retrieveDuration.WithLabelValues(cache).Observe(d.Seconds())
}

// ObserveBackend records one backend request attempt.
func (m *Retrieval) ObserveBackend(backend, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.backendTotal.WithLabelValues(backend, status).Inc()
	m.backendDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// IncRetry counts a retry scheduled after an error of the given kind.
func (m *Retrieval) IncRetry(kind string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(kind).Inc()
}

// IncCache counts a cache outcome.
func (m *Retrieval) IncCache(result string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

// SetBreakerState publishes the breaker position.
func (m *Retrieval) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// IncBreakerTransition counts a breaker transition.
func (m *Retrieval) IncBreakerTransition(name, from, to string) {
	if m == nil {
		return
	}
	m.breakerTransitions.WithLabelValues(name, from, to).Inc()
}
