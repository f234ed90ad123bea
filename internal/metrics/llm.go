package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LLM holds the answer-generator collectors. A nil *LLM records nothing.
type LLM struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
}

// NewLLM creates the generator collectors on reg.
func NewLLM(reg prometheus.Registerer) (*LLM, error) {
	m := &LLM{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Answer generation requests by provider, model and outcome.",
		}, []string{"provider", "model", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Answer generation latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		}, []string{"provider", "model"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens reported by the provider.",
		}, []string{"provider", "model", "type"}), // prompt / completion
	}
	for _, err := range []error{
		registerOrReuse(reg, &m.requestsTotal),
		registerOrReuse(reg, &m.requestDuration),
		registerOrReuse(reg, &m.tokensTotal),
	} {
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRequest records one generation call.
func (m *LLM) ObserveRequest(provider, model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.requestsTotal.WithLabelValues(provider, model, status).Inc()
	if err == nil {
		m.requestDuration.WithLabelValues(provider, model).Observe(d.Seconds())
	}
}

// AddTokens records provider-reported token usage; zero counts are skipped.
func (m *LLM) AddTokens(provider, model string, prompt, completion int) {
	if m == nil {
		return
	}
	if prompt > 0 {
		m.tokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		m.tokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completion))
	}
}
