package rhokp

import (
	"context"

	"github.com/kailas-cloud/rhokp/internal/domain"
	healthuc "github.com/kailas-cloud/rhokp/internal/usecase/health"
)

// Health statuses.
const (
	HealthOK       = string(healthuc.Healthy)
	HealthDegraded = string(healthuc.Degraded)
	HealthError    = string(healthuc.Unhealthy)
)

// HealthStatus represents the aggregated client health.
type HealthStatus struct {
	Status            string            `json:"status"` // "ok", "degraded", "error"
	Checks            map[string]string `json:"checks"` // component → "ok"/"error"
	NumIndexed        int               `json:"num_indexed"`
	ProductsAvailable int               `json:"products_available"`
	Breaker           string            `json:"circuit_breaker"`
	BreakerFailures   int               `json:"circuit_breaker_failures"`
	BaseURL           string            `json:"base_url"`
	Handler           string            `json:"handler"`
	// Error describes the backend failure when Status is "error".
	Error string `json:"error,omitempty"`
	// ErrorKind is the Kind of the backend failure.
	ErrorKind string `json:"error_kind,omitempty"`
}

// OK reports whether every component is healthy.
func (h *HealthStatus) OK() bool { return h.Status == HealthOK }

// Health probes the backend directly, bypassing the cache and the breaker.
// A failing backend is reported in the status, not as an error; the only
// error is ErrClientClosed.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	if c.svc.Closed() {
		return nil, domain.Validation("health", domain.ErrClientClosed)
	}
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	hs := &HealthStatus{
		Status:            string(report.Status),
		Checks:            checks,
		NumIndexed:        report.NumIndexed,
		ProductsAvailable: report.ProductsAvailable,
		Breaker:           report.Breaker.String(),
		BreakerFailures:   report.BreakerFailures,
		BaseURL:           report.BaseURL,
		Handler:           report.Handler,
	}
	if report.Error != nil {
		hs.Error = report.Error.Error()
		if k := domain.KindOf(report.Error); k != 0 {
			hs.ErrorKind = k.String()
		}
	}
	return hs, nil
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
