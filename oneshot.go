package rhokp

import (
	"context"

	"github.com/kailas-cloud/rhokp/internal/config"
	"github.com/kailas-cloud/rhokp/internal/domain"
)

// ConfigFromEnv builds a Config from the built-in defaults overridden by
// RHOKP_* environment variables (RHOKP_BASE_URL, RHOKP_RAG_ROWS,
// RHOKP_VERIFY_SSL, RHOKP_CACHE_TTL, ...).
func ConfigFromEnv() (Config, error) {
	cfg, err := envConfig()
	if err != nil {
		return Config{}, err
	}
	return cfg.ToClientConfig()
}

func envConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		if domain.KindOf(err) == 0 {
			err = domain.Validation("config", err)
		}
		return config.Config{}, err
	}
	return cfg, nil
}

// Retrieve runs a single retrieve with a throwaway client configured from
// the environment. Prefer a long-lived Client when making several calls.
func Retrieve(ctx context.Context, query string, opts ...RetrieveOption) (*RetrieveResult, error) {
	cfg, err := envConfig()
	if err != nil {
		return nil, err
	}
	ccfg, err := cfg.ToClientConfig()
	if err != nil {
		return nil, err
	}
	clientOpts := []Option{WithConfig(ccfg)}
	if cfg.Local.Index != "" {
		clientOpts = append(clientOpts, WithLocalIndex(cfg.Local.Index))
	}
	c, err := New(clientOpts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()
	return c.Retrieve(ctx, query, opts...)
}

// RetrieveAsync is the asynchronous form of the package-level Retrieve.
func RetrieveAsync(ctx context.Context, query string, opts ...RetrieveOption) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		defer close(ch)
		res, err := Retrieve(ctx, query, opts...)
		ch <- AsyncResult{Result: res, Err: err}
	}()
	return ch
}
