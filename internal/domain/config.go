package domain

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

// TLSMode selects how the backend certificate is verified.
type TLSMode string

const (
	// TLSVerify uses the system roots.
	TLSVerify TLSMode = "verify"
	// TLSSkipVerify disables verification (self-signed lab portals).
	TLSSkipVerify TLSMode = "skip"
	// TLSCABundle verifies against Config.CABundlePath.
	TLSCABundle TLSMode = "ca-bundle"
)

// Row limits accepted by the portal handler.
const (
	MinRows = 1
	MaxRows = 100
)

// Config holds the client's connection and behaviour parameters.
// Build with DefaultConfig, adjust, then Validate; the client keeps its own copy.
type Config struct {
	BaseURL string
	Handler string
	Rows    int

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	PoolTimeout    time.Duration
	PoolSize       int

	TLSMode      TLSMode
	CABundlePath string
	AuthToken    string

	MaxRetries   int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	BreakerLimit int // consecutive failures before opening; 0 disables
	BreakerCool  time.Duration

	CacheTTL        time.Duration // 0 disables
	CacheMaxEntries int

	MaxQueryLength int
	MaxTokens      int // context budget; 0 means unlimited
	ExpandSynonyms bool
}

// DefaultConfig returns the defaults used by the portal deployment.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://127.0.0.1:8080",
		Handler:         "/solr/portal/select",
		Rows:            5,
		ConnectTimeout:  5 * time.Second,
		ReadTimeout:     25 * time.Second,
		PoolTimeout:     10 * time.Second,
		PoolSize:        10,
		TLSMode:         TLSVerify,
		MaxRetries:      2,
		BackoffBase:     500 * time.Millisecond,
		BackoffMax:      8 * time.Second,
		BreakerLimit:    5,
		BreakerCool:     30 * time.Second,
		CacheMaxEntries: 256,
		MaxQueryLength:  10000,
	}
}

// Validate rejects any value the client cannot run with.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BaseURL)
	switch {
	case c.BaseURL == "":
		errs = append(errs, errors.New("base url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("base url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https", u.Host == "":
		errs = append(errs, fmt.Errorf("base url %q must be an absolute http(s) url", c.BaseURL))
	}
	if c.Handler == "" || c.Handler[0] != '/' {
		errs = append(errs, fmt.Errorf("handler %q must start with /", c.Handler))
	}
	if c.Rows < MinRows || c.Rows > MaxRows {
		errs = append(errs, fmt.Errorf("rows must be in [%d, %d], got %d", MinRows, MaxRows, c.Rows))
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"connect timeout", c.ConnectTimeout},
		{"read timeout", c.ReadTimeout},
		{"pool timeout", c.PoolTimeout},
	} {
		if t.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", t.name, t.d))
		}
	}
	if c.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("pool size must be positive, got %d", c.PoolSize))
	}
	switch c.TLSMode {
	case TLSVerify, TLSSkipVerify:
	case TLSCABundle:
		if _, err := os.Stat(c.CABundlePath); err != nil {
			errs = append(errs, fmt.Errorf("ca bundle: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tls mode %q", c.TLSMode))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries))
	}
	if c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase {
		errs = append(errs, fmt.Errorf("backoff must satisfy 0 < base (%s) <= max (%s)", c.BackoffBase, c.BackoffMax))
	}
	if c.BreakerLimit < 0 {
		errs = append(errs, fmt.Errorf("breaker threshold must be >= 0, got %d", c.BreakerLimit))
	}
	if c.BreakerLimit > 0 && c.BreakerCool <= 0 {
		errs = append(errs, fmt.Errorf("breaker cooldown must be positive, got %s", c.BreakerCool))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("cache ttl must be >= 0, got %s", c.CacheTTL))
	}
	if c.CacheTTL > 0 && c.CacheMaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("cache max entries must be positive, got %d", c.CacheMaxEntries))
	}
	if c.MaxQueryLength <= 0 {
		errs = append(errs, fmt.Errorf("max query length must be positive, got %d", c.MaxQueryLength))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max tokens must be >= 0, got %d", c.MaxTokens))
	}
	if len(errs) > 0 {
		return Validation("config", fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...)))
	}
	return nil
}

// SearchURL joins the base url and handler path.
func (c Config) SearchURL() string {
	base := c.BaseURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + c.Handler
}
