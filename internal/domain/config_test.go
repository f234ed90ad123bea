package domain

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestConfig_Validate_FailsClosed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.BaseURL = "" }},
		{"relative url", func(c *Config) { c.BaseURL = "localhost:8080" }},
		{"ftp url", func(c *Config) { c.BaseURL = "ftp://portal" }},
		{"handler without slash", func(c *Config) { c.Handler = "solr/select" }},
		{"zero rows", func(c *Config) { c.Rows = 0 }},
		{"too many rows", func(c *Config) { c.Rows = MaxRows + 1 }},
		{"negative connect timeout", func(c *Config) { c.ConnectTimeout = -time.Second }},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"negative pool timeout", func(c *Config) { c.PoolTimeout = -1 }},
		{"zero pool size", func(c *Config) { c.PoolSize = 0 }},
		{"unknown tls mode", func(c *Config) { c.TLSMode = "maybe" }},
		{"missing ca bundle", func(c *Config) { c.TLSMode = TLSCABundle; c.CABundlePath = "/nonexistent/ca.pem" }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"backoff max below base", func(c *Config) { c.BackoffMax = c.BackoffBase / 2 }},
		{"negative breaker threshold", func(c *Config) { c.BreakerLimit = -1 }},
		{"breaker without cooldown", func(c *Config) { c.BreakerCool = 0 }},
		{"negative ttl", func(c *Config) { c.CacheTTL = -time.Second }},
		{"cache without capacity", func(c *Config) { c.CacheTTL = time.Minute; c.CacheMaxEntries = 0 }},
		{"zero max query length", func(c *Config) { c.MaxQueryLength = 0 }},
		{"negative max tokens", func(c *Config) { c.MaxTokens = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !IsKind(err, KindValidation) {
				t.Errorf("expected validation kind, got %v", KindOf(err))
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfig_BreakerDisabledNeedsNoCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakerLimit = 0
	cfg.BreakerCool = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfig_SearchURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://okp.example.com//"
	if got := cfg.SearchURL(); got != "https://okp.example.com/solr/portal/select" {
		t.Errorf("got %q", got)
	}
}
