package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds the rhokp configuration: the portal client plus the
// adapters (HTTP, MCP, LLM) built on top of it.
type Config struct {
	OKP     OKPConfig     `yaml:"okp"`
	Cache   CacheConfig   `yaml:"cache"`
	Local   LocalConfig   `yaml:"local"`
	HTTP    HTTPConfig    `yaml:"http"`
	MCP     MCPConfig     `yaml:"mcp"`
	Auth    AuthConfig    `yaml:"auth"`
	LLM     LLMConfig     `yaml:"llm"`
	Logging LoggingConfig `yaml:"logging"`
}

// OKPConfig holds portal connection and resilience settings.
type OKPConfig struct {
	BaseURL string `yaml:"base_url"`
	Handler string `yaml:"solr_handler"`
	Rows    int    `yaml:"rows"`

	ConnectTimeout Duration `yaml:"timeout_connect"`
	ReadTimeout    Duration `yaml:"timeout_read"`
	PoolTimeout    Duration `yaml:"timeout_pool"`
	PoolSize       int      `yaml:"pool_size"`

	VerifySSL string `yaml:"verify_ssl"` // "true", "false" или путь к CA bundle
	AuthToken string `yaml:"auth_token"`

	Retries          int      `yaml:"retries"`
	RetryMaxAttempts int      `yaml:"retry_max_attempts"` // перекрывает retries, если > 0
	BackoffBase      Duration `yaml:"retry_backoff_base"`
	BackoffMax       Duration `yaml:"retry_backoff_max"`

	BreakerThreshold int      `yaml:"circuit_failure_threshold"`
	BreakerCooldown  Duration `yaml:"circuit_reset_timeout"`

	CacheTTL        Duration `yaml:"cache_ttl"`
	CacheMaxEntries int      `yaml:"cache_max_entries"`

	MaxQueryLength   int  `yaml:"max_query_length"`
	MaxContextTokens int  `yaml:"max_context_tokens"`
	MaxContextChars  int  `yaml:"max_context_chars"` // legacy, ~4 chars per token
	ExpandSynonyms   bool `yaml:"expand_synonyms"`
}

// CacheConfig selects the response-cache store.
type CacheConfig struct {
	Driver   string   `yaml:"driver"` // memory (default), valkey, redis
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
}

// LocalConfig points at a JSONL export served by the embedded index instead of the portal.
type LocalConfig struct {
	Index string `yaml:"index"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// MCPConfig holds MCP server settings.
type MCPConfig struct {
	Transport string `yaml:"transport"` // stdio, http
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LLMConfig configures the answer generator.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic, gemini
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Cache drivers.
const (
	CacheMemory = "memory"
	CacheValkey = "valkey"
	CacheRedis  = "redis"
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// Without a config/<env>.yaml file the built-in defaults are used.
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)
	if configPath == "" {
		return parse(defaultsYAML)
	}
	return LoadFile(configPath)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return parse(data)
}

// FromEnv builds configuration from the built-in defaults and RHOKP_* environment variables.
func FromEnv() (Config, error) {
	return parse(defaultsYAML)
}

func parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	d := domain.DefaultConfig()
	o := &c.OKP
	if o.BaseURL == "" {
		o.BaseURL = d.BaseURL
	}
	if o.Handler == "" {
		o.Handler = d.Handler
	}
	if o.Rows <= 0 {
		o.Rows = d.Rows
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = Duration(d.ConnectTimeout)
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = Duration(d.ReadTimeout)
	}
	if o.PoolTimeout <= 0 {
		o.PoolTimeout = Duration(d.PoolTimeout)
	}
	if o.PoolSize <= 0 {
		o.PoolSize = d.PoolSize
	}
	if o.VerifySSL == "" {
		o.VerifySSL = "true"
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = Duration(d.BackoffBase)
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = Duration(d.BackoffMax)
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = Duration(d.BreakerCool)
	}
	if o.CacheMaxEntries <= 0 {
		o.CacheMaxEntries = d.CacheMaxEntries
	}
	if o.MaxQueryLength <= 0 {
		o.MaxQueryLength = d.MaxQueryLength
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheMemory
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.MCP.Transport == "" {
		c.MCP.Transport = "stdio"
	}
	if c.MCP.Port <= 0 {
		c.MCP.Port = 8010
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1024
	}
	c.Auth.APIKeys = nonEmpty(c.Auth.APIKeys)
	c.Cache.Addrs = nonEmpty(c.Cache.Addrs)
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.MCP.Port <= 0 || c.MCP.Port > 65535 {
		return fmt.Errorf("mcp.port must be between 1 and 65535, got %d", c.MCP.Port)
	}
	switch c.MCP.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("mcp.transport must be \"stdio\" or \"http\", got %q", c.MCP.Transport)
	}
	switch c.Cache.Driver {
	case CacheMemory:
	case CacheValkey, CacheRedis:
		if len(c.Cache.Addrs) == 0 {
			return errors.New("cache.addrs is required for the " + c.Cache.Driver + " driver")
		}
	default:
		return fmt.Errorf("cache.driver must be memory, valkey or redis, got %q", c.Cache.Driver)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider must be openai, anthropic or gemini, got %q", c.LLM.Provider)
	}
	if _, err := c.ToClientConfig(); err != nil {
		return fmt.Errorf("okp: %w", err)
	}
	return nil
}

// ToClientConfig converts the okp section into a validated client configuration.
func (c *Config) ToClientConfig() (domain.Config, error) {
	o := c.OKP
	cfg := domain.Config{
		BaseURL:         o.BaseURL,
		Handler:         o.Handler,
		Rows:            o.Rows,
		ConnectTimeout:  time.Duration(o.ConnectTimeout),
		ReadTimeout:     time.Duration(o.ReadTimeout),
		PoolTimeout:     time.Duration(o.PoolTimeout),
		PoolSize:        o.PoolSize,
		AuthToken:       o.AuthToken,
		MaxRetries:      o.Retries,
		BackoffBase:     time.Duration(o.BackoffBase),
		BackoffMax:      time.Duration(o.BackoffMax),
		BreakerLimit:    o.BreakerThreshold,
		BreakerCool:     time.Duration(o.BreakerCooldown),
		CacheTTL:        time.Duration(o.CacheTTL),
		CacheMaxEntries: o.CacheMaxEntries,
		MaxQueryLength:  o.MaxQueryLength,
		MaxTokens:       o.MaxContextTokens,
		ExpandSynonyms:  o.ExpandSynonyms,
	}
	if o.RetryMaxAttempts > 0 {
		cfg.MaxRetries = o.RetryMaxAttempts
	}
	if cfg.MaxTokens == 0 && o.MaxContextChars > 0 {
		cfg.MaxTokens = (o.MaxContextChars + 3) / 4
	}
	cfg.TLSMode, cfg.CABundlePath = tlsMode(o.VerifySSL)
	if err := cfg.Validate(); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// tlsMode maps the verify_ssl setting: booleans toggle verification, anything else is a CA bundle path.
func tlsMode(v string) (domain.TLSMode, string) {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "true", "1", "yes":
		return domain.TLSVerify, ""
	case "false", "0", "no":
		return domain.TLSSkipVerify, ""
	}
	return domain.TLSCABundle, v
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Duration accepts Go duration strings ("500ms", "30s") or bare numbers of seconds ("5", "2.5").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" {
		*d = 0
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
			return fmt.Errorf("line %d: invalid duration %q", value.Line, s)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// findConfigPath locates the config file; "" when none exists.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
