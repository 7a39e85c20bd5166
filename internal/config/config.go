package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dshills/mindmup-mcp/internal/cache"
	"github.com/dshills/mindmup-mcp/internal/chunker"
	"github.com/dshills/mindmup-mcp/internal/extractor"
	"github.com/dshills/mindmup-mcp/internal/fetcher"
	"github.com/dshills/mindmup-mcp/internal/parser"
	"github.com/dshills/mindmup-mcp/internal/remote"
	"github.com/dshills/mindmup-mcp/internal/searcher"
	"github.com/dshills/mindmup-mcp/internal/strategy"
)

// Config holds the mindmup-mcp server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Hierarchy HierarchyConfig `yaml:"hierarchy"`
	Search    SearchConfig    `yaml:"search"`
	Parser    ParserConfig    `yaml:"parser"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig selects the MCP transport and the side HTTP listener.
type ServerConfig struct {
	Transport string `yaml:"transport" validate:"oneof=stdio sse"`
	HTTPAddr  string `yaml:"http_addr"` // empty disables the side HTTP surface under stdio
	BaseURL   string `yaml:"base_url"`  // public URL advertised by the SSE transport
}

// StoreConfig selects where documents come from.
type StoreConfig struct {
	Driver          string        `yaml:"driver" validate:"oneof=sqlite http"`
	DBPath          string        `yaml:"db_path" validate:"required_if=Driver sqlite"`
	URL             string        `yaml:"url" validate:"required_if=Driver http,omitempty,url"`
	Token           string        `yaml:"token"`
	TimeoutSec      int           `yaml:"timeout_sec" validate:"gte=0"`
	Breaker         BreakerConfig `yaml:"breaker"`
	MaxContentBytes int64         `yaml:"max_content_bytes" validate:"gte=0"`
}

// BreakerConfig tunes the circuit breaker around the HTTP store.
type BreakerConfig struct {
	MaxRequests      uint32  `yaml:"max_requests"`
	IntervalSec      int     `yaml:"interval_sec" validate:"gte=0"`
	TimeoutSec       int     `yaml:"timeout_sec" validate:"gte=0"`
	FailureThreshold float64 `yaml:"failure_threshold" validate:"gte=0,lte=1"`
	MinRequests      uint32  `yaml:"min_requests"`
}

// CacheConfig bounds the fetch cache.
type CacheConfig struct {
	TTLSec   int `yaml:"ttl_sec" validate:"gte=0"`
	Capacity int `yaml:"capacity" validate:"gte=0"`
}

// FetchConfig sizes the download worker pool.
type FetchConfig struct {
	Workers      int   `yaml:"workers" validate:"gte=0,lte=64"`
	TimeoutSec   int   `yaml:"timeout_sec" validate:"gte=0"`
	MaxFileBytes int64 `yaml:"max_file_bytes" validate:"gte=0"`
}

// DeliveryConfig holds the tier thresholds and chunking parameters, all in bytes.
type DeliveryConfig struct {
	FullLimit       int `yaml:"full_limit" validate:"gt=0,ltefield=ChunkThreshold"`
	ChunkThreshold  int `yaml:"chunk_threshold" validate:"gt=0"`
	HardCeiling     int `yaml:"hard_ceiling" validate:"gt=0"`
	ChunkSize       int `yaml:"chunk_size" validate:"gt=0,ltfield=HardCeiling"`
	Overlap         int `yaml:"overlap" validate:"gte=0,ltfield=ChunkSize"`
	ParagraphWindow int `yaml:"paragraph_window" validate:"gte=0"`
	SentenceWindow  int `yaml:"sentence_window" validate:"gte=0"`
}

// HierarchyConfig bounds structural summaries.
type HierarchyConfig struct {
	MaxDepth       int `yaml:"max_depth" validate:"gte=0"`
	MaxChildren    int `yaml:"max_children" validate:"gte=0"`
	MaxSubsections int `yaml:"max_subsections" validate:"gte=0"`
	SampleSize     int `yaml:"sample_size" validate:"gte=0"`
	MaxNodes       int `yaml:"max_nodes" validate:"gte=0"`
	MaxTitleLength int `yaml:"max_title_length" validate:"gte=0"`
}

// SearchConfig caps search and scenario results.
type SearchConfig struct {
	MaxResults   int `yaml:"max_results" validate:"gte=0"`
	MaxScenarios int `yaml:"max_scenarios" validate:"gte=0"`
}

// ParserConfig guards document parsing.
type ParserConfig struct {
	MaxDepth int `yaml:"max_depth" validate:"gte=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"` // default: determined by env
}

// Load reads configuration for env. The file is $MINDMUP_CONFIG if set,
// else config/<env>.yaml; when neither exists the defaults are used.
// Environment overrides are applied after the file.
func Load(env string) (Config, error) {
	var cfg Config

	configPath := os.Getenv("MINDMUP_CONFIG")
	if configPath == "" {
		configPath = findConfigPath(env)
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	switch {
	case err == nil:
		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist) && os.Getenv("MINDMUP_CONFIG") == "":
		// No file for this environment; run on defaults
	default:
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	cfg.applyEnv()
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

// applyEnv overrides file values with MINDMUP_* environment variables.
func (c *Config) applyEnv() {
	overrides := []struct {
		name string
		dst  *string
	}{
		{"MINDMUP_STORE_DRIVER", &c.Store.Driver},
		{"MINDMUP_DB_PATH", &c.Store.DBPath},
		{"MINDMUP_STORE_URL", &c.Store.URL},
		{"MINDMUP_STORE_TOKEN", &c.Store.Token},
		{"MINDMUP_LOG_LEVEL", &c.Logging.Level},
		{"MINDMUP_TRANSPORT", &c.Server.Transport},
		{"MINDMUP_HTTP_ADDR", &c.Server.HTTPAddr},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.name); v != "" {
			*o.dst = v
		}
	}
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Server.Transport == "" {
		c.Server.Transport = "stdio"
	}
	if c.Server.Transport == "sse" && c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}

	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.DBPath == "" {
		c.Store.DBPath = "~/.mindmup/documents.db"
	}
	if c.Store.TimeoutSec <= 0 {
		c.Store.TimeoutSec = 60
	}
	b := remote.DefaultBreakerConfig()
	if c.Store.Breaker.MaxRequests == 0 {
		c.Store.Breaker.MaxRequests = b.MaxRequests
	}
	if c.Store.Breaker.IntervalSec <= 0 {
		c.Store.Breaker.IntervalSec = int(b.Interval / time.Second)
	}
	if c.Store.Breaker.TimeoutSec <= 0 {
		c.Store.Breaker.TimeoutSec = int(b.Timeout / time.Second)
	}
	if c.Store.Breaker.FailureThreshold <= 0 {
		c.Store.Breaker.FailureThreshold = b.FailureThreshold
	}
	if c.Store.Breaker.MinRequests == 0 {
		c.Store.Breaker.MinRequests = b.MinRequests
	}

	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = int(cache.DefaultTTL / time.Second)
	}
	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = cache.DefaultCapacity
	}

	if c.Fetch.Workers <= 0 {
		c.Fetch.Workers = fetcher.DefaultWorkers
	}
	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = int(fetcher.DefaultTimeout / time.Second)
	}
	if c.Fetch.MaxFileBytes <= 0 {
		c.Fetch.MaxFileBytes = fetcher.DefaultMaxBytes
	}

	if c.Delivery.FullLimit <= 0 {
		c.Delivery.FullLimit = strategy.DefaultFullLimit
	}
	if c.Delivery.ChunkThreshold <= 0 {
		c.Delivery.ChunkThreshold = strategy.DefaultChunkThreshold
	}
	if c.Delivery.HardCeiling <= 0 {
		c.Delivery.HardCeiling = strategy.DefaultHardCeiling
	}
	if c.Delivery.ChunkSize <= 0 {
		c.Delivery.ChunkSize = chunker.DefaultChunkSize
	}
	if c.Delivery.Overlap <= 0 {
		c.Delivery.Overlap = chunker.DefaultOverlap
	}
	if c.Delivery.ParagraphWindow <= 0 {
		c.Delivery.ParagraphWindow = chunker.DefaultParagraphWindow
	}
	if c.Delivery.SentenceWindow <= 0 {
		c.Delivery.SentenceWindow = chunker.DefaultSentenceWindow
	}

	l := extractor.DefaultLimits()
	if c.Hierarchy.MaxDepth <= 0 {
		c.Hierarchy.MaxDepth = l.MaxDepth
	}
	if c.Hierarchy.MaxChildren <= 0 {
		c.Hierarchy.MaxChildren = l.MaxChildren
	}
	if c.Hierarchy.MaxSubsections <= 0 {
		c.Hierarchy.MaxSubsections = l.MaxSubsections
	}
	if c.Hierarchy.SampleSize <= 0 {
		c.Hierarchy.SampleSize = l.SampleSize
	}
	if c.Hierarchy.MaxNodes <= 0 {
		c.Hierarchy.MaxNodes = l.MaxNodes
	}
	if c.Hierarchy.MaxTitleLength <= 0 {
		c.Hierarchy.MaxTitleLength = l.MaxTitleLength
	}

	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = searcher.DefaultMaxResults
	}
	if c.Search.MaxScenarios <= 0 {
		c.Search.MaxScenarios = extractor.DefaultMaxScenarios
	}
	if c.Parser.MaxDepth <= 0 {
		c.Parser.MaxDepth = parser.DefaultMaxDepth
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml key names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")

	switch e.Tag() {
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s, got %q", field, e.Param(), e.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "ltfield":
		return fmt.Sprintf("%s must be less than %s", field, toSnake(e.Param()))
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, toSnake(e.Param()))
	case "gt", "gte", "lte":
		return fmt.Sprintf("%s must be %s %s", field, e.Tag(), e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

var upperRegex = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// toSnake converts a Go field name to its yaml key
func toSnake(s string) string {
	return strings.ToLower(upperRegex.ReplaceAllString(s, "${1}_${2}"))
}

// Component settings

// CacheTTL returns the cache entry lifetime
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

// FetcherConfig returns the download pool settings
func (c *Config) FetcherConfig() fetcher.Config {
	return fetcher.Config{
		Workers:  c.Fetch.Workers,
		Timeout:  time.Duration(c.Fetch.TimeoutSec) * time.Second,
		MaxBytes: c.Fetch.MaxFileBytes,
	}
}

// HTTPStoreConfig returns the HTTP store client settings
func (c *Config) HTTPStoreConfig() remote.HTTPConfig {
	maxBytes := c.Store.MaxContentBytes
	if maxBytes <= 0 {
		maxBytes = c.Fetch.MaxFileBytes
	}
	return remote.HTTPConfig{
		BaseURL:         c.Store.URL,
		Token:           c.Store.Token,
		Timeout:         time.Duration(c.Store.TimeoutSec) * time.Second,
		MaxContentBytes: maxBytes,
		Breaker: remote.BreakerConfig{
			MaxRequests:      c.Store.Breaker.MaxRequests,
			Interval:         time.Duration(c.Store.Breaker.IntervalSec) * time.Second,
			Timeout:          time.Duration(c.Store.Breaker.TimeoutSec) * time.Second,
			FailureThreshold: c.Store.Breaker.FailureThreshold,
			MinRequests:      c.Store.Breaker.MinRequests,
		},
	}
}

// Thresholds returns the tier thresholds
func (c *Config) Thresholds() strategy.Thresholds {
	return strategy.Thresholds{
		FullLimit:      c.Delivery.FullLimit,
		ChunkThreshold: c.Delivery.ChunkThreshold,
		HardCeiling:    c.Delivery.HardCeiling,
	}
}

// ChunkerConfig returns the chunk splitter settings
func (c *Config) ChunkerConfig() chunker.Config {
	return chunker.Config{
		ChunkSize:       c.Delivery.ChunkSize,
		Overlap:         c.Delivery.Overlap,
		ParagraphWindow: c.Delivery.ParagraphWindow,
		SentenceWindow:  c.Delivery.SentenceWindow,
	}
}

// Limits returns the hierarchy summary bounds
func (c *Config) Limits() extractor.Limits {
	return extractor.Limits{
		MaxDepth:       c.Hierarchy.MaxDepth,
		MaxChildren:    c.Hierarchy.MaxChildren,
		MaxSubsections: c.Hierarchy.MaxSubsections,
		SampleSize:     c.Hierarchy.SampleSize,
		MaxNodes:       c.Hierarchy.MaxNodes,
		MaxTitleLength: c.Hierarchy.MaxTitleLength,
	}
}

// findConfigPath locates the config file.
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

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
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
