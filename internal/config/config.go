package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/pricelog/internal/engine"
)

// Config holds all pricelog configuration.
type Config struct {
	Connector ConnectorConfig `yaml:"connector"`
	Engine    EngineConfig    `yaml:"engine"`
	Output    OutputConfig    `yaml:"output"`
	Log       LogConfig       `yaml:"log"`
}

// ConnectorConfig holds transcript source settings.
type ConnectorConfig struct {
	Provider string            `yaml:"provider"` // "file", "stdin", "http"
	APIKey   string            `yaml:"api_key"`
	Endpoint string            `yaml:"endpoint"`
	Extra    map[string]string `yaml:"extra"`
}

// EngineConfig holds the session filters and limits.
type EngineConfig struct {
	MinRound       int      `yaml:"min_round"`
	MaxRound       int      `yaml:"max_round"`
	MinNode        int      `yaml:"min_node"`
	MaxNode        int      `yaml:"max_node"`
	InstanceFilter []string `yaml:"instance_filter"`
	Aggregate      bool     `yaml:"aggregate"`
	LineLimit      int      `yaml:"line_limit"`
	BestBound      bool     `yaml:"best_bound"`
	MaxLineBytes   int      `yaml:"max_line_bytes"`
}

// OutputConfig holds output destination settings.
type OutputConfig struct {
	Format       string `yaml:"format"`    // comma-separated: "stdout", "file", "sqlite", "webhook"
	Verbosity    string `yaml:"verbosity"` // "minimal", "standard"
	Pretty       bool   `yaml:"pretty"`
	FilePath     string `yaml:"file_path"`
	FileEncoding string `yaml:"file_encoding"` // "json", "cbor"
	FileMaxSize  int64  `yaml:"file_max_size"`
	SQLitePath   string `yaml:"sqlite_path"`
	WebhookURL   string `yaml:"webhook_url"`
	Async        bool   `yaml:"async"`
	AsyncBuffer  int    `yaml:"async_buffer"`
}

// LogConfig holds diagnostic logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console", "json"
}

// DefaultMaxLineBytes bounds the length of a single transcript line.
const DefaultMaxLineBytes = 1 << 20

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Connector: ConnectorConfig{Provider: "file"},
		Engine: EngineConfig{
			LineLimit:    engine.DefaultLineLimit,
			MaxLineBytes: DefaultMaxLineBytes,
		},
		Output: OutputConfig{
			Format:       "stdout",
			Verbosity:    "standard",
			FileEncoding: "json",
			AsyncBuffer:  1024,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Default()
	applyEnv(&cfg)
	return cfg
}

// LoadFile reads a YAML config file over the defaults. Environment
// variables take precedence over the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	c := &cfg.Connector
	c.Provider = getenv("PRICELOG_CONNECTOR", c.Provider)
	c.APIKey = getenv("PRICELOG_API_KEY", c.APIKey)
	c.Endpoint = getenv("PRICELOG_ENDPOINT", c.Endpoint)
	c.Extra = loadConnectorExtra(c.Extra)

	e := &cfg.Engine
	e.MinRound = getenvInt("PRICELOG_MIN_ROUND", e.MinRound)
	e.MaxRound = getenvInt("PRICELOG_MAX_ROUND", e.MaxRound)
	e.MinNode = getenvInt("PRICELOG_MIN_NODE", e.MinNode)
	e.MaxNode = getenvInt("PRICELOG_MAX_NODE", e.MaxNode)
	e.InstanceFilter = getenvList("PRICELOG_INSTANCE_FILTER", e.InstanceFilter)
	e.Aggregate = getenvBool("PRICELOG_AGGREGATE", e.Aggregate)
	e.LineLimit = getenvInt("PRICELOG_LINE_LIMIT", e.LineLimit)
	e.BestBound = getenvBool("PRICELOG_BEST_BOUND", e.BestBound)
	e.MaxLineBytes = getenvInt("PRICELOG_MAX_LINE_BYTES", e.MaxLineBytes)

	o := &cfg.Output
	o.Format = getenv("PRICELOG_OUTPUT", o.Format)
	o.Verbosity = getenv("PRICELOG_VERBOSITY", o.Verbosity)
	o.Pretty = getenvBool("PRICELOG_OUTPUT_PRETTY", o.Pretty)
	o.FilePath = getenv("PRICELOG_OUTPUT_FILE", o.FilePath)
	o.FileEncoding = getenv("PRICELOG_OUTPUT_ENCODING", o.FileEncoding)
	o.FileMaxSize = int64(getenvInt("PRICELOG_OUTPUT_MAX_SIZE", int(o.FileMaxSize)))
	o.SQLitePath = getenv("PRICELOG_SQLITE_PATH", o.SQLitePath)
	o.WebhookURL = getenv("PRICELOG_WEBHOOK_URL", o.WebhookURL)
	o.Async = getenvBool("PRICELOG_OUTPUT_ASYNC", o.Async)
	o.AsyncBuffer = getenvInt("PRICELOG_OUTPUT_ASYNC_BUFFER", o.AsyncBuffer)

	cfg.Log.Level = getenv("PRICELOG_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("PRICELOG_LOG_FORMAT", cfg.Log.Format)
}

// Outputs returns the configured output names in order.
func (c Config) Outputs() []string {
	var names []string
	for _, f := range strings.Split(c.Output.Format, ",") {
		if f = strings.TrimSpace(f); f != "" {
			names = append(names, f)
		}
	}
	return names
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	e := c.Engine
	if e.MinRound < 0 || e.MaxRound < 0 || e.MinNode < 0 || e.MaxNode < 0 {
		errs = append(errs, errors.New("round and node bounds must be >= 0"))
	}
	if e.MaxRound > 0 && e.MaxRound < e.MinRound {
		errs = append(errs, fmt.Errorf("max_round %d is below min_round %d", e.MaxRound, e.MinRound))
	}
	if e.MaxNode > 0 && e.MaxNode < e.MinNode {
		errs = append(errs, fmt.Errorf("max_node %d is below min_node %d", e.MaxNode, e.MinNode))
	}
	if e.LineLimit < 0 {
		errs = append(errs, fmt.Errorf("line_limit must be >= 0, got %d", e.LineLimit))
	}
	if e.MaxLineBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_line_bytes must be > 0, got %d", e.MaxLineBytes))
	}

	o := c.Output
	switch o.Verbosity {
	case "minimal", "standard":
	default:
		errs = append(errs, fmt.Errorf("unknown verbosity %q", o.Verbosity))
	}
	outputs := c.Outputs()
	if len(outputs) == 0 {
		errs = append(errs, errors.New("no output configured"))
	}
	for _, name := range outputs {
		switch name {
		case "stdout":
		case "file":
			if o.FilePath == "" {
				errs = append(errs, errors.New("file output requires file_path"))
			}
			if o.FileEncoding != "json" && o.FileEncoding != "cbor" {
				errs = append(errs, fmt.Errorf("unknown file encoding %q", o.FileEncoding))
			}
		case "sqlite":
			if o.SQLitePath == "" {
				errs = append(errs, errors.New("sqlite output requires sqlite_path"))
			}
		case "webhook":
			if o.WebhookURL == "" {
				errs = append(errs, errors.New("webhook output requires webhook_url"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown output %q", name))
		}
	}
	if o.Async && o.AsyncBuffer <= 0 {
		errs = append(errs, fmt.Errorf("async_buffer must be > 0, got %d", o.AsyncBuffer))
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// EngineOptions converts the engine section into session options.
func (c Config) EngineOptions() engine.Options {
	e := c.Engine
	return engine.Options{
		MinRound:       e.MinRound,
		MaxRound:       e.MaxRound,
		MinNode:        e.MinNode,
		MaxNode:        e.MaxNode,
		InstanceFilter: e.InstanceFilter,
		Aggregate:      e.Aggregate,
		LineLimit:      e.LineLimit,
		BestBound:      e.BestBound,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConnectorExtra reads provider-specific env vars into an Extra map.
func loadConnectorExtra(m map[string]string) map[string]string {
	vars := []struct {
		envVar   string
		extraKey string
	}{
		{"PRICELOG_HTTP_PATH_PREFIX", "path_prefix"},
		{"PRICELOG_HTTP_TIMEOUT", "timeout"},
		{"PRICELOG_FILE_COMPRESSION", "compression"},
	}

	for _, v := range vars {
		if val := os.Getenv(v.envVar); val != "" {
			if m == nil {
				m = make(map[string]string)
			}
			m[v.extraKey] = val
		}
	}
	return m
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getenvList splits a comma-separated variable, dropping empty items.
func getenvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
