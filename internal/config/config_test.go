package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crimson-sun/pricelog/internal/engine"
)

var envKeys = []string{
	"PRICELOG_CONNECTOR", "PRICELOG_API_KEY", "PRICELOG_ENDPOINT",
	"PRICELOG_HTTP_PATH_PREFIX", "PRICELOG_HTTP_TIMEOUT", "PRICELOG_FILE_COMPRESSION",
	"PRICELOG_MIN_ROUND", "PRICELOG_MAX_ROUND", "PRICELOG_MIN_NODE", "PRICELOG_MAX_NODE",
	"PRICELOG_INSTANCE_FILTER", "PRICELOG_AGGREGATE", "PRICELOG_LINE_LIMIT",
	"PRICELOG_BEST_BOUND", "PRICELOG_MAX_LINE_BYTES",
	"PRICELOG_OUTPUT", "PRICELOG_VERBOSITY", "PRICELOG_OUTPUT_PRETTY",
	"PRICELOG_OUTPUT_FILE", "PRICELOG_OUTPUT_ENCODING", "PRICELOG_OUTPUT_MAX_SIZE",
	"PRICELOG_SQLITE_PATH", "PRICELOG_WEBHOOK_URL",
	"PRICELOG_OUTPUT_ASYNC", "PRICELOG_OUTPUT_ASYNC_BUFFER",
	"PRICELOG_LOG_LEVEL", "PRICELOG_LOG_FORMAT",
}

// clearEnv unsets every pricelog variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Connector.Provider != "file" {
		t.Fatalf("expected default provider 'file', got %q", cfg.Connector.Provider)
	}
	if cfg.Connector.Extra != nil {
		t.Fatalf("expected nil Extra when no provider vars set, got %v", cfg.Connector.Extra)
	}
	if cfg.Engine.LineLimit != engine.DefaultLineLimit {
		t.Fatalf("expected default LineLimit=%d, got %d", engine.DefaultLineLimit, cfg.Engine.LineLimit)
	}
	if cfg.Engine.MaxLineBytes != DefaultMaxLineBytes {
		t.Fatalf("expected default MaxLineBytes, got %d", cfg.Engine.MaxLineBytes)
	}
	if cfg.Output.Pretty {
		t.Fatal("expected default Pretty=false")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRICELOG_MIN_ROUND", "2")
	t.Setenv("PRICELOG_MAX_ROUND", "40")
	t.Setenv("PRICELOG_INSTANCE_FILTER", "N1C1, ,gap_")
	t.Setenv("PRICELOG_AGGREGATE", "true")
	t.Setenv("PRICELOG_LINE_LIMIT", "5000")
	t.Setenv("PRICELOG_OUTPUT", "stdout,sqlite")
	t.Setenv("PRICELOG_SQLITE_PATH", "/tmp/runs.db")
	t.Setenv("PRICELOG_FILE_COMPRESSION", "gzip")

	cfg := Load()

	if cfg.Engine.MinRound != 2 || cfg.Engine.MaxRound != 40 {
		t.Fatalf("round window = [%d,%d], want [2,40]", cfg.Engine.MinRound, cfg.Engine.MaxRound)
	}
	if got := strings.Join(cfg.Engine.InstanceFilter, "|"); got != "N1C1|gap_" {
		t.Fatalf("InstanceFilter = %q", got)
	}
	if !cfg.Engine.Aggregate {
		t.Fatal("expected Aggregate=true")
	}
	if got := cfg.Outputs(); len(got) != 2 || got[1] != "sqlite" {
		t.Fatalf("Outputs() = %v", got)
	}
	if cfg.Connector.Extra["compression"] != "gzip" {
		t.Fatalf("expected compression extra, got %v", cfg.Connector.Extra)
	}

	opts := cfg.EngineOptions()
	if opts.LineLimit != 5000 || !opts.Aggregate || opts.MaxRound != 40 {
		t.Fatalf("EngineOptions() = %+v", opts)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRICELOG_LINE_LIMIT", "lots")
	t.Setenv("PRICELOG_AGGREGATE", "maybe")

	cfg := Load()
	if cfg.Engine.LineLimit != engine.DefaultLineLimit {
		t.Fatalf("expected fallback LineLimit, got %d", cfg.Engine.LineLimit)
	}
	if cfg.Engine.Aggregate {
		t.Fatal("expected fallback Aggregate=false")
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "pricelog.yaml")
	data := `
engine:
  min_node: 1
  max_node: 1
  best_bound: true
  instance_filter: [bpp]
output:
  format: file
  file_path: out.ndjson
  file_encoding: cbor
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRICELOG_LOG_LEVEL", "warn")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if !cfg.Engine.BestBound || cfg.Engine.MaxNode != 1 {
		t.Fatalf("engine section not loaded: %+v", cfg.Engine)
	}
	if cfg.Engine.LineLimit != engine.DefaultLineLimit {
		t.Fatalf("unset keys should keep defaults, LineLimit=%d", cfg.Engine.LineLimit)
	}
	if cfg.Output.FileEncoding != "cbor" {
		t.Fatalf("FileEncoding = %q", cfg.Output.FileEncoding)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("env should override file, Level=%q", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("engine: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Engine.MinRound = 10
	cfg.Engine.MaxRound = 5
	cfg.Engine.LineLimit = -1
	cfg.Output.Format = "file,webhook,kafka"
	cfg.Output.Verbosity = "full"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"max_round 5 is below min_round 10",
		"line_limit must be >= 0",
		"unknown verbosity \"full\"",
		"file output requires file_path",
		"webhook output requires webhook_url",
		"unknown output \"kafka\"",
		"unknown log format \"xml\"",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
