package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Search.Backend != BackendSynthetic {
		t.Errorf("expected synthetic backend, got %s", cfg.Search.Backend)
	}
	if cfg.Search.PollInterval != 1500*time.Millisecond {
		t.Errorf("expected poll interval 1.5s, got %v", cfg.Search.PollInterval)
	}
	if cfg.Search.PollTimeout != 20*time.Second {
		t.Errorf("expected poll timeout 20s, got %v", cfg.Search.PollTimeout)
	}
	if cfg.Search.PageSize != 5 {
		t.Errorf("expected page size 5, got %d", cfg.Search.PageSize)
	}
	if cfg.Search.Retry.MaxAttempts != 2 {
		t.Errorf("expected max attempts 2, got %d", cfg.Search.Retry.MaxAttempts)
	}
	if cfg.Classifier.Enabled {
		t.Error("expected classifier disabled by default")
	}
	if cfg.Classifier.Timeout != 5*time.Second {
		t.Errorf("expected classifier timeout 5s, got %v", cfg.Classifier.Timeout)
	}
	if cfg.Dialog.DedupeWindow != 30*time.Second {
		t.Errorf("expected dedupe window 30s, got %v", cfg.Dialog.DedupeWindow)
	}
	if cfg.Dialog.CollectionMaxTours != 10 {
		t.Errorf("expected collection max tours 10, got %d", cfg.Dialog.CollectionMaxTours)
	}
	if cfg.Dialog.DefaultAdults != 2 {
		t.Errorf("expected default adults 2, got %d", cfg.Dialog.DefaultAdults)
	}
	if cfg.Redis.TTL.StaleFallback != 6*time.Hour {
		t.Errorf("expected stale fallback TTL 6h, got %v", cfg.Redis.TTL.StaleFallback)
	}
	if cfg.Observability.ServiceName != "tour-concierge" {
		t.Errorf("expected service name 'tour-concierge', got %s", cfg.Observability.ServiceName)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no error for default config, got %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"port too high", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Server.Port = tt.port
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected error for port %d, got nil", tt.port)
			}
		})
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Search.Backend = "mock" }},
		{"provider without url", func(c *Config) { c.Search.Backend = BackendProvider }},
		{"catalog without elasticsearch", func(c *Config) { c.Search.Backend = BackendCatalog }},
		{"redis enabled without addresses", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addresses = nil }},
		{"kafka enabled without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }},
		{"firestore without project", func(c *Config) { c.Firestore.Enabled = true }},
		{"zero page size", func(c *Config) { c.Search.PageSize = 0 }},
		{"page size above max results", func(c *Config) { c.Search.PageSize = 100 }},
		{"poll timeout below interval", func(c *Config) { c.Search.PollTimeout = time.Second }},
		{"unbounded retry", func(c *Config) { c.Search.Retry.MaxAttempts = 5 }},
		{"retry disabled", func(c *Config) { c.Search.Retry.MaxAttempts = 1 }},
		{"classifier timeout too short", func(c *Config) { c.Classifier.Enabled = true; c.Classifier.Timeout = time.Second }},
		{"classifier timeout too long", func(c *Config) { c.Classifier.Enabled = true; c.Classifier.Timeout = 30 * time.Second }},
		{"zero window", func(c *Config) { c.Dialog.WindowDays = 0 }},
		{"zero adults", func(c *Config) { c.Dialog.DefaultAdults = 0 }},
		{"redis session store without redis", func(c *Config) { c.Dialog.SessionStore = "redis" }},
		{"unknown session store", func(c *Config) { c.Dialog.SessionStore = "disk" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidate_ClassifierTimeoutBounds(t *testing.T) {
	for _, d := range []time.Duration{MinClassifierTimeout, 5 * time.Second, MaxClassifierTimeout} {
		cfg := DefaultConfig()
		cfg.Classifier.Enabled = true
		cfg.Classifier.Timeout = d
		if err := cfg.Validate(); err != nil {
			t.Errorf("timeout %v: unexpected error %v", d, err)
		}
	}
}

func TestValidate_BackendsWithRequirements(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.Backend = BackendProvider
	cfg.Provider.BaseURL = "https://provider.example"
	if err := cfg.Validate(); err != nil {
		t.Errorf("provider: unexpected error %v", err)
	}

	cfg = DefaultConfig()
	cfg.Search.Backend = BackendCatalog
	cfg.Elasticsearch.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("catalog: unexpected error %v", err)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
search:
  backend: provider
  page_size: 10
provider:
  base_url: "https://tours.example/api"
dialog:
  default_year: 2026
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Search.Backend != BackendProvider || cfg.Provider.BaseURL != "https://tours.example/api" {
		t.Errorf("unexpected provider settings: %+v %+v", cfg.Search, cfg.Provider)
	}
	if cfg.Search.PageSize != 10 {
		t.Errorf("expected page size 10, got %d", cfg.Search.PageSize)
	}
	if cfg.Dialog.DefaultYear != 2026 {
		t.Errorf("expected default year 2026, got %d", cfg.Dialog.DefaultYear)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	content := `
server:
  port: 0
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_CLASSIFIER_KEY", "sk-test")

	content := `
classifier:
  enabled: true
  api_key: "$TEST_CLASSIFIER_KEY"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Classifier.APIKey != "sk-test" {
		t.Errorf("expected expanded env var, got %s", cfg.Classifier.APIKey)
	}
}

func TestLoad_DefaultsPreservedWhenNotOverridden(t *testing.T) {
	content := `
server:
  port: 8080
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// Values not specified in YAML should keep defaults
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("expected default read timeout preserved, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Synthetic.ResultCount != 20 {
		t.Errorf("expected default synthetic result count preserved, got %d", cfg.Synthetic.ResultCount)
	}
}
