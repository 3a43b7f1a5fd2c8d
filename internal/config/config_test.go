package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atlasbank/mailtriage/internal/core/domain"
)

// Point CONFIG_PATH at an empty file so a stray config.yaml in the working
// directory never leaks into the test.
func isolateConfig(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("Failed to write empty config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	for _, key := range []string{
		"REST_API_PORT", "REST_API_AUTH_TOKEN", "DATABASE_URL",
		"LLM_API_URL", "LLM_API_KEY", "LLM_MODEL", "LLM_PROVIDER", "LLM_CLASSIFIER_ENABLED",
		"LLM_CIRCUIT_BREAKER_ENABLED", "LLM_CIRCUIT_BREAKER_MAX_FAILURES", "LLM_CIRCUIT_BREAKER_TIMEOUT_SECONDS",
		"LLM_RETRY_MAX_ATTEMPTS", "LLM_RETRY_INITIAL_INTERVAL_MS", "LLM_RETRY_MAX_INTERVAL_MS",
		"SLACK_BOT_TOKEN", "SLACK_CHANNEL_TRIAGE", "SLACK_MENTION_TEAM",
		"KAFKA_BROKERS", "KAFKA_DECISIONS_TOPIC", "ROUTING_THRESHOLD",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolateConfig(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Scoring.Threshold != 80 {
		t.Errorf("Expected default threshold 80, got %d", cfg.Scoring.Threshold)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("Expected default provider openai, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Enabled {
		t.Error("Expected classification disabled by default")
	}
	if cfg.Retention.TTL != 72*time.Hour {
		t.Errorf("Expected default TTL 72h, got %v", cfg.Retention.TTL)
	}
	if cfg.Retention.PurgeSchedule != "@hourly" {
		t.Errorf("Expected default purge schedule @hourly, got %s", cfg.Retention.PurgeSchedule)
	}
	if cfg.Kafka.Enabled {
		t.Error("Expected Kafka disabled by default")
	}

	resilience := cfg.LLM.Resilience
	if !resilience.CircuitBreaker || resilience.MaxFailures != 5 {
		t.Errorf("Unexpected default breaker settings: %+v", resilience)
	}
	if resilience.MaxRetries != 3 || resilience.RetryBaseDelay != 500*time.Millisecond || resilience.RetryMaxDelay != 5*time.Second {
		t.Errorf("Unexpected default retry settings: %+v", resilience)
	}
	if resilience.BreakerCooldown != 30*time.Second {
		t.Errorf("Expected 30s breaker cooldown, got %v", resilience.BreakerCooldown)
	}
}

func TestLoadResilienceOverrides(t *testing.T) {
	isolateConfig(t)
	t.Setenv("LLM_CIRCUIT_BREAKER_ENABLED", "false")
	t.Setenv("LLM_CIRCUIT_BREAKER_MAX_FAILURES", "10")
	t.Setenv("LLM_CIRCUIT_BREAKER_TIMEOUT_SECONDS", "60")
	t.Setenv("LLM_RETRY_MAX_ATTEMPTS", "1")
	t.Setenv("LLM_RETRY_INITIAL_INTERVAL_MS", "100")
	t.Setenv("LLM_RETRY_MAX_INTERVAL_MS", "2000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	resilience := cfg.LLM.Resilience
	if resilience.CircuitBreaker {
		t.Error("Expected breaker disabled by override")
	}
	if resilience.MaxFailures != 10 || resilience.BreakerCooldown != 60*time.Second {
		t.Errorf("Unexpected breaker overrides: %+v", resilience)
	}
	if resilience.MaxRetries != 1 || resilience.RetryBaseDelay != 100*time.Millisecond || resilience.RetryMaxDelay != 2*time.Second {
		t.Errorf("Unexpected retry overrides: %+v", resilience)
	}
}

func TestLoadRejectsNegativeRetries(t *testing.T) {
	isolateConfig(t)
	t.Setenv("LLM_RETRY_MAX_ATTEMPTS", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for negative retry attempts")
	}
}

func TestLoadMissingExplicitConfig(t *testing.T) {
	isolateConfig(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "no-such-config.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("Expected error when CONFIG_PATH points at a missing file")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	isolateConfig(t)

	content := `
server:
  port: "9090"
scoring:
  threshold: 65
llm:
  provider: anthropic
  model: claude-sonnet-4-20250514
retention:
  ttl: 24h
  purge_schedule: "@every 30m"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Scoring.Threshold != 65 {
		t.Errorf("Expected threshold 65, got %d", cfg.Scoring.Threshold)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("Expected provider anthropic, got %s", cfg.LLM.Provider)
	}
	if cfg.Retention.TTL != 24*time.Hour {
		t.Errorf("Expected TTL 24h, got %v", cfg.Retention.TTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolateConfig(t)
	t.Setenv("REST_API_PORT", "3000")
	t.Setenv("ROUTING_THRESHOLD", "90")
	t.Setenv("LLM_CLASSIFIER_ENABLED", "true")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Expected port 3000, got %s", cfg.Server.Port)
	}
	if cfg.Scoring.Threshold != 90 {
		t.Errorf("Expected threshold 90, got %d", cfg.Scoring.Threshold)
	}
	if !cfg.LLM.Enabled {
		t.Error("Expected classification enabled")
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Expected 2 Kafka brokers enabled, got %v (enabled=%v)", cfg.Kafka.Brokers, cfg.Kafka.Enabled)
	}
}

func TestLoadInvalidThreshold(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Above range", "101"},
		{"Below range", "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfig(t)
			t.Setenv("ROUTING_THRESHOLD", tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("Expected validation error")
			}

			var thresholdErr *domain.InvalidThresholdError
			if !errors.As(err, &thresholdErr) {
				t.Errorf("Expected InvalidThresholdError, got %T: %v", err, err)
			}
		})
	}

	t.Run("Not a number", func(t *testing.T) {
		isolateConfig(t)
		t.Setenv("ROUTING_THRESHOLD", "eighty")
		if _, err := Load(); err == nil {
			t.Fatal("Expected parse error")
		}
	})
}

func TestLoadInvalidProvider(t *testing.T) {
	isolateConfig(t)
	t.Setenv("LLM_PROVIDER", "bedrock")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for unknown provider")
	}
}

func TestBuildCatalogDefault(t *testing.T) {
	cfg := &Config{}

	catalog, err := cfg.BuildCatalog()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if catalog.Len() != 6 {
		t.Errorf("Expected default catalog with 6 entries, got %d", catalog.Len())
	}
}

func TestBuildCatalogOverride(t *testing.T) {
	cfg := &Config{
		Scoring: ScoringConfig{
			Catalog: []CatalogEntry{
				{Name: "vip_customer", Points: -40},
				{Name: "attachment", Points: -5, Mode: "per_unit"},
			},
		},
	}

	catalog, err := cfg.BuildCatalog()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if catalog.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", catalog.Len())
	}

	entries := catalog.Entries()
	if entries[0].Mode != domain.Flat {
		t.Errorf("Expected empty mode to default to flat, got %s", entries[0].Mode)
	}
	if entries[1].Mode != domain.PerUnit {
		t.Errorf("Expected per_unit mode, got %s", entries[1].Mode)
	}
}

func TestBuildCatalogInvalidOverride(t *testing.T) {
	cfg := &Config{
		Scoring: ScoringConfig{
			Catalog: []CatalogEntry{
				{Name: "dup", Points: -10},
				{Name: "dup", Points: -20},
			},
		},
	}

	if _, err := cfg.BuildCatalog(); err == nil {
		t.Fatal("Expected error for duplicate catalog entries")
	}
}
