package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" || cfg.DBDriver != "sqlite" {
		t.Fatalf("unexpected defaults: port=%q driver=%q", cfg.Port, cfg.DBDriver)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Fatalf("cache ttl = %s, want 30s", cfg.CacheTTL)
	}
	if cfg.RefreshSchedule != "@every 30s" || cfg.RefreshConcurrency != 4 {
		t.Fatalf("unexpected refresh settings: %q, %d", cfg.RefreshSchedule, cfg.RefreshConcurrency)
	}
	if cfg.ServiceVersion != "dev" || cfg.Environment != "development" || cfg.OTelSampleRatio != 1 {
		t.Fatalf("unexpected telemetry defaults: %q, %q, %v", cfg.ServiceVersion, cfg.Environment, cfg.OTelSampleRatio)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("REFRESH_CONCURRENCY", "8")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("SERVICE_VERSION", "1.4.2")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "9090" || cfg.CacheTTL != 2*time.Minute || cfg.RefreshConcurrency != 8 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("location = %s, want UTC", cfg.Location())
	}
	if got := cfg.AllowedOrigins(); len(got) != 2 || got[1] != "https://b.example.com" {
		t.Fatalf("origins = %v", got)
	}
	if cfg.ServiceVersion != "1.4.2" || cfg.OTelSampleRatio != 0.25 {
		t.Fatalf("telemetry config: version=%q ratio=%v", cfg.ServiceVersion, cfg.OTelSampleRatio)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{DBDriver: "postgres", Timezone: "Nowhere/City", RefreshConcurrency: 0, OTelSampleRatio: 2}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"DATABASE_URL", "JWT_SECRET", "TIMEZONE", "REFRESH_CONCURRENCY", "OTEL_SAMPLE_RATIO"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
