package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_WINDOW_MS", "")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "")
	t.Setenv("RATE_LIMIT_PRO_MAX_REQUESTS", "")
	t.Setenv("RATE_LIMIT_FAIL_OPEN", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("COMPLETION_TIMEOUT_MS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.RateLimit.Window != 60*time.Second {
		t.Errorf("window = %s, want 60s", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.MaxCalls != 10 {
		t.Errorf("maxCalls = %d, want 10", cfg.RateLimit.MaxCalls)
	}
	if cfg.RateLimit.ProMaxCalls != 60 {
		t.Errorf("proMaxCalls = %d, want 60", cfg.RateLimit.ProMaxCalls)
	}
	if !cfg.RateLimit.FailOpen {
		t.Error("failOpen should default to true")
	}
	if cfg.Completion.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", cfg.Completion.Model)
	}
	if cfg.Completion.RequestTimeout != 30*time.Second {
		t.Errorf("timeout = %s, want 30s", cfg.Completion.RequestTimeout)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_WINDOW_MS", "5000")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "3")
	t.Setenv("RATE_LIMIT_FAIL_OPEN", "false")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.RateLimit.Window != 5*time.Second {
		t.Errorf("window = %s, want 5s", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.MaxCalls != 3 {
		t.Errorf("maxCalls = %d, want 3", cfg.RateLimit.MaxCalls)
	}
	if cfg.RateLimit.FailOpen {
		t.Error("failOpen should be disabled")
	}
	if cfg.Completion.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", cfg.Completion.Model)
	}
}

func TestLoadConfigIgnoresGarbageValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "lots")
	t.Setenv("RATE_LIMIT_FAIL_OPEN", "maybe")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RateLimit.MaxCalls != 10 {
		t.Errorf("maxCalls = %d, want fallback 10", cfg.RateLimit.MaxCalls)
	}
	if !cfg.RateLimit.FailOpen {
		t.Error("failOpen should fall back to true")
	}
}
