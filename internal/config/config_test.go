package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Scoring.MatchThreshold != 0.50 {
		t.Errorf("expected default threshold 0.50, got %v", cfg.Scoring.MatchThreshold)
	}
	if cfg.Scoring.AcceptanceBar != 90 {
		t.Errorf("expected default acceptance bar 90, got %v", cfg.Scoring.AcceptanceBar)
	}
	if cfg.Encoder.Timeout != 10*time.Second {
		t.Errorf("expected encoder timeout 10s, got %v", cfg.Encoder.Timeout)
	}
	if cfg.Embedding.Dim != 512 {
		t.Errorf("expected default dim 512, got %d", cfg.Embedding.Dim)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "0.4")
	t.Setenv("MIN_MATCH_CONFIDENCE", "0")
	t.Setenv("ACCEPTANCE_BAR", "75.5")
	t.Setenv("ENCODER_TIMEOUT", "3s")
	t.Setenv("EMBEDDING_DIM", "128")
	t.Setenv("TIMEZONE", "Europe/Warsaw")

	cfg := Load()

	if cfg.Scoring.MatchThreshold != 0.4 {
		t.Errorf("expected threshold 0.4, got %v", cfg.Scoring.MatchThreshold)
	}
	if cfg.Scoring.MinMatchConfidence != 0 {
		t.Errorf("expected min match confidence 0, got %v", cfg.Scoring.MinMatchConfidence)
	}
	if cfg.Scoring.AcceptanceBar != 75.5 {
		t.Errorf("expected acceptance bar 75.5, got %v", cfg.Scoring.AcceptanceBar)
	}
	if cfg.Encoder.Timeout != 3*time.Second {
		t.Errorf("expected 3s, got %v", cfg.Encoder.Timeout)
	}
	if cfg.Embedding.Dim != 128 {
		t.Errorf("expected dim 128, got %d", cfg.Embedding.Dim)
	}
	if cfg.Location.String() != "Europe/Warsaw" {
		t.Errorf("expected Europe/Warsaw, got %s", cfg.Location)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "-3")
	t.Setenv("VERIFY_TIMEOUT", "soon")

	cfg := Load()

	if cfg.Embedding.Dim != 512 {
		t.Errorf("expected fallback dim 512, got %d", cfg.Embedding.Dim)
	}
	if cfg.Verification.Timeout != 20*time.Second {
		t.Errorf("expected fallback 20s, got %v", cfg.Verification.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero threshold", func(c *Config) { c.Scoring.MatchThreshold = 0 }, "MATCH_THRESHOLD"},
		{"threshold above one", func(c *Config) { c.Scoring.MatchThreshold = 1.2 }, "MATCH_THRESHOLD"},
		{"negative scale", func(c *Config) { c.Scoring.MatchScale = -1 }, "MATCH_SCALE"},
		{"min above 100", func(c *Config) { c.Scoring.MinMatchConfidence = 101 }, "MIN_MATCH_CONFIDENCE"},
		{"bar above 100", func(c *Config) { c.Scoring.AcceptanceBar = 100.1 }, "ACCEPTANCE_BAR"},
		{"unknown backend", func(c *Config) { c.Embedding.Backend = "redis" }, "EMBEDDING_BACKEND"},
		{"postgres without url", func(c *Config) {
			c.Embedding.Backend = "postgres"
			c.Database.URL = ""
		}, "DATABASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}
