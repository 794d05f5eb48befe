package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database     DatabaseConfig
	Embedding    EmbeddingConfig
	Encoder      EncoderConfig
	Scoring      ScoringConfig
	Verification VerificationConfig
	Images       ImagesConfig
	Audit        AuditConfig
	Web          WebConfig
	LogLevel     string
	Location     *time.Location // time zone used for token validity dates
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type EmbeddingConfig struct {
	Dim       int    // defaults to 512
	Backend   string // "file" (default) or "postgres"
	StorePath string // snapshot file for the file backend
}

type EncoderConfig struct {
	URL         string        `yaml:"-"` // defaults to http://localhost:8000
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	MaxImagePx  int           `yaml:"max_image_px"`
}

type ScoringConfig struct {
	MatchThreshold     float64 `yaml:"match_threshold"`
	MinMatchConfidence float64 `yaml:"min_match_confidence"`
	MatchScale         float64 `yaml:"match_scale"`
	AcceptanceBar      float64 `yaml:"acceptance_bar"`
}

type VerificationConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type ImagesConfig struct {
	Root string // holds reference/ and evidence/ subdirectories
}

type AuditConfig struct {
	OutboxPath         string        `yaml:"-"`
	QueueSize          int           `yaml:"queue_size"`
	Workers            int           `yaml:"workers"`
	RetryInterval      time.Duration `yaml:"retry_interval"`
	ElasticsearchURL   string        `yaml:"-"`
	ElasticsearchIndex string        `yaml:"-"`
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins string // comma separated
}

// defaults mirrors the layout of defaults.yaml.
type defaults struct {
	Scoring      ScoringConfig      `yaml:"scoring"`
	Encoder      EncoderConfig      `yaml:"encoder"`
	Verification VerificationConfig `yaml:"verification"`
	Audit        AuditConfig        `yaml:"audit"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float. Negative values are
// kept so that Validate can reject them instead of silently ignoring them.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	loc := time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Embedding: EmbeddingConfig{
			Dim:       envInt("EMBEDDING_DIM", 512),
			Backend:   envString("EMBEDDING_BACKEND", "file"),
			StorePath: envString("EMBEDDING_STORE_PATH", "data/face_db.gob"),
		},
		Encoder: EncoderConfig{
			URL:         os.Getenv("EMBEDDING_URL"),
			Timeout:     envDuration("ENCODER_TIMEOUT", d.Encoder.Timeout),
			Concurrency: envInt("ENCODER_CONCURRENCY", d.Encoder.Concurrency),
			MaxImagePx:  envInt("ENCODER_MAX_IMAGE_PX", d.Encoder.MaxImagePx),
		},
		Scoring: ScoringConfig{
			MatchThreshold:     envFloat("MATCH_THRESHOLD", d.Scoring.MatchThreshold),
			MinMatchConfidence: envFloat("MIN_MATCH_CONFIDENCE", d.Scoring.MinMatchConfidence),
			MatchScale:         envFloat("MATCH_SCALE", d.Scoring.MatchScale),
			AcceptanceBar:      envFloat("ACCEPTANCE_BAR", d.Scoring.AcceptanceBar),
		},
		Verification: VerificationConfig{
			Timeout: envDuration("VERIFY_TIMEOUT", d.Verification.Timeout),
		},
		Images: ImagesConfig{
			Root: envString("IMAGE_ROOT", "data/images"),
		},
		Audit: AuditConfig{
			OutboxPath:         envString("AUDIT_OUTBOX_PATH", "data/audit_outbox.db"),
			QueueSize:          envInt("AUDIT_QUEUE_SIZE", d.Audit.QueueSize),
			Workers:            envInt("AUDIT_WORKERS", d.Audit.Workers),
			RetryInterval:      envDuration("AUDIT_RETRY_INTERVAL", d.Audit.RetryInterval),
			ElasticsearchURL:   os.Getenv("ELASTICSEARCH_URL"),
			ElasticsearchIndex: envString("ELASTICSEARCH_INDEX", "verification-attempts"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
		Location: loc,
	}
}

// Validate reports configuration values that would make scoring or
// storage misbehave.
func (c *Config) Validate() error {
	var errs []error
	s := c.Scoring
	if s.MatchThreshold <= 0 || s.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must be in (0, 1], got %v", s.MatchThreshold))
	}
	if s.MinMatchConfidence < 0 || s.MinMatchConfidence > 100 {
		errs = append(errs, fmt.Errorf("MIN_MATCH_CONFIDENCE must be in [0, 100], got %v", s.MinMatchConfidence))
	}
	if s.MatchScale < 0 {
		errs = append(errs, fmt.Errorf("MATCH_SCALE must not be negative, got %v", s.MatchScale))
	}
	if s.AcceptanceBar < 0 || s.AcceptanceBar > 100 {
		errs = append(errs, fmt.Errorf("ACCEPTANCE_BAR must be in [0, 100], got %v", s.AcceptanceBar))
	}
	switch c.Embedding.Backend {
	case "file":
		if c.Embedding.StorePath == "" {
			errs = append(errs, errors.New("EMBEDDING_STORE_PATH is required for the file backend"))
		}
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres embedding backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMBEDDING_BACKEND must be file or postgres, got %q", c.Embedding.Backend))
	}
	return errors.Join(errs...)
}
