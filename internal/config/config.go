package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the vision model provider (may be set later via runtime settings)
// - LLM_API_URL: API endpoint URL (default: https://api.openai.com/v1)
// - LLM_MODEL: Vision-capable model to use (default: gpt-4o-mini)
// - LLM_TIMEOUT: Request timeout in seconds (default: 60)
//
// Generation Configuration:
// - ALT_TEXT_LANGUAGE: Two-letter language code for generated alt text (default: en)
// - BATCH_SIZE: Images per enhancement pass, clamped to [1,50] (default: 10)
// - RATE_LIMIT_MS: Pause between requests in milliseconds (default: 1500)
// - REPLACE_MODE: "only-missing" or "replace-all" (default: only-missing)
// - MAX_RETRIES: Attempt budget per request, coerced to >=1 (default: 6)
// - CRON_EXPR: Schedule for automatic enhancement passes (default: 0 3 * * *)
//
// Media Configuration:
// - UPLOADS_DIR: Root directory of the media library (default: /uploads)
// - MEDIA_BASE_URL: Public URL prefix mapped onto UPLOADS_DIR (default: http://localhost:8080/media)
//
// System Configuration:
// - HTTP_ADDR: Listen address for the admin API (default: :8080)
// - DB_PATH: SQLite inventory database path (default: /app/data/inventory.db)
// - LOG_LEVEL: debug|info|warn|error (default: info)

type Config struct {
	LLM        LLMConfig        `json:"llm"`
	Generation GenerationConfig `json:"generation"`
	Media      MediaConfig      `json:"media"`
	Server     ServerConfig     `json:"server"`
	Storage    StorageConfig    `json:"storage"`
	LogLevel   string           `json:"log_level"`
}

// LLMConfig holds the configuration for the vision model API
type LLMConfig struct {
	APIKey  string `json:"api_key"`
	APIURL  string `json:"api_url"`
	Model   string `json:"model"`
	Timeout int    `json:"timeout"`
}

// GenerationConfig controls how alt text is generated and applied
type GenerationConfig struct {
	Language       string        `json:"language"`
	BatchSize      int           `json:"batch_size"`
	RequestDelayMs int           `json:"request_delay_ms"`
	ReplaceMode    ReplacePolicy `json:"replace_mode"`
	MaxRetries     int           `json:"max_retries"`
	CronExpr       string        `json:"cron_expr"`
}

// MediaConfig holds the media library location and its public URL mapping
type MediaConfig struct {
	UploadsDir string `json:"uploads_dir"`
	BaseURL    string `json:"base_url"`
}

// ServerConfig holds the admin API configuration
type ServerConfig struct {
	Addr string `json:"addr"`
}

// StorageConfig holds the inventory database configuration
type StorageConfig struct {
	DBPath string `json:"db_path"`
}

// ReplacePolicy selects which inventory items an enhancement pass will touch.
type ReplacePolicy string

const (
	// PolicyOnlyMissing fills alt text only where it is empty or absent.
	PolicyOnlyMissing ReplacePolicy = "only-missing"
	// PolicyReplaceAll regenerates alt text for every image item.
	PolicyReplaceAll ReplacePolicy = "replace-all"
)

// Normalized maps any unrecognized value to PolicyOnlyMissing.
func (p ReplacePolicy) Normalized() ReplacePolicy {
	if p == PolicyReplaceAll {
		return PolicyReplaceAll
	}
	return PolicyOnlyMissing
}

// GenerationSettings is the validated per-run settings bundle consumed by the
// batch enhancer: credential, model, target language and pacing knobs.
type GenerationSettings struct {
	APIKey         string        `json:"api_key"`
	APIURL         string        `json:"api_url"`
	Model          string        `json:"model"`
	Language       string        `json:"language"`
	BatchSize      int           `json:"batch_size"`
	RequestDelayMs int           `json:"request_delay_ms"`
	ReplaceMode    ReplacePolicy `json:"replace_mode"`
	MaxRetries     int           `json:"max_retries"`
	TimeoutSeconds int           `json:"timeout_seconds"`
}

// Clamped returns a copy with every knob forced into its valid range:
// batch size into [1,50], delay floored at 0, retries coerced to >=1
// (zero or negative falls back to the default budget of 6), replace mode
// normalized, and the language code reduced to a known two-letter base.
func (s GenerationSettings) Clamped() GenerationSettings {
	if s.BatchSize < 1 {
		s.BatchSize = 1
	}
	if s.BatchSize > 50 {
		s.BatchSize = 50
	}
	if s.RequestDelayMs < 0 {
		s.RequestDelayMs = 0
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = 6
	}
	s.ReplaceMode = s.ReplaceMode.Normalized()
	s.Language = normalizeLanguage(s.Language)
	return s
}

// RequestDelay returns the inter-request pacing delay.
func (s GenerationSettings) RequestDelay() time.Duration {
	return time.Duration(s.RequestDelayMs) * time.Millisecond
}

// normalizeLanguage reduces a language token to its ISO 639-1 base code
// (e.g. "en-US"→"en", "eng"→"en"). Unrecognized tokens fall back to "en".
func normalizeLanguage(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return "en"
	}
	tag, err := language.Parse(token)
	if err != nil {
		return "en"
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "en"
	}
	return base.String()
}

// GenerationSettings assembles the per-run settings bundle from the config.
func (c *Config) GenerationSettings() GenerationSettings {
	return GenerationSettings{
		APIKey:         c.LLM.APIKey,
		APIURL:         c.LLM.APIURL,
		Model:          c.LLM.Model,
		Language:       c.Generation.Language,
		BatchSize:      c.Generation.BatchSize,
		RequestDelayMs: c.Generation.RequestDelayMs,
		ReplaceMode:    c.Generation.ReplaceMode,
		MaxRetries:     c.Generation.MaxRetries,
		TimeoutSeconds: c.LLM.Timeout,
	}.Clamped()
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:  getEnvString("LLM_API_KEY", ""),
			APIURL:  getEnvString("LLM_API_URL", "https://api.openai.com/v1"),
			Model:   getEnvString("LLM_MODEL", "gpt-4o-mini"),
			Timeout: getEnvInt("LLM_TIMEOUT", 60),
		},
		Generation: GenerationConfig{
			Language:       getEnvString("ALT_TEXT_LANGUAGE", "en"),
			BatchSize:      getEnvInt("BATCH_SIZE", 10),
			RequestDelayMs: getEnvInt("RATE_LIMIT_MS", 1500),
			ReplaceMode:    ReplacePolicy(getEnvString("REPLACE_MODE", string(PolicyOnlyMissing))),
			MaxRetries:     getEnvInt("MAX_RETRIES", 6),
			CronExpr:       getEnvString("CRON_EXPR", "0 3 * * *"),
		},
		Media: MediaConfig{
			UploadsDir: getEnvString("UPLOADS_DIR", "/uploads"),
			BaseURL:    getEnvString("MEDIA_BASE_URL", "http://localhost:8080/media"),
		},
		Server: ServerConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
		Storage: StorageConfig{
			DBPath: getEnvString("DB_PATH", "/app/data/inventory.db"),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set.
// The API key is intentionally not required here: its absence is reported
// per batch run, before any network activity.
func (c *Config) validate() error {
	if strings.TrimSpace(c.LLM.APIURL) == "" {
		return fmt.Errorf("LLM_API_URL is required")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("LLM_MODEL is required")
	}
	if c.LLM.Timeout < 1 {
		return fmt.Errorf("LLM_TIMEOUT must be greater than 0")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if strings.TrimSpace(c.Storage.DBPath) == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
