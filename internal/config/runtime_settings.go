package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

const DefaultRuntimeSettingsFile = "/app/config/settings.json"

// RuntimeSettings is the admin-editable subset of the configuration. It is
// persisted as a JSON file so the admin API can change credentials and
// generation options without a restart.
type RuntimeSettings struct {
	LLMAPIURL   string        `json:"llm_api_url"`
	LLMAPIKey   string        `json:"llm_api_key"`
	LLMModel    string        `json:"llm_model"`
	Language    string        `json:"language"`
	BatchSize   int           `json:"batch_size"`
	RateLimitMs int           `json:"rate_limit_ms"`
	ReplaceMode ReplacePolicy `json:"replace_mode"`
	CronExpr    string        `json:"cron_expr"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

// Validate checks the fields that cannot be silently repaired. The API key is
// allowed to be empty: a missing credential is reported when a batch run is
// attempted, not when settings are saved.
func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.LLMAPIURL) == "" {
		return fmt.Errorf("llm_api_url is required")
	}
	if strings.TrimSpace(s.LLMModel) == "" {
		return fmt.Errorf("llm_model is required")
	}
	if strings.TrimSpace(s.CronExpr) == "" {
		return fmt.Errorf("cron_expr is required")
	}
	if _, err := cron.ParseStandard(s.CronExpr); err != nil {
		return fmt.Errorf("invalid cron_expr: %w", err)
	}
	if strings.TrimSpace(s.Language) == "" {
		return fmt.Errorf("language is required")
	}
	if _, err := language.Parse(s.Language); err != nil {
		return fmt.Errorf("invalid language: %w", err)
	}
	return nil
}

// Sanitized clamps the numeric knobs and normalizes the replace mode, the
// same way the settings boundary accepts them everywhere else.
func (s RuntimeSettings) Sanitized() RuntimeSettings {
	if s.BatchSize < 1 {
		s.BatchSize = 1
	}
	if s.BatchSize > 50 {
		s.BatchSize = 50
	}
	if s.RateLimitMs < 0 {
		s.RateLimitMs = 0
	}
	s.ReplaceMode = s.ReplaceMode.Normalized()
	return s
}

// RedactedAPIKey is the placeholder returned instead of the stored API key.
// A PUT that sends it back unchanged keeps the stored key.
const RedactedAPIKey = "********"

// Redacted masks the API key for responses and diagnostics.
func (s RuntimeSettings) Redacted() RuntimeSettings {
	if s.LLMAPIKey != "" {
		s.LLMAPIKey = RedactedAPIKey
	}
	return s
}

// RuntimeSettings derives the editable settings view from the config.
func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		LLMAPIURL:   c.LLM.APIURL,
		LLMAPIKey:   c.LLM.APIKey,
		LLMModel:    c.LLM.Model,
		Language:    c.Generation.Language,
		BatchSize:   c.Generation.BatchSize,
		RateLimitMs: c.Generation.RequestDelayMs,
		ReplaceMode: c.Generation.ReplaceMode,
		CronExpr:    c.Generation.CronExpr,
	}
}

// WithRuntimeSettings overlays persisted runtime settings onto the env config.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		settings = settings.Sanitized()
		if strings.TrimSpace(settings.LLMAPIURL) != "" {
			c.LLM.APIURL = settings.LLMAPIURL
		}
		if strings.TrimSpace(settings.LLMAPIKey) != "" {
			c.LLM.APIKey = settings.LLMAPIKey
		}
		if strings.TrimSpace(settings.LLMModel) != "" {
			c.LLM.Model = settings.LLMModel
		}
		if strings.TrimSpace(settings.Language) != "" {
			c.Generation.Language = settings.Language
		}
		if settings.BatchSize > 0 {
			c.Generation.BatchSize = settings.BatchSize
		}
		c.Generation.RequestDelayMs = settings.RateLimitMs
		c.Generation.ReplaceMode = settings.ReplaceMode
		if strings.TrimSpace(settings.CronExpr) != "" {
			c.Generation.CronExpr = settings.CronExpr
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings.Sanitized(), nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	initial = initial.Sanitized()
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	next = next.Sanitized()
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
