package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() RuntimeSettings {
	return RuntimeSettings{
		LLMAPIURL:   "https://api.openai.com/v1",
		LLMAPIKey:   "sk-test",
		LLMModel:    "gpt-4o-mini",
		Language:    "en",
		BatchSize:   10,
		RateLimitMs: 1500,
		ReplaceMode: PolicyOnlyMissing,
		CronExpr:    "0 3 * * *",
	}
}

func TestRuntimeSettingsValidate(t *testing.T) {
	require.NoError(t, validSettings().Validate())

	missingURL := validSettings()
	missingURL.LLMAPIURL = " "
	assert.Error(t, missingURL.Validate())

	missingModel := validSettings()
	missingModel.LLMModel = ""
	assert.Error(t, missingModel.Validate())

	badCron := validSettings()
	badCron.CronExpr = "every day at noon"
	assert.Error(t, badCron.Validate())

	badLanguage := validSettings()
	badLanguage.Language = "!!"
	assert.Error(t, badLanguage.Validate())

	// Empty API key is allowed: the batch run reports it, not the settings form.
	noKey := validSettings()
	noKey.LLMAPIKey = ""
	assert.NoError(t, noKey.Validate())
}

func TestRuntimeSettingsSanitized(t *testing.T) {
	s := validSettings()
	s.BatchSize = 500
	s.RateLimitMs = -5
	s.ReplaceMode = "something-else"

	clean := s.Sanitized()
	assert.Equal(t, 50, clean.BatchSize)
	assert.Equal(t, 0, clean.RateLimitMs)
	assert.Equal(t, PolicyOnlyMissing, clean.ReplaceMode)
}

func TestRuntimeSettingsRedacted(t *testing.T) {
	s := validSettings()
	assert.Equal(t, "********", s.Redacted().LLMAPIKey)

	s.LLMAPIKey = ""
	assert.Equal(t, "", s.Redacted().LLMAPIKey)
}

func TestRuntimeSettingsFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "settings.json")

	want := validSettings()
	require.NoError(t, WriteRuntimeSettingsFile(path, want))

	got, err := LoadRuntimeSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Atomic write leaves no temp file behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestRuntimeSettingsStoreUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	store, err := NewRuntimeSettingsStore(path, validSettings())
	require.NoError(t, err)

	next := validSettings()
	next.LLMModel = "gpt-4o"
	next.BatchSize = 99 // sanitized down to 50 on update

	saved, err := store.UpdateRuntimeSettings(next)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", saved.LLMModel)
	assert.Equal(t, 50, saved.BatchSize)

	current, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, saved, current)

	onDisk, err := LoadRuntimeSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, saved, onDisk)
}

func TestWithRuntimeSettingsOverlay(t *testing.T) {
	t.Setenv("LLM_API_KEY", "env-key")

	settings := validSettings()
	settings.LLMAPIKey = "stored-key"
	settings.LLMModel = "gpt-4o"
	settings.ReplaceMode = PolicyReplaceAll

	cfg, err := NewFromEnv(WithRuntimeSettings(settings))
	require.NoError(t, err)

	assert.Equal(t, "stored-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, PolicyReplaceAll, cfg.Generation.ReplaceMode)
}
