package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationSettingsClamped(t *testing.T) {
	tests := []struct {
		name string
		in   GenerationSettings
		want GenerationSettings
	}{
		{
			name: "in range untouched",
			in: GenerationSettings{
				Language:       "en",
				BatchSize:      10,
				RequestDelayMs: 1500,
				ReplaceMode:    PolicyOnlyMissing,
				MaxRetries:     6,
			},
			want: GenerationSettings{
				Language:       "en",
				BatchSize:      10,
				RequestDelayMs: 1500,
				ReplaceMode:    PolicyOnlyMissing,
				MaxRetries:     6,
			},
		},
		{
			name: "batch size floor",
			in:   GenerationSettings{BatchSize: 0, MaxRetries: 3},
			want: GenerationSettings{Language: "en", BatchSize: 1, ReplaceMode: PolicyOnlyMissing, MaxRetries: 3},
		},
		{
			name: "batch size ceiling",
			in:   GenerationSettings{BatchSize: 200, MaxRetries: 3},
			want: GenerationSettings{Language: "en", BatchSize: 50, ReplaceMode: PolicyOnlyMissing, MaxRetries: 3},
		},
		{
			name: "negative delay floored",
			in:   GenerationSettings{BatchSize: 5, RequestDelayMs: -100, MaxRetries: 1},
			want: GenerationSettings{Language: "en", BatchSize: 5, RequestDelayMs: 0, ReplaceMode: PolicyOnlyMissing, MaxRetries: 1},
		},
		{
			name: "zero retries fall back to default budget",
			in:   GenerationSettings{BatchSize: 5, MaxRetries: 0},
			want: GenerationSettings{Language: "en", BatchSize: 5, ReplaceMode: PolicyOnlyMissing, MaxRetries: 6},
		},
		{
			name: "unknown replace mode normalizes to only-missing",
			in:   GenerationSettings{BatchSize: 5, ReplaceMode: "overwrite-everything", MaxRetries: 2},
			want: GenerationSettings{Language: "en", BatchSize: 5, ReplaceMode: PolicyOnlyMissing, MaxRetries: 2},
		},
		{
			name: "replace-all preserved",
			in:   GenerationSettings{Language: "fr", BatchSize: 5, ReplaceMode: PolicyReplaceAll, MaxRetries: 2},
			want: GenerationSettings{Language: "fr", BatchSize: 5, ReplaceMode: PolicyReplaceAll, MaxRetries: 2},
		},
		{
			name: "regional language reduced to base",
			in:   GenerationSettings{Language: "en-US", BatchSize: 5, MaxRetries: 2},
			want: GenerationSettings{Language: "en", BatchSize: 5, ReplaceMode: PolicyOnlyMissing, MaxRetries: 2},
		},
		{
			name: "garbage language falls back to english",
			in:   GenerationSettings{Language: "???", BatchSize: 5, MaxRetries: 2},
			want: GenerationSettings{Language: "en", BatchSize: 5, ReplaceMode: PolicyOnlyMissing, MaxRetries: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Clamped())
		})
	}
}

func TestNewFromEnvDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("LLM_API_URL", "")
	t.Setenv("LLM_MODEL", "")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.APIURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 60, cfg.LLM.Timeout)
	assert.Equal(t, 10, cfg.Generation.BatchSize)
	assert.Equal(t, 1500, cfg.Generation.RequestDelayMs)
	assert.Equal(t, PolicyOnlyMissing, cfg.Generation.ReplaceMode)
	assert.Equal(t, 6, cfg.Generation.MaxRetries)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestNewFromEnvOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("REPLACE_MODE", "replace-all")
	t.Setenv("ALT_TEXT_LANGUAGE", "de")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	settings := cfg.GenerationSettings()
	assert.Equal(t, "sk-test", settings.APIKey)
	assert.Equal(t, "gpt-4o", settings.Model)
	assert.Equal(t, 25, settings.BatchSize)
	assert.Equal(t, PolicyReplaceAll, settings.ReplaceMode)
	assert.Equal(t, "de", settings.Language)
}

func TestNewFromEnvRejectsBadTimeout(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "0")

	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_TIMEOUT")
}
