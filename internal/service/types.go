package service

import (
	"context"

	"github.com/MimeLyc/media-alt-enhancer/internal/config"
	"github.com/MimeLyc/media-alt-enhancer/internal/inventory"
	"github.com/MimeLyc/media-alt-enhancer/internal/llm"
)

// BatchResult aggregates one enhancement pass
//
// Updated: Items whose alt text was written back
// Skipped: Items passed over, whether by error or unusable output
// Errors: Ordered human-readable per-item error messages
type BatchResult struct {
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// SettingsProvider supplies the validated per-run generation settings.
type SettingsProvider interface {
	GetSettings() (config.GenerationSettings, error)
}

// SettingsProviderFunc adapts a function to the SettingsProvider interface.
type SettingsProviderFunc func() (config.GenerationSettings, error)

func (f SettingsProviderFunc) GetSettings() (config.GenerationSettings, error) {
	return f()
}

// Invoker is the slice of the llm package the enhancer depends on.
type Invoker interface {
	Do(ctx context.Context, payload llm.ChatRequest) ([]byte, error)
}

// InvokerFactory builds a fresh invoker from the current settings, so a
// credential change in runtime settings takes effect on the next run.
type InvokerFactory func(settings config.GenerationSettings) (Invoker, error)

// RunRecorder persists run summaries for the history view.
type RunRecorder interface {
	RecordRun(ctx context.Context, run inventory.RunRecord) error
}

// Run trigger sources recorded in the run history.
const (
	TriggerManual = "manual"
	TriggerCron   = "cron"
)
