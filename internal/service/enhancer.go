package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/media-alt-enhancer/internal/alttext"
	"github.com/MimeLyc/media-alt-enhancer/internal/config"
	"github.com/MimeLyc/media-alt-enhancer/internal/inventory"
	"github.com/MimeLyc/media-alt-enhancer/internal/llm"
	"github.com/MimeLyc/media-alt-enhancer/pkg/log"
)

// Enhancer walks the eligible inventory items in order, asks the vision
// model to describe each one, and writes the normalized description back.
// Items are processed strictly sequentially with a pacing delay before each
// request; per-item failures never abort the rest of the batch.
type Enhancer struct {
	settings   SettingsProvider
	inventory  inventory.Inventory
	recorder   RunRecorder
	newInvoker InvokerFactory

	// sleep is injectable for deterministic tests.
	sleep func(ctx context.Context, d time.Duration) error

	group singleflight.Group
}

// EnhancerOption configures an Enhancer
type EnhancerOption func(*Enhancer)

// WithRunRecorder enables run history persistence.
func WithRunRecorder(recorder RunRecorder) EnhancerOption {
	return func(e *Enhancer) {
		e.recorder = recorder
	}
}

// WithInvokerFactory replaces how invokers are built from settings.
func WithInvokerFactory(factory InvokerFactory) EnhancerOption {
	return func(e *Enhancer) {
		e.newInvoker = factory
	}
}

func NewEnhancer(settings SettingsProvider, inv inventory.Inventory, opts ...EnhancerOption) *Enhancer {
	e := &Enhancer{
		settings:   settings,
		inventory:  inv,
		newInvoker: defaultInvokerFactory,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultInvokerFactory(settings config.GenerationSettings) (Invoker, error) {
	return llm.NewInvoker(
		llm.Config{
			APIKey:  settings.APIKey,
			APIURL:  settings.APIURL,
			Timeout: settings.TimeoutSeconds,
		},
		llm.WithMaxAttempts(settings.MaxRetries),
	)
}

// Run executes one enhancement pass. Overlapping triggers (cron firing while
// a manual run is in flight) share a single execution and its result.
// The returned BatchResult is fresh per pass and immutable once returned.
func (e *Enhancer) Run(ctx context.Context, source string) (*BatchResult, error) {
	v, err, _ := e.group.Do("enhance", func() (any, error) {
		return e.run(ctx, source)
	})
	if err != nil {
		return nil, err
	}
	return v.(*BatchResult), nil
}

func (e *Enhancer) run(ctx context.Context, source string) (*BatchResult, error) {
	settings, err := e.settings.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	settings = settings.Clamped()

	started := time.Now().UTC()
	result := &BatchResult{Errors: []string{}}

	// Missing credential is the only batch-fatal condition, checked before
	// any network activity.
	if strings.TrimSpace(settings.APIKey) == "" {
		result.Errors = append(result.Errors, "generation skipped because the API key is not configured")
		e.record(source, started, result)
		return result, nil
	}

	inv, err := e.newInvoker(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create API invoker: %w", err)
	}

	candidates, err := e.inventory.ListCandidates(ctx, settings.ReplaceMode, settings.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	log.Info("Enhancing %d media items (policy %s, language %s)",
		len(candidates), settings.ReplaceMode, settings.Language)

	for _, item := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := e.enhanceItem(ctx, inv, settings, item); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			log.Warn("Item %s skipped: %v", item.ID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("item %s: %v", item.ID, err))
			result.Skipped++
			continue
		}
		result.Updated++
	}

	log.Info("Enhancement pass finished: %d updated, %d skipped, %d errors",
		result.Updated, result.Skipped, len(result.Errors))
	e.record(source, started, result)
	return result, nil
}

// enhanceItem processes a single media item end to end: validate, pace,
// invoke, extract, normalize, write back.
func (e *Enhancer) enhanceItem(
	ctx context.Context,
	inv Invoker,
	settings config.GenerationSettings,
	item inventory.MediaItem,
) error {
	if err := validateImageURL(item.URL); err != nil {
		return err
	}

	if delay := settings.RequestDelay(); delay > 0 {
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}

	payload := llm.NewAltTextRequest(settings.Model, item.URL, settings.Language)
	body, err := inv.Do(ctx, payload)
	if err != nil {
		return err
	}

	content, err := llm.ExtractDescription(body)
	if err != nil {
		return err
	}

	text := alttext.Normalize(content)
	if text == "" {
		return fmt.Errorf("model returned an unusable description")
	}

	if detected := whatlanggo.DetectLang(text).Iso6391(); detected != "" && detected != settings.Language {
		log.Debug("Generated text for item %s looks like %q, requested %q", item.ID, detected, settings.Language)
	}

	if err := e.inventory.SetAltText(ctx, item.ID, text); err != nil {
		return fmt.Errorf("failed to save alt text: %w", err)
	}
	return nil
}

func (e *Enhancer) record(source string, started time.Time, result *BatchResult) {
	if e.recorder == nil {
		return
	}
	// Recording uses a fresh context so a cancelled batch context cannot
	// lose the summary of work already performed.
	err := e.recorder.RecordRun(context.Background(), inventory.RunRecord{
		ID:         uuid.NewString(),
		Source:     source,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Updated:    result.Updated,
		Skipped:    result.Skipped,
		Errors:     result.Errors,
	})
	if err != nil {
		log.Error("Failed to record run history: %v", err)
	}
}

// validateImageURL rejects items whose URL the model could not fetch.
func validateImageURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("unusable image URL %q", raw)
	}
	return nil
}

// sleepContext blocks for the duration, honoring context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
