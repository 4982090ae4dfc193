package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/media-alt-enhancer/internal/config"
	"github.com/MimeLyc/media-alt-enhancer/internal/httpapi"
	"github.com/MimeLyc/media-alt-enhancer/internal/inventory"
	"github.com/MimeLyc/media-alt-enhancer/internal/library"
	"github.com/MimeLyc/media-alt-enhancer/internal/service"
	"github.com/MimeLyc/media-alt-enhancer/pkg/log"
)

func main() {
	// .env is optional, container deployments set real env vars.
	_ = godotenv.Load()

	settingsPath := config.RuntimeSettingsFilePath()
	var opts []config.Option
	persisted, err := config.LoadRuntimeSettingsFile(settingsPath)
	switch {
	case err == nil:
		opts = append(opts, config.WithRuntimeSettings(persisted))
	case !os.IsNotExist(err):
		log.Fatal("Failed to read settings file %s: %v", settingsPath, err)
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.LogLevel))

	store, err := inventory.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("Failed to open inventory database: %v", err)
	}
	defer store.Close()

	settingsStore, err := config.NewRuntimeSettingsStore(settingsPath, cfg.RuntimeSettings())
	if err != nil {
		log.Fatal("Failed to initialize runtime settings: %v", err)
	}

	scanner := library.NewScanner([]library.SourceConfig{
		{
			ID:      "uploads",
			Name:    "Uploads",
			Path:    cfg.Media.UploadsDir,
			BaseURL: cfg.Media.BaseURL,
		},
	})

	// Settings are re-read per pass so admin API changes apply without a
	// restart.
	settingsProvider := service.SettingsProviderFunc(func() (config.GenerationSettings, error) {
		runtime, err := settingsStore.GetRuntimeSettings()
		if err != nil {
			return config.GenerationSettings{}, err
		}
		live, err := config.NewFromEnv(config.WithRuntimeSettings(runtime))
		if err != nil {
			return config.GenerationSettings{}, err
		}
		return live.GenerationSettings(), nil
	})

	enhancer := service.NewEnhancer(settingsProvider, store, service.WithRunRecorder(store))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cronRunner := service.NewRunnableEnhanceService(enhancer, cron.New(), cfg.Generation.CronExpr,
		service.WithInventorySync(func(ctx context.Context) (int, error) {
			return scanner.Sync(ctx, store)
		}),
	)
	if err := cronRunner.Schedule(ctx); err != nil {
		log.Fatal("Failed to schedule enhancement passes: %v", err)
	}

	server := httpapi.NewServer(scanner, store, enhancer,
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
			return cronRunner.Reschedule(ctx, next.CronExpr)
		}),
	)

	go func() {
		log.Info("Admin API listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed: %v", err)
			stop()
		}
	}()

	if synced, err := scanner.Sync(ctx, store); err != nil {
		log.Warn("Initial library sync failed: %v", err)
	} else {
		log.Info("Initial library sync finished: %d items", synced)
	}

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed: %v", err)
	}
	cronRunner.Stop()
}
