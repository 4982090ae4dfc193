package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/media-alt-enhancer/internal/config"
	"github.com/MimeLyc/media-alt-enhancer/internal/inventory"
	"github.com/MimeLyc/media-alt-enhancer/internal/library"
	"github.com/MimeLyc/media-alt-enhancer/internal/service"
)

type inventoryStore interface {
	library.Upserter
	ListItems(ctx context.Context, onlyMissing bool) ([]inventory.MediaItem, error)
	ListRuns(ctx context.Context, limit int) ([]inventory.RunRecord, error)
}

type enhanceRunner interface {
	Run(ctx context.Context, source string) (*service.BatchResult, error)
}

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type Server struct {
	scanner  *library.Scanner
	store    inventoryStore
	enhancer enhanceRunner
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func NewServer(scanner *library.Scanner, store inventoryStore, enhancer enhanceRunner, opts ...Option) *Server {
	s := &Server{
		scanner:  scanner,
		store:    store,
		enhancer: enhancer,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/library/items", s.handleListItems)
	s.mux.HandleFunc("/api/scan", s.handleScan)
	s.mux.HandleFunc("/api/enhance", s.handleEnhance)
	s.mux.HandleFunc("/api/runs", s.handleListRuns)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
}
