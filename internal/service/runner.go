package service

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/media-alt-enhancer/pkg/log"
)

// SyncFunc refreshes the inventory before a scheduled pass (library scan).
type SyncFunc func(ctx context.Context) (int, error)

// RunnableEnhanceService schedules automatic enhancement passes on a cron
// expression. Overlap between a scheduled pass and a manual trigger is
// already deduplicated inside the Enhancer.
type RunnableEnhanceService struct {
	enhancer *Enhancer
	cron     *cron.Cron
	sync     SyncFunc

	mu       sync.Mutex
	cronExpr string
	entryID  cron.EntryID
	started  bool
}

// RunnerOption configures a RunnableEnhanceService
type RunnerOption func(*RunnableEnhanceService)

// WithInventorySync runs the given sync before every scheduled pass.
func WithInventorySync(sync SyncFunc) RunnerOption {
	return func(s *RunnableEnhanceService) {
		s.sync = sync
	}
}

func NewRunnableEnhanceService(enhancer *Enhancer, c *cron.Cron, cronExpr string, opts ...RunnerOption) *RunnableEnhanceService {
	s := &RunnableEnhanceService{
		enhancer: enhancer,
		cron:     c,
		cronExpr: cronExpr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers the pass on the configured cron expression and starts
// the scheduler.
func (s *RunnableEnhanceService) Schedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Info("Scheduling enhancement passes with cron expression %q", s.cronExpr)
	id, err := s.cron.AddFunc(s.cronExpr, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	s.entryID = id
	if !s.started {
		s.cron.Start()
		s.started = true
	}
	return nil
}

// Reschedule swaps the cron expression, e.g. after a settings update.
func (s *RunnableEnhanceService) Reschedule(ctx context.Context, expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if expr == s.cronExpr {
		return nil
	}

	s.cron.Remove(s.entryID)
	id, err := s.cron.AddFunc(expr, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	s.entryID = id
	s.cronExpr = expr
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (s *RunnableEnhanceService) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs one scheduled pass: inventory sync, then enhancement.
func (s *RunnableEnhanceService) RunOnce(ctx context.Context) {
	if s.sync != nil {
		synced, err := s.sync(ctx)
		if err != nil {
			log.Error("Inventory sync failed: %v", err)
		} else {
			log.Info("Inventory sync finished: %d items", synced)
		}
	}

	if _, err := s.enhancer.Run(ctx, TriggerCron); err != nil {
		log.Error("Scheduled enhancement pass failed: %v", err)
	}
}
