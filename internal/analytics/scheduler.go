package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Snapshotter is the slice of Store the scheduler needs.
type Snapshotter interface {
	TakeSnapshot(ctx context.Context) error
}

// Scheduler takes a snapshot on a fixed wall-clock interval. It runs on its
// own schedule independent of request volume and shares the store's locking
// with request-path increments.
type Scheduler struct {
	cron     *cron.Cron
	store    Snapshotter
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(store Snapshotter, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the periodic snapshots. The first snapshot fires one full
// interval after start, matching the reference deployment.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.snapshot); err != nil {
		return fmt.Errorf("schedule snapshots: %w", err)
	}
	s.cron.Start()
	s.logger.Info("analytics snapshot scheduler started", "interval", s.interval.String())
	return nil
}

// Stop halts the schedule and waits for an in-flight snapshot to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) snapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.store.TakeSnapshot(ctx); err != nil {
		s.logger.ErrorContext(ctx, "analytics snapshot failed", "error", err)
		return
	}
	s.logger.InfoContext(ctx, "analytics snapshot taken")
}
