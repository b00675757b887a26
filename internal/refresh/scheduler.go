package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Scheduler runs refreshes periodically using a time.Ticker.
type Scheduler struct {
	refresher *Refresher
	interval  time.Duration
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewScheduler creates a scheduler. The interval string is parsed with
// time.ParseDuration (e.g. "4h", "30m", "1h30m").
func NewScheduler(r *Refresher, interval string, logger *slog.Logger) (*Scheduler, error) {
	d, err := time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w (use Go duration format: 4h, 30m, etc.)", interval, err)
	}
	if d < time.Minute {
		return nil, fmt.Errorf("refresh interval must be at least 1m, got %s", d)
	}
	return newScheduler(r, d, logger), nil
}

func newScheduler(r *Refresher, d time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: r,
		interval:  d,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Interval returns the parsed schedule.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start begins the scheduling loop. Call Stop() to terminate.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("refresh scheduler started", "interval", s.interval.String())

		for {
			select {
			case <-ticker.C:
				s.tick(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.refresher.IsRunning() {
		s.logger.Info("skipping scheduled refresh, previous refresh still running")
		return
	}
	s.logger.Info("starting scheduled refresh")
	res := s.refresher.RunAllConfigured(ctx)
	if res.Error != nil {
		s.logger.Error("scheduled refresh failed", "refreshID", res.RefreshID, "error", res.Error)
		return
	}
	s.logger.Info("scheduled refresh completed",
		"refreshID", res.RefreshID, "networks", res.Networks, "peerings", res.Peerings)
}

// Stop halts the scheduler and waits for it to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}
