package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/dormant/internal/dormant/store"
)

// HousekeepingService periodically deletes expired records to prevent
// unbounded growth of action tokens and reset sessions. Records older than
// the token window can never verify, so removal is safe.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Window is the token validity window; rows issued before now-Window
	// are expired.
	Window time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval, window time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if window <= 0 {
		window = DefaultTokenWindow
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		Window:   window,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Non-blocking; call Stop() to gracefully shut down the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker. Blocks until the
// worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup performs the actual deletion of expired records. Each deletion is
// independent; a failure in one does not stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-s.Window)

	if err := s.Store.ActionTokens().DeleteExpired(ctx, cutoff); err != nil {
		s.Logger.Error("failed to delete expired action tokens", "error", err)
	}

	if err := s.Store.ResetSessions().DeleteExpired(ctx, cutoff); err != nil {
		s.Logger.Error("failed to delete expired reset sessions", "error", err)
	}

	s.Logger.Debug("housekeeping cleanup completed", "cutoff", cutoff)
}
