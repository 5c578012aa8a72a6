package app

import (
	"context"
	"time"

	"github.com/tutorbase/engine/internal/service"
	"go.uber.org/zap"
)

// Sweeper runs the periodic maintenance task: unavailability periods whose
// end instant has passed are flipped to ended so they stop counting as
// blackouts.
type Sweeper struct {
	availability *service.AvailabilityService
	interval     time.Duration
	logger       *zap.Logger
	stopChan     chan struct{}
}

func NewSweeper(availability *service.AvailabilityService, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		availability: availability,
		interval:     interval,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting background sweeper", zap.Duration("interval", s.interval))
	go s.run(ctx)
}

// Stop terminates the loop.
func (s *Sweeper) Stop() {
	s.logger.Info("Stopping background sweeper")
	close(s.stopChan)
}

func (s *Sweeper) run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("Sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Sweeper cancelled")
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.availability.EndExpiredPeriods(ctx); err != nil {
		s.logger.Error("Failed to end expired unavailability periods", zap.Error(err))
	}
}
