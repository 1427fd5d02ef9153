// Package scheduler drives the periodic expiration sweep.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"linktrack/internal/usecase"
	"linktrack/pkg/logger"
)

// Scheduler runs the expiration sweep on a fixed cron schedule,
// independent of request traffic.
type Scheduler struct {
	cron       *cron.Cron
	expiration *usecase.ExpirationService
	logger     *logger.Logger
	timeout    time.Duration
}

// creates a new scheduler
func New(expiration *usecase.ExpirationService, logger *logger.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		cron:       cron.New(),
		expiration: expiration,
		logger:     logger,
		timeout:    timeout,
	}
}

// Start registers the sweep job and begins the schedule
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.expiration.Sweep(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled expiration sweep failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.WithField("schedule", schedule).Info("Expiration scheduler started")
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sweep
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Expiration scheduler stopped")
}
