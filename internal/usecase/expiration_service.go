package usecase

import (
	"context"
	"time"

	"linktrack/internal/domain"
	"linktrack/pkg/logger"
	"linktrack/pkg/metrics"
)

// ExpirationService transitions links past their expiry into the expired
// state. It is the only component driven by a schedule rather than a
// caller.
type ExpirationService struct {
	repo    domain.LinkRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// creates a new expiration service
func NewExpirationService(repo domain.LinkRepository, logger *logger.Logger, metrics *metrics.Metrics) *ExpirationService {
	return &ExpirationService{
		repo:    repo,
		logger:  logger,
		metrics: metrics,
	}
}

// SweepResult reports one sweep run
type SweepResult struct {
	ExpiredCount int `json:"expired_count"`
}

// Sweep scans active links and expires those past their expiry.
// Idempotent: already-expired links are untouched. A failure on one link
// never aborts the sweep for the rest.
func (s *ExpirationService) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	log := s.logger.WithContext(ctx)

	ids, err := s.repo.ActiveIDs(ctx)
	if err != nil {
		s.metrics.RecordSweep("failed", 0, time.Since(start))
		return nil, err
	}

	expired := 0
	for _, id := range ids {
		transitioned := false
		_, err := s.repo.Update(ctx, id, func(link *domain.TrackingLink) error {
			if link.Status != domain.StatusActive {
				return nil
			}
			if link.ExpiresAt.After(time.Now()) {
				return nil
			}
			link.Status = domain.StatusExpired
			transitioned = true
			return nil
		})
		if err != nil {
			log.WithError(err).WithField("tracking_id", id).Error("Failed to expire link, continuing sweep")
			continue
		}
		if transitioned {
			expired++
			log.WithField("tracking_id", id).Info("Expired tracking link")
		}
	}

	duration := time.Since(start)
	s.metrics.RecordSweep("success", expired, duration)

	log.WithFields(map[string]any{
		"scanned":  len(ids),
		"expired":  expired,
		"duration": duration,
	}).Debug("Expiration sweep completed")

	return &SweepResult{ExpiredCount: expired}, nil
}
