package infrastructure

import (
	"time"

	"linktrack/internal/domain"
	"linktrack/pkg/logger"
	"linktrack/pkg/metrics"
)

// Shared across the package: promauto registers collectors globally, a
// second metrics.New() in the same binary would panic.
var testMetrics = metrics.New()

func testLogger() *logger.Logger {
	return logger.New("error")
}

func activeLink(trackingID string) *domain.TrackingLink {
	now := time.Now()
	return &domain.TrackingLink{
		TrackingID:   trackingID,
		CampaignName: "spring-sale",
		Source:       "newsletter",
		Medium:       "email",
		CreatedAt:    now,
		ExpiresAt:    now.Add(24 * time.Hour),
		Status:       domain.StatusActive,
		Sessions:     map[string]*domain.Session{},
	}
}
