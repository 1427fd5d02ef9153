package usecase

import (
	"context"
	"fmt"
	"time"

	"linktrack/internal/domain"
	"linktrack/pkg/logger"
	"linktrack/pkg/metrics"
)

// LinkService owns the TrackingLink aggregate lifecycle: creation, lookup,
// listing, and administrative expiry extension.
type LinkService struct {
	repo    domain.LinkRepository
	tokens  domain.TokenGenerator
	auth    domain.Authorizer
	logger  *logger.Logger
	metrics *metrics.Metrics

	defaultTTL time.Duration
}

// creates a new link service
func NewLinkService(
	repo domain.LinkRepository,
	tokens domain.TokenGenerator,
	auth domain.Authorizer,
	defaultTTLHours int,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *LinkService {
	if defaultTTLHours <= 0 {
		defaultTTLHours = 24
	}
	return &LinkService{
		repo:       repo,
		tokens:     tokens,
		auth:       auth,
		defaultTTL: time.Duration(defaultTTLHours) * time.Hour,
		logger:     logger,
		metrics:    metrics,
	}
}

// CreateLinkInput carries the campaign parameters for a new tracking link
type CreateLinkInput struct {
	CampaignName   string            `json:"campaign_name"`
	Source         string            `json:"source"`
	Medium         string            `json:"medium"`
	DestinationURL string            `json:"destination_url"`
	TTLHours       int               `json:"ttl_hours"`
	MaxClicks      int               `json:"max_clicks"`
	Metadata       map[string]string `json:"metadata"`
}

// Create allocates a fresh identity, zeroes all counters, and persists the
// link in active state.
func (s *LinkService) Create(ctx context.Context, input CreateLinkInput) (*domain.TrackingLink, error) {
	if err := s.auth.CanManageLinks(ctx); err != nil {
		return nil, err
	}

	if input.CampaignName == "" {
		return nil, fmt.Errorf("campaign name is required")
	}

	ttl := s.defaultTTL
	if input.TTLHours > 0 {
		ttl = time.Duration(input.TTLHours) * time.Hour
	}

	trackingID, err := s.tokens.TrackingID()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate tracking id: %w", err)
	}

	now := time.Now()
	link := &domain.TrackingLink{
		TrackingID:     trackingID,
		CampaignName:   input.CampaignName,
		Source:         input.Source,
		Medium:         input.Medium,
		DestinationURL: input.DestinationURL,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		MaxClicks:      input.MaxClicks,
		Status:         domain.StatusActive,
		Sessions:       make(map[string]*domain.Session),
		GeoStats: domain.GeoStats{
			Countries: make(map[string]int),
			Cities:    make(map[string]int),
		},
		DeviceStats:  make(map[string]int),
		BrowserStats: make(map[string]int),
		Metadata:     input.Metadata,
	}

	if err := s.repo.Store(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to store tracking link: %w", err)
	}

	s.metrics.RecordLinkCreated()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"tracking_id": trackingID,
		"campaign":    input.CampaignName,
		"source":      input.Source,
		"medium":      input.Medium,
		"expires_at":  link.ExpiresAt.Format(time.RFC3339),
		"max_clicks":  input.MaxClicks,
	}).Info("Created tracking link")

	return link, nil
}

// Get returns the link regardless of its status
func (s *LinkService) Get(ctx context.Context, trackingID string) (*domain.TrackingLink, error) {
	return s.repo.Find(ctx, trackingID)
}

// List returns links matching the filter with pagination and an aggregate
// summary across all matches.
func (s *LinkService) List(ctx context.Context, filter domain.LinkFilter) (*domain.LinkListResponse, error) {
	if err := s.auth.CanManageLinks(ctx); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

// ExtendExpiry pushes the link's expiry forward and resets its status to
// active. This is the only transition out of a terminal state. Extension
// is relative to the current expiry when it is still in the future, and to
// now when the link already lapsed.
func (s *LinkService) ExtendExpiry(ctx context.Context, trackingID string, additionalHours int) (*domain.TrackingLink, error) {
	if err := s.auth.CanManageLinks(ctx); err != nil {
		return nil, err
	}

	if additionalHours <= 0 {
		return nil, fmt.Errorf("additional hours must be positive")
	}

	link, err := s.repo.Update(ctx, trackingID, func(link *domain.TrackingLink) error {
		base := link.ExpiresAt
		now := time.Now()
		if base.Before(now) {
			base = now
		}
		link.ExpiresAt = base.Add(time.Duration(additionalHours) * time.Hour)
		link.Status = domain.StatusActive
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"tracking_id": trackingID,
		"expires_at":  link.ExpiresAt.Format(time.RFC3339),
		"added_hours": additionalHours,
	}).Info("Extended tracking link expiry")

	return link, nil
}
