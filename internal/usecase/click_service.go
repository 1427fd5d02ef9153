package usecase

import (
	"context"
	"errors"
	"time"

	"linktrack/internal/domain"
	"linktrack/pkg/logger"
	"linktrack/pkg/metrics"
)

// ClickService validates and records clicks against a tracking link,
// updating geo/device tallies and session linkage.
type ClickService struct {
	repo     domain.LinkRepository
	tokens   domain.TokenGenerator
	resolver *GeoDeviceResolver
	sessions *SessionCorrelator
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// creates a new click service
func NewClickService(
	repo domain.LinkRepository,
	tokens domain.TokenGenerator,
	resolver *GeoDeviceResolver,
	sessions *SessionCorrelator,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *ClickService {
	return &ClickService{
		repo:     repo,
		tokens:   tokens,
		resolver: resolver,
		sessions: sessions,
		logger:   logger,
		metrics:  metrics,
	}
}

// ClickInput carries the raw request signals for one click
type ClickInput struct {
	IPAddress   string     `json:"ip_address"`
	UserAgent   string     `json:"user_agent"`
	Referrer    string     `json:"referrer"`
	LandingPage string     `json:"landing_page"`
	UTM         domain.UTM `json:"utm"`
	UserID      string     `json:"user_id"`
	Timestamp   time.Time  `json:"-"` // zero means now
}

// ClickResult is returned to the caller so the transport can redirect
type ClickResult struct {
	RedirectURL string `json:"redirect_url"`
	SessionID   string `json:"session_id"`
}

// Record appends one click to the link. The max-clicks check and the
// limit_reached transition happen atomically before the click is appended,
// so a link with maxClicks = k admits exactly k clicks.
func (s *ClickService) Record(ctx context.Context, trackingID string, input ClickInput) (*ClickResult, error) {
	// Fail fast before paying for geo resolution
	if _, err := s.repo.FindActive(ctx, trackingID); err != nil {
		s.metrics.RecordClick(clickOutcome(err))
		return nil, err
	}

	ts := input.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	// Best-effort signal extraction runs outside the link's lock
	location, device := s.resolver.Resolve(ctx, input.IPAddress, input.UserAgent)
	sessionID := s.sessions.Correlate(input.IPAddress, input.UserAgent, ts)

	var redirectURL string
	_, err := s.repo.Update(ctx, trackingID, func(link *domain.TrackingLink) error {
		// Re-validate under the lock: state may have moved since the
		// fail-fast check.
		now := time.Now()
		switch {
		case link.Status == domain.StatusLimitReached:
			return domain.ErrClickLimitReached
		case link.Status != domain.StatusActive || !link.ExpiresAt.After(now):
			return domain.ErrLinkExpired
		}

		// Pre-append quota check: the (k+1)th click transitions the link
		// and fails, it is never admitted.
		if link.MaxClicks > 0 && link.TotalClicks >= link.MaxClicks {
			link.Status = domain.StatusLimitReached
			return domain.ErrClickLimitReached
		}

		click := domain.Click{
			ID:          s.tokens.EventID(),
			Timestamp:   ts,
			IPAddress:   input.IPAddress,
			UserAgent:   input.UserAgent,
			Referrer:    input.Referrer,
			LandingPage: input.LandingPage,
			UTM:         link.ClickUTM(input.UTM),
			Location:    location,
			Device:      device,
			SessionID:   sessionID,
			UserID:      input.UserID,
		}
		link.Clicks = append(link.Clicks, click)

		applyClickTallies(link, &click)
		s.sessions.Touch(link, sessionID, ts, input.UserID)

		lastClick := ts
		link.LastClickAt = &lastClick
		link.RecomputeTotals()

		redirectURL = link.DestinationURL
		if redirectURL == "" {
			redirectURL = input.LandingPage
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordClick(clickOutcome(err))
		return nil, err
	}

	s.metrics.RecordClick("success")

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"tracking_id": trackingID,
		"session_id":  sessionID,
		"has_geo":     location != nil,
	}).Debug("Recorded click")

	return &ClickResult{RedirectURL: redirectURL, SessionID: sessionID}, nil
}

// applyClickTallies updates the link's running geo/device/browser maps
func applyClickTallies(link *domain.TrackingLink, click *domain.Click) {
	if click.Location != nil {
		if link.GeoStats.Countries == nil {
			link.GeoStats.Countries = make(map[string]int)
		}
		if link.GeoStats.Cities == nil {
			link.GeoStats.Cities = make(map[string]int)
		}
		if click.Location.Country != "" {
			link.GeoStats.Countries[click.Location.Country]++
		}
		if click.Location.City != "" {
			link.GeoStats.Cities[click.Location.City]++
		}
	}

	if click.Device != nil {
		if link.DeviceStats == nil {
			link.DeviceStats = make(map[string]int)
		}
		if link.BrowserStats == nil {
			link.BrowserStats = make(map[string]int)
		}
		link.DeviceStats[click.Device.Type]++
		link.BrowserStats[click.Device.Browser]++
	}
}

func clickOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrLinkNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrLinkExpired):
		return "expired"
	case errors.Is(err, domain.ErrClickLimitReached):
		return "limit_reached"
	default:
		return "error"
	}
}
