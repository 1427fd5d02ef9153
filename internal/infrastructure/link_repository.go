package infrastructure

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"linktrack/internal/domain"
	"linktrack/pkg/logger"
)

// implements domain.LinkRepository with an in-memory store. The outer
// RWMutex only guards the map; each link carries its own mutex so writers
// against the same aggregate serialize while different links never contend.
type LinkRepository struct {
	mu     sync.RWMutex
	links  map[string]*linkEntry
	logger *logger.Logger
}

type linkEntry struct {
	mu   sync.Mutex
	link *domain.TrackingLink
}

// creates a new in-memory link repository
func NewLinkRepository(logger *logger.Logger) *LinkRepository {
	return &LinkRepository{
		links:  make(map[string]*linkEntry),
		logger: logger,
	}
}

func (r *LinkRepository) Store(ctx context.Context, link *domain.TrackingLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[link.TrackingID]; exists {
		return fmt.Errorf("tracking id %s already stored", link.TrackingID)
	}
	r.links[link.TrackingID] = &linkEntry{link: link.Clone()}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tracking_id": link.TrackingID,
		"campaign":    link.CampaignName,
		"expires_at":  link.ExpiresAt.Format(time.RFC3339),
	}).Debug("Stored tracking link")

	return nil
}

func (r *LinkRepository) entry(trackingID string) (*linkEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.links[trackingID]
	return e, ok
}

// Find returns a deep snapshot of the link regardless of its status
func (r *LinkRepository) Find(ctx context.Context, trackingID string) (*domain.TrackingLink, error) {
	e, ok := r.entry(trackingID)
	if !ok {
		return nil, domain.ErrLinkNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.link.Clone(), nil
}

// FindActive returns the link only when it can still accept clicks. The
// activity check is computed from ExpiresAt, not just the stored status.
func (r *LinkRepository) FindActive(ctx context.Context, trackingID string) (*domain.TrackingLink, error) {
	link, err := r.Find(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	switch {
	case link.Status == domain.StatusLimitReached:
		return nil, domain.ErrClickLimitReached
	case link.Status == domain.StatusExpired || !link.ExpiresAt.After(time.Now()):
		return nil, domain.ErrLinkExpired
	}
	return link, nil
}

// Update applies the mutator under the link's own lock and returns a
// snapshot of the result. A mutator error is returned as-is; state the
// mutator wrote before failing remains, which is how the click-limit
// transition persists alongside its rejection.
func (r *LinkRepository) Update(ctx context.Context, trackingID string, mutate func(*domain.TrackingLink) error) (*domain.TrackingLink, error) {
	e, ok := r.entry(trackingID)
	if !ok {
		return nil, domain.ErrLinkNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := mutate(e.link); err != nil {
		return nil, err
	}
	return e.link.Clone(), nil
}

func (r *LinkRepository) List(ctx context.Context, filter domain.LinkFilter) (*domain.LinkListResponse, error) {
	r.mu.RLock()
	entries := make([]*linkEntry, 0, len(r.links))
	for _, e := range r.links {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var matched []domain.LinkSummary
	summary := domain.ListSummary{}

	for _, e := range entries {
		e.mu.Lock()
		link := e.link
		if filter.Status != "" && link.Status != filter.Status {
			e.mu.Unlock()
			continue
		}
		if filter.CampaignName != "" && link.CampaignName != filter.CampaignName {
			e.mu.Unlock()
			continue
		}
		if filter.Source != "" && link.Source != filter.Source {
			e.mu.Unlock()
			continue
		}
		s := link.Summary()
		e.mu.Unlock()

		matched = append(matched, s)
		summary.TotalLinks++
		if s.Status == domain.StatusActive {
			summary.ActiveLinks++
		}
		summary.TotalClicks += s.TotalClicks
		summary.TotalConversions += s.TotalConversions
		summary.TotalRevenue += s.TotalRevenue
	}

	// Newest first
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	total := len(matched)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"matched": total,
		"limit":   limit,
		"offset":  offset,
	}).Debug("Listed tracking links")

	return &domain.LinkListResponse{
		Links:   matched[start:end],
		Summary: summary,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: end < total,
	}, nil
}

// ActiveIDs returns the IDs of links currently stored as active
func (r *LinkRepository) ActiveIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	entries := make(map[string]*linkEntry, len(r.links))
	for id, e := range r.links {
		entries[id] = e
	}
	r.mu.RUnlock()

	var ids []string
	for id, e := range entries {
		e.mu.Lock()
		if e.link.Status == domain.StatusActive {
			ids = append(ids, id)
		}
		e.mu.Unlock()
	}
	sort.Strings(ids)
	return ids, nil
}
