package domain

import (
	"context"
	"time"
)

// interface for tracking link storage. Update serializes writers per link:
// mutations against the same link never interleave, mutations against
// different links never contend. Reads return deep snapshots.
type LinkRepository interface {
	Store(ctx context.Context, link *TrackingLink) error
	Find(ctx context.Context, trackingID string) (*TrackingLink, error)
	FindActive(ctx context.Context, trackingID string) (*TrackingLink, error)
	Update(ctx context.Context, trackingID string, mutate func(*TrackingLink) error) (*TrackingLink, error)
	List(ctx context.Context, filter LinkFilter) (*LinkListResponse, error)
	ActiveIDs(ctx context.Context) ([]string, error)
}

// interface for external IP geolocation. Best-effort: implementations
// return an error rather than block past their configured timeout.
type GeoLocator interface {
	Locate(ctx context.Context, ip string) (*Location, error)
}

// LedgerEntry is one revenue record pushed to the external ledger
type LedgerEntry struct {
	Amount           float64           `json:"amount"`
	Source           string            `json:"source"`
	OrderRef         string            `json:"order_ref"`
	UserRef          string            `json:"user_ref,omitempty"`
	AttributionModel string            `json:"attribution_model"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	RecordedAt       time.Time         `json:"recorded_at"`
}

// interface for the external revenue ledger collaborator
type RevenueLedger interface {
	Record(ctx context.Context, entry LedgerEntry) error
}

// interface for the caller-provided authorization capability. The engine
// performs no authorization itself beyond invoking this check.
type Authorizer interface {
	CanManageLinks(ctx context.Context) error
}

// interface for identifier generation
type TokenGenerator interface {
	TrackingID() (string, error)
	EventID() string
}
