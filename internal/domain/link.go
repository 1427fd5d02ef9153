package domain

import (
	"time"
)

// LinkStatus is the lifecycle state of a tracking link
type LinkStatus string

const (
	StatusActive       LinkStatus = "active"
	StatusExpired      LinkStatus = "expired"
	StatusLimitReached LinkStatus = "limit_reached"
)

// UTM labels the traffic origin of a click
type UTM struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// UTMKey identifies a (source, medium, campaign) combination for grouping
type UTMKey struct {
	Source   string
	Medium   string
	Campaign string
}

// String returns a string representation of UTMKey for use as map key
func (u UTMKey) String() string {
	return u.Source + "|" + u.Medium + "|" + u.Campaign
}

// Location is the coarse geography derived from a click's source IP
type Location struct {
	Country   string  `json:"country,omitempty"`
	City      string  `json:"city,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// Device is the classification derived from a click's user-agent string
type Device struct {
	Type    string `json:"type"` // mobile, tablet, desktop
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
}

// Click is one recorded visit through a tracking link. Immutable once appended.
type Click struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent"`
	Referrer    string    `json:"referrer,omitempty"`
	LandingPage string    `json:"landing_page,omitempty"`
	UTM         UTM       `json:"utm"`
	Location    *Location `json:"location,omitempty"`
	Device      *Device   `json:"device,omitempty"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id,omitempty"`
}

// Session groups clicks from the same inferred visitor within a 30-minute
// bucket. The only sub-entity mutated after creation.
type Session struct {
	ID             string    `json:"id"`
	ClickCount     int       `json:"click_count"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	UserID         string    `json:"user_id,omitempty"`
	ConversionIDs  []string  `json:"conversion_ids,omitempty"`
}

// Conversion is a purchase event attributed to a link/session. Immutable.
type Conversion struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	OrderRef  string            `json:"order_ref"`
	Amount    float64           `json:"amount"`
	Revenue   float64           `json:"revenue"`
	SessionID string            `json:"session_id"`
	UserID    string            `json:"user_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Status    string            `json:"status"` // always "completed"
}

// GeoStats holds running tallies of click geography
type GeoStats struct {
	Countries map[string]int `json:"countries"`
	Cities    map[string]int `json:"cities"`
}

// TrackingLink is the aggregate root. All counter updates funnel through
// RecomputeTotals so the running totals never drift from the owned
// collections.
type TrackingLink struct {
	TrackingID     string     `json:"tracking_id"`
	CampaignName   string     `json:"campaign_name"`
	Source         string     `json:"source"`
	Medium         string     `json:"medium"`
	DestinationURL string     `json:"destination_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	LastClickAt    *time.Time `json:"last_click_at,omitempty"`
	MaxClicks      int        `json:"max_clicks,omitempty"` // 0 means unlimited
	Status         LinkStatus `json:"status"`

	TotalClicks       int     `json:"total_clicks"`
	TotalConversions  int     `json:"total_conversions"`
	TotalRevenue      float64 `json:"total_revenue"`
	AttributedRevenue float64 `json:"attributed_revenue"`
	ConversionRate    float64 `json:"conversion_rate"`
	AverageOrderValue float64 `json:"average_order_value"`

	Clicks      []Click             `json:"clicks"`
	Sessions    map[string]*Session `json:"sessions"`
	Conversions []Conversion        `json:"conversions"`

	GeoStats     GeoStats       `json:"geo_stats"`
	DeviceStats  map[string]int `json:"device_stats"`
	BrowserStats map[string]int `json:"browser_stats"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsActive reports whether the link can still accept clicks at the given
// time. Computed from ExpiresAt, not solely from the stored status, so a
// link past its expiry rejects clicks before any sweep has run.
func (l *TrackingLink) IsActive(now time.Time) bool {
	return l.Status == StatusActive && l.ExpiresAt.After(now)
}

// RecomputeTotals derives the running totals from the authoritative
// sub-collections. Every mutation path calls this instead of incrementing
// counters independently.
func (l *TrackingLink) RecomputeTotals() {
	l.TotalClicks = len(l.Clicks)
	l.TotalConversions = len(l.Conversions)

	var revenue float64
	for _, c := range l.Conversions {
		revenue += c.Revenue
	}
	l.TotalRevenue = revenue

	if l.TotalClicks > 0 {
		l.ConversionRate = float64(l.TotalConversions) / float64(l.TotalClicks) * 100
	} else {
		l.ConversionRate = 0
	}

	if l.TotalConversions > 0 {
		l.AverageOrderValue = revenue / float64(l.TotalConversions)
	} else {
		l.AverageOrderValue = 0
	}
}

// ClickUTM resolves a click's UTM parameters, falling back to the link's
// own campaign metadata when absent.
func (l *TrackingLink) ClickUTM(utm UTM) UTM {
	if utm.Source == "" {
		utm.Source = l.Source
	}
	if utm.Medium == "" {
		utm.Medium = l.Medium
	}
	if utm.Campaign == "" {
		utm.Campaign = l.CampaignName
	}
	return utm
}

// Clone returns a deep copy of the link so readers never observe a
// writer's partial mutation.
func (l *TrackingLink) Clone() *TrackingLink {
	cp := *l

	if l.LastClickAt != nil {
		t := *l.LastClickAt
		cp.LastClickAt = &t
	}

	cp.Clicks = make([]Click, len(l.Clicks))
	for i, c := range l.Clicks {
		cc := c
		if c.Location != nil {
			loc := *c.Location
			cc.Location = &loc
		}
		if c.Device != nil {
			dev := *c.Device
			cc.Device = &dev
		}
		cp.Clicks[i] = cc
	}

	cp.Sessions = make(map[string]*Session, len(l.Sessions))
	for id, s := range l.Sessions {
		sc := *s
		sc.ConversionIDs = append([]string(nil), s.ConversionIDs...)
		cp.Sessions[id] = &sc
	}

	cp.Conversions = make([]Conversion, len(l.Conversions))
	for i, c := range l.Conversions {
		cc := c
		cc.Metadata = copyStringMap(c.Metadata)
		cp.Conversions[i] = cc
	}

	cp.GeoStats = GeoStats{
		Countries: copyIntMap(l.GeoStats.Countries),
		Cities:    copyIntMap(l.GeoStats.Cities),
	}
	cp.DeviceStats = copyIntMap(l.DeviceStats)
	cp.BrowserStats = copyIntMap(l.BrowserStats)
	cp.Metadata = copyStringMap(l.Metadata)

	return &cp
}

func copyIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LinkFilter represents filters for listing tracking links
type LinkFilter struct {
	Status       LinkStatus `json:"status,omitempty"`
	CampaignName string     `json:"campaign_name,omitempty"`
	Source       string     `json:"source,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}

// LinkSummary is the listing/creation view of a link without its owned
// collections.
type LinkSummary struct {
	TrackingID        string     `json:"tracking_id"`
	CampaignName      string     `json:"campaign_name"`
	Source            string     `json:"source"`
	Medium            string     `json:"medium"`
	DestinationURL    string     `json:"destination_url,omitempty"`
	Status            LinkStatus `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	ExpiresAt         time.Time  `json:"expires_at"`
	LastClickAt       *time.Time `json:"last_click_at,omitempty"`
	MaxClicks         int        `json:"max_clicks,omitempty"`
	TotalClicks       int        `json:"total_clicks"`
	TotalConversions  int        `json:"total_conversions"`
	TotalRevenue      float64    `json:"total_revenue"`
	ConversionRate    float64    `json:"conversion_rate"`
	AverageOrderValue float64    `json:"average_order_value"`
}

// Summary projects the aggregate onto its listing view
func (l *TrackingLink) Summary() LinkSummary {
	return LinkSummary{
		TrackingID:        l.TrackingID,
		CampaignName:      l.CampaignName,
		Source:            l.Source,
		Medium:            l.Medium,
		DestinationURL:    l.DestinationURL,
		Status:            l.Status,
		CreatedAt:         l.CreatedAt,
		ExpiresAt:         l.ExpiresAt,
		LastClickAt:       l.LastClickAt,
		MaxClicks:         l.MaxClicks,
		TotalClicks:       l.TotalClicks,
		TotalConversions:  l.TotalConversions,
		TotalRevenue:      l.TotalRevenue,
		ConversionRate:    l.ConversionRate,
		AverageOrderValue: l.AverageOrderValue,
	}
}

// ListSummary aggregates totals across a page of listed links
type ListSummary struct {
	TotalLinks       int     `json:"total_links"`
	ActiveLinks      int     `json:"active_links"`
	TotalClicks      int     `json:"total_clicks"`
	TotalConversions int     `json:"total_conversions"`
	TotalRevenue     float64 `json:"total_revenue"`
}

// LinkListResponse is the API response for link listing queries
type LinkListResponse struct {
	Links   []LinkSummary `json:"links"`
	Summary ListSummary   `json:"summary"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	HasMore bool          `json:"has_more"`
}
