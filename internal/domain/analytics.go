package domain

import "time"

// Timeframe is one of the fixed analytics windows
type Timeframe string

const (
	Timeframe1h  Timeframe = "1h"
	Timeframe6h  Timeframe = "6h"
	Timeframe12h Timeframe = "12h"
	Timeframe24h Timeframe = "24h"
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
)

// ParseTimeframe maps a raw timeframe value to a window duration.
// Unrecognized values fall back to 24h rather than failing.
func ParseTimeframe(raw string) (Timeframe, time.Duration) {
	switch Timeframe(raw) {
	case Timeframe1h:
		return Timeframe1h, time.Hour
	case Timeframe6h:
		return Timeframe6h, 6 * time.Hour
	case Timeframe12h:
		return Timeframe12h, 12 * time.Hour
	case Timeframe7d:
		return Timeframe7d, 7 * 24 * time.Hour
	case Timeframe30d:
		return Timeframe30d, 30 * 24 * time.Hour
	default:
		return Timeframe24h, 24 * time.Hour
	}
}

// WindowMetrics are the headline numbers for the selected timeframe
type WindowMetrics struct {
	Clicks            int     `json:"clicks"`
	Conversions       int     `json:"conversions"`
	Revenue           float64 `json:"revenue"`
	ConversionRate    float64 `json:"conversion_rate"`
	AverageOrderValue float64 `json:"average_order_value"`
	RevenuePerClick   float64 `json:"revenue_per_click"`
}

// CountShare is a labeled count with its percentage of the whole
type CountShare struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// GeoBreakdown groups window clicks by geography
type GeoBreakdown struct {
	Countries []CountShare `json:"countries"`
	Cities    []CountShare `json:"cities"` // top 10
}

// DeviceBreakdown splits window clicks by device class, browser and OS
type DeviceBreakdown struct {
	Mobile   int          `json:"mobile"`
	Tablet   int          `json:"tablet"`
	Desktop  int          `json:"desktop"`
	Browsers []CountShare `json:"browsers"`
	Systems  []CountShare `json:"systems"`
}

// HourlySlot is one hour-of-day bucket in the 24-slot activity histogram
type HourlySlot struct {
	Hour       int     `json:"hour"`
	Clicks     int     `json:"clicks"`
	Percentage float64 `json:"percentage"`
}

// UTMEffectiveness reports clicks and conversions for one UTM triple
type UTMEffectiveness struct {
	Source         string  `json:"source"`
	Medium         string  `json:"medium"`
	Campaign       string  `json:"campaign"`
	Clicks         int     `json:"clicks"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
}

// PerformanceRatios are computed over the link's entire history, not the
// selected window.
type PerformanceRatios struct {
	ClickThroughRate  float64 `json:"click_through_rate"`
	EngagementRate    float64 `json:"engagement_rate"`
	BounceRate        float64 `json:"bounce_rate"`
	ReturnVisitorRate float64 `json:"return_visitor_rate"`
}

// FunnelStage is one stage of the conversion funnel with its rate from the
// prior stage.
type FunnelStage struct {
	Stage          string  `json:"stage"`
	Count          int     `json:"count"`
	ConversionRate float64 `json:"conversion_rate"`
}

// SessionSummary is the detailed-report view of a session
type SessionSummary struct {
	SessionID      string    `json:"session_id"`
	ClickCount     int       `json:"click_count"`
	Conversions    int       `json:"conversions"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	UserID         string    `json:"user_id,omitempty"`
}

// AnalyticsDetail is the extra payload returned when a detailed report is
// requested.
type AnalyticsDetail struct {
	RecentClicks      []Click          `json:"recent_clicks"`      // last 50
	RecentConversions []Conversion     `json:"recent_conversions"` // last 20
	TopSessions       []SessionSummary `json:"top_sessions"`       // top 10 by clicks
	Funnel            []FunnelStage    `json:"funnel"`
}

// AnalyticsReport is the full analytics payload for one tracking link
type AnalyticsReport struct {
	TrackingID  string            `json:"tracking_id"`
	Timeframe   Timeframe         `json:"timeframe"`
	GeneratedAt time.Time         `json:"generated_at"`
	Metrics     WindowMetrics     `json:"metrics"`
	Geo         GeoBreakdown      `json:"geo"`
	Devices     DeviceBreakdown   `json:"devices"`
	Hourly      []HourlySlot       `json:"hourly_activity"`
	Referrers   []CountShare       `json:"referrers"` // top 10, direct normalized
	UTM         []UTMEffectiveness `json:"utm_effectiveness"`
	Performance PerformanceRatios  `json:"performance"`
	Detail      *AnalyticsDetail   `json:"detail,omitempty"`
}
