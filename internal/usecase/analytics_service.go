package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	"linktrack/internal/domain"
	"linktrack/pkg/logger"
)

const (
	topCitiesLimit     = 10
	topReferrersLimit  = 10
	topSessionsLimit   = 10
	recentClicksLimit  = 50
	recentConvsLimit   = 20
	directReferrerName = "direct"
)

// AnalyticsService computes derived statistics over a link's history for
// an arbitrary time window. All computation is read-only over a snapshot,
// so reports may run concurrently with writers.
type AnalyticsService struct {
	repo   domain.LinkRepository
	logger *logger.Logger
}

// creates a new analytics service
func NewAnalyticsService(repo domain.LinkRepository, logger *logger.Logger) *AnalyticsService {
	return &AnalyticsService{repo: repo, logger: logger}
}

// Analyze builds the analytics report for one tracking link. Unknown
// timeframe values fall back to 24h. Performance ratios always cover the
// link's entire history regardless of the selected window.
func (s *AnalyticsService) Analyze(ctx context.Context, trackingID, timeframe string, detailed bool) (*domain.AnalyticsReport, error) {
	link, err := s.repo.Find(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	tf, window := domain.ParseTimeframe(timeframe)
	now := time.Now()
	cutoff := now.Add(-window)

	var clicks []domain.Click
	for _, c := range link.Clicks {
		if !c.Timestamp.Before(cutoff) {
			clicks = append(clicks, c)
		}
	}
	var conversions []domain.Conversion
	for _, c := range link.Conversions {
		if !c.Timestamp.Before(cutoff) {
			conversions = append(conversions, c)
		}
	}

	report := &domain.AnalyticsReport{
		TrackingID:  trackingID,
		Timeframe:   tf,
		GeneratedAt: now,
		Metrics:     windowMetrics(clicks, conversions),
		Geo:         geoBreakdown(clicks),
		Devices:     deviceBreakdown(clicks),
		Hourly:      hourlyActivity(clicks),
		Referrers:   referrerBreakdown(clicks),
		UTM:         utmEffectiveness(clicks, conversions),
		Performance: performanceRatios(link),
	}

	if detailed {
		report.Detail = buildDetail(link)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"tracking_id": trackingID,
		"timeframe":   string(tf),
		"clicks":      len(clicks),
		"conversions": len(conversions),
		"detailed":    detailed,
	}).Debug("Computed analytics report")

	return report, nil
}

// windowMetrics computes the headline numbers for the filtered window
func windowMetrics(clicks []domain.Click, conversions []domain.Conversion) domain.WindowMetrics {
	m := domain.WindowMetrics{
		Clicks:      len(clicks),
		Conversions: len(conversions),
	}
	for _, c := range conversions {
		m.Revenue += c.Revenue
	}
	if m.Clicks > 0 {
		m.ConversionRate = round2(float64(m.Conversions) / float64(m.Clicks) * 100)
		m.RevenuePerClick = round2(m.Revenue / float64(m.Clicks))
	}
	if m.Conversions > 0 {
		m.AverageOrderValue = round2(m.Revenue / float64(m.Conversions))
	}
	return m
}

func geoBreakdown(clicks []domain.Click) domain.GeoBreakdown {
	countries := make(map[string]int)
	cities := make(map[string]int)
	for _, c := range clicks {
		if c.Location == nil {
			continue
		}
		if c.Location.Country != "" {
			countries[c.Location.Country]++
		}
		if c.Location.City != "" {
			cities[c.Location.City]++
		}
	}
	return domain.GeoBreakdown{
		Countries: sortedShares(countries, len(clicks), 0),
		Cities:    sortedShares(cities, len(clicks), topCitiesLimit),
	}
}

func deviceBreakdown(clicks []domain.Click) domain.DeviceBreakdown {
	var breakdown domain.DeviceBreakdown
	browsers := make(map[string]int)
	systems := make(map[string]int)

	for _, c := range clicks {
		if c.Device == nil {
			continue
		}
		switch c.Device.Type {
		case "mobile":
			breakdown.Mobile++
		case "tablet":
			breakdown.Tablet++
		case "desktop":
			breakdown.Desktop++
		}
		if c.Device.Browser != "" {
			browsers[c.Device.Browser]++
		}
		if c.Device.OS != "" {
			systems[c.Device.OS]++
		}
	}

	breakdown.Browsers = sortedShares(browsers, len(clicks), 0)
	breakdown.Systems = sortedShares(systems, len(clicks), 0)
	return breakdown
}

// hourlyActivity builds the fixed 24-slot histogram of clicks by
// hour-of-day with each slot's share of total.
func hourlyActivity(clicks []domain.Click) []domain.HourlySlot {
	slots := make([]domain.HourlySlot, 24)
	for i := range slots {
		slots[i].Hour = i
	}
	for _, c := range clicks {
		slots[c.Timestamp.UTC().Hour()].Clicks++
	}
	if total := len(clicks); total > 0 {
		for i := range slots {
			slots[i].Percentage = round2(float64(slots[i].Clicks) / float64(total) * 100)
		}
	}
	return slots
}

func referrerBreakdown(clicks []domain.Click) []domain.CountShare {
	referrers := make(map[string]int)
	for _, c := range clicks {
		ref := c.Referrer
		if ref == "" {
			ref = directReferrerName
		}
		referrers[ref]++
	}
	return sortedShares(referrers, len(clicks), topReferrersLimit)
}

// utmEffectiveness groups window clicks and conversions by the
// (source, medium, campaign) triple. A conversion inherits the triple of
// its session's first windowed click.
func utmEffectiveness(clicks []domain.Click, conversions []domain.Conversion) []domain.UTMEffectiveness {
	type bucket struct {
		key         domain.UTMKey
		clicks      int
		conversions int
	}
	buckets := make(map[string]*bucket)
	sessionUTM := make(map[string]domain.UTMKey)

	for _, c := range clicks {
		key := domain.UTMKey{Source: c.UTM.Source, Medium: c.UTM.Medium, Campaign: c.UTM.Campaign}
		b, ok := buckets[key.String()]
		if !ok {
			b = &bucket{key: key}
			buckets[key.String()] = b
		}
		b.clicks++
		if _, seen := sessionUTM[c.SessionID]; !seen {
			sessionUTM[c.SessionID] = key
		}
	}

	for _, conv := range conversions {
		key, ok := sessionUTM[conv.SessionID]
		if !ok {
			continue
		}
		if b, ok := buckets[key.String()]; ok {
			b.conversions++
		}
	}

	out := make([]domain.UTMEffectiveness, 0, len(buckets))
	for _, b := range buckets {
		e := domain.UTMEffectiveness{
			Source:      b.key.Source,
			Medium:      b.key.Medium,
			Campaign:    b.key.Campaign,
			Clicks:      b.clicks,
			Conversions: b.conversions,
		}
		if b.clicks > 0 {
			e.ConversionRate = round2(float64(b.conversions) / float64(b.clicks) * 100)
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConversionRate != out[j].ConversionRate {
			return out[i].ConversionRate > out[j].ConversionRate
		}
		if out[i].Clicks != out[j].Clicks {
			return out[i].Clicks > out[j].Clicks
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// performanceRatios covers the link's entire history, not the window.
// The formulas are fixed contracts: engagement is the share of sessions
// with more than one click, bounce is the share of single-click
// non-converting sessions, and the return-visitor rate derives from the
// ratio of total sessions to distinct known user IDs.
func performanceRatios(link *domain.TrackingLink) domain.PerformanceRatios {
	var ratios domain.PerformanceRatios

	if link.TotalClicks > 0 {
		ratios.ClickThroughRate = round2(float64(link.TotalConversions) / float64(link.TotalClicks) * 100)
	}

	totalSessions := len(link.Sessions)
	if totalSessions == 0 {
		return ratios
	}

	converting := make(map[string]bool, len(link.Conversions))
	for _, c := range link.Conversions {
		converting[c.SessionID] = true
	}

	engaged := 0
	bounced := 0
	users := make(map[string]bool)
	for id, sess := range link.Sessions {
		if sess.ClickCount > 1 {
			engaged++
		} else if !converting[id] {
			bounced++
		}
		if sess.UserID != "" {
			users[sess.UserID] = true
		}
	}

	ratios.EngagementRate = round2(float64(engaged) / float64(totalSessions) * 100)
	ratios.BounceRate = round2(float64(bounced) / float64(totalSessions) * 100)

	if len(users) > 0 {
		rate := (1 - float64(len(users))/float64(totalSessions)) * 100
		if rate < 0 {
			rate = 0
		}
		ratios.ReturnVisitorRate = round2(rate)
	}

	return ratios
}

// buildDetail assembles the extended payload: recent events, top sessions,
// and the conversion funnel.
func buildDetail(link *domain.TrackingLink) *domain.AnalyticsDetail {
	detail := &domain.AnalyticsDetail{
		RecentClicks:      lastClicks(link.Clicks, recentClicksLimit),
		RecentConversions: lastConversions(link.Conversions, recentConvsLimit),
		TopSessions:       topSessions(link, topSessionsLimit),
		Funnel:            buildFunnel(link),
	}
	return detail
}

// buildFunnel computes the staged drop-off from clicks through sessions,
// engagement, and conversion. Each stage is annotated with its conversion
// rate from the prior stage; the first stage is always 100.
func buildFunnel(link *domain.TrackingLink) []domain.FunnelStage {
	engaged := 0
	for _, sess := range link.Sessions {
		if sess.ClickCount > 1 {
			engaged++
		}
	}
	convertingSessions := make(map[string]bool, len(link.Conversions))
	for _, c := range link.Conversions {
		convertingSessions[c.SessionID] = true
	}

	counts := []struct {
		stage string
		count int
	}{
		{"clicks", link.TotalClicks},
		{"sessions", len(link.Sessions)},
		{"engaged_sessions", engaged},
		{"converting_sessions", len(convertingSessions)},
		{"conversions", link.TotalConversions},
	}

	funnel := make([]domain.FunnelStage, len(counts))
	for i, c := range counts {
		stage := domain.FunnelStage{Stage: c.stage, Count: c.count}
		if i == 0 {
			stage.ConversionRate = 100
		} else if prior := counts[i-1].count; prior > 0 {
			stage.ConversionRate = round2(float64(c.count) / float64(prior) * 100)
		}
		funnel[i] = stage
	}
	return funnel
}

func lastClicks(clicks []domain.Click, limit int) []domain.Click {
	if len(clicks) <= limit {
		out := make([]domain.Click, len(clicks))
		copy(out, clicks)
		reverseClicks(out)
		return out
	}
	out := make([]domain.Click, limit)
	copy(out, clicks[len(clicks)-limit:])
	reverseClicks(out)
	return out
}

func reverseClicks(clicks []domain.Click) {
	for i, j := 0, len(clicks)-1; i < j; i, j = i+1, j-1 {
		clicks[i], clicks[j] = clicks[j], clicks[i]
	}
}

func lastConversions(conversions []domain.Conversion, limit int) []domain.Conversion {
	start := 0
	if len(conversions) > limit {
		start = len(conversions) - limit
	}
	out := make([]domain.Conversion, len(conversions)-start)
	copy(out, conversions[start:])
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func topSessions(link *domain.TrackingLink, limit int) []domain.SessionSummary {
	sessions := make([]domain.SessionSummary, 0, len(link.Sessions))
	for _, sess := range link.Sessions {
		sessions = append(sessions, domain.SessionSummary{
			SessionID:      sess.ID,
			ClickCount:     sess.ClickCount,
			Conversions:    len(sess.ConversionIDs),
			StartedAt:      sess.StartedAt,
			LastActivityAt: sess.LastActivityAt,
			UserID:         sess.UserID,
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ClickCount != sessions[j].ClickCount {
			return sessions[i].ClickCount > sessions[j].ClickCount
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions
}

// sortedShares converts a tally map into labeled counts with percentage
// shares, sorted descending. limit of 0 keeps all entries.
func sortedShares(tallies map[string]int, total, limit int) []domain.CountShare {
	out := make([]domain.CountShare, 0, len(tallies))
	for label, count := range tallies {
		share := domain.CountShare{Label: label, Count: count}
		if total > 0 {
			share.Percentage = round2(float64(count) / float64(total) * 100)
		}
		out = append(out, share)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
