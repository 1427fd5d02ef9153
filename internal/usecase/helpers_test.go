package usecase

import (
	"context"
	"sync"
	"time"

	"linktrack/internal/domain"
	"linktrack/internal/infrastructure"
	"linktrack/pkg/logger"
	"linktrack/pkg/metrics"
	"linktrack/pkg/token"
)

// Shared across the package: promauto registers collectors globally, a
// second metrics.New() in the same binary would panic.
var testMetrics = metrics.New()

func testLogger() *logger.Logger {
	return logger.New("error")
}

func testRepo() *infrastructure.LinkRepository {
	return infrastructure.NewLinkRepository(testLogger())
}

type allowAll struct{}

func (allowAll) CanManageLinks(ctx context.Context) error { return nil }

type denyAll struct{}

func (denyAll) CanManageLinks(ctx context.Context) error { return domain.ErrUnauthorized }

type stubGeo struct {
	location *domain.Location
	err      error
}

func (g *stubGeo) Locate(ctx context.Context, ip string) (*domain.Location, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.location, nil
}

type stubLedger struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
	err     error
}

func (l *stubLedger) Record(ctx context.Context, entry domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entry)
	return nil
}

func (l *stubLedger) recorded() []domain.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

type testEnv struct {
	repo        *infrastructure.LinkRepository
	links       *LinkService
	clicks      *ClickService
	conversions *ConversionService
	analytics   *AnalyticsService
	expiration  *ExpirationService
	ledger      *stubLedger
	geo         *stubGeo
}

func newTestEnv() *testEnv {
	log := testLogger()
	repo := infrastructure.NewLinkRepository(log)
	tokens := token.New()
	geo := &stubGeo{}
	ledger := &stubLedger{}
	resolver := NewGeoDeviceResolver(geo, 100*time.Millisecond, log)
	sessions := NewSessionCorrelator()

	return &testEnv{
		repo:        repo,
		links:       NewLinkService(repo, tokens, allowAll{}, 24, log, testMetrics),
		clicks:      NewClickService(repo, tokens, resolver, sessions, log, testMetrics),
		conversions: NewConversionService(repo, tokens, ledger, log, testMetrics),
		analytics:   NewAnalyticsService(repo, log),
		expiration:  NewExpirationService(repo, log, testMetrics),
		ledger:      ledger,
		geo:         geo,
	}
}

func (e *testEnv) createLink(input CreateLinkInput) (*domain.TrackingLink, error) {
	if input.CampaignName == "" {
		input.CampaignName = "spring-sale"
	}
	return e.links.Create(context.Background(), input)
}

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	mobileUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

// bucketBase returns the start of the current 30-minute session bucket so
// timestamp offsets inside a test stay within one bucket.
func bucketBase() time.Time {
	return time.Now().UTC().Truncate(SessionWindow)
}
