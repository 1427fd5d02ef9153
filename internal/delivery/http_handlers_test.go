package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linktrack/internal/domain"
	"linktrack/internal/infrastructure"
	"linktrack/internal/usecase"
	"linktrack/pkg/logger"
	"linktrack/pkg/metrics"
	"linktrack/pkg/token"
)

// promauto registers collectors globally, so the whole test binary shares
// one metrics instance.
var testMetrics = metrics.New()

const testUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type testServer struct {
	engine *gin.Engine
	repo   *infrastructure.LinkRepository
	ledger *fakeLedger
}

type fakeLedger struct {
	err error
}

func (l *fakeLedger) Record(ctx context.Context, entry domain.LedgerEntry) error {
	return l.err
}

func newTestServer(apiKey string) *testServer {
	log := logger.New("error")
	repo := infrastructure.NewLinkRepository(log)
	tokens := token.New()
	auth := infrastructure.NewAPIKeyAuthorizer(apiKey)
	ledger := &fakeLedger{}

	resolver := usecase.NewGeoDeviceResolver(nil, 100*time.Millisecond, log)
	sessions := usecase.NewSessionCorrelator()

	links := usecase.NewLinkService(repo, tokens, auth, 24, log, testMetrics)
	clicks := usecase.NewClickService(repo, tokens, resolver, sessions, log, testMetrics)
	conversions := usecase.NewConversionService(repo, tokens, ledger, log, testMetrics)
	analytics := usecase.NewAnalyticsService(repo, log)
	expiration := usecase.NewExpirationService(repo, log, testMetrics)

	handlers := NewHTTPHandlers(links, clicks, conversions, analytics, expiration, auth, log, "http://track.example.com")
	router := NewHTTPRouter(handlers, log, testMetrics)

	return &testServer{
		engine: router.SetupRoutes(),
		repo:   repo,
		ledger: ledger,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testUA)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	recorder := httptest.NewRecorder()
	s.engine.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func (s *testServer) createLink(t *testing.T, input map[string]any) string {
	t.Helper()
	recorder := s.do(t, http.MethodPost, "/api/v1/links", input, nil)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	body := decodeBody(t, recorder)
	link := body["link"].(map[string]any)
	return link["tracking_id"].(string)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer("")

	recorder := server.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ok", decodeBody(t, recorder)["status"])
}

func TestCreateLinkEndpoint(t *testing.T) {
	server := newTestServer("")

	recorder := server.do(t, http.MethodPost, "/api/v1/links", map[string]any{
		"campaign_name":   "spring-sale",
		"source":          "newsletter",
		"medium":          "email",
		"destination_url": "https://shop.example.com/sale",
	}, nil)
	require.Equal(t, http.StatusCreated, recorder.Code)

	body := decodeBody(t, recorder)
	link := body["link"].(map[string]any)
	trackingID := link["tracking_id"].(string)

	assert.Equal(t, "active", link["status"])
	assert.Equal(t, "http://track.example.com/t/"+trackingID, body["tracking_url"])
	assert.Contains(t, body["snippet"], "/t/"+trackingID)
	assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))
}

func TestCreateLinkValidation(t *testing.T) {
	server := newTestServer("")

	recorder := server.do(t, http.MethodPost, "/api/v1/links", map[string]any{"source": "newsletter"}, nil)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestRedirectEndpointRecordsClick(t *testing.T) {
	server := newTestServer("")
	trackingID := server.createLink(t, map[string]any{
		"campaign_name":   "spring-sale",
		"destination_url": "https://shop.example.com/sale",
	})

	recorder := server.do(t, http.MethodGet, "/t/"+trackingID+"?utm_source=twitter&utm_medium=social", nil, nil)
	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "https://shop.example.com/sale", recorder.Header().Get("Location"))

	analytics := server.do(t, http.MethodGet, "/api/v1/links/"+trackingID+"/analytics?timeframe=24h", nil, nil)
	require.Equal(t, http.StatusOK, analytics.Code)

	var report domain.AnalyticsReport
	require.NoError(t, json.Unmarshal(analytics.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Metrics.Clicks)
	require.Len(t, report.UTM, 1)
	assert.Equal(t, "twitter", report.UTM[0].Source)
}

func TestRedirectUnknownLink(t *testing.T) {
	server := newTestServer("")

	recorder := server.do(t, http.MethodGet, "/t/trk_missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestClickConversionAnalyticsFlow(t *testing.T) {
	server := newTestServer("")
	trackingID := server.createLink(t, map[string]any{
		"campaign_name":   "spring-sale",
		"destination_url": "https://shop.example.com/sale",
	})

	var sessionID string
	for i := 0; i < 3; i++ {
		recorder := server.do(t, http.MethodPost, "/api/v1/links/"+trackingID+"/clicks", map[string]any{
			"ip_address": "203.0.113.5",
			"user_agent": testUA,
		}, nil)
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
		sessionID = decodeBody(t, recorder)["session_id"].(string)
	}

	conversion := server.do(t, http.MethodPost, "/api/v1/links/"+trackingID+"/conversions", map[string]any{
		"order_ref":  "order-3001",
		"amount":     100.0,
		"revenue":    100.0,
		"session_id": sessionID,
	}, nil)
	require.Equal(t, http.StatusCreated, conversion.Code, conversion.Body.String())

	analytics := server.do(t, http.MethodGet, "/api/v1/links/"+trackingID+"/analytics?timeframe=24h&detailed=true", nil, nil)
	require.Equal(t, http.StatusOK, analytics.Code)

	var report domain.AnalyticsReport
	require.NoError(t, json.Unmarshal(analytics.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Metrics.Clicks)
	assert.Equal(t, 1, report.Metrics.Conversions)
	assert.InDelta(t, 33.33, report.Metrics.ConversionRate, 0.01)
	assert.InDelta(t, 100, report.Metrics.Revenue, 1e-9)
	require.NotNil(t, report.Detail)
	assert.Len(t, report.Detail.Funnel, 5)
}

func TestConversionUnknownSession(t *testing.T) {
	server := newTestServer("")
	trackingID := server.createLink(t, map[string]any{"campaign_name": "spring-sale"})

	recorder := server.do(t, http.MethodPost, "/api/v1/links/"+trackingID+"/conversions", map[string]any{
		"order_ref":  "order-3002",
		"revenue":    10.0,
		"session_id": "deadbeefdeadbeef",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
}

func TestConversionLedgerFailure(t *testing.T) {
	server := newTestServer("")
	trackingID := server.createLink(t, map[string]any{"campaign_name": "spring-sale"})

	click := server.do(t, http.MethodPost, "/api/v1/links/"+trackingID+"/clicks", map[string]any{
		"ip_address": "203.0.113.5",
		"user_agent": testUA,
	}, nil)
	require.Equal(t, http.StatusOK, click.Code)
	sessionID := decodeBody(t, click)["session_id"].(string)

	server.ledger.err = fmt.Errorf("ledger unreachable")

	recorder := server.do(t, http.MethodPost, "/api/v1/links/"+trackingID+"/conversions", map[string]any{
		"order_ref":  "order-3003",
		"revenue":    25.0,
		"session_id": sessionID,
	}, nil)
	require.Equal(t, http.StatusBadGateway, recorder.Code)

	// The conversion itself is recorded and returned
	body := decodeBody(t, recorder)
	require.NotNil(t, body["conversion"])
	conv := body["conversion"].(map[string]any)
	assert.Equal(t, "order-3003", conv["order_ref"])
}

func TestClickLimitMapsTo429(t *testing.T) {
	server := newTestServer("")
	trackingID := server.createLink(t, map[string]any{
		"campaign_name": "spring-sale",
		"max_clicks":    1,
	})

	first := server.do(t, http.MethodPost, "/api/v1/links/"+trackingID+"/clicks", map[string]any{
		"ip_address": "203.0.113.5",
		"user_agent": testUA,
	}, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := server.do(t, http.MethodPost, "/api/v1/links/"+trackingID+"/clicks", map[string]any{
		"ip_address": "203.0.113.5",
		"user_agent": testUA,
	}, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestExpiredLinkMapsTo410(t *testing.T) {
	server := newTestServer("")
	trackingID := server.createLink(t, map[string]any{"campaign_name": "spring-sale"})

	_, err := server.repo.Update(context.Background(), trackingID, func(l *domain.TrackingLink) error {
		l.ExpiresAt = time.Now().Add(-time.Hour)
		return nil
	})
	require.NoError(t, err)

	recorder := server.do(t, http.MethodPost, "/api/v1/links/"+trackingID+"/clicks", map[string]any{
		"ip_address": "203.0.113.5",
		"user_agent": testUA,
	}, nil)
	assert.Equal(t, http.StatusGone, recorder.Code)
}

func TestListLinksEndpoint(t *testing.T) {
	server := newTestServer("")
	server.createLink(t, map[string]any{"campaign_name": "spring-sale", "source": "newsletter"})
	server.createLink(t, map[string]any{"campaign_name": "autumn-push", "source": "twitter"})

	recorder := server.do(t, http.MethodGet, "/api/v1/links?campaign=spring-sale", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response domain.LinkListResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Total)
	require.Len(t, response.Links, 1)
	assert.Equal(t, "spring-sale", response.Links[0].CampaignName)
}

func TestExtendExpiryEndpoint(t *testing.T) {
	server := newTestServer("")
	trackingID := server.createLink(t, map[string]any{"campaign_name": "spring-sale", "ttl_hours": 1})

	recorder := server.do(t, http.MethodPost, "/api/v1/links/"+trackingID+"/extend", map[string]any{
		"additional_hours": 12,
	}, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	link := body["link"].(map[string]any)
	assert.Equal(t, "active", link["status"])
}

func TestSweepEndpoint(t *testing.T) {
	server := newTestServer("")
	trackingID := server.createLink(t, map[string]any{"campaign_name": "spring-sale"})

	_, err := server.repo.Update(context.Background(), trackingID, func(l *domain.TrackingLink) error {
		l.ExpiresAt = time.Now().Add(-time.Hour)
		return nil
	})
	require.NoError(t, err)

	recorder := server.do(t, http.MethodPost, "/api/v1/sweep", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, float64(1), decodeBody(t, recorder)["expired_count"])

	again := server.do(t, http.MethodPost, "/api/v1/sweep", nil, nil)
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, float64(0), decodeBody(t, again)["expired_count"])
}

func TestAPIKeyEnforcement(t *testing.T) {
	server := newTestServer("secret-admin-key")

	denied := server.do(t, http.MethodPost, "/api/v1/links", map[string]any{"campaign_name": "spring-sale"}, nil)
	assert.Equal(t, http.StatusForbidden, denied.Code)

	wrongKey := server.do(t, http.MethodPost, "/api/v1/links", map[string]any{"campaign_name": "spring-sale"},
		map[string]string{"X-API-Key": "guessed"})
	assert.Equal(t, http.StatusForbidden, wrongKey.Code)

	allowed := server.do(t, http.MethodPost, "/api/v1/links", map[string]any{"campaign_name": "spring-sale"},
		map[string]string{"X-API-Key": "secret-admin-key"})
	assert.Equal(t, http.StatusCreated, allowed.Code)

	sweepDenied := server.do(t, http.MethodPost, "/api/v1/sweep", nil, nil)
	assert.Equal(t, http.StatusForbidden, sweepDenied.Code)
}
