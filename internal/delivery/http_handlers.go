package delivery

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"linktrack/internal/domain"
	"linktrack/internal/usecase"
	"linktrack/pkg/logger"
)

// handles HTTP requests
type HTTPHandlers struct {
	links       *usecase.LinkService
	clicks      *usecase.ClickService
	conversions *usecase.ConversionService
	analytics   *usecase.AnalyticsService
	expiration  *usecase.ExpirationService
	auth        domain.Authorizer
	logger      *logger.Logger
	baseURL     string
}

// creates new HTTP handlers
func NewHTTPHandlers(
	links *usecase.LinkService,
	clicks *usecase.ClickService,
	conversions *usecase.ConversionService,
	analytics *usecase.AnalyticsService,
	expiration *usecase.ExpirationService,
	auth domain.Authorizer,
	logger *logger.Logger,
	baseURL string,
) *HTTPHandlers {
	return &HTTPHandlers{
		links:       links,
		clicks:      clicks,
		conversions: conversions,
		analytics:   analytics,
		expiration:  expiration,
		auth:        auth,
		logger:      logger,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// HealthCheck reports liveness
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateLink creates a new tracking link
func (h *HTTPHandlers) CreateLink(c *gin.Context) {
	requestID := c.GetString("request_id")

	var input usecase.CreateLinkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid request body",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	link, err := h.links.Create(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err, requestID)
		return
	}

	trackingURL := h.trackingURL(link.TrackingID)
	c.JSON(http.StatusCreated, gin.H{
		"link":         link.Summary(),
		"tracking_url": trackingURL,
		"snippet":      trackingSnippet(trackingURL, link.CampaignName),
		"request_id":   requestID,
	})
}

// ListLinks lists tracking links with filters and pagination
func (h *HTTPHandlers) ListLinks(c *gin.Context) {
	requestID := c.GetString("request_id")

	filter := domain.LinkFilter{
		Status:       domain.LinkStatus(c.Query("status")),
		CampaignName: c.Query("campaign"),
		Source:       c.Query("source"),
		Limit:        intQuery(c, "limit", 100),
		Offset:       intQuery(c, "offset", 0),
	}

	response, err := h.links.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err, requestID)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ExtendExpiry pushes a link's expiry forward and reactivates it
func (h *HTTPHandlers) ExtendExpiry(c *gin.Context) {
	requestID := c.GetString("request_id")
	trackingID := c.Param("trackingId")

	var body struct {
		AdditionalHours int `json:"additional_hours"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid request body",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	link, err := h.links.ExtendExpiry(c.Request.Context(), trackingID, body.AdditionalHours)
	if err != nil {
		h.respondError(c, err, requestID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"link":       link.Summary(),
		"request_id": requestID,
	})
}

type recordClickRequest struct {
	IPAddress   string            `json:"ip_address"`
	UserAgent   string            `json:"user_agent"`
	Referrer    string            `json:"referrer"`
	LandingPage string            `json:"landing_page"`
	UTMSource   string            `json:"utm_source"`
	UTMMedium   string            `json:"utm_medium"`
	UTMCampaign string            `json:"utm_campaign"`
	UTMTerm     string            `json:"utm_term"`
	UTMContent  string            `json:"utm_content"`
	UserID      string            `json:"user_id"`
	Metadata    map[string]string `json:"metadata"`
}

// RecordClick records a click supplied by an upstream transport
func (h *HTTPHandlers) RecordClick(c *gin.Context) {
	requestID := c.GetString("request_id")
	trackingID := c.Param("trackingId")

	var body recordClickRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid request body",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	input := usecase.ClickInput{
		IPAddress:   body.IPAddress,
		UserAgent:   body.UserAgent,
		Referrer:    body.Referrer,
		LandingPage: body.LandingPage,
		UTM: domain.UTM{
			Source:   body.UTMSource,
			Medium:   body.UTMMedium,
			Campaign: body.UTMCampaign,
			Term:     body.UTMTerm,
			Content:  body.UTMContent,
		},
		UserID: body.UserID,
	}
	if input.IPAddress == "" {
		input.IPAddress = c.ClientIP()
	}
	if input.UserAgent == "" {
		input.UserAgent = c.Request.UserAgent()
	}

	result, err := h.clicks.Record(c.Request.Context(), trackingID, input)
	if err != nil {
		h.respondError(c, err, requestID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"redirect_url": result.RedirectURL,
		"session_id":   result.SessionID,
		"request_id":   requestID,
	})
}

// Redirect records a click from the live request and forwards the visitor
// to the link's destination. Recording is best-effort: when the click is
// rejected but the destination is known, the visitor is redirected anyway.
func (h *HTTPHandlers) Redirect(c *gin.Context) {
	trackingID := c.Param("trackingId")

	input := usecase.ClickInput{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
		UTM: domain.UTM{
			Source:   c.Query("utm_source"),
			Medium:   c.Query("utm_medium"),
			Campaign: c.Query("utm_campaign"),
			Term:     c.Query("utm_term"),
			Content:  c.Query("utm_content"),
		},
		UserID: c.Query("uid"),
	}

	result, err := h.clicks.Record(c.Request.Context(), trackingID, input)
	if err == nil {
		if result.RedirectURL != "" {
			c.Redirect(http.StatusFound, result.RedirectURL)
		} else {
			c.JSON(http.StatusOK, gin.H{"session_id": result.SessionID})
		}
		return
	}

	// The caller decides whether to redirect anyway; here a known
	// destination still gets the visitor through.
	if link, findErr := h.links.Get(c.Request.Context(), trackingID); findErr == nil && link.DestinationURL != "" {
		h.logger.WithContext(c.Request.Context()).WithError(err).WithField("tracking_id", trackingID).Warn("Click rejected, redirecting to destination anyway")
		c.Redirect(http.StatusFound, link.DestinationURL)
		return
	}

	h.respondError(c, err, c.GetString("request_id"))
}

type recordConversionRequest struct {
	OrderRef  string            `json:"order_ref"`
	Amount    float64           `json:"amount"`
	Revenue   float64           `json:"revenue"`
	UserID    string            `json:"user_id"`
	SessionID string            `json:"session_id"`
	Metadata  map[string]string `json:"metadata"`
}

// RecordConversion attributes a purchase event to a link and session
func (h *HTTPHandlers) RecordConversion(c *gin.Context) {
	requestID := c.GetString("request_id")
	trackingID := c.Param("trackingId")

	var body recordConversionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid request body",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	conversion, err := h.conversions.Attribute(c.Request.Context(), trackingID, usecase.ConversionInput{
		OrderRef:  body.OrderRef,
		Amount:    body.Amount,
		Revenue:   body.Revenue,
		UserID:    body.UserID,
		SessionID: body.SessionID,
		Metadata:  body.Metadata,
	})

	// A ledger failure leaves the conversion recorded; report both facts.
	if errors.Is(err, usecase.ErrLedgerWrite) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "Conversion recorded but ledger write failed",
			"message":    err.Error(),
			"conversion": conversion,
			"request_id": requestID,
		})
		return
	}
	if err != nil {
		h.respondError(c, err, requestID)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"conversion": conversion,
		"request_id": requestID,
	})
}

// GetAnalytics returns the analytics report for one link
func (h *HTTPHandlers) GetAnalytics(c *gin.Context) {
	requestID := c.GetString("request_id")
	trackingID := c.Param("trackingId")

	timeframe := c.DefaultQuery("timeframe", "24h")
	detailed, _ := strconv.ParseBool(c.DefaultQuery("detailed", "false"))

	report, err := h.analytics.Analyze(c.Request.Context(), trackingID, timeframe, detailed)
	if err != nil {
		h.respondError(c, err, requestID)
		return
	}

	c.JSON(http.StatusOK, report)
}

// SweepExpired triggers an expiration sweep on demand
func (h *HTTPHandlers) SweepExpired(c *gin.Context) {
	requestID := c.GetString("request_id")

	if err := h.auth.CanManageLinks(c.Request.Context()); err != nil {
		h.respondError(c, err, requestID)
		return
	}

	result, err := h.expiration.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Sweep failed",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"expired_count": result.ExpiredCount,
		"request_id":    requestID,
	})
}

func (h *HTTPHandlers) trackingURL(trackingID string) string {
	return h.baseURL + "/t/" + trackingID
}

// trackingSnippet renders the embeddable HTML fragment returned alongside
// link creation. Formatting only, layered on the summary.
func trackingSnippet(trackingURL, campaignName string) string {
	return fmt.Sprintf(`<a href=%q rel="nofollow" data-campaign=%q>%s</a>`, trackingURL, campaignName, campaignName)
}

// respondError maps domain errors onto HTTP status codes
func (h *HTTPHandlers) respondError(c *gin.Context, err error, requestID string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrLinkNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrLinkExpired):
		status = http.StatusGone
	case errors.Is(err, domain.ErrClickLimitReached):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	}

	c.JSON(status, gin.H{
		"error":      err.Error(),
		"request_id": requestID,
	})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}
