package infrastructure

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"linktrack/internal/domain"
	"linktrack/pkg/logger"
	"linktrack/pkg/metrics"
)

// implements domain.RevenueLedger against an external HTTP ledger service.
// Writes are at-least-once from the engine's point of view: the caller
// records a conversion first and surfaces a ledger failure without rolling
// the aggregate back.
type LedgerClient struct {
	client      *http.Client
	url         string
	secret      string
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

// creates a new revenue ledger client
func NewLedgerClient(url, secret string, timeout time.Duration, ratePerSecond int, logger *logger.Logger, metrics *metrics.Metrics) *LedgerClient {
	if ratePerSecond <= 0 {
		ratePerSecond = 100
	}
	return &LedgerClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		url:         url,
		secret:      secret,
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(rate.Limit(ratePerSecond), 10),
	}
}

// Record pushes one revenue entry to the ledger
func (c *LedgerClient) Record(ctx context.Context, entry domain.LedgerEntry) error {
	if c.url == "" {
		c.metrics.RecordLedgerFailure("not_configured")
		return fmt.Errorf("ledger URL not configured")
	}

	start := time.Now()

	// Apply rate limiting
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordLedgerFailure("rate_limit")
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		c.metrics.RecordLedgerFailure("json_marshal")
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(payload))
	if err != nil {
		c.metrics.RecordLedgerFailure("request_creation")
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	// Add HMAC signature if secret is provided
	if c.secret != "" {
		req.Header.Set("X-Signature", c.generateHMACSignature(payload))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordLedgerFailure("network_error")
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordLedgerCall(fmt.Sprintf("error_%d", resp.StatusCode), duration)
		return fmt.Errorf("ledger API returned status %d", resp.StatusCode)
	}

	c.metrics.RecordLedgerCall("success", duration)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"order_ref": entry.OrderRef,
		"amount":    entry.Amount,
		"duration":  duration,
	}).Info("Recorded revenue ledger entry")

	return nil
}

// generates HMAC-SHA256 signature for the payload
func (c *LedgerClient) generateHMACSignature(payload []byte) string {
	h := hmac.New(sha256.New, []byte(c.secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
