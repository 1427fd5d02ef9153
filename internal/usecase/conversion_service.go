package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"linktrack/internal/domain"
	"linktrack/pkg/logger"
	"linktrack/pkg/metrics"
)

// AttributionModel names the model under which revenue is credited.
// The session active at click time receives all of the conversion's
// revenue; there is no multi-touch splitting.
const AttributionModel = "last_click"

// ErrLedgerWrite marks a conversion whose in-aggregate update succeeded
// but whose external ledger write failed. The aggregate is never rolled
// back; the write is at-least-once, reconciliation is an operational
// concern outside this engine.
var ErrLedgerWrite = errors.New("revenue ledger write failed")

// ConversionService attaches purchase events to the session/link that
// produced them and updates revenue rollups.
type ConversionService struct {
	repo    domain.LinkRepository
	tokens  domain.TokenGenerator
	ledger  domain.RevenueLedger
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// creates a new conversion service
func NewConversionService(
	repo domain.LinkRepository,
	tokens domain.TokenGenerator,
	ledger domain.RevenueLedger,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *ConversionService {
	return &ConversionService{
		repo:    repo,
		tokens:  tokens,
		ledger:  ledger,
		logger:  logger,
		metrics: metrics,
	}
}

// ConversionInput carries one purchase event for attribution
type ConversionInput struct {
	OrderRef  string            `json:"order_ref"`
	Amount    float64           `json:"amount"`
	Revenue   float64           `json:"revenue"`
	UserID    string            `json:"user_id"`
	SessionID string            `json:"session_id"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp time.Time         `json:"-"` // zero means now
}

// Attribute records the conversion against the link and its session.
// Attribution is not gated by link activity: conversions against an
// expired link still count, only click recording checks activity.
func (s *ConversionService) Attribute(ctx context.Context, trackingID string, input ConversionInput) (*domain.Conversion, error) {
	if input.OrderRef == "" {
		return nil, fmt.Errorf("order reference is required")
	}
	if input.SessionID == "" {
		return nil, domain.ErrSessionNotFound
	}

	ts := input.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var conversion domain.Conversion
	var campaign string
	_, err := s.repo.Update(ctx, trackingID, func(link *domain.TrackingLink) error {
		sess, ok := link.Sessions[input.SessionID]
		if !ok {
			return domain.ErrSessionNotFound
		}

		conversion = domain.Conversion{
			ID:        s.tokens.EventID(),
			Timestamp: ts,
			OrderRef:  input.OrderRef,
			Amount:    input.Amount,
			Revenue:   input.Revenue,
			SessionID: input.SessionID,
			UserID:    input.UserID,
			Metadata:  input.Metadata,
			Status:    "completed",
		}

		link.Conversions = append(link.Conversions, conversion)
		sess.ConversionIDs = append(sess.ConversionIDs, conversion.ID)
		if sess.UserID == "" && input.UserID != "" {
			sess.UserID = input.UserID
		}

		link.AttributedRevenue += input.Revenue
		link.RecomputeTotals()

		campaign = link.CampaignName
		return nil
	})
	if err != nil {
		s.metrics.RecordConversion(conversionOutcome(err), 0)
		return nil, err
	}

	s.metrics.RecordConversion("success", input.Revenue)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"tracking_id": trackingID,
		"order_ref":   input.OrderRef,
		"session_id":  input.SessionID,
		"revenue":     input.Revenue,
	}).Info("Attributed conversion")

	// Second effect: external ledger write. A failure here is surfaced
	// to the caller but the aggregate update above stands.
	entry := domain.LedgerEntry{
		Amount:           input.Amount,
		Source:           "link_tracking",
		OrderRef:         input.OrderRef,
		UserRef:          input.UserID,
		AttributionModel: AttributionModel,
		Metadata: map[string]string{
			"tracking_id": trackingID,
			"session_id":  input.SessionID,
			"campaign":    campaign,
		},
		RecordedAt: ts,
	}
	if err := s.ledger.Record(ctx, entry); err != nil {
		s.metrics.RecordLedgerFailure("record")
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tracking_id": trackingID,
			"order_ref":   input.OrderRef,
		}).Error("Ledger write failed after conversion was recorded")
		return &conversion, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	return &conversion, nil
}

func conversionOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrLinkNotFound):
		return "link_not_found"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session_not_found"
	default:
		return "error"
	}
}
