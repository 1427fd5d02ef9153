package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"linktrack/internal/domain"
)

// SessionWindow bounds a visitor session. Two clicks from the same
// (ip, user-agent) pair more than 30 minutes apart land in different time
// buckets and therefore in different sessions.
const SessionWindow = 30 * time.Minute

// SessionCorrelator groups clicks into time-windowed visitor sessions
// keyed by a deterministic fingerprint.
type SessionCorrelator struct{}

func NewSessionCorrelator() *SessionCorrelator {
	return &SessionCorrelator{}
}

// Correlate computes the session fingerprint for a click. Pure and
// deterministic: the same (ip, userAgent, bucket) triple always yields the
// same session ID.
func (c *SessionCorrelator) Correlate(ip, userAgent string, ts time.Time) string {
	bucket := ts.UTC().Truncate(SessionWindow).Unix()

	hasher := sha256.New()
	hasher.Write([]byte(ip + "|" + userAgent + "|" + strconv.FormatInt(bucket, 10)))
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// Touch looks up or creates the session inside the link's session map,
// increments its click count and updates activity. A userID is backfilled
// the first time it becomes known and never overwritten afterwards.
// Caller must hold the link's write lock (i.e. run inside a repository
// mutator).
func (c *SessionCorrelator) Touch(link *domain.TrackingLink, sessionID string, ts time.Time, userID string) *domain.Session {
	if link.Sessions == nil {
		link.Sessions = make(map[string]*domain.Session)
	}

	sess, ok := link.Sessions[sessionID]
	if !ok {
		sess = &domain.Session{
			ID:        sessionID,
			StartedAt: ts,
		}
		link.Sessions[sessionID] = sess
	}

	sess.ClickCount++
	if ts.After(sess.LastActivityAt) {
		sess.LastActivityAt = ts
	}
	if sess.UserID == "" && userID != "" {
		sess.UserID = userID
	}
	return sess
}
