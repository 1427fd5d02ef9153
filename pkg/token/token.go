package token

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator produces collision-resistant identifiers for tracking links
// and their owned events.
type Generator struct {
	codeLength int
}

func New() *Generator {
	return &Generator{codeLength: 16}
}

// TrackingID returns a fresh tracking link identifier
func (g *Generator) TrackingID() (string, error) {
	code, err := randomCode(g.codeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate tracking id: %w", err)
	}
	return "trk_" + code, nil
}

// EventID returns an identifier for click and conversion records
func (g *Generator) EventID() string {
	return uuid.New().String()
}

func randomCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}
