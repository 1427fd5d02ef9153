package infrastructure

import (
	"context"
	"crypto/subtle"

	"linktrack/internal/domain"
)

type contextKey string

// CallerKeyContextKey carries the caller's API key from the transport layer
const CallerKeyContextKey contextKey = "caller_api_key"

// WithCallerKey stores the caller-supplied API key in the context
func WithCallerKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, CallerKeyContextKey, key)
}

// implements domain.Authorizer by comparing a caller-supplied API key
// against a configured admin key. An empty configured key disables the
// check entirely (the surrounding deployment is trusted to authorize).
type APIKeyAuthorizer struct {
	apiKey string
}

// creates a new API key authorizer
func NewAPIKeyAuthorizer(apiKey string) *APIKeyAuthorizer {
	return &APIKeyAuthorizer{apiKey: apiKey}
}

func (a *APIKeyAuthorizer) CanManageLinks(ctx context.Context) error {
	if a.apiKey == "" {
		return nil
	}

	caller, _ := ctx.Value(CallerKeyContextKey).(string)
	if caller == "" {
		return domain.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(caller), []byte(a.apiKey)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}
