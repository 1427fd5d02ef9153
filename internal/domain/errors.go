package domain

import "errors"

// Domain error kinds. The delivery layer maps these onto HTTP status codes;
// callers test with errors.Is.
var (
	ErrLinkNotFound      = errors.New("tracking link not found")
	ErrLinkExpired       = errors.New("tracking link expired")
	ErrClickLimitReached = errors.New("tracking link click limit reached")
	ErrSessionNotFound   = errors.New("session not found on tracking link")
	ErrUnauthorized      = errors.New("caller not authorized to manage tracking links")
)
