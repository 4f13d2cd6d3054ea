package domain

import "errors"

// Sentinel errors for the auth flow. These provide consistent, checkable
// errors for failures the handlers branch on.
var (
	ErrProviderUnknown = errors.New("oauth provider is not configured")
	ErrNoSession       = errors.New("no active session")
)
