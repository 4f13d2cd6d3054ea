package gotrue

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token fields the portal reads locally. The token is
// signed with the backend's secret, which this process does not hold; the
// backend remains the authority on validity. Local parsing only avoids a
// round-trip for display (email) and expiry scheduling.
type Claims struct {
	Email     string
	ExpiresAt time.Time
}

// ParseClaims extracts Claims from an access token without verifying its
// signature.
func ParseClaims(accessToken string) (Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return Claims{}, fmt.Errorf("parsing access token: %w", err)
	}

	out := Claims{}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// Expired reports whether the token's expiry has passed. Tokens without an
// exp claim are treated as live; the backend rejects them if it disagrees.
func (c Claims) Expired() bool {
	return !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(time.Now())
}
