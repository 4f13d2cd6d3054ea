package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RateLimiter throttles credential submissions per client IP. The auth
// backend enforces its own limits too; this keeps obvious brute-force
// traffic from ever leaving the portal.
func RateLimiter() echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		// In-memory store, suitable for a single-instance portal.
		Store: middleware.NewRateLimiterMemoryStore(10), // 10 requests per minute

		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.String(http.StatusTooManyRequests, "Too many attempts. Please try again later.")
		},
	}
	return middleware.RateLimiterWithConfig(config)
}
