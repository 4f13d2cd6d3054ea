package middleware

import (
	"net/http"

	"github.com/acmelabs/signon/internal/domain"
	"github.com/acmelabs/signon/internal/gotrue"
	"github.com/labstack/echo/v4"
)

const UserContextKey = "user"

const accessCookieName = "access_token"

// Auth creates a middleware that protects routes requiring authentication.
// The access token cookie is checked locally for presence and expiry, then
// confirmed with the auth backend, which remains the authority on validity.
func Auth(provider domain.AuthProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(accessCookieName)
			if err != nil || cookie.Value == "" {
				return c.Redirect(http.StatusSeeOther, "/login")
			}

			if claims, err := gotrue.ParseClaims(cookie.Value); err != nil || claims.Expired() {
				// An expired token is not cleared here: the login page can
				// still use its refresh cookie to restore the session.
				return c.Redirect(http.StatusSeeOther, "/login")
			}

			user, err := provider.User(c.Request().Context(), cookie.Value)
			if err != nil || user == nil {
				// Revoked or rejected upstream. Clear the stale cookie.
				c.SetCookie(&http.Cookie{
					Name:   accessCookieName,
					Value:  "",
					Path:   "/",
					MaxAge: -1,
				})
				return c.Redirect(http.StatusSeeOther, "/login")
			}

			c.Set(UserContextKey, user)
			return next(c)
		}
	}
}
