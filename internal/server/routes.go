package server

import (
	"net/http"

	"github.com/acmelabs/signon/internal/handlers"
	"github.com/acmelabs/signon/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	rateLimiter := middleware.RateLimiter()
	requireAuth := middleware.Auth(s.Provider)

	// The authenticated branch. Unauthenticated requests bounce to /login.
	s.E.GET("/", s.homeHandler.HomeGet, requireAuth)

	// The form branch, one route per mode; the toggle is a plain link.
	s.E.GET("/login", s.authHandler.LoginGet)
	s.E.GET("/signup", s.authHandler.SignupGet)
	s.E.POST("/auth/submit", s.authHandler.SubmitPost, rateLimiter)

	s.E.GET("/auth/oauth/:provider", s.authHandler.OAuthStart, rateLimiter)
	s.E.GET("/auth/callback", s.authHandler.OAuthCallback)

	s.E.GET("/logout", s.authHandler.Logout)

	// Live session updates for open pages.
	s.E.GET("/auth/ws", handlers.SessionSocket(s.hub))

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}
