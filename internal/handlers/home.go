package handlers

import (
	"github.com/acmelabs/signon/internal/domain"
	"github.com/acmelabs/signon/internal/middleware"
	"github.com/acmelabs/signon/internal/outcome"
	"github.com/acmelabs/signon/internal/view"
	"github.com/labstack/echo/v4"
)

// HomeHandler renders the authenticated branch of the portal.
type HomeHandler struct{}

// NewHomeHandler creates a new HomeHandler.
func NewHomeHandler() *HomeHandler {
	return &HomeHandler{}
}

// HomeGet renders the welcome view (GET /). The auth middleware has already
// established the user; an unauthenticated request never reaches here.
func (h *HomeHandler) HomeGet(c echo.Context) error {
	state := domain.SessionState{}
	if user, ok := c.Get(middleware.UserContextKey).(*domain.User); ok && user != nil {
		state = domain.SessionState{Present: true, UserEmail: user.Email}
	}

	data := view.AuthData{
		Mode:    outcome.SignIn,
		Flash:   view.GetFlashData(c),
		Session: state,
	}
	return render(c, view.Base("Welcome", view.AuthPage(data)))
}
