package server

import (
	"bytes"
	"log"
	"log/slog"

	"github.com/acmelabs/signon/internal/config"
	"github.com/acmelabs/signon/internal/domain"
	"github.com/acmelabs/signon/internal/gotrue"
	"github.com/acmelabs/signon/internal/handlers"
	"github.com/acmelabs/signon/internal/hub"
	"github.com/acmelabs/signon/internal/logging"
	appmw "github.com/acmelabs/signon/internal/middleware"
	"github.com/acmelabs/signon/internal/pubsub"
	"github.com/acmelabs/signon/internal/session"
	"github.com/acmelabs/signon/internal/view"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	echosession "github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E        *echo.Echo
	Cfg      config.Provider
	Provider domain.AuthProvider
	Bus      pubsub.Bus

	hub         *hub.Hub
	watcher     *session.Watcher
	authHandler *handlers.AuthHandler
	homeHandler *handlers.HomeHandler
}

// New creates a new Server instance.
func New() *Server {
	// Load environment variables from .env file if it exists. slog is not
	// configured yet, so the standard logger covers initial setup.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	logging.New()
	cfg := config.New()

	return NewWithConfig(cfg, gotrue.New(cfg.GetAuthURL(), cfg.GetAuthAnonKey()))
}

// NewWithConfig wires a Server from explicit dependencies. Tests substitute
// a fake auth provider here.
func NewWithConfig(cfg config.Provider, provider domain.AuthProvider) *Server {
	bus := pubsub.NewWatermillBridge()

	sessionHub := hub.New()
	go sessionHub.Run()

	// Every accepted session-state write is re-rendered and pushed to the
	// connected pages, so an open form flips to the authenticated branch
	// the moment a session appears.
	watcher := session.NewWatcher(provider, bus, "", func(state domain.SessionState) {
		var buf bytes.Buffer
		if err := view.SessionFragment(state).Render(&buf); err != nil {
			slog.Error("Failed to render session fragment", "error", err)
			return
		}
		select {
		case sessionHub.Broadcast <- buf.Bytes():
		case <-sessionHub.Done():
		}
	})

	authHandler := handlers.NewAuthHandler(provider, bus, cfg.GetAppBaseURL(), cfg.GetOAuthProviders())
	homeHandler := handlers.NewHomeHandler()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(appmw.Logger)

	store := sessions.NewCookieStore([]byte(cfg.GetSessionSecret()))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
	}
	e.Use(echosession.Middleware(store))

	return &Server{
		E:           e,
		Cfg:         cfg,
		Provider:    provider,
		Bus:         bus,
		hub:         sessionHub,
		watcher:     watcher,
		authHandler: authHandler,
		homeHandler: homeHandler,
	}
}

// Watcher exposes the session watcher, useful for testing.
func (s *Server) Watcher() *session.Watcher {
	return s.watcher
}
