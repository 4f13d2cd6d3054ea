package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start runs the HTTP server and the session watcher, then blocks until an
// interrupt or terminate signal triggers a graceful shutdown.
func (s *Server) Start() {
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()

	if err := s.watcher.Start(watchCtx); err != nil {
		s.E.Logger.Fatalf("starting session watcher: %v", err)
	}

	go func() {
		if err := s.E.Start(s.Cfg.GetBindAddr()); err != nil && err != http.ErrServerClosed {
			s.E.Logger.Fatalf("shutting down the server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.watcher.Stop()
	s.hub.Close()
	if err := s.Bus.Close(); err != nil {
		s.E.Logger.Errorf("closing message bus: %v", err)
	}
	if err := s.E.Shutdown(ctx); err != nil {
		s.E.Logger.Fatal(err)
	}
}
