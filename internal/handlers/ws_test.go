package handlers_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/acmelabs/signon/internal/handlers"
	"github.com/acmelabs/signon/internal/hub"
	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSessionSocketAfterHubShutdown verifies that a page connecting while
// the hub is already closed is turned away promptly instead of the handler
// blocking on a registration nothing will ever drain.
func TestSessionSocketAfterHubShutdown(t *testing.T) {
	h := hub.New()
	stopped := make(chan struct{})
	go func() {
		h.Run()
		close(stopped)
	}()
	h.Close()
	<-stopped

	e := echo.New()
	e.GET("/auth/ws", handlers.SessionSocket(h))
	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/auth/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	// The server closes the connection instead of streaming fragments.
	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
