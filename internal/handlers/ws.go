package handlers

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/acmelabs/signon/internal/hub"
	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
)

// SessionSocket upgrades GET /auth/ws and streams rendered session
// fragments to the page. Traffic is one-way: the page only listens.
func SessionSocket(h *hub.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // In production, check origin.
		})
		if err != nil {
			slog.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		client := hub.NewClient()
		select {
		case h.Register <- client:
		case <-h.Done():
			// Upgrade raced shutdown; nothing drains Register anymore.
			conn.Close(websocket.StatusGoingAway, "Server shutting down")
			return nil
		}

		go writePump(conn, client)
		readUntilClosed(conn, h, client)
		return nil
	}
}

// writePump pumps fragments from the client's send channel to the socket.
func writePump(conn *websocket.Conn, client *hub.Client) {
	defer conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")

	for fragment := range client.Send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := conn.Write(ctx, websocket.MessageText, fragment)
		cancel()
		if err != nil {
			slog.Debug("WebSocket write error", "error", err)
			return
		}
	}
}

// readUntilClosed drains the connection so close frames are processed, then
// unregisters the client.
func readUntilClosed(conn *websocket.Conn, h *hub.Hub, client *hub.Client) {
	defer func() {
		select {
		case h.Unregister <- client:
		case <-h.Done():
		}
		conn.Close(websocket.StatusNormalClosure, "Client disconnected")
	}()

	for {
		if _, _, err := conn.Read(context.Background()); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && err != io.EOF {
				slog.Debug("WebSocket read ended", "error", err)
			}
			return
		}
	}
}
