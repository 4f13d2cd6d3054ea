// Package hub fans rendered HTML fragments out to connected pages. When the
// session watcher observes a change, every open page receives the
// re-rendered session fragment and flips to the matching branch without a
// reload.
package hub

import "log/slog"

// Client represents a single connected page. The hub sends outbound
// fragments to Send; the websocket handler drains it.
type Client struct {
	// Send is a buffered channel of outbound fragments.
	Send chan []byte
}

// NewClient creates a client with a send buffer large enough to absorb a
// burst of session flips without stalling the broadcast loop.
func NewClient() *Client {
	return &Client{Send: make(chan []byte, 8)}
}

// Hub maintains the set of connected pages and broadcasts fragments to them.
type Hub struct {
	clients map[*Client]bool

	// Broadcast is the channel for inbound fragments from any component.
	Broadcast chan []byte

	// Register and Unregister manage the client set.
	Register   chan *Client
	Unregister chan *Client

	done chan struct{}
}

// New creates and returns a new Hub instance.
func New() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run starts the broadcast loop. It must be run in its own goroutine and
// exits when Close is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return

		case client := <-h.Register:
			h.clients[client] = true
			slog.Debug("Page connected", "total_clients", len(h.clients))

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				slog.Debug("Page disconnected", "total_clients", len(h.clients))
			}

		case fragment := <-h.Broadcast:
			for client := range h.clients {
				// Non-blocking send: a full buffer means the page is
				// lagging or gone, so drop it rather than stall everyone.
				select {
				case client.Send <- fragment:
				default:
					close(client.Send)
					delete(h.clients, client)
					slog.Warn("Dropping slow page connection", "total_clients", len(h.clients))
				}
			}
		}
	}
}

// Close stops the broadcast loop and disconnects all pages.
func (h *Hub) Close() {
	close(h.done)
}

// Done is closed when the hub shuts down. Register and Unregister sends must
// select on it; after Close nothing drains those channels.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
