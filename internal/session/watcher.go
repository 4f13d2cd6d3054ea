// Package session mirrors the auth backend's session into process-wide
// state. The mirror is fed from two sources with no ordering guarantee
// between them: a one-shot fetch at startup and a long-lived subscription to
// change notifications. Writes are last-write-wins, so either arrival order
// is tolerated without special-casing.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/acmelabs/signon/internal/domain"
	"github.com/acmelabs/signon/internal/pubsub"
)

// TopicChanged carries session-change notifications: every sign-in,
// sign-out, OAuth callback and token refresh publishes here.
const TopicChanged = "auth.session.changed"

// Publish broadcasts a session change. A zero-value state means signed out.
func Publish(ctx context.Context, pub pubsub.Publisher, state domain.SessionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, pubsub.Message{
		Topic:   TopicChanged,
		Payload: payload,
	})
}

// Watcher keeps the mirrored SessionState synchronized. It has an explicit
// Start/Stop lifecycle; Stop releases the subscription exactly once and
// never raises.
type Watcher struct {
	provider domain.AuthProvider
	sub      pubsub.Subscriber

	// initialToken, when non-empty, is validated against the backend once
	// at Start to seed the mirror.
	initialToken string

	// onChange, when set, observes every accepted state write. The hub uses
	// it to push re-rendered fragments to open pages.
	onChange func(domain.SessionState)

	mu    sync.RWMutex
	state domain.SessionState

	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewWatcher wires a Watcher to the backend and the notification bus.
func NewWatcher(provider domain.AuthProvider, sub pubsub.Subscriber, initialToken string, onChange func(domain.SessionState)) *Watcher {
	return &Watcher{
		provider:     provider,
		sub:          sub,
		initialToken: initialToken,
		onChange:     onChange,
	}
}

// Start registers the change-notification listener and kicks off the initial
// session fetch. The two run concurrently; whichever resolves last wins.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	if err := w.sub.Subscribe(ctx, TopicChanged, w.handleChange); err != nil {
		w.cancel()
		return err
	}

	go w.fetchInitial(ctx)
	return nil
}

// Stop releases the subscription. It is safe to call repeatedly and from any
// goroutine; release failures are swallowed, never fatal.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Debug("Ignoring session watcher release failure", "cause", r)
			}
		}()
		if w.cancel != nil {
			w.cancel()
		}
	})
}

// Current returns the mirrored session state.
func (w *Watcher) Current() domain.SessionState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Watcher) handleChange(_ context.Context, msg pubsub.Message) error {
	var state domain.SessionState
	if err := json.Unmarshal(msg.Payload, &state); err != nil {
		return err
	}
	w.set(state)
	return nil
}

// fetchInitial performs the one-shot session lookup. An absent or rejected
// token seeds the signed-out state; only unexpected backend failures are
// logged, and none of them prevent the push stream from taking over.
func (w *Watcher) fetchInitial(ctx context.Context) {
	if w.initialToken == "" {
		w.set(domain.SessionState{})
		return
	}

	user, err := w.provider.User(ctx, w.initialToken)
	if err != nil {
		if !errors.Is(err, domain.ErrNoSession) && !errors.Is(err, context.Canceled) {
			slog.Warn("Initial session fetch failed", "error", err)
		}
		w.set(domain.SessionState{})
		return
	}
	w.set(domain.SessionState{Present: true, UserEmail: user.Email})
}

func (w *Watcher) set(state domain.SessionState) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(state)
	}
}
