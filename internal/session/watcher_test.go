package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/acmelabs/signon/internal/domain"
	"github.com/acmelabs/signon/internal/pubsub"
	"github.com/acmelabs/signon/internal/session"
	"github.com/acmelabs/signon/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatcherMirrorsPublishedChanges(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	t.Cleanup(func() { _ = bus.Close() })

	seeded := make(chan struct{}, 8)
	w := session.NewWatcher(&testutils.MockProvider{}, bus, "", func(domain.SessionState) {
		seeded <- struct{}{}
	})
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	// Let the initial signed-out seed land before publishing, so the
	// published state is unambiguously the last write.
	<-seeded

	require.NoError(t, session.Publish(context.Background(), bus,
		domain.SessionState{Present: true, UserEmail: "a@b.com"}))

	waitFor(t, func() bool { return w.Current().Present })
	assert.Equal(t, "a@b.com", w.Current().UserEmail)

	require.NoError(t, session.Publish(context.Background(), bus, domain.SessionState{}))
	waitFor(t, func() bool { return !w.Current().Present })
}

func TestWatcherInitialFetchSeedsState(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	t.Cleanup(func() { _ = bus.Close() })

	provider := &testutils.MockProvider{
		UserFn: func(ctx context.Context, token string) (*domain.User, error) {
			return &domain.User{ID: "u1", Email: "seed@x.com"}, nil
		},
	}
	w := session.NewWatcher(provider, bus, "existing-token", nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	waitFor(t, func() bool { return w.Current().Present })
	assert.Equal(t, "seed@x.com", w.Current().UserEmail)
}

func TestWatcherToleratesEitherArrivalOrder(t *testing.T) {
	// Delay the initial fetch so the push notification lands first; the
	// fetch result still applies last-write-wins, which is the documented
	// contract for the two unordered sources.
	bus := pubsub.NewWatermillBridge()
	t.Cleanup(func() { _ = bus.Close() })

	fetchStarted := make(chan struct{})
	release := make(chan struct{})
	provider := &testutils.MockProvider{
		UserFn: func(ctx context.Context, token string) (*domain.User, error) {
			close(fetchStarted)
			<-release
			return &domain.User{ID: "u1", Email: "fetched@x.com"}, nil
		},
	}

	w := session.NewWatcher(provider, bus, "existing-token", nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	<-fetchStarted
	require.NoError(t, session.Publish(context.Background(), bus,
		domain.SessionState{Present: true, UserEmail: "pushed@x.com"}))
	waitFor(t, func() bool { return w.Current().UserEmail == "pushed@x.com" })

	close(release)
	waitFor(t, func() bool { return w.Current().UserEmail == "fetched@x.com" })
}

func TestWatcherNotifiesOnChange(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	t.Cleanup(func() { _ = bus.Close() })

	changes := make(chan domain.SessionState, 8)
	w := session.NewWatcher(&testutils.MockProvider{}, bus, "", func(s domain.SessionState) {
		changes <- s
	})
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	require.NoError(t, session.Publish(context.Background(), bus,
		domain.SessionState{Present: true, UserEmail: "a@b.com"}))

	waitFor(t, func() bool {
		select {
		case s := <-changes:
			return s.Present && s.UserEmail == "a@b.com"
		default:
			return false
		}
	})
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	t.Cleanup(func() { _ = bus.Close() })

	w := session.NewWatcher(&testutils.MockProvider{}, bus, "", nil)
	require.NoError(t, w.Start(context.Background()))

	assert.NotPanics(t, func() {
		w.Stop()
		w.Stop()
		w.Stop()
	})
}

func TestWatcherStopBeforeStartIsSafe(t *testing.T) {
	bus := pubsub.NewWatermillBridge()
	t.Cleanup(func() { _ = bus.Close() })

	w := session.NewWatcher(&testutils.MockProvider{}, bus, "", nil)
	assert.NotPanics(t, w.Stop)
}
