package domain

import "time"

// User is the identity record the auth backend reports for an account.
// Only the fields the portal renders or branches on are mapped; the backend
// owns the full record.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Session holds the tokens issued by the auth backend for a signed-in user.
// Its presence, not its internal shape, is what drives view selection.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user,omitempty"`
}

// Email returns the signed-in user's email, or "" when unknown.
func (s *Session) Email() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.Email
}

// SessionState is the portal's mirror of the backend session: a single
// subscribed value updated last-write-wins from both the initial fetch and
// the change-notification stream.
type SessionState struct {
	Present   bool
	UserEmail string
}

// StateOf derives the mirrored state from a session (nil means signed out).
func StateOf(s *Session) SessionState {
	if s == nil {
		return SessionState{}
	}
	return SessionState{Present: true, UserEmail: s.Email()}
}
