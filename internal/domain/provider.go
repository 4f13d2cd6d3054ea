package domain

import "context"

// AuthProvider is the contract with the hosted auth backend. It lives in the
// domain because it is a requirement OF the portal, not of the HTTP client
// implementation. Credential storage, hashing, token issuance and the OAuth
// handshake all happen on the other side of this interface.
type AuthProvider interface {
	// User resolves the account behind an access token. A nil session error
	// (ErrNoSession) means the token is absent, expired or revoked.
	User(ctx context.Context, accessToken string) (*User, error)

	// SignInWithPassword exchanges credentials for a session.
	SignInWithPassword(ctx context.Context, email, password string) (*AuthResult, error)

	// SignUp registers a new account. Depending on backend settings the
	// result may carry a session (auto-confirm), only a user pending email
	// confirmation, or neither when the address is already taken.
	SignUp(ctx context.Context, email, password string) (*AuthResult, error)

	// AuthorizeURL builds the browser redirect that starts an OAuth flow
	// with the named provider. It fails fast on misconfiguration; the
	// handshake itself happens entirely outside this process.
	AuthorizeURL(provider, redirectTo, state string) (string, error)

	// SignOut revokes the session behind the token.
	SignOut(ctx context.Context, accessToken string) error

	// Refresh exchanges a refresh token for a fresh session.
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
}

// AuthResult is the normalized outcome of a credential operation. The
// backend's raw envelope is loosely typed; the client normalizes it into
// this shape before anyone reasons about it. Message carries whatever
// human-readable text the backend attached, even on nominal success.
type AuthResult struct {
	Session *Session
	User    *User
	Message string
}

// HasUser reports whether the backend returned a created/known user object.
func (r *AuthResult) HasUser() bool {
	return r != nil && r.User != nil
}
