// Package gotrue is the HTTP client for the hosted auth backend. The backend
// owns credential storage, password hashing, session issuance and the OAuth
// handshake; this package only speaks its REST dialect and normalizes the
// loosely typed responses into domain types.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/acmelabs/signon/internal/domain"
)

// Auth API endpoint path constants.
const (
	signupPath    = "/auth/v1/signup"
	passwordPath  = "/auth/v1/token?grant_type=password"
	refreshPath   = "/auth/v1/token?grant_type=refresh_token"
	userPath      = "/auth/v1/user"
	logoutPath    = "/auth/v1/logout"
	authorizePath = "/auth/v1/authorize"
	healthPath    = "/auth/v1/health"
)

// Error is a failure reported by the auth backend. Message carries the text
// extracted from the response envelope, which is what the messaging policy
// sniffs for duplicate-account wording.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("auth backend returned status %d", e.Status)
}

// Client talks to a GoTrue-style auth API.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
}

// New creates a Client for the backend at baseURL, authenticating requests
// with the project's anon key.
func New(baseURL, anonKey string) *Client {
	return &Client{
		baseURL: baseURL,
		anonKey: anonKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// credentials is the request body for signup and password grant.
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionEnvelope is the token-bearing success shape shared by the password
// grant, refresh grant and auto-confirm signup responses.
type sessionEnvelope struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *domain.User `json:"user"`

	// Bare user shape from /signup when email confirmation is pending.
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Conf  *time.Time `json:"confirmed_at"`
}

func (env *sessionEnvelope) toResult() *domain.AuthResult {
	res := &domain.AuthResult{User: env.User}
	if env.AccessToken != "" {
		res.Session = &domain.Session{
			AccessToken:  env.AccessToken,
			RefreshToken: env.RefreshToken,
			ExpiresAt:    time.Now().Add(time.Duration(env.ExpiresIn) * time.Second),
			User:         env.User,
		}
	}
	if res.User == nil && env.ID != "" {
		res.User = &domain.User{ID: env.ID, Email: env.Email, ConfirmedAt: env.Conf}
	}
	return res
}

// SignInWithPassword exchanges email/password credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	return c.tokenRequest(ctx, passwordPath, credentials{Email: email, Password: password})
}

// SignUp registers a new account. The backend may return a full session
// (auto-confirm), a bare user pending confirmation, or an error whose text
// is the only duplicate-account signal we get.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	return c.tokenRequest(ctx, signupPath, credentials{Email: email, Password: password})
}

// Refresh exchanges a refresh token for a fresh session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	return c.tokenRequest(ctx, refreshPath, map[string]string{"refresh_token": refreshToken})
}

func (c *Client) tokenRequest(ctx context.Context, path string, payload any) (*domain.AuthResult, error) {
	body, status, err := c.do(ctx, http.MethodPost, path, "", payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &Error{Status: status, Message: Normalize(body).Message}
	}

	var env sessionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding auth response: %w", err)
	}
	res := env.toResult()
	res.Message = Normalize(body).Message
	return res, nil
}

// User resolves the account behind an access token. An unauthorized response
// maps to domain.ErrNoSession so callers can treat expiry and absence alike.
func (c *Client) User(ctx context.Context, accessToken string) (*domain.User, error) {
	body, status, err := c.do(ctx, http.MethodGet, userPath, accessToken, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, domain.ErrNoSession
	}
	if status < 200 || status >= 300 {
		return nil, &Error{Status: status, Message: Normalize(body).Message}
	}

	var user domain.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decoding user response: %w", err)
	}
	if user.ID == "" {
		return nil, domain.ErrNoSession
	}
	return &user, nil
}

// SignOut revokes the session behind the token. The backend returns no body
// on success.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	body, status, err := c.do(ctx, http.MethodPost, logoutPath, accessToken, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &Error{Status: status, Message: Normalize(body).Message}
	}
	return nil
}

// AuthorizeURL builds the browser redirect that starts an OAuth flow. The
// actual handshake runs between the browser, the backend and the provider;
// this call only fails on local misconfiguration.
func (c *Client) AuthorizeURL(provider, redirectTo, state string) (string, error) {
	if provider == "" {
		return "", domain.ErrProviderUnknown
	}
	base, err := url.Parse(c.baseURL)
	if err != nil || base.Host == "" {
		return "", fmt.Errorf("auth backend URL %q is not usable: %w", c.baseURL, domain.ErrProviderUnknown)
	}
	authorize := *base
	authorize.Path = authorizePath
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	if state != "" {
		q.Set("state", state)
	}
	authorize.RawQuery = q.Encode()
	return authorize.String(), nil
}

// Health probes the backend's health endpoint. Used by the CLI.
func (c *Client) Health(ctx context.Context) error {
	body, status, err := c.do(ctx, http.MethodGet, healthPath, "", nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &Error{Status: status, Message: Normalize(body).Message}
	}
	return nil
}

// do issues one request. The anon key always travels in the apikey header;
// the bearer token is the user's access token when one is supplied, the anon
// key otherwise.
func (c *Client) do(ctx context.Context, method, path, accessToken string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("apikey", c.anonKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("auth backend request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading auth response: %w", err)
	}
	return body, resp.StatusCode, nil
}
