// Package testutils provides shared helpers for exercising the portal
// against a stand-in auth backend.
package testutils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestSessionSecret signs the cookie session store in tests.
const TestSessionSecret = "a-very-secret-key-for-testing-only!!"

// StubConfig is a fixed config.Provider for tests.
type StubConfig struct {
	AuthURL   string
	BaseURL   string
	Providers []string
}

func (s StubConfig) GetAuthURL() string       { return s.AuthURL }
func (s StubConfig) GetAuthAnonKey() string   { return "test-anon-key" }
func (s StubConfig) GetSessionSecret() string { return TestSessionSecret }
func (s StubConfig) GetAppBaseURL() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return "http://localhost:8080"
}
func (s StubConfig) GetBindAddr() string { return ":0" }
func (s StubConfig) GetOAuthProviders() []string {
	if s.Providers != nil {
		return s.Providers
	}
	return []string{"github"}
}

// MakeAccessToken mints a signed JWT carrying the claims the portal reads.
// The portal never verifies the signature locally, but the token must be
// structurally valid.
func MakeAccessToken(t *testing.T, email string, expiresAt time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   expiresAt.Unix(),
		"sub":   "user-" + email,
	})
	signed, err := token.SignedString([]byte("test-signing-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}
