package testutils

import (
	"context"

	"github.com/acmelabs/signon/internal/domain"
)

// MockProvider is a scriptable domain.AuthProvider. Unset hooks fall back to
// a plain success so tests only script what they assert on.
type MockProvider struct {
	UserFn         func(ctx context.Context, accessToken string) (*domain.User, error)
	SignInFn       func(ctx context.Context, email, password string) (*domain.AuthResult, error)
	SignUpFn       func(ctx context.Context, email, password string) (*domain.AuthResult, error)
	AuthorizeURLFn func(provider, redirectTo, state string) (string, error)
	SignOutFn      func(ctx context.Context, accessToken string) error
	RefreshFn      func(ctx context.Context, refreshToken string) (*domain.AuthResult, error)
}

func (m *MockProvider) User(ctx context.Context, accessToken string) (*domain.User, error) {
	if m.UserFn != nil {
		return m.UserFn(ctx, accessToken)
	}
	return &domain.User{ID: "u1", Email: "test@example.com"}, nil
}

func (m *MockProvider) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	if m.SignInFn != nil {
		return m.SignInFn(ctx, email, password)
	}
	user := &domain.User{ID: "u1", Email: email}
	return &domain.AuthResult{
		Session: &domain.Session{AccessToken: "test-token", RefreshToken: "test-refresh", User: user},
		User:    user,
	}, nil
}

func (m *MockProvider) SignUp(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	if m.SignUpFn != nil {
		return m.SignUpFn(ctx, email, password)
	}
	return &domain.AuthResult{User: &domain.User{ID: "u2", Email: email}}, nil
}

func (m *MockProvider) AuthorizeURL(provider, redirectTo, state string) (string, error) {
	if m.AuthorizeURLFn != nil {
		return m.AuthorizeURLFn(provider, redirectTo, state)
	}
	return "https://auth.example.com/auth/v1/authorize?provider=" + provider, nil
}

func (m *MockProvider) SignOut(ctx context.Context, accessToken string) error {
	if m.SignOutFn != nil {
		return m.SignOutFn(ctx, accessToken)
	}
	return nil
}

func (m *MockProvider) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	if m.RefreshFn != nil {
		return m.RefreshFn(ctx, refreshToken)
	}
	user := &domain.User{ID: "u1", Email: "test@example.com"}
	return &domain.AuthResult{
		Session: &domain.Session{AccessToken: "refreshed-token", RefreshToken: "new-refresh", User: user},
		User:    user,
	}, nil
}
