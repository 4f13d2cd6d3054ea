package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/acmelabs/signon/internal/domain"
	"github.com/acmelabs/signon/internal/handlers"
	"github.com/acmelabs/signon/internal/outcome"
	"github.com/acmelabs/signon/internal/testutils"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthTest(provider domain.AuthProvider) (*echo.Echo, *handlers.AuthHandler) {
	e := echo.New()
	cookieStore := sessions.NewCookieStore([]byte(testutils.TestSessionSecret))
	e.Use(session.Middleware(cookieStore))

	authHandler := handlers.NewAuthHandler(provider, nil, "http://localhost:8080", []string{"github"})

	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "home") })
	e.GET("/login", authHandler.LoginGet)
	e.GET("/signup", authHandler.SignupGet)
	e.POST("/auth/submit", authHandler.SubmitPost)
	e.GET("/auth/oauth/:provider", authHandler.OAuthStart)
	e.GET("/auth/callback", authHandler.OAuthCallback)
	e.GET("/logout", authHandler.Logout)

	return e, authHandler
}

// assertFlashMessage checks for a specific flash message in the session. The
// session registry caches per request, so reading through a fresh store with
// the original request sees what the handler wrote.
func assertFlashMessage(t *testing.T, req *http.Request, key, expectedMessage string) {
	t.Helper()
	cookieStore := sessions.NewCookieStore([]byte(testutils.TestSessionSecret))
	sess, _ := cookieStore.Get(req, "flash-session")

	flashes := sess.Flashes(key)
	assert.NotEmpty(t, flashes, "expected flash message but found none for key: %s", key)
	if len(flashes) > 0 {
		assert.Equal(t, expectedMessage, flashes[0])
	}
}

// assertNoFlash checks that no flash message was set for the given key.
func assertNoFlash(t *testing.T, req *http.Request, key string) {
	t.Helper()
	cookieStore := sessions.NewCookieStore([]byte(testutils.TestSessionSecret))
	sess, _ := cookieStore.Get(req, "flash-session")
	assert.Empty(t, sess.Flashes(key), "expected no flash for key: %s", key)
}

func submitForm(e *echo.Echo, mode, email, password string, cookies ...*http.Cookie) (*http.Request, *httptest.ResponseRecorder) {
	form := url.Values{}
	form.Set("mode", mode)
	form.Set("email", email)
	form.Set("password", password)

	req := httptest.NewRequest(http.MethodPost, "/auth/submit", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return req, rec
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSubmitPost_SignInSuccess(t *testing.T) {
	e, _ := setupAuthTest(&testutils.MockProvider{})

	req, rec := submitForm(e, "signin", "test@example.com", "password123")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
	assertFlashMessage(t, req, "info", outcome.MsgSignedIn)

	access := responseCookie(rec, "access_token")
	require.NotNil(t, access, "expected access token cookie")
	assert.Equal(t, "test-token", access.Value)
	assert.True(t, access.HttpOnly)

	refresh := responseCookie(rec, "refresh_token")
	require.NotNil(t, refresh, "expected refresh token cookie")
	assert.Equal(t, "test-refresh", refresh.Value)
}

func TestSubmitPost_SignInInvalidCredentials(t *testing.T) {
	provider := &testutils.MockProvider{
		SignInFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			return nil, errors.New("Invalid login credentials")
		},
	}
	e, _ := setupAuthTest(provider)

	req, rec := submitForm(e, "signin", "test@example.com", "wrong")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
	// The backend's message surfaces verbatim as a hard error.
	assertFlashMessage(t, req, "error", "Invalid login credentials")
	assertFlashMessage(t, req, "form_email", "test@example.com")
	assert.Nil(t, responseCookie(rec, "access_token"))
}

func TestSubmitPost_SignUpCreated(t *testing.T) {
	e, _ := setupAuthTest(&testutils.MockProvider{})

	req, rec := submitForm(e, "signup", "new@example.com", "password123")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/signup", rec.Header().Get(echo.HeaderLocation))
	assertFlashMessage(t, req, "info", outcome.MsgConfirmationPending)
	// A confirmed signup clears the form.
	assertNoFlash(t, req, "form_email")
	assert.Nil(t, responseCookie(rec, "access_token"))
}

func TestSubmitPost_SignUpDuplicate(t *testing.T) {
	t.Run("conflict reported in response message", func(t *testing.T) {
		provider := &testutils.MockProvider{
			SignUpFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
				return &domain.AuthResult{Message: "User already registered"}, nil
			},
		}
		e, _ := setupAuthTest(provider)

		req, rec := submitForm(e, "signup", "taken@example.com", "password123")

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assertFlashMessage(t, req, "info", outcome.MsgAlreadyRegistered)
		assertNoFlash(t, req, "error")
	})

	t.Run("conflict reported as an error", func(t *testing.T) {
		provider := &testutils.MockProvider{
			SignUpFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
				return nil, errors.New("A user with this email address has already been registered")
			},
		}
		e, _ := setupAuthTest(provider)

		req, _ := submitForm(e, "signup", "taken@example.com", "password123")

		// Downgraded to information, never a hard failure.
		assertFlashMessage(t, req, "info", outcome.MsgAlreadyRegistered)
		assertNoFlash(t, req, "error")
	})
}

func TestSubmitPost_SignUpAmbiguous(t *testing.T) {
	provider := &testutils.MockProvider{
		SignUpFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			return &domain.AuthResult{}, nil
		},
	}
	e, _ := setupAuthTest(provider)

	req, _ := submitForm(e, "signup", "maybe@example.com", "password123")

	assertFlashMessage(t, req, "info", outcome.MsgMaybeRegistered)
	// The ambiguous outcome keeps the email for an easy retry.
	assertFlashMessage(t, req, "form_email", "maybe@example.com")
}

func TestSubmitPost_CollapsesConcurrentSubmissions(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	provider := &testutils.MockProvider{
		SignInFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			calls.Add(1)
			<-gate
			user := &domain.User{ID: "u1", Email: email}
			return &domain.AuthResult{
				Session: &domain.Session{AccessToken: "tok", User: user},
				User:    user,
			}, nil
		},
	}
	e, _ := setupAuthTest(provider)

	// Establish a browser session first so both submissions share an id.
	loginReq := httptest.NewRequest(http.MethodGet, "/login", nil)
	loginRec := httptest.NewRecorder()
	e.ServeHTTP(loginRec, loginReq)
	cookies := loginRec.Result().Cookies()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			submitForm(e, "signin", "test@example.com", "password123", cookies...)
		}()
	}

	// Wait for the first dispatch, give the second submit time to join it,
	// then release.
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.EqualValues(t, 1, calls.Load())
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load(), "second submission should never re-dispatch")
}

func TestSubmitPost_DiscardsResultAfterModeToggle(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	provider := &testutils.MockProvider{
		SignInFn: func(ctx context.Context, email, password string) (*domain.AuthResult, error) {
			close(started)
			<-gate
			return nil, errors.New("Invalid login credentials")
		},
	}
	e, _ := setupAuthTest(provider)

	loginReq := httptest.NewRequest(http.MethodGet, "/login", nil)
	loginRec := httptest.NewRecorder()
	e.ServeHTTP(loginRec, loginReq)
	cookies := loginRec.Result().Cookies()

	type result struct {
		req *http.Request
		rec *httptest.ResponseRecorder
	}
	done := make(chan result, 1)
	go func() {
		req, rec := submitForm(e, "signin", "test@example.com", "password123", cookies...)
		done <- result{req, rec}
	}()

	<-started

	// The user toggles to sign-up while the submission is in flight.
	toggleReq := httptest.NewRequest(http.MethodGet, "/signup", nil)
	for _, c := range cookies {
		toggleReq.AddCookie(c)
	}
	e.ServeHTTP(httptest.NewRecorder(), toggleReq)

	close(gate)
	res := <-done

	// The stale result is dropped: no flash from the sign-in attempt, just a
	// redirect to the mode the browser is now showing.
	assert.Equal(t, http.StatusSeeOther, res.rec.Code)
	assert.Equal(t, "/signup", res.rec.Header().Get(echo.HeaderLocation))
	assertNoFlash(t, res.req, "error")
	assertNoFlash(t, res.req, "info")
}

func TestLoginGet_RendersForm(t *testing.T) {
	e, _ := setupAuthTest(&testutils.MockProvider{})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sign In with Email")
}

func TestLoginGet_RedirectsWhenSignedIn(t *testing.T) {
	e, _ := setupAuthTest(&testutils.MockProvider{})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{
		Name:  "access_token",
		Value: testutils.MakeAccessToken(t, "me@example.com", time.Now().Add(time.Hour)),
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
}

func TestOAuthStart_Redirects(t *testing.T) {
	var gotProvider, gotRedirect, gotState string
	provider := &testutils.MockProvider{
		AuthorizeURLFn: func(name, redirectTo, state string) (string, error) {
			gotProvider, gotRedirect, gotState = name, redirectTo, state
			return "https://auth.example.com/auth/v1/authorize?provider=" + name, nil
		},
	}
	e, _ := setupAuthTest(provider)

	req := httptest.NewRequest(http.MethodGet, "/auth/oauth/github", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://auth.example.com/auth/v1/authorize?provider=github", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "github", gotProvider)
	assert.Equal(t, "http://localhost:8080/auth/callback", gotRedirect)
	assert.NotEmpty(t, gotState)
}

func TestOAuthStart_UnknownProvider(t *testing.T) {
	e, _ := setupAuthTest(&testutils.MockProvider{})

	req := httptest.NewRequest(http.MethodGet, "/auth/oauth/gitlab", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
	assertFlashMessage(t, req, "error", "Sign-in with gitlab is not enabled.")
}

func TestOAuthCallback_ProviderError(t *testing.T) {
	e, _ := setupAuthTest(&testutils.MockProvider{})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?error_description=Access+denied", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
	assertFlashMessage(t, req, "error", "Access denied")
}

func TestOAuthCallback_NoTokenRendersRelay(t *testing.T) {
	e, _ := setupAuthTest(&testutils.MockProvider{})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "location.hash")
}

func TestOAuthCallback_Success(t *testing.T) {
	e, _ := setupAuthTest(&testutils.MockProvider{})

	token := testutils.MakeAccessToken(t, "me@example.com", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?access_token="+token+"&refresh_token=r1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
	assertFlashMessage(t, req, "info", outcome.MsgSignedIn)

	access := responseCookie(rec, "access_token")
	require.NotNil(t, access)
	assert.Equal(t, token, access.Value)
	refresh := responseCookie(rec, "refresh_token")
	require.NotNil(t, refresh)
	assert.Equal(t, "r1", refresh.Value)
}

func TestOAuthCallback_RejectedToken(t *testing.T) {
	provider := &testutils.MockProvider{
		UserFn: func(ctx context.Context, accessToken string) (*domain.User, error) {
			return nil, domain.ErrNoSession
		},
	}
	e, _ := setupAuthTest(provider)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?access_token=bogus", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
	assertFlashMessage(t, req, "error", "Sign-in could not be completed. Please try again.")
	assert.Nil(t, responseCookie(rec, "access_token"))
}

func TestLogout(t *testing.T) {
	var revoked string
	provider := &testutils.MockProvider{
		SignOutFn: func(ctx context.Context, accessToken string) error {
			revoked = accessToken
			return nil
		},
	}
	e, _ := setupAuthTest(provider)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "current-token"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "current-token", revoked)
	assertFlashMessage(t, req, "info", "You have been signed out.")

	access := responseCookie(rec, "access_token")
	require.NotNil(t, access)
	assert.Empty(t, access.Value)
	assert.Negative(t, access.MaxAge)
}

func TestLogout_ClearsSessionWhenBackendFails(t *testing.T) {
	provider := &testutils.MockProvider{
		SignOutFn: func(ctx context.Context, accessToken string) error {
			return errors.New("upstream unavailable")
		},
	}
	e, _ := setupAuthTest(provider)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "current-token"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// Revocation is best-effort; the local session clears regardless.
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	access := responseCookie(rec, "access_token")
	require.NotNil(t, access)
	assert.Empty(t, access.Value)
}
