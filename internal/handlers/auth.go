package handlers

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/acmelabs/signon/internal/domain"
	"github.com/acmelabs/signon/internal/gotrue"
	"github.com/acmelabs/signon/internal/middleware"
	"github.com/acmelabs/signon/internal/outcome"
	"github.com/acmelabs/signon/internal/pubsub"
	"github.com/acmelabs/signon/internal/session"
	"github.com/acmelabs/signon/internal/view"
	"github.com/google/uuid"
	echosession "github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/singleflight"
)

const (
	appSessionName    = "signon-session"
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
	sessionKeyBrowser = "sid"
	sessionKeyOAuth   = "oauth_state"
)

// refreshCookieMaxAge bounds how long a signed-out browser can still resume
// a session; the backend enforces the real refresh-token lifetime.
const refreshCookieMaxAge = 30 * 24 * time.Hour

// AuthHandler handles authentication-related requests. All credential
// verification happens at the auth backend; this handler only dispatches,
// classifies responses into user-facing messages, and maintains cookies.
type AuthHandler struct {
	provider       domain.AuthProvider
	publisher      pubsub.Publisher
	baseURL        string
	oauthProviders []string

	// inflight collapses concurrent submissions from the same browser
	// session into one backend call; a second submit while one is pending
	// never dispatches again.
	inflight singleflight.Group

	// modes remembers the last form mode each browser rendered, so a
	// submission that resolves after the user toggled modes can be
	// discarded instead of flashing a message for the wrong mode.
	modes sync.Map
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(provider domain.AuthProvider, publisher pubsub.Publisher, baseURL string, oauthProviders []string) *AuthHandler {
	return &AuthHandler{
		provider:       provider,
		publisher:      publisher,
		baseURL:        baseURL,
		oauthProviders: oauthProviders,
	}
}

// LoginGet renders the form in sign-in mode (GET /login).
func (h *AuthHandler) LoginGet(c echo.Context) error {
	return h.renderForm(c, outcome.SignIn)
}

// SignupGet renders the form in sign-up mode (GET /signup).
func (h *AuthHandler) SignupGet(c echo.Context) error {
	return h.renderForm(c, outcome.SignUp)
}

// renderForm is the mode toggle's landing point. Rendering consumes any
// pending Info/Error flash, so toggling always clears both; the submitted
// email survives via its own flash value.
func (h *AuthHandler) renderForm(c echo.Context, mode outcome.Mode) error {
	// A live session unconditionally overrides the form branch.
	if state := h.currentSession(c); state.Present {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	h.modes.Store(h.browserID(c), mode)

	data := view.AuthData{
		Mode:  mode,
		Email: view.TakeFormEmail(c),
		Flash: view.GetFlashData(c),
	}

	title := "Sign In"
	if mode == outcome.SignUp {
		title = "Create an account"
	}
	return render(c, view.Base(title, view.AuthPage(data)))
}

// submission pairs the classified outcome with the raw result, which is
// still needed to establish cookies on sign-in.
type submission struct {
	out outcome.Outcome
	res *domain.AuthResult
}

// SubmitPost handles the credential form (POST /auth/submit). Every path
// terminates in a flash message and a redirect; no failure escapes as an
// error page.
func (h *AuthHandler) SubmitPost(c echo.Context) error {
	email := c.FormValue("email")
	password := c.FormValue("password")
	mode := outcome.ParseMode(c.FormValue("mode"))
	sid := h.browserID(c)
	logger := middleware.FromContext(c.Request().Context())

	v, _, shared := h.inflight.Do(sid, func() (any, error) {
		ctx := c.Request().Context()
		var res *domain.AuthResult
		var err error
		if mode == outcome.SignIn {
			res, err = h.provider.SignInWithPassword(ctx, email, password)
		} else {
			res, err = h.provider.SignUp(ctx, email, password)
		}
		return submission{out: outcome.Classify(mode, res, err), res: res}, nil
	})
	sub := v.(submission)
	if shared {
		logger.Debug("Duplicate submission collapsed", "mode", mode)
	}

	// The request resolved under the mode it was issued with. If the user
	// has toggled since, its outcome belongs to the wrong mode; drop it.
	if cur, ok := h.modes.Load(sid); ok && cur.(outcome.Mode) != mode {
		logger.Debug("Discarding stale submission result", "issued", mode, "current", cur)
		return c.Redirect(http.StatusSeeOther, formPath(cur.(outcome.Mode)))
	}

	if sub.out.Kind == outcome.Error {
		view.SetFlashError(c, sub.out.Text)
		view.SetFormEmail(c, email)
		return c.Redirect(http.StatusSeeOther, formPath(mode))
	}

	view.SetFlashInfo(c, sub.out.Text)

	if mode == outcome.SignIn && sub.res != nil && sub.res.Session != nil {
		h.establishSession(c, sub.res.Session)
		return c.Redirect(http.StatusSeeOther, "/")
	}

	// A confirmed signup clears the form; every other informational outcome
	// keeps the email for an easy retry.
	if !sub.out.ClearForm {
		view.SetFormEmail(c, email)
	}
	return c.Redirect(http.StatusSeeOther, formPath(mode))
}

// OAuthStart fires the provider redirect (GET /auth/oauth/:provider). Only
// initiation errors surface locally; success is a full navigation away.
func (h *AuthHandler) OAuthStart(c echo.Context) error {
	name := c.Param("provider")
	back := h.lastFormPath(c)

	if !slices.Contains(h.oauthProviders, name) {
		view.SetFlashError(c, "Sign-in with "+name+" is not enabled.")
		return c.Redirect(http.StatusSeeOther, back)
	}

	state := uuid.NewString()
	if sess, err := echosession.Get(appSessionName, c); err == nil {
		sess.Values[sessionKeyOAuth] = state
		_ = sess.Save(c.Request(), c.Response())
	}

	redirectURL, err := h.provider.AuthorizeURL(name, h.baseURL+"/auth/callback", state)
	if err != nil {
		middleware.FromContext(c.Request().Context()).Error("OAuth initiation failed", "provider", name, "error", err)
		view.SetFlashError(c, err.Error())
		return c.Redirect(http.StatusSeeOther, back)
	}
	return c.Redirect(http.StatusSeeOther, redirectURL)
}

// OAuthCallback lands the browser after the external handshake
// (GET /auth/callback). The backend puts tokens in the URL fragment, which
// never reaches the server, so an empty request renders a relay page that
// re-issues the fragment as query parameters.
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	if msg := c.QueryParam("error_description"); msg != "" {
		view.SetFlashError(c, msg)
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	accessToken := c.QueryParam("access_token")
	if accessToken == "" {
		return render(c, view.Base("Signing in", view.CallbackRelay()))
	}

	if sess, err := echosession.Get(appSessionName, c); err == nil {
		want, _ := sess.Values[sessionKeyOAuth].(string)
		delete(sess.Values, sessionKeyOAuth)
		_ = sess.Save(c.Request(), c.Response())
		if want != "" && c.QueryParam("state") != want {
			view.SetFlashError(c, "Sign-in session expired. Please try again.")
			return c.Redirect(http.StatusSeeOther, "/login")
		}
	}

	user, err := h.provider.User(c.Request().Context(), accessToken)
	if err != nil {
		middleware.FromContext(c.Request().Context()).Warn("OAuth callback token rejected", "error", err)
		view.SetFlashError(c, "Sign-in could not be completed. Please try again.")
		return c.Redirect(http.StatusSeeOther, "/login")
	}

	s := &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: c.QueryParam("refresh_token"),
		User:         user,
	}
	if claims, err := gotrue.ParseClaims(accessToken); err == nil {
		s.ExpiresAt = claims.ExpiresAt
	}

	h.establishSession(c, s)
	view.SetFlashInfo(c, outcome.MsgSignedIn)
	return c.Redirect(http.StatusSeeOther, "/")
}

// Logout signs the user out (GET /logout). Revocation at the backend is
// best-effort; the local session is cleared regardless.
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(accessCookieName); err == nil && cookie.Value != "" {
		if err := h.provider.SignOut(c.Request().Context(), cookie.Value); err != nil {
			middleware.FromContext(c.Request().Context()).Warn("Backend sign-out failed", "error", err)
		}
	}

	h.clearSession(c)
	view.SetFlashInfo(c, "You have been signed out.")
	return c.Redirect(http.StatusSeeOther, "/login")
}

// currentSession derives the mirrored session state from the auth cookies,
// refreshing an expired access token when a refresh token is available.
func (h *AuthHandler) currentSession(c echo.Context) domain.SessionState {
	cookie, err := c.Cookie(accessCookieName)
	if err != nil || cookie.Value == "" {
		return domain.SessionState{}
	}

	claims, err := gotrue.ParseClaims(cookie.Value)
	if err != nil {
		return domain.SessionState{}
	}
	if !claims.Expired() {
		return domain.SessionState{Present: true, UserEmail: claims.Email}
	}

	refresh, err := c.Cookie(refreshCookieName)
	if err != nil || refresh.Value == "" {
		return domain.SessionState{}
	}
	res, err := h.provider.Refresh(c.Request().Context(), refresh.Value)
	if err != nil || res.Session == nil {
		return domain.SessionState{}
	}
	h.establishSession(c, res.Session)
	return domain.StateOf(res.Session)
}

// establishSession sets the auth cookies and notifies the session stream.
func (h *AuthHandler) establishSession(c echo.Context, s *domain.Session) {
	expires := s.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(time.Hour)
	}
	setAuthCookie(c, accessCookieName, s.AccessToken, expires)
	if s.RefreshToken != "" {
		setAuthCookie(c, refreshCookieName, s.RefreshToken, time.Now().Add(refreshCookieMaxAge))
	}
	h.publishState(c, domain.StateOf(s))
}

// clearSession expires the auth cookies and notifies the session stream.
func (h *AuthHandler) clearSession(c echo.Context) {
	setAuthCookie(c, accessCookieName, "", time.Time{})
	setAuthCookie(c, refreshCookieName, "", time.Time{})
	h.publishState(c, domain.SessionState{})
}

func (h *AuthHandler) publishState(c echo.Context, state domain.SessionState) {
	if h.publisher == nil {
		return
	}
	if err := session.Publish(c.Request().Context(), h.publisher, state); err != nil {
		middleware.FromContext(c.Request().Context()).Error("Failed to publish session change", "error", err)
	}
}

// browserID returns a stable identifier for this browser session, creating
// one on first use. It keys the double-submission and stale-mode guards.
func (h *AuthHandler) browserID(c echo.Context) string {
	sess, err := echosession.Get(appSessionName, c)
	if err != nil {
		return c.RealIP()
	}
	if sid, ok := sess.Values[sessionKeyBrowser].(string); ok && sid != "" {
		return sid
	}
	sid := uuid.NewString()
	sess.Values[sessionKeyBrowser] = sid
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		middleware.FromContext(c.Request().Context()).Error("Failed to save session", "error", err)
	}
	return sid
}

// lastFormPath returns the path of the mode the browser last rendered.
func (h *AuthHandler) lastFormPath(c echo.Context) string {
	if cur, ok := h.modes.Load(h.browserID(c)); ok {
		return formPath(cur.(outcome.Mode))
	}
	return "/login"
}

func formPath(mode outcome.Mode) string {
	if mode == outcome.SignUp {
		return "/signup"
	}
	return "/login"
}

// setAuthCookie creates or expires an auth cookie. A zero expiry deletes it.
func setAuthCookie(c echo.Context, name, value string, expires time.Time) {
	cookie := new(http.Cookie)
	cookie.Name = name
	cookie.Value = value
	cookie.Path = "/"
	if value == "" {
		cookie.MaxAge = -1
	} else {
		cookie.Expires = expires.UTC()
	}
	// HttpOnly keeps the tokens away from page scripts; Secure engages
	// automatically when serving TLS.
	cookie.HttpOnly = true
	cookie.Secure = c.Request().TLS != nil
	cookie.SameSite = http.SameSiteLaxMode
	c.SetCookie(cookie)
}
