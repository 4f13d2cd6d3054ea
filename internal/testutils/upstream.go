package testutils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Route keys for FakeAuthBackend responses.
const (
	RouteSignIn  = "signin"
	RouteSignUp  = "signup"
	RouteRefresh = "refresh"
	RouteUser    = "user"
	RouteLogout  = "logout"
	RouteHealth  = "health"
)

// CannedResponse is one scripted backend reply.
type CannedResponse struct {
	Status int
	Body   string
}

// FakeAuthBackend is an httptest stand-in for the hosted auth service. Each
// logical route returns its scripted response; call counts are recorded so
// tests can assert how often the portal reached upstream.
type FakeAuthBackend struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]CannedResponse
	calls     map[string]int
}

// NewFakeAuthBackend starts a fake backend with all routes scripted to
// succeed. Use Script to override individual routes.
func NewFakeAuthBackend(t interface{ Cleanup(func()) }) *FakeAuthBackend {
	f := &FakeAuthBackend{
		responses: map[string]CannedResponse{
			RouteSignIn:  {Status: http.StatusOK, Body: `{"access_token":"t","refresh_token":"r","expires_in":3600,"user":{"id":"u1","email":"a@b.com"}}`},
			RouteSignUp:  {Status: http.StatusOK, Body: `{"id":"u2","email":"new@x.com"}`},
			RouteRefresh: {Status: http.StatusOK, Body: `{"access_token":"t2","refresh_token":"r2","expires_in":3600,"user":{"id":"u1","email":"a@b.com"}}`},
			RouteUser:    {Status: http.StatusOK, Body: `{"id":"u1","email":"a@b.com"}`},
			RouteLogout:  {Status: http.StatusNoContent, Body: ""},
			RouteHealth:  {Status: http.StatusOK, Body: `{"name":"GoTrue"}`},
		},
		calls: map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		route := RouteSignIn
		if r.URL.Query().Get("grant_type") == "refresh_token" {
			route = RouteRefresh
		}
		f.respond(w, route)
	})
	mux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		f.respond(w, RouteSignUp)
	})
	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		f.respond(w, RouteUser)
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		f.respond(w, RouteLogout)
	})
	mux.HandleFunc("/auth/v1/health", func(w http.ResponseWriter, r *http.Request) {
		f.respond(w, RouteHealth)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// Script overrides the response for one route.
func (f *FakeAuthBackend) Script(route string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[route] = CannedResponse{Status: status, Body: body}
}

// Calls reports how many requests reached the given route.
func (f *FakeAuthBackend) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

func (f *FakeAuthBackend) respond(w http.ResponseWriter, route string) {
	f.mu.Lock()
	resp := f.responses[route]
	f.calls[route]++
	f.mu.Unlock()

	if strings.HasPrefix(resp.Body, "{") {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write([]byte(resp.Body))
}
