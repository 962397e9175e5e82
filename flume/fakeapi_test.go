package flume_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-flume-client/flume"
	"github.com/jrsteele09/go-flume-client/internal/config"
	"github.com/jrsteele09/go-flume-client/token/tokentest"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "test_client_id"
	testClientSecret = "test_client_secret"
	testUsername     = "test_user"
	testPassword     = "test_pass"
	testUserID       = 1234
)

// clock is a settable time source shared by the client and the fake API.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAPI is an in-process Flume API: a token endpoint issuing unique JWTs and
// resource routes that only accept tokens it currently considers valid.
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server
	clock  *clock

	mu             sync.Mutex
	passwordGrants int
	refreshGrants  int
	serial         int
	valid          map[string]bool
	refreshTokens  map[string]bool
	calls          map[string]int
	authHeaders    []string
	bodies         map[string][]byte
	routes         map[string]http.HandlerFunc

	// knobs, set before the calls they affect
	expiresIn     int
	tokenDelay    time.Duration
	tokenStatus   int
	rejectRefresh bool
	rejectAll     bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:             t,
		clock:         newClock(),
		valid:         map[string]bool{},
		refreshTokens: map[string]bool{},
		calls:         map[string]int{},
		bodies:        map[string][]byte{},
		routes:        map[string]http.HandlerFunc{},
		expiresIn:     3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", f.handleToken)
	mux.HandleFunc("/", f.handleResource)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) creds() config.Flume {
	return config.Flume{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Username:     testUsername,
		Password:     testPassword,
		BaseURL:      f.server.URL,
	}
}

func (f *fakeAPI) options(extra ...flume.Option) []flume.Option {
	opts := []flume.Option{
		flume.WithTransport(f.server.Client().Transport),
		flume.WithNowTime(f.clock.Now),
	}
	return append(opts, extra...)
}

// newClient builds an unauthenticated client against the fake.
func (f *fakeAPI) newClient(extra ...flume.Option) *flume.Client {
	f.t.Helper()
	c, err := flume.New(f.creds(), f.options(extra...)...)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = c.Close() })
	return c
}

func (f *fakeAPI) route(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = h
}

// revoke invalidates every access token issued so far.
func (f *fakeAPI) revoke() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid = map[string]bool{}
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) grants() (password, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passwordGrants, f.refreshGrants
}

func (f *fakeAPI) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeAPI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAPI) lastAuthHeader() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.authHeaders) == 0 {
		return ""
	}
	return f.authHeaders[len(f.authHeaders)-1]
}

func (f *fakeAPI) handleToken(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFailure(w, http.StatusBadRequest, "bad json")
		return
	}

	f.mu.Lock()
	delay := f.tokenDelay
	switch body["grant_type"] {
	case "password":
		f.passwordGrants++
	case "refresh_token":
		f.refreshGrants++
	}
	status := f.tokenStatus
	rejectRefresh := f.rejectRefresh
	knownRefresh := f.refreshTokens[body["refresh_token"]]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "30")
		}
		writeFailure(w, status, "token request rejected")
		return
	}

	switch body["grant_type"] {
	case "password":
		if body["username"] != testUsername || body["password"] != testPassword {
			writeFailure(w, http.StatusBadRequest, "invalid credentials")
			return
		}
	case "refresh_token":
		if rejectRefresh || !knownRefresh {
			writeFailure(w, http.StatusBadRequest, "invalid refresh token")
			return
		}
	default:
		writeFailure(w, http.StatusBadRequest, "unsupported grant type")
		return
	}

	f.mu.Lock()
	f.serial++
	access := tokentest.MintWithClaims(f.t, jwt.MapClaims{
		"type":    "USER",
		"user_id": testUserID,
		"jti":     fmt.Sprintf("access-%d", f.serial),
	})
	refresh := fmt.Sprintf("refresh-%d", f.serial)
	f.valid[access] = true
	f.refreshTokens[refresh] = true
	expiresIn := f.expiresIn
	f.mu.Unlock()

	writeEnvelope(w, []map[string]any{{
		"token_type":    "bearer",
		"access_token":  access,
		"expires_in":    expiresIn,
		"refresh_token": refresh,
	}}, "")
}

func (f *fakeAPI) handleResource(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	access := strings.TrimPrefix(header, "Bearer ")

	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.authHeaders = append(f.authHeaders, header)
	if r.Body != nil && r.Method == http.MethodPost {
		var raw json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&raw)
		f.bodies[r.URL.Path] = raw
	}
	authorized := f.valid[access] && !f.rejectAll
	h := f.routes[r.URL.Path]
	f.mu.Unlock()

	if !authorized {
		writeFailure(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if h == nil {
		writeFailure(w, http.StatusNotFound, "no route "+r.URL.Path)
		return
	}
	h(w, r)
}

func writeEnvelope(w http.ResponseWriter, data any, next string) {
	var pagination any
	if next != "" {
		pagination = map[string]any{"next": next, "prev": nil}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":      true,
		"code":         602,
		"message":      "Request OK",
		"http_code":    200,
		"http_message": "OK",
		"detailed":     nil,
		"data":         data,
		"count":        1,
		"pagination":   pagination,
	})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":      false,
		"code":         status,
		"message":      message,
		"http_code":    status,
		"http_message": http.StatusText(status),
		"detailed":     []string{message},
		"data":         []any{},
	})
}

// respondWith returns a handler writing data in a success envelope.
func respondWith(data any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, data, "")
	}
}

var twoDevices = []map[string]any{
	{
		"id":            "6248148189204194987",
		"type":          2,
		"location_id":   5,
		"user_id":       testUserID,
		"bridge_id":     "6248148189204194986",
		"oriented":      true,
		"last_seen":     "2025-03-15T11:59:00.000Z",
		"connected":     true,
		"battery_level": "high",
		"product":       "flume2",
	},
	{
		"id":          "6248148189204194986",
		"type":        1,
		"location_id": 5,
		"user_id":     testUserID,
		"oriented":    false,
		"last_seen":   "2025-03-15T11:58:00.000Z",
		"connected":   true,
		"product":     "flume2",
	},
}
