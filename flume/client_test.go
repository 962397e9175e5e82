package flume_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-flume-client/apierror"
	"github.com/jrsteele09/go-flume-client/devices"
	"github.com/jrsteele09/go-flume-client/flume"
	"github.com/jrsteele09/go-flume-client/internal/config"
	"github.com/jrsteele09/go-flume-client/internal/errors"
	"github.com/jrsteele09/go-flume-client/token"
	"github.com/stretchr/testify/require"
)

func TestOpen_AuthenticatesOnce(t *testing.T) {
	f := newFakeAPI(t)
	f.route("/me/devices", respondWith(twoDevices))

	c, err := flume.Open(context.Background(), f.creds(), f.options()...)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	require.Equal(t, flume.StateAuthenticated, c.State())

	for range 2 {
		got, err := c.GetDevices(context.Background(), flume.DeviceListOptions{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, devices.TypeSensor, got[0].Type)
		require.Equal(t, devices.TypeBridge, got[1].Type)
		require.Equal(t, "6248148189204194986", got[0].BridgeID)
	}

	password, refresh := f.grants()
	require.Equal(t, 1, password)
	require.Equal(t, 0, refresh)
	require.Equal(t, 2, f.callCount("/me/devices"))
	require.Contains(t, f.lastAuthHeader(), "Bearer ")
}

func TestNew_AuthenticatesLazily(t *testing.T) {
	f := newFakeAPI(t)
	f.route("/me/devices", respondWith(twoDevices))

	c := f.newClient()
	require.Equal(t, flume.StateUnauthenticated, c.State())

	_, err := c.GetDevices(context.Background(), flume.DeviceListOptions{})
	require.NoError(t, err)
	require.Equal(t, flume.StateAuthenticated, c.State())

	password, _ := f.grants()
	require.Equal(t, 1, password)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := flume.New(config.Flume{ClientID: "id"})
	require.Error(t, err)

	_, err = flume.New(config.Flume{
		ClientID:     "id",
		ClientSecret: "secret",
		Username:     "user",
		Password:     "pass",
		BaseURL:      "not a url",
	})
	require.Error(t, err)
}

func TestNew_BaseURLPathPrefix(t *testing.T) {
	f := newFakeAPI(t)

	var (
		mu    sync.Mutex
		paths []string
	)
	prefixed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		http.StripPrefix("/flume", f.server.Config.Handler).ServeHTTP(w, r)
	}))
	t.Cleanup(prefixed.Close)

	f.route("/me/devices", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "0" {
			writeEnvelope(w, twoDevices[:1], prefixed.URL+"/flume/me/devices?limit=1&offset=1")
			return
		}
		writeEnvelope(w, twoDevices[1:], "")
	})

	creds := f.creds()
	creds.BaseURL = prefixed.URL + "/flume/"
	c, err := flume.New(creds, flume.WithTransport(prefixed.Client().Transport), flume.WithNowTime(f.clock.Now))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	got, err := c.GetDevices(context.Background(), flume.DeviceListOptions{ListOptions: flume.ListOptions{PageSize: 1}})
	require.NoError(t, err)
	require.Len(t, got, 2)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/flume/oauth/token", "/flume/me/devices", "/flume/me/devices"}, paths)
}

func TestAuthenticate_InvalidCredentials(t *testing.T) {
	f := newFakeAPI(t)
	creds := f.creds()
	creds.Password = "wrong"

	c, err := flume.New(creds, f.options()...)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	err = c.Authenticate(context.Background())
	var authErr *flume.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	require.Equal(t, flume.StateUnauthenticated, c.State())

	t.Run("open releases the client", func(t *testing.T) {
		_, err := flume.Open(context.Background(), creds, f.options()...)
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("rate limited token endpoint", func(t *testing.T) {
		f.set(func(f *fakeAPI) { f.tokenStatus = http.StatusTooManyRequests })
		defer f.set(func(f *fakeAPI) { f.tokenStatus = 0 })

		err := c.Authenticate(context.Background())
		var rl *flume.RateLimitError
		require.ErrorAs(t, err, &rl)
		require.Equal(t, 30*time.Second, rl.RetryAfter)
	})

	require.Zero(t, f.totalCalls(), "no resource call after failed authentication")
}

func TestProactiveRefresh(t *testing.T) {
	f := newFakeAPI(t)
	f.route("/me/devices", respondWith(twoDevices))

	c := f.newClient()
	_, err := c.GetDevices(context.Background(), flume.DeviceListOptions{})
	require.NoError(t, err)
	first := f.lastAuthHeader()

	// one hour tokens, 60s margin: 30s before expiry refreshes first
	f.clock.Advance(time.Hour - 30*time.Second)

	_, err = c.GetDevices(context.Background(), flume.DeviceListOptions{})
	require.NoError(t, err)

	password, refresh := f.grants()
	require.Equal(t, 1, password)
	require.Equal(t, 1, refresh)
	require.Equal(t, 2, f.callCount("/me/devices"), "no call is rejected and retried")
	require.NotEqual(t, first, f.lastAuthHeader())
	require.Equal(t, flume.StateAuthenticated, c.State())
}

func TestProactiveRefresh_FallsBackToPassword(t *testing.T) {
	f := newFakeAPI(t)
	f.route("/me/devices", respondWith(twoDevices))

	c := f.newClient()
	require.NoError(t, c.Authenticate(context.Background()))

	f.set(func(f *fakeAPI) { f.rejectRefresh = true })
	f.clock.Advance(2 * time.Hour)

	_, err := c.GetDevices(context.Background(), flume.DeviceListOptions{})
	require.NoError(t, err)

	password, refresh := f.grants()
	require.Equal(t, 2, password)
	require.Equal(t, 1, refresh)
}

func TestProactiveRefresh_TokenEndpointOutage(t *testing.T) {
	f := newFakeAPI(t)
	f.route("/me/devices", respondWith(twoDevices))

	c := f.newClient()
	require.NoError(t, c.Authenticate(context.Background()))

	f.set(func(f *fakeAPI) { f.tokenStatus = http.StatusServiceUnavailable })
	f.clock.Advance(time.Hour - 30*time.Second)

	got, err := c.GetDevices(context.Background(), flume.DeviceListOptions{})
	require.NoError(t, err, "a token that has not expired is still sent")
	require.Len(t, got, 2)
	require.Equal(t, flume.StateAuthenticated, c.State())

	password, refresh := f.grants()
	require.Equal(t, 2, password, "one password fallback after the failed refresh")
	require.Equal(t, 1, refresh)

	t.Run("expired token surfaces the outage", func(t *testing.T) {
		f.clock.Advance(time.Minute)

		_, err := c.GetDevices(context.Background(), flume.DeviceListOptions{})
		var authErr *flume.AuthenticationError
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, http.StatusServiceUnavailable, authErr.StatusCode)
		require.False(t, apierror.IsCredentialRejection(err))
		require.Equal(t, 1, f.callCount("/me/devices"))
	})
}

func TestProactiveRefresh_ShortLivedToken(t *testing.T) {
	f := newFakeAPI(t)
	f.set(func(f *fakeAPI) { f.expiresIn = 30 })
	f.route("/me/devices", respondWith(twoDevices))

	c := f.newClient()
	for range 3 {
		_, err := c.GetDevices(context.Background(), flume.DeviceListOptions{})
		require.NoError(t, err)
	}
	password, refresh := f.grants()
	require.Equal(t, 1, password)
	require.Zero(t, refresh, "a 30s token is used although it is inside the 60s margin")

	f.clock.Advance(20 * time.Second)
	_, err := c.GetDevices(context.Background(), flume.DeviceListOptions{})
	require.NoError(t, err)
	_, refresh = f.grants()
	require.Equal(t, 1, refresh, "refreshed once half its lifetime is left")
}

func TestReactiveRefresh_RetriesOnce(t *testing.T) {
	f := newFakeAPI(t)
	f.route("/me/devices", respondWith(twoDevices))

	c := f.newClient()
	require.NoError(t, c.Authenticate(context.Background()))
	f.revoke()

	got, err := c.GetDevices(context.Background(), flume.DeviceListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	_, refresh := f.grants()
	require.Equal(t, 1, refresh)
	require.Equal(t, 2, f.callCount("/me/devices"))
}

func TestReactiveRefresh_SecondUnauthorizedSurfaces(t *testing.T) {
	f := newFakeAPI(t)
	f.route("/me/devices", respondWith(twoDevices))

	c := f.newClient()
	require.NoError(t, c.Authenticate(context.Background()))
	f.set(func(f *fakeAPI) { f.rejectAll = true })

	_, err := c.GetDevices(context.Background(), flume.DeviceListOptions{})
	var authErr *flume.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusUnauthorized, authErr.StatusCode)

	_, refresh := f.grants()
	require.Equal(t, 1, refresh, "exactly one refresh")
	require.Equal(t, 2, f.callCount("/me/devices"), "exactly one retry")
}

func TestConcurrentRefreshIsCoalesced(t *testing.T) {
	f := newFakeAPI(t)
	flowPath := "/me/devices/dev-1/query/active"
	f.route(flowPath, respondWith([]map[string]any{{"active": true, "gpm": 1.5, "datetime": "2025-03-15 12:00:00"}}))

	c := f.newClient()
	require.NoError(t, c.Authenticate(context.Background()))
	f.set(func(f *fakeAPI) { f.tokenDelay = 50 * time.Millisecond })
	f.revoke()

	const callers = 10
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetCurrentFlow(context.Background(), "dev-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	password, refresh := f.grants()
	require.Equal(t, 1, password)
	require.Equal(t, 1, refresh, "a single refresh serves every caller")
}

func TestClose(t *testing.T) {
	f := newFakeAPI(t)
	f.route("/me/devices", respondWith(twoDevices))

	c, err := flume.Open(context.Background(), f.creds(), f.options()...)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")
	require.Equal(t, flume.StateClosed, c.State())

	_, err = c.GetDevices(context.Background(), flume.DeviceListOptions{})
	require.ErrorIs(t, err, flume.ErrClosed)
	_, err = c.GetCurrentFlow(context.Background(), "dev-1")
	require.ErrorIs(t, err, flume.ErrClosed)
	require.ErrorIs(t, c.Authenticate(context.Background()), flume.ErrClosed)
	_, err = c.TokenSource(context.Background()).Token()
	require.ErrorIs(t, err, flume.ErrClosed)

	require.Zero(t, f.totalCalls(), "no network call after close")
	password, _ := f.grants()
	require.Equal(t, 1, password)
}

// closingRepo runs beforeUpsert ahead of every store.
type closingRepo struct {
	token.Repo
	beforeUpsert func()
}

func (r *closingRepo) Upsert(tok *token.Token) error {
	r.beforeUpsert()
	return r.Repo.Upsert(tok)
}

func TestClose_DuringTokenStore(t *testing.T) {
	f := newFakeAPI(t)

	var c *flume.Client
	repo := &closingRepo{Repo: token.NewInMemoryRepo()}
	repo.beforeUpsert = func() { _ = c.Close() }
	c = f.newClient(flume.WithTokenRepo(repo))

	require.ErrorIs(t, c.Authenticate(context.Background()), flume.ErrClosed)
	require.Equal(t, flume.StateClosed, c.State())

	_, err := repo.Get()
	require.ErrorIs(t, err, errors.ErrTokenNotPresent, "no token outlives Close")
}

func TestRunSession(t *testing.T) {
	f := newFakeAPI(t)
	f.route("/me/devices", respondWith(twoDevices))

	var kept *flume.Client
	boom := stderrors.New("boom")
	err := flume.RunSession(context.Background(), f.creds(), func(ctx context.Context, c *flume.Client) error {
		kept = c
		_, err := c.GetDevices(ctx, flume.DeviceListOptions{})
		require.NoError(t, err)
		return boom
	}, f.options()...)
	require.ErrorIs(t, err, boom)
	require.Equal(t, flume.StateClosed, kept.State())
}

func TestTokenSource(t *testing.T) {
	f := newFakeAPI(t)
	c := f.newClient()

	tok, err := c.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, "Bearer", tok.Type())
	require.NotEmpty(t, tok.AccessToken)
	require.Equal(t, f.clock.Now().Add(time.Hour), tok.Expiry)

	uid, err := c.UserID(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(testUserID), uid)

	password, _ := f.grants()
	require.Equal(t, 1, password)
}

func TestState_String(t *testing.T) {
	require.Equal(t, "refreshing", flume.StateRefreshing.String())
	require.Equal(t, "closed", flume.StateClosed.String())
	require.Equal(t, "unknown", flume.State(42).String())
}
