package flume

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-flume-client/auth"
	"github.com/jrsteele09/go-flume-client/internal/config"
	"github.com/jrsteele09/go-flume-client/internal/errors"
	"github.com/jrsteele09/go-flume-client/token"
	"github.com/jrsteele09/go-flume-client/token/refresh"
	"github.com/rs/zerolog"
	xoauth2 "golang.org/x/oauth2"
)

const (
	// DefaultRefreshMargin is how long before expiry a token is refreshed.
	DefaultRefreshMargin = 60 * time.Second

	defaultRequestTimeout = 30 * time.Second
	defaultUserAgent      = "go-flume-client/0.1"
)

// Client is a session against the Flume API. It holds exactly one token at a
// time and is safe for concurrent use.
type Client struct {
	baseURL        *url.URL
	transport      http.RoundTripper
	httpClient     *http.Client
	auth           *auth.Service
	tokens         token.Repo
	refresher      *refresh.Coalescer
	margin         time.Duration
	requestTimeout time.Duration
	userAgent      string
	nowTime        func() time.Time
	log            zerolog.Logger

	mu     sync.Mutex
	state  State
	closed atomic.Bool
}

// New builds an unauthenticated Client. The first operation authenticates
// lazily; call Authenticate (or use Open) to fail fast on bad credentials.
func New(cfg config.FlumeConfig, opts ...Option) (*Client, error) {
	if err := config.ValidateFlume(cfg); err != nil {
		return nil, err
	}

	base, err := url.Parse(cfg.GetBaseURL())
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidBaseURL, "parse %q", cfg.GetBaseURL())
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawPath = ""
	base.RawQuery = ""
	base.Fragment = ""

	c := &Client{
		baseURL:        base,
		tokens:         token.NewInMemoryRepo(),
		refresher:      refresh.NewCoalescer(0),
		margin:         DefaultRefreshMargin,
		requestTimeout: defaultRequestTimeout,
		userAgent:      defaultUserAgent,
		nowTime:        time.Now,
		log:            zerolog.Nop(),
		state:          StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = newTransport()
	}
	c.httpClient = &http.Client{Transport: c.transport, Timeout: c.requestTimeout}

	c.auth, err = auth.NewService(cfg, c.httpClient,
		auth.WithLogger(c.log),
		auth.WithNowTime(c.nowTime),
		auth.WithUserAgent(c.userAgent),
	)
	if err != nil {
		return nil, err
	}
	c.log = c.log.With().Str("credentials", c.auth.Fingerprint()).Logger()
	return c, nil
}

// Open builds a Client and authenticates it. On failure every resource the
// Client acquired is released before returning.
func Open(ctx context.Context, cfg config.FlumeConfig, opts ...Option) (*Client, error) {
	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Authenticate(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// RunSession opens a Client, passes it to fn and closes it when fn returns,
// whether fn succeeds or not.
func RunSession(ctx context.Context, cfg config.FlumeConfig, fn func(context.Context, *Client) error, opts ...Option) error {
	c, err := Open(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return fn(ctx, c)
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = 4
	return t
}

// Close discards the token and releases pooled connections. It is idempotent.
// Operations started afterwards return ErrClosed without touching the network.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.setState(StateClosed)

	err := c.tokens.Delete()
	if t, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	c.log.Debug().Msg("session closed")
	return err
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.state = s
}

// settle puts the state back to whatever the held token implies.
func (c *Client) settle() {
	if _, err := c.tokens.Get(); err == nil {
		c.setState(StateAuthenticated)
		return
	}
	c.setState(StateUnauthenticated)
}

// UserID returns the account id carried by the session token, authenticating
// first when no token is held.
func (c *Client) UserID(ctx context.Context) (int64, error) {
	tok, err := c.validToken(ctx)
	if err != nil {
		return 0, err
	}
	return tok.UserID, nil
}

// TokenSource exposes the session token to golang.org/x/oauth2 consumers.
// Tokens it returns are refreshed through the Client.
func (c *Client) TokenSource(ctx context.Context) xoauth2.TokenSource {
	return &tokenSource{ctx: ctx, client: c}
}

type tokenSource struct {
	ctx    context.Context
	client *Client
}

func (s *tokenSource) Token() (*xoauth2.Token, error) {
	tok, err := s.client.validToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return tok.OAuth2(), nil
}
