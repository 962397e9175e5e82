package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-flume-client/apierror"
	"github.com/jrsteele09/go-flume-client/internal/config"
	"github.com/jrsteele09/go-flume-client/oauth2"
	"github.com/jrsteele09/go-flume-client/oauthmodel"
	"github.com/jrsteele09/go-flume-client/token"
	"github.com/rs/zerolog"
)

// TokenPath is the Flume OAuth2 token endpoint, relative to the base URL.
const TokenPath = "/oauth/token"

const (
	defaultUserAgent = "go-flume-client/0.1"
	maxTokenBody     = 1 << 20
)

// Service exchanges grants for tokens at the Flume token endpoint.
// It holds the credentials but no token; callers own the token they receive.
type Service struct {
	tokenURL   string
	creds      config.FlumeConfig
	httpClient *http.Client
	userAgent  string
	nowTime    func() time.Time // nowTime function (injectable for testing)
	log        zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithLogger sets the logger used for grant diagnostics.
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ServiceOption {
	return func(s *Service) {
		if strings.TrimSpace(ua) != "" {
			s.userAgent = ua
		}
	}
}

// NewService initializes a Service for the credentials in cfg.
func NewService(cfg config.FlumeConfig, httpClient *http.Client, options ...ServiceOption) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("[NewService] config is required")
	}
	if httpClient == nil {
		return nil, errors.New("[NewService] http client is required")
	}

	base, err := url.Parse(cfg.GetBaseURL())
	if err != nil {
		return nil, fmt.Errorf("[NewService] parse base url: %w", err)
	}
	base.RawQuery = ""
	base.Fragment = ""

	s := &Service{
		tokenURL:   base.JoinPath(TokenPath).String(),
		creds:      cfg,
		httpClient: httpClient,
		userAgent:  defaultUserAgent,
		nowTime:    time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// PasswordGrant authenticates with the account username and password.
func (s *Service) PasswordGrant(ctx context.Context) (*token.Token, error) {
	req := oauthmodel.NewPasswordRequest(
		s.creds.GetClientID(),
		s.creds.GetClientSecret(),
		s.creds.GetUsername(),
		s.creds.GetPassword(),
	)
	return s.exchange(ctx, req)
}

// RefreshGrant exchanges refreshToken for a new token.
func (s *Service) RefreshGrant(ctx context.Context, refreshToken string) (*token.Token, error) {
	req := oauthmodel.NewRefreshRequest(s.creds.GetClientID(), s.creds.GetClientSecret(), refreshToken)
	return s.exchange(ctx, req)
}

// Fingerprint identifies the credentials in logs without revealing them.
func (s *Service) Fingerprint() string {
	return Fingerprint(s.creds.GetClientID(), s.creds.GetUsername())
}

func (s *Service) exchange(ctx context.Context, tr oauthmodel.TokenRequest) (*token.Token, error) {
	if err := tr.Validate(); err != nil {
		return nil, &apierror.AuthenticationError{Err: err}
	}

	body, err := json.Marshal(tr)
	if err != nil {
		return nil, fmt.Errorf("encode token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	log := s.log.With().Str("grant", string(tr.GrantType)).Str("credentials", s.Fingerprint()).Logger()
	log.Debug().Msg("requesting token")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if err := mapGrantError(apierror.Check(TokenPath, resp, raw, s.nowTime())); err != nil {
		log.Warn().Int("status", resp.StatusCode).Msg("token request rejected")
		return nil, err
	}

	var env oauth2.Envelope[oauth2.TokenResponse]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &apierror.AuthenticationError{StatusCode: resp.StatusCode, Message: "malformed token response", Err: err}
	}
	if len(env.Data) == 0 {
		return nil, &apierror.AuthenticationError{StatusCode: resp.StatusCode, Message: "token response has no data"}
	}

	tok, err := token.FromResponse(env.Data[0], s.nowTime())
	if err != nil {
		return nil, &apierror.AuthenticationError{StatusCode: resp.StatusCode, Err: err}
	}

	log.Debug().Int64("user_id", tok.UserID).Time("expiry", tok.Expiry).Msg("token issued")
	return tok, nil
}
