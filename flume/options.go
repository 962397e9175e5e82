package flume

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-flume-client/token"
	"github.com/rs/zerolog"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Credentials and tokens are never logged.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithRefreshMargin sets how long before expiry a token is proactively
// refreshed.
func WithRefreshMargin(margin time.Duration) Option {
	return func(c *Client) {
		if margin >= 0 {
			c.margin = margin
		}
	}
}

// WithRequestTimeout bounds every HTTP round-trip.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

// WithTransport replaces the connection pool. The Client closes idle
// connections of an *http.Transport on Close.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.transport = rt
		}
	}
}

// WithTokenRepo replaces the in-memory token slot.
func WithTokenRepo(repo token.Repo) Option {
	return func(c *Client) {
		if repo != nil {
			c.tokens = repo
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithNowTime sets the clock (primarily for testing).
func WithNowTime(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.nowTime = now
		}
	}
}

// ListOptions controls paging and ordering of list endpoints.
type ListOptions struct {
	// Limit caps the total number of records returned; 0 fetches every page.
	Limit int
	// PageSize is the per-request page size (default 50).
	PageSize int
	// SortField and SortDirection ("ASC" or "DESC") override the endpoint
	// default ordering.
	SortField     string
	SortDirection string
}

// DeviceListOptions extends ListOptions for GetDevices.
type DeviceListOptions struct {
	ListOptions
	IncludeLocation bool
	IncludeUser     bool
	ListShared      bool
}

// NotificationListOptions extends ListOptions for GetNotifications.
type NotificationListOptions struct {
	ListOptions
	UnreadOnly bool
}

// AlertListOptions extends ListOptions for GetUsageAlerts.
type AlertListOptions struct {
	ListOptions
	// DeviceID restricts the alerts to one device when set.
	DeviceID string
}
