package flume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-flume-client/apierror"
	"github.com/jrsteele09/go-flume-client/oauth2"
	"github.com/jrsteele09/go-flume-client/token"
)

const (
	maxResponseBody = 8 << 20
	defaultPageSize = 50
	maxPages        = 200
)

type call struct {
	method string
	path   string // endpoint path, used in errors and logs
	target string // path plus query, resolved against the base URL
	body   []byte
}

func newCall(method, path string, query url.Values, body any) (*call, error) {
	c := &call{method: method, path: path, target: path}
	if len(query) > 0 {
		c.target = path + "?" + query.Encode()
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		c.body = raw
	}
	return c, nil
}

// execute sends cl with a valid token. A 401 triggers one token refresh and
// one retry; a second 401 is reported as an AuthenticationError.
func (c *Client) execute(ctx context.Context, cl *call) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	tok, err := c.validToken(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := c.send(ctx, cl, tok)
	if !apierror.IsAuthentication(err) {
		return raw, err
	}

	c.log.Info().Str("endpoint", cl.path).Msg("access token rejected, refreshing")
	tok, err = c.refresh(ctx, tok)
	if err != nil {
		return nil, err
	}

	raw, err = c.send(ctx, cl, tok)
	if apierror.IsAuthentication(err) {
		return nil, &AuthenticationError{
			StatusCode: http.StatusUnauthorized,
			Message:    fmt.Sprintf("%s still unauthorized after token refresh", cl.path),
			Err:        err,
		}
	}
	return raw, err
}

// resolve places target, an API path with optional query, under the base URL,
// keeping any path prefix the base URL carries.
func (c *Client) resolve(target string) (*url.URL, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}
	u := c.baseURL.JoinPath(ref.EscapedPath())
	u.RawQuery = ref.RawQuery
	return u, nil
}

// relative turns a pagination link back into an API path. Links that already
// include the base URL's path prefix have it removed so resolve does not add
// it twice.
func (c *Client) relative(link *url.URL) string {
	if prefix := c.baseURL.Path; prefix != "" && strings.HasPrefix(link.Path, prefix+"/") {
		trimmed := *link
		trimmed.Path = strings.TrimPrefix(link.Path, prefix)
		trimmed.RawPath = ""
		return trimmed.RequestURI()
	}
	return link.RequestURI()
}

func (c *Client) send(ctx context.Context, cl *call, tok *token.Token) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	u, err := c.resolve(cl.target)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", cl.path, err)
	}
	requestID := uuid.NewString()
	tok.OAuth2().SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", cl.path, err)
	}

	c.log.Debug().
		Str("request_id", requestID).
		Str("method", cl.method).
		Str("endpoint", cl.path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("flume request")

	if err := apierror.Check(cl.path, resp, raw, c.nowTime()); err != nil {
		return nil, err
	}
	return raw, nil
}

// fetch executes cl and decodes the Flume envelope around T.
func fetch[T any](ctx context.Context, c *Client, cl *call) (*oauth2.Envelope[T], error) {
	raw, err := c.execute(ctx, cl)
	if err != nil {
		return nil, err
	}
	var env oauth2.Envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{Endpoint: cl.path, StatusCode: http.StatusOK, Message: "malformed response", Err: err}
	}
	return &env, nil
}

// first returns the single record of an item endpoint.
func first[T any](ctx context.Context, c *Client, cl *call) (T, error) {
	var zero T
	env, err := fetch[T](ctx, c, cl)
	if err != nil {
		return zero, err
	}
	if len(env.Data) == 0 {
		return zero, &APIError{Endpoint: cl.path, StatusCode: http.StatusOK, Code: env.Code, Message: "response has no data"}
	}
	return env.Data[0], nil
}

// list follows pagination.next links until the last page or until opts.Limit
// records were collected.
func list[T any](ctx context.Context, c *Client, path string, query url.Values, opts ListOptions) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if opts.Limit > 0 && opts.Limit < pageSize {
		pageSize = opts.Limit
	}
	query.Set("limit", fmt.Sprint(pageSize))
	query.Set("offset", "0")
	if opts.SortField != "" {
		query.Set("sort_field", opts.SortField)
	}
	if opts.SortDirection != "" {
		query.Set("sort_direction", opts.SortDirection)
	}

	cl, err := newCall(http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	var out []T
	seen := map[string]bool{}
	for page := 0; page < maxPages; page++ {
		seen[cl.target] = true
		env, err := fetch[T](ctx, c, cl)
		if err != nil {
			return nil, err
		}
		out = append(out, env.Data...)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			return out[:opts.Limit], nil
		}
		if !env.Pagination.HasNext() || len(env.Data) == 0 {
			return out, nil
		}

		next, err := url.Parse(*env.Pagination.Next)
		if err != nil {
			return nil, &APIError{Endpoint: path, StatusCode: http.StatusOK, Message: "malformed pagination link", Err: err}
		}
		cl = &call{method: http.MethodGet, path: path, target: c.relative(next)}
		if seen[cl.target] {
			return out, nil
		}
	}
	c.log.Warn().Str("endpoint", path).Int("pages", maxPages).Msg("pagination stopped at page cap")
	return out, nil
}
