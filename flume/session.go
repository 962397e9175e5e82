package flume

import (
	"context"

	"github.com/jrsteele09/go-flume-client/apierror"
	"github.com/jrsteele09/go-flume-client/internal/errors"
	"github.com/jrsteele09/go-flume-client/token"
)

// Authenticate performs the password grant and stores the resulting token.
// Concurrent calls, and any refresh already in flight, share one grant.
// On failure the previously held token (if any) is left untouched.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	_, err := c.refresher.Do(ctx, func(rctx context.Context) (*token.Token, error) {
		c.setState(StateAuthenticating)
		return c.store(c.auth.PasswordGrant(rctx))
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("authentication failed")
	}
	return err
}

// validToken returns a token that is not about to expire, authenticating or
// refreshing first when needed.
func (c *Client) validToken(ctx context.Context) (*token.Token, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	tok, err := c.tokens.Get()
	if err != nil && !errors.Is(err, errors.ErrTokenNotPresent) {
		return nil, err
	}
	if tok != nil && !tok.NeedsRefresh(c.margin, c.nowTime()) {
		return tok, nil
	}
	if tok == nil {
		return c.refresh(ctx, nil)
	}

	c.log.Debug().Time("expiry", tok.Expiry).Msg("token near expiry, refreshing")
	fresh, err := c.refresh(ctx, tok)
	if err == nil {
		return fresh, nil
	}
	// The held token still works until it actually expires.
	if ctx.Err() == nil && !errors.Is(err, ErrClosed) && c.nowTime().Before(tok.Expiry) {
		c.log.Warn().Err(err).Time("expiry", tok.Expiry).Msg("proactive refresh failed, using held token")
		return tok, nil
	}
	return nil, err
}

// refresh replaces stale. If another caller already replaced it with a usable
// token, that token is returned without contacting the token endpoint.
func (c *Client) refresh(ctx context.Context, stale *token.Token) (*token.Token, error) {
	return c.refresher.Do(ctx, func(rctx context.Context) (*token.Token, error) {
		if cur, err := c.tokens.Get(); err == nil && !cur.SameAs(stale) && !cur.NeedsRefresh(c.margin, c.nowTime()) {
			return cur, nil
		}
		if c.closed.Load() {
			return nil, ErrClosed
		}

		if stale == nil {
			c.setState(StateAuthenticating)
			return c.store(c.auth.PasswordGrant(rctx))
		}

		c.setState(StateRefreshing)
		return c.store(c.grant(rctx, stale))
	})
}

// grant uses the refresh_token grant when possible and falls back to a single
// password grant when it is unavailable or rejected.
func (c *Client) grant(ctx context.Context, stale *token.Token) (*token.Token, error) {
	if !stale.CanRefresh() {
		return c.auth.PasswordGrant(ctx)
	}

	tok, err := c.auth.RefreshGrant(ctx, stale.RefreshToken)
	if err == nil {
		if tok.RefreshToken == "" {
			tok.RefreshToken = stale.RefreshToken
		}
		return tok, nil
	}
	if _, limited := apierror.RetryAfter(err); limited {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, err
	}

	c.log.Info().Err(err).Msg("refresh grant rejected, re-authenticating")
	return c.auth.PasswordGrant(ctx)
}

// store publishes tok as the session token. Nothing is published after Close
// or when the grant failed.
func (c *Client) store(tok *token.Token, err error) (*token.Token, error) {
	if err != nil {
		c.settle()
		return nil, err
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if err := c.tokens.Upsert(tok); err != nil {
		c.settle()
		return nil, errors.Wrapf(err, "store token")
	}
	if c.closed.Load() {
		// Close ran while the token was being stored.
		_ = c.tokens.Delete()
		return nil, ErrClosed
	}
	c.setState(StateAuthenticated)
	c.log.Debug().Time("expiry", tok.Expiry).Msg("session token updated")
	return tok, nil
}
