package refresh

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-flume-client/token"
	"golang.org/x/sync/singleflight"
)

const (
	flightKey      = "refresh"
	defaultTimeout = 30 * time.Second
)

// Func performs one refresh and returns the replacement token. It must only
// publish the token (for example to a token.Repo) once it is complete.
type Func func(ctx context.Context) (*token.Token, error)

// Coalescer runs at most one refresh at a time. Callers that ask for a
// refresh while one is in flight wait for that refresh and share its result.
type Coalescer struct {
	group   singleflight.Group
	timeout time.Duration
	flights atomic.Int64
}

// NewCoalescer creates a Coalescer whose refreshes are bounded by timeout.
func NewCoalescer(timeout time.Duration) *Coalescer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Coalescer{timeout: timeout}
}

// Do starts fn, or joins the refresh already in flight. fn runs on a context
// detached from ctx's cancellation so that a caller abandoning its wait does
// not abort the refresh for everyone else; ctx only bounds this caller's wait.
func (c *Coalescer) Do(ctx context.Context, fn Func) (*token.Token, error) {
	ch := c.group.DoChan(flightKey, func() (any, error) {
		c.flights.Add(1)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return fn(rctx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		tok, ok := res.Val.(*token.Token)
		if !ok || tok == nil {
			return nil, fmt.Errorf("refresh returned no token")
		}
		return tok, nil
	}
}

// Flights returns how many refreshes have actually executed.
func (c *Coalescer) Flights() int64 {
	return c.flights.Load()
}
