// Package flume is a session-oriented client for the Flume water monitor API.
//
// A Client owns one bearer token. It authenticates with the password grant,
// refreshes the token shortly before it expires, and on a 401 refreshes once
// and retries the call once. Concurrent callers that need a new token share a
// single refresh.
//
//	c, err := flume.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	flow, err := c.GetCurrentFlow(ctx, deviceID)
//
// Failures are reported as *AuthenticationError, *RateLimitError, *APIError
// or ErrClosed. Transport failures and context cancellation are returned
// wrapped, so errors.Is(err, context.Canceled) holds.
package flume
