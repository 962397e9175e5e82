// Package cache keeps a local copy of flow readings so that data survives a
// sink outage.
package cache

import (
	"context"
	"time"

	"github.com/jrsteele09/go-flume-client/usage"
)

// KeyLayout renders reading times as cache keys. It is fixed-width so that
// keys sort chronologically.
const KeyLayout = "2006-01-02T15:04:05.000000000Z"

// FlowRepo stores flow readings keyed by device id and reading time. Storing
// a reading for an existing key replaces it.
type FlowRepo interface {
	Store(ctx context.Context, reading usage.FlowReading) error
	Get(ctx context.Context, deviceID string, at time.Time) (*usage.FlowReading, error)
	// Range returns readings with since < time <= until, newest first.
	Range(ctx context.Context, deviceID string, since, until time.Time) ([]usage.FlowReading, error)
	// Purge removes readings older than cutoff and reports how many went.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Key formats t as a cache key.
func Key(t time.Time) string {
	return t.UTC().Format(KeyLayout)
}
