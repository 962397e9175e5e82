package repofake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-flume-client/cache"
	"github.com/jrsteele09/go-flume-client/internal/errors"
	"github.com/jrsteele09/go-flume-client/usage"
)

var _ cache.FlowRepo = (*FakeFlowRepo)(nil)

// FakeFlowRepo is an in-memory cache.FlowRepo.
type FakeFlowRepo struct {
	readings map[string]map[string]usage.FlowReading // device id -> key -> reading
	lock     sync.RWMutex
	// StoreErr, when set, is returned by Store.
	StoreErr error
}

func NewFakeFlowRepo() *FakeFlowRepo {
	return &FakeFlowRepo{readings: make(map[string]map[string]usage.FlowReading)}
}

func (r *FakeFlowRepo) Store(_ context.Context, reading usage.FlowReading) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.StoreErr != nil {
		return r.StoreErr
	}
	if reading.DeviceID == "" || reading.Datetime.IsZero() {
		return errors.ErrInvalidArgument
	}
	byKey, ok := r.readings[reading.DeviceID]
	if !ok {
		byKey = make(map[string]usage.FlowReading)
		r.readings[reading.DeviceID] = byKey
	}
	byKey[cache.Key(reading.Datetime.Time)] = reading
	return nil
}

func (r *FakeFlowRepo) Get(_ context.Context, deviceID string, at time.Time) (*usage.FlowReading, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	reading, ok := r.readings[deviceID][cache.Key(at)]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &reading, nil
}

func (r *FakeFlowRepo) Range(_ context.Context, deviceID string, since, until time.Time) ([]usage.FlowReading, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	lo, hi := cache.Key(since), cache.Key(until)
	keys := make([]string, 0)
	for k := range r.readings[deviceID] {
		if k > lo && k <= hi {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	out := make([]usage.FlowReading, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.readings[deviceID][k])
	}
	return out, nil
}

func (r *FakeFlowRepo) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	limit := cache.Key(cutoff)
	var n int64
	for _, byKey := range r.readings {
		for k := range byKey {
			if k < limit {
				delete(byKey, k)
				n++
			}
		}
	}
	return n, nil
}

// Count returns how many readings are held for deviceID.
func (r *FakeFlowRepo) Count(deviceID string) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.readings[deviceID])
}

func (r *FakeFlowRepo) Close() error { return nil }
