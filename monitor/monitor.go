// Package monitor polls current flow for a set of devices and forwards every
// reading to the local cache and the configured sinks. Optionally it also
// forwards newly triggered usage alerts to the sinks.
package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-flume-client/alerts"
	"github.com/jrsteele09/go-flume-client/apierror"
	"github.com/jrsteele09/go-flume-client/cache"
	"github.com/jrsteele09/go-flume-client/flume"
	"github.com/jrsteele09/go-flume-client/internal/config"
	"github.com/jrsteele09/go-flume-client/internal/errors"
	"github.com/jrsteele09/go-flume-client/sink"
	"github.com/jrsteele09/go-flume-client/usage"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultInterval         = 30 * time.Second
	defaultErrorBackoff     = 5 * time.Second
	defaultRateLimitBackoff = 5 * time.Minute
	defaultAlertInterval    = time.Minute
	alertPageSize           = 25
)

// FlowSource is the subset of flume.Client the monitor needs.
type FlowSource interface {
	GetCurrentFlow(ctx context.Context, deviceID string) (usage.FlowReading, error)
}

// AlertSource is the subset of flume.Client the alert loop needs.
type AlertSource interface {
	GetUsageAlerts(ctx context.Context, opts flume.AlertListOptions) ([]alerts.UsageAlert, error)
}

// Stats counts what a Monitor has done so far.
type Stats struct {
	Polls       int64
	Readings    int64
	Alerts      int64
	Errors      int64
	RateLimited int64
	CacheErrors int64
	SinkErrors  int64
}

// Monitor drives the polling loop.
type Monitor struct {
	source           FlowSource
	interval         time.Duration
	limiter          *rate.Limiter
	cache            cache.FlowRepo
	sinks            []sink.Writer
	measurement      string
	errorBackoff     time.Duration
	rateLimitBackoff time.Duration
	observer         func(usage.FlowReading)
	alertSource      AlertSource
	alertInterval    time.Duration
	alertMeasurement string
	alertObserver    func(alerts.UsageAlert)
	nowTime          func() time.Time
	log              zerolog.Logger

	polls, readings, alertCount, errs, rateLimited, cacheErrs, sinkErrs atomic.Int64
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithCallsPerHour sizes the shared client-side limiter. Every device poll
// draws from the same budget.
func WithCallsPerHour(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.limiter = newLimiter(n)
		}
	}
}

// WithLimiter replaces the limiter outright.
func WithLimiter(l *rate.Limiter) Option {
	return func(m *Monitor) {
		if l != nil {
			m.limiter = l
		}
	}
}

// WithCache stores every reading before it is sent to the sinks.
func WithCache(repo cache.FlowRepo) Option {
	return func(m *Monitor) {
		m.cache = repo
	}
}

func WithSinks(writers ...sink.Writer) Option {
	return func(m *Monitor) {
		m.sinks = append(m.sinks, writers...)
	}
}

func WithMeasurement(name string) Option {
	return func(m *Monitor) {
		m.measurement = name
	}
}

// WithBackoff sets the wait after a failed poll, and the wait after a rate
// limit that carried no Retry-After hint.
func WithBackoff(onError, onRateLimit time.Duration) Option {
	return func(m *Monitor) {
		if onError > 0 {
			m.errorBackoff = onError
		}
		if onRateLimit > 0 {
			m.rateLimitBackoff = onRateLimit
		}
	}
}

// WithObserver is called with every reading after it has been recorded.
func WithObserver(fn func(usage.FlowReading)) Option {
	return func(m *Monitor) {
		m.observer = fn
	}
}

// WithAlerts checks source for newly triggered usage alerts every interval
// and writes each one to the sinks. Alerts triggered before the monitor
// started, less one interval, are not forwarded.
func WithAlerts(source AlertSource, interval time.Duration, measurement string) Option {
	return func(m *Monitor) {
		m.alertSource = source
		if interval > 0 {
			m.alertInterval = interval
		}
		if measurement != "" {
			m.alertMeasurement = measurement
		}
	}
}

// WithAlertObserver is called with every forwarded alert.
func WithAlertObserver(fn func(alerts.UsageAlert)) Option {
	return func(m *Monitor) {
		m.alertObserver = fn
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(m *Monitor) {
		m.log = log
	}
}

func WithNowTime(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.nowTime = now
		}
	}
}

// FromConfig translates the monitor section of the configuration into options.
func FromConfig(cfg config.MonitorConfig) []Option {
	return []Option{
		WithInterval(cfg.GetPollInterval()),
		WithCallsPerHour(cfg.GetCallsPerHour()),
	}
}

func New(source FlowSource, opts ...Option) *Monitor {
	m := &Monitor{
		source:           source,
		interval:         defaultInterval,
		limiter:          newLimiter(config.DefaultCallsPerHour),
		measurement:      sink.DefaultMeasurement,
		errorBackoff:     defaultErrorBackoff,
		rateLimitBackoff: defaultRateLimitBackoff,
		alertInterval:    defaultAlertInterval,
		alertMeasurement: sink.DefaultAlertMeasurement,
		nowTime:          time.Now,
		log:              zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newLimiter(callsPerHour int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(callsPerHour)), 1)
}

// Run polls every device until ctx ends, which is not an error. It stops
// early, returning the cause, when the session is closed or its credentials
// are rejected. A token endpoint outage is retried like any other error.
func (m *Monitor) Run(ctx context.Context, deviceIDs ...string) error {
	if m.source == nil {
		return errors.Wrapf(errors.ErrInvalidArgument, "monitor has no flow source")
	}
	if len(deviceIDs) == 0 {
		return errors.Wrapf(errors.ErrInvalidArgument, "no devices to monitor")
	}

	m.log.Info().Strs("devices", deviceIDs).Dur("interval", m.interval).Msg("monitor starting")
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range deviceIDs {
		g.Go(func() error {
			return m.poll(gctx, id)
		})
	}
	if m.alertSource != nil {
		g.Go(func() error {
			return m.watchAlerts(gctx)
		})
	}
	err := g.Wait()
	m.log.Info().Interface("stats", m.Stats()).Msg("monitor stopped")
	return err
}

func (m *Monitor) poll(ctx context.Context, deviceID string) error {
	log := m.log.With().Str("device_id", deviceID).Logger()
	for {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil
		}

		m.polls.Add(1)
		reading, err := m.source.GetCurrentFlow(ctx, deviceID)
		delay := m.interval

		switch {
		case err == nil:
			m.record(ctx, log, deviceID, reading)
		case ctx.Err() != nil:
			return nil
		default:
			wait, fatal := m.backoff(log, err)
			if fatal != nil {
				return fmt.Errorf("monitor %s: %w", deviceID, fatal)
			}
			delay = wait
		}

		if !sleep(ctx, delay) {
			return nil
		}
	}
}

// watchAlerts forwards alerts as they are triggered, oldest first. Each round
// reads the newest page of alerts; ids seen in the previous round are skipped.
func (m *Monitor) watchAlerts(ctx context.Context) error {
	log := m.log.With().Str("loop", "alerts").Logger()
	cutoff := m.nowTime().Add(-m.alertInterval)
	seen := map[int64]bool{}
	opts := flume.AlertListOptions{ListOptions: flume.ListOptions{
		Limit:         alertPageSize,
		PageSize:      alertPageSize,
		SortField:     "triggered_datetime",
		SortDirection: "DESC",
	}}

	for {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil
		}

		page, err := m.alertSource.GetUsageAlerts(ctx, opts)
		delay := m.alertInterval

		switch {
		case err == nil:
			current := make(map[int64]bool, len(page))
			for i := len(page) - 1; i >= 0; i-- {
				a := page[i]
				current[a.ID] = true
				if seen[a.ID] || !a.TriggeredDatetime.After(cutoff) {
					continue
				}
				m.recordAlert(ctx, log, a)
			}
			seen = current
		case ctx.Err() != nil:
			return nil
		default:
			wait, fatal := m.backoff(log, err)
			if fatal != nil {
				return fmt.Errorf("monitor alerts: %w", fatal)
			}
			delay = wait
		}

		if !sleep(ctx, delay) {
			return nil
		}
	}
}

// backoff classifies a failed call. It returns the wait before the next
// attempt, or the error when the loop cannot continue.
func (m *Monitor) backoff(log zerolog.Logger, err error) (time.Duration, error) {
	if errors.Is(err, apierror.ErrClosed) || apierror.IsCredentialRejection(err) {
		m.errs.Add(1)
		return 0, err
	}
	if retryAfter, limited := apierror.RetryAfter(err); limited {
		m.rateLimited.Add(1)
		if retryAfter <= 0 {
			retryAfter = m.rateLimitBackoff
		}
		log.Warn().Dur("retry_after", retryAfter).Msg("rate limited, pausing")
		return retryAfter, nil
	}
	m.errs.Add(1)
	log.Error().Err(err).Dur("retry_in", m.errorBackoff).Msg("poll failed")
	return m.errorBackoff, nil
}

func (m *Monitor) recordAlert(ctx context.Context, log zerolog.Logger, a alerts.UsageAlert) {
	m.alertCount.Add(1)
	rec := sink.FromAlert(a, m.alertMeasurement)
	for _, w := range m.sinks {
		if err := w.Write(ctx, rec); err != nil {
			m.sinkErrs.Add(1)
			log.Error().Err(err).Int64("alert_id", a.ID).Msg("sink write failed for alert")
		}
	}
	log.Info().Int64("alert_id", a.ID).Str("device_id", a.DeviceID).Bool("leak", a.FlumeLeak).Msg("usage alert")
	if m.alertObserver != nil {
		m.alertObserver(a)
	}
}

// record caches a reading, then writes it to every sink. Failures are logged;
// the loop keeps going.
func (m *Monitor) record(ctx context.Context, log zerolog.Logger, deviceID string, reading usage.FlowReading) {
	now := m.nowTime()
	reading.DeviceID = deviceID
	if reading.Datetime.IsZero() {
		reading.Datetime.Time = now
	}
	m.readings.Add(1)

	if m.cache != nil {
		if err := m.cache.Store(ctx, reading); err != nil {
			m.cacheErrs.Add(1)
			log.Error().Err(err).Msg("cache store failed")
		}
	}

	rec := sink.FromFlow(reading, m.measurement, now)
	for _, w := range m.sinks {
		if err := w.Write(ctx, rec); err != nil {
			m.sinkErrs.Add(1)
			log.Error().Err(err).Msg("sink write failed, reading kept in cache")
		}
	}

	log.Debug().Float64("gpm", reading.GPM).Bool("active", reading.Active).Msg("reading recorded")
	if m.observer != nil {
		m.observer(reading)
	}
}

// Stats returns a snapshot of the counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		Polls:       m.polls.Load(),
		Readings:    m.readings.Load(),
		Alerts:      m.alertCount.Load(),
		Errors:      m.errs.Load(),
		RateLimited: m.rateLimited.Load(),
		CacheErrors: m.cacheErrs.Load(),
		SinkErrors:  m.sinkErrs.Load(),
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
