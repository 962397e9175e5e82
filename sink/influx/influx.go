// Package influx writes sink records to InfluxDB v2.
package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/jrsteele09/go-flume-client/internal/config"
	"github.com/jrsteele09/go-flume-client/internal/errors"
	"github.com/jrsteele09/go-flume-client/sink"
	"github.com/rs/zerolog"
)

const defaultTimeout = 10 * time.Second

// Writer is a sink.Writer backed by the blocking write API.
type Writer struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
	bucket      string
	log         zerolog.Logger
}

var _ sink.Writer = (*Writer)(nil)

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Writer) {
		w.log = log
	}
}

// New connects a Writer for cfg. It returns ErrSinkNotConfigured when any of
// url, token, org or bucket is missing.
func New(cfg config.SinkConfig, opts ...Option) (*Writer, error) {
	if cfg == nil || !cfg.InfluxEnabled() {
		return nil, errors.ErrSinkNotConfigured
	}

	client := influxdb2.NewClientWithOptions(
		cfg.GetInfluxURL(),
		cfg.GetInfluxToken(),
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(defaultTimeout/time.Second)).
			SetPrecision(time.Second),
	)
	w := &Writer{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.GetInfluxOrg(), cfg.GetInfluxBucket()),
		measurement: cfg.GetInfluxMeasurement(),
		bucket:      cfg.GetInfluxBucket(),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Ping reports whether the server is reachable.
func (w *Writer) Ping(ctx context.Context) error {
	ok, err := w.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping influxdb: %w", err)
	}
	if !ok {
		return fmt.Errorf("ping influxdb: server not ready")
	}
	return nil
}

// Write sends records in one batch. Records without a measurement use the
// configured one.
func (w *Writer) Write(ctx context.Context, records ...sink.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(records))
	for _, r := range records {
		m := r.Measurement
		if m == "" {
			m = w.measurement
		}
		points = append(points, write.NewPoint(m, r.Tags, r.Fields, r.Time))
	}

	if err := w.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points to %s: %w", len(points), w.bucket, err)
	}
	w.log.Debug().Int("points", len(points)).Str("bucket", w.bucket).Msg("influx write")
	return nil
}

// Close releases the underlying HTTP resources.
func (w *Writer) Close() {
	w.client.Close()
}
