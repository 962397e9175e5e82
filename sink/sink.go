// Package sink turns readings into plain time-series records and defines the
// contract storage backends implement.
package sink

import (
	"context"
	"time"

	"github.com/jrsteele09/go-flume-client/alerts"
	"github.com/jrsteele09/go-flume-client/usage"
)

const (
	// DefaultMeasurement is used when a flow record is built without one.
	DefaultMeasurement = "water_usage"
	// DefaultAlertMeasurement is used when an alert record is built without one.
	DefaultAlertMeasurement = "water_alerts"
)

// Record is one time-series point.
type Record struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// Writer persists records. Implementations must be safe for concurrent use.
type Writer interface {
	Write(ctx context.Context, records ...Record) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(ctx context.Context, records ...Record) error

func (f WriterFunc) Write(ctx context.Context, records ...Record) error {
	return f(ctx, records...)
}

// FromFlow converts a current-flow reading. The reading time is used as the
// point time; a reading without one is stamped with fallback.
func FromFlow(r usage.FlowReading, measurement string, fallback time.Time) Record {
	ts := r.Datetime.Time
	if ts.IsZero() {
		ts = fallback
	}
	return Record{
		Measurement: measurementOrDefault(measurement),
		Tags:        map[string]string{"device_id": r.DeviceID},
		Fields: map[string]any{
			"flow_rate": r.GPM,
			"active":    r.Active,
		},
		Time: ts.UTC(),
	}
}

// FromAlert converts a triggered usage alert.
func FromAlert(a alerts.UsageAlert, measurement string) Record {
	tags := map[string]string{"device_id": a.DeviceID}
	if a.EventRuleName != "" {
		tags["rule"] = a.EventRuleName
	}
	if measurement == "" {
		measurement = DefaultAlertMeasurement
	}
	return Record{
		Measurement: measurement,
		Tags:        tags,
		Fields: map[string]any{
			"alert_id":   a.ID,
			"flume_leak": a.FlumeLeak,
		},
		Time: a.TriggeredDatetime.UTC(),
	}
}

func measurementOrDefault(m string) string {
	if m == "" {
		return DefaultMeasurement
	}
	return m
}
