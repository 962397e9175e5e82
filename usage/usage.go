package usage

import (
	"github.com/jrsteele09/go-flume-client/timestamp"
)

// Bucket is the aggregation window of a usage query.
type Bucket string

const (
	BucketMinute Bucket = "MIN"
	BucketHour   Bucket = "HR"
	BucketDay    Bucket = "DAY"
	BucketMonth  Bucket = "MON"
	BucketYear   Bucket = "YR"
)

// Operation aggregates readings inside a bucket.
type Operation string

const (
	OperationSum     Operation = "SUM"
	OperationAverage Operation = "AVG"
	OperationMin     Operation = "MIN"
	OperationMax     Operation = "MAX"
	OperationCount   Operation = "CNT"
)

// Query is one historical usage query. Datetimes use timestamp.QueryLayout in
// the device's local time zone.
type Query struct {
	RequestID       string    `json:"request_id"`
	Bucket          Bucket    `json:"bucket"`
	SinceDatetime   string    `json:"since_datetime"`
	UntilDatetime   string    `json:"until_datetime,omitempty"`
	GroupMultiplier int       `json:"group_multiplier,omitempty"`
	Operation       Operation `json:"operation,omitempty"`
	SortDirection   string    `json:"sort_direction,omitempty"`
	Units           string    `json:"units,omitempty"`
	Types           []string  `json:"types,omitempty"`
}

// Reading is a single bucket of a usage query result.
type Reading struct {
	Datetime timestamp.Time `json:"datetime"`
	Value    float64        `json:"value"`
}

// FlowReading is the instantaneous flow of a device.
type FlowReading struct {
	DeviceID string         `json:"device_id"`
	Datetime timestamp.Time `json:"datetime"`
	GPM      float64        `json:"gpm"`
	Active   bool           `json:"active"`
}
