package config

import "strings"

const (
	influxURLVar         = "INFLUXDB_URL"
	influxTokenVar       = "INFLUXDB_TOKEN"
	influxOrgVar         = "INFLUXDB_ORG"
	influxBucketVar      = "INFLUXDB_BUCKET"
	influxMeasurementVar = "INFLUXDB_MEASUREMENT"

	defaultMeasurement = "water_usage"
)

type SinkConfig interface {
	GetInfluxURL() string
	GetInfluxToken() string
	GetInfluxOrg() string
	GetInfluxBucket() string
	GetInfluxMeasurement() string
	InfluxEnabled() bool
}

// InfluxDB configures the optional InfluxDB v2 sink.
type InfluxDB struct {
	URL         string `toml:"url"`
	Token       string `toml:"token"`
	Org         string `toml:"org"`
	Bucket      string `toml:"bucket"`
	Measurement string `toml:"measurement"`
}

var _ SinkConfig = InfluxDB{}

func (i InfluxDB) GetInfluxURL() string    { return i.URL }
func (i InfluxDB) GetInfluxToken() string  { return i.Token }
func (i InfluxDB) GetInfluxOrg() string    { return i.Org }
func (i InfluxDB) GetInfluxBucket() string { return i.Bucket }

func (i InfluxDB) GetInfluxMeasurement() string {
	if strings.TrimSpace(i.Measurement) == "" {
		return defaultMeasurement
	}
	return i.Measurement
}

// InfluxEnabled reports whether every connection setting is present.
func (i InfluxDB) InfluxEnabled() bool {
	return i.URL != "" && i.Token != "" && i.Org != "" && i.Bucket != ""
}

func (i InfluxDB) withEnv() InfluxDB {
	return InfluxDB{
		URL:         GetEnv(influxURLVar, i.URL),
		Token:       GetEnv(influxTokenVar, i.Token),
		Org:         GetEnv(influxOrgVar, i.Org),
		Bucket:      GetEnv(influxBucketVar, i.Bucket),
		Measurement: GetEnv(influxMeasurementVar, i.Measurement),
	}
}
