package config

import (
	"strconv"
	"time"
)

const (
	pollIntervalVar = "FLUME_POLL_INTERVAL"
	callsPerHourVar = "FLUME_CALLS_PER_HOUR"
	cacheDirVar     = "FLUME_CACHE_DIR"

	defaultPollInterval = 30 * time.Second
	// DefaultCallsPerHour is Flume's documented per-account quota.
	DefaultCallsPerHour = 120
)

type MonitorConfig interface {
	GetPollInterval() time.Duration
	GetCallsPerHour() int
	GetCacheDir() string
}

// Monitor configures the polling driver and its local cache.
type Monitor struct {
	PollInterval string `toml:"poll_interval"`
	CallsPerHour int    `toml:"calls_per_hour"`
	CacheDir     string `toml:"cache_dir"`
}

var _ MonitorConfig = Monitor{}

// GetPollInterval parses PollInterval, falling back to 30s when it is empty
// or not a positive duration.
func (m Monitor) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(m.PollInterval)
	if err != nil || d <= 0 {
		return defaultPollInterval
	}
	return d
}

func (m Monitor) GetCallsPerHour() int {
	if m.CallsPerHour <= 0 {
		return DefaultCallsPerHour
	}
	return m.CallsPerHour
}

// GetCacheDir returns the expanded cache directory, or "" when caching is off.
func (m Monitor) GetCacheDir() string {
	if m.CacheDir == "" {
		return ""
	}
	expanded, err := expandPath(m.CacheDir)
	if err != nil {
		return m.CacheDir
	}
	return expanded
}

func (m Monitor) withEnv() Monitor {
	out := Monitor{
		PollInterval: GetEnv(pollIntervalVar, m.PollInterval),
		CallsPerHour: m.CallsPerHour,
		CacheDir:     GetEnv(cacheDirVar, m.CacheDir),
	}
	if v := GetEnv(callsPerHourVar, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.CallsPerHour = n
		}
	}
	return out
}
