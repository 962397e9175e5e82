package config

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultConfigPath = "~/.config/flume/config.toml"

type Config interface {
	EnvConfig
	FlumeConfig
	SinkConfig
	MonitorConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Flume
	InfluxDB
	Monitor
}

var _ Config = mainConfig{}

// fileConfig mirrors the TOML layout on disk.
type fileConfig struct {
	Flume    Flume    `toml:"flume"`
	InfluxDB InfluxDB `toml:"influxdb"`
	Monitor  Monitor  `toml:"monitor"`
	Log      struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// New returns a configuration sourced from environment variables only.
func New() Config {
	return fromFile(fileConfig{})
}

// Load reads the optional TOML file at path (or the default location when
// path is empty) and overlays environment variables on top of it. A missing
// file is only an error when path was given explicitly.
func Load(path string) (Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultConfigPath
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}
	return fromFile(fc), nil
}

func fromFile(fc fileConfig) mainConfig {
	return mainConfig{
		EnvVars:  EnvVars{logLevel: GetEnv(logLevelVar, fc.Log.Level)},
		Flume:    fc.Flume.withEnv(),
		InfluxDB: fc.InfluxDB.withEnv(),
		Monitor:  fc.Monitor.withEnv(),
	}
}
