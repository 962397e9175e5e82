package influx_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-flume-client/internal/config"
	"github.com/jrsteele09/go-flume-client/internal/errors"
	"github.com/jrsteele09/go-flume-client/sink"
	"github.com/jrsteele09/go-flume-client/sink/influx"
	"github.com/stretchr/testify/require"
)

type fakeInflux struct {
	mu     sync.Mutex
	lines  []string
	query  []string
	status int
}

func setupFakeInflux(t *testing.T) (*fakeInflux, *httptest.Server) {
	t.Helper()
	f := &fakeInflux{status: http.StatusNoContent}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lines = append(f.lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
		f.query = append(f.query, r.URL.RawQuery)
		status := f.status
		f.mu.Unlock()
		if status != http.StatusNoContent {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"code":"invalid","message":"bad point"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func TestNew_NotConfigured(t *testing.T) {
	_, err := influx.New(config.InfluxDB{URL: "http://localhost:8086"})
	require.ErrorIs(t, err, errors.ErrSinkNotConfigured)
}

func TestWriter_Write(t *testing.T) {
	f, srv := setupFakeInflux(t)

	w, err := influx.New(config.InfluxDB{URL: srv.URL, Token: "tok", Org: "home", Bucket: "flume"})
	require.NoError(t, err)
	defer w.Close()

	ts := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	err = w.Write(context.Background(),
		sink.Record{Tags: map[string]string{"device_id": "dev-1"}, Fields: map[string]any{"flow_rate": 1.5, "active": true}, Time: ts},
		sink.Record{Measurement: "water_alerts", Tags: map[string]string{"device_id": "dev-1"}, Fields: map[string]any{"flume_leak": true}, Time: ts},
	)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.lines, 2)
	require.True(t, strings.HasPrefix(f.lines[0], "water_usage,device_id=dev-1 "))
	require.Contains(t, f.lines[0], "flow_rate=1.5")
	require.Contains(t, f.lines[0], "active=true")
	require.True(t, strings.HasPrefix(f.lines[1], "water_alerts,device_id=dev-1 "))
	require.Contains(t, f.query[0], "bucket=flume")
	require.Contains(t, f.query[0], "org=home")
}

func TestWriter_WriteRejected(t *testing.T) {
	f, srv := setupFakeInflux(t)
	f.status = http.StatusBadRequest

	w, err := influx.New(config.InfluxDB{URL: srv.URL, Token: "tok", Org: "home", Bucket: "flume"})
	require.NoError(t, err)
	defer w.Close()

	err = w.Write(context.Background(), sink.Record{Fields: map[string]any{"flow_rate": 1.0}, Time: time.Now()})
	require.Error(t, err)
	require.NoError(t, w.Write(context.Background()), "empty batches are a no-op")
}
