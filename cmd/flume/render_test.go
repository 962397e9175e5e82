package main

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jrsteele09/go-flume-client/timestamp"
	"github.com/stretchr/testify/require"
)

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTable(&buf, []string{"ID", "Type"}, [][]string{{"dev-1", "sensor"}}))
	require.Contains(t, buf.String(), "dev-1")
	require.Contains(t, buf.String(), "sensor")

	buf.Reset()
	require.NoError(t, renderTable(&buf, []string{"ID"}, nil))
	require.Equal(t, "no results\n", buf.String())
}

func TestFormatters(t *testing.T) {
	require.Equal(t, "-", formatTime(timestamp.Time{}))
	require.NotEqual(t, "-", formatTime(timestamp.New(time.Now())))
	require.Equal(t, "yes", yesNo(true))
	require.Equal(t, "-", orDash(""))
}

func TestRun_Usage(t *testing.T) {
	for name, args := range map[string][]string{
		"no command":      nil,
		"unknown command": {"frobnicate"},
		"missing device":  {"device"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			err := run(append([]string{"-config", ""}, args...), io.Discard)
			require.True(t, errors.Is(err, errUsage), "got %v", err)
		})
	}
}
