package logging_test

import (
	"bytes"
	"testing"

	"github.com/jrsteele09/go-flume-client/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, logging.ParseLevel(" DEBUG "))
	require.Equal(t, zerolog.WarnLevel, logging.ParseLevel("warning"))
	require.Equal(t, zerolog.Disabled, logging.ParseLevel("off"))
	require.Equal(t, zerolog.InfoLevel, logging.ParseLevel("bogus"))
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "warn", false)

	log.Info().Msg("hidden")
	log.Warn().Str("device", "abc").Msg("shown")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `"device":"abc"`)
	require.Contains(t, out, `"level":"warn"`)
}
