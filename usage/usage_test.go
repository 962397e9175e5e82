package usage_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-flume-client/usage"
	"github.com/stretchr/testify/require"
)

func TestQuery_OmitsEmptyOptionalFields(t *testing.T) {
	body, err := json.Marshal(usage.Query{
		RequestID:     "q1",
		Bucket:        usage.BucketDay,
		SinceDatetime: "2025-03-01 00:00:00",
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"request_id":"q1","bucket":"DAY","since_datetime":"2025-03-01 00:00:00"}`, string(body))
}

func TestFlowReading_Decodes(t *testing.T) {
	var r usage.FlowReading
	require.NoError(t, json.Unmarshal([]byte(`{"active":true,"gpm":1.25,"datetime":"2025-03-15 02:23:16"}`), &r))
	require.True(t, r.Active)
	require.InDelta(t, 1.25, r.GPM, 1e-9)
	require.Equal(t, 2025, r.Datetime.Year())
}
