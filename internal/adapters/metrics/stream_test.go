package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bnema/pttsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Stream) string {
	t.Helper()

	server := httptest.NewServer(m.Handler())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestStreamCountsFramesEventsAndFailures(t *testing.T) {
	t.Parallel()

	m := NewStream()
	m.FrameReceived("alarm-updates", "comment")
	m.FrameReceived("alarm-updates", "data")
	m.FrameReceived("alarm-updates", "data")
	m.EventDispatched("alarm-updates", domain.EventAlarmStarted)
	m.DecodeFailed("channel-updates")
	m.ReconnectScheduled("channel-updates")

	body := scrape(t, m)
	assert.Contains(t, body, `pttsync_stream_frames_total{kind="data",topic="alarm-updates"} 2`)
	assert.Contains(t, body, `pttsync_stream_frames_total{kind="comment",topic="alarm-updates"} 1`)
	assert.Contains(t, body, `pttsync_stream_events_dispatched_total{event="alarm_started",topic="alarm-updates"} 1`)
	assert.Contains(t, body, `pttsync_stream_decode_errors_total{topic="channel-updates"} 1`)
	assert.Contains(t, body, `pttsync_stream_reconnects_scheduled_total{topic="channel-updates"} 1`)
}

func TestStreamStateGaugeTracksCurrentStateOnly(t *testing.T) {
	t.Parallel()

	m := NewStream()
	m.StateChanged("alarm-updates", domain.ConnectionConnecting)
	m.StateChanged("alarm-updates", domain.ConnectionConnected)

	body := scrape(t, m)
	assert.Contains(t, body, `pttsync_stream_connection_state{state="connected",topic="alarm-updates"} 1`)
	assert.Contains(t, body, `pttsync_stream_connection_state{state="connecting",topic="alarm-updates"} 0`)
	assert.Contains(t, body, `pttsync_stream_connection_state{state="stopped",topic="alarm-updates"} 0`)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewStream().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
