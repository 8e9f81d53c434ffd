package history

import (
	"strings"
	"testing"
	"time"

	"github.com/bnema/pttsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHistoryList(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	started := now.Add(-90 * time.Second).UnixMilli()
	wait := int64(42)

	output, err := Render([]domain.HistoryRecord{
		{
			HistoryItem: domain.HistoryItem{
				ID:               "req-2",
				Status:           domain.HistoryStatusPending,
				CreatedAt:        now.Add(-5 * time.Second).UnixMilli(),
				ServiceGroupName: "Security",
				RequesterName:    "Ada",
			},
			LocallyModifiedAt: domain.Millis(now.Add(-5 * time.Second)),
			NeedsSync:         true,
		},
		{
			HistoryItem: domain.HistoryItem{
				ID:              "req-1",
				Status:          domain.HistoryStatusInProgress,
				CreatedAt:       now.Add(-2 * time.Hour).UnixMilli(),
				StartedAt:       &started,
				HandlerName:     "Grace",
				WaitTimeSeconds: &wait,
			},
		},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "Request History")
	assert.Contains(t, output, "items: 2  unsynced: 1")
	assert.Contains(t, output, "req-2")
	assert.Contains(t, output, "(5s ago)")
	assert.Contains(t, output, "[unsynced]")
	assert.Contains(t, output, "group: Security  requester: Ada")
	assert.Contains(t, output, "(2h ago)")
	assert.Contains(t, output, "handler: Grace")
	assert.Contains(t, output, "started 08:58:30")
	assert.Contains(t, output, "waited 42s")
	assert.Less(t, strings.Index(output, "req-2"), strings.Index(output, "req-1"))
}

func TestRenderEmptyHistory(t *testing.T) {
	output, err := Render(nil, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "items: 0")
	assert.Contains(t, output, "No history cached.")
}

func TestFormatAge(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", formatAge(now.Add(time.Second), now))
	assert.Equal(t, "59s ago", formatAge(now.Add(-59*time.Second), now))
	assert.Equal(t, "3m ago", formatAge(now.Add(-3*time.Minute), now))
	assert.Equal(t, "2d ago", formatAge(now.Add(-50*time.Hour), now))
	assert.Equal(t, "2026-03-01T09:00:00Z", formatAge(now, time.Time{}))
}

func TestRenderConnections(t *testing.T) {
	t.Parallel()

	output := RenderConnections(map[string]domain.ConnectionState{
		"channel-updates": domain.ConnectionReconnecting,
		"alarm-updates":   domain.ConnectionConnected,
	})

	lines := strings.Split(output, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "alarm-updates: connected")
	assert.Contains(t, lines[1], "channel-updates: reconnecting")
}

func TestFormatEvent(t *testing.T) {
	t.Parallel()

	started := FormatEvent("alarm-updates", domain.AlarmStarted{
		Alarm: domain.Alarm{
			AlarmID:         "al-1",
			UserName:        "Ada",
			ChannelID:       "ch-9",
			Location:        &domain.Location{Latitude: 52.52, Longitude: 13.405},
			HasVoiceMessage: true,
		},
		StartedAt: 1_700_000_000_000,
	})
	assert.Equal(t, "[alarm-updates] alarm_started alarm=al-1 user=Ada channel=ch-9 at=52.52000,13.40500 voice started=2023-11-14T22:13:20Z", started)

	ended := FormatEvent("alarm-updates", domain.AlarmEnded{Alarm: domain.Alarm{AlarmID: "al-1", UserID: "u-1"}, EndedBy: "Grace"})
	assert.Equal(t, "[alarm-updates] alarm_ended alarm=al-1 user=u-1 ended_by=Grace", ended)

	perms := FormatEvent("channel-updates", domain.ChannelPermissionsChanged{Action: domain.PermissionRevoked, ChannelIDs: []string{"a", "b"}})
	assert.Equal(t, "[channel-updates] channel_permissions_changed revoked channels=[a,b]", perms)
}

func TestRenderFiltersButCountsWholeCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	records := []domain.HistoryRecord{
		{
			HistoryItem:       domain.HistoryItem{ID: "req-3", Status: domain.HistoryStatusPending, CreatedAt: now.UnixMilli()},
			LocallyModifiedAt: domain.Millis(now),
			NeedsSync:         true,
		},
		{HistoryItem: domain.HistoryItem{ID: "req-2", Status: domain.HistoryStatusCompleted, CreatedAt: now.Add(-time.Minute).UnixMilli()}},
		{HistoryItem: domain.HistoryItem{ID: "req-1", Status: domain.HistoryStatusCompleted, CreatedAt: now.Add(-time.Hour).UnixMilli()}},
	}

	output, err := Render(records, RenderOptions{Now: now, Statuses: []domain.HistoryStatus{domain.HistoryStatusCompleted}})
	require.NoError(t, err)
	assert.Contains(t, output, "items: 3  unsynced: 1")
	assert.Contains(t, output, "pending=1 completed=2")
	assert.Contains(t, output, "req-2")
	assert.Contains(t, output, "req-1")
	assert.NotContains(t, output, "req-3")

	output, err = Render(records, RenderOptions{Now: now, UnsyncedOnly: true})
	require.NoError(t, err)
	assert.Contains(t, output, "req-3")
	assert.NotContains(t, output, "req-2")

	output, err = Render(records[1:], RenderOptions{Now: now, UnsyncedOnly: true})
	require.NoError(t, err)
	assert.Contains(t, output, "No records match the filter.")
}

func TestRenderOptionsKeep(t *testing.T) {
	t.Parallel()

	pending := domain.HistoryRecord{HistoryItem: domain.HistoryItem{ID: "a", Status: domain.HistoryStatusPending}, NeedsSync: true}
	done := domain.HistoryRecord{HistoryItem: domain.HistoryItem{ID: "b", Status: domain.HistoryStatusCompleted}}

	assert.True(t, RenderOptions{}.Keep(pending))
	assert.True(t, RenderOptions{}.Keep(done))
	assert.False(t, RenderOptions{UnsyncedOnly: true}.Keep(done))
	assert.True(t, RenderOptions{Statuses: []domain.HistoryStatus{domain.HistoryStatusCompleted}}.Keep(done))
	assert.False(t, RenderOptions{Statuses: []domain.HistoryStatus{domain.HistoryStatusCompleted}}.Keep(pending))
}
