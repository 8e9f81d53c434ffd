package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithSpinnerWithoutTerminalOnlyRunsFetch(t *testing.T) {
	var out bytes.Buffer
	calls := 0

	err := runWithSpinner(context.Background(), &out, "Fetching history...", func(context.Context) (string, error) {
		calls++
		return "merged 3 backend entries", nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, out.String())
}

func TestRunWithSpinnerWithoutTerminalReturnsFetchError(t *testing.T) {
	boom := errors.New("backend down")

	err := runWithSpinner(context.Background(), &bytes.Buffer{}, "Fetching history...", func(context.Context) (string, error) {
		return "", boom
	})

	require.ErrorIs(t, err, boom)
}

func TestFetchSpinnerModelShowsElapsedAndSummary(t *testing.T) {
	m := newFetchSpinnerModel("Fetching history...", nil, time.Now().Add(-3*time.Second))
	assert.Contains(t, m.View(), "Fetching history...")
	assert.NotContains(t, m.View(), "(3s)")

	next, _ := m.Update(spinner.TickMsg{})
	ticking := next.(fetchSpinnerModel)
	assert.Contains(t, ticking.View(), "Fetching history... (3s)")

	next, cmd := ticking.Update(fetchDoneMsg{summary: "merged 2 backend entries"})
	done := next.(fetchSpinnerModel)
	require.NotNil(t, cmd)
	assert.True(t, done.done)
	assert.Contains(t, done.View(), "merged 2 backend entries in 3")

	next, _ = ticking.Update(fetchDoneMsg{err: errors.New("nope")})
	assert.Empty(t, next.(fetchSpinnerModel).View())
}
