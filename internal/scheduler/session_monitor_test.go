package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketcal/internal/modules/exchanges"
	"github.com/aristath/marketcal/pkg/embedded"
)

type fakeSessions struct {
	open map[string]bool
	errs map[string]error
}

func (f *fakeSessions) Codes() []string {
	return []string{"XAAA", "XBBB", "XCCC"}
}

func (f *fakeSessions) OpenAt(code string, _ time.Time) (bool, error) {
	if err := f.errs[code]; err != nil {
		return false, err
	}
	return f.open[code], nil
}

func TestSessionMonitorJob_TracksTransitions(t *testing.T) {
	sessions := &fakeSessions{open: map[string]bool{"XAAA": true}}
	job := NewSessionMonitorJob(SessionMonitorConfig{Log: quietLogger(), Sessions: sessions})

	assert.Equal(t, "session_monitor", job.Name())

	require.NoError(t, job.Run())
	assert.Equal(t, map[string]bool{"XAAA": true, "XBBB": false, "XCCC": false}, job.State())

	sessions.open = map[string]bool{"XBBB": true}
	require.NoError(t, job.Run())
	assert.Equal(t, map[string]bool{"XAAA": false, "XBBB": true, "XCCC": false}, job.State())
}

func TestSessionMonitorJob_ErrorsKeepPreviousState(t *testing.T) {
	sessions := &fakeSessions{open: map[string]bool{"XAAA": true, "XBBB": true}}
	job := NewSessionMonitorJob(SessionMonitorConfig{Log: quietLogger(), Sessions: sessions})
	require.NoError(t, job.Run())

	sessions.errs = map[string]error{"XBBB": errors.New("bad timezone")}
	sessions.open = map[string]bool{}
	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XBBB: bad timezone")

	state := job.State()
	assert.False(t, state["XAAA"])
	assert.True(t, state["XBBB"])
}

func TestSessionMonitorJob_WithExchangeService(t *testing.T) {
	registry := exchanges.NewRegistry()
	require.NoError(t, registry.LoadFS(embedded.Calendars(), embedded.CalendarPattern))
	service := exchanges.NewService(registry, 0, quietLogger())

	// 10:00 in New York on a regular Tuesday.
	at := time.Date(2024, 7, 2, 14, 0, 0, 0, time.UTC)
	job := NewSessionMonitorJob(SessionMonitorConfig{
		Log:      quietLogger(),
		Sessions: service,
		Now:      func() time.Time { return at },
	})

	require.NoError(t, job.Run())
	state := job.State()
	assert.Len(t, state, registry.Len())
	assert.True(t, state["XNYS"])
	assert.False(t, state["XTKS"])

	at = time.Date(2024, 7, 2, 21, 0, 0, 0, time.UTC)
	require.NoError(t, job.Run())
	assert.False(t, job.State()["XNYS"])
}
