package scheduler

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs int
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func quietLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(quietLogger())

	require.NoError(t, s.AddJob("0 * * * * *", &countingJob{name: "minutely"}))
	require.NoError(t, s.AddJob("@every 30s", &countingJob{name: "half_minute"}))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"half_minute", "minutely"}, s.Jobs())

	err := s.AddJob("every minute", &countingJob{name: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `job "broken"`)
	assert.Equal(t, 2, s.Len())
}

func TestScheduler_AddJobRejectsDuplicateName(t *testing.T) {
	s := New(quietLogger())

	require.NoError(t, s.AddJob("0 * * * * *", &countingJob{name: "monitor"}))
	err := s.AddJob("@every 5s", &countingJob{name: "monitor"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Equal(t, 1, s.Len())
}

func TestScheduler_RemoveJob(t *testing.T) {
	s := New(quietLogger())
	require.NoError(t, s.AddJob("0 * * * * *", &countingJob{name: "monitor"}))

	assert.True(t, s.RemoveJob("monitor"))
	assert.False(t, s.RemoveJob("monitor"))
	assert.Zero(t, s.Len())

	// The name is free again once removed.
	require.NoError(t, s.AddJob("0 * * * * *", &countingJob{name: "monitor"}))
}

func TestScheduler_RunNow(t *testing.T) {
	var buf bytes.Buffer
	s := New(zerolog.New(&buf))

	job := &countingJob{name: "counting"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	failing := &countingJob{name: "failing", err: errors.New("boom")}
	assert.EqualError(t, s.RunNow(failing), "boom")
	assert.Contains(t, buf.String(), `"job":"failing"`)
	assert.Contains(t, buf.String(), "Job failed")
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(quietLogger())
	require.NoError(t, s.AddJob("0 0 0 1 1 *", &countingJob{name: "yearly"}))
	assert.True(t, s.NextRun("missing").IsZero())

	s.Start()
	next := s.NextRun("yearly")
	assert.True(t, next.After(time.Now()))
	assert.Equal(t, time.January, next.Month())
	assert.Equal(t, 1, next.Day())
	s.Stop()
}
