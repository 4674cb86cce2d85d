package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcal/internal/metrics"
)

// SessionChecker answers whether an exchange is in session.
// Implemented by exchanges.Service.
type SessionChecker interface {
	Codes() []string
	OpenAt(code string, t time.Time) (bool, error)
}

// SessionMonitorJob samples every exchange on each run, logs open/close
// transitions and exports the market_open gauge.
type SessionMonitorJob struct {
	log      zerolog.Logger
	sessions SessionChecker
	now      func() time.Time

	mu    sync.Mutex
	state map[string]bool
}

// SessionMonitorConfig holds configuration for the session monitor job
type SessionMonitorConfig struct {
	Log      zerolog.Logger
	Sessions SessionChecker
	Now      func() time.Time // Defaults to time.Now
}

// NewSessionMonitorJob creates a new session monitor job
func NewSessionMonitorJob(cfg SessionMonitorConfig) *SessionMonitorJob {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &SessionMonitorJob{
		log:      cfg.Log.With().Str("job", "session_monitor").Logger(),
		sessions: cfg.Sessions,
		now:      now,
		state:    make(map[string]bool),
	}
}

// Name returns the job name
func (j *SessionMonitorJob) Name() string {
	return "session_monitor"
}

// Run checks every exchange once. Exchanges that fail are skipped and keep
// their previous state; the failures are returned together.
func (j *SessionMonitorJob) Run() error {
	at := j.now()

	j.mu.Lock()
	defer j.mu.Unlock()

	var errs []error
	for _, code := range j.sessions.Codes() {
		open, err := j.sessions.OpenAt(code, at)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", code, err))
			continue
		}
		metrics.SetMarketOpen(code, open)

		previous, seen := j.state[code]
		j.state[code] = open
		if !seen {
			j.log.Debug().Str("exchange", code).Bool("open", open).Msg("Initial market state")
			continue
		}
		if previous == open {
			continue
		}

		metrics.IncMarketTransition(code, open)
		event := j.log.Info().Str("exchange", code).Time("at", at)
		if open {
			event.Msg("Market opened")
		} else {
			event.Msg("Market closed")
		}
	}
	return errors.Join(errs...)
}

// State returns a copy of the last observed state per exchange.
func (j *SessionMonitorJob) State() map[string]bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make(map[string]bool, len(j.state))
	for code, open := range j.state {
		out[code] = open
	}
	return out
}
