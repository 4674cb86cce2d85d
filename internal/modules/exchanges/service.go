package exchanges

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcal/internal/metrics"
	"github.com/aristath/marketcal/internal/modules/market_hours"
)

// DefaultLookaheadDays is how far ahead status queries search for the next open.
const DefaultLookaheadDays = 14

// MarketStatus is the status of one exchange at a point in time.
type MarketStatus struct {
	Exchange string `json:"exchange"`
	market_hours.MarketStatus
}

// Service answers schedule and status queries for the exchanges in a registry.
type Service struct {
	registry  *Registry
	lookahead int
	log       zerolog.Logger
}

// NewService creates a service. A lookahead below one day uses DefaultLookaheadDays.
func NewService(registry *Registry, lookaheadDays int, log zerolog.Logger) *Service {
	if lookaheadDays < 1 {
		lookaheadDays = DefaultLookaheadDays
	}
	return &Service{
		registry:  registry,
		lookahead: lookaheadDays,
		log:       log.With().Str("service", "exchanges").Logger(),
	}
}

// Registry returns the registry the service reads from.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Codes returns the codes of every loaded exchange, sorted.
func (s *Service) Codes() []string {
	return s.registry.Codes()
}

// Exchange resolves a code or alias.
func (s *Service) Exchange(codeOrAlias string) (*Exchange, error) {
	return s.registry.Get(codeOrAlias)
}

// Schedule returns the schedule of an exchange for [start, end].
func (s *Service) Schedule(code string, start, end market_hours.Date) (market_hours.ScheduleTable, error) {
	ex, err := s.registry.Get(code)
	if err != nil {
		return market_hours.ScheduleTable{}, err
	}
	return s.schedule(ex, start, end)
}

func (s *Service) schedule(ex *Exchange, start, end market_hours.Date) (market_hours.ScheduleTable, error) {
	began := time.Now()
	table, err := market_hours.Schedule(ex.Definition, start, end)
	metrics.ObserveSchedule(ex.Code, table.Len(), time.Since(began), err)
	if err != nil {
		s.log.Debug().
			Err(err).
			Str("exchange", ex.Code).
			Str("start", start.String()).
			Str("end", end.String()).
			Msg("Schedule computation failed")
		return market_hours.ScheduleTable{}, err
	}
	return table, nil
}

// ValidDays returns the trading days of an exchange in [start, end].
func (s *Service) ValidDays(code string, start, end market_hours.Date) ([]market_hours.Date, error) {
	ex, err := s.registry.Get(code)
	if err != nil {
		return nil, err
	}
	return market_hours.ValidDays(ex.Definition, start, end)
}

// Holidays returns the holidays of an exchange in a calendar year that fall on
// days it would otherwise trade.
func (s *Service) Holidays(code string, year int) ([]market_hours.Date, error) {
	ex, err := s.registry.Get(code)
	if err != nil {
		return nil, err
	}
	start := market_hours.NewDate(year, time.January, 1)
	end := market_hours.NewDate(year, time.December, 31)

	out := make([]market_hours.Date, 0)
	for _, d := range ex.Definition.Holidays.Holidays(start, end) {
		if ex.Definition.TradesOn(d.Weekday()) {
			out = append(out, d)
		}
	}
	return out, nil
}

// EarlyCloses returns the days in [start, end] on which the exchange closes
// at other than its standard time.
func (s *Service) EarlyCloses(code string, start, end market_hours.Date) (market_hours.ScheduleTable, error) {
	ex, err := s.registry.Get(code)
	if err != nil {
		return market_hours.ScheduleTable{}, err
	}
	table, err := s.schedule(ex, start, end)
	if err != nil {
		return market_hours.ScheduleTable{}, err
	}
	return market_hours.EarlyCloses(table, ex.Definition), nil
}

// LateOpens returns the days in [start, end] on which the exchange opens at
// other than its standard time.
func (s *Service) LateOpens(code string, start, end market_hours.Date) (market_hours.ScheduleTable, error) {
	ex, err := s.registry.Get(code)
	if err != nil {
		return market_hours.ScheduleTable{}, err
	}
	table, err := s.schedule(ex, start, end)
	if err != nil {
		return market_hours.ScheduleTable{}, err
	}
	return market_hours.LateOpens(table, ex.Definition), nil
}

// window is the schedule around t: from the local day before, to cover
// sessions that started then, up to the lookahead.
func (s *Service) window(ex *Exchange, t time.Time) (market_hours.ScheduleTable, error) {
	today := market_hours.DateOf(t.In(ex.Location))
	return s.schedule(ex, today.AddDays(-1), today.AddDays(s.lookahead))
}

// OpenAt reports whether an exchange is in session at t.
func (s *Service) OpenAt(code string, t time.Time) (bool, error) {
	ex, err := s.registry.Get(code)
	if err != nil {
		return false, err
	}
	table, err := s.window(ex, t)
	if err != nil {
		return false, err
	}
	return market_hours.OpenAt(table, ex.Definition, t), nil
}

// IsMarketOpen is OpenAt with errors logged and treated as closed.
func (s *Service) IsMarketOpen(code string, t time.Time) bool {
	open, err := s.OpenAt(code, t)
	if err != nil {
		s.log.Warn().Err(err).Str("exchange", code).Msg("Failed to check market hours")
		return false
	}
	return open
}

// GetMarketStatus returns detailed status for an exchange.
func (s *Service) GetMarketStatus(code string, t time.Time) (*MarketStatus, error) {
	ex, err := s.registry.Get(code)
	if err != nil {
		return nil, err
	}
	table, err := s.window(ex, t)
	if err != nil {
		return nil, fmt.Errorf("status of %s: %w", ex.Code, err)
	}
	return &MarketStatus{
		Exchange:     ex.Code,
		MarketStatus: market_hours.StatusAt(table, ex.Definition, t),
	}, nil
}

// GetOpenMarkets returns the codes of the exchanges in session at t, sorted.
func (s *Service) GetOpenMarkets(t time.Time) []string {
	open := make([]string, 0)
	for _, code := range s.Codes() {
		if s.IsMarketOpen(code, t) {
			open = append(open, code)
		}
	}
	sort.Strings(open)
	return open
}
