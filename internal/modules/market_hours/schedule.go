package market_hours

import (
	"time"

	"golang.org/x/sync/errgroup"
)

// Schedule returns the open and close instants of every trading day of cal
// in [start, end].
//
// Standard session times are the default for each day. Special opens and
// closes replace them; a special session on a date that is not a trading day
// fails with *NonTradingSpecialDateError instead of being dropped. A range
// without trading days yields an empty table.
func Schedule(cal CalendarDefinition, start, end Date) (ScheduleTable, error) {
	start, end = start.Normalize(), end.Normalize()
	days, err := ValidDays(cal, start, end)
	if err != nil {
		return ScheduleTable{}, err
	}
	if len(days) == 0 {
		return ScheduleTable{Rows: []ScheduleRow{}}, nil
	}

	loc, err := cal.Location()
	if err != nil {
		return ScheduleTable{}, err
	}

	// The four series are independent; only the merge below is sequential.
	var (
		opens, closes               []time.Time
		specialOpens, specialCloses []SpecialSession
		errs                        [4]error
		g                           errgroup.Group
	)
	g.Go(func() error {
		opens, errs[0] = Localize(days, cal.standard(Open), loc)
		return errs[0]
	})
	g.Go(func() error {
		closes, errs[1] = Localize(days, cal.standard(Close), loc)
		return errs[1]
	})
	g.Go(func() error {
		specialOpens, errs[2] = resolveSpecialSessions(cal, start, end, Open, loc)
		return errs[2]
	})
	g.Go(func() error {
		specialCloses, errs[3] = resolveSpecialSessions(cal, start, end, Close, loc)
		return errs[3]
	})
	if g.Wait() != nil {
		// Report in a fixed order so repeated calls fail identically.
		for _, err := range errs {
			if err != nil {
				return ScheduleTable{}, err
			}
		}
	}

	index := make(map[Date]int, len(days))
	for i, d := range days {
		index[d] = i
	}
	if err := overwrite(opens, index, specialOpens, Open); err != nil {
		return ScheduleTable{}, err
	}
	if err := overwrite(closes, index, specialCloses, Close); err != nil {
		return ScheduleTable{}, err
	}

	rows := make([]ScheduleRow, len(days))
	for i, d := range days {
		if !opens[i].Before(closes[i]) {
			return ScheduleTable{}, &InvertedSessionError{Date: d, MarketOpen: opens[i], MarketClose: closes[i]}
		}
		rows[i] = ScheduleRow{Date: d, MarketOpen: opens[i], MarketClose: closes[i]}
	}
	return ScheduleTable{Rows: rows}, nil
}

func overwrite(instants []time.Time, index map[Date]int, specials []SpecialSession, which Session) error {
	for _, s := range specials {
		i, ok := index[s.Date]
		if !ok {
			return &NonTradingSpecialDateError{Date: s.Date, Session: which}
		}
		instants[i] = s.At
	}
	return nil
}
