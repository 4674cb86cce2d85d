package market_hours

import (
	"fmt"
	"time"
)

// ResolveSpecialSessions returns the dates in [start, end] whose open (or
// close) deviates from the standard time, with the localized instant.
//
// Rule-based overrides are applied first and ad-hoc overrides second, each in
// list order; when several entries name the same date the last one applied
// wins, so an ad-hoc entry beats a rule-based one. The result is sorted by
// date and may be empty.
func ResolveSpecialSessions(cal CalendarDefinition, start, end Date, which Session) ([]SpecialSession, error) {
	start, end = start.Normalize(), end.Normalize()
	if start.After(end) {
		return nil, &InvalidRangeError{Start: start, End: end}
	}
	loc, err := cal.Location()
	if err != nil {
		return nil, err
	}
	return resolveSpecialSessions(cal, start, end, which, loc)
}

func resolveSpecialSessions(cal CalendarDefinition, start, end Date, which Session, loc *time.Location) ([]SpecialSession, error) {
	rules, adHoc := cal.specials(which)

	resolved := make(map[Date]time.Time)
	apply := func(dates []Date, st SessionTime) error {
		instants, err := Localize(dates, st, loc)
		if err != nil {
			return err
		}
		for i, d := range dates {
			resolved[d] = instants[i]
		}
		return nil
	}

	for i, special := range rules {
		if err := apply(special.Rule.DatesInRange(start, end), SessionTime{Time: special.Time, DayOffset: special.DayOffset}); err != nil {
			return nil, fmt.Errorf("special %s rule %d (%s): %w", which, i, special.Rule, err)
		}
	}
	for i, special := range adHoc {
		if err := apply(filterDates(special.Dates, start, end), SessionTime{Time: special.Time, DayOffset: special.DayOffset}); err != nil {
			return nil, fmt.Errorf("ad-hoc special %s %d: %w", which, i, err)
		}
	}

	dates := make([]Date, 0, len(resolved))
	for d := range resolved {
		dates = append(dates, d)
	}
	sortDates(dates)

	out := make([]SpecialSession, len(dates))
	for i, d := range dates {
		out[i] = SpecialSession{Date: d, At: resolved[d]}
	}
	return out, nil
}
