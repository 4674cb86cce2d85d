package market_hours

import "time"

// Localize converts a session time on each of dates into a UTC instant.
// The result has the same length and order as dates.
//
// Daylight-saving edge cases are resolved deterministically:
//   - a wall-clock time skipped by a spring-forward transition resolves to
//     the transition instant, the first existing instant after the gap;
//   - a wall-clock time repeated by a fall-back transition resolves to the
//     earlier of the two instants.
func Localize(dates []Date, st SessionTime, loc *time.Location) ([]time.Time, error) {
	out := make([]time.Time, len(dates))
	for i, d := range dates {
		t, err := LocalizeDate(d, st, loc)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// LocalizeDate converts the session time on a single trading date into a UTC instant.
func LocalizeDate(d Date, st SessionTime, loc *time.Location) (time.Time, error) {
	day := d.AddDays(st.DayOffset)
	tod := st.Time

	// The wall clock read as if it were UTC. Subtracting the zone offset in
	// force at the real instant gives the answer; the only candidates are the
	// offsets in force a day either side, since zones never change twice in
	// 48 hours.
	naive := time.Date(day.Year, day.Month, day.Day, tod.Hour, tod.Minute, tod.Second, 0, time.UTC)
	offBefore := offsetAt(naive.Add(-24*time.Hour), loc)
	offAfter := offsetAt(naive.Add(24*time.Hour), loc)

	early := naive.Add(-time.Duration(max(offBefore, offAfter)) * time.Second)
	late := naive.Add(-time.Duration(min(offBefore, offAfter)) * time.Second)

	// Checked in chronological order so an ambiguous time picks the earlier instant.
	for _, candidate := range []time.Time{early, late} {
		if wallClockIs(candidate.In(loc), day, tod) {
			return candidate, nil
		}
	}

	if offBefore == offAfter {
		return time.Time{}, &UnresolvableLocalTimeError{Date: day, Time: tod, Zone: loc.String()}
	}
	return transitionBetween(early, late, loc), nil
}

func offsetAt(t time.Time, loc *time.Location) int {
	_, offset := t.In(loc).Zone()
	return offset
}

func wallClockIs(t time.Time, day Date, tod TimeOfDay) bool {
	return DateOf(t) == day && ClockOf(t) == tod
}

// transitionBetween returns the first instant in (lo, hi] whose zone offset
// equals the offset at hi. The offsets at lo and hi must differ.
func transitionBetween(lo, hi time.Time, loc *time.Location) time.Time {
	target := offsetAt(hi, loc)
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2).Truncate(time.Second)
		if offsetAt(mid, loc) == target {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}
