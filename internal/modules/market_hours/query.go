package market_hours

import (
	"sort"
	"time"
)

// OpenAt reports whether the market is in session at instant, bounds
// included. The row is found by the market-local date of instant; the
// neighbouring rows are also checked so sessions whose day offsets cross
// local midnight are covered. Days without a row are closed.
func OpenAt(table ScheduleTable, cal CalendarDefinition, instant time.Time) bool {
	_, ok := sessionAt(table, cal, instant)
	return ok
}

func sessionAt(table ScheduleTable, cal CalendarDefinition, instant time.Time) (ScheduleRow, bool) {
	loc, err := cal.Location()
	if err != nil {
		return ScheduleRow{}, false
	}
	local := DateOf(instant.In(loc))
	for _, d := range []Date{local, local.AddDays(-1), local.AddDays(1)} {
		if row, ok := table.Row(d); ok && row.Contains(instant) {
			return row, true
		}
	}
	return ScheduleRow{}, false
}

// EarlyCloses returns the rows whose local close time differs from the
// calendar's standard close time.
func EarlyCloses(table ScheduleTable, cal CalendarDefinition) ScheduleTable {
	return deviating(table, cal, Close)
}

// LateOpens returns the rows whose local open time differs from the
// calendar's standard open time.
func LateOpens(table ScheduleTable, cal CalendarDefinition) ScheduleTable {
	return deviating(table, cal, Open)
}

func deviating(table ScheduleTable, cal CalendarDefinition, which Session) ScheduleTable {
	loc, err := cal.Location()
	if err != nil {
		return ScheduleTable{Rows: []ScheduleRow{}}
	}
	standard := cal.standard(which).Time
	return table.filter(func(r ScheduleRow) bool {
		t := r.MarketOpen
		if which == Close {
			t = r.MarketClose
		}
		return ClockOf(t.In(loc)) != standard
	})
}

// NextOpen returns the first row of table that opens at or after instant.
func NextOpen(table ScheduleTable, instant time.Time) (ScheduleRow, bool) {
	i := sort.Search(len(table.Rows), func(i int) bool {
		return !table.Rows[i].MarketOpen.Before(instant)
	})
	if i == len(table.Rows) {
		return ScheduleRow{}, false
	}
	return table.Rows[i], true
}

// StatusAt summarises the market at instant: when open, the close of the
// current session; when closed, the next open found in table.
func StatusAt(table ScheduleTable, cal CalendarDefinition, instant time.Time) MarketStatus {
	status := MarketStatus{Calendar: cal.Name, Timezone: cal.Timezone}
	if row, ok := sessionAt(table, cal, instant); ok {
		status.Open = true
		status.ClosesAt = row.MarketClose
		return status
	}
	if row, ok := NextOpen(table, instant); ok {
		status.OpensAt = row.MarketOpen
	}
	return status
}
