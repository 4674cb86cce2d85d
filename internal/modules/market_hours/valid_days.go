package market_hours

// ValidDays returns the trading days of cal in [start, end]: every day in the
// calendar's weekmask that is not a holiday, in ascending order.
func ValidDays(cal CalendarDefinition, start, end Date) ([]Date, error) {
	start, end = start.Normalize(), end.Normalize()
	if start.After(end) {
		return nil, &InvalidRangeError{Start: start, End: end}
	}

	holidays := cal.Holidays.HolidaySet(start, end)
	days := make([]Date, 0, start.DaysUntil(end)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		if !cal.TradesOn(d.Weekday()) {
			continue
		}
		if _, ok := holidays[d]; ok {
			continue
		}
		days = append(days, d)
	}
	return days, nil
}
