package market_hours

import (
	"fmt"
	"time"
)

// InvalidRangeError is returned when a range starts after it ends.
type InvalidRangeError struct {
	Start Date
	End   Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s", e.Start, e.End)
}

// NonTradingSpecialDateError is returned when a special open or close names a
// date that is not a trading day, which means the calendar's special-session
// rules overlap its holidays or weekend.
type NonTradingSpecialDateError struct {
	Date    Date
	Session Session
}

func (e *NonTradingSpecialDateError) Error() string {
	return fmt.Sprintf("special %s on %s (%s) is not a trading day", e.Session, e.Date, e.Date.Weekday())
}

// UnresolvableLocalTimeError is returned when a wall-clock time cannot be
// mapped to an instant in the given zone. The DST policy in Localize means
// this only happens when the timezone data itself is inconsistent.
type UnresolvableLocalTimeError struct {
	Date Date
	Time TimeOfDay
	Zone string
}

func (e *UnresolvableLocalTimeError) Error() string {
	return fmt.Sprintf("cannot resolve local time %s %s in %s", e.Date, e.Time, e.Zone)
}

// UnknownTimezoneError is returned when a calendar names a timezone that
// cannot be loaded.
type UnknownTimezoneError struct {
	Zone string
	Err  error
}

func (e *UnknownTimezoneError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unknown timezone %q: %v", e.Zone, e.Err)
	}
	return fmt.Sprintf("unknown timezone %q", e.Zone)
}

func (e *UnknownTimezoneError) Unwrap() error { return e.Err }

// InvertedSessionError is returned when overrides leave a trading day whose
// open is not before its close.
type InvertedSessionError struct {
	Date        Date
	MarketOpen  time.Time
	MarketClose time.Time
}

func (e *InvertedSessionError) Error() string {
	return fmt.Sprintf("session on %s opens at %s but closes at %s",
		e.Date, e.MarketOpen.Format(time.RFC3339), e.MarketClose.Format(time.RFC3339))
}
