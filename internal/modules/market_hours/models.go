package market_hours

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TimeOfDay is a naive local wall-clock time.
type TimeOfDay struct {
	Hour   int // Hour (0-23)
	Minute int // Minute (0-59)
	Second int // Second (0-59)
}

// ParseTimeOfDay parses HH:MM or HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM or HH:MM:SS", s)
}

// MustParseTimeOfDay is like ParseTimeOfDay but panics on error.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ClockOf returns the wall-clock time of t in t's own location.
func ClockOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Validate checks that every component is in range.
func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return fmt.Errorf("time of day out of range: %02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SessionTime is a wall-clock time plus the number of calendar days it lies
// after the trading date it belongs to. Overnight markets close on the next
// day (DayOffset 1); markets opening the evening before use DayOffset -1.
type SessionTime struct {
	Time      TimeOfDay `yaml:"time" json:"time"`
	DayOffset int       `yaml:"day_offset,omitempty" json:"day_offset,omitempty"`
}

// At returns a SessionTime on the trading date itself.
func At(hour, minute int) SessionTime {
	return SessionTime{Time: TimeOfDay{Hour: hour, Minute: minute}}
}

func (s SessionTime) String() string {
	if s.DayOffset == 0 {
		return s.Time.String()
	}
	return fmt.Sprintf("%s%+dd", s.Time, s.DayOffset)
}

// UnmarshalYAML accepts either a plain "HH:MM" scalar or a
// {time, day_offset} mapping.
func (s *SessionTime) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var tod TimeOfDay
		if err := value.Decode(&tod); err != nil {
			return err
		}
		*s = SessionTime{Time: tod}
		return nil
	}
	type plain SessionTime
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = SessionTime(p)
	return nil
}

// Session selects the open or the close side of a trading session.
type Session int

const (
	// Open is the start of a trading session.
	Open Session = iota
	// Close is the end of a trading session.
	Close
)

func (s Session) String() string {
	if s == Close {
		return "close"
	}
	return "open"
}

// SpecialTime overrides the open or close time on every date produced by Rule.
// DayOffset is relative to the trading date and is zero for same-day overrides.
type SpecialTime struct {
	Time      TimeOfDay
	DayOffset int
	Rule      Rule
}

// AdHocSpecialTime overrides the open or close time on an explicit list of dates.
type AdHocSpecialTime struct {
	Time      TimeOfDay
	DayOffset int
	Dates     []Date
}

// CalendarDefinition describes a market. Values are treated as immutable:
// nothing in this package modifies a definition it is given.
type CalendarDefinition struct {
	Name     string
	Timezone string // IANA identifier, e.g. "America/New_York"

	StandardOpen  SessionTime
	StandardClose SessionTime

	Holidays HolidayRuleSet

	// Weekmask lists the days of the week the market trades on.
	// Empty means Monday through Friday.
	Weekmask []time.Weekday

	// Rule-based overrides, applied in order; the last entry for a date wins.
	SpecialOpens  []SpecialTime
	SpecialCloses []SpecialTime

	// Ad-hoc overrides, applied after the rule-based ones.
	SpecialOpensAdHoc  []AdHocSpecialTime
	SpecialClosesAdHoc []AdHocSpecialTime
}

var defaultWeekmask = [7]bool{
	time.Monday:    true,
	time.Tuesday:   true,
	time.Wednesday: true,
	time.Thursday:  true,
	time.Friday:    true,
}

// Location loads the calendar's timezone.
func (c CalendarDefinition) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, &UnknownTimezoneError{Zone: c.Timezone}
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, &UnknownTimezoneError{Zone: c.Timezone, Err: err}
	}
	return loc, nil
}

// TradesOn reports whether wd is in the calendar's weekmask.
func (c CalendarDefinition) TradesOn(wd time.Weekday) bool {
	if len(c.Weekmask) == 0 {
		return defaultWeekmask[wd]
	}
	for _, d := range c.Weekmask {
		if d == wd {
			return true
		}
	}
	return false
}

func (c CalendarDefinition) standard(which Session) SessionTime {
	if which == Close {
		return c.StandardClose
	}
	return c.StandardOpen
}

func (c CalendarDefinition) specials(which Session) ([]SpecialTime, []AdHocSpecialTime) {
	if which == Close {
		return c.SpecialCloses, c.SpecialClosesAdHoc
	}
	return c.SpecialOpens, c.SpecialOpensAdHoc
}

// Validate checks the parts of a definition that can be checked without a
// date range: the timezone and every configured time of day.
func (c CalendarDefinition) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.StandardOpen.Time.Validate(); err != nil {
		return fmt.Errorf("standard open: %w", err)
	}
	if err := c.StandardClose.Time.Validate(); err != nil {
		return fmt.Errorf("standard close: %w", err)
	}
	for _, which := range []Session{Open, Close} {
		rules, adHoc := c.specials(which)
		for i, s := range rules {
			if s.Rule == nil {
				return fmt.Errorf("special %s %d: missing rule", which, i)
			}
			if err := s.Time.Validate(); err != nil {
				return fmt.Errorf("special %s %d: %w", which, i, err)
			}
		}
		for i, s := range adHoc {
			if err := s.Time.Validate(); err != nil {
				return fmt.Errorf("ad-hoc special %s %d: %w", which, i, err)
			}
		}
	}
	return nil
}

// SpecialSession is a resolved override: the instant a session opens or
// closes on Date instead of the standard time.
type SpecialSession struct {
	Date Date
	At   time.Time
}

// ScheduleRow holds the open and close instants (UTC) of one trading day.
type ScheduleRow struct {
	Date        Date      `json:"date"`
	MarketOpen  time.Time `json:"market_open"`
	MarketClose time.Time `json:"market_close"`
}

// Contains reports whether t lies within [MarketOpen, MarketClose].
func (r ScheduleRow) Contains(t time.Time) bool {
	return !t.Before(r.MarketOpen) && !t.After(r.MarketClose)
}

// ScheduleTable is the schedule of a date range, one row per trading day in
// ascending date order.
type ScheduleTable struct {
	Rows []ScheduleRow `json:"rows"`
}

// Len returns the number of trading days in the table.
func (t ScheduleTable) Len() int { return len(t.Rows) }

// Row returns the row for d, if d is a trading day in the table.
func (t ScheduleTable) Row(d Date) (ScheduleRow, bool) {
	i := sort.Search(len(t.Rows), func(i int) bool {
		return !t.Rows[i].Date.Before(d)
	})
	if i < len(t.Rows) && t.Rows[i].Date == d {
		return t.Rows[i], true
	}
	return ScheduleRow{}, false
}

// Dates returns the trading dates of the table in order.
func (t ScheduleTable) Dates() []Date {
	out := make([]Date, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Date
	}
	return out
}

func (t ScheduleTable) filter(keep func(ScheduleRow) bool) ScheduleTable {
	rows := make([]ScheduleRow, 0)
	for _, r := range t.Rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return ScheduleTable{Rows: rows}
}

// MarketStatus describes a market at a point in time.
type MarketStatus struct {
	Open     bool      `json:"open"`
	Calendar string    `json:"calendar"`
	Timezone string    `json:"timezone"`
	ClosesAt time.Time `json:"closes_at"` // set when open
	OpensAt  time.Time `json:"opens_at"`  // next open, set when closed and known
}
