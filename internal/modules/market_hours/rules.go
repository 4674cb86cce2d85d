package market_hours

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
)

// Rule is a recurrence that produces calendar dates. The set of rules is
// closed; new kinds of recurrence are added as new variants in this file.
type Rule interface {
	// DatesInRange returns the dates the rule produces in [start, end],
	// ascending and without duplicates.
	DatesInRange(start, end Date) []Date
	String() string
	isRule()
}

// Years bounds the years a rule applies to. A zero bound is open.
type Years struct {
	Start int
	End   int
}

func (y Years) contains(year int) bool {
	if y.Start != 0 && year < y.Start {
		return false
	}
	if y.End != 0 && year > y.End {
		return false
	}
	return true
}

func (y Years) String() string {
	switch {
	case y.Start == 0 && y.End == 0:
		return ""
	case y.End == 0:
		return fmt.Sprintf(" from %d", y.Start)
	case y.Start == 0:
		return fmt.Sprintf(" until %d", y.End)
	default:
		return fmt.Sprintf(" %d-%d", y.Start, y.End)
	}
}

// Observance moves a holiday that falls on a weekend.
type Observance int

const (
	// NoObservance keeps the date as is.
	NoObservance Observance = iota
	// NearestWeekday moves Saturday to Friday and Sunday to Monday.
	NearestWeekday
	// SundayToMonday moves Sunday to Monday and leaves Saturday alone.
	SundayToMonday
	// NextMonday moves Saturday and Sunday to the following Monday.
	NextMonday
	// PreviousFriday moves Saturday and Sunday to the preceding Friday.
	PreviousFriday
)

var observanceNames = map[Observance]string{
	NoObservance:   "none",
	NearestWeekday: "nearest_weekday",
	SundayToMonday: "sunday_to_monday",
	NextMonday:     "next_monday",
	PreviousFriday: "previous_friday",
}

func (o Observance) String() string {
	if name, ok := observanceNames[o]; ok {
		return name
	}
	return fmt.Sprintf("observance(%d)", int(o))
}

// ParseObservance maps a name such as "nearest_weekday" to an Observance.
// The empty string is NoObservance.
func ParseObservance(name string) (Observance, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return NoObservance, nil
	}
	for o, n := range observanceNames {
		if n == name {
			return o, nil
		}
	}
	return NoObservance, fmt.Errorf("unknown observance %q", name)
}

func (o Observance) apply(d Date) Date {
	wd := d.Weekday()
	switch o {
	case NearestWeekday:
		switch wd {
		case time.Saturday:
			return d.AddDays(-1)
		case time.Sunday:
			return d.AddDays(1)
		}
	case SundayToMonday:
		if wd == time.Sunday {
			return d.AddDays(1)
		}
	case NextMonday:
		switch wd {
		case time.Saturday:
			return d.AddDays(2)
		case time.Sunday:
			return d.AddDays(1)
		}
	case PreviousFriday:
		switch wd {
		case time.Saturday:
			return d.AddDays(-1)
		case time.Sunday:
			return d.AddDays(-2)
		}
	}
	return d
}

// FixedDate is a holiday on the same month and day every year, optionally
// moved off weekends.
type FixedDate struct {
	Month      time.Month
	Day        int
	Observance Observance
	Years      Years
}

// ObservedIfWeekend is a fixed-date holiday observed on the nearest weekday.
func ObservedIfWeekend(month time.Month, day int) FixedDate {
	return FixedDate{Month: month, Day: day, Observance: NearestWeekday}
}

func (f FixedDate) DatesInRange(start, end Date) []Date {
	out := make([]Date, 0)
	// Observed dates can cross a year boundary (Jan 1 on a Saturday).
	for year := start.Year - 1; year <= end.Year+1; year++ {
		if !f.Years.contains(year) {
			continue
		}
		actual := NewDate(year, f.Month, f.Day)
		if actual.Month != f.Month {
			continue // Feb 29 outside leap years
		}
		if d := f.Observance.apply(actual); d.Within(start, end) {
			out = append(out, d)
		}
	}
	return out
}

func (f FixedDate) String() string {
	s := fmt.Sprintf("%s %d", f.Month, f.Day)
	if f.Observance != NoObservance {
		s += " (" + f.Observance.String() + ")"
	}
	return s + f.Years.String()
}

func (FixedDate) isRule() {}

// NthWeekday is the nth weekday of a month; negative N counts from the end
// of the month (-1 = last).
type NthWeekday struct {
	Month   time.Month
	Weekday time.Weekday
	N       int
	Years   Years
}

func (n NthWeekday) DatesInRange(start, end Date) []Date {
	out := make([]Date, 0)
	if n.N == 0 {
		return out
	}
	for year := start.Year; year <= end.Year; year++ {
		if !n.Years.contains(year) {
			continue
		}
		d := findNthWeekday(year, n.Month, n.Weekday, n.N)
		if d.Month != n.Month {
			continue // no fifth occurrence this year
		}
		if d.Within(start, end) {
			out = append(out, d)
		}
	}
	return out
}

func (n NthWeekday) String() string {
	if n.N < 0 {
		return fmt.Sprintf("%s %d from end of %s%s", n.Weekday, -n.N, n.Month, n.Years)
	}
	return fmt.Sprintf("%s %d of %s%s", n.Weekday, n.N, n.Month, n.Years)
}

func (NthWeekday) isRule() {}

// EasterOffset is a holiday a fixed number of days from Easter Sunday.
type EasterOffset struct {
	Offset   int
	Calendar CalendarType
	Years    Years
}

// GoodFriday returns the Western Good Friday rule.
func GoodFriday() EasterOffset { return EasterOffset{Offset: -2} }

// EasterMonday returns the Western Easter Monday rule.
func EasterMonday() EasterOffset { return EasterOffset{Offset: 1} }

func (e EasterOffset) DatesInRange(start, end Date) []Date {
	out := make([]Date, 0)
	margin := abs(e.Offset)/365 + 1
	for year := start.Year - margin; year <= end.Year+margin; year++ {
		if !e.Years.contains(year) {
			continue
		}
		if d := CalculateEaster(year, e.Calendar).AddDays(e.Offset); d.Within(start, end) {
			out = append(out, d)
		}
	}
	return out
}

func (e EasterOffset) String() string {
	return fmt.Sprintf("%s easter %+d days%s", e.Calendar, e.Offset, e.Years)
}

func (EasterOffset) isRule() {}

// rruleAnchor is the DTSTART used when an RRULE does not carry its own.
var rruleAnchor = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// RRule is an RFC 5545 recurrence rule, e.g. "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=24".
// Rules without a DTSTART are anchored at 1970-01-01 UTC.
type RRule struct {
	spec string
	rule *rrule.RRule
}

// NewRRule parses an RRULE string.
func NewRRule(spec string) (*RRule, error) {
	opt, err := rrule.StrToROption(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid rrule %q: %w", spec, err)
	}
	if opt.Dtstart.IsZero() {
		opt.Dtstart = rruleAnchor
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("invalid rrule %q: %w", spec, err)
	}
	return &RRule{spec: spec, rule: r}, nil
}

func (r *RRule) DatesInRange(start, end Date) []Date {
	// Widen the window by a day on each side so occurrences in zones ahead
	// of or behind UTC are not lost, then filter on the occurrence's own date.
	occurrences := r.rule.Between(start.AddDays(-1).utc(), end.AddDays(2).utc(), true)
	return uniqueDates(occurrences, start, end)
}

func (r *RRule) String() string { return "rrule " + r.spec }

func (*RRule) isRule() {}

// CronRule produces the dates on which a standard five-field cron expression
// fires at least once, e.g. "0 0 24 12 *" for every December 24.
type CronRule struct {
	spec     string
	schedule cron.Schedule
}

// NewCronRule parses a standard cron expression.
func NewCronRule(spec string) (*CronRule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron rule %q: %w", spec, err)
	}
	return &CronRule{spec: spec, schedule: schedule}, nil
}

func (c *CronRule) DatesInRange(start, end Date) []Date {
	out := make([]Date, 0)
	cursor := start.utc().Add(-time.Second)
	for {
		next := c.schedule.Next(cursor)
		if next.IsZero() {
			// robfig/cron gives up after five years without a match.
			cursor = cursor.AddDate(5, 0, 0)
			if DateOf(cursor).After(end) {
				return out
			}
			continue
		}
		d := DateOf(next)
		if d.After(end) {
			return out
		}
		out = append(out, d)
		cursor = d.AddDays(1).utc().Add(-time.Second)
	}
}

func (c *CronRule) String() string { return "cron " + c.spec }

func (*CronRule) isRule() {}

// LibraryHoliday adapts a holiday definition from github.com/rickar/cal/v2.
// The observed date is used unless Actual is set.
type LibraryHoliday struct {
	Holiday *cal.Holiday
	Actual  bool
	Years   Years
}

func (l LibraryHoliday) DatesInRange(start, end Date) []Date {
	out := make([]Date, 0)
	if l.Holiday == nil {
		return out
	}
	for year := start.Year - 1; year <= end.Year+1; year++ {
		if !l.Years.contains(year) {
			continue
		}
		actual, observed := l.Holiday.Calc(year)
		t := observed
		if l.Actual {
			t = actual
		}
		if t.IsZero() {
			continue
		}
		if d := DateOf(t); d.Within(start, end) {
			out = append(out, d)
		}
	}
	return out
}

func (l LibraryHoliday) String() string {
	if l.Holiday == nil {
		return "library holiday <nil>"
	}
	return "library holiday " + l.Holiday.Name + l.Years.String()
}

func (LibraryHoliday) isRule() {}

// DateList is an explicit list of dates used as a rule.
type DateList struct {
	Dates []Date
}

func (l DateList) DatesInRange(start, end Date) []Date {
	return filterDates(l.Dates, start, end)
}

func (l DateList) String() string { return fmt.Sprintf("%d explicit dates", len(l.Dates)) }

func (DateList) isRule() {}

// Shifted moves every date of Base by Days calendar days, e.g. the day
// after Thanksgiving.
type Shifted struct {
	Base Rule
	Days int
}

func (s Shifted) DatesInRange(start, end Date) []Date {
	base := s.Base.DatesInRange(start.AddDays(-s.Days), end.AddDays(-s.Days))
	out := make([]Date, 0, len(base))
	for _, d := range base {
		out = append(out, d.AddDays(s.Days))
	}
	return out
}

func (s Shifted) String() string { return fmt.Sprintf("%s %+d days", s.Base, s.Days) }

func (Shifted) isRule() {}

// OnWeekdays keeps only the dates of Base that fall on one of Weekdays.
type OnWeekdays struct {
	Base     Rule
	Weekdays []time.Weekday
}

func (o OnWeekdays) DatesInRange(start, end Date) []Date {
	out := make([]Date, 0)
	for _, d := range o.Base.DatesInRange(start, end) {
		for _, wd := range o.Weekdays {
			if d.Weekday() == wd {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func (o OnWeekdays) String() string {
	names := make([]string, len(o.Weekdays))
	for i, wd := range o.Weekdays {
		names[i] = wd.String()[:3]
	}
	return fmt.Sprintf("%s on %s", o.Base, strings.Join(names, ","))
}

func (OnWeekdays) isRule() {}

// filterDates returns the distinct dates of in that fall in [start, end], sorted.
func filterDates(in []Date, start, end Date) []Date {
	seen := make(map[Date]struct{}, len(in))
	out := make([]Date, 0, len(in))
	for _, d := range in {
		if !d.Within(start, end) {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sortDates(out)
	return out
}

func uniqueDates(times []time.Time, start, end Date) []Date {
	dates := make([]Date, len(times))
	for i, t := range times {
		dates[i] = DateOf(t)
	}
	return filterDates(dates, start, end)
}

func sortDates(dates []Date) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
