// Package exchanges loads named market calendars from YAML and answers
// schedule and status queries for them.
package exchanges

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"

	"github.com/aristath/marketcal/internal/modules/market_hours"
)

// File is the top level of a calendar definitions file.
type File struct {
	Calendars []CalendarSpec `yaml:"calendars"`
}

// CalendarSpec is the YAML form of one exchange calendar.
type CalendarSpec struct {
	Code     string   `yaml:"code"`
	Name     string   `yaml:"name"`
	Aliases  []string `yaml:"aliases"`
	Timezone string   `yaml:"timezone"`

	Open     market_hours.SessionTime `yaml:"open"`
	Close    market_hours.SessionTime `yaml:"close"`
	Weekmask []string                 `yaml:"weekmask"`

	Holidays         []RuleSpec          `yaml:"holidays"`
	AdHocHolidays    []market_hours.Date `yaml:"ad_hoc_holidays"`
	AdHocHolidaysICS string              `yaml:"ad_hoc_holidays_ics"` // path relative to the definitions file

	SpecialOpens       []SpecialSpec `yaml:"special_opens"`
	SpecialCloses      []SpecialSpec `yaml:"special_closes"`
	SpecialOpensAdHoc  []AdHocSpec   `yaml:"special_opens_ad_hoc"`
	SpecialClosesAdHoc []AdHocSpec   `yaml:"special_closes_ad_hoc"`
}

// SpecialSpec is a rule-based special open or close.
type SpecialSpec struct {
	Time      market_hours.TimeOfDay `yaml:"time"`
	DayOffset int                    `yaml:"day_offset"`
	Rule      RuleSpec               `yaml:"rule"`
}

// AdHocSpec is a special open or close on explicit dates.
type AdHocSpec struct {
	Time      market_hours.TimeOfDay `yaml:"time"`
	DayOffset int                    `yaml:"day_offset"`
	Dates     []market_hours.Date    `yaml:"dates"`
}

// RuleSpec is the YAML form of a market_hours.Rule. Type selects which of the
// other fields are read:
//
//	fixed        month, day, observance
//	nth_weekday  month, weekday, n (negative counts from the end)
//	easter       offset, calendar (gregorian|julian)
//	rrule        rrule
//	cron         cron
//	library      holiday, actual
//	dates        dates
//	shifted      base, days
//	on_weekdays  base, weekdays
//
// start_year and end_year bound the years the rule applies to.
type RuleSpec struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`

	Month      int    `yaml:"month"`
	Day        int    `yaml:"day"`
	Weekday    string `yaml:"weekday"`
	N          int    `yaml:"n"`
	Observance string `yaml:"observance"`

	Offset   int    `yaml:"offset"`
	Calendar string `yaml:"calendar"`

	RRule string `yaml:"rrule"`
	Cron  string `yaml:"cron"`

	Holiday string `yaml:"holiday"`
	Actual  bool   `yaml:"actual"`

	Dates []market_hours.Date `yaml:"dates"`

	Base     *RuleSpec `yaml:"base"`
	Days     int       `yaml:"days"`
	Weekdays []string  `yaml:"weekdays"`

	StartYear int `yaml:"start_year"`
	EndYear   int `yaml:"end_year"`
}

// libraryHolidays are the github.com/rickar/cal/v2 definitions a calendar can
// refer to by name.
var libraryHolidays = map[string]*cal.Holiday{
	"us.new_year":         us.NewYear,
	"us.mlk_day":          us.MlkDay,
	"us.presidents_day":   us.PresidentsDay,
	"us.memorial_day":     us.MemorialDay,
	"us.juneteenth":       us.Juneteenth,
	"us.independence_day": us.IndependenceDay,
	"us.labor_day":        us.LaborDay,
	"us.thanksgiving":     us.ThanksgivingDay,
	"us.christmas":        us.ChristmasDay,
}

// Build converts the spec into a rule.
func (s RuleSpec) Build() (market_hours.Rule, error) {
	years := market_hours.Years{Start: s.StartYear, End: s.EndYear}

	switch strings.ToLower(s.Type) {
	case "fixed":
		month, err := parseMonth(s.Month)
		if err != nil {
			return nil, err
		}
		if s.Day < 1 || s.Day > 31 {
			return nil, fmt.Errorf("day %d out of range", s.Day)
		}
		observance, err := market_hours.ParseObservance(s.Observance)
		if err != nil {
			return nil, err
		}
		return market_hours.FixedDate{Month: month, Day: s.Day, Observance: observance, Years: years}, nil

	case "nth_weekday":
		month, err := parseMonth(s.Month)
		if err != nil {
			return nil, err
		}
		wd, err := parseWeekday(s.Weekday)
		if err != nil {
			return nil, err
		}
		if s.N == 0 || s.N < -5 || s.N > 5 {
			return nil, fmt.Errorf("n %d out of range", s.N)
		}
		return market_hours.NthWeekday{Month: month, Weekday: wd, N: s.N, Years: years}, nil

	case "easter":
		ct := market_hours.Gregorian
		switch strings.ToLower(s.Calendar) {
		case "", "gregorian", "western":
		case "julian", "orthodox":
			ct = market_hours.Julian
		default:
			return nil, fmt.Errorf("unknown easter calendar %q", s.Calendar)
		}
		return market_hours.EasterOffset{Offset: s.Offset, Calendar: ct, Years: years}, nil

	case "rrule":
		rule, err := market_hours.NewRRule(s.RRule)
		if err != nil {
			return nil, err
		}
		return rule, nil

	case "cron":
		rule, err := market_hours.NewCronRule(s.Cron)
		if err != nil {
			return nil, err
		}
		return rule, nil

	case "library":
		h, ok := libraryHolidays[strings.ToLower(s.Holiday)]
		if !ok {
			return nil, fmt.Errorf("unknown library holiday %q", s.Holiday)
		}
		return market_hours.LibraryHoliday{Holiday: h, Actual: s.Actual, Years: years}, nil

	case "dates":
		return market_hours.DateList{Dates: s.Dates}, nil

	case "shifted":
		base, err := s.buildBase()
		if err != nil {
			return nil, err
		}
		return market_hours.Shifted{Base: base, Days: s.Days}, nil

	case "on_weekdays":
		base, err := s.buildBase()
		if err != nil {
			return nil, err
		}
		weekdays := make([]time.Weekday, 0, len(s.Weekdays))
		for _, name := range s.Weekdays {
			wd, err := parseWeekday(name)
			if err != nil {
				return nil, err
			}
			weekdays = append(weekdays, wd)
		}
		return market_hours.OnWeekdays{Base: base, Weekdays: weekdays}, nil
	}
	return nil, fmt.Errorf("unknown rule type %q", s.Type)
}

func (s RuleSpec) buildBase() (market_hours.Rule, error) {
	if s.Base == nil {
		return nil, fmt.Errorf("%s rule needs a base rule", s.Type)
	}
	base, err := s.Base.Build()
	if err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}
	return base, nil
}

// Definition converts the spec into a calendar definition. extraHolidays are
// merged into the ad-hoc holidays.
func (c CalendarSpec) Definition(extraHolidays []market_hours.Date) (market_hours.CalendarDefinition, error) {
	if c.Code == "" {
		return market_hours.CalendarDefinition{}, errors.New("calendar without code")
	}

	def := market_hours.CalendarDefinition{
		Name:          c.Code,
		Timezone:      c.Timezone,
		StandardOpen:  c.Open,
		StandardClose: c.Close,
	}

	for _, name := range c.Weekmask {
		wd, err := parseWeekday(name)
		if err != nil {
			return def, fmt.Errorf("weekmask: %w", err)
		}
		def.Weekmask = append(def.Weekmask, wd)
	}

	for i, spec := range c.Holidays {
		rule, err := spec.Build()
		if err != nil {
			return def, fmt.Errorf("holiday %d (%s): %w", i, spec.label(), err)
		}
		def.Holidays.Rules = append(def.Holidays.Rules, rule)
	}
	def.Holidays.AdHoc = append(append(def.Holidays.AdHoc, c.AdHocHolidays...), extraHolidays...)

	var err error
	if def.SpecialOpens, err = buildSpecials(c.SpecialOpens); err != nil {
		return def, fmt.Errorf("special opens: %w", err)
	}
	if def.SpecialCloses, err = buildSpecials(c.SpecialCloses); err != nil {
		return def, fmt.Errorf("special closes: %w", err)
	}
	def.SpecialOpensAdHoc = buildAdHoc(c.SpecialOpensAdHoc)
	def.SpecialClosesAdHoc = buildAdHoc(c.SpecialClosesAdHoc)

	if err := def.Validate(); err != nil {
		return def, err
	}
	return def, nil
}

func buildSpecials(specs []SpecialSpec) ([]market_hours.SpecialTime, error) {
	out := make([]market_hours.SpecialTime, 0, len(specs))
	for i, spec := range specs {
		rule, err := spec.Rule.Build()
		if err != nil {
			return nil, fmt.Errorf("%d (%s): %w", i, spec.Rule.label(), err)
		}
		out = append(out, market_hours.SpecialTime{Time: spec.Time, DayOffset: spec.DayOffset, Rule: rule})
	}
	return out, nil
}

func buildAdHoc(specs []AdHocSpec) []market_hours.AdHocSpecialTime {
	out := make([]market_hours.AdHocSpecialTime, 0, len(specs))
	for _, spec := range specs {
		out = append(out, market_hours.AdHocSpecialTime{Time: spec.Time, DayOffset: spec.DayOffset, Dates: spec.Dates})
	}
	return out
}

func (s RuleSpec) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Type
}

func parseMonth(m int) (time.Month, error) {
	if m < 1 || m > 12 {
		return 0, fmt.Errorf("month %d out of range", m)
	}
	return time.Month(m), nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func parseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return wd, nil
}
