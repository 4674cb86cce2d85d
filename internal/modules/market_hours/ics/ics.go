// Package ics reads exchange closure dates from iCalendar (RFC 5545) files,
// the format most exchanges publish their holiday calendars in.
package ics

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/aristath/marketcal/internal/modules/market_hours"
)

// Closure is one VEVENT: the dates it covers and its summary.
type Closure struct {
	Summary string
	Dates   []market_hours.Date
}

// ParseClosures parses every VEVENT of an ICS payload. All-day events cover
// DTSTART up to, but excluding, DTEND. Timed events cover the date of their
// DTSTART. Cancelled events are skipped.
func ParseClosures(r io.Reader) ([]Closure, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	out := make([]Closure, 0)
	for _, ev := range cal.Events() {
		if p := ev.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
			continue
		}
		dates, err := eventDates(ev)
		if err != nil {
			uid := ""
			if p := ev.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
				uid = p.Value
			}
			return nil, fmt.Errorf("event %q: %w", uid, err)
		}
		c := Closure{Dates: dates}
		if p := ev.GetProperty(ical.ComponentPropertySummary); p != nil {
			c.Summary = p.Value
		}
		out = append(out, c)
	}
	return out, nil
}

// ParseHolidays returns the distinct dates covered by the events of an ICS
// payload, in ascending order.
func ParseHolidays(r io.Reader) ([]market_hours.Date, error) {
	closures, err := ParseClosures(r)
	if err != nil {
		return nil, err
	}
	seen := make(map[market_hours.Date]struct{})
	out := make([]market_hours.Date, 0)
	for _, c := range closures {
		for _, d := range c.Dates {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func eventDates(ev *ical.VEvent) ([]market_hours.Date, error) {
	startProp := ev.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return nil, errors.New("missing DTSTART")
	}

	if !isAllDay(startProp) {
		start, err := ev.GetStartAt()
		if err != nil {
			return nil, err
		}
		return []market_hours.Date{market_hours.DateOf(start)}, nil
	}

	start, err := parseDateValue(startProp.Value)
	if err != nil {
		return nil, err
	}
	end := start.AddDays(1)
	if endProp := ev.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		if end, err = parseDateValue(endProp.Value); err != nil {
			return nil, err
		}
		if !end.After(start) {
			end = start.AddDays(1)
		}
	}

	dates := make([]market_hours.Date, 0, start.DaysUntil(end))
	for d := start; d.Before(end); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates, nil
}

func isAllDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func parseDateValue(v string) (market_hours.Date, error) {
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return market_hours.Date{}, fmt.Errorf("invalid date value %q", v)
	}
	t, err := time.Parse("20060102", v[:8])
	if err != nil {
		return market_hours.Date{}, fmt.Errorf("invalid date value %q: %w", v, err)
	}
	return market_hours.DateOf(t), nil
}
