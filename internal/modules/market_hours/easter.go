package market_hours

import "time"

// CalendarType represents the calendar system used for Easter calculation
type CalendarType int

const (
	// Gregorian calendar (Western/Catholic)
	Gregorian CalendarType = iota
	// Julian calendar (Orthodox)
	Julian
)

func (c CalendarType) String() string {
	if c == Julian {
		return "julian"
	}
	return "gregorian"
}

// CalculateEaster calculates the date of Easter Sunday for a given year and
// calendar type. Julian (Orthodox) Easter is returned as a Gregorian date.
func CalculateEaster(year int, calendarType CalendarType) Date {
	if calendarType == Julian {
		return calculateJulianEaster(year)
	}
	return calculateGregorianEaster(year)
}

// calculateGregorianEaster uses the anonymous Gregorian computus (Meeus/Jones/Butcher).
func calculateGregorianEaster(year int) Date {
	// Golden Number (position in 19-year Metonic cycle)
	a := year % 19

	// Century
	b := year / 100
	c := year % 100

	// Corrections
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return NewDate(year, time.Month(month), day)
}

// calculateJulianEaster uses the Julian computus (Meeus) and converts the
// result to the Gregorian calendar.
func calculateJulianEaster(year int) Date {
	a := year % 4
	b := year % 7
	c := year % 19
	d := (19*c + 15) % 30
	e := (2*a + 4*b - d + 34) % 7
	month := (d + e + 114) / 31
	day := ((d + e + 114) % 31) + 1

	// Julian and Gregorian calendars drift apart by one day every century
	// not divisible by 400. Easter is always after March 1, so the
	// century-year adjustment has already happened.
	drift := year/100 - year/400 - 2

	return NewDate(year, time.Month(month), day+drift)
}

// findNthWeekday finds the nth occurrence of a weekday in a given month/year.
// n: 1 = first, 2 = second, -1 = last, -2 = second to last. The result may
// fall outside the month when n is larger than the number of occurrences.
func findNthWeekday(year int, month time.Month, weekday time.Weekday, n int) Date {
	if n < 0 {
		last := findLastWeekday(year, month, weekday)
		return last.AddDays((n + 1) * 7)
	}

	first := NewDate(year, month, 1)
	daysToAdd := int(weekday - first.Weekday())
	if daysToAdd < 0 {
		daysToAdd += 7
	}
	return first.AddDays(daysToAdd + (n-1)*7)
}

// findLastWeekday finds the last occurrence of a weekday in a given month/year
func findLastWeekday(year int, month time.Month, weekday time.Weekday) Date {
	// Day zero of the next month is the last day of this one.
	last := NewDate(year, month+1, 0)

	daysToSubtract := int(last.Weekday() - weekday)
	if daysToSubtract < 0 {
		daysToSubtract += 7
	}
	return last.AddDays(-daysToSubtract)
}
