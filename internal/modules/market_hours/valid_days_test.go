package market_hours

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidDays(t *testing.T) {
	cal := julyCalendar()

	days, err := ValidDays(cal, MustParseDate("2024-07-01"), MustParseDate("2024-07-07"))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-07-01", "2024-07-02", "2024-07-03", "2024-07-05"), days)
}

func TestValidDays_SingleDay(t *testing.T) {
	cal := julyCalendar()

	days, err := ValidDays(cal, MustParseDate("2024-07-04"), MustParseDate("2024-07-04"))
	require.NoError(t, err)
	assert.Empty(t, days)

	days, err = ValidDays(cal, MustParseDate("2024-07-05"), MustParseDate("2024-07-05"))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-07-05"), days)
}

func TestValidDays_InvalidRange(t *testing.T) {
	_, err := ValidDays(julyCalendar(), MustParseDate("2024-07-05"), MustParseDate("2024-07-01"))
	require.Error(t, err)

	var rangeErr *InvalidRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, MustParseDate("2024-07-05"), rangeErr.Start)
	assert.Equal(t, MustParseDate("2024-07-01"), rangeErr.End)
}

func TestValidDays_Weekmask(t *testing.T) {
	cal := julyCalendar()
	cal.Weekmask = []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday}

	days, err := ValidDays(cal, MustParseDate("2024-06-30"), MustParseDate("2024-07-06"))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-06-30", "2024-07-01", "2024-07-02", "2024-07-03"), days)
}

func TestValidDays_Properties(t *testing.T) {
	cal := julyCalendar()
	cal.Holidays.Rules = []Rule{GoodFriday(), ObservedIfWeekend(time.December, 25)}
	start, end := year(2024)

	days, err := ValidDays(cal, start, end)
	require.NoError(t, err)

	holidays := cal.Holidays.HolidaySet(start, end)
	for i, d := range days {
		assert.True(t, d.Within(start, end))
		assert.True(t, cal.TradesOn(d.Weekday()), "%s is not in the weekmask", d)
		_, isHoliday := holidays[d]
		assert.False(t, isHoliday, "%s is a holiday", d)
		if i > 0 {
			assert.True(t, days[i-1].Before(d), "days not strictly increasing at %s", d)
		}
	}
	// 262 weekdays in 2024, less three holidays on weekdays.
	assert.Len(t, days, 259)
}
