package exchanges

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketcal/internal/modules/market_hours"
	"github.com/aristath/marketcal/pkg/embedded"
)

func embeddedRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.LoadFS(embedded.Calendars(), embedded.CalendarPattern))
	return r
}

func TestRegistry_LoadEmbedded(t *testing.T) {
	r := embeddedRegistry(t)

	assert.Equal(t, []string{
		"ASEX", "CMES", "XAMS", "XASX", "XCSE", "XETR", "XHKG",
		"XLON", "XMIL", "XNAS", "XNYS", "XPAR", "XSHG", "XTKS",
	}, r.Codes())
	assert.Equal(t, 14, r.Len())
	assert.Len(t, r.Exchanges(), 14)
}

func TestRegistry_GetByAlias(t *testing.T) {
	r := embeddedRegistry(t)

	tests := []struct {
		lookup   string
		expected string
	}{
		{"XNYS", "XNYS"},
		{"xnys", "XNYS"},
		{"NYSE", "XNYS"},
		{"new york", "XNYS"},
		{" nasdaq ", "XNAS"},
		{"XTSE", "XTKS"},
		{"Tokyo", "XTKS"},
		{"globex", "CMES"},
		{"XETRA", "XETR"},
	}

	for _, tt := range tests {
		t.Run(tt.lookup, func(t *testing.T) {
			ex, err := r.Get(tt.lookup)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ex.Code)
			assert.Equal(t, tt.expected, ex.Definition.Name)
			assert.NotNil(t, ex.Location)
		})
	}
}

func TestRegistry_UnknownExchange(t *testing.T) {
	r := embeddedRegistry(t)

	_, err := r.Get("XXXX")
	var unknown *UnknownExchangeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "XXXX", unknown.Code)
	assert.Equal(t, "exchange not found: XXXX", err.Error())
}

func TestRegistry_EmbeddedCalendarsAreConsistent(t *testing.T) {
	r := embeddedRegistry(t)
	start, end := market_hours.MustParseDate("2015-01-01"), market_hours.MustParseDate("2030-12-31")

	for _, ex := range r.Exchanges() {
		t.Run(ex.Code, func(t *testing.T) {
			table, err := market_hours.Schedule(ex.Definition, start, end)
			require.NoError(t, err)
			assert.NotZero(t, table.Len())
		})
	}
}

func TestRegistry_ICSClosures(t *testing.T) {
	r := embeddedRegistry(t)
	ex, err := r.Get("XNYS")
	require.NoError(t, err)

	days, err := market_hours.ValidDays(ex.Definition,
		market_hours.MustParseDate("2025-01-06"), market_hours.MustParseDate("2025-01-10"))
	require.NoError(t, err)
	assert.Equal(t, dates("2025-01-06", "2025-01-07", "2025-01-08", "2025-01-10"), days)

	days, err = market_hours.ValidDays(ex.Definition,
		market_hours.MustParseDate("2001-09-10"), market_hours.MustParseDate("2001-09-17"))
	require.NoError(t, err)
	assert.Equal(t, dates("2001-09-10", "2001-09-17"), days)
}

const overrideCalendars = `
calendars:
  - code: XNYS
    name: Override
    timezone: UTC
    open: "10:00"
    close: "15:00"
  - code: demo
    name: Demo Exchange
    aliases: [Demo Market]
    timezone: Europe/London
    open: "08:00"
    close: "16:30"
    ad_hoc_holidays_ics: closures.ics
`

const closuresICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:closure-1\r\n" +
	"DTSTART;VALUE=DATE:20240603\r\n" +
	"DTEND;VALUE=DATE:20240604\r\n" +
	"SUMMARY:Systems outage\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestRegistry_LoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "local.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(overrideCalendars), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "closures.ics"), []byte(closuresICS), 0o644))

	r := embeddedRegistry(t)
	require.NoError(t, r.LoadFile(filename))

	assert.Equal(t, 15, r.Len())

	nyse, err := r.Get("NYSE")
	require.NoError(t, err)
	assert.Equal(t, "Override", nyse.Name)
	assert.Equal(t, "UTC", nyse.Definition.Timezone)

	demo, err := r.Get("demo market")
	require.NoError(t, err)
	assert.Equal(t, "DEMO", demo.Code)

	days, err := market_hours.ValidDays(demo.Definition,
		market_hours.MustParseDate("2024-06-03"), market_hours.MustParseDate("2024-06-04"))
	require.NoError(t, err)
	assert.Equal(t, dates("2024-06-04"), days)
}

func TestRegistry_LoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	err := NewRegistry().LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read calendars")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("calendars: [\n"), 0o644))
	err = NewRegistry().LoadFile(broken)
	assert.ErrorContains(t, err, "parse calendars")

	badRule := filepath.Join(dir, "bad-rule.yaml")
	src := strings.Join([]string{
		"calendars:",
		"  - code: BAD",
		"    timezone: UTC",
		"    open: \"09:00\"",
		"    close: \"17:00\"",
		"    holidays:",
		"      - {name: Moon Day, type: lunar}",
	}, "\n")
	require.NoError(t, os.WriteFile(badRule, []byte(src), 0o644))
	err = NewRegistry().LoadFile(badRule)
	assert.ErrorContains(t, err, `unknown rule type "lunar"`)
	assert.ErrorContains(t, err, "calendar BAD")

	missingICS := filepath.Join(dir, "missing-ics.yaml")
	src = strings.Join([]string{
		"calendars:",
		"  - code: ICS",
		"    timezone: UTC",
		"    open: \"09:00\"",
		"    close: \"17:00\"",
		"    ad_hoc_holidays_ics: nowhere.ics",
	}, "\n")
	require.NoError(t, os.WriteFile(missingICS, []byte(src), 0o644))
	err = NewRegistry().LoadFile(missingICS)
	assert.ErrorContains(t, err, "calendar ICS")
}
