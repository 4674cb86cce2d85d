package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketcal/internal/modules/exchanges"
	"github.com/aristath/marketcal/internal/modules/market_hours"
	"github.com/aristath/marketcal/pkg/embedded"
)

// 10:00 in New York on the day before Independence Day 2024.
var fixedNow = time.Date(2024, 7, 3, 14, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T) (*chi.Mux, *exchanges.Registry) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	registry := exchanges.NewRegistry()
	require.NoError(t, registry.LoadFS(embedded.Calendars(), embedded.CalendarPattern))

	handler := NewHandler(exchanges.NewService(registry, 0, logger), "XNYS", logger)
	handler.now = func() time.Time { return fixedNow }

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, registry
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Contains(t, response, "metadata")
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "data should be an object")
	return data
}

func TestHandleGetCalendars(t *testing.T) {
	router, registry := newTestRouter(t)

	w := get(t, router, "/market-hours/calendars")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	assert.Equal(t, float64(registry.Len()), data["count"])

	calendars := data["calendars"].([]interface{})
	var nyse map[string]interface{}
	for _, c := range calendars {
		if c.(map[string]interface{})["code"] == "XNYS" {
			nyse = c.(map[string]interface{})
		}
	}
	require.NotNil(t, nyse)
	assert.Equal(t, "America/New_York", nyse["timezone"])
	assert.Equal(t, "09:30", nyse["open"])
	assert.Equal(t, "16:00", nyse["close"])
	assert.Equal(t, []interface{}{"Mon", "Tue", "Wed", "Thu", "Fri"}, nyse["weekmask"])
}

func TestHandleGetStatus(t *testing.T) {
	router, registry := newTestRouter(t)

	w := get(t, router, "/market-hours/status")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	assert.Equal(t, "2024-07-03T14:00:00Z", data["timestamp"])
	markets := data["markets"].([]interface{})
	assert.Len(t, markets, registry.Len())
}

func TestHandleGetStatusByExchange(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name           string
		target         string
		expectedStatus int
		validate       func(*testing.T, map[string]interface{})
	}{
		{
			name:           "open, by alias",
			target:         "/market-hours/status/nyse",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, "XNYS", data["exchange"])
				assert.Equal(t, true, data["open"])
				assert.Equal(t, "2024-07-03T17:00:00Z", data["closes_at"])
				assert.NotContains(t, data, "opens_at")
			},
		},
		{
			name:           "closed, explicit instant",
			target:         "/market-hours/status/XNYS?at=2024-07-03T18:00:00Z",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, data map[string]interface{}) {
				assert.Equal(t, false, data["open"])
				assert.Equal(t, "2024-07-05T13:30:00Z", data["opens_at"])
			},
		},
		{
			name:           "unknown exchange",
			target:         "/market-hours/status/XXXX",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "bad instant",
			target:         "/market-hours/status/XNYS?at=tomorrow",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, router, tt.target)
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validate != nil {
				tt.validate(t, decodeData(t, w))
			}
		})
	}
}

func TestHandleGetOpenMarkets(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(t, router, "/market-hours/open-markets")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	open := data["open_markets"].([]interface{})
	assert.Contains(t, open, "XNYS")
	assert.Contains(t, open, "XLON")
	assert.NotContains(t, open, "XTKS")
	assert.Equal(t, float64(len(open)), data["count"])

	w = get(t, router, "/market-hours/open-markets?at=2024-07-06T12:00:00Z")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeData(t, w)["open_markets"])
}

func TestHandleGetHolidays(t *testing.T) {
	router, registry := newTestRouter(t)

	w := get(t, router, "/market-hours/holidays?exchange=NYSE&year=2024")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(2024), data["year"])
	holidays := data["holidays"].(map[string]interface{})
	require.Contains(t, holidays, "XNYS")
	assert.Contains(t, holidays["XNYS"], "2024-07-04")
	assert.Len(t, holidays["XNYS"], 10)

	w = get(t, router, "/market-hours/holidays")
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeData(t, w)
	assert.Equal(t, float64(2024), data["year"])
	assert.Len(t, data["holidays"], registry.Len())

	assert.Equal(t, http.StatusBadRequest, get(t, router, "/market-hours/holidays?year=soon").Code)
	assert.Equal(t, http.StatusNotFound, get(t, router, "/market-hours/holidays?exchange=XXXX").Code)
}

func TestHandleGetValidDays(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(t, router, "/market-hours/valid-days?exchange=XNYS&start=2024-07-01&end=2024-07-07")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, []interface{}{"2024-07-01", "2024-07-02", "2024-07-03", "2024-07-05"}, data["days"])
	assert.Equal(t, float64(4), data["count"])
}

func TestHandleGetSchedule_JSON(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(t, router, "/market-hours/schedule?start=2024-07-01&end=2024-07-05")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	assert.Equal(t, "XNYS", data["exchange"])
	assert.Equal(t, "2024-07-01", data["start"])
	assert.Equal(t, float64(4), data["count"])

	sessions := data["sessions"].([]interface{})
	require.Len(t, sessions, 4)
	earlyClose := sessions[2].(map[string]interface{})
	assert.Equal(t, "2024-07-03", earlyClose["date"])
	assert.Equal(t, "2024-07-03T13:30:00Z", earlyClose["market_open"])
	assert.Equal(t, "2024-07-03T17:00:00Z", earlyClose["market_close"])
}

func TestHandleGetSchedule_Exports(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		format      string
		contentType string
	}{
		{"csv", "text/csv"},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"pdf", "application/pdf"},
		{"msgpack", "application/msgpack"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w := get(t, router, "/market-hours/schedule?exchange=XNYS&start=2024-07-01&end=2024-07-05&format="+tt.format)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			assert.Equal(t, `attachment; filename="XNYS_2024-07-01_2024-07-05.`+tt.format+`"`,
				w.Header().Get("Content-Disposition"))
			assert.NotEmpty(t, w.Body.Bytes())
		})
	}

	w := get(t, router, "/market-hours/schedule?start=2024-07-01&end=2024-07-05&format=csv")
	assert.Contains(t, w.Body.String(), "2024-07-03,2024-07-03T13:30:00Z,2024-07-03T17:00:00Z")
}

func TestHandleGetSchedule_Errors(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
	}{
		{"missing start", "end=2024-07-05", http.StatusBadRequest},
		{"missing end", "start=2024-07-01", http.StatusBadRequest},
		{"malformed date", "start=07/01/2024&end=2024-07-05", http.StatusBadRequest},
		{"inverted range", "start=2024-07-05&end=2024-07-01", http.StatusBadRequest},
		{"unknown format", "start=2024-07-01&end=2024-07-05&format=docx", http.StatusBadRequest},
		{"unknown exchange", "exchange=XXXX&start=2024-07-01&end=2024-07-05", http.StatusNotFound},
		{"range too long", "start=0001-01-01&end=9999-12-31", http.StatusBadRequest},
		{"range too long as csv", "start=1900-01-01&end=2024-12-31&format=csv", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, router, "/market-hours/schedule?"+tt.query)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestHandleGetSchedule_LongestRange(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(t, router, "/market-hours/schedule?start=2000-01-01&end=2049-12-31")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeData(t, w)
	assert.Greater(t, data["count"], float64(12000))

	w = get(t, router, "/market-hours/early-closes?start=1900-01-01&end=2024-12-31")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "too long")
}

func TestHandleGetSchedule_BrokenCalendar(t *testing.T) {
	router, registry := newTestRouter(t)

	// A special close on a holiday cannot be scheduled.
	require.NoError(t, registry.Register(exchanges.CalendarSpec{
		Code:          "BRKN",
		Timezone:      "UTC",
		Open:          market_hours.At(9, 0),
		Close:         market_hours.At(17, 0),
		AdHocHolidays: []market_hours.Date{market_hours.MustParseDate("2024-07-04")},
		SpecialClosesAdHoc: []exchanges.AdHocSpec{{
			Time:  market_hours.TimeOfDay{Hour: 12},
			Dates: []market_hours.Date{market_hours.MustParseDate("2024-07-04")},
		}},
	}, nil))

	w := get(t, router, "/market-hours/schedule?exchange=BRKN&start=2024-07-01&end=2024-07-05")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "not a trading day")
}

func TestHandleGetEarlyCloses(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(t, router, "/market-hours/early-closes?exchange=XNYS")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "2024-01-01", data["start"])
	assert.Equal(t, "2024-12-31", data["end"])
	assert.Equal(t, float64(3), data["count"])

	w = get(t, router, "/market-hours/late-opens?exchange=XNYS&start=2024-07-01&end=2024-07-31")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeData(t, w)["count"])
}

func TestHandleGetOpen(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(t, router, "/market-hours/open?exchange=XNYS")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["open"])
	assert.Equal(t, "2024-07-03T14:00:00Z", data["at"])

	w = get(t, router, "/market-hours/open?exchange=XNYS&at=2024-07-04T14:00:00Z")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeData(t, w)["open"])

	w = get(t, router, "/market-hours/open?exchange=CME&at=2024-07-01T23:00:00Z")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData(t, w)["open"])
}
