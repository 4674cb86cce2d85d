// Package handlers provides HTTP handlers for market hours operations.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcal/internal/metrics"
	"github.com/aristath/marketcal/internal/modules/exchanges"
	"github.com/aristath/marketcal/internal/modules/market_hours"
	"github.com/aristath/marketcal/internal/modules/market_hours/export"
)

// Handler handles market hours HTTP requests
type Handler struct {
	service         *exchanges.Service
	defaultExchange string
	now             func() time.Time
	log             zerolog.Logger
}

// NewHandler creates a new market hours handler. defaultExchange is used when
// a request does not name one.
func NewHandler(
	service *exchanges.Service,
	defaultExchange string,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:         service,
		defaultExchange: defaultExchange,
		now:             time.Now,
		log:             log.With().Str("handler", "market_hours").Logger(),
	}
}

// badRequestError marks malformed query parameters.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// HandleGetCalendars handles GET /api/market-hours/calendars
// Returns every loaded exchange calendar
func (h *Handler) HandleGetCalendars(w http.ResponseWriter, r *http.Request) {
	list := h.service.Registry().Exchanges()

	calendars := make([]map[string]interface{}, 0, len(list))
	for _, ex := range list {
		weekmask := make([]string, 0, 7)
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if ex.Definition.TradesOn(wd) {
				weekmask = append(weekmask, wd.String()[:3])
			}
		}
		aliases := ex.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		calendars = append(calendars, map[string]interface{}{
			"code":     ex.Code,
			"name":     ex.Name,
			"aliases":  aliases,
			"timezone": ex.Definition.Timezone,
			"open":     ex.Definition.StandardOpen.String(),
			"close":    ex.Definition.StandardClose.String(),
			"weekmask": weekmask,
		})
	}

	h.writeData(w, map[string]interface{}{
		"calendars": calendars,
		"count":     len(calendars),
	})
}

// HandleGetStatus handles GET /api/market-hours/status
// Returns market status for all exchanges, now or at ?at=
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	at, err := h.instant(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	codes := h.service.Codes()
	markets := make([]map[string]interface{}, 0, len(codes))
	for _, code := range codes {
		status, err := h.service.GetMarketStatus(code, at)
		if err != nil {
			h.log.Warn().Err(err).Str("exchange", code).Msg("Failed to get market status")
			continue
		}
		markets = append(markets, statusData(status))
	}

	h.writeData(w, map[string]interface{}{
		"timestamp": at.Format(time.RFC3339),
		"markets":   markets,
	})
}

// HandleGetStatusByExchange handles GET /api/market-hours/status/{exchange}
// Returns market status for a specific exchange
func (h *Handler) HandleGetStatusByExchange(w http.ResponseWriter, r *http.Request, exchange string) {
	at, err := h.instant(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status, err := h.service.GetMarketStatus(exchange, at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, statusData(status))
}

// HandleGetOpenMarkets handles GET /api/market-hours/open-markets
// Returns list of currently open exchanges
func (h *Handler) HandleGetOpenMarkets(w http.ResponseWriter, r *http.Request) {
	at, err := h.instant(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	openMarkets := h.service.GetOpenMarkets(at)

	h.writeData(w, map[string]interface{}{
		"timestamp":    at.Format(time.RFC3339),
		"open_markets": openMarkets,
		"count":        len(openMarkets),
	})
}

// HandleGetHolidays handles GET /api/market-hours/holidays
// Returns the holidays of one exchange (?exchange=) or all of them in a year
func (h *Handler) HandleGetHolidays(w http.ResponseWriter, r *http.Request) {
	// Get year from query param, default to current year
	year := h.now().Year()
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		parsedYear, err := strconv.Atoi(yearStr)
		if err != nil || parsedYear < 1 || parsedYear > 9999 {
			h.writeError(w, r, badRequest("invalid year %q", yearStr))
			return
		}
		year = parsedYear
	}

	exchangesToCheck := h.service.Codes()
	if exchange := r.URL.Query().Get("exchange"); exchange != "" {
		ex, err := h.service.Exchange(exchange)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		exchangesToCheck = []string{ex.Code}
	}

	holidaysByExchange := make(map[string][]market_hours.Date, len(exchangesToCheck))
	for _, code := range exchangesToCheck {
		holidays, err := h.service.Holidays(code, year)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		holidaysByExchange[code] = holidays
	}

	h.writeData(w, map[string]interface{}{
		"year":     year,
		"holidays": holidaysByExchange,
	})
}

// HandleGetValidDays handles GET /api/market-hours/valid-days
// Returns the trading days of an exchange in [start, end]
func (h *Handler) HandleGetValidDays(w http.ResponseWriter, r *http.Request) {
	ex, start, end, err := h.rangeParams(r, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	days, err := h.service.ValidDays(ex.Code, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, map[string]interface{}{
		"exchange": ex.Code,
		"start":    start,
		"end":      end,
		"days":     days,
		"count":    len(days),
	})
}

// HandleGetSchedule handles GET /api/market-hours/schedule
// Returns the session table of an exchange as JSON, or as a download when
// ?format= is csv, xlsx, pdf or msgpack
func (h *Handler) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(strings.ToLower(r.URL.Query().Get("format")))
	if err != nil {
		h.writeError(w, r, badRequest("%s", err.Error()))
		return
	}

	ex, start, end, err := h.rangeParams(r, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	table, err := h.service.Schedule(ex.Code, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if format == export.FormatJSON {
		h.writeData(w, scheduleData(ex, start, end, table))
		return
	}

	began := time.Now()
	body, err := export.Render(format, export.Document{
		Calendar: ex.Code,
		Location: ex.Location,
		Start:    start,
		End:      end,
		Table:    table,
	})
	metrics.ObserveExport(string(format), time.Since(began), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s_%s_%s.%s", ex.Code, start, end, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.log.Error().Err(err).Msg("Failed to write export")
	}
}

// HandleGetEarlyCloses handles GET /api/market-hours/early-closes
// Returns the sessions that close early, defaulting to the current year
func (h *Handler) HandleGetEarlyCloses(w http.ResponseWriter, r *http.Request) {
	h.handleDeviations(w, r, h.service.EarlyCloses)
}

// HandleGetLateOpens handles GET /api/market-hours/late-opens
// Returns the sessions that open late, defaulting to the current year
func (h *Handler) HandleGetLateOpens(w http.ResponseWriter, r *http.Request) {
	h.handleDeviations(w, r, h.service.LateOpens)
}

func (h *Handler) handleDeviations(
	w http.ResponseWriter,
	r *http.Request,
	query func(string, market_hours.Date, market_hours.Date) (market_hours.ScheduleTable, error),
) {
	ex, start, end, err := h.rangeParams(r, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	table, err := query(ex.Code, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, scheduleData(ex, start, end, table))
}

// HandleGetOpen handles GET /api/market-hours/open
// Reports whether an exchange is in session at ?at= (default now)
func (h *Handler) HandleGetOpen(w http.ResponseWriter, r *http.Request) {
	ex, err := h.exchange(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	at, err := h.instant(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	open, err := h.service.OpenAt(ex.Code, at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeData(w, map[string]interface{}{
		"exchange": ex.Code,
		"at":       at.UTC().Format(time.RFC3339),
		"open":     open,
	})
}

func (h *Handler) exchange(r *http.Request) (*exchanges.Exchange, error) {
	code := r.URL.Query().Get("exchange")
	if code == "" {
		code = h.defaultExchange
	}
	return h.service.Exchange(code)
}

// instant reads ?at= as RFC 3339, defaulting to now.
func (h *Handler) instant(r *http.Request) (time.Time, error) {
	value := r.URL.Query().Get("at")
	if value == "" {
		return h.now(), nil
	}
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, badRequest("invalid at %q: want RFC 3339", value)
	}
	return at, nil
}

// maxRangeDays bounds the span a single request may cover, about 50 years.
const maxRangeDays = 50 * 366

// rangeParams reads exchange, start and end. Without required, missing dates
// default to the current calendar year in the exchange's timezone.
func (h *Handler) rangeParams(r *http.Request, required bool) (*exchanges.Exchange, market_hours.Date, market_hours.Date, error) {
	var start, end market_hours.Date

	ex, err := h.exchange(r)
	if err != nil {
		return nil, start, end, err
	}

	year := h.now().In(ex.Location).Year()
	start = market_hours.NewDate(year, time.January, 1)
	end = market_hours.NewDate(year, time.December, 31)

	for _, p := range []struct {
		name string
		dst  *market_hours.Date
	}{{"start", &start}, {"end", &end}} {
		value := r.URL.Query().Get(p.name)
		if value == "" {
			if required {
				return nil, start, end, badRequest("%s parameter is required", p.name)
			}
			continue
		}
		d, err := market_hours.ParseDate(value)
		if err != nil {
			return nil, start, end, badRequest("invalid %s %q: want YYYY-MM-DD", p.name, value)
		}
		*p.dst = d
	}
	if start.DaysUntil(end) > maxRangeDays {
		return nil, start, end, badRequest("range %s to %s is too long: at most %d days", start, end, maxRangeDays)
	}
	return ex, start, end, nil
}

func statusData(status *exchanges.MarketStatus) map[string]interface{} {
	data := map[string]interface{}{
		"exchange": status.Exchange,
		"open":     status.Open,
		"timezone": status.Timezone,
	}
	if status.Open {
		data["closes_at"] = status.ClosesAt.Format(time.RFC3339)
	} else if !status.OpensAt.IsZero() {
		data["opens_at"] = status.OpensAt.Format(time.RFC3339)
	}
	return data
}

func scheduleData(ex *exchanges.Exchange, start, end market_hours.Date, table market_hours.ScheduleTable) map[string]interface{} {
	return map[string]interface{}{
		"exchange": ex.Code,
		"timezone": ex.Definition.Timezone,
		"start":    start,
		"end":      end,
		"sessions": table.Rows,
		"count":    table.Len(),
	}
}

// writeError maps err to a status code: bad input 400, unknown exchange 404,
// calendar definitions that cannot produce a schedule 422.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		badReq       *badRequestError
		invalidRange *market_hours.InvalidRangeError
		unknown      *exchanges.UnknownExchangeError
		special      *market_hours.NonTradingSpecialDateError
		unresolvable *market_hours.UnresolvableLocalTimeError
		timezone     *market_hours.UnknownTimezoneError
		inverted     *market_hours.InvertedSessionError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &badReq), errors.As(err, &invalidRange):
		status = http.StatusBadRequest
	case errors.As(err, &unknown):
		status = http.StatusNotFound
	case errors.As(err, &special), errors.As(err, &unresolvable),
		errors.As(err, &timezone), errors.As(err, &inverted):
		status = http.StatusUnprocessableEntity
	}

	event := h.log.Warn()
	if status >= http.StatusUnprocessableEntity {
		event = h.log.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")

	http.Error(w, err.Error(), status)
}

// writeData wraps data in the response envelope
func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
