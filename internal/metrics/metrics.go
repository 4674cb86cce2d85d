// Package metrics exposes Prometheus metrics for schedule generation, exports
// and the session monitor.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "marketcal_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	scheduleTotal   *prometheus.CounterVec
	scheduleLatency *prometheus.HistogramVec
	scheduleDays    *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	marketOpen        *prometheus.GaugeVec
	marketTransitions *prometheus.CounterVec
)

// Init creates the collectors and registers them with reg. Only the first
// call has any effect.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		scheduleTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "schedule_total",
				Help: "Total schedule computations by exchange and result",
			},
			[]string{"exchange", "result"},
		)
		scheduleLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "schedule_latency_seconds",
				Help:    "Schedule computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		scheduleDays = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "schedule_trading_days",
				Help:    "Trading days per computed schedule",
				Buckets: []float64{1, 5, 22, 66, 252, 1260, 2520},
			},
			[]string{"exchange"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total schedule exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Schedule export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)

		marketOpen = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "market_open",
				Help: "1 while the exchange is in session, 0 otherwise",
			},
			[]string{"exchange"},
		)
		marketTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "market_transitions_total",
				Help: "Observed open/close transitions by exchange",
			},
			[]string{"exchange", "state"},
		)

		reg.MustRegister(
			scheduleTotal,
			scheduleLatency,
			scheduleDays,
			exportTotal,
			exportLatency,
			marketOpen,
			marketTransitions,
		)
	})
}

// ObserveSchedule records a schedule computation.
func ObserveSchedule(exchange string, days int, duration time.Duration, err error) {
	if exchange == "" {
		exchange = "unknown"
	}
	result := resultOf(err)
	if scheduleTotal != nil {
		scheduleTotal.WithLabelValues(exchange, result).Inc()
	}
	if scheduleLatency != nil {
		scheduleLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if scheduleDays != nil && err == nil {
		scheduleDays.WithLabelValues(exchange).Observe(float64(days))
	}
}

// ObserveExport records a schedule export.
func ObserveExport(format string, duration time.Duration, err error) {
	if format == "" {
		format = "unknown"
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, resultOf(err)).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format).Observe(duration.Seconds())
	}
}

// SetMarketOpen sets the market_open gauge for exchange.
func SetMarketOpen(exchange string, open bool) {
	if marketOpen == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	marketOpen.WithLabelValues(exchange).Set(v)
}

// IncMarketTransition counts an observed open or close.
func IncMarketTransition(exchange string, open bool) {
	if marketTransitions == nil {
		return
	}
	state := "closed"
	if open {
		state = "open"
	}
	marketTransitions.WithLabelValues(exchange, state).Inc()
}

func resultOf(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
