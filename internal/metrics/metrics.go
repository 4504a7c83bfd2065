// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sheetsplit"

var (
	conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Total conversions by mode and result (success, failed, rejected)",
		},
		[]string{"mode", "result"},
	)

	conversionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duration of conversions by mode",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	sheetsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_processed_total",
			Help:      "Total scanned sheets split, by mode",
		},
		[]string{"mode"},
	)

	blankPages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blank_pages_total",
			Help:      "Blank pages inserted for missing booklet positions",
		},
	)

	duplicatePages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_pages_total",
			Help:      "Booklet positions filed more than once (last write wins)",
		},
	)

	skippedSheets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_sheets_total",
			Help:      "Sheets beyond the declared booklet size",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Conversion jobs waiting in the stream",
		},
	)

	syncInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_inflight",
			Help:      "Synchronous conversions currently running",
		},
	)

	registerOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(conversions, conversionLatency, sheetsProcessed,
			blankPages, duplicatePages, skippedSheets, queueDepth, syncInFlight)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveConversion(mode, result string, dur time.Duration) {
	conversions.WithLabelValues(mode, result).Inc()
	if result == "success" {
		conversionLatency.WithLabelValues(mode).Observe(dur.Seconds())
	}
}

func AddSheets(mode string, n int) { sheetsProcessed.WithLabelValues(mode).Add(float64(n)) }
func AddBlanks(n int)              { blankPages.Add(float64(n)) }
func AddDuplicates(n int)          { duplicatePages.Add(float64(n)) }
func AddSkipped(n int)             { skippedSheets.Add(float64(n)) }
func SetQueueDepth(v int64)        { queueDepth.Set(float64(v)) }
func SetSyncInFlight(n int)        { syncInFlight.Set(float64(n)) }
