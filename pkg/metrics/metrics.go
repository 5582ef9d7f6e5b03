package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
	ErrorTotal      *prometheus.CounterVec

	// Patient search metrics
	PatientSearches   *prometheus.CounterVec
	PatientSearchHits prometheus.Histogram
	PatientWrites     *prometheus.CounterVec

	// CSV exchange metrics
	ImportRows     *prometheus.CounterVec
	ImportFailures *prometheus.CounterVec
	ImportDuration prometheus.Histogram
	ExportRows     prometheus.Counter

	// Token denylist metrics
	DenylistOperations *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them with reg.
// Passing prometheus.DefaultRegisterer exposes them on /metrics; tests pass
// a fresh registry.
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		ErrorTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of HTTP errors",
		}, []string{"method", "path", "type"}),

		PatientSearches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "patient_searches_total",
			Help:      "Total number of patient searches, by whether the external id branch ran",
		}, []string{"external_id_branch"}),
		PatientSearchHits: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "patient_search_results",
			Help:      "Number of records returned per patient search",
			Buckets:   []float64{0, 1, 10, 100, 1000, 5000, 10000},
		}),
		PatientWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "patient_writes_total",
			Help:      "Total number of single-record patient writes",
		}, []string{"operation", "status"}),

		ImportRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "import_rows_total",
			Help:      "CSV rows processed by imports, by outcome",
		}, []string{"outcome"}),
		ImportFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "import_failures_total",
			Help:      "CSV imports rejected as a whole, by reason",
		}, []string{"reason"}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "import_duration_seconds",
			Help:      "Time spent importing a CSV upload",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		ExportRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "export_rows_total",
			Help:      "Total number of patient rows written to CSV exports",
		}),

		DenylistOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "token_denylist_operations_total",
			Help:      "Total number of token denylist operations",
		}, []string{"operation", "status"}),
	}
}

// NewNop returns metrics registered with a throwaway registry.
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry(), "", "")
}
