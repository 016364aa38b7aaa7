package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Classification pipeline metrics.
	RecordsExtracted    prometheus.Counter
	IncidentsClassified prometheus.Counter
	UnknownCrimeTypes   prometheus.Counter
	ClassifyErrors      prometheus.Counter
	PipelineRunning     prometheus.Gauge
	BatchDuration       prometheus.Histogram

	// Query engine metrics.
	CorpusSize     prometheus.Gauge
	Queries        prometheus.Counter
	QueryMatched   prometheus.Histogram
	QueryDuration  prometheus.Histogram
	QueryFallbacks prometheus.Counter

	// Postcode lookup metrics.
	PostcodeLookups     *prometheus.CounterVec // labels: outcome={resolved,not_found,error}
	PostcodeCache       *prometheus.CounterVec // labels: cache={lru,redis}, result={hit,miss}
	PostcodeAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RecordsExtracted,
		m.IncidentsClassified,
		m.UnknownCrimeTypes,
		m.ClassifyErrors,
		m.PipelineRunning,
		m.BatchDuration,
		m.CorpusSize,
		m.Queries,
		m.QueryMatched,
		m.QueryDuration,
		m.QueryFallbacks,
		m.PostcodeLookups,
		m.PostcodeCache,
		m.PostcodeAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crime_map",
			Name:      "records_extracted_total",
			Help:      "Total raw records read from the record source.",
		}),
		IncidentsClassified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crime_map",
			Name:      "incidents_classified_total",
			Help:      "Total incidents assigned a colour and icon.",
		}),
		UnknownCrimeTypes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crime_map",
			Name:      "unknown_crime_types_total",
			Help:      "Incidents whose crime type is outside the police.uk taxonomy.",
		}),
		ClassifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crime_map",
			Name:      "classify_errors_total",
			Help:      "Raw records skipped because they could not be parsed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crime_map",
			Name:      "pipeline_running",
			Help:      "1 while the classification pipeline is running.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crime_map",
			Name:      "classify_batch_duration_seconds",
			Help:      "Duration of one extract-classify-load batch.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		CorpusSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crime_map",
			Name:      "corpus_incidents",
			Help:      "Number of classified incidents held in memory.",
		}),
		Queries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crime_map",
			Name:      "queries_total",
			Help:      "Total area and category filter queries.",
		}),
		QueryMatched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crime_map",
			Name:      "query_matched_incidents",
			Help:      "Number of incidents returned per query.",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000, 5000},
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crime_map",
			Name:      "query_duration_seconds",
			Help:      "Duration of a filter query.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		QueryFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crime_map",
			Name:      "query_centroid_fallbacks_total",
			Help:      "Queries whose centroid fell back to the area-only centroid.",
		}),
		PostcodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crime_map",
			Name:      "postcode_lookups_total",
			Help:      "Postcode lookups against the external service by outcome.",
		}, []string{"outcome"}),
		PostcodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crime_map",
			Name:      "postcode_cache_total",
			Help:      "Postcode cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		PostcodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crime_map",
			Name:      "postcode_api_duration_seconds",
			Help:      "Postcode lookup page request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
