package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeNetworkError = "network_error"
	OutcomeParseError   = "parse_error"
)

// CrawlMetrics receives crawl events.
type CrawlMetrics interface {
	ObservePage(outcome string, duration time.Duration)
	AddRecords(n int)
	AddSkippedRows(n int)
	ObserveCrawl(duration time.Duration, cancelled bool)
}

// HTTPMetrics receives API request events.
type HTTPMetrics interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObservePage(string, time.Duration) {}
func (Nop) AddRecords(int) {}
func (Nop) AddSkippedRows(int) {}
func (Nop) ObserveCrawl(time.Duration, bool) {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}

// ApplicationMetrics holds all application-specific metrics
type ApplicationMetrics struct {
	registry     *prometheus.Registry
	pages        *prometheus.CounterVec
	pageDuration *prometheus.HistogramVec
	records      prometheus.Counter
	skippedRows  prometheus.Counter
	crawls       *prometheus.CounterVec
	crawlSeconds prometheus.Histogram
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewApplicationMetrics creates the collectors on a private registry.
func NewApplicationMetrics(namespace string) *ApplicationMetrics {
	am := &ApplicationMetrics{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Listing pages processed, by outcome.",
		}, []string{"outcome"}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_duration_seconds",
			Help:      "Time spent fetching and parsing one page.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"outcome"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records produced.",
		}),
		skippedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_rows_total",
			Help:      "Rows dropped for missing or malformed values.",
		}),
		crawls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawls_total",
			Help:      "Finished crawls.",
		}, []string{"cancelled"}),
		crawlSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Wall-clock duration of a crawl.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	am.registry.MustRegister(
		am.pages, am.pageDuration, am.records, am.skippedRows,
		am.crawls, am.crawlSeconds, am.httpRequests, am.httpDuration,
	)
	return am
}

func (am *ApplicationMetrics) ObservePage(outcome string, duration time.Duration) {
	am.pages.WithLabelValues(outcome).Inc()
	am.pageDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (am *ApplicationMetrics) AddRecords(n int) {
	am.records.Add(float64(n))
}

func (am *ApplicationMetrics) AddSkippedRows(n int) {
	am.skippedRows.Add(float64(n))
}

func (am *ApplicationMetrics) ObserveCrawl(duration time.Duration, cancelled bool) {
	am.crawls.WithLabelValues(strconv.FormatBool(cancelled)).Inc()
	am.crawlSeconds.Observe(duration.Seconds())
}

// HTTP Metrics
func (am *ApplicationMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	am.httpRequests.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	am.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Registry exposes the underlying registry, mostly for tests.
func (am *ApplicationMetrics) Registry() *prometheus.Registry {
	return am.registry
}

// Handler serves the registry in the Prometheus text format.
func (am *ApplicationMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(am.registry, promhttp.HandlerOpts{})
}
