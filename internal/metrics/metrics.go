// Package metrics exposes Prometheus collectors for the harvester service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvesterDownloadsTotal         *prometheus.CounterVec
	harvesterDownloadBytesTotal     *prometheus.CounterVec
	harvesterFetchDurationSeconds   *prometheus.HistogramVec
	harvesterActiveWorkers          prometheus.Gauge
	harvesterRateLimitDelaysSeconds *prometheus.HistogramVec
	httpRequestsTotal               *prometheus.CounterVec
	httpRequestDurationSeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvesterDownloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_downloads_total",
				Help: "Total number of candidate downloads, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		harvesterDownloadBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_download_bytes_total",
				Help: "Total number of image bytes saved, labeled by site.",
			},
			[]string{"site"},
		)

		harvesterFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_fetch_duration_seconds",
				Help:    "Histogram of image fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"site"},
		)

		harvesterActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_workers",
				Help: "Number of workers currently processing a candidate.",
			},
		)

		harvesterRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "inline" for data URIs and "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if strings.HasPrefix(rawURL, "data:") {
		return "inline"
	}
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDownload increments the download counters for one candidate.
func ObserveDownload(site string, status string, bytesSaved int64) {
	sanitizedSite := SanitizeSite(site)
	harvesterDownloadsTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesSaved > 0 {
		harvesterDownloadBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesSaved))
	}
}

// ObserveFetchDuration records how long one image fetch took.
func ObserveFetchDuration(site string, duration time.Duration) {
	harvesterFetchDurationSeconds.WithLabelValues(SanitizeSite(site)).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	harvesterActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	harvesterActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	harvesterRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
