package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	chunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siggen_chunks_total",
			Help: "Total number of synthesized sample chunks by outcome.",
		},
		[]string{"status"},
	)

	chunkDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siggen_chunk_duration_seconds",
			Help:    "Time to synthesize one chunk of epochs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	rangeIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siggen_range_iterations",
			Help:    "Light-time iterations per satellite range solve.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	rangeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "siggen_range_failures_total",
			Help: "Total number of satellite range solves that failed.",
		},
	)

	samplesGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "siggen_samples_generated_total",
			Help: "Total number of output samples synthesized.",
		},
	)

	trajectoryRepairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "siggen_trajectory_repairs_total",
			Help: "Total number of trajectory discontinuities bridged.",
		},
	)

	generationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siggen_generation_duration_seconds",
			Help:    "Wall time of a complete signal generation run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)

	workersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "siggen_workers_active",
			Help: "Number of synthesis workers configured.",
		},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "siggen_status_streams_active",
			Help: "Number of open status event streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siggen_status_stream_messages_total",
			Help: "Total number of status stream events by type.",
		},
		[]string{"type"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siggen_http_requests_total",
			Help: "Total number of HTTP requests to the status server.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "siggen_http_duration_seconds",
			Help:    "Status server request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(chunksTotal)
	prometheus.MustRegister(chunkDurationSeconds)
	prometheus.MustRegister(rangeIterations)
	prometheus.MustRegister(rangeFailuresTotal)
	prometheus.MustRegister(samplesGeneratedTotal)
	prometheus.MustRegister(trajectoryRepairsTotal)
	prometheus.MustRegister(generationDurationSeconds)
	prometheus.MustRegister(workersActive)
	prometheus.MustRegister(streamsActive)
	prometheus.MustRegister(streamMessagesTotal)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
}

// RecordChunk records a completed chunk and the samples it produced.
func RecordChunk(duration time.Duration, samples int, err error) {
	if err != nil {
		chunksTotal.WithLabelValues("error").Inc()
		return
	}
	chunksTotal.WithLabelValues("ok").Inc()
	chunkDurationSeconds.Observe(duration.Seconds())
	samplesGeneratedTotal.Add(float64(samples))
}

// ObserveRangeIterations records the iteration count of one range solve.
func ObserveRangeIterations(n int) {
	rangeIterations.Observe(float64(n))
}

// IncRangeFailures counts a failed range solve.
func IncRangeFailures() {
	rangeFailuresTotal.Inc()
}

// IncTrajectoryRepairs counts one bridged discontinuity.
func IncTrajectoryRepairs() {
	trajectoryRepairsTotal.Inc()
}

// ObserveGeneration records the duration of a generation run.
func ObserveGeneration(duration time.Duration) {
	generationDurationSeconds.Observe(duration.Seconds())
}

// SetWorkersActive sets the synthesis worker gauge.
func SetWorkersActive(n int) {
	workersActive.Set(float64(n))
}

// IncStreamsActive increments the open status stream gauge.
func IncStreamsActive() {
	streamsActive.Inc()
}

// DecStreamsActive decrements the open status stream gauge.
func DecStreamsActive() {
	streamsActive.Dec()
}

// IncStreamMessages counts one status stream event of the given type
// (status, keepalive, rejected, error).
func IncStreamMessages(kind string) {
	streamMessagesTotal.WithLabelValues(kind).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Push sends all registered metrics to a Pushgateway, grouped by run id.
func Push(url, job, runID string) error {
	err := push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("run_id", runID).
		Push()
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}

// normalizeRoute collapses request paths to a bounded label set.
func normalizeRoute(path string) string {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/status", "/events":
		return path
	default:
		return "other"
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
