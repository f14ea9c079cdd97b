// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for the backplane.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	// Event bus metrics
	busPublished *prometheus.CounterVec
	busDropped   *prometheus.CounterVec
	busSubs      *prometheus.GaugeVec

	// Log collection / event detection metrics
	logLinesSeen    *prometheus.CounterVec
	eventsDetected  *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec

	// Embedding metrics
	embedCalls     *prometheus.CounterVec
	embedDuration  *prometheus.HistogramVec
	embedErrors    *prometheus.CounterVec
	embedTruncated *prometheus.CounterVec

	// Vector store metrics
	vectorUpserts     *prometheus.CounterVec
	vectorSearches    *prometheus.CounterVec
	vectorSearchDur   *prometheus.HistogramVec
	vectorSearchItems *prometheus.HistogramVec

	// Council / handoff metrics
	councilDecisions *prometheus.CounterVec
	handoffEvents    *prometheus.CounterVec

	// Auto-archive metrics
	archiveSweeps  *prometheus.CounterVec
	archivedItems  *prometheus.CounterVec
	archiveSkipped *prometheus.CounterVec

	// SSE metrics
	sseClients *prometheus.GaugeVec
	sseFrames  *prometheus.CounterVec

	// HTTP metrics
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpRequestSize  *prometheus.HistogramVec
	httpResponseSize *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance from configuration.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cfg.SetDefaults()

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	m.initBusMetrics()
	m.initLogMetrics()
	m.initEmbedMetrics()
	m.initVectorMetrics()
	m.initCouncilMetrics()
	m.initArchiveMetrics()
	m.initSSEMetrics()
	m.initHTTPMetrics()

	return m, nil
}

func (m *Metrics) initBusMetrics() {
	m.busPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Total number of messages published to the event bus",
		},
		[]string{"topic"},
	)

	m.busDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "bus",
			Name:      "dropped_total",
			Help:      "Total number of messages dropped due to subscriber backpressure",
		},
		[]string{"topic"},
	)

	m.busSubs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.config.Namespace,
			Subsystem: "bus",
			Name:      "subscribers",
			Help:      "Number of currently active subscribers per topic",
		},
		[]string{"topic"},
	)

	m.registry.MustRegister(m.busPublished, m.busDropped, m.busSubs)
}

func (m *Metrics) initLogMetrics() {
	m.logLinesSeen = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "logcollector",
			Name:      "lines_total",
			Help:      "Total number of log lines tailed per container",
		},
		[]string{"container"},
	)

	m.eventsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "eventdetector",
			Name:      "detected_total",
			Help:      "Total number of events detected from log lines",
		},
		[]string{"event_type"},
	)

	m.eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "eventdetector",
			Name:      "published_total",
			Help:      "Total number of detected events published after noise filtering",
		},
		[]string{"event_type"},
	)

	m.registry.MustRegister(m.logLinesSeen, m.eventsDetected, m.eventsPublished)
}

func (m *Metrics) initEmbedMetrics() {
	m.embedCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "embedding",
			Name:      "calls_total",
			Help:      "Total number of embedding provider calls",
		},
		[]string{"provider"},
	)

	m.embedDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "embedding",
			Name:      "call_duration_seconds",
			Help:      "Embedding provider call duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"provider"},
	)

	m.embedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "embedding",
			Name:      "errors_total",
			Help:      "Total number of embedding provider errors",
		},
		[]string{"provider"},
	)

	m.embedTruncated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "embedding",
			Name:      "truncated_total",
			Help:      "Total number of embedding requests truncated to the max character limit",
		},
		[]string{"provider"},
	)

	m.registry.MustRegister(m.embedCalls, m.embedDuration, m.embedErrors, m.embedTruncated)
}

func (m *Metrics) initVectorMetrics() {
	m.vectorUpserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "vectorstore",
			Name:      "upserts_total",
			Help:      "Total number of vectors upserted",
		},
		[]string{"provider", "collection"},
	)

	m.vectorSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of vector similarity searches",
		},
		[]string{"provider", "collection"},
	)

	m.vectorSearchDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Vector similarity search duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"provider", "collection"},
	)

	m.vectorSearchItems = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "vectorstore",
			Name:      "search_results_count",
			Help:      "Number of results returned by a vector search",
			Buckets:   prometheus.LinearBuckets(0, 5, 11),
		},
		[]string{"provider", "collection"},
	)

	m.registry.MustRegister(m.vectorUpserts, m.vectorSearches, m.vectorSearchDur, m.vectorSearchItems)
}

func (m *Metrics) initCouncilMetrics() {
	m.councilDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "council",
			Name:      "decisions_total",
			Help:      "Total number of validation council risk decisions",
		},
		[]string{"risk_level", "decision"},
	)

	m.handoffEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "handoff",
			Name:      "transitions_total",
			Help:      "Total number of handoff state transitions",
		},
		[]string{"to_state"},
	)

	m.registry.MustRegister(m.councilDecisions, m.handoffEvents)
}

func (m *Metrics) initArchiveMetrics() {
	m.archiveSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "autoarchive",
			Name:      "sweeps_total",
			Help:      "Total number of auto-archive sweep runs",
		},
		[]string{"result"},
	)

	m.archivedItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "autoarchive",
			Name:      "archived_total",
			Help:      "Total number of projects/tasks archived",
		},
		[]string{"entity"},
	)

	m.archiveSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "autoarchive",
			Name:      "skipped_total",
			Help:      "Total number of projects/tasks considered but not archived",
		},
		[]string{"entity"},
	)

	m.registry.MustRegister(m.archiveSweeps, m.archivedItems, m.archiveSkipped)
}

func (m *Metrics) initSSEMetrics() {
	m.sseClients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.config.Namespace,
			Subsystem: "sse",
			Name:      "clients",
			Help:      "Number of currently connected SSE clients",
		},
		[]string{"stream"},
	)

	m.sseFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "sse",
			Name:      "frames_total",
			Help:      "Total number of SSE frames written",
		},
		[]string{"stream"},
	)

	m.registry.MustRegister(m.sseClients, m.sseFrames)
}

func (m *Metrics) initHTTPMetrics() {
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	m.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.config.Namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	m.registry.MustRegister(m.httpRequests, m.httpDuration, m.httpRequestSize, m.httpResponseSize)
}

// RecordBusPublish records a successful publish to a topic.
func (m *Metrics) RecordBusPublish(topic string) {
	if m == nil {
		return
	}
	m.busPublished.WithLabelValues(topic).Inc()
}

// RecordBusDrop records a message dropped under subscriber backpressure.
func (m *Metrics) RecordBusDrop(topic string) {
	if m == nil {
		return
	}
	m.busDropped.WithLabelValues(topic).Inc()
}

// SetBusSubscribers sets the gauge of active subscribers for a topic.
func (m *Metrics) SetBusSubscribers(topic string, count int) {
	if m == nil {
		return
	}
	m.busSubs.WithLabelValues(topic).Set(float64(count))
}

// RecordLogLine records a tailed log line for a container.
func (m *Metrics) RecordLogLine(container string) {
	if m == nil {
		return
	}
	m.logLinesSeen.WithLabelValues(container).Inc()
}

// RecordEventDetected records a pattern match in the event detector.
func (m *Metrics) RecordEventDetected(eventType string, published bool) {
	if m == nil {
		return
	}
	m.eventsDetected.WithLabelValues(eventType).Inc()
	if published {
		m.eventsPublished.WithLabelValues(eventType).Inc()
	}
}

// RecordEmbedCall records an embedding provider call.
func (m *Metrics) RecordEmbedCall(provider string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.embedCalls.WithLabelValues(provider).Inc()
	m.embedDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if err != nil {
		m.embedErrors.WithLabelValues(provider).Inc()
	}
}

// RecordEmbedTruncated records a request whose text was truncated before embedding.
func (m *Metrics) RecordEmbedTruncated(provider string) {
	if m == nil {
		return
	}
	m.embedTruncated.WithLabelValues(provider).Inc()
}

// RecordVectorUpsert records a vector upsert into a collection.
func (m *Metrics) RecordVectorUpsert(provider, collection string, count int) {
	if m == nil {
		return
	}
	m.vectorUpserts.WithLabelValues(provider, collection).Add(float64(count))
}

// RecordVectorSearch records a vector similarity search.
func (m *Metrics) RecordVectorSearch(provider, collection string, duration time.Duration, results int) {
	if m == nil {
		return
	}
	m.vectorSearches.WithLabelValues(provider, collection).Inc()
	m.vectorSearchDur.WithLabelValues(provider, collection).Observe(duration.Seconds())
	m.vectorSearchItems.WithLabelValues(provider, collection).Observe(float64(results))
}

// RecordCouncilDecision records a validation council risk decision.
func (m *Metrics) RecordCouncilDecision(riskLevel, decision string) {
	if m == nil {
		return
	}
	m.councilDecisions.WithLabelValues(riskLevel, decision).Inc()
}

// RecordHandoffTransition records a handoff state machine transition.
func (m *Metrics) RecordHandoffTransition(toState string) {
	if m == nil {
		return
	}
	m.handoffEvents.WithLabelValues(toState).Inc()
}

// RecordArchiveSweep records the outcome of an auto-archive sweep.
func (m *Metrics) RecordArchiveSweep(result string) {
	if m == nil {
		return
	}
	m.archiveSweeps.WithLabelValues(result).Inc()
}

// RecordArchived records entities archived or skipped by a sweep.
func (m *Metrics) RecordArchived(entity string, archived, skipped int) {
	if m == nil {
		return
	}
	if archived > 0 {
		m.archivedItems.WithLabelValues(entity).Add(float64(archived))
	}
	if skipped > 0 {
		m.archiveSkipped.WithLabelValues(entity).Add(float64(skipped))
	}
}

// IncSSEClients increments the connected-client gauge for a stream.
func (m *Metrics) IncSSEClients(stream string) {
	if m == nil {
		return
	}
	m.sseClients.WithLabelValues(stream).Inc()
}

// DecSSEClients decrements the connected-client gauge for a stream.
func (m *Metrics) DecSSEClients(stream string) {
	if m == nil {
		return
	}
	m.sseClients.WithLabelValues(stream).Dec()
}

// RecordSSEFrame records a frame written to an SSE stream.
func (m *Metrics) RecordSSEFrame(stream string) {
	if m == nil {
		return
	}
	m.sseFrames.WithLabelValues(stream).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	status := statusCodeLabel(statusCode)
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if reqSize > 0 {
		m.httpRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	}
	if respSize > 0 {
		m.httpResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
	}
}

// statusCodeLabel converts a status code to a label string.
func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
