package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Spike kinds used as the "kind" label.
const (
	KindPrimary = "primary"
	KindKeyword = "keyword"
)

// Metrics holds Prometheus counters and gauges for the chat analyzer.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	countsIngestedTotal   prometheus.Counter
	eventsDroppedTotal    prometheus.Counter
	windowsClosedTotal    prometheus.Counter
	spikesDetectedTotal   *prometheus.CounterVec
	listenerFailuresTotal prometheus.Counter
	activeStreams         prometheus.Gauge
}

// New creates and registers Prometheus metrics for the analyzer.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_analyzer_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_analyzer_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	countsIngestedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_analyzer_counts_ingested_total",
		Help: "Sum of counts accepted into windows",
	})
	eventsDroppedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_analyzer_events_dropped_total",
		Help: "Count events dropped as malformed",
	})
	windowsClosedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_analyzer_windows_closed_total",
		Help: "Primary windows closed, including zero-count windows",
	})
	spikesDetectedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_analyzer_spikes_detected_total",
		Help: "Spikes detected by kind",
	}, []string{"kind"})
	listenerFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_analyzer_listener_failures_total",
		Help: "Event listeners that panicked",
	})
	activeStreams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_analyzer_active_streams",
		Help: "Number of streams held in the registry",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		countsIngestedTotal,
		eventsDroppedTotal,
		windowsClosedTotal,
		spikesDetectedTotal,
		listenerFailuresTotal,
		activeStreams,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
		countsIngestedTotal:   countsIngestedTotal,
		eventsDroppedTotal:    eventsDroppedTotal,
		windowsClosedTotal:    windowsClosedTotal,
		spikesDetectedTotal:   spikesDetectedTotal,
		listenerFailuresTotal: listenerFailuresTotal,
		activeStreams:         activeStreams,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// AddCountsIngested adds n to the ingested counts counter.
func (m *Metrics) AddCountsIngested(n int) {
	if n > 0 {
		m.countsIngestedTotal.Add(float64(n))
	}
}

// IncEventsDropped increments the dropped events counter.
func (m *Metrics) IncEventsDropped() {
	m.eventsDroppedTotal.Inc()
}

// IncWindowsClosed increments the closed windows counter.
func (m *Metrics) IncWindowsClosed() {
	m.windowsClosedTotal.Inc()
}

// IncSpikes increments the spike counter for kind.
func (m *Metrics) IncSpikes(kind string) {
	m.spikesDetectedTotal.WithLabelValues(kind).Inc()
}

// IncListenerFailures increments the listener failure counter.
func (m *Metrics) IncListenerFailures() {
	m.listenerFailuresTotal.Inc()
}

// SetActiveStreams sets the active streams gauge.
func (m *Metrics) SetActiveStreams(n int) {
	m.activeStreams.Set(float64(n))
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active streams).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
