package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	SpeechRequests   *prometheus.CounterVec
	SpeechFallbacks  *prometheus.CounterVec
	Speaking         prometheus.Gauge
	RemoteSynthesis  prometheus.Histogram
	AudioCacheLookup *prometheus.CounterVec
	BackendRequests  *prometheus.CounterVec
	FlightFetches    *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	WSMessages       *prometheus.CounterVec

	gatherer prometheus.Gatherer
	latency  *latencyWindow
}

// Latency stages kept in the rolling window served by the perf endpoint.
const (
	StageRemoteSynthesis = "remote_synthesis"
	StageSpeechTotal     = "speech_total"
	StageFlightFetch     = "flight_fetch"
)

// NewMetrics registers on the process-wide default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsWithRegistry registers on reg; tests use a fresh registry each time.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SpeechRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_requests_total",
			Help:      "Speech requests by requested provider and outcome.",
		}, []string{"provider", "outcome"}),
		SpeechFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_fallbacks_total",
			Help:      "Remote to local speech fallbacks by reason.",
		}, []string{"reason"}),
		Speaking: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "speech_active",
			Help:      "1 while a speech request owns the voice slot.",
		}),
		RemoteSynthesis: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_synthesis_latency_ms",
			Help:      "Latency of remote synthesis requests in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000},
		}),
		AudioCacheLookup: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_cache_lookups_total",
			Help:      "Synthesized audio cache lookups by result.",
		}, []string{"result"}),
		BackendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Advisory backend requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		FlightFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flight_fetches_total",
			Help:      "Live flight refreshes by data source.",
		}, []string{"source"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active copilot chat sessions.",
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		gatherer: gatherer,
		latency:  newLatencyWindow(256),
	}
}

func (m *Metrics) ObserveRemoteSynthesis(d time.Duration) {
	if m == nil {
		return
	}
	m.RemoteSynthesis.Observe(float64(d.Milliseconds()))
	m.latency.observe(StageRemoteSynthesis, d)
}

// ObserveStage records d in the rolling latency window only.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.observe(stage, d)
}

func (m *Metrics) SnapshotLatency() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC(), Stages: []StageStats{}}
	}
	return m.latency.snapshot()
}

func (m *Metrics) CountSpeech(provider, outcome string) {
	if m == nil {
		return
	}
	m.SpeechRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) CountFallback(reason string) {
	if m == nil {
		return
	}
	m.SpeechFallbacks.WithLabelValues(reason).Inc()
	m.latency.count("fallback_" + reason)
}

func (m *Metrics) SetSpeaking(active bool) {
	if m == nil {
		return
	}
	if active {
		m.Speaking.Set(1)
		return
	}
	m.Speaking.Set(0)
}

func (m *Metrics) CountCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.AudioCacheLookup.WithLabelValues("hit").Inc()
		return
	}
	m.AudioCacheLookup.WithLabelValues("miss").Inc()
}

func (m *Metrics) CountBackend(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) CountFlightFetch(source string) {
	if m == nil {
		return
	}
	m.FlightFetches.WithLabelValues(source).Inc()
}

func (m *Metrics) CountSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) CountWS(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
