package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tahcohcat/lector-web/internal/models"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActivePanels      prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	DocumentsLoaded   prometheus.Counter
	WSMessages        *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	AudioCache        *prometheus.CounterVec
	SynthesisDuration prometheus.Histogram
}

// New registers the instruments with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActivePanels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_panels",
			Help:      "Number of live reader panels.",
		}),
		SessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Playback session events by type.",
		}, []string{"event"}),
		DocumentsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_loaded_total",
			Help:      "Documents loaded into panels.",
		}),
		WSMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "TTS provider errors by provider and operation.",
		}, []string{"provider", "op"}),
		AudioCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_cache_total",
			Help:      "Audio cache lookups by result.",
		}, []string{"result"}),
		SynthesisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_ms",
			Help:      "Time to synthesize a full document in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ActivePanels,
			m.SessionEvents,
			m.DocumentsLoaded,
			m.WSMessages,
			m.ProviderErrors,
			m.AudioCache,
			m.SynthesisDuration,
		)
	}
	return m
}

func (m *Metrics) ObserveSynthesis(d time.Duration) {
	m.SynthesisDuration.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) SessionEvent(event string) {
	m.SessionEvents.WithLabelValues(event).Inc()
}

// CacheStats reads the current size of the persistent audio cache.
type CacheStats func() (*models.AudioCacheStats, error)

type audioCacheCollector struct {
	stats   CacheStats
	entries *prometheus.Desc
	bytes   *prometheus.Desc
}

// WatchAudioCache exports the audio cache size, read from stats on every
// scrape.
func WatchAudioCache(namespace string, reg prometheus.Registerer, stats CacheStats) {
	reg.MustRegister(&audioCacheCollector{
		stats: stats,
		entries: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "audio_cache_entries"),
			"Clips held by the persistent audio cache.", nil, nil),
		bytes: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "audio_cache_bytes"),
			"Audio bytes held by the persistent audio cache.", nil, nil),
	})
}

func (c *audioCacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.bytes
}

func (c *audioCacheCollector) Collect(ch chan<- prometheus.Metric) {
	s, err := c.stats()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.entries, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.GaugeValue, float64(s.Bytes))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
