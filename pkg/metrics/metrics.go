package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Refresh outcomes
const (
	RefreshCached   = "cached"
	RefreshFetched  = "fetched"
	RefreshFailed   = "failed"
	RefreshBusy     = "busy"
	RefreshStoreErr = "store_error"
)

// Image cache lookups
const (
	ImageHit    = "hit"
	ImageMiss   = "miss"
	ImageFailed = "failed"
)

// Metrics holds the collectors for one process. Each instance owns its registry,
// so tests can create as many as they like.
type Metrics struct {
	registry    *prometheus.Registry
	refreshes   *prometheus.CounterVec
	likes       prometheus.Counter
	imageLookup *prometheus.CounterVec
	fetchTime   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_refreshes_total",
			Help: "Tracks refresh calls by outcome.",
		}, []string{"outcome"}),
		likes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_like_toggles_total",
			Help: "Tracks successful like toggles.",
		}),
		imageLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_image_lookups_total",
			Help: "Tracks image cache lookups by result.",
		}, []string{"result"}),
		fetchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feed_remote_fetch_duration_seconds",
			Help:    "Tracks the latencies of remote post fetches.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.refreshes,
		m.likes,
		m.imageLookup,
		m.fetchTime,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRefresh(outcome string) {
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementLikes() {
	m.likes.Inc()
}

func (m *Metrics) ObserveImageLookup(result string) {
	m.imageLookup.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveFetchDuration(seconds float64) {
	m.fetchTime.Observe(seconds)
}
