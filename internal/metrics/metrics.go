package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type TrackerMetrics struct {
	eventsApplied   *prometheus.CounterVec
	eventsRejected  *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	precisionDrift  *prometheus.CounterVec
	storeRetries    prometheus.Counter
}

var (
	trackerOnce     sync.Once
	trackerRegistry *TrackerMetrics
)

func Tracker() *TrackerMetrics {
	trackerOnce.Do(func() {
		trackerRegistry = &TrackerMetrics{
			eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "indexer_events_applied_total",
				Help: "Count of staking events applied to the store by kind.",
			}, []string{"kind"}),
			eventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "indexer_events_rejected_total",
				Help: "Count of staking events rejected by kind.",
			}, []string{"kind"}),
			eventsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "indexer_events_duplicate_total",
				Help: "Count of redelivered events skipped at or below the cursor.",
			}),
			precisionDrift: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "indexer_precision_drift_total",
				Help: "Count of tolerated differences between supplied and recomputed amounts by kind.",
			}, []string{"kind"}),
			storeRetries: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "indexer_store_retries_total",
				Help: "Number of event replays after a transient store failure.",
			}),
		}
		prometheus.MustRegister(
			trackerRegistry.eventsApplied,
			trackerRegistry.eventsRejected,
			trackerRegistry.eventsDuplicate,
			trackerRegistry.precisionDrift,
			trackerRegistry.storeRetries,
		)
	})
	return trackerRegistry
}

func (m *TrackerMetrics) ObserveApplied(kind string) {
	if m == nil {
		return
	}
	m.eventsApplied.WithLabelValues(kind).Inc()
}

func (m *TrackerMetrics) ObserveRejected(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.eventsRejected.WithLabelValues(kind).Inc()
}

func (m *TrackerMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.eventsDuplicate.Inc()
}

func (m *TrackerMetrics) ObservePrecisionDrift(kind string) {
	if m == nil {
		return
	}
	m.precisionDrift.WithLabelValues(kind).Inc()
}

func (m *TrackerMetrics) ObserveStoreRetry() {
	if m == nil {
		return
	}
	m.storeRetries.Inc()
}

// Handler exposes the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
