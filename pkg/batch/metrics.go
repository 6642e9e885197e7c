package batch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalogsync",
		Name:      "items_total",
		Help:      "Items that reached a terminal result, by outcome.",
	}, []string{"outcome"})
	metricItemDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catalogsync",
		Name:      "item_duration_seconds",
		Help:      "Wall time spent on one item, content generation included.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
	})
	metricBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalogsync",
		Name:      "batches_total",
		Help:      "Finished batches, by how they ended.",
	}, []string{"result"})
	metricState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "catalogsync",
		Name:      "batch_state",
		Help:      "Orchestrator state (0 idle, 1 running, 2 paused, 3 stopping).",
	})
	metricEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catalogsync",
		Name:      "events_dropped_total",
		Help:      "Events discarded because the consumer fell behind.",
	})
)

func recordItem(success bool, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	metricItems.WithLabelValues(outcome).Inc()
	metricItemDuration.Observe(d.Seconds())
}

func recordBatch(stopped bool) {
	result := "completed"
	if stopped {
		result = "stopped"
	}
	metricBatches.WithLabelValues(result).Inc()
}

func recordState(s State) {
	metricState.Set(float64(s))
}

func recordDrop() {
	metricEventsDropped.Inc()
}
