package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "devhelper"

const (
	outcomeDelivered   = "delivered"
	outcomeFailed      = "failed"
	outcomeUnreachable = "unreachable"
	outcomeConflict    = "conflict"
	outcomeSkipped     = "skipped"
	outcomeAborted     = "aborted"
)

var (
	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Poll ticks by entity kind and result",
		},
		[]string{"kind", "result"},
	)

	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "deliveries_total",
			Help:      "Due entities processed by outcome",
		},
		[]string{"kind", "outcome"},
	)

	tickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Time spent in a single poll tick",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	dueEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "due_entities",
			Help:      "Entities found due in the last tick",
		},
		[]string{"kind"},
	)
)

func recordTick(kind, result string, d time.Duration) {
	ticksTotal.WithLabelValues(kind, result).Inc()
	tickDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func recordDelivery(kind, outcome string) {
	deliveriesTotal.WithLabelValues(kind, outcome).Inc()
}

func recordDue(kind string, n int) {
	dueEntities.WithLabelValues(kind).Set(float64(n))
}
