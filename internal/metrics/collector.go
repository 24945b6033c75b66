// Package metrics provides internal Prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the process-level metrics of the evolution core.
// A nil *Collector is valid; all record methods become no-ops.
type Collector struct {
	evolutionsTotal       *prometheus.CounterVec
	evolutionDuration     prometheus.Histogram
	instructionsEnqueued  *prometheus.CounterVec
	instructionsProcessed *prometheus.CounterVec
	queueDepth            prometheus.Gauge
	activeTasks           prometheus.Gauge
	emergencyStops        prometheus.Counter

	logger *zap.Logger
}

// NewCollector registers the collectors with reg (the default registerer
// when nil) under the given namespace.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.evolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evolutions_total",
			Help:      "Executed evolutions by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)
	c.evolutionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evolution_duration_seconds",
			Help:      "Time spent executing one evolution.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	c.instructionsEnqueued = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_enqueued_total",
			Help:      "Dynamic instructions accepted into the queue, by type.",
		},
		[]string{"type"},
	)
	c.instructionsProcessed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_processed_total",
			Help:      "Dynamic instructions dispatched to handlers, by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
	c.queueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instruction_queue_depth",
			Help:      "Instructions currently waiting in the queue.",
		},
	)
	c.activeTasks = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Long-running units of work currently registered.",
		},
	)
	c.emergencyStops = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emergency_stops_total",
			Help:      "Emergency-stop instructions processed.",
		},
	)

	return c
}

// RecordEvolution counts one executed evolution.
func (c *Collector) RecordEvolution(strategy string, success bool, seconds float64) {
	if c == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.evolutionsTotal.WithLabelValues(strategy, outcome).Inc()
	c.evolutionDuration.Observe(seconds)
}

// RecordInstructionEnqueued counts one accepted instruction.
func (c *Collector) RecordInstructionEnqueued(instructionType string) {
	if c == nil {
		return
	}
	c.instructionsEnqueued.WithLabelValues(instructionType).Inc()
}

// RecordInstructionProcessed counts one dispatched instruction.
func (c *Collector) RecordInstructionProcessed(instructionType string, err error) {
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.instructionsProcessed.WithLabelValues(instructionType, outcome).Inc()
}

// SetQueueDepth records the current instruction queue depth.
func (c *Collector) SetQueueDepth(depth int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(depth))
}

// TaskStarted bumps the active task gauge.
func (c *Collector) TaskStarted() {
	if c == nil {
		return
	}
	c.activeTasks.Inc()
}

// TaskFinished decrements the active task gauge.
func (c *Collector) TaskFinished() {
	if c == nil {
		return
	}
	c.activeTasks.Dec()
}

// RecordEmergencyStop counts one processed emergency stop.
func (c *Collector) RecordEmergencyStop() {
	if c == nil {
		return
	}
	c.emergencyStops.Inc()
}
