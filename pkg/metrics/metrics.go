// Package metrics exports the evaluation and update statistics of reactive pipelines to
// Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/l7mp/incremental/pkg/reactive"
)

const (
	namespace = "incremental"
	subsystem = "reactive"
)

// Recorder is a reactive.Recorder backed by Prometheus collectors. The collectors are labeled
// with the operator kind, so all nodes of the same kind share a series.
type Recorder struct {
	evaluations *prometheus.CounterVec
	updates     *prometheus.CounterVec
	deltas      *prometheus.CounterVec
	batchSize   *prometheus.HistogramVec
}

var _ reactive.Recorder = &Recorder{}

// NewRecorder creates a recorder and registers its collectors with reg. A nil reg registers
// with the default registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of node evaluations, by whether the value changed",
			},
			[]string{"kind", "changed"},
		),
		updates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "updates_total",
				Help:      "Total number of updates delivered to observers, by whether they were breaking",
			},
			[]string{"kind", "breaking"},
		),
		deltas: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "deltas_total",
				Help:      "Total number of item deltas delivered to observers",
			},
			[]string{"kind"},
		),
		batchSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "update_deltas",
				Help:      "Number of deltas per non-breaking update",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
			[]string{"kind"},
		),
	}
}

// Evaluated counts a node evaluation.
func (r *Recorder) Evaluated(kind string, changed bool) {
	r.evaluations.WithLabelValues(kind, strconv.FormatBool(changed)).Inc()
}

// Updated counts a delivered update.
func (r *Recorder) Updated(kind string, breaking bool, events int) {
	r.updates.WithLabelValues(kind, strconv.FormatBool(breaking)).Inc()
	if breaking {
		return
	}
	r.deltas.WithLabelValues(kind).Add(float64(events))
	r.batchSize.WithLabelValues(kind).Observe(float64(events))
}
