package build

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	cellsProduced prometheus.Counter
	cellsConsumed prometheus.Counter
	queueLength   prometheus.Gauge
	keywordsTotal prometheus.Gauge
	buildsTotal   prometheus.Counter
	buildFailures prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		cellsProduced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kwidx",
			Subsystem: "build",
			Name:      "cells_produced_total",
			Help:      "Cells read from the Parquet source and enqueued for tokenizing.",
		}),
		cellsConsumed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kwidx",
			Subsystem: "build",
			Name:      "cells_consumed_total",
			Help:      "Cells tokenized and merged into the keyword map.",
		}),
		queueLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "kwidx",
			Subsystem: "build",
			Name:      "queue_length",
			Help:      "Capacity of the producer/consumer cell queue chosen for the most recent build.",
		}),
		keywordsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "kwidx",
			Subsystem: "build",
			Name:      "keywords_total",
			Help:      "Distinct keywords recorded by the most recently finished build.",
		}),
		buildsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kwidx",
			Subsystem: "build",
			Name:      "runs_total",
			Help:      "Index builds completed.",
		}),
		buildFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kwidx",
			Subsystem: "build",
			Name:      "failures_total",
			Help:      "Index builds that returned an error.",
		}),
	}
}
