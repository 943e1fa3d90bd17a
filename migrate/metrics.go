// Copyright (C) 2026 Stagecraft Authors (dev@stagecraft.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package migrate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the runner's Prometheus metrics.
//
// Thread Safety: safe for concurrent use (Prometheus metrics are thread-safe).
type Metrics struct {
	// StagesValidated counts stages reaching VALIDATED.
	StagesValidated prometheus.Counter

	// StagesFailed counts stages reaching PERMANENTLY_FAILED.
	StagesFailed prometheus.Counter

	// Retries counts FAILED -> APPLYING re-entries.
	Retries prometheus.Counter

	// Rollbacks counts scoped and session-wide restore passes.
	Rollbacks *prometheus.CounterVec

	// FilesWritten counts files written through the safety layer.
	FilesWritten prometheus.Counter

	// ValidationSeconds measures build-plus-test duration per attempt.
	ValidationSeconds prometheus.Histogram
}

// NewMetrics registers the runner metrics on the given registerer. Each
// session creates its own registry so repeated sessions in one process
// do not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StagesValidated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stagecraft",
				Subsystem: "migrate",
				Name:      "stages_validated_total",
				Help:      "Total stages that passed validation",
			},
		),

		StagesFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stagecraft",
				Subsystem: "migrate",
				Name:      "stages_failed_total",
				Help:      "Total stages that exhausted their retry budget",
			},
		),

		Retries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stagecraft",
				Subsystem: "migrate",
				Name:      "retries_total",
				Help:      "Total stage retry attempts",
			},
		),

		Rollbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stagecraft",
				Subsystem: "migrate",
				Name:      "rollbacks_total",
				Help:      "Total rollback passes by scope",
			},
			[]string{"scope"},
		),

		FilesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stagecraft",
				Subsystem: "migrate",
				Name:      "files_written_total",
				Help:      "Total files written through the safety layer",
			},
		),

		ValidationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "stagecraft",
				Subsystem: "migrate",
				Name:      "validation_seconds",
				Help:      "Build and test duration per validation attempt",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
	}
}
