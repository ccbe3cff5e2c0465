// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the stencil service.
//
// # Description
//
// Metrics cover HTTP requests per endpoint, shapes ingested and encoded,
// modifications by action, window panes created and the interpreter
// source split (ai vs local). They are exposed on /metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every Record method is a no-op on a nil *Metrics.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "stentelligence"
	stencilSubsystem = "stencil"
)

// Metrics holds the service's Prometheus collectors.
//
// # Fields
//
//   - RequestsTotal: Requests by endpoint and HTTP status code.
//   - RequestDurationSeconds: Handler latency by endpoint.
//   - ShapesTotal: Shapes ingested or encoded, by operation.
//   - ModifiedShapesTotal: Shapes changed, by action.
//   - PanesCreatedTotal: Window panes created.
//   - InterpretTotal: Interpretations by source (ai, local).
type Metrics struct {
	RequestsTotal          *prometheus.CounterVec
	RequestDurationSeconds *prometheus.HistogramVec
	ShapesTotal            *prometheus.CounterVec
	ModifiedShapesTotal    *prometheus.CounterVec
	PanesCreatedTotal      prometheus.Counter
	InterpretTotal         *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg. A nil reg uses
// prometheus.DefaultRegisterer.
//
// # Limitations
//
//   - Panics if called twice with the same registerer (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: stencilSubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by endpoint and status code",
			},
			[]string{"endpoint", "code"},
		),
		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: stencilSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Handler latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		ShapesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: stencilSubsystem,
				Name:      "shapes_total",
				Help:      "Shapes processed by operation (parse, export)",
			},
			[]string{"operation"},
		),
		ModifiedShapesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: stencilSubsystem,
				Name:      "modified_shapes_total",
				Help:      "Shapes changed by action",
			},
			[]string{"action"},
		),
		PanesCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: stencilSubsystem,
				Name:      "panes_created_total",
				Help:      "Window panes created",
			},
		),
		InterpretTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: stencilSubsystem,
				Name:      "interpret_total",
				Help:      "Prompt interpretations by source",
			},
			[]string{"source"},
		),
	}
}

// RecordRequest records one handled request.
func (m *Metrics) RecordRequest(endpoint string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.RequestDurationSeconds.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordShapes adds n shapes to operation's counter.
func (m *Metrics) RecordShapes(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ShapesTotal.WithLabelValues(operation).Add(float64(n))
}

// RecordModification records the outcome of one modification pass.
func (m *Metrics) RecordModification(action string, changed, panes int) {
	if m == nil {
		return
	}
	if changed > 0 {
		m.ModifiedShapesTotal.WithLabelValues(action).Add(float64(changed))
	}
	if panes > 0 {
		m.PanesCreatedTotal.Add(float64(panes))
	}
}

// RecordInterpret counts one interpretation.
func (m *Metrics) RecordInterpret(source string) {
	if m == nil {
		return
	}
	m.InterpretTotal.WithLabelValues(source).Inc()
}
