// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package survey

import (
	"github.com/prometheus/client_golang/prometheus"
)

type OrchestratorMetrics struct {
	operationCount     *prometheus.CounterVec
	operationLatencyMS *prometheus.GaugeVec
	rejectedCount      *prometheus.CounterVec
	failureCount       *prometheus.CounterVec
}

func NewOrchestratorMetrics(registerer prometheus.Registerer) *OrchestratorMetrics {
	m := OrchestratorMetrics{
		operationCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "survey_operation_count",
				Help: "Number of survey operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationLatencyMS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "survey_operation_latency_ms",
				Help: "Latency of the last survey operation in milliseconds",
			},
			[]string{"operation"},
		),
		rejectedCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "survey_operation_rejected_count",
				Help: "Number of survey operations rejected while another was running",
			},
			[]string{"operation"},
		),
		failureCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "survey_operation_failure_count",
				Help: "Number of failed survey operations by error code",
			},
			[]string{"operation", "code"},
		),
	}

	registerer.MustRegister(m.operationCount)
	registerer.MustRegister(m.operationLatencyMS)
	registerer.MustRegister(m.rejectedCount)
	registerer.MustRegister(m.failureCount)

	return &m
}

func (m *OrchestratorMetrics) observe(op Operation, res Result, latencyMS float64) {
	if m == nil {
		return
	}
	if res.Outcome == OutcomeRejected {
		m.rejectedCount.WithLabelValues(string(op)).Inc()
		return
	}
	m.operationCount.WithLabelValues(string(op), string(res.Outcome)).Inc()
	m.operationLatencyMS.WithLabelValues(string(op)).Set(latencyMS)
	if res.Outcome == OutcomeFailed {
		m.failureCount.WithLabelValues(string(op), string(res.Code())).Inc()
	}
}
