// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhevm

import (
	"github.com/prometheus/client_golang/prometheus"
)

type FactoryMetrics struct {
	instanceCreationCount     *prometheus.CounterVec
	instanceCreationLatencyMS *prometheus.GaugeVec
}

func NewFactoryMetrics(registerer prometheus.Registerer) *FactoryMetrics {
	m := FactoryMetrics{
		instanceCreationCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fhevm_instance_creation_count",
				Help: "Number of instance creation attempts",
			},
			[]string{"path", "result"},
		),
		instanceCreationLatencyMS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fhevm_instance_creation_latency_ms",
				Help: "Latency of the last instance creation in milliseconds",
			},
			[]string{"path"},
		),
	}

	registerer.MustRegister(m.instanceCreationCount)
	registerer.MustRegister(m.instanceCreationLatencyMS)

	return &m
}

func (m *FactoryMetrics) observe(path, result string, latencyMS float64) {
	if m == nil {
		return
	}
	m.instanceCreationCount.WithLabelValues(path, result).Inc()
	m.instanceCreationLatencyMS.WithLabelValues(path).Set(latencyMS)
}
