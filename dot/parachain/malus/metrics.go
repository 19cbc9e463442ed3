// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package malus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision is what an interceptor did with a message.
type Decision string

const (
	DecisionPassed   Decision = "passed"
	DecisionDropped  Decision = "dropped"
	DecisionReplaced Decision = "replaced"
)

// Direction is the direction of an intercepted message.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Metrics counts intercepted messages. A nil *Metrics records nothing.
type Metrics struct {
	intercepted *prometheus.CounterVec
}

// NewMetrics creates the interception counters and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) (metrics *Metrics, err error) {
	metrics = new(Metrics)
	collectorsToRegister := make(map[string]prometheus.Collector)

	metrics.intercepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "malus",
		Subsystem: "interceptor",
		Name:      "messages_total",
		Help:      "number of intercepted messages per subsystem, direction and decision",
	}, []string{"subsystem", "direction", "decision"})
	collectorsToRegister["intercepted messages counter"] = metrics.intercepted

	for collectorName, collectorToRegister := range collectorsToRegister {
		err = registerer.Register(collectorToRegister)
		if err == nil {
			continue
		}

		var alreadyRegisteredErr prometheus.AlreadyRegisteredError
		if !errors.As(err, &alreadyRegisteredErr) {
			return nil, fmt.Errorf("cannot register %s: %w", collectorName, err)
		}
		metrics.intercepted = alreadyRegisteredErr.ExistingCollector.(*prometheus.CounterVec)
	}

	return metrics, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the metrics registered with the default prometheus registerer.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		metrics, err := NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			logger.Errorf("registering interceptor metrics: %s", err)
			return
		}
		defaultMetrics = metrics
	})
	return defaultMetrics
}

// Observe counts a message intercepted for subsystem.
func (m *Metrics) Observe(subsystem string, direction Direction, decision Decision) {
	if m == nil {
		return
	}
	m.intercepted.WithLabelValues(subsystem, string(direction), string(decision)).Inc()
}
