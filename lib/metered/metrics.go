// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package metered

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	sentLabel     = "sent"
	receivedLabel = "received"
	droppedLabel  = "dropped"
)

// Metrics holds the prometheus collectors shared by all the channels
// created with it. A nil *Metrics is valid and records nothing.
type Metrics struct {
	messages *prometheus.CounterVec
	size     *prometheus.GaugeVec
}

// NewMetrics creates the channel collectors and registers them with the
// registerer given. Collectors already registered are reused.
func NewMetrics(registerer prometheus.Registerer) (metrics *Metrics, err error) {
	metrics = new(Metrics)

	metrics.messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "malus",
		Subsystem: "metered_channel",
		Name:      "messages_total",
		Help:      "number of messages sent, received and dropped per channel",
	}, []string{"name", "action"})

	metrics.size = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "malus",
		Subsystem: "metered_channel",
		Name:      "size",
		Help:      "number of messages queued per channel",
	}, []string{"name"})

	err = registerer.Register(metrics.messages)
	if err != nil {
		existing, ok := alreadyRegistered(err)
		if !ok {
			return nil, fmt.Errorf("cannot register messages counter: %w", err)
		}
		metrics.messages = existing.(*prometheus.CounterVec)
	}

	err = registerer.Register(metrics.size)
	if err != nil {
		existing, ok := alreadyRegistered(err)
		if !ok {
			return nil, fmt.Errorf("cannot register size gauge: %w", err)
		}
		metrics.size = existing.(*prometheus.GaugeVec)
	}

	return metrics, nil
}

func alreadyRegistered(err error) (existing prometheus.Collector, ok bool) {
	var alreadyRegisteredErr prometheus.AlreadyRegisteredError
	if !errors.As(err, &alreadyRegisteredErr) {
		return nil, false
	}
	return alreadyRegisteredErr.ExistingCollector, true
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the metrics registered with the default
// prometheus registerer.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		metrics, err := NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			logger.Errorf("registering metered channel metrics: %s", err)
			return
		}
		defaultMetrics = metrics
	})
	return defaultMetrics
}

func (m *Metrics) sent(name string, size int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(name, sentLabel).Inc()
	m.size.WithLabelValues(name).Set(float64(size))
}

func (m *Metrics) received(name string, size int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(name, receivedLabel).Inc()
	m.size.WithLabelValues(name).Set(float64(size))
}

func (m *Metrics) dropped(name string, count int) {
	if m == nil {
		return
	}
	if count > 0 {
		m.messages.WithLabelValues(name, droppedLabel).Add(float64(count))
	}
	m.size.WithLabelValues(name).Set(0)
}
