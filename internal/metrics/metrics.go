// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package metrics serves the prometheus metrics over HTTP.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ChainSafe/malus/internal/httpserver"
	"github.com/ChainSafe/malus/internal/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultAddress is the default listening address of the metrics server.
const DefaultAddress = "localhost:9876"

const stopTimeout = 30 * time.Second

var logger log.LeveledLogger = log.NewFromGlobal(log.AddContext("pkg", "metrics"))

var errExitedUnexpectedly = errors.New("metrics server exited unexpectedly")

// Server is a metrics http server
type Server struct {
	address string
	cancel  context.CancelFunc
	server  *httpserver.Server
	done    chan error
}

// NewServer is a constructor for metrics server serving the metrics
// gathered by gatherer on /metrics.
func NewServer(address string, gatherer prometheus.Gatherer) (s *Server) {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return &Server{
		address: address,
		server:  httpserver.New("metrics", address, r, logger),
	}
}

// Start will start a dedicated metrics server at the configured address.
func (s *Server) Start() (err error) {
	logger.Infof("Starting metrics server at http://%s/metrics", s.address)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	ready := make(chan struct{})
	s.done = make(chan error, 1)

	go s.server.Run(ctx, ready, s.done)

	select {
	case <-ready:
		return nil
	case err := <-s.done:
		cancel()
		s.cancel = nil
		if err != nil {
			return fmt.Errorf("running metrics server: %w", err)
		}
		return errExitedUnexpectedly
	}
}

// Address returns the address the server listens on once started.
func (s *Server) Address(ctx context.Context) (string, error) {
	return s.server.GetAddress(ctx)
}

// Stop will stop the metrics server
func (s *Server) Stop() (err error) {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	timer := time.NewTimer(stopTimeout)
	defer timer.Stop()
	select {
	case err := <-s.done:
		return err
	case <-timer.C:
		return fmt.Errorf("metrics server exit timeout")
	}
}
