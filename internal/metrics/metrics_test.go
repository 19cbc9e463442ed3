// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Server(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "malus",
		Name:      "test_total",
		Help:      "test counter",
	})
	registry.MustRegister(counter)
	counter.Add(3)

	server := NewServer("127.0.0.1:0", registry)
	require.NoError(t, server.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	address, err := server.Address(ctx)
	require.NoError(t, err)

	response, err := http.Get("http://" + address + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.NoError(t, response.Body.Close())

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, string(body), "malus_test_total 3")

	response, err = http.Post("http://"+address+"/metrics", "text/plain", nil)
	require.NoError(t, err)
	require.NoError(t, response.Body.Close())
	assert.Equal(t, http.StatusMethodNotAllowed, response.StatusCode)

	response, err = http.Get("http://" + address + "/unknown")
	require.NoError(t, err)
	require.NoError(t, response.Body.Close())
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	assert.NoError(t, server.Stop())
}

func Test_Server_StartFailure(t *testing.T) {
	t.Parallel()

	server := NewServer("invalid address", prometheus.NewRegistry())
	assert.Error(t, server.Start())
}

func Test_Server_StopNotStarted(t *testing.T) {
	t.Parallel()

	server := NewServer(DefaultAddress, prometheus.NewRegistry())
	assert.NoError(t, server.Stop())
}
