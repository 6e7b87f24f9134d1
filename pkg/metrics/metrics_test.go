package metrics

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerServesOwnRegistry(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.ReconstructRunsTotal.WithLabelValues("complete").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `reconstruct_runs_total{outcome="complete"} 1`)
}

func TestNewProcessIncludesRuntimeCollectors(t *testing.T) {
	m := NewProcess()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStartServerReportsBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	_, err = StartServer(taken.Addr().String(), NewWithRegistry(prometheus.NewRegistry()))
	assert.Error(t, err)
}

func TestStartServerShutdown(t *testing.T) {
	shutdown, err := StartServer("127.0.0.1:0", NewWithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
