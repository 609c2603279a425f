package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordFiring("ledger.send", ResultResponse, 200*time.Millisecond)
	m.RecordFiring("ledger.send", ResultFailure, time.Second)
	m.RecordFiring("ledger.send", ResultFailure, time.Second)
	m.SetInflight(3)
	m.RecordStorageWrite("response", StatusOK)
	m.RecordRegistryQuery()
	m.RecordSkippedFiring()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.firingsTotal.WithLabelValues("ledger.send", ResultResponse)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.firingsTotal.WithLabelValues("ledger.send", ResultFailure)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.inflight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storageWrites.WithLabelValues("response", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registryQueries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skippedFirings))
	assert.Equal(t, 2, testutil.CollectAndCount(m.executionDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordFiring("ledger.send", ResultResponse, time.Second)
		m.SetInflight(1)
		m.RecordStorageWrite("error", StatusError)
		m.RecordRegistryQuery()
		m.RecordSkippedFiring()
	})
}

func TestServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordRegistryQuery()

	srv, err := Listen("127.0.0.1:0", reg, logger.Nop())
	require.NoError(t, err)
	srv.Start()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ledgercron_registry_queries_total 1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	srv, err := Listen("127.0.0.1:0", prometheus.NewRegistry(), logger.Nop())
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))

	// The port is released.
	ln, err := net.Listen("tcp", srv.Addr())
	require.NoError(t, err)
	require.NoError(t, ln.Close())
}
