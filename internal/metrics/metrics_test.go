package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSyncCounters(t *testing.T) {
	m := New()
	m.SyncOp("poll", ResultOK)
	m.SyncOp("poll", ResultOK)
	m.SyncOp("poll", ResultStale)
	m.Merged("poll", 3)
	m.Merged("poll", 0)

	require.Equal(t, 2.0, testutil.ToFloat64(m.syncOps.WithLabelValues("poll", ResultOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.syncOps.WithLabelValues("poll", ResultStale)))
	require.Equal(t, 3.0, testutil.ToFloat64(m.merged.WithLabelValues("poll")))
}

func TestObserveRequestCountsFailures(t *testing.T) {
	m := New()
	m.ObserveRequest("latest", 20*time.Millisecond, nil)
	m.ObserveRequest("latest", 30*time.Millisecond, errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.requestFails.WithLabelValues("latest")))
	require.Equal(t, 1, testutil.CollectAndCount(m.requests))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SyncOp("poll", ResultOK)
	m.Merged("poll", 1)
	m.ObserveRequest("latest", time.Second, nil)
}

func TestHandlerExposesStoreSize(t *testing.T) {
	m := New()
	m.TrackStoreSize(func() int { return 42 })
	m.SyncOp("refresh", ResultOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "tribe_store_messages 42")
	require.Contains(t, string(body), `tribe_sync_operations_total{op="refresh",result="ok"} 1`)
}
