// Package metrics exposes sync and transport counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tOgg1/tribe/internal/logging"
)

const namespace = "tribe"

// Result labels.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultDropped = "dropped"
	ResultStale   = "stale"
	ResultSkipped = "skipped"
)

// Metrics holds the collectors of one client process. Each instance owns
// its registry so tests never collide on global registration.
type Metrics struct {
	registry *prometheus.Registry

	syncOps      *prometheus.CounterVec
	merged       *prometheus.CounterVec
	requests     *prometheus.HistogramVec
	requestFails *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		syncOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_operations_total",
			Help:      "Sync operations by kind and outcome.",
		}, []string{"op", "result"}),
		merged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_merged_total",
			Help:      "Messages newly added to the timeline, by operation.",
		}, []string{"op"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of remote API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		requestFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_request_failures_total",
			Help:      "Failed remote API requests.",
		}, []string{"op"}),
	}
	m.registry.MustRegister(
		m.syncOps,
		m.merged,
		m.requests,
		m.requestFails,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TrackStoreSize exports the size reported by fn as tribe_store_messages.
func (m *Metrics) TrackStoreSize(fn func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "store_messages",
		Help:      "Messages held in the local timeline.",
	}, func() float64 { return float64(fn()) }))
}

// SyncOp counts one sync operation.
func (m *Metrics) SyncOp(op, result string) {
	if m == nil {
		return
	}
	m.syncOps.WithLabelValues(op, result).Inc()
}

// Merged counts messages newly added by op.
func (m *Metrics) Merged(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.merged.WithLabelValues(op).Add(float64(n))
}

// ObserveRequest records one remote request.
func (m *Metrics) ObserveRequest(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		m.requestFails.WithLabelValues(op).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	logger := logging.Component("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
