// Package telemetry provides Prometheus metrics, correlation-id aware logging
// helpers, and OpenTelemetry tracing setup.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesSent     prometheus.Counter
	SendsRejected    prometheus.Counter
	PollRequests     prometheus.Counter
	PollTimeouts     prometheus.Counter
	SnapshotRequests prometheus.Counter
	Broadcasts       prometheus.Counter

	// Histograms (seconds)
	PollWaitDuration prometheus.Observer

	// Gauges
	WSConnectionsGauge prometheus.Gauge
	DBPoolOpenGauge    prometheus.Gauge
	DBPoolInUseGauge   prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_sent_total", Help: "Number of chat messages accepted and stored"})
		SendsRejected = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_sends_rejected_total", Help: "Number of chat sends rejected by validation"})
		PollRequests = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_poll_requests_total", Help: "Number of long-poll requests served"})
		PollTimeouts = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_poll_timeouts_total", Help: "Number of long-poll requests that timed out empty"})
		SnapshotRequests = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_snapshot_requests_total", Help: "Number of snapshot requests served"})
		Broadcasts = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_broadcasts_total", Help: "Number of events broadcast to listeners"})
		PollWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_poll_wait_duration_seconds",
			Help:    "How long long-poll requests were held before answering",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 25, 30},
		})
		WSConnectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_ws_connections", Help: "Current number of websocket clients"})
		DBPoolOpenGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_db_pool_open_connections", Help: "Open database connections"})
		DBPoolInUseGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_db_pool_in_use_connections", Help: "Database connections currently in use"})
	})
}

// SetWSConnections records the current websocket client count.
func SetWSConnections(n int) {
	if WSConnectionsGauge != nil {
		WSConnectionsGauge.Set(float64(n))
	}
}

// UpdateDatabasePoolMetrics records connection pool stats.
func UpdateDatabasePoolMetrics(open, inUse int) {
	if DBPoolOpenGauge != nil {
		DBPoolOpenGauge.Set(float64(open))
	}
	if DBPoolInUseGauge != nil {
		DBPoolInUseGauge.Set(float64(inUse))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
