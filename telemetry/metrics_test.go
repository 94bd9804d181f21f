package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // second call must not re-register (promauto panics on duplicates)

	if MessagesSent == nil || PollRequests == nil || PollWaitDuration == nil {
		t.Fatal("counters not initialized after Init")
	}
	if WSConnectionsGauge == nil {
		t.Fatal("websocket gauge not initialized after Init")
	}
}

func TestGaugeHelpers(t *testing.T) {
	Init()

	for _, n := range []int{0, 3, 120} {
		SetWSConnections(n)
	}
	UpdateDatabasePoolMetrics(10, 5)
	UpdateDatabasePoolMetrics(100, 95)

	metric := &dto.Metric{}
	if err := WSConnectionsGauge.Write(metric); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	if got := metric.Gauge.GetValue(); got != 120 {
		t.Errorf("ws connections gauge = %v, want 120", got)
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	Init()

	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})
	prometheus.MustRegister(testHistogram)
	defer prometheus.Unregister(testHistogram)

	executed := false
	duration := TimeFunc(testHistogram, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if duration < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", duration)
	}

	metric := &dto.Metric{}
	if err := testHistogram.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram == nil || *metric.Histogram.SampleCount == 0 {
		t.Error("TimeFunc did not record observation in histogram")
	}
}

func TestCorrelationContext(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("correlation on empty context = %q, want empty", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("correlation = %q, want abc-123", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
