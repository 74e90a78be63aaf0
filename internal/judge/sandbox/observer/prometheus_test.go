package observer

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	ctx := context.Background()

	rec.ObserveCompile(ctx, "cpp", true, 120)
	rec.ObserveCompile(ctx, "cpp", false, 80)
	rec.ObserveRun(ctx, "cpp", "AC", 10)
	rec.ObserveRun(ctx, "cpp", "AC", 12)
	rec.ObserveRun(ctx, "python", "TLE", 1000)

	if got := testutil.ToFloat64(rec.compileTotal.WithLabelValues("cpp", "true")); got != 1 {
		t.Fatalf("expected 1 successful compile, got %v", got)
	}
	if got := testutil.ToFloat64(rec.verdictTotal.WithLabelValues("cpp", "AC")); got != 2 {
		t.Fatalf("expected 2 AC verdicts, got %v", got)
	}
	if got := testutil.ToFloat64(rec.verdictTotal.WithLabelValues("python", "TLE")); got != 1 {
		t.Fatalf("expected 1 TLE verdict, got %v", got)
	}

	rec.SandboxAcquired()
	rec.SandboxAcquired()
	rec.SandboxReleased()
	if got := testutil.ToFloat64(rec.activeSandboxes); got != 1 {
		t.Fatalf("expected 1 active sandbox, got %v", got)
	}
}
