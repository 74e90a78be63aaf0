package observer

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports sandbox metrics to a Prometheus registry.
type PrometheusRecorder struct {
	compileTotal    *prometheus.CounterVec
	verdictTotal    *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec
	activeSandboxes prometheus.Gauge
}

// NewPrometheusRecorder registers the judge collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		compileTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codejudge_compile_total",
				Help: "Total number of compilations",
			},
			[]string{"language", "ok"},
		),
		verdictTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codejudge_testcase_verdict_total",
				Help: "Total number of graded test cases by verdict",
			},
			[]string{"language", "verdict"},
		),
		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "codejudge_phase_duration_ms",
				Help:    "Compile and run duration in milliseconds",
				Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"language", "phase"},
		),
		activeSandboxes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "codejudge_active_sandboxes",
				Help: "Number of sandbox directories currently acquired",
			},
		),
	}
}

func (p *PrometheusRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64) {
	p.compileTotal.WithLabelValues(languageID, strconv.FormatBool(ok)).Inc()
	p.phaseDuration.WithLabelValues(languageID, "compile").Observe(float64(timeMs))
}

func (p *PrometheusRecorder) ObserveRun(ctx context.Context, languageID string, verdict string, timeMs int64) {
	p.verdictTotal.WithLabelValues(languageID, verdict).Inc()
	p.phaseDuration.WithLabelValues(languageID, "run").Observe(float64(timeMs))
}

// SandboxAcquired and SandboxReleased track live sandboxes.
func (p *PrometheusRecorder) SandboxAcquired() { p.activeSandboxes.Inc() }

func (p *PrometheusRecorder) SandboxReleased() { p.activeSandboxes.Dec() }
