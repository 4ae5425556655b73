package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder on its own registry so a run can
// export everything it collected without touching the global one.
type PrometheusRecorder struct {
	registry      *prom.Registry
	stageDuration *prom.HistogramVec
	runDuration   prom.Histogram
	stageResults  *prom.CounterVec
	runOutcomes   *prom.CounterVec
	artifacts     *prom.CounterVec
	pages         *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the build metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "sitewright",
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual build stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "sitewright",
		Name:      "run_duration_seconds",
		Help:      "Total build run duration",
		Buckets:   prom.DefBuckets,
	})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "sitewright",
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"stage", "result"})
	pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "sitewright",
		Name:      "run_outcomes_total",
		Help:      "Build run outcomes by final status",
	}, []string{"outcome"})
	pr.artifacts = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "sitewright",
		Name:      "artifacts_total",
		Help:      "Artifact writes by outcome",
	}, []string{"outcome"})
	pr.pages = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "sitewright",
		Name:      "pages_rendered_total",
		Help:      "Rendered pages by site",
	}, []string{"site"})
	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults, pr.runOutcomes, pr.artifacts, pr.pages)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncArtifacts(outcome string, n int) {
	if p == nil || p.artifacts == nil {
		return
	}
	p.artifacts.WithLabelValues(outcome).Add(float64(n))
}

func (p *PrometheusRecorder) AddPagesRendered(site string, n int) {
	if p == nil || p.pages == nil {
		return
	}
	p.pages.WithLabelValues(site).Add(float64(n))
}

// WriteTextfile exports the collected metrics in text exposition format,
// the form the node_exporter textfile collector picks up.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}
