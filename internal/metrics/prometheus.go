package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chapterinator"

// jobBuckets cover streamed generation calls, which run for minutes.
var jobBuckets = []float64{1, 5, 15, 30, 60, 120, 180, 240, 300, 450, 600}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry          *prom.Registry
	stageDuration     *prom.HistogramVec
	stageResults      *prom.CounterVec
	jobDuration       *prom.HistogramVec
	uploadAttempts    *prom.CounterVec
	chaptersGenerated prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics.
// A nil registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stage executions",
			Buckets:   jobBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage execution counts by outcome",
		}, []string{"stage", "result"}),
		jobDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of generation service jobs by operation",
			Buckets:   jobBuckets,
		}, []string{"operation", "result"}),
		uploadAttempts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "upload_attempts_total",
			Help:      "Upload attempts by backend and outcome",
		}, []string{"backend", "result"}),
		chaptersGenerated: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "chapters_generated_total",
			Help:      "Chapters generated successfully",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.jobDuration, pr.uploadAttempts, pr.chaptersGenerated)
	return pr
}

// Registry returns the registry the recorder's metrics live in.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveJobDuration(operation string, d time.Duration, result ResultLabel) {
	if p == nil || p.jobDuration == nil {
		return
	}
	p.jobDuration.WithLabelValues(operation, string(result)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncUploadAttempt(backend string, result ResultLabel) {
	if p == nil || p.uploadAttempts == nil {
		return
	}
	p.uploadAttempts.WithLabelValues(backend, string(result)).Inc()
}

func (p *PrometheusRecorder) IncChaptersGenerated() {
	if p == nil || p.chaptersGenerated == nil {
		return
	}
	p.chaptersGenerated.Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
