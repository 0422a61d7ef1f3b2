// Package metrics records pipeline timings and outcomes.
package metrics

import "time"

// ResultLabel enumerates outcome categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// ResultFor maps an error to a ResultLabel.
func ResultFor(err error) ResultLabel {
	if err != nil {
		return ResultFailed
	}
	return ResultSuccess
}

// Recorder defines observability hooks for the pipeline. Implementations
// must tolerate nil receivers so a recorder can be optional.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveJobDuration(operation string, d time.Duration, result ResultLabel)
	IncUploadAttempt(backend string, result ResultLabel)
	IncChaptersGenerated()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)            {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                    {}
func (NoopRecorder) ObserveJobDuration(string, time.Duration, ResultLabel) {}
func (NoopRecorder) IncUploadAttempt(string, ResultLabel)                  {}
func (NoopRecorder) IncChaptersGenerated()                                 {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
