package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("ingestion", 150*time.Millisecond)
	pr.IncStageResult("ingestion", ResultSuccess)
	pr.ObserveJobDuration("chapter_creator", 30*time.Second, ResultSuccess)
	pr.IncUploadAttempt("0x0", ResultFailed)
	pr.IncUploadAttempt("catbox", ResultSuccess)
	pr.IncChaptersGenerated()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"chapterinator_stage_duration_seconds",
		"chapterinator_stage_results_total",
		"chapterinator_job_duration_seconds",
		"chapterinator_upload_attempts_total",
		"chapterinator_chapters_generated_total",
	} {
		if !names[want] {
			t.Errorf("missing metric %s", want)
		}
	}
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("x", time.Second)
	pr.IncStageResult("x", ResultFailed)
	pr.ObserveJobDuration("x", time.Second, ResultFailed)
	pr.IncUploadAttempt("x", ResultFailed)
	pr.IncChaptersGenerated()
	if pr.Registry() != nil {
		t.Error("nil recorder should have nil registry")
	}
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncChaptersGenerated()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "chapterinator_chapters_generated_total 1") {
		t.Errorf("metric not exposed:\n%s", body)
	}
}

func TestResultFor(t *testing.T) {
	if ResultFor(nil) != ResultSuccess {
		t.Error("nil error should be success")
	}
	if ResultFor(errors.New("boom")) != ResultFailed {
		t.Error("error should be failed")
	}
	if _, ok := OrNoop(nil).(NoopRecorder); !ok {
		t.Error("OrNoop(nil) should return NoopRecorder")
	}
}
