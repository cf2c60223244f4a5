package run

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"holdtalk/internal/asr"
	"holdtalk/internal/phase"
	"holdtalk/internal/pipeline"
)

func scrape(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, string(body)
}

func TestMetricsFollowBusEvents(t *testing.T) {
	m := NewMetrics()
	bus := pipeline.NewBus()
	if err := m.Attach(bus); err != nil {
		t.Fatalf("attach: %v", err)
	}
	bus.Publish(pipeline.TopicPhase, phase.Idle(), phase.Recording())
	bus.Publish(pipeline.TopicPhase, phase.Recording(), phase.Transcribing())
	bus.Publish(pipeline.TopicModel, asr.Loaded())
	bus.Publish(pipeline.TopicTranscript, pipeline.Transcript{Text: "hi", Audio: 2 * time.Second, Inferred: 300 * time.Millisecond})
	bus.Publish(pipeline.TopicFailure, &pipeline.Failure{Kind: pipeline.KindResource, Op: "capture", Message: "x"})

	code, body := scrape(t, m.Router(func() any { return nil }), "/metrics")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	for _, want := range []string{
		`holdtalk_pipeline_transitions_total{to="recording"} 1`,
		`holdtalk_pipeline_phase{phase="transcribing"} 1`,
		`holdtalk_pipeline_phase{phase="idle"} 0`,
		`holdtalk_asr_model_status{status="loaded"} 1`,
		`holdtalk_asr_model_loads_total{result="loaded"} 1`,
		`holdtalk_pipeline_transcripts_total 1`,
		`holdtalk_pipeline_audio_seconds_sum 2`,
		`holdtalk_pipeline_failures_total{kind="resource",op="capture"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}

func TestMetricsStartIdle(t *testing.T) {
	_, body := scrape(t, NewMetrics().Router(func() any { return nil }), "/metrics")
	for _, want := range []string{
		`holdtalk_pipeline_phase{phase="idle"} 1`,
		`holdtalk_asr_model_status{status="not_loaded"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestRouterStatusAndHealth(t *testing.T) {
	h := NewMetrics().Router(func() any { return map[string]string{"phase": "idle"} })
	code, body := scrape(t, h, "/status")
	if code != http.StatusOK || !strings.Contains(body, `"phase":"idle"`) {
		t.Fatalf("status: %d %s", code, body)
	}
	code, body = scrape(t, h, "/healthz")
	if code != http.StatusOK || body != "ok" {
		t.Fatalf("healthz: %d %s", code, body)
	}
	if code, _ := scrape(t, h, "/nope"); code != http.StatusNotFound {
		t.Fatalf("unknown path: %d", code)
	}
}
