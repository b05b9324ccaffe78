package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTurnFinished(t *testing.T) {
	m := New("")
	m.TurnFinished("plain", "ok", 2*time.Second)
	m.TurnFinished("plain", "ok", time.Second)
	m.TurnFinished("video", "timeout", time.Minute)

	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues("plain", "ok")); got != 2 {
		t.Errorf("plain/ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues("video", "timeout")); got != 1 {
		t.Errorf("video/timeout = %v, want 1", got)
	}
}

func TestLiveStatus(t *testing.T) {
	m := New("")
	for _, s := range []string{"connecting", "connected", "connecting", "connected"} {
		m.LiveStatus(s)
	}
	if got := testutil.ToFloat64(m.LiveRunsActive); got != 2 {
		t.Fatalf("active = %v, want 2", got)
	}
	m.LiveStatus("ended")
	m.LiveStatus("error")
	m.LiveStatus("ended")
	if got := testutil.ToFloat64(m.LiveRunsActive); got != 0 {
		t.Fatalf("active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.LiveTransitionsTotal.WithLabelValues("connecting")); got != 2 {
		t.Errorf("connecting transitions = %v, want 2", got)
	}
}

func TestAudioScheduled(t *testing.T) {
	m := New("")
	m.AudioScheduled(0.5)
	m.AudioScheduled(-1)
	m.AudioScheduled(0.25)
	if got := testutil.ToFloat64(m.LiveAudioSeconds); got != 0.75 {
		t.Fatalf("audio seconds = %v, want 0.75", got)
	}
}

func TestHandler(t *testing.T) {
	m := New("test")
	m.RecordRequest("GET /v1/chats", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`test_http_requests_total{route="GET /v1/chats",status="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
