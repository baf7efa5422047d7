package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/denniszollo/peregrine/internal/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 2,
		MaxConcurrent:      10,
		Interval:           10 * time.Millisecond,
		KeepaliveInterval:  time.Second,
	}
}

func remoteAddr(r *http.Request) string { return r.RemoteAddr }

// events parses the data lines of an SSE body.
func events(t *testing.T, body string) []health.Snapshot {
	t.Helper()
	var out []health.Snapshot
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var snap health.Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		out = append(out, snap)
	}
	return out
}

func TestHandleEventsFinishedRun(t *testing.T) {
	st := health.NewStatus("run-1")
	st.SetPhase(health.PhaseDone)
	h := NewHandler(st, testConfig(), remoteAddr, testLogger())

	w := httptest.NewRecorder()
	h.HandleEvents(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "retry: ") {
		t.Errorf("stream does not start with retry hint: %q", w.Body.String())
	}
	evs := events(t, w.Body.String())
	if len(evs) != 1 || evs[0].Phase != health.PhaseDone || evs[0].RunID != "run-1" {
		t.Errorf("events = %+v, want one done snapshot", evs)
	}
}

func TestHandleEventsUntilDone(t *testing.T) {
	st := health.NewStatus("run-2")
	st.SetPhase(health.PhaseGenerating)
	st.SetSamples(1000)
	h := NewHandler(st, testConfig(), remoteAddr, testLogger())

	go func() {
		time.Sleep(30 * time.Millisecond)
		st.AddCompleted(1000)
		st.SetPhase(health.PhaseDone)
	}()

	w := httptest.NewRecorder()
	h.HandleEvents(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	evs := events(t, w.Body.String())
	if len(evs) < 2 {
		t.Fatalf("got %d events, want at least 2", len(evs))
	}
	if evs[0].Phase != health.PhaseGenerating {
		t.Errorf("first event phase = %q", evs[0].Phase)
	}
	last := evs[len(evs)-1]
	if last.Phase != health.PhaseDone || last.Completed != 1000 {
		t.Errorf("last event = %+v", last)
	}
}

func TestHandleEventsLimit(t *testing.T) {
	st := health.NewStatus("run-3")
	cfg := testConfig()
	h := NewHandler(st, cfg, remoteAddr, testLogger())

	for i := 0; i < cfg.MaxConcurrentPerIP; i++ {
		if !h.limiter.acquire("192.0.2.1:1234") {
			t.Fatalf("acquire %d failed", i)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	h.HandleEvents(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestHandleEventsClientDisconnect(t *testing.T) {
	st := health.NewStatus("run-4")
	st.SetPhase(health.PhaseGenerating)
	h := NewHandler(st, testConfig(), func(*http.Request) string { return "client" }, testLogger())

	srv := httptest.NewServer(http.HandlerFunc(h.HandleEvents))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	resp.Body.Close()

	// The handler notices the disconnect and frees its slot.
	deadline := time.Now().Add(2 * time.Second)
	for h.limiter.count("client") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream slot not released after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLimiter(t *testing.T) {
	l := newStreamLimiter(2, 3)
	if !l.acquire("a") || !l.acquire("a") {
		t.Fatal("first two acquires should succeed")
	}
	if l.acquire("a") {
		t.Error("per-IP limit not enforced")
	}
	if !l.acquire("b") {
		t.Error("other IP should be admitted")
	}
	if l.acquire("c") {
		t.Error("global limit not enforced")
	}
	l.release("a")
	l.release("a")
	if l.count("a") != 0 {
		t.Errorf("count after release = %d", l.count("a"))
	}
	if _, ok := l.connections["a"]; ok {
		t.Error("released IP not removed")
	}
}
