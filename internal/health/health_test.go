package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadyz(t *testing.T) {
	st := NewStatus("run-1")

	w := httptest.NewRecorder()
	st.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before start: status = %d, want 503", w.Code)
	}

	st.SetPhase(PhaseGenerating)
	w = httptest.NewRecorder()
	st.Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready\n" {
		t.Errorf("generating: status = %d body %q", w.Code, w.Body.String())
	}

	st.Fail(errors.New("boom"))
	if st.Ready() {
		t.Error("failed run reported ready")
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("status = %d body %q", w.Code, w.Body.String())
	}
}

func TestStatusHandler(t *testing.T) {
	st := NewStatus("run-2")
	st.SetPhase(PhaseWriting)
	st.SetSamples(16368000)

	w := httptest.NewRecorder()
	st.Handler(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	var snap Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.RunID != "run-2" || snap.Phase != PhaseWriting || snap.Samples != 16368000 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Error != "" {
		t.Errorf("unexpected error %q", snap.Error)
	}
}

func TestProgressAndFinished(t *testing.T) {
	st := NewStatus("run-3")
	st.SetPhase(PhaseGenerating)
	st.AddCompleted(100)
	st.AddCompleted(250)
	if got := st.Snapshot().Completed; got != 350 {
		t.Errorf("completed = %d, want 350", got)
	}
	if st.Finished() {
		t.Error("generating run reported finished")
	}
	st.SetPhase(PhaseDone)
	if !st.Finished() {
		t.Error("done run not finished")
	}
}
