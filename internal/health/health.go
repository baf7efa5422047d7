package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Phase is the lifecycle stage of a generator run.
type Phase string

const (
	PhaseStarting   Phase = "starting"
	PhaseGenerating Phase = "generating"
	PhaseWriting    Phase = "writing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Status tracks the progress of a run for the probe and status endpoints.
type Status struct {
	mu      sync.RWMutex
	runID   string
	phase   Phase
	started time.Time
	samples   int
	completed int
	err       string
}

// Snapshot is the JSON form of a Status.
type Snapshot struct {
	RunID          string  `json:"run_id"`
	Phase          Phase   `json:"phase"`
	Samples        int     `json:"samples"`
	Completed      int     `json:"completed"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Error          string  `json:"error,omitempty"`
}

// NewStatus creates a status for a run in the starting phase.
func NewStatus(runID string) *Status {
	return &Status{runID: runID, phase: PhaseStarting, started: time.Now()}
}

// SetPhase moves the run to p.
func (s *Status) SetPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// SetSamples records the number of samples in the run.
func (s *Status) SetSamples(n int) {
	s.mu.Lock()
	s.samples = n
	s.mu.Unlock()
}

// AddCompleted records n more synthesized samples.
func (s *Status) AddCompleted(n int) {
	s.mu.Lock()
	s.completed += n
	s.mu.Unlock()
}

// Finished reports whether the run has ended, successfully or not.
func (s *Status) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase == PhaseDone || s.phase == PhaseFailed
}

// Fail marks the run as failed.
func (s *Status) Fail(err error) {
	s.mu.Lock()
	s.phase = PhaseFailed
	s.err = err.Error()
	s.mu.Unlock()
}

// Ready reports whether generation has started.
func (s *Status) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase != PhaseStarting && s.phase != PhaseFailed
}

// Snapshot returns a copy of the current state.
func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		RunID:          s.runID,
		Phase:          s.phase,
		Samples:        s.samples,
		Completed:      s.completed,
		ElapsedSeconds: time.Since(s.started).Seconds(),
		Error:          s.err,
	}
}

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz returns 200 "ready\n" once generation has started, 503 before.
func (s *Status) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !s.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}

// Handler serves the status snapshot as JSON.
func (s *Status) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Snapshot())
}
