// Package stream implements Server-Sent Events for run progress. Clients
// connect via GET /events and receive a status snapshot every Interval
// until the run finishes.
//
// SSE message format:
//
//	data: {"run_id":"...","phase":"generating","samples":16368000,"completed":3273600,...}\n\n
//
// Keep-alive comments (:\n\n) are sent when no snapshot was sent for
// KeepaliveInterval. The final message carries phase "done" or "failed".
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/denniszollo/peregrine/internal/health"
	"github.com/denniszollo/peregrine/internal/metrics"
)

// Config holds event stream limits and timing.
type Config struct {
	MaxConcurrentPerIP int
	MaxConcurrent      int
	Interval           time.Duration
	KeepaliveInterval  time.Duration
}

// DefaultConfig returns the default stream settings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerIP: 4,
		MaxConcurrent:      64,
		Interval:           time.Second,
		KeepaliveInterval:  15 * time.Second,
	}
}

// Handler serves status event streams.
type Handler struct {
	status   *health.Status
	config   Config
	limiter  *streamLimiter
	clientIP func(*http.Request) string
	logger   *slog.Logger
}

// NewHandler creates an event stream handler. clientIP resolves the
// address used for per-IP limits.
func NewHandler(status *health.Status, config Config, clientIP func(*http.Request) string, logger *slog.Logger) *Handler {
	return &Handler{
		status:   status,
		config:   config,
		limiter:  newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		clientIP: clientIP,
		logger:   logger,
	}
}

// HandleEvents serves the SSE status stream.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ip := h.clientIP(r)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamMessages("rejected")
		h.logger.Warn("stream limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.IncStreamsActive()
	start := time.Now()
	h.logger.Debug("stream connected", "remote_ip", ip)

	defer func() {
		h.limiter.release(ip)
		metrics.DecStreamsActive()
		h.logger.Debug("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(start).Seconds()),
		)
	}()

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Long-lived streams must not inherit the server's WriteTimeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered retry interval (1-3s) spreads reconnects after a restart.
	fmt.Fprintf(w, "retry: %d\n\n", 1000+rand.Intn(2000))
	if err := rc.Flush(); err != nil {
		h.logger.Warn("stream flush unsupported", "remote_ip", ip, "error", err)
		return
	}

	c := &client{w: w, rc: rc, logger: h.logger}

	// First message is always the current snapshot.
	if err := c.sendStatus(h.status.Snapshot()); err != nil || h.status.Finished() {
		return
	}

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := c.sendStatus(h.status.Snapshot()); err != nil {
				metrics.IncStreamMessages("error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			if h.status.Finished() {
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamMessages("error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// client writes SSE frames to one connection.
type client struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	logger *slog.Logger
}

func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
}

// sendStatus sends a snapshot as an SSE "data:" message.
func (c *client) sendStatus(snap health.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	c.extendDeadline()
	if _, err := fmt.Fprintf(c.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	metrics.IncStreamMessages("status")
	return c.rc.Flush()
}

// sendKeepalive sends an SSE comment line.
func (c *client) sendKeepalive() error {
	c.extendDeadline()
	if _, err := fmt.Fprint(c.w, ":\n\n"); err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	metrics.IncStreamMessages("keepalive")
	return c.rc.Flush()
}
