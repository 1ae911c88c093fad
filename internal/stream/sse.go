// Package stream implements Server-Sent Events (SSE) streaming of catalog
// positions. Clients connect via GET /api/v1/stream/positions and receive the
// whole catalog's positions at wall-clock instants, computed on each tick.
//
// SSE message format:
//
//	data: {"type":"positions","instantMs":1770350400000,"frame":"eci","positionBuffer":[...],"siderealAngle":1.23,"failed":0}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","count":27000,"catalog_fetched_at":"...","catalog_age_seconds":1800,"frame":"eci","step_seconds":5}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
// Reconnecting clients receive a fresh metadata message on each connection.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/engine"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/httputil"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/metrics"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Take the client IP from X-Forwarded-For / X-Real-IP.
}

// PositionSource computes catalog positions on demand.
type PositionSource interface {
	Catalog() (*engine.CatalogPayload, error)
	Propagate(ctx context.Context, instant time.Time, frame engine.Frame) (*engine.PositionPayload, error)
}

// Handler manages SSE streaming connections.
type Handler struct {
	source  PositionSource
	config  Config
	limiter *streamLimiter
	now     func() time.Time
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(source PositionSource, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		source:  source,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		now:     time.Now,
		logger:  logger,
	}
}

// HandlePositions serves the SSE position stream.
// GET /api/v1/stream/positions?step=5&frame=eci
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters.
	step := 5
	if v := r.URL.Query().Get("step"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			writeError(w, http.StatusBadRequest, "invalid step parameter, must be 1-60")
			return
		}
		step = n
	}

	frame := engine.FrameECI
	if v := r.URL.Query().Get("frame"); v != "" {
		frame = engine.Frame(v)
		if frame != engine.FrameECI && frame != engine.FrameECF {
			writeError(w, http.StatusBadRequest, "invalid frame parameter, must be eci or ecf")
			return
		}
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if err := h.limiter.acquire(ip); err != nil {
		reason := "rate_limit"
		if errors.Is(err, errTotalLimit) {
			reason = "capacity"
		}
		metrics.IncStreamErrors(reason)
		client, total := h.limiter.usage(ip)
		h.logger.Warn("stream rejected",
			"remote_ip", ip,
			"reason", reason,
			"client_streams", client,
			"total_streams", total,
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}

	// Track connection metrics.
	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"step", step,
		"frame", string(frame),
	)

	// Cleanup on disconnect: release rate limit slot and update metrics.
	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE response headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Send jittered retry interval (3-7s) to prevent thundering-herd
	// reconnection storms when the server restarts.
	retry := time.Duration(3000+rand.Intn(4000)) * time.Millisecond
	if err := c.sendRetry(retry); err != nil {
		h.logger.Warn("stream send error (retry)", "remote_ip", ip, "error", err)
		return
	}

	// Send metadata message (first message on every connection).
	meta := metadataMessage{Type: "metadata", Frame: string(frame), StepSeconds: step}
	if cat, err := h.source.Catalog(); err == nil {
		meta.Count = cat.Count
		meta.CatalogFetchedAt = cat.FetchedAt.UTC().Format(time.RFC3339)
		meta.CatalogAge = int(time.Since(cat.FetchedAt).Seconds())
	}
	if err := c.send("metadata", "", meta); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(time.Duration(step) * time.Second)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	// First frame goes out immediately; later ones on the step ticker.
	if !h.sendPositions(ctx, c, h.now(), frame) {
		return
	}
	keepaliveTicker.Reset(h.config.KeepaliveInterval)

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !h.sendPositions(ctx, c, h.now(), frame) {
				return
			}
			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// sendPositions propagates the catalog to t and sends one frame. It returns
// false when the connection should close.
func (h *Handler) sendPositions(ctx context.Context, c *client, t time.Time, frame engine.Frame) bool {
	p, err := h.source.Propagate(ctx, t, frame)
	switch {
	case errors.Is(err, engine.ErrNoCatalog):
		metrics.IncStreamErrors("no_catalog")
		h.logger.Debug("stream has no catalog", "remote_ip", c.ip)
		return true
	case err != nil:
		if ctx.Err() != nil {
			return false
		}
		metrics.IncStreamErrors("propagate_error")
		h.logger.Warn("stream propagation error", "remote_ip", c.ip, "error", err)
		return true
	}

	if err := c.send("positions", strconv.FormatInt(p.InstantMs, 10), positionsMessage{Type: "positions", PositionPayload: p}); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", "remote_ip", c.ip, "error", err)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SSE message payload types.

type metadataMessage struct {
	Type             string `json:"type"`
	Count            int    `json:"count"`
	CatalogFetchedAt string `json:"catalog_fetched_at,omitempty"`
	CatalogAge       int    `json:"catalog_age_seconds"`
	Frame            string `json:"frame"`
	StepSeconds      int    `json:"step_seconds"`
}

type positionsMessage struct {
	Type string `json:"type"`
	*engine.PositionPayload
}
