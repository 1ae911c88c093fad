package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/engine"
)

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownRequest), errors.Is(err, engine.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNoCatalog):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrRefreshDisabled):
		return http.StatusConflict
	case errors.Is(err, engine.ErrRefreshFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func handleError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Warn("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

// engineHandler accepts a generic host message and returns the matching response.
// POST /api/v1/engine
func engineHandler(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req engine.Request
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp, err := eng.Handle(r.Context(), req)
		if err != nil {
			handleError(logger, w, r, err)
			return
		}
		writeResponse(w, r, http.StatusOK, resp)
	}
}

// GET /api/v1/catalog
func catalogHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := eng.Catalog()
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeResponse(w, r, http.StatusOK, p)
	}
}

// POST /api/v1/catalog/refresh
func refreshHandler(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := eng.Handle(r.Context(), engine.Request{Type: engine.RefreshCatalog})
		if err != nil {
			handleError(logger, w, r, err)
			return
		}
		writeResponse(w, r, http.StatusOK, resp.Catalog)
	}
}

// GET /api/v1/propagate?t=<unix ms | RFC3339>&frame=eci|ecf
func propagateHandler(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := engine.Request{
			Type:  engine.Propagate,
			Frame: engine.Frame(r.URL.Query().Get("frame")),
		}
		if v := r.URL.Query().Get("t"); v != "" {
			ms, err := parseInstant(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid t parameter, must be unix milliseconds or RFC3339")
				return
			}
			req.InstantMs = &ms
		}

		resp, err := eng.Handle(r.Context(), req)
		if err != nil {
			handleError(logger, w, r, err)
			return
		}
		writeResponse(w, r, http.StatusOK, resp.Positions)
	}
}

// POST /api/v1/risk {launchLatitudeDeg, launchLongitudeDeg, launchEpochMs}
func riskHandler(logger *slog.Logger, eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req engine.Request
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Type = engine.EvaluateRisk

		resp, err := eng.Handle(r.Context(), req)
		if err != nil {
			handleError(logger, w, r, err)
			return
		}
		writeResponse(w, r, http.StatusOK, resp.Risk)
	}
}

func parseInstant(v string) (int64, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
