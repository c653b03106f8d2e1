package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/pitchside/internal/config"
	"github.com/hyperengineering/pitchside/internal/media"
	"github.com/hyperengineering/pitchside/internal/store"
	"github.com/hyperengineering/pitchside/internal/types"
)

// MetricsEngine computes the metric values of an athlete.
type MetricsEngine interface {
	Compute(ctx context.Context, athleteID int64) ([]types.MetricWithValue, error)
}

// SessionTracker runs the exercise session lifecycle.
type SessionTracker interface {
	Start(ctx context.Context, slotID int64, actor string) (*types.Session, error)
	UpdateProgress(ctx context.Context, statsID int64, p types.Progress, actor string) (*types.ExerciseStats, error)
	End(ctx context.Context, historyID int64, p types.Progress, actor string) (*types.Session, error)
	Today(ctx context.Context, athleteID int64) ([]types.TodayExercise, error)
}

// Handler implements the API handlers
type Handler struct {
	records  store.Records
	metrics  MetricsEngine
	sessions SessionTracker
	media    media.Store
	mediaCfg config.MediaConfig
	apiKey   string
	version  string
}

// NewHandler creates a Handler over the record store, the metrics engine,
// the session tracker and the media store.
func NewHandler(records store.Records, metrics MetricsEngine, sessions SessionTracker, blobs media.Store, mediaCfg config.MediaConfig, apiKey, version string) *Handler {
	if blobs == nil {
		blobs = media.NoopStore{}
	}
	return &Handler{
		records:  records,
		metrics:  metrics,
		sessions: sessions,
		media:    blobs,
		mediaCfg: mediaCfg,
		apiKey:   apiKey,
		version:  version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Database: "ok",
		Media:    h.media.Enabled(),
	}
	status := http.StatusOK

	if err := h.records.Ping(r.Context()); err != nil {
		slog.Error("health check failed",
			"component", "api",
			"action", "health",
			"error", err,
		)
		resp.Status = "unhealthy"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// AthleteMetrics handles GET /api/v1/athletes/{id}/metrics
func (h *Handler) AthleteMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	values, err := h.metrics.Compute(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// pathID parses a positive integer URL parameter, writing a 400 when it is
// malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %q", name, raw))
		return 0, false
	}
	return id, true
}

// decodeOptionalBody is decodeBody for endpoints where the body may be
// omitted; an empty body leaves v at its zero value.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return false
	}
	return true
}

// decodeBody decodes a JSON request body into v, keeping numbers exact when v
// is a map. It writes a 400 and returns false on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			WriteProblem(w, r, http.StatusBadRequest, "Request body is required")
			return false
		}
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return false
	}
	return true
}
