package api

import (
	"log/slog"
	"net/http"

	"github.com/hyperengineering/pitchside/internal/types"
	"github.com/hyperengineering/pitchside/internal/validation"
)

// StartSession handles POST /api/v1/exercise-stats/start
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req types.StartSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IDRoutineHasExercise <= 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
			{Field: "id_routine_has_exercise", Message: "must be a positive integer"},
		})
		return
	}

	actor := resolveActor(r, req.CreatedBy)
	sess, err := h.sessions.Start(r.Context(), req.IDRoutineHasExercise, actor)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	slog.Info("session started",
		"component", "api",
		"action", "start_session",
		"slot_id", req.IDRoutineHasExercise,
		"history_id", sess.History.ID,
		"actor", actor,
	)
	writeJSON(w, http.StatusCreated, sess)
}

// UpdateProgress handles PATCH /api/v1/exercise-stats/{id}/progress
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	statsID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req types.ProgressRequest
	if !decodeBody(w, r, &req) {
		return
	}

	stats, err := h.sessions.UpdateProgress(r.Context(), statsID, req.Progress, resolveActor(r, req.UpdatedBy))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// EndSession handles PATCH /api/v1/exercise-stats/history/{id}/end
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	historyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req types.ProgressRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	actor := resolveActor(r, req.UpdatedBy)
	sess, err := h.sessions.End(r.Context(), historyID, req.Progress, actor)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	slog.Info("session ended",
		"component", "api",
		"action", "end_session",
		"history_id", historyID,
		"actor", actor,
	)
	writeJSON(w, http.StatusOK, sess)
}

// TodayExercises handles GET /api/v1/exercise-stats/today/{athlete_id}
func (h *Handler) TodayExercises(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := pathID(w, r, "athlete_id")
	if !ok {
		return
	}

	items, err := h.sessions.Today(r.Context(), athleteID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
