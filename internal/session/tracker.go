// Package session tracks exercise sessions against scheduled routine slots.
//
// A slot moves from NOT STARTED (derived, never stored) to IN PROGRESS when a
// session starts and to COMPLETED when it ends. At most one IN PROGRESS
// session exists per slot.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyperengineering/pitchside/internal/store"
	"github.com/hyperengineering/pitchside/internal/types"
)

var (
	// ErrAlreadyInProgress is returned when a slot already has an open session.
	ErrAlreadyInProgress = fmt.Errorf("%w: exercise already in progress", store.ErrConflict)

	// ErrAlreadyCompleted is returned when ending a session that has ended.
	ErrAlreadyCompleted = fmt.Errorf("%w: exercise already completed", store.ErrConflict)

	// ErrNoProgress is returned when a progress update carries no usable fields.
	ErrNoProgress = fmt.Errorf("%w: no progress data provided", store.ErrInvalidInput)

	// ErrActorRequired is returned when a mutating call has no caller identity.
	ErrActorRequired = fmt.Errorf("%w: actor is required", store.ErrInvalidInput)
)

// Store defines the record operations the tracker needs.
type Store interface {
	GetSlot(ctx context.Context, id int64) (*types.Slot, error)
	GetExercise(ctx context.Context, id int64) (*types.Exercise, error)
	FindInProgress(ctx context.Context, slotID int64) (*types.ExerciseHistory, error)
	CreateSession(ctx context.Context, slotID int64, seed types.ExerciseStats, actor string, now time.Time) (*types.Session, error)
	GetStats(ctx context.Context, id int64) (*types.ExerciseStats, error)
	UpdateProgress(ctx context.Context, statsID int64, p types.Progress) (*types.ExerciseStats, error)
	GetHistory(ctx context.Context, id int64) (*types.ExerciseHistory, error)
	CompleteSession(ctx context.Context, historyID, statsID int64, p types.Progress, actor string, now time.Time) (*types.Session, error)
	RoutinesByAthlete(ctx context.Context, athleteID int64) ([]types.Routine, error)
	SlotsForDay(ctx context.Context, routineIDs []int64, day string) ([]types.Slot, error)
	LatestHistory(ctx context.Context, slotID int64) (*types.ExerciseHistory, error)
	InProgressBefore(ctx context.Context, cutoff time.Time) ([]types.ExerciseHistory, error)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the zone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// Tracker implements the exercise session lifecycle.
type Tracker struct {
	store  Store
	now    func() time.Time
	loc    *time.Location
	tracer trace.Tracer
}

// NewTracker creates a Tracker. Without options it uses the wall clock and UTC.
func NewTracker(s Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:  s,
		now:    time.Now,
		loc:    time.UTC,
		tracer: otel.Tracer("github.com/hyperengineering/pitchside/internal/session"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start opens a session for the slot, seeding the planned figures from the
// slot's exercise.
func (t *Tracker) Start(ctx context.Context, slotID int64, actor string) (*types.Session, error) {
	ctx, span := t.tracer.Start(ctx, "session.Start", trace.WithAttributes(attribute.Int64("slot.id", slotID)))
	defer span.End()

	if actor == "" {
		return nil, fail(span, ErrActorRequired)
	}

	slot, err := t.store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, fail(span, err)
	}

	open, err := t.store.FindInProgress(ctx, slotID)
	if err != nil {
		return nil, fail(span, err)
	}
	if open != nil {
		return nil, fail(span, ErrAlreadyInProgress)
	}

	exercise, err := t.store.GetExercise(ctx, slot.IDExercise)
	if err != nil {
		return nil, fail(span, err)
	}

	sess, err := t.store.CreateSession(ctx, slotID, seedStats(exercise), actor, t.now().UTC())
	if errors.Is(err, store.ErrConflict) {
		// Lost a race with a concurrent start for the same slot.
		return nil, fail(span, ErrAlreadyInProgress)
	}
	if err != nil {
		return nil, fail(span, err)
	}

	slog.Info("exercise session started",
		"component", "session",
		"action", "start",
		"slot_id", slotID,
		"history_id", sess.History.ID,
		"stats_id", sess.Stats.ID,
		"actor", actor,
	)
	return sess, nil
}

// seedStats returns the planned figures for a new session with the
// concluded counterparts zeroed.
func seedStats(e *types.Exercise) types.ExerciseStats {
	zero := func() *int64 { v := int64(0); return &v }
	switch e.IDType {
	case types.ExerciseTypeSetsReps:
		return types.ExerciseStats{
			Sets:          e.Sets,
			Reps:          e.Reps,
			ConcludedSets: zero(),
			ConcludedReps: zero(),
		}
	case types.ExerciseTypeGoal:
		return types.ExerciseStats{
			Goal:          e.Goal,
			ConcludedGoal: zero(),
		}
	default:
		return types.ExerciseStats{}
	}
}

// UpdateProgress records concluded figures on an open session. Either the
// sets/reps pair or a goal must be supplied; when both are, only the pair is
// written.
func (t *Tracker) UpdateProgress(ctx context.Context, statsID int64, p types.Progress, actor string) (*types.ExerciseStats, error) {
	ctx, span := t.tracer.Start(ctx, "session.UpdateProgress", trace.WithAttributes(attribute.Int64("stats.id", statsID)))
	defer span.End()

	if actor == "" {
		return nil, fail(span, ErrActorRequired)
	}

	var upd types.Progress
	switch {
	case p.ConcludedSets != nil && p.ConcludedReps != nil:
		upd.ConcludedSets = p.ConcludedSets
		upd.ConcludedReps = p.ConcludedReps
	case p.ConcludedGoal != nil:
		upd.ConcludedGoal = p.ConcludedGoal
	default:
		return nil, fail(span, ErrNoProgress)
	}

	stats, err := t.store.UpdateProgress(ctx, statsID, upd)
	if err != nil {
		return nil, fail(span, err)
	}

	slog.Debug("exercise progress updated",
		"component", "session",
		"action", "progress",
		"stats_id", statsID,
		"actor", actor,
	)
	return stats, nil
}

// End closes the session recorded by the history row, applying any supplied
// concluded figures.
func (t *Tracker) End(ctx context.Context, historyID int64, p types.Progress, actor string) (*types.Session, error) {
	ctx, span := t.tracer.Start(ctx, "session.End", trace.WithAttributes(attribute.Int64("history.id", historyID)))
	defer span.End()

	if actor == "" {
		return nil, fail(span, ErrActorRequired)
	}

	history, err := t.store.GetHistory(ctx, historyID)
	if err != nil {
		return nil, fail(span, err)
	}
	if history.Status == types.StatusCompleted {
		return nil, fail(span, ErrAlreadyCompleted)
	}

	sess, err := t.store.CompleteSession(ctx, historyID, history.IDExerciseStats, p, actor, t.now().UTC())
	if err != nil {
		return nil, fail(span, err)
	}

	slog.Info("exercise session ended",
		"component", "session",
		"action", "end",
		"slot_id", history.IDRoutineHasExercise,
		"history_id", historyID,
		"stats_id", history.IDExerciseStats,
		"actor", actor,
	)
	return sess, nil
}

// Today lists the athlete's slots scheduled for the current weekday with the
// state of today's session, ordered by start hour. A session created on an
// earlier day leaves the slot NOT STARTED.
func (t *Tracker) Today(ctx context.Context, athleteID int64) ([]types.TodayExercise, error) {
	ctx, span := t.tracer.Start(ctx, "session.Today", trace.WithAttributes(attribute.Int64("athlete.id", athleteID)))
	defer span.End()

	now := t.now().In(t.loc)
	day := strings.ToUpper(now.Weekday().String())
	out := []types.TodayExercise{}

	routines, err := t.store.RoutinesByAthlete(ctx, athleteID)
	if err != nil {
		return nil, fail(span, err)
	}
	if len(routines) == 0 {
		return out, nil
	}
	routineIDs := make([]int64, len(routines))
	for i, r := range routines {
		routineIDs[i] = r.ID
	}

	slots, err := t.store.SlotsForDay(ctx, routineIDs, day)
	if err != nil {
		return nil, fail(span, err)
	}

	for _, slot := range slots {
		exercise, err := t.store.GetExercise(ctx, slot.IDExercise)
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("scheduled exercise missing",
				"component", "session",
				"action", "today",
				"slot_id", slot.ID,
				"exercise_id", slot.IDExercise,
			)
			continue
		}
		if err != nil {
			return nil, fail(span, err)
		}

		item := types.TodayExercise{
			ID:                   exercise.ID,
			RoutineHasExerciseID: slot.ID,
			Exercise:             *exercise,
			DaysOfWeek:           slot.DaysOfWeek,
			StartHour:            slot.StartHour,
			EndHour:              slot.EndHour,
			Status:               types.StatusNotStarted,
		}

		latest, err := t.store.LatestHistory(ctx, slot.ID)
		if err != nil {
			return nil, fail(span, err)
		}
		if latest != nil && sameDay(latest.CreatedAt.In(t.loc), now) {
			stats, err := t.store.GetStats(ctx, latest.IDExerciseStats)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, fail(span, err)
			}
			applyHistory(&item, latest, stats)
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartHour < out[j].StartHour })
	span.SetAttributes(attribute.Int("session.today.count", len(out)))
	return out, nil
}

func applyHistory(item *types.TodayExercise, h *types.ExerciseHistory, stats *types.ExerciseStats) {
	historyID := h.ID
	item.Status = h.Status
	item.ExerciseHistoryID = &historyID
	if stats == nil {
		return
	}
	statsID := stats.ID
	start := stats.StartDate
	item.ExerciseStatsID = &statsID
	item.Sets = stats.Sets
	item.Reps = stats.Reps
	item.Goal = stats.Goal
	item.ConcludedSets = stats.ConcludedSets
	item.ConcludedReps = stats.ConcludedReps
	item.ConcludedGoal = stats.ConcludedGoal
	item.StartDate = &start
	item.EndDate = stats.EndDate
}

// CloseStale ends every IN PROGRESS session created before the start of
// today and returns how many were closed. Failures on individual sessions are
// logged and skipped.
func (t *Tracker) CloseStale(ctx context.Context, actor string) (int, error) {
	ctx, span := t.tracer.Start(ctx, "session.CloseStale")
	defer span.End()

	if actor == "" {
		return 0, fail(span, ErrActorRequired)
	}

	now := t.now().In(t.loc)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, t.loc)

	stale, err := t.store.InProgressBefore(ctx, cutoff.UTC())
	if err != nil {
		return 0, fail(span, err)
	}

	closed := 0
	for _, h := range stale {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		if _, err := t.End(ctx, h.ID, types.Progress{}, actor); err != nil {
			slog.Warn("stale session not closed",
				"component", "session",
				"action", "close_stale",
				"history_id", h.ID,
				"error", err,
			)
			continue
		}
		closed++
	}

	span.SetAttributes(attribute.Int("session.stale.closed", closed))
	return closed, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
