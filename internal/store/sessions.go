package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/pitchside/internal/types"
)

const historyColumns = `id, id_exercise_stats, id_routine_has_exercise, status,
	created_at, created_by, updated_at, updated_by, deleted_at, deleted_by`

const statsColumns = `id, sets, reps, goal, concluded_sets, concluded_reps, concluded_goal, start_date, end_date`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetSlot returns the non-deleted routine slot with the given id.
func (s *SQLStore) GetSlot(ctx context.Context, id int64) (*types.Slot, error) {
	q := `SELECT id, id_routine, id_exercise, days_of_week, start_hour, end_hour
		FROM routine_has_exercise WHERE id = ? AND deleted_at IS NULL`
	slot, err := scanSlot(s.db.QueryRowContext(ctx, s.rebind(q), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: routine exercise %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get routine exercise %d: %w", id, err)
	}
	return slot, nil
}

// GetExercise returns the non-deleted exercise with the given id.
func (s *SQLStore) GetExercise(ctx context.Context, id int64) (*types.Exercise, error) {
	q := `SELECT id, id_type, id_sport, name, sets, reps, goal, description, video_path, photo_path
		FROM exercise WHERE id = ? AND deleted_at IS NULL`

	var (
		e                                 types.Exercise
		sport, sets, reps, goal           sql.NullInt64
		description, videoPath, photoPath sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(q), id).Scan(&e.ID, &e.IDType, &sport, &e.Name,
		&sets, &reps, &goal, &description, &videoPath, &photoPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: exercise %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get exercise %d: %w", id, err)
	}
	e.IDSport = int64Ptr(sport)
	e.Sets = int64Ptr(sets)
	e.Reps = int64Ptr(reps)
	e.Goal = int64Ptr(goal)
	e.Description = stringPtr(description)
	e.VideoPath = stringPtr(videoPath)
	e.PhotoPath = stringPtr(photoPath)
	return &e, nil
}

// FindInProgress returns the non-deleted IN PROGRESS history row of the
// slot, or nil when there is none.
func (s *SQLStore) FindInProgress(ctx context.Context, slotID int64) (*types.ExerciseHistory, error) {
	q := `SELECT ` + historyColumns + ` FROM exercise_history
		WHERE id_routine_has_exercise = ? AND status = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC LIMIT 1`
	h, err := scanHistory(s.db.QueryRowContext(ctx, s.rebind(q), slotID, types.StatusInProgress))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find in-progress history for slot %d: %w", slotID, err)
	}
	return h, nil
}

// CreateSession inserts the stats row and the IN PROGRESS history row that
// references it in one transaction. A concurrent session for the same slot
// fails with ErrConflict.
func (s *SQLStore) CreateSession(ctx context.Context, slotID int64, seed types.ExerciseStats, actor string, now time.Time) (*types.Session, error) {
	var out types.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		insStats := `INSERT INTO exercise_stats (sets, reps, goal, concluded_sets, concluded_reps, concluded_goal, start_date)
			VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING ` + statsColumns
		stats, err := scanStats(tx.QueryRowContext(ctx, s.rebind(insStats),
			nullableInt64(seed.Sets), nullableInt64(seed.Reps), nullableInt64(seed.Goal),
			nullableInt64(seed.ConcludedSets), nullableInt64(seed.ConcludedReps), nullableInt64(seed.ConcludedGoal),
			s.timeArg(now)))
		if err != nil {
			return fmt.Errorf("insert exercise stats: %w", err)
		}

		insHistory := `INSERT INTO exercise_history (id_exercise_stats, id_routine_has_exercise, status, created_at, created_by)
			VALUES (?, ?, ?, ?, ?) RETURNING ` + historyColumns
		history, err := scanHistory(tx.QueryRowContext(ctx, s.rebind(insHistory),
			stats.ID, slotID, types.StatusInProgress, s.timeArg(now), actor))
		if err != nil {
			return s.mapWriteError(fmt.Errorf("insert exercise history: %w", err))
		}

		out = types.Session{Stats: *stats, History: *history}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStats returns the stats row with the given id.
func (s *SQLStore) GetStats(ctx context.Context, id int64) (*types.ExerciseStats, error) {
	q := `SELECT ` + statsColumns + ` FROM exercise_stats WHERE id = ?`
	st, err := scanStats(s.db.QueryRowContext(ctx, s.rebind(q), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: exercise stats %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get exercise stats %d: %w", id, err)
	}
	return st, nil
}

// UpdateProgress writes the non-nil concluded fields of p.
func (s *SQLStore) UpdateProgress(ctx context.Context, statsID int64, p types.Progress) (*types.ExerciseStats, error) {
	sets, args := progressAssignments(p)
	if len(sets) == 0 {
		return s.GetStats(ctx, statsID)
	}
	args = append(args, statsID)

	q := `UPDATE exercise_stats SET ` + strings.Join(sets, ", ") + ` WHERE id = ? RETURNING ` + statsColumns
	st, err := scanStats(s.db.QueryRowContext(ctx, s.rebind(q), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: exercise stats %d", ErrNotFound, statsID)
	}
	if err != nil {
		return nil, fmt.Errorf("update exercise stats %d: %w", statsID, err)
	}
	return st, nil
}

// GetHistory returns the non-deleted history row with the given id.
func (s *SQLStore) GetHistory(ctx context.Context, id int64) (*types.ExerciseHistory, error) {
	q := `SELECT ` + historyColumns + ` FROM exercise_history WHERE id = ? AND deleted_at IS NULL`
	h, err := scanHistory(s.db.QueryRowContext(ctx, s.rebind(q), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: exercise history %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get exercise history %d: %w", id, err)
	}
	return h, nil
}

// CompleteSession closes the stats row (end_date plus any supplied
// concluded fields) and marks the history row COMPLETED in one transaction.
func (s *SQLStore) CompleteSession(ctx context.Context, historyID, statsID int64, p types.Progress, actor string, now time.Time) (*types.Session, error) {
	var out types.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sets, args := progressAssignments(p)
		sets = append(sets, "end_date = ?")
		args = append(args, s.timeArg(now), statsID)

		upStats := `UPDATE exercise_stats SET ` + strings.Join(sets, ", ") + ` WHERE id = ? RETURNING ` + statsColumns
		stats, err := scanStats(tx.QueryRowContext(ctx, s.rebind(upStats), args...))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: exercise stats %d", ErrNotFound, statsID)
		}
		if err != nil {
			return fmt.Errorf("close exercise stats %d: %w", statsID, err)
		}

		upHistory := `UPDATE exercise_history SET status = ?, updated_at = ?, updated_by = ?
			WHERE id = ? AND deleted_at IS NULL RETURNING ` + historyColumns
		history, err := scanHistory(tx.QueryRowContext(ctx, s.rebind(upHistory),
			types.StatusCompleted, s.timeArg(now), actor, historyID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: exercise history %d", ErrNotFound, historyID)
		}
		if err != nil {
			return fmt.Errorf("complete exercise history %d: %w", historyID, err)
		}

		out = types.Session{Stats: *stats, History: *history}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RoutinesByAthlete returns the athlete's non-deleted routines.
func (s *SQLStore) RoutinesByAthlete(ctx context.Context, athleteID int64) ([]types.Routine, error) {
	q := `SELECT id, name, id_athlete FROM routine
		WHERE id_athlete = ? AND deleted_at IS NULL ORDER BY name, id`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), athleteID)
	if err != nil {
		return nil, fmt.Errorf("query routines of athlete %d: %w", athleteID, err)
	}
	defer rows.Close()

	var out []types.Routine
	for rows.Next() {
		var r types.Routine
		if err := rows.Scan(&r.ID, &r.Name, &r.IDAthlete); err != nil {
			return nil, fmt.Errorf("scan routine: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SlotsForDay returns the non-deleted slots of the given routines whose
// days_of_week equals day exactly.
func (s *SQLStore) SlotsForDay(ctx context.Context, routineIDs []int64, day string) ([]types.Slot, error) {
	if len(routineIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(routineIDs)+1)
	for _, id := range routineIDs {
		args = append(args, id)
	}
	args = append(args, day)

	q := `SELECT id, id_routine, id_exercise, days_of_week, start_hour, end_hour
		FROM routine_has_exercise
		WHERE id_routine IN (` + placeholders(len(routineIDs)) + `) AND days_of_week = ? AND deleted_at IS NULL
		ORDER BY start_hour, id`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query slots for %s: %w", day, err)
	}
	defer rows.Close()

	var out []types.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		out = append(out, *slot)
	}
	return out, rows.Err()
}

// LatestHistory returns the most recently created non-deleted history row
// of the slot, or nil when the slot has none.
func (s *SQLStore) LatestHistory(ctx context.Context, slotID int64) (*types.ExerciseHistory, error) {
	q := `SELECT ` + historyColumns + ` FROM exercise_history
		WHERE id_routine_has_exercise = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC LIMIT 1`
	h, err := scanHistory(s.db.QueryRowContext(ctx, s.rebind(q), slotID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest history for slot %d: %w", slotID, err)
	}
	return h, nil
}

// InProgressBefore returns the non-deleted IN PROGRESS history rows created
// before cutoff, oldest first.
func (s *SQLStore) InProgressBefore(ctx context.Context, cutoff time.Time) ([]types.ExerciseHistory, error) {
	q := `SELECT ` + historyColumns + ` FROM exercise_history
		WHERE status = ? AND deleted_at IS NULL AND created_at < ?
		ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), types.StatusInProgress, s.timeArg(cutoff))
	if err != nil {
		return nil, fmt.Errorf("query stale sessions: %w", err)
	}
	defer rows.Close()

	var out []types.ExerciseHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func progressAssignments(p types.Progress) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	if p.ConcludedSets != nil {
		sets = append(sets, "concluded_sets = ?")
		args = append(args, *p.ConcludedSets)
	}
	if p.ConcludedReps != nil {
		sets = append(sets, "concluded_reps = ?")
		args = append(args, *p.ConcludedReps)
	}
	if p.ConcludedGoal != nil {
		sets = append(sets, "concluded_goal = ?")
		args = append(args, *p.ConcludedGoal)
	}
	return sets, args
}

func scanSlot(r rowScanner) (*types.Slot, error) {
	var (
		slot types.Slot
		end  sql.NullString
	)
	if err := r.Scan(&slot.ID, &slot.IDRoutine, &slot.IDExercise, &slot.DaysOfWeek, &slot.StartHour, &end); err != nil {
		return nil, err
	}
	slot.EndHour = stringPtr(end)
	return &slot, nil
}

func scanStats(r rowScanner) (*types.ExerciseStats, error) {
	var (
		st                  types.ExerciseStats
		sets, reps, goal    sql.NullInt64
		cSets, cReps, cGoal sql.NullInt64
		start, end          dbTime
	)
	if err := r.Scan(&st.ID, &sets, &reps, &goal, &cSets, &cReps, &cGoal, &start, &end); err != nil {
		return nil, err
	}
	st.Sets = int64Ptr(sets)
	st.Reps = int64Ptr(reps)
	st.Goal = int64Ptr(goal)
	st.ConcludedSets = int64Ptr(cSets)
	st.ConcludedReps = int64Ptr(cReps)
	st.ConcludedGoal = int64Ptr(cGoal)
	st.StartDate = start.Time
	st.EndDate = end.ptr()
	return &st, nil
}

func scanHistory(r rowScanner) (*types.ExerciseHistory, error) {
	var (
		h                    types.ExerciseHistory
		created              dbTime
		updated, deleted     dbTime
		updatedBy, deletedBy sql.NullString
	)
	if err := r.Scan(&h.ID, &h.IDExerciseStats, &h.IDRoutineHasExercise, &h.Status,
		&created, &h.CreatedBy, &updated, &updatedBy, &deleted, &deletedBy); err != nil {
		return nil, err
	}
	h.CreatedAt = created.Time
	h.UpdatedAt = updated.ptr()
	h.UpdatedBy = stringPtr(updatedBy)
	h.DeletedAt = deleted.ptr()
	h.DeletedBy = stringPtr(deletedBy)
	return &h, nil
}
