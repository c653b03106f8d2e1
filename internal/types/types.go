package types

import (
	"time"
)

// Session status values stored on exercise_history rows. StatusNotStarted is
// derived for the daily view and never persisted.
const (
	StatusNotStarted = "NOT STARTED"
	StatusInProgress = "IN PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// Exercise type codes.
const (
	ExerciseTypeSetsReps int64 = 1
	ExerciseTypeGoal     int64 = 2
)

// Metric is a named quantity owned by a coach for a sport. Aggregated metrics
// derive their value from the metrics listed in IDsMetrics via IDFormula.
type Metric struct {
	ID          int64     `json:"id"`
	IDFormula   *int64    `json:"id_formula"`
	IDCoach     int64     `json:"id_coach"`
	IDSport     int64     `json:"id_sport"`
	IDsMetrics  *string   `json:"ids_metrics"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Aggregated  bool      `json:"aggregated"`
	CreatedAt   time.Time `json:"created_at"`
}

// AthleteMetricRow is one non-deleted athlete_has_metric row joined to its
// metric definition.
type AthleteMetricRow struct {
	ID     int64    `json:"id"`
	Value  *float64 `json:"value"`
	Metric Metric   `json:"metric"`
}

// MetricWithValue is a metric definition together with the value computed
// for one athlete. Value is nil when it cannot be determined.
type MetricWithValue struct {
	Metric
	Value *float64 `json:"value"`
}

// Exercise is an exercise definition. Sets/Reps apply to type 1 exercises,
// Goal to type 2.
type Exercise struct {
	ID          int64   `json:"id"`
	IDType      int64   `json:"id_type"`
	IDSport     *int64  `json:"id_sport"`
	Name        string  `json:"name"`
	Sets        *int64  `json:"sets"`
	Reps        *int64  `json:"reps"`
	Goal        *int64  `json:"goal"`
	Description *string `json:"description"`
	VideoPath   *string `json:"video_path"`
	PhotoPath   *string `json:"photo_path"`
}

// Routine groups scheduled exercises for an athlete.
type Routine struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IDAthlete int64  `json:"id_athlete"`
}

// Slot is a routine_has_exercise row: one exercise scheduled on a weekday
// within a routine.
type Slot struct {
	ID         int64   `json:"id"`
	IDRoutine  int64   `json:"id_routine"`
	IDExercise int64   `json:"id_exercise"`
	DaysOfWeek string  `json:"days_of_week"`
	StartHour  string  `json:"start_hour"`
	EndHour    *string `json:"end_hour"`
}

// ExerciseStats records the planned and concluded figures of one session.
type ExerciseStats struct {
	ID            int64      `json:"id"`
	Sets          *int64     `json:"sets"`
	Reps          *int64     `json:"reps"`
	Goal          *int64     `json:"goal"`
	ConcludedSets *int64     `json:"concluded_sets"`
	ConcludedReps *int64     `json:"concluded_reps"`
	ConcludedGoal *int64     `json:"concluded_goal"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
}

// ExerciseHistory links a session's stats to the slot it was performed for.
type ExerciseHistory struct {
	ID                   int64      `json:"id"`
	IDExerciseStats      int64      `json:"id_exercise_stats"`
	IDRoutineHasExercise int64      `json:"id_routine_has_exercise"`
	Status               string     `json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	CreatedBy            string     `json:"created_by"`
	UpdatedAt            *time.Time `json:"updated_at"`
	UpdatedBy            *string    `json:"updated_by"`
	DeletedAt            *time.Time `json:"deleted_at"`
	DeletedBy            *string    `json:"deleted_by"`
}

// Progress carries concluded figures reported by a caller. Nil fields are
// left untouched.
type Progress struct {
	ConcludedSets *int64 `json:"concluded_sets"`
	ConcludedReps *int64 `json:"concluded_reps"`
	ConcludedGoal *int64 `json:"concluded_goal"`
}

// Empty reports whether no field is set.
func (p Progress) Empty() bool {
	return p.ConcludedSets == nil && p.ConcludedReps == nil && p.ConcludedGoal == nil
}

// Session is the pair of rows written when a session starts or ends.
type Session struct {
	Stats   ExerciseStats   `json:"exercise_stats"`
	History ExerciseHistory `json:"exercise_history"`
}

// TodayExercise describes one slot due today and the state of today's
// session for it.
type TodayExercise struct {
	ID                   int64      `json:"id"`
	RoutineHasExerciseID int64      `json:"routine_has_exercise_id"`
	Exercise             Exercise   `json:"exercise"`
	DaysOfWeek           string     `json:"days_of_week"`
	StartHour            string     `json:"start_hour"`
	EndHour              *string    `json:"end_hour"`
	Status               string     `json:"status"`
	ExerciseHistoryID    *int64     `json:"exercise_history_id"`
	ExerciseStatsID      *int64     `json:"exercise_stats_id"`
	Sets                 *int64     `json:"sets"`
	Reps                 *int64     `json:"reps"`
	Goal                 *int64     `json:"goal"`
	ConcludedSets        *int64     `json:"concluded_sets"`
	ConcludedReps        *int64     `json:"concluded_reps"`
	ConcludedGoal        *int64     `json:"concluded_goal"`
	StartDate            *time.Time `json:"start_date"`
	EndDate              *time.Time `json:"end_date"`
}

// StartSessionRequest is the body of POST /exercise-stats/start.
type StartSessionRequest struct {
	IDRoutineHasExercise int64  `json:"id_routine_has_exercise"`
	CreatedBy            string `json:"created_by,omitempty"`
}

// ProgressRequest is the body of the progress and end endpoints.
type ProgressRequest struct {
	Progress
	UpdatedBy string `json:"updated_by,omitempty"`
}

// MediaURL is a pre-signed download link.
type MediaURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Media    bool   `json:"media_enabled"`
}
