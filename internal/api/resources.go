package api

import (
	"github.com/hyperengineering/pitchside/internal/store"
	"github.com/hyperengineering/pitchside/internal/validation"
)

// Weekdays are the accepted values of a slot's days_of_week.
var Weekdays = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// Formula codes accepted on a metric.
const (
	minFormula = 1
	maxFormula = 4
)

// resource exposes a registered table as a REST collection.
type resource struct {
	path     string
	table    string
	readOnly bool
	// check adds rules beyond the column kinds. It sees converted values.
	check func(fields map[string]any) []validation.ValidationError
	photo bool
	video bool
}

var (
	slotResource         = resource{path: "routine-exercises", table: store.TableSlot, check: checkSlot}
	excludedDateResource = resource{path: "excluded-dates", table: store.TableExcludedDate}
)

var resources = []resource{
	{path: "athletes", table: store.TableAthlete, photo: true},
	{path: "coaches", table: store.TableCoach, photo: true},
	{path: "teams", table: store.TableTeam, photo: true},
	{path: "sports", table: store.TableSport, photo: true},
	{path: "enrollments", table: store.TableEnrollment},
	{path: "exercises", table: store.TableExercise, photo: true, video: true},
	{path: "type-exercises", table: store.TableTypeExercise, readOnly: true},
	{path: "routines", table: store.TableRoutine},
	slotResource,
	excludedDateResource,
	{path: "metrics", table: store.TableMetric, check: checkMetric},
	{path: "athlete-metrics", table: store.TableAthleteMetric},
	{path: "formulas", table: store.TableFormula, readOnly: true},
}

func checkSlot(fields map[string]any) []validation.ValidationError {
	var c validation.Collector
	if day, ok := fields["days_of_week"].(string); ok {
		c.Add(validation.ValidateEnum("days_of_week", day, Weekdays))
	}
	return c.Errors()
}

func checkMetric(fields map[string]any) []validation.ValidationError {
	var c validation.Collector
	if ids, ok := fields["ids_metrics"].(string); ok {
		c.Add(validation.ValidateIDList("ids_metrics", ids))
	}
	if code, ok := fields["id_formula"].(int64); ok {
		c.Add(validation.ValidateRange("id_formula", float64(code), minFormula, maxFormula))
	}
	return c.Errors()
}
