package store

import (
	"fmt"
	"sort"
)

// Kind is the value type of a registered column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindBool
	// KindDate is a YYYY-MM-DD calendar date stored as text.
	KindDate
	// KindClock is an HH:MM time of day stored as text.
	KindClock
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindDate:
		return "date (YYYY-MM-DD)"
	case KindClock:
		return "time (HH:MM)"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Column is a writable column of a registered table.
type Column struct {
	Name     string
	Kind     Kind
	Required bool
}

// Table describes a table reachable through the generic record operations.
// Only registered columns may be written or filtered on.
type Table struct {
	Name    string
	Columns []Column
	OrderBy string
}

// Column returns the registered column called name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// readKind returns the kind used to normalise a column read back from the
// database, including the id and audit columns.
func (t Table) readKind(name string) (Kind, bool) {
	switch name {
	case "id":
		return KindInt, true
	case "created_at", "updated_at", "deleted_at":
		return KindTimestamp, true
	case "created_by", "updated_by", "deleted_by":
		return KindText, true
	}
	c, ok := t.Column(name)
	return c.Kind, ok
}

func (t Table) filterable(name string) bool {
	if name == "id" {
		return true
	}
	_, ok := t.Column(name)
	return ok
}

// Table names.
const (
	TableAthlete         = "athlete"
	TableCoach           = "coach"
	TableTeam            = "team"
	TableSport           = "sport"
	TableEnrollment      = "enrollment"
	TableExercise        = "exercise"
	TableTypeExercise    = "type_exercise"
	TableRoutine         = "routine"
	TableSlot            = "routine_has_exercise"
	TableExcludedDate    = "routine_exercise_excluded_dates"
	TableMetric          = "metric"
	TableFormula         = "formula"
	TableAthleteMetric   = "athlete_has_metric"
	TableExerciseStats   = "exercise_stats"
	TableExerciseHistory = "exercise_history"
)

var tables = map[string]Table{
	TableAthlete: {
		Name:    TableAthlete,
		OrderBy: "name",
		Columns: []Column{
			{Name: "name", Kind: KindText, Required: true},
			{Name: "email", Kind: KindText},
			{Name: "birth_date", Kind: KindDate},
			{Name: "photo_path", Kind: KindText},
		},
	},
	TableCoach: {
		Name:    TableCoach,
		OrderBy: "name",
		Columns: []Column{
			{Name: "name", Kind: KindText, Required: true},
			{Name: "id_level", Kind: KindInt},
			{Name: "photo_path", Kind: KindText},
		},
	},
	TableTeam: {
		Name:    TableTeam,
		OrderBy: "name",
		Columns: []Column{
			{Name: "id_coach", Kind: KindInt, Required: true},
			{Name: "id_sport", Kind: KindInt, Required: true},
			{Name: "name", Kind: KindText, Required: true},
			{Name: "photo_path", Kind: KindText},
		},
	},
	TableSport: {
		Name:    TableSport,
		OrderBy: "name",
		Columns: []Column{
			{Name: "name", Kind: KindText, Required: true},
			{Name: "description", Kind: KindText},
			{Name: "photo_path", Kind: KindText},
		},
	},
	TableEnrollment: {
		Name:    TableEnrollment,
		OrderBy: "id",
		Columns: []Column{
			{Name: "id_team", Kind: KindInt, Required: true},
			{Name: "id_athlete", Kind: KindInt, Required: true},
		},
	},
	TableExercise: {
		Name:    TableExercise,
		OrderBy: "name",
		Columns: []Column{
			{Name: "id_type", Kind: KindInt, Required: true},
			{Name: "id_sport", Kind: KindInt},
			{Name: "name", Kind: KindText, Required: true},
			{Name: "sets", Kind: KindInt},
			{Name: "reps", Kind: KindInt},
			{Name: "goal", Kind: KindInt},
			{Name: "description", Kind: KindText},
			{Name: "video_path", Kind: KindText},
			{Name: "photo_path", Kind: KindText},
		},
	},
	TableTypeExercise: {
		Name:    TableTypeExercise,
		OrderBy: "name",
		Columns: []Column{
			{Name: "name", Kind: KindText, Required: true},
		},
	},
	TableRoutine: {
		Name:    TableRoutine,
		OrderBy: "name",
		Columns: []Column{
			{Name: "name", Kind: KindText, Required: true},
			{Name: "id_athlete", Kind: KindInt, Required: true},
		},
	},
	TableSlot: {
		Name:    TableSlot,
		OrderBy: "start_hour",
		Columns: []Column{
			{Name: "id_routine", Kind: KindInt, Required: true},
			{Name: "id_exercise", Kind: KindInt, Required: true},
			{Name: "days_of_week", Kind: KindText, Required: true},
			{Name: "start_hour", Kind: KindClock, Required: true},
			{Name: "end_hour", Kind: KindClock},
		},
	},
	TableExcludedDate: {
		Name:    TableExcludedDate,
		OrderBy: "excluded_date",
		Columns: []Column{
			{Name: "id_routine_has_exercise", Kind: KindInt, Required: true},
			{Name: "excluded_date", Kind: KindDate, Required: true},
			{Name: "reason", Kind: KindText},
		},
	},
	TableMetric: {
		Name:    TableMetric,
		OrderBy: "name",
		Columns: []Column{
			{Name: "id_formula", Kind: KindInt},
			{Name: "id_coach", Kind: KindInt, Required: true},
			{Name: "id_sport", Kind: KindInt, Required: true},
			{Name: "ids_metrics", Kind: KindText},
			{Name: "name", Kind: KindText, Required: true},
			{Name: "description", Kind: KindText},
			{Name: "aggregated", Kind: KindBool, Required: true},
		},
	},
	TableFormula: {
		Name:    TableFormula,
		OrderBy: "id",
		Columns: []Column{
			{Name: "name", Kind: KindText, Required: true},
			{Name: "description", Kind: KindText},
		},
	},
	TableAthleteMetric: {
		Name:    TableAthleteMetric,
		OrderBy: "id",
		Columns: []Column{
			{Name: "id_metric", Kind: KindInt, Required: true},
			{Name: "id_athlete", Kind: KindInt, Required: true},
			{Name: "value", Kind: KindFloat},
		},
	},
}

// LookupTable returns the registered table called name.
func LookupTable(name string) (Table, error) {
	t, ok := tables[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %s", ErrUnknownResource, name)
	}
	return t, nil
}

// TableNames lists the registered tables in name order.
func TableNames() []string {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
