package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperengineering/pitchside/internal/types"
)

// AthleteMetricRows returns every non-deleted athlete_has_metric row of the
// athlete joined to its non-deleted metric definition.
func (s *SQLStore) AthleteMetricRows(ctx context.Context, athleteID int64) ([]types.AthleteMetricRow, error) {
	q := `SELECT am.id, am.value,
			m.id, m.id_formula, m.id_coach, m.id_sport, m.ids_metrics,
			m.name, m.description, m.aggregated, m.created_at
		FROM athlete_has_metric am
		JOIN metric m ON m.id = am.id_metric
		WHERE am.id_athlete = ? AND am.deleted_at IS NULL AND m.deleted_at IS NULL
		ORDER BY m.id, am.id`

	rows, err := s.db.QueryContext(ctx, s.rebind(q), athleteID)
	if err != nil {
		return nil, fmt.Errorf("query athlete metrics: %w", err)
	}
	defer rows.Close()

	var out []types.AthleteMetricRow
	for rows.Next() {
		var (
			row         types.AthleteMetricRow
			value       sql.NullFloat64
			formula     sql.NullInt64
			ids         sql.NullString
			description sql.NullString
			createdAt   dbTime
		)
		if err := rows.Scan(&row.ID, &value,
			&row.Metric.ID, &formula, &row.Metric.IDCoach, &row.Metric.IDSport, &ids,
			&row.Metric.Name, &description, &row.Metric.Aggregated, &createdAt); err != nil {
			return nil, fmt.Errorf("scan athlete metric: %w", err)
		}
		row.Value = float64Ptr(value)
		row.Metric.IDFormula = int64Ptr(formula)
		row.Metric.IDsMetrics = stringPtr(ids)
		row.Metric.Description = stringPtr(description)
		row.Metric.CreatedAt = createdAt.Time
		out = append(out, row)
	}
	return out, rows.Err()
}
