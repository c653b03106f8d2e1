package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Record is a row of a registered table keyed by column name.
type Record map[string]any

// ID returns the record id, or 0 when absent.
func (r Record) ID() int64 {
	v, _ := r["id"].(int64)
	return v
}

// Text returns a text column, or "" when null or absent.
func (r Record) Text(col string) string {
	v, _ := r[col].(string)
	return v
}

// Relation joins a target table through a link table, e.g. the teams of an
// athlete through enrollment.
type Relation struct {
	Link      string
	LinkKey   string
	Target    string
	TargetKey string
}

var (
	RelAthleteTeams = Relation{Link: TableEnrollment, LinkKey: "id_athlete", Target: TableTeam, TargetKey: "id_team"}
	RelTeamAthletes = Relation{Link: TableEnrollment, LinkKey: "id_team", Target: TableAthlete, TargetKey: "id_athlete"}
)

// FetchAll returns the non-deleted rows of table matching every column in
// filter, in the table's default order.
func (s *SQLStore) FetchAll(ctx context.Context, table string, filter map[string]any) ([]Record, error) {
	t, err := LookupTable(table)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !t.filterable(k) {
			return nil, fmt.Errorf("%w: cannot filter %s on %q", ErrInvalidInput, t.Name, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	args := make([]any, 0, len(keys))
	fmt.Fprintf(&b, "SELECT * FROM %s WHERE deleted_at IS NULL", t.Name)
	for _, k := range keys {
		fmt.Fprintf(&b, " AND %s = ?", k)
		args = append(args, filter[k])
	}
	b.WriteString(orderClause(t, ""))

	rows, err := s.db.QueryContext(ctx, s.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", t.Name, err)
	}
	return scanRecords(rows, t)
}

// FetchOne returns the non-deleted row of table with the given id.
func (s *SQLStore) FetchOne(ctx context.Context, table string, id int64) (Record, error) {
	t, err := LookupTable(table)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT * FROM %s WHERE id = ? AND deleted_at IS NULL", t.Name)
	rows, err := s.db.QueryContext(ctx, s.rebind(q), id)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %d: %w", t.Name, id, err)
	}
	return singleRecord(rows, t, id)
}

// Insert writes a new row stamped with created_at and created_by.
func (s *SQLStore) Insert(ctx context.Context, table string, fields map[string]any, actor string) (Record, error) {
	t, err := LookupTable(table)
	if err != nil {
		return nil, err
	}
	if actor == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}
	cols, args, err := writableColumns(t, fields)
	if err != nil {
		return nil, err
	}

	cols = append(cols, "created_at", "created_by")
	args = append(args, s.timeArg(s.now()), actor)

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		t.Name, strings.Join(cols, ", "), placeholders(len(cols)))
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, s.mapWriteError(fmt.Errorf("insert %s: %w", t.Name, err))
	}
	recs, err := scanRecords(rows, t)
	if err != nil {
		return nil, s.mapWriteError(err)
	}
	if len(recs) != 1 {
		return nil, fmt.Errorf("insert %s: expected 1 returned row, got %d", t.Name, len(recs))
	}
	return recs[0], nil
}

// Update writes only the supplied fields and stamps updated_at/updated_by.
// With no fields the current row is returned unchanged.
func (s *SQLStore) Update(ctx context.Context, table string, id int64, fields map[string]any, actor string) (Record, error) {
	t, err := LookupTable(table)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return s.FetchOne(ctx, table, id)
	}
	if actor == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}
	cols, args, err := writableColumns(t, fields)
	if err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(cols)+2)
	for _, c := range cols {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "updated_at = ?", "updated_by = ?")
	args = append(args, s.timeArg(s.now()), actor, id)

	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND deleted_at IS NULL RETURNING *",
		t.Name, strings.Join(sets, ", "))
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, s.mapWriteError(fmt.Errorf("update %s %d: %w", t.Name, id, err))
	}
	rec, err := singleRecord(rows, t, id)
	return rec, s.mapWriteError(err)
}

// SoftDelete marks a row deleted by actor. Deleted rows are invisible to
// every other read.
func (s *SQLStore) SoftDelete(ctx context.Context, table string, id int64, actor string) (Record, error) {
	t, err := LookupTable(table)
	if err != nil {
		return nil, err
	}
	if actor == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}

	q := fmt.Sprintf("UPDATE %s SET deleted_at = ?, deleted_by = ? WHERE id = ? AND deleted_at IS NULL RETURNING *", t.Name)
	rows, err := s.db.QueryContext(ctx, s.rebind(q), s.timeArg(s.now()), actor, id)
	if err != nil {
		return nil, fmt.Errorf("delete %s %d: %w", t.Name, id, err)
	}
	return singleRecord(rows, t, id)
}

// FetchRelated returns the non-deleted target rows linked to id through the
// relation's link table.
func (s *SQLStore) FetchRelated(ctx context.Context, rel Relation, id int64) ([]Record, error) {
	link, err := LookupTable(rel.Link)
	if err != nil {
		return nil, err
	}
	target, err := LookupTable(rel.Target)
	if err != nil {
		return nil, err
	}
	if !link.filterable(rel.LinkKey) || !link.filterable(rel.TargetKey) {
		return nil, fmt.Errorf("%w: invalid relation %s -> %s", ErrInvalidInput, rel.Link, rel.Target)
	}

	q := fmt.Sprintf(`SELECT t.* FROM %s t
		JOIN %s l ON l.%s = t.id
		WHERE l.%s = ? AND l.deleted_at IS NULL AND t.deleted_at IS NULL%s`,
		target.Name, link.Name, rel.TargetKey, rel.LinkKey, orderClause(target, "t."))
	rows, err := s.db.QueryContext(ctx, s.rebind(q), id)
	if err != nil {
		return nil, fmt.Errorf("fetch %s of %s %d: %w", target.Name, link.Name, id, err)
	}
	return scanRecords(rows, target)
}

func orderClause(t Table, prefix string) string {
	if t.OrderBy == "" || t.OrderBy == "id" {
		return " ORDER BY " + prefix + "id"
	}
	return " ORDER BY " + prefix + t.OrderBy + ", " + prefix + "id"
}

// writableColumns checks fields against the registry and returns the
// column names in a stable order with their bound values.
func writableColumns(t Table, fields map[string]any) ([]string, []any, error) {
	cols := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := t.Column(k); !ok {
			return nil, nil, fmt.Errorf("%w: %s has no writable column %q", ErrInvalidInput, t.Name, k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = fields[c]
	}
	return cols, args, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func singleRecord(rows *sql.Rows, t Table, id int64) (Record, error) {
	recs, err := scanRecords(rows, t)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, t.Name, id)
	}
	return recs[0], nil
}

// scanRecords reads every row into a Record and closes rows.
func scanRecords(rows *sql.Rows, t Table) ([]Record, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	recs := []Record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}

		rec := make(Record, len(cols))
		for i, c := range cols {
			kind, known := t.readKind(c)
			rec[c] = normalise(vals[i], kind, known)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// normalise converts driver values into the JSON-friendly form shared by
// both dialects.
func normalise(v any, kind Kind, known bool) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil || !known {
		return v
	}

	switch kind {
	case KindBool:
		switch x := v.(type) {
		case int64:
			return x != 0
		case bool:
			return x
		}
	case KindTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC().Format(time.RFC3339Nano)
		case string:
			if parsed, err := parseTimestamp(x); err == nil {
				return parsed.Format(time.RFC3339Nano)
			}
		}
	case KindFloat:
		if x, ok := v.(int64); ok {
			return float64(x)
		}
	case KindInt:
		switch x := v.(type) {
		case int32:
			return int64(x)
		case float64:
			return int64(x)
		}
	}
	return v
}
