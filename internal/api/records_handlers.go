package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/hyperengineering/pitchside/internal/store"
	"github.com/hyperengineering/pitchside/internal/validation"
)

// listRecords handles GET /api/v1/{resource}. Query parameters naming
// registered columns filter by equality.
func (h *Handler) listRecords(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.LookupTable(res.table)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		filter, err := queryFilter(t, r.URL.Query())
		if err != nil {
			WriteProblem(w, r, http.StatusBadRequest, err.Error())
			return
		}

		recs, err := h.records.FetchAll(r.Context(), res.table, filter)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// getRecord handles GET /api/v1/{resource}/{id}
func (h *Handler) getRecord(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		rec, err := h.records.FetchOne(r.Context(), res.table, id)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// createRecord handles POST /api/v1/{resource}
func (h *Handler) createRecord(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.insert(w, r, res, nil)
	}
}

// createChild handles POST routes that nest a record under its parent,
// e.g. POST /routines/{id}/exercises. The parent id from the path is
// written to fk and wins over any value in the body.
func (h *Handler) createChild(res resource, parentTable, fk string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if _, err := h.records.FetchOne(r.Context(), parentTable, parentID); err != nil {
			MapStoreError(w, r, err)
			return
		}
		h.insert(w, r, res, map[string]any{fk: parentID})
	}
}

func (h *Handler) insert(w http.ResponseWriter, r *http.Request, res resource, fixed map[string]any) {
	t, err := store.LookupTable(res.table)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	if body == nil {
		body = map[string]any{}
	}
	actor := takeActor(r, body, "created_by")
	for k, v := range fixed {
		body[k] = v
	}

	fields, errs := validateFields(t, res, body, false)
	if errs != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}
	if actor == "" {
		WriteProblem(w, r, http.StatusBadRequest, "Actor is required (created_by or "+ActorHeader+" header)")
		return
	}

	rec, err := h.records.Insert(r.Context(), res.table, fields, actor)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	slog.Info("record created",
		"component", "api",
		"action", "insert",
		"table", res.table,
		"id", rec.ID(),
		"actor", actor,
	)
	writeJSON(w, http.StatusCreated, rec)
}

// updateRecord handles PUT /api/v1/{resource}/{id}. Only supplied fields
// are written.
func (h *Handler) updateRecord(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		t, err := store.LookupTable(res.table)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}

		var body map[string]any
		if !decodeBody(w, r, &body) {
			return
		}
		if body == nil {
			body = map[string]any{}
		}
		actor := takeActor(r, body, "updated_by")

		fields, errs := validateFields(t, res, body, true)
		if errs != nil {
			WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
			return
		}
		if len(fields) > 0 && actor == "" {
			WriteProblem(w, r, http.StatusBadRequest, "Actor is required (updated_by or "+ActorHeader+" header)")
			return
		}

		rec, err := h.records.Update(r.Context(), res.table, id, fields, actor)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// deleteRecord handles DELETE /api/v1/{resource}/{id}
func (h *Handler) deleteRecord(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		actor := ActorFromContext(r.Context())
		if actor == "" {
			WriteProblem(w, r, http.StatusBadRequest, "Actor is required ("+ActorHeader+" header)")
			return
		}

		if _, err := h.records.SoftDelete(r.Context(), res.table, id, actor); err != nil {
			MapStoreError(w, r, err)
			return
		}

		slog.Info("record deleted",
			"component", "api",
			"action", "soft_delete",
			"table", res.table,
			"id", id,
			"actor", actor,
		)
		w.WriteHeader(http.StatusNoContent)
	}
}

// listRelated handles GET routes that join through a link table, e.g.
// the teams of an athlete through enrollment.
func (h *Handler) listRelated(rel store.Relation, parentTable string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if _, err := h.records.FetchOne(r.Context(), parentTable, id); err != nil {
			MapStoreError(w, r, err)
			return
		}
		recs, err := h.records.FetchRelated(r.Context(), rel, id)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// listChildren handles GET routes returning the rows of table whose fk
// column references the parent in the path.
func (h *Handler) listChildren(parentTable, table, fk string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if _, err := h.records.FetchOne(r.Context(), parentTable, id); err != nil {
			MapStoreError(w, r, err)
			return
		}
		recs, err := h.records.FetchAll(r.Context(), table, map[string]any{fk: id})
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// validateFields runs the column checks and then the resource rules.
func validateFields(t store.Table, res resource, body map[string]any, partial bool) (map[string]any, []validation.ValidationError) {
	fields, errs := validation.Record(t, body, partial)
	if errs != nil {
		return nil, errs
	}
	if res.check != nil {
		if errs := res.check(fields); len(errs) > 0 {
			return nil, errs
		}
	}
	return fields, nil
}

// takeActor removes the audit field key from body and resolves the actor
// from it or the X-Actor header.
func takeActor(r *http.Request, body map[string]any, key string) string {
	v, _ := body[key].(string)
	delete(body, key)
	return resolveActor(r, v)
}

// queryFilter converts query parameters into an equality filter on the
// table's registered columns.
func queryFilter(t store.Table, q url.Values) (map[string]any, error) {
	if len(q) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filter := make(map[string]any, len(q))
	for _, k := range keys {
		col, ok := t.Column(k)
		if !ok {
			return nil, fmt.Errorf("cannot filter %s on %q", t.Name, k)
		}
		raw := q.Get(k)
		switch col.Kind {
		case store.KindInt:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("filter %q must be an integer", k)
			}
			filter[k] = n
		case store.KindFloat:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("filter %q must be a number", k)
			}
			filter[k] = f
		case store.KindBool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("filter %q must be a boolean", k)
			}
			filter[k] = b
		default:
			filter[k] = raw
		}
	}
	return filter, nil
}
