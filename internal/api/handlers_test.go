package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/pitchside/internal/config"
	"github.com/hyperengineering/pitchside/internal/media"
	"github.com/hyperengineering/pitchside/internal/session"
	"github.com/hyperengineering/pitchside/internal/store"
	"github.com/hyperengineering/pitchside/internal/types"
)

// --- Mock Implementations for Testing ---

// mockRecords implements store.Records over in-memory tables.
type mockRecords struct {
	rows       map[string]map[int64]store.Record
	nextID     int64
	pingErr    error
	lastActor  string
	lastFilter map[string]any
}

func newMockRecords() *mockRecords {
	return &mockRecords{rows: map[string]map[int64]store.Record{}}
}

func (m *mockRecords) seed(table string, rec store.Record) int64 {
	m.nextID++
	out := store.Record{"id": m.nextID}
	for k, v := range rec {
		out[k] = v
	}
	if m.rows[table] == nil {
		m.rows[table] = map[int64]store.Record{}
	}
	m.rows[table][m.nextID] = out
	return m.nextID
}

func (m *mockRecords) sorted(table string, keep func(store.Record) bool) []store.Record {
	out := []store.Record{}
	for _, rec := range m.rows[table] {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (m *mockRecords) FetchAll(ctx context.Context, table string, filter map[string]any) ([]store.Record, error) {
	if _, err := store.LookupTable(table); err != nil {
		return nil, err
	}
	m.lastFilter = filter
	return m.sorted(table, func(rec store.Record) bool {
		for k, v := range filter {
			if rec[k] != v {
				return false
			}
		}
		return true
	}), nil
}

func (m *mockRecords) FetchOne(ctx context.Context, table string, id int64) (store.Record, error) {
	rec, ok := m.rows[table][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", store.ErrNotFound, table, id)
	}
	return rec, nil
}

func (m *mockRecords) Insert(ctx context.Context, table string, fields map[string]any, actor string) (store.Record, error) {
	m.lastActor = actor
	rec := store.Record{"created_by": actor}
	for k, v := range fields {
		rec[k] = v
	}
	id := m.seed(table, rec)
	return m.rows[table][id], nil
}

func (m *mockRecords) Update(ctx context.Context, table string, id int64, fields map[string]any, actor string) (store.Record, error) {
	rec, err := m.FetchOne(ctx, table, id)
	if err != nil || len(fields) == 0 {
		return rec, err
	}
	m.lastActor = actor
	for k, v := range fields {
		rec[k] = v
	}
	rec["updated_by"] = actor
	return rec, nil
}

func (m *mockRecords) SoftDelete(ctx context.Context, table string, id int64, actor string) (store.Record, error) {
	rec, err := m.FetchOne(ctx, table, id)
	if err != nil {
		return nil, err
	}
	m.lastActor = actor
	delete(m.rows[table], id)
	return rec, nil
}

func (m *mockRecords) FetchRelated(ctx context.Context, rel store.Relation, id int64) ([]store.Record, error) {
	var out []store.Record
	for _, link := range m.sorted(rel.Link, func(r store.Record) bool { return r[rel.LinkKey] == id }) {
		if target, ok := m.rows[rel.Target][link[rel.TargetKey].(int64)]; ok {
			out = append(out, target)
		}
	}
	return out, nil
}

func (m *mockRecords) Ping(ctx context.Context) error {
	return m.pingErr
}

// mockEngine implements MetricsEngine.
type mockEngine struct {
	values []types.MetricWithValue
	err    error
	gotID  int64
}

func (m *mockEngine) Compute(ctx context.Context, athleteID int64) ([]types.MetricWithValue, error) {
	m.gotID = athleteID
	return m.values, m.err
}

// mockTracker implements SessionTracker with canned results.
type mockTracker struct {
	startErr  error
	gotSlot   int64
	gotActor  string
	gotProg   types.Progress
	today     []types.TodayExercise
	progressE error
}

func (m *mockTracker) Start(ctx context.Context, slotID int64, actor string) (*types.Session, error) {
	m.gotSlot, m.gotActor = slotID, actor
	if m.startErr != nil {
		return nil, m.startErr
	}
	if actor == "" {
		return nil, session.ErrActorRequired
	}
	return &types.Session{
		Stats:   types.ExerciseStats{ID: 5},
		History: types.ExerciseHistory{ID: 9, IDExerciseStats: 5, IDRoutineHasExercise: slotID, Status: types.StatusInProgress, CreatedBy: actor},
	}, nil
}

func (m *mockTracker) UpdateProgress(ctx context.Context, statsID int64, p types.Progress, actor string) (*types.ExerciseStats, error) {
	m.gotActor, m.gotProg = actor, p
	if m.progressE != nil {
		return nil, m.progressE
	}
	if p.Empty() {
		return nil, session.ErrNoProgress
	}
	return &types.ExerciseStats{ID: statsID, ConcludedSets: p.ConcludedSets, ConcludedReps: p.ConcludedReps}, nil
}

func (m *mockTracker) End(ctx context.Context, historyID int64, p types.Progress, actor string) (*types.Session, error) {
	m.gotActor, m.gotProg = actor, p
	return &types.Session{History: types.ExerciseHistory{ID: historyID, Status: types.StatusCompleted}}, nil
}

func (m *mockTracker) Today(ctx context.Context, athleteID int64) ([]types.TodayExercise, error) {
	return m.today, nil
}

// mockMedia implements media.Store in memory.
type mockMedia struct {
	objects map[string][]byte
	types   map[string]string
	deleted []string
}

func newMockMedia() *mockMedia {
	return &mockMedia{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *mockMedia) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, media.ErrObjectNotFound
	}
	return data, nil
}

func (m *mockMedia) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	m.objects[bucket+"/"+key] = data
	m.types[bucket+"/"+key] = contentType
	return nil
}

func (m *mockMedia) PresignedURL(ctx context.Context, bucket, key string) (string, time.Time, error) {
	return "https://s3.example.com/" + bucket + "/" + key + "?sig=x", time.Date(2024, 5, 15, 11, 0, 0, 0, time.UTC), nil
}

func (m *mockMedia) Delete(ctx context.Context, bucket, key string) error {
	m.deleted = append(m.deleted, bucket+"/"+key)
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *mockMedia) Enabled() bool { return true }

var testMediaCfg = config.MediaConfig{PhotoBucket: "photos", VideoBucket: "videos", MaxUploadBytes: 1 << 20}

type testEnv struct {
	records *mockRecords
	engine  *mockEngine
	tracker *mockTracker
	media   *mockMedia
	router  http.Handler
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	env := &testEnv{
		records: newMockRecords(),
		engine:  &mockEngine{},
		tracker: &mockTracker{},
		media:   newMockMedia(),
	}
	h := NewHandler(env.records, env.engine, env.tracker, env.media, testMediaCfg, apiKey, "1.2.3")
	env.router = NewRouter(h)
	return env
}

func (env *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

var asCoach = map[string]string{ActorHeader: "coach-ana"}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body %q: %v", w.Body.String(), err)
	}
	return v
}

// --- Health ---

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testAPIKey)

	w := env.do(http.MethodGet, "/api/v1/health", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (health is public)", w.Code)
	}
	resp := decodeJSON[types.HealthResponse](t, w)
	if resp.Status != "healthy" || resp.Version != "1.2.3" || resp.Database != "ok" || !resp.Media {
		t.Errorf("health = %+v", resp)
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	env := newTestEnv(t, "")
	env.records.pingErr = errors.New("database is locked")

	w := env.do(http.MethodGet, "/api/v1/health", "", nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if resp := decodeJSON[types.HealthResponse](t, w); resp.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", resp.Status)
	}
}

func TestRouter_AuthRequiredWhenKeyConfigured(t *testing.T) {
	env := newTestEnv(t, testAPIKey)
	captureLogs(t)

	if w := env.do(http.MethodGet, "/api/v1/athletes", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want 401", w.Code)
	}
	w := env.do(http.MethodGet, "/api/v1/athletes", "", map[string]string{"Authorization": "Bearer " + testAPIKey})
	if w.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", w.Code)
	}
}

// --- Generic CRUD ---

func TestCreateRecord(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/api/v1/athletes", `{"name": "Ana", "birth_date": "1990-04-01"}`, asCoach)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	rec := decodeJSON[map[string]any](t, w)
	if rec["name"] != "Ana" || rec["created_by"] != "coach-ana" {
		t.Errorf("created = %v", rec)
	}
}

func TestCreateRecord_ActorFromBody(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/api/v1/sports", `{"name": "Rowing", "created_by": "admin"}`, asCoach)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if env.records.lastActor != "admin" {
		t.Errorf("actor = %q, want body created_by to win", env.records.lastActor)
	}
}

func TestCreateRecord_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		headers    map[string]string
		wantStatus int
		wantField  string
	}{
		{"missing actor", "/api/v1/athletes", `{"name": "Ana"}`, nil, http.StatusBadRequest, ""},
		{"invalid json", "/api/v1/athletes", `{"name":`, asCoach, http.StatusBadRequest, ""},
		{"empty body", "/api/v1/athletes", "", asCoach, http.StatusBadRequest, ""},
		{"missing required", "/api/v1/athletes", `{"email": "a@b.c"}`, asCoach, http.StatusUnprocessableEntity, "name"},
		{"unknown field", "/api/v1/athletes", `{"name": "Ana", "nickname": "A"}`, asCoach, http.StatusUnprocessableEntity, "nickname"},
		{"bad formula code", "/api/v1/metrics", `{"id_coach": 1, "id_sport": 1, "name": "m", "aggregated": true, "id_formula": 5, "ids_metrics": "1,2"}`, asCoach, http.StatusUnprocessableEntity, "id_formula"},
		{"bad component list", "/api/v1/metrics", `{"id_coach": 1, "id_sport": 1, "name": "m", "aggregated": true, "id_formula": 1, "ids_metrics": "1;2"}`, asCoach, http.StatusUnprocessableEntity, "ids_metrics"},
		{"lowercase weekday", "/api/v1/routine-exercises", `{"id_routine": 1, "id_exercise": 1, "days_of_week": "monday", "start_hour": "08:00"}`, asCoach, http.StatusUnprocessableEntity, "days_of_week"},
		{"bad clock", "/api/v1/routine-exercises", `{"id_routine": 1, "id_exercise": 1, "days_of_week": "MONDAY", "start_hour": "8:00"}`, asCoach, http.StatusUnprocessableEntity, "start_hour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			captureLogs(t)

			w := env.do(http.MethodPost, tt.path, tt.body, tt.headers)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantField != "" {
				p := decodeJSON[ProblemWithErrors](t, w)
				if len(p.Errors) != 1 || p.Errors[0].Field != tt.wantField {
					t.Errorf("errors = %+v, want one on %s", p.Errors, tt.wantField)
				}
			}
			if len(env.records.rows) != 0 {
				t.Error("nothing should be written on a rejected request")
			}
		})
	}
}

func TestReadOnlyResources(t *testing.T) {
	env := newTestEnv(t, "")
	env.records.seed(store.TableFormula, store.Record{"name": "ratio"})

	if w := env.do(http.MethodGet, "/api/v1/formulas", "", nil); w.Code != http.StatusOK {
		t.Errorf("GET formulas: status = %d, want 200", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/v1/formulas", `{"name": "x"}`, asCoach); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST formulas: status = %d, want 405", w.Code)
	}
	if w := env.do(http.MethodDelete, "/api/v1/type-exercises/1", "", asCoach); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE type-exercises: status = %d, want 405", w.Code)
	}
}

func TestGetRecord(t *testing.T) {
	env := newTestEnv(t, "")
	captureLogs(t)
	id := env.records.seed(store.TableAthlete, store.Record{"name": "Ana"})

	w := env.do(http.MethodGet, fmt.Sprintf("/api/v1/athletes/%d", id), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if rec := decodeJSON[map[string]any](t, w); rec["name"] != "Ana" {
		t.Errorf("record = %v", rec)
	}

	if w := env.do(http.MethodGet, "/api/v1/athletes/999", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/v1/athletes/abc", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/v1/athletes/0", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("zero id: status = %d, want 400", w.Code)
	}
}

func TestListRecords_QueryFilter(t *testing.T) {
	env := newTestEnv(t, "")
	captureLogs(t)
	env.records.seed(store.TableRoutine, store.Record{"name": "A", "id_athlete": int64(1)})
	env.records.seed(store.TableRoutine, store.Record{"name": "B", "id_athlete": int64(2)})

	w := env.do(http.MethodGet, "/api/v1/routines?id_athlete=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	recs := decodeJSON[[]map[string]any](t, w)
	if len(recs) != 1 || recs[0]["name"] != "B" {
		t.Errorf("routines = %v, want only B", recs)
	}
	if env.records.lastFilter["id_athlete"] != int64(2) {
		t.Errorf("filter = %#v, want int64 id_athlete", env.records.lastFilter)
	}

	if w := env.do(http.MethodGet, "/api/v1/routines?deleted_by=x", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown filter column: status = %d, want 400", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/v1/routines?id_athlete=two", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("malformed filter value: status = %d, want 400", w.Code)
	}
}

func TestUpdateRecord(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.records.seed(store.TableAthlete, store.Record{"name": "Ana", "email": "old@example.com"})

	w := env.do(http.MethodPut, fmt.Sprintf("/api/v1/athletes/%d", id), `{"email": "new@example.com", "updated_by": "ana"}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	rec := decodeJSON[map[string]any](t, w)
	if rec["email"] != "new@example.com" || rec["name"] != "Ana" || rec["updated_by"] != "ana" {
		t.Errorf("updated = %v", rec)
	}
}

func TestUpdateRecord_NoFieldsNeedsNoActor(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.records.seed(store.TableAthlete, store.Record{"name": "Ana"})

	w := env.do(http.MethodPut, fmt.Sprintf("/api/v1/athletes/%d", id), `{}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if _, ok := decodeJSON[map[string]any](t, w)["updated_by"]; ok {
		t.Error("an empty update must leave the row untouched")
	}
}

func TestDeleteRecord(t *testing.T) {
	env := newTestEnv(t, "")
	captureLogs(t)
	id := env.records.seed(store.TableTeam, store.Record{"name": "U18"})
	path := fmt.Sprintf("/api/v1/teams/%d", id)

	if w := env.do(http.MethodDelete, path, "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("without actor: status = %d, want 400", w.Code)
	}
	w := env.do(http.MethodDelete, path, "", asCoach)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
	if w := env.do(http.MethodDelete, path, "", asCoach); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", w.Code)
	}
}

// --- Relations ---

func TestRelations(t *testing.T) {
	env := newTestEnv(t, "")
	captureLogs(t)
	ana := env.records.seed(store.TableAthlete, store.Record{"name": "Ana"})
	coach := env.records.seed(store.TableCoach, store.Record{"name": "Rui"})
	u18 := env.records.seed(store.TableTeam, store.Record{"name": "U18", "id_coach": coach})
	env.records.seed(store.TableTeam, store.Record{"name": "Seniors", "id_coach": int64(999)})
	env.records.seed(store.TableEnrollment, store.Record{"id_team": u18, "id_athlete": ana})

	tests := []struct {
		path      string
		wantCount int
	}{
		{fmt.Sprintf("/api/v1/athletes/%d/teams", ana), 1},
		{fmt.Sprintf("/api/v1/teams/%d/athletes", u18), 1},
		{fmt.Sprintf("/api/v1/coaches/%d/teams", coach), 1},
		{fmt.Sprintf("/api/v1/enrollments/team/%d", u18), 1},
		{fmt.Sprintf("/api/v1/enrollments/athlete/%d", ana), 1},
		{fmt.Sprintf("/api/v1/routines/athlete/%d", ana), 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.do(http.MethodGet, tt.path, "", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
			}
			if recs := decodeJSON[[]map[string]any](t, w); len(recs) != tt.wantCount {
				t.Errorf("len = %d, want %d (%v)", len(recs), tt.wantCount, recs)
			}
		})
	}

	if w := env.do(http.MethodGet, "/api/v1/athletes/999/teams", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing parent: status = %d, want 404", w.Code)
	}
}

func TestCreateChild_UsesPathParent(t *testing.T) {
	env := newTestEnv(t, "")
	routine := env.records.seed(store.TableRoutine, store.Record{"name": "Base", "id_athlete": int64(1)})

	w := env.do(http.MethodPost, fmt.Sprintf("/api/v1/routines/%d/exercises", routine),
		`{"id_routine": 777, "id_exercise": 3, "days_of_week": "FRIDAY", "start_hour": "07:30"}`, asCoach)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if rec := decodeJSON[map[string]any](t, w); rec["id_routine"] != float64(routine) {
		t.Errorf("id_routine = %v, want %d from the path", rec["id_routine"], routine)
	}

	captureLogs(t)
	if w := env.do(http.MethodPost, "/api/v1/routines/999/exercises", `{}`, asCoach); w.Code != http.StatusNotFound {
		t.Errorf("missing routine: status = %d, want 404", w.Code)
	}
}

// --- Metrics ---

func TestAthleteMetrics(t *testing.T) {
	env := newTestEnv(t, "")
	v := 0.5
	env.engine.values = []types.MetricWithValue{{Metric: types.Metric{ID: 3, Name: "ratio"}, Value: &v}}

	w := env.do(http.MethodGet, "/api/v1/athletes/7/metrics", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if env.engine.gotID != 7 {
		t.Errorf("athlete id = %d, want 7", env.engine.gotID)
	}
	got := decodeJSON[[]map[string]any](t, w)
	if len(got) != 1 || got[0]["value"] != 0.5 || got[0]["name"] != "ratio" {
		t.Errorf("metrics = %v", got)
	}
}

func TestAthleteMetrics_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t, "")
	env.engine.values = []types.MetricWithValue{}

	w := env.do(http.MethodGet, "/api/v1/athletes/7/metrics", "", nil)

	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", w.Body.String())
	}
}

// --- Sessions ---

func TestStartSession(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/api/v1/exercise-stats/start", `{"id_routine_has_exercise": 4, "created_by": "ana"}`, asCoach)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if env.tracker.gotSlot != 4 || env.tracker.gotActor != "ana" {
		t.Errorf("Start(%d, %q), want (4, ana)", env.tracker.gotSlot, env.tracker.gotActor)
	}
	sess := decodeJSON[types.Session](t, w)
	if sess.History.Status != types.StatusInProgress || sess.Stats.ID != 5 {
		t.Errorf("session = %+v", sess)
	}
}

func TestStartSession_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		headers    map[string]string
		startErr   error
		wantStatus int
	}{
		{"actor from header", `{"id_routine_has_exercise": 4}`, asCoach, nil, http.StatusCreated},
		{"no actor", `{"id_routine_has_exercise": 4}`, nil, nil, http.StatusBadRequest},
		{"missing slot id", `{}`, asCoach, nil, http.StatusUnprocessableEntity},
		{"already in progress", `{"id_routine_has_exercise": 4}`, asCoach, session.ErrAlreadyInProgress, http.StatusConflict},
		{"unknown slot", `{"id_routine_has_exercise": 4}`, asCoach, fmt.Errorf("%w: slot 4", store.ErrNotFound), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			captureLogs(t)
			env.tracker.startErr = tt.startErr

			w := env.do(http.MethodPost, "/api/v1/exercise-stats/start", tt.body, tt.headers)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestUpdateProgress(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPatch, "/api/v1/exercise-stats/5/progress", `{"concluded_sets": 2, "concluded_reps": 8}`, asCoach)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if env.tracker.gotProg.ConcludedSets == nil || *env.tracker.gotProg.ConcludedSets != 2 {
		t.Errorf("progress = %+v", env.tracker.gotProg)
	}

	captureLogs(t)
	if w := env.do(http.MethodPatch, "/api/v1/exercise-stats/5/progress", `{}`, asCoach); w.Code != http.StatusBadRequest {
		t.Errorf("no progress: status = %d, want 400", w.Code)
	}
}

func TestEndSession(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPatch, "/api/v1/exercise-stats/history/9/end", `{"concluded_goal": 40, "updated_by": "ana"}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if env.tracker.gotActor != "ana" || *env.tracker.gotProg.ConcludedGoal != 40 {
		t.Errorf("End actor=%q progress=%+v", env.tracker.gotActor, env.tracker.gotProg)
	}
	if sess := decodeJSON[types.Session](t, w); sess.History.Status != types.StatusCompleted {
		t.Errorf("status = %q, want COMPLETED", sess.History.Status)
	}
}

func TestEndSession_EmptyBody(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPatch, "/api/v1/exercise-stats/history/9/end", "", asCoach)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if !env.tracker.gotProg.Empty() {
		t.Errorf("progress = %+v, want empty", env.tracker.gotProg)
	}
}

func TestEndSession_BodyWithoutContentLength(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantGoal *int64
	}{
		{"empty chunked body", "", http.StatusOK, nil},
		{"chunked progress", `{"concluded_goal": 25}`, http.StatusOK, ptr(int64(25))},
		{"malformed", `{"concluded_goal":`, http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			captureLogs(t)

			req := httptest.NewRequest(http.MethodPatch, "/api/v1/exercise-stats/history/9/end", io.NopCloser(strings.NewReader(tt.body)))
			req.ContentLength = -1
			req.Header.Set(ActorHeader, "coach-rui")
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			got := env.tracker.gotProg.ConcludedGoal
			if (got == nil) != (tt.wantGoal == nil) || (got != nil && *got != *tt.wantGoal) {
				t.Errorf("concluded_goal = %v, want %v", got, tt.wantGoal)
			}
		})
	}
}

func TestTodayExercises(t *testing.T) {
	env := newTestEnv(t, "")
	env.tracker.today = []types.TodayExercise{{ID: 1, RoutineHasExerciseID: 1, Status: types.StatusNotStarted, StartHour: "08:00"}}

	w := env.do(http.MethodGet, "/api/v1/exercise-stats/today/3", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	items := decodeJSON[[]types.TodayExercise](t, w)
	if len(items) != 1 || items[0].Status != types.StatusNotStarted {
		t.Errorf("today = %+v", items)
	}
}

// --- Media ---

func TestGetPhoto(t *testing.T) {
	env := newTestEnv(t, "")
	captureLogs(t)
	withPhoto := env.records.seed(store.TableAthlete, store.Record{"name": "Ana", "photo_path": "ana.PNG"})
	noPhoto := env.records.seed(store.TableAthlete, store.Record{"name": "Rui"})
	lost := env.records.seed(store.TableAthlete, store.Record{"name": "Eva", "photo_path": "gone.jpg"})
	env.media.objects["photos/ana.PNG"] = []byte("png-bytes")

	w := env.do(http.MethodGet, fmt.Sprintf("/api/v1/athletes/%d/photo", withPhoto), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if w.Body.String() != "png-bytes" {
		t.Errorf("body = %q", w.Body.String())
	}

	for name, id := range map[string]int64{"empty path": noPhoto, "missing object": lost, "missing row": 999} {
		if w := env.do(http.MethodGet, fmt.Sprintf("/api/v1/athletes/%d/photo", id), "", nil); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", name, w.Code)
		}
	}
}

func TestGetVideoURL(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.records.seed(store.TableExercise, store.Record{"name": "Squat", "video_path": "squat.mp4"})

	w := env.do(http.MethodGet, fmt.Sprintf("/api/v1/exercises/%d/video-url", id), "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	u := decodeJSON[types.MediaURL](t, w)
	if !strings.Contains(u.URL, "videos/squat.mp4") || u.ExpiresAt.IsZero() {
		t.Errorf("url = %+v", u)
	}
}

func TestVideoRoutesOnlyOnExercises(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.records.seed(store.TableAthlete, store.Record{"name": "Ana"})

	if w := env.do(http.MethodGet, fmt.Sprintf("/api/v1/athletes/%d/video", id), "", nil); w.Code != http.StatusNotFound {
		t.Errorf("athlete video: status = %d, want 404", w.Code)
	}
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func (env *testEnv) upload(path, field, filename string, data []byte, actor string, t *testing.T) *httptest.ResponseRecorder {
	body, contentType := multipartBody(t, field, filename, data)
	req := httptest.NewRequest(http.MethodPut, path, body)
	req.Header.Set("Content-Type", contentType)
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestPutPhoto(t *testing.T) {
	env := newTestEnv(t, "")
	id := env.records.seed(store.TableCoach, store.Record{"name": "Rui", "photo_path": "old.png"})
	env.media.objects["photos/old.png"] = []byte("old")

	w := env.upload(fmt.Sprintf("/api/v1/coaches/%d/photo", id), "file", "Portrait.JPG", []byte("jpeg-bytes"), "rui", t)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	key := env.records.rows[store.TableCoach][id].Text("photo_path")
	if !strings.HasSuffix(key, ".jpg") || key == "old.png" {
		t.Fatalf("photo_path = %q, want a new .jpg key", key)
	}
	if string(env.media.objects["photos/"+key]) != "jpeg-bytes" {
		t.Error("uploaded bytes not stored under the new key")
	}
	if env.media.types["photos/"+key] != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", env.media.types["photos/"+key])
	}
	if len(env.media.deleted) != 1 || env.media.deleted[0] != "photos/old.png" {
		t.Errorf("deleted = %v, want the previous object", env.media.deleted)
	}
}

func TestPutMedia_Errors(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		filename   string
		data       []byte
		actor      string
		wantStatus int
	}{
		{"no actor", "file", "a.png", []byte("x"), "", http.StatusBadRequest},
		{"wrong field", "upload", "a.png", []byte("x"), "rui", http.StatusBadRequest},
		{"unsupported type", "file", "notes.txt", []byte("x"), "rui", http.StatusUnsupportedMediaType},
		{"too large", "file", "a.png", bytes.Repeat([]byte("x"), 4096), "rui", http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			captureLogs(t)
			h := NewHandler(env.records, env.engine, env.tracker, env.media,
				config.MediaConfig{PhotoBucket: "photos", VideoBucket: "videos", MaxUploadBytes: 1024}, "", "test")
			env.router = NewRouter(h)
			id := env.records.seed(store.TableSport, store.Record{"name": "Rowing"})

			w := env.upload(fmt.Sprintf("/api/v1/sports/%d/photo", id), tt.field, tt.filename, tt.data, tt.actor, t)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if len(env.media.objects) != 0 {
				t.Error("no object should be stored")
			}
		})
	}
}

func TestMedia_NotConfigured(t *testing.T) {
	records := newMockRecords()
	id := records.seed(store.TableAthlete, store.Record{"name": "Ana", "photo_path": "ana.png"})
	router := NewRouter(NewHandler(records, &mockEngine{}, &mockTracker{}, nil, testMediaCfg, "", "test"))
	captureLogs(t)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/athletes/%d/photo", id), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func ptr[T any](v T) *T { return &v }
