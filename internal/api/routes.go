package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hyperengineering/pitchside/internal/store"
)

// corsMaxAge is how long browsers may cache a preflight response, in seconds.
const corsMaxAge = 300

type routerOptions struct {
	corsOrigins []string
}

// RouterOption configures NewRouter.
type RouterOption func(*routerOptions)

// WithCORSOrigins allows browser requests from the given origins.
func WithCORSOrigins(origins []string) RouterOption {
	return func(o *routerOptions) {
		o.corsOrigins = origins
	}
}

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, opts ...RouterOption) *chi.Mux {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	// CORS runs first: preflight requests carry no bearer token.
	if len(o.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.corsOrigins,
			AllowedMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut,
				http.MethodPatch, http.MethodDelete, http.MethodOptions,
			},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
			ExposedHeaders:   []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           corsMaxAge,
		}))
	}

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TracingMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			if h.apiKey != "" {
				r.Use(AuthMiddleware(h.apiKey))
			}
			r.Use(ActorMiddleware)

			for _, res := range resources {
				base := "/" + res.path
				r.Get(base, h.listRecords(res))
				r.Get(base+"/{id}", h.getRecord(res))
				if !res.readOnly {
					r.Post(base, h.createRecord(res))
					r.Put(base+"/{id}", h.updateRecord(res))
					r.Delete(base+"/{id}", h.deleteRecord(res))
				}
				if res.photo {
					r.Get(base+"/{id}/photo", h.getMedia(res.table, photoKind))
					r.Get(base+"/{id}/photo-url", h.getMediaURL(res.table, photoKind))
					r.Put(base+"/{id}/photo", h.putMedia(res.table, photoKind))
				}
				if res.video {
					r.Get(base+"/{id}/video", h.getMedia(res.table, videoKind))
					r.Get(base+"/{id}/video-url", h.getMediaURL(res.table, videoKind))
					r.Put(base+"/{id}/video", h.putMedia(res.table, videoKind))
				}
			}

			// Relations
			r.Get("/athletes/{id}/teams", h.listRelated(store.RelAthleteTeams, store.TableAthlete))
			r.Get("/teams/{id}/athletes", h.listRelated(store.RelTeamAthletes, store.TableTeam))
			r.Get("/coaches/{id}/teams", h.listChildren(store.TableCoach, store.TableTeam, "id_coach"))
			r.Get("/enrollments/team/{id}", h.listChildren(store.TableTeam, store.TableEnrollment, "id_team"))
			r.Get("/enrollments/athlete/{id}", h.listChildren(store.TableAthlete, store.TableEnrollment, "id_athlete"))
			r.Get("/routines/athlete/{id}", h.listChildren(store.TableAthlete, store.TableRoutine, "id_athlete"))
			r.Get("/routines/{id}/exercises", h.listChildren(store.TableRoutine, store.TableSlot, "id_routine"))
			r.Post("/routines/{id}/exercises", h.createChild(slotResource, store.TableRoutine, "id_routine"))
			r.Get("/routine-exercises/{id}/excluded-dates", h.listChildren(store.TableSlot, store.TableExcludedDate, "id_routine_has_exercise"))
			r.Post("/routine-exercises/{id}/excluded-dates", h.createChild(excludedDateResource, store.TableSlot, "id_routine_has_exercise"))
			r.Get("/sports/{id}/exercises", h.listChildren(store.TableSport, store.TableExercise, "id_sport"))

			r.Get("/athletes/{id}/metrics", h.AthleteMetrics)

			// Sessions
			r.Post("/exercise-stats/start", h.StartSession)
			r.Patch("/exercise-stats/{id}/progress", h.UpdateProgress)
			r.Patch("/exercise-stats/history/{id}/end", h.EndSession)
			r.Get("/exercise-stats/today/{athlete_id}", h.TodayExercises)
		})
	})

	return r
}
