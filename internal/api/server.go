// ABOUTME: Ops-only HTTP surface: health, metrics, worker status, job listing, pause/resume.
// ABOUTME: The product API (enqueue, cancel, auth) lives in the main application, not here.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vtkrishna/wizmark360-sub001/internal/scheduler"
	"github.com/vtkrishna/wizmark360-sub001/internal/store"
	"github.com/vtkrishna/wizmark360-sub001/internal/worker"
)

// Server holds the dependencies for the ops HTTP layer.
type Server struct {
	store     *store.Store
	pool      *worker.Pool
	scheduler *scheduler.Scheduler
}

// NewServer creates a Server. pool and sched may be nil when the process
// runs without the corresponding loop (standalone deployments); their
// endpoints then return 404.
func NewServer(st *store.Store, pool *worker.Pool, sched *scheduler.Scheduler) *Server {
	return &Server{store: st, pool: pool, scheduler: sched}
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	var db *pgxpool.Pool
	if srv.store != nil {
		db = srv.store.Pool()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthzHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if srv.pool != nil {
			r.Get("/worker/status", srv.workerStatusHandler)
		}
		r.Get("/jobs", srv.listJobsHandler)
		if srv.scheduler != nil {
			r.Post("/startups/{startup_id}/pause", srv.pauseHandler)
			r.Post("/startups/{startup_id}/resume", srv.resumeHandler)
		}
	})

	return r
}

// healthzHandler reports process liveness and database reachability.
func healthzHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status = "database unreachable"
				code = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, map[string]string{"status": status})
	}
}

func (srv *Server) workerStatusHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, srv.pool.Status())
}

func (srv *Server) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	params := store.ListJobsParams{
		Status: store.JobStatus(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("startup_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid startup_id"})
			return
		}
		params.StartupID = id
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1-500"})
			return
		}
		params.Limit = n
	}

	jobs, err := srv.store.ListJobs(r.Context(), params)
	if err != nil {
		slog.Error("list jobs error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

func (srv *Server) pauseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "startup_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid startup_id"})
		return
	}
	if err := srv.scheduler.Pause(r.Context(), id); err != nil {
		slog.Error("pause error", "startup_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (srv *Server) resumeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "startup_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid startup_id"})
		return
	}
	if err := srv.scheduler.Resume(r.Context(), id); err != nil {
		slog.Error("resume error", "startup_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response error", "error", err)
	}
}
