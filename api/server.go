// Package api exposes a taskpool Loop over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/azargarov/taskpool"
)

// Pool is the part of *taskpool.Loop the API drives.
type Pool interface {
	CreateTask(ctx context.Context, p taskpool.Priority) (taskpool.Task, error)
	AddWorker(ctx context.Context) (taskpool.WorkerInfo, error)
	RemoveWorker(ctx context.Context) (taskpool.WorkerInfo, bool, error)
	Status(ctx context.Context) (taskpool.Status, error)
	PendingTasks(ctx context.Context) ([]taskpool.Task, error)
	CompletedTasks(ctx context.Context) ([]taskpool.Task, error)
	Workers(ctx context.Context) ([]taskpool.WorkerInfo, error)
}

// NewServer builds the root router and mounts the v1 API under /api/v1.
func NewServer(pool Pool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	r.Route("/api", func(api chi.Router) {
		api.Mount("/v1", Router(pool))
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		lg.FromContext(r.Context()).Info("http request",
			lg.String("method", r.Method),
			lg.String("path", r.URL.Path),
			lg.Int("status", ww.Status()),
			lg.String("took", time.Since(start).String()),
			lg.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResp{Error: msg})
}
