package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/azargarov/taskpool"
)

// Router returns the chi.Router for the v1 API.
func Router(pool Pool) chi.Router {
	h := &handler{pool: pool}
	r := chi.NewRouter()

	r.Get("/status", h.getStatus)

	r.Post("/tasks", h.createTask)
	r.Get("/tasks/pending", h.listPending)
	r.Get("/tasks/completed", h.listCompleted)

	r.Get("/workers", h.listWorkers)
	r.Post("/workers", h.addWorker)
	r.Delete("/workers", h.removeWorker)

	return r
}

type handler struct {
	pool Pool
}

type createTaskReq struct {
	Priority string `json:"priority"`
}

// createTask handles POST /tasks. An empty body creates a normal task.
func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	p, err := taskpool.ParsePriority(req.Priority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := h.pool.CreateTask(r.Context(), p)
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *handler) listPending(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.pool.PendingTasks(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": tasks})
}

func (h *handler) listCompleted(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.pool.CompletedTasks(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": tasks})
}

func (h *handler) listWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.pool.Workers(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": workers})
}

func (h *handler) addWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := h.pool.AddWorker(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, worker)
}

// removeWorker handles DELETE /workers: the most recently added worker goes.
func (h *handler) removeWorker(w http.ResponseWriter, r *http.Request) {
	worker, ok, err := h.pool.RemoveWorker(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no workers")
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

func (h *handler) getStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.pool.Status(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writePoolError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, taskpool.ErrLoopClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
