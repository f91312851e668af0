package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Joseda-hg/taskform/internal/db"
	"github.com/Joseda-hg/taskform/internal/metrics"
	"github.com/Joseda-hg/taskform/internal/model"
)

const maxRequestBytes = 1 << 20

type Server struct {
	store   *db.Store
	logger  *slog.Logger
	metrics metrics.ServerMetrics
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithMetrics(m metrics.ServerMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func NewServer(store *db.Store, opts ...Option) *Server {
	s := &Server{store: store, logger: slog.Default(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.handle(mux, "GET /api/tasks", s.listTasks)
	s.handle(mux, "POST /api/tasks", s.createTask)
	s.handle(mux, "GET /api/tasks/{id}", s.getTask)
	s.handle(mux, "PUT /api/tasks/{id}", s.replaceTask)
	s.handle(mux, "PATCH /api/tasks/{id}", s.patchTask)
	s.handle(mux, "DELETE /api/tasks/{id}", s.deleteTask)
	return mux
}

func (s *Server) handle(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		s.metrics.RequestServed(pattern, rec.status, time.Since(start))
		s.logger.Debug("task store request", "route", pattern, "path", r.URL.Path, "status", rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context(), filterFromRequest(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

type createRequest struct {
	model.CreateTaskData
	CreatedAt *time.Time `json:"createdAt"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := checkData(body.CreateTaskData); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	input := db.TaskInput{CreateTaskData: body.CreateTaskData}
	if body.CreatedAt != nil {
		input.CreatedAt = *body.CreatedAt
	}

	task, err := s.store.CreateTask(r.Context(), input)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (s *Server) replaceTask(w http.ResponseWriter, r *http.Request) {
	var body model.CreateTaskData
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := checkData(body); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	task, err := s.store.ReplaceTask(r.Context(), r.PathValue("id"), body)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (s *Server) patchTask(w http.ResponseWriter, r *http.Request) {
	var patch model.UpdateTaskData
	if err := decodeBody(w, r, &patch); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	patch.ID = r.PathValue("id")
	if err := checkPatch(patch); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	task, err := s.store.PatchTask(r.Context(), patch)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func filterFromRequest(r *http.Request) model.Filter {
	query := r.URL.Query()
	return model.Filter{
		Status:   model.Status(strings.TrimSpace(query.Get("status"))),
		Priority: model.Priority(strings.TrimSpace(query.Get("priority"))),
		NameLike: query.Get("name_like"),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func checkData(data model.CreateTaskData) error {
	if !data.Status.Valid() {
		return fmt.Errorf("unknown status %q", data.Status)
	}
	if !data.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", data.Priority)
	}
	if !model.ValidDeadline(data.Deadline) {
		return fmt.Errorf("deadline %q is not %s", data.Deadline, model.DateLayout)
	}
	return nil
}

func checkPatch(patch model.UpdateTaskData) error {
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("unknown status %q", *patch.Status)
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", *patch.Priority)
	}
	if patch.Deadline != nil && !model.ValidDeadline(*patch.Deadline) {
		return fmt.Errorf("deadline %q is not %s", *patch.Deadline, model.DateLayout)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("task store request failed", "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
