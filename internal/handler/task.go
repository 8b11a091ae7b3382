package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/horizon-tasks/internal/model"
	"github.com/hiroki-koketsu/horizon-tasks/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/horizon-tasks/internal/handler")

// TaskStore is the subset of store.Store the handler drives.
type TaskStore interface {
	Create(ctx context.Context, in model.TaskInput) (model.Task, error)
	Update(ctx context.Context, id string, in model.TaskInput) (bool, error)
	ToggleDone(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	ClearCompleted(ctx context.Context) (int, error)
	Query(ctx context.Context, search string, status model.StatusFilter) []model.Task
	SortByPriority(ctx context.Context) error
	SortByDue(ctx context.Context) error
	Progress(ctx context.Context) model.Progress
	Get(id string) (model.Task, bool)
	List() []model.Task
}

// TaskView is a task as rendered to the client.
type TaskView struct {
	model.Task
	Overdue bool `json:"overdue"`
}

// ProgressView is the completion summary rendered to the client.
type ProgressView struct {
	model.Progress
	AllDone bool `json:"all_done"`
}

// TaskHandler handles HTTP requests for tasks.
type TaskHandler struct {
	store   TaskStore
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(store TaskStore, logger *slog.Logger, metrics *telemetry.Metrics) *TaskHandler {
	return &TaskHandler{
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Routes returns the chi router with task routes.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/progress", h.Progress)
	r.Post("/sort", h.Sort)
	r.Delete("/completed", h.ClearCompleted)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/toggle", h.Toggle)
	r.Delete("/{id}", h.Delete)

	return r
}

// List returns the tasks matching the q and status query parameters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/tasks"

	ctx, span := tracer.Start(ctx, "TaskHandler.List")
	defer span.End()

	search := r.URL.Query().Get("q")
	status, err := model.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		h.logger.WarnContext(ctx, "invalid status filter", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, err.Error())
		h.recordMetrics(ctx, "GET", route, http.StatusBadRequest, start)
		return
	}

	tasks := h.store.Query(ctx, search, status)

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	h.logger.InfoContext(ctx, "tasks listed",
		slog.String("status", string(status)),
		slog.Int("count", len(tasks)),
	)

	h.respondJSON(w, http.StatusOK, h.views(tasks))
	h.recordMetrics(ctx, "GET", route, http.StatusOK, start)
}

// Create adds a new task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/tasks"

	ctx, span := tracer.Start(ctx, "TaskHandler.Create")
	defer span.End()

	in, ok := h.decodeInput(ctx, w, r)
	if !ok {
		h.recordMetrics(ctx, "POST", route, http.StatusBadRequest, start)
		return
	}

	h.logger.InfoContext(ctx, "creating task", slog.String("title", in.Title))

	task, err := h.store.Create(ctx, in)
	if err != nil {
		status := h.storeError(ctx, w, err, "failed to create task")
		h.recordMetrics(ctx, "POST", route, status, start)
		return
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	h.logger.InfoContext(ctx, "task created", slog.String("id", task.ID))

	h.respondJSON(w, http.StatusCreated, h.view(task))
	h.recordMetrics(ctx, "POST", route, http.StatusCreated, start)
}

// Update edits an existing task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}"

	ctx, span := tracer.Start(ctx, "TaskHandler.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	in, ok := h.decodeInput(ctx, w, r)
	if !ok {
		h.recordMetrics(ctx, "PUT", route, http.StatusBadRequest, start)
		return
	}

	h.logger.InfoContext(ctx, "updating task", slog.String("id", id))

	found, err := h.store.Update(ctx, id, in)
	if err != nil {
		status := h.storeError(ctx, w, err, "failed to update task")
		h.recordMetrics(ctx, "PUT", route, status, start)
		return
	}
	if !h.respondTask(ctx, w, id, found) {
		h.recordMetrics(ctx, "PUT", route, http.StatusNotFound, start)
		return
	}

	h.logger.InfoContext(ctx, "task updated", slog.String("id", id))
	h.recordMetrics(ctx, "PUT", route, http.StatusOK, start)
}

// Toggle flips the completion flag of a task.
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}/toggle"

	ctx, span := tracer.Start(ctx, "TaskHandler.Toggle",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	found, err := h.store.ToggleDone(ctx, id)
	if err != nil {
		status := h.storeError(ctx, w, err, "failed to toggle task")
		h.recordMetrics(ctx, "POST", route, status, start)
		return
	}
	if !h.respondTask(ctx, w, id, found) {
		h.recordMetrics(ctx, "POST", route, http.StatusNotFound, start)
		return
	}

	h.logger.InfoContext(ctx, "task toggled", slog.String("id", id))
	h.recordMetrics(ctx, "POST", route, http.StatusOK, start)
}

// Delete removes a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}"

	ctx, span := tracer.Start(ctx, "TaskHandler.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "deleting task", slog.String("id", id))

	found, err := h.store.Delete(ctx, id)
	if err != nil {
		status := h.storeError(ctx, w, err, "failed to delete task")
		h.recordMetrics(ctx, "DELETE", route, status, start)
		return
	}
	if !found {
		h.logger.WarnContext(ctx, "task not found", slog.String("id", id))
		h.respondError(w, http.StatusNotFound, model.ErrTaskNotFound.Error())
		h.recordMetrics(ctx, "DELETE", route, http.StatusNotFound, start)
		return
	}

	h.logger.InfoContext(ctx, "task deleted", slog.String("id", id))

	w.WriteHeader(http.StatusNoContent)
	h.recordMetrics(ctx, "DELETE", route, http.StatusNoContent, start)
}

// ClearCompleted removes all completed tasks.
func (h *TaskHandler) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/tasks/completed"

	ctx, span := tracer.Start(ctx, "TaskHandler.ClearCompleted")
	defer span.End()

	removed, err := h.store.ClearCompleted(ctx)
	if err != nil {
		status := h.storeError(ctx, w, err, "failed to clear completed tasks")
		h.recordMetrics(ctx, "DELETE", route, status, start)
		return
	}

	span.SetAttributes(attribute.Int("task.removed", removed))
	h.logger.InfoContext(ctx, "completed tasks cleared", slog.Int("removed", removed))

	h.respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
	h.recordMetrics(ctx, "DELETE", route, http.StatusOK, start)
}

// Sort reorders the collection by the "by" query parameter and returns it.
func (h *TaskHandler) Sort(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/tasks/sort"

	by := r.URL.Query().Get("by")
	ctx, span := tracer.Start(ctx, "TaskHandler.Sort",
		trace.WithAttributes(attribute.String("sort.by", by)),
	)
	defer span.End()

	var err error
	switch by {
	case "priority":
		err = h.store.SortByPriority(ctx)
	case "due":
		err = h.store.SortByDue(ctx)
	default:
		h.logger.WarnContext(ctx, "invalid sort key", slog.String("by", by))
		h.respondError(w, http.StatusBadRequest, "sort key must be priority or due")
		h.recordMetrics(ctx, "POST", route, http.StatusBadRequest, start)
		return
	}
	if err != nil {
		status := h.storeError(ctx, w, err, "failed to sort tasks")
		h.recordMetrics(ctx, "POST", route, status, start)
		return
	}

	h.logger.InfoContext(ctx, "tasks sorted", slog.String("by", by))

	h.respondJSON(w, http.StatusOK, h.views(h.store.List()))
	h.recordMetrics(ctx, "POST", route, http.StatusOK, start)
}

// Progress returns the completion summary.
func (h *TaskHandler) Progress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.Progress")
	defer span.End()

	p := h.store.Progress(ctx)
	span.SetAttributes(attribute.Int("task.completed", p.Completed), attribute.Int("task.count", p.Total))

	h.respondJSON(w, http.StatusOK, ProgressView{Progress: p, AllDone: p.AllDone()})
	h.recordMetrics(ctx, "GET", "/api/v1/tasks/progress", http.StatusOK, start)
}

// Health returns a health check response.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *TaskHandler) decodeInput(ctx context.Context, w http.ResponseWriter, r *http.Request) (model.TaskInput, bool) {
	var req model.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return model.TaskInput{}, false
	}

	in, err := req.ToInput()
	if err != nil {
		h.logger.WarnContext(ctx, "validation failed", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, err.Error())
		return model.TaskInput{}, false
	}
	return in, true
}

// respondTask writes the current state of id, or 404 when the store did not
// find it.
func (h *TaskHandler) respondTask(ctx context.Context, w http.ResponseWriter, id string, found bool) bool {
	task, ok := h.store.Get(id)
	if !found || !ok {
		h.logger.WarnContext(ctx, "task not found", slog.String("id", id))
		h.respondError(w, http.StatusNotFound, model.ErrTaskNotFound.Error())
		return false
	}
	h.respondJSON(w, http.StatusOK, h.view(task))
	return true
}

// storeError maps a store error to a response and returns the status written.
func (h *TaskHandler) storeError(ctx context.Context, w http.ResponseWriter, err error, msg string) int {
	var taskErr model.TaskError
	if errors.As(err, &taskErr) {
		h.logger.WarnContext(ctx, "validation failed", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, taskErr.Error())
		return http.StatusBadRequest
	}
	h.logger.ErrorContext(ctx, msg, slog.Any("error", err))
	h.respondError(w, http.StatusInternalServerError, msg)
	return http.StatusInternalServerError
}

func (h *TaskHandler) view(t model.Task) TaskView {
	return TaskView{Task: t, Overdue: t.Overdue(h.now())}
}

func (h *TaskHandler) views(tasks []model.Task) []TaskView {
	now := h.now()
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskView{Task: t, Overdue: t.Overdue(now)})
	}
	return out
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *TaskHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func (h *TaskHandler) recordMetrics(ctx context.Context, method, route string, status int, start time.Time) {
	duration := time.Since(start).Seconds()

	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)

	h.metrics.RequestCounter.Add(ctx, 1, attrs)
	h.metrics.RequestDuration.Record(ctx, duration, attrs)
}
