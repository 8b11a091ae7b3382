package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/horizon-tasks/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/horizon-tasks/internal/store")

// Persistence loads and saves the whole task collection as one unit.
type Persistence interface {
	Load(ctx context.Context) ([]model.Task, error)
	Save(ctx context.Context, tasks []model.Task) error
}

// Store owns the in-memory task collection, most recent first.
// Every mutation writes the full collection to the Persistence before
// returning. Lookups by id that find nothing are no-ops, reported through
// the returned bool rather than an error.
type Store struct {
	mu     sync.RWMutex
	tasks  []model.Task
	db     Persistence
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// New creates a Store seeded from db.
func New(ctx context.Context, db Persistence, logger *slog.Logger) (*Store, error) {
	ctx, span := tracer.Start(ctx, "Store.Load")
	defer span.End()

	tasks, err := db.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	logger.InfoContext(ctx, "tasks loaded", slog.Int("count", len(tasks)))

	return &Store{
		tasks:  tasks,
		db:     db,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}, nil
}

// Create adds a new task at the front of the collection.
func (s *Store) Create(ctx context.Context, in model.TaskInput) (model.Task, error) {
	ctx, span := tracer.Start(ctx, "Store.Create",
		trace.WithAttributes(attribute.String("task.title", in.Title)),
	)
	defer span.End()

	in.Normalize()
	if err := in.Validate(); err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task := model.Task{
		ID:       s.newID(),
		Title:    in.Title,
		Notes:    in.Notes,
		Tags:     model.ParseTags(in.TagsRaw),
		Done:     false,
		Created:  s.now(),
		Due:      copyTime(in.Due),
		Priority: priorityOrDefault(in.Priority),
	}

	s.tasks = slices.Insert(s.tasks, 0, task)
	if err := s.persist(ctx); err != nil {
		return model.Task{}, err
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	return task.Clone(), nil
}

// Update overwrites the editable fields of a task. id, Created and Done are
// left untouched.
func (s *Store) Update(ctx context.Context, id string, in model.TaskInput) (bool, error) {
	ctx, span := tracer.Start(ctx, "Store.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	in.Normalize()
	if err := in.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	span.SetAttributes(attribute.Bool("task.found", i >= 0))
	if i < 0 {
		return false, nil
	}

	t := &s.tasks[i]
	t.Title = in.Title
	t.Notes = in.Notes
	t.Tags = model.ParseTags(in.TagsRaw)
	t.Due = copyTime(in.Due)
	t.Priority = priorityOrDefault(in.Priority)

	return true, s.persist(ctx)
}

// ToggleDone flips the completion flag of a task.
func (s *Store) ToggleDone(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Store.ToggleDone",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	span.SetAttributes(attribute.Bool("task.found", i >= 0))
	if i < 0 {
		return false, nil
	}

	s.tasks[i].Done = !s.tasks[i].Done
	return true, s.persist(ctx)
}

// Delete removes a task.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Store.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	span.SetAttributes(attribute.Bool("task.found", i >= 0))
	if i < 0 {
		return false, nil
	}

	s.tasks = slices.Delete(s.tasks, i, i+1)
	return true, s.persist(ctx)
}

// ClearCompleted removes every done task and returns how many were removed.
// Confirming the intent is up to the caller.
func (s *Store) ClearCompleted(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Store.ClearCompleted")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.tasks)
	s.tasks = slices.DeleteFunc(s.tasks, func(t model.Task) bool { return t.Done })
	removed := before - len(s.tasks)

	span.SetAttributes(attribute.Int("task.removed", removed))
	return removed, s.persist(ctx)
}

// Query returns the tasks whose title or tags contain search, ignoring
// case, restricted by status. Results keep the collection order.
func (s *Store) Query(ctx context.Context, search string, status model.StatusFilter) []model.Task {
	_, span := tracer.Start(ctx, "Store.Query",
		trace.WithAttributes(
			attribute.String("query.search", search),
			attribute.String("query.status", string(status)),
		),
	)
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Task{}
	for _, t := range s.tasks {
		if status.Matches(t) && model.MatchesSearch(t, search) {
			out = append(out, t.Clone())
		}
	}

	span.SetAttributes(attribute.Int("task.count", len(out)))
	return out
}

// SortByPriority orders the collection High, Medium, Low. Ties keep their
// relative order.
func (s *Store) SortByPriority(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Store.SortByPriority")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	slices.SortStableFunc(s.tasks, func(a, b model.Task) int {
		return a.Priority.Compare(b.Priority)
	})
	return s.persist(ctx)
}

// SortByDue orders the collection by ascending due time with undated tasks
// last. Ties keep their relative order.
func (s *Store) SortByDue(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Store.SortByDue")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	slices.SortStableFunc(s.tasks, compareDue)
	return s.persist(ctx)
}

// Progress reports completed and total counts.
func (s *Store) Progress(ctx context.Context) model.Progress {
	_, span := tracer.Start(ctx, "Store.Progress")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.progress()
	span.SetAttributes(
		attribute.Int("task.completed", p.Completed),
		attribute.Int("task.count", p.Total),
	)
	return p
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Task{}, false
	}
	return s.tasks[i].Clone(), true
}

// List returns a copy of the whole collection in its current order.
func (s *Store) List() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.tasks)
}

// Count returns the current number of tasks.
func (s *Store) Count() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.tasks))
}

// CompletedCount returns the number of done tasks.
func (s *Store) CompletedCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(s.progress().Completed)
}

// progress must be called with mu held.
func (s *Store) progress() model.Progress {
	completed := 0
	for _, t := range s.tasks {
		if t.Done {
			completed++
		}
	}
	return model.NewProgress(completed, len(s.tasks))
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context) error {
	if err := s.db.Save(ctx, cloneAll(s.tasks)); err != nil {
		s.logger.ErrorContext(ctx, "failed to save tasks", slog.Any("error", err))
		return fmt.Errorf("failed to save tasks: %w", err)
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
}

func compareDue(a, b model.Task) int {
	switch {
	case a.Due == nil && b.Due == nil:
		return 0
	case a.Due == nil:
		return 1
	case b.Due == nil:
		return -1
	default:
		return a.Due.Compare(*b.Due)
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func priorityOrDefault(p model.Priority) model.Priority {
	if !p.Valid() {
		return model.PriorityMedium
	}
	return p
}

func cloneAll(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
