package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hiroki-koketsu/horizon-tasks/internal/model"
)

// --- fakes ---

type fakePersistence struct {
	mu      sync.Mutex
	loadFn  func(context.Context) ([]model.Task, error)
	saveErr error
	saves   int
	saved   []model.Task
}

func (p *fakePersistence) Load(ctx context.Context) ([]model.Task, error) {
	if p.loadFn == nil {
		return nil, nil
	}
	return p.loadFn(ctx)
}

func (p *fakePersistence) Save(_ context.Context, tasks []model.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saved = tasks
	return nil
}

func newTestStore(t *testing.T) (*Store, *fakePersistence) {
	t.Helper()
	db := &fakePersistence{}
	s, err := New(context.Background(), db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() err = %v, want nil", err)
	}
	return s, db
}

func mustCreate(t *testing.T, s *Store, title string, mods ...func(*model.TaskInput)) model.Task {
	t.Helper()
	in := model.TaskInput{Title: title}
	for _, m := range mods {
		m(&in)
	}
	task, err := s.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create(%q) err = %v, want nil", title, err)
	}
	return task
}

func withPriority(p model.Priority) func(*model.TaskInput) {
	return func(in *model.TaskInput) { in.Priority = p }
}

func withDue(d time.Time) func(*model.TaskInput) {
	return func(in *model.TaskInput) { in.Due = &d }
}

func titles(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

// --- tests ---

func TestNew_LoadError(t *testing.T) {
	loadErr := errors.New("disk gone")
	db := &fakePersistence{loadFn: func(context.Context) ([]model.Task, error) { return nil, loadErr }}

	_, err := New(context.Background(), db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, loadErr) {
		t.Fatalf("New() err = %v, want %v", err, loadErr)
	}
}

func TestNew_SeedsFromPersistence(t *testing.T) {
	db := &fakePersistence{loadFn: func(context.Context) ([]model.Task, error) {
		return []model.Task{{ID: "a", Title: "loaded", Priority: model.PriorityLow}}, nil
	}}

	s, err := New(context.Background(), db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() err = %v, want nil", err)
	}
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Count())
	}
	if _, ok := s.Get("a"); !ok {
		t.Fatal("Get(a) ok = false, want true")
	}
}

func TestCreate(t *testing.T) {
	s, db := newTestStore(t)

	task := mustCreate(t, s, "Buy milk", func(in *model.TaskInput) {
		in.TagsRaw = "grocery, errand"
		in.Priority = model.PriorityHigh
	})

	if task.ID == "" {
		t.Fatal("Create() ID is empty")
	}
	if !reflect.DeepEqual(task.Tags, []string{"grocery", "errand"}) {
		t.Fatalf("Create() Tags = %#v, want [grocery errand]", task.Tags)
	}
	if task.Done {
		t.Fatal("Create() Done = true, want false")
	}
	if task.Due != nil {
		t.Fatalf("Create() Due = %v, want nil", task.Due)
	}
	if task.Priority != model.PriorityHigh {
		t.Fatalf("Create() Priority = %v, want High", task.Priority)
	}
	if task.Created.IsZero() {
		t.Fatal("Create() Created is zero")
	}
	if db.saves != 1 {
		t.Fatalf("saves = %d, want 1", db.saves)
	}
	if len(db.saved) != 1 || db.saved[0].ID != task.ID {
		t.Fatalf("saved = %+v, want the new task", db.saved)
	}
}

func TestCreate_EmptyTitle(t *testing.T) {
	s, db := newTestStore(t)

	_, err := s.Create(context.Background(), model.TaskInput{Title: "   "})
	if !errors.Is(err, model.ErrTitleRequired) {
		t.Fatalf("Create() err = %v, want %v", err, model.ErrTitleRequired)
	}
	if s.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", s.Count())
	}
	if db.saves != 0 {
		t.Fatalf("saves = %d, want 0", db.saves)
	}
}

func TestCreate_DefaultsPriority(t *testing.T) {
	s, _ := newTestStore(t)

	task := mustCreate(t, s, "t")
	if task.Priority != model.PriorityMedium {
		t.Fatalf("Create() Priority = %v, want Medium", task.Priority)
	}
}

func TestCreate_MostRecentFirst(t *testing.T) {
	s, _ := newTestStore(t)

	for _, title := range []string{"first", "second", "third"} {
		mustCreate(t, s, title)
	}

	got := titles(s.List())
	want := []string{"third", "second", "first"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	if s.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", s.Count())
	}
}

func TestCreate_UniqueIDs(t *testing.T) {
	s, _ := newTestStore(t)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		task := mustCreate(t, s, "x")
		if seen[task.ID] {
			t.Fatalf("Create() duplicate id %s", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestCreate_SaveError(t *testing.T) {
	s, db := newTestStore(t)
	db.saveErr = errors.New("quota exceeded")

	_, err := s.Create(context.Background(), model.TaskInput{Title: "t"})
	if !errors.Is(err, db.saveErr) {
		t.Fatalf("Create() err = %v, want %v", err, db.saveErr)
	}
}

func TestUpdate(t *testing.T) {
	s, db := newTestStore(t)
	orig := mustCreate(t, s, "old", withPriority(model.PriorityLow))
	if _, err := s.ToggleDone(context.Background(), orig.ID); err != nil {
		t.Fatalf("ToggleDone() err = %v, want nil", err)
	}
	savesBefore := db.saves

	due := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	found, err := s.Update(context.Background(), orig.ID, model.TaskInput{
		Title:    "new",
		Notes:    "some notes",
		TagsRaw:  "a, ,b",
		Due:      &due,
		Priority: model.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("Update() err = %v, want nil", err)
	}
	if !found {
		t.Fatal("Update() found = false, want true")
	}

	got, _ := s.Get(orig.ID)
	if got.Title != "new" || got.Notes != "some notes" || got.Priority != model.PriorityHigh {
		t.Fatalf("Get() after Update = %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"a", "b"}) {
		t.Fatalf("Get() Tags = %#v, want [a b]", got.Tags)
	}
	if got.Due == nil || !got.Due.Equal(due) {
		t.Fatalf("Get() Due = %v, want %v", got.Due, due)
	}
	if got.ID != orig.ID || !got.Created.Equal(orig.Created) || !got.Done {
		t.Fatalf("Update() changed id/created/done: %+v", got)
	}
	if db.saves != savesBefore+1 {
		t.Fatalf("saves = %d, want %d", db.saves, savesBefore+1)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	s, db := newTestStore(t)
	mustCreate(t, s, "t")
	savesBefore := db.saves

	found, err := s.Update(context.Background(), "missing", model.TaskInput{Title: "x"})
	if err != nil {
		t.Fatalf("Update() err = %v, want nil", err)
	}
	if found {
		t.Fatal("Update() found = true, want false")
	}
	if db.saves != savesBefore {
		t.Fatalf("saves = %d, want %d", db.saves, savesBefore)
	}
}

func TestToggleDone_Twice(t *testing.T) {
	s, _ := newTestStore(t)
	task := mustCreate(t, s, "t")

	for i, want := range []bool{true, false} {
		found, err := s.ToggleDone(context.Background(), task.ID)
		if err != nil || !found {
			t.Fatalf("ToggleDone() #%d = %v, %v, want true, nil", i, found, err)
		}
		got, _ := s.Get(task.ID)
		if got.Done != want {
			t.Fatalf("ToggleDone() #%d Done = %v, want %v", i, got.Done, want)
		}
	}
}

func TestToggleDone_NotFound(t *testing.T) {
	s, db := newTestStore(t)

	found, err := s.ToggleDone(context.Background(), "missing")
	if err != nil || found {
		t.Fatalf("ToggleDone() = %v, %v, want false, nil", found, err)
	}
	if db.saves != 0 {
		t.Fatalf("saves = %d, want 0", db.saves)
	}
}

func TestDelete_Twice(t *testing.T) {
	s, db := newTestStore(t)
	keep := mustCreate(t, s, "keep")
	gone := mustCreate(t, s, "gone")

	found, err := s.Delete(context.Background(), gone.ID)
	if err != nil || !found {
		t.Fatalf("Delete() = %v, %v, want true, nil", found, err)
	}
	savesAfterFirst := db.saves

	found, err = s.Delete(context.Background(), gone.ID)
	if err != nil || found {
		t.Fatalf("second Delete() = %v, %v, want false, nil", found, err)
	}
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Count())
	}
	if _, ok := s.Get(keep.ID); !ok {
		t.Fatal("Get(keep) ok = false, want true")
	}
	if db.saves != savesAfterFirst {
		t.Fatalf("saves = %d, want %d", db.saves, savesAfterFirst)
	}
}

func TestClearCompleted(t *testing.T) {
	s, db := newTestStore(t)
	a := mustCreate(t, s, "a")
	mustCreate(t, s, "b")
	c := mustCreate(t, s, "c")
	for _, id := range []string{a.ID, c.ID} {
		if _, err := s.ToggleDone(context.Background(), id); err != nil {
			t.Fatalf("ToggleDone() err = %v", err)
		}
	}
	savesBefore := db.saves

	removed, err := s.ClearCompleted(context.Background())
	if err != nil {
		t.Fatalf("ClearCompleted() err = %v, want nil", err)
	}
	if removed != 2 {
		t.Fatalf("ClearCompleted() removed = %d, want 2", removed)
	}
	if got := titles(s.List()); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("List() = %v, want [b]", got)
	}
	if len(db.saved) != 1 {
		t.Fatalf("saved len = %d, want 1", len(db.saved))
	}
	if db.saves != savesBefore+1 {
		t.Fatalf("saves = %d, want %d", db.saves, savesBefore+1)
	}
}

func TestQuery(t *testing.T) {
	s, _ := newTestStore(t)
	milk := mustCreate(t, s, "Buy milk", func(in *model.TaskInput) { in.TagsRaw = "grocery" })
	mustCreate(t, s, "Write report", func(in *model.TaskInput) { in.TagsRaw = "work" })
	eggs := mustCreate(t, s, "Eggs", func(in *model.TaskInput) { in.TagsRaw = "Grocery, breakfast" })
	if _, err := s.ToggleDone(context.Background(), milk.ID); err != nil {
		t.Fatalf("ToggleDone() err = %v", err)
	}

	ctx := context.Background()

	if got := titles(s.Query(ctx, "", model.StatusAll)); !reflect.DeepEqual(got, []string{"Eggs", "Write report", "Buy milk"}) {
		t.Fatalf("Query(all) = %v", got)
	}
	if got := titles(s.Query(ctx, "", model.StatusCompleted)); !reflect.DeepEqual(got, []string{"Buy milk"}) {
		t.Fatalf("Query(completed) = %v, want [Buy milk]", got)
	}
	if got := titles(s.Query(ctx, "", model.StatusActive)); !reflect.DeepEqual(got, []string{"Eggs", "Write report"}) {
		t.Fatalf("Query(active) = %v, want [Eggs Write report]", got)
	}
	if got := titles(s.Query(ctx, "GROCERY", model.StatusAll)); !reflect.DeepEqual(got, []string{"Eggs", "Buy milk"}) {
		t.Fatalf("Query(GROCERY) = %v, want [Eggs Buy milk]", got)
	}
	if got := titles(s.Query(ctx, "grocery", model.StatusActive)); !reflect.DeepEqual(got, []string{"Eggs"}) {
		t.Fatalf("Query(grocery, active) = %v, want [Eggs]", got)
	}
	if got := s.Query(ctx, "nothing", model.StatusAll); len(got) != 0 {
		t.Fatalf("Query(nothing) = %v, want empty", got)
	}

	res := s.Query(ctx, "eggs", model.StatusAll)
	res[0].Tags[0] = "mutated"
	got, _ := s.Get(eggs.ID)
	if got.Tags[0] != "Grocery" {
		t.Fatalf("Query() result aliases store: Tags = %v", got.Tags)
	}
}

func TestQuery_PartitionsByStatus(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < 6; i++ {
		task := mustCreate(t, s, "t")
		if i%2 == 0 {
			if _, err := s.ToggleDone(context.Background(), task.ID); err != nil {
				t.Fatalf("ToggleDone() err = %v", err)
			}
		}
	}

	ctx := context.Background()
	completed := s.Query(ctx, "", model.StatusCompleted)
	active := s.Query(ctx, "", model.StatusActive)

	if len(completed)+len(active) != int(s.Count()) {
		t.Fatalf("completed %d + active %d != total %d", len(completed), len(active), s.Count())
	}
	for _, task := range completed {
		if !task.Done {
			t.Fatalf("Query(completed) returned open task %s", task.ID)
		}
	}
	for _, task := range active {
		if task.Done {
			t.Fatalf("Query(active) returned done task %s", task.ID)
		}
	}
}

func TestSortByPriority_Stable(t *testing.T) {
	s, db := newTestStore(t)
	mustCreate(t, s, "low1", withPriority(model.PriorityLow))
	mustCreate(t, s, "high1", withPriority(model.PriorityHigh))
	mustCreate(t, s, "med1", withPriority(model.PriorityMedium))
	mustCreate(t, s, "low2", withPriority(model.PriorityLow))
	mustCreate(t, s, "high2", withPriority(model.PriorityHigh))
	savesBefore := db.saves

	if err := s.SortByPriority(context.Background()); err != nil {
		t.Fatalf("SortByPriority() err = %v, want nil", err)
	}

	got := titles(s.List())
	want := []string{"high2", "high1", "med1", "low2", "low1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	if db.saves != savesBefore+1 {
		t.Fatalf("saves = %d, want %d", db.saves, savesBefore+1)
	}
}

func TestSortByDue_UndatedLast(t *testing.T) {
	s, _ := newTestStore(t)
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mustCreate(t, s, "none1")
	mustCreate(t, s, "day3", withDue(base.AddDate(0, 0, 3)))
	mustCreate(t, s, "none2")
	mustCreate(t, s, "day1", withDue(base.AddDate(0, 0, 1)))
	mustCreate(t, s, "day2", withDue(base.AddDate(0, 0, 2)))

	if err := s.SortByDue(context.Background()); err != nil {
		t.Fatalf("SortByDue() err = %v, want nil", err)
	}

	got := titles(s.List())
	want := []string{"day1", "day2", "day3", "none2", "none1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
}

func TestSortByDue_UndatedFirstInput(t *testing.T) {
	s, _ := newTestStore(t)
	due := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mustCreate(t, s, "dated", withDue(due))
	mustCreate(t, s, "undated")

	if err := s.SortByDue(context.Background()); err != nil {
		t.Fatalf("SortByDue() err = %v, want nil", err)
	}
	if got := titles(s.List()); !reflect.DeepEqual(got, []string{"dated", "undated"}) {
		t.Fatalf("List() = %v, want [dated undated]", got)
	}
}

func TestProgress(t *testing.T) {
	s, _ := newTestStore(t)

	if got := s.Progress(context.Background()); got != (model.Progress{}) {
		t.Fatalf("Progress() on empty = %+v, want zero", got)
	}

	a := mustCreate(t, s, "a")
	mustCreate(t, s, "b")
	mustCreate(t, s, "c")
	if _, err := s.ToggleDone(context.Background(), a.ID); err != nil {
		t.Fatalf("ToggleDone() err = %v", err)
	}

	want := model.Progress{Completed: 1, Total: 3, Percentage: 33}
	if got := s.Progress(context.Background()); got != want {
		t.Fatalf("Progress() = %+v, want %+v", got, want)
	}
	if s.CompletedCount() != 1 {
		t.Fatalf("CompletedCount() = %d, want 1", s.CompletedCount())
	}
}

func TestStore_ConcurrentCreate(t *testing.T) {
	s, db := newTestStore(t)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = s.Create(context.Background(), model.TaskInput{Title: "x"})
		}()
	}
	wg.Wait()

	if s.Count() != n {
		t.Fatalf("Count() = %d, want %d", s.Count(), n)
	}
	if db.saves != n {
		t.Fatalf("saves = %d, want %d", db.saves, n)
	}
}
