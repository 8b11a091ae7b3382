// Package persistencetest holds fixtures shared by the persistence backend tests.
package persistencetest

import (
	"reflect"
	"testing"
	"time"

	"github.com/hiroki-koketsu/horizon-tasks/internal/model"
)

// Tasks returns a collection exercising every field.
func Tasks() []model.Task {
	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	due := time.Date(2024, 5, 3, 17, 0, 0, 0, time.UTC)
	return []model.Task{
		{
			ID:       "b7c1",
			Title:    "Buy milk",
			Notes:    "2 litres",
			Tags:     []string{"grocery", "errand"},
			Done:     false,
			Created:  created.Add(time.Hour),
			Due:      &due,
			Priority: model.PriorityHigh,
		},
		{
			ID:       "a0f3",
			Title:    "Read book",
			Tags:     []string{},
			Done:     true,
			Created:  created,
			Priority: model.PriorityLow,
		},
	}
}

// AssertEqual fails t unless got and want hold the same tasks in order.
func AssertEqual(t *testing.T, got, want []model.Task) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.ID != w.ID || g.Title != w.Title || g.Notes != w.Notes || g.Done != w.Done || g.Priority != w.Priority {
			t.Fatalf("task %d = %+v, want %+v", i, g, w)
		}
		if !reflect.DeepEqual(g.Tags, w.Tags) {
			t.Fatalf("task %d tags = %#v, want %#v", i, g.Tags, w.Tags)
		}
		if !g.Created.Equal(w.Created) {
			t.Fatalf("task %d created = %v, want %v", i, g.Created, w.Created)
		}
		switch {
		case g.Due == nil && w.Due == nil:
		case g.Due == nil || w.Due == nil || !g.Due.Equal(*w.Due):
			t.Fatalf("task %d due = %v, want %v", i, g.Due, w.Due)
		}
	}
}
