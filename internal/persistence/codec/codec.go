// Package codec encodes the task collection as the single JSON blob shared
// by every persistence backend.
package codec

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hiroki-koketsu/horizon-tasks/internal/model"
)

// ErrCorrupt is returned by Decode when the blob cannot be read back as a
// task collection. Backends treat it as absent data.
var ErrCorrupt = errors.New("stored task collection is corrupt")

// DefaultKey names the collection in every backend.
const DefaultKey = "horizon_tasks_v3"

// Encode serializes the whole collection.
func Encode(tasks []model.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := sonic.ConfigStd.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tasks: %w", err)
	}
	return data, nil
}

// storedTask mirrors the blob layout with loosely typed fields, so data
// written by earlier clients (datetime-local due values, "" for no due date,
// unknown priority names) can be read record by record.
type storedTask struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Notes    string   `json:"notes"`
	Tags     []string `json:"tags"`
	Done     bool     `json:"done"`
	Created  string   `json:"created"`
	Due      string   `json:"due"`
	Priority string   `json:"priority"`
}

// Decode parses a blob written by Encode or by earlier clients under the same
// key. Empty input yields an empty collection. A field that cannot be parsed
// is reset on its own record: due becomes absent, priority becomes Medium,
// created becomes the zero time.
func Decode(data []byte) ([]model.Task, error) {
	if len(data) == 0 {
		return []model.Task{}, nil
	}
	var stored []storedTask
	if err := sonic.ConfigStd.Unmarshal(data, &stored); err != nil {
		return []model.Task{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	tasks := make([]model.Task, 0, len(stored))
	for i, st := range stored {
		if st.ID == "" {
			return []model.Task{}, fmt.Errorf("%w: task at index %d has no id", ErrCorrupt, i)
		}
		tasks = append(tasks, st.toTask())
	}
	return tasks, nil
}

func (st storedTask) toTask() model.Task {
	t := model.Task{
		ID:    st.ID,
		Title: st.Title,
		Notes: st.Notes,
		Tags:  cleanTags(st.Tags),
		Done:  st.Done,
	}
	if created, err := time.Parse(time.RFC3339, st.Created); err == nil {
		t.Created = created
	}
	if due, err := model.ParseDue(st.Due); err == nil {
		t.Due = due
	}
	priority, err := model.ParsePriority(st.Priority)
	if err != nil {
		priority = model.PriorityMedium
	}
	t.Priority = priority
	return t
}

func cleanTags(tags []string) []string {
	out := []string{}
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
