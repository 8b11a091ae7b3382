package model

import (
	"strings"
	"time"
)

// Task represents a todo item in the system.
type Task struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Notes    string     `json:"notes"`
	Tags     []string   `json:"tags"`
	Done     bool       `json:"done"`
	Created  time.Time  `json:"created"`
	Due      *time.Time `json:"due,omitempty"`
	Priority Priority   `json:"priority"`
}

// Overdue reports whether an open task is past its due time.
func (t Task) Overdue(now time.Time) bool {
	return !t.Done && t.Due != nil && t.Due.Before(now)
}

// Clone returns a copy that shares no slices or pointers with t.
func (t Task) Clone() Task {
	c := t
	c.Tags = append([]string{}, t.Tags...)
	if t.Due != nil {
		due := *t.Due
		c.Due = &due
	}
	return c
}

// TaskInput carries the caller-editable fields of a task.
type TaskInput struct {
	Title    string
	Notes    string
	TagsRaw  string
	Due      *time.Time
	Priority Priority
}

// Normalize trims the free-text fields.
func (in *TaskInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Notes = strings.TrimSpace(in.Notes)
}

// Validate checks if the TaskInput is valid.
func (in *TaskInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrTitleRequired
	}
	return nil
}

// ParseTags splits a comma-separated list, dropping blank entries.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, part := range strings.Split(raw, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

var dueLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDue parses a due date as sent by a datetime-local input, an RFC 3339
// timestamp, or a bare date. Empty input means no due date.
func ParseDue(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, ErrInvalidDue
}

// TaskError represents a domain error for tasks.
type TaskError struct {
	Message string
}

func (e TaskError) Error() string {
	return e.Message
}

var (
	ErrTaskNotFound    = TaskError{Message: "task not found"}
	ErrTitleRequired   = TaskError{Message: "title is required"}
	ErrInvalidPriority = TaskError{Message: "priority must be one of High, Medium, Low"}
	ErrInvalidDue      = TaskError{Message: "due date is not a valid date/time"}
	ErrInvalidFilter   = TaskError{Message: "status filter must be one of all, active, completed"}
)
