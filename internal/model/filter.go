package model

import (
	"math"
	"strings"
)

// StatusFilter restricts a query by completion state.
type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusActive    StatusFilter = "active"
	StatusCompleted StatusFilter = "completed"
)

// ParseStatusFilter is case-insensitive; an empty string means StatusAll.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return StatusAll, nil
	case StatusAll, StatusActive, StatusCompleted:
		return f, nil
	default:
		return "", ErrInvalidFilter
	}
}

// Matches reports whether t passes the filter.
func (f StatusFilter) Matches(t Task) bool {
	switch f {
	case StatusActive:
		return !t.Done
	case StatusCompleted:
		return t.Done
	default:
		return true
	}
}

// MatchesSearch reports whether the title or any tag contains term,
// ignoring case. The empty term matches everything.
func MatchesSearch(t Task, term string) bool {
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(t.Title), term) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// Progress summarizes how much of the collection is done.
type Progress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// NewProgress computes the rounded completion percentage, 0 for an empty list.
func NewProgress(completed, total int) Progress {
	p := Progress{Completed: completed, Total: total}
	if total > 0 {
		p.Percentage = int(math.Round(float64(completed) / float64(total) * 100))
	}
	return p
}

// AllDone is true when there is at least one task and every task is done.
func (p Progress) AllDone() bool {
	return p.Total > 0 && p.Completed == p.Total
}
