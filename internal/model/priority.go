package model

import (
	"encoding/json"
	"strings"
)

// Priority is the urgency of a task. Lower ordinal means more urgent.
type Priority int

const (
	PriorityHigh Priority = iota + 1
	PriorityMedium
	PriorityLow
)

// ParsePriority accepts the priority name in any case. An empty string
// yields PriorityMedium.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, nil
	case "", "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, ErrInvalidPriority
	}
}

// Rank is the sort ordinal: High=1, Medium=2, Low=3.
func (p Priority) Rank() int {
	return int(p)
}

// Compare returns -1, 0 or +1 ordering p before, equal to or after o.
func (p Priority) Compare(o Priority) int {
	switch {
	case p.Rank() < o.Rank():
		return -1
	case p.Rank() > o.Rank():
		return 1
	default:
		return 0
	}
}

func (p Priority) Valid() bool {
	return p >= PriorityHigh && p <= PriorityLow
}

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return ""
	}
}

func (p Priority) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, ErrInvalidPriority
	}
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
