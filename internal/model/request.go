package model

// TaskRequest represents the request body for creating or editing a task.
// Tags is the raw comma-separated list and Due the raw date/time text, as
// typed into the task form.
type TaskRequest struct {
	Title    string `json:"title"`
	Notes    string `json:"notes"`
	Tags     string `json:"tags"`
	Due      string `json:"due"`
	Priority string `json:"priority"`
}

// ToInput parses and validates the request.
func (r *TaskRequest) ToInput() (TaskInput, error) {
	priority, err := ParsePriority(r.Priority)
	if err != nil {
		return TaskInput{}, err
	}
	due, err := ParseDue(r.Due)
	if err != nil {
		return TaskInput{}, err
	}
	in := TaskInput{
		Title:    r.Title,
		Notes:    r.Notes,
		TagsRaw:  r.Tags,
		Due:      due,
		Priority: priority,
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return TaskInput{}, err
	}
	return in, nil
}
