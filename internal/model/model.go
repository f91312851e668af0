package model

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

func (s Status) Valid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	for _, candidate := range Priorities {
		if p == candidate {
			return true
		}
	}
	return false
}

// DateLayout is the wire format of a deadline.
const DateLayout = "2006-01-02"

// ValidDeadline reports whether s is empty or a DateLayout calendar date.
func ValidDeadline(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

type Task struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Deadline    string    `json:"deadline,omitempty"`
}

// Data returns the mutable fields of the task.
func (t Task) Data() CreateTaskData {
	return CreateTaskData{
		Name:        t.Name,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Deadline:    t.Deadline,
	}
}

type CreateTaskData struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	Deadline    string   `json:"deadline,omitempty"`
}

// UpdateTaskData is a partial patch. ID addresses the task and is never
// part of the request body.
type UpdateTaskData struct {
	ID          string    `json:"-"`
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Deadline    *string   `json:"deadline,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (u UpdateTaskData) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Status == nil && u.Priority == nil && u.Deadline == nil
}

type Filter struct {
	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`
	NameLike string   `json:"name_like"`
}
