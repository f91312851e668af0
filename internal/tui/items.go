package tui

import (
	"context"
	"fmt"

	"github.com/Joseda-hg/taskform/internal/model"
)

// listFilter narrows the task list. The store filters on one criterion at a
// time, so setting one clears the others.
type listFilter struct {
	Status   model.Status
	Priority model.Priority
	Name     string
}

func (f listFilter) describe() string {
	switch {
	case f.Name != "":
		return fmt.Sprintf("name ~ %q", f.Name)
	case f.Status != "":
		return "status = " + string(f.Status)
	case f.Priority != "":
		return "priority = " + string(f.Priority)
	}
	return "all tasks"
}

func (f listFilter) fetch(ctx context.Context, service TaskService) ([]model.Task, error) {
	switch {
	case f.Name != "":
		return service.SearchTasksByName(ctx, f.Name)
	case f.Status != "":
		return service.GetTasksByStatus(ctx, f.Status)
	case f.Priority != "":
		return service.GetTasksByPriority(ctx, f.Priority)
	}
	return service.GetAllTasks(ctx)
}

// nextStatusFilter steps through every status and back to no filter.
func nextStatusFilter(current model.Status) model.Status {
	for i, status := range model.Statuses {
		if status == current {
			if i == len(model.Statuses)-1 {
				return ""
			}
			return model.Statuses[i+1]
		}
	}
	return model.Statuses[0]
}

func nextPriorityFilter(current model.Priority) model.Priority {
	for i, priority := range model.Priorities {
		if priority == current {
			if i == len(model.Priorities)-1 {
				return ""
			}
			return model.Priorities[i+1]
		}
	}
	return model.Priorities[0]
}

func nextStatus(current model.Status) model.Status {
	for i, status := range model.Statuses {
		if status == current {
			return model.Statuses[(i+1)%len(model.Statuses)]
		}
	}
	return model.Statuses[0]
}

func formatTaskSummary(task model.Task) string {
	summary := fmt.Sprintf("%s | %s | %s", task.Name, task.Status, task.Priority)
	if task.Deadline != "" {
		summary += " | due " + task.Deadline
	}
	return summary
}
