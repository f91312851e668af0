package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Joseda-hg/taskform/internal/model"
)

var ErrNotFound = errors.New("task not found")

const timeLayout = time.RFC3339Nano

type Store struct {
	DB    *sql.DB
	now   func() time.Time
	newID func() string
}

// TaskInput is a creation request. A zero CreatedAt is stamped by the store.
type TaskInput struct {
	model.CreateTaskData
	CreatedAt time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, now: time.Now, newID: uuid.NewString}
}

func (s *Store) CreateTask(ctx context.Context, input TaskInput) (model.Task, error) {
	now := s.now().UTC()
	createdAt := input.CreatedAt.UTC()
	if input.CreatedAt.IsZero() {
		createdAt = now
	}

	task := model.Task{
		ID:          s.newID(),
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   createdAt,
		Status:      input.Status,
		Priority:    input.Priority,
		Deadline:    input.Deadline,
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO tasks (id, name, description, status, priority, deadline, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Name, task.Description, string(task.Status), string(task.Priority),
		nullString(task.Deadline), createdAt.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}

	return task, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, name, description, status, priority, deadline, created_at FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

func (s *Store) ListTasks(ctx context.Context, filter model.Filter) ([]model.Task, error) {
	clauses := []string{}
	args := []any{}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, status)
	}
	if priority := strings.TrimSpace(string(filter.Priority)); priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, priority)
	}
	if filter.NameLike != "" {
		clauses = append(clauses, `name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(filter.NameLike)+"%")
	}

	query := `SELECT id, name, description, status, priority, deadline, created_at FROM tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY rowid"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	result := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		result = append(result, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return result, nil
}

// ReplaceTask overwrites every mutable field. id and createdAt are kept.
func (s *Store) ReplaceTask(ctx context.Context, id string, data model.CreateTaskData) (model.Task, error) {
	before, err := s.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, err
	}

	after := before
	after.Name = data.Name
	after.Description = data.Description
	after.Status = data.Status
	after.Priority = data.Priority
	after.Deadline = data.Deadline

	if err := s.writeTask(ctx, after); err != nil {
		return model.Task{}, err
	}
	return after, nil
}

// PatchTask applies only the fields present in the patch.
func (s *Store) PatchTask(ctx context.Context, patch model.UpdateTaskData) (model.Task, error) {
	after, err := s.GetTask(ctx, patch.ID)
	if err != nil {
		return model.Task{}, err
	}

	if patch.Name != nil {
		after.Name = *patch.Name
	}
	if patch.Description != nil {
		after.Description = *patch.Description
	}
	if patch.Status != nil {
		after.Status = *patch.Status
	}
	if patch.Priority != nil {
		after.Priority = *patch.Priority
	}
	if patch.Deadline != nil {
		after.Deadline = *patch.Deadline
	}

	if err := s.writeTask(ctx, after); err != nil {
		return model.Task{}, err
	}
	return after, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) writeTask(ctx context.Context, task model.Task) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE tasks SET name = ?, description = ?, status = ?, priority = ?, deadline = ?, updated_at = ? WHERE id = ?`,
		task.Name, task.Description, string(task.Status), string(task.Priority),
		nullString(task.Deadline), s.now().UTC().Format(timeLayout), task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (model.Task, error) {
	var (
		task      model.Task
		status    string
		priority  string
		deadline  sql.NullString
		createdAt string
	)
	if err := row.Scan(&task.ID, &task.Name, &task.Description, &status, &priority, &deadline, &createdAt); err != nil {
		return model.Task{}, err
	}

	parsed, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return model.Task{}, fmt.Errorf("parse created_at of task %s: %w", task.ID, err)
	}

	task.Status = model.Status(status)
	task.Priority = model.Priority(priority)
	task.CreatedAt = parsed
	if deadline.Valid {
		task.Deadline = deadline.String
	}
	return task, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
