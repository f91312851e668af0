package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/taskform/internal/model"
)

func TestCreateTaskAssignsIDAndKeepsCreatedAt(t *testing.T) {
	store := newTestStore(t)

	createdAt := time.Date(2026, time.March, 14, 9, 30, 15, 123456789, time.UTC)
	created, err := store.CreateTask(context.Background(), TaskInput{
		CreateTaskData: model.CreateTaskData{
			Name:        "Write tests",
			Description: "Add coverage",
			Status:      model.StatusPending,
			Priority:    model.PriorityHigh,
			Deadline:    "2026-04-01",
		},
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	reloaded, err := store.GetTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.CreatedAt.Equal(createdAt), "createdAt %s, want %s", reloaded.CreatedAt, createdAt)
	assert.Equal(t, "2026-04-01", reloaded.Deadline)
	assert.Equal(t, created, reloaded)
}

func TestCreateTaskStampsMissingCreatedAt(t *testing.T) {
	store := newTestStore(t)

	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	created, err := store.CreateTask(context.Background(), TaskInput{CreateTaskData: model.CreateTaskData{
		Name: "A", Description: "B", Status: model.StatusPending, Priority: model.PriorityLow,
	}})
	require.NoError(t, err)
	assert.True(t, created.CreatedAt.Equal(now), "createdAt %s, want %s", created.CreatedAt, now)
}

func TestListTasksFilters(t *testing.T) {
	store := newTestStore(t)

	seed := []model.CreateTaskData{
		{Name: "Buy milk", Description: "x", Status: model.StatusPending, Priority: model.PriorityLow},
		{Name: "Write report", Description: "x", Status: model.StatusInProgress, Priority: model.PriorityHigh},
		{Name: "buy 100%_cotton shirt", Description: "x", Status: model.StatusCompleted, Priority: model.PriorityHigh},
	}
	for _, data := range seed {
		_, err := store.CreateTask(context.Background(), TaskInput{CreateTaskData: data})
		require.NoError(t, err)
	}

	cases := []struct {
		name   string
		filter model.Filter
		want   []string
	}{
		{name: "all", filter: model.Filter{}, want: []string{"Buy milk", "Write report", "buy 100%_cotton shirt"}},
		{name: "status", filter: model.Filter{Status: model.StatusInProgress}, want: []string{"Write report"}},
		{name: "priority", filter: model.Filter{Priority: model.PriorityHigh}, want: []string{"Write report", "buy 100%_cotton shirt"}},
		{name: "name like is case insensitive", filter: model.Filter{NameLike: "BUY"}, want: []string{"Buy milk", "buy 100%_cotton shirt"}},
		{name: "name like escapes wildcards", filter: model.Filter{NameLike: "%_c"}, want: []string{"buy 100%_cotton shirt"}},
		{name: "combined", filter: model.Filter{Priority: model.PriorityHigh, NameLike: "report"}, want: []string{"Write report"}},
		{name: "no match", filter: model.Filter{NameLike: "zzz"}, want: []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tasks, err := store.ListTasks(context.Background(), tc.filter)
			require.NoError(t, err)

			names := make([]string, 0, len(tasks))
			for _, task := range tasks {
				names = append(names, task.Name)
			}
			assert.Equal(t, tc.want, names)
		})
	}
}

func TestReplaceAndPatchKeepIdentity(t *testing.T) {
	store := newTestStore(t)

	created, err := store.CreateTask(context.Background(), TaskInput{CreateTaskData: model.CreateTaskData{
		Name: "A", Description: "B", Status: model.StatusPending, Priority: model.PriorityLow, Deadline: "2026-04-01",
	}})
	require.NoError(t, err)

	replaced, err := store.ReplaceTask(context.Background(), created.ID, model.CreateTaskData{
		Name: "A2", Description: "B2", Status: model.StatusInProgress, Priority: model.PriorityMedium,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, replaced.ID)
	assert.True(t, replaced.CreatedAt.Equal(created.CreatedAt), "replacement changed createdAt")
	assert.Empty(t, replaced.Deadline, "replacement clears an absent deadline")

	status := model.StatusCompleted
	patched, err := store.PatchTask(context.Background(), model.UpdateTaskData{ID: created.ID, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, patched.Status)
	assert.Equal(t, "A2", patched.Name)
	assert.Equal(t, model.PriorityMedium, patched.Priority)

	reloaded, err := store.GetTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, patched, reloaded)
}

func TestMissingTaskIsNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetTask(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound, "get")

	_, err = store.ReplaceTask(ctx, "nope", model.CreateTaskData{})
	assert.ErrorIs(t, err, ErrNotFound, "replace")

	_, err = store.PatchTask(ctx, model.UpdateTaskData{ID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound, "patch")

	assert.ErrorIs(t, store.DeleteTask(ctx, "nope"), ErrNotFound, "delete")
}

func TestDeleteTask(t *testing.T) {
	store := newTestStore(t)

	created, err := store.CreateTask(context.Background(), TaskInput{CreateTaskData: model.CreateTaskData{
		Name: "A", Description: "B", Status: model.StatusPending, Priority: model.PriorityLow,
	}})
	require.NoError(t, err)

	require.NoError(t, store.DeleteTask(context.Background(), created.ID))

	_, err = store.GetTask(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}
