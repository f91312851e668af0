package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/taskform/internal/model"
)

type recordedRequest struct {
	Method      string
	Path        string
	RawQuery    string
	ContentType string
	Header      http.Header
	Body        map[string]any
}

type fakeStore struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	response string
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:      r.Method,
		Path:        r.URL.EscapedPath(),
		RawQuery:    r.URL.RawQuery,
		ContentType: r.Header.Get("Content-Type"),
		Header:      r.Header.Clone(),
		Body:        body,
	})
	status, response := f.status, f.response
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, response)
}

func (f *fakeStore) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newFakeStore(t *testing.T, status int, response string, opts ...Option) (*fakeStore, *Client) {
	t.Helper()
	fake := &fakeStore{status: status, response: response}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return fake, New(server.URL, append([]Option{WithHTTPClient(server.Client())}, opts...)...)
}

const taskJSON = `{"id":"t1","name":"A","description":"B","createdAt":"2026-03-14T10:00:00Z","status":"pending","priority":"low"}`

func TestCreateTaskStampsCreatedAt(t *testing.T) {
	callTime := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	fake, client := newFakeStore(t, http.StatusCreated, taskJSON, WithClock(func() time.Time { return callTime }))

	task, err := client.CreateTask(context.Background(), model.CreateTaskData{
		Name:        "A",
		Description: "B",
		Status:      model.StatusPending,
		Priority:    model.PriorityLow,
		Deadline:    "2026-04-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)

	req := fake.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/tasks", req.Path)
	assert.Equal(t, "application/json", req.ContentType)
	assert.Equal(t, "2026-03-14T10:00:00Z", req.Body["createdAt"])
	assert.Equal(t, "2026-04-01", req.Body["deadline"])
	assert.NotContains(t, req.Body, "id")
}

func TestCreateTaskOmitsAbsentDeadline(t *testing.T) {
	fake, client := newFakeStore(t, http.StatusCreated, taskJSON)

	_, err := client.CreateTask(context.Background(), model.CreateTaskData{
		Name: "A", Description: "B", Status: model.StatusPending, Priority: model.PriorityLow,
	})
	require.NoError(t, err)
	assert.NotContains(t, fake.last(t).Body, "deadline")
}

func TestRoutes(t *testing.T) {
	status := model.StatusCompleted
	name := "renamed"

	cases := []struct {
		name     string
		response string
		call     func(c *Client) error
		method   string
		path     string
		query    string
	}{
		{
			name:     "get all",
			response: "[" + taskJSON + "]",
			call:     func(c *Client) error { _, err := c.GetAllTasks(context.Background()); return err },
			method:   http.MethodGet,
			path:     "/api/tasks",
		},
		{
			name:     "get by id",
			response: taskJSON,
			call:     func(c *Client) error { _, err := c.GetTaskByID(context.Background(), "t1"); return err },
			method:   http.MethodGet,
			path:     "/api/tasks/t1",
		},
		{
			name:     "update",
			response: taskJSON,
			call: func(c *Client) error {
				_, err := c.UpdateTask(context.Background(), "t1", model.CreateTaskData{Name: "A", Description: "B", Status: model.StatusPending, Priority: model.PriorityLow})
				return err
			},
			method: http.MethodPut,
			path:   "/api/tasks/t1",
		},
		{
			name:     "patch",
			response: taskJSON,
			call: func(c *Client) error {
				_, err := c.PatchTask(context.Background(), model.UpdateTaskData{ID: "t1", Status: &status, Name: &name})
				return err
			},
			method: http.MethodPatch,
			path:   "/api/tasks/t1",
		},
		{
			name:   "delete",
			call:   func(c *Client) error { return c.DeleteTask(context.Background(), "t1") },
			method: http.MethodDelete,
			path:   "/api/tasks/t1",
		},
		{
			name:     "by status",
			response: "[]",
			call: func(c *Client) error {
				_, err := c.GetTasksByStatus(context.Background(), model.StatusInProgress)
				return err
			},
			method: http.MethodGet,
			path:   "/api/tasks",
			query:  "status=in-progress",
		},
		{
			name:     "by priority",
			response: "[]",
			call: func(c *Client) error {
				_, err := c.GetTasksByPriority(context.Background(), model.PriorityHigh)
				return err
			},
			method: http.MethodGet,
			path:   "/api/tasks",
			query:  "priority=high",
		},
		{
			name:     "search by name",
			response: "[]",
			call: func(c *Client) error {
				_, err := c.SearchTasksByName(context.Background(), "buy milk & eggs")
				return err
			},
			method: http.MethodGet,
			path:   "/api/tasks",
			query:  "name_like=buy+milk+%26+eggs",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake, client := newFakeStore(t, http.StatusOK, tc.response)
			require.NoError(t, tc.call(client))

			req := fake.last(t)
			assert.Equal(t, tc.method, req.Method)
			assert.Equal(t, tc.path, req.Path)
			assert.Equal(t, tc.query, req.RawQuery)
			assert.Equal(t, "application/json", req.ContentType)
		})
	}
}

func TestPatchTaskSendsOnlySuppliedFields(t *testing.T) {
	fake, client := newFakeStore(t, http.StatusOK, taskJSON)
	priority := model.PriorityHigh

	_, err := client.PatchTask(context.Background(), model.UpdateTaskData{ID: "t1", Priority: &priority})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"priority": "high"}, fake.last(t).Body)
}

func TestPatchTaskRejectsEmptyPatch(t *testing.T) {
	fake, client := newFakeStore(t, http.StatusOK, taskJSON)

	_, err := client.PatchTask(context.Background(), model.UpdateTaskData{ID: "t1"})
	require.ErrorIs(t, err, ErrEmptyPatch)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.requests)
}

func TestGetTaskByIDEscapesID(t *testing.T) {
	fake, client := newFakeStore(t, http.StatusOK, taskJSON)

	_, err := client.GetTaskByID(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/api/tasks/a%2Fb", fake.last(t).Path)
}

func TestHeadersExtendButKeepContentType(t *testing.T) {
	fake, client := newFakeStore(t, http.StatusOK, "[]",
		WithHeader("X-Trace", "abc"),
		WithHeader("Content-Type", "text/plain"),
	)

	_, err := client.GetAllTasks(context.Background())
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, "abc", req.Header.Get("X-Trace"))
	assert.Equal(t, []string{"application/json"}, req.Header.Values("Content-Type"))
}

func TestStatusError(t *testing.T) {
	_, client := newFakeStore(t, http.StatusInternalServerError, `{"error":"boom"}`)

	_, err := client.GetAllTasks(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, `{"error":"boom"}`, statusErr.Body)
	assert.False(t, IsNotFound(err))
}

func TestGetTaskByIDNotFound(t *testing.T) {
	_, client := newFakeStore(t, http.StatusNotFound, `{}`)

	_, err := client.GetTaskByID(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestDecodeError(t *testing.T) {
	cases := map[string]string{
		"malformed":      `{"id":`,
		"wrong shape":    `{"id":"t1"}`,
		"unknown status": `{"id":"t1","status":"done","priority":"low"}`,
		"missing id":     `{"status":"pending","priority":"low"}`,
		"numeric id":     `{"id":7,"status":"pending","priority":"low"}`,
		"no createdAt":   `{"id":"t1","name":"A","description":"B","status":"pending","priority":"low"}`,
		"bad deadline":   `{"id":"t1","name":"A","description":"B","createdAt":"2026-03-14T10:00:00Z","status":"pending","priority":"low","deadline":"14/03/2026"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, client := newFakeStore(t, http.StatusOK, body)

			_, err := client.GetTaskByID(context.Background(), "t1")
			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestDecodeErrorOnList(t *testing.T) {
	_, client := newFakeStore(t, http.StatusOK, taskJSON)

	_, err := client.GetAllTasks(context.Background())
	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	client := New(target)
	_, err := client.GetAllTasks(context.Background())

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "getAllTasks", transportErr.Op)
	assert.Zero(t, StatusCode(err))
}

func TestTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client := New(server.URL, WithTimeout(20*time.Millisecond))
	_, err := client.GetAllTasks(context.Background())

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *recordingMetrics) CallDone(op, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[op+":"+outcome]++
}

func TestMetricsRecordOutcome(t *testing.T) {
	rec := &recordingMetrics{outcomes: map[string]int{}}
	fake, client := newFakeStore(t, http.StatusOK, "[]", WithMetrics(rec))

	_, err := client.GetAllTasks(context.Background())
	require.NoError(t, err)

	fake.mu.Lock()
	fake.status = http.StatusBadGateway
	fake.mu.Unlock()
	_, err = client.GetAllTasks(context.Background())
	require.Error(t, err)

	assert.Equal(t, map[string]int{"getAllTasks:ok": 1, "getAllTasks:status": 1}, rec.outcomes)
}
