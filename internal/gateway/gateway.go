// Package gateway talks to a remote task collection over HTTP.
//
// Every operation makes exactly one attempt. Failures come back as
// *TransportError, *StatusError or *DecodeError so callers can tell a dead
// server from a rejected request from a malformed reply.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Joseda-hg/taskform/internal/metrics"
	"github.com/Joseda-hg/taskform/internal/model"
)

// BasePath is the task collection resource on the store.
const BasePath = "/api/tasks"

const maxBodyBytes = 4 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
	timeout    time.Duration
	metrics    metrics.GatewayMetrics
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader adds a header to every request. Content-Type cannot be
// overridden.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithTimeout bounds each call. Zero means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithMetrics(m metrics.GatewayMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the source of createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New returns a client for the store rooted at baseURL, e.g.
// "http://localhost:3000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
		metrics:    metrics.Nop{},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRequest struct {
	model.CreateTaskData
	CreatedAt time.Time `json:"createdAt"`
}

// CreateTask stamps createdAt with the current instant and posts the task.
// The store assigns the id.
func (c *Client) CreateTask(ctx context.Context, data model.CreateTaskData) (model.Task, error) {
	body := createRequest{CreateTaskData: data, CreatedAt: c.now().UTC()}
	var task model.Task
	if err := c.do(ctx, "createTask", http.MethodPost, c.collectionURL(nil), body, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (c *Client) GetAllTasks(ctx context.Context) ([]model.Task, error) {
	return c.list(ctx, "getAllTasks", nil)
}

func (c *Client) GetTaskByID(ctx context.Context, id string) (model.Task, error) {
	var task model.Task
	if err := c.do(ctx, "getTaskById", http.MethodGet, c.itemURL(id), nil, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// UpdateTask replaces every mutable field of the task.
func (c *Client) UpdateTask(ctx context.Context, id string, data model.CreateTaskData) (model.Task, error) {
	var task model.Task
	if err := c.do(ctx, "updateTask", http.MethodPut, c.itemURL(id), data, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// PatchTask sends only the supplied fields. The id addresses the task and is
// left out of the body. A patch with no fields is rejected without a request.
func (c *Client) PatchTask(ctx context.Context, patch model.UpdateTaskData) (model.Task, error) {
	if patch.Empty() {
		return model.Task{}, fmt.Errorf("patchTask %s: %w", patch.ID, ErrEmptyPatch)
	}
	var task model.Task
	if err := c.do(ctx, "patchTask", http.MethodPatch, c.itemURL(patch.ID), patch, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, "deleteTask", http.MethodDelete, c.itemURL(id), nil, nil)
}

func (c *Client) GetTasksByStatus(ctx context.Context, status model.Status) ([]model.Task, error) {
	return c.list(ctx, "getTasksByStatus", url.Values{"status": {string(status)}})
}

func (c *Client) GetTasksByPriority(ctx context.Context, priority model.Priority) ([]model.Task, error) {
	return c.list(ctx, "getTasksByPriority", url.Values{"priority": {string(priority)}})
}

func (c *Client) SearchTasksByName(ctx context.Context, name string) ([]model.Task, error) {
	return c.list(ctx, "searchTasksByName", url.Values{"name_like": {name}})
}

func (c *Client) list(ctx context.Context, op string, query url.Values) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, op, http.MethodGet, c.collectionURL(query), nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

func (c *Client) collectionURL(query url.Values) string {
	target := c.baseURL + BasePath
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

func (c *Client) itemURL(id string) string {
	return c.baseURL + BasePath + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, op, method, target string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.CallDone(op, outcome(err), time.Since(start))
		if err != nil {
			c.logger.Warn("task gateway call failed", "op", op, "method", method, "url", target, "status", StatusCode(err), "err", err)
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Method: method, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Method: method, URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Op: op, URL: target, Err: err}
	}
	if err := checkShape(out); err != nil {
		return &DecodeError{Op: op, URL: target, Err: err}
	}
	return nil
}

func checkShape(out any) error {
	switch value := out.(type) {
	case *model.Task:
		return checkTask(*value)
	case *[]model.Task:
		for i, task := range *value {
			if err := checkTask(task); err != nil {
				return fmt.Errorf("task %d: %w", i, err)
			}
		}
	}
	return nil
}

func checkTask(task model.Task) error {
	if task.ID == "" {
		return errors.New("task has no id")
	}
	if !task.Status.Valid() {
		return fmt.Errorf("task %s: unknown status %q", task.ID, task.Status)
	}
	if !task.Priority.Valid() {
		return fmt.Errorf("task %s: unknown priority %q", task.ID, task.Priority)
	}
	if task.CreatedAt.IsZero() {
		return fmt.Errorf("task %s: missing createdAt", task.ID)
	}
	if !model.ValidDeadline(task.Deadline) {
		return fmt.Errorf("task %s: deadline %q is not %s", task.ID, task.Deadline, model.DateLayout)
	}
	return nil
}
