// Package submit drives a task form through validation, creation and the
// short success flash that follows it.
//
// A controller moves between three states:
//
//	Idle -> Submitting -> SuccessFlash -> Idle
//	            \-> Idle (on failure, form kept)
//
// Only Idle accepts a submission, so repeated triggers cannot create a task
// twice. The flash expires on a timer owned by the controller; Close stops
// that timer and cancels any request still in flight.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Joseda-hg/taskform/internal/model"
	"github.com/Joseda-hg/taskform/internal/schema"
)

type State int

const (
	Idle State = iota
	Submitting
	SuccessFlash
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case SuccessFlash:
		return "success-flash"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const DefaultFlashWindow = time.Second

const FailureNotice = "Failed to create task. Please check if the task server is running."

var (
	ErrBusy   = errors.New("submission already in progress")
	ErrClosed = errors.New("form closed")
)

type Creator interface {
	CreateTask(ctx context.Context, data model.CreateTaskData) (model.Task, error)
}

// Snapshot is a consistent view of the controller for rendering.
type Snapshot struct {
	State  State
	Input  schema.Input
	Errors schema.FieldErrors
	Notice string
	// Created is the task made by the last successful submission.
	Created *model.Task
}

func (s Snapshot) CanSubmit() bool {
	return s.State == Idle
}

func (s Snapshot) ButtonLabel() string {
	switch s.State {
	case Submitting:
		return "Creating Task..."
	case SuccessFlash:
		return "✓ Task Created!"
	}
	return "Create Task"
}

type Controller struct {
	creator   Creator
	validator *schema.Validator
	flash     time.Duration
	logger    *slog.Logger
	onChange  func(Snapshot)

	mu      sync.Mutex
	state   State
	input   schema.Input
	touched map[string]bool
	errors  schema.FieldErrors
	notice  string
	created *model.Task
	timer   *time.Timer
	cancel  context.CancelFunc
	closed  bool
}

type Option func(*Controller)

func WithFlashWindow(d time.Duration) Option {
	return func(c *Controller) {
		c.flash = d
	}
}

func WithValidator(v *schema.Validator) Option {
	return func(c *Controller) {
		c.validator = v
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithOnChange registers a callback run after every visible change. It is
// called without the controller lock held, possibly from the flash timer's
// goroutine.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

func New(creator Creator, opts ...Option) *Controller {
	c := &Controller{
		creator:  creator,
		flash:    DefaultFlashWindow,
		logger:   slog.Default(),
		onChange: func(Snapshot) {},
		input:    schema.Seed(),
		touched:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.validator == nil {
		c.validator = schema.New()
	}
	return c
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetField updates one field and re-runs validation. Only fields the user
// has touched report errors.
func (c *Controller) SetField(field, value string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	input, err := c.input.Set(field, value)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.input = input
	c.touched[field] = true
	c.revalidateLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.onChange(snap)
	return nil
}

// Submit validates the form and, if it passes, creates the task. Validation
// failures are returned as *schema.ValidationError without contacting the
// store. ErrBusy is returned while a submission or its flash is under way.
func (c *Controller) Submit(ctx context.Context) (model.Task, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.Task{}, ErrClosed
	}
	if c.state != Idle {
		c.mu.Unlock()
		return model.Task{}, ErrBusy
	}

	for _, field := range schema.Fields {
		c.touched[field] = true
	}
	data, err := c.validator.Validate(c.input)
	if err != nil {
		c.revalidateLocked()
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.onChange(snap)
		return model.Task{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancel = cancel
	c.errors = nil
	c.notice = ""
	c.transitionLocked(Submitting)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.onChange(snap)

	task, err := c.creator.CreateTask(ctx, data)

	c.mu.Lock()
	c.cancel = nil
	if c.closed {
		c.mu.Unlock()
		if err != nil {
			return model.Task{}, err
		}
		return task, nil
	}
	if err != nil {
		c.notice = FailureNotice
		c.transitionLocked(Idle)
		snap = c.snapshotLocked()
		c.mu.Unlock()
		c.logger.Warn("create task failed", "err", err)
		c.onChange(snap)
		return model.Task{}, err
	}

	c.created = &task
	c.transitionLocked(SuccessFlash)
	c.timer = time.AfterFunc(c.flash, c.expireFlash)
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.logger.Info("task created", "id", task.ID, "name", task.Name)
	c.onChange(snap)
	return task, nil
}

// Close stops the flash timer and cancels an in-flight submission. The
// controller rejects further use afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Controller) expireFlash() {
	c.mu.Lock()
	if c.closed || c.state != SuccessFlash {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.input = schema.Seed()
	c.touched = make(map[string]bool)
	c.errors = nil
	c.notice = ""
	c.transitionLocked(Idle)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.onChange(snap)
}

func (c *Controller) transitionLocked(to State) {
	c.logger.Debug("submission state", "from", c.state, "to", to)
	c.state = to
}

func (c *Controller) revalidateLocked() {
	all := c.validator.Check(c.input)
	visible := make(schema.FieldErrors, len(all))
	for field, fieldErr := range all {
		if c.touched[field] {
			visible[field] = fieldErr
		}
	}
	if len(visible) == 0 {
		visible = nil
	}
	c.errors = visible
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:  c.state,
		Input:  c.input,
		Notice: c.notice,
	}
	if len(c.errors) > 0 {
		snap.Errors = make(schema.FieldErrors, len(c.errors))
		for field, fieldErr := range c.errors {
			snap.Errors[field] = fieldErr
		}
	}
	if c.created != nil {
		created := *c.created
		snap.Created = &created
	}
	return snap
}
