// Package schema defines what a valid task-creation payload is and checks
// form input against it.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Joseda-hg/taskform/internal/model"
)

const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldDeadline    = "deadline"
)

// Fields lists the form fields in display order.
var Fields = []string{FieldName, FieldDescription, FieldStatus, FieldPriority, FieldDeadline}

// Input is the raw form payload. Every value is a string so that anything a
// user can type is representable before validation.
type Input struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Status      string `json:"status" validate:"oneof=pending in-progress completed"`
	Priority    string `json:"priority" validate:"oneof=low medium high"`
	Deadline    string `json:"deadline" validate:"omitempty,isodate,notpast"`
}

// Seed returns the values an empty form starts with.
func Seed() Input {
	return Input{
		Status:   string(model.StatusPending),
		Priority: string(model.PriorityLow),
	}
}

// FromTask fills a form with the mutable fields of an existing task.
func FromTask(task model.Task) Input {
	return Input{
		Name:        task.Name,
		Description: task.Description,
		Status:      string(task.Status),
		Priority:    string(task.Priority),
		Deadline:    task.Deadline,
	}
}

// Get returns the value of a form field by name.
func (in Input) Get(field string) string {
	switch field {
	case FieldName:
		return in.Name
	case FieldDescription:
		return in.Description
	case FieldStatus:
		return in.Status
	case FieldPriority:
		return in.Priority
	case FieldDeadline:
		return in.Deadline
	}
	return ""
}

// Set returns a copy of the input with one field replaced.
func (in Input) Set(field, value string) (Input, error) {
	switch field {
	case FieldName:
		in.Name = value
	case FieldDescription:
		in.Description = value
	case FieldStatus:
		in.Status = value
	case FieldPriority:
		in.Priority = value
	case FieldDeadline:
		in.Deadline = value
	default:
		return in, fmt.Errorf("unknown field %q", field)
	}
	return in, nil
}

func (in Input) normalize() Input {
	return Input{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		Priority:    in.Priority,
		Deadline:    strings.TrimSpace(in.Deadline),
	}
}

type Code string

const (
	CodeRequiredField Code = "RequiredField"
	CodeInvalidChoice Code = "InvalidChoice"
	CodeInvalidDate   Code = "InvalidDate"
	CodePastDeadline  Code = "PastDeadline"
)

type FieldError struct {
	Code    Code
	Message string
}

// FieldErrors maps a field name to its single violation. Fields without a
// violation are absent.
type FieldErrors map[string]FieldError

// Messages flattens the errors into field -> message.
func (f FieldErrors) Messages() map[string]string {
	result := make(map[string]string, len(f))
	for field, fieldErr := range f {
		result[field] = fieldErr.Message
	}
	return result
}

type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name].Message))
	}
	return "invalid task: " + strings.Join(parts, "; ")
}

// AsFieldErrors extracts the field errors carried by err, if any.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields, true
	}
	return nil, false
}

type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Validator)

// WithClock sets the source of "today" for the deadline rule.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)
	// Registration only fails for empty tags or nil funcs.
	_ = validate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := v.parseDeadline(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("notpast", func(fl validator.FieldLevel) bool {
		deadline, err := v.parseDeadline(fl.Field().String())
		if err != nil {
			return false
		}
		return !deadline.Before(v.today())
	})
	v.validate = validate
	return v
}

// Validate checks the input and, when it is valid, returns the normalized
// creation payload. Failures are reported as *ValidationError.
func (v *Validator) Validate(in Input) (model.CreateTaskData, error) {
	normalized := in.normalize()
	if fieldErrs := v.check(normalized); len(fieldErrs) > 0 {
		return model.CreateTaskData{}, &ValidationError{Fields: fieldErrs}
	}

	data := model.CreateTaskData{
		Name:        normalized.Name,
		Description: normalized.Description,
		Status:      model.Status(normalized.Status),
		Priority:    model.Priority(normalized.Priority),
	}
	if normalized.Deadline != "" {
		deadline, err := v.parseDeadline(normalized.Deadline)
		if err != nil {
			return model.CreateTaskData{}, err
		}
		data.Deadline = deadline.Format(model.DateLayout)
	}
	return data, nil
}

// Check returns the violations of the input, or nil.
func (v *Validator) Check(in Input) FieldErrors {
	return v.check(in.normalize())
}

func (v *Validator) check(in Input) FieldErrors {
	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		// InvalidValidationError only happens for non-struct input.
		panic(err)
	}

	result := make(FieldErrors, len(validationErrs))
	for _, fieldErr := range validationErrs {
		result[fieldErr.Field()] = describe(fieldErr.Field(), fieldErr.Tag())
	}
	return result
}

func describe(field, tag string) FieldError {
	switch tag {
	case "required":
		if field == FieldName {
			return FieldError{Code: CodeRequiredField, Message: "Task name is required"}
		}
		return FieldError{Code: CodeRequiredField, Message: "Description is required"}
	case "oneof":
		if field == FieldStatus {
			return FieldError{Code: CodeInvalidChoice, Message: "Status must be one of: " + joinStatuses()}
		}
		return FieldError{Code: CodeInvalidChoice, Message: "Priority must be one of: " + joinPriorities()}
	case "isodate":
		return FieldError{Code: CodeInvalidDate, Message: "Deadline must be a valid date (YYYY-MM-DD)"}
	case "notpast":
		return FieldError{Code: CodePastDeadline, Message: "Deadline cannot be in the past"}
	}
	return FieldError{Code: Code(tag), Message: fmt.Sprintf("%s is invalid", field)}
}

// parseDeadline reads a calendar date, or an ISO-8601 timestamp reduced to
// its calendar date, at local midnight.
func (v *Validator) parseDeadline(value string) (time.Time, error) {
	loc := v.now().Location()
	if parsed, err := time.ParseInLocation(model.DateLayout, value, loc); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse deadline %q: %w", value, err)
	}
	return midnight(parsed.In(loc)), nil
}

func (v *Validator) today() time.Time {
	return midnight(v.now())
}

func midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

func joinStatuses() string {
	names := make([]string, 0, len(model.Statuses))
	for _, status := range model.Statuses {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}

func joinPriorities() string {
	names := make([]string, 0, len(model.Priorities))
	for _, priority := range model.Priorities {
		names = append(names, string(priority))
	}
	return strings.Join(names, ", ")
}
