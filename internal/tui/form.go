package tui

import (
	"fmt"
	"strings"

	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/taskform/internal/model"
	"github.com/Joseda-hg/taskform/internal/schema"
	"github.com/Joseda-hg/taskform/internal/submit"
)

type formField struct {
	Name  string
	Label string
	Value string
	Error string
}

func fieldLabel(name string) string {
	switch name {
	case schema.FieldName:
		return "Task Name"
	case schema.FieldDescription:
		return "Description"
	case schema.FieldStatus:
		return "Status (space/←→)"
	case schema.FieldPriority:
		return "Priority (space/←→)"
	case schema.FieldDeadline:
		return "Deadline (YYYY-MM-DD)"
	}
	return name
}

func buildFormFields(input schema.Input, errs schema.FieldErrors) []formField {
	fields := make([]formField, 0, len(schema.Fields))
	for _, name := range schema.Fields {
		fields = append(fields, formField{
			Name:  name,
			Label: fieldLabel(name),
			Value: input.Get(name),
			Error: errs[name].Message,
		})
	}
	return fields
}

// editState holds a task being changed in place. Creation goes through the
// submission controller instead.
type editState struct {
	taskID string
	input  schema.Input
	errors schema.FieldErrors
}

type formView struct {
	title  string
	fields []formField
	button string
	notice string
}

func (u *UI) currentForm() formView {
	if u.edit != nil {
		return formView{
			title:  "Edit Task",
			fields: buildFormFields(u.edit.input, u.edit.errors),
			button: "Save Changes (enter) | esc cancel",
		}
	}

	view := formView{
		title:  "Create New Task",
		fields: buildFormFields(u.form.Input, u.form.Errors),
		button: u.form.ButtonLabel(),
		notice: u.form.Notice,
	}
	if u.form.State == submit.SuccessFlash {
		view.title = "Create New Task ✓"
	}
	return view
}

func formLines(form formView, index int) []string {
	lines := make([]string, 0, len(form.fields)*2+3)
	for i, field := range form.fields {
		prefix := "  "
		if i == index {
			prefix = "> "
		}
		lines = append(lines, fmt.Sprintf("%s%s: %s", prefix, field.Label, field.Value))
		if field.Error != "" {
			lines = append(lines, "    ! "+field.Error)
		}
	}
	lines = append(lines, "", "  [ "+form.button+" ]")
	if form.notice != "" {
		lines = append(lines, "  "+form.notice)
	}
	return lines
}

func (u *UI) renderForm(view *gocui.View) {
	if view == nil {
		return
	}
	form := u.currentForm()
	view.Title = form.title
	view.Clear()

	lines := formLines(form, u.fieldIndex)
	for _, line := range lines {
		fmt.Fprintln(view, line)
	}

	row := 0
	for i := 0; i < u.fieldIndex && i < len(form.fields); i++ {
		row++
		if form.fields[i].Error != "" {
			row++
		}
	}
	if u.fieldIndex < len(form.fields) {
		field := form.fields[u.fieldIndex]
		cursorX := len([]rune(field.Label)) + len([]rune(field.Value)) + 4
		view.SetCursor(cursorX, row)
	}
}

// setField routes an edited value to the task being edited or to the
// submission controller.
func (u *UI) setField(name, value string) {
	if u.edit != nil {
		input, err := u.edit.input.Set(name, value)
		if err != nil {
			u.status = err.Error()
			return
		}
		u.edit.input = input
		u.edit.errors = u.validator.Check(input)
		return
	}

	if err := u.ctrl.SetField(name, value); err != nil {
		u.status = err.Error()
		return
	}
	u.syncForm()
}

// fieldValue reads the controller directly. The form copy trails it by
// the updates still queued on the main loop.
func (u *UI) fieldValue(name string) string {
	if u.edit != nil {
		return u.edit.input.Get(name)
	}
	return u.ctrl.Snapshot().Input.Get(name)
}

type formEditor struct {
	ui *UI
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || view == nil || ui.fieldIndex >= len(schema.Fields) {
		return false
	}
	name := schema.Fields[ui.fieldIndex]
	value := ui.fieldValue(name)

	if choices := fieldChoices(name); choices != nil {
		switch key {
		case gocui.KeyArrowRight, gocui.KeySpace:
			ui.setField(name, cycleChoice(choices, value, 1))
		case gocui.KeyArrowLeft:
			ui.setField(name, cycleChoice(choices, value, -1))
		}
		ui.renderForm(view)
		return true
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(value)
		if len(runes) > 0 {
			ui.setField(name, string(runes[:len(runes)-1]))
		}
	case gocui.KeySpace:
		ui.setField(name, value+" ")
	case gocui.KeyCtrlU:
		ui.setField(name, "")
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		ui.setField(name, value+string(ch))
	}

	ui.renderForm(view)
	return true
}

func fieldChoices(name string) []string {
	switch name {
	case schema.FieldStatus:
		choices := make([]string, 0, len(model.Statuses))
		for _, status := range model.Statuses {
			choices = append(choices, string(status))
		}
		return choices
	case schema.FieldPriority:
		choices := make([]string, 0, len(model.Priorities))
		for _, priority := range model.Priorities {
			choices = append(choices, string(priority))
		}
		return choices
	}
	return nil
}

func cycleChoice(order []string, current string, delta int) string {
	value := strings.TrimSpace(strings.ToLower(current))
	index := 0
	for i, choice := range order {
		if choice == value {
			index = i
			break
		}
	}
	index = (index + delta + len(order)) % len(order)
	return order[index]
}
