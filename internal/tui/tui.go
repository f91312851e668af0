package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/taskform/internal/model"
	"github.com/Joseda-hg/taskform/internal/schema"
	"github.com/Joseda-hg/taskform/internal/submit"
)

const (
	viewHeader = "header"
	viewFooter = "footer"
	viewForm   = "form"
	viewList   = "list"
	viewSearch = "search"
	viewHelp   = "help"
)

// TaskService is the remote task collection the UI works against.
type TaskService interface {
	submit.Creator
	GetAllTasks(ctx context.Context) ([]model.Task, error)
	GetTasksByStatus(ctx context.Context, status model.Status) ([]model.Task, error)
	GetTasksByPriority(ctx context.Context, priority model.Priority) ([]model.Task, error)
	SearchTasksByName(ctx context.Context, name string) ([]model.Task, error)
	UpdateTask(ctx context.Context, id string, data model.CreateTaskData) (model.Task, error)
	PatchTask(ctx context.Context, patch model.UpdateTaskData) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type Options struct {
	FlashWindow time.Duration
	Validator   *schema.Validator
	Logger      *slog.Logger
}

type UI struct {
	service   TaskService
	ctrl      *submit.Controller
	validator *schema.Validator
	logger    *slog.Logger
	gui       *gocui.Gui
	ctx       context.Context

	form       submit.Snapshot
	fieldIndex int
	edit       *editState
	formEditor *formEditor

	tasks    []model.Task
	selected int
	filter   listFilter
	focus    string

	searchActive bool
	helpActive   bool
	status       string

	// runAsync runs a submission off the main loop.
	runAsync func(func())
}

func newUI(ctx context.Context, service TaskService, opts Options) *UI {
	if opts.Validator == nil {
		opts.Validator = schema.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FlashWindow <= 0 {
		opts.FlashWindow = submit.DefaultFlashWindow
	}

	ui := &UI{
		service:   service,
		validator: opts.Validator,
		logger:    opts.Logger,
		ctx:       ctx,
		focus:     viewForm,
		runAsync:  func(fn func()) { go fn() },
	}
	ui.formEditor = &formEditor{ui: ui}
	ui.ctrl = submit.New(service,
		submit.WithFlashWindow(opts.FlashWindow),
		submit.WithValidator(opts.Validator),
		submit.WithLogger(opts.Logger),
		submit.WithOnChange(ui.onFormChange),
	)
	ui.form = ui.ctrl.Snapshot()
	return ui
}

func Run(ctx context.Context, service TaskService, opts Options) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := newUI(ctx, service, opts)
	defer ui.ctrl.Close()
	ui.gui = gui
	gui.Cursor = true

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	ui.reload()

	go func() {
		<-ctx.Done()
		gui.Update(func(*gocui.Gui) error {
			return gocui.ErrQuit
		})
	}()

	if err := gui.MainLoop(); err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}

	return nil
}

// update applies fn on the main loop when a GUI is attached.
func (u *UI) update(fn func()) {
	if u.gui == nil {
		fn()
		return
	}
	u.gui.Update(func(*gocui.Gui) error {
		fn()
		return nil
	})
}

// onFormChange may run on the flash timer's goroutine, so the copy shown by
// the form is refreshed on the main loop.
func (u *UI) onFormChange(submit.Snapshot) {
	u.update(u.syncForm)
}

// syncForm copies the controller's current state into the form. It reads
// the controller rather than a queued snapshot so a late update never
// rolls back newer input.
func (u *UI) syncForm() {
	snap := u.ctrl.Snapshot()
	if u.form.State == submit.SuccessFlash && snap.State == submit.Idle {
		u.fieldIndex = 0
	}
	u.form = snap
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	if err := gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'q', gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '?', gocui.ModNone, u.toggleHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyBacktab, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelEdit); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, gocui.KeyTab, gocui.ModNone, u.focusForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, gocui.KeyArrowDown, gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'j', gocui.ModNone, u.moveDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, gocui.KeyArrowUp, gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'k', gocui.ModNone, u.moveUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'r', gocui.ModNone, u.reloadTasks); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'f', gocui.ModNone, u.cycleStatusFilter); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'p', gocui.ModNone, u.cyclePriorityFilter); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'g', gocui.ModNone, u.clearFilters); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, '/', gocui.ModNone, u.startSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'e', gocui.ModNone, u.editSelected); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'c', gocui.ModNone, u.cycleSelectedStatus); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewList, 'd', gocui.ModNone, u.deleteSelected); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewSearch, gocui.KeyEnter, gocui.ModNone, u.submitSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewSearch, gocui.KeyEsc, gocui.ModNone, u.cancelSearch); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, gocui.KeyEsc, gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 0, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	u.renderHeader(headerView)

	footerY1 := max(1, maxY-1)
	footerY0 := max(1, footerY1-1)
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	u.renderFooter(footerView)

	bodyTop := 1
	bodyBottom := footerY0 - 1
	if bodyBottom <= bodyTop {
		return nil
	}

	formX1 := max(40, maxX/2) - 1
	if formX1 >= maxX-1 {
		formX1 = maxX - 2
	}

	formPane, err := gui.SetView(viewForm, 0, bodyTop, formX1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	formPane.Wrap = true
	formPane.Editable = true
	formPane.KeybindOnEdit = true
	formPane.Editor = u.formEditor
	applyViewStyle(formPane, u.focus == viewForm, false)
	if u.form.State == submit.SuccessFlash {
		formPane.FrameColor = gocui.ColorGreen
		formPane.TitleColor = gocui.ColorGreen
	}
	u.renderForm(formPane)

	listView, err := gui.SetView(viewList, formX1+1, bodyTop, maxX-1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	listView.Title = "Tasks (" + u.filter.describe() + ")"
	applyViewStyle(listView, u.focus == viewList, true)
	u.renderTaskList(listView)

	if u.searchActive {
		if err := u.showSearch(gui); err != nil {
			return err
		}
	}
	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	}

	if !u.searchActive && !u.helpActive {
		_, _ = gui.SetCurrentView(u.focus)
	}
	return nil
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	fmt.Fprintf(view, "taskform | %d tasks | %s", len(u.tasks), u.filter.describe())
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	if u.status != "" {
		fmt.Fprintln(view, u.status)
		return
	}
	fmt.Fprintln(view, "tab switch field/pane | enter submit | ? help | q quit (list)")
}

func (u *UI) renderTaskList(view *gocui.View) {
	view.Clear()
	if len(u.tasks) == 0 {
		fmt.Fprintln(view, "No tasks")
		return
	}
	for _, task := range u.tasks {
		fmt.Fprintln(view, formatTaskSummary(task))
	}
	view.SetCursor(0, u.selected)
}

// reload fetches the list and reports failures in the footer.
func (u *UI) reload() {
	if err := u.loadTasks(); err != nil {
		u.logger.Warn("load tasks", "filter", u.filter.describe(), "err", err)
		u.status = "Could not load tasks: " + err.Error()
	}
}

func (u *UI) loadTasks() error {
	tasks, err := u.filter.fetch(u.ctx, u.service)
	if err != nil {
		return err
	}
	u.tasks = tasks
	if u.selected >= len(u.tasks) {
		u.selected = max(0, len(u.tasks)-1)
	}
	return nil
}

func (u *UI) selectedTask() *model.Task {
	if u.selected < 0 || u.selected >= len(u.tasks) {
		return nil
	}
	return &u.tasks[u.selected]
}

func (u *UI) submitForm(gui *gocui.Gui, _ *gocui.View) error {
	if u.edit != nil {
		return u.saveEdit(gui, nil)
	}
	if !u.ctrl.Snapshot().CanSubmit() {
		return nil
	}

	u.status = ""
	u.runAsync(func() {
		task, err := u.ctrl.Submit(u.ctx)
		if err != nil {
			return
		}
		u.update(func() {
			u.status = "Created " + task.Name
			u.reload()
		})
	})
	return nil
}

func (u *UI) saveEdit(gui *gocui.Gui, _ *gocui.View) error {
	if u.edit == nil {
		return nil
	}

	data, err := u.validator.Validate(u.edit.input)
	if fieldErrs, ok := schema.AsFieldErrors(err); ok {
		u.edit.errors = fieldErrs
		return nil
	}
	if err != nil {
		u.status = err.Error()
		return nil
	}

	updated, err := u.service.UpdateTask(u.ctx, u.edit.taskID, data)
	if err != nil {
		u.status = "Failed to update task: " + err.Error()
		return nil
	}

	u.edit = nil
	u.fieldIndex = 0
	u.status = "Updated " + updated.Name
	u.reload()
	return nil
}

func (u *UI) cancelEdit(gui *gocui.Gui, _ *gocui.View) error {
	if u.edit == nil {
		return nil
	}
	u.edit = nil
	u.fieldIndex = 0
	u.status = ""
	return nil
}

func (u *UI) editSelected(gui *gocui.Gui, _ *gocui.View) error {
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	u.edit = &editState{taskID: selected.ID, input: schema.FromTask(*selected)}
	u.fieldIndex = 0
	return u.focusForm(gui, nil)
}

func (u *UI) cycleSelectedStatus(gui *gocui.Gui, _ *gocui.View) error {
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	status := nextStatus(selected.Status)
	if _, err := u.service.PatchTask(u.ctx, model.UpdateTaskData{ID: selected.ID, Status: &status}); err != nil {
		u.status = "Failed to update status: " + err.Error()
		return nil
	}
	u.reload()
	return nil
}

func (u *UI) deleteSelected(gui *gocui.Gui, _ *gocui.View) error {
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	if err := u.service.DeleteTask(u.ctx, selected.ID); err != nil {
		u.status = "Failed to delete task: " + err.Error()
		return nil
	}
	if u.edit != nil && u.edit.taskID == selected.ID {
		u.edit = nil
	}
	u.status = "Deleted " + selected.Name
	u.reload()
	return nil
}

func (u *UI) cycleStatusFilter(gui *gocui.Gui, _ *gocui.View) error {
	u.filter = listFilter{Status: nextStatusFilter(u.filter.Status)}
	u.selected = 0
	u.reload()
	return nil
}

func (u *UI) cyclePriorityFilter(gui *gocui.Gui, _ *gocui.View) error {
	u.filter = listFilter{Priority: nextPriorityFilter(u.filter.Priority)}
	u.selected = 0
	u.reload()
	return nil
}

func (u *UI) clearFilters(gui *gocui.Gui, _ *gocui.View) error {
	u.filter = listFilter{}
	u.selected = 0
	u.status = ""
	u.reload()
	return nil
}

func (u *UI) reloadTasks(gui *gocui.Gui, _ *gocui.View) error {
	u.reload()
	return nil
}

func (u *UI) moveDown(gui *gocui.Gui, _ *gocui.View) error {
	if u.selected < len(u.tasks)-1 {
		u.selected++
	}
	return nil
}

func (u *UI) moveUp(gui *gocui.Gui, _ *gocui.View) error {
	if u.selected > 0 {
		u.selected--
	}
	return nil
}

func (u *UI) nextFormField(gui *gocui.Gui, _ *gocui.View) error {
	if u.fieldIndex < len(schema.Fields)-1 {
		u.fieldIndex++
		return nil
	}
	return u.focusList(gui, nil)
}

func (u *UI) prevFormField(gui *gocui.Gui, _ *gocui.View) error {
	if u.fieldIndex > 0 {
		u.fieldIndex--
	}
	return nil
}

func (u *UI) focusForm(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewForm)
}

func (u *UI) focusList(gui *gocui.Gui, _ *gocui.View) error {
	u.fieldIndex = 0
	return u.setFocus(gui, viewList)
}

func (u *UI) setFocus(gui *gocui.Gui, name string) error {
	u.focus = name
	if gui != nil {
		_, _ = gui.SetCurrentView(name)
	}
	return nil
}

func (u *UI) startSearch(gui *gocui.Gui, _ *gocui.View) error {
	u.searchActive = true
	return nil
}

func (u *UI) showSearch(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := min(60, maxX-2)
	x0 := (maxX - width) / 2
	y0 := maxY/2 - 1

	view, err := gui.SetView(viewSearch, x0, y0, x0+width, y0+2, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Search by name"
		view.Editable = true
		view.Editor = gocui.DefaultEditor
		view.Clear()
		fmt.Fprint(view, u.filter.Name)
		view.SetCursor(len([]rune(u.filter.Name)), 0)
	}
	_, _ = gui.SetCurrentView(viewSearch)
	return nil
}

func (u *UI) submitSearch(gui *gocui.Gui, view *gocui.View) error {
	query := ""
	if view != nil {
		query = strings.TrimSpace(view.Buffer())
	}
	return u.applySearch(gui, query)
}

func (u *UI) applySearch(gui *gocui.Gui, query string) error {
	u.filter = listFilter{Name: query}
	u.selected = 0
	u.reload()
	return u.closeSearch(gui)
}

func (u *UI) cancelSearch(gui *gocui.Gui, _ *gocui.View) error {
	return u.closeSearch(gui)
}

func (u *UI) closeSearch(gui *gocui.Gui) error {
	u.searchActive = false
	if gui != nil {
		_ = gui.DeleteView(viewSearch)
		_, _ = gui.SetCurrentView(u.focus)
	}
	return nil
}

func (u *UI) toggleHelp(gui *gocui.Gui, _ *gocui.View) error {
	if u.helpActive {
		return u.closeHelp(gui, nil)
	}
	u.helpActive = true
	return nil
}

func (u *UI) closeHelp(gui *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	if gui != nil {
		_ = gui.DeleteView(viewHelp)
		_, _ = gui.SetCurrentView(u.focus)
	}
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := min(64, maxX-2)
	height := min(18, maxY-2)
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	view.Title = "Help"
	view.Wrap = true
	view.Clear()
	fmt.Fprintln(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Form:",
		"  type to edit | tab/arrows next field | shift-tab previous",
		"  space/left/right cycle status and priority",
		"  ctrl-u clear field | enter create (or save when editing)",
		"  esc cancel editing",
		"",
		"Task list:",
		"  j/k or arrows move selection | tab back to form",
		"  e edit | c cycle status | d delete | r reload",
		"  f filter by status | p filter by priority",
		"  / search by name | g clear filters",
		"",
		"Other:",
		"  ? help | esc close help | q quit (outside the form) | ctrl-c quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool) {
	view.Frame = true
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	view.InactiveViewSelBgColor = gocui.ColorDefault
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
		view.TitleColor = gocui.ColorDefault
	}
}
