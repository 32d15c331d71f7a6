package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/studious-lms/studious-files/internal/api"
	"github.com/studious-lms/studious-files/internal/navigator"
	"github.com/studious-lms/studious-files/internal/services"
	"github.com/studious-lms/studious-files/internal/util/filter"
)

// mode is the browser's input mode.
type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeRename
	modeCreate
	modeUpload
	modeConfirmDelete
)

// Messages produced by background commands.
type (
	// loadedMsg reports a completed folder load (listing + breadcrumbs).
	loadedMsg struct {
		folderID string
		err      error
	}

	// actionDoneMsg reports a completed dispatcher action.
	actionDoneMsg struct {
		action services.ActionKind
		name   string
		detail string
		err    error
	}
)

type model struct {
	opts Options

	mode    mode
	cursor  int
	items   []services.FileItem
	search  string
	status  string
	statErr bool
	width   int
	height  int

	// confirm target for modeConfirmDelete
	confirmItem services.FileItem
	// rename target for modeRename
	renameItem services.FileItem

	input   textinput.Model
	spinner spinner.Model
}

func newModel(opts Options) model {
	ti := textinput.New()
	ti.CharLimit = 255

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		opts:    opts,
		input:   ti,
		spinner: sp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd("", ""), m.spinner.Tick)
}

// loadCmd fetches a folder and its breadcrumb chain. folderName is the
// clicked item's name, shown in the crumb bar while ancestors load.
func (m model) loadCmd(folderID, folderName string) tea.Cmd {
	tree, crumbs, ctx := m.opts.Tree, m.opts.Breadcrumbs, m.opts.Context
	return func() tea.Msg {
		if err := tree.Load(ctx, folderID); err != nil {
			return loadedMsg{folderID: folderID, err: err}
		}
		_, name := tree.CurrentFolder()
		if name == "" {
			name = folderName
		}
		if err := crumbs.Load(ctx, folderID, name); err != nil {
			// A missing chain degrades the crumb bar, not the listing.
			return loadedMsg{folderID: folderID}
		}
		return loadedMsg{folderID: folderID}
	}
}

func (m model) refreshCmd() tea.Cmd {
	folderID, name := m.opts.Tree.CurrentFolder()
	return m.loadCmd(folderID, name)
}

func (m *model) syncItems() {
	items := m.opts.Tree.Items()
	if m.search != "" {
		items = filter.Apply(items, filter.Config{Search: strings.Fields(m.search)})
	}
	m.items = items
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) selected() (services.FileItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return services.FileItem{}, false
	}
	return m.items[m.cursor], true
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.syncItems()
		if msg.err != nil {
			m.setError(fmt.Sprintf("load failed: %v", msg.err))
		}
		return m, nil

	case actionDoneMsg:
		m.syncItems()
		if msg.err != nil {
			m.setError(describeActionError(msg.action, msg.name, msg.err))
			if errors.Is(msg.err, api.ErrNotFound) {
				// The item vanished remotely; resync the stale view.
				return m, m.refreshCmd()
			}
			return m, nil
		}
		m.setStatus(describeActionDone(msg.action, msg.name, msg.detail))
		return m, m.refreshCmd()

	case tea.KeyMsg:
		switch m.mode {
		case modeBrowse:
			return m.updateBrowse(msg)
		case modeSearch, modeRename, modeCreate, modeUpload:
			return m.updateInput(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		}
	}
	return m, nil
}

func (m model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "enter", "l", "right":
		if item, ok := m.selected(); ok && item.IsFolder() {
			m.search = ""
			m.cursor = 0
			return m, m.loadCmd(item.ID, item.Name)
		}

	case "backspace", "h", "left":
		return m.navigateUp()

	case "g":
		m.search = ""
		m.cursor = 0
		return m, m.loadCmd("", "")

	case "R":
		return m, m.refreshCmd()

	case "/":
		m.mode = modeSearch
		m.input.Placeholder = "search"
		m.input.SetValue(m.search)
		m.input.Focus()
		return m, textinput.Blink

	case "n":
		if !m.canMutate() {
			return m, nil
		}
		m.mode = modeCreate
		m.input.Placeholder = "new folder name"
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case "u":
		if !m.canMutate() {
			return m, nil
		}
		m.mode = modeUpload
		m.input.Placeholder = "local file path"
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case "r":
		item, ok := m.selected()
		if !ok || !m.canMutate() {
			return m, nil
		}
		if m.opts.Dispatcher.IsPending(item.ID) {
			m.setError(fmt.Sprintf("%s is busy", item.Name))
			return m, nil
		}
		m.mode = modeRename
		m.renameItem = item
		m.input.Placeholder = "new name"
		m.input.SetValue(item.Name)
		m.input.Focus()
		return m, textinput.Blink

	case "d":
		item, ok := m.selected()
		if !ok || !m.canMutate() {
			return m, nil
		}
		if m.opts.Dispatcher.IsPending(item.ID) {
			m.setError(fmt.Sprintf("%s is busy", item.Name))
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.confirmItem = item
		return m, nil

	case "s":
		if item, ok := m.selected(); ok && !item.IsFolder() {
			return m, m.shareCmd(item)
		}

	case "m":
		return m.toggleMove()

	case "esc":
		if _, dragging := m.opts.Reconciler.Dragging(); dragging {
			m.opts.Reconciler.Cancel()
			m.setStatus("move cancelled")
			return m, nil
		}
		if m.search != "" {
			m.search = ""
			m.syncItems()
		}
	}
	return m, nil
}

// toggleMove starts a move with the selected item, or completes the pending
// one into the currently viewed folder.
func (m model) toggleMove() (tea.Model, tea.Cmd) {
	if drag, dragging := m.opts.Reconciler.Dragging(); dragging {
		target, _ := m.opts.Tree.CurrentFolder()
		intent, err := m.opts.Reconciler.Drop(target)
		if err != nil {
			// The drop is suppressed and the grab stays active.
			m.setError(fmt.Sprintf("cannot move %s here", drag.Name))
			return m, nil
		}
		return m, m.moveCmd(drag.Name, intent)
	}

	item, ok := m.selected()
	if !ok || !m.canMutate() {
		return m, nil
	}
	if err := m.opts.Reconciler.Begin(item); err != nil {
		m.setError(fmt.Sprintf("cannot move %s", item.Name))
		return m, nil
	}
	m.setStatus(fmt.Sprintf("moving %s: open the target folder and press m", item.Name))
	return m, nil
}

func (m model) navigateUp() (tea.Model, tea.Cmd) {
	folderID, _ := m.opts.Tree.CurrentFolder()
	if folderID == "" {
		return m, nil
	}
	m.search = ""
	m.cursor = 0

	parent := m.opts.Tree.ParentFolderID()
	if parent == "" || parent == m.opts.Tree.RootFolderID() {
		return m, m.loadCmd("", "")
	}

	// The crumb bar knows the parent's name; fall back to an empty name and
	// let the fetched record fill it in.
	name := ""
	segs := m.opts.Breadcrumbs.Segments()
	if len(segs) >= 2 {
		name = segs[len(segs)-2].Name
	}
	return m, m.loadCmd(parent, name)
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.input.Value())
		entered := m.mode
		m.mode = modeBrowse
		m.input.Blur()

		switch entered {
		case modeSearch:
			m.search = value
			m.syncItems()
			return m, nil
		case modeCreate:
			if value == "" {
				return m, nil
			}
			return m, m.createFolderCmd(value)
		case modeUpload:
			if value == "" {
				return m, nil
			}
			return m, m.uploadCmd(value)
		case modeRename:
			if value == "" || value == m.renameItem.Name {
				return m, nil
			}
			return m, m.renameCmd(m.renameItem, value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		item := m.confirmItem
		m.mode = modeBrowse
		return m, m.deleteCmd(item)
	case "n", "N", "esc":
		m.mode = modeBrowse
	}
	return m, nil
}

func (m model) canMutate() bool {
	return m.opts.Role.CanMutate()
}

func (m *model) setStatus(s string) {
	m.status = s
	m.statErr = false
}

func (m *model) setError(s string) {
	m.status = s
	m.statErr = true
}

// Dispatcher-backed commands.

func (m model) createFolderCmd(name string) tea.Cmd {
	d, ctx := m.opts.Dispatcher, m.opts.Context
	folderID, _ := m.opts.Tree.CurrentFolder()
	return func() tea.Msg {
		_, err := d.CreateFolder(ctx, folderID, name, "")
		return actionDoneMsg{action: services.ActionCreateFolder, name: name, err: err}
	}
}

func (m model) renameCmd(item services.FileItem, newName string) tea.Cmd {
	d, ctx := m.opts.Dispatcher, m.opts.Context
	return func() tea.Msg {
		err := d.Rename(ctx, item, newName, item.Color)
		return actionDoneMsg{action: services.ActionRename, name: item.Name, detail: newName, err: err}
	}
}

func (m model) deleteCmd(item services.FileItem) tea.Cmd {
	d, ctx := m.opts.Dispatcher, m.opts.Context
	return func() tea.Msg {
		err := d.Delete(ctx, item)
		return actionDoneMsg{action: services.ActionDelete, name: item.Name, err: err}
	}
}

func (m model) shareCmd(item services.FileItem) tea.Cmd {
	d, ctx := m.opts.Dispatcher, m.opts.Context
	return func() tea.Msg {
		url, err := d.Share(ctx, item)
		return actionDoneMsg{action: services.ActionShare, name: item.Name, detail: url, err: err}
	}
}

func (m model) moveCmd(name string, intent navigator.MoveIntent) tea.Cmd {
	d, ctx := m.opts.Dispatcher, m.opts.Context
	return func() tea.Msg {
		err := d.Move(ctx, intent.ItemID, name, intent.Kind, intent.TargetFolderID)
		return actionDoneMsg{action: services.ActionMove, name: name, err: err}
	}
}

func (m model) uploadCmd(path string) tea.Cmd {
	d, tree, ctx := m.opts.Dispatcher, m.opts.Tree, m.opts.Context
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return actionDoneMsg{action: services.ActionUpload, name: path, err: err}
		}
		defer f.Close()

		folderID, _ := tree.CurrentFolder()
		if folderID == "" {
			folderID = tree.RootFolderID()
		}
		name := filepath.Base(path)
		_, err = d.UploadFiles(ctx, folderID, []api.Upload{{Name: name, Reader: f}})
		return actionDoneMsg{action: services.ActionUpload, name: name, err: err}
	}
}

func describeActionDone(action services.ActionKind, name, detail string) string {
	switch action {
	case services.ActionShare:
		return fmt.Sprintf("link for %s copied: %s", name, detail)
	case services.ActionRename:
		return fmt.Sprintf("renamed %s to %s", name, detail)
	default:
		return fmt.Sprintf("%s %s: done", action, name)
	}
}

func describeActionError(action services.ActionKind, name string, err error) string {
	switch {
	case errors.Is(err, api.ErrPermissionDenied):
		return fmt.Sprintf("%s %s: only teachers can do that", action, name)
	case errors.Is(err, api.ErrInvalidMove):
		return fmt.Sprintf("%s %s: a folder cannot move into its own subtree", action, name)
	case api.IsNameConflictError(err):
		return fmt.Sprintf("%s %s: that name is already taken here", action, name)
	case errors.Is(err, api.ErrNotFound):
		return fmt.Sprintf("%s %s: it no longer exists, refreshing", action, name)
	default:
		return fmt.Sprintf("%s %s failed: %v", action, name, err)
	}
}
