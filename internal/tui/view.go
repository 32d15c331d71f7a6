package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/studious-lms/studious-files/internal/services"
)

var (
	crumbStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	crumbCurrent     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	crumbPlaceholder = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	folderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	fileStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	metaStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	readOnlyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Bold(true)
)

func (m model) View() string {
	var b strings.Builder

	b.WriteString(m.viewBreadcrumbs())
	b.WriteString("\n\n")
	b.WriteString(m.viewList())
	b.WriteString("\n")
	b.WriteString(m.viewStatus())
	b.WriteString("\n")
	b.WriteString(m.viewHelp())
	return b.String()
}

func (m model) viewBreadcrumbs() string {
	if m.opts.Breadcrumbs.IsLoading() {
		// Placeholder skeleton while the ancestor chain is pending.
		return crumbPlaceholder.Render("░░░░ > ░░░░ > loading…")
	}

	segs := m.opts.Breadcrumbs.Segments()
	parts := make([]string, len(segs))
	for i, seg := range segs {
		if seg.Current {
			parts[i] = crumbCurrent.Render(seg.Name)
		} else {
			parts[i] = crumbStyle.Render(seg.Name)
		}
	}
	line := strings.Join(parts, dimStyle.Render(" > "))
	if !m.canMutate() {
		line += "  " + readOnlyStyle.Render("[read-only]")
	}
	return line
}

func (m model) viewList() string {
	if m.opts.Tree.IsLoading() {
		return m.spinner.View() + " loading…"
	}
	if err := m.opts.Tree.Err(); err != nil {
		return errorStyle.Render(fmt.Sprintf("  failed to load: %v (press R to retry)", err))
	}
	if len(m.items) == 0 {
		if m.search != "" {
			return dimStyle.Render(fmt.Sprintf("  no matches for %q (esc clears)", m.search))
		}
		return dimStyle.Render("  this folder is empty")
	}

	drag, dragging := m.opts.Reconciler.Dragging()

	var b strings.Builder
	for i, item := range m.items {
		b.WriteString(m.viewItem(i, item, drag, dragging))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) viewItem(i int, item services.FileItem, drag services.FileItem, dragging bool) string {
	prefix := "  "
	if i == m.cursor {
		prefix = cursorStyle.Render("> ")
	}

	name := item.Name
	var meta string
	style := fileStyle
	if item.IsFolder() {
		name += "/"
		style = folderStyle
		meta = fmt.Sprintf("%d items", item.ChildCount)
	} else {
		meta = services.FormatBytes(item.Size)
	}

	switch {
	case dragging && item.ID == drag.ID:
		style = pendingStyle
		meta = "moving…"
	case dragging && item.IsFolder() && !m.opts.Reconciler.CanDrop(item.ID):
		// An illegal target renders dimmed instead of highlighted.
		style = dimStyle
	case m.opts.Dispatcher.IsPending(item.ID):
		style = pendingStyle
		meta = "working…"
	}

	return fmt.Sprintf("%s%s %s", prefix, style.Render(fmt.Sprintf("%-42s", name)), metaStyle.Render(meta))
}

func (m model) viewStatus() string {
	switch m.mode {
	case modeSearch, modeRename, modeCreate, modeUpload:
		return m.input.View()
	case modeConfirmDelete:
		label := m.confirmItem.Name
		if m.confirmItem.IsFolder() {
			return errorStyle.Render(fmt.Sprintf("delete folder %q and all its contents? [y/n]", label))
		}
		return errorStyle.Render(fmt.Sprintf("delete %q? [y/n]", label))
	}

	if m.status == "" {
		return ""
	}
	if m.statErr {
		return errorStyle.Render(m.status)
	}
	return statusStyle.Render(m.status)
}

func (m model) viewHelp() string {
	if _, dragging := m.opts.Reconciler.Dragging(); dragging {
		return helpStyle.Render("open target folder, m drop here · esc cancel move")
	}
	if !m.canMutate() {
		return helpStyle.Render("enter open · backspace up · / search · s share · q quit")
	}
	return helpStyle.Render("enter open · backspace up · n new · r rename · d delete · m move · u upload · s share · / search · q quit")
}
