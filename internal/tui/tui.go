// Package tui implements the interactive class-files browser on top of the
// navigator core. It renders the folder tree, breadcrumbs, and per-item
// action state, and drives moves through the reconciler.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/studious-lms/studious-files/internal/config"
	"github.com/studious-lms/studious-files/internal/events"
	"github.com/studious-lms/studious-files/internal/navigator"
	"github.com/studious-lms/studious-files/internal/services"
	"github.com/studious-lms/studious-files/internal/state"
)

// Options wires the browser to an already-constructed navigator core.
type Options struct {
	Context     context.Context
	Role        config.Role
	Tree        *state.FolderTreeState
	Breadcrumbs *navigator.Breadcrumbs
	Reconciler  *navigator.Reconciler
	Dispatcher  *services.Dispatcher
	Bus         *events.EventBus
}

// Run starts the browser and blocks until the user quits.
func Run(opts Options) error {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	m := newModel(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(opts.Context))
	_, err := p.Run()
	return err
}
