// Package cli interactive browser command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studious-lms/studious-files/internal/tui"
)

// newBrowseCmd creates the 'browse' command.
func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the class files interactively",
		Long: `Open the interactive file browser.

Navigate with the arrow keys, Enter opens a folder, Backspace goes up.
Press ? inside the browser for the full key list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd)
		},
	}
}

// runBrowse starts the interactive browser. Also invoked by the bare root
// command.
func runBrowse(cmd *cobra.Command) error {
	s, err := newSession("tui")
	if err != nil {
		return err
	}
	defer s.close()

	err = tui.Run(tui.Options{
		Context:     GetContext(),
		Role:        s.cfg.Role,
		Tree:        s.tree,
		Breadcrumbs: s.crumbs,
		Reconciler:  s.reconciler,
		Dispatcher:  s.dispatcher,
		Bus:         s.bus,
	})
	if err != nil {
		return fmt.Errorf("browser exited with error: %w", err)
	}
	return nil
}
