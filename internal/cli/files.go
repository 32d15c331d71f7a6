// Package cli file and folder commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studious-lms/studious-files/internal/navigator"
	"github.com/studious-lms/studious-files/internal/services"
	"github.com/studious-lms/studious-files/internal/util/filter"
)

// newLsCmd creates the 'ls' command.
func newLsCmd() *cobra.Command {
	var (
		long        bool
		include     []string
		exclude     []string
		search      []string
		foldersOnly bool
	)

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List the contents of a folder",
		Long: `List the contents of a class folder, folders first.

Example:
  # List the class root
  studious-files ls

  # List a nested folder
  studious-files ls "Week 1/Homework"

  # Long listing of all PDFs
  studious-files ls -l --include "*.pdf"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession("cli")
			if err != nil {
				return err
			}
			defer s.close()
			ctx := GetContext()

			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			folderID, err := s.resolvePath(ctx, path)
			if err != nil {
				return err
			}
			if err := s.tree.Load(ctx, folderID); err != nil {
				return fmt.Errorf("failed to list folder: %w", err)
			}

			_, name := s.tree.CurrentFolder()
			if err := s.crumbs.Load(ctx, folderID, name); err != nil {
				GetLogger().Debug().Err(err).Msg("Breadcrumb fetch failed")
			}
			printBreadcrumbs(cmd, s.crumbs.Segments())

			items := filter.Apply(s.tree.Items(), filter.Config{
				Include:     include,
				Exclude:     exclude,
				Search:      search,
				FoldersOnly: foldersOnly,
			})
			if len(items) == 0 {
				cmd.Println("  (empty)")
				return nil
			}
			for _, item := range items {
				printItem(cmd, item, long)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Long listing (sizes, types)")
	cmd.Flags().StringSliceVar(&include, "include", nil, "Include glob patterns (e.g. '*.pdf')")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Exclude glob patterns")
	cmd.Flags().StringSliceVar(&search, "search", nil, "Search terms (item must match all)")
	cmd.Flags().BoolVar(&foldersOnly, "folders-only", false, "Show folders only")
	return cmd
}

func printBreadcrumbs(cmd *cobra.Command, segments []navigator.Segment) {
	names := make([]string, len(segments))
	for i, seg := range segments {
		names[i] = seg.Name
	}
	cmd.Printf("%s\n", strings.Join(names, " > "))
}

func printItem(cmd *cobra.Command, item services.FileItem, long bool) {
	if !long {
		if item.IsFolder() {
			cmd.Printf("  %s/\n", item.Name)
		} else {
			cmd.Printf("  %s\n", item.Name)
		}
		return
	}
	if item.IsFolder() {
		cmd.Printf("  %-40s %10s  %s\n", item.Name+"/", "-",
			fmt.Sprintf("%d items", item.ChildCount))
	} else {
		cmd.Printf("  %-40s %10s  %s\n", item.Name,
			services.FormatBytes(item.Size), item.MIMEType)
	}
}

// newMkdirCmd creates the 'mkdir' command.
func newMkdirCmd() *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Long: `Create a folder. Parent folders in the path must already exist.

Example:
  studious-files mkdir "Week 2"
  studious-files mkdir "Week 2/Homework" --color "#4f46e5"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession("cli")
			if err != nil {
				return err
			}
			defer s.close()
			ctx := GetContext()

			dir, name := splitTarget(args[0])
			if name == "" {
				return fmt.Errorf("folder name is empty")
			}
			parentID, err := s.resolvePath(ctx, dir)
			if err != nil {
				return err
			}

			folder, err := s.dispatcher.CreateFolder(ctx, parentID, name, color)
			if err != nil {
				return fmt.Errorf("failed to create folder: %w", err)
			}
			cmd.Printf("Created folder %q (%s)\n", folder.Name, folder.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&color, "color", "", "Display color (e.g. '#4f46e5')")
	return cmd
}

// newMvCmd creates the 'mv' command.
func newMvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mv <source> <target-folder>",
		Short: "Move a file or folder into another folder",
		Long: `Move a file or folder into a target folder. Use "/" as the target
for the class root. Moving a folder into itself or its own subtree is
rejected.

Example:
  studious-files mv "Week 1/draft.pdf" "Archive"
  studious-files mv "Old Labs" /`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession("cli")
			if err != nil {
				return err
			}
			defer s.close()
			ctx := GetContext()

			srcDir, srcName := splitTarget(args[0])
			srcFolderID, err := s.resolvePath(ctx, srcDir)
			if err != nil {
				return err
			}
			item, err := s.findItem(ctx, srcFolderID, srcName)
			if err != nil {
				return err
			}
			targetID, err := s.resolvePath(ctx, args[1])
			if err != nil {
				return err
			}

			// Route through the reconciler so an illegal move is rejected
			// without a remote call.
			if err := s.reconciler.Begin(item); err != nil {
				return err
			}
			intent, err := s.reconciler.Drop(targetID)
			if err != nil {
				return err
			}
			if err := s.dispatcher.Move(ctx, intent.ItemID, item.Name, intent.Kind, intent.TargetFolderID); err != nil {
				return fmt.Errorf("failed to move: %w", err)
			}
			cmd.Printf("Moved %q\n", item.Name)
			return nil
		},
	}
	return cmd
}

// newRmCmd creates the 'rm' command.
func newRmCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file or folder",
		Long: `Delete a file or folder. Deleting a folder deletes its contents.

Example:
  studious-files rm "Week 1/draft.pdf"
  studious-files rm "Old Labs" --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession("cli")
			if err != nil {
				return err
			}
			defer s.close()
			ctx := GetContext()

			dir, name := splitTarget(args[0])
			folderID, err := s.resolvePath(ctx, dir)
			if err != nil {
				return err
			}
			item, err := s.findItem(ctx, folderID, name)
			if err != nil {
				return err
			}

			if item.IsFolder() && !force {
				confirmed, err := confirm(cmd, fmt.Sprintf("Delete folder %q and all its contents?", item.Name))
				if err != nil {
					return err
				}
				if !confirmed {
					cmd.Println("Aborted.")
					return nil
				}
			}

			if err := s.dispatcher.Delete(ctx, item); err != nil {
				return fmt.Errorf("failed to delete: %w", err)
			}
			cmd.Printf("Deleted %q\n", item.Name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete folders without confirmation")
	return cmd
}

// newRenameCmd creates the 'rename' command.
func newRenameCmd() *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "rename <path> <new-name>",
		Short: "Rename a file or folder",
		Long: `Rename a file or folder. Folders can also be recolored.

Example:
  studious-files rename "Week 1/draft.pdf" "final.pdf"
  studious-files rename "Week 1" "Week 01" --color "#16a34a"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession("cli")
			if err != nil {
				return err
			}
			defer s.close()
			ctx := GetContext()

			dir, name := splitTarget(args[0])
			folderID, err := s.resolvePath(ctx, dir)
			if err != nil {
				return err
			}
			item, err := s.findItem(ctx, folderID, name)
			if err != nil {
				return err
			}

			newName := args[1]
			newColor := item.Color
			if color != "" {
				newColor = color
			}
			if newName == item.Name && newColor == item.Color {
				cmd.Println("Nothing to change.")
				return nil
			}

			if err := s.dispatcher.Rename(ctx, item, newName, newColor); err != nil {
				return fmt.Errorf("failed to rename: %w", err)
			}
			cmd.Printf("Renamed %q to %q\n", item.Name, newName)
			return nil
		},
	}

	cmd.Flags().StringVar(&color, "color", "", "New display color (folders only)")
	return cmd
}

// newShareCmd creates the 'share' command.
func newShareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share <path>",
		Short: "Copy a time-limited share link for a file",
		Long: `Obtain a signed, time-limited link for a file and copy it to the
clipboard. Available to every role.

Example:
  studious-files share "Week 1/syllabus.pdf"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession("cli")
			if err != nil {
				return err
			}
			defer s.close()
			ctx := GetContext()

			dir, name := splitTarget(args[0])
			folderID, err := s.resolvePath(ctx, dir)
			if err != nil {
				return err
			}
			item, err := s.findItem(ctx, folderID, name)
			if err != nil {
				return err
			}
			if item.IsFolder() {
				return fmt.Errorf("%q is a folder; only files can be shared", item.Name)
			}

			url, err := s.dispatcher.Share(ctx, item)
			if err != nil {
				return fmt.Errorf("failed to share: %w", err)
			}
			cmd.Printf("%s\n", url)
			cmd.Println("Link copied to clipboard (expires automatically).")
			return nil
		},
	}
	return cmd
}

// confirm prompts for a yes/no answer on the command's input stream.
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	cmd.Printf("%s [y/N]: ", prompt)
	var answer string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &answer); err != nil {
		return false, nil
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
