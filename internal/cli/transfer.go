// Package cli upload and download commands.
package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/studious-lms/studious-files/internal/api"
)

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files into a folder",
		Long: `Upload one or more local files into a class folder. All files go up
in a single request.

Example:
  studious-files upload hw1.pdf hw2.pdf --to "Week 1/Homework"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession("cli")
			if err != nil {
				return err
			}
			defer s.close()
			ctx := GetContext()

			folderID, err := s.resolvePath(ctx, dest)
			if err != nil {
				return err
			}
			if folderID == "" {
				// Uploads address a concrete folder; resolve the root's ID.
				if err := s.tree.Load(ctx, ""); err != nil {
					return err
				}
				folderID = s.tree.RootFolderID()
			}

			var total int64
			handles := make([]*os.File, 0, len(args))
			defer func() {
				for _, f := range handles {
					f.Close()
				}
			}()
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}
				info, err := f.Stat()
				if err != nil {
					return fmt.Errorf("failed to stat %s: %w", path, err)
				}
				total += info.Size()
				handles = append(handles, f)
			}

			bar := progressbar.DefaultBytes(total, "uploading")
			uploads := make([]api.Upload, 0, len(handles))
			for i, f := range handles {
				uploads = append(uploads, api.Upload{
					Name:   filepath.Base(args[i]),
					Reader: io.TeeReader(f, bar),
				})
			}

			records, err := s.dispatcher.UploadFiles(ctx, folderID, uploads)
			if err != nil {
				return fmt.Errorf("failed to upload: %w", err)
			}
			cmd.Printf("\nUploaded %d file(s)\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringVar(&dest, "to", "", "Destination folder path (default: class root)")
	return cmd
}

// newDownloadCmd creates the 'download' command.
func newDownloadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <path>",
		Short: "Download a file",
		Long: `Download a file via a signed URL.

Example:
  studious-files download "Week 1/syllabus.pdf"
  studious-files download "Week 1/syllabus.pdf" -o /tmp/syllabus.pdf`,
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
				return fmt.Errorf("%q is a folder; only files can be downloaded", item.Name)
			}

			signed, err := s.dispatcher.Download(ctx, item)
			if err != nil {
				return fmt.Errorf("failed to get download URL: %w", err)
			}

			if output == "" {
				output = item.Name
			}
			return fetchToFile(cmd, signed.URL, output, item.Size)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: the file's name)")
	return cmd
}

// fetchToFile streams a signed URL to disk with a progress bar.
func fetchToFile(cmd *cobra.Command, url, path string, size int64) error {
	req, err := http.NewRequestWithContext(GetContext(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()

	if size <= 0 {
		size = resp.ContentLength
	}
	bar := progressbar.DefaultBytes(size, "downloading")
	if _, err := io.Copy(io.MultiWriter(out, bar), resp.Body); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	cmd.Printf("\nSaved %s\n", path)
	return nil
}
