// Package services provides frontend-agnostic business logic for the
// class-files navigator: the normalized item model and the action
// dispatcher. No framework dependencies; any frontend can sit on top.
package services

import (
	"math"
	"strconv"

	"github.com/studious-lms/studious-files/internal/models"
)

// ItemKind is the closed variant tag for a FileItem.
type ItemKind int

const (
	KindFile ItemKind = iota
	KindFolder
)

func (k ItemKind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// FileItem is the normalized view entity for files and folders.
// It is rebuilt from every fetch and never trusted across navigation.
type FileItem struct {
	// ID is the opaque identifier, unique within a class's file tree.
	ID string

	// Name is the display name, unique among siblings.
	Name string

	// Kind distinguishes files from folders.
	Kind ItemKind

	// Size is the byte count. Files only.
	Size int64

	// MIMEType is the file's content type. Files only.
	MIMEType string

	// ChildCount is the number of immediate children. Folders only.
	ChildCount int

	// Color is an optional display color. Folders only.
	Color string

	// ParentFolderID is the containing folder; empty only for the root.
	ParentFolderID string

	// ReadOnly is true when the acting user lacks mutation rights.
	ReadOnly bool
}

// IsFolder reports whether the item is a folder.
func (it FileItem) IsFolder() bool {
	return it.Kind == KindFolder
}

// ItemFromFile normalizes a remote file record.
func ItemFromFile(rec models.FileRecord, readOnly bool) FileItem {
	return FileItem{
		ID:             rec.ID,
		Name:           rec.Name,
		Kind:           KindFile,
		Size:           rec.Size,
		MIMEType:       rec.Type,
		ParentFolderID: rec.FolderID,
		ReadOnly:       readOnly,
	}
}

// ItemFromFolder normalizes a remote folder record.
func ItemFromFolder(rec models.FolderRecord, readOnly bool) FileItem {
	return FileItem{
		ID:             rec.ID,
		Name:           rec.Name,
		Kind:           KindFolder,
		ChildCount:     len(rec.ChildFolders) + len(rec.Files),
		Color:          rec.Color,
		ParentFolderID: rec.ParentFolderID,
		ReadOnly:       readOnly,
	}
}

// ItemsFromListing normalizes a fetched folder into its children,
// folders first. The result always has exactly
// len(rec.ChildFolders)+len(rec.Files) entries.
func ItemsFromListing(rec *models.FolderRecord, readOnly bool) []FileItem {
	items := make([]FileItem, 0, len(rec.ChildFolders)+len(rec.Files))
	for _, f := range rec.ChildFolders {
		child := ItemFromFolder(f, readOnly)
		if child.ParentFolderID == "" {
			child.ParentFolderID = rec.ID
		}
		items = append(items, child)
	}
	for _, f := range rec.Files {
		child := ItemFromFile(f, readOnly)
		if child.ParentFolderID == "" {
			child.ParentFolderID = rec.ID
		}
		items = append(items, child)
	}
	return items
}

// FormatBytes renders a byte count using base-1024 units, picking the
// largest unit where the value is at least 1, rounded to two decimals with
// trailing zeros dropped. Zero renders as "0 Bytes".
func FormatBytes(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}

	units := []string{"Bytes", "KB", "MB", "GB"}
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}

	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + units[unit]
}
