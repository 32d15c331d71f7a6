// Package models defines the wire-level records exchanged with the
// studious class-files backend.
package models

import "time"

// FileRecord represents a file as returned by the backend.
type FileRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"` // MIME type string
	Size       int64     `json:"size"`
	FolderID   string    `json:"folderId"`
	UploadedAt time.Time `json:"uploadedAt,omitempty"`
}

// FolderRecord represents a folder and its immediate children.
// ChildFolders carries summaries only; listing a child requires its own fetch.
type FolderRecord struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Color          string         `json:"color,omitempty"`
	ParentFolderID string         `json:"parentFolderId,omitempty"` // empty only for the root folder
	ChildFolders   []FolderRecord `json:"childFolders,omitempty"`
	Files          []FileRecord   `json:"files,omitempty"`
}

// BreadcrumbEntry is one ancestor in a folder's parent chain.
// The backend returns chains nearest-parent first.
type BreadcrumbEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParentsResponse is the response to a folder parents lookup.
type ParentsResponse struct {
	Parents []BreadcrumbEntry `json:"parents"`
}

// SignedURLResponse carries a time-limited download/preview URL for a file.
type SignedURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateFolderRequest is the payload for folder creation.
type CreateFolderRequest struct {
	Name           string `json:"name"`
	ParentFolderID string `json:"parentFolderId,omitempty"`
	Color          string `json:"color,omitempty"`
}

// UpdateFolderRequest renames and/or recolors a folder.
type UpdateFolderRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// MoveRequest reparents a file or folder.
type MoveRequest struct {
	TargetFolderID string `json:"targetFolderId"`
}

// RenameFileRequest renames a file.
type RenameFileRequest struct {
	Name string `json:"name"`
}

// ErrorResponse is the backend's error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
