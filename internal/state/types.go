// Package state provides observable state containers for the class-files
// navigator. Containers emit events when state changes, allowing any
// frontend to subscribe and update its view accordingly.
package state

import (
	"github.com/studious-lms/studious-files/internal/events"
	"github.com/studious-lms/studious-files/internal/services"
)

// Folder tree event types.
const (
	EventTreeChanged   events.EventType = "tree_changed"
	EventTreeLoading   events.EventType = "tree_loading"
	EventTreeError     events.EventType = "tree_error"
	EventFolderChanged events.EventType = "folder_changed"
)

// TreeChangedEvent is published when the displayed folder's children change.
type TreeChangedEvent struct {
	events.BaseEvent
	FolderID string
	Items    []services.FileItem
}

// TreeLoadingEvent is published when a fetch starts or settles.
type TreeLoadingEvent struct {
	events.BaseEvent
	FolderID string
	Loading  bool
}

// TreeErrorEvent is published when a fetch fails. The error state is
// retryable; the navigator keeps working.
type TreeErrorEvent struct {
	events.BaseEvent
	FolderID string
	Err      error
}

// FolderChangedEvent is published when navigation lands on a new folder.
type FolderChangedEvent struct {
	events.BaseEvent
	FolderID   string
	FolderName string
}

// NewTreeChangedEvent creates a new TreeChangedEvent.
func NewTreeChangedEvent(folderID string, items []services.FileItem) *TreeChangedEvent {
	return &TreeChangedEvent{
		BaseEvent: events.NewBase(EventTreeChanged),
		FolderID:  folderID,
		Items:     items,
	}
}

// NewTreeLoadingEvent creates a new TreeLoadingEvent.
func NewTreeLoadingEvent(folderID string, loading bool) *TreeLoadingEvent {
	return &TreeLoadingEvent{
		BaseEvent: events.NewBase(EventTreeLoading),
		FolderID:  folderID,
		Loading:   loading,
	}
}

// NewTreeErrorEvent creates a new TreeErrorEvent.
func NewTreeErrorEvent(folderID string, err error) *TreeErrorEvent {
	return &TreeErrorEvent{
		BaseEvent: events.NewBase(EventTreeError),
		FolderID:  folderID,
		Err:       err,
	}
}

// NewFolderChangedEvent creates a new FolderChangedEvent.
func NewFolderChangedEvent(folderID, folderName string) *FolderChangedEvent {
	return &FolderChangedEvent{
		BaseEvent:  events.NewBase(EventFolderChanged),
		FolderID:   folderID,
		FolderName: folderName,
	}
}
