package state

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/studious-lms/studious-files/internal/events"
	"github.com/studious-lms/studious-files/internal/models"
	"github.com/studious-lms/studious-files/internal/services"
)

// Fetcher is the slice of the RPC surface the tree state needs.
// api.Client implements it.
type Fetcher interface {
	GetRootFolder(ctx context.Context) (*models.FolderRecord, error)
	GetFolder(ctx context.Context, folderID string) (*models.FolderRecord, error)
}

// FolderTreeState holds the currently viewed folder's children as fetched
// from the backend, which is the single source of truth. Items are rebuilt
// from every fetch; the post-refresh result is authoritative and discards
// any locally reordered or optimistically removed entries.
//
// Each load carries a monotonically increasing version stamp. A fetch whose
// stamp is older than the newest issued load is discarded on completion, so
// racing refreshes cannot clobber a newer view.
type FolderTreeState struct {
	fetcher  Fetcher
	eventBus *events.EventBus
	readOnly bool
	observer ListingObserver

	mu         sync.RWMutex
	items      []services.FileItem
	folderID   string // "" = class root
	folderName string
	parentID   string
	rootID     string // learned from the first root fetch
	loading    bool
	lastErr    error
	seq        uint64 // stamp of the newest issued load
}

// ListingObserver sees every successfully fetched listing before it is
// applied. The navigator's ancestor index implements it.
type ListingObserver interface {
	ObserveListing(rec *models.FolderRecord)
}

// NewFolderTreeState creates a folder tree state. readOnly marks every
// normalized item as non-mutable (student view).
func NewFolderTreeState(fetcher Fetcher, eventBus *events.EventBus, readOnly bool) *FolderTreeState {
	return &FolderTreeState{
		fetcher:  fetcher,
		eventBus: eventBus,
		readOnly: readOnly,
		items:    make([]services.FileItem, 0),
	}
}

// SetObserver registers a listing observer. Must be called before Load.
func (s *FolderTreeState) SetObserver(obs ListingObserver) {
	s.observer = obs
}

// Load fetches the children of folderID ("" = class root) and replaces the
// current view. At most one fetch runs per folder view: a duplicate Load for
// the folder already loading is a no-op, and a Load superseded by a newer
// one discards its result.
func (s *FolderTreeState) Load(ctx context.Context, folderID string) error {
	s.mu.Lock()
	if s.loading && s.folderID == folderID {
		s.mu.Unlock()
		return nil
	}
	s.seq++
	stamp := s.seq
	s.folderID = folderID
	s.loading = true
	s.mu.Unlock()

	s.publish(NewTreeLoadingEvent(folderID, true))

	var (
		rec *models.FolderRecord
		err error
	)
	if folderID == "" {
		rec, err = s.fetcher.GetRootFolder(ctx)
	} else {
		rec, err = s.fetcher.GetFolder(ctx, folderID)
	}

	s.mu.Lock()
	if stamp != s.seq {
		// A newer load was issued while this one was in flight; its result
		// wins and this one is dropped unrendered.
		s.mu.Unlock()
		return nil
	}
	s.loading = false

	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		s.publish(NewTreeLoadingEvent(folderID, false))
		s.publish(NewTreeErrorEvent(folderID, err))
		return err
	}

	if s.observer != nil {
		s.observer.ObserveListing(rec)
	}

	s.lastErr = nil
	s.folderName = rec.Name
	s.parentID = rec.ParentFolderID
	if folderID == "" {
		s.rootID = rec.ID
	}
	s.items = services.ItemsFromListing(rec, s.readOnly)
	s.sortItems()
	itemsCopy := make([]services.FileItem, len(s.items))
	copy(itemsCopy, s.items)
	name := s.folderName
	s.mu.Unlock()

	s.publish(NewTreeLoadingEvent(folderID, false))
	s.publish(NewFolderChangedEvent(folderID, name))
	s.publish(NewTreeChangedEvent(folderID, itemsCopy))
	return nil
}

// Refresh re-fetches the current folder. Dependent components must treat the
// result as authoritative.
func (s *FolderTreeState) Refresh(ctx context.Context) error {
	s.mu.Lock()
	folderID := s.folderID
	// A refresh always re-issues, so clear the dedupe guard first.
	s.loading = false
	s.mu.Unlock()
	return s.Load(ctx, folderID)
}

// Items returns a copy of the current items.
func (s *FolderTreeState) Items() []services.FileItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]services.FileItem, len(s.items))
	copy(result, s.items)
	return result
}

// FindByID finds an item in the current view by ID.
func (s *FolderTreeState) FindByID(id string) (services.FileItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return services.FileItem{}, false
}

// Count returns the number of items in the current view.
func (s *FolderTreeState) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// CurrentFolder returns the viewed folder's ID ("" = root) and name.
func (s *FolderTreeState) CurrentFolder() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folderID, s.folderName
}

// ParentFolderID returns the viewed folder's parent ("" at the root).
func (s *FolderTreeState) ParentFolderID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parentID
}

// RootFolderID returns the class root folder's ID, if a root fetch has
// happened yet.
func (s *FolderTreeState) RootFolderID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootID
}

// IsLoading reports whether a fetch is in flight.
func (s *FolderTreeState) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last fetch error, cleared by the next successful load.
func (s *FolderTreeState) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// sortItems orders folders first, then case-insensitive by name.
// Must hold lock.
func (s *FolderTreeState) sortItems() {
	sort.SliceStable(s.items, func(i, j int) bool {
		a, b := s.items[i], s.items[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

func (s *FolderTreeState) publish(event events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(event)
	}
}
