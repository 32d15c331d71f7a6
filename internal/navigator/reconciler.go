// Package navigator mediates drag sources and drop targets into validated
// move intents, and reconstructs the breadcrumb path of the viewed folder.
package navigator

import (
	"fmt"
	"sync"

	"github.com/studious-lms/studious-files/internal/api"
	"github.com/studious-lms/studious-files/internal/events"
	"github.com/studious-lms/studious-files/internal/models"
	"github.com/studious-lms/studious-files/internal/services"
)

// maxWalkDepth caps ancestor walks. The tree is acyclic by construction, but
// the index is fed from remote data the client does not own.
const maxWalkDepth = 256

// AncestorIndex is an arena of folder nodes keyed by id, each storing its
// parent id. It is fed by listings and breadcrumb fetches and walked on every
// proposed move, giving an O(depth) cycle check without extra remote calls.
type AncestorIndex struct {
	mu     sync.RWMutex
	parent map[string]string // folder ID -> parent folder ID ("" = root)
}

// NewAncestorIndex creates an empty index.
func NewAncestorIndex() *AncestorIndex {
	return &AncestorIndex{parent: make(map[string]string)}
}

// Observe records one parent link.
func (ix *AncestorIndex) Observe(folderID, parentID string) {
	if folderID == "" {
		return
	}
	ix.mu.Lock()
	ix.parent[folderID] = parentID
	ix.mu.Unlock()
}

// ObserveListing records the parent links visible in a fetched folder.
func (ix *AncestorIndex) ObserveListing(rec *models.FolderRecord) {
	if rec == nil {
		return
	}
	ix.mu.Lock()
	ix.parent[rec.ID] = rec.ParentFolderID
	for _, child := range rec.ChildFolders {
		ix.parent[child.ID] = rec.ID
	}
	ix.mu.Unlock()
}

// ObserveChain records an ancestor chain as returned by the backend,
// nearest parent first.
func (ix *AncestorIndex) ObserveChain(folderID string, chain []models.BreadcrumbEntry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	prev := folderID
	for _, entry := range chain {
		if prev != "" {
			ix.parent[prev] = entry.ID
		}
		prev = entry.ID
	}
	if prev != "" {
		// The chain's last entry is the root.
		ix.parent[prev] = ""
	}
}

// IsAncestor reports whether ancestorID lies on folderID's parent chain,
// as far as the index knows. folderID itself does not count.
func (ix *AncestorIndex) IsAncestor(ancestorID, folderID string) bool {
	if ancestorID == "" || folderID == "" {
		return false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	cur := folderID
	for depth := 0; depth < maxWalkDepth; depth++ {
		parent, ok := ix.parent[cur]
		if !ok || parent == "" {
			return false
		}
		if parent == ancestorID {
			return true
		}
		cur = parent
	}
	return false
}

// Move event types.
const (
	EventMoveRequested events.EventType = "move_requested"
	EventMoveRejected  events.EventType = "move_rejected"
)

// MoveIntent is the validated output of a completed drop: exactly one intent
// per valid drop, handed to the action dispatcher. The reconciler never
// mutates local state itself.
type MoveIntent struct {
	ItemID         string
	Kind           services.ItemKind
	TargetFolderID string // "" = class root
}

// MoveRequestedEvent is published when a valid drop produces a move intent.
type MoveRequestedEvent struct {
	events.BaseEvent
	Intent MoveIntent
}

// MoveRejectedEvent is published when a drop is suppressed by the
// legal-move predicate.
type MoveRejectedEvent struct {
	events.BaseEvent
	ItemID         string
	TargetFolderID string
	Reason         string
}

// Reconciler tracks the in-flight drag source and validates drop targets.
// A drag source may be a file or a folder; a drop target is always a folder,
// including breadcrumb segments and the implicit root.
type Reconciler struct {
	index    *AncestorIndex
	eventBus *events.EventBus

	mu   sync.Mutex
	drag *services.FileItem
}

// NewReconciler creates a reconciler over the given ancestor index.
func NewReconciler(index *AncestorIndex, eventBus *events.EventBus) *Reconciler {
	if index == nil {
		index = NewAncestorIndex()
	}
	return &Reconciler{index: index, eventBus: eventBus}
}

// Index returns the ancestor index the reconciler validates against.
func (r *Reconciler) Index() *AncestorIndex {
	return r.index
}

// Begin starts dragging an item. Read-only items are not draggable.
func (r *Reconciler) Begin(item services.FileItem) error {
	if item.ReadOnly {
		return fmt.Errorf("drag %s: %w", item.Name, api.ErrPermissionDenied)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drag = &item
	return nil
}

// Dragging returns the current drag source, if any.
func (r *Reconciler) Dragging() (services.FileItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drag == nil {
		return services.FileItem{}, false
	}
	return *r.drag, true
}

// Cancel abandons the current drag.
func (r *Reconciler) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drag = nil
}

// CanDrop is the legal-move predicate, also driving the hover highlight:
// a valid target highlights, an invalid one shows nothing and suppresses the
// drop. Rejects when no drag is active, when source and target are the same
// item, and when the source is a folder and the target lies inside its own
// subtree.
func (r *Reconciler) CanDrop(targetFolderID string) bool {
	r.mu.Lock()
	drag := r.drag
	r.mu.Unlock()

	if drag == nil {
		return false
	}
	if drag.ID == targetFolderID {
		return false
	}
	if drag.Kind == services.KindFolder {
		if r.index.IsAncestor(drag.ID, targetFolderID) {
			return false
		}
	}
	return true
}

// Drop completes the drag onto a target folder ("" = root). On a valid drop
// it clears the drag and returns exactly one move intent; on an invalid one
// it keeps the drag active and returns ErrInvalidMove without issuing
// anything.
func (r *Reconciler) Drop(targetFolderID string) (MoveIntent, error) {
	r.mu.Lock()
	drag := r.drag
	r.mu.Unlock()

	if drag == nil {
		return MoveIntent{}, fmt.Errorf("no drag in progress: %w", api.ErrInvalidMove)
	}

	if !r.CanDrop(targetFolderID) {
		err := fmt.Errorf("cannot move %s into %s: %w", drag.Name, targetFolderID, api.ErrInvalidMove)
		r.publish(&MoveRejectedEvent{
			BaseEvent:      events.NewBase(EventMoveRejected),
			ItemID:         drag.ID,
			TargetFolderID: targetFolderID,
			Reason:         err.Error(),
		})
		return MoveIntent{}, err
	}

	intent := MoveIntent{
		ItemID:         drag.ID,
		Kind:           drag.Kind,
		TargetFolderID: targetFolderID,
	}

	r.mu.Lock()
	r.drag = nil
	r.mu.Unlock()

	r.publish(&MoveRequestedEvent{
		BaseEvent: events.NewBase(EventMoveRequested),
		Intent:    intent,
	})
	return intent, nil
}

// Reorder reinserts the item at index from at index to within a flat sibling
// list, without changing any parent. Out-of-range indices return the list
// unchanged.
func Reorder(items []services.FileItem, from, to int) []services.FileItem {
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) || from == to {
		return items
	}
	result := make([]services.FileItem, 0, len(items))
	result = append(result, items[:from]...)
	result = append(result, items[from+1:]...)
	moved := items[from]

	result = append(result[:to], append([]services.FileItem{moved}, result[to:]...)...)
	return result
}

func (r *Reconciler) publish(event events.Event) {
	if r.eventBus != nil {
		r.eventBus.Publish(event)
	}
}
