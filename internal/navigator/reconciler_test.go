package navigator

import (
	"errors"
	"testing"
	"time"

	"github.com/studious-lms/studious-files/internal/api"
	"github.com/studious-lms/studious-files/internal/events"
	"github.com/studious-lms/studious-files/internal/models"
	"github.com/studious-lms/studious-files/internal/services"
)

// buildIndex wires root -> a -> b -> c plus a sibling branch root -> d.
func buildIndex() *AncestorIndex {
	ix := NewAncestorIndex()
	ix.Observe("a", "root")
	ix.Observe("b", "a")
	ix.Observe("c", "b")
	ix.Observe("d", "root")
	ix.Observe("root", "")
	return ix
}

func TestIsAncestor(t *testing.T) {
	ix := buildIndex()
	tests := []struct {
		ancestor, folder string
		want             bool
	}{
		{"a", "c", true},
		{"root", "c", true},
		{"b", "c", true},
		{"c", "a", false},
		{"a", "a", false}, // a folder is not its own ancestor
		{"a", "d", false},
		{"", "c", false},
		{"a", "", false},
		{"a", "unknown", false},
	}
	for _, tt := range tests {
		if got := ix.IsAncestor(tt.ancestor, tt.folder); got != tt.want {
			t.Errorf("IsAncestor(%q, %q) = %v, want %v", tt.ancestor, tt.folder, got, tt.want)
		}
	}
}

func TestObserveListingFeedsIndex(t *testing.T) {
	ix := NewAncestorIndex()
	ix.ObserveListing(&models.FolderRecord{
		ID:             "b",
		ParentFolderID: "a",
		ChildFolders:   []models.FolderRecord{{ID: "c"}},
	})

	if !ix.IsAncestor("a", "c") {
		t.Error("IsAncestor(a, c) = false after observing b's listing")
	}
	if !ix.IsAncestor("b", "c") {
		t.Error("IsAncestor(b, c) = false after observing b's listing")
	}
}

func TestObserveChainFeedsIndex(t *testing.T) {
	ix := NewAncestorIndex()
	// Ancestors of c, nearest parent first: b, a, root.
	ix.ObserveChain("c", []models.BreadcrumbEntry{
		{ID: "b", Name: "B"},
		{ID: "a", Name: "A"},
		{ID: "root", Name: "Class Files"},
	})

	if !ix.IsAncestor("root", "c") {
		t.Error("IsAncestor(root, c) = false after observing c's chain")
	}
	if !ix.IsAncestor("a", "b") {
		t.Error("IsAncestor(a, b) = false after observing c's chain")
	}
	if ix.IsAncestor("c", "root") {
		t.Error("IsAncestor(c, root) = true, chain recorded backwards")
	}
}

func TestBeginRejectsReadOnlyItems(t *testing.T) {
	r := NewReconciler(buildIndex(), nil)

	err := r.Begin(services.FileItem{ID: "f1", Name: "notes.txt", ReadOnly: true})
	if !errors.Is(err, api.ErrPermissionDenied) {
		t.Fatalf("Begin read-only = %v, want ErrPermissionDenied", err)
	}
	if _, ok := r.Dragging(); ok {
		t.Error("Dragging() reports an active drag after rejected Begin")
	}
}

func TestCanDrop(t *testing.T) {
	r := NewReconciler(buildIndex(), nil)

	if r.CanDrop("d") {
		t.Error("CanDrop with no active drag = true, want false")
	}

	if err := r.Begin(services.FileItem{ID: "a", Name: "A", Kind: services.KindFolder}); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	tests := []struct {
		target string
		want   bool
	}{
		{"a", false}, // itself
		{"b", false}, // direct child
		{"c", false}, // deeper descendant
		{"d", true},  // sibling branch
		{"", true},   // class root
	}
	for _, tt := range tests {
		if got := r.CanDrop(tt.target); got != tt.want {
			t.Errorf("CanDrop(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}
}

func TestCanDropFileIgnoresSubtreeRule(t *testing.T) {
	r := NewReconciler(buildIndex(), nil)

	// A file that happens to live under a can be dropped anywhere but onto
	// its own ID.
	if err := r.Begin(services.FileItem{ID: "f1", Name: "notes.txt", Kind: services.KindFile}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !r.CanDrop("b") {
		t.Error("CanDrop(b) = false for a file drag")
	}
	if r.CanDrop("f1") {
		t.Error("CanDrop(f1) = true for the dragged item itself")
	}
}

func TestDropProducesSingleIntent(t *testing.T) {
	bus := events.NewEventBus(8)
	defer bus.Close()
	requested := bus.Subscribe(EventMoveRequested)

	r := NewReconciler(buildIndex(), bus)
	if err := r.Begin(services.FileItem{ID: "a", Name: "A", Kind: services.KindFolder}); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	intent, err := r.Drop("d")
	if err != nil {
		t.Fatalf("Drop: %v", err)
	}
	want := MoveIntent{ItemID: "a", Kind: services.KindFolder, TargetFolderID: "d"}
	if intent != want {
		t.Errorf("intent = %+v, want %+v", intent, want)
	}
	if _, ok := r.Dragging(); ok {
		t.Error("drag still active after a valid drop")
	}

	select {
	case ev := <-requested:
		me, ok := ev.(*MoveRequestedEvent)
		if !ok {
			t.Fatalf("event type = %T, want *MoveRequestedEvent", ev)
		}
		if me.Intent != want {
			t.Errorf("event intent = %+v, want %+v", me.Intent, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for move request event")
	}

	// A second drop with no drag active cannot produce another intent.
	if _, err := r.Drop("d"); !errors.Is(err, api.ErrInvalidMove) {
		t.Errorf("Drop without drag = %v, want ErrInvalidMove", err)
	}
}

func TestInvalidDropKeepsDragActive(t *testing.T) {
	bus := events.NewEventBus(8)
	defer bus.Close()
	rejected := bus.Subscribe(EventMoveRejected)

	r := NewReconciler(buildIndex(), bus)
	if err := r.Begin(services.FileItem{ID: "a", Name: "A", Kind: services.KindFolder}); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if _, err := r.Drop("c"); !errors.Is(err, api.ErrInvalidMove) {
		t.Fatalf("Drop into own subtree = %v, want ErrInvalidMove", err)
	}
	if _, ok := r.Dragging(); !ok {
		t.Error("drag cleared by a suppressed drop")
	}

	select {
	case ev := <-rejected:
		re, ok := ev.(*MoveRejectedEvent)
		if !ok {
			t.Fatalf("event type = %T, want *MoveRejectedEvent", ev)
		}
		if re.ItemID != "a" || re.TargetFolderID != "c" {
			t.Errorf("rejection = (%q, %q), want (a, c)", re.ItemID, re.TargetFolderID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for rejection event")
	}

	// The same drag can still complete onto a legal target.
	if _, err := r.Drop("d"); err != nil {
		t.Errorf("Drop onto sibling after rejection: %v", err)
	}
}

func TestCancelClearsDrag(t *testing.T) {
	r := NewReconciler(buildIndex(), nil)
	if err := r.Begin(services.FileItem{ID: "a", Kind: services.KindFolder}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	r.Cancel()
	if _, ok := r.Dragging(); ok {
		t.Error("Dragging() reports an active drag after Cancel")
	}
}

func TestReorder(t *testing.T) {
	names := func(items []services.FileItem) []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.Name
		}
		return out
	}
	base := func() []services.FileItem {
		return []services.FileItem{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}
	}

	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"forward", 0, 2, []string{"b", "c", "a", "d"}},
		{"backward", 3, 1, []string{"a", "d", "b", "c"}},
		{"same index", 1, 1, []string{"a", "b", "c", "d"}},
		{"from out of range", 9, 1, []string{"a", "b", "c", "d"}},
		{"to out of range", 1, -1, []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		got := names(Reorder(base(), tt.from, tt.to))
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("%s: Reorder = %v, want %v", tt.name, got, tt.want)
				break
			}
		}
	}
}

func TestReorderPreservesParents(t *testing.T) {
	items := []services.FileItem{
		{ID: "1", ParentFolderID: "p"},
		{ID: "2", ParentFolderID: "p"},
		{ID: "3", ParentFolderID: "p"},
	}
	for _, it := range Reorder(items, 0, 2) {
		if it.ParentFolderID != "p" {
			t.Errorf("item %s ParentFolderID = %q, want p", it.ID, it.ParentFolderID)
		}
	}
}
