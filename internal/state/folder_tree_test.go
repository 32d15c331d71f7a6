package state

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/studious-lms/studious-files/internal/api"
	"github.com/studious-lms/studious-files/internal/api/apitest"
	"github.com/studious-lms/studious-files/internal/config"
	"github.com/studious-lms/studious-files/internal/events"
	"github.com/studious-lms/studious-files/internal/logging"
	"github.com/studious-lms/studious-files/internal/models"
	"github.com/studious-lms/studious-files/internal/services"
)

// fakeFetcher serves canned folder records and can hold fetches open so
// tests can interleave loads deterministically.
type fakeFetcher struct {
	mu      sync.Mutex
	root    *models.FolderRecord
	folders map[string]*models.FolderRecord
	err     error

	gates   map[string]chan struct{} // folder ID -> release gate
	started map[string]chan struct{} // folder ID -> fetch-entered signal
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		folders: make(map[string]*models.FolderRecord),
		gates:   make(map[string]chan struct{}),
		started: make(map[string]chan struct{}),
	}
}

func (f *fakeFetcher) gate(folderID string) (started, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	started = make(chan struct{})
	release = make(chan struct{})
	f.started[folderID] = started
	f.gates[folderID] = release
	return started, release
}

func (f *fakeFetcher) fetch(folderID string, rec *models.FolderRecord) (*models.FolderRecord, error) {
	f.mu.Lock()
	started := f.started[folderID]
	gate := f.gates[folderID]
	err := f.err
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("folder not found")
	}
	return rec, nil
}

func (f *fakeFetcher) GetRootFolder(ctx context.Context) (*models.FolderRecord, error) {
	f.mu.Lock()
	rec := f.root
	f.mu.Unlock()
	return f.fetch("", rec)
}

func (f *fakeFetcher) GetFolder(ctx context.Context, folderID string) (*models.FolderRecord, error) {
	f.mu.Lock()
	rec := f.folders[folderID]
	f.mu.Unlock()
	return f.fetch(folderID, rec)
}

func rootListing() *models.FolderRecord {
	return &models.FolderRecord{
		ID:   "root-id",
		Name: "Class Files",
		ChildFolders: []models.FolderRecord{
			{ID: "d2", Name: "week 2"},
			{ID: "d1", Name: "Week 1"},
		},
		Files: []models.FileRecord{
			{ID: "f2", Name: "b.txt", Size: 2},
			{ID: "f1", Name: "A.txt", Size: 1},
		},
	}
}

func TestLoadRootSortsFoldersFirst(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.root = rootListing()
	s := NewFolderTreeState(fetcher, nil, false)

	if err := s.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load: %v", err)
	}

	items := s.Items()
	if len(items) != 4 {
		t.Fatalf("len(items) = %d, want 4", len(items))
	}
	gotOrder := []string{items[0].Name, items[1].Name, items[2].Name, items[3].Name}
	wantOrder := []string{"Week 1", "week 2", "A.txt", "b.txt"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Errorf("items[%d].Name = %q, want %q", i, gotOrder[i], wantOrder[i])
		}
	}

	if s.RootFolderID() != "root-id" {
		t.Errorf("RootFolderID() = %q, want root-id", s.RootFolderID())
	}
	if id, name := s.CurrentFolder(); id != "" || name != "Class Files" {
		t.Errorf("CurrentFolder() = (%q, %q), want (\"\", Class Files)", id, name)
	}
	if s.IsLoading() {
		t.Error("IsLoading() = true after completed load")
	}
}

func TestLoadErrorPreservesErrorState(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.err = errors.New("backend down")
	bus := events.NewEventBus(8)
	defer bus.Close()
	errCh := bus.Subscribe(EventTreeError)

	s := NewFolderTreeState(fetcher, bus, false)
	if err := s.Load(context.Background(), ""); err == nil {
		t.Fatal("Load returned nil, want error")
	}
	if s.Err() == nil {
		t.Error("Err() = nil after failed load")
	}

	select {
	case ev := <-errCh:
		if _, ok := ev.(*TreeErrorEvent); !ok {
			t.Errorf("event type = %T, want *TreeErrorEvent", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error event")
	}

	// A later successful load clears the error.
	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.root = rootListing()
	fetcher.mu.Unlock()
	if err := s.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load after recovery: %v", err)
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v after successful load, want nil", s.Err())
	}
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.folders["a"] = &models.FolderRecord{ID: "a", Name: "A",
		Files: []models.FileRecord{{ID: "fa", Name: "a.txt"}}}
	fetcher.folders["b"] = &models.FolderRecord{ID: "b", Name: "B",
		Files: []models.FileRecord{{ID: "fb", Name: "b.txt"}}}

	startedA, releaseA := fetcher.gate("a")
	startedB, releaseB := fetcher.gate("b")

	s := NewFolderTreeState(fetcher, nil, false)

	doneA := make(chan error, 1)
	go func() { doneA <- s.Load(context.Background(), "a") }()
	<-startedA

	doneB := make(chan error, 1)
	go func() { doneB <- s.Load(context.Background(), "b") }()
	<-startedB

	// The newer load lands first...
	close(releaseB)
	if err := <-doneB; err != nil {
		t.Fatalf("Load b: %v", err)
	}
	// ...then the superseded one completes and must be dropped.
	close(releaseA)
	if err := <-doneA; err != nil {
		t.Fatalf("Load a: %v", err)
	}

	if id, name := s.CurrentFolder(); id != "b" || name != "B" {
		t.Errorf("CurrentFolder() = (%q, %q), want (b, B)", id, name)
	}
	items := s.Items()
	if len(items) != 1 || items[0].ID != "fb" {
		t.Errorf("items = %+v, want the single file from folder b", items)
	}
}

func TestDuplicateLoadIsNoOp(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.folders["a"] = &models.FolderRecord{ID: "a", Name: "A"}

	started, release := fetcher.gate("a")
	s := NewFolderTreeState(fetcher, nil, false)

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background(), "a") }()
	<-started

	// Same folder, still loading: absorbed without a second fetch.
	if err := s.Load(context.Background(), "a"); err != nil {
		t.Fatalf("duplicate Load: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Load: %v", err)
	}
	if id, _ := s.CurrentFolder(); id != "a" {
		t.Errorf("CurrentFolder() id = %q, want a", id)
	}
}

func TestRefreshRebuildsFromFetch(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.root = rootListing()
	s := NewFolderTreeState(fetcher, nil, false)

	if err := s.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	before := s.Count()

	// The backend's listing shrinks; the refresh result is authoritative.
	fetcher.mu.Lock()
	fetcher.root = &models.FolderRecord{ID: "root-id", Name: "Class Files",
		Files: []models.FileRecord{{ID: "f1", Name: "A.txt"}}}
	fetcher.mu.Unlock()

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s.Count() == before {
		t.Error("Count() unchanged after refresh of a shrunk listing")
	}
	if _, ok := s.FindByID("f2"); ok {
		t.Error("FindByID(f2) found an item the backend no longer lists")
	}
}

func TestReadOnlyPropagatesToItems(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.root = rootListing()
	s := NewFolderTreeState(fetcher, nil, true)

	if err := s.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, item := range s.Items() {
		if !item.ReadOnly {
			t.Errorf("item %s ReadOnly = false in read-only view", item.ID)
		}
	}
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []string
}

func (o *recordingObserver) ObserveListing(rec *models.FolderRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, rec.ID)
}

func TestObserverSeesEveryListing(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.root = rootListing()
	fetcher.folders["d1"] = &models.FolderRecord{ID: "d1", Name: "Week 1", ParentFolderID: "root-id"}

	obs := &recordingObserver{}
	s := NewFolderTreeState(fetcher, nil, false)
	s.SetObserver(obs)

	if err := s.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load root: %v", err)
	}
	if err := s.Load(context.Background(), "d1"); err != nil {
		t.Fatalf("Load d1: %v", err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.seen) != 2 || obs.seen[0] != "root-id" || obs.seen[1] != "d1" {
		t.Errorf("observed listings = %v, want [root-id d1]", obs.seen)
	}
	if s.ParentFolderID() != "root-id" {
		t.Errorf("ParentFolderID() = %q, want root-id", s.ParentFolderID())
	}
}

func TestMoveThenRefreshDropsItemFromListing(t *testing.T) {
	backend := apitest.NewServer()
	archiveID := backend.SeedFolder("", "Archive", "")
	fileID := backend.SeedFile("", "notes.txt", "text/plain", 10)

	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)

	cfg := &config.Config{BaseURL: ts.URL, APIToken: "t", ClassID: "class-1", Role: config.RoleTeacher}
	client, err := api.NewClient(cfg, logging.NewLogger("tui"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	tree := NewFolderTreeState(client, nil, false)
	if err := tree.Load(context.Background(), ""); err != nil {
		t.Fatalf("Load root: %v", err)
	}
	if _, ok := tree.FindByID(fileID); !ok {
		t.Fatal("seeded file missing from the root listing")
	}

	d := services.NewDispatcher(client, config.RoleTeacher, nil, logging.NewLogger("tui"))
	d.SetRefresher(tree)

	if err := d.Move(context.Background(), fileID, "notes.txt", services.KindFile, archiveID); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if n := backend.OpCount("file.move"); n != 1 {
		t.Errorf("file.move calls = %d, want exactly 1", n)
	}

	// The post-move refresh is authoritative: the moved file is gone from
	// the root view without any optimistic patching.
	if _, ok := tree.FindByID(fileID); ok {
		t.Error("moved file still listed in the root view after refresh")
	}
	if _, ok := tree.FindByID(archiveID); !ok {
		t.Error("Archive folder missing from the refreshed root view")
	}
}
