package services

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/studious-lms/studious-files/internal/api"
	"github.com/studious-lms/studious-files/internal/api/apitest"
	"github.com/studious-lms/studious-files/internal/config"
	"github.com/studious-lms/studious-files/internal/events"
	"github.com/studious-lms/studious-files/internal/logging"
)

type recordingNotifier struct {
	mu        sync.Mutex
	failed    []string
	succeeded []string
}

func (n *recordingNotifier) ActionFailed(action, itemName, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, action+" "+itemName)
}

func (n *recordingNotifier) ActionSucceeded(action, itemName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.succeeded = append(n.succeeded, action+" "+itemName)
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// newTestDispatcher wires a dispatcher to an in-memory backend.
func newTestDispatcher(t *testing.T, role config.Role) (*Dispatcher, *apitest.Server, *events.EventBus) {
	t.Helper()

	backend := apitest.NewServer()
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)

	cfg := &config.Config{BaseURL: ts.URL, APIToken: "test-token", ClassID: "class-1", Role: role}
	client, err := api.NewClient(cfg, logging.NewLogger("tui"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	bus := events.NewEventBus(0)
	t.Cleanup(bus.Close)
	return NewDispatcher(client, role, bus, logging.NewLogger("tui")), backend, bus
}

func waitEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestRenameUnchangedNameTriggersPrompt(t *testing.T) {
	d, backend, bus := newTestDispatcher(t, config.RoleTeacher)
	prompts := bus.Subscribe(EventRenamePrompt)

	item := FileItem{ID: "f1", Name: "notes.txt", Kind: KindFile}
	if err := d.Rename(context.Background(), item, "notes.txt", ""); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	ev := waitEvent(t, prompts)
	prompt, ok := ev.(*RenamePromptEvent)
	if !ok {
		t.Fatalf("event type = %T, want *RenamePromptEvent", ev)
	}
	if prompt.Item.ID != "f1" {
		t.Errorf("prompt.Item.ID = %q, want f1", prompt.Item.ID)
	}
	if n := backend.OpCount("file.rename"); n != 0 {
		t.Errorf("file.rename calls = %d, want 0", n)
	}
}

func TestRenameFolderColorChangeIsNotAPrompt(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleTeacher)
	id := backend.SeedFolder("", "Homework", "#ff0000")

	item := FileItem{ID: id, Name: "Homework", Kind: KindFolder, Color: "#ff0000"}
	if err := d.Rename(context.Background(), item, "Homework", "#00ff00"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if n := backend.OpCount("folder.update"); n != 1 {
		t.Errorf("folder.update calls = %d, want 1", n)
	}
}

func TestRenameFileIssuesSingleCall(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleTeacher)
	id := backend.SeedFile("", "old.txt", "text/plain", 10)

	item := FileItem{ID: id, Name: "old.txt", Kind: KindFile}
	if err := d.Rename(context.Background(), item, "new.txt", ""); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if n := backend.OpCount("file.rename"); n != 1 {
		t.Errorf("file.rename calls = %d, want 1", n)
	}
}

func TestStudentMutationRejectedWithoutRequest(t *testing.T) {
	d, backend, bus := newTestDispatcher(t, config.RoleStudent)
	failures := bus.Subscribe(EventActionFailed)
	notifier := &recordingNotifier{}
	d.SetNotifier(notifier)

	item := FileItem{ID: "f1", Name: "notes.txt", Kind: KindFile}
	err := d.Delete(context.Background(), item)
	if !errors.Is(err, api.ErrPermissionDenied) {
		t.Fatalf("Delete error = %v, want ErrPermissionDenied", err)
	}
	if n := backend.OpCount("file.delete"); n != 0 {
		t.Errorf("file.delete calls = %d, want 0", n)
	}

	waitEvent(t, failures)
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.failed) != 1 {
		t.Errorf("failure notifications = %d, want 1", len(notifier.failed))
	}
}

func TestStudentCanShare(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleStudent)
	id := backend.SeedFile("", "notes.txt", "text/plain", 10)

	old := clipboardWrite
	var copied string
	clipboardWrite = func(s string) error {
		copied = s
		return nil
	}
	defer func() { clipboardWrite = old }()

	url, err := d.Share(context.Background(), FileItem{ID: id, Name: "notes.txt", Kind: KindFile})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if !strings.Contains(url, id) {
		t.Errorf("signed URL %q does not reference file %s", url, id)
	}
	if copied != url {
		t.Errorf("clipboard = %q, want %q", copied, url)
	}
}

func TestShareSurvivesClipboardFailure(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleTeacher)
	id := backend.SeedFile("", "notes.txt", "text/plain", 10)

	old := clipboardWrite
	clipboardWrite = func(string) error { return errors.New("no display") }
	defer func() { clipboardWrite = old }()

	url, err := d.Share(context.Background(), FileItem{ID: id, Name: "notes.txt", Kind: KindFile})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if url == "" {
		t.Error("Share returned empty URL")
	}
}

func TestPendingActionBlocksSameItemOnly(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleTeacher)
	id1 := backend.SeedFile("", "a.txt", "text/plain", 1)
	id2 := backend.SeedFile("", "b.txt", "text/plain", 1)

	release, err := d.begin(ActionDelete, id1, "a.txt")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !d.IsPending(id1) {
		t.Error("IsPending(id1) = false during in-flight action")
	}

	err = d.Rename(context.Background(), FileItem{ID: id1, Name: "a.txt", Kind: KindFile}, "a2.txt", "")
	if !errors.Is(err, ErrActionPending) {
		t.Errorf("Rename on busy item = %v, want ErrActionPending", err)
	}
	if n := backend.OpCount("file.rename"); n != 0 {
		t.Errorf("file.rename calls = %d, want 0 while gated", n)
	}

	// A different item is unaffected.
	if err := d.Rename(context.Background(), FileItem{ID: id2, Name: "b.txt", Kind: KindFile}, "b2.txt", ""); err != nil {
		t.Errorf("Rename on idle item: %v", err)
	}

	release()
	if d.IsPending(id1) {
		t.Error("IsPending(id1) = true after release")
	}
	if err := d.Rename(context.Background(), FileItem{ID: id1, Name: "a.txt", Kind: KindFile}, "a3.txt", ""); err != nil {
		t.Errorf("Rename after release: %v", err)
	}
}

func TestMoveSelfTargetRejectedWithoutRequest(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleTeacher)
	id := backend.SeedFolder("", "Homework", "")

	err := d.Move(context.Background(), id, "Homework", KindFolder, id)
	if !errors.Is(err, api.ErrInvalidMove) {
		t.Fatalf("Move error = %v, want ErrInvalidMove", err)
	}
	if n := backend.OpCount("folder.move"); n != 0 {
		t.Errorf("folder.move calls = %d, want 0", n)
	}
}

func TestMoveIssuesSingleCallAndRefreshes(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleTeacher)
	folderID := backend.SeedFolder("", "Homework", "")
	fileID := backend.SeedFile("", "notes.txt", "text/plain", 10)

	refresher := &countingRefresher{}
	d.SetRefresher(refresher)

	if err := d.Move(context.Background(), fileID, "notes.txt", KindFile, folderID); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if n := backend.OpCount("file.move"); n != 1 {
		t.Errorf("file.move calls = %d, want 1", n)
	}
	if refresher.count() != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.count())
	}
	if got, _ := backend.FolderOf(fileID); got != folderID {
		t.Errorf("file parent = %q, want %q", got, folderID)
	}
}

func TestMoveFailureSkipsRefresh(t *testing.T) {
	d, backend, bus := newTestDispatcher(t, config.RoleTeacher)
	parent := backend.SeedFolder("", "Parent", "")
	child := backend.SeedFolder(parent, "Child", "")

	refresher := &countingRefresher{}
	d.SetRefresher(refresher)
	failures := bus.Subscribe(EventActionFailed)

	err := d.Move(context.Background(), parent, "Parent", KindFolder, child)
	if !errors.Is(err, api.ErrInvalidMove) {
		t.Fatalf("Move into own subtree = %v, want ErrInvalidMove", err)
	}
	if refresher.count() != 0 {
		t.Errorf("refresh calls = %d, want 0 after failure", refresher.count())
	}
	waitEvent(t, failures)
}

func TestMoveFailureNamesTheItem(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleTeacher)
	parent := backend.SeedFolder("", "Old Labs", "")
	child := backend.SeedFolder(parent, "Week 1", "")

	notifier := &recordingNotifier{}
	d.SetNotifier(notifier)

	err := d.Move(context.Background(), parent, "Old Labs", KindFolder, child)
	if !errors.Is(err, api.ErrInvalidMove) {
		t.Fatalf("Move into own subtree = %v, want ErrInvalidMove", err)
	}
	if !strings.Contains(err.Error(), "Old Labs") {
		t.Errorf("error %q does not name the item", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.failed) != 1 {
		t.Fatalf("failure notifications = %d, want 1", len(notifier.failed))
	}
	// The toast carries the display name, not the opaque folder ID.
	if got := notifier.failed[0]; got != "move Old Labs" {
		t.Errorf("notification = %q, want %q", got, "move Old Labs")
	}
}

func TestDeleteFolderCascades(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleTeacher)
	parent := backend.SeedFolder("", "Parent", "")
	child := backend.SeedFolder(parent, "Child", "")
	fileID := backend.SeedFile(child, "deep.txt", "text/plain", 5)

	if err := d.Delete(context.Background(), FileItem{ID: parent, Name: "Parent", Kind: KindFolder}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := backend.ParentOf(child); ok {
		t.Error("child folder survived cascade delete")
	}
	if _, ok := backend.FolderOf(fileID); ok {
		t.Error("nested file survived cascade delete")
	}
}

func TestCreateFolderConflictSurfaces(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleTeacher)
	backend.SeedFolder("", "Homework", "")

	_, err := d.CreateFolder(context.Background(), "", "Homework", "")
	if !api.IsNameConflictError(err) {
		t.Fatalf("CreateFolder duplicate = %v, want name conflict", err)
	}
}

func TestUploadFilesGatedPerFolder(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleTeacher)
	folderID := backend.SeedFolder("", "Homework", "")

	release, err := d.begin(ActionUpload, folderID, "big.bin")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer release()

	_, err = d.UploadFiles(context.Background(), folderID, []api.Upload{
		{Name: "second.txt", Reader: strings.NewReader("x")},
	})
	if !errors.Is(err, ErrActionPending) {
		t.Errorf("concurrent upload into busy folder = %v, want ErrActionPending", err)
	}
}

func TestUploadFiles(t *testing.T) {
	d, backend, _ := newTestDispatcher(t, config.RoleTeacher)
	folderID := backend.SeedFolder("", "Homework", "")

	records, err := d.UploadFiles(context.Background(), folderID, []api.Upload{
		{Name: "hw1.txt", Reader: strings.NewReader("answers")},
		{Name: "hw2.txt", Reader: strings.NewReader("more answers")},
	})
	if err != nil {
		t.Fatalf("UploadFiles: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Name != "hw1.txt" || records[0].Size != 7 {
		t.Errorf("records[0] = %q (%d bytes), want hw1.txt (7 bytes)", records[0].Name, records[0].Size)
	}
	if n := backend.OpCount("folder.uploadFiles"); n != 1 {
		t.Errorf("upload requests = %d, want 1 for a multi-file batch", n)
	}
}

func TestActionKindString(t *testing.T) {
	tests := []struct {
		kind ActionKind
		want string
	}{
		{ActionRename, "rename"},
		{ActionDelete, "delete"},
		{ActionMove, "move"},
		{ActionShare, "share"},
		{ActionDownload, "download"},
		{ActionUpload, "upload"},
		{ActionCreateFolder, "create folder"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ActionKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
