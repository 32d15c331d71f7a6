package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"

	"github.com/studious-lms/studious-files/internal/api"
	"github.com/studious-lms/studious-files/internal/config"
	"github.com/studious-lms/studious-files/internal/events"
	"github.com/studious-lms/studious-files/internal/logging"
	"github.com/studious-lms/studious-files/internal/models"
)

// ActionKind is the closed set of user-triggered operations.
// One dispatcher method per kind; no string-tag routing.
type ActionKind int

const (
	ActionRename ActionKind = iota
	ActionDelete
	ActionMove
	ActionShare
	ActionDownload
	ActionUpload
	ActionCreateFolder
)

func (k ActionKind) String() string {
	switch k {
	case ActionRename:
		return "rename"
	case ActionDelete:
		return "delete"
	case ActionMove:
		return "move"
	case ActionShare:
		return "share"
	case ActionDownload:
		return "download"
	case ActionUpload:
		return "upload"
	case ActionCreateFolder:
		return "create folder"
	default:
		return "unknown"
	}
}

// ErrActionPending is returned when an action is dispatched for an item that
// already has one in flight. Actions on different items run independently.
var ErrActionPending = errors.New("another action is pending on this item")

// Refresher re-fetches the current folder view after a completed action.
// FolderTreeState implements it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Notifier surfaces action results to the user. Implementations must not
// block; nil disables notifications.
type Notifier interface {
	ActionFailed(action, itemName, reason string)
	ActionSucceeded(action, itemName string)
}

// clipboardWrite is swapped out in tests.
var clipboardWrite = clipboard.WriteAll

// Dispatcher routes user-triggered operations to the backend and reconciles
// the folder view afterward. Per item, actions are strictly sequential:
// Idle -> Pending -> {Success -> Idle(refreshed), Failure -> Idle(error shown)}.
// The tree itself is never patched optimistically; a refresh either lands or
// nothing changes.
type Dispatcher struct {
	client   *api.Client
	role     config.Role
	eventBus *events.EventBus
	logger   *logging.Logger
	notifier Notifier

	mu        sync.Mutex
	pending   map[string]ActionKind // item ID -> in-flight action
	refresher Refresher
}

// NewDispatcher creates an action dispatcher.
func NewDispatcher(client *api.Client, role config.Role, eventBus *events.EventBus, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Dispatcher{
		client:   client,
		role:     role,
		eventBus: eventBus,
		logger:   logger,
		pending:  make(map[string]ActionKind),
	}
}

// SetRefresher registers the folder view to refresh after completed actions.
func (d *Dispatcher) SetRefresher(r Refresher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refresher = r
}

// SetNotifier registers the user-facing notifier.
func (d *Dispatcher) SetNotifier(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifier = n
}

// IsPending reports whether an action is in flight for the item.
func (d *Dispatcher) IsPending(itemID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[itemID]
	return ok
}

// begin transitions an item to Pending, rejecting a second concurrent action
// on the same item. The returned release func restores Idle.
func (d *Dispatcher) begin(kind ActionKind, itemID, itemName string) (func(), error) {
	d.mu.Lock()
	if inflight, ok := d.pending[itemID]; ok {
		d.mu.Unlock()
		return nil, fmt.Errorf("%s %s: %w (%s in flight)", kind, itemName, ErrActionPending, inflight)
	}
	d.pending[itemID] = kind
	d.mu.Unlock()

	d.publish(NewActionStartedEvent(kind, itemID, itemName))
	return func() {
		d.mu.Lock()
		delete(d.pending, itemID)
		d.mu.Unlock()
	}, nil
}

// requireMutate is the client-side permission fast path. It is a UX guard
// only; the backend is the actual authority.
func (d *Dispatcher) requireMutate(kind ActionKind, itemName string) error {
	if d.role.CanMutate() {
		return nil
	}
	err := fmt.Errorf("%s %s: %w", kind, itemName, api.ErrPermissionDenied)
	d.fail(kind, "", itemName, err)
	return err
}

// finish reconciles the view after a completed remote call: refresh on
// success, notification on failure, never a partially mutated tree.
func (d *Dispatcher) finish(ctx context.Context, kind ActionKind, itemID, itemName string, err error) error {
	if err != nil {
		d.fail(kind, itemID, itemName, err)
		return err
	}

	d.mu.Lock()
	refresher := d.refresher
	notifier := d.notifier
	d.mu.Unlock()

	if refresher != nil {
		if rerr := refresher.Refresh(ctx); rerr != nil {
			// The action itself landed; a failed refresh leaves the stale
			// view visible with its own retryable error state.
			d.logger.Warn().Err(rerr).Str("action", kind.String()).Msg("Post-action refresh failed")
		}
	}

	d.logger.Info().Str("action", kind.String()).Str("item", itemName).Msg("Action completed")
	d.publish(NewActionSucceededEvent(kind, itemID, itemName))
	if notifier != nil {
		notifier.ActionSucceeded(kind.String(), itemName)
	}
	return nil
}

func (d *Dispatcher) fail(kind ActionKind, itemID, itemName string, err error) {
	d.mu.Lock()
	notifier := d.notifier
	d.mu.Unlock()

	d.logger.Error().Err(err).Str("action", kind.String()).Str("item", itemName).Msg("Action failed")
	d.publish(NewActionFailedEvent(kind, itemID, itemName, err))
	if notifier != nil {
		notifier.ActionFailed(kind.String(), itemName, err.Error())
	}
}

func (d *Dispatcher) publish(event events.Event) {
	if d.eventBus != nil {
		d.eventBus.Publish(event)
	}
}

// Rename renames a file, or renames/recolors a folder.
//
// Dual role: calling it with the item's current name and unchanged color is
// a prompt trigger, not a no-op rename. A RenamePromptEvent is published and
// no remote call is issued.
func (d *Dispatcher) Rename(ctx context.Context, item FileItem, newName, color string) error {
	unchanged := newName == item.Name && (item.Kind == KindFile || color == item.Color)
	if unchanged {
		d.publish(NewRenamePromptEvent(item))
		return nil
	}

	if err := d.requireMutate(ActionRename, item.Name); err != nil {
		return err
	}
	release, err := d.begin(ActionRename, item.ID, item.Name)
	if err != nil {
		return err
	}
	defer release()

	if item.IsFolder() {
		err = d.client.UpdateFolder(ctx, item.ID, newName, color)
	} else {
		err = d.client.RenameFile(ctx, item.ID, newName)
	}
	if err != nil {
		err = fmt.Errorf("rename %s: %w", item.Name, err)
	}
	return d.finish(ctx, ActionRename, item.ID, item.Name, err)
}

// Delete deletes a file or folder. Non-empty folder handling is backend
// policy; a rejection surfaces as a normal operation failure.
func (d *Dispatcher) Delete(ctx context.Context, item FileItem) error {
	if err := d.requireMutate(ActionDelete, item.Name); err != nil {
		return err
	}
	release, err := d.begin(ActionDelete, item.ID, item.Name)
	if err != nil {
		return err
	}
	defer release()

	if item.IsFolder() {
		err = d.client.DeleteFolder(ctx, item.ID)
	} else {
		err = d.client.DeleteFile(ctx, item.ID)
	}
	if err != nil {
		err = fmt.Errorf("delete %s: %w", item.Name, err)
	}
	return d.finish(ctx, ActionDelete, item.ID, item.Name, err)
}

// Move reparents a file or folder into the target folder. An empty target
// means the class root. Cycle validation belongs to the reconciler (and,
// authoritatively, the backend); the dispatcher only rejects the trivial
// self-target.
func (d *Dispatcher) Move(ctx context.Context, itemID, itemName string, kind ItemKind, targetFolderID string) error {
	if itemName == "" {
		itemName = itemID
	}
	if itemID == targetFolderID {
		err := fmt.Errorf("move %s: %w", itemName, api.ErrInvalidMove)
		d.fail(ActionMove, itemID, itemName, err)
		return err
	}
	if err := d.requireMutate(ActionMove, itemName); err != nil {
		return err
	}
	release, err := d.begin(ActionMove, itemID, itemName)
	if err != nil {
		return err
	}
	defer release()

	if kind == KindFolder {
		err = d.client.MoveFolder(ctx, itemID, targetFolderID)
	} else {
		err = d.client.MoveFile(ctx, itemID, targetFolderID)
	}
	if err != nil {
		err = fmt.Errorf("move %s: %w", itemName, err)
	}
	return d.finish(ctx, ActionMove, itemID, itemName, err)
}

// Share produces a shareable signed link for a file and copies it to the
// clipboard. Read-only; available to every role.
func (d *Dispatcher) Share(ctx context.Context, item FileItem) (string, error) {
	release, err := d.begin(ActionShare, item.ID, item.Name)
	if err != nil {
		return "", err
	}
	defer release()

	signed, err := d.client.GetSignedURL(ctx, item.ID)
	if err != nil {
		err = fmt.Errorf("share %s: %w", item.Name, err)
		return "", d.finish(ctx, ActionShare, item.ID, item.Name, err)
	}
	if err := clipboardWrite(signed.URL); err != nil {
		// The link is still usable; clipboard access is best effort.
		d.logger.Warn().Err(err).Msg("Clipboard copy failed")
	}
	return signed.URL, d.finish(ctx, ActionShare, item.ID, item.Name, nil)
}

// Download obtains a time-limited signed URL for a file. The caller opens or
// fetches it.
func (d *Dispatcher) Download(ctx context.Context, item FileItem) (*models.SignedURLResponse, error) {
	release, err := d.begin(ActionDownload, item.ID, item.Name)
	if err != nil {
		return nil, err
	}
	defer release()

	signed, err := d.client.GetSignedURL(ctx, item.ID)
	if err != nil {
		err = fmt.Errorf("download %s: %w", item.Name, err)
		return nil, d.finish(ctx, ActionDownload, item.ID, item.Name, err)
	}
	return signed, d.finish(ctx, ActionDownload, item.ID, item.Name, nil)
}

// UploadFiles attaches files to a folder. The pending gate is keyed on the
// destination folder so concurrent uploads into one folder are serialized.
func (d *Dispatcher) UploadFiles(ctx context.Context, folderID string, uploads []api.Upload) ([]models.FileRecord, error) {
	name := uploadLabel(uploads)
	if err := d.requireMutate(ActionUpload, name); err != nil {
		return nil, err
	}
	release, err := d.begin(ActionUpload, folderID, name)
	if err != nil {
		return nil, err
	}
	defer release()

	records, err := d.client.UploadFiles(ctx, folderID, uploads)
	if err != nil {
		err = fmt.Errorf("upload to folder %s: %w", folderID, err)
		return nil, d.finish(ctx, ActionUpload, folderID, name, err)
	}
	return records, d.finish(ctx, ActionUpload, folderID, name, nil)
}

// CreateFolder creates a folder under parentID (empty = class root).
func (d *Dispatcher) CreateFolder(ctx context.Context, parentID, name, color string) (*models.FolderRecord, error) {
	if err := d.requireMutate(ActionCreateFolder, name); err != nil {
		return nil, err
	}
	// Gate on the parent so sibling creations in one folder serialize.
	release, err := d.begin(ActionCreateFolder, "create:"+parentID, name)
	if err != nil {
		return nil, err
	}
	defer release()

	folder, err := d.client.CreateFolder(ctx, parentID, name, color)
	if err != nil {
		err = fmt.Errorf("create folder %s: %w", name, err)
		return nil, d.finish(ctx, ActionCreateFolder, "create:"+parentID, name, err)
	}
	return folder, d.finish(ctx, ActionCreateFolder, "create:"+parentID, name, nil)
}

func uploadLabel(uploads []api.Upload) string {
	switch len(uploads) {
	case 0:
		return "no files"
	case 1:
		return uploads[0].Name
	default:
		return fmt.Sprintf("%s (+%d more)", uploads[0].Name, len(uploads)-1)
	}
}
