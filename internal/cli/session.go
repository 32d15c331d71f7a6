package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/studious-lms/studious-files/internal/api"
	"github.com/studious-lms/studious-files/internal/config"
	"github.com/studious-lms/studious-files/internal/events"
	"github.com/studious-lms/studious-files/internal/logging"
	"github.com/studious-lms/studious-files/internal/navigator"
	"github.com/studious-lms/studious-files/internal/notify"
	"github.com/studious-lms/studious-files/internal/services"
	"github.com/studious-lms/studious-files/internal/state"
)

// session bundles the wired navigator core a command works against.
type session struct {
	cfg        *config.Config
	client     *api.Client
	bus        *events.EventBus
	tree       *state.FolderTreeState
	crumbs     *navigator.Breadcrumbs
	reconciler *navigator.Reconciler
	dispatcher *services.Dispatcher
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if apiToken != "" {
		cfg.APIToken = apiToken
	}
	if classID != "" {
		cfg.ClassID = classID
	}
	if roleFlag != "" {
		cfg.Role = config.Role(strings.ToLower(roleFlag))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSession wires the client, state containers, and dispatcher the same way
// for every command.
func newSession(logMode string) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := GetLogger()
	if logMode == "tui" {
		// Console logging would corrupt the interactive view.
		log = logging.NewLogger("tui")
	}
	client, err := api.NewClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	bus := events.NewEventBus(0)
	readOnly := !cfg.Role.CanMutate()

	tree := state.NewFolderTreeState(client, bus, readOnly)
	index := navigator.NewAncestorIndex()
	tree.SetObserver(index)

	dispatcher := services.NewDispatcher(client, cfg.Role, bus, log)
	dispatcher.SetRefresher(tree)
	dispatcher.SetNotifier(notify.NewNotifier(cfg.Notifications, log))

	return &session{
		cfg:        cfg,
		client:     client,
		bus:        bus,
		tree:       tree,
		crumbs:     navigator.NewBreadcrumbs(client, index, bus),
		reconciler: navigator.NewReconciler(index, bus),
		dispatcher: dispatcher,
	}, nil
}

func (s *session) close() {
	s.bus.Close()
}

// resolvePath walks a slash-separated folder path from the class root and
// returns the folder's ID ("" for the root itself).
func (s *session) resolvePath(ctx context.Context, path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" || path == "." {
		return "", nil
	}

	current := ""
	for _, segment := range strings.Split(path, "/") {
		if err := s.tree.Load(ctx, current); err != nil {
			return "", err
		}
		found := false
		for _, item := range s.tree.Items() {
			if item.IsFolder() && item.Name == segment {
				current = item.ID
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("folder %q not found in path %q: %w", segment, path, api.ErrNotFound)
		}
	}
	return current, nil
}

// findItem locates a file or folder by name within the folder identified by
// folderID.
func (s *session) findItem(ctx context.Context, folderID, name string) (services.FileItem, error) {
	if err := s.tree.Load(ctx, folderID); err != nil {
		return services.FileItem{}, err
	}
	for _, item := range s.tree.Items() {
		if item.Name == name {
			return item, nil
		}
	}
	return services.FileItem{}, fmt.Errorf("%q: %w", name, api.ErrNotFound)
}

// splitTarget separates "path/to/folder/name" into its folder path and leaf
// name.
func splitTarget(target string) (dir, name string) {
	target = strings.Trim(target, "/")
	idx := strings.LastIndex(target, "/")
	if idx < 0 {
		return "", target
	}
	return target[:idx], target[idx+1:]
}
