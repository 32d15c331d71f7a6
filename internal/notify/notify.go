// Package notify provides desktop notifications for action results.
// It uses github.com/gen2brain/beeep for cross-platform support.
package notify

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/studious-lms/studious-files/internal/config"
	"github.com/studious-lms/studious-files/internal/logging"
)

const appTitle = "studious"

// send is swapped out in tests.
var send = func(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Notifier surfaces action results as dismissible, non-blocking desktop
// notifications. It implements services.Notifier.
type Notifier struct {
	logger *logging.Logger

	mu  sync.RWMutex
	cfg config.NotificationConfig
}

// NewNotifier creates a notifier with the given configuration.
func NewNotifier(cfg config.NotificationConfig, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Notifier{logger: logger, cfg: cfg}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cfg.Enabled = enabled
}

// ActionFailed notifies that an action failed, naming the action and reason.
func (n *Notifier) ActionFailed(action, itemName, reason string) {
	n.mu.RLock()
	show := n.cfg.Enabled && n.cfg.ShowActionFailed
	n.mu.RUnlock()
	if !show {
		return
	}
	n.deliver(fmt.Sprintf("%s failed", action), fmt.Sprintf("%s: %s", itemName, reason))
}

// ActionSucceeded notifies that an action completed.
func (n *Notifier) ActionSucceeded(action, itemName string) {
	n.mu.RLock()
	show := n.cfg.Enabled && n.cfg.ShowActionComplete
	n.mu.RUnlock()
	if !show {
		return
	}
	n.deliver(fmt.Sprintf("%s complete", action), itemName)
}

// deliver sends without blocking the caller; notification failures are
// logged, never surfaced.
func (n *Notifier) deliver(title, message string) {
	go func() {
		if err := send(appTitle+": "+title, message); err != nil {
			n.logger.Debug().Err(err).Str("title", title).Msg("Notification failed")
		}
	}()
}
