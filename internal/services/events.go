package services

import (
	"github.com/studious-lms/studious-files/internal/events"
)

// Action event types published by the dispatcher.
const (
	EventActionStarted   events.EventType = "action_started"
	EventActionSucceeded events.EventType = "action_succeeded"
	EventActionFailed    events.EventType = "action_failed"
	EventRenamePrompt    events.EventType = "rename_prompt"
)

// ActionStartedEvent is published when an item action enters Pending.
type ActionStartedEvent struct {
	events.BaseEvent
	Action   ActionKind
	ItemID   string
	ItemName string
}

// ActionSucceededEvent is published when an item action completes and the
// post-action refresh has been requested.
type ActionSucceededEvent struct {
	events.BaseEvent
	Action   ActionKind
	ItemID   string
	ItemName string
}

// ActionFailedEvent is published when an item action fails. Local state is
// left unchanged; the item returns to Idle and stays interactive for retry.
type ActionFailedEvent struct {
	events.BaseEvent
	Action   ActionKind
	ItemID   string
	ItemName string
	Err      error
}

// RenamePromptEvent is published when rename is invoked with the item's
// current name and color. The frontend should open its rename dialog;
// no remote call has been issued.
type RenamePromptEvent struct {
	events.BaseEvent
	Item FileItem
}

// NewActionStartedEvent creates a new ActionStartedEvent.
func NewActionStartedEvent(action ActionKind, itemID, itemName string) *ActionStartedEvent {
	return &ActionStartedEvent{
		BaseEvent: events.NewBase(EventActionStarted),
		Action:    action,
		ItemID:    itemID,
		ItemName:  itemName,
	}
}

// NewActionSucceededEvent creates a new ActionSucceededEvent.
func NewActionSucceededEvent(action ActionKind, itemID, itemName string) *ActionSucceededEvent {
	return &ActionSucceededEvent{
		BaseEvent: events.NewBase(EventActionSucceeded),
		Action:    action,
		ItemID:    itemID,
		ItemName:  itemName,
	}
}

// NewActionFailedEvent creates a new ActionFailedEvent.
func NewActionFailedEvent(action ActionKind, itemID, itemName string, err error) *ActionFailedEvent {
	return &ActionFailedEvent{
		BaseEvent: events.NewBase(EventActionFailed),
		Action:    action,
		ItemID:    itemID,
		ItemName:  itemName,
		Err:       err,
	}
}

// NewRenamePromptEvent creates a new RenamePromptEvent.
func NewRenamePromptEvent(item FileItem) *RenamePromptEvent {
	return &RenamePromptEvent{
		BaseEvent: events.NewBase(EventRenamePrompt),
		Item:      item,
	}
}
