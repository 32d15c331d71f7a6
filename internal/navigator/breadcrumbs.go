package navigator

import (
	"context"
	"sync"

	"github.com/studious-lms/studious-files/internal/events"
	"github.com/studious-lms/studious-files/internal/models"
)

// RootLabel is the display name of the implicit top-level segment.
const RootLabel = "Class Files"

// ParentsFetcher is the slice of the RPC surface the breadcrumbs need.
// api.Client implements it.
type ParentsFetcher interface {
	GetParents(ctx context.Context, folderID string) ([]models.BreadcrumbEntry, error)
}

// Breadcrumb event types.
const (
	EventBreadcrumbsChanged events.EventType = "breadcrumbs_changed"
	EventBreadcrumbsLoading events.EventType = "breadcrumbs_loading"
)

// BreadcrumbsChangedEvent is published when the rendered chain changes.
type BreadcrumbsChangedEvent struct {
	events.BaseEvent
	Segments []Segment
}

// BreadcrumbsLoadingEvent is published while ancestor data is pending;
// frontends render placeholder segments instead of blocking the view.
type BreadcrumbsLoadingEvent struct {
	events.BaseEvent
	Loading bool
}

// Segment is one rendered breadcrumb.
type Segment struct {
	// ID is the folder ID; empty for the implicit root segment.
	ID string

	// Name is the display name.
	Name string

	// IsRoot marks the first segment. It is never draggable and is always a
	// valid drop target representing the top level.
	IsRoot bool

	// Current marks the last segment: the viewed folder, rendered distinctly
	// and not clickable. Every other segment navigates on click.
	Current bool
}

// Breadcrumbs reconstructs the ancestor chain of the viewed folder for
// display and as additional drop targets. The backend returns ancestors
// nearest parent first; segments are rendered root first.
type Breadcrumbs struct {
	fetcher  ParentsFetcher
	index    *AncestorIndex
	eventBus *events.EventBus

	mu       sync.RWMutex
	segments []Segment
	loading  bool
	lastErr  error
	seq      uint64
}

// NewBreadcrumbs creates a breadcrumb navigator. Fetched chains are fed into
// index so the reconciler's cycle checks get deeper ancestry for free.
func NewBreadcrumbs(fetcher ParentsFetcher, index *AncestorIndex, eventBus *events.EventBus) *Breadcrumbs {
	return &Breadcrumbs{
		fetcher:  fetcher,
		index:    index,
		eventBus: eventBus,
		segments: []Segment{{Name: RootLabel, IsRoot: true, Current: true}},
	}
}

// Load rebuilds the chain for the viewed folder. An empty folderID means the
// root view: a single root segment, rendered as current. Stale fetches are
// discarded the same way folder loads are.
func (b *Breadcrumbs) Load(ctx context.Context, folderID, folderName string) error {
	if folderID == "" {
		if folderName == "" {
			folderName = RootLabel
		}
		b.mu.Lock()
		b.seq++
		b.loading = false
		b.lastErr = nil
		b.segments = []Segment{{Name: folderName, IsRoot: true, Current: true}}
		segs := b.copySegmentsLocked()
		b.mu.Unlock()
		b.publish(&BreadcrumbsChangedEvent{BaseEvent: events.NewBase(EventBreadcrumbsChanged), Segments: segs})
		return nil
	}

	b.mu.Lock()
	b.seq++
	stamp := b.seq
	b.loading = true
	b.mu.Unlock()
	b.publish(&BreadcrumbsLoadingEvent{BaseEvent: events.NewBase(EventBreadcrumbsLoading), Loading: true})

	chain, err := b.fetcher.GetParents(ctx, folderID)

	b.mu.Lock()
	if stamp != b.seq {
		b.mu.Unlock()
		return nil
	}
	b.loading = false

	if err != nil {
		b.lastErr = err
		b.mu.Unlock()
		b.publish(&BreadcrumbsLoadingEvent{BaseEvent: events.NewBase(EventBreadcrumbsLoading), Loading: false})
		return err
	}
	b.lastErr = nil

	if b.index != nil {
		b.index.ObserveChain(folderID, chain)
	}

	// Reverse nearest-first to root-first, then append the viewed folder as
	// the current (non-clickable) segment. The chain's last entry is the
	// root folder itself and renders as the first segment.
	segments := make([]Segment, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		segments = append(segments, Segment{
			ID:     chain[i].ID,
			Name:   chain[i].Name,
			IsRoot: i == len(chain)-1,
		})
	}
	current := Segment{ID: folderID, Name: folderName, Current: true}
	if len(segments) == 0 {
		current.IsRoot = true
	}
	segments = append(segments, current)
	b.segments = segments
	segs := b.copySegmentsLocked()
	b.mu.Unlock()

	b.publish(&BreadcrumbsLoadingEvent{BaseEvent: events.NewBase(EventBreadcrumbsLoading), Loading: false})
	b.publish(&BreadcrumbsChangedEvent{BaseEvent: events.NewBase(EventBreadcrumbsChanged), Segments: segs})
	return nil
}

// Segments returns a copy of the rendered chain, root first.
func (b *Breadcrumbs) Segments() []Segment {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.copySegmentsLocked()
}

// IsLoading reports whether ancestor data is pending.
func (b *Breadcrumbs) IsLoading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loading
}

// Err returns the last fetch error, cleared by the next successful load.
func (b *Breadcrumbs) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastErr
}

func (b *Breadcrumbs) copySegmentsLocked() []Segment {
	out := make([]Segment, len(b.segments))
	copy(out, b.segments)
	return out
}

func (b *Breadcrumbs) publish(event events.Event) {
	if b.eventBus != nil {
		b.eventBus.Publish(event)
	}
}
