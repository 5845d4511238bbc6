package service

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/handle"
	"github.com/btouchard/tablecast/internal/listener"
	"github.com/btouchard/tablecast/internal/store"
)

const defaultCleanupInterval = time.Hour

// Hub is the entry point the daemon uses for listener management. It keeps
// per-category subscriber counts in step with the storage and records every
// listener lifecycle change in the audit store.
type Hub struct {
	storage *listener.Storage
	audit   store.Store
	runID   string
	logger  *slog.Logger
	clock   clock.Clock

	mu          sync.Mutex
	subscribers map[string]int
	listeners   map[handle.Handle]tracked
}

type tracked struct {
	kind   string
	poller handle.Handle
	mask   event.Kind
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger used for audit failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock sets the clock driving periodic audit cleanup.
func WithClock(c clock.Clock) Option {
	return func(h *Hub) {
		if c != nil {
			h.clock = c
		}
	}
}

// NewHub wraps storage. audit may be nil, in which case nothing is recorded.
func NewHub(storage *listener.Storage, audit store.Store, opts ...Option) *Hub {
	h := &Hub{
		storage:     storage,
		audit:       audit,
		runID:       uuid.NewString(),
		logger:      slog.Default(),
		clock:       clock.WallClock,
		subscribers: make(map[string]int),
		listeners:   make(map[handle.Handle]tracked),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RunID identifies this process in the audit trail.
func (h *Hub) RunID() string { return h.runID }

// Storage returns the wrapped listener storage.
func (h *Hub) Storage() *listener.Storage { return h.storage }

// AddCallbackListener registers a callback listener with no sources yet.
func (h *Hub) AddCallbackListener(cb listener.Callback) handle.Handle {
	lh := h.storage.AddCallbackListener(cb)
	if !lh.IsValid() {
		return lh
	}
	h.track(lh, tracked{kind: store.KindCallback})
	return lh
}

// Subscribe registers cb for every event matching mask.
func (h *Hub) Subscribe(mask event.Kind, cb listener.Callback) handle.Handle {
	lh := h.AddCallbackListener(cb)
	if lh.IsValid() {
		h.Activate(lh, mask, nil)
	}
	return lh
}

// CreatePoller creates a poller for pull consumers.
func (h *Hub) CreatePoller() handle.Handle {
	return h.storage.CreateListenerPoller()
}

// AddPollerListener registers a listener queuing on poller.
func (h *Hub) AddPollerListener(poller handle.Handle) handle.Handle {
	lh := h.storage.AddPollerListener(poller)
	if !lh.IsValid() {
		return lh
	}
	h.track(lh, tracked{kind: store.KindPoller, poller: poller})
	return lh
}

// Activate adds a source to a listener created through this hub. Listeners
// the hub does not know about are ignored.
func (h *Hub) Activate(lh handle.Handle, mask event.Kind, finish listener.FinishFunc) {
	h.mu.Lock()
	t, ok := h.listeners[lh]
	if !ok {
		h.mu.Unlock()
		return
	}
	before := listener.Categories(t.mask)
	t.mask |= mask
	h.listeners[lh] = t
	for _, c := range listener.Categories(t.mask) {
		if !slices.Contains(before, c) {
			h.subscribers[c]++
		}
	}
	h.storage.Activate(lh, mask, finish)
	h.mu.Unlock()

	h.record(lh, t, mask, store.ActionActivated)
}

// RemoveListener removes one listener.
func (h *Hub) RemoveListener(lh handle.Handle) {
	h.reconcile(h.storage.RemoveListener(lh))
}

// DestroyPoller destroys a poller and its listeners.
func (h *Hub) DestroyPoller(poller handle.Handle) {
	h.reconcile(h.storage.DestroyListenerPoller(poller))
}

// reconcile decrements subscriber counts for removed listeners. Counts come
// off the mask the hub itself counted, so an Activate racing the removal
// cannot leave a category behind. Listeners not created through the hub
// were never counted and are skipped.
func (h *Hub) reconcile(removed []listener.Removed) {
	if len(removed) == 0 {
		return
	}
	type gone struct {
		removed listener.Removed
		tracked tracked
	}
	var done []gone

	h.mu.Lock()
	for _, r := range removed {
		t, ok := h.listeners[r.Listener]
		if !ok {
			continue
		}
		delete(h.listeners, r.Listener)
		for _, c := range listener.Categories(t.mask) {
			h.subscribers[c]--
		}
		done = append(done, gone{removed: r, tracked: t})
	}
	h.mu.Unlock()

	for _, g := range done {
		h.record(g.removed.Listener, g.tracked, g.removed.Mask, store.ActionRemoved)
	}
}

// Subscribers returns the number of live listeners per category.
func (h *Hub) Subscribers() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.subscribers)
}

// HasSubscribers reports whether any listener covers the category of kind.
func (h *Hub) HasSubscribers(kind event.Kind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range listener.Categories(kind) {
		if h.subscribers[c] > 0 {
			return true
		}
	}
	return false
}

// Log publishes a message on the log channel at the given level.
func (h *Hub) Log(level uint, filename string, line uint, message string) {
	h.storage.NotifyLog(event.LogMessage|event.LevelFlag(level), level, filename, line, message)
}

// Stats combines storage statistics with the subscriber counts.
type Stats struct {
	RunID       string         `json:"run_id"`
	Listeners   int            `json:"listeners"`
	Pollers     int            `json:"pollers"`
	Callbacks   int            `json:"callbacks"`
	Categories  map[string]int `json:"categories"`
	Subscribers map[string]int `json:"subscribers"`
}

func (h *Hub) Stats() Stats {
	st := h.storage.Stats()
	return Stats{
		RunID:       h.runID,
		Listeners:   st.Listeners,
		Pollers:     st.Pollers,
		Callbacks:   st.Callbacks,
		Categories:  st.Categories,
		Subscribers: h.Subscribers(),
	}
}

// Audit lists recorded lifecycle rows. With no audit store it returns nil.
func (h *Hub) Audit(f store.ListenerEventFilter) ([]store.ListenerEvent, error) {
	if h.audit == nil {
		return nil, nil
	}
	return h.audit.ListListenerEvents(f)
}

// RunCleanup prunes audit rows older than retention once per interval
// until ctx is done. A non-positive interval uses one hour.
func (h *Hub) RunCleanup(ctx context.Context, retention, interval time.Duration) error {
	if h.audit == nil || retention <= 0 {
		<-ctx.Done()
		return nil
	}
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	for {
		if err := h.audit.Cleanup(retention); err != nil {
			h.logger.Warn("audit cleanup failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-h.clock.After(interval):
		}
	}
}

func (h *Hub) track(lh handle.Handle, t tracked) {
	h.mu.Lock()
	h.listeners[lh] = t
	h.mu.Unlock()
	h.record(lh, t, event.None, store.ActionAdded)
}

func (h *Hub) record(lh handle.Handle, t tracked, mask event.Kind, action string) {
	if h.audit == nil {
		return
	}
	err := h.audit.AddListenerEvent(&store.ListenerEvent{
		RunID:    h.runID,
		Listener: uint32(lh),
		Poller:   uint32(t.poller),
		Mask:     uint32(mask),
		Kind:     t.kind,
		Action:   action,
	})
	if err != nil {
		h.logger.Warn("recording listener event failed",
			"listener", lh.String(),
			"action", action,
			"error", err)
	}
}
