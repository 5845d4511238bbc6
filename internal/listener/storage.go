package listener

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/handle"
)

// Storage is the listener registry of one network table instance. It owns
// pollers, listeners, the category indices and the callback dispatcher, all
// guarded by a single mutex.
//
// Every lookup by handle is total: a stale handle is treated as absent and
// the operation degrades to a no-op, an empty result or the zero handle.
type Storage struct {
	inst     int
	clock    clock.Clock
	logger   *slog.Logger
	recorder Recorder

	mu         sync.Mutex
	listeners  *handle.Table[listenerData]
	pollers    *handle.Table[poller]
	index      *categoryIndex
	dispatcher *dispatcher
	closed     bool
}

// Option configures a Storage.
type Option func(*Storage)

// WithClock sets the clock used for WaitForListenerQueue timeouts.
func WithClock(c clock.Clock) Option {
	return func(s *Storage) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger. It must not feed records back into this
// Storage (see eventlog.Handler); use a plain handler.
func WithLogger(l *slog.Logger) Option {
	return func(s *Storage) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Storage) {
		if r != nil {
			s.recorder = r
		}
	}
}

// New creates a Storage for the given instance id. Instance ids are
// reduced to the range a handle can carry.
func New(inst int, opts ...Option) *Storage {
	inst &= handle.MaxInstance
	s := &Storage{
		inst:     inst,
		clock:    clock.WallClock,
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.listeners = handle.NewTable[listenerData](handle.KindListener, inst)
	s.pollers = handle.NewTable[poller](handle.KindListenerPoller, inst)
	s.index = newCategoryIndex(s.recorder)
	return s
}

// Activate adds a source to a listener. Categories newly covered by mask
// make the listener reachable by broadcasts of that category.
func (s *Storage) Activate(listener handle.Handle, mask event.Kind, finish FinishFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.listeners.Get(listener)
	if l == nil {
		return
	}
	l.sources = append(l.sources, source{finish: finish, mask: mask})
	delta := mask &^ l.eventMask
	l.eventMask |= mask
	s.index.add(l.handle, delta)
}

// AddCallbackListener registers a listener whose events are delivered to
// cb on the dispatcher goroutine, starting the dispatcher on first use.
// Returns the zero handle once the storage is closed.
func (s *Storage) AddCallbackListener(cb Callback) handle.Handle {
	h, started := s.addCallbackListener(cb)
	if started {
		s.logger.Info("listener dispatcher started", "instance", s.inst)
	}
	return h
}

func (s *Storage) addCallbackListener(cb Callback) (handle.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || cb == nil {
		return 0, false
	}
	started := false
	if s.dispatcher == nil {
		ph, p := s.pollers.Add(func(h handle.Handle) *poller { return newPoller(h, s.inst) })
		if p == nil {
			return 0, false
		}
		s.dispatcher = startDispatcher(s, ph, p.ready)
		started = true
	}
	if !s.dispatcher.alive() {
		return 0, started
	}
	h := s.addListener(s.dispatcher.poller)
	if h.IsValid() {
		s.dispatcher.callbacks[h] = cb
	}
	return h, started
}

// AddPollerListener registers a listener that queues its events on the
// given poller. Returns the zero handle if the poller does not exist.
func (s *Storage) AddPollerListener(pollerHandle handle.Handle) handle.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addListener(pollerHandle)
}

func (s *Storage) addListener(pollerHandle handle.Handle) handle.Handle {
	if s.pollers.Get(pollerHandle) == nil {
		return 0
	}
	h, _ := s.listeners.Add(func(h handle.Handle) *listenerData {
		return &listenerData{
			handle: h,
			inst:   s.inst,
			poller: pollerHandle,
			ready:  make(chan struct{}, 1),
		}
	})
	return h
}

// CreateListenerPoller creates an empty poller.
func (s *Storage) CreateListenerPoller() handle.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, _ := s.pollers.Add(func(h handle.Handle) *poller { return newPoller(h, s.inst) })
	return h
}

// DestroyListenerPoller destroys a poller and every listener bound to it,
// returning the removed listeners. Destroying the dispatcher's poller drops
// every callback listener; the dispatcher keeps running on an empty queue
// and later AddCallbackListener calls return the zero handle.
func (s *Storage) DestroyListenerPoller(pollerHandle handle.Handle) []Removed {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pollers.Remove(pollerHandle)
	if p == nil {
		return nil
	}
	close(p.done)

	var doomed []handle.Handle
	for h, l := range s.listeners.All() {
		if l.poller == pollerHandle {
			doomed = append(doomed, h)
		}
	}
	return s.removeListeners(doomed)
}

// RemoveListener removes one listener. The result holds at most one entry.
func (s *Storage) RemoveListener(listener handle.Handle) []Removed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeListeners([]handle.Handle{listener})
}

func (s *Storage) removeListeners(handles []handle.Handle) []Removed {
	var removed []Removed
	for _, h := range handles {
		l := s.listeners.Remove(h)
		if l == nil {
			continue
		}
		removed = append(removed, Removed{Listener: h, Mask: l.eventMask})
		if s.dispatcher != nil && s.dispatcher.poller == l.poller {
			delete(s.dispatcher.callbacks, h)
		}
		s.index.remove(h, l.eventMask)
	}
	return removed
}

// ReadListenerQueue detaches and returns every event pending on a poller.
func (s *Storage) ReadListenerQueue(pollerHandle handle.Handle) []event.Event {
	s.mu.Lock()
	p := s.pollers.Get(pollerHandle)
	if p == nil {
		s.mu.Unlock()
		return nil
	}
	q := p.drain()
	s.mu.Unlock()

	// q is detached; nothing else can reach it.
	return collect(q)
}

// WaitForListenerQueue wakes the dispatcher and waits until it has run a
// full read-and-dispatch cycle, so every event queued before the call has
// been handed to its callback. A negative timeout waits forever. Returns
// false on timeout or when no dispatcher is running.
func (s *Storage) WaitForListenerQueue(timeout time.Duration) bool {
	s.mu.Lock()
	d := s.dispatcher
	if d == nil || !d.alive() {
		s.mu.Unlock()
		return false
	}
	flushed := d.flushed
	signal(d.wakeup)
	s.mu.Unlock()

	var expired <-chan time.Time
	if timeout >= 0 {
		expired = s.clock.After(timeout)
	}
	select {
	case <-flushed:
		return true
	case <-d.tomb.Dead():
		return false
	case <-expired:
		return false
	}
}

// Ready returns the wait channel of a poller or listener handle. It
// receives a value whenever events were queued since the last receive.
// Returns nil for unknown handles.
func (s *Storage) Ready(h handle.Handle) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch h.Kind() {
	case handle.KindListener:
		if l := s.listeners.Get(h); l != nil {
			return l.ready
		}
	case handle.KindListenerPoller:
		if p := s.pollers.Get(h); p != nil {
			return p.ready
		}
	}
	return nil
}

// WaitPoller blocks until the poller has pending events. It returns false
// if the poller is unknown or destroyed, or ctx is done first.
func (s *Storage) WaitPoller(ctx context.Context, pollerHandle handle.Handle) bool {
	s.mu.Lock()
	p := s.pollers.Get(pollerHandle)
	if p == nil {
		s.mu.Unlock()
		return false
	}
	ready, done := p.ready, p.done
	s.mu.Unlock()

	select {
	case <-ready:
		return true
	case <-done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Stats is a point-in-time summary of the storage.
type Stats struct {
	Listeners  int
	Pollers    int
	Callbacks  int
	Categories map[string]int
}

// Stats returns listener and poller counts and category index sizes.
func (s *Storage) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Listeners:  s.listeners.Len(),
		Pollers:    s.pollers.Len(),
		Categories: make(map[string]int, numCategories),
	}
	if s.dispatcher != nil {
		st.Callbacks = len(s.dispatcher.callbacks)
	}
	for c := range numCategories {
		st.Categories[c.String()] = s.index.size(c)
	}
	return st
}

// Close stops the dispatcher and waits for it to exit. A callback running
// at the time finishes first. Close must not be called from a callback.
// Safe to call multiple times.
func (s *Storage) Close() error {
	s.mu.Lock()
	s.closed = true
	d := s.dispatcher
	s.mu.Unlock()

	if d == nil {
		return nil
	}
	err := d.stop()
	s.logger.Debug("listener dispatcher stopped", "instance", s.inst)
	return err
}
