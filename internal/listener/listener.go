package listener

import (
	"github.com/eapache/queue"

	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/handle"
)

// Verdict is returned by a FinishFunc to keep or drop the event it was
// given.
type Verdict int

const (
	Keep Verdict = iota
	Discard
)

// FinishFunc runs on every event appended for a source, with the source's
// mask. It may rewrite the event in place before deciding. It runs with the
// storage lock held and must not call back into the Storage.
type FinishFunc func(mask event.Kind, e *event.Event) Verdict

// Callback receives events on the dispatcher goroutine. The storage lock
// is not held, so a callback may add or remove listeners, including its own.
type Callback func(e event.Event)

// Removed reports a listener removed from the storage together with the
// mask it had at removal time.
type Removed struct {
	Listener handle.Handle
	Mask     event.Kind
}

type source struct {
	finish FinishFunc
	mask   event.Kind
}

type listenerData struct {
	handle    handle.Handle
	inst      int
	poller    handle.Handle
	eventMask event.Kind
	sources   []source
	ready     chan struct{}
}

type poller struct {
	handle handle.Handle
	inst   int
	queue  *queue.Queue
	ready  chan struct{}
	done   chan struct{}
}

func newPoller(h handle.Handle, inst int) *poller {
	return &poller{
		handle: h,
		inst:   inst,
		queue:  queue.New(),
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// drain detaches the pending queue, leaving the poller with an empty one.
func (p *poller) drain() *queue.Queue {
	if p.queue.Length() == 0 {
		return nil
	}
	q := p.queue
	p.queue = queue.New()
	return q
}

func collect(q *queue.Queue) []event.Event {
	if q == nil {
		return nil
	}
	events := make([]event.Event, 0, q.Length())
	for q.Length() > 0 {
		events = append(events, q.Remove().(event.Event))
	}
	return events
}

// signal sets a wait channel without blocking. Repeated signals before a
// receive coalesce into one.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
