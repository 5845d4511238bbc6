package listener

import (
	"gopkg.in/tomb.v2"

	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/handle"
)

// dispatcher drains one poller and hands each event to the callback
// registered for its listener. callbacks and flushed are guarded by the
// storage mutex.
type dispatcher struct {
	tomb    tomb.Tomb
	storage *Storage
	poller  handle.Handle
	ready   <-chan struct{}
	wakeup  chan struct{}

	callbacks map[handle.Handle]Callback
	// flushed is closed at the end of the cycle that consumes the next
	// wakeup, then replaced.
	flushed chan struct{}
}

func startDispatcher(s *Storage, pollerHandle handle.Handle, ready <-chan struct{}) *dispatcher {
	d := &dispatcher{
		storage:   s,
		poller:    pollerHandle,
		ready:     ready,
		wakeup:    make(chan struct{}, 1),
		callbacks: make(map[handle.Handle]Callback),
		flushed:   make(chan struct{}),
	}
	d.tomb.Go(d.loop)
	return d
}

func (d *dispatcher) alive() bool { return d.tomb.Alive() }

func (d *dispatcher) stop() error {
	d.tomb.Kill(nil)
	return d.tomb.Wait()
}

func (d *dispatcher) loop() error {
	for {
		woken := false
		select {
		case <-d.tomb.Dying():
			return tomb.ErrDying
		case <-d.ready:
		case <-d.wakeup:
			woken = true
		}
		if !d.tomb.Alive() {
			return tomb.ErrDying
		}

		// Swap before reading the queue: a waiter that grabs the new
		// channel after this point gets a later, complete cycle.
		var flushed chan struct{}
		if woken {
			d.storage.mu.Lock()
			flushed = d.flushed
			d.flushed = make(chan struct{})
			d.storage.mu.Unlock()
		}

		// Go through the public API so a destroyed poller reads as empty.
		d.dispatch(d.storage.ReadListenerQueue(d.poller))

		if flushed != nil {
			close(flushed)
		}
	}
}

func (d *dispatcher) dispatch(events []event.Event) {
	if len(events) == 0 {
		return
	}
	mu := &d.storage.mu
	mu.Lock()
	for _, e := range events {
		cb, ok := d.callbacks[e.Listener]
		if !ok {
			continue
		}
		mu.Unlock()
		d.invoke(cb, e)
		mu.Lock()
	}
	mu.Unlock()
}

func (d *dispatcher) invoke(cb Callback, e event.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.storage.logger.Error("listener callback panicked",
				"listener", e.Listener.String(),
				"flags", e.Flags.String(),
				"panic", r)
			d.storage.recorder.CallbackDone(true)
		}
	}()
	cb(e)
	d.storage.recorder.CallbackDone(false)
}
