package listener

import (
	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/handle"
)

// NotifyConnection queues one event per info for each matching listener.
// With no handles, every listener in the connection category is a target.
// Finish functions are not consulted for connection events.
func (s *Storage) NotifyConnection(handles []handle.Handle, flags event.Kind, infos []event.ConnectionInfo) {
	items := make([]event.Data, len(infos))
	for i := range infos {
		items[i] = &infos[i]
	}
	s.notify(handles, flags, categoryConnection, items, false)
}

// NotifyTopic queues one event per info for each matching listener.
// With no handles, every listener in the topic category is a target.
func (s *Storage) NotifyTopic(handles []handle.Handle, flags event.Kind, infos []event.TopicInfo) {
	items := make([]event.Data, len(infos))
	for i := range infos {
		items[i] = &infos[i]
	}
	s.notify(handles, flags, categoryTopic, items, true)
}

// NotifyValue queues a value change for each matching listener.
// With no handles, every listener in the value category is a target.
func (s *Storage) NotifyValue(handles []handle.Handle, flags event.Kind, topic, subentry handle.Handle, value event.Value) {
	data := &event.ValueEventData{Topic: topic, Subentry: subentry, Value: value}
	s.notify(handles, flags, categoryValue, []event.Data{data}, true)
}

// NotifyLog broadcasts a log message to the log category. flags usually
// combine event.LogMessage with event.LevelFlag(level).
func (s *Storage) NotifyLog(flags event.Kind, level uint, filename string, line uint, message string) {
	data := &event.LogRecord{Level: level, Filename: filename, Line: line, Message: message}
	s.notify(nil, flags, categoryLog, []event.Data{data}, true)
}

func (s *Storage) notify(handles []handle.Handle, flags event.Kind, c category, items []event.Data, finish bool) {
	if flags == event.None {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(handles) > 0 {
		for _, h := range handles {
			if l := s.listeners.Get(h); l != nil {
				s.deliver(l, flags, c, items, finish)
			}
		}
		return
	}
	for h := range s.index.members(c) {
		if l := s.listeners.Get(h); l != nil {
			s.deliver(l, flags, c, items, finish)
		}
	}
}

// deliver appends the events a listener's sources ask for and signals the
// listener and its poller once if anything was kept.
func (s *Storage) deliver(l *listenerData, flags event.Kind, c category, items []event.Data, finish bool) {
	if !l.eventMask.Has(flags) {
		return
	}
	p := s.pollers.Get(l.poller)
	if p == nil {
		return
	}

	kept := 0
	for _, src := range l.sources {
		if !src.mask.Has(flags) {
			continue
		}
		for _, data := range items {
			e := event.Event{Listener: l.handle, Flags: flags, Data: data.Clone()}
			if finish && src.finish != nil && src.finish(src.mask, &e) == Discard {
				s.recorder.EventVetoed(c.String())
				continue
			}
			p.queue.Add(e)
			kept++
		}
	}
	if kept == 0 {
		return
	}
	s.recorder.EventsQueued(c.String(), kept)
	signal(l.ready)
	signal(p.ready)
}
