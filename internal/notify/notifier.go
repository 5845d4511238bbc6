package notify

import "github.com/btouchard/tablecast/internal/event"

// Notifier forwards listener events to an outside audience.
type Notifier interface {
	Notify(e event.Event)
}

// Hub dispatches events to multiple notifiers. Notify is meant to be used
// as a listener callback, so notifiers run in event order on the
// dispatcher goroutine and must not block for long.
type Hub struct {
	notifiers []Notifier
}

// NewHub creates a Hub with the given notifiers.
func NewHub(notifiers ...Notifier) *Hub {
	return &Hub{notifiers: notifiers}
}

// Notify sends an event to all registered notifiers.
func (h *Hub) Notify(e event.Event) {
	for _, n := range h.notifiers {
		n.Notify(e)
	}
}
