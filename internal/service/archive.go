package service

import (
	"context"
	"errors"

	"github.com/btouchard/tablecast/internal/eventlog"
	"github.com/btouchard/tablecast/internal/handle"
	"github.com/btouchard/tablecast/internal/store"
)

// ArchiveLogs stores every log message with a level in [minLevel, maxLevel]
// until ctx is done. It owns a dedicated poller and destroys it on return.
// Without an audit store it only waits for ctx.
func (h *Hub) ArchiveLogs(ctx context.Context, minLevel, maxLevel uint) error {
	if h.audit == nil {
		<-ctx.Done()
		return nil
	}

	poller := h.CreatePoller()
	defer h.DestroyPoller(poller)
	if !eventlog.AddLogger(h, poller, minLevel, maxLevel).IsValid() {
		return errors.New("registering log archive listener")
	}

	for h.storage.WaitPoller(ctx, poller) {
		h.archive(poller)
	}
	// Keep what arrived between the last wake and shutdown.
	h.archive(poller)
	return nil
}

func (h *Hub) archive(poller handle.Handle) {
	for _, e := range h.storage.ReadListenerQueue(poller) {
		lm := e.LogMessage()
		if lm == nil {
			continue
		}
		err := h.audit.AddLogRecord(&store.LogRecord{
			RunID:    h.runID,
			Level:    lm.Level,
			Filename: lm.Filename,
			Line:     lm.Line,
			Message:  lm.Message,
		})
		if err != nil {
			h.logger.Warn("archiving log message failed", "error", err)
		}
	}
}

// Logs lists archived log messages. With no audit store it returns nil.
func (h *Hub) Logs(f store.LogRecordFilter) ([]store.LogRecord, error) {
	if h.audit == nil {
		return nil, nil
	}
	return h.audit.ListLogRecords(f)
}
