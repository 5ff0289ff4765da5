package notify

import (
	"context"
	"log/slog"
)

// LogDispatcher is the stand-in used when WhatsApp is disabled: it logs
// the handoff and drops the message.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, phone, message string) error {
	d.logger.Info("dispatch (dry run)", "phone", phone, "message", message)
	return nil
}
