package roster

import (
	"context"

	"github.com/ecetin/wedsys/internal/domain"
)

// Subscriber delivers change notices for events. The redis pub/sub
// client satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, eventID string)) error
}

// Watcher is a scoped live subscription. Close always releases the
// underlying listener; there is no nullable-handle state to check.
type Watcher struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Close tears the subscription down and waits for the relay goroutine
// to exit. Safe to call more than once.
func (w *Watcher) Close() {
	w.cancel()
	<-w.done
}

// WatchMenuStats pushes a fresh MenuStats projection on every change
// notice for the event, starting with one immediate snapshot. The
// caller owns the returned Watcher and must Close it before opening a
// watcher for a different event.
func (s *Service) WatchMenuStats(
	ctx context.Context,
	sub Subscriber,
	eventID string,
	fn func(domain.MenuStats),
) *Watcher {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(w.done)

		fn(s.MenuStats(ctx, eventID))

		err := sub.Subscribe(ctx, func(ctx context.Context, changed string) {
			if changed != eventID {
				return
			}
			fn(s.MenuStats(ctx, eventID))
		})
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("menu stats subscription ended",
				"event_id", eventID, "error", err)
		}
	}()

	return w
}
