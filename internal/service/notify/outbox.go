package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ecetin/wedsys/internal/clock"
)

// Intent is one pending dispatch. Mark requests the advisory notified
// bookkeeping after the dispatch attempt.
type Intent struct {
	EventID string
	GuestID string
	Table   string
	Phone   string
	Message string
	Mark    bool
}

type markFunc func(ctx context.Context, eventID, guestID, table string)

// Outbox serializes outbound dispatches through a single worker with a
// fixed spacing between items, so the policy lives here instead of in
// UI timers. Dispatch errors are logged, never retried: delivery is the
// external app's business.
type Outbox struct {
	mu    sync.Mutex
	queue []Intent
	wake  chan struct{}

	dispatcher Dispatcher
	mark       markFunc
	clock      clock.Clock
	spacing    time.Duration
	logger     *slog.Logger
}

func newOutbox(
	dispatcher Dispatcher,
	mark markFunc,
	clk clock.Clock,
	spacing time.Duration,
	logger *slog.Logger,
) *Outbox {
	return &Outbox{
		wake:       make(chan struct{}, 1),
		dispatcher: dispatcher,
		mark:       mark,
		clock:      clk,
		spacing:    spacing,
		logger:     logger,
	}
}

// Enqueue appends intents and wakes the worker. Returns the number
// accepted.
func (o *Outbox) Enqueue(intents ...Intent) int {
	if len(intents) == 0 {
		return 0
	}

	o.mu.Lock()
	o.queue = append(o.queue, intents...)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}

	return len(intents)
}

func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.queue)
}

func (o *Outbox) pop() (Intent, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.queue) == 0 {
		return Intent{}, false
	}

	next := o.queue[0]
	o.queue = o.queue[1:]

	return next, true
}

// dispatchNext processes one intent: dispatch, then the notified mark
// (awaited, per item, so bookkeeping keeps pace with sends). The mark
// happens after the attempt whether or not the handoff errored; the
// external app may well have opened the send anyway.
func (o *Outbox) dispatchNext(ctx context.Context) bool {
	next, ok := o.pop()
	if !ok {
		return false
	}

	if err := o.dispatcher.Dispatch(ctx, next.Phone, next.Message); err != nil {
		o.logger.Warn("dispatch handoff failed",
			"event_id", next.EventID, "phone", next.Phone, "error", err)
	}

	if next.Mark {
		o.mark(ctx, next.EventID, next.GuestID, next.Table)
	}

	return true
}

// Run consumes the queue until ctx is done, sleeping the configured
// spacing between consecutive items.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !o.dispatchNext(ctx) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.wake:
			}
			continue
		}

		if o.Pending() > 0 {
			if err := o.clock.Sleep(ctx, o.spacing); err != nil {
				return err
			}
		}
	}
}

// Drain processes everything currently queued, honoring the spacing via
// the injected clock. Used by flows that want completion rather than
// background progress.
func (o *Outbox) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !o.dispatchNext(ctx) {
			return nil
		}

		if o.Pending() > 0 {
			if err := o.clock.Sleep(ctx, o.spacing); err != nil {
				return err
			}
		}
	}
}
