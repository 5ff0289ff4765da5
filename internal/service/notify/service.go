// Package notify builds and dispatches seat notifications. Dispatch is
// fire and forget: the external messaging app is the one that actually
// sends, so the notified bookkeeping here is advisory, never a
// delivery receipt.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ecetin/wedsys/internal/clock"
	"github.com/ecetin/wedsys/internal/domain"
)

const seatMessageTemplate = "Merhaba %s! Düğün oturma planımız hazır. Masanız: %s. Görüşmek üzere!"

// Dispatcher hands a message to the external messaging capability.
// There is no success signal beyond "the handoff did not error".
type Dispatcher interface {
	Dispatch(ctx context.Context, phone, message string) error
}

type GuestLister interface {
	ListByEvent(ctx context.Context, eventID string) ([]domain.Guest, error)
}

type RecordStore interface {
	UpsertRecord(ctx context.Context, rec domain.NotificationRecord) error
	ListByEvent(ctx context.Context, eventID string) ([]domain.NotificationRecord, error)
}

type AssignmentMarker interface {
	MarkNotified(ctx context.Context, eventID, guestID string, at time.Time) error
}

type Config struct {
	// Spacing is the fixed delay between consecutive outbox dispatches,
	// so the external app is never asked to open dozens of sends at once.
	Spacing time.Duration
}

type Service struct {
	guests  GuestLister
	records RecordStore
	marker  AssignmentMarker
	outbox  *Outbox
	logger  *slog.Logger
}

func New(
	guests GuestLister,
	records RecordStore,
	marker AssignmentMarker,
	dispatcher Dispatcher,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.Spacing <= 0 {
		cfg.Spacing = 400 * time.Millisecond
	}

	s := &Service{
		guests:  guests,
		records: records,
		marker:  marker,
		logger:  logger,
	}
	s.outbox = newOutbox(dispatcher, s.markNotified, clk, cfg.Spacing, logger)

	return s
}

// Outbox exposes the dispatch queue so the application can run its
// worker.
func (s *Service) Outbox() *Outbox { return s.outbox }

// NormalizePhone strips everything but digits, the form the external
// dispatch capability expects.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Prepare builds the per-guest message list for every assignment with a
// non-empty table. Attendance is deliberately not filtered: declined
// guests with a seat still get their table message. Assignment entries
// whose guest no longer resolves are skipped and logged.
func (s *Service) Prepare(
	ctx context.Context,
	eventID string,
	assignments domain.AssignmentMap,
) ([]domain.SeatNotification, error) {
	const op = "notify.Service.Prepare"

	guests, err := s.guests.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	byID := make(map[string]domain.Guest, len(guests))
	for _, g := range guests {
		byID[g.ID] = g
	}

	guestIDs := make([]string, 0, len(assignments))
	for guestID := range assignments {
		guestIDs = append(guestIDs, guestID)
	}
	sort.Strings(guestIDs)

	var out []domain.SeatNotification
	for _, guestID := range guestIDs {
		a := assignments[guestID]
		if a.Table == "" {
			continue
		}

		g, ok := byID[guestID]
		if !ok {
			s.logger.Warn("assignment references unknown guest",
				"event_id", eventID, "guest_id", guestID, "table", a.Table)
			continue
		}

		out = append(out, domain.SeatNotification{
			GuestID:         g.ID,
			FullName:        g.FullName(),
			Table:           a.Table,
			Phone:           g.Phone,
			NormalizedPhone: NormalizePhone(g.Phone),
			Message:         fmt.Sprintf(seatMessageTemplate, g.FullName(), a.Table),
		})
	}

	return out, nil
}

// NotifyTable queues one dispatch per unique normalized phone among the
// guests assigned to the label. Every guest of the table is marked,
// including those sharing a phone with an earlier one.
func (s *Service) NotifyTable(
	ctx context.Context,
	eventID string,
	assignments domain.AssignmentMap,
	label string,
) (int, error) {
	const op = "notify.Service.NotifyTable"

	prepared, err := s.Prepare(ctx, eventID, assignments)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	seen := make(map[string]struct{})
	var intents []Intent
	for _, n := range prepared {
		if n.Table != label {
			continue
		}

		if _, dup := seen[n.NormalizedPhone]; dup {
			// Shared phone, message already queued; only the bookkeeping
			// remains for this guest.
			s.markNotified(ctx, eventID, n.GuestID, n.Table)
			continue
		}
		seen[n.NormalizedPhone] = struct{}{}

		intents = append(intents, Intent{
			EventID: eventID,
			GuestID: n.GuestID,
			Table:   n.Table,
			Phone:   n.NormalizedPhone,
			Message: n.Message,
			Mark:    true,
		})
	}

	return s.outbox.Enqueue(intents...), nil
}

// NotifyAll queues the full prepared list. The outbox worker enforces
// the inter-item spacing and awaits each mark before moving on.
func (s *Service) NotifyAll(
	ctx context.Context,
	eventID string,
	assignments domain.AssignmentMap,
) (int, error) {
	const op = "notify.Service.NotifyAll"

	prepared, err := s.Prepare(ctx, eventID, assignments)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	intents := make([]Intent, 0, len(prepared))
	for _, n := range prepared {
		intents = append(intents, Intent{
			EventID: eventID,
			GuestID: n.GuestID,
			Table:   n.Table,
			Phone:   n.NormalizedPhone,
			Message: n.Message,
			Mark:    true,
		})
	}

	return s.outbox.Enqueue(intents...), nil
}

// History lists the advisory dispatch records for an event, oldest
// first.
func (s *Service) History(ctx context.Context, eventID string) ([]domain.NotificationRecord, error) {
	const op = "notify.Service.History"

	recs, err := s.records.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return recs, nil
}

// MarkNotified records the advisory dispatch marker for one guest.
// Failures are logged and swallowed; nothing retries, nothing surfaces.
func (s *Service) MarkNotified(ctx context.Context, eventID, guestID, table string) {
	s.markNotified(ctx, eventID, guestID, table)
}

func (s *Service) markNotified(ctx context.Context, eventID, guestID, table string) {
	now := time.Now()

	if err := s.records.UpsertRecord(ctx, domain.NotificationRecord{
		EventID: eventID,
		GuestID: guestID,
		Table:   table,
		SentAt:  now,
	}); err != nil {
		s.logger.Warn("notification record write failed",
			"event_id", eventID, "guest_id", guestID, "error", err)
		return
	}

	if err := s.marker.MarkNotified(ctx, eventID, guestID, now); err != nil {
		s.logger.Warn("assignment notified stamp failed",
			"event_id", eventID, "guest_id", guestID, "error", err)
	}
}

// Invite is an outbound invitation message, reusing the outbox spacing
// but without any notified bookkeeping.
type Invite struct {
	Phone   string
	Message string
}

func (s *Service) SendInvites(eventID string, invites []Invite) int {
	intents := make([]Intent, 0, len(invites))
	for _, inv := range invites {
		phone := NormalizePhone(inv.Phone)
		if phone == "" {
			continue
		}
		intents = append(intents, Intent{
			EventID: eventID,
			Phone:   phone,
			Message: inv.Message,
		})
	}

	return s.outbox.Enqueue(intents...)
}
