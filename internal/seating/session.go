// Package seating holds the in-memory assignment map for one admin
// session. The map is the single source of truth while the session is
// open; the database is only a durability target, read wholesale at
// Load and written wholesale at Save.
package seating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/ecetin/wedsys/internal/clock"
	"github.com/ecetin/wedsys/internal/domain"
)

var (
	ErrEmptyGuestID = errors.New("empty guest id")
	ErrEmptyTable   = errors.New("empty table label")
)

// AssignmentStore is the persistence surface a session needs.
type AssignmentStore interface {
	ListAssignments(ctx context.Context, eventID string) (domain.AssignmentMap, error)
	UpsertAssignment(ctx context.Context, eventID, guestID string, a domain.Assignment) error
	DeleteAssignment(ctx context.Context, eventID, guestID string) error
	RegisterTable(ctx context.Context, eventID, label string) error
	ListTables(ctx context.Context, eventID string) ([]domain.Table, error)
}

type Publisher interface {
	PublishEventChanged(ctx context.Context, eventID string) error
}

// Session is one admin's working copy of the seating plan. All edits are
// memory-only until Save. Two admins on the same event get independent
// sessions; the last full Save wins, entry by entry.
type Session struct {
	eventID string
	token   string

	mu          sync.Mutex
	assignments domain.AssignmentMap
	persisted   map[string]struct{}
	tables      map[string]struct{}

	store  AssignmentStore
	pub    Publisher
	clock  clock.Clock
	logger *slog.Logger
}

func newSession(
	eventID, token string,
	store AssignmentStore,
	pub Publisher,
	clk clock.Clock,
	logger *slog.Logger,
) *Session {
	return &Session{
		eventID:     eventID,
		token:       token,
		assignments: make(domain.AssignmentMap),
		persisted:   make(map[string]struct{}),
		tables:      make(map[string]struct{}),
		store:       store,
		pub:         pub,
		clock:       clk,
		logger:      logger,
	}
}

func (s *Session) EventID() string { return s.eventID }
func (s *Session) Token() string   { return s.token }

// Load replaces the whole in-memory map with the persisted one. Any
// unsaved edits are discarded. A transport failure degrades to an empty
// map: it is logged, never surfaced, and callers must not rely on Load
// distinguishing "no assignments" from "could not read".
func (s *Session) Load(ctx context.Context) {
	m, err := s.store.ListAssignments(ctx, s.eventID)
	if err != nil {
		s.logger.Warn("seating load failed, starting from empty map",
			"event_id", s.eventID, "error", err)
		m = make(domain.AssignmentMap)
	}

	// Registered-but-empty tables still belong to the layout.
	registered, err := s.store.ListTables(ctx, s.eventID)
	if err != nil {
		s.logger.Warn("table registry read failed",
			"event_id", s.eventID, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignments = m
	s.persisted = make(map[string]struct{}, len(m))
	for guestID, a := range m {
		s.persisted[guestID] = struct{}{}
		if a.Table != "" {
			s.tables[a.Table] = struct{}{}
		}
	}
	for _, t := range registered {
		s.tables[t.Label] = struct{}{}
	}
}

// Assign upserts a guest's table in memory only. A guest holds at most
// one table; reassignment overwrites. An unseen label is lazily
// registered with the table registry, best effort.
func (s *Session) Assign(ctx context.Context, guestID, table string) error {
	guestID = strings.TrimSpace(guestID)
	table = strings.TrimSpace(table)
	if guestID == "" {
		return ErrEmptyGuestID
	}
	if table == "" {
		return ErrEmptyTable
	}

	s.mu.Lock()
	_, known := s.tables[table]
	prev, had := s.assignments[guestID]

	a := domain.Assignment{Table: table, UpdatedAt: s.clock.Now()}
	if had {
		// A stale notified marker survives reassignment on purpose; only
		// a fresh dispatch updates it.
		a.NotifiedAt = prev.NotifiedAt
	}
	s.assignments[guestID] = a
	s.tables[table] = struct{}{}
	s.mu.Unlock()

	if !known {
		if err := s.store.RegisterTable(ctx, s.eventID, table); err != nil {
			s.logger.Warn("table registration failed",
				"event_id", s.eventID, "table", table, "error", err)
		}
	}

	return nil
}

// Clear removes a guest from the map, returning them to the unplaced
// pool. The notified marker of any persisted NotificationRecord is left
// alone.
func (s *Session) Clear(guestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.assignments, guestID)
}

// Snapshot returns a copy of the current map.
func (s *Session) Snapshot() domain.AssignmentMap {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.assignments.Clone()
}

// TableGuests returns the ids of guests currently assigned to a label,
// in stable order. Linear scan; guest lists are small.
func (s *Session) TableGuests(label string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for guestID, a := range s.assignments {
		if a.Table == label {
			ids = append(ids, guestID)
		}
	}
	sort.Strings(ids)

	return ids
}

// Tables returns every label seen by this session, sorted.
func (s *Session) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	labels := make([]string, 0, len(s.tables))
	for l := range s.tables {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	return labels
}

// Save persists the map, one merge-write per entry. Entries cleared
// since the last Load are deleted from the remote collection. There is
// no atomicity across entries: a failed entry does not roll back the
// others, and the last Save to land wins per entry when sessions race.
func (s *Session) Save(ctx context.Context) error {
	const op = "seating.Session.Save"

	s.mu.Lock()
	snap := s.assignments.Clone()
	removed := make([]string, 0)
	for guestID := range s.persisted {
		if _, ok := snap[guestID]; !ok {
			removed = append(removed, guestID)
		}
	}
	s.mu.Unlock()

	guestIDs := make([]string, 0, len(snap))
	for guestID := range snap {
		guestIDs = append(guestIDs, guestID)
	}
	sort.Strings(guestIDs)
	sort.Strings(removed)

	var errs []error
	saved := make([]string, 0, len(guestIDs))
	for _, guestID := range guestIDs {
		if err := s.store.UpsertAssignment(ctx, s.eventID, guestID, snap[guestID]); err != nil {
			errs = append(errs, fmt.Errorf("%s: guest %s: %w", op, guestID, err))
			continue
		}
		saved = append(saved, guestID)
	}

	cleared := make([]string, 0, len(removed))
	for _, guestID := range removed {
		if err := s.store.DeleteAssignment(ctx, s.eventID, guestID); err != nil {
			errs = append(errs, fmt.Errorf("%s: guest %s: %w", op, guestID, err))
			continue
		}
		cleared = append(cleared, guestID)
	}

	s.mu.Lock()
	for _, guestID := range saved {
		s.persisted[guestID] = struct{}{}
	}
	for _, guestID := range cleared {
		delete(s.persisted, guestID)
	}
	s.mu.Unlock()

	if len(saved)+len(cleared) > 0 {
		if err := s.pub.PublishEventChanged(ctx, s.eventID); err != nil {
			s.logger.Warn("event change publish failed",
				"event_id", s.eventID, "error", err)
		}
	}

	return errors.Join(errs...)
}
