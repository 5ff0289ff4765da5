package roster

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ecetin/wedsys/internal/domain"
)

// GuestLister reads the guest directory. Reads are always fresh; the
// directory has no cache in front of it.
type GuestLister interface {
	ListByEvent(ctx context.Context, eventID string) ([]domain.Guest, error)
}

type Config struct {
	// Locale drives the collation used for guest name ordering.
	Locale language.Tag
}

type Service struct {
	guests GuestLister
	locale language.Tag
	logger *slog.Logger
}

func New(guests GuestLister, cfg Config, logger *slog.Logger) *Service {
	if cfg.Locale == (language.Tag{}) {
		cfg.Locale = language.Turkish
	}

	return &Service{
		guests: guests,
		locale: cfg.Locale,
		logger: logger,
	}
}

// Filter narrows the directory view. Zero value matches everything.
type Filter struct {
	Attendance domain.Attendance // empty means all
	Query      string            // substring of name or phone
}

// Directory returns the filtered guest list with its counters. This is
// a derived view: a read failure degrades to an empty listing (logged),
// it never blocks the console.
func (s *Service) Directory(ctx context.Context, eventID string, f Filter) domain.DirectorySummary {
	guests := s.listFailOpen(ctx, eventID)

	q := strings.ToLower(strings.TrimSpace(f.Query))

	var out domain.DirectorySummary
	for _, g := range guests {
		if f.Attendance != "" && g.Attendance != f.Attendance {
			continue
		}
		if q != "" {
			hay := strings.ToLower(g.FullName() + " " + g.Phone)
			if !strings.Contains(hay, q) {
				continue
			}
		}
		out.Guests = append(out.Guests, g)
		out.ShownHeadcount += g.Headcount()
		if g.Attendance == domain.AttendanceYes {
			out.AttendingHeadcount += g.Headcount()
		}
	}
	out.Shown = len(out.Guests)

	s.sortByName(out.Guests)

	return out
}

// Buckets partitions the directory against an assignment map into
// placed and unplaced, and sums the overall headcount over all guests
// regardless of placement. Pure full recompute, no diffing.
func (s *Service) Buckets(ctx context.Context, eventID string, assignments domain.AssignmentMap) domain.GuestBuckets {
	return s.BucketsOf(s.listFailOpen(ctx, eventID), assignments)
}

// BucketsOf is the pure core of Buckets, usable without a directory
// read.
func (s *Service) BucketsOf(guests []domain.Guest, assignments domain.AssignmentMap) domain.GuestBuckets {
	var b domain.GuestBuckets
	for _, g := range guests {
		b.OverallHeadcount += g.Headcount()
		if a, ok := assignments[g.ID]; ok && a.Table != "" {
			b.Placed = append(b.Placed, g)
		} else {
			b.Unplaced = append(b.Unplaced, g)
		}
	}

	s.sortByName(b.Placed)
	s.sortByName(b.Unplaced)

	return b
}

// MenuStats counts guests per dietary choice. Guests without a choice
// are bucketed under "unspecified".
func (s *Service) MenuStats(ctx context.Context, eventID string) domain.MenuStats {
	guests := s.listFailOpen(ctx, eventID)

	stats := domain.MenuStats{ByChoice: make(map[string]int)}
	for _, g := range guests {
		choice := strings.TrimSpace(g.DietaryChoice)
		if choice == "" {
			choice = "unspecified"
		}
		stats.ByChoice[choice]++
		stats.Total++
	}

	return stats
}

// TableDetail joins the guests currently assigned to one label against
// the directory.
func (s *Service) TableDetail(ctx context.Context, eventID, label string, guestIDs []string) domain.TableDetail {
	byID := make(map[string]domain.Guest)
	for _, g := range s.listFailOpen(ctx, eventID) {
		byID[g.ID] = g
	}

	detail := domain.TableDetail{Label: label}
	for _, id := range guestIDs {
		if g, ok := byID[id]; ok {
			detail.Guests = append(detail.Guests, g)
		}
	}
	s.sortByName(detail.Guests)

	return detail
}

func (s *Service) listFailOpen(ctx context.Context, eventID string) []domain.Guest {
	guests, err := s.guests.ListByEvent(ctx, eventID)
	if err != nil {
		s.logger.Warn("guest directory read failed, serving empty view",
			"event_id", eventID, "error", err)
		return nil
	}
	return guests
}

// sortByName orders guests by display name, locale-aware and
// case-insensitive. Collators keep internal buffers, so one is built
// per call rather than shared.
func (s *Service) sortByName(guests []domain.Guest) {
	c := collate.New(s.locale, collate.IgnoreCase)
	c.Sort(byName{guests: guests})
}

type byName struct {
	guests []domain.Guest
}

func (b byName) Len() int { return len(b.guests) }
func (b byName) Swap(i, j int) {
	b.guests[i], b.guests[j] = b.guests[j], b.guests[i]
}
func (b byName) Bytes(i int) []byte { return []byte(b.guests[i].FullName()) }
