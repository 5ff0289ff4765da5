package domain

import (
	"strings"
	"time"
)

type Attendance string

const (
	AttendanceYes   Attendance = "yes"
	AttendanceNo    Attendance = "no"
	AttendanceUnset Attendance = "unset"
)

// Event is one organizer's occasion. The password is stored hashed only,
// in the legacy "sha256:<hex>" format so rows written by earlier
// deployments keep working.
type Event struct {
	ID           string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Guest struct {
	ID            string
	EventID       string
	FirstName     string
	LastName      string
	Phone         string
	Attendance    Attendance
	AdultCount    int
	ChildCount    int
	GuestCount    int
	DietaryChoice string
	CreatedAt     time.Time
}

func (g Guest) FullName() string {
	return strings.TrimSpace(g.FirstName + " " + g.LastName)
}

// Headcount returns the party size for a guest record. Records from the
// current submission flow carry GuestCount; older rows only have the
// adult/child split; the oldest only a name, counted as one.
func (g Guest) Headcount() int {
	if g.GuestCount > 0 {
		return g.GuestCount
	}
	if n := g.AdultCount + g.ChildCount; n > 0 {
		return n
	}
	return 1
}

// Assignment relates a guest to at most one table. NotifiedAt is advisory
// bookkeeping; it is never cleared when the guest is unassigned.
type Assignment struct {
	Table      string
	UpdatedAt  time.Time
	NotifiedAt *time.Time
}

// AssignmentMap is keyed by guest ID. Absence means "unplaced".
type AssignmentMap map[string]Assignment

// Clone returns a copy, so callers can hand out snapshots without
// exposing the live session map.
func (m AssignmentMap) Clone() AssignmentMap {
	cp := make(AssignmentMap, len(m))
	for id, a := range m {
		cp[id] = a
	}
	return cp
}

type Table struct {
	EventID   string
	Label     string
	CreatedAt time.Time
}

// NotificationRecord marks that a seat notification was dispatched for a
// guest. It is written once per (event, guest) and never removed. It is
// not a delivery receipt: the actual send happens in an external
// messaging app the service cannot observe.
type NotificationRecord struct {
	EventID string
	GuestID string
	Table   string
	SentAt  time.Time
}

// SeatNotification is one prepared outbound message.
type SeatNotification struct {
	GuestID         string
	FullName        string
	Table           string
	Phone           string
	NormalizedPhone string
	Message         string
}

// GuestBuckets is the derived placed/unplaced partition of a directory
// against an assignment map. OverallHeadcount covers all guests
// regardless of placement.
type GuestBuckets struct {
	Placed           []Guest
	Unplaced         []Guest
	OverallHeadcount int
}

type MenuStats struct {
	Total    int
	ByChoice map[string]int
}

// DirectorySummary is the filtered guest-list view with its counters.
type DirectorySummary struct {
	Guests             []Guest
	Shown              int
	ShownHeadcount     int
	AttendingHeadcount int
}

type TableDetail struct {
	Label  string
	Guests []Guest
}
