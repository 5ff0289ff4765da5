package roster

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecetin/wedsys/internal/domain"
)

type fakeGuests struct {
	guests []domain.Guest
	err    error
}

func (f *fakeGuests) ListByEvent(_ context.Context, _ string) ([]domain.Guest, error) {
	return f.guests, f.err
}

func newTestService(guests ...domain.Guest) *Service {
	return New(&fakeGuests{guests: guests}, Config{}, slog.New(slog.DiscardHandler))
}

func guest(id, first, last string, att domain.Attendance, adults, children int) domain.Guest {
	return domain.Guest{
		ID:         id,
		FirstName:  first,
		LastName:   last,
		Phone:      "+90 555 000 00 0" + id,
		Attendance: att,
		AdultCount: adults,
		ChildCount: children,
		GuestCount: adults + children,
	}
}

func TestBucketsPartition(t *testing.T) {
	svc := newTestService()
	guests := []domain.Guest{
		guest("1", "Ayşe", "Yılmaz", domain.AttendanceYes, 2, 1),
		guest("2", "Mehmet", "Demir", domain.AttendanceYes, 1, 0),
		guest("3", "Zeynep", "Kaya", domain.AttendanceNo, 1, 0),
	}
	assignments := domain.AssignmentMap{
		"1": {Table: "3"},
		"2": {Table: ""},
	}

	b := svc.BucketsOf(guests, assignments)

	require.Len(t, b.Placed, 1)
	assert.Equal(t, "1", b.Placed[0].ID)

	// An entry with an empty table counts as unplaced.
	require.Len(t, b.Unplaced, 2)
	assert.Equal(t, len(guests), len(b.Placed)+len(b.Unplaced))
	assert.Equal(t, 5, b.OverallHeadcount)
}

func TestBucketsHeadcountInvariantUnderReassignment(t *testing.T) {
	svc := newTestService()
	guests := []domain.Guest{
		guest("1", "Ayşe", "Yılmaz", domain.AttendanceYes, 2, 1),
		guest("2", "Mehmet", "Demir", domain.AttendanceYes, 1, 2),
	}

	before := svc.BucketsOf(guests, domain.AssignmentMap{"1": {Table: "3"}})
	after := svc.BucketsOf(guests, domain.AssignmentMap{"1": {Table: "9"}, "2": {Table: "1"}})

	assert.Equal(t, before.OverallHeadcount, after.OverallHeadcount)
}

func TestBucketsHeadcountFallbacks(t *testing.T) {
	svc := newTestService()
	guests := []domain.Guest{
		{ID: "1", FirstName: "A", GuestCount: 4},
		{ID: "2", FirstName: "B", AdultCount: 2, ChildCount: 1},
		{ID: "3", FirstName: "C"}, // name-only legacy row counts as one
	}

	b := svc.BucketsOf(guests, nil)
	assert.Equal(t, 8, b.OverallHeadcount)
}

func TestDirectoryFiltersAndCounts(t *testing.T) {
	svc := newTestService(
		guest("1", "Ayşe", "Yılmaz", domain.AttendanceYes, 2, 1),
		guest("2", "Mehmet", "Demir", domain.AttendanceNo, 1, 0),
		guest("3", "Ali", "Yıldız", domain.AttendanceYes, 1, 1),
	)

	all := svc.Directory(context.Background(), "w1", Filter{})
	assert.Equal(t, 3, all.Shown)
	assert.Equal(t, 6, all.ShownHeadcount)
	assert.Equal(t, 5, all.AttendingHeadcount)

	attending := svc.Directory(context.Background(), "w1", Filter{Attendance: domain.AttendanceYes})
	assert.Equal(t, 2, attending.Shown)

	byName := svc.Directory(context.Background(), "w1", Filter{Query: "mehmet"})
	require.Equal(t, 1, byName.Shown)
	assert.Equal(t, "2", byName.Guests[0].ID)

	byPhone := svc.Directory(context.Background(), "w1", Filter{Query: "00 03"})
	require.Equal(t, 1, byPhone.Shown)
	assert.Equal(t, "3", byPhone.Guests[0].ID)
}

func TestDirectoryFailOpen(t *testing.T) {
	svc := New(&fakeGuests{err: errors.New("transport down")}, Config{}, slog.New(slog.DiscardHandler))

	out := svc.Directory(context.Background(), "w1", Filter{})
	assert.Zero(t, out.Shown)
	assert.Empty(t, out.Guests)
}

func TestSortByNameIsLocaleAware(t *testing.T) {
	svc := newTestService()
	guests := []domain.Guest{
		guest("1", "çetin", "", domain.AttendanceYes, 1, 0),
		guest("2", "Deniz", "", domain.AttendanceYes, 1, 0),
		guest("3", "Can", "", domain.AttendanceYes, 1, 0),
	}

	b := svc.BucketsOf(guests, nil)

	// Turkish collation puts ç between c and d, case-insensitively.
	require.Len(t, b.Unplaced, 3)
	assert.Equal(t, "Can", b.Unplaced[0].FirstName)
	assert.Equal(t, "çetin", b.Unplaced[1].FirstName)
	assert.Equal(t, "Deniz", b.Unplaced[2].FirstName)
}

func TestMenuStats(t *testing.T) {
	g1 := guest("1", "A", "B", domain.AttendanceYes, 1, 0)
	g1.DietaryChoice = "vegan"
	g2 := guest("2", "C", "D", domain.AttendanceYes, 1, 0)
	g2.DietaryChoice = "vegan"
	g3 := guest("3", "E", "F", domain.AttendanceYes, 1, 0)

	svc := newTestService(g1, g2, g3)
	stats := svc.MenuStats(context.Background(), "w1")

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByChoice["vegan"])
	assert.Equal(t, 1, stats.ByChoice["unspecified"])
}

func TestTableDetailJoinsKnownGuests(t *testing.T) {
	svc := newTestService(
		guest("1", "Ayşe", "Yılmaz", domain.AttendanceYes, 1, 0),
		guest("2", "Mehmet", "Demir", domain.AttendanceYes, 1, 0),
	)

	detail := svc.TableDetail(context.Background(), "w1", "5", []string{"2", "ghost"})

	assert.Equal(t, "5", detail.Label)
	require.Len(t, detail.Guests, 1)
	assert.Equal(t, "2", detail.Guests[0].ID)
}
