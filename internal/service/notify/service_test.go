package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecetin/wedsys/internal/domain"
)

type fakeGuests struct {
	guests []domain.Guest
}

func (f *fakeGuests) ListByEvent(_ context.Context, _ string) ([]domain.Guest, error) {
	return f.guests, nil
}

type fakeRecords struct {
	mu   sync.Mutex
	recs []domain.NotificationRecord
	err  error
}

func (f *fakeRecords) UpsertRecord(_ context.Context, rec domain.NotificationRecord) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeRecords) ListByEvent(_ context.Context, _ string) ([]domain.NotificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.NotificationRecord(nil), f.recs...), nil
}

func (f *fakeRecords) guestIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.recs))
	for _, r := range f.recs {
		ids = append(ids, r.GuestID)
	}
	return ids
}

type fakeMarker struct {
	mu     sync.Mutex
	marked []string
}

func (f *fakeMarker) MarkNotified(_ context.Context, _, guestID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, guestID)
	return nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	sent   []string
	errFor map[string]error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, phone, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errFor[phone]; ok {
		return err
	}
	f.sent = append(f.sent, phone)
	return nil
}

type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (f *fakeClock) Now() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func (f *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	return nil
}

type harness struct {
	svc        *Service
	records    *fakeRecords
	marker     *fakeMarker
	dispatcher *fakeDispatcher
	clk        *fakeClock
}

func newHarness(guests ...domain.Guest) *harness {
	h := &harness{
		records:    &fakeRecords{},
		marker:     &fakeMarker{},
		dispatcher: &fakeDispatcher{},
		clk:        &fakeClock{},
	}
	h.svc = New(
		&fakeGuests{guests: guests},
		h.records,
		h.marker,
		h.dispatcher,
		h.clk,
		Config{Spacing: 400 * time.Millisecond},
		slog.New(slog.DiscardHandler),
	)
	return h
}

func seatedGuest(id, first, phone string) domain.Guest {
	return domain.Guest{ID: id, FirstName: first, LastName: "Test", Phone: phone}
}

func TestPrepareSkipsEmptyTablesAndUnknownGuests(t *testing.T) {
	h := newHarness(
		seatedGuest("g1", "Ayşe", "+90 532 111 22 33"),
		seatedGuest("g2", "Mehmet", "+90 532 444 55 66"),
	)

	assignments := domain.AssignmentMap{
		"g1":    {Table: "3"},
		"g2":    {Table: ""},  // unplaced entry, no message
		"ghost": {Table: "5"}, // no matching guest
	}

	prepared, err := h.svc.Prepare(context.Background(), "w1", assignments)
	require.NoError(t, err)

	require.Len(t, prepared, 1)
	assert.Equal(t, "g1", prepared[0].GuestID)
	assert.Equal(t, "905321112233", prepared[0].NormalizedPhone)
	assert.Contains(t, prepared[0].Message, "Ayşe Test")
	assert.Contains(t, prepared[0].Message, "3")
}

func TestPrepareDoesNotFilterAttendance(t *testing.T) {
	declined := seatedGuest("g1", "Zeynep", "+90 532 111 22 33")
	declined.Attendance = domain.AttendanceNo

	h := newHarness(declined)

	prepared, err := h.svc.Prepare(context.Background(), "w1", domain.AssignmentMap{"g1": {Table: "7"}})
	require.NoError(t, err)
	assert.Len(t, prepared, 1)
}

func TestNotifyTableDedupsSharedPhones(t *testing.T) {
	h := newHarness(
		seatedGuest("g1", "Ayşe", "0532 111 22 33"),
		seatedGuest("g2", "Ali", "+90 532 444 55 66"),
		seatedGuest("g3", "Can", "0532 111 22 33"), // shares a phone with g1
	)

	assignments := domain.AssignmentMap{
		"g1": {Table: "3"},
		"g2": {Table: "3"},
		"g3": {Table: "3"},
	}

	queued, err := h.svc.NotifyTable(context.Background(), "w1", assignments, "3")
	require.NoError(t, err)

	// g1 and g3 share digits, so only two messages are queued, but the
	// duplicate guest is marked right away.
	assert.Equal(t, 2, queued)
	assert.Contains(t, h.records.guestIDs(), "g3")

	require.NoError(t, h.svc.Outbox().Drain(context.Background()))

	assert.Len(t, h.dispatcher.sent, 2)
	assert.ElementsMatch(t, []string{"g1", "g2", "g3"}, h.records.guestIDs())
	assert.ElementsMatch(t, []string{"g1", "g2", "g3"}, h.marker.marked)
}

func TestNotifyTableIgnoresOtherTables(t *testing.T) {
	h := newHarness(
		seatedGuest("g1", "Ayşe", "0532 111 22 33"),
		seatedGuest("g2", "Ali", "0532 444 55 66"),
	)

	assignments := domain.AssignmentMap{
		"g1": {Table: "3"},
		"g2": {Table: "5"},
	}

	queued, err := h.svc.NotifyTable(context.Background(), "w1", assignments, "3")
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
}

func TestNotifyAllSpacesDispatches(t *testing.T) {
	h := newHarness(
		seatedGuest("g1", "Ayşe", "0532 111 22 33"),
		seatedGuest("g2", "Ali", "0532 444 55 66"),
		seatedGuest("g3", "Can", "0532 777 88 99"),
	)

	assignments := domain.AssignmentMap{
		"g1": {Table: "1"},
		"g2": {Table: "2"},
		"g3": {Table: "3"},
	}

	queued, err := h.svc.NotifyAll(context.Background(), "w1", assignments)
	require.NoError(t, err)
	require.Equal(t, 3, queued)

	require.NoError(t, h.svc.Outbox().Drain(context.Background()))

	assert.Len(t, h.dispatcher.sent, 3)
	// Spacing applies between items, not after the last one.
	assert.Equal(t, []time.Duration{400 * time.Millisecond, 400 * time.Millisecond}, h.clk.sleeps)
}

func TestDispatchFailureStillMarks(t *testing.T) {
	h := newHarness(seatedGuest("g1", "Ayşe", "0532 111 22 33"))
	h.dispatcher.errFor = map[string]error{"05321112233": errors.New("handoff refused")}

	_, err := h.svc.NotifyTable(context.Background(), "w1", domain.AssignmentMap{"g1": {Table: "3"}}, "3")
	require.NoError(t, err)

	require.NoError(t, h.svc.Outbox().Drain(context.Background()))

	// The external app may have opened the send regardless, so the
	// advisory marker is written either way.
	assert.Contains(t, h.records.guestIDs(), "g1")
	assert.Contains(t, h.marker.marked, "g1")
}

func TestMarkNotifiedSwallowsRecordFailure(t *testing.T) {
	h := newHarness(seatedGuest("g1", "Ayşe", "0532 111 22 33"))
	h.records.err = errors.New("write refused")

	// Must not panic or surface anything.
	h.svc.MarkNotified(context.Background(), "w1", "g1", "3")

	assert.Empty(t, h.marker.marked)
}

func TestSendInvitesSkipsUnusablePhones(t *testing.T) {
	h := newHarness()

	queued := h.svc.SendInvites("w1", []Invite{
		{Phone: "0532 111 22 33", Message: "Davetlisiniz!"},
		{Phone: "---", Message: "Davetlisiniz!"},
	})
	assert.Equal(t, 1, queued)

	require.NoError(t, h.svc.Outbox().Drain(context.Background()))

	assert.Equal(t, []string{"05321112233"}, h.dispatcher.sent)
	// Invites carry no notified bookkeeping.
	assert.Empty(t, h.records.guestIDs())
	assert.Empty(t, h.marker.marked)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "905321112233", NormalizePhone("+90 (532) 111-22-33"))
	assert.Equal(t, "05321112233", NormalizePhone("0532 111 22 33"))
	assert.Equal(t, "", NormalizePhone("no digits"))
}
