package seating

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecetin/wedsys/internal/clock"
	"github.com/ecetin/wedsys/internal/domain"
)

type fakeStore struct {
	assignments domain.AssignmentMap
	listErr     error
	upsertErr   error

	upserts   []string
	deletes   []string
	registers []string
}

func (f *fakeStore) ListAssignments(_ context.Context, _ string) (domain.AssignmentMap, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.assignments.Clone(), nil
}

func (f *fakeStore) UpsertAssignment(_ context.Context, _ string, guestID string, a domain.Assignment) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if f.assignments == nil {
		f.assignments = make(domain.AssignmentMap)
	}
	f.assignments[guestID] = a
	f.upserts = append(f.upserts, guestID)
	return nil
}

func (f *fakeStore) DeleteAssignment(_ context.Context, _ string, guestID string) error {
	delete(f.assignments, guestID)
	f.deletes = append(f.deletes, guestID)
	return nil
}

func (f *fakeStore) RegisterTable(_ context.Context, _ string, label string) error {
	f.registers = append(f.registers, label)
	return nil
}

func (f *fakeStore) ListTables(_ context.Context, eventID string) ([]domain.Table, error) {
	tables := make([]domain.Table, 0, len(f.registers))
	for _, label := range f.registers {
		tables = append(tables, domain.Table{EventID: eventID, Label: label})
	}
	return tables, nil
}

type fakePub struct {
	published []string
}

func (f *fakePub) PublishEventChanged(_ context.Context, eventID string) error {
	f.published = append(f.published, eventID)
	return nil
}

func newTestSession(t *testing.T, store *fakeStore) (*Session, *fakePub) {
	t.Helper()

	pub := &fakePub{}
	logger := slog.New(slog.DiscardHandler)
	sess := newSession("wedding-1", "token-1", store, pub, clock.Real{}, logger)

	return sess, pub
}

func TestSessionLoadReplacesMap(t *testing.T) {
	store := &fakeStore{assignments: domain.AssignmentMap{
		"g1": {Table: "3"},
		"g2": {Table: "5"},
	}}
	sess, _ := newTestSession(t, store)

	require.NoError(t, sess.Assign(context.Background(), "g9", "9"))
	sess.Load(context.Background())

	snap := sess.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, "3", snap["g1"].Table)
	assert.NotContains(t, snap, "g9")
}

func TestSessionLoadFailOpen(t *testing.T) {
	store := &fakeStore{listErr: errors.New("transport down")}
	sess, _ := newTestSession(t, store)

	sess.Load(context.Background())

	assert.Empty(t, sess.Snapshot())
}

func TestSessionAssignOverwrites(t *testing.T) {
	sess, _ := newTestSession(t, &fakeStore{})
	ctx := context.Background()

	require.NoError(t, sess.Assign(ctx, "g1", "3"))
	require.NoError(t, sess.Assign(ctx, "g1", "7"))

	snap := sess.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "7", snap["g1"].Table)
}

func TestSessionAssignValidates(t *testing.T) {
	sess, _ := newTestSession(t, &fakeStore{})
	ctx := context.Background()

	assert.ErrorIs(t, sess.Assign(ctx, "", "3"), ErrEmptyGuestID)
	assert.ErrorIs(t, sess.Assign(ctx, "g1", "  "), ErrEmptyTable)
}

func TestSessionAssignKeepsNotifiedMarker(t *testing.T) {
	notified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{assignments: domain.AssignmentMap{
		"g1": {Table: "3", NotifiedAt: &notified},
	}}
	sess, _ := newTestSession(t, store)
	sess.Load(context.Background())

	require.NoError(t, sess.Assign(context.Background(), "g1", "8"))

	snap := sess.Snapshot()
	require.NotNil(t, snap["g1"].NotifiedAt)
	assert.Equal(t, notified, *snap["g1"].NotifiedAt)
}

func TestSessionClearThenAssignRoundTrip(t *testing.T) {
	sess, _ := newTestSession(t, &fakeStore{})
	ctx := context.Background()

	require.NoError(t, sess.Assign(ctx, "g1", "3"))
	sess.Clear("g1")
	assert.Empty(t, sess.Snapshot())

	require.NoError(t, sess.Assign(ctx, "g1", "3"))
	assert.Equal(t, "3", sess.Snapshot()["g1"].Table)
}

func TestSessionSavePersistsOneUpsertPerEntry(t *testing.T) {
	store := &fakeStore{}
	sess, pub := newTestSession(t, store)
	ctx := context.Background()

	require.NoError(t, sess.Assign(ctx, "g1", "3"))
	require.NoError(t, sess.Save(ctx))

	assert.Equal(t, []string{"g1"}, store.upserts)
	assert.Equal(t, []string{"wedding-1"}, pub.published)

	sess.Load(ctx)
	assert.Equal(t, "3", sess.Snapshot()["g1"].Table)
}

func TestSessionSaveDeletesClearedEntries(t *testing.T) {
	store := &fakeStore{assignments: domain.AssignmentMap{
		"g1": {Table: "3"},
		"g2": {Table: "5"},
	}}
	sess, _ := newTestSession(t, store)
	ctx := context.Background()

	sess.Load(ctx)
	sess.Clear("g2")
	require.NoError(t, sess.Save(ctx))

	assert.Equal(t, []string{"g2"}, store.deletes)
	assert.NotContains(t, store.assignments, "g2")
	assert.Contains(t, store.assignments, "g1")
}

func TestSessionSaveReportsPartialFailure(t *testing.T) {
	store := &fakeStore{upsertErr: errors.New("write refused")}
	sess, pub := newTestSession(t, store)
	ctx := context.Background()

	require.NoError(t, sess.Assign(ctx, "g1", "3"))
	err := sess.Save(ctx)

	require.Error(t, err)
	assert.Empty(t, pub.published)
}

func TestSessionTablesAndTableGuests(t *testing.T) {
	sess, _ := newTestSession(t, &fakeStore{})
	ctx := context.Background()

	require.NoError(t, sess.Assign(ctx, "g2", "5"))
	require.NoError(t, sess.Assign(ctx, "g1", "5"))
	require.NoError(t, sess.Assign(ctx, "g3", "1"))

	assert.Equal(t, []string{"1", "5"}, sess.Tables())
	assert.Equal(t, []string{"g1", "g2"}, sess.TableGuests("5"))
	assert.Empty(t, sess.TableGuests("9"))
}

func TestSessionLoadSeedsRegisteredTables(t *testing.T) {
	store := &fakeStore{registers: []string{"12"}}
	sess, _ := newTestSession(t, store)

	sess.Load(context.Background())

	assert.Equal(t, []string{"12"}, sess.Tables())
}

func TestManagerSessionLifecycle(t *testing.T) {
	store := &fakeStore{assignments: domain.AssignmentMap{"g1": {Table: "3"}}}
	m := NewManager(store, &fakePub{}, clock.Real{}, slog.New(slog.DiscardHandler))

	sess := m.Open(context.Background(), "wedding-1")
	require.NotEmpty(t, sess.Token())
	assert.Equal(t, "wedding-1", sess.EventID())
	assert.Equal(t, "3", sess.Snapshot()["g1"].Table)

	got, ok := m.Get(sess.Token())
	require.True(t, ok)
	assert.Same(t, sess, got)

	m.Close(sess.Token())
	_, ok = m.Get(sess.Token())
	assert.False(t, ok)
}
