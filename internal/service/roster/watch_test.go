package roster

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecetin/wedsys/internal/domain"
)

type scriptedSub struct {
	changes []string
}

func (s *scriptedSub) Subscribe(ctx context.Context, handler func(ctx context.Context, eventID string)) error {
	for _, id := range s.changes {
		handler(ctx, id)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestWatchMenuStatsReprojectsOnMatchingChanges(t *testing.T) {
	g := guest("1", "Ayşe", "Yılmaz", domain.AttendanceYes, 1, 0)
	g.DietaryChoice = "vegan"
	svc := newTestService(g)

	sub := &scriptedSub{changes: []string{"other-event", "w1", "w1"}}

	updates := make(chan domain.MenuStats, 8)
	w := svc.WatchMenuStats(context.Background(), sub, "w1", func(stats domain.MenuStats) {
		updates <- stats
	})
	defer w.Close()

	// One initial snapshot plus one per matching change notice.
	for i := 0; i < 3; i++ {
		select {
		case stats := <-updates:
			assert.Equal(t, 1, stats.ByChoice["vegan"])
		case <-time.After(2 * time.Second):
			t.Fatalf("expected update %d, got none", i+1)
		}
	}

	select {
	case <-updates:
		t.Fatal("unexpected extra update")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcherCloseIsIdempotentTeardown(t *testing.T) {
	svc := newTestService()
	sub := &scriptedSub{}

	w := svc.WatchMenuStats(context.Background(), sub, "w1", func(domain.MenuStats) {})

	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not tear down")
	}
}

func TestWatchMenuStatsInitialSnapshot(t *testing.T) {
	svc := New(&fakeGuests{}, Config{}, slog.New(slog.DiscardHandler))
	sub := &scriptedSub{}

	updates := make(chan domain.MenuStats, 1)
	w := svc.WatchMenuStats(context.Background(), sub, "w1", func(stats domain.MenuStats) {
		updates <- stats
	})
	defer w.Close()

	select {
	case stats := <-updates:
		require.Zero(t, stats.Total)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}
}
