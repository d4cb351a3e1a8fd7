package session

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestMemoryStore_LoadCreatesAndIsolates(t *testing.T) {
	s := NewMemoryStore(time.Hour, zap.NewNop())
	ctx := context.Background()

	a, _ := s.Load(ctx, "a")
	if a.ChatID != "a" || a.Mode != models.ModeIdle {
		t.Fatalf("fresh state = %+v", a)
	}

	a.Mode = models.ModeCollecting
	a.Favorites.AddTour(models.TourResult{HotelID: 1, Price: 100})
	if err := s.Save(ctx, a); err != nil {
		t.Fatal(err)
	}

	b, _ := s.Load(ctx, "b")
	if b.Mode != models.ModeIdle || !b.Favorites.IsEmpty() {
		t.Error("state leaked across chats")
	}

	again, _ := s.Load(ctx, "a")
	if again.Mode != models.ModeCollecting || len(again.Favorites.Tours) != 1 {
		t.Errorf("saved state not returned: %+v", again)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(time.Hour, zap.NewNop())
	ctx := context.Background()

	st, _ := s.Load(ctx, "a")
	st.Mode = models.ModeResults
	st.Results = append(st.Results, models.TourResult{HotelID: 7})

	fresh, _ := s.Load(ctx, "a")
	if fresh.Mode != models.ModeIdle || len(fresh.Results) != 0 {
		t.Error("unsaved mutation visible through the store")
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(time.Hour, zap.NewNop())
	s.now = clock.now
	ctx := context.Background()

	old, _ := s.Load(ctx, "old")
	_ = s.Save(ctx, old)

	clock.t = clock.t.Add(50 * time.Minute)
	recent, _ := s.Load(ctx, "recent")
	_ = s.Save(ctx, recent)

	clock.t = clock.t.Add(20 * time.Minute)
	if n := s.Sweep(); n != 1 {
		t.Errorf("evicted %d, want 1", n)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d", s.Len())
	}
}

func TestMemoryDeduper(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)}
	d := NewMemoryDeduper()
	d.now = clock.now
	ctx := context.Background()
	key := SelectKey("u1", "req-1", 42)

	if ok, _ := d.Acquire(ctx, key, 30*time.Second); !ok {
		t.Fatal("first acquire must succeed")
	}
	if ok, _ := d.Acquire(ctx, key, 30*time.Second); ok {
		t.Fatal("second acquire within the window must fail")
	}
	if ok, _ := d.Acquire(ctx, SelectKey("u1", "req-1", 43), 30*time.Second); !ok {
		t.Error("different hotel must not be deduplicated")
	}
	if ok, _ := d.Acquire(ctx, SelectKey("u2", "req-1", 42), 30*time.Second); !ok {
		t.Error("different user must not be deduplicated")
	}

	clock.t = clock.t.Add(31 * time.Second)
	if ok, _ := d.Acquire(ctx, key, 30*time.Second); !ok {
		t.Error("acquire after the window must succeed")
	}

	_ = d.Release(ctx, key)
	if ok, _ := d.Acquire(ctx, key, 30*time.Second); !ok {
		t.Error("acquire after release must succeed")
	}
}

func TestChatLimiter(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)}
	l := NewChatLimiter(1, 2, time.Minute)
	l.now = clock.now

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst should be allowed")
	}
	if l.Allow("a") {
		t.Error("third message in the same instant should be limited")
	}
	if !l.Allow("b") {
		t.Error("limits must be per chat")
	}

	clock.t = clock.t.Add(time.Second)
	if !l.Allow("a") {
		t.Error("token should refill after a second")
	}

	clock.t = clock.t.Add(2 * time.Minute)
	l.Prune()
	if len(l.limiters) != 0 {
		t.Errorf("expected idle limiters pruned, have %d", len(l.limiters))
	}
}

func TestChatLimiter_Disabled(t *testing.T) {
	l := NewChatLimiter(0, 0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("a") {
			t.Fatal("disabled limiter must allow everything")
		}
	}
}
