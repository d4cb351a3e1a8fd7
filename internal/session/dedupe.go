package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Deduper suppresses repeated actions. Acquire returns false while key is
// held; a key is held until Release or until its window elapses.
type Deduper interface {
	Acquire(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// SelectKey identifies one "book this" action: the same user picking the
// same hotel from the same result set.
func SelectKey(userID, requestID string, hotelID int) string {
	return fmt.Sprintf("sel:%s:%s:%d", userID, requestID, hotelID)
}

type MemoryDeduper struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{held: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) Acquire(_ context.Context, key string, window time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.held {
		if !now.Before(exp) {
			delete(d.held, k)
		}
	}
	if _, ok := d.held[key]; ok {
		return false, nil
	}
	d.held[key] = now.Add(window)
	return true, nil
}

func (d *MemoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.held, key)
	return nil
}
