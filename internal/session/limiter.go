package session

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ChatLimiter rate-limits inbound messages per chat.
type ChatLimiter struct {
	mu       sync.Mutex
	limiters map[string]*chatEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type chatEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewChatLimiter allows perSecond messages per chat with the given burst.
// A non-positive rate disables limiting.
func NewChatLimiter(perSecond float64, burst int, idle time.Duration) *ChatLimiter {
	l := rate.Inf
	if perSecond > 0 {
		l = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &ChatLimiter{
		limiters: make(map[string]*chatEntry),
		limit:    l,
		burst:    burst,
		idle:     idle,
		now:      time.Now,
	}
}

func (c *ChatLimiter) Allow(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.limiters[chatID]
	if !ok {
		e = &chatEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.limiters[chatID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Prune drops limiters of chats not seen for the idle period.
func (c *ChatLimiter) Prune() {
	if c.idle <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.idle)
	for id, e := range c.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(c.limiters, id)
		}
	}
}
