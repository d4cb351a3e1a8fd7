package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

// ConversationStore keeps conversation state in Redis. Each Save renews the
// key's TTL, so idle conversations expire on their own.
type ConversationStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

func NewConversationStore(rc *RedisCache) *ConversationStore {
	return &ConversationStore{client: rc.client, ttl: rc.ttl.Conversation, now: time.Now}
}

func (s *ConversationStore) Load(ctx context.Context, chatID string) (*models.ConversationState, error) {
	val, err := s.client.Get(ctx, conversationKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NewConversationState(chatID, s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", chatID, err)
	}
	var st models.ConversationState
	if err := json.Unmarshal(val, &st); err != nil {
		return nil, fmt.Errorf("decoding conversation %s: %w", chatID, err)
	}
	return &st, nil
}

func (s *ConversationStore) Save(ctx context.Context, state *models.ConversationState) error {
	stored := state.Clone()
	stored.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding conversation %s: %w", state.ChatID, err)
	}
	if err := s.client.Set(ctx, conversationKey(state.ChatID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving conversation %s: %w", state.ChatID, err)
	}
	return nil
}

func conversationKey(chatID string) string {
	return "conv:" + chatID
}

// Deduper holds keys with SET NX so concurrent replicas agree on the first
// claimant.
type Deduper struct {
	client redis.UniversalClient
}

func NewDeduper(rc *RedisCache) *Deduper {
	return &Deduper{client: rc.client}
}

func (d *Deduper) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, "dd:"+key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe acquire: %w", err)
	}
	return ok, nil
}

func (d *Deduper) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, "dd:"+key).Err()
}
