// internal/store/dedup.go
package store

import (
	"context"
	"fmt"
	"time"

	"intake-bot/internal/common/database"
	"intake-bot/internal/common/logger"
)

// DedupStore holds at-most-once marks in Redis. Every mark is a SET NX with
// a TTL, so a crashed process can never wedge a key forever.
type DedupStore struct {
	redis *database.RedisClient
	log   logger.Logger
}

func NewDedupStore(redis *database.RedisClient, log logger.Logger) *DedupStore {
	return &DedupStore{redis: redis, log: log}
}

// UpdateKey marks a gateway update id as seen.
func UpdateKey(updateID int64) string {
	return fmt.Sprintf("evt:%d", updateID)
}

// StallKey identifies one stall episode. Binding the key to updated_at means
// any new progress re-arms the watchdog for a fresh escalation.
func StallKey(appID string, updatedAt time.Time) string {
	return fmt.Sprintf("stall:%s:%d", appID, updatedAt.Unix())
}

// ReviewKey guards the one-time review notification fan-out.
func ReviewKey(appID string) string {
	return fmt.Sprintf("review:%s", appID)
}

// AcquireMark claims a mark. Returns true when this caller set it first.
func (s *DedupStore) AcquireMark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.redis.Client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire mark %s: %w", key, err)
	}
	return ok, nil
}

// SeenUpdate reports whether an update id was already processed, marking it
// as a side effect when it was not.
func (s *DedupStore) SeenUpdate(ctx context.Context, updateID int64, ttl time.Duration) (bool, error) {
	acquired, err := s.AcquireMark(ctx, UpdateKey(updateID), ttl)
	if err != nil {
		return false, err
	}
	return !acquired, nil
}

// ReleaseMark removes a mark, used when fan-out failed entirely and a retry
// should be possible before the TTL lapses.
func (s *DedupStore) ReleaseMark(ctx context.Context, key string) error {
	return s.redis.Client.Del(ctx, key).Err()
}
