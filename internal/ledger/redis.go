package ledger

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViolationsPrefix is the Redis key prefix for per-user violation records.
const ViolationsPrefix = "violations:"

// Redis is a ledger backed by Redis sorted sets, one set per user with the
// violation timestamp as both member and score:
//
//	Key:    violations:<user_id>
//	Member: <unix_nano timestamp>
//	Score:  <unix timestamp, seconds>
//	TTL:    Window (refreshed on every write)
//
// Entries older than Window are removed by score range on each access, so
// the set only ever holds the live rolling window. Multiple moderation
// replicas share one view of a user's history through this backend.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis returns a ledger using the given Redis client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

// Record appends a violation for userID and prunes expired entries.
// Redis errors are returned so the engine can log and continue; losing a
// ledger write must not block the moderation decision itself.
func (r *Redis) Record(ctx context.Context, userID string) error {
	key := ViolationsPrefix + userID
	now := r.now()
	cutoff := now.Add(-Window)

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", formatScore(cutoff))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.Unix()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ledger: record %s: %w", userID, err)
	}
	return nil
}

// Count returns the number of live violations for userID. On Redis errors it
// returns 0 with the error so callers can fail open (a transient outage must
// not escalate anyone to a ban).
func (r *Redis) Count(ctx context.Context, userID string) (int, error) {
	key := ViolationsPrefix + userID
	cutoff := r.now().Add(-Window)

	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", formatScore(cutoff)).Err(); err != nil {
		log.Printf("[ledger] redis prune error key=%s: %v", key, err)
	}

	n, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ledger: count %s: %w", userID, err)
	}
	return int(n), nil
}

// Clear removes the user's record.
func (r *Redis) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, ViolationsPrefix+userID).Err(); err != nil {
		return fmt.Errorf("ledger: clear %s: %w", userID, err)
	}
	return nil
}

func formatScore(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
