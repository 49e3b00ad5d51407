// Package redistally implements the tally contract on Redis counters: one
// INCR-backed key per performance.
package redistally

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"karaoke-client/pkg/redis"
)

// Tally counts votes in Redis
type Tally struct {
	client *redis.Client
}

// New creates a Redis-backed tally
func New(client *redis.Client) *Tally {
	return &Tally{client: client}
}

// Increment atomically adds one to the performance's counter
func (t *Tally) Increment(ctx context.Context, performanceID string) (int64, error) {
	key := t.client.KeyBuilder.KeyPerformanceVotes(performanceID)
	total, err := t.client.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to increment vote counter: %w", err)
	}

	// Best effort; the counter is the source of truth, not this marker
	_ = t.client.Set(ctx, t.client.KeyBuilder.KeyVotesLastUpdate(),
		time.Now().UnixMilli(), 0)

	return total, nil
}

// Counts fetches the current counters for the given performances in one
// round trip. Counters that were never incremented come back as zero.
func (t *Tally) Counts(ctx context.Context, performanceIDs ...string) (map[string]int64, error) {
	counts := make(map[string]int64, len(performanceIDs))
	if len(performanceIDs) == 0 {
		return counts, nil
	}

	keys := make([]string, len(performanceIDs))
	for i, id := range performanceIDs {
		keys[i] = t.client.KeyBuilder.KeyPerformanceVotes(id)
	}

	vals, err := t.client.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vote counters: %w", err)
	}

	for i, id := range performanceIDs {
		counts[id] = 0
		if i >= len(vals) || vals[i] == nil {
			continue
		}
		s, ok := vals[i].(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed counter for performance %s: %w", id, err)
		}
		counts[id] = n
	}

	return counts, nil
}
