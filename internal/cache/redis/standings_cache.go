package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/paperarena/internal/domain"
	"github.com/redis/go-redis/v9"
)

const standingsTTL = 10 * time.Minute

// StandingsCache implements domain.StandingsCache using a single Redis hash.
// The latest leaderboard is stored at key "standings:latest" with fields
// "data" (JSON) and "ts" (Unix nanosecond timestamp), refreshed after every
// cycle and expired when the publisher stops.
type StandingsCache struct {
	rdb *redis.Client
}

// NewStandingsCache creates a StandingsCache backed by the given Client.
func NewStandingsCache(c *Client) *StandingsCache {
	return &StandingsCache{rdb: c.Underlying()}
}

const standingsKey = "standings:latest"

// SetLeaderboard stores the leaderboard and its cycle timestamp.
func (sc *StandingsCache) SetLeaderboard(ctx context.Context, entries []domain.LeaderboardEntry, ts time.Time) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("redis: marshal standings: %w", err)
	}
	fields := map[string]interface{}{
		"data": data,
		"ts":   strconv.FormatInt(ts.UnixNano(), 10),
	}
	pipe := sc.rdb.Pipeline()
	pipe.HSet(ctx, standingsKey, fields)
	pipe.Expire(ctx, standingsKey, standingsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set standings: %w", err)
	}
	return nil
}

// Leaderboard retrieves the latest stored leaderboard. It returns
// domain.ErrNotFound when no standings have been published yet.
func (sc *StandingsCache) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, time.Time, error) {
	vals, err := sc.rdb.HGetAll(ctx, standingsKey).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get standings: %w", err)
	}
	if len(vals) == 0 {
		return nil, time.Time{}, domain.ErrNotFound
	}

	data, ok := vals["data"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: unmarshal standings: %w", err)
	}

	var ts time.Time
	if tsStr, ok := vals["ts"]; ok {
		if tsNano, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			ts = time.Unix(0, tsNano)
		}
	}
	return entries, ts, nil
}

// Compile-time interface check.
var _ domain.StandingsCache = (*StandingsCache)(nil)
