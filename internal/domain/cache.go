package domain

import (
	"context"
	"time"
)

// RateLimiter bounds request rates per key over a sliding window.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted and, if so,
	// counts it against the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StandingsCache holds the latest published leaderboard so read-only
// processes can serve standings without a live runtime.
type StandingsCache interface {
	SetLeaderboard(ctx context.Context, entries []LeaderboardEntry, ts time.Time) error
	// Leaderboard returns ErrNotFound when no standings have been published.
	Leaderboard(ctx context.Context) ([]LeaderboardEntry, time.Time, error)
}
