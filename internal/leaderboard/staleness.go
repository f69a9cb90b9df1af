package leaderboard

import "time"

// DefaultStaleness is how old a cached record may grow before it must be
// refreshed ahead of ranking.
const DefaultStaleness = 15 * time.Minute

// IsStale reports whether a record refreshed at updatedAt has reached the
// staleness threshold at the given instant. Pure and total: any pair of
// timestamps is a valid input.
func IsStale(updatedAt, now time.Time, threshold time.Duration) bool {
	return now.Sub(updatedAt) >= threshold
}
