package leaderboard

import "sort"

// Rank orders records for display, best first, and returns a new slice.
// The order is:
//
//  1. Higher power level.
//  2. On equal power level and equal base power, higher season rank.
//  3. On equal power level but unequal base power, the LOWER base power
//     ranks higher. This inverts the obvious ordering; it reproduces the
//     long-standing comparator this leaderboard has always shipped with,
//     and changing it would reshuffle established standings.
//
// Remaining ties keep their input order (stable sort), so ranking is
// idempotent.
func Rank(records []*PlayerRecord) []*PlayerRecord {
	ranked := make([]*PlayerRecord, len(records))
	copy(ranked, records)

	sort.SliceStable(ranked, func(i, j int) bool {
		return rankedBefore(ranked[i], ranked[j])
	})
	return ranked
}

func rankedBefore(a, b *PlayerRecord) bool {
	if a.PowerLevel != b.PowerLevel {
		return a.PowerLevel > b.PowerLevel
	}
	if a.BasePower() != b.BasePower() {
		return a.BasePower() < b.BasePower()
	}
	return a.SeasonRank > b.SeasonRank
}

// TopN returns the highest-ranked prefix of an already ranked slice.
func TopN(ranked []*PlayerRecord, n int) []*PlayerRecord {
	if n < 0 || n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}
