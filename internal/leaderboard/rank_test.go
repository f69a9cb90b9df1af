package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func player(label string, power, artifact, seasonRank int) *PlayerRecord {
	return &PlayerRecord{
		MembershipID:  label,
		DisplayLabel:  label,
		PowerLevel:    power,
		ArtifactBonus: artifact,
		SeasonRank:    seasonRank,
	}
}

func labels(records []*PlayerRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.DisplayLabel
	}
	return out
}

func TestRankOrdersByPowerLevel(t *testing.T) {
	t.Parallel()

	ranked := Rank([]*PlayerRecord{
		player("mid", 1800, 10, 50),
		player("top", 1820, 10, 50),
		player("low", 1750, 10, 50),
	})

	assert.Equal(t, []string{"top", "mid", "low"}, labels(ranked))
}

func TestRankEqualPowerEqualBaseBreaksBySeasonRank(t *testing.T) {
	t.Parallel()

	// Both at power 1350 with base 1300; the higher season rank wins.
	ranked := Rank([]*PlayerRecord{
		player("rank40", 1350, 50, 40),
		player("rank55", 1350, 50, 55),
	})

	assert.Equal(t, []string{"rank55", "rank40"}, labels(ranked))
}

func TestRankEqualPowerUnequalBasePrefersLowerBase(t *testing.T) {
	t.Parallel()

	// Inherited quirk: at equal power level the record with the lower
	// base power (bigger artifact share) ranks higher.
	ranked := Rank([]*PlayerRecord{
		player("highBase", 1800, 5, 99),
		player("lowBase", 1800, 20, 1),
	})

	assert.Equal(t, []string{"lowBase", "highBase"}, labels(ranked))
}

func TestRankIsStable(t *testing.T) {
	t.Parallel()

	// Fully tied records keep their input order.
	input := []*PlayerRecord{
		player("first", 1800, 10, 50),
		player("second", 1800, 10, 50),
		player("third", 1800, 10, 50),
	}

	ranked := Rank(input)
	assert.Equal(t, []string{"first", "second", "third"}, labels(ranked))
}

func TestRankIsIdempotent(t *testing.T) {
	t.Parallel()

	input := []*PlayerRecord{
		player("a", 1800, 10, 50),
		player("b", 1820, 0, 12),
		player("c", 1800, 25, 50),
		player("d", 1800, 10, 50),
		player("e", 1795, 3, 80),
	}

	once := Rank(input)
	twice := Rank(once)
	assert.Equal(t, labels(once), labels(twice))
}

func TestRankDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	input := []*PlayerRecord{
		player("a", 1700, 10, 50),
		player("b", 1820, 0, 12),
	}

	_ = Rank(input)
	assert.Equal(t, []string{"a", "b"}, labels(input))
}

func TestTopN(t *testing.T) {
	t.Parallel()

	ranked := Rank([]*PlayerRecord{
		player("a", 1830, 10, 50),
		player("b", 1820, 0, 12),
		player("c", 1810, 25, 50),
	})

	require.Len(t, TopN(ranked, 2), 2)
	assert.Equal(t, []string{"a", "b"}, labels(TopN(ranked, 2)))

	// Requesting more than available returns everything.
	assert.Len(t, TopN(ranked, 10), 3)
}
