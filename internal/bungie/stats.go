package bungie

import (
	"context"
	"fmt"
)

// AccountStats is the aggregated historical stats response for an
// account, reduced to the merged all-character PvP/PvE figures.
type AccountStats struct {
	MergedAllCharacters MergedCharacterStats `json:"mergedAllCharacters"`
}

// MergedCharacterStats holds stat groups merged across all characters.
type MergedCharacterStats struct {
	Results StatsResults `json:"results"`
}

// StatsResults splits merged stats into the PvP and PvE groups.
type StatsResults struct {
	AllPvP StatsGroup `json:"allPvP"`
	AllPvE StatsGroup `json:"allPvE"`
}

// StatsGroup holds the all-time aggregate for one activity group.
type StatsGroup struct {
	AllTime AllTimeStats `json:"allTime"`
}

// AllTimeStats carries the individual all-time stat entries consumed here.
type AllTimeStats struct {
	KillsDeathsAssists *StatEntry `json:"killsDeathsAssists"`
}

// StatEntry is one named statistic.
type StatEntry struct {
	Basic *StatValue `json:"basic"`
}

// StatValue is a stat reading with its display formatting.
type StatValue struct {
	Value        float64 `json:"value"`
	DisplayValue string  `json:"displayValue"`
}

// FetchStats retrieves aggregated all-time account stats for a membership.
func (c *Client) FetchStats(ctx context.Context, membershipType int, membershipID string) (*AccountStats, error) {
	endpoint := fmt.Sprintf("%s/Destiny2/%d/Account/%s/Stats/",
		c.platformBaseURL, membershipType, membershipID)

	var stats AccountStats
	if err := c.get(ctx, endpoint, &stats); err != nil {
		return nil, &FetchError{Stage: "stats", Err: err}
	}

	return &stats, nil
}
