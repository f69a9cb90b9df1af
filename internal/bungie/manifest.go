package bungie

import (
	"context"
	"fmt"
)

// manifest is the subset of the Destiny manifest index this client needs:
// per-locale paths to the JSON component tables.
type manifest struct {
	JSONWorldComponentContentPaths map[string]map[string]string `json:"jsonWorldComponentContentPaths"`
}

// SeasonPass is one entry of the DestinySeasonPassDefinition table.
type SeasonPass struct {
	Index                   int    `json:"index"`
	RewardProgressionHash   uint32 `json:"rewardProgressionHash"`
	PrestigeProgressionHash uint32 `json:"prestigeProgressionHash"`
}

// RecordDefinition is one entry of the DestinyRecordDefinition table,
// reduced to title information.
type RecordDefinition struct {
	TitleInfo RecordTitleInfo `json:"titleInfo"`
}

// RecordTitleInfo holds the gendered title strings a record can grant.
type RecordTitleInfo struct {
	HasTitle           bool              `json:"hasTitle"`
	TitlesByGenderHash map[string]string `json:"titlesByGenderHash"`
}

// Definitions bundles the manifest lookups needed to normalize a player:
// the current season pass and the full record table keyed by record hash.
type Definitions struct {
	Season  *SeasonPass
	Records map[string]RecordDefinition
}

// FetchDefinitions loads the manifest index and resolves the current
// season pass (the entry with the highest index) and the record
// definition table.
func (c *Client) FetchDefinitions(ctx context.Context) (*Definitions, error) {
	endpoint := fmt.Sprintf("%s/Destiny2/Manifest/", c.platformBaseURL)

	var m manifest
	if err := c.get(ctx, endpoint, &m); err != nil {
		return nil, &FetchError{Stage: "definitions", Err: err}
	}

	paths, ok := m.JSONWorldComponentContentPaths["en"]
	if !ok {
		return nil, &FetchError{Stage: "definitions", Err: fmt.Errorf("manifest has no English content paths")}
	}

	seasonPath, ok := paths["DestinySeasonPassDefinition"]
	if !ok {
		return nil, &FetchError{Stage: "definitions", Err: fmt.Errorf("manifest has no season pass table path")}
	}
	recordPath, ok := paths["DestinyRecordDefinition"]
	if !ok {
		return nil, &FetchError{Stage: "definitions", Err: fmt.Errorf("manifest has no record table path")}
	}

	var seasons map[string]SeasonPass
	if err := c.getRaw(ctx, c.contentBaseURL+seasonPath, &seasons); err != nil {
		return nil, &FetchError{Stage: "definitions", Err: err}
	}

	season := currentSeasonPass(seasons)
	if season == nil {
		return nil, &FetchError{Stage: "definitions", Err: fmt.Errorf("season pass table is empty")}
	}

	var records map[string]RecordDefinition
	if err := c.getRaw(ctx, c.contentBaseURL+recordPath, &records); err != nil {
		return nil, &FetchError{Stage: "definitions", Err: err}
	}

	return &Definitions{Season: season, Records: records}, nil
}

// currentSeasonPass picks the season pass with the maximum index. The
// table lists every season ever shipped; the highest index is the one
// currently running.
func currentSeasonPass(seasons map[string]SeasonPass) *SeasonPass {
	var current *SeasonPass
	for _, s := range seasons {
		s := s
		if current == nil || s.Index > current.Index {
			current = &s
		}
	}
	return current
}
