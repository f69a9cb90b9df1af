package bungie

import (
	"context"
	"fmt"
	"time"
)

// Profile holds the components of a Destiny profile this bot consumes:
// 104 (profile progression), 200 (characters), 202 (character
// progressions). Progression components are absent when the account's
// progression is not publicly visible.
type Profile struct {
	Characters            *CharactersComponent            `json:"characters"`
	CharacterProgressions *CharacterProgressionsComponent `json:"characterProgressions"`
	ProfileProgression    *ProfileProgressionComponent    `json:"profileProgression"`
}

// CharactersComponent maps character ID to character summary.
type CharactersComponent struct {
	Data map[string]Character `json:"data"`
}

// Character is the per-character summary from component 200.
type Character struct {
	CharacterID          string    `json:"characterId"`
	Light                int       `json:"light"`
	EmblemBackgroundPath string    `json:"emblemBackgroundPath"`
	RaceType             int       `json:"raceType"`
	ClassType            int       `json:"classType"`
	GenderHash           uint32    `json:"genderHash"`
	TitleRecordHash      uint32    `json:"titleRecordHash"`
	MinutesPlayedTotal   string    `json:"minutesPlayedTotal"`
	DateLastPlayed       time.Time `json:"dateLastPlayed"`
}

// CharacterProgressionsComponent maps character ID to that character's
// progression table.
type CharacterProgressionsComponent struct {
	Data map[string]CharacterProgressions `json:"data"`
}

// CharacterProgressions holds one character's progressions keyed by
// progression definition hash.
type CharacterProgressions struct {
	Progressions map[string]Progression `json:"progressions"`
}

// Progression is a single progression track state.
type Progression struct {
	Level           int `json:"level"`
	CurrentProgress int `json:"currentProgress"`
}

// ProfileProgressionComponent wraps the account-wide progression data.
type ProfileProgressionComponent struct {
	Data *ProfileProgressionData `json:"data"`
}

// ProfileProgressionData is the account-wide progression state.
type ProfileProgressionData struct {
	SeasonalArtifact SeasonalArtifact `json:"seasonalArtifact"`
}

// SeasonalArtifact is the seasonal artifact power bonus state.
type SeasonalArtifact struct {
	PowerBonus            int         `json:"powerBonus"`
	PowerBonusProgression Progression `json:"powerBonusProgression"`
}

// FetchProfile retrieves the characters and progression components for a
// membership.
func (c *Client) FetchProfile(ctx context.Context, membershipType int, membershipID string) (*Profile, error) {
	endpoint := fmt.Sprintf("%s/Destiny2/%d/Profile/%s/?components=104,200,202",
		c.platformBaseURL, membershipType, membershipID)

	var profile Profile
	if err := c.get(ctx, endpoint, &profile); err != nil {
		return nil, &FetchError{Stage: "profile", Err: err}
	}

	return &profile, nil
}
