package leaderboard

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sbowler1/sweet-stats/internal/bungie"
)

var (
	raceNames  = []string{"Human", "Awoken", "Exo"}
	classNames = []string{"Titan", "Hunter", "Warlock"}
)

// RawPlayerData bundles the fetched payloads that normalization flattens
// into a PlayerRecord.
type RawPlayerData struct {
	MembershipID   string
	MembershipType int
	Identity       PlayerIdentity
	Profile        *bungie.Profile
	Stats          *bungie.AccountStats
	Definitions    *bungie.Definitions
}

// Normalize flattens raw profile, stats, and definition payloads into a
// PlayerRecord for the player's highest character. It has no side
// effects; the returned record carries UpdatedAt = now.
//
// Missing progression components mean the account is private and yield
// ErrIncompleteProfile. Any other shape violation yields a
// *NormalizationError.
func Normalize(raw RawPlayerData, now time.Time) (*PlayerRecord, error) {
	p := raw.Profile
	if p == nil {
		return nil, &NormalizationError{Field: "profile", Detail: "payload missing"}
	}
	if p.CharacterProgressions == nil || p.CharacterProgressions.Data == nil ||
		p.ProfileProgression == nil || p.ProfileProgression.Data == nil {
		return nil, ErrIncompleteProfile
	}
	if p.Characters == nil || len(p.Characters.Data) == 0 {
		return nil, &NormalizationError{Field: "characters", Detail: "no characters on profile"}
	}
	if raw.Definitions == nil || raw.Definitions.Season == nil {
		return nil, &NormalizationError{Field: "definitions", Detail: "season definitions missing"}
	}

	highest := highestCharacter(p.Characters.Data)

	artifact := p.ProfileProgression.Data.SeasonalArtifact
	artifactBonus := 0
	if artifact.PowerBonusProgression.CurrentProgress != 0 {
		artifactBonus = artifact.PowerBonus
	}

	if highest.RaceType < 0 || highest.RaceType >= len(raceNames) {
		return nil, &NormalizationError{Field: "raceType", Detail: fmt.Sprintf("unknown race code %d", highest.RaceType)}
	}
	if highest.ClassType < 0 || highest.ClassType >= len(classNames) {
		return nil, &NormalizationError{Field: "classType", Detail: fmt.Sprintf("unknown class code %d", highest.ClassType)}
	}
	raceClass := raceNames[highest.RaceType] + " " + classNames[highest.ClassType]

	title, err := titleLabel(highest, raw.Definitions.Records)
	if err != nil {
		return nil, err
	}

	seasonRank, err := seasonRank(highest, p.CharacterProgressions.Data, raw.Definitions.Season)
	if err != nil {
		return nil, err
	}

	minutes, err := strconv.Atoi(highest.MinutesPlayedTotal)
	if err != nil {
		return nil, &NormalizationError{Field: "minutesPlayedTotal", Detail: fmt.Sprintf("not numeric: %q", highest.MinutesPlayedTotal)}
	}

	pvpKDA, pveKDA, err := kdaLabels(raw.Stats)
	if err != nil {
		return nil, err
	}

	emblemURL := ""
	if highest.EmblemBackgroundPath != "" {
		emblemURL = bungie.ContentBaseURL + highest.EmblemBackgroundPath
	}

	return &PlayerRecord{
		MembershipID:   raw.MembershipID,
		MembershipType: raw.MembershipType,
		EmblemURL:      emblemURL,
		DisplayLabel:   raw.Identity.Label(),
		TitleLabel:     title,
		PowerLevel:     highest.Light,
		ArtifactBonus:  artifactBonus,
		RaceClassLabel: raceClass,
		SeasonRank:     seasonRank,
		MinutesPlayed:  minutes,
		PvPKDA:         pvpKDA,
		PvEKDA:         pveKDA,
		LastPlayedAt:   highest.DateLastPlayed,
		CharacterID:    highest.CharacterID,
		UpdatedAt:      now,
	}, nil
}

// highestCharacter runs a stable-max scan over the characters: the first
// one encountered with the maximum light wins. Character IDs are visited
// in sorted order so the scan is deterministic.
func highestCharacter(characters map[string]bungie.Character) bungie.Character {
	ids := make([]string, 0, len(characters))
	for id := range characters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := characters[ids[0]]
	for _, id := range ids[1:] {
		if c := characters[id]; c.Light > best.Light {
			best = c
		}
	}
	return best
}

// titleLabel resolves the character's equipped title through the record
// definition table, selecting the string for the character's gender.
func titleLabel(c bungie.Character, records map[string]bungie.RecordDefinition) (string, error) {
	if c.TitleRecordHash == 0 {
		return "None", nil
	}

	recordKey := strconv.FormatUint(uint64(c.TitleRecordHash), 10)
	record, ok := records[recordKey]
	if !ok {
		return "", &NormalizationError{Field: "titleRecordHash", Detail: fmt.Sprintf("record %s not in definitions", recordKey)}
	}

	genderKey := strconv.FormatUint(uint64(c.GenderHash), 10)
	title, ok := record.TitleInfo.TitlesByGenderHash[genderKey]
	if !ok {
		return "", &NormalizationError{Field: "titleInfo", Detail: fmt.Sprintf("record %s has no title for gender %s", recordKey, genderKey)}
	}
	return title, nil
}

// seasonRank sums the character's levels in the season's reward and
// prestige progressions.
func seasonRank(c bungie.Character, progressions map[string]bungie.CharacterProgressions, season *bungie.SeasonPass) (int, error) {
	charProgs, ok := progressions[c.CharacterID]
	if !ok {
		return 0, &NormalizationError{Field: "characterProgressions", Detail: fmt.Sprintf("no progressions for character %s", c.CharacterID)}
	}

	rewardKey := strconv.FormatUint(uint64(season.RewardProgressionHash), 10)
	reward, ok := charProgs.Progressions[rewardKey]
	if !ok {
		return 0, &NormalizationError{Field: "rewardProgression", Detail: fmt.Sprintf("progression %s missing", rewardKey)}
	}

	prestigeKey := strconv.FormatUint(uint64(season.PrestigeProgressionHash), 10)
	prestige, ok := charProgs.Progressions[prestigeKey]
	if !ok {
		return 0, &NormalizationError{Field: "prestigeProgression", Detail: fmt.Sprintf("progression %s missing", prestigeKey)}
	}

	return reward.Level + prestige.Level, nil
}

// kdaLabels extracts the display-formatted all-time KDA strings. PvP KDA
// defaults to "0" for accounts that never played Crucible; the PvE entry
// is always present on real accounts, so its absence is a shape error.
func kdaLabels(stats *bungie.AccountStats) (pvp, pve string, err error) {
	if stats == nil {
		return "", "", &NormalizationError{Field: "stats", Detail: "payload missing"}
	}

	pvp = "0"
	if kda := stats.MergedAllCharacters.Results.AllPvP.AllTime.KillsDeathsAssists; kda != nil && kda.Basic != nil {
		pvp = kda.Basic.DisplayValue
	}

	pveKDA := stats.MergedAllCharacters.Results.AllPvE.AllTime.KillsDeathsAssists
	if pveKDA == nil || pveKDA.Basic == nil {
		return "", "", &NormalizationError{Field: "allPvE", Detail: "killsDeathsAssists missing"}
	}
	pve = pveKDA.Basic.DisplayValue

	return pvp, pve, nil
}
