package leaderboard

import (
	"context"
	"time"

	"github.com/sbowler1/sweet-stats/internal/bungie"
)

// PlayerIdentity is a Bungie name: the display name plus the 4-digit
// discriminator code.
type PlayerIdentity struct {
	DisplayName string
	Code        string
}

// Label returns the canonical "name#code" form.
func (id PlayerIdentity) Label() string {
	return id.DisplayName + "#" + id.Code
}

// PlayerRecord is the cached projection of one player's progress, keyed
// by membership ID. It holds only the fields the leaderboard ranks and
// renders.
type PlayerRecord struct {
	MembershipID   string
	MembershipType int
	EmblemURL      string // empty when the character has no emblem
	DisplayLabel   string // name#code
	TitleLabel     string
	PowerLevel     int
	ArtifactBonus  int
	RaceClassLabel string
	SeasonRank     int
	MinutesPlayed  int
	PvPKDA         string
	PvEKDA         string
	LastPlayedAt   time.Time
	CharacterID    string
	UpdatedAt      time.Time
}

// BasePower is the power level with the seasonal artifact bonus removed.
func (r *PlayerRecord) BasePower() int {
	return r.PowerLevel - r.ArtifactBonus
}

// GroupEntry pairs a group membership with the shared player record it
// references.
type GroupEntry struct {
	GuildID      string
	MembershipID string
	DisplayLabel string
	Record       *PlayerRecord
}

// Fetcher retrieves raw player data from the Bungie API. Implemented by
// *bungie.Client; faked in tests.
type Fetcher interface {
	ResolveIdentity(ctx context.Context, displayName, code string) (*bungie.Membership, error)
	FetchProfile(ctx context.Context, membershipType int, membershipID string) (*bungie.Profile, error)
	FetchStats(ctx context.Context, membershipType int, membershipID string) (*bungie.AccountStats, error)
	FetchDefinitions(ctx context.Context) (*bungie.Definitions, error)
}

// Store is the persistence surface the pipeline needs. Implemented by
// *storage.Repository.
type Store interface {
	// GetPlayer returns the record for a membership, or nil when none is
	// cached yet.
	GetPlayer(membershipID string) (*PlayerRecord, error)
	UpsertPlayer(rec *PlayerRecord) error
	ListGroupEntries(guildID string) ([]*GroupEntry, error)
}

// Renderer turns one record into a fixed-size image artifact.
type Renderer interface {
	Render(ctx context.Context, rec *PlayerRecord) ([]byte, error)
}

// Sink receives the ordered stream of text and image items produced by a
// pipeline run.
type Sink interface {
	// Clear removes previous leaderboard output from the destination.
	Clear(ctx context.Context) error
	// SendText posts a text item and returns a reference usable with
	// EditText.
	SendText(ctx context.Context, content string) (string, error)
	EditText(ctx context.Context, ref, content string) error
	SendImage(ctx context.Context, filename string, png []byte) error
}
