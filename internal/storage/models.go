package storage

import "time"

// GroupMembership links a cached player record to a Discord guild. The
// record itself is shared: several guilds may reference the same player,
// and removing a membership never removes the record.
type GroupMembership struct {
	ID           int64
	GuildID      string
	MembershipID string
	DisplayLabel string // name#code
	CreatedAt    time.Time
}

// GuildSettings stores per-server leaderboard configuration
type GuildSettings struct {
	GuildID              string
	LeaderboardChannelID string
	CreatedAt            time.Time
}
