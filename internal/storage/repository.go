package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/sbowler1/sweet-stats/internal/leaderboard"
)

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			membership_id VARCHAR(30) PRIMARY KEY,
			membership_type INTEGER NOT NULL,
			emblem_url VARCHAR(200) NOT NULL DEFAULT '',
			display_label VARCHAR(50) NOT NULL,
			title_label VARCHAR(50) NOT NULL,
			power_level INTEGER NOT NULL,
			artifact_bonus INTEGER NOT NULL,
			race_class VARCHAR(30) NOT NULL,
			season_rank INTEGER NOT NULL,
			minutes_played INTEGER NOT NULL,
			kda_pvp VARCHAR(10) NOT NULL,
			kda_pve VARCHAR(10) NOT NULL,
			last_played_at TIMESTAMP NOT NULL,
			character_id VARCHAR(30) NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS group_memberships (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id VARCHAR(20) NOT NULL,
			membership_id VARCHAR(30) NOT NULL,
			display_label VARCHAR(50) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(guild_id, membership_id)
		)`,
		`CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id VARCHAR(20) PRIMARY KEY,
			leaderboard_channel_id VARCHAR(20) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_guild ON group_memberships(guild_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_player ON group_memberships(membership_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Player record operations

// GetPlayer returns the cached record for a membership, or nil when the
// player has never been fetched.
func (r *Repository) GetPlayer(membershipID string) (*leaderboard.PlayerRecord, error) {
	rec := &leaderboard.PlayerRecord{}
	err := r.db.QueryRow(
		`SELECT membership_id, membership_type, emblem_url, display_label, title_label,
		        power_level, artifact_bonus, race_class, season_rank, minutes_played,
		        kda_pvp, kda_pve, last_played_at, character_id, updated_at
		 FROM players WHERE membership_id = ?`,
		membershipID,
	).Scan(
		&rec.MembershipID, &rec.MembershipType, &rec.EmblemURL, &rec.DisplayLabel, &rec.TitleLabel,
		&rec.PowerLevel, &rec.ArtifactBonus, &rec.RaceClassLabel, &rec.SeasonRank, &rec.MinutesPlayed,
		&rec.PvPKDA, &rec.PvEKDA, &rec.LastPlayedAt, &rec.CharacterID, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpsertPlayer inserts or replaces a player record. updated_at never
// moves backwards: a write carrying an older timestamp than the stored
// row is dropped.
func (r *Repository) UpsertPlayer(rec *leaderboard.PlayerRecord) error {
	_, err := r.db.Exec(
		`INSERT INTO players (
			membership_id, membership_type, emblem_url, display_label, title_label,
			power_level, artifact_bonus, race_class, season_rank, minutes_played,
			kda_pvp, kda_pve, last_played_at, character_id, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(membership_id) DO UPDATE SET
			membership_type = excluded.membership_type,
			emblem_url = excluded.emblem_url,
			display_label = excluded.display_label,
			title_label = excluded.title_label,
			power_level = excluded.power_level,
			artifact_bonus = excluded.artifact_bonus,
			race_class = excluded.race_class,
			season_rank = excluded.season_rank,
			minutes_played = excluded.minutes_played,
			kda_pvp = excluded.kda_pvp,
			kda_pve = excluded.kda_pve,
			last_played_at = excluded.last_played_at,
			character_id = excluded.character_id,
			updated_at = excluded.updated_at
		 WHERE excluded.updated_at >= players.updated_at`,
		rec.MembershipID, rec.MembershipType, rec.EmblemURL, rec.DisplayLabel, rec.TitleLabel,
		rec.PowerLevel, rec.ArtifactBonus, rec.RaceClassLabel, rec.SeasonRank, rec.MinutesPlayed,
		rec.PvPKDA, rec.PvEKDA, rec.LastPlayedAt.UTC(), rec.CharacterID, rec.UpdatedAt.UTC(),
	)
	return err
}

// ListGroupEntries returns all memberships in a guild joined with their
// cached records. Members added but never successfully fetched carry a
// nil record.
func (r *Repository) ListGroupEntries(guildID string) ([]*leaderboard.GroupEntry, error) {
	rows, err := r.db.Query(
		`SELECT m.guild_id, m.membership_id, m.display_label,
		        p.membership_id, p.membership_type, p.emblem_url, p.display_label, p.title_label,
		        p.power_level, p.artifact_bonus, p.race_class, p.season_rank, p.minutes_played,
		        p.kda_pvp, p.kda_pve, p.last_played_at, p.character_id, p.updated_at
		 FROM group_memberships m
		 LEFT JOIN players p ON p.membership_id = m.membership_id
		 WHERE m.guild_id = ?
		 ORDER BY m.id`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*leaderboard.GroupEntry
	for rows.Next() {
		entry := &leaderboard.GroupEntry{}
		rec := &leaderboard.PlayerRecord{}
		var (
			recID          sql.NullString
			membershipType sql.NullInt64
			emblem         sql.NullString
			display        sql.NullString
			title          sql.NullString
			power          sql.NullInt64
			artifact       sql.NullInt64
			raceClass      sql.NullString
			seasonRank     sql.NullInt64
			minutes        sql.NullInt64
			pvp            sql.NullString
			pve            sql.NullString
			lastPlayed     sql.NullTime
			characterID    sql.NullString
			updatedAt      sql.NullTime
		)

		if err := rows.Scan(
			&entry.GuildID, &entry.MembershipID, &entry.DisplayLabel,
			&recID, &membershipType, &emblem, &display, &title,
			&power, &artifact, &raceClass, &seasonRank, &minutes,
			&pvp, &pve, &lastPlayed, &characterID, &updatedAt,
		); err != nil {
			return nil, err
		}

		if recID.Valid {
			rec.MembershipID = recID.String
			rec.MembershipType = int(membershipType.Int64)
			rec.EmblemURL = emblem.String
			rec.DisplayLabel = display.String
			rec.TitleLabel = title.String
			rec.PowerLevel = int(power.Int64)
			rec.ArtifactBonus = int(artifact.Int64)
			rec.RaceClassLabel = raceClass.String
			rec.SeasonRank = int(seasonRank.Int64)
			rec.MinutesPlayed = int(minutes.Int64)
			rec.PvPKDA = pvp.String
			rec.PvEKDA = pve.String
			rec.LastPlayedAt = lastPlayed.Time
			rec.CharacterID = characterID.String
			rec.UpdatedAt = updatedAt.Time
			entry.Record = rec
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Membership operations

// CreateMembership adds a player to a guild's leaderboard
func (r *Repository) CreateMembership(m *GroupMembership) error {
	result, err := r.db.Exec(
		`INSERT INTO group_memberships (guild_id, membership_id, display_label) VALUES (?, ?, ?)`,
		m.GuildID, m.MembershipID, m.DisplayLabel,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// DeleteMembership removes a player from a guild's leaderboard. The
// shared player record is left in place for other guilds. Returns false
// when no such membership existed.
func (r *Repository) DeleteMembership(guildID, membershipID string) (bool, error) {
	result, err := r.db.Exec(
		`DELETE FROM group_memberships WHERE guild_id = ? AND membership_id = ?`,
		guildID, membershipID,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FindMembershipByLabel looks a guild member up by their name#code label
func (r *Repository) FindMembershipByLabel(guildID, displayLabel string) (*GroupMembership, error) {
	m := &GroupMembership{}
	err := r.db.QueryRow(
		`SELECT id, guild_id, membership_id, display_label, created_at
		 FROM group_memberships WHERE guild_id = ? AND display_label = ?`,
		guildID, displayLabel,
	).Scan(&m.ID, &m.GuildID, &m.MembershipID, &m.DisplayLabel, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MembershipCount reports how many guilds still reference a player record
func (r *Repository) MembershipCount(membershipID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM group_memberships WHERE membership_id = ?`,
		membershipID,
	).Scan(&count)
	return count, err
}

// Guild settings operations

// UpsertGuildSettings creates or updates guild settings
func (r *Repository) UpsertGuildSettings(settings *GuildSettings) error {
	_, err := r.db.Exec(
		`INSERT INTO guild_settings (guild_id, leaderboard_channel_id) VALUES (?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET leaderboard_channel_id = excluded.leaderboard_channel_id`,
		settings.GuildID, settings.LeaderboardChannelID,
	)
	return err
}

// GetGuildSettings retrieves guild settings, or nil when the guild has
// not been set up.
func (r *Repository) GetGuildSettings(guildID string) (*GuildSettings, error) {
	settings := &GuildSettings{}
	err := r.db.QueryRow(
		`SELECT guild_id, leaderboard_channel_id, created_at FROM guild_settings WHERE guild_id = ?`,
		guildID,
	).Scan(&settings.GuildID, &settings.LeaderboardChannelID, &settings.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// ListGuildSettings returns the settings for every configured guild
func (r *Repository) ListGuildSettings() ([]*GuildSettings, error) {
	rows, err := r.db.Query(
		`SELECT guild_id, leaderboard_channel_id, created_at FROM guild_settings`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []*GuildSettings
	for rows.Next() {
		s := &GuildSettings{}
		if err := rows.Scan(&s.GuildID, &s.LeaderboardChannelID, &s.CreatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}

	return settings, rows.Err()
}
