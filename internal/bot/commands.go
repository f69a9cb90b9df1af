package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sbowler1/sweet-stats/internal/bungie"
	"github.com/sbowler1/sweet-stats/internal/leaderboard"
	"github.com/sbowler1/sweet-stats/internal/storage"
)

// codePattern matches the 4-digit Bungie name discriminator
var codePattern = regexp.MustCompile(`^[0-9]{4}$`)

// Slash command definitions
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "setup",
			Description: "Set up the leaderboard for this server",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "The channel to post the leaderboard in (created if omitted)",
					Required:    false,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:        "add",
			Description: "Add a Guardian to the leaderboard",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "The Bungie name before the # (e.g., Saint-14)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "code",
					Description: "The 4-digit code after the # (e.g., 1234)",
					Required:    true,
				},
			},
		},
		{
			Name:        "remove",
			Description: "Remove a Guardian from the leaderboard",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "The Bungie name before the #",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "code",
					Description: "The 4-digit code after the #",
					Required:    true,
				},
			},
		},
		{
			Name:        "stats",
			Description: "Regenerate the leaderboard now",
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	commandDefinitions := b.getCommandDefinitions()
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))

	for _, cmd := range commandDefinitions {
		registered, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registeredCommands = append(registeredCommands, registered)
		slog.Debug("Registered command", "name", cmd.Name)
	}

	b.commands = registeredCommands
	slog.Info("Slash commands registered", "count", len(registeredCommands))
	return nil
}

// handleSetup handles the /setup command
func (b *Bot) handleSetup(s *discordgo.Session, i *discordgo.InteractionCreate) {
	settings, err := b.repo.GetGuildSettings(i.GuildID)
	if err != nil {
		slog.Error("Failed to read guild settings", "error", err)
		respondWithMessage(s, i, "Failed to check server configuration. Please try again.")
		return
	}
	if settings != nil {
		respondWithMessage(s, i, fmt.Sprintf("The leaderboard has already been set up in <#%s>.", settings.LeaderboardChannelID))
		return
	}

	var channelID string
	if options := i.ApplicationCommandData().Options; len(options) > 0 {
		channelID = options[0].ChannelValue(s).ID
	} else {
		channel, err := s.GuildChannelCreate(i.GuildID, "leaderboard", discordgo.ChannelTypeGuildText)
		if err != nil {
			slog.Error("Failed to create leaderboard channel", "error", err)
			respondWithMessage(s, i, "Failed to create a leaderboard channel. Pass one explicitly or grant the Manage Channels permission.")
			return
		}
		channelID = channel.ID
	}

	if err := b.repo.UpsertGuildSettings(&storage.GuildSettings{
		GuildID:              i.GuildID,
		LeaderboardChannelID: channelID,
	}); err != nil {
		slog.Error("Failed to save guild settings", "error", err)
		respondWithMessage(s, i, "Failed to save server configuration. Please try again.")
		return
	}

	respondWithMessage(s, i, fmt.Sprintf(
		"This server has been successfully set up! Use `/add` to start adding Guardians to the leaderboard in <#%s>.\n"+
			"You can also use `/remove` to remove players, and `/stats` to regenerate the leaderboard.", channelID))
}

// handleAdd handles the /add command
func (b *Bot) handleAdd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	name := strings.TrimSpace(options[0].StringValue())
	code := strings.TrimSpace(options[1].StringValue())

	if name == "" {
		respondWithMessage(s, i, "Please enter a player name.")
		return
	}
	if !codePattern.MatchString(code) {
		respondWithMessage(s, i, fmt.Sprintf("Please enter a valid 4-digit code. You entered `%s`.", code))
		return
	}

	// Respond immediately to avoid timeout
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	record, err := b.lookupPlayer(ctx, name, code)
	if err != nil {
		b.editResponse(s, i, addFailureMessage(name, code, err))
		return
	}

	if err := b.repo.UpsertPlayer(record); err != nil {
		slog.Error("Failed to save player record", "error", err)
		b.editResponse(s, i, "Failed to save the player. Please try again.")
		return
	}

	membership := &storage.GroupMembership{
		GuildID:      i.GuildID,
		MembershipID: record.MembershipID,
		DisplayLabel: record.DisplayLabel,
	}
	if err := b.repo.CreateMembership(membership); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			b.editResponse(s, i, fmt.Sprintf("Player `%s` is already on this server's leaderboard.", record.DisplayLabel))
			return
		}
		slog.Error("Failed to create membership", "error", err)
		b.editResponse(s, i, "Player saved but could not be added to this server's leaderboard.")
		return
	}

	content := fmt.Sprintf("Added `%s` to the leaderboard.", record.DisplayLabel)
	preview, err := b.renderer.Render(ctx, record)
	if err != nil {
		slog.Warn("Failed to render preview card", "player", record.DisplayLabel, "error", err)
		b.editResponse(s, i, content)
		return
	}

	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
		Files: []*discordgo.File{{
			Name:        "preview.png",
			ContentType: "image/png",
			Reader:      bytes.NewReader(preview),
		}},
	})
}

// lookupPlayer resolves a Bungie name and builds a fresh record for it
func (b *Bot) lookupPlayer(ctx context.Context, name, code string) (*leaderboard.PlayerRecord, error) {
	membership, err := b.fetcher.ResolveIdentity(ctx, name, code)
	if err != nil {
		return nil, err
	}

	defs, err := b.fetcher.FetchDefinitions(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := b.fetcher.FetchProfile(ctx, membership.MembershipType, membership.MembershipID)
	if err != nil {
		return nil, err
	}

	stats, err := b.fetcher.FetchStats(ctx, membership.MembershipType, membership.MembershipID)
	if err != nil {
		return nil, err
	}

	return leaderboard.Normalize(leaderboard.RawPlayerData{
		MembershipID:   membership.MembershipID,
		MembershipType: membership.MembershipType,
		Identity:       leaderboard.PlayerIdentity{DisplayName: name, Code: code},
		Profile:        profile,
		Stats:          stats,
		Definitions:    defs,
	}, time.Now())
}

// addFailureMessage maps lookup errors to user-facing feedback
func addFailureMessage(name, code string, err error) string {
	label := name + "#" + code
	switch {
	case errors.Is(err, bungie.ErrIdentityNotFound):
		return fmt.Sprintf("Could not find player `%s`. Please check the name and code and try again.", label)
	case errors.Is(err, leaderboard.ErrIncompleteProfile):
		return fmt.Sprintf("User (`%s`) does not have public progression on their account.", label)
	default:
		slog.Error("Failed to look up player", "player", label, "error", err)
		return fmt.Sprintf("Failed to look up `%s`. Please try again later.", label)
	}
}

// handleRemove handles the /remove command
func (b *Bot) handleRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	name := strings.TrimSpace(options[0].StringValue())
	code := strings.TrimSpace(options[1].StringValue())
	label := name + "#" + code

	if !codePattern.MatchString(code) {
		respondWithMessage(s, i, fmt.Sprintf("Please enter a valid 4-digit code. You entered `%s`.", code))
		return
	}

	membership, err := b.repo.FindMembershipByLabel(i.GuildID, label)
	if err != nil {
		slog.Error("Failed to look up membership", "error", err)
		respondWithMessage(s, i, "Failed to look up the player. Please try again.")
		return
	}
	if membership == nil {
		respondWithMessage(s, i, fmt.Sprintf("Could not find player `%s` on this server's leaderboard.", label))
		return
	}

	// Only the guild association goes away; the cached record stays for
	// any other server still tracking this player.
	if _, err := b.repo.DeleteMembership(i.GuildID, membership.MembershipID); err != nil {
		slog.Error("Failed to delete membership", "error", err)
		respondWithMessage(s, i, "Failed to remove the player. Please try again.")
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("Removed player `%s` from the leaderboard.", label))
}

// handleStats handles the /stats command
func (b *Bot) handleStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	settings, err := b.repo.GetGuildSettings(i.GuildID)
	if err != nil {
		slog.Error("Failed to read guild settings", "error", err)
		respondWithMessage(s, i, "Failed to check server configuration. Please try again.")
		return
	}
	if settings == nil {
		respondWithMessage(s, i, "Bot has not been configured for this server. Run `/setup` first.")
		return
	}

	// Respond immediately to avoid timeout
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sink := newChannelSink(s, settings.LeaderboardChannelID)
	announce := fmt.Sprintf("Last updated manually by <@%s>.", i.Member.User.ID)

	report, err := b.pipeline.Run(ctx, i.GuildID, sink, announce)
	if err != nil {
		slog.Error("Leaderboard run failed", "guildID", i.GuildID, "error", err)
		b.editResponse(s, i, "Failed to generate the leaderboard. Please try again later.")
		return
	}

	summary := fmt.Sprintf("Leaderboard generated in <#%s>: %d players ranked, %d cards posted.",
		settings.LeaderboardChannelID, report.Ranked, report.Rendered)
	if failed := len(report.Refresh.Failed); failed > 0 {
		summary += fmt.Sprintf(" %d player(s) could not be refreshed and show cached stats.", failed)
	}
	b.editResponse(s, i, summary)
}

// Helper functions

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
}
