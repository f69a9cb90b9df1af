package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sbowler1/sweet-stats/internal/bungie"
	"github.com/sbowler1/sweet-stats/internal/config"
	"github.com/sbowler1/sweet-stats/internal/leaderboard"
	"github.com/sbowler1/sweet-stats/internal/render"
	"github.com/sbowler1/sweet-stats/internal/scheduler"
	"github.com/sbowler1/sweet-stats/internal/storage"
)

// Bot represents the Discord bot instance
type Bot struct {
	config    *config.Config
	session   *discordgo.Session
	repo      *storage.Repository
	fetcher   *bungie.Client
	renderer  *render.CardRenderer
	pipeline  *leaderboard.Pipeline
	scheduler *scheduler.Scheduler
	commands  []*discordgo.ApplicationCommand
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	fetcher := bungie.NewClient(cfg.BungieAPIKey)
	renderer := render.New(cfg.AssetsPath, nil)
	pipeline := leaderboard.NewPipeline(
		fetcher,
		repo,
		renderer,
		time.Duration(cfg.StalenessMinutes)*time.Minute,
		cfg.TopN,
	)

	b := &Bot{
		config:   cfg,
		session:  session,
		repo:     repo,
		fetcher:  fetcher,
		renderer: renderer,
		pipeline: pipeline,
	}

	// Register command handlers
	b.registerHandlers()

	return b, nil
}

// Start opens the Discord connection and starts background tasks
func (b *Bot) Start(ctx context.Context) error {
	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	// Start the scheduled leaderboard refresh
	if b.config.RefreshIntervalMinutes > 0 {
		b.scheduler = scheduler.New(
			b.repo,
			b.pipeline,
			func(channelID string) leaderboard.Sink { return newChannelSink(b.session, channelID) },
			b.config.RefreshIntervalMinutes,
		)
		go b.scheduler.Start(ctx)
	}

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	// Stop the scheduler
	if b.scheduler != nil {
		b.scheduler.Stop()
	}

	// Close storage
	if b.repo != nil {
		b.repo.Close()
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	switch data.Name {
	case "setup":
		b.handleSetup(s, i)
	case "add":
		b.handleAdd(s, i)
	case "remove":
		b.handleRemove(s, i)
	case "stats":
		b.handleStats(s, i)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}
