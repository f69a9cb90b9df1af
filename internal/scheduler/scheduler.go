package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sbowler1/sweet-stats/internal/leaderboard"
	"github.com/sbowler1/sweet-stats/internal/storage"
)

// SinkFactory builds a delivery sink for a guild's leaderboard channel.
type SinkFactory func(channelID string) leaderboard.Sink

// Scheduler periodically regenerates the leaderboard for every configured
// guild.
type Scheduler struct {
	repo     *storage.Repository
	pipeline *leaderboard.Pipeline
	sinks    SinkFactory
	interval time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new Scheduler
func New(repo *storage.Repository, pipeline *leaderboard.Pipeline, sinks SinkFactory, intervalMinutes int) *Scheduler {
	return &Scheduler{
		repo:     repo,
		pipeline: pipeline,
		sinks:    sinks,
		interval: time.Duration(intervalMinutes) * time.Minute,
		stopChan: make(chan struct{}),
	}
}

// Start begins the refresh loop
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Starting leaderboard scheduler", "interval", s.interval)

	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial run
	s.refreshAll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped (context cancelled)")
			return
		case <-s.stopChan:
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

// Stop signals the scheduler to stop
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// refreshAll regenerates the leaderboard for every configured guild
func (s *Scheduler) refreshAll(ctx context.Context) {
	guilds, err := s.repo.ListGuildSettings()
	if err != nil {
		slog.Error("Failed to list configured guilds", "error", err)
		return
	}

	if len(guilds) == 0 {
		slog.Debug("No guilds configured for scheduled refresh")
		return
	}

	slog.Debug("Refreshing leaderboards", "guilds", len(guilds))

	for _, guild := range guilds {
		select {
		case <-ctx.Done():
			return
		default:
			s.refreshGuild(ctx, guild)
		}
	}
}

// refreshGuild regenerates one guild's leaderboard
func (s *Scheduler) refreshGuild(ctx context.Context, guild *storage.GuildSettings) {
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	sink := s.sinks(guild.LeaderboardChannelID)
	report, err := s.pipeline.Run(runCtx, guild.GuildID, sink, "Generating leaderboard as scheduled. Please wait...")
	if err != nil {
		slog.Error("Scheduled leaderboard run failed", "guildID", guild.GuildID, "error", err)
		return
	}

	slog.Info("Scheduled leaderboard run finished",
		"guildID", guild.GuildID,
		"ranked", report.Ranked,
		"rendered", report.Rendered,
		"refreshFailed", len(report.Refresh.Failed),
		"elapsed", report.Elapsed)
}
