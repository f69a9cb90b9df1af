package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/iter"
)

// Pipeline composes refresh, ranking, and rendering into one leaderboard
// run for a group.
type Pipeline struct {
	store        Store
	orchestrator *Orchestrator
	renderer     Renderer
	threshold    time.Duration
	topN         int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline creates a Pipeline. threshold is the staleness cutoff for
// cached records and topN the number of cards rendered per run.
func NewPipeline(fetcher Fetcher, store Store, renderer Renderer, threshold time.Duration, topN int) *Pipeline {
	return &Pipeline{
		store:        store,
		orchestrator: NewOrchestrator(fetcher, store),
		renderer:     renderer,
		threshold:    threshold,
		topN:         topN,
		locks:        make(map[string]*sync.Mutex),
	}
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	Refresh  *RefreshReport
	Ranked   int
	Rendered int
	Elapsed  time.Duration
}

// Run regenerates the leaderboard for one group: refresh stale records,
// re-read the full set, rank, render the top N, and stream the results to
// the sink. Two runs never execute concurrently for the same group; a
// second caller blocks until the first finishes.
//
// announce is the first text item sent, typically attributing the
// trigger. An empty group is a valid terminal state, reported as text.
func (p *Pipeline) Run(ctx context.Context, guildID string, sink Sink, announce string) (*RunReport, error) {
	lock := p.groupLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	entries, err := p.store.ListGroupEntries(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}

	if len(entries) == 0 {
		if _, err := sink.SendText(ctx, "No players found in the database for this server."); err != nil {
			return nil, fmt.Errorf("failed to send status: %w", err)
		}
		return &RunReport{Refresh: &RefreshReport{}, Elapsed: time.Since(start)}, nil
	}

	if err := sink.Clear(ctx); err != nil {
		slog.Warn("Failed to clear leaderboard channel", "guildID", guildID, "error", err)
	}

	statusRef, err := sink.SendText(ctx, announce)
	if err != nil {
		return nil, fmt.Errorf("failed to send announcement: %w", err)
	}

	now := time.Now()
	refresh, err := p.orchestrator.RefreshStale(ctx, guildID, now, p.threshold)
	if err != nil {
		return nil, err
	}
	if len(refresh.Failed) > 0 {
		slog.Warn("Refresh completed with failures",
			"guildID", guildID,
			"succeeded", len(refresh.Succeeded),
			"failed", len(refresh.Failed))
	}

	// Re-read so failed refreshes fall back to their cached records.
	entries, err = p.store.ListGroupEntries(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read group members: %w", err)
	}

	records := make([]*PlayerRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.Record == nil {
			// Never successfully fetched; nothing to rank for them yet.
			slog.Warn("Skipping member with no cached record", "player", entry.DisplayLabel)
			continue
		}
		records = append(records, entry.Record)
	}

	ranked := Rank(records)
	top := TopN(ranked, p.topN)

	// Rendering is pure and CPU-bound; render the cards in parallel and
	// deliver them in rank order.
	type renderResult struct {
		png []byte
		err error
	}
	results := iter.Map(top, func(rec **PlayerRecord) renderResult {
		png, err := p.renderer.Render(ctx, *rec)
		return renderResult{png: png, err: err}
	})

	rendered := 0
	for i, res := range results {
		if res.err != nil {
			slog.Error("Failed to render card", "player", top[i].DisplayLabel, "error", res.err)
			continue
		}
		if err := sink.SendImage(ctx, cardFilename(top[i].DisplayLabel), res.png); err != nil {
			slog.Error("Failed to deliver card", "player", top[i].DisplayLabel, "error", err)
			continue
		}
		rendered++
	}

	elapsed := time.Since(start)
	if err := sink.EditText(ctx, statusRef, statusMessage(announce, elapsed, top, p.threshold)); err != nil {
		slog.Warn("Failed to update status message", "guildID", guildID, "error", err)
	}

	slog.Info("Leaderboard generated",
		"guildID", guildID,
		"players", len(records),
		"rendered", rendered,
		"elapsed", elapsed)

	return &RunReport{
		Refresh:  refresh,
		Ranked:   len(records),
		Rendered: rendered,
		Elapsed:  elapsed,
	}, nil
}

// groupLock returns the mutex guarding runs for one group.
func (p *Pipeline) groupLock(guildID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[guildID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[guildID] = lock
	}
	return lock
}

// statusMessage appends generation timing and data freshness to the
// announcement.
func statusMessage(announce string, elapsed time.Duration, top []*PlayerRecord, threshold time.Duration) string {
	var sb strings.Builder
	sb.WriteString(announce)
	fmt.Fprintf(&sb, "\nLeaderboard generated in %.1fs.", elapsed.Seconds())

	if len(top) > 0 {
		age := time.Since(top[0].UpdatedAt)
		ageMinutes := int(age.Minutes())
		if ageMinutes < 0 {
			ageMinutes = 0
		}
		untilNext := int((threshold - age).Minutes())
		if untilNext < 0 {
			untilNext = 0
		}
		fmt.Fprintf(&sb, "\nData last updated %d minutes ago.", ageMinutes)
		fmt.Fprintf(&sb, "\nIf you do not see your most recent stats, please wait %d minutes and try again.", untilNext)
	}

	return sb.String()
}

// cardFilename derives a safe attachment name from a player label.
func cardFilename(displayLabel string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, displayLabel)
	return safe + ".png"
}
