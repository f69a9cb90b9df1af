package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sbowler1/sweet-stats/internal/bungie"
)

// Orchestrator refreshes a group's stale records against the Bungie API.
type Orchestrator struct {
	fetcher Fetcher
	store   Store
}

// NewOrchestrator creates an Orchestrator over a fetcher and store.
func NewOrchestrator(fetcher Fetcher, store Store) *Orchestrator {
	return &Orchestrator{fetcher: fetcher, store: store}
}

// RefreshFailure records one player whose refresh did not complete.
type RefreshFailure struct {
	MembershipID string
	Err          error
}

// RefreshReport summarizes a batch refresh. The batch always completes;
// failures are partial, never fatal.
type RefreshReport struct {
	Succeeded []string
	Failed    []RefreshFailure
}

// RefreshStale re-fetches and persists every record in the group that has
// reached the staleness threshold, one player at a time. The Bungie API
// rate-limits per key and this already runs on a background schedule, so
// the loop is strictly sequential; failures for one player are captured
// in the report and the loop continues.
func (o *Orchestrator) RefreshStale(ctx context.Context, guildID string, now time.Time, threshold time.Duration) (*RefreshReport, error) {
	entries, err := o.store.ListGroupEntries(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}

	report := &RefreshReport{}

	// Season and record tables are shared by every player in the batch;
	// fetch them once, and only if some record actually needs a refresh.
	var defs *bungie.Definitions
	ensureDefs := func() (*bungie.Definitions, error) {
		if defs != nil {
			return defs, nil
		}
		d, err := o.fetcher.FetchDefinitions(ctx)
		if err != nil {
			return nil, err
		}
		defs = d
		return defs, nil
	}

	for _, entry := range entries {
		if entry.Record != nil && !IsStale(entry.Record.UpdatedAt, now, threshold) {
			continue
		}

		d, err := ensureDefs()
		if err != nil {
			report.Failed = append(report.Failed, RefreshFailure{MembershipID: entry.MembershipID, Err: err})
			slog.Error("Failed to fetch definitions", "membershipID", entry.MembershipID, "error", err)
			continue
		}

		if err := o.refreshOne(ctx, entry, d, now); err != nil {
			report.Failed = append(report.Failed, RefreshFailure{MembershipID: entry.MembershipID, Err: err})
			slog.Error("Failed to refresh player", "player", entry.DisplayLabel, "error", err)
			continue
		}

		report.Succeeded = append(report.Succeeded, entry.MembershipID)
		slog.Debug("Refreshed player", "player", entry.DisplayLabel)
	}

	return report, nil
}

// refreshOne runs resolve → fetch → normalize → persist for one group
// member.
func (o *Orchestrator) refreshOne(ctx context.Context, entry *GroupEntry, defs *bungie.Definitions, now time.Time) error {
	identity, err := identityFromLabel(entry.DisplayLabel)
	if err != nil {
		return err
	}

	membershipID := entry.MembershipID
	membershipType := 0
	if entry.Record != nil {
		membershipType = entry.Record.MembershipType
	}

	// Identity is immutable once resolved; only brand-new members without
	// a cached record need the search call.
	if membershipType == 0 {
		membership, err := o.fetcher.ResolveIdentity(ctx, identity.DisplayName, identity.Code)
		if err != nil {
			return err
		}
		membershipID = membership.MembershipID
		membershipType = membership.MembershipType
	}

	profile, err := o.fetcher.FetchProfile(ctx, membershipType, membershipID)
	if err != nil {
		return err
	}

	stats, err := o.fetcher.FetchStats(ctx, membershipType, membershipID)
	if err != nil {
		return err
	}

	record, err := Normalize(RawPlayerData{
		MembershipID:   membershipID,
		MembershipType: membershipType,
		Identity:       identity,
		Profile:        profile,
		Stats:          stats,
		Definitions:    defs,
	}, now)
	if err != nil {
		return err
	}

	if err := o.store.UpsertPlayer(record); err != nil {
		return fmt.Errorf("failed to persist record: %w", err)
	}

	return nil
}

// identityFromLabel splits a stored "name#code" label back into its
// parts.
func identityFromLabel(label string) (PlayerIdentity, error) {
	name, code, ok := strings.Cut(label, "#")
	if !ok || name == "" || code == "" {
		return PlayerIdentity{}, &NormalizationError{Field: "displayLabel", Detail: fmt.Sprintf("not a name#code label: %q", label)}
	}
	return PlayerIdentity{DisplayName: name, Code: code}, nil
}
