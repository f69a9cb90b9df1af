package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbowler1/sweet-stats/internal/bungie"
)

type fakeFetcher struct {
	memberships map[string]*bungie.Membership // keyed by name#code
	profiles    map[string]*bungie.Profile    // keyed by membership ID
	stats       map[string]*bungie.AccountStats
	defs        *bungie.Definitions
	failProfile map[string]error

	resolveCalls int
	defsCalls    int
}

func (f *fakeFetcher) ResolveIdentity(_ context.Context, displayName, code string) (*bungie.Membership, error) {
	f.resolveCalls++
	m, ok := f.memberships[displayName+"#"+code]
	if !ok {
		return nil, &bungie.FetchError{Stage: "identity", Err: bungie.ErrIdentityNotFound}
	}
	return m, nil
}

func (f *fakeFetcher) FetchProfile(_ context.Context, _ int, membershipID string) (*bungie.Profile, error) {
	if err := f.failProfile[membershipID]; err != nil {
		return nil, err
	}
	p, ok := f.profiles[membershipID]
	if !ok {
		return nil, &bungie.FetchError{Stage: "profile", Err: errors.New("no fixture for " + membershipID)}
	}
	return p, nil
}

func (f *fakeFetcher) FetchStats(_ context.Context, _ int, membershipID string) (*bungie.AccountStats, error) {
	s, ok := f.stats[membershipID]
	if !ok {
		return nil, &bungie.FetchError{Stage: "stats", Err: errors.New("no fixture for " + membershipID)}
	}
	return s, nil
}

func (f *fakeFetcher) FetchDefinitions(_ context.Context) (*bungie.Definitions, error) {
	f.defsCalls++
	if f.defs == nil {
		return nil, &bungie.FetchError{Stage: "definitions", Err: errors.New("no fixture")}
	}
	return f.defs, nil
}

type fakeStore struct {
	memberships []*GroupEntry // Record field unused; join happens in ListGroupEntries
	players     map[string]*PlayerRecord
	upserted    []string
}

func (s *fakeStore) ListGroupEntries(guildID string) ([]*GroupEntry, error) {
	var out []*GroupEntry
	for _, m := range s.memberships {
		if m.GuildID != guildID {
			continue
		}
		out = append(out, &GroupEntry{
			GuildID:      m.GuildID,
			MembershipID: m.MembershipID,
			DisplayLabel: m.DisplayLabel,
			Record:       s.players[m.MembershipID],
		})
	}
	return out, nil
}

func (s *fakeStore) GetPlayer(membershipID string) (*PlayerRecord, error) {
	return s.players[membershipID], nil
}

func (s *fakeStore) UpsertPlayer(rec *PlayerRecord) error {
	if s.players == nil {
		s.players = make(map[string]*PlayerRecord)
	}
	s.players[rec.MembershipID] = rec
	s.upserted = append(s.upserted, rec.MembershipID)
	return nil
}

func membership(guildID, membershipID, label string) *GroupEntry {
	return &GroupEntry{GuildID: guildID, MembershipID: membershipID, DisplayLabel: label}
}

func cachedRecord(membershipID, label string, power int, updatedAt time.Time) *PlayerRecord {
	return &PlayerRecord{
		MembershipID:   membershipID,
		MembershipType: 3,
		DisplayLabel:   label,
		PowerLevel:     power,
		UpdatedAt:      updatedAt,
	}
}

// fetcherFor wires profile, stats, and definition fixtures for a set of
// membership IDs so their refresh succeeds end to end.
func fetcherFor(ids ...string) *fakeFetcher {
	f := &fakeFetcher{
		memberships: make(map[string]*bungie.Membership),
		profiles:    make(map[string]*bungie.Profile),
		stats:       make(map[string]*bungie.AccountStats),
		defs:        testDefinitions(),
		failProfile: make(map[string]error),
	}
	for _, id := range ids {
		f.profiles[id] = testProfile(testCharacter("char-"+id, 1800))
		f.stats[id] = testStats()
	}
	return f
}

func TestRefreshStaleSkipsFreshRecords(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-5 * time.Minute)

	store := &fakeStore{
		memberships: []*GroupEntry{
			membership("g1", "p1", "One#0001"),
			membership("g1", "p2", "Two#0002"),
		},
		players: map[string]*PlayerRecord{
			"p1": cachedRecord("p1", "One#0001", 1800, fresh),
			"p2": cachedRecord("p2", "Two#0002", 1790, fresh),
		},
	}
	fetcher := fetcherFor()

	report, err := NewOrchestrator(fetcher, store).RefreshStale(context.Background(), "g1", now, DefaultStaleness)
	require.NoError(t, err)

	assert.Empty(t, report.Succeeded)
	assert.Empty(t, report.Failed)
	assert.Empty(t, store.upserted)
	assert.Zero(t, fetcher.defsCalls, "definitions should not be fetched when nothing is stale")
}

func TestRefreshStalePartialFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-5 * time.Minute)
	stale := now.Add(-30 * time.Minute)

	// Twelve members: nine fresh, three stale, one of the stale ones
	// failing its profile fetch.
	store := &fakeStore{players: make(map[string]*PlayerRecord)}
	for _, m := range []struct {
		id        string
		label     string
		updatedAt time.Time
	}{
		{"p01", "A#0001", fresh}, {"p02", "B#0002", fresh}, {"p03", "C#0003", fresh},
		{"p04", "D#0004", fresh}, {"p05", "E#0005", fresh}, {"p06", "F#0006", fresh},
		{"p07", "G#0007", fresh}, {"p08", "H#0008", fresh}, {"p09", "I#0009", fresh},
		{"p10", "J#0010", stale}, {"p11", "K#0011", stale}, {"p12", "L#0012", stale},
	} {
		store.memberships = append(store.memberships, membership("g1", m.id, m.label))
		store.players[m.id] = cachedRecord(m.id, m.label, 1800, m.updatedAt)
	}

	fetcher := fetcherFor("p10", "p11")
	boom := &bungie.FetchError{Stage: "profile", Err: errors.New("503 from upstream")}
	fetcher.failProfile["p12"] = boom

	report, err := NewOrchestrator(fetcher, store).RefreshStale(context.Background(), "g1", now, DefaultStaleness)
	require.NoError(t, err, "partial failures must not fail the batch")

	assert.Equal(t, []string{"p10", "p11"}, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "p12", report.Failed[0].MembershipID)
	assert.ErrorIs(t, report.Failed[0].Err, boom)

	// Refreshed records carry the batch timestamp; the failed one keeps
	// its cached state so it still ranks.
	assert.Equal(t, now, store.players["p10"].UpdatedAt)
	assert.Equal(t, now, store.players["p11"].UpdatedAt)
	assert.Equal(t, stale, store.players["p12"].UpdatedAt)

	entries, err := store.ListGroupEntries("g1")
	require.NoError(t, err)
	assert.Len(t, Rank(recordsOf(entries)), 12)
}

func TestRefreshStaleResolvesOnlyUnresolvedMembers(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stale := now.Add(-30 * time.Minute)

	store := &fakeStore{
		memberships: []*GroupEntry{
			membership("g1", "p1", "Cached#0001"),
			membership("g1", "p2", "Brand-New#0002"),
		},
		players: map[string]*PlayerRecord{
			"p1": cachedRecord("p1", "Cached#0001", 1800, stale),
		},
	}

	fetcher := fetcherFor("p1", "p2")
	fetcher.memberships["Brand-New#0002"] = &bungie.Membership{MembershipID: "p2", MembershipType: 3}

	report, err := NewOrchestrator(fetcher, store).RefreshStale(context.Background(), "g1", now, DefaultStaleness)
	require.NoError(t, err)

	assert.Equal(t, []string{"p1", "p2"}, report.Succeeded)
	assert.Equal(t, 1, fetcher.resolveCalls, "cached identities must not be re-resolved")
	assert.Equal(t, 3, store.players["p2"].MembershipType)
}

func TestRefreshStaleFetchesDefinitionsOnce(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stale := now.Add(-time.Hour)

	store := &fakeStore{
		memberships: []*GroupEntry{
			membership("g1", "p1", "One#0001"),
			membership("g1", "p2", "Two#0002"),
			membership("g1", "p3", "Three#0003"),
		},
		players: map[string]*PlayerRecord{
			"p1": cachedRecord("p1", "One#0001", 1800, stale),
			"p2": cachedRecord("p2", "Two#0002", 1790, stale),
			"p3": cachedRecord("p3", "Three#0003", 1780, stale),
		},
	}
	fetcher := fetcherFor("p1", "p2", "p3")

	report, err := NewOrchestrator(fetcher, store).RefreshStale(context.Background(), "g1", now, DefaultStaleness)
	require.NoError(t, err)

	assert.Len(t, report.Succeeded, 3)
	assert.Equal(t, 1, fetcher.defsCalls)
}

func TestRefreshStaleMalformedLabel(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	store := &fakeStore{
		memberships: []*GroupEntry{membership("g1", "p1", "no-code-here")},
	}

	report, err := NewOrchestrator(fetcherFor(), store).RefreshStale(context.Background(), "g1", now, DefaultStaleness)
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	var normErr *NormalizationError
	assert.ErrorAs(t, report.Failed[0].Err, &normErr)
}

func recordsOf(entries []*GroupEntry) []*PlayerRecord {
	out := make([]*PlayerRecord, 0, len(entries))
	for _, e := range entries {
		if e.Record != nil {
			out = append(out, e.Record)
		}
	}
	return out
}
