package leaderboard

import (
	"testing"
	"time"
)

func TestIsStale(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		updatedAt time.Time
		threshold time.Duration
		want      bool
	}{
		{
			name:      "fresh record",
			updatedAt: now.Add(-5 * time.Minute),
			threshold: DefaultStaleness,
			want:      false,
		},
		{
			name:      "exactly at threshold",
			updatedAt: now.Add(-15 * time.Minute),
			threshold: DefaultStaleness,
			want:      true,
		},
		{
			name:      "one nanosecond before threshold",
			updatedAt: now.Add(-15*time.Minute + time.Nanosecond),
			threshold: DefaultStaleness,
			want:      false,
		},
		{
			name:      "well past threshold",
			updatedAt: now.Add(-24 * time.Hour),
			threshold: DefaultStaleness,
			want:      true,
		},
		{
			name:      "zero value timestamp",
			updatedAt: time.Time{},
			threshold: DefaultStaleness,
			want:      true,
		},
		{
			name:      "future timestamp is never stale",
			updatedAt: now.Add(time.Hour),
			threshold: DefaultStaleness,
			want:      false,
		},
		{
			name:      "zero threshold marks everything stale",
			updatedAt: now,
			threshold: 0,
			want:      true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsStale(tt.updatedAt, now, tt.threshold); got != tt.want {
				t.Fatalf("IsStale(%v, %v, %v) = %v, want %v", tt.updatedAt, now, tt.threshold, got, tt.want)
			}
		})
	}
}

func TestIsStaleMatchesDefinition(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	thresholds := []time.Duration{0, time.Second, time.Minute, 15 * time.Minute, time.Hour}
	offsets := []time.Duration{0, time.Second, 14 * time.Minute, 15 * time.Minute, 16 * time.Minute, 48 * time.Hour}

	for _, threshold := range thresholds {
		for _, offset := range offsets {
			updatedAt := now.Add(-offset)
			want := now.Sub(updatedAt) >= threshold
			if got := IsStale(updatedAt, now, threshold); got != want {
				t.Fatalf("IsStale(now-%v, now, %v) = %v, want %v", offset, threshold, got, want)
			}
		}
	}
}
