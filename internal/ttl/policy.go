// Package ttl is the TTL Policy (C6): it derives a freshness bucket from a
// Tournament's currentMatches, and nothing else — a future contributor
// widening that scope is making a contract change, not an implementation
// tweak (see spec DESIGN NOTES).
package ttl

import (
	"time"

	"github.com/Borislavv/bracket-bff/internal/domain"
)

const (
	InProgressTTL     = 15 * time.Second
	RecentlyDoneTTL   = 120 * time.Second
	PendingTTL        = 600 * time.Second
	IdleTTL           = 1800 * time.Second
	recentCompletedWindow = 300 * time.Second
)

// Calculate evaluates the §4.4 table, first match wins, and returns the TTL
// plus the Counts/booleans that justify it for client display.
func Calculate(t *domain.Tournament, now time.Time) (time.Duration, domain.Counts, bool, bool) {
	var counts domain.Counts
	hasInProgress := false
	hasRecentlyCompleted := false
	hasPending := false

	for _, ev := range t.Events {
		for _, m := range ev.CurrentMatches {
			switch m.Status {
			case domain.MatchInProgress:
				counts.Ongoing++
				hasInProgress = true
			case domain.MatchCompleted:
				if m.CompletedAt != nil && now.Sub(time.Unix(*m.CompletedAt, 0)) < recentCompletedWindow {
					counts.RecentlyCompleted++
					hasRecentlyCompleted = true
				} else {
					counts.OldCompleted++
				}
			case domain.MatchPending:
				counts.Pending++
				hasPending = true
			}
		}
	}

	hasOngoing := hasInProgress
	hasRecent := hasRecentlyCompleted

	switch {
	case hasInProgress:
		return InProgressTTL, counts, hasOngoing, hasRecent
	case hasRecentlyCompleted:
		return RecentlyDoneTTL, counts, hasOngoing, hasRecent
	case hasPending:
		return PendingTTL, counts, hasOngoing, hasRecent
	default:
		return IdleTTL, counts, hasOngoing, hasRecent
	}
}
