package ttl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Borislavv/bracket-bff/internal/domain"
)

func matchTournament(matches ...domain.Match) *domain.Tournament {
	return &domain.Tournament{
		Events: []domain.Event{{CurrentMatches: matches}},
	}
}

func epoch(ago time.Duration, now time.Time) *int64 {
	v := now.Add(-ago).Unix()
	return &v
}

func TestCalculate_InProgressWins15s(t *testing.T) {
	now := time.Now()
	tr := matchTournament(
		domain.Match{Status: domain.MatchInProgress},
		domain.Match{Status: domain.MatchPending},
	)
	d, counts, ongoing, recent := Calculate(tr, now)
	require.Equal(t, InProgressTTL, d)
	require.Equal(t, 15*time.Second, d)
	require.Equal(t, 1, counts.Ongoing)
	require.True(t, ongoing)
	require.False(t, recent)
}

func TestCalculate_RecentlyCompleted120s(t *testing.T) {
	now := time.Now()
	tr := matchTournament(
		domain.Match{Status: domain.MatchCompleted, CompletedAt: epoch(10*time.Second, now)},
	)
	d, _, ongoing, recent := Calculate(tr, now)
	require.Equal(t, 120*time.Second, d)
	require.False(t, ongoing)
	require.True(t, recent)
}

func TestCalculate_OldCompletionDoesNotCountAsRecent(t *testing.T) {
	now := time.Now()
	tr := matchTournament(
		domain.Match{Status: domain.MatchCompleted, CompletedAt: epoch(301*time.Second, now)},
	)
	d, counts, _, recent := Calculate(tr, now)
	require.Equal(t, IdleTTL, d)
	require.Equal(t, 1, counts.OldCompleted)
	require.False(t, recent)
}

func TestCalculate_Pending600s(t *testing.T) {
	now := time.Now()
	tr := matchTournament(domain.Match{Status: domain.MatchPending})
	d, _, _, _ := Calculate(tr, now)
	require.Equal(t, 600*time.Second, d)
}

func TestCalculate_Otherwise1800s(t *testing.T) {
	now := time.Now()
	tr := matchTournament()
	d, _, _, _ := Calculate(tr, now)
	require.Equal(t, 1800*time.Second, d)
}

func TestCalculate_PriorityOrderRespected(t *testing.T) {
	now := time.Now()
	// in_progress beats everything, even when pending/completed are also present.
	tr := matchTournament(
		domain.Match{Status: domain.MatchPending},
		domain.Match{Status: domain.MatchCompleted, CompletedAt: epoch(10*time.Second, now)},
		domain.Match{Status: domain.MatchInProgress},
	)
	d, _, _, _ := Calculate(tr, now)
	require.Equal(t, InProgressTTL, d)
}
