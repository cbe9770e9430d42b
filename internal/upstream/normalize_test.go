package upstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Borislavv/bracket-bff/internal/domain"
)

func TestNormalizeStatus(t *testing.T) {
	require.Equal(t, domain.MatchPending, normalizeStatus(1))
	require.Equal(t, domain.MatchInProgress, normalizeStatus(2))
	require.Equal(t, domain.MatchCompleted, normalizeStatus(3))
	require.Equal(t, domain.MatchPending, normalizeStatus(99))
}

func TestRoundLabel_PrefersUpstreamText(t *testing.T) {
	require.Equal(t, "Winners Round 1", roundLabel(1, "Winners Round 1"))
}

func TestRoundLabel_FallsBackToSynthesized(t *testing.T) {
	require.Equal(t, "Round 3", roundLabel(3, ""))
}

func TestNormalizePlayer_NilEntrantIsUnknown(t *testing.T) {
	p := normalizePlayer(nil)
	require.True(t, p.IsUnknown())
	require.NotEmpty(t, p.ID)
}

func TestNormalizePlayer_PrefersEntrantNameOverGamerTag(t *testing.T) {
	e := &rawEntrant{ID: json.Number("5"), Name: "Team Liquid | Hbox"}
	p := normalizePlayer(e)
	require.Equal(t, "Team Liquid | Hbox", p.Tag)
	require.Equal(t, "5", p.ID)
}

func TestNormalizePlayer_FallsBackToGamerTagWhenNameBlank(t *testing.T) {
	e := &rawEntrant{ID: json.Number("5"), Participants: []rawParticipant{{ID: json.Number("50"), GamerTag: "Hbox"}}}
	p := normalizePlayer(e)
	require.Equal(t, "Hbox", p.Tag)
	require.Equal(t, "50", p.ParticipantID)
}

func standingWithScore(v int) *rawStanding {
	return &rawStanding{Stats: &rawStandingStats{Score: &rawScore{Value: &v}}}
}

func TestNormalizeScore_PrefersExplicitSlotScore(t *testing.T) {
	set := rawSet{Slots: []rawSlot{
		{Standing: standingWithScore(3)},
		{Standing: standingWithScore(1)},
	}}
	score := normalizeScore(set, domain.Player{ID: "p1"}, domain.Player{ID: "p2"}, "p1", domain.MatchCompleted)
	require.NotNil(t, score)
	require.Equal(t, 3, score.P1)
	require.Equal(t, 1, score.P2)
}

func TestNormalizeScore_FallsBackToGameTally(t *testing.T) {
	w1 := json.Number("p1")
	w2 := json.Number("p2")
	set := rawSet{Games: []rawGame{{WinnerID: &w1}, {WinnerID: &w1}, {WinnerID: &w2}}}
	score := normalizeScore(set, domain.Player{ID: "p1"}, domain.Player{ID: "p2"}, "p1", domain.MatchCompleted)
	require.NotNil(t, score)
	require.Equal(t, 2, score.P1)
	require.Equal(t, 1, score.P2)
}

func TestNormalizeScore_SynthesizesOneNilWhenCompletedWithNoOtherSignal(t *testing.T) {
	set := rawSet{}
	score := normalizeScore(set, domain.Player{ID: "p1"}, domain.Player{ID: "p2"}, "p2", domain.MatchCompleted)
	require.NotNil(t, score)
	require.Equal(t, 0, score.P1)
	require.Equal(t, 1, score.P2)
}

func TestNormalizeScore_UnsetWhenNotCompletedAndNoSignal(t *testing.T) {
	set := rawSet{}
	score := normalizeScore(set, domain.Player{ID: "p1"}, domain.Player{ID: "p2"}, "", domain.MatchPending)
	require.Nil(t, score)
}
