package upstream

import (
	"strconv"

	"github.com/Borislavv/bracket-bff/internal/domain"
	"github.com/Borislavv/bracket-bff/internal/shared/random"
)

// normalizeStatus maps the upstream set-state code onto the domain's closed
// status vocabulary. Unknown codes fall back to pending rather than
// propagating an upstream-specific enum into the rest of the system.
func normalizeStatus(state int) domain.MatchStatus {
	switch state {
	case 1:
		return domain.MatchPending
	case 2:
		return domain.MatchInProgress
	case 3:
		return domain.MatchCompleted
	default:
		return domain.MatchPending
	}
}

// roundLabel prefers the upstream's own text and falls back to a synthesized
// "Round <n>" when it is blank — some brackets never fill fullRoundText for
// grand-final resets and similar edge rounds.
func roundLabel(round int, fullText string) string {
	if fullText != "" {
		return fullText
	}
	return "Round " + strconv.Itoa(round)
}

// normalizePlayer turns a participant/entrant pairing into a domain Player,
// synthesizing an id when upstream omits one and using the Unknown Player
// tag when it supplies neither an entrant name nor a gamer tag (a nil
// entrant gets both).
func normalizePlayer(entrant *rawEntrant) domain.Player {
	if entrant == nil {
		return domain.Player{ID: random.ID("player"), Tag: domain.UnknownPlayerTag}
	}
	tag := entrant.Name
	id := entrant.ID.String()
	participantID := ""
	if len(entrant.Participants) > 0 {
		p := entrant.Participants[0]
		participantID = p.ID.String()
		if tag == "" {
			tag = p.GamerTag
		}
	}
	if id == "" {
		id = random.ID("entrant")
	}
	if tag == "" {
		tag = domain.UnknownPlayerTag
	}
	return domain.Player{ID: id, Tag: tag, ParticipantID: participantID}
}

// slotScore extracts a single slot's score component, in the precedence
// order fixed by DESIGN NOTES: an explicit standing score always wins.
func slotScore(slot rawSlot) (int, bool) {
	if slot.Standing != nil && slot.Standing.Stats != nil && slot.Standing.Stats.Score != nil && slot.Standing.Stats.Score.Value != nil {
		return *slot.Standing.Stats.Score.Value, true
	}
	return 0, false
}

// gameTally counts per-game wins attributed to each of the two slot entrant
// ids, used as the second-tier score source when no explicit score exists.
func gameTally(games []rawGame, p1ID, p2ID string) (int, int, bool) {
	if len(games) == 0 {
		return 0, 0, false
	}
	var w1, w2 int
	counted := false
	for _, g := range games {
		if g.WinnerID == nil {
			continue
		}
		id := g.WinnerID.String()
		switch id {
		case p1ID:
			w1++
			counted = true
		case p2ID:
			w2++
			counted = true
		}
	}
	return w1, w2, counted
}

// normalizeScore resolves a match's Score by precedence: explicit slot
// scores, then per-game winner tallies, then a synthesized 1-0 for a
// completed set with a known winner and no other signal, else unset (nil).
func normalizeScore(set rawSet, p1, p2 domain.Player, winnerID string, status domain.MatchStatus) *domain.Score {
	if len(set.Slots) >= 2 {
		s1, ok1 := slotScore(set.Slots[0])
		s2, ok2 := slotScore(set.Slots[1])
		if ok1 && ok2 {
			return &domain.Score{P1: s1, P2: s2}
		}
	}

	if w1, w2, ok := gameTally(set.Games, p1.ID, p2.ID); ok {
		return &domain.Score{P1: w1, P2: w2}
	}

	if status == domain.MatchCompleted && winnerID != "" {
		// No explicit score and no per-game signal survived — a completed
		// set with a known winner still needs a displayable result, so a
		// 1-0 shape is synthesized in the winner's favor. This is flagged
		// for product owners as a placeholder they may want surfaced
		// differently; see the Open Question note in DESIGN.md.
		if winnerID == p1.ID {
			return &domain.Score{P1: 1, P2: 0}
		}
		return &domain.Score{P1: 0, P2: 1}
	}

	return nil
}

// epochPtr converts an upstream Unix-seconds pointer into the domain's
// shared representation, passing nil through unchanged.
func epochPtr(v *int64) *int64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
