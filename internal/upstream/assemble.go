package upstream

import (
	"github.com/Borislavv/bracket-bff/internal/domain"
	"github.com/Borislavv/bracket-bff/internal/shared/random"
)

// slotWinner reports the winning slot index (0 or 1) if standing.placement
// marks one, so buildMatch does not have to duplicate this precedence in
// two places (Winner field, score synthesis).
func slotWinner(slots []rawSlot) (int, bool) {
	for i, s := range slots {
		if s.Standing != nil && s.Standing.Placement != nil && *s.Standing.Placement == 1 {
			return i, true
		}
	}
	return -1, false
}

// buildMatch normalizes one raw set into a domain Match. It never returns an
// error: a malformed set degrades to Unknown players rather than aborting
// the whole bracket, per the partial-failure tolerance the assembly step
// must uphold.
func buildMatch(set rawSet, bracketName string) domain.Match {
	var e1, e2 *rawEntrant
	if len(set.Slots) > 0 {
		e1 = set.Slots[0].Entrant
	}
	if len(set.Slots) > 1 {
		e2 = set.Slots[1].Entrant
	}
	p1 := normalizePlayer(e1)
	p2 := normalizePlayer(e2)

	status := normalizeStatus(set.State)

	var winner *domain.Player
	winnerID := ""
	if idx, ok := slotWinner(set.Slots); ok {
		if idx == 0 {
			winner = &p1
		} else {
			winner = &p2
		}
		winnerID = winner.ID
	}

	score := normalizeScore(set, p1, p2, winnerID, status)

	id := set.ID.String()
	if id == "" {
		id = random.ID("set")
	}

	return domain.Match{
		ID:          id,
		Round:       roundLabel(set.Round, set.FullRoundText),
		Player1:     &p1,
		Player2:     &p2,
		Winner:      winner,
		Status:      status,
		BracketName: bracketName,
		Score:       score,
		StartedAt:   epochPtr(set.StartedAt),
		CompletedAt: epochPtr(set.CompletedAt),
		UpdatedAt:   epochPtr(set.UpdatedAt),
	}
}

// mergeParticipants unions newPlayers into existing by id, dropping any
// synthesized Unknown placeholder — those must never enter an Event's
// durable participant set, only appear inline on the Match they came from.
func mergeParticipants(existing []domain.Player, newPlayers ...domain.Player) []domain.Player {
	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		seen[p.ID] = struct{}{}
	}
	for _, p := range newPlayers {
		if p.IsUnknown() {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		existing = append(existing, p)
	}
	return existing
}

// upsertCurrentMatch appends m to current, or replaces the existing entry
// with the same id — currentMatches is a live-state view, not a log, so a
// later fetch of the same match must overwrite rather than duplicate.
func upsertCurrentMatch(current []domain.Match, m domain.Match) []domain.Match {
	for i := range current {
		if current[i].ID == m.ID {
			current[i] = m
			return current
		}
	}
	return append(current, m)
}

// updateIfPresent replaces the entry sharing m's id, if one exists, and
// otherwise leaves current untouched — unlike upsertCurrentMatch, it never
// appends. A match discovered already completed on a cold fetch was never
// observed live and must not gain a currentMatches slot just by finishing;
// only a match this client already tracked while pending or in-progress may
// carry forward into currentMatches as completed.
func updateIfPresent(current []domain.Match, m domain.Match) []domain.Match {
	for i := range current {
		if current[i].ID == m.ID {
			current[i] = m
			break
		}
	}
	return current
}

// currentMatchStatuses is the set of statuses eligible to newly occupy a
// currentMatches slot. Nothing removes an entry once added; currentMatches
// does not accumulate across fetches because each Fetch builds its events
// from scratch.
var currentMatchStatuses = map[domain.MatchStatus]struct{}{
	domain.MatchPending:    {},
	domain.MatchInProgress: {},
}

// installMatch folds one normalized match into its bracket and the parent
// event's participant/currentMatches views. Brackets are created on first
// reference to a phase group id.
func installMatch(ev *domain.Event, bracketID, bracketName string, m domain.Match) {
	var b *domain.Bracket
	for i := range ev.Brackets {
		if ev.Brackets[i].ID == bracketID {
			b = &ev.Brackets[i]
			break
		}
	}
	if b == nil {
		ev.Brackets = append(ev.Brackets, domain.Bracket{ID: bracketID, Name: bracketName})
		b = &ev.Brackets[len(ev.Brackets)-1]
	}
	b.Matches = append(b.Matches, m)

	if m.Player1 != nil {
		ev.Participants = mergeParticipants(ev.Participants, *m.Player1)
	}
	if m.Player2 != nil {
		ev.Participants = mergeParticipants(ev.Participants, *m.Player2)
	}

	if _, ok := currentMatchStatuses[m.Status]; ok {
		ev.CurrentMatches = upsertCurrentMatch(ev.CurrentMatches, m)
	} else if m.Status == domain.MatchCompleted {
		ev.CurrentMatches = updateIfPresent(ev.CurrentMatches, m)
	}
}
