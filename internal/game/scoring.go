// internal/game/scoring.go
package game

import (
	"github.com/google/uuid"

	"github.com/kyle-santos/wilduno/internal/models"
)

// MatchState tracks cumulative scoring across the rounds of a session
// played to a score limit. A player whose running total reaches the
// limit is eliminated; the last player standing wins the session.
type MatchState struct {
	ScoreLimit  int
	MatchNumber int // 1-based round counter

	TotalScores map[uuid.UUID]int
	// RoundScores holds the per-round score maps in play order.
	RoundScores []map[uuid.UUID]int
	Eliminated  map[uuid.UUID]bool

	FinalWinnerID uuid.UUID
}

func NewMatchState(scoreLimit int) *MatchState {
	return &MatchState{
		ScoreLimit:  scoreLimit,
		MatchNumber: 1,
		TotalScores: make(map[uuid.UUID]int),
		Eliminated:  make(map[uuid.UUID]bool),
	}
}

// ApplyRound folds one round's scores into the running totals and
// returns the IDs newly eliminated by this round. Elimination is
// idempotent: a player already out is never reported again.
func (m *MatchState) ApplyRound(roundScores map[uuid.UUID]int) []uuid.UUID {
	snapshot := make(map[uuid.UUID]int, len(roundScores))
	for id, s := range roundScores {
		snapshot[id] = s
	}
	m.RoundScores = append(m.RoundScores, snapshot)

	var newlyOut []uuid.UUID
	for id, s := range roundScores {
		if m.Eliminated[id] {
			// Out is out: an eliminated player's total is frozen.
			continue
		}
		m.TotalScores[id] += s
		if m.TotalScores[id] >= m.ScoreLimit {
			m.Eliminated[id] = true
			newlyOut = append(newlyOut, id)
		}
	}
	return newlyOut
}

// ResolveFinalWinner checks whether at most one of the given players
// survives elimination. When the session is decided it records the
// winner (the survivor, or on a simultaneous wipe-out the lowest total)
// and returns true.
func (m *MatchState) ResolveFinalWinner(players []*models.Player) bool {
	var alive []*models.Player
	for _, p := range players {
		if !m.Eliminated[p.ID] {
			alive = append(alive, p)
		}
	}
	switch len(alive) {
	case 1:
		m.FinalWinnerID = alive[0].ID
		return true
	case 0:
		// Everyone crossed the limit in the same round: lowest total wins.
		best := uuid.Nil
		bestScore := 0
		for _, p := range players {
			if best == uuid.Nil || m.TotalScores[p.ID] < bestScore {
				best = p.ID
				bestScore = m.TotalScores[p.ID]
			}
		}
		m.FinalWinnerID = best
		return true
	default:
		return false
	}
}
