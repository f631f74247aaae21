// internal/game/sync_state.go
package game

import (
	"github.com/google/uuid"
)

// ObfPlayer is the public view of one participant: hand size is
// visible, hand contents are not.
type ObfPlayer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Seated    bool      `json:"seated"`
	Seat      int       `json:"seat"`
	HandCount int       `json:"handCount"`
	Connected bool      `json:"connected"`
	IsBot     bool      `json:"isBot"`
}

// ObfGameState is a snapshot of the table tailored to one viewer. Only
// the viewer's own cards are revealed; everyone else is a count.
type ObfGameState struct {
	GameID       uuid.UUID `json:"gameId"`
	Phase        Phase     `json:"phase"`
	TurnID       int       `json:"turn"`
	Direction    int       `json:"direction"`
	CurrentColor string    `json:"currentColor"`

	CurrentPlayerID uuid.UUID `json:"currentPlayerId"`

	LastPlay     []EventCard `json:"lastPlay,omitempty"`
	DrawPileSize int         `json:"drawPileSize"`
	DiscardSize  int         `json:"discardSize"`

	PendingDrawTotal int    `json:"pendingDrawTotal,omitempty"`
	PendingDrawType  string `json:"pendingDrawType,omitempty"`
	// DrawDeadlineMs is the absolute unix-ms deadline of the pending
	// draw-response window, 0 when none is running.
	DrawDeadlineMs int64 `json:"drawDeadlineMs,omitempty"`

	Players  []ObfPlayer `json:"players"`
	YourHand []EventCard `json:"yourHand,omitempty"`

	TotalScores map[string]int  `json:"totalScores,omitempty"`
	Eliminated  map[string]bool `json:"eliminated,omitempty"`
	ScoreLimit  int             `json:"scoreLimit,omitempty"`
	Round       int             `json:"round,omitempty"`

	History []HistoryEntry `json:"history,omitempty"`
}

// historyTail limits how much of the play log rides along with each snapshot.
const historyTail = 30

// GetObfuscatedGameState builds the state snapshot visible to userID.
func (g *UnoGame) GetObfuscatedGameState(userID uuid.UUID) *ObfGameState {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	state := &ObfGameState{
		GameID:       g.ID,
		Phase:        g.Phase,
		TurnID:       g.TurnID,
		Direction:    g.Direction,
		CurrentColor: string(g.CurrentColor),
		DrawPileSize: len(g.DrawPile),
		DiscardSize:  len(g.DiscardPile),
	}
	if current := g.currentPlayer(); current != nil {
		state.CurrentPlayerID = current.ID
	}
	if len(g.LastPlay) > 0 {
		state.LastPlay = buildEventCards(g.LastPlay)
	}
	if g.Phase == PhaseAwaitingDrawResponse {
		state.PendingDrawTotal = g.PendingDrawTotal
		state.PendingDrawType = string(g.PendingDrawType)
		if !g.DrawDeadline.IsZero() {
			state.DrawDeadlineMs = g.DrawDeadline.UnixMilli()
		}
	}

	for _, p := range g.Players {
		state.Players = append(state.Players, ObfPlayer{
			ID:        p.ID,
			Name:      p.Name,
			Seated:    p.Seated,
			Seat:      p.SeatPosition,
			HandCount: len(p.Hand),
			Connected: p.Connected,
			IsBot:     p.IsBot,
		})
		if p.ID == userID {
			state.YourHand = buildEventCards(p.Hand)
		}
	}

	if g.Match != nil {
		state.ScoreLimit = g.Match.ScoreLimit
		state.Round = g.Match.MatchNumber
		state.TotalScores = make(map[string]int, len(g.Match.TotalScores))
		for id, s := range g.Match.TotalScores {
			state.TotalScores[id.String()] = s
		}
		state.Eliminated = make(map[string]bool, len(g.Match.Eliminated))
		for id, out := range g.Match.Eliminated {
			state.Eliminated[id.String()] = out
		}
	}

	if n := len(g.History); n > 0 {
		start := 0
		if n > historyTail {
			start = n - historyTail
		}
		state.History = append(state.History, g.History[start:]...)
	}
	return state
}
