// internal/game/bot.go
package game

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kyle-santos/wilduno/internal/models"
)

// botMoveDelay spaces bot actions out so human players can follow the table.
const botMoveDelay = 700 * time.Millisecond

// Move is a single decision produced by a Strategy: either a draw, or
// an ordered play with a color choice for wilds.
type Move struct {
	Draw  bool
	Cards []uuid.UUID
	Color models.Color
}

// Strategy decides a move for the given player. Called with the game
// lock held; implementations must not touch the lock or block.
type Strategy func(g *UnoGame, p *models.Player) Move

// RandomStrategy picks a uniformly random legal lead card, stacks every
// other hand card matching it, and chooses a random color for wilds.
// With no legal play it draws.
func RandomStrategy(g *UnoGame, p *models.Player) Move {
	legal := LegalFirstPlays(p.Hand, g.topDiscard(), g.CurrentColor, g.PendingDrawType, g.HouseRules.AllowCrossStack)
	if len(legal) == 0 {
		return Move{Draw: true}
	}
	first := legal[g.rng.Intn(len(legal))]

	move := Move{Cards: []uuid.UUID{first.ID}}
	for _, c := range p.Hand {
		if c.ID != first.ID && CanStack(first, c) {
			move.Cards = append(move.Cards, c.ID)
		}
	}
	if first.IsWild() {
		move.Color = models.Colors[g.rng.Intn(len(models.Colors))]
	}
	return move
}

// maybeScheduleBotMove queues an automatic move when the acting player
// is a bot. Assumes lock is held.
func (g *UnoGame) maybeScheduleBotMove() {
	player := g.currentPlayer()
	if player == nil || !player.IsBot || g.RoundOver || g.Halted {
		return
	}
	turn := g.TurnID
	time.AfterFunc(botMoveDelay, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if g.TurnID != turn || g.RoundOver || g.Halted {
			return
		}
		current := g.currentPlayer()
		if current == nil || current.ID != player.ID {
			return
		}
		g.applyStrategyMoveLocked(current)
	})
}

// scheduleTurnTimerLocked arms the per-turn deadline for human players
// when the house rules configure one. On expiry the player's move is
// made for them by the game's Strategy. Stale fires are detected via
// TurnID. Assumes lock is held.
func (g *UnoGame) scheduleTurnTimerLocked() {
	g.cancelTurnTimerLocked()
	if g.HouseRules.TurnTimerSec <= 0 {
		return
	}
	player := g.currentPlayer()
	if player == nil || player.IsBot {
		return
	}
	turn := g.TurnID
	g.turnTimer = time.AfterFunc(time.Duration(g.HouseRules.TurnTimerSec)*time.Second, func() {
		go func(turn int) {
			g.Mu.Lock()
			defer g.Mu.Unlock()
			if g.TurnID != turn || g.RoundOver || g.Halted {
				return
			}
			current := g.currentPlayer()
			if current == nil {
				return
			}
			log.Printf("Game %s: turn timer expired for player %s. Auto-playing.", g.ID, current.ID)
			g.logAction(current.ID, "turn_timeout", nil)
			g.applyStrategyMoveLocked(current)
		}(turn)
	})
}

// cancelTurnTimerLocked stops any pending turn deadline. Assumes lock is held.
func (g *UnoGame) cancelTurnTimerLocked() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
}

// applyStrategyMoveLocked executes one Strategy decision for the given
// player, covering every phase an actor can be stuck in. After a
// voluntary draw the turn continues, so a bot is rescheduled to decide
// again with its enlarged hand. Assumes lock is held.
func (g *UnoGame) applyStrategyMoveLocked(player *models.Player) {
	if g.Phase == PhaseAwaitingColorChoice {
		if g.pendingActor == player.ID {
			g.handleChooseColor(player.ID, models.Colors[g.rng.Intn(len(models.Colors))])
		}
		return
	}

	move := g.Strategy(g, player)
	if move.Draw {
		turn := g.TurnID
		g.handleDraw(player.ID)
		if g.TurnID == turn && !g.RoundOver && !g.Halted {
			// Voluntary single draw: same player still to act.
			if player.IsBot {
				g.maybeScheduleBotMove()
			} else {
				g.scheduleTurnTimerLocked()
			}
		}
		return
	}
	g.handlePlay(player.ID, move.Cards, move.Color)
}
