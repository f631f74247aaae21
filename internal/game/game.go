// internal/game/game.go
package game

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/kyle-santos/wilduno/internal/cache"
	"github.com/kyle-santos/wilduno/internal/database"
	"github.com/kyle-santos/wilduno/internal/models"
)

// Phase is the round state machine position.
type Phase string

const (
	PhaseAwaitingPlay         Phase = "awaiting_play"
	PhaseAwaitingColorChoice  Phase = "awaiting_color_choice"
	PhaseAwaitingDrawResponse Phase = "awaiting_draw_response"
	PhaseRoundEnded           Phase = "round_ended"
)

// OnRoundEndFunc handles a finished round: broadcasting results to the
// session lobby, kicking off the next deal, etc.
type OnRoundEndFunc func(sessionID uuid.UUID, winnerID uuid.UUID, roundScores map[uuid.UUID]int, sessionOver bool)

// GameEventType is an enum-like type for broadcasting game actions.
type GameEventType string

const (
	EventRoundStart        GameEventType = "game_round_start"
	EventPlayerTurn        GameEventType = "game_player_turn"
	EventPlayerPlay        GameEventType = "player_play"
	EventPlayerSkipped     GameEventType = "player_skipped"
	EventDirectionReversed GameEventType = "game_direction_reversed"
	EventColorChosen       GameEventType = "game_color_chosen"
	EventColorChoiceWait   GameEventType = "game_color_choice_wait"
	EventDrawResponseStart GameEventType = "game_draw_response_start"
	EventPlayerDraw        GameEventType = "player_draw"           // public: count only
	EventPrivateDraw       GameEventType = "private_draw"          // private: full card details
	EventPlayerForcedDraw  GameEventType = "player_forced_draw"    // pending stack resolved against a player
	EventReshuffleDrawPile GameEventType = "game_reshuffle_drawpile"
	EventRoundEnd          GameEventType = "game_round_end"
	EventPlayerEliminated  GameEventType = "player_eliminated"
	EventSessionEnd        GameEventType = "game_session_end"
	EventPrivateHand       GameEventType = "private_hand"
	EventPrivateSyncState  GameEventType = "private_sync_state"
	EventPrivateError      GameEventType = "private_error" // illegal move / turn violation, actor only
)

// EventUser identifies a user within GameEvent payloads.
type EventUser struct {
	ID uuid.UUID `json:"id"`
}

// EventCard carries card details within GameEvent payloads.
type EventCard struct {
	ID     uuid.UUID    `json:"id"`
	Color  models.Color `json:"color,omitempty"`
	Kind   models.Kind  `json:"kind,omitempty"`
	Number *int         `json:"number,omitempty"`
}

func buildEventCard(c *models.Card) EventCard {
	ev := EventCard{ID: c.ID, Color: c.Color, Kind: c.Kind}
	if c.Kind == models.KindNumber {
		n := c.Number
		ev.Number = &n
	}
	return ev
}

func buildEventCards(cards []*models.Card) []EventCard {
	out := make([]EventCard, len(cards))
	for i, c := range cards {
		out[i] = buildEventCard(c)
	}
	return out
}

// GameEvent holds data about an event broadcast to clients in a
// consistent format.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	User    *EventUser             `json:"user,omitempty"`
	Cards   []EventCard            `json:"cards,omitempty"`
	Color   models.Color           `json:"color,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	State   *ObfGameState          `json:"state,omitempty"`
}

// HistoryEntry is one line of the human-readable play log.
type HistoryEntry struct {
	ActorID     uuid.UUID `json:"actorId"`
	ActorName   string    `json:"actorName"`
	Description string    `json:"description"`
}

// UnoGame holds the entire state for one game session in memory: the
// current round plus (in scoring mode) the match bookkeeping that spans
// rounds. All mutating entry points take Mu; the draw-response and turn
// timers re-acquire it and verify an epoch before acting so a stale
// fire is a silent no-op.
type UnoGame struct {
	ID        uuid.UUID
	SessionID uuid.UUID // references the lobby/session that spawned this game

	HouseRules HouseRules
	Match      *MatchState // nil unless HouseRules.ScoreLimit > 0

	Players     []*models.Player
	DrawPile    []*models.Card
	DiscardPile []*models.Card
	// LastPlay is the most recent multi-card play kept as a unit for
	// display; logically it is just the tail of DiscardPile.
	LastPlay []*models.Card

	CurrentSeat  int // index into the seated, position-ordered player list
	Direction    int // +1 or -1
	CurrentColor models.Color
	Phase        Phase

	PendingDrawTotal int
	PendingDrawType  models.Kind // "" when no draw stack is pending
	DrawDeadline     time.Time
	drawEpoch        int
	drawTimer        *time.Timer

	TurnID    int
	turnTimer *time.Timer

	// pendingPlay is a wild play already removed from the actor's hand,
	// waiting for its color choice before effects are computed.
	pendingPlay  []*models.Card
	pendingActor uuid.UUID

	History []HistoryEntry

	Started     bool
	RoundOver   bool
	SessionOver bool
	Halted      bool // fatal consistency error; no further state changes

	actionIndex int
	rng         *rand.Rand
	Mu          sync.Mutex

	// Strategy picks moves for bot players and for turn-timer forced
	// moves. Defaults to RandomStrategy.
	Strategy Strategy

	// BroadcastFn sends an event to all players. If nil, no broadcast is done.
	BroadcastFn func(ev GameEvent)
	// BroadcastToPlayerFn sends an event to a single specific player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)
	// OnRoundEnd is invoked when a round (or the whole session) finishes.
	OnRoundEnd OnRoundEndFunc
}

// NewUnoGame builds an empty instance. A nil rng falls back to a
// time-seeded source; tests inject a fixed seed for reproducibility.
func NewUnoGame(rules HouseRules, rng *rand.Rand) *UnoGame {
	id, _ := uuid.NewRandom()
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	g := &UnoGame{
		ID:         id,
		HouseRules: rules,
		Direction:  1,
		Phase:      PhaseAwaitingPlay,
		rng:        rng,
		Strategy:   RandomStrategy,
	}
	if rules.ScoreLimit > 0 {
		g.Match = NewMatchState(rules.ScoreLimit)
	}
	return g
}

// AddPlayer registers a participant, or refreshes their connection if
// they already exist. New players cannot join a started round; in
// scoring mode they wait unseated for the next deal.
func (g *UnoGame) AddPlayer(p *models.Player) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	for i, pl := range g.Players {
		if pl.ID == p.ID {
			g.Players[i].Conn = p.Conn
			g.Players[i].Connected = true
			log.Printf("Player %s reconnected to game %s", p.ID, g.ID)
			g.logAction(p.ID, "player_reconnect", nil)
			return
		}
	}
	if g.Started && !g.RoundOver {
		p.Seated = false // late joiner waits for the next round
	}
	g.Players = append(g.Players, p)
	g.logAction(p.ID, "player_add", nil)
}

// seatedPlayers returns the seated subset ordered by seat position.
// Assumes lock is held.
func (g *UnoGame) seatedPlayers() []*models.Player {
	var seated []*models.Player
	for _, p := range g.Players {
		if p.Seated {
			seated = append(seated, p)
		}
	}
	sort.Slice(seated, func(i, j int) bool {
		return seated[i].SeatPosition < seated[j].SeatPosition
	})
	return seated
}

// currentPlayer returns the seated player whose turn it is, or nil if
// the seat index is out of range. Assumes lock is held.
func (g *UnoGame) currentPlayer() *models.Player {
	seated := g.seatedPlayers()
	if g.CurrentSeat < 0 || g.CurrentSeat >= len(seated) {
		return nil
	}
	return seated[g.CurrentSeat]
}

// StartRound deals a fresh round to the seated players. Returns an
// error when fewer than two seats are filled.
func (g *UnoGame) StartRound() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.startRoundLocked()
}

func (g *UnoGame) startRoundLocked() error {
	if g.Halted || g.SessionOver {
		return ErrWrongPhase
	}
	seated := g.seatedPlayers()
	if len(seated) < 2 {
		return ErrNotEnoughPlayers
	}
	if len(seated)*g.HouseRules.InitialHandSize+1 > g.HouseRules.DeckCount*DeckSize {
		return ErrDeckTooSmall
	}

	g.DrawPile = NewShuffledDeck(g.rng, g.HouseRules.DeckCount)
	g.DiscardPile = nil
	g.LastPlay = nil
	for _, p := range seated {
		p.Hand = make([]*models.Card, 0, g.HouseRules.InitialHandSize)
	}
	for i := 0; i < g.HouseRules.InitialHandSize; i++ {
		for _, p := range seated {
			p.Hand = append(p.Hand, g.DrawPile[0])
			g.DrawPile = g.DrawPile[1:]
		}
	}

	first, rest := DrawInitialDiscard(g.rng, g.DrawPile)
	g.DrawPile = rest
	g.DiscardPile = []*models.Card{first}
	g.LastPlay = []*models.Card{first}
	g.CurrentColor = first.Color
	if first.Color == models.ColorWild {
		// Plain wild opener: pick the starting color at random.
		g.CurrentColor = models.Colors[g.rng.Intn(len(models.Colors))]
	}

	g.CurrentSeat = 0
	g.Direction = 1
	g.Phase = PhaseAwaitingPlay
	g.PendingDrawTotal = 0
	g.PendingDrawType = ""
	g.cancelDrawTimerLocked()
	g.History = nil
	g.Started = true
	g.RoundOver = false
	g.TurnID++

	matchNumber := 1
	if g.Match != nil {
		matchNumber = g.Match.MatchNumber
	}
	log.Printf("Game %s: round %d started with %d seated players.", g.ID, matchNumber, len(seated))
	g.logAction(uuid.Nil, string(EventRoundStart), map[string]interface{}{
		"players": len(seated), "deckCount": g.HouseRules.DeckCount, "round": matchNumber,
	})
	g.persistInitialRoundState(seated)

	g.fireEvent(GameEvent{
		Type:  EventRoundStart,
		Cards: []EventCard{buildEventCard(first)},
		Color: g.CurrentColor,
		Payload: map[string]interface{}{
			"round":        matchNumber,
			"drawPileSize": len(g.DrawPile),
		},
	})
	for _, p := range seated {
		g.sendPrivateHand(p)
	}
	g.broadcastPlayerTurn()
	g.scheduleTurnTimerLocked()
	g.maybeScheduleBotMove()
	return nil
}

// HandlePlayerAction routes a play, color choice, or draw request.
// Assumes lock is HELD by the caller (e.g. the WS handler).
func (g *UnoGame) HandlePlayerAction(playerID uuid.UUID, action models.GameAction) {
	if g.Halted || g.SessionOver || !g.Started || g.RoundOver {
		g.sendError(playerID, "no round is in progress")
		return
	}
	switch action.ActionType {
	case "action_play":
		cards, color, err := parsePlayPayload(action.Payload)
		if err != nil {
			g.sendError(playerID, err.Error())
			return
		}
		g.handlePlay(playerID, cards, color)
	case "action_choose_color":
		color, err := parseColor(action.Payload)
		if err != nil {
			g.sendError(playerID, err.Error())
			return
		}
		g.handleChooseColor(playerID, color)
	case "action_draw":
		g.handleDraw(playerID)
	default:
		g.sendError(playerID, "unknown action type")
	}
}

// parsePlayPayload extracts the ordered card id list and optional color
// from an action_play payload.
func parsePlayPayload(payload map[string]interface{}) ([]uuid.UUID, models.Color, error) {
	raw, ok := payload["cards"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, "", ErrEmptyPlay
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, "", ErrCardNotInHand
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, "", ErrCardNotInHand
		}
		ids = append(ids, id)
	}
	var color models.Color
	if s, ok := payload["color"].(string); ok && s != "" {
		color = models.Color(s)
		if !validChosenColor(color) {
			return nil, "", ErrInvalidColor
		}
	}
	return ids, color, nil
}

func parseColor(payload map[string]interface{}) (models.Color, error) {
	s, _ := payload["color"].(string)
	color := models.Color(s)
	if !validChosenColor(color) {
		return "", ErrInvalidColor
	}
	return color, nil
}

func validChosenColor(c models.Color) bool {
	for _, v := range models.Colors {
		if c == v {
			return true
		}
	}
	return false
}

// handlePlay validates and applies a multi-card play. Assumes lock is held.
func (g *UnoGame) handlePlay(playerID uuid.UUID, cardIDs []uuid.UUID, color models.Color) {
	player := g.currentPlayer()
	if player == nil || player.ID != playerID {
		g.sendError(playerID, ErrNotYourTurn.Error())
		return
	}
	if g.Phase != PhaseAwaitingPlay && g.Phase != PhaseAwaitingDrawResponse {
		g.sendError(playerID, ErrWrongPhase.Error())
		return
	}

	play := make([]*models.Card, 0, len(cardIDs))
	for _, id := range cardIDs {
		var found *models.Card
		for _, c := range player.Hand {
			if c.ID == id {
				found = c
				break
			}
		}
		if found == nil {
			g.sendError(playerID, ErrCardNotInHand.Error())
			return
		}
		play = append(play, found)
	}

	if err := ValidatePlay(play, g.topDiscard(), g.CurrentColor, g.PendingDrawType, g.HouseRules.AllowCrossStack); err != nil {
		g.sendError(playerID, err.Error())
		return
	}

	needsColor := play[0].IsWild()
	if needsColor && color == "" {
		// Cards leave the hand now; effects wait for the color choice.
		g.removeFromHand(player, play)
		g.pendingPlay = play
		g.pendingActor = playerID
		g.Phase = PhaseAwaitingColorChoice
		g.cancelDrawTimerLocked()
		g.fireEvent(GameEvent{
			Type:  EventColorChoiceWait,
			User:  &EventUser{ID: playerID},
			Cards: buildEventCards(play),
		})
		g.logAction(playerID, string(EventColorChoiceWait), map[string]interface{}{"cards": len(play)})
		return
	}

	g.removeFromHand(player, play)
	g.finishPlay(player, play, color)
}

// handleChooseColor completes a wild play stashed by handlePlay.
// Assumes lock is held.
func (g *UnoGame) handleChooseColor(playerID uuid.UUID, color models.Color) {
	if g.Phase != PhaseAwaitingColorChoice || g.pendingActor != playerID {
		g.sendError(playerID, ErrWrongPhase.Error())
		return
	}
	player := g.getPlayerByID(playerID)
	if player == nil {
		return
	}
	play := g.pendingPlay
	g.pendingPlay = nil
	g.pendingActor = uuid.Nil
	g.finishPlay(player, play, color)
}

// finishPlay applies the effects of an accepted play: discard, color
// resolution, reverse/skip/draw-stack semantics, turn advancement, and
// round end when the hand empties. Assumes lock is held.
func (g *UnoGame) finishPlay(player *models.Player, play []*models.Card, chosenColor models.Color) {
	g.DiscardPile = append(g.DiscardPile, play...)
	g.LastPlay = play

	top := play[len(play)-1]
	if top.IsWild() {
		g.CurrentColor = chosenColor
		g.fireEvent(GameEvent{Type: EventColorChosen, User: &EventUser{ID: player.ID}, Color: chosenColor})
	} else {
		g.CurrentColor = top.Color
	}

	labels := ""
	for i, c := range play {
		if i > 0 {
			labels += ", "
		}
		labels += c.Label()
	}
	g.addHistory(player, "played "+labels)
	g.fireEvent(GameEvent{
		Type:  EventPlayerPlay,
		User:  &EventUser{ID: player.ID},
		Cards: buildEventCards(play),
		Color: g.CurrentColor,
	})
	g.logAction(player.ID, string(EventPlayerPlay), map[string]interface{}{
		"cards": len(play), "kind": string(play[0].Kind), "color": string(g.CurrentColor),
	})
	g.sendPrivateHand(player)

	// An emptied hand ends the round immediately; any pending draw
	// state dies with it.
	if len(player.Hand) == 0 {
		g.endRoundLocked(player)
		return
	}

	// A validated play answering a pending stack always extends it, so
	// clearing here only matters for the cross-stack variant bookkeeping.
	kind := play[0].Kind
	n := len(play)
	seatedCount := len(g.seatedPlayers())

	skipCount := 0
	switch kind {
	case models.KindSkip:
		skipCount = n
	case models.KindReverse:
		if n%2 == 1 {
			g.Direction = -g.Direction
		}
		if seatedCount == 2 {
			skipCount = n
		}
		g.fireEvent(GameEvent{Type: EventDirectionReversed, Payload: map[string]interface{}{"direction": g.Direction}})
	}

	drawSum := 0
	for _, c := range play {
		drawSum += c.DrawAmount()
	}

	if drawSum > 0 {
		g.PendingDrawTotal += drawSum
		g.PendingDrawType = kind // all cards in a stack share the kind
		g.advanceSeatLocked(1 + skipCount)
		g.Phase = PhaseAwaitingDrawResponse
		g.armDrawTimerLocked()
		responder := g.currentPlayer()
		g.fireEvent(GameEvent{
			Type: EventDrawResponseStart,
			User: &EventUser{ID: responder.ID},
			Payload: map[string]interface{}{
				"pendingDrawTotal": g.PendingDrawTotal,
				"pendingDrawType":  string(g.PendingDrawType),
				"deadlineUnixMs":   g.DrawDeadline.UnixMilli(),
			},
		})
	} else {
		g.Phase = PhaseAwaitingPlay
		g.advanceSeatLocked(1 + skipCount)
	}

	g.TurnID++
	g.broadcastPlayerTurn()
	g.scheduleTurnTimerLocked()
	g.maybeScheduleBotMove()
}

// handleDraw services a voluntary draw: the full pending total during a
// draw-response window (ending the turn), or a single card otherwise
// (the player keeps the turn and may play or draw again). Assumes lock
// is held.
func (g *UnoGame) handleDraw(playerID uuid.UUID) {
	player := g.currentPlayer()
	if player == nil || player.ID != playerID {
		g.sendError(playerID, ErrNotYourTurn.Error())
		return
	}

	switch g.Phase {
	case PhaseAwaitingDrawResponse:
		g.resolvePendingDrawLocked(player, "drew")
	case PhaseAwaitingPlay:
		if err := g.drawCardsLocked(player, 1); err != nil {
			return // drawCardsLocked already halted the round
		}
		g.addHistory(player, "drew a card")
		// Turn is not forfeited: the player must now play or draw again.
	default:
		g.sendError(playerID, ErrWrongPhase.Error())
	}
}

// resolvePendingDrawLocked applies the accumulated draw stack to the
// current player, clears pending state, cancels the response timer, and
// passes the turn to the player after the drawer. Assumes lock is held.
func (g *UnoGame) resolvePendingDrawLocked(player *models.Player, verb string) {
	total := g.PendingDrawTotal
	g.cancelDrawTimerLocked()
	g.PendingDrawTotal = 0
	g.PendingDrawType = ""

	if err := g.drawCardsLocked(player, total); err != nil {
		return
	}
	g.addHistory(player, fmt.Sprintf("%s %d cards", verb, total))
	g.fireEvent(GameEvent{
		Type:    EventPlayerForcedDraw,
		User:    &EventUser{ID: player.ID},
		Payload: map[string]interface{}{"count": total},
	})
	g.logAction(player.ID, string(EventPlayerForcedDraw), map[string]interface{}{"count": total})

	g.Phase = PhaseAwaitingPlay
	g.advanceSeatLocked(1)
	g.TurnID++
	g.broadcastPlayerTurn()
	g.scheduleTurnTimerLocked()
	g.maybeScheduleBotMove()
}

// armDrawTimerLocked starts the single-shot draw-response deadline.
// Arming implicitly invalidates any previous deadline via the epoch
// counter, which is compared again at fire time. Assumes lock is held.
func (g *UnoGame) armDrawTimerLocked() {
	if g.drawTimer != nil {
		g.drawTimer.Stop()
	}
	g.drawEpoch++
	epoch := g.drawEpoch
	window := time.Duration(g.HouseRules.DrawResponseSec) * time.Second
	g.DrawDeadline = time.Now().Add(window)

	g.drawTimer = time.AfterFunc(window, func() {
		go func(epoch int) {
			g.Mu.Lock()
			defer g.Mu.Unlock()
			if g.drawEpoch != epoch || g.Phase != PhaseAwaitingDrawResponse || g.RoundOver || g.Halted {
				log.Printf("Game %s: stale draw-response timer (epoch %d) fired. Ignoring.", g.ID, epoch)
				return
			}
			player := g.currentPlayer()
			if player == nil {
				return
			}
			log.Printf("Game %s: draw-response window expired for player %s.", g.ID, player.ID)
			g.logAction(player.ID, "draw_response_timeout", map[string]interface{}{"count": g.PendingDrawTotal})
			g.resolvePendingDrawLocked(player, "timed out and drew")
		}(epoch)
	})
}

// cancelDrawTimerLocked stops any outstanding deadline and bumps the
// epoch so an in-flight fire resolves as stale. Assumes lock is held.
func (g *UnoGame) cancelDrawTimerLocked() {
	if g.drawTimer != nil {
		g.drawTimer.Stop()
		g.drawTimer = nil
	}
	g.drawEpoch++
	g.DrawDeadline = time.Time{}
}

// drawCardsLocked moves n cards from the draw pile into the player's
// hand, reshuffling the discard pile (minus its top card) back into the
// draw pile whenever the pile runs dry mid-operation. A genuine
// shortfall is a fatal consistency error: the round halts rather than
// silently truncating the draw. Assumes lock is held.
func (g *UnoGame) drawCardsLocked(player *models.Player, n int) error {
	drawn := make([]*models.Card, 0, n)
	for i := 0; i < n; i++ {
		if len(g.DrawPile) == 0 {
			if len(g.DiscardPile) <= 1 {
				log.Printf("Game %s: FATAL: %d card(s) requested but draw and discard piles are exhausted.", g.ID, n-i)
				g.Halted = true
				g.cancelDrawTimerLocked()
				g.logAction(uuid.Nil, "round_halted_out_of_cards", map[string]interface{}{"shortfall": n - i})
				return ErrOutOfCards
			}
			g.reshuffleDiscardLocked()
		}
		card := g.DrawPile[0]
		g.DrawPile = g.DrawPile[1:]
		player.Hand = append(player.Hand, card)
		drawn = append(drawn, card)
	}

	g.fireEvent(GameEvent{
		Type: EventPlayerDraw,
		User: &EventUser{ID: player.ID},
		Payload: map[string]interface{}{
			"count":        len(drawn),
			"drawPileSize": len(g.DrawPile),
		},
	})
	g.fireEventToPlayer(player.ID, GameEvent{
		Type:  EventPrivateDraw,
		Cards: buildEventCards(drawn),
	})
	g.logAction(player.ID, string(EventPlayerDraw), map[string]interface{}{"count": len(drawn)})
	return nil
}

// reshuffleDiscardLocked folds the discard pile, except its top card,
// back into the draw pile. Assumes lock is held and the discard pile
// has at least two cards.
func (g *UnoGame) reshuffleDiscardLocked() {
	topIdx := len(g.DiscardPile) - 1
	top := g.DiscardPile[topIdx]
	recycled := g.DiscardPile[:topIdx]

	g.DrawPile = append(g.DrawPile, recycled...)
	g.DiscardPile = []*models.Card{top}
	g.LastPlay = []*models.Card{top}
	ShuffleDeck(g.rng, g.DrawPile)

	log.Printf("Game %s: reshuffled %d discard card(s) into the draw pile.", g.ID, len(recycled))
	g.fireEvent(GameEvent{
		Type:    EventReshuffleDrawPile,
		Payload: map[string]interface{}{"drawPileSize": len(g.DrawPile)},
	})
	g.logAction(uuid.Nil, string(EventReshuffleDrawPile), map[string]interface{}{"newSize": len(g.DrawPile)})
}

// advanceSeatLocked moves the current seat by steps units of direction
// over the seated list. The first step is the acting player's normal
// turn end; every seat landed on before the final step was skipped and
// is recorded in the play log. Assumes lock is held.
func (g *UnoGame) advanceSeatLocked(steps int) {
	seated := g.seatedPlayers()
	k := len(seated)
	if k == 0 {
		return
	}
	idx := g.CurrentSeat
	for i := 1; i <= steps; i++ {
		idx = (idx + g.Direction + k) % k
		if i < steps {
			skipped := seated[idx]
			g.addHistory(skipped, "was skipped")
			g.fireEvent(GameEvent{Type: EventPlayerSkipped, User: &EventUser{ID: skipped.ID}})
		}
	}
	g.CurrentSeat = idx
}

// endRoundLocked finalizes the round with the given winner, applies
// match scoring and eliminations, and either ends the whole session or
// leaves the game ready for NextRound. Assumes lock is held.
func (g *UnoGame) endRoundLocked(winner *models.Player) {
	g.Phase = PhaseRoundEnded
	g.RoundOver = true
	g.cancelDrawTimerLocked()
	g.cancelTurnTimerLocked()
	g.PendingDrawTotal = 0
	g.PendingDrawType = ""
	g.pendingPlay = nil
	g.pendingActor = uuid.Nil

	seated := g.seatedPlayers()
	roundScores := make(map[uuid.UUID]int)
	for _, p := range seated {
		if p.ID == winner.ID {
			roundScores[p.ID] = 0
			continue
		}
		roundScores[p.ID] = p.HandPoints()
	}
	g.addHistory(winner, "won the round")
	log.Printf("Game %s: round won by %s. Scores: %v", g.ID, winner.ID, roundScores)

	var newlyEliminated []uuid.UUID
	sessionOver := true
	if g.Match != nil {
		newlyEliminated = g.Match.ApplyRound(roundScores)
		sessionOver = g.Match.ResolveFinalWinner(seated)
	}

	for _, id := range newlyEliminated {
		g.fireEvent(GameEvent{Type: EventPlayerEliminated, User: &EventUser{ID: id}})
		g.logAction(id, string(EventPlayerEliminated), map[string]interface{}{"total": g.Match.TotalScores[id]})
	}

	payloadScores := map[string]int{}
	for id, s := range roundScores {
		payloadScores[id.String()] = s
	}
	g.fireEvent(GameEvent{
		Type: EventRoundEnd,
		User: &EventUser{ID: winner.ID},
		Payload: map[string]interface{}{
			"scores": payloadScores,
			"winner": winner.ID.String(),
		},
	})
	g.logAction(winner.ID, string(EventRoundEnd), map[string]interface{}{"scores": payloadScores})

	if sessionOver {
		g.SessionOver = true
		finalWinner := winner.ID
		if g.Match != nil && g.Match.FinalWinnerID != uuid.Nil {
			finalWinner = g.Match.FinalWinnerID
		}
		totals := map[string]int{}
		if g.Match != nil {
			for id, s := range g.Match.TotalScores {
				totals[id.String()] = s
			}
		}
		g.fireEvent(GameEvent{
			Type: EventSessionEnd,
			User: &EventUser{ID: finalWinner},
			Payload: map[string]interface{}{
				"winner": finalWinner.String(),
				"totals": totals,
			},
		})
		g.logAction(finalWinner, string(EventSessionEnd), map[string]interface{}{"totals": totals})
		g.persistFinalSessionState(finalWinner, roundScores)
	}

	if g.OnRoundEnd != nil {
		g.OnRoundEnd(g.SessionID, winner.ID, roundScores, g.SessionOver)
	}
}

// NextRound unseats eliminated players, reseats the remainder densely,
// and deals the next round of a scoring-mode session.
func (g *UnoGame) NextRound() error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if !g.RoundOver || g.SessionOver || g.Halted {
		return ErrWrongPhase
	}
	if g.Match == nil {
		return ErrWrongPhase
	}
	pos := 0
	for _, p := range g.seatedPlayers() {
		if g.Match.Eliminated[p.ID] {
			p.Seated = false
			continue
		}
		p.SeatPosition = pos
		pos++
	}
	g.Match.MatchNumber++
	return g.startRoundLocked()
}

// topDiscard returns the active discard top, or nil before the first
// play of a round. Assumes lock is held.
func (g *UnoGame) topDiscard() *models.Card {
	if len(g.DiscardPile) == 0 {
		return nil
	}
	return g.DiscardPile[len(g.DiscardPile)-1]
}

// removeFromHand deletes the given cards (by ID) from the player's
// hand. Assumes lock is held and the cards are present.
func (g *UnoGame) removeFromHand(player *models.Player, cards []*models.Card) {
	for _, target := range cards {
		for i, c := range player.Hand {
			if c.ID == target.ID {
				player.Hand = append(player.Hand[:i], player.Hand[i+1:]...)
				break
			}
		}
	}
}

// getPlayerByID finds a player struct by ID. Assumes lock is held.
func (g *UnoGame) getPlayerByID(playerID uuid.UUID) *models.Player {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// HandleReconnect attaches a live connection to an existing player and
// sends them a fresh private state snapshot.
func (g *UnoGame) HandleReconnect(playerID uuid.UUID, conn *websocket.Conn) {
	g.Mu.Lock()
	p := g.getPlayerByID(playerID)
	if p == nil {
		g.Mu.Unlock()
		return
	}
	p.Conn = conn
	p.Connected = true
	g.logAction(playerID, "player_reconnect", nil)
	g.Mu.Unlock()

	state := g.GetObfuscatedGameState(playerID)

	g.Mu.Lock()
	g.fireEventToPlayer(playerID, GameEvent{Type: EventPrivateSyncState, State: state})
	g.Mu.Unlock()
}

// HandleDisconnect marks a player disconnected. Seated players stay in
// the rotation; the turn timer (if configured) keeps the game moving on
// their behalf.
func (g *UnoGame) HandleDisconnect(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	for _, p := range g.Players {
		if p.ID == playerID {
			p.Connected = false
			p.Conn = nil
			g.logAction(playerID, "player_disconnect", nil)
			return
		}
	}
}

// addHistory appends a play-log line. Assumes lock is held.
func (g *UnoGame) addHistory(p *models.Player, description string) {
	g.History = append(g.History, HistoryEntry{ActorID: p.ID, ActorName: p.Name, Description: description})
}

// sendPrivateHand sends the player's full hand privately. Assumes lock is held.
func (g *UnoGame) sendPrivateHand(p *models.Player) {
	g.fireEventToPlayer(p.ID, GameEvent{
		Type:  EventPrivateHand,
		Cards: buildEventCards(p.Hand),
	})
}

// sendError reports an illegal move or turn violation to the acting
// participant only. State is untouched and nothing enters the play log.
func (g *UnoGame) sendError(playerID uuid.UUID, msg string) {
	g.fireEventToPlayer(playerID, GameEvent{
		Type:    EventPrivateError,
		Payload: map[string]interface{}{"message": msg},
	})
}

// broadcastPlayerTurn notifies all players whose turn it is now.
// Assumes lock is held.
func (g *UnoGame) broadcastPlayerTurn() {
	player := g.currentPlayer()
	if player == nil || g.RoundOver {
		return
	}
	g.fireEvent(GameEvent{
		Type: EventPlayerTurn,
		User: &EventUser{ID: player.ID},
		Payload: map[string]interface{}{
			"turn":  g.TurnID,
			"phase": string(g.Phase),
		},
	})
}

// fireEvent broadcasts an event to all connected players. Assumes lock is held.
func (g *UnoGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends an event only to a specific player. Assumes lock is held.
func (g *UnoGame) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn != nil {
		g.BroadcastToPlayerFn(playerID, ev)
	}
}

// logAction publishes the action record to the historian queue via
// Redis. Assumes lock is held.
func (g *UnoGame) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        g.ID,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cache.Rdb == nil {
			return
		}
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			log.Printf("Error publishing game action %d to Redis for game %s: %v", rec.ActionIndex, g.ID, err)
		}
	}(record)
}

// persistInitialRoundState saves the deck order and dealt hands so a
// replay can reconstruct the deal. Assumes lock is held.
func (g *UnoGame) persistInitialRoundState(seated []*models.Player) {
	type initialState struct {
		DrawPile []*models.Card            `json:"drawPile"`
		First    *models.Card              `json:"firstDiscard"`
		Players  map[string][]*models.Card `json:"players"`
	}
	snap := initialState{
		DrawPile: make([]*models.Card, len(g.DrawPile)),
		First:    g.topDiscard(),
		Players:  make(map[string][]*models.Card),
	}
	copy(snap.DrawPile, g.DrawPile)
	for _, p := range seated {
		handCopy := make([]*models.Card, len(p.Hand))
		copy(handCopy, p.Hand)
		snap.Players[p.ID.String()] = handCopy
	}
	go database.UpsertInitialRoundState(g.ID, snap)
}

// persistFinalSessionState records totals and the final winner.
// Assumes lock is held.
func (g *UnoGame) persistFinalSessionState(winnerID uuid.UUID, lastRound map[uuid.UUID]int) {
	snapshot := map[string]interface{}{
		"winner":    winnerID.String(),
		"lastRound": map[string]int{},
	}
	lr := snapshot["lastRound"].(map[string]int)
	for id, s := range lastRound {
		lr[id.String()] = s
	}
	if g.Match != nil {
		totals := map[string]int{}
		for id, s := range g.Match.TotalScores {
			totals[id.String()] = s
		}
		snapshot["totals"] = totals
		snapshot["rounds"] = g.Match.MatchNumber
	}
	go database.StoreFinalSessionState(context.Background(), g.ID, snapshot)
}

