// internal/handlers/game_server.go
package handlers

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"
	"github.com/kyle-santos/wilduno/internal/database"
	"github.com/kyle-santos/wilduno/internal/game"
	"github.com/kyle-santos/wilduno/internal/lobby"
	"github.com/kyle-santos/wilduno/internal/models"
)

// nextRoundDelay gives players time to review round results before the
// next deal of a scoring session.
const nextRoundDelay = 8 * time.Second

// GameServer holds the in-memory stores for lobbies and running games
// and creates game instances from lobby seating charts.
type GameServer struct {
	LobbyStore *lobby.LobbyStore
	GameStore  *game.GameStore
}

func NewGameServer() *GameServer {
	return &GameServer{
		LobbyStore: lobby.NewLobbyStore(),
		GameStore:  game.NewGameStore(),
	}
}

// CreateGameInstance builds an UnoGame from a lobby's seating chart.
// Called WITHOUT the lobby lock held; all needed lobby state is passed
// in explicitly.
func (gs *GameServer) CreateGameInstance(ctx context.Context, lobbyID uuid.UUID, houseRules game.HouseRules, seats []uuid.UUID, names map[uuid.UUID]string, bots map[uuid.UUID]string) *game.UnoGame {
	if len(seats) < 2 {
		log.Warnf("Lobby %s: cannot start a game with %d seated players.", lobbyID, len(seats))
		return nil
	}

	g := game.NewUnoGame(houseRules, nil)
	g.SessionID = lobbyID

	var players []*models.Player
	for pos, userID := range seats {
		name := names[userID]
		_, isBot := bots[userID]
		if isBot {
			name = bots[userID]
		}
		players = append(players, &models.Player{
			ID:           userID,
			Name:         name,
			Hand:         []*models.Card{},
			Seated:       true,
			SeatPosition: pos,
			IsBot:        isBot,
			Connected:    isBot, // humans attach their conns via the game WS
		})
	}
	g.Players = players

	g.OnRoundEnd = gs.makeRoundEndCallback(g)

	if err := database.InsertSessionSeats(ctx, lobbyID, seats, bots); err != nil {
		log.Warnf("Lobby %s: failed to persist seating chart: %v", lobbyID, err)
	}

	gs.GameStore.AddGame(g)

	if err := g.StartRound(); err != nil {
		log.Errorf("Lobby %s: failed to start round for game %s: %v", lobbyID, g.ID, err)
		gs.GameStore.DeleteGame(g.ID)
		return nil
	}
	return g
}

// makeRoundEndCallback wires round results back to the lobby: scores
// are broadcast, ready states reset, and in scoring mode the next deal
// is scheduled until the session is decided.
func (gs *GameServer) makeRoundEndCallback(g *game.UnoGame) game.OnRoundEndFunc {
	return func(sessionID uuid.UUID, winnerID uuid.UUID, roundScores map[uuid.UUID]int, sessionOver bool) {
		log.Infof("Game %s: round ended (winner %s, sessionOver %v).", g.ID, winnerID, sessionOver)

		// The callback runs with the game lock held; persistence must not
		// stall the table on a slow database.
		if g.Match != nil {
			matchNumber := g.Match.MatchNumber
			scoresCopy := make(map[uuid.UUID]int, len(roundScores))
			for id, s := range roundScores {
				scoresCopy[id] = s
			}
			go func() {
				if err := database.InsertRoundResult(context.Background(), g.ID, matchNumber, winnerID, scoresCopy); err != nil {
					log.Warnf("Game %s: failed to persist round result: %v", g.ID, err)
				}
			}()
		}

		lobInstance, exists := gs.LobbyStore.GetLobby(sessionID)
		if !exists {
			log.Warnf("OnRoundEnd: lobby %s not found in store.", sessionID)
			if sessionOver {
				gs.GameStore.DeleteGame(g.ID)
			}
			return
		}

		scores := map[string]int{}
		for pid, sc := range roundScores {
			scores[pid.String()] = sc
		}
		resultMsg := map[string]interface{}{
			"type":         "round_results",
			"winner":       winnerID.String(),
			"scores":       scores,
			"session_over": sessionOver,
		}

		if !sessionOver {
			// Schedule the next deal; the lobby stays marked in-game.
			go func() {
				lobInstance.Mu.Lock()
				lobInstance.BroadcastAllUnsafe(resultMsg)
				lobInstance.Mu.Unlock()

				time.Sleep(nextRoundDelay)
				if err := g.NextRound(); err != nil {
					log.Warnf("Game %s: could not start next round: %v", g.ID, err)
				}
			}()
			return
		}

		// Session decided: record results, settle ratings, free the lobby.
		go func() {
			finalScores := roundScores
			finalWinner := winnerID
			g.Mu.Lock()
			players := make([]*models.Player, len(g.Players))
			copy(players, g.Players)
			if g.Match != nil {
				finalScores = make(map[uuid.UUID]int, len(g.Match.TotalScores))
				for id, s := range g.Match.TotalScores {
					finalScores[id] = s
				}
				if g.Match.FinalWinnerID != uuid.Nil {
					finalWinner = g.Match.FinalWinnerID
				}
			}
			g.Mu.Unlock()

			if err := database.RecordSessionAndResults(context.Background(), g.ID, players, finalScores, finalWinner); err != nil {
				log.Warnf("Game %s: failed to record session results: %v", g.ID, err)
			}

			lobInstance.Mu.Lock()
			lobInstance.InGame = false
			lobInstance.GameID = uuid.Nil
			for uid := range lobInstance.Connections {
				lobInstance.ReadyStates[uid] = false
			}
			resultMsg["lobby_status"] = lobInstance.GetLobbyStatusPayloadUnsafe()
			lobInstance.BroadcastAllUnsafe(resultMsg)
			lobInstance.Mu.Unlock()

			gs.GameStore.DeleteGame(g.ID)
			log.Infof("Game %s instance removed from store.", g.ID)
		}()
	}
}
