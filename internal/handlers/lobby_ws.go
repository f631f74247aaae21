// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/kyle-santos/wilduno/internal/lobby"
	"github.com/kyle-santos/wilduno/internal/middleware"
	"github.com/sirupsen/logrus"
)

var GameServerForLobbyWS *GameServer

// LobbyWSHandler sets up the ephemeral in-memory WS flow.
func LobbyWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	GameServerForLobbyWS = gs
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/lobby/ws/"), "/")
		if len(pathParts) < 1 {
			http.Error(w, "missing lobby_id", http.StatusBadRequest)
			return
		}
		lobbyUUID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "invalid lobby_id", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"lobby"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "lobby" {
			c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
			return
		}

		userUUID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			logger.Warnf("User authentication failed for lobby %s: %v", lobbyUUID, err)
			c.Close(websocket.StatusPolicyViolation, "Authentication failed.")
			return
		}

		lob, exists := gs.LobbyStore.GetLobby(lobbyUUID)
		if !exists {
			c.Close(InvalidLobbyIDError, "lobby does not exist")
			return
		}

		lob.Mu.Lock()
		_, isInvitedOrPresent := lob.Users[userUUID]
		lobbyType := lob.Type
		lob.Mu.Unlock()

		if lobbyType == "private" && !isInvitedOrPresent {
			c.Close(websocket.StatusPolicyViolation, "user not invited to private lobby")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		conn := &lobby.LobbyConnection{
			UserID:  userUUID,
			Cancel:  cancel,
			OutChan: make(chan map[string]interface{}, 10),
			IsHost:  (lob.HostUserID == userUUID),
		}

		if err := lob.AddConnection(userUUID, conn); err != nil {
			logger.Warnf("failed AddConnection: %v", err)
			c.Close(websocket.StatusPolicyViolation, fmt.Sprintf("AddConnection error: %v", err))
			cancel()
			return
		}

		middleware.LogWebSocketConnect(logger, remoteAddr, r.URL.Path)
		logger.Infof("User %v connected to lobby %v", userUUID, lobbyUUID)

		go writePump(ctx, c, conn, logger)

		readPump(ctx, c, lob, conn, logger, lobbyUUID)

		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, nil)
		lob.RemoveUser(userUUID)
	}
}

// readPump handles incoming messages from the lobby websocket. It
// acquires the lobby lock before calling handleLobbyMessage and
// releases it afterwards, unless the handler signals otherwise.
func readPump(ctx context.Context, c *websocket.Conn, lob *lobby.Lobby, conn *lobby.LobbyConnection, logger *logrus.Logger, lobbyID uuid.UUID) {
	logger.Infof("Lobby %s: Starting read pump for user %v", lobbyID, conn.UserID)
	defer logger.Infof("Lobby %s: Exiting read pump for user %v", lobbyID, conn.UserID)

	for {
		select {
		case <-ctx.Done():
			logger.Infof("Lobby %s: Context cancelled for user %v, stopping read pump.", lobbyID, conn.UserID)
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("Lobby %s: WebSocket closed normally for user %v.", lobbyID, conn.UserID)
			} else if strings.Contains(err.Error(), "context canceled") {
				// Already logged above, just return
			} else {
				logger.Warnf("Lobby %s: Read error for user %v: %v (CloseStatus: %d)", lobbyID, conn.UserID, err, closeStatus)
			}
			return
		}

		if typ != websocket.MessageText {
			logger.Warnf("Lobby %s: Received non-text message type %d from user %v. Ignoring.", lobbyID, typ, conn.UserID)
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(msg, &packet); err != nil {
			logger.Warnf("Lobby %s: Invalid json from user %v: %v", lobbyID, conn.UserID, err)
			conn.WriteError("Invalid JSON format")
			continue
		}

		lockReleasedByHandler := false
		shouldStartCountdown := false

		lob.Mu.Lock()

		currentConn, stillConnected := lob.Connections[conn.UserID]
		if !stillConnected || currentConn != conn {
			logger.Warnf("Lobby %s: Ignoring action from user %s who disconnected or reconnected during handling.", lob.ID, conn.UserID)
			lob.Mu.Unlock()
			continue
		}

		handleLobbyMessage(packet, lob, conn, logger, &shouldStartCountdown, func() {
			lob.Mu.Unlock()
			lockReleasedByHandler = true
		})

		if !lockReleasedByHandler {
			lob.Mu.Unlock()
		}

		if shouldStartCountdown {
			lob.Mu.Lock()
			lob.StartCountdown(10, startGameFromCountdown(logger))
			lob.Mu.Unlock()
		}
	}
}

// startGameFromCountdown returns the countdown callback that spins up
// the game once the auto-start timer fires.
func startGameFromCountdown(logger *logrus.Logger) func(l *lobby.Lobby) {
	return func(l *lobby.Lobby) {
		logger.Infof("Lobby %s: Auto-start countdown finished.", l.ID)
		if GameServerForLobbyWS == nil {
			logger.Errorf("Lobby %s: GameServerForLobbyWS is nil, cannot start game.", l.ID)
			return
		}

		l.Mu.Lock()
		if l.InGame {
			l.Mu.Unlock()
			return
		}
		lobbyID := l.ID
		houseRules := l.HouseRules
		seats := make([]uuid.UUID, len(l.Seats))
		copy(seats, l.Seats)
		names, bots := collectSeatNamesUnsafe(l)
		l.Mu.Unlock()

		g := GameServerForLobbyWS.CreateGameInstance(context.Background(), lobbyID, houseRules, seats, names, bots)
		if g == nil {
			logger.Errorf("Lobby %s: Failed to create game instance.", lobbyID)
			return
		}

		l.Mu.Lock()
		l.InGame = true
		l.GameID = g.ID
		l.BroadcastAllUnsafe(map[string]interface{}{
			"type":    "game_start",
			"game_id": g.ID.String(),
		})
		l.Mu.Unlock()
	}
}

// parseTargetUser pulls the "userID" field out of a lobby packet.
func parseTargetUser(packet map[string]interface{}) (uuid.UUID, error) {
	idStr, _ := packet["userID"].(string)
	target, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid userID format")
	}
	return target, nil
}

// collectSeatNamesUnsafe snapshots display names for seated users and
// bots. Assumes the lobby lock is held.
func collectSeatNamesUnsafe(l *lobby.Lobby) (map[uuid.UUID]string, map[uuid.UUID]string) {
	names := make(map[uuid.UUID]string)
	for id, conn := range l.Connections {
		names[id] = conn.Username
	}
	bots := make(map[uuid.UUID]string, len(l.Bots))
	for id, name := range l.Bots {
		bots[id] = name
	}
	return names, bots
}

// handleLobbyMessage interprets the "type" field for ephemeral lobby
// logic. Assumes the lobby lock is HELD by the caller (readPump); the
// unlockCallback releases it early for long operations.
func handleLobbyMessage(packet map[string]interface{}, lob *lobby.Lobby, senderConn *lobby.LobbyConnection, logger *logrus.Logger, shouldStartCountdown *bool, unlockCallback func()) {
	action, _ := packet["type"].(string)

	switch action {
	case "ready":
		if lob.MarkUserReady(senderConn.UserID) {
			*shouldStartCountdown = true
		}
	case "unready":
		lob.MarkUserUnready(senderConn.UserID)
	case "take_seat":
		if err := lob.SeatUserUnsafe(senderConn.UserID); err != nil {
			senderConn.WriteError(err.Error())
		}
	case "leave_seat":
		lob.UnseatUserUnsafe(senderConn.UserID)
	case "seat_user":
		// Host assigns any joined participant (or bot) to a seat,
		// optionally at a specific position.
		if !senderConn.IsHost {
			senderConn.WriteError("Only the host can seat other users")
			return
		}
		target, err := parseTargetUser(packet)
		if err != nil {
			senderConn.WriteError(err.Error())
			return
		}
		if _, joined := lob.Users[target]; !joined {
			if _, isBot := lob.Bots[target]; !isBot {
				senderConn.WriteError("User has not joined this lobby")
				return
			}
		}
		pos := -1
		if v, ok := packet["position"].(float64); ok {
			pos = int(v)
		}
		if err := lob.SeatUserAtUnsafe(target, pos); err != nil {
			senderConn.WriteError(err.Error())
		}
	case "unseat_user":
		if !senderConn.IsHost {
			senderConn.WriteError("Only the host can unseat other users")
			return
		}
		target, err := parseTargetUser(packet)
		if err != nil {
			senderConn.WriteError(err.Error())
			return
		}
		lob.UnseatUserUnsafe(target)
	case "add_bot":
		if !senderConn.IsHost {
			senderConn.WriteError("Only the host can add bots")
			return
		}
		if _, err := lob.AddBotUnsafe(); err != nil {
			senderConn.WriteError(err.Error())
		}
	case "remove_bot":
		if !senderConn.IsHost {
			senderConn.WriteError("Only the host can remove bots")
			return
		}
		botIDStr, _ := packet["botID"].(string)
		botID, err := uuid.Parse(botIDStr)
		if err != nil {
			senderConn.WriteError("Invalid botID format")
			return
		}
		lob.UnseatUserUnsafe(botID)
	case "invite":
		userIDStr, _ := packet["userID"].(string)
		userToAdd, err := uuid.Parse(userIDStr)
		if err != nil {
			logger.Warnf("Lobby %s: Invalid user ID to invite: %v", lob.ID, packet["userID"])
			senderConn.WriteError("Invalid userID format for invite")
			return
		}
		lob.InviteUser(userToAdd)
	case "leave_lobby":
		userID := senderConn.UserID
		unlockCallback()
		lob.RemoveUser(userID)
		return
	case "chat":
		msg, _ := packet["msg"].(string)
		if msg != "" {
			lob.BroadcastChat(senderConn.UserID, msg)
		}
	case "update_rules":
		if !senderConn.IsHost {
			senderConn.WriteError("Only the host can update rules")
			return
		}
		if rulesData, ok := packet["rules"].(map[string]interface{}); ok {
			if err := lob.UpdateUnsafe(rulesData); err != nil {
				logger.Warnf("Lobby %s: Error during UpdateUnsafe: %v", lob.ID, err)
				senderConn.WriteError("Failed to apply rule updates.")
			}
		} else {
			logger.Warnf("Lobby %s: Received update_rules without valid 'rules' field from host %s", lob.ID, senderConn.UserID)
			senderConn.WriteError("Invalid payload for update_rules")
		}
	case "start_game":
		if !senderConn.IsHost {
			senderConn.WriteError("Only the host can force start")
			return
		}
		if lob.InGame {
			senderConn.WriteError("Game already in progress")
			return
		}
		if len(lob.Seats) < 2 {
			senderConn.WriteError("At least two seated players are required")
			return
		}
		if !lob.AreAllSeatedReadyUnsafe() {
			senderConn.WriteError("Not all seated players are ready")
			return
		}
		lob.CancelCountdownUnsafe()

		lobbyID := lob.ID
		houseRules := lob.HouseRules
		seats := make([]uuid.UUID, len(lob.Seats))
		copy(seats, lob.Seats)
		names, bots := collectSeatNamesUnsafe(lob)

		// Release lock BEFORE the potentially long game creation.
		unlockCallback()
		logger.Infof("Lobby %s: Released lock, attempting game creation...", lobbyID)

		if GameServerForLobbyWS == nil {
			logger.Errorf("Lobby %s: GameServerForLobbyWS is nil, cannot start game on host command.", lobbyID)
			return
		}

		g := GameServerForLobbyWS.CreateGameInstance(context.Background(), lobbyID, houseRules, seats, names, bots)
		if g == nil {
			logger.Errorf("Lobby %s: Failed to create game instance.", lobbyID)
			return
		}
		logger.Infof("Lobby %s: Game instance %s created.", lobbyID, g.ID)

		lob.Mu.Lock()
		if _, stillConnected := lob.Connections[senderConn.UserID]; !stillConnected {
			logger.Warnf("Lobby %s: Host %s disconnected during game creation. Game %s might be orphaned.", lob.ID, senderConn.UserID, g.ID)
			GameServerForLobbyWS.GameStore.DeleteGame(g.ID)
			lob.Mu.Unlock()
			return
		}
		if lob.InGame {
			logger.Warnf("Lobby %s: Lobby is already marked InGame after game creation attempt. Ignoring.", lob.ID)
			GameServerForLobbyWS.GameStore.DeleteGame(g.ID)
			lob.Mu.Unlock()
			return
		}

		lob.InGame = true
		lob.GameID = g.ID
		lob.BroadcastAllUnsafe(map[string]interface{}{
			"type":    "game_start",
			"game_id": g.ID.String(),
		})
		logger.Infof("Lobby %s: Broadcasted game_start for game %s.", lob.ID, g.ID)
		lob.Mu.Unlock()
		// Caller already released its lock via unlockCallback.
		return

	default:
		logger.Warnf("Lobby %s: Unknown action '%s' from user %v", lob.ID, action, senderConn.UserID)
		senderConn.WriteError(fmt.Sprintf("Unknown action type: %s", action))
	}
}

// writePump drains the connection's OutChan onto the websocket and
// keeps the connection alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *lobby.LobbyConnection, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	defer func() {
		_ = c.Close(websocket.StatusGoingAway, "Write pump stopping")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Lobby: Failed to marshal outgoing msg for user %v: %v", conn.UserID, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()

			if err != nil {
				logger.Warnf("Lobby: Failed to write to websocket for user %v: %v", conn.UserID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Lobby: Failed to send ping to user %v: %v. Assuming disconnect.", conn.UserID, err)
				return
			}
		}
	}
}
