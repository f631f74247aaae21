// internal/lobby/lobby.go
package lobby

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kyle-santos/wilduno/internal/database"
	"github.com/kyle-santos/wilduno/internal/game"
)

// Lobby is an ephemeral grouping of users with chat, rules, seats, and
// ready states. Seated users play the next round; everyone else
// spectates. All mutating methods with an Unsafe suffix assume the
// caller holds Mu.
type Lobby struct {
	ID         uuid.UUID `json:"id"`
	HostUserID uuid.UUID `json:"hostUserID"`
	Type       string    `json:"type"` // "private" or "public"

	// InviteCode is the short join code registered in Redis for
	// private lobbies.
	InviteCode string `json:"inviteCode,omitempty"`

	// Users maps userID -> whether they've joined (true) or only been
	// invited (false).
	Users map[uuid.UUID]bool `json:"-"`

	// Connections holds the live WebSocket presences for joined users.
	Connections map[uuid.UUID]*LobbyConnection `json:"-"`
	// ReadyStates holds userID -> "is ready".
	ReadyStates map[uuid.UUID]bool `json:"-"`

	// Seats is the ordered seating chart: Seats[i] plays seat i.
	// Kept dense by construction; unseating compacts the slice.
	Seats []uuid.UUID `json:"-"`
	// Bots tracks which seated IDs are server-driven bots.
	Bots map[uuid.UUID]string `json:"-"` // botID -> display name

	GameInstanceCreated bool      `json:"-"`
	GameID              uuid.UUID `json:"gameId,omitempty"`
	InGame              bool      `json:"inGame"`

	CountdownTimer *time.Timer `json:"-"`

	HouseRules game.HouseRules `json:"houseRules"`

	LobbySettings LobbySettings `json:"lobbySettings"`

	// OnEmpty is called when the last connection leaves, typically
	// wired to LobbyStore.DeleteLobby.
	OnEmpty func(lobbyID uuid.UUID) `json:"-"`

	Mu sync.Mutex
}

// LobbyConnection is a single user's presence in the lobby.
type LobbyConnection struct {
	UserID   uuid.UUID
	Username string
	Cancel   func()
	OutChan  chan map[string]interface{}
	IsHost   bool
}

// Write pushes a message onto the user's OutChan non-blockingly. Logs
// if the message is dropped.
func (conn *LobbyConnection) Write(msg map[string]interface{}) {
	select {
	case conn.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		log.Printf("LobbyConnection Write WARNING: OutChan for user %s closed or full. Dropped message type '%s'.", conn.UserID, msgType)
	}
}

// WriteError is a convenience to send an error object.
func (conn *LobbyConnection) WriteError(msg string) {
	conn.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// LobbySettings holds settings specific to lobby behavior.
type LobbySettings struct {
	AutoStart bool `json:"autoStart"`
}

// NewLobbyWithDefaults creates an ephemeral lobby with default house rules.
func NewLobbyWithDefaults(hostID uuid.UUID) *Lobby {
	lobbyID, _ := uuid.NewRandom()
	return &Lobby{
		ID:          lobbyID,
		HostUserID:  hostID,
		Type:        "private",
		Users:       make(map[uuid.UUID]bool),
		Connections: make(map[uuid.UUID]*LobbyConnection),
		ReadyStates: make(map[uuid.UUID]bool),
		Bots:        make(map[uuid.UUID]string),
		HouseRules:  game.DefaultHouseRules(),
		LobbySettings: LobbySettings{
			AutoStart: true,
		},
	}
}

// InviteUser marks userID as invited. Assumes lock is held.
func (lobby *Lobby) InviteUser(userID uuid.UUID) {
	lobby.inviteUserUnsafe(userID)
}

func (lobby *Lobby) inviteUserUnsafe(userID uuid.UUID) {
	if _, exists := lobby.Users[userID]; !exists {
		lobby.Users[userID] = false
		log.Printf("Lobby %s: User %s invited.", lobby.ID, userID)
		lobby.BroadcastAllUnsafe(map[string]interface{}{
			"type":      "lobby_invite",
			"invitedID": userID.String(),
		})
	}
}

// AddConnection registers a user as connected, fetching their username
// for display. Acquires lock.
func (lobby *Lobby) AddConnection(userID uuid.UUID, conn *LobbyConnection) error {
	lobby.Mu.Lock()

	joined, exists := lobby.Users[userID]
	if !exists {
		if lobby.Type != "private" {
			lobby.Users[userID] = true
		} else {
			lobby.Mu.Unlock()
			return fmt.Errorf("user %s not invited to the private lobby %s", userID, lobby.ID)
		}
	} else if joined {
		log.Printf("Lobby %s: User %s is re-establishing connection.", lobby.ID, userID)
		if oldConn, ok := lobby.Connections[userID]; ok && oldConn != conn {
			close(oldConn.OutChan)
			if oldConn.Cancel != nil {
				oldConn.Cancel()
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	user, err := database.GetUserByID(ctx, userID)
	cancel()
	if err != nil {
		log.Printf("Lobby %s: Error fetching user %s details: %v. Using default username.", lobby.ID, userID, err)
		conn.Username = fmt.Sprintf("User_%s", userID.String()[:4])
	} else {
		conn.Username = user.Username
	}

	lobby.Connections[userID] = conn
	lobby.ReadyStates[userID] = false
	lobby.Users[userID] = true

	log.Printf("Lobby %s: User %s (%s) connected.", lobby.ID, userID, conn.Username)

	lobbyStatePayload := lobby.getLobbyStatePayloadUnsafe(userID)
	lobbyJoinPayload := lobby.getLobbyJoinPayloadUnsafe(userID)

	lobby.Mu.Unlock()

	go func() {
		conn.Write(lobbyStatePayload)
		lobby.BroadcastAll(lobbyJoinPayload)
	}()

	return nil
}

// SeatUserUnsafe adds a user (or bot) to the end of the seating chart.
// Fails when the table is full, the round is in progress, or the user
// is already seated. Assumes lock is held.
func (lobby *Lobby) SeatUserUnsafe(userID uuid.UUID) error {
	return lobby.SeatUserAtUnsafe(userID, len(lobby.Seats))
}

// SeatUserAtUnsafe seats a user at a specific position, shifting later
// seats toward the end. A negative or past-the-end position appends, so
// seats always stay dense. Assumes lock is held.
func (lobby *Lobby) SeatUserAtUnsafe(userID uuid.UUID, pos int) error {
	if lobby.InGame {
		return fmt.Errorf("cannot change seats while a round is in progress")
	}
	if len(lobby.Seats) >= lobby.HouseRules.MaxPlayers {
		return fmt.Errorf("all %d seats are taken", lobby.HouseRules.MaxPlayers)
	}
	for _, id := range lobby.Seats {
		if id == userID {
			return fmt.Errorf("user %s is already seated", userID)
		}
	}
	if pos < 0 || pos > len(lobby.Seats) {
		pos = len(lobby.Seats)
	}
	lobby.Seats = append(lobby.Seats, uuid.Nil)
	copy(lobby.Seats[pos+1:], lobby.Seats[pos:])
	lobby.Seats[pos] = userID
	lobby.broadcastSeatsUnsafe()
	return nil
}

// UnseatUserUnsafe removes a user from the seating chart and compacts
// the remaining seats so positions stay dense. Assumes lock is held.
func (lobby *Lobby) UnseatUserUnsafe(userID uuid.UUID) {
	if lobby.InGame {
		return
	}
	for i, id := range lobby.Seats {
		if id == userID {
			lobby.Seats = append(lobby.Seats[:i], lobby.Seats[i+1:]...)
			delete(lobby.Bots, userID)
			lobby.broadcastSeatsUnsafe()
			return
		}
	}
}

// AddBotUnsafe seats a server-driven bot. Assumes lock is held.
func (lobby *Lobby) AddBotUnsafe() (uuid.UUID, error) {
	botID, _ := uuid.NewRandom()
	name := fmt.Sprintf("Bot_%s", botID.String()[:4])
	if err := lobby.SeatUserUnsafe(botID); err != nil {
		return uuid.Nil, err
	}
	lobby.Bots[botID] = name
	lobby.broadcastSeatsUnsafe()
	return botID, nil
}

// IsSeatedUnsafe reports whether a user occupies a seat. Assumes lock is held.
func (lobby *Lobby) IsSeatedUnsafe(userID uuid.UUID) bool {
	for _, id := range lobby.Seats {
		if id == userID {
			return true
		}
	}
	return false
}

// broadcastSeatsUnsafe notifies everyone of the seating chart. Assumes lock is held.
func (lobby *Lobby) broadcastSeatsUnsafe() {
	seats := make([]map[string]interface{}, 0, len(lobby.Seats))
	for pos, id := range lobby.Seats {
		name := lobby.Bots[id]
		isBot := name != ""
		if !isBot {
			if conn, ok := lobby.Connections[id]; ok {
				name = conn.Username
			}
		}
		seats = append(seats, map[string]interface{}{
			"seat":     pos,
			"user_id":  id.String(),
			"username": name,
			"is_bot":   isBot,
		})
	}
	lobby.BroadcastAllUnsafe(map[string]interface{}{
		"type":  "seat_update",
		"seats": seats,
	})
}

// RemoveUser removes a user entirely: connection, seat, ready state.
// Triggers OnEmpty when the last connection leaves. Acquires lock.
func (lobby *Lobby) RemoveUser(userID uuid.UUID) {
	lobby.Mu.Lock()

	conn, connExists := lobby.Connections[userID]
	if !connExists {
		delete(lobby.Users, userID)
		lobby.Mu.Unlock()
		log.Printf("Lobby %s: Attempted to remove user %s who was not connected.", lobby.ID, userID)
		return
	}

	log.Printf("Lobby %s: Removing user %s.", lobby.ID, userID)

	go func(ch chan map[string]interface{}, cancelFunc func()) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Lobby %s: Recovered from panic closing OutChan for user %s: %v", lobby.ID, userID, r)
			}
		}()
		close(ch)
		if cancelFunc != nil {
			cancelFunc()
		}
	}(conn.OutChan, conn.Cancel)

	delete(lobby.Users, userID)
	delete(lobby.Connections, userID)
	delete(lobby.ReadyStates, userID)
	if !lobby.InGame {
		lobby.UnseatUserUnsafe(userID)
	}

	lobbyLeavePayload := lobby.getLobbyLeavePayloadUnsafe(userID)
	isEmpty := len(lobby.Connections) == 0
	onEmptyCallback := lobby.OnEmpty

	if lobby.CountdownTimer != nil {
		lobby.CancelCountdownUnsafe()
	}

	lobby.Mu.Unlock()

	lobby.BroadcastAll(lobbyLeavePayload)

	if isEmpty && onEmptyCallback != nil {
		log.Printf("Lobby %s is now empty. Triggering OnEmpty callback.", lobby.ID)
		onEmptyCallback(lobby.ID)
	}
}

// StartCountdownUnsafe begins a pre-game countdown. The fired callback
// is only run if this timer is still the current one. Assumes lock is held.
func (lobby *Lobby) StartCountdownUnsafe(seconds int, callback func(*Lobby)) bool {
	if lobby.InGame || lobby.CountdownTimer != nil {
		log.Printf("Lobby %s: Cannot start countdown (InGame: %v, TimerExists: %v)", lobby.ID, lobby.InGame, lobby.CountdownTimer != nil)
		return false
	}
	if len(lobby.Seats) < 2 {
		log.Printf("Lobby %s: Cannot start countdown with fewer than 2 seated players.", lobby.ID)
		return false
	}

	log.Printf("Lobby %s: Starting %d second countdown.", lobby.ID, seconds)
	lobby.BroadcastAllUnsafe(map[string]interface{}{
		"type":    "lobby_countdown_start",
		"seconds": seconds,
	})

	var timer *time.Timer
	timer = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
		lobby.Mu.Lock()
		if lobby.CountdownTimer == timer {
			lobby.CountdownTimer = nil
			lobby.Mu.Unlock()
			callback(lobby)
		} else {
			log.Printf("Lobby %s: Stale countdown timer fired. Ignoring.", lobby.ID)
			lobby.Mu.Unlock()
		}
	})
	lobby.CountdownTimer = timer
	return true
}

// StartCountdown starts a countdown. Assumes caller holds the lock.
func (lobby *Lobby) StartCountdown(seconds int, callback func(*Lobby)) bool {
	return lobby.StartCountdownUnsafe(seconds, callback)
}

// CancelCountdownUnsafe stops any existing countdown. Assumes lock is held.
func (lobby *Lobby) CancelCountdownUnsafe() {
	if lobby.CountdownTimer != nil {
		log.Printf("Lobby %s: Cancelling countdown.", lobby.ID)
		if lobby.CountdownTimer.Stop() {
			lobby.CountdownTimer = nil
			lobby.BroadcastAllUnsafe(map[string]interface{}{
				"type": "lobby_countdown_cancel",
			})
		} else {
			lobby.CountdownTimer = nil
		}
	}
}

// CancelCountdown stops any existing countdown. Assumes caller holds the lock.
func (lobby *Lobby) CancelCountdown() {
	lobby.CancelCountdownUnsafe()
}

// MarkUserReadyUnsafe sets a user's ready state to true. Returns true
// if a countdown should be started. Assumes lock is held.
func (lobby *Lobby) MarkUserReadyUnsafe(userID uuid.UUID) bool {
	conn, ok := lobby.Connections[userID]
	if !ok {
		log.Printf("Lobby %s: Cannot mark non-connected user %s as ready (unsafe).", lobby.ID, userID)
		return false
	}
	if lobby.ReadyStates[userID] {
		return false
	}

	lobby.ReadyStates[userID] = true
	log.Printf("Lobby %s: User %s marked as READY (unsafe).", lobby.ID, userID)

	lobby.BroadcastAllUnsafe(map[string]interface{}{
		"type":     "ready_update",
		"user_id":  userID.String(),
		"username": conn.Username,
		"is_ready": true,
	})

	return lobby.AreAllSeatedReadyUnsafe() && lobby.LobbySettings.AutoStart && !lobby.InGame
}

// MarkUserReady sets ready state. Assumes caller holds the lock.
func (lobby *Lobby) MarkUserReady(userID uuid.UUID) bool {
	return lobby.MarkUserReadyUnsafe(userID)
}

// MarkUserUnreadyUnsafe clears a user's ready state and cancels any
// countdown. Assumes lock is held.
func (lobby *Lobby) MarkUserUnreadyUnsafe(userID uuid.UUID) {
	conn, ok := lobby.Connections[userID]
	if !ok {
		log.Printf("Lobby %s: Cannot mark non-connected user %s as unready (unsafe).", lobby.ID, userID)
		return
	}
	if !lobby.ReadyStates[userID] {
		return
	}

	lobby.ReadyStates[userID] = false
	log.Printf("Lobby %s: User %s marked as UNREADY (unsafe).", lobby.ID, userID)

	lobby.BroadcastAllUnsafe(map[string]interface{}{
		"type":     "ready_update",
		"user_id":  userID.String(),
		"username": conn.Username,
		"is_ready": false,
	})

	lobby.CancelCountdownUnsafe()
}

// MarkUserUnready sets unready state. Assumes caller holds the lock.
func (lobby *Lobby) MarkUserUnready(userID uuid.UUID) {
	lobby.MarkUserUnreadyUnsafe(userID)
}

// AreAllSeatedReadyUnsafe checks readiness of every seated human. Bots
// are always ready. Requires at least two seats filled. Assumes lock is held.
func (lobby *Lobby) AreAllSeatedReadyUnsafe() bool {
	if len(lobby.Seats) < 2 {
		return false
	}
	for _, id := range lobby.Seats {
		if _, isBot := lobby.Bots[id]; isBot {
			continue
		}
		if !lobby.ReadyStates[id] {
			return false
		}
	}
	return true
}

// AreAllSeatedReady checks readiness (acquires lock).
func (lobby *Lobby) AreAllSeatedReady() bool {
	lobby.Mu.Lock()
	defer lobby.Mu.Unlock()
	return lobby.AreAllSeatedReadyUnsafe()
}

// BroadcastAllUnsafe sends a message to every connection. Assumes lock is held.
func (lobby *Lobby) BroadcastAllUnsafe(msg map[string]interface{}) {
	connsToSend := make([]*LobbyConnection, 0, len(lobby.Connections))
	for _, conn := range lobby.Connections {
		connsToSend = append(connsToSend, conn)
	}
	for _, conn := range connsToSend {
		conn.Write(msg)
	}
}

// BroadcastAll sends msg to every connected user. Assumes caller holds the lock.
func (lobby *Lobby) BroadcastAll(msg map[string]interface{}) {
	lobby.BroadcastAllUnsafe(msg)
}

// GetLobbyStatusPayloadUnsafe gathers current user status. Assumes lock is held.
func (lobby *Lobby) GetLobbyStatusPayloadUnsafe() map[string]interface{} {
	users := []map[string]interface{}{}
	for userID, conn := range lobby.Connections {
		seat := -1
		for pos, id := range lobby.Seats {
			if id == userID {
				seat = pos
				break
			}
		}
		users = append(users, map[string]interface{}{
			"id":       userID.String(),
			"username": conn.Username,
			"is_host":  conn.IsHost,
			"is_ready": lobby.ReadyStates[userID],
			"seat":     seat,
		})
	}
	for botID, name := range lobby.Bots {
		seat := -1
		for pos, id := range lobby.Seats {
			if id == botID {
				seat = pos
				break
			}
		}
		users = append(users, map[string]interface{}{
			"id":       botID.String(),
			"username": name,
			"is_host":  false,
			"is_ready": true,
			"is_bot":   true,
			"seat":     seat,
		})
	}
	return map[string]interface{}{
		"users": users,
	}
}

func (lobby *Lobby) getLobbyJoinPayloadUnsafe(userID uuid.UUID) map[string]interface{} {
	isHost := false
	username := "Unknown"
	if conn, ok := lobby.Connections[userID]; ok {
		isHost = conn.IsHost
		username = conn.Username
	}
	return map[string]interface{}{
		"type":         "lobby_update",
		"user_join":    userID.String(),
		"username":     username,
		"is_host":      isHost,
		"lobby_status": lobby.GetLobbyStatusPayloadUnsafe(),
	}
}

func (lobby *Lobby) getLobbyLeavePayloadUnsafe(userID uuid.UUID) map[string]interface{} {
	username := "Unknown"
	if conn, ok := lobby.Connections[userID]; ok {
		username = conn.Username
	}
	return map[string]interface{}{
		"type":         "lobby_update",
		"user_left":    userID.String(),
		"username":     username,
		"lobby_status": lobby.GetLobbyStatusPayloadUnsafe(),
	}
}

// BroadcastChatUnsafe broadcasts a chat message from the sender's
// connection. Assumes lock is held.
func (lobby *Lobby) BroadcastChatUnsafe(senderConn *LobbyConnection, msg string) {
	username := senderConn.Username
	if username == "" {
		username = "Unknown"
	}
	lobby.BroadcastAllUnsafe(map[string]interface{}{
		"type":     "chat",
		"user_id":  senderConn.UserID.String(),
		"username": username,
		"msg":      msg,
		"ts":       time.Now().Unix(),
	})
}

// BroadcastChat broadcasts a chat message. Assumes caller holds the lock.
func (lobby *Lobby) BroadcastChat(userID uuid.UUID, msg string) {
	conn, ok := lobby.Connections[userID]
	if !ok {
		log.Printf("Lobby %s: Cannot broadcast chat for disconnected user %s", lobby.ID, userID)
		return
	}
	lobby.BroadcastChatUnsafe(conn, msg)
}

// getLobbyStatePayloadUnsafe prepares the full state message. Assumes lock is held.
func (lobby *Lobby) getLobbyStatePayloadUnsafe(userID uuid.UUID) map[string]interface{} {
	isHost := false
	if conn, ok := lobby.Connections[userID]; ok {
		isHost = conn.IsHost
	}

	gameIDStr := ""
	if lobby.GameID != uuid.Nil {
		gameIDStr = lobby.GameID.String()
	}

	return map[string]interface{}{
		"type":         "lobby_state",
		"lobby_id":     lobby.ID.String(),
		"host_id":      lobby.HostUserID.String(),
		"your_id":      userID.String(),
		"your_is_host": isHost,
		"lobby_type":   lobby.Type,
		"invite_code":  lobby.InviteCode,
		"in_game":      lobby.InGame,
		"game_id":      gameIDStr,
		"house_rules":  lobby.HouseRules,
		"settings": map[string]interface{}{
			"autoStart": lobby.LobbySettings.AutoStart,
		},
		"lobby_status": lobby.GetLobbyStatusPayloadUnsafe(),
	}
}

// SendLobbyState sends the full current lobby state to a specific
// user. Assumes caller holds the lock.
func (lobby *Lobby) SendLobbyState(userID uuid.UUID) {
	conn, ok := lobby.Connections[userID]
	if !ok {
		log.Printf("Lobby %s: Cannot send lobby state, user %s not connected.", lobby.ID, userID)
		return
	}
	conn.Write(lobby.getLobbyStatePayloadUnsafe(userID))
}

// BroadcastRulesUpdateUnsafe notifies all users of the current rules.
// Assumes lock is held.
func (lobby *Lobby) BroadcastRulesUpdateUnsafe() {
	lobby.BroadcastAllUnsafe(map[string]interface{}{
		"type": "lobby_rules_updated",
		"rules": map[string]interface{}{
			"house_rules": lobby.HouseRules,
			"settings":    lobby.LobbySettings,
		},
	})
}

// UpdateUnsafe applies partial settings updates (house rules, lobby
// settings). Assumes lock is HELD by the caller.
func (lobby *Lobby) UpdateUnsafe(rules map[string]interface{}) error {
	changed := false

	tempHR := lobby.HouseRules
	if hrData, ok := rules["houseRules"].(map[string]interface{}); ok {
		if err := tempHR.Update(hrData); err != nil {
			log.Printf("Lobby %s: Error updating house rules (unsafe): %v", lobby.ID, err)
			return err
		}
		if tempHR != lobby.HouseRules {
			lobby.HouseRules = tempHR
			changed = true
		}
	}

	tempLS := lobby.LobbySettings
	if lsData, ok := rules["settings"].(map[string]interface{}); ok {
		if autoStart, ok := lsData["autoStart"].(bool); ok && tempLS.AutoStart != autoStart {
			tempLS.AutoStart = autoStart
			lobby.LobbySettings = tempLS
			changed = true
		}
	}

	if changed {
		lobby.BroadcastRulesUpdateUnsafe()
	}
	return nil
}

// Update applies changes. Assumes caller holds the lock.
func (lobby *Lobby) Update(rules map[string]interface{}) error {
	return lobby.UpdateUnsafe(rules)
}

// GetConnectionsUnsafe returns the live connections. Assumes lock is held.
func (l *Lobby) GetConnectionsUnsafe() []*LobbyConnection {
	conns := make([]*LobbyConnection, 0, len(l.Connections))
	for _, conn := range l.Connections {
		conns = append(conns, conn)
	}
	return conns
}
