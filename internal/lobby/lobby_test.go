// internal/lobby/lobby_test.go
package lobby

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(userID uuid.UUID, name string) *LobbyConnection {
	return &LobbyConnection{
		UserID:   userID,
		Username: name,
		Cancel:   func() {},
		OutChan:  make(chan map[string]interface{}, 32),
	}
}

// attach registers a connected user without touching the DB-backed
// AddConnection path.
func attach(l *Lobby, name string) uuid.UUID {
	id := uuid.New()
	l.Users[id] = true
	l.Connections[id] = newTestConnection(id, name)
	l.ReadyStates[id] = false
	return id
}

func TestSeatUserCompaction(t *testing.T) {
	l := NewLobbyWithDefaults(uuid.New())
	a := attach(l, "a")
	b := attach(l, "b")
	c := attach(l, "c")

	require.NoError(t, l.SeatUserUnsafe(a))
	require.NoError(t, l.SeatUserUnsafe(b))
	require.NoError(t, l.SeatUserUnsafe(c))
	require.Equal(t, []uuid.UUID{a, b, c}, l.Seats)

	assert.Error(t, l.SeatUserUnsafe(a), "double seating is rejected")

	l.UnseatUserUnsafe(b)
	assert.Equal(t, []uuid.UUID{a, c}, l.Seats, "seats compact after unseating")
	assert.False(t, l.IsSeatedUnsafe(b))
	assert.True(t, l.IsSeatedUnsafe(c))
}

func TestSeatUserAtPosition(t *testing.T) {
	l := NewLobbyWithDefaults(uuid.New())
	a := attach(l, "a")
	b := attach(l, "b")
	c := attach(l, "c")

	require.NoError(t, l.SeatUserUnsafe(a))
	require.NoError(t, l.SeatUserUnsafe(b))

	require.NoError(t, l.SeatUserAtUnsafe(c, 0))
	assert.Equal(t, []uuid.UUID{c, a, b}, l.Seats, "insertion shifts later seats")

	d := attach(l, "d")
	require.NoError(t, l.SeatUserAtUnsafe(d, -1))
	assert.Equal(t, []uuid.UUID{c, a, b, d}, l.Seats, "negative position appends")

	e := attach(l, "e")
	require.NoError(t, l.SeatUserAtUnsafe(e, 99))
	assert.Equal(t, []uuid.UUID{c, a, b, d, e}, l.Seats, "past-the-end position appends")

	assert.Error(t, l.SeatUserAtUnsafe(a, 1), "double seating is rejected")

	l.InGame = true
	f := attach(l, "f")
	assert.Error(t, l.SeatUserAtUnsafe(f, 0), "no seat changes mid-round")
}

func TestSeatLimitEnforced(t *testing.T) {
	l := NewLobbyWithDefaults(uuid.New())
	l.HouseRules.MaxPlayers = 2
	a := attach(l, "a")
	b := attach(l, "b")
	c := attach(l, "c")

	require.NoError(t, l.SeatUserUnsafe(a))
	require.NoError(t, l.SeatUserUnsafe(b))
	assert.Error(t, l.SeatUserUnsafe(c), "seat ceiling comes from house rules")
}

func TestBotsCountAsReady(t *testing.T) {
	l := NewLobbyWithDefaults(uuid.New())
	a := attach(l, "a")
	require.NoError(t, l.SeatUserUnsafe(a))

	botID, err := l.AddBotUnsafe()
	require.NoError(t, err)
	assert.True(t, l.IsSeatedUnsafe(botID))

	assert.False(t, l.AreAllSeatedReadyUnsafe(), "the human is not ready yet")

	shouldStart := l.MarkUserReadyUnsafe(a)
	assert.True(t, l.AreAllSeatedReadyUnsafe(), "bots never block readiness")
	assert.True(t, shouldStart, "autoStart lobbies request a countdown once everyone is ready")
}

func TestReadyRequiresTwoSeats(t *testing.T) {
	l := NewLobbyWithDefaults(uuid.New())
	a := attach(l, "a")
	require.NoError(t, l.SeatUserUnsafe(a))

	l.MarkUserReadyUnsafe(a)
	assert.False(t, l.AreAllSeatedReadyUnsafe(), "a single seat never counts as ready")
}

func TestUnreadyCancelsCountdown(t *testing.T) {
	l := NewLobbyWithDefaults(uuid.New())
	a := attach(l, "a")
	b := attach(l, "b")
	require.NoError(t, l.SeatUserUnsafe(a))
	require.NoError(t, l.SeatUserUnsafe(b))
	l.MarkUserReadyUnsafe(a)
	l.MarkUserReadyUnsafe(b)

	fired := make(chan struct{}, 1)
	started := l.StartCountdownUnsafe(1, func(*Lobby) { fired <- struct{}{} })
	require.True(t, started)
	require.NotNil(t, l.CountdownTimer)

	l.MarkUserUnreadyUnsafe(a)
	assert.Nil(t, l.CountdownTimer, "unready cancels a pending countdown")

	select {
	case <-fired:
		t.Fatal("cancelled countdown must not fire")
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestCountdownFires(t *testing.T) {
	l := NewLobbyWithDefaults(uuid.New())
	a := attach(l, "a")
	b := attach(l, "b")
	require.NoError(t, l.SeatUserUnsafe(a))
	require.NoError(t, l.SeatUserUnsafe(b))

	fired := make(chan struct{}, 1)
	require.True(t, l.StartCountdownUnsafe(1, func(*Lobby) { fired <- struct{}{} }))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown callback never fired")
	}
}

func TestRemoveUserCallsOnEmpty(t *testing.T) {
	l := NewLobbyWithDefaults(uuid.New())
	a := attach(l, "a")

	emptied := false
	l.OnEmpty = func(lobbyID uuid.UUID) {
		assert.Equal(t, l.ID, lobbyID)
		emptied = true
	}

	l.RemoveUser(a)
	assert.True(t, emptied, "the last departure reports an empty lobby")
	assert.Empty(t, l.Connections)
}

func TestUpdateRules(t *testing.T) {
	l := NewLobbyWithDefaults(uuid.New())

	err := l.UpdateUnsafe(map[string]interface{}{
		"houseRules": map[string]interface{}{
			"scoreLimit":      float64(500),
			"allowCrossStack": true,
		},
		"settings": map[string]interface{}{
			"autoStart": false,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 500, l.HouseRules.ScoreLimit)
	assert.True(t, l.HouseRules.AllowCrossStack)
	assert.False(t, l.LobbySettings.AutoStart)
}
