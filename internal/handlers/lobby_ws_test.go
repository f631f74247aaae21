// internal/handlers/lobby_ws_test.go
package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kyle-santos/wilduno/internal/lobby"
)

// joinForWS registers a connected user directly, skipping the DB-backed
// AddConnection path.
func joinForWS(l *lobby.Lobby, host bool) (*lobby.LobbyConnection, uuid.UUID) {
	id := uuid.New()
	conn := &lobby.LobbyConnection{
		UserID:  id,
		Cancel:  func() {},
		OutChan: make(chan map[string]interface{}, 32),
		IsHost:  host,
	}
	l.Users[id] = true
	l.Connections[id] = conn
	l.ReadyStates[id] = false
	return conn, id
}

// dispatch runs one lobby packet through the message handler with the
// lobby lock held, the way the read pump does.
func dispatch(l *lobby.Lobby, conn *lobby.LobbyConnection, packet map[string]interface{}) {
	shouldStart := false
	released := false
	l.Mu.Lock()
	handleLobbyMessage(packet, l, conn, logrus.New(), &shouldStart, func() {
		l.Mu.Unlock()
		released = true
	})
	if !released {
		l.Mu.Unlock()
	}
}

// lastError drains the connection's outbound channel and returns the
// most recent error payload, if any.
func lastError(conn *lobby.LobbyConnection) string {
	msg := ""
	for {
		select {
		case m := <-conn.OutChan:
			if m["type"] == "error" {
				msg, _ = m["message"].(string)
			}
		default:
			return msg
		}
	}
}

func TestHostSeatsAndUnseatsParticipants(t *testing.T) {
	l := lobby.NewLobbyWithDefaults(uuid.New())
	hostConn, hostID := joinForWS(l, true)
	_, guestA := joinForWS(l, false)
	_, guestB := joinForWS(l, false)

	dispatch(l, hostConn, map[string]interface{}{"type": "seat_user", "userID": guestA.String()})
	dispatch(l, hostConn, map[string]interface{}{"type": "seat_user", "userID": hostID.String()})
	dispatch(l, hostConn, map[string]interface{}{
		"type":     "seat_user",
		"userID":   guestB.String(),
		"position": float64(0),
	})

	want := []uuid.UUID{guestB, guestA, hostID}
	if len(l.Seats) != 3 {
		t.Fatalf("expected 3 seats, got %d", len(l.Seats))
	}
	for i, id := range want {
		if l.Seats[i] != id {
			t.Errorf("seat %d: got %s, want %s", i, l.Seats[i], id)
		}
	}

	dispatch(l, hostConn, map[string]interface{}{"type": "unseat_user", "userID": guestA.String()})
	if len(l.Seats) != 2 || l.Seats[0] != guestB || l.Seats[1] != hostID {
		t.Errorf("seats should compact after host unseats a guest, got %v", l.Seats)
	}
}

func TestSeatUserRequiresHost(t *testing.T) {
	l := lobby.NewLobbyWithDefaults(uuid.New())
	joinForWS(l, true)
	guestConn, _ := joinForWS(l, false)
	_, other := joinForWS(l, false)

	dispatch(l, guestConn, map[string]interface{}{"type": "seat_user", "userID": other.String()})
	if len(l.Seats) != 0 {
		t.Fatalf("non-host must not seat other users, got seats %v", l.Seats)
	}
	if lastError(guestConn) == "" {
		t.Error("expected an error payload for the non-host sender")
	}

	dispatch(l, guestConn, map[string]interface{}{"type": "unseat_user", "userID": other.String()})
	if lastError(guestConn) == "" {
		t.Error("expected an error payload for the non-host unseat")
	}
}

func TestSeatUserRejectsStrangers(t *testing.T) {
	l := lobby.NewLobbyWithDefaults(uuid.New())
	hostConn, _ := joinForWS(l, true)

	dispatch(l, hostConn, map[string]interface{}{
		"type":   "seat_user",
		"userID": uuid.New().String(),
	})
	if len(l.Seats) != 0 {
		t.Fatalf("users outside the lobby must not be seated, got %v", l.Seats)
	}
	if lastError(hostConn) == "" {
		t.Error("expected an error payload for the unknown target")
	}
}
