// internal/handlers/lobby_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/kyle-santos/wilduno/internal/auth"
	"github.com/kyle-santos/wilduno/internal/lobby"
)

// TestLobbyCreate checks that /lobby/create builds an ephemeral lobby in memory.
func TestLobbyCreate(t *testing.T) {
	auth.Init() // ephemeral keys, no DB needed
	gs := NewGameServer()

	// ephemeral user ID
	uHost := uuid.New()

	token, _ := auth.CreateJWT(uHost.String())
	// Public lobbies do not need a Redis-backed invite code.
	body := `{"type":"public"}`
	req := httptest.NewRequest("POST", "/lobby/create", bytes.NewBuffer([]byte(body)))
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()

	h := CreateLobbyHandler(gs)
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var newLobby lobby.Lobby
	if err := json.Unmarshal(w.Body.Bytes(), &newLobby); err != nil {
		t.Fatalf("failed to decode lobby: %v", err)
	}
	if newLobby.ID == uuid.Nil {
		t.Fatalf("lobby has no ID")
	}
	if newLobby.HostUserID != uHost {
		t.Fatalf("lobby host mismatch, expected %v got %v", uHost, newLobby.HostUserID)
	}

	stored, exists := gs.LobbyStore.GetLobby(newLobby.ID)
	if !exists {
		t.Fatalf("lobby was not registered in the store")
	}
	if joined, ok := stored.Users[uHost]; !ok || joined {
		t.Fatalf("host should be a pending member of their own lobby")
	}
}

// TestLobbyCreateRejectsBadType checks lobby type validation.
func TestLobbyCreateRejectsBadType(t *testing.T) {
	auth.Init()
	gs := NewGameServer()

	token, _ := auth.CreateJWT(uuid.New().String())
	body := `{"type":"ranked"}`
	req := httptest.NewRequest("POST", "/lobby/create", bytes.NewBuffer([]byte(body)))
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()

	CreateLobbyHandler(gs).ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid lobby type, got %d", w.Code)
	}
}

// TestLobbyCreateRequiresAuth checks that a missing cookie is rejected.
func TestLobbyCreateRequiresAuth(t *testing.T) {
	auth.Init()
	gs := NewGameServer()

	req := httptest.NewRequest("POST", "/lobby/create", bytes.NewBufferString(`{"type":"public"}`))
	w := httptest.NewRecorder()

	CreateLobbyHandler(gs).ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth cookie, got %d", w.Code)
	}
}
