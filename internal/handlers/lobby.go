// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/kyle-santos/wilduno/internal/auth"
	"github.com/kyle-santos/wilduno/internal/lobby"
)

var validLobbyTypes = map[string]bool{
	"private": true,
	"public":  true,
}

// CreateLobbyHandler creates an in-memory lobby with an OnEmpty
// callback for auto-removal, and registers a short invite code in
// Redis for private lobbies.
func CreateLobbyHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie := r.Header.Get("Cookie")
		if !strings.Contains(cookie, "auth_token=") {
			http.Error(w, "missing auth_token", http.StatusUnauthorized)
			return
		}
		token := extractCookieToken(cookie, "auth_token")

		userIDStr, err := auth.AuthenticateJWT(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			http.Error(w, "invalid user id format in token", http.StatusBadRequest)
			return
		}

		lob := lobby.NewLobbyWithDefaults(userID)

		if err := json.NewDecoder(r.Body).Decode(lob); err != nil && err.Error() != "EOF" {
			http.Error(w, "bad lobby request payload", http.StatusBadRequest)
			return
		}

		if lob.Type != "" && !validLobbyTypes[lob.Type] {
			http.Error(w, "invalid lobby type", http.StatusBadRequest)
			return
		}

		// The host is always a member of their own lobby.
		lob.Users[userID] = false

		if lob.Type == "private" {
			code, err := registerInviteCode(r.Context(), lob.ID)
			if err != nil {
				http.Error(w, "failed to allocate invite code", http.StatusInternalServerError)
				return
			}
			lob.InviteCode = code
		}

		lob.OnEmpty = func(lobbyID uuid.UUID) {
			releaseInviteCode(lob.InviteCode)
			gs.LobbyStore.DeleteLobby(lobbyID)
		}

		gs.LobbyStore.AddLobby(lob)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(lob)
	}
}

// ListLobbiesHandler returns the in-memory store for dashboards and debugging.
func ListLobbiesHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie := r.Header.Get("Cookie")
		if !strings.Contains(cookie, "auth_token=") {
			http.Error(w, "missing auth_token", http.StatusUnauthorized)
			return
		}
		token := extractTokenFromCookie(cookie)
		if _, err := auth.AuthenticateJWT(token); err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		lobbies := gs.LobbyStore.GetLobbies()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(lobbies)
	}
}

func extractTokenFromCookie(cookie string) string {
	parts := strings.Split(cookie, "auth_token=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}
