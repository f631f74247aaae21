// internal/handlers/invite.go
package handlers

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kyle-santos/wilduno/internal/cache"
)

// inviteCodeTTL bounds how long a join code stays valid.
const inviteCodeTTL = 24 * time.Hour

// codeAlphabet omits easily-confused characters (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// registerInviteCode allocates a fresh 6-character join code for the
// lobby, retrying on the rare collision.
func registerInviteCode(ctx context.Context, lobbyID uuid.UUID) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := generateCode(6)
		if err != nil {
			return "", err
		}
		if err := cache.StoreInviteCode(ctx, code, lobbyID, inviteCodeTTL); err != nil {
			log.Printf("invite code collision or redis error for lobby %s: %v", lobbyID, err)
			continue
		}
		return code, nil
	}
	return "", errors.New("could not allocate a unique invite code")
}

// releaseInviteCode drops the code once the lobby dies.
func releaseInviteCode(code string) {
	if code == "" || cache.Rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cache.DeleteInviteCode(ctx, code)
}

func generateCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf), nil
}

// JoinByCodeHandler resolves an invite code to its lobby and marks the
// caller invited, so their subsequent lobby WS connection is accepted.
func JoinByCodeHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}

		var req struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
			http.Error(w, "invalid join payload", http.StatusBadRequest)
			return
		}

		lobbyID, err := cache.ResolveInviteCode(r.Context(), req.Code)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				http.Error(w, "invite code not found or expired", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to resolve invite code", http.StatusInternalServerError)
			return
		}

		lob, exists := gs.LobbyStore.GetLobby(lobbyID)
		if !exists {
			http.Error(w, "lobby no longer exists", http.StatusGone)
			return
		}

		lob.Mu.Lock()
		lob.InviteUser(userID)
		lob.Mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"lobby_id": lobbyID.String(),
		})
	}
}
