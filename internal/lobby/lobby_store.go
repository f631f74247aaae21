// internal/lobby/lobby_store.go
package lobby

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// LobbyStore manages active ephemeral lobbies in memory.
// It provides thread-safe access to add, retrieve, and delete lobbies.
type LobbyStore struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*Lobby
}

// NewLobbyStore initializes and returns an empty LobbyStore.
func NewLobbyStore() *LobbyStore {
	return &LobbyStore{
		lobbies: make(map[uuid.UUID]*Lobby),
	}
}

// AddLobby adds a new lobby instance to the store. Configure the
// lobby's OnEmpty callback before adding it so the store cleans up
// when the last user leaves.
func (s *LobbyStore) AddLobby(lobby *Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lobbies[lobby.ID]; exists {
		log.Printf("LobbyStore WARNING: Attempted to add lobby %s which already exists.", lobby.ID)
		return
	}
	s.lobbies[lobby.ID] = lobby
	log.Printf("LobbyStore: Added lobby %s.", lobby.ID)
}

// DeleteLobby removes a lobby instance from the store by its ID.
// This is typically called via the lobby's OnEmpty callback.
func (s *LobbyStore) DeleteLobby(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lobbies[id]; exists {
		delete(s.lobbies, id)
		log.Printf("LobbyStore: Deleted lobby %s.", id)
	} else {
		log.Printf("LobbyStore WARNING: Attempted to delete non-existent lobby %s.", id)
	}
}

// GetLobby retrieves a lobby instance from the store by its ID.
func (s *LobbyStore) GetLobby(id uuid.UUID) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	return l, ok
}

// GetLobbies returns a copy of the map containing all active lobbies,
// so callers can iterate without racing store mutations.
func (s *LobbyStore) GetLobbies() map[uuid.UUID]*Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobbiesCopy := make(map[uuid.UUID]*Lobby, len(s.lobbies))
	for k, v := range s.lobbies {
		lobbiesCopy[k] = v
	}
	return lobbiesCopy
}
