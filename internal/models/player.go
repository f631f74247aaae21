// internal/models/player.go
package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Player is a participant in a game session. Joining creates a Player;
// only players with Seated set take part in the turn rotation, ordered
// by SeatPosition (dense 0..k-1 among the seated subset).
type Player struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Hand         []*Card         `json:"hand"`
	Seated       bool            `json:"seated"`
	SeatPosition int             `json:"seatPosition"`
	IsHost       bool            `json:"isHost"`
	IsBot        bool            `json:"isBot"`
	Connected    bool            `json:"connected"`
	Conn         *websocket.Conn `json:"-"`

	User *User `json:"-"`
}

// HandPoints sums the scoring value of every card left in the hand.
func (p *Player) HandPoints() int {
	sum := 0
	for _, c := range p.Hand {
		sum += c.Points()
	}
	return sum
}
