// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is the per-connection game state of a single participant.
// Once added to a session's membership, a Player is only mutated by that session.
type Player struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"-"`

	Connected bool      `json:"connected"`
	LastSeen  time.Time `json:"-"`

	// RoomID is uuid.Nil while the player is not a member of any room.
	RoomID uuid.UUID `json:"-"`

	IsLeader        bool `json:"isLeader"`
	IsRoomCreator   bool `json:"-"`
	IsTurnHolder    bool `json:"isTurn"`
	CanSelectWord   bool `json:"-"`
	CanSendMessages bool `json:"-"`

	Score       int  `json:"score"`
	RoundScore  int  `json:"roundScore"`
	HasAnswered bool `json:"hasAnswered"`
}

// NewPlayer creates a connected player that has not joined a room yet.
func NewPlayer(id uuid.UUID, name, address string) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		Address:   address,
		Connected: true,
		LastSeen:  time.Now(),
	}
}

// AddScore records the score earned this round/turn and adds it to the total.
func (p *Player) AddScore(score int) {
	if score < 0 {
		score = 0
	}
	p.RoundScore = score
	p.Score += score
}

// ResetRound clears the per-round answer flag and score.
func (p *Player) ResetRound() {
	p.RoundScore = 0
	p.HasAnswered = false
}
