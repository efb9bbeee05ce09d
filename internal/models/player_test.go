package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewPlayer(t *testing.T) {
	id := uuid.New()
	p := NewPlayer(id, "ann", "10.0.0.1")
	assert.Equal(t, id, p.ID)
	assert.True(t, p.Connected)
	assert.Equal(t, uuid.Nil, p.RoomID)
	assert.False(t, p.IsLeader)
	assert.False(t, p.LastSeen.IsZero())
}

func TestAddScoreAccumulates(t *testing.T) {
	p := NewPlayer(uuid.New(), "ann", "10.0.0.1")
	p.AddScore(75)
	assert.Equal(t, 75, p.RoundScore)
	assert.Equal(t, 75, p.Score)

	p.ResetRound()
	p.AddScore(40)
	assert.Equal(t, 40, p.RoundScore)
	assert.Equal(t, 115, p.Score)

	p.ResetRound()
	p.AddScore(-10)
	assert.Equal(t, 0, p.RoundScore)
	assert.Equal(t, 115, p.Score, "total never decreases")
}

func TestResetRoundClearsAnswer(t *testing.T) {
	p := NewPlayer(uuid.New(), "ann", "10.0.0.1")
	p.HasAnswered = true
	p.AddScore(50)
	p.ResetRound()
	assert.False(t, p.HasAnswered)
	assert.Zero(t, p.RoundScore)
	assert.Equal(t, 50, p.Score)
}
