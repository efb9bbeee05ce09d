// internal/models/event_record.go
package models

import "github.com/google/uuid"

// EventRecord captures a single session lifecycle event for the historian.
type EventRecord struct {
	SessionID uuid.UUID              `json:"session_id"`
	GameType  int                    `json:"game_type"`
	Seq       int                    `json:"seq"`
	ActorID   uuid.UUID              `json:"actor_id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp int64                  `json:"timestamp"`
}

// Standing is one player's final placement in a finished game.
type Standing struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	Place    int       `json:"place"`
}
