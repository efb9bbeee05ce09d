// internal/game/notifier.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/models"
	"github.com/jason-s-yu/wordparty/internal/variant"
)

// Member is a read-only view of a player, safe to hand outside the session.
type Member struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Score        int       `json:"score"`
	RoundScore   int       `json:"roundScore"`
	IsLeader     bool      `json:"isLeader"`
	IsTurnHolder bool      `json:"isTurn"`
	HasAnswered  bool      `json:"hasAnswered"`
}

// Room identifies the audience of a notification.
type Room struct {
	ID       uuid.UUID
	GameType variant.Kind
	Members  []Member
}

// Except returns every member but id.
func (r Room) Except(id uuid.UUID) []Member {
	out := make([]Member, 0, len(r.Members))
	for _, m := range r.Members {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

// Answered returns the members who already found the current secret.
func (r Room) Answered() []Member {
	var out []Member
	for _, m := range r.Members {
		if m.HasAnswered {
			out = append(out, m)
		}
	}
	return out
}

// Leader returns the current leader, or false for an empty room.
func (r Room) Leader() (Member, bool) {
	for _, m := range r.Members {
		if m.IsLeader {
			return m, true
		}
	}
	return Member{}, false
}

// Outcome is the result of judging a submitted answer.
type Outcome int

const (
	OutcomeRegular         Outcome = 0
	OutcomeJustCorrect     Outcome = 1
	OutcomeAlreadyAnswered Outcome = 2
)

// ChatMessage is a submission relayed to the room. For OutcomeJustCorrect, Text is the
// answer and must only be shown to its author.
type ChatMessage struct {
	PlayerID uuid.UUID
	Name     string
	Text     string
	Outcome  Outcome
}

// Notifier receives every outbound event of a session. Calls are made from the
// session's own goroutine and must not call back into the session.
type Notifier interface {
	GameStarted(room Room)
	RoundStarted(room Room, round int, hint string)
	TurnStarted(room Room, round, turn int, playerID uuid.UUID)
	WordSelection(room Room, actingID uuid.UUID, candidates []string)
	WordChosen(room Room, actingID uuid.UUID, word, hint string, auto bool)
	TimerStarted(room Room, seconds int)
	Scores(room Room, scores map[uuid.UUID]int)
	GameEnded(room Room, standings []models.Standing)
	PlayerJoined(room Room, player Member)
	PlayerLeft(room Room, playerID, newLeaderID uuid.UUID)
	SettingChanged(room Room, settingID, value int)
	Chat(room Room, msg ChatMessage)
	CloseGuess(room Room, playerID uuid.UUID)
	Hint(room Room, playerID uuid.UUID, text string)
}

// Recorder receives a copy of every lifecycle event for the historian.
type Recorder interface {
	Record(rec models.EventRecord)
}

// Snapshot is a point-in-time copy of a session's public state.
type Snapshot struct {
	ID               uuid.UUID    `json:"id"`
	GameType         variant.Kind `json:"gameId"`
	Phase            Phase        `json:"phase"`
	Started          bool         `json:"started"`
	Ended            bool         `json:"ended"`
	Round            int          `json:"round"`
	Turn             int          `json:"turn,omitempty"`
	Hint             string       `json:"hint,omitempty"`
	RemainingSeconds int          `json:"remainingTime,omitempty"`
	TurnHolderID     uuid.UUID    `json:"turnHolderId,omitempty"`
	Settings         Settings     `json:"settings"`
	DefaultSettings  bool         `json:"-"`
	MaxSlots         int          `json:"maxSlots"`
	Members          []Member     `json:"members"`
	TimerActive      bool         `json:"-"`
}

// Leader returns the id of the current leader.
func (s Snapshot) Leader() uuid.UUID {
	for _, m := range s.Members {
		if m.IsLeader {
			return m.ID
		}
	}
	return uuid.Nil
}

// Full reports whether no more players may join.
func (s Snapshot) Full() bool {
	return len(s.Members) >= s.MaxSlots
}
