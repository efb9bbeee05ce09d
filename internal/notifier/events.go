// internal/notifier/events.go
package notifier

import (
	"html"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/game"
	"github.com/jason-s-yu/wordparty/internal/models"
)

// Event names sent to clients.
const (
	EventRoomCreated   = "roomCreated"
	EventRoomJoined    = "roomJoined"
	EventPlayerJoined  = "playerJoinedParty"
	EventPlayerLeft    = "playerLeftParty"
	EventSettings      = "settingsUpdated"
	EventStart         = "start"
	EventNewRound      = "newRound"
	EventNewTurn       = "newTurn"
	EventSelectingWord = "selectingWord"
	EventWordSelection = "wordSelection"
	EventWordSelected  = "wordSelected"
	EventTimerStarted  = "timerStarted"
	EventScore         = "score"
	EventGameEnded     = "gameEnded"
	EventMessage       = "message"
	EventCorrect       = "correct"
	EventCloseGuess    = "closeGuess"
	EventHint          = "hint"
	EventSlowDown      = "slowDown"
	EventError         = "error"
)

// RoomCreated confirms a creation to the creator.
func (h *Hub) RoomCreated(player *models.Player, snap game.Snapshot) {
	h.SendTo(player.ID, Message{
		"event":    EventRoomCreated,
		"playerId": player.ID,
		"roomId":   snap.ID,
		"gameId":   snap.GameType,
		"username": player.Name,
		"maxSlots": snap.MaxSlots,
	})
}

// RoomJoined sends the join snapshot to the joining player.
func (h *Hub) RoomJoined(playerID uuid.UUID, snap game.Snapshot) {
	msg := Message{
		"event":    EventRoomJoined,
		"playerId": playerID,
		"roomId":   snap.ID,
		"gameId":   snap.GameType,
		"party":    snap.Members,
		"maxSlots": snap.MaxSlots,
	}
	if !snap.DefaultSettings {
		msg["settings"] = snap.Settings
	}
	if snap.Started && !snap.Ended {
		msg["roundPhase"] = snap.Phase
		msg["round"] = snap.Round
		msg["word"] = snap.Hint
		if snap.RemainingSeconds > 0 {
			msg["remainingTime"] = snap.RemainingSeconds
		}
		if snap.TurnHolderID != uuid.Nil {
			msg["turnHolderId"] = snap.TurnHolderID
		}
		if snap.Phase == game.PhaseScores {
			msg["scores"] = roundScores(snap.Members)
		}
	}
	h.SendTo(playerID, msg)
}

// ErrorMessage builds the error event for err.
func ErrorMessage(err error) Message {
	return Message{
		"event":  EventError,
		"code":   game.Code(err),
		"reason": err.Error(),
	}
}

// Error reports err to one player with its client code.
func (h *Hub) Error(playerID uuid.UUID, err error) {
	h.SendTo(playerID, ErrorMessage(err))
}

// SlowDown tells a player their messages are being dropped.
func (h *Hub) SlowDown(playerID uuid.UUID) {
	h.SendTo(playerID, Message{"event": EventSlowDown})
}

func (h *Hub) GameStarted(room game.Room) {
	h.toAll(room, Message{"event": EventStart})
}

func (h *Hub) RoundStarted(room game.Room, round int, hint string) {
	msg := Message{"event": EventNewRound, "round": round}
	if hint != "" {
		msg["word"] = hint
	}
	h.toAll(room, msg)
}

func (h *Hub) TurnStarted(room game.Room, round, turn int, playerID uuid.UUID) {
	h.toAll(room, Message{"event": EventNewTurn, "round": round, "turn": turn, "playerId": playerID})
}

// WordSelection offers the candidates privately and tells everyone else to wait.
func (h *Hub) WordSelection(room game.Room, actingID uuid.UUID, candidates []string) {
	words := make([]Message, len(candidates))
	for i, w := range candidates {
		words[i] = Message{"id": i, "word": w}
	}
	h.SendTo(actingID, Message{"event": EventWordSelection, "words": words})
	h.toAllBut(room, actingID, Message{"event": EventSelectingWord, "playerId": actingID})
}

// WordChosen reveals the word to the turn holder and only its mask to the guessers.
func (h *Hub) WordChosen(room game.Room, actingID uuid.UUID, word, hint string, auto bool) {
	h.SendTo(actingID, Message{"event": EventWordSelected, "word": word, "auto": auto})
	h.toAllBut(room, actingID, Message{"event": EventWordSelected, "word": hint})
}

func (h *Hub) TimerStarted(room game.Room, seconds int) {
	h.toAll(room, Message{"event": EventTimerStarted, "seconds": seconds})
}

func (h *Hub) Scores(room game.Room, scores map[uuid.UUID]int) {
	byID := make(map[string]int, len(scores))
	for id, s := range scores {
		byID[id.String()] = s
	}
	h.toAll(room, Message{"event": EventScore, "scores": byID})
}

func (h *Hub) GameEnded(room game.Room, standings []models.Standing) {
	h.toAll(room, Message{"event": EventGameEnded, "standings": standings})
}

func (h *Hub) PlayerJoined(room game.Room, player game.Member) {
	h.toAllBut(room, player.ID, Message{"event": EventPlayerJoined, "player": player})
}

func (h *Hub) PlayerLeft(room game.Room, playerID, newLeaderID uuid.UUID) {
	msg := Message{"event": EventPlayerLeft, "playerId": playerID}
	if newLeaderID != uuid.Nil {
		msg["newLeaderId"] = newLeaderID
	}
	h.toAll(room, msg)
}

// SettingChanged is sent to everyone but the leader, who made the change.
func (h *Hub) SettingChanged(room game.Room, settingID, value int) {
	msg := Message{"event": EventSettings, "sid": settingID, "value": value}
	if leader, ok := room.Leader(); ok {
		h.toAllBut(room, leader.ID, msg)
		return
	}
	h.toAll(room, msg)
}

// Chat routes a submission by outcome. A correct answer is never shown to the
// players still guessing, and a message from someone who already answered only
// reaches the others who answered.
func (h *Hub) Chat(room game.Room, msg game.ChatMessage) {
	base := Message{"event": EventMessage, "type": int(msg.Outcome), "from": msg.Name}
	switch msg.Outcome {
	case game.OutcomeJustCorrect:
		h.toAllBut(room, msg.PlayerID, with(base, "playerId", msg.PlayerID))
		h.SendTo(msg.PlayerID, Message{"event": EventCorrect, "message": msg.Text})
	case game.OutcomeAlreadyAnswered:
		h.toMembers(room.Answered(), with(base, "message", msg.Text))
	default:
		h.toAll(room, with(base, "message", msg.Text))
	}
}

func (h *Hub) CloseGuess(room game.Room, playerID uuid.UUID) {
	h.SendTo(playerID, Message{"event": EventCloseGuess})
}

// Hint relays the turn holder's free text, HTML-escaped, to the guessers.
func (h *Hub) Hint(room game.Room, playerID uuid.UUID, text string) {
	h.toAllBut(room, playerID, Message{"event": EventHint, "hint": html.EscapeString(text)})
}

func with(msg Message, key string, value interface{}) Message {
	out := make(Message, len(msg)+1)
	for k, v := range msg {
		out[k] = v
	}
	out[key] = value
	return out
}

func roundScores(members []game.Member) map[string]int {
	out := make(map[string]int, len(members))
	for _, m := range members {
		out[m.ID.String()] = m.RoundScore
	}
	return out
}
