// internal/listener/listener.go
//
// Package listener decodes and validates inbound commands from a connected player
// and forwards them to that player's session.
package listener

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/game"
	"github.com/jason-s-yu/wordparty/internal/ratelimit"
	"github.com/sirupsen/logrus"
)

// Inbound event names.
const (
	CmdSetSettings  = "setSettings"
	CmdStart        = "start"
	CmdAnswer       = "answer"
	CmdWordSelected = "wordSelected"
	CmdHint         = "hint"
)

var (
	ErrMalformed    = errors.New("malformed command")
	ErrUnknownEvent = errors.New("unknown event")
)

// Session is the subset of a game session the listener drives.
type Session interface {
	Start(playerID uuid.UUID) error
	SetSetting(playerID uuid.UUID, settingID, valueID int) error
	SubmitAnswer(playerID uuid.UUID, text string) (game.AnswerResult, error)
	SelectWord(playerID uuid.UUID, index int) error
	SendHint(playerID uuid.UUID, text string) error
}

// Replier sends direct feedback to the player who issued a command.
type Replier interface {
	Error(playerID uuid.UUID, err error)
	SlowDown(playerID uuid.UUID)
}

// Caller identifies who sent a command.
type Caller struct {
	PlayerID uuid.UUID
	Address  string
}

// limitKey buckets a caller per address and player, so players behind one NAT
// do not share a budget.
func (c Caller) limitKey() string {
	return c.Address + ":" + c.PlayerID.String()
}

type envelope struct {
	Event string `json:"event" validate:"required"`
}

type setSettingsCmd struct {
	SettingID int `json:"sid" validate:"required,min=1,max=3"`
	ValueID   int `json:"id" validate:"required,min=1,max=5"`
}

type answerCmd struct {
	Answer string `json:"answer" validate:"required,max=99"`
}

type wordSelectedCmd struct {
	Index *int `json:"idx" validate:"required,min=0,max=2"`
}

type hintCmd struct {
	Hint string `json:"hint" validate:"required,min=1,max=150"`
}

// Listener validates commands, applies rate limits and dispatches to a Session.
type Listener struct {
	validate *validator.Validate
	chat     ratelimit.Limiter
	hint     ratelimit.Limiter
	reply    Replier
	log      *logrus.Entry
}

// New returns a Listener. chat and hint may be nil to disable limiting.
func New(reply Replier, chat, hint ratelimit.Limiter, logger *logrus.Logger) *Listener {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Listener{
		validate: validator.New(),
		chat:     chat,
		hint:     hint,
		reply:    reply,
		log:      logger.WithField("component", "listener"),
	}
}

// Dispatch handles one raw message. Errors that the player should see are also
// sent back through the Replier; the returned error is for logging only.
func (l *Listener) Dispatch(s Session, c Caller, data []byte) error {
	err := l.dispatch(s, c, data)
	switch {
	case err == nil:
		return nil
	case game.Silent(err):
		l.log.Debugf("Dropped command from %s: %v", c.PlayerID, err)
	case errors.Is(err, game.ErrRateLimited):
		// already answered with slowDown or an error
	default:
		l.reply.Error(c.PlayerID, err)
	}
	return err
}

func (l *Listener) dispatch(s Session, c Caller, data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := l.validate.Struct(env); err != nil {
		return fmt.Errorf("%w: missing event", ErrMalformed)
	}

	switch env.Event {
	case CmdStart:
		return s.Start(c.PlayerID)

	case CmdSetSettings:
		var cmd setSettingsCmd
		if err := l.decode(data, &cmd); err != nil {
			return fmt.Errorf("%w: %v", game.ErrInvalidSetting, err)
		}
		return s.SetSetting(c.PlayerID, cmd.SettingID, cmd.ValueID)

	case CmdAnswer:
		if l.chat != nil && !l.chat.Allow(c.limitKey()) {
			l.reply.SlowDown(c.PlayerID)
			return game.ErrRateLimited
		}
		var cmd answerCmd
		if err := l.decode(data, &cmd); err != nil {
			return fmt.Errorf("%w: %v", game.ErrInvalidMessageLen, err)
		}
		_, err := s.SubmitAnswer(c.PlayerID, cmd.Answer)
		return err

	case CmdWordSelected:
		var cmd wordSelectedCmd
		if err := l.decode(data, &cmd); err != nil {
			return fmt.Errorf("%w: %v", game.ErrInvalidWordIndex, err)
		}
		return s.SelectWord(c.PlayerID, *cmd.Index)

	case CmdHint:
		if l.hint != nil && !l.hint.Allow(c.limitKey()) {
			l.reply.Error(c.PlayerID, game.ErrRateLimited)
			return game.ErrRateLimited
		}
		var cmd hintCmd
		if err := l.decode(data, &cmd); err != nil {
			return fmt.Errorf("%w: %v", game.ErrInvalidMessageLen, err)
		}
		return s.SendHint(c.PlayerID, cmd.Hint)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func (l *Listener) decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	return l.validate.Struct(v)
}
