// internal/game/errors.go
package game

import "errors"

// Validation errors.
var (
	ErrInvalidSetting    = errors.New("invalid setting")
	ErrInvalidWordIndex  = errors.New("word index out of range")
	ErrNoActiveSecret    = errors.New("no active secret")
	ErrUnsupported       = errors.New("operation not supported by this game type")
	ErrInvalidGameType   = errors.New("invalid game type")
	ErrInvalidMessageLen = errors.New("invalid message length")
)

// Authorization errors.
var (
	ErrNotLeader       = errors.New("only the leader can do that")
	ErrNotTurnHolder   = errors.New("only the turn holder can do that")
	ErrTurnHolderGuess = errors.New("turn holder cannot submit answers")
	ErrMuted           = errors.New("player cannot send messages yet")
)

// Capacity and registry errors.
var (
	ErrSessionFull     = errors.New("room is full")
	ErrSessionNotFound = errors.New("room not found")
	ErrAlreadyMember   = errors.New("player already in a room")
	ErrQuotaExceeded   = errors.New("too many rooms for this address")
	ErrRateLimited     = errors.New("rate limited")
)

var (
	ErrAlreadyStarted   = errors.New("game already started")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
)

// Consistency errors. These never reach clients.
var (
	ErrSessionEnded  = errors.New("game has ended")
	ErrSessionClosed = errors.New("room is closed")
	ErrNotMember     = errors.New("player is not a member of this room")
	ErrWrongPhase    = errors.New("not allowed in the current phase")
)

// ErrorKind groups errors by how callers should react.
type ErrorKind int

const (
	KindFatal ErrorKind = iota
	KindValidation
	KindAuthorization
	KindCapacity
	KindConsistency
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindCapacity:
		return "capacity"
	case KindConsistency:
		return "consistency"
	default:
		return "fatal"
	}
}

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidSetting, KindValidation},
	{ErrInvalidWordIndex, KindValidation},
	{ErrNoActiveSecret, KindValidation},
	{ErrUnsupported, KindValidation},
	{ErrInvalidGameType, KindValidation},
	{ErrInvalidMessageLen, KindValidation},
	{ErrNotLeader, KindAuthorization},
	{ErrNotTurnHolder, KindAuthorization},
	{ErrTurnHolderGuess, KindAuthorization},
	{ErrMuted, KindAuthorization},
	{ErrSessionFull, KindCapacity},
	{ErrSessionNotFound, KindCapacity},
	{ErrAlreadyMember, KindCapacity},
	{ErrQuotaExceeded, KindCapacity},
	{ErrRateLimited, KindCapacity},
	{ErrAlreadyStarted, KindValidation},
	{ErrNotEnoughPlayers, KindValidation},
	{ErrSessionEnded, KindConsistency},
	{ErrSessionClosed, KindConsistency},
	{ErrNotMember, KindConsistency},
	{ErrWrongPhase, KindConsistency},
}

// Kind classifies err. Unknown errors are fatal.
func Kind(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindFatal
}

// Silent reports whether err should be dropped instead of reported to the client.
func Silent(err error) bool {
	return err != nil && Kind(err) == KindConsistency
}

// Error codes sent to clients.
const (
	CodeInvalidGameType   = 101
	CodeAlreadyInRoom     = 102
	CodeRoomNotFound      = 103
	CodeRoomFull          = 104
	CodeQuotaExceeded     = 105
	CodeRateLimited       = 106
	CodeNotLeader         = 110
	CodeNotEnoughPlayers  = 111
	CodeNotTurnHolder     = 112
	CodeInvalidSetting    = 113
	CodeInvalidWordIndex  = 114
	CodeNoActiveSecret    = 115
	CodeInvalidMessageLen = 116
	CodeMuted             = 117
	CodeUnsupported       = 118
	CodeAlreadyStarted    = 120
	CodeInternal          = 199
)

var codes = []struct {
	err  error
	code int
}{
	{ErrInvalidGameType, CodeInvalidGameType},
	{ErrAlreadyMember, CodeAlreadyInRoom},
	{ErrSessionNotFound, CodeRoomNotFound},
	{ErrSessionFull, CodeRoomFull},
	{ErrQuotaExceeded, CodeQuotaExceeded},
	{ErrRateLimited, CodeRateLimited},
	{ErrNotLeader, CodeNotLeader},
	{ErrMuted, CodeMuted},
	{ErrNotEnoughPlayers, CodeNotEnoughPlayers},
	{ErrNotTurnHolder, CodeNotTurnHolder},
	{ErrTurnHolderGuess, CodeNotTurnHolder},
	{ErrUnsupported, CodeUnsupported},
	{ErrInvalidSetting, CodeInvalidSetting},
	{ErrInvalidWordIndex, CodeInvalidWordIndex},
	{ErrNoActiveSecret, CodeNoActiveSecret},
	{ErrInvalidMessageLen, CodeInvalidMessageLen},
	{ErrAlreadyStarted, CodeAlreadyStarted},
}

// Code maps err to the numeric code reported to clients.
func Code(err error) int {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
