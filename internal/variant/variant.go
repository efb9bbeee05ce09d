// internal/variant/variant.go
//
// Package variant holds the per-game-type strategies: how a secret is produced,
// how a submission is judged, and which candidate words a turn-holder may pick from.
package variant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Kind identifies a game type. Values match the client-facing game ids.
type Kind int

const (
	Shuffle  Kind = 1
	PickWord Kind = 2
	Riddles  Kind = 3
)

func (k Kind) String() string {
	switch k {
	case Shuffle:
		return "shuffle"
	case PickWord:
		return "pickword"
	case Riddles:
		return "riddle"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Difficulty selects the word list. Mixed picks one of the other three per secret.
type Difficulty int

const (
	Easy   Difficulty = 1
	Normal Difficulty = 2
	Hard   Difficulty = 3
	Mixed  Difficulty = 4
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	return d >= Easy && d <= Mixed
}

// CandidateCount is the number of words offered to a turn-holder.
const CandidateCount = 3

// closeDistance is the largest edit distance still reported as a close guess.
const closeDistance = 2

var (
	ErrUnknownKind       = errors.New("unknown game type")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrNotTurnBased      = errors.New("variant has no turns")
	ErrTurnBased         = errors.New("variant produces secrets per turn")
)

// Secret is the value players try to guess. Answers[0] is the canonical answer.
type Secret struct {
	Answers []string
	Hint    string
}

// Word returns the canonical answer.
func (s Secret) Word() string {
	if len(s.Answers) == 0 {
		return ""
	}
	return s.Answers[0]
}

// Strategy is the behavior that differs between game types.
type Strategy interface {
	Kind() Kind
	TurnBased() bool
	// Produce creates the secret for a round. Turn-based strategies return ErrTurnBased.
	Produce(d Difficulty) (Secret, error)
	// Candidates lists the words a turn-holder chooses from.
	Candidates(d Difficulty) ([]string, error)
	// FromWord builds the turn secret for a chosen candidate.
	FromWord(word string) (Secret, error)
	// Check reports whether submission matches the secret.
	Check(secret Secret, submission string) bool
}

// ParseKind validates a client-facing game id.
func ParseKind(id int) (Kind, error) {
	switch k := Kind(id); k {
	case Shuffle, PickWord, Riddles:
		return k, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownKind, id)
	}
}

// New returns the strategy for kind backed by bank.
func New(kind Kind, bank *Bank) (Strategy, error) {
	switch kind {
	case Shuffle:
		return &shuffleStrategy{bank: bank}, nil
	case PickWord:
		return &pickWordStrategy{bank: bank}, nil
	case Riddles:
		return &riddleStrategy{bank: bank}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
}

// Normalize lowercases and trims a word or submission.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// matchExact compares a single accepted answer, checking length first.
func matchExact(answer, submission string) bool {
	submission = Normalize(submission)
	if len(answer) != len(submission) {
		return false
	}
	return answer == submission
}

// IsClose reports whether an incorrect submission is within a small edit distance of a single-answer secret.
func IsClose(secret Secret, submission string) bool {
	if len(secret.Answers) != 1 {
		return false
	}
	answer := secret.Answers[0]
	if len(answer) <= closeDistance+1 {
		return false
	}
	d := levenshtein.ComputeDistance(answer, Normalize(submission))
	return d > 0 && d <= closeDistance
}
