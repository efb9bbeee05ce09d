// internal/variant/pickword.go
package variant

import (
	"errors"
	"strings"
)

// pickWordStrategy lets the turn-holder choose the word the others guess.
type pickWordStrategy struct {
	bank *Bank
}

func (p *pickWordStrategy) Kind() Kind      { return PickWord }
func (p *pickWordStrategy) TurnBased() bool { return true }

func (p *pickWordStrategy) Produce(Difficulty) (Secret, error) {
	return Secret{}, ErrTurnBased
}

func (p *pickWordStrategy) Candidates(d Difficulty) ([]string, error) {
	return p.bank.RandomWords(d, CandidateCount)
}

// FromWord hides the chosen word behind one underscore per letter.
func (p *pickWordStrategy) FromWord(word string) (Secret, error) {
	word = Normalize(word)
	if word == "" {
		return Secret{}, errors.New("empty word")
	}
	return Secret{Answers: []string{word}, Hint: mask(word)}, nil
}

func (p *pickWordStrategy) Check(secret Secret, submission string) bool {
	return matchExact(secret.Word(), submission)
}

func mask(word string) string {
	var b strings.Builder
	for _, r := range word {
		if r == ' ' || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
