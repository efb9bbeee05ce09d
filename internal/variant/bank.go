// internal/variant/bank.go
package variant

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

//go:embed data/easy.txt
var embeddedEasy string

//go:embed data/normal.txt
var embeddedNormal string

//go:embed data/hard.txt
var embeddedHard string

//go:embed data/riddles.json
var embeddedRiddles []byte

// Riddle is a riddle text with one or more accepted answers.
type Riddle struct {
	Text    string   `json:"riddle"`
	Answers []string `json:"answers"`
}

// Bank holds the word lists per difficulty and the riddle list.
type Bank struct {
	words   map[Difficulty][]string
	riddles []Riddle
}

var (
	defaultOnce sync.Once
	defaultBank *Bank
	defaultErr  error
)

// DefaultBank returns the bank built from the embedded datasets. Loaded once.
func DefaultBank() (*Bank, error) {
	defaultOnce.Do(func() {
		var riddles []Riddle
		if err := json.Unmarshal(embeddedRiddles, &riddles); err != nil {
			defaultErr = fmt.Errorf("failed to decode embedded riddles: %w", err)
			return
		}
		defaultBank, defaultErr = NewBank(
			readLines(embeddedEasy),
			readLines(embeddedNormal),
			readLines(embeddedHard),
			riddles,
		)
	})
	return defaultBank, defaultErr
}

// NewBank builds a bank from explicit lists. Words and answers are normalized to lowercase.
func NewBank(easy, normal, hard []string, riddles []Riddle) (*Bank, error) {
	b := &Bank{
		words: map[Difficulty][]string{
			Easy:   normalizeAll(easy),
			Normal: normalizeAll(normal),
			Hard:   normalizeAll(hard),
		},
	}
	for d, list := range b.words {
		if len(list) < CandidateCount {
			return nil, fmt.Errorf("word list for difficulty %d needs at least %d words, has %d", d, CandidateCount, len(list))
		}
	}
	for i, r := range riddles {
		answers := normalizeAll(r.Answers)
		if r.Text == "" || len(answers) == 0 {
			return nil, fmt.Errorf("riddle %d is missing text or answers", i)
		}
		b.riddles = append(b.riddles, Riddle{Text: r.Text, Answers: answers})
	}
	return b, nil
}

// RandomWord returns a random word of the given difficulty. Mixed picks a concrete difficulty first.
func (b *Bank) RandomWord(d Difficulty) (string, error) {
	list, err := b.list(d)
	if err != nil {
		return "", err
	}
	return list[rand.IntN(len(list))], nil
}

// RandomWords returns n distinct random words of the given difficulty.
func (b *Bank) RandomWords(d Difficulty, n int) ([]string, error) {
	list, err := b.list(d)
	if err != nil {
		return nil, err
	}
	if n > len(list) {
		return nil, fmt.Errorf("requested %d words, only %d available", n, len(list))
	}
	out := make([]string, 0, n)
	for _, idx := range rand.Perm(len(list))[:n] {
		out = append(out, list[idx])
	}
	return out, nil
}

// RandomRiddle returns a random riddle.
func (b *Bank) RandomRiddle() (Riddle, error) {
	if len(b.riddles) == 0 {
		return Riddle{}, errors.New("riddle list is empty")
	}
	return b.riddles[rand.IntN(len(b.riddles))], nil
}

func (b *Bank) list(d Difficulty) ([]string, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDifficulty, d)
	}
	if d == Mixed {
		d = Difficulty(rand.IntN(3) + 1)
	}
	return b.words[d], nil
}

// readLines splits an embedded list into words, skipping blanks and # comments.
func readLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func normalizeAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, w := range list {
		if w = Normalize(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}
