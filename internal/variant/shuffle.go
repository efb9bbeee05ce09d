// internal/variant/shuffle.go
package variant

import "math/rand/v2"

// shuffleStrategy picks a random word and shows its letters scrambled.
type shuffleStrategy struct {
	bank *Bank
}

func (s *shuffleStrategy) Kind() Kind      { return Shuffle }
func (s *shuffleStrategy) TurnBased() bool { return false }

func (s *shuffleStrategy) Produce(d Difficulty) (Secret, error) {
	word, err := s.bank.RandomWord(d)
	if err != nil {
		return Secret{}, err
	}
	return Secret{Answers: []string{word}, Hint: scramble(word)}, nil
}

func (s *shuffleStrategy) Candidates(Difficulty) ([]string, error) {
	return nil, ErrNotTurnBased
}

func (s *shuffleStrategy) FromWord(string) (Secret, error) {
	return Secret{}, ErrNotTurnBased
}

func (s *shuffleStrategy) Check(secret Secret, submission string) bool {
	return matchExact(secret.Word(), submission)
}

// scramble shuffles the letters of word. A few retries avoid handing back the word itself.
func scramble(word string) string {
	letters := []rune(word)
	for attempt := 0; attempt < 5; attempt++ {
		rand.Shuffle(len(letters), func(i, j int) {
			letters[i], letters[j] = letters[j], letters[i]
		})
		if string(letters) != word {
			break
		}
	}
	return string(letters)
}
