// internal/variant/riddle.go
package variant

import "slices"

// riddleStrategy shows a riddle; any of its accepted phrasings wins.
type riddleStrategy struct {
	bank *Bank
}

func (r *riddleStrategy) Kind() Kind      { return Riddles }
func (r *riddleStrategy) TurnBased() bool { return false }

// Produce ignores difficulty; riddles are not graded.
func (r *riddleStrategy) Produce(Difficulty) (Secret, error) {
	riddle, err := r.bank.RandomRiddle()
	if err != nil {
		return Secret{}, err
	}
	return Secret{Answers: slices.Clone(riddle.Answers), Hint: riddle.Text}, nil
}

func (r *riddleStrategy) Candidates(Difficulty) ([]string, error) {
	return nil, ErrNotTurnBased
}

func (r *riddleStrategy) FromWord(string) (Secret, error) {
	return Secret{}, ErrNotTurnBased
}

func (r *riddleStrategy) Check(secret Secret, submission string) bool {
	if len(secret.Answers) == 1 {
		return matchExact(secret.Answers[0], submission)
	}
	return slices.Contains(secret.Answers, Normalize(submission))
}
