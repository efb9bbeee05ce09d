// internal/game/scoring.go
package game

// BaseScore is the reward for the first correct answer of a round.
const BaseScore = 100

// actingPenaltyPerGuesser is subtracted from the turn-holder's score for every eligible guesser.
const actingPenaltyPerGuesser = 5

// GuesserScore is the reward for a correct answer given how many guessers already answered.
// floor(base * (guessers - subtractor) / guessers), never below zero.
func GuesserScore(base, guessers, subtractor int) int {
	if guessers <= 0 || subtractor >= guessers {
		return 0
	}
	score := base * (guessers - subtractor) / guessers
	if score < 0 {
		return 0
	}
	return score
}

// ActingScore rewards the turn-holder by the share of guessers who found the word.
func ActingScore(base, guessers, correct int) int {
	if guessers <= 0 || correct <= 0 {
		return 0
	}
	if correct > guessers {
		correct = guessers
	}
	score := base*correct/guessers - actingPenaltyPerGuesser*guessers
	if score < 0 {
		return 0
	}
	return score
}
