// internal/game/lifecycle.go
package game

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/models"
)

// Every asynchronous pause goes through schedule. Each new wait, timer start or stop bumps
// the epoch, so a continuation that fires after the state moved on sees a mismatch and returns.

func (s *Session) schedule(d time.Duration, fn func()) {
	s.cancelWait()
	epoch := s.epoch
	s.wait = time.AfterFunc(d, func() {
		s.post(func() {
			if s.epoch != epoch || s.ended {
				s.log.Debugf("Discarding stale wait (epoch %d, now %d)", epoch, s.epoch)
				return
			}
			s.wait = nil
			fn()
		})
	})
}

func (s *Session) cancelWait() {
	if s.wait != nil {
		s.wait.Stop()
		s.wait = nil
	}
	s.epoch++
}

// startTimer enters ACTIVE and starts the round/turn countdown.
func (s *Session) startTimer() {
	s.cancelWait()
	d := s.roundDuration()
	epoch := s.epoch
	s.phase = PhaseActive
	s.deadline = time.Now().Add(d)
	s.timer = time.AfterFunc(d, func() {
		s.post(func() {
			if s.epoch != epoch || s.timer == nil {
				s.log.Debugf("Discarding stale round timer (epoch %d, now %d)", epoch, s.epoch)
				return
			}
			s.log.Debugf("Timer elapsed for round %d turn %d", s.round, s.turn)
			s.endRound()
		})
	})

	seconds := int(d.Round(time.Second) / time.Second)
	s.notifier.TimerStarted(s.room(), seconds)
	s.record("timerStarted", uuid.Nil, map[string]interface{}{"round": s.round, "turn": s.turn, "seconds": seconds})
}

// stopTimer cancels the countdown. The handle is always cleared.
func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.deadline = time.Time{}
	s.epoch++
}

func (s *Session) roundDuration() time.Duration {
	if s.timing.RoundDuration > 0 {
		return s.timing.RoundDuration
	}
	return time.Duration(s.settings.TimePerRound) * time.Second
}

func (s *Session) beginRound() {
	s.round++
	s.turn = 0
	s.played = make(map[uuid.UUID]bool)
	s.secret = nil
	s.hint = ""
	s.resetAnswers()

	if s.strategy.TurnBased() {
		s.phase = PhaseRoundPending
		s.notifier.RoundStarted(s.room(), s.round, "")
		s.record("roundStarted", uuid.Nil, map[string]interface{}{"round": s.round})
		s.beginTurn()
		return
	}

	secret, err := s.strategy.Produce(s.settings.Difficulty)
	if err != nil {
		s.fail(err)
		return
	}
	s.secret = &secret
	s.hint = secret.Hint
	s.phase = PhaseRoundPending
	s.log.Debugf("Round %d secret %q", s.round, secret.Word())
	s.notifier.RoundStarted(s.room(), s.round, s.hint)
	s.record("roundStarted", uuid.Nil, map[string]interface{}{"round": s.round, "hint": s.hint, "answer": secret.Word()})
	s.schedule(s.timing.RoundStartDelay, s.startTimer)
}

// beginTurn hands the turn to the next member, in join order, who has not acted this round.
func (s *Session) beginTurn() {
	acting := s.nextActing()
	if acting == nil {
		s.advance()
		return
	}
	s.turn++
	s.played[acting.ID] = true
	s.actingID = acting.ID
	for _, m := range s.members {
		m.IsTurnHolder = m.ID == acting.ID
		m.CanSelectWord = false
	}
	s.secret = nil
	s.hint = ""
	s.candidates = nil
	s.resetAnswers()

	s.phase = PhaseTurnAnnounce
	s.notifier.TurnStarted(s.room(), s.round, s.turn, acting.ID)
	s.record("turnStarted", acting.ID, map[string]interface{}{"round": s.round, "turn": s.turn})
	s.schedule(s.timing.TurnAnnounceDelay, s.openWordSelection)
}

func (s *Session) openWordSelection() {
	acting := s.member(s.actingID)
	if acting == nil {
		s.abortTurn()
		return
	}
	candidates, err := s.strategy.Candidates(s.settings.Difficulty)
	if err != nil {
		s.fail(err)
		return
	}
	s.candidates = candidates
	acting.CanSelectWord = true
	s.phase = PhaseWordSelect
	s.notifier.WordSelection(s.room(), acting.ID, candidates)
	s.schedule(s.timing.WordSelectWindow, func() {
		s.log.Debugf("Player %s did not pick a word, choosing one", s.actingID)
		s.chooseWord(rand.IntN(len(s.candidates)), true)
	})
}

// chooseWord turns a candidate into the turn secret and starts the countdown.
func (s *Session) chooseWord(index int, auto bool) {
	secret, err := s.strategy.FromWord(s.candidates[index])
	if err != nil {
		s.fail(err)
		return
	}
	if acting := s.member(s.actingID); acting != nil {
		acting.CanSelectWord = false
	}
	s.candidates = nil
	s.secret = &secret
	s.hint = secret.Hint
	s.notifier.WordChosen(s.room(), s.actingID, secret.Word(), secret.Hint, auto)
	s.record("wordChosen", s.actingID, map[string]interface{}{"word": secret.Word(), "auto": auto})
	s.startTimer()
}

// endRound closes an ACTIVE round or turn, scores it and schedules the advance.
func (s *Session) endRound() {
	if s.phase != PhaseActive {
		return
	}
	s.stopTimer()
	if s.strategy.TurnBased() {
		if acting := s.member(s.actingID); acting != nil {
			acting.AddScore(ActingScore(BaseScore, s.eligibleGuessers(), s.correct))
		}
	}
	s.showScores()
	s.schedule(s.timing.ScorePause, s.advance)
}

// abortTurn drops the current turn without waiting for its timer and moves on immediately.
func (s *Session) abortTurn() {
	s.log.Infof("Aborting turn %d of round %d", s.turn, s.round)
	s.cancelWait()
	s.stopTimer()
	s.candidates = nil
	s.secret = nil
	s.hint = ""
	s.showScores()
	s.advance()
}

func (s *Session) showScores() {
	s.phase = PhaseScores
	scores := make(map[uuid.UUID]int, len(s.members))
	for _, m := range s.members {
		scores[m.ID] = m.RoundScore
	}
	s.notifier.Scores(s.room(), scores)
	payload := make(map[string]interface{}, len(scores))
	for id, v := range scores {
		payload[id.String()] = v
	}
	s.record("scores", uuid.Nil, payload)
}

func (s *Session) advance() {
	if s.ended {
		return
	}
	if s.strategy.TurnBased() && s.nextActing() != nil {
		s.beginTurn()
		return
	}
	if s.round < s.settings.RoundCount {
		s.beginRound()
		return
	}
	s.endGame()
}

// endGame is the terminal transition. Only the first call has any effect.
func (s *Session) endGame() {
	if s.ended {
		s.log.Debug("endGame called on an ended session, ignoring")
		return
	}
	s.cancelWait()
	s.stopTimer()
	s.ended = true
	s.phase = PhaseEnded
	for _, m := range s.members {
		m.IsTurnHolder = false
		m.CanSelectWord = false
	}

	standings := s.standings()
	s.log.Infof("Game ended after round %d", s.round)
	s.notifier.GameEnded(s.room(), standings)
	s.record("gameEnded", uuid.Nil, map[string]interface{}{"round": s.round, "standings": standings})
	if s.onEnd != nil {
		go s.onEnd(s.id)
	}
}

// fail logs an unexpected lifecycle error and force-ends this session.
func (s *Session) fail(err error) {
	s.log.WithError(err).Error("Session lifecycle step failed, ending game")
	s.endGame()
}

func (s *Session) nextActing() *models.Player {
	for _, m := range s.members {
		if !s.played[m.ID] {
			return m
		}
	}
	return nil
}

// inTurn reports whether a turn is still being set up or played.
func (s *Session) inTurn() bool {
	switch s.phase {
	case PhaseTurnAnnounce, PhaseWordSelect, PhaseActive:
		return s.strategy.TurnBased()
	}
	return false
}

// eligibleGuessers is every member, or every member but the turn holder.
func (s *Session) eligibleGuessers() int {
	n := len(s.members)
	if s.strategy.TurnBased() && s.member(s.actingID) != nil {
		n--
	}
	return n
}

func (s *Session) resetAnswers() {
	s.subtractor = 0
	s.correct = 0
	for _, m := range s.members {
		m.ResetRound()
	}
}

func (s *Session) standings() []models.Standing {
	out := make([]models.Standing, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, models.Standing{PlayerID: m.ID, Name: m.Name, Score: m.Score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Place = out[i-1].Place
			continue
		}
		out[i].Place = i + 1
	}
	return out
}
