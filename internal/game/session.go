// internal/game/session.go
package game

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/models"
	"github.com/jason-s-yu/wordparty/internal/variant"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxSlots = 6
	MinSlots        = 2
	MaxSlots        = 10

	// MaxHintLength bounds the hint text a turn holder may send.
	MaxHintLength = 150
)

// Timing holds the fixed pauses between phases.
type Timing struct {
	RoundStartDelay   time.Duration // ROUND_PENDING before the timer starts
	TurnAnnounceDelay time.Duration // TURN_ANNOUNCE before candidates are offered
	WordSelectWindow  time.Duration // how long the turn holder has to choose
	ScorePause        time.Duration // SCORES before advancing

	// RoundDuration overrides Settings.TimePerRound when non-zero.
	RoundDuration time.Duration
}

// DefaultTiming returns the production pauses.
func DefaultTiming() Timing {
	return Timing{
		RoundStartDelay:   3 * time.Second,
		TurnAnnounceDelay: 3 * time.Second,
		WordSelectWindow:  15 * time.Second,
		ScorePause:        5 * time.Second,
	}
}

// Options configures a new Session. Notifier is required.
type Options struct {
	MaxSlots int
	Timing   Timing
	Notifier Notifier
	Recorder Recorder
	Logger   *logrus.Logger

	// OnEnd is called once, on its own goroutine, when the game reaches ENDED.
	OnEnd func(sessionID uuid.UUID)
}

// AnswerResult describes how a submission was judged.
type AnswerResult struct {
	Outcome Outcome
	Score   int
	Close   bool
}

// LeaveResult describes the membership change caused by a departure.
type LeaveResult struct {
	Remaining     int
	NewLeaderID   uuid.UUID
	WasTurnHolder bool
}

// Session is one room. All state below the loop fields is owned by the run goroutine;
// public methods hand closures to it and wait for them to finish.
type Session struct {
	id       uuid.UUID
	strategy variant.Strategy
	notifier Notifier
	recorder Recorder
	onEnd    func(uuid.UUID)
	timing   Timing
	maxSlots int
	log      *logrus.Entry

	ops       chan func()
	quit      chan struct{}
	closeOnce sync.Once

	members  []*models.Player
	settings Settings
	phase    Phase
	started  bool
	ended    bool

	round      int
	turn       int
	actingID   uuid.UUID
	played     map[uuid.UUID]bool
	candidates []string
	secret     *variant.Secret
	hint       string

	timer    *time.Timer // non-nil iff phase == PhaseActive
	deadline time.Time
	wait     *time.Timer
	epoch    uint64

	subtractor int
	correct    int
	seq        int
}

// NewSession creates a room with creator as its sole member and leader, and starts its loop.
func NewSession(id uuid.UUID, strategy variant.Strategy, creator *models.Player, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithFields(logrus.Fields{
		"session_id": id,
		"game":       strategy.Kind().String(),
	})

	maxSlots := opts.MaxSlots
	if maxSlots == 0 {
		maxSlots = DefaultMaxSlots
	}
	if maxSlots < MinSlots || maxSlots > MaxSlots {
		entry.Warnf("Invalid max slots %d, using %d", maxSlots, DefaultMaxSlots)
		maxSlots = DefaultMaxSlots
	}

	timing := opts.Timing
	if timing == (Timing{}) {
		timing = DefaultTiming()
	}

	creator.RoomID = id
	creator.IsLeader = true
	creator.IsRoomCreator = true
	creator.CanSendMessages = true
	creator.IsTurnHolder = false
	creator.CanSelectWord = false
	creator.Score = 0
	creator.ResetRound()

	s := &Session{
		id:       id,
		strategy: strategy,
		notifier: opts.Notifier,
		recorder: opts.Recorder,
		onEnd:    opts.OnEnd,
		timing:   timing,
		maxSlots: maxSlots,
		log:      entry,
		ops:      make(chan func()),
		quit:     make(chan struct{}),
		members:  []*models.Player{creator},
		settings: DefaultSettings(),
		phase:    PhaseLobby,
	}
	go s.run()
	s.log.Infof("Session created by player %s", creator.ID)
	return s
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Kind returns the game type.
func (s *Session) Kind() variant.Kind { return s.strategy.Kind() }

// Done is closed once the session has been shut down.
func (s *Session) Done() <-chan struct{} { return s.quit }

func (s *Session) run() {
	for {
		select {
		case op := <-s.ops:
			s.exec(op)
		case <-s.quit:
			return
		}
	}
}

// exec runs one operation, converting a panic into a forced end of this session only.
func (s *Session) exec(op func()) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(fmt.Errorf("panic: %v", r))
		}
	}()
	op()
}

// call runs fn on the loop and waits for it. Must not be used from the loop itself.
func (s *Session) call(fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}
	select {
	case s.ops <- op:
	case <-s.quit:
		return ErrSessionClosed
	}
	<-done
	return nil
}

func callResult[T any](s *Session, fn func() (T, error)) (T, error) {
	var (
		res T
		err error
	)
	if cerr := s.call(func() { res, err = fn() }); cerr != nil {
		return res, cerr
	}
	return res, err
}

// post queues fn without waiting. Used by timer callbacks.
func (s *Session) post(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.quit:
	}
}

// Start begins round 1. Only the leader may start, and only with two or more members.
func (s *Session) Start(playerID uuid.UUID) error {
	_, err := callResult(s, func() (struct{}, error) {
		return struct{}{}, s.start(playerID)
	})
	return err
}

func (s *Session) start(playerID uuid.UUID) error {
	if s.ended {
		return ErrSessionEnded
	}
	p := s.member(playerID)
	if p == nil {
		return ErrNotMember
	}
	if !p.IsLeader {
		return ErrNotLeader
	}
	if s.started {
		return ErrAlreadyStarted
	}
	if len(s.members) < 2 {
		return ErrNotEnoughPlayers
	}

	s.started = true
	for _, m := range s.members {
		m.CanSendMessages = true
		m.Score = 0
	}
	s.log.Infof("Game started by %s with %d players", playerID, len(s.members))
	s.notifier.GameStarted(s.room())
	s.record("gameStarted", playerID, map[string]interface{}{
		"players":  len(s.members),
		"settings": s.settings,
	})
	s.beginRound()
	return nil
}

// SetSetting changes one room setting before the game starts. Leader only.
func (s *Session) SetSetting(playerID uuid.UUID, settingID, valueID int) error {
	_, err := callResult(s, func() (struct{}, error) {
		return struct{}{}, s.setSetting(playerID, settingID, valueID)
	})
	return err
}

func (s *Session) setSetting(playerID uuid.UUID, settingID, valueID int) error {
	if s.ended {
		return ErrSessionEnded
	}
	p := s.member(playerID)
	if p == nil {
		return ErrNotMember
	}
	if !p.IsLeader {
		return ErrNotLeader
	}
	if s.started {
		return ErrAlreadyStarted
	}
	value, err := s.settings.Apply(settingID, valueID)
	if err != nil {
		return err
	}
	s.notifier.SettingChanged(s.room(), settingID, value)
	s.record("settingChanged", playerID, map[string]interface{}{"sid": settingID, "value": value})
	return nil
}

// SubmitAnswer judges a guess, or relays lobby chat before the game starts.
func (s *Session) SubmitAnswer(playerID uuid.UUID, text string) (AnswerResult, error) {
	return callResult(s, func() (AnswerResult, error) {
		return s.submitAnswer(playerID, text)
	})
}

func (s *Session) submitAnswer(playerID uuid.UUID, text string) (AnswerResult, error) {
	if s.ended {
		return AnswerResult{}, ErrSessionEnded
	}
	p := s.member(playerID)
	if p == nil {
		return AnswerResult{}, ErrNotMember
	}
	text = strings.TrimSpace(text)

	if !s.started {
		if !p.CanSendMessages {
			return AnswerResult{}, ErrMuted
		}
		s.notifier.Chat(s.room(), ChatMessage{PlayerID: p.ID, Name: p.Name, Text: text, Outcome: OutcomeRegular})
		return AnswerResult{Outcome: OutcomeRegular}, nil
	}
	if p.IsTurnHolder {
		return AnswerResult{}, ErrTurnHolderGuess
	}
	if s.phase != PhaseActive || s.secret == nil {
		return AnswerResult{}, ErrNoActiveSecret
	}

	res := AnswerResult{Outcome: s.checkAnswer(p, text)}
	switch res.Outcome {
	case OutcomeJustCorrect:
		guessers := s.eligibleGuessers()
		res.Score = GuesserScore(BaseScore, guessers, s.subtractor)
		s.subtractor++
		s.correct++
		p.HasAnswered = true
		p.AddScore(res.Score)
		s.notifier.Chat(s.room(), ChatMessage{PlayerID: p.ID, Name: p.Name, Text: text, Outcome: OutcomeJustCorrect})
		s.record("correctAnswer", p.ID, map[string]interface{}{"score": res.Score, "order": s.correct})
		if s.correct >= guessers {
			s.log.Debugf("All %d guessers answered round %d", guessers, s.round)
			s.endRound()
		}
	case OutcomeRegular:
		s.notifier.Chat(s.room(), ChatMessage{PlayerID: p.ID, Name: p.Name, Text: text, Outcome: OutcomeRegular})
		if variant.IsClose(*s.secret, text) {
			res.Close = true
			s.notifier.CloseGuess(s.room(), p.ID)
		}
	case OutcomeAlreadyAnswered:
		s.notifier.Chat(s.room(), ChatMessage{PlayerID: p.ID, Name: p.Name, Text: text, Outcome: OutcomeAlreadyAnswered})
	}
	return res, nil
}

// checkAnswer judges a submission against the active secret.
func (s *Session) checkAnswer(p *models.Player, text string) Outcome {
	if p.HasAnswered {
		return OutcomeAlreadyAnswered
	}
	if s.strategy.Check(*s.secret, text) {
		return OutcomeJustCorrect
	}
	return OutcomeRegular
}

// SelectWord picks one of the offered candidates on behalf of the turn holder.
func (s *Session) SelectWord(playerID uuid.UUID, index int) error {
	_, err := callResult(s, func() (struct{}, error) {
		return struct{}{}, s.selectWord(playerID, index)
	})
	return err
}

func (s *Session) selectWord(playerID uuid.UUID, index int) error {
	if s.ended {
		return ErrSessionEnded
	}
	p := s.member(playerID)
	if p == nil {
		return ErrNotMember
	}
	if !s.strategy.TurnBased() {
		return ErrUnsupported
	}
	if !p.IsTurnHolder {
		return ErrNotTurnHolder
	}
	if s.phase != PhaseWordSelect || !p.CanSelectWord {
		return ErrWrongPhase
	}
	if index < 0 || index >= len(s.candidates) {
		return fmt.Errorf("%w: %d", ErrInvalidWordIndex, index)
	}
	s.cancelWait()
	s.chooseWord(index, false)
	return nil
}

// SendHint relays a free-text hint from the turn holder to the guessers.
func (s *Session) SendHint(playerID uuid.UUID, text string) error {
	_, err := callResult(s, func() (struct{}, error) {
		return struct{}{}, s.sendHint(playerID, text)
	})
	return err
}

func (s *Session) sendHint(playerID uuid.UUID, text string) error {
	if s.ended {
		return ErrSessionEnded
	}
	p := s.member(playerID)
	if p == nil {
		return ErrNotMember
	}
	if !s.strategy.TurnBased() {
		return ErrUnsupported
	}
	if !p.IsTurnHolder {
		return ErrNotTurnHolder
	}
	if s.phase != PhaseActive {
		return ErrNoActiveSecret
	}
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n == 0 || n > MaxHintLength {
		return fmt.Errorf("%w: hint has %d characters", ErrInvalidMessageLen, n)
	}
	s.notifier.Hint(s.room(), p.ID, text)
	return nil
}

// Join adds a player and returns the state they should render.
func (s *Session) Join(p *models.Player) (Snapshot, error) {
	return callResult(s, func() (Snapshot, error) {
		return s.join(p)
	})
}

func (s *Session) join(p *models.Player) (Snapshot, error) {
	if s.ended {
		return Snapshot{}, ErrSessionEnded
	}
	if s.member(p.ID) != nil {
		return Snapshot{}, ErrAlreadyMember
	}
	if len(s.members) >= s.maxSlots {
		return Snapshot{}, ErrSessionFull
	}

	p.RoomID = s.id
	p.IsLeader = false
	p.IsRoomCreator = false
	p.IsTurnHolder = false
	p.CanSelectWord = false
	p.CanSendMessages = s.started
	p.Score = 0
	p.ResetRound()
	s.members = append(s.members, p)

	s.log.Infof("Player %s joined (%d/%d)", p.ID, len(s.members), s.maxSlots)
	s.notifier.PlayerJoined(s.room(), memberView(p))
	s.record("playerJoined", p.ID, map[string]interface{}{"name": p.Name})
	return s.snapshot(), nil
}

// Leave removes a player, promoting the earliest-joined remaining member if the leader left,
// and aborts the current turn if the player held it.
func (s *Session) Leave(playerID uuid.UUID) (LeaveResult, error) {
	return callResult(s, func() (LeaveResult, error) {
		return s.leave(playerID)
	})
}

func (s *Session) leave(playerID uuid.UUID) (LeaveResult, error) {
	idx := s.indexOf(playerID)
	if idx < 0 {
		return LeaveResult{}, ErrNotMember
	}
	p := s.members[idx]

	var res LeaveResult
	if p.IsLeader {
		for _, m := range s.members {
			if m.ID != p.ID {
				m.IsLeader = true
				m.CanSendMessages = true
				res.NewLeaderID = m.ID
				break
			}
		}
	}
	res.WasTurnHolder = p.IsTurnHolder

	s.members = slices.Delete(s.members, idx, idx+1)
	p.RoomID = uuid.Nil
	p.IsLeader = false
	p.IsTurnHolder = false
	p.CanSelectWord = false
	p.Connected = false
	if p.HasAnswered && s.correct > 0 {
		s.correct--
	}
	res.Remaining = len(s.members)

	s.log.Infof("Player %s left (%d remaining)", p.ID, res.Remaining)
	if res.Remaining == 0 {
		if s.started && !s.ended {
			s.endGame()
		}
		return res, nil
	}
	s.notifier.PlayerLeft(s.room(), p.ID, res.NewLeaderID)
	s.record("playerLeft", p.ID, map[string]interface{}{"newLeaderId": res.NewLeaderID})

	if !s.started || s.ended {
		return res, nil
	}
	if res.Remaining < 2 {
		s.log.Info("Not enough players left, ending game")
		s.endGame()
		return res, nil
	}
	if res.WasTurnHolder && s.inTurn() {
		s.abortTurn()
		return res, nil
	}
	if s.phase == PhaseActive && s.correct >= s.eligibleGuessers() {
		s.endRound()
	}
	return res, nil
}

// Touch records a liveness ack for a member.
func (s *Session) Touch(playerID uuid.UUID) error {
	_, err := callResult(s, func() (struct{}, error) {
		p := s.member(playerID)
		if p == nil {
			return struct{}{}, ErrNotMember
		}
		p.Connected = true
		p.LastSeen = time.Now()
		return struct{}{}, nil
	})
	return err
}

// End force-ends the game. Calling it more than once has no further effect.
func (s *Session) End() {
	_ = s.call(s.endGame)
}

// Shutdown ends the game if it is running, clears membership and stops the loop.
// It returns the ids of the members that were still present.
func (s *Session) Shutdown() []uuid.UUID {
	var ids []uuid.UUID
	_ = s.call(func() {
		if s.started && !s.ended {
			s.endGame()
		}
		s.cancelWait()
		s.stopTimer()
		for _, m := range s.members {
			ids = append(ids, m.ID)
			m.RoomID = uuid.Nil
			m.IsLeader = false
			m.IsTurnHolder = false
		}
		s.members = nil
		s.closeOnce.Do(func() { close(s.quit) })
		s.log.Info("Session shut down")
	})
	return ids
}

// Snapshot returns a copy of the public state.
func (s *Session) Snapshot() (Snapshot, error) {
	return callResult(s, func() (Snapshot, error) {
		return s.snapshot(), nil
	})
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		ID:              s.id,
		GameType:        s.strategy.Kind(),
		Phase:           s.phase,
		Started:         s.started,
		Ended:           s.ended,
		Round:           s.round,
		Turn:            s.turn,
		Settings:        s.settings,
		DefaultSettings: s.settings.IsDefault(),
		MaxSlots:        s.maxSlots,
		Members:         s.views(),
		TimerActive:     s.timer != nil,
	}
	if s.started && !s.ended {
		snap.Hint = s.hint
		if s.timer != nil {
			remaining := time.Until(s.deadline)
			snap.RemainingSeconds = int((remaining + time.Second - 1) / time.Second)
		}
		if s.strategy.TurnBased() {
			snap.TurnHolderID = s.actingID
		}
	}
	return snap
}

func (s *Session) member(id uuid.UUID) *models.Player {
	if idx := s.indexOf(id); idx >= 0 {
		return s.members[idx]
	}
	return nil
}

func (s *Session) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(s.members, func(p *models.Player) bool { return p.ID == id })
}

func (s *Session) views() []Member {
	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, memberView(m))
	}
	return out
}

func (s *Session) room() Room {
	return Room{ID: s.id, GameType: s.strategy.Kind(), Members: s.views()}
}

func memberView(p *models.Player) Member {
	return Member{
		ID:           p.ID,
		Name:         p.Name,
		Score:        p.Score,
		RoundScore:   p.RoundScore,
		IsLeader:     p.IsLeader,
		IsTurnHolder: p.IsTurnHolder,
		HasAnswered:  p.HasAnswered,
	}
}

func (s *Session) record(eventType string, actor uuid.UUID, payload map[string]interface{}) {
	if s.recorder == nil {
		return
	}
	s.seq++
	s.recorder.Record(models.EventRecord{
		SessionID: s.id,
		GameType:  int(s.strategy.Kind()),
		Seq:       s.seq,
		ActorID:   actor,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	})
}
