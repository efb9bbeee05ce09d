package registry

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/game"
	"github.com/jason-s-yu/wordparty/internal/models"
	"github.com/jason-s-yu/wordparty/internal/variant"
	"github.com/jason-s-yu/wordparty/internal/warden"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopNotifier struct{}

func (nopNotifier) GameStarted(game.Room) {}
func (nopNotifier) RoundStarted(game.Room, int, string) {}
func (nopNotifier) TurnStarted(game.Room, int, int, uuid.UUID) {}
func (nopNotifier) WordSelection(game.Room, uuid.UUID, []string) {}
func (nopNotifier) WordChosen(game.Room, uuid.UUID, string, string, bool) {}
func (nopNotifier) TimerStarted(game.Room, int) {}
func (nopNotifier) Scores(game.Room, map[uuid.UUID]int) {}
func (nopNotifier) GameEnded(game.Room, []models.Standing) {}
func (nopNotifier) PlayerJoined(game.Room, game.Member) {}
func (nopNotifier) PlayerLeft(game.Room, uuid.UUID, uuid.UUID) {}
func (nopNotifier) SettingChanged(game.Room, int, int) {}
func (nopNotifier) Chat(game.Room, game.ChatMessage) {}
func (nopNotifier) CloseGuess(game.Room, uuid.UUID) {}
func (nopNotifier) Hint(game.Room, uuid.UUID, string) {}

func setupRegistry(t *testing.T, maxSlots int) (*Registry, *warden.Warden) {
	t.Helper()
	return setupRegistryWithTiming(t, maxSlots, game.Timing{
		RoundStartDelay:   time.Minute,
		TurnAnnounceDelay: time.Minute,
		WordSelectWindow:  time.Minute,
		ScorePause:        time.Minute,
	})
}

func setupRegistryWithTiming(t *testing.T, maxSlots int, timing game.Timing) (*Registry, *warden.Warden) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	bank, err := variant.DefaultBank()
	require.NoError(t, err)
	w := warden.New()
	r := New(w, bank, game.Options{
		MaxSlots: maxSlots,
		Timing:   timing,
		Notifier: nopNotifier{},
		Logger:   logger,
	})
	t.Cleanup(r.Shutdown)
	return r, w
}

func newPlayer(name, addr string) *models.Player {
	return models.NewPlayer(uuid.New(), name, addr)
}

func TestCreateSession(t *testing.T) {
	r, w := setupRegistry(t, 0)
	creator := newPlayer("ann", "1.1.1.1")

	s, err := r.CreateSession(creator, int(variant.Shuffle))
	require.NoError(t, err)
	assert.Equal(t, variant.Shuffle, s.Kind())

	got, ok := r.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Members, 1)
	assert.Equal(t, creator.ID, snap.Leader())

	created, _ := w.Counts("1.1.1.1")
	assert.Equal(t, 1, created)
}

func TestCreateSessionInvalidGameType(t *testing.T) {
	r, w := setupRegistry(t, 0)
	_, err := r.CreateSession(newPlayer("ann", "1.1.1.1"), 9)
	assert.ErrorIs(t, err, game.ErrInvalidGameType)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, w.Len(), "rejected creation must not hold quota")
}

func TestCreateSessionQuota(t *testing.T) {
	r, _ := setupRegistry(t, 0)
	for i := 0; i < warden.DefaultMaxCreated; i++ {
		_, err := r.CreateSession(newPlayer("ann", "1.1.1.1"), int(variant.Riddles))
		require.NoError(t, err)
	}
	_, err := r.CreateSession(newPlayer("ann", "1.1.1.1"), int(variant.Riddles))
	assert.ErrorIs(t, err, game.ErrQuotaExceeded)
	assert.Equal(t, warden.DefaultMaxCreated, r.Len())
}

func TestJoinSession(t *testing.T) {
	r, _ := setupRegistry(t, 0)
	s, err := r.CreateSession(newPlayer("ann", "1.1.1.1"), int(variant.PickWord))
	require.NoError(t, err)

	joiner := newPlayer("bob", "2.2.2.2")
	joined, snap, err := r.JoinSession(s.ID(), joiner)
	require.NoError(t, err)
	assert.Same(t, s, joined)
	assert.Len(t, snap.Members, 2)
	assert.False(t, snap.Started)
}

func TestJoinSessionNotFound(t *testing.T) {
	r, w := setupRegistry(t, 0)
	_, _, err := r.JoinSession(uuid.New(), newPlayer("bob", "2.2.2.2"))
	assert.ErrorIs(t, err, game.ErrSessionNotFound)
	assert.Equal(t, 0, w.Len())
}

func TestJoinSessionFullReleasesQuota(t *testing.T) {
	r, w := setupRegistry(t, 2)
	s, err := r.CreateSession(newPlayer("ann", "1.1.1.1"), int(variant.Shuffle))
	require.NoError(t, err)
	_, _, err = r.JoinSession(s.ID(), newPlayer("bob", "2.2.2.2"))
	require.NoError(t, err)

	_, _, err = r.JoinSession(s.ID(), newPlayer("cat", "3.3.3.3"))
	assert.ErrorIs(t, err, game.ErrSessionFull)
	_, joined := w.Counts("3.3.3.3")
	assert.Equal(t, 0, joined)
	assert.ErrorIs(t, r.JoinStatus(s.ID()), game.ErrSessionFull)
}

func TestJoinStatus(t *testing.T) {
	r, _ := setupRegistry(t, 0)
	s, err := r.CreateSession(newPlayer("ann", "1.1.1.1"), int(variant.Shuffle))
	require.NoError(t, err)
	assert.NoError(t, r.JoinStatus(s.ID()))
	assert.ErrorIs(t, r.JoinStatus(uuid.New()), game.ErrSessionNotFound)
}

func TestHandleDisconnectRemovesEmptySession(t *testing.T) {
	r, w := setupRegistry(t, 0)
	creator := newPlayer("ann", "1.1.1.1")
	s, err := r.CreateSession(creator, int(variant.Shuffle))
	require.NoError(t, err)

	r.HandleDisconnect(creator.ID, s.ID())
	_, ok := r.Get(s.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, w.Len())

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session loop still running after removal")
	}
}

func TestHandleDisconnectPromotesNextMember(t *testing.T) {
	r, w := setupRegistry(t, 0)
	creator := newPlayer("ann", "1.1.1.1")
	s, err := r.CreateSession(creator, int(variant.Shuffle))
	require.NoError(t, err)
	bob := newPlayer("bob", "2.2.2.2")
	cat := newPlayer("cat", "3.3.3.3")
	_, _, err = r.JoinSession(s.ID(), bob)
	require.NoError(t, err)
	_, _, err = r.JoinSession(s.ID(), cat)
	require.NoError(t, err)

	r.HandleDisconnect(creator.ID, s.ID())

	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Members, 2)
	assert.Equal(t, bob.ID, snap.Leader())
	created, _ := w.Counts("1.1.1.1")
	assert.Equal(t, 0, created)
	_, ok := r.Get(s.ID())
	assert.True(t, ok)
}

func TestRemoveSessionDisconnectsMembers(t *testing.T) {
	r, _ := setupRegistry(t, 0)
	creator := newPlayer("ann", "1.1.1.1")
	s, err := r.CreateSession(creator, int(variant.Shuffle))
	require.NoError(t, err)
	bob := newPlayer("bob", "2.2.2.2")
	_, _, err = r.JoinSession(s.ID(), bob)
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		removed []uuid.UUID
	)
	r.OnRemove(func(sessionID, playerID uuid.UUID) {
		assert.Equal(t, s.ID(), sessionID)
		mu.Lock()
		removed = append(removed, playerID)
		mu.Unlock()
	})

	r.RemoveSession(s.ID())
	r.RemoveSession(s.ID())
	assert.ElementsMatch(t, []uuid.UUID{creator.ID, bob.ID}, removed)
	assert.Equal(t, 0, r.Len())

	_, _, err = r.JoinSession(s.ID(), newPlayer("cat", "3.3.3.3"))
	assert.ErrorIs(t, err, game.ErrSessionNotFound)
}

func TestConcurrentCreateJoinDisconnect(t *testing.T) {
	r, w := setupRegistry(t, game.MaxSlots)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := fmt.Sprintf("10.0.0.%d", i)
			creator := newPlayer("host", addr)
			s, err := r.CreateSession(creator, int(variant.Shuffle))
			if !assert.NoError(t, err) {
				return
			}
			guests := make([]*models.Player, 3)
			for j := range guests {
				guests[j] = newPlayer("guest", fmt.Sprintf("%s-%d", addr, j))
				_, _, err := r.JoinSession(s.ID(), guests[j])
				assert.NoError(t, err)
			}
			r.HandleDisconnect(creator.ID, s.ID())
			for _, g := range guests {
				r.HandleDisconnect(g.ID, s.ID())
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, w.Len())
}

func TestFinishedGameIsRemovedAndQuotaReleased(t *testing.T) {
	r, w := setupRegistryWithTiming(t, 0, game.Timing{
		RoundStartDelay:   5 * time.Millisecond,
		TurnAnnounceDelay: 5 * time.Millisecond,
		WordSelectWindow:  5 * time.Millisecond,
		ScorePause:        5 * time.Millisecond,
		RoundDuration:     20 * time.Millisecond,
	})
	var (
		mu      sync.Mutex
		removed []uuid.UUID
	)
	r.OnRemove(func(_, playerID uuid.UUID) {
		mu.Lock()
		removed = append(removed, playerID)
		mu.Unlock()
	})

	creator := newPlayer("ann", "1.1.1.1")
	s, err := r.CreateSession(creator, int(variant.Shuffle))
	require.NoError(t, err)
	bob := newPlayer("bob", "2.2.2.2")
	_, _, err = r.JoinSession(s.ID(), bob)
	require.NoError(t, err)
	require.Equal(t, 2, w.Len())

	require.NoError(t, s.SetSetting(creator.ID, game.SettingRoundCount, 1))
	require.NoError(t, s.Start(creator.ID))

	require.Eventually(t, func() bool { return r.Len() == 0 && w.Len() == 0 }, 3*time.Second, 5*time.Millisecond)
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session loop still running after the game ended")
	}
	mu.Lock()
	assert.ElementsMatch(t, []uuid.UUID{creator.ID, bob.ID}, removed)
	mu.Unlock()

	// the transport's disconnect after the kick must not release twice
	r.HandleDisconnect(creator.ID, s.ID())
	r.HandleDisconnect(bob.ID, s.ID())
	assert.Equal(t, 0, w.Len())
	_, err = r.CreateSession(newPlayer("ann", "1.1.1.1"), int(variant.Shuffle))
	assert.NoError(t, err)
}
