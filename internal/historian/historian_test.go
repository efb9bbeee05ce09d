// internal/historian/historian_test.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanQueue struct {
	items chan string
}

func (q *chanQueue) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	select {
	case item := <-q.items:
		cmd.SetVal([]string{keys[0], item})
	case <-time.After(timeout):
		cmd.SetErr(redis.Nil)
	case <-ctx.Done():
		cmd.SetErr(ctx.Err())
	}
	return cmd
}

func (q *chanQueue) push(t *testing.T, rec models.EventRecord) {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	q.items <- string(data)
}

type memStore struct {
	mu        sync.Mutex
	events    []models.EventRecord
	batches   int
	finished  map[uuid.UUID][]models.Standing
	abandoned []uuid.UUID
	failNext  bool
}

func (m *memStore) InsertEvents(ctx context.Context, records []models.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return errors.New("db down")
	}
	m.events = append(m.events, records...)
	m.batches++
	return nil
}

func (m *memStore) FinishMatch(ctx context.Context, sessionID uuid.UUID, gameType int, standings []models.Standing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished == nil {
		m.finished = make(map[uuid.UUID][]models.Standing)
	}
	m.finished[sessionID] = standings
	return nil
}

func (m *memStore) MarkAbandoned(ctx context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned = append(m.abandoned, sessionID)
	return nil
}

func (m *memStore) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *memStore) standings(id uuid.UUID) ([]models.Standing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.finished[id]
	return s, ok
}

func (m *memStore) abandonedIDs() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.abandoned...)
}

func startService(t *testing.T, opts Options) (*chanQueue, *memStore) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	q := &chanQueue{items: make(chan string, 64)}
	store := &memStore{}
	if opts.PopTimeout == 0 {
		opts.PopTimeout = 10 * time.Millisecond
	}
	svc := New(q, store, opts, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, svc.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return q, store
}

func TestFlushOnBatchSize(t *testing.T) {
	q, store := startService(t, Options{BatchSize: 3, FlushInterval: time.Hour})
	id := uuid.New()
	for i := 1; i <= 3; i++ {
		q.push(t, models.EventRecord{SessionID: id, Seq: i, Type: "scores"})
	}
	require.Eventually(t, func() bool { return store.eventCount() == 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestFlushOnInterval(t *testing.T) {
	q, store := startService(t, Options{BatchSize: 100, FlushInterval: 20 * time.Millisecond})
	q.push(t, models.EventRecord{SessionID: uuid.New(), Seq: 1, Type: "gameStarted"})
	require.Eventually(t, func() bool { return store.eventCount() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestGameEndedStoresStandings(t *testing.T) {
	q, store := startService(t, Options{BatchSize: 100, FlushInterval: time.Hour})
	id := uuid.New()
	winner := uuid.New()

	q.push(t, models.EventRecord{SessionID: id, Seq: 1, Type: "gameStarted"})
	q.push(t, models.EventRecord{
		SessionID: id,
		GameType:  3,
		Seq:       2,
		Type:      "gameEnded",
		Payload: map[string]interface{}{
			"round":     2,
			"standings": []models.Standing{{PlayerID: winner, Name: "ann", Score: 180, Place: 1}},
		},
	})

	require.Eventually(t, func() bool {
		_, ok := store.standings(id)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	standings, _ := store.standings(id)
	require.Len(t, standings, 1)
	assert.Equal(t, winner, standings[0].PlayerID)
	assert.Equal(t, 180, standings[0].Score)
	// events are flushed before the match is finalized
	assert.Equal(t, 2, store.eventCount())
}

func TestFailedFlushIsRetried(t *testing.T) {
	q, store := startService(t, Options{BatchSize: 100, FlushInterval: 20 * time.Millisecond})
	store.mu.Lock()
	store.failNext = true
	store.mu.Unlock()

	q.push(t, models.EventRecord{SessionID: uuid.New(), Seq: 1, Type: "gameStarted"})
	require.Eventually(t, func() bool { return store.eventCount() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestInvalidRecordsAreSkipped(t *testing.T) {
	q, store := startService(t, Options{BatchSize: 1, FlushInterval: time.Hour})
	q.items <- "{not json"
	q.push(t, models.EventRecord{SessionID: uuid.New(), Seq: 1, Type: "gameStarted"})
	require.Eventually(t, func() bool { return store.eventCount() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestInactiveSessionsAreAbandoned(t *testing.T) {
	q, store := startService(t, Options{
		BatchSize:       100,
		FlushInterval:   time.Hour,
		Inactivity:      30 * time.Millisecond,
		InactivityCheck: 10 * time.Millisecond,
	})
	stale := uuid.New()
	q.push(t, models.EventRecord{SessionID: stale, Seq: 1, Type: "gameStarted"})

	require.Eventually(t, func() bool {
		ids := store.abandonedIDs()
		return len(ids) == 1 && ids[0] == stale
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, store.eventCount(), "pending events are flushed before abandoning")
}

func TestStandingsOfRejectsMissingPayload(t *testing.T) {
	_, err := standingsOf(models.EventRecord{Type: "gameEnded"})
	assert.Error(t, err)
}
