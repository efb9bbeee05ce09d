// internal/historian/historian.go
//
// Package historian drains session event records from the Redis queue and archives
// them in Postgres, finalizing matches when their gameEnded record arrives.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const eventGameEnded = "gameEnded"

// Queue is the blocking pop the historian reads from.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Store persists what the historian collects.
type Store interface {
	InsertEvents(ctx context.Context, records []models.EventRecord) error
	FinishMatch(ctx context.Context, sessionID uuid.UUID, gameType int, standings []models.Standing) error
	MarkAbandoned(ctx context.Context, sessionID uuid.UUID) error
}

// Options tunes batching and abandonment.
type Options struct {
	Queue           string
	BatchSize       int
	FlushInterval   time.Duration
	PopTimeout      time.Duration
	Inactivity      time.Duration // a session silent this long is marked abandoned
	InactivityCheck time.Duration
}

func (o *Options) defaults() {
	if o.Queue == "" {
		o.Queue = "wordparty_events"
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = 3 * time.Second
	}
	if o.Inactivity <= 0 {
		o.Inactivity = 10 * time.Minute
	}
	if o.InactivityCheck <= 0 {
		o.InactivityCheck = time.Minute
	}
}

// Service is the queue consumer. Batching state is owned by the Run goroutine.
type Service struct {
	queue Queue
	store Store
	opts  Options
	log   *logrus.Entry

	batch        []models.EventRecord
	lastActivity map[uuid.UUID]time.Time
}

// New returns a Service reading from q and writing to store.
func New(q Queue, store Store, opts Options, logger *logrus.Logger) *Service {
	opts.defaults()
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		queue:        q,
		store:        store,
		opts:         opts,
		log:          logger.WithField("component", "historian"),
		batch:        make([]models.EventRecord, 0, opts.BatchSize),
		lastActivity: make(map[uuid.UUID]time.Time),
	}
}

// Run consumes the queue until ctx is cancelled, then flushes what it holds.
func (s *Service) Run(ctx context.Context) error {
	records := make(chan models.EventRecord)
	go s.pop(ctx, records)

	flush := time.NewTicker(s.opts.FlushInterval)
	defer flush.Stop()
	inactivity := time.NewTicker(s.opts.InactivityCheck)
	defer inactivity.Stop()

	s.log.Infof("Historian reading from %s", s.opts.Queue)
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flush(final)
			cancel()
			s.log.Info("Historian stopped")
			return nil

		case rec := <-records:
			s.handle(ctx, rec)

		case <-flush.C:
			s.flush(ctx)

		case now := <-inactivity.C:
			s.reapInactive(ctx, now)
		}
	}
}

// pop feeds decoded records to out. BLPop's timeout keeps cancellation responsive.
func (s *Service) pop(ctx context.Context, out chan<- models.EventRecord) {
	for ctx.Err() == nil {
		res, err := s.queue.BLPop(ctx, s.opts.PopTimeout, s.opts.Queue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				s.log.WithError(err).Error("BLPop failed")
				time.Sleep(s.opts.FlushInterval)
			}
			continue
		}
		// res[0] is the queue name and res[1] the payload.
		if len(res) < 2 {
			continue
		}
		var rec models.EventRecord
		if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
			s.log.Warnf("Invalid event record: %v", err)
			continue
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) handle(ctx context.Context, rec models.EventRecord) {
	s.batch = append(s.batch, rec)

	if rec.Type != eventGameEnded {
		s.lastActivity[rec.SessionID] = time.Now()
		if len(s.batch) >= s.opts.BatchSize {
			s.flush(ctx)
		}
		return
	}

	delete(s.lastActivity, rec.SessionID)
	s.flush(ctx)
	standings, err := standingsOf(rec)
	if err != nil {
		s.log.WithError(err).Warnf("Session %s ended without readable standings", rec.SessionID)
		return
	}
	if err := s.store.FinishMatch(ctx, rec.SessionID, rec.GameType, standings); err != nil {
		s.log.WithError(err).Errorf("Failed to store results of session %s", rec.SessionID)
		return
	}
	s.log.Infof("Archived results of session %s (%d players)", rec.SessionID, len(standings))
}

func (s *Service) flush(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	if err := s.store.InsertEvents(ctx, s.batch); err != nil {
		// keep the batch; inserts are idempotent so a retry on the next tick is safe
		s.log.WithError(err).Errorf("Failed to flush %d events", len(s.batch))
		return
	}
	s.log.Debugf("Flushed %d events", len(s.batch))
	s.batch = s.batch[:0]
}

func (s *Service) reapInactive(ctx context.Context, now time.Time) {
	for id, last := range s.lastActivity {
		if now.Sub(last) <= s.opts.Inactivity {
			continue
		}
		s.flush(ctx)
		if err := s.store.MarkAbandoned(ctx, id); err != nil {
			s.log.WithError(err).Warnf("Failed to mark session %s abandoned", id)
			continue
		}
		delete(s.lastActivity, id)
		s.log.Infof("Marked session %s abandoned after %s of inactivity", id, now.Sub(last).Round(time.Second))
	}
}

func standingsOf(rec models.EventRecord) ([]models.Standing, error) {
	raw, ok := rec.Payload["standings"]
	if !ok {
		return nil, fmt.Errorf("no standings in %s payload", rec.Type)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var standings []models.Standing
	if err := json.Unmarshal(data, &standings); err != nil {
		return nil, fmt.Errorf("decode standings: %w", err)
	}
	return standings, nil
}
