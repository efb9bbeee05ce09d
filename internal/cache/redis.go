// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/wordparty/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list that session events are pushed to.
const DefaultQueueName = "wordparty_events"

const publishTimeout = 2 * time.Second

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Pusher is the part of a Redis client the publisher needs.
type Pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Publisher pushes session event records onto a Redis list for the historian.
// It implements game.Recorder. Records are sent in order from a single goroutine
// so that a slow Redis never stalls a session.
type Publisher struct {
	rdb   Pusher
	queue string
	log   *logrus.Entry

	mu      sync.RWMutex
	closed  bool
	records chan models.EventRecord
	done    chan struct{}
}

// NewPublisher starts a publisher with room for buffer pending records.
func NewPublisher(rdb Pusher, queue string, buffer int, logger *logrus.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Publisher{
		rdb:     rdb,
		queue:   queue,
		log:     logger.WithField("component", "publisher"),
		records: make(chan models.EventRecord, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Record queues rec for publishing. When the buffer is full the record is dropped.
// Records arriving after Close are ignored.
func (p *Publisher) Record(rec models.EventRecord) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.records <- rec:
	default:
		p.log.Warnf("Event buffer full, dropping %s #%d of session %s", rec.Type, rec.Seq, rec.SessionID)
	}
}

// Close stops accepting records and waits for the queued ones to be sent.
// Safe to call more than once.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.records)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *Publisher) run() {
	defer close(p.done)
	for rec := range p.records {
		if err := p.publish(rec); err != nil {
			p.log.WithError(err).Warn("Failed to publish session event")
		}
	}
}

func (p *Publisher) publish(rec models.EventRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal EventRecord: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}
