// internal/notifier/hub.go
//
// Package notifier turns session events into the JSON messages clients understand
// and routes them to per-connection outboxes.
package notifier

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/game"
	"github.com/sirupsen/logrus"
)

// Message is one outbound JSON object. Every message carries an "event" key.
type Message = map[string]interface{}

// Outbox delivers messages to a single connection. Send must not block.
type Outbox interface {
	Send(msg Message) bool
}

// Hub maps player ids to their connection outboxes. It implements game.Notifier.
type Hub struct {
	mu       sync.RWMutex
	outboxes map[uuid.UUID]Outbox
	log      *logrus.Entry
}

var _ game.Notifier = (*Hub)(nil)

// NewHub returns an empty Hub.
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		outboxes: make(map[uuid.UUID]Outbox),
		log:      logger.WithField("component", "notifier"),
	}
}

// Register attaches the outbox for playerID, replacing any previous one.
func (h *Hub) Register(playerID uuid.UUID, out Outbox) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outboxes[playerID] = out
}

// Unregister detaches playerID.
func (h *Hub) Unregister(playerID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.outboxes, playerID)
}

// SendTo delivers msg to one player. Unknown players are skipped.
func (h *Hub) SendTo(playerID uuid.UUID, msg Message) {
	h.mu.RLock()
	out, ok := h.outboxes[playerID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !out.Send(msg) {
		h.log.Warnf("Outbox full for player %s, dropped %v", playerID, msg["event"])
	}
}

func (h *Hub) toMembers(members []game.Member, msg Message) {
	for _, m := range members {
		h.SendTo(m.ID, msg)
	}
}

func (h *Hub) toAll(room game.Room, msg Message) {
	h.toMembers(room.Members, msg)
}

func (h *Hub) toAllBut(room game.Room, id uuid.UUID, msg Message) {
	h.toMembers(room.Except(id), msg)
}
