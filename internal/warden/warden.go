// internal/warden/warden.go
package warden

import (
	"sync"

	"github.com/jason-s-yu/wordparty/internal/game"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxCreated = 2
	DefaultMaxJoined  = 6
)

// ErrQuotaExceeded is returned by Reserve when an address is at its ceiling.
var ErrQuotaExceeded = game.ErrQuotaExceeded

type entry struct {
	created int
	joined  int
}

// Warden caps how many rooms a single network address may have created or joined
// at the same time. Every successful Reserve must be paired with exactly one Release.
type Warden struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxCreated int
	maxJoined  int
}

// New returns a Warden with the default ceilings.
func New() *Warden {
	return NewWithLimits(DefaultMaxCreated, DefaultMaxJoined)
}

// NewWithLimits returns a Warden with custom ceilings.
func NewWithLimits(maxCreated, maxJoined int) *Warden {
	return &Warden{
		entries:    make(map[string]*entry),
		maxCreated: maxCreated,
		maxJoined:  maxJoined,
	}
}

// Reserve takes one creation or join slot for addr.
func (w *Warden) Reserve(addr string, isCreate bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[addr]
	if !ok {
		e = &entry{}
	}
	if isCreate {
		if e.created >= w.maxCreated {
			log.Debugf("Warden: %s at creation ceiling (%d)", addr, e.created)
			return ErrQuotaExceeded
		}
		e.created++
	} else {
		if e.joined >= w.maxJoined {
			log.Debugf("Warden: %s at join ceiling (%d)", addr, e.joined)
			return ErrQuotaExceeded
		}
		e.joined++
	}
	w.entries[addr] = e
	return nil
}

// Release returns the slot taken by a matching Reserve. Counters never go below zero
// and the entry is dropped once both reach zero.
func (w *Warden) Release(addr string, wasCreator bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[addr]
	if !ok {
		log.Warnf("Warden: release for unknown address %s", addr)
		return
	}
	if wasCreator {
		if e.created > 0 {
			e.created--
		}
	} else if e.joined > 0 {
		e.joined--
	}
	if e.created == 0 && e.joined == 0 {
		delete(w.entries, addr)
	}
}

// Counts returns the current counters for addr.
func (w *Warden) Counts(addr string) (created, joined int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entries[addr]; ok {
		return e.created, e.joined
	}
	return 0, 0
}

// Len returns the number of tracked addresses.
func (w *Warden) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
