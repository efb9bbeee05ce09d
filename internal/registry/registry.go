// internal/registry/registry.go
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/game"
	"github.com/jason-s-yu/wordparty/internal/models"
	"github.com/jason-s-yu/wordparty/internal/variant"
	"github.com/jason-s-yu/wordparty/internal/warden"
	"github.com/sirupsen/logrus"
)

// Registry is the directory of live sessions. It owns quota accounting and
// removes sessions once their last member is gone or their game has ended.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*game.Session
	holds    map[seat]hold

	warden *warden.Warden
	bank   *variant.Bank
	opts   game.Options
	log    *logrus.Entry

	// onRemove is called for every member still present when a session is removed,
	// so the transport can close their connections.
	onRemove func(sessionID, playerID uuid.UUID)
}

// seat is one player's membership in one session.
type seat struct {
	session uuid.UUID
	player  uuid.UUID
}

// hold is the warden reservation taken for a seat. It is released exactly once,
// by whichever of HandleDisconnect or RemoveSession comes first.
type hold struct {
	addr    string
	creator bool
}

// New returns an empty Registry. opts is the template for every session it creates;
// its OnEnd is replaced so that finished games are removed.
func New(w *warden.Warden, bank *variant.Bank, opts game.Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := &Registry{
		sessions: make(map[uuid.UUID]*game.Session),
		holds:    make(map[seat]hold),
		warden:   w,
		bank:     bank,
		opts:     opts,
		log:      logger.WithField("component", "registry"),
	}
	r.opts.OnEnd = r.RemoveSession
	return r
}

// OnRemove sets the callback used to disconnect members of a removed session.
func (r *Registry) OnRemove(fn func(sessionID, playerID uuid.UUID)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = fn
}

// CreateSession starts a new room of gameType with creator as its only member.
func (r *Registry) CreateSession(creator *models.Player, gameType int) (*game.Session, error) {
	kind, err := variant.ParseKind(gameType)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", game.ErrInvalidGameType, gameType)
	}
	strategy, err := variant.New(kind, r.bank)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", game.ErrInvalidGameType, err)
	}
	if err := r.warden.Reserve(creator.Address, true); err != nil {
		return nil, err
	}

	id := uuid.New()
	s := game.NewSession(id, strategy, creator, r.opts)

	r.mu.Lock()
	r.sessions[id] = s
	r.holds[seat{id, creator.ID}] = hold{addr: creator.Address, creator: true}
	n := len(r.sessions)
	r.mu.Unlock()

	r.log.Infof("Created %s session %s for %s (%d active)", kind, id, creator.ID, n)
	return s, nil
}

// JoinSession adds p to an existing room and returns the state p should render.
// Once added, p belongs to the session and must not be mutated by the caller.
func (r *Registry) JoinSession(id uuid.UUID, p *models.Player) (*game.Session, game.Snapshot, error) {
	s, ok := r.Get(id)
	if !ok {
		return nil, game.Snapshot{}, game.ErrSessionNotFound
	}
	if err := r.warden.Reserve(p.Address, false); err != nil {
		return nil, game.Snapshot{}, err
	}

	addr := p.Address
	snap, err := s.Join(p)
	if err != nil {
		r.warden.Release(addr, false)
		if errors.Is(err, game.ErrSessionClosed) || errors.Is(err, game.ErrSessionEnded) {
			err = game.ErrSessionNotFound
		}
		return nil, game.Snapshot{}, err
	}

	r.mu.Lock()
	_, live := r.sessions[id]
	if live {
		r.holds[seat{id, p.ID}] = hold{addr: addr}
	}
	r.mu.Unlock()
	if !live {
		// removed between Join and here; RemoveSession could not see this seat
		r.warden.Release(addr, false)
		return nil, game.Snapshot{}, game.ErrSessionNotFound
	}
	return s, snap, nil
}

// Get returns the session with id.
func (r *Registry) Get(id uuid.UUID) (*game.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// JoinStatus reports whether a player could currently join id.
// It returns nil, game.ErrSessionFull or game.ErrSessionNotFound.
func (r *Registry) JoinStatus(id uuid.UUID) error {
	s, ok := r.Get(id)
	if !ok {
		return game.ErrSessionNotFound
	}
	snap, err := s.Snapshot()
	if err != nil || snap.Ended {
		return game.ErrSessionNotFound
	}
	if snap.Full() {
		return game.ErrSessionFull
	}
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RemoveSession ends and forgets a session, disconnecting anyone still in it.
// Removing an unknown id does nothing.
func (r *Registry) RemoveSession(id uuid.UUID) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	onRemove := r.onRemove
	r.mu.Unlock()
	if !ok {
		return
	}

	remaining := s.Shutdown()
	for _, pid := range remaining {
		r.releaseSeat(id, pid)
	}
	r.log.Infof("Removed session %s (%d members disconnected)", id, len(remaining))
	if onRemove == nil {
		return
	}
	for _, pid := range remaining {
		onRemove(id, pid)
	}
}

// releaseSeat returns the quota held by a seat if it has not been returned yet.
func (r *Registry) releaseSeat(sessionID, playerID uuid.UUID) {
	key := seat{sessionID, playerID}
	r.mu.Lock()
	h, ok := r.holds[key]
	delete(r.holds, key)
	r.mu.Unlock()
	if ok {
		r.warden.Release(h.addr, h.creator)
	}
}

// HandleDisconnect releases the quota held by a departing player and removes them
// from their room. Leader succession and turn aborts happen inside the session.
// The room is removed once nobody is left.
func (r *Registry) HandleDisconnect(playerID, roomID uuid.UUID) {
	r.releaseSeat(roomID, playerID)
	s, ok := r.Get(roomID)
	if !ok {
		return
	}

	res, err := s.Leave(playerID)
	if err != nil {
		if !game.Silent(err) {
			r.log.WithError(err).Warnf("Leave failed for %s in %s", playerID, roomID)
		}
		return
	}
	if res.NewLeaderID != uuid.Nil {
		r.log.Debugf("Leadership of %s passed to %s", roomID, res.NewLeaderID)
	}
	if res.Remaining == 0 {
		r.RemoveSession(roomID)
	}
}

// Shutdown removes every session.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		r.RemoveSession(id)
	}
}
