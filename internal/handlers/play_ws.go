// internal/handlers/play_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/game"
	"github.com/jason-s-yu/wordparty/internal/listener"
	"github.com/jason-s-yu/wordparty/internal/middleware"
	"github.com/jason-s-yu/wordparty/internal/models"
	"github.com/jason-s-yu/wordparty/internal/notifier"
)

const (
	writeTimeout = 3 * time.Second
	pingTimeout  = 10 * time.Second
	readLimit    = 4096
)

var (
	errBadHandshake = errors.New("exactly one of gameId or room is required")
	errInternal     = errors.New("internal error")
)

// handshake is what a client asks for when it connects: a new room of GameType,
// or a seat in RoomID.
type handshake struct {
	Create   bool
	GameType int
	RoomID   uuid.UUID
}

func parseHandshake(r *http.Request) (handshake, error) {
	q := r.URL.Query()
	gameID, room := q.Get("gameId"), q.Get("room")
	switch {
	case gameID != "" && room == "":
		t, err := strconv.Atoi(gameID)
		if err != nil {
			return handshake{}, errBadHandshake
		}
		return handshake{Create: true, GameType: t}, nil
	case room != "" && gameID == "":
		id, err := uuid.Parse(room)
		if err != nil {
			return handshake{}, errBadHandshake
		}
		return handshake{RoomID: id}, nil
	}
	return handshake{}, errBadHandshake
}

// PlayWSHandler upgrades a client, creates or joins its room and then runs the read
// loop until the client leaves. /ws?gameId=1 creates, /ws?room={id} joins.
func (s *Server) PlayWSHandler(w http.ResponseWriter, r *http.Request) {
	addr := clientAddress(r)
	if s.opts.ConnectLimiter != nil && !s.opts.ConnectLimiter.Allow(addr) {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}
	hs, err := parseHandshake(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	playerID, name, err := s.identify(w, r)
	if err != nil {
		s.log.WithError(err).Error("Failed to identify player")
		http.Error(w, "failed to create guest", http.StatusInternalServerError)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: s.origins,
	})
	if err != nil {
		s.log.Warnf("WebSocket accept error from %s: %v", addr, err)
		return
	}
	defer c.CloseNow()
	c.SetReadLimit(readLimit)

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the wordparty subprotocol")
		return
	}

	out := newConn(playerID)
	if !s.claim(out) {
		s.log.Infof("Rejected second connection for player %s", playerID)
		c.Close(DuplicateConnectionError, "player already connected")
		return
	}
	defer s.unclaim(out)
	defer out.close()

	s.opts.Hub.Register(playerID, out)
	defer s.opts.Hub.Unregister(playerID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	player := models.NewPlayer(playerID, name, addr)
	sess, err := s.enter(player, hs)
	if err != nil {
		s.log.Infof("Player %s could not enter a room: %v", playerID, err)
		writeCtx, writeCancel := context.WithTimeout(ctx, writeTimeout)
		_ = wsjson.Write(writeCtx, c, handshakeError(err))
		writeCancel()
		c.Close(RoomError, "room unavailable")
		return
	}
	middleware.LogWebSocketConnect(s.log, addr, playerID)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.writePump(ctx, c, out, sess)
	}()

	err = s.readLoop(ctx, c, sess, listener.Caller{PlayerID: playerID, Address: addr})

	cancel()
	<-pumpDone
	s.opts.Hub.Unregister(playerID)
	s.opts.Registry.HandleDisconnect(playerID, sess.ID())
	middleware.LogWebSocketDisconnect(s.log, addr, playerID, err)
}

// enter creates or joins the requested room and sends the opening event.
// The player belongs to the session from here on.
func (s *Server) enter(player *models.Player, hs handshake) (*game.Session, error) {
	id, name := player.ID, player.Name
	if hs.Create {
		sess, err := s.opts.Registry.CreateSession(player, hs.GameType)
		if err != nil {
			return nil, err
		}
		snap, err := sess.Snapshot()
		if err != nil {
			s.opts.Registry.HandleDisconnect(id, sess.ID())
			return nil, err
		}
		s.opts.Hub.RoomCreated(&models.Player{ID: id, Name: name}, snap)
		return sess, nil
	}

	sess, snap, err := s.opts.Registry.JoinSession(hs.RoomID, player)
	if err != nil {
		return nil, err
	}
	s.opts.Hub.RoomJoined(id, snap)
	return sess, nil
}

// handshakeError hides the text of unexpected failures from the client.
func handshakeError(err error) notifier.Message {
	if game.Kind(err) == game.KindFatal {
		err = errInternal
	}
	return notifier.ErrorMessage(err)
}

func (s *Server) readLoop(ctx context.Context, c *websocket.Conn, sess *game.Session, caller listener.Caller) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		if err := s.opts.Listener.Dispatch(sess, caller, data); err != nil {
			s.log.Debugf("Command from %s failed: %v", caller.PlayerID, err)
		}
	}
}

// writePump drains the outbox and keeps the connection alive. A failed ping, a failed
// write or a removed room closes the socket, which ends the read loop.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, out *conn, sess *game.Session) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-out.closed:
			s.flush(ctx, c, out)
			c.Close(RoomClosedError, "room closed")
			return
		case msg := <-out.out:
			if err := s.write(ctx, c, msg); err != nil {
				s.log.Warnf("Failed to write to websocket for player %s: %v", out.playerID, err)
				c.CloseNow()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.log.Warnf("Ping to player %s failed: %v. Assuming disconnect.", out.playerID, err)
				c.CloseNow()
				return
			}
			if err := sess.Touch(out.playerID); err != nil && !game.Silent(err) {
				s.log.Debugf("Touch for %s failed: %v", out.playerID, err)
			}
		}
	}
}

func (s *Server) write(ctx context.Context, c *websocket.Conn, msg notifier.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Warnf("Failed to marshal outgoing %v: %v", msg["event"], err)
		return nil
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Write(writeCtx, websocket.MessageText, data)
}

// flush writes whatever is still queued, so a removed room's last events arrive
// before the close frame.
func (s *Server) flush(ctx context.Context, c *websocket.Conn, out *conn) {
	for {
		select {
		case msg := <-out.out:
			if s.write(ctx, c, msg) != nil {
				return
			}
		default:
			return
		}
	}
}
