// internal/handlers/server.go
package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/auth"
	"github.com/jason-s-yu/wordparty/internal/listener"
	"github.com/jason-s-yu/wordparty/internal/middleware"
	"github.com/jason-s-yu/wordparty/internal/notifier"
	"github.com/jason-s-yu/wordparty/internal/ratelimit"
	"github.com/jason-s-yu/wordparty/internal/registry"
	"github.com/sirupsen/logrus"
)

const defaultPingInterval = 30 * time.Second

// Options wires a Server to the rest of the process.
type Options struct {
	Logger   *logrus.Logger
	Registry *registry.Registry
	Hub      *notifier.Hub
	Listener *listener.Listener
	Signer   *auth.Signer

	// ConnectLimiter gates WebSocket handshakes per address. Nil disables it.
	ConnectLimiter ratelimit.Limiter

	PublicBaseURL  string
	AllowedOrigins []string
	PingInterval   time.Duration
}

// Server is the HTTP and WebSocket front of the game. It keeps at most one live
// connection per player.
type Server struct {
	opts     Options
	log      *logrus.Logger
	validate *validator.Validate
	origins  []string

	mu    sync.Mutex
	conns map[uuid.UUID]*conn
}

// NewServer builds a Server and registers it to close connections of removed rooms.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		opts:     opts,
		log:      opts.Logger,
		validate: validator.New(),
		origins:  originPatterns(opts.AllowedOrigins),
		conns:    make(map[uuid.UUID]*conn),
	}
	opts.Registry.OnRemove(s.kick)
	return s
}

// Routes returns the HTTP handler of the server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.LogMiddleware(s.log))

	r.Post("/guest", s.GuestHandler)
	r.Get("/ws", s.PlayWSHandler)
	r.Get("/rooms/{id}", s.RoomStatusHandler)
	r.Get("/rooms/{id}/qr", s.RoomQRHandler)
	return r
}

// claim records c as the live connection of its player. It fails if the player
// is already connected.
func (s *Server) claim(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[c.playerID]; ok {
		return false
	}
	s.conns[c.playerID] = c
	return true
}

func (s *Server) unclaim(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[c.playerID] == c {
		delete(s.conns, c.playerID)
	}
}

// kick closes the connection of a member whose room was removed.
func (s *Server) kick(sessionID, playerID uuid.UUID) {
	s.mu.Lock()
	c, ok := s.conns[playerID]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.log.Debugf("Closing connection of %s, room %s was removed", playerID, sessionID)
	c.close()
}

// Connections returns the number of live WebSocket connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
