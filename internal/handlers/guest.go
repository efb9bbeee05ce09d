// internal/handlers/guest.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/auth"
)

const defaultGuestName = "Guest"

type guestRequest struct {
	Name string `json:"name" validate:"required,min=1,max=20"`
}

type guestResponse struct {
	PlayerID uuid.UUID `json:"playerId"`
	Name     string    `json:"name"`
	Token    string    `json:"token"`
}

// GuestHandler issues a fresh guest identity and stores its token in the auth cookie.
func (s *Server) GuestHandler(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid guest payload", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, "name must be 1 to 20 characters", http.StatusBadRequest)
		return
	}

	id, token, err := s.mintGuest(w, req.Name)
	if err != nil {
		s.log.WithError(err).Error("Failed to mint guest token")
		http.Error(w, "failed to create guest", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, guestResponse{PlayerID: id, Name: req.Name, Token: token})
}

// identify resolves the player behind a handshake. The auth cookie wins over the
// token query parameter; without a valid token a new guest is minted and its cookie
// set on w, so it must run before the upgrade.
func (s *Server) identify(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, error) {
	q := r.URL.Query()
	name := s.guestName(q.Get("name"))

	token := q.Get("token")
	if ck, err := r.Cookie(auth.CookieName); err == nil && ck.Value != "" {
		token = ck.Value
	}
	if token != "" {
		claims, err := s.opts.Signer.AuthenticateJWT(token)
		if err == nil {
			id, _ := claims.PlayerID()
			if name == "" {
				name = claims.Name
			}
			if name == "" {
				name = defaultGuestName
			}
			return id, name, nil
		}
		s.log.Debugf("Rejected token from %s: %v", r.RemoteAddr, err)
	}

	if name == "" {
		name = defaultGuestName
	}
	id, _, err := s.mintGuest(w, name)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, name, nil
}

// guestName returns the trimmed name if it is valid, else "".
func (s *Server) guestName(raw string) string {
	req := guestRequest{Name: strings.TrimSpace(raw)}
	if s.validate.Struct(req) != nil {
		return ""
	}
	return req.Name
}

func (s *Server) mintGuest(w http.ResponseWriter, name string) (uuid.UUID, string, error) {
	id := uuid.New()
	token, err := s.opts.Signer.CreateJWT(id, name)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to create guest JWT: %w", err)
	}
	ck := &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
	if ttl := s.opts.Signer.TTL(); ttl > 0 {
		ck.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, ck)
	return id, token, nil
}
