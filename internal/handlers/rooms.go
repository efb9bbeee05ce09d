// internal/handlers/rooms.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/game"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

func roomIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// RoomStatusHandler tells a client whether a room can be joined before it connects:
// 200 joinable, 403 full, 404 unknown or ended, 400 malformed id.
func (s *Server) RoomStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := roomIDParam(r)
	if !ok {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}
	err := s.opts.Registry.JoinStatus(id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{"roomId": id, "joinable": true})
	case errors.Is(err, game.ErrSessionFull):
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"roomId": id, "joinable": false, "code": game.Code(err)})
	default:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"roomId": id, "joinable": false, "code": game.Code(err)})
	}
}

// RoomQRHandler renders the invite link of a room as a PNG QR code.
func (s *Server) RoomQRHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := roomIDParam(r)
	if !ok {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}
	if _, ok := s.opts.Registry.Get(id); !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	png, err := qrcode.Encode(s.inviteURL(id), qrcode.Medium, qrSize)
	if err != nil {
		s.log.WithError(err).Errorf("Failed to encode invite QR for %s", id)
		http.Error(w, "failed to render QR code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) inviteURL(id uuid.UUID) string {
	return s.opts.PublicBaseURL + "/?room=" + id.String()
}
