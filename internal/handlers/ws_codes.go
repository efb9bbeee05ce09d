// internal/handlers/ws_codes.go
package handlers

// Subprotocol is the WebSocket subprotocol clients must request.
const Subprotocol = "wordparty"

// Custom WebSocket close codes used by the play handler.
const (
	BadSubprotocolError      = 3000 // Client did not negotiate the wordparty subprotocol.
	RoomError                = 3001 // Create or join was rejected; an error event is sent first.
	DuplicateConnectionError = 3002 // The player already has a live connection.
	RoomClosedError          = 3003 // The room was removed while the player was in it.
)
