// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby socket.
const (
	BadSubprotocolError   = 3000 // Client offered subprotocols but not squadup.
	UnsupportedFrameError = 3001 // Client sent a binary frame; the protocol is JSON text.
)
