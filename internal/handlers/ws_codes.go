// internal/handlers/ws_codes.go
package handlers

// WebSocket close codes in the application range (3000+), so clients
// can tell a protocol mistake from a bad token or a stale lobby link.
const (
	BadSubprotocolError   = 3000 // wrong or missing subprotocol on the upgrade
	InvalidAuthTokenError = 3001 // auth token rejected after the upgrade completed
	InvalidUserIDError    = 3002 // user id carried by the token is malformed
	InvalidLobbyIDError   = 3003 // lobby in the WS URL does not exist
)
