package lobby

import "errors"

// Sentinel errors returned by Store operations. Gateways map these onto
// REST error codes and WebSocket close reasons.
var (
	ErrNoClientID       = errors.New("client id required")
	ErrAlreadyInRoom    = errors.New("client already in a room")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrNotHost          = errors.New("client is not the room host")
	ErrWrongPlayerCount = errors.New("room does not have exactly two players")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrHostAddrMissing  = errors.New("host address required")
)
