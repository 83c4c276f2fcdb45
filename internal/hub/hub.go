// Package hub fans lobby events out to bound connections. Each event is
// marshaled once and enqueued onto per-connection send buffers; the
// actual socket write happens on each connection's writer goroutine, so
// a slow consumer can never stall the caller.
package hub

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/losieee/MonsterRat/internal/lobby"
	"github.com/losieee/MonsterRat/internal/protocol"
)

// Hub implements lobby.Broadcaster.
type Hub struct {
	logger *zap.Logger
}

// New creates a Hub.
//
// Precondition: logger must be non-nil.
func New(logger *zap.Logger) *Hub {
	return &Hub{logger: logger}
}

// Joined delivers the bind confirmation to the newly bound connection.
func (h *Hub) Joined(evt protocol.Joined, to lobby.Sender) {
	evt.Type = protocol.TypeJoined
	h.fan(evt, string(evt.Type), []lobby.Sender{to})
}

// RoomState delivers a room state change to that room's members.
func (h *Hub) RoomState(evt protocol.RoomState, to []lobby.Sender) {
	evt.Type = protocol.TypeRoomState
	h.fan(evt, string(evt.Type), to)
}

// RoomList delivers the public room list to every bound connection.
func (h *Hub) RoomList(rooms []protocol.RoomSummary, to []lobby.Sender) {
	evt := protocol.RoomsUpdate{Type: protocol.TypeRoomsUpdate, Rooms: rooms}
	h.fan(evt, string(evt.Type), to)
}

// GameStart delivers the terminal start event to a room's members. The
// hub does not close the connections; that is the clients' prerogative
// once they have consumed the event.
func (h *Hub) GameStart(evt protocol.GameStart, to []lobby.Sender) {
	evt.Type = protocol.TypeGameStart
	h.fan(evt, string(evt.Type), to)
}

// Error delivers a command rejection to a single connection.
func (h *Hub) Error(code string, to lobby.Sender) {
	evt := protocol.ErrorFrame{Type: protocol.TypeError, Error: code}
	h.fan(evt, string(evt.Type), []lobby.Sender{to})
}

func (h *Hub) fan(evt any, evtType string, to []lobby.Sender) {
	frame, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("marshaling event", zap.String("event", evtType), zap.Error(err))
		return
	}
	for _, snd := range to {
		if !snd.Send(frame) {
			h.logger.Warn("dropping frame for slow or closed connection",
				zap.String("event", evtType),
			)
		}
	}
}
