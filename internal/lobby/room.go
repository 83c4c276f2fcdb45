// Package lobby owns the room registry and session table for the
// matchmaking core: room lifecycle, membership, host identity, and the
// client-to-room index that enforces one room per client.
package lobby

import (
	"time"

	"github.com/losieee/MonsterRat/internal/protocol"
)

// RoomCapacity is the fixed number of players per room.
const RoomCapacity = 2

// Sender delivers one marshaled frame to a connection without blocking.
// Implementations report false when the frame was dropped (closed
// connection or full buffer).
type Sender interface {
	Send(frame []byte) bool
}

// Broadcaster fans lobby events out to connections. The store invokes it
// while holding its lock, so implementations must only enqueue, never
// perform I/O.
type Broadcaster interface {
	Joined(evt protocol.Joined, to Sender)
	RoomState(evt protocol.RoomState, to []Sender)
	RoomList(rooms []protocol.RoomSummary, to []Sender)
	GameStart(evt protocol.GameStart, to []Sender)
	Error(code string, to Sender)
}

// session is one bound streaming connection inside a room.
type session struct {
	clientID string
	sender   Sender
	// isHost records host status at bind time for the joined event only.
	// Current host identity always comes from room.hostClientID.
	isHost bool
}

// room is the registry entry for a single matchmaking room. All fields
// are guarded by the owning Store's lock.
type room struct {
	code         string
	hostKey      string
	hostKeyUsed  bool
	createdAt    time.Time
	started      bool
	hostClientID string
	// members in join order; index 0 is the oldest member and the
	// deterministic host-migration target.
	members []*session
}

func (r *room) memberIndex(clientID string) int {
	for i, m := range r.members {
		if m.clientID == clientID {
			return i
		}
	}
	return -1
}

func (r *room) senders() []Sender {
	out := make([]Sender, len(r.members))
	for i, m := range r.members {
		out[i] = m.sender
	}
	return out
}

func (r *room) summary() protocol.RoomSummary {
	return protocol.RoomSummary{
		RoomID:      r.code,
		CreatedAt:   r.createdAt.UnixMilli(),
		PlayerCount: len(r.members),
		Started:     r.started,
	}
}

func (r *room) state() protocol.RoomState {
	return protocol.RoomState{
		Type:         protocol.TypeRoomState,
		RoomID:       r.code,
		PlayerCount:  len(r.members),
		CanStart:     len(r.members) == RoomCapacity && !r.started,
		Started:      r.started,
		HostClientID: r.hostClientID,
	}
}
