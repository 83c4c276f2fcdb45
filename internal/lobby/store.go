package lobby

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/losieee/MonsterRat/internal/config"
	"github.com/losieee/MonsterRat/internal/protocol"
)

// indexEntry is one client-to-room record. A provisional entry is
// installed at request time and upgraded when the streaming bind
// arrives; an entry that never binds is reaped after a TTL.
type indexEntry struct {
	roomCode   string
	bound      bool
	reservedAt time.Time
}

// Store is the room registry and session table. All methods are safe for
// concurrent use; every mutation of a room is serialized against every
// other mutation of the same room, so no two concurrent binds can both
// observe a free slot and both succeed. The lock is only ever held over
// in-memory map work and non-blocking fan-out enqueues, never I/O.
type Store struct {
	cfg    config.LobbyConfig
	logger *zap.Logger
	bc     Broadcaster

	mu      sync.RWMutex
	rooms   map[string]*room
	clients map[string]*indexEntry

	now func() time.Time
}

// CreatedRoom is the result of a successful room creation. HostKey is
// handed out exactly once, here.
type CreatedRoom struct {
	Code    string
	HostKey string
}

// NewStore creates an empty Store.
//
// Precondition: logger and bc must be non-nil; cfg must be validated.
func NewStore(cfg config.LobbyConfig, logger *zap.Logger, bc Broadcaster) *Store {
	return &Store{
		cfg:     cfg,
		logger:  logger,
		bc:      bc,
		rooms:   make(map[string]*room),
		clients: make(map[string]*indexEntry),
		now:     time.Now,
	}
}

// CreateRoom mints a new room with a collision-free code and a one-time
// host key, and reserves the creator's client identifier.
//
// Postcondition: On success the room is listed with zero players and the
// creator holds a provisional index entry, or ErrNoClientID /
// ErrAlreadyInRoom is returned with no state change.
func (s *Store) CreateRoom(clientID string) (CreatedRoom, error) {
	if clientID == "" {
		return CreatedRoom{}, ErrNoClientID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[clientID]; exists {
		return CreatedRoom{}, ErrAlreadyInRoom
	}

	var code string
	for {
		c, err := newRoomCode(s.cfg.RoomCodeLength)
		if err != nil {
			return CreatedRoom{}, err
		}
		if _, taken := s.rooms[c]; !taken {
			code = c
			break
		}
	}

	r := &room{
		code:      code,
		hostKey:   uuid.NewString(),
		createdAt: s.now(),
	}
	s.rooms[code] = r
	s.clients[clientID] = &indexEntry{roomCode: code, reservedAt: s.now()}

	s.logger.Info("room created",
		zap.String("room", code),
		zap.String("client", clientID),
	)
	return CreatedRoom{Code: code, HostKey: r.hostKey}, nil
}

// ListRooms returns a consistent snapshot of the public room list,
// newest first. Host keys are never included.
func (s *Store) ListRooms() []protocol.RoomSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked()
}

func (s *Store) listLocked() []protocol.RoomSummary {
	out := make([]protocol.RoomSummary, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].RoomID < out[j].RoomID
	})
	return out
}

// PreflightJoin validates a join request and reserves the client
// identifier. The capacity check here is advisory; Bind re-validates.
//
// Postcondition: On success the client holds a provisional index entry
// for the room; on error no state changes.
func (s *Store) PreflightJoin(code, clientID string) error {
	if clientID == "" {
		return ErrNoClientID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[clientID]; exists {
		return ErrAlreadyInRoom
	}
	r, ok := s.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	if len(r.members) >= RoomCapacity {
		return ErrRoomFull
	}

	s.clients[clientID] = &indexEntry{roomCode: code, reservedAt: s.now()}
	return nil
}

// Bind atomically attaches a streaming connection to a room. This is the
// correctness-critical recheck: room existence, capacity, and
// one-room-per-client are all re-validated here regardless of any
// earlier preflight. Host assignment, in order: a matching unused host
// key makes the client host; otherwise a hostless room adopts the client
// as host by default.
//
// Postcondition: On success the joined event, the room state, and the
// room list have been fanned out in that order; on error nothing changed.
func (s *Store) Bind(code, clientID, hostKey string, snd Sender) error {
	if clientID == "" {
		return ErrNoClientID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.clients[clientID]
	if entry != nil && (entry.bound || entry.roomCode != code) {
		return ErrAlreadyInRoom
	}
	r, ok := s.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	if len(r.members) >= RoomCapacity {
		return ErrRoomFull
	}

	if hostKey != "" && hostKey == r.hostKey && !r.hostKeyUsed {
		r.hostKeyUsed = true
		r.hostClientID = clientID
	}
	if r.hostClientID == "" {
		r.hostClientID = clientID
	}

	sess := &session{
		clientID: clientID,
		sender:   snd,
		isHost:   r.hostClientID == clientID,
	}
	r.members = append(r.members, sess)

	if entry != nil {
		entry.bound = true
	} else {
		s.clients[clientID] = &indexEntry{roomCode: code, bound: true, reservedAt: s.now()}
	}

	s.bc.Joined(protocol.Joined{
		Type:        protocol.TypeJoined,
		RoomID:      code,
		IsHost:      sess.isHost,
		PlayerCount: len(r.members),
	}, snd)
	s.bc.RoomState(r.state(), r.senders())
	s.bc.RoomList(s.listLocked(), s.allSendersLocked())

	s.logger.Info("session bound",
		zap.String("room", code),
		zap.String("client", clientID),
		zap.Bool("host", sess.isHost),
		zap.Int("players", len(r.members)),
	)
	return nil
}

// Unbind removes a session. Idempotent: a client that is not a current
// member of the room is a no-op, so a close racing an explicit leave
// cleans up exactly once. The started flag always clears, the host
// migrates to the oldest remaining member, and a room whose session set
// empties is deleted together with any provisional entries still
// pointing at it.
func (s *Store) Unbind(code, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return
	}
	idx := r.memberIndex(clientID)
	if idx < 0 {
		return
	}

	r.members = append(r.members[:idx], r.members[idx+1:]...)
	delete(s.clients, clientID)
	r.started = false

	if r.hostClientID == clientID {
		r.hostClientID = ""
		if len(r.members) > 0 {
			r.hostClientID = r.members[0].clientID
		}
	}

	if len(r.members) == 0 {
		s.deleteRoomLocked(code)
		s.bc.RoomList(s.listLocked(), s.allSendersLocked())
		return
	}

	s.bc.RoomState(r.state(), r.senders())
	s.bc.RoomList(s.listLocked(), s.allSendersLocked())

	s.logger.Info("session unbound",
		zap.String("room", code),
		zap.String("client", clientID),
		zap.Int("players", len(r.members)),
		zap.String("host", r.hostClientID),
	)
}

// StartGame marks the room started and fans out the game_start event.
// Only the current host may start, membership must be exactly
// RoomCapacity, and the room must not already be started; violations are
// returned for the caller to drop silently (stale or duplicate commands
// are expected, not errors). A missing host address, when required,
// yields ErrHostAddrMissing and leaves the room startable.
func (s *Store) StartGame(code, clientID, sceneName, hostAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	if clientID != r.hostClientID {
		return ErrNotHost
	}
	if len(r.members) != RoomCapacity {
		return ErrWrongPlayerCount
	}
	if r.started {
		return ErrAlreadyStarted
	}

	hostAddr = strings.TrimSpace(hostAddr)
	if s.cfg.RequireHostAddr && hostAddr == "" {
		return ErrHostAddrMissing
	}
	if sceneName == "" {
		sceneName = s.cfg.DefaultScene
	}

	r.started = true
	s.bc.GameStart(protocol.GameStart{
		Type:      protocol.TypeGameStart,
		RoomID:    code,
		SceneName: sceneName,
		HostIP:    hostAddr,
		Port:      s.cfg.GamePort,
	}, r.senders())

	s.logger.Info("game starting",
		zap.String("room", code),
		zap.String("host", clientID),
		zap.String("scene", sceneName),
	)
	return nil
}

// ReapExpired drops provisional index entries older than ttl and deletes
// rooms left with neither sessions nor reservations. Returns the number
// of entries reaped.
func (s *Store) ReapExpired(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	var reaped []string
	for clientID, entry := range s.clients {
		if !entry.bound && entry.reservedAt.Before(cutoff) {
			reaped = append(reaped, clientID)
		}
	}
	if len(reaped) == 0 {
		return 0
	}

	affected := make(map[string]bool)
	for _, clientID := range reaped {
		affected[s.clients[clientID].roomCode] = true
		delete(s.clients, clientID)
	}

	deletedAny := false
	for code := range affected {
		r, ok := s.rooms[code]
		if !ok || len(r.members) > 0 || s.roomReferencedLocked(code) {
			continue
		}
		delete(s.rooms, code)
		deletedAny = true
		s.logger.Info("room reaped", zap.String("room", code))
	}
	if deletedAny {
		s.bc.RoomList(s.listLocked(), s.allSendersLocked())
	}

	s.logger.Debug("reaped provisional entries", zap.Int("count", len(reaped)))
	return len(reaped)
}

// RoomCount returns the number of live rooms.
func (s *Store) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// HasClient reports whether the client identifier is currently indexed,
// either provisionally or bound.
func (s *Store) HasClient(clientID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clients[clientID]
	return ok
}

// deleteRoomLocked removes the room and any provisional entries that
// still reference it. Callers hold s.mu.
func (s *Store) deleteRoomLocked(code string) {
	delete(s.rooms, code)
	for clientID, entry := range s.clients {
		if entry.roomCode == code && !entry.bound {
			delete(s.clients, clientID)
		}
	}
	s.logger.Info("room deleted", zap.String("room", code))
}

// roomReferencedLocked reports whether any index entry still points at
// the room. Callers hold s.mu.
func (s *Store) roomReferencedLocked(code string) bool {
	for _, entry := range s.clients {
		if entry.roomCode == code {
			return true
		}
	}
	return false
}

// allSendersLocked returns every bound sender across all rooms, the
// audience for room list updates. Callers hold s.mu.
func (s *Store) allSendersLocked() []Sender {
	var out []Sender
	for _, r := range s.rooms {
		for _, m := range r.members {
			out = append(out, m.sender)
		}
	}
	return out
}
