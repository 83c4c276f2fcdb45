package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/losieee/MonsterRat/internal/config"
	"github.com/losieee/MonsterRat/internal/hub"
	"github.com/losieee/MonsterRat/internal/lobby"
	"github.com/losieee/MonsterRat/internal/protocol"
)

// SessionGateway upgrades streaming connections, validates the
// room/client/credential tuple against the store, and routes frames for
// the lifetime of the bind. Each connection moves through
// connecting -> bound -> closed; a failed bind closes the channel with a
// reason code before any data frame is sent.
type SessionGateway struct {
	store    *lobby.Store
	hub      *hub.Hub
	cfg      config.LobbyConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewSessionGateway creates a SessionGateway.
//
// Precondition: store, h, and logger must be non-nil.
func NewSessionGateway(store *lobby.Store, h *hub.Hub, cfg config.LobbyConfig, logger *zap.Logger) *SessionGateway {
	return &SessionGateway{
		store:  store,
		hub:    h,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The lobby is reachable from game clients on other hosts.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and runs the connection to completion.
func (g *SessionGateway) Handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roomID := q.Get("roomId")
	clientID := q.Get("clientId")
	hostKey := q.Get("hostKey")

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if roomID == "" || clientID == "" {
		g.reject(conn, protocol.CloseNoRoomOrClient)
		return
	}

	ws := newWSConn(conn, g.cfg.SendBuffer, g.logger)
	if err := g.store.Bind(roomID, clientID, hostKey, ws); err != nil {
		g.reject(conn, closeReason(err))
		return
	}
	go ws.writePump()

	defer func() {
		// Exactly one cleanup per connection: Unbind no-ops if the
		// session is already gone, close is guarded by a Once.
		g.store.Unbind(roomID, clientID)
		ws.close()
	}()

	g.readPump(conn, roomID, clientID, ws)
}

// readPump is the single reader for the connection. The only meaningful
// client command is start_game; everything else is dropped without a
// reply, which is the defense against stale or duplicate commands
// arriving after a state change.
func (g *SessionGateway) readPump(conn *websocket.Conn, roomID, clientID string, ws *wsConn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("read error",
					zap.String("room", roomID),
					zap.String("client", clientID),
					zap.Error(err),
				)
			}
			return
		}

		cmd, err := protocol.DecodeCommand(data)
		if err != nil {
			g.logger.Debug("undecodable client frame", zap.String("client", clientID), zap.Error(err))
			continue
		}
		if cmd.Type != protocol.TypeStartGame {
			g.logger.Debug("ignoring unknown command",
				zap.String("client", clientID),
				zap.String("command", string(cmd.Type)),
			)
			continue
		}

		switch err := g.store.StartGame(roomID, clientID, cmd.SceneName, cmd.HostIP); {
		case err == nil:
		case errors.Is(err, lobby.ErrHostAddrMissing):
			g.hub.Error(protocol.CodeHostAddrEmpty, ws)
		default:
			g.logger.Debug("start_game ignored",
				zap.String("room", roomID),
				zap.String("client", clientID),
				zap.Error(err),
			)
		}
	}
}

// reject closes a never-bound connection with a policy violation code.
// No data frame precedes the close, so clients can tell a rejection from
// a post-join drop.
func (g *SessionGateway) reject(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	conn.Close()
	g.logger.Info("connection rejected", zap.String("reason", reason))
}

func closeReason(err error) string {
	switch {
	case errors.Is(err, lobby.ErrRoomNotFound):
		return protocol.CloseRoomNotFound
	case errors.Is(err, lobby.ErrAlreadyInRoom):
		return protocol.CloseAlreadyInRoom
	case errors.Is(err, lobby.ErrRoomFull):
		return protocol.CloseRoomFull
	default:
		return protocol.CloseNoRoomOrClient
	}
}
