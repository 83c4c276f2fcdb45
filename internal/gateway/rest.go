// Package gateway exposes the two external surfaces of the lobby core:
// the request/response REST API and the streaming WebSocket channel.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/losieee/MonsterRat/internal/lobby"
	"github.com/losieee/MonsterRat/internal/protocol"
)

// RequestGateway serves room listing, creation, and join over REST.
// Create and join hand back a one-time connect URL; all room state
// mutation beyond the provisional reservation happens on the streaming
// bind.
type RequestGateway struct {
	store  *lobby.Store
	logger *zap.Logger
}

// NewRequestGateway creates a RequestGateway.
//
// Precondition: store and logger must be non-nil.
func NewRequestGateway(store *lobby.Store, logger *zap.Logger) *RequestGateway {
	return &RequestGateway{store: store, logger: logger}
}

// Register installs the REST routes on the engine.
func (g *RequestGateway) Register(r *gin.Engine) {
	r.GET("/healthz", g.handleHealth)
	r.GET("/rooms", g.handleListRooms)
	r.POST("/rooms/create", g.handleCreateRoom)
	r.POST("/rooms/join", g.handleJoinRoom)
}

func (g *RequestGateway) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (g *RequestGateway) handleListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": g.store.ListRooms()})
}

type createRoomRequest struct {
	ClientID string `json:"clientId"`
}

func (g *RequestGateway) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	// A malformed body is indistinguishable from a missing client id.
	_ = c.ShouldBindJSON(&req)

	created, err := g.store.CreateRoom(req.ClientID)
	if err != nil {
		g.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"roomId":  created.Code,
		"hostKey": created.HostKey,
		"wsUrl":   wsURL(c.Request.Host, created.Code, req.ClientID, created.HostKey),
	})
}

type joinRoomRequest struct {
	RoomID   string `json:"roomId"`
	ClientID string `json:"clientId"`
}

func (g *RequestGateway) handleJoinRoom(c *gin.Context) {
	var req joinRoomRequest
	_ = c.ShouldBindJSON(&req)

	if err := g.store.PreflightJoin(req.RoomID, req.ClientID); err != nil {
		g.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"roomId": req.RoomID,
		"wsUrl":  wsURL(c.Request.Host, req.RoomID, req.ClientID, ""),
	})
}

func (g *RequestGateway) fail(c *gin.Context, err error) {
	status, code := errorCode(err)
	c.JSON(status, gin.H{"ok": false, "error": code})
}

func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, lobby.ErrNoClientID):
		return http.StatusBadRequest, protocol.CodeNoClientID
	case errors.Is(err, lobby.ErrAlreadyInRoom):
		return http.StatusConflict, protocol.CodeAlreadyInRoom
	case errors.Is(err, lobby.ErrRoomNotFound):
		return http.StatusNotFound, protocol.CodeRoomNotFound
	case errors.Is(err, lobby.ErrRoomFull):
		return http.StatusConflict, protocol.CodeRoomFull
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// wsURL builds the one-time connect endpoint for the streaming channel,
// addressed at the same host the REST request arrived on.
func wsURL(host, roomID, clientID, hostKey string) string {
	q := url.Values{}
	q.Set("roomId", roomID)
	q.Set("clientId", clientID)
	if hostKey != "" {
		q.Set("hostKey", hostKey)
	}
	return fmt.Sprintf("ws://%s/ws?%s", host, q.Encode())
}
