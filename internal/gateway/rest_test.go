package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/losieee/MonsterRat/internal/config"
	"github.com/losieee/MonsterRat/internal/hub"
	"github.com/losieee/MonsterRat/internal/lobby"
)

type nullSender struct{}

func (nullSender) Send([]byte) bool { return true }

func testLobbyCfg() config.LobbyConfig {
	return config.LobbyConfig{
		RoomCodeLength:  6,
		ProvisionalTTL:  45 * time.Second,
		ReapInterval:    10 * time.Second,
		GamePort:        7777,
		DefaultScene:    "GameScene",
		RequireHostAddr: true,
		SendBuffer:      32,
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *lobby.Store) {
	t.Helper()
	logger := zap.NewNop()
	cfg := testLobbyCfg()
	broadcast := hub.New(logger)
	store := lobby.NewStore(cfg, logger, broadcast)
	rest := NewRequestGateway(store, logger)
	sessions := NewSessionGateway(store, broadcast, cfg, logger)
	return NewRouter(rest, sessions, logger), store
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Host = "lobby.test"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	status, resp := doJSON(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", resp["status"])
}

func TestCreateRoomEndpoint(t *testing.T) {
	r, store := newTestRouter(t)

	status, resp := doJSON(t, r, http.MethodPost, "/rooms/create", `{"clientId":"c1"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, resp["ok"])

	roomID, _ := resp["roomId"].(string)
	assert.Len(t, roomID, 6)
	assert.NotEmpty(t, resp["hostKey"])
	assert.Equal(t, 1, store.RoomCount())

	wsRaw, _ := resp["wsUrl"].(string)
	u, err := url.Parse(wsRaw)
	require.NoError(t, err)
	assert.Equal(t, "ws", u.Scheme)
	assert.Equal(t, "lobby.test", u.Host)
	assert.Equal(t, "/ws", u.Path)
	assert.Equal(t, roomID, u.Query().Get("roomId"))
	assert.Equal(t, "c1", u.Query().Get("clientId"))
	assert.Equal(t, resp["hostKey"], u.Query().Get("hostKey"))
}

func TestCreateRoomMissingClientID(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, body := range []string{`{}`, `{"clientId":""}`, `not json`} {
		status, resp := doJSON(t, r, http.MethodPost, "/rooms/create", body)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, false, resp["ok"])
		assert.Equal(t, "NO_CLIENT_ID", resp["error"])
	}
}

func TestCreateRoomTwiceConflicts(t *testing.T) {
	r, _ := newTestRouter(t)

	status, _ := doJSON(t, r, http.MethodPost, "/rooms/create", `{"clientId":"c1"}`)
	require.Equal(t, http.StatusOK, status)

	status, resp := doJSON(t, r, http.MethodPost, "/rooms/create", `{"clientId":"c1"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_IN_ROOM", resp["error"])
}

func TestListRoomsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	status, resp := doJSON(t, r, http.MethodGet, "/rooms", "")
	require.Equal(t, http.StatusOK, status)
	rooms, ok := resp["rooms"].([]any)
	require.True(t, ok, "rooms must be a JSON array even when empty")
	assert.Empty(t, rooms)

	_, created := doJSON(t, r, http.MethodPost, "/rooms/create", `{"clientId":"c1"}`)
	status, resp = doJSON(t, r, http.MethodGet, "/rooms", "")
	require.Equal(t, http.StatusOK, status)
	rooms, _ = resp["rooms"].([]any)
	require.Len(t, rooms, 1)

	row, _ := rooms[0].(map[string]any)
	assert.Equal(t, created["roomId"], row["roomId"])
	assert.EqualValues(t, 0, row["playerCount"])
	assert.Equal(t, false, row["started"])
	assert.NotContains(t, row, "hostKey")
}

func TestJoinRoomEndpoint(t *testing.T) {
	r, store := newTestRouter(t)
	_, created := doJSON(t, r, http.MethodPost, "/rooms/create", `{"clientId":"c1"}`)
	roomID := created["roomId"].(string)

	status, resp := doJSON(t, r, http.MethodPost, "/rooms/join", `{"roomId":"`+roomID+`","clientId":"c2"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, roomID, resp["roomId"])

	u, err := url.Parse(resp["wsUrl"].(string))
	require.NoError(t, err)
	assert.Equal(t, roomID, u.Query().Get("roomId"))
	assert.Equal(t, "c2", u.Query().Get("clientId"))
	assert.Empty(t, u.Query().Get("hostKey"), "joiners never receive a host key")

	assert.True(t, store.HasClient("c2"))
}

func TestJoinRoomErrors(t *testing.T) {
	r, store := newTestRouter(t)
	_, created := doJSON(t, r, http.MethodPost, "/rooms/create", `{"clientId":"c1"}`)
	roomID := created["roomId"].(string)

	status, resp := doJSON(t, r, http.MethodPost, "/rooms/join", `{"roomId":"`+roomID+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "NO_CLIENT_ID", resp["error"])

	status, resp = doJSON(t, r, http.MethodPost, "/rooms/join", `{"roomId":"ZZZZZZ","clientId":"c2"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ROOM_NOT_FOUND", resp["error"])

	status, resp = doJSON(t, r, http.MethodPost, "/rooms/join", `{"roomId":"`+roomID+`","clientId":"c1"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_IN_ROOM", resp["error"])

	require.NoError(t, store.Bind(roomID, "c1", created["hostKey"].(string), nullSender{}))
	require.NoError(t, store.PreflightJoin(roomID, "c2"))
	require.NoError(t, store.Bind(roomID, "c2", "", nullSender{}))

	status, resp = doJSON(t, r, http.MethodPost, "/rooms/join", `{"roomId":"`+roomID+`","clientId":"c3"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ROOM_FULL", resp["error"])
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/rooms", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
