// Package protocol defines the wire frames exchanged over the lobby
// WebSocket channel. Frames are a tagged union discriminated by the
// "type" field; inbound payloads are decoded structurally, never by
// pattern matching on the raw text.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Type discriminates wire frames.
type Type string

const (
	// Server to client.
	TypeJoined      Type = "joined"
	TypeRoomState   Type = "room_state"
	TypeRoomsUpdate Type = "rooms_update"
	TypeGameStart   Type = "game_start"
	TypeError       Type = "error"

	// Client to server.
	TypeStartGame Type = "start_game"
)

// Close reasons carried on the WebSocket close control frame when a
// connection is rejected before it joins a room. No data frame is sent
// on these paths, so the client can distinguish "rejected before join"
// from "joined then dropped".
const (
	CloseNoRoomOrClient = "NO_ROOM_OR_CLIENT"
	CloseRoomNotFound   = "ROOM_NOT_FOUND"
	CloseAlreadyInRoom  = "ALREADY_IN_ROOM"
	CloseRoomFull       = "ROOM_FULL"
)

// Error codes surfaced in REST responses and error frames.
const (
	CodeNoClientID    = "NO_CLIENT_ID"
	CodeAlreadyInRoom = "ALREADY_IN_ROOM"
	CodeRoomNotFound  = "ROOM_NOT_FOUND"
	CodeRoomFull      = "ROOM_FULL"
	CodeHostAddrEmpty = "HOST_IP_EMPTY"
)

// Joined confirms a successful bind to the connecting client. IsHost
// reflects host status at bind time only; recipients must re-derive it
// from RoomState.HostClientID on every subsequent update.
type Joined struct {
	Type        Type   `json:"type"`
	RoomID      string `json:"roomId"`
	IsHost      bool   `json:"isHost"`
	PlayerCount int    `json:"playerCount"`
}

// RoomState is fanned out to a room's members after every membership or
// start-flag change.
type RoomState struct {
	Type         Type   `json:"type"`
	RoomID       string `json:"roomId"`
	PlayerCount  int    `json:"playerCount"`
	CanStart     bool   `json:"canStart"`
	Started      bool   `json:"started"`
	HostClientID string `json:"hostClientId"`
}

// RoomSummary is one row of the public room list. Host credentials are
// never part of it.
type RoomSummary struct {
	RoomID      string `json:"roomId"`
	CreatedAt   int64  `json:"createdAt"`
	PlayerCount int    `json:"playerCount"`
	Started     bool   `json:"started"`
}

// RoomsUpdate carries the full public room list, newest first.
type RoomsUpdate struct {
	Type  Type          `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}

// GameStart is the terminal lobby event instructing both members to
// load the scene and connect to the host.
type GameStart struct {
	Type      Type   `json:"type"`
	RoomID    string `json:"roomId"`
	SceneName string `json:"sceneName"`
	HostIP    string `json:"hostIp"`
	Port      int    `json:"port"`
}

// ErrorFrame reports a rejected command on an established channel.
type ErrorFrame struct {
	Type  Type   `json:"type"`
	Error string `json:"error"`
}

// Command is the decoded form of a client-originated frame. StartGame
// is the only meaningful command; SceneName and HostIP are optional.
type Command struct {
	Type      Type   `json:"type"`
	SceneName string `json:"sceneName"`
	HostIP    string `json:"hostIp"`
}

// DecodeCommand parses a client frame.
//
// Postcondition: Returns the decoded Command, or an error for frames
// that are not valid JSON objects.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("decoding client frame: %w", err)
	}
	if cmd.Type == "" {
		return Command{}, fmt.Errorf("client frame missing type")
	}
	return cmd, nil
}
