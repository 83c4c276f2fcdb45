package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              3000,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Lobby: LobbyConfig{
			RoomCodeLength:  6,
			ProvisionalTTL:  45 * time.Second,
			ReapInterval:    10 * time.Second,
			GamePort:        7777,
			DefaultScene:    "GameScene",
			RequireHostAddr: true,
			SendBuffer:      32,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestServerAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Addr())
}

func TestInvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestInvalidLobby(t *testing.T) {
	cfg := validConfig()
	cfg.Lobby.RoomCodeLength = 2
	cfg.Lobby.ProvisionalTTL = 0
	cfg.Lobby.DefaultScene = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lobby.room_code_length")
	assert.Contains(t, err.Error(), "lobby.provisional_ttl")
	assert.Contains(t, err.Error(), "lobby.default_scene")
}

func TestInvalidLogging(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")

	cfg = validConfig()
	cfg.Logging.Format = "xml"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 8090
lobby:
  room_code_length: 8
  provisional_ttl: 30s
  game_port: 7778
logging:
  level: debug
  format: console
`), 0o600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8090", cfg.Server.Addr())
	assert.Equal(t, 8, cfg.Lobby.RoomCodeLength)
	assert.Equal(t, 30*time.Second, cfg.Lobby.ProvisionalTTL)
	assert.Equal(t, 7778, cfg.Lobby.GamePort)
	// Defaults fill the unspecified fields.
	assert.Equal(t, "GameScene", cfg.Lobby.DefaultScene)
	assert.Equal(t, 10*time.Second, cfg.Lobby.ReapInterval)
	assert.True(t, cfg.Lobby.RequireHostAddr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromViper(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("server.port", 8090)

	cfg, err := LoadFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "GameScene", cfg.Lobby.DefaultScene)

	v.Set("logging.format", "xml")
	_, err = LoadFromViper(v)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPortValidationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := validConfig()
		port := rapid.IntRange(-100, 100000).Draw(t, "port")
		cfg.Server.Port = port
		err := cfg.Validate()
		if port >= 1 && port <= 65535 {
			assert.NoError(t, err)
		} else {
			assert.Error(t, err)
		}
	})
}
