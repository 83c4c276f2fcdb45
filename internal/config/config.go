// Package config provides Viper-based configuration loading for the lobby server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings. The REST API and the
// WebSocket endpoint share one listener.
type ServerConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LobbyConfig holds matchmaking and session settings.
type LobbyConfig struct {
	// RoomCodeLength is the length of generated room codes.
	RoomCodeLength int `mapstructure:"room_code_length"`
	// ProvisionalTTL is how long an unfulfilled create/join reservation
	// may block a client identifier before it is reaped.
	ProvisionalTTL time.Duration `mapstructure:"provisional_ttl"`
	// ReapInterval is how often expired reservations are collected.
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	// GamePort is the port advertised to clients in game_start events.
	GamePort int `mapstructure:"game_port"`
	// DefaultScene is the scene name used when start_game omits one.
	DefaultScene string `mapstructure:"default_scene"`
	// RequireHostAddr rejects start_game commands that carry no host
	// address instead of starting with an empty one.
	RequireHostAddr bool `mapstructure:"require_host_addr"`
	// SendBuffer is the per-connection outbound frame buffer size.
	SendBuffer int `mapstructure:"send_buffer"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Lobby   LobbyConfig   `mapstructure:"lobby"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLobby(c.Lobby); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ReadHeaderTimeout < 0 {
		errs = append(errs, "server.read_header_timeout must not be negative")
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLobby(l LobbyConfig) error {
	var errs []string
	if l.RoomCodeLength < 4 || l.RoomCodeLength > 16 {
		errs = append(errs, fmt.Sprintf("lobby.room_code_length must be 4-16, got %d", l.RoomCodeLength))
	}
	if l.ProvisionalTTL <= 0 {
		errs = append(errs, "lobby.provisional_ttl must be positive")
	}
	if l.ReapInterval <= 0 {
		errs = append(errs, "lobby.reap_interval must be positive")
	}
	if l.GamePort < 1 || l.GamePort > 65535 {
		errs = append(errs, fmt.Sprintf("lobby.game_port must be 1-65535, got %d", l.GamePort))
	}
	if l.DefaultScene == "" {
		errs = append(errs, "lobby.default_scene must not be empty")
	}
	if l.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("lobby.send_buffer must be >= 1, got %d", l.SendBuffer))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MONSTERRAT_ prefix
	v.SetEnvPrefix("MONSTERRAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("lobby.room_code_length", 6)
	v.SetDefault("lobby.provisional_ttl", "45s")
	v.SetDefault("lobby.reap_interval", "10s")
	v.SetDefault("lobby.game_port", 7777)
	v.SetDefault("lobby.default_scene", "GameScene")
	v.SetDefault("lobby.require_host_addr", true)
	v.SetDefault("lobby.send_buffer", 32)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
