package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/timcryt/poker-durak/internal/game"
)

// Config carries the runtime knobs for the pool, the sessions and the
// HTTP front.
type Config struct {
	// Addr is the host:port the HTTP server binds. It is also the value
	// substituted for {host} in served assets.
	Addr string
	// StaticDir is the directory the HTTP front serves assets from.
	StaticDir string
	// LogLevel is a zerolog level name.
	LogLevel string
	// Heartbeat bounds how long a socket may stay silent before it
	// counts as dead. Clients are told to ping well within it.
	Heartbeat time.Duration
	// TurnTimeout is how long a player may sit on their turn.
	TurnTimeout time.Duration
	// DisconnectGrace is how long a dropped player's seat is held for a
	// reconnect.
	DisconnectGrace time.Duration
	// ArrivalGrace delays dispatching a fresh socket so the teardown of
	// the connection it may be replacing can finish first.
	ArrivalGrace time.Duration
	// RefreshEvery throttles the per-frame turn bookkeeping.
	RefreshEvery time.Duration
	// MaxPlayers caps how many waiting players one table absorbs.
	MaxPlayers int
	// ChatLimit is the longest accepted chat message, in bytes.
	ChatLimit int
	// Seed fixes the RNG when nonzero; zero seeds from the clock.
	Seed int64
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8000",
		StaticDir:       "static",
		LogLevel:        "info",
		Heartbeat:       15 * time.Second,
		TurnTimeout:     300 * time.Second,
		DisconnectGrace: 5 * time.Second,
		ArrivalGrace:    200 * time.Millisecond,
		RefreshEvery:    250 * time.Millisecond,
		MaxPlayers:      game.MaxPlayers,
		ChatLimit:       4096,
	}
}

// fileConfig is the HCL shape of the config file.
type fileConfig struct {
	Server *serverBlock `hcl:"server,block"`
}

type serverBlock struct {
	Addr                   string `hcl:"addr,optional"`
	StaticDir              string `hcl:"static_dir,optional"`
	LogLevel               string `hcl:"log_level,optional"`
	HeartbeatSeconds       int    `hcl:"heartbeat_seconds,optional"`
	TurnTimeoutSeconds     int    `hcl:"turn_timeout_seconds,optional"`
	DisconnectGraceSeconds int    `hcl:"disconnect_grace_seconds,optional"`
	MaxPlayers             int    `hcl:"max_players,optional"`
	Seed                   int64  `hcl:"seed,optional"`
}

// LoadConfig reads an HCL config file. A missing file is not an error;
// it just means the defaults.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return cfg, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return cfg, fmt.Errorf("failed to parse %s: %s", filename, diags.Error())
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return cfg, fmt.Errorf("failed to decode %s: %s", filename, diags.Error())
	}
	if fc.Server == nil {
		return cfg, nil
	}

	if fc.Server.Addr != "" {
		cfg.Addr = fc.Server.Addr
	}
	if fc.Server.StaticDir != "" {
		cfg.StaticDir = fc.Server.StaticDir
	}
	if fc.Server.LogLevel != "" {
		cfg.LogLevel = fc.Server.LogLevel
	}
	if fc.Server.HeartbeatSeconds > 0 {
		cfg.Heartbeat = time.Duration(fc.Server.HeartbeatSeconds) * time.Second
	}
	if fc.Server.TurnTimeoutSeconds > 0 {
		cfg.TurnTimeout = time.Duration(fc.Server.TurnTimeoutSeconds) * time.Second
	}
	if fc.Server.DisconnectGraceSeconds > 0 {
		cfg.DisconnectGrace = time.Duration(fc.Server.DisconnectGraceSeconds) * time.Second
	}
	if fc.Server.MaxPlayers > 0 {
		cfg.MaxPlayers = fc.Server.MaxPlayers
	}
	if fc.Server.Seed != 0 {
		cfg.Seed = fc.Server.Seed
	}
	return cfg, nil
}

// Validate rejects configurations the session layer cannot run with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.StaticDir == "" {
		return fmt.Errorf("static_dir must not be empty")
	}
	if c.MaxPlayers < game.MinPlayers || c.MaxPlayers > game.MaxPlayers {
		return fmt.Errorf("max_players must be between %d and %d, got %d", game.MinPlayers, game.MaxPlayers, c.MaxPlayers)
	}
	if c.Heartbeat <= 0 {
		return fmt.Errorf("heartbeat must be positive, got %v", c.Heartbeat)
	}
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("turn_timeout must be positive, got %v", c.TurnTimeout)
	}
	if c.DisconnectGrace < 0 || c.ArrivalGrace < 0 || c.RefreshEvery < 0 {
		return fmt.Errorf("grace periods must not be negative")
	}
	if c.ChatLimit <= 0 {
		return fmt.Errorf("chat limit must be positive, got %d", c.ChatLimit)
	}
	return nil
}
