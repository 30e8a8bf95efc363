package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/rpggio/gridlayout/internal/domain/editor"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GRIDLAYOUT_"

// Transport modes.
const (
	ModeStdio = "stdio"
	ModeHTTP  = "http"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	DB        DBConfig        `yaml:"db" envPrefix:"DB_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Transport TransportConfig `yaml:"transport" envPrefix:"TRANSPORT_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Editor    EditorConfig    `yaml:"editor" envPrefix:"EDITOR_"`
	Collab    CollabConfig    `yaml:"collab" envPrefix:"COLLAB_"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
}

type DBConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	// Path, when set, receives logs in addition to stderr.
	Path string `yaml:"path" env:"PATH"`
}

type TransportConfig struct {
	Mode string `yaml:"mode" env:"MODE"`
}

type AuthConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	DefaultTenant string `yaml:"default_tenant" env:"DEFAULT_TENANT"`
	DefaultUser   string `yaml:"default_user" env:"DEFAULT_USER"`
}

type EditorConfig struct {
	HistorySize  int           `yaml:"history_size" env:"HISTORY_SIZE"`
	UndoDebounce time.Duration `yaml:"undo_debounce" env:"UNDO_DEBOUNCE"`
	SaveDebounce time.Duration `yaml:"save_debounce" env:"SAVE_DEBOUNCE"`
	SaveTimeout  time.Duration `yaml:"save_timeout" env:"SAVE_TIMEOUT"`
	SaveRetries  int           `yaml:"save_retries" env:"SAVE_RETRIES"`
	CellWidth    int           `yaml:"cell_width" env:"CELL_WIDTH"`
	CellHeight   int           `yaml:"cell_height" env:"CELL_HEIGHT"`
	DefaultRead  bool          `yaml:"default_read" env:"DEFAULT_READ"`
	// CatalogPath replaces the embedded role-default catalog.
	CatalogPath string `yaml:"catalog_path" env:"CATALOG_PATH"`
}

type CollabConfig struct {
	Enabled           bool          `yaml:"enabled" env:"ENABLED"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	Reconnect         bool          `yaml:"reconnect" env:"RECONNECT"`
}

// Default returns the built-in configuration.
func Default() Config {
	opts := editor.DefaultOptions()
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "gridlayout.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: ModeHTTP,
		},
		Auth: AuthConfig{
			Enabled:       true,
			DefaultTenant: "default",
			DefaultUser:   "local",
		},
		Editor: EditorConfig{
			HistorySize:  opts.HistorySize,
			UndoDebounce: opts.UndoDebounce,
			SaveDebounce: opts.SaveDebounce,
			SaveTimeout:  opts.SaveTimeout,
			SaveRetries:  opts.SaveRetries,
			CellWidth:    opts.CellWidth,
			CellHeight:   opts.CellHeight,
			DefaultRead:  true,
		},
		Collab: CollabConfig{
			Enabled:           true,
			HeartbeatInterval: 15 * time.Second,
			WriteTimeout:      10 * time.Second,
			Reconnect:         true,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvPrefix + "CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Transport.Mode = strings.ToLower(strings.TrimSpace(cfg.Transport.Mode))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case ModeStdio, ModeHTTP:
	default:
		return fmt.Errorf("invalid transport mode %q: want stdio or http", c.Transport.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Editor.SaveRetries < 0 {
		return fmt.Errorf("invalid save retries %d", c.Editor.SaveRetries)
	}
	return nil
}

// EditorOptions converts the editor and collab sections to controller options.
func (c Config) EditorOptions() editor.Options {
	return editor.Options{
		HistorySize:       c.Editor.HistorySize,
		UndoDebounce:      c.Editor.UndoDebounce,
		SaveDebounce:      c.Editor.SaveDebounce,
		SaveTimeout:       c.Editor.SaveTimeout,
		SaveRetries:       c.Editor.SaveRetries,
		CellWidth:         c.Editor.CellWidth,
		CellHeight:        c.Editor.CellHeight,
		HeartbeatInterval: c.Collab.HeartbeatInterval,
		Reconnect:         c.Collab.Reconnect,
	}
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
