// Package config provides configuration management for the record tools.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"mtevent/internal/event"
)

// Tracking id modes
const (
	TrackingIDClock   = "clock"
	TrackingIDCounter = "counter"
)

// Config represents the application configuration
type Config struct {
	// Gesture contains the defaults for synthesized taps
	Gesture GestureConfig `json:"gesture" yaml:"gesture"`

	// Decode contains settings for reading record streams
	Decode DecodeConfig `json:"decode" yaml:"decode"`

	// Server contains settings for the HTTP/WebSocket server
	Server ServerConfig `json:"server" yaml:"server"`
}

// GestureConfig contains tap synthesis settings
type GestureConfig struct {
	// X, Y and Pressure are the default tap coordinates and contact pressure
	X        uint32 `json:"x" yaml:"x"`
	Y        uint32 `json:"y" yaml:"y"`
	Pressure uint32 `json:"pressure" yaml:"pressure"`

	// ScreenWidth and ScreenHeight bound tap coordinates (0 disables the check)
	ScreenWidth  uint32 `json:"screen_width" yaml:"screen_width"`
	ScreenHeight uint32 `json:"screen_height" yaml:"screen_height"`

	// InvertY flips the Y axis before writing (height - y)
	InvertY bool `json:"invert_y" yaml:"invert_y"`

	// TrackingID selects the id source: "clock" or "counter"
	TrackingID string `json:"tracking_id" yaml:"tracking_id"`

	// TrackingIDStart is the first id handed out in counter mode
	TrackingIDStart uint32 `json:"tracking_id_start" yaml:"tracking_id_start"`

	// Timestamp pins every record's time field; 0 uses the wall clock as a 32-bit timeval
	Timestamp uint64 `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// DecodeConfig contains settings for decoding
type DecodeConfig struct {
	// Format is the output format: "text" or "json"
	Format string `json:"format" yaml:"format"`

	// Lenient drops a partial trailing record instead of failing
	Lenient bool `json:"lenient" yaml:"lenient"`

	// Only restricts output to the named codes (e.g. "MT_POSITION_X")
	Only []string `json:"only,omitempty" yaml:"only,omitempty"`
}

// ServerConfig contains settings for the API server
type ServerConfig struct {
	// Port is the port for the API server (default: 18080)
	Port int `json:"port" yaml:"port"`

	// Token is an optional authentication token for API requests
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Gesture: GestureConfig{
			X:               50,
			Y:               1800,
			Pressure:        90,
			ScreenWidth:     1404,
			ScreenHeight:    1872,
			InvertY:         false,
			TrackingID:      TrackingIDClock,
			TrackingIDStart: 6426,
		},
		Decode: DecodeConfig{
			Format:  "text",
			Lenient: false,
		},
		Server: ServerConfig{
			Port: 18080,
		},
	}
}

// Validate checks values that cannot be corrected silently
func (c *Config) Validate() error {
	switch strings.ToLower(c.Decode.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("decode.format: unsupported format %q", c.Decode.Format)
	}

	switch c.Gesture.TrackingID {
	case TrackingIDClock, TrackingIDCounter:
	default:
		return fmt.Errorf("gesture.tracking_id: unsupported mode %q", c.Gesture.TrackingID)
	}

	if c.Gesture.TrackingIDStart == event.TrackingIDRelease {
		return errors.New("gesture.tracking_id_start must not be the release sentinel")
	}

	g := c.Gesture
	if g.ScreenWidth > 0 && g.ScreenHeight > 0 && (g.X >= g.ScreenWidth || g.Y >= g.ScreenHeight) {
		return fmt.Errorf("gesture: default tap (%d, %d) is outside the %dx%d screen", g.X, g.Y, g.ScreenWidth, g.ScreenHeight)
	}

	for _, name := range c.Decode.Only {
		if _, err := event.CodeByName(name); err != nil {
			return fmt.Errorf("decode.only: %w", err)
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	return nil
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
}

// NewManager creates a configuration manager for the per-user config file
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath), nil
}

// NewManagerAt creates a configuration manager for an explicit file. Paths ending in
// .yaml or .yml are read and written as YAML, anything else as JSON.
func NewManagerAt(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "mtevent")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "mtevent")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "mtevent")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "mtevent")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the file the manager reads and writes
func (m *Manager) Path() string {
	return m.configPath
}

func (m *Manager) isYAML() bool {
	switch strings.ToLower(filepath.Ext(m.configPath)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the configuration from disk. A missing file leaves the defaults in place.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if errors.Is(err, os.ErrNotExist) {
		// No config file, use defaults
		return nil
	}
	if err != nil {
		return err
	}

	cfg := DefaultConfig()
	if m.isYAML() {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", m.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", m.configPath, err)
	}

	m.config = cfg
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		data []byte
		err  error
	)
	if m.isYAML() {
		data, err = yaml.Marshal(m.config)
	} else {
		data, err = json.MarshalIndent(m.config, "", "  ")
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := *m.config
	cfg.Decode.Only = append([]string(nil), m.config.Decode.Only...)
	return cfg
}

// Set validates and replaces the configuration
func (m *Manager) Set(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = &cfg
	return nil
}
