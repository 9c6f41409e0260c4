package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/swarmwatch/swarmwatch/internal/logging"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Monitor MonitorConfig  `yaml:"monitor"`
	Client  ClientConfig   `yaml:"client"`
	Log     logging.Config `yaml:"log"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type MonitorConfig struct {
	SnapshotInterval  time.Duration `yaml:"snapshot_interval"`
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle"`
	// StopGrace delays the disposal request after listeners are released.
	StopGrace time.Duration `yaml:"stop_grace"`
}

// ClientConfig configures the embedded BitTorrent client.
type ClientConfig struct {
	DataDir              string        `yaml:"data_dir"`
	ListenPort           int           `yaml:"listen_port"`
	NoUpload             bool          `yaml:"no_upload"`
	NoDownload           bool          `yaml:"no_download"`
	DisableDHT           bool          `yaml:"disable_dht"`
	DisableIPv6          bool          `yaml:"disable_ipv6"`
	TrackerProbeInterval time.Duration `yaml:"tracker_probe_interval"`
	TrackerProbeTimeout  time.Duration `yaml:"tracker_probe_timeout"`
	MetadataTimeout      time.Duration `yaml:"metadata_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Monitor: MonitorConfig{
			SnapshotInterval:  5 * time.Second,
			BroadcastThrottle: 100 * time.Millisecond,
			StopGrace:         50 * time.Millisecond,
		},
		Client: ClientConfig{
			DataDir:              filepath.Join(os.TempDir(), "swarmwatch"),
			ListenPort:           42069,
			NoUpload:             true,
			NoDownload:           true,
			TrackerProbeInterval: 30 * time.Second,
			TrackerProbeTimeout:  15 * time.Second,
			MetadataTimeout:      2 * time.Minute,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Client.ListenPort < 0 || c.Client.ListenPort > 65535 {
		return fmt.Errorf("client.listen_port %d out of range", c.Client.ListenPort)
	}
	if c.Monitor.SnapshotInterval <= 0 {
		return errors.New("monitor.snapshot_interval must be positive")
	}
	if c.Monitor.BroadcastThrottle < 0 {
		return errors.New("monitor.broadcast_throttle must not be negative")
	}
	if c.Monitor.StopGrace < 0 {
		return errors.New("monitor.stop_grace must not be negative")
	}
	if c.Client.TrackerProbeInterval <= 0 {
		return errors.New("client.tracker_probe_interval must be positive")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
