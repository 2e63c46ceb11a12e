package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the notesync CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the server's gRPC endpoint.
//   - CacheDir: directory of the local SQLite cache; relative paths are
//     resolved against the working directory.
//   - Device: name the server keeps this client's cursor under.
//   - RequestTimeout: deadline for single request/response calls.
//   - ReconnectMinDelay / ReconnectMaxDelay: backoff bounds of the follow loop.
type Config struct {
	ServerEndpointAddr string
	CacheDir           string
	Device             string
	RequestTimeout     time.Duration
	ReconnectMinDelay  time.Duration
	ReconnectMaxDelay  time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.CacheDir = ".notesync"
	c.Device = defaultDevice()
	c.RequestTimeout = 10 * time.Second
	c.ReconnectMinDelay = 500 * time.Millisecond
	c.ReconnectMaxDelay = 30 * time.Second
}

func defaultDevice() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "default"
}

// CachePath is the SQLite file inside CacheDir.
func (c *Config) CachePath() string {
	return filepath.Join(c.CacheDir, "cache.db")
}

// LoadConfig applies defaults, then the file at path when path is not empty.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if path == "" {
		return cfg, nil
	}
	if err := parseFile(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}
