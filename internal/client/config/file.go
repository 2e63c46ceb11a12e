package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/notesync/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of Config. Keys missing from the file keep
// their current values.
type FileConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	CacheDir           string         `json:"cache_dir" yaml:"cache_dir"`
	Device             string         `json:"device" yaml:"device"`
	RequestTimeout     timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	ReconnectMinDelay  timex.Duration `json:"reconnect_min_delay" yaml:"reconnect_min_delay"`
	ReconnectMaxDelay  timex.Duration `json:"reconnect_max_delay" yaml:"reconnect_max_delay"`
}

func toFile(c *Config) *FileConfig {
	return &FileConfig{
		ServerEndpointAddr: c.ServerEndpointAddr,
		CacheDir:           c.CacheDir,
		Device:             c.Device,
		RequestTimeout:     timex.Duration{Duration: c.RequestTimeout},
		ReconnectMinDelay:  timex.Duration{Duration: c.ReconnectMinDelay},
		ReconnectMaxDelay:  timex.Duration{Duration: c.ReconnectMaxDelay},
	}
}

func (f *FileConfig) apply(c *Config) {
	c.ServerEndpointAddr = f.ServerEndpointAddr
	c.CacheDir = f.CacheDir
	c.Device = f.Device
	c.RequestTimeout = f.RequestTimeout.Duration
	c.ReconnectMinDelay = f.ReconnectMinDelay.Duration
	c.ReconnectMaxDelay = f.ReconnectMaxDelay.Duration
}

// parseFile overlays values from path. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON.
func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	fc := toFile(cfg)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}
