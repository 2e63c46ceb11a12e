package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/notesync/internal/flagx"
	"github.com/dmitrijs2005/notesync/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of Config. Durations accept strings such
// as "90s" or integer nanoseconds. Keys missing from the file keep their
// current values.
type FileConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	EndpointAddrHTTP             string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDriver               string         `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN                  string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                    string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	BlobBackend                  string         `json:"blob_backend" yaml:"blob_backend"`
	BlobDir                      string         `json:"blob_dir" yaml:"blob_dir"`
	S3RootUser                   string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                     string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	MaxBodyBytes                 int            `json:"max_body_bytes" yaml:"max_body_bytes"`
	MaxAttachments               int            `json:"max_attachments" yaml:"max_attachments"`
	SessionQueueCapacity         int            `json:"session_queue_capacity" yaml:"session_queue_capacity"`
	CatchUpPageSize              int            `json:"catch_up_page_size" yaml:"catch_up_page_size"`
	OrphanAttachmentTTL          timex.Duration `json:"orphan_attachment_ttl" yaml:"orphan_attachment_ttl"`
	OrphanSweepInterval          timex.Duration `json:"orphan_sweep_interval" yaml:"orphan_sweep_interval"`
	LogLevel                     string         `json:"log_level" yaml:"log_level"`
}

func toFile(c *Config) *FileConfig {
	return &FileConfig{
		EndpointAddrGRPC:             c.EndpointAddrGRPC,
		EndpointAddrHTTP:             c.EndpointAddrHTTP,
		DatabaseDriver:               c.DatabaseDriver,
		DatabaseDSN:                  c.DatabaseDSN,
		SecretKey:                    c.SecretKey,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		BlobBackend:                  c.BlobBackend,
		BlobDir:                      c.BlobDir,
		S3RootUser:                   c.S3RootUser,
		S3RootPassword:               c.S3RootPassword,
		S3Bucket:                     c.S3Bucket,
		S3Region:                     c.S3Region,
		S3BaseEndpoint:               c.S3BaseEndpoint,
		MaxBodyBytes:                 c.MaxBodyBytes,
		MaxAttachments:               c.MaxAttachments,
		SessionQueueCapacity:         c.SessionQueueCapacity,
		CatchUpPageSize:              c.CatchUpPageSize,
		OrphanAttachmentTTL:          timex.Duration{Duration: c.OrphanAttachmentTTL},
		OrphanSweepInterval:          timex.Duration{Duration: c.OrphanSweepInterval},
		LogLevel:                     c.LogLevel,
	}
}

func (f *FileConfig) apply(c *Config) {
	c.EndpointAddrGRPC = f.EndpointAddrGRPC
	c.EndpointAddrHTTP = f.EndpointAddrHTTP
	c.DatabaseDriver = f.DatabaseDriver
	c.DatabaseDSN = f.DatabaseDSN
	c.SecretKey = f.SecretKey
	c.AccessTokenValidityDuration = f.AccessTokenValidityDuration.Duration
	c.RefreshTokenValidityDuration = f.RefreshTokenValidityDuration.Duration
	c.BlobBackend = f.BlobBackend
	c.BlobDir = f.BlobDir
	c.S3RootUser = f.S3RootUser
	c.S3RootPassword = f.S3RootPassword
	c.S3Bucket = f.S3Bucket
	c.S3Region = f.S3Region
	c.S3BaseEndpoint = f.S3BaseEndpoint
	c.MaxBodyBytes = f.MaxBodyBytes
	c.MaxAttachments = f.MaxAttachments
	c.SessionQueueCapacity = f.SessionQueueCapacity
	c.CatchUpPageSize = f.CatchUpPageSize
	c.OrphanAttachmentTTL = f.OrphanAttachmentTTL.Duration
	c.OrphanSweepInterval = f.OrphanSweepInterval.Duration
	c.LogLevel = f.LogLevel
}

// parseFile overlays values from the file named by -c or -config. Files
// ending in .yaml or .yml are decoded as YAML, anything else as JSON.
// A missing or malformed file panics.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()

	// nothing to load
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := toFile(config)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(config)
}
