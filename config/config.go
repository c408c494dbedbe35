// Package config provides configuration management for shelfd. It handles
// loading and validating configuration from YAML/JSON files and environment
// variables.
package config

import "time"

// AppConfig represents the complete application configuration.
type AppConfig struct {
	Server   ServerConfig   `koanf:"server"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
	Storage  StorageConfig  `koanf:"storage"`
	Trash    TrashConfig    `koanf:"trash"`
	Versions VersionsConfig `koanf:"versions"`
	Shares   SharesConfig   `koanf:"shares"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	ListenAddr   string        `koanf:"listen_addr"`
	ExternalURL  string        `koanf:"external_url"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

// AuthConfig holds authentication configuration for the management API.
type AuthConfig struct {
	APIKeys []string `koanf:"api_keys"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StorageConfig holds the storage root and metadata layout.
type StorageConfig struct {
	// RootPath is the storage root every resolved path is confined to.
	RootPath string `koanf:"root_path"`
	// DataDir holds metadata documents, the quarantine directory, and
	// version blobs. Must share a filesystem with RootPath so deletes and
	// restores stay single renames.
	DataDir       string        `koanf:"data_dir"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// TrashConfig holds soft-delete retention configuration.
type TrashConfig struct {
	Retention     time.Duration `koanf:"retention"`
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

// VersionsConfig bounds file versioning.
type VersionsConfig struct {
	MaxPerFile  int   `koanf:"max_per_file"`
	SizeCeiling int64 `koanf:"size_ceiling"`
}

// SharesConfig holds share-link maintenance configuration.
type SharesConfig struct {
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	// CreateRateLimit caps share creations per second across all clients.
	CreateRateLimit float64 `koanf:"create_rate_limit"`
}
