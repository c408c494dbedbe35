package config

import "time"

// DefaultAppConfig returns an AppConfig struct with sensible default values.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:   ":8080",
			ExternalURL:  "http://localhost:8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Auth: AuthConfig{
			APIKeys: []string{"default-api-key"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			RootPath:      "/var/lib/shelfd/files",
			DataDir:       "/var/lib/shelfd/data",
			FlushInterval: 60 * time.Second,
		},
		Trash: TrashConfig{
			Retention:     30 * 24 * time.Hour,
			PurgeInterval: time.Hour,
		},
		Versions: VersionsConfig{
			MaxPerFile:  20,
			SizeCeiling: 10 << 20, // 10 MiB
		},
		Shares: SharesConfig{
			CleanupInterval: 5 * time.Minute,
			CreateRateLimit: 100,
		},
	}
}
