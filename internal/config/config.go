package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
// The Matrix token has no default: the recorder cannot sync without one.
func Defaults() Config {
	return Config{
		Matrix: MatrixConfig{
			HomeserverURL:    "http://localhost:8008",
			UserID:           "@recorder:localhost",
			InitialSyncLimit: 10,
		},
		Export: ExportConfig{
			URL:       "https://localhost:8000/vcon",
			Interval:  Duration(time.Hour),
			Retention: Duration(time.Hour),
		},
		Identity: IdentityConfig{
			Domain:      "ietf.org",
			DefaultRole: "agent",
		},
		Gateway: GatewayConfig{
			Port: 18790,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
