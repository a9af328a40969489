package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads from YAML as a string like
// "30m" or "24h" and writes back in the same form.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the root configuration for vconscribe.
type Config struct {
	Matrix   MatrixConfig   `yaml:"matrix,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Export   ExportConfig   `yaml:"export,omitempty"`
	Identity IdentityConfig `yaml:"identity,omitempty"`
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// MatrixConfig connects the recorder to a Matrix homeserver.
type MatrixConfig struct {
	HomeserverURL    string `yaml:"homeserverUrl,omitempty"`
	AccessToken      string `yaml:"accessToken,omitempty"`
	UserID           string `yaml:"userId,omitempty"`
	InitialSyncLimit int    `yaml:"initialSyncLimit,omitempty"` // timeline events fetched on the first /sync
}

// StoreConfig controls where conversation records are kept on disk.
type StoreConfig struct {
	Dir string `yaml:"dir,omitempty"` // one .vcon file per conversation
}

// ExportConfig controls the periodic ship of completed records to a conserver.
type ExportConfig struct {
	URL       string   `yaml:"url,omitempty"`       // conserver ingest endpoint
	Interval  Duration `yaml:"interval,omitempty"`  // time between sweep passes
	Retention Duration `yaml:"retention,omitempty"` // minimum record age before export
}

// IdentityConfig controls how record and party identities are derived.
type IdentityConfig struct {
	Domain      string `yaml:"domain,omitempty"`      // namespace for record uuid derivation
	DefaultRole string `yaml:"defaultRole,omitempty"` // role assigned to newly observed parties
}

// GatewayConfig controls the local status HTTP server.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Port    int    `yaml:"port,omitempty"`
	Token   string `yaml:"token,omitempty"` // bearer token; empty disables auth
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
}
