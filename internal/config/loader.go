package config

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so the access token can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Matrix.AccessToken = expandEnvVars(cfg.Matrix.AccessToken)
	cfg.Gateway.Token = expandEnvVars(cfg.Gateway.Token)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults. Needed
// after unmarshalling because yaml overwrites the whole struct sections
// it finds.
func applyDefaults(cfg *Config) {
	if cfg.Matrix.HomeserverURL == "" {
		cfg.Matrix.HomeserverURL = "http://localhost:8008"
	}
	if cfg.Matrix.UserID == "" {
		cfg.Matrix.UserID = "@recorder:localhost"
	}
	if cfg.Matrix.InitialSyncLimit == 0 {
		cfg.Matrix.InitialSyncLimit = 10
	}
	if cfg.Export.URL == "" {
		cfg.Export.URL = "https://localhost:8000/vcon"
	}
	if cfg.Export.Interval == 0 {
		cfg.Export.Interval = Duration(time.Hour)
	}
	if cfg.Export.Retention == 0 {
		cfg.Export.Retention = Duration(time.Hour)
	}
	if cfg.Identity.Domain == "" {
		cfg.Identity.Domain = "ietf.org"
	}
	if cfg.Identity.DefaultRole == "" {
		cfg.Identity.DefaultRole = "agent"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18790
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides reads VCONSCRIBE_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VCONSCRIBE_MATRIX_URL"); v != "" {
		cfg.Matrix.HomeserverURL = v
	}
	if v := os.Getenv("VCONSCRIBE_MATRIX_TOKEN"); v != "" {
		cfg.Matrix.AccessToken = v
	}
	if v := os.Getenv("VCONSCRIBE_MATRIX_USER"); v != "" {
		cfg.Matrix.UserID = v
	}
	if v := os.Getenv("VCONSCRIBE_STORE_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("VCONSCRIBE_CONSERVER_URL"); v != "" {
		cfg.Export.URL = v
	}
	if v := os.Getenv("VCONSCRIBE_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Export.Interval = Duration(d)
		}
	}
	if v := os.Getenv("VCONSCRIBE_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Export.Retention = Duration(d)
		}
	}
	if v := os.Getenv("VCONSCRIBE_DOMAIN"); v != "" {
		cfg.Identity.Domain = v
	}
	if v := os.Getenv("VCONSCRIBE_DEFAULT_ROLE"); v != "" {
		cfg.Identity.DefaultRole = v
	}
	if v := os.Getenv("VCONSCRIBE_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("VCONSCRIBE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
