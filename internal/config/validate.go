package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if _, err := url.Parse(cfg.Matrix.HomeserverURL); err != nil || cfg.Matrix.HomeserverURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "matrix.homeserverUrl",
			Message: fmt.Sprintf("must be a valid URL, got %q", cfg.Matrix.HomeserverURL),
		})
	}

	if cfg.Matrix.UserID != "" && !strings.HasPrefix(cfg.Matrix.UserID, "@") {
		issues = append(issues, ValidationIssue{
			Path:    "matrix.userId",
			Message: fmt.Sprintf("must start with '@', got %q", cfg.Matrix.UserID),
		})
	}

	if cfg.Export.URL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "export.url",
			Message: "conserver URL is required",
		})
	}

	if cfg.Export.Interval < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "export.interval",
			Message: fmt.Sprintf("must be positive, got %s", cfg.Export.Interval),
		})
	}

	if cfg.Export.Retention < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "export.retention",
			Message: fmt.Sprintf("must be positive, got %s", cfg.Export.Retention),
		})
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
