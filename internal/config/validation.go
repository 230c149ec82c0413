package config

import (
	"fmt"
	"strings"

	apperrors "github.com/conneroisu/roster/internal/errors"
	"github.com/conneroisu/roster/internal/logging"
)

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateAppConfig(&config.App); err != nil {
		return fmt.Errorf("app config: %w", err)
	}

	if config.State.LockTimeout < 0 {
		return apperrors.NewConfigError("ERR_LOCK_TIMEOUT", "state.lock_timeout must not be negative").
			WithContext("value", config.State.LockTimeout.String())
	}

	if err := validateRateLimitConfig(&config.RateLimit); err != nil {
		return fmt.Errorf("ratelimit config: %w", err)
	}

	if config.Metrics.Enabled && !strings.HasPrefix(config.Metrics.Path, "/") {
		return apperrors.NewConfigError("ERR_METRICS_PATH", "metrics.path must start with /").
			WithContext("value", config.Metrics.Path)
	}

	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if config.Stream.Interval <= 0 {
		return apperrors.NewConfigError("ERR_STREAM_INTERVAL", "stream.interval must be positive").
			WithContext("value", config.Stream.Interval.String())
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Port 0 asks the kernel for a free port, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		return apperrors.NewConfigError("ERR_PORT", fmt.Sprintf("port %d is not in valid range 0-65535", config.Port))
	}

	if strings.TrimSpace(config.Host) == "" {
		return apperrors.NewConfigError("ERR_HOST", "host cannot be empty")
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return apperrors.NewConfigError("ERR_HOST", fmt.Sprintf("host contains dangerous character: %q", char))
		}
	}

	if config.ShutdownTimeout < 0 {
		return apperrors.NewConfigError("ERR_SHUTDOWN_TIMEOUT", "shutdown_timeout must not be negative")
	}

	if config.RequestTimeout < 0 {
		return apperrors.NewConfigError("ERR_REQUEST_TIMEOUT", "request_timeout must not be negative").
			WithContext("value", config.RequestTimeout.String())
	}

	return nil
}

func validateAppConfig(config *AppConfig) error {
	if strings.TrimSpace(config.Teacher) == "" {
		return apperrors.NewConfigError("ERR_TEACHER", "teacher cannot be empty")
	}

	for i, student := range config.Students {
		if strings.TrimSpace(student) == "" {
			return apperrors.NewConfigError("ERR_STUDENT", "student names cannot be empty").
				WithContext("index", i)
		}
	}

	return nil
}

func validateRateLimitConfig(config *RateLimitConfig) error {
	if !config.Enabled {
		return nil
	}
	if config.RequestsPerSecond <= 0 {
		return apperrors.NewConfigError("ERR_RATE", "requests_per_second must be positive when rate limiting is enabled")
	}
	if config.Burst < 1 {
		return apperrors.NewConfigError("ERR_BURST", "burst must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return apperrors.NewConfigError("ERR_LOG_LEVEL", err.Error())
	}

	switch config.Format {
	case "text", "json":
		return nil
	default:
		return apperrors.NewConfigError("ERR_LOG_FORMAT", fmt.Sprintf("unknown log format %q (supported: text, json)", config.Format))
	}
}
