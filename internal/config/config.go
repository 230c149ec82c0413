// Package config provides configuration management for roster using Viper
// for loading from files, environment variables and command-line flags.
//
// Values come from .roster.yml (or the file named by --config or
// ROSTER_CONFIG_FILE), overridden by ROSTER_<SECTION>_<OPTION> environment
// variables, overridden by flags bound in the cmd package. Load applies
// defaults for anything left unset and validates the result.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	App       AppConfig       `mapstructure:"app" yaml:"app"`
	State     StateConfig     `mapstructure:"state" yaml:"state"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Stream    StreamConfig    `mapstructure:"stream" yaml:"stream"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	Environment     string        `mapstructure:"environment" yaml:"environment"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// RequestTimeout is the whole-request deadline for non-streaming
	// requests. Zero disables it.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// AppConfig seeds the application state slots at start-up.
type AppConfig struct {
	Teacher  string   `mapstructure:"teacher" yaml:"teacher"`
	Students []string `mapstructure:"students" yaml:"students"`
}

type StateConfig struct {
	// LockTimeout bounds every single shared-state lock wait, store-wide.
	// Zero means a wait is bounded only by its caller's context.
	LockTimeout time.Duration `mapstructure:"lock_timeout" yaml:"lock_timeout"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type StreamConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// Defaults mirror the original service: bind 127.0.0.1:8088 and serve Mat's class.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 8088
	DefaultTeacher         = "Mat"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultStreamInterval  = 2 * time.Second
	DefaultMetricsPath     = "/metrics"
)

// DefaultStudents is the class roster used when none is configured.
var DefaultStudents = []string{"dipan", "david", "fabio"}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("server.request_timeout", time.Duration(0))

	v.SetDefault("app.teacher", DefaultTeacher)
	v.SetDefault("app.students", DefaultStudents)

	v.SetDefault("state.lock_timeout", time.Duration(0))

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 50.0)
	v.SetDefault("ratelimit.burst", 100)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", DefaultMetricsPath)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("stream.interval", DefaultStreamInterval)
}

// EnvPrefix is the prefix of every environment override, e.g. ROSTER_SERVER_PORT.
const EnvPrefix = "ROSTER"

// BindEnv makes v consult ROSTER_<SECTION>_<OPTION> environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, defaults and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// The global --log-level flag is bound to a top-level key.
	if v.IsSet("log-level") {
		config.Logging.Level = v.GetString("log-level")
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Watch reloads the configuration whenever the backing file changes and
// hands the result to onChange. A reload that fails validation is reported
// with a nil Config; the previous configuration stays in effect.
func Watch(v *viper.Viper, onChange func(cfg *Config, event fsnotify.Event, err error)) {
	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		cfg, err := LoadFrom(v)
		onChange(cfg, event, err)
	})
	v.WatchConfig()
}

// Address returns the host:port the server binds to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
