package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/conneroisu/roster/internal/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8088", cfg.Address())
	assert.Equal(t, DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "Mat", cfg.App.Teacher)
	assert.Equal(t, []string{"dipan", "david", "fabio"}, cfg.App.Students)
	assert.Zero(t, cfg.State.LockTimeout)
	assert.Zero(t, cfg.Server.RequestTimeout)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, DefaultStreamInterval, cfg.Stream.Interval)
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		errorCode   string
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "overrides and durations from strings",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 9090)
				v.Set("app.teacher", "Ada")
				v.Set("app.students", []string{"grace", "linus"})
				v.Set("state.lock_timeout", "250ms")
				v.Set("server.request_timeout", "3s")
				v.Set("stream.interval", "1s")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "Ada", cfg.App.Teacher)
				assert.Equal(t, []string{"grace", "linus"}, cfg.App.Students)
				assert.Equal(t, 250*time.Millisecond, cfg.State.LockTimeout)
				assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
				assert.Equal(t, time.Second, cfg.Stream.Interval)
			},
		},
		{
			name:  "log-level flag wins over logging.level",
			setup: func(v *viper.Viper) { v.Set("logging.level", "warn"); v.Set("log-level", "debug") },
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:  "rate limiting disabled skips its validation",
			setup: func(v *viper.Viper) { v.Set("ratelimit.enabled", false); v.Set("ratelimit.burst", 0) },
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.RateLimit.Enabled)
			},
		},
		{
			name:        "undecodable port",
			setup:       func(v *viper.Viper) { v.Set("server.port", "invalid_port") },
			expectError: true,
		},
		{
			name:        "port out of range",
			setup:       func(v *viper.Viper) { v.Set("server.port", 70000) },
			expectError: true,
			errorCode:   "ERR_PORT",
		},
		{
			name:        "empty host",
			setup:       func(v *viper.Viper) { v.Set("server.host", " ") },
			expectError: true,
			errorCode:   "ERR_HOST",
		},
		{
			name:        "dangerous host",
			setup:       func(v *viper.Viper) { v.Set("server.host", "localhost;rm") },
			expectError: true,
			errorCode:   "ERR_HOST",
		},
		{
			name:        "empty teacher",
			setup:       func(v *viper.Viper) { v.Set("app.teacher", "") },
			expectError: true,
			errorCode:   "ERR_TEACHER",
		},
		{
			name:        "blank student",
			setup:       func(v *viper.Viper) { v.Set("app.students", []string{"ok", ""}) },
			expectError: true,
			errorCode:   "ERR_STUDENT",
		},
		{
			name:        "negative lock timeout",
			setup:       func(v *viper.Viper) { v.Set("state.lock_timeout", "-1s") },
			expectError: true,
			errorCode:   "ERR_LOCK_TIMEOUT",
		},
		{
			name:        "negative request timeout",
			setup:       func(v *viper.Viper) { v.Set("server.request_timeout", "-1s") },
			expectError: true,
			errorCode:   "ERR_REQUEST_TIMEOUT",
		},
		{
			name:        "zero rate",
			setup:       func(v *viper.Viper) { v.Set("ratelimit.requests_per_second", 0) },
			expectError: true,
			errorCode:   "ERR_RATE",
		},
		{
			name:        "relative metrics path",
			setup:       func(v *viper.Viper) { v.Set("metrics.path", "metrics") },
			expectError: true,
			errorCode:   "ERR_METRICS_PATH",
		},
		{
			name:        "unknown log level",
			setup:       func(v *viper.Viper) { v.Set("logging.level", "chatty") },
			expectError: true,
			errorCode:   "ERR_LOG_LEVEL",
		},
		{
			name:        "unknown log format",
			setup:       func(v *viper.Viper) { v.Set("logging.format", "xml") },
			expectError: true,
			errorCode:   "ERR_LOG_FORMAT",
		},
		{
			name:        "zero stream interval",
			setup:       func(v *viper.Viper) { v.Set("stream.interval", 0) },
			expectError: true,
			errorCode:   "ERR_STREAM_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)

			if tt.expectError {
				require.Error(t, err)
				assert.Nil(t, cfg)
				if tt.errorCode != "" {
					assert.True(t, apperrors.IsConfigError(err))
					assert.Equal(t, tt.errorCode, apperrors.GetErrorCode(err))
				}
				return
			}

			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFrom_YAMLFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".roster.yml")
	content := `
server:
  port: 3000
app:
  teacher: Grace
  students: [ada, alan]
state:
  lock_timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("ROSTER_SERVER_HOST", "0.0.0.0")

	v := viper.New()
	v.SetConfigFile(path)
	BindEnv(v)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "Grace", cfg.App.Teacher)
	assert.Equal(t, []string{"ada", "alan"}, cfg.App.Students)
	assert.Equal(t, 2*time.Second, cfg.State.LockTimeout)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".roster.yml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  teacher: Mat\n"), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	reloaded := make(chan string, 8)
	Watch(v, func(cfg *Config, event fsnotify.Event, err error) {
		if err == nil && cfg != nil {
			select {
			case reloaded <- cfg.App.Teacher:
			default:
			}
		}
	})

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("app:\n  teacher: Ada\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case name := <-reloaded:
			if name == "Ada" {
				return
			}
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
}
