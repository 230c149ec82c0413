package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/roster/internal/appstate"
	"github.com/conneroisu/roster/internal/config"
	apperrors "github.com/conneroisu/roster/internal/errors"
	"github.com/conneroisu/roster/internal/logging"
	"github.com/conneroisu/roster/internal/monitoring"
	"github.com/conneroisu/roster/internal/server"
	"github.com/conneroisu/roster/internal/state"
	"github.com/conneroisu/roster/internal/version"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the roster web server",
	Long: `Start the roster web server.

The server reloads its configuration file when it changes: a new teacher or
student list takes effect without a restart. Listener settings need one.

Examples:
  roster serve                      # Serve on 127.0.0.1:8088
  roster serve --port 9000          # Serve on another port
  ROSTER_STATE_LOCK_TIMEOUT=250ms roster serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServerFlags(serveCmd, viper.GetViper())
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return apperrors.Wrap(err, "failed to load configuration")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	app, err := newApplication(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if viper.ConfigFileUsed() != "" {
		config.Watch(viper.GetViper(), app.reload(ctx))
	}

	logger.Info(ctx, "starting roster",
		"version", version.GetShortVersion(),
		"addr", cfg.Address(),
		"environment", cfg.Server.Environment,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Starting roster at http://%s\n", cfg.Address())

	if err := app.server.Start(ctx); err != nil {
		return apperrors.Wrap(err, "server error")
	}
	return nil
}

// application is everything serve builds from one configuration.
type application struct {
	store   *state.Store
	metrics *monitoring.Metrics
	server  *server.Server
	logger  logging.Logger
}

func newApplication(cfg *config.Config, logger logging.Logger) (*application, error) {
	app := &application{logger: logger}

	var opts []state.Option
	if cfg.Metrics.Enabled {
		app.metrics = monitoring.NewMetrics()
		opts = append(opts, state.WithObserver(app.metrics))
	}

	store, err := appstate.New(cfg, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build application state")
	}
	app.store = store

	if app.metrics != nil {
		err := app.metrics.RegisterStateGauges(store, map[string]func(*state.Store) float64{
			"requests": func(s *state.Store) float64 {
				return float64(state.MustAtomic[appstate.RequestCount](s).Load())
			},
		})
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to register state gauges")
		}
	}

	app.server, err = server.New(server.Dependencies{
		Config:  cfg,
		Store:   store,
		Logger:  logger,
		Metrics: app.metrics,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create server")
	}

	return app, nil
}

// reload applies a changed configuration file to the live state. Only the
// app section is hot: the teacher and the roster are rewritten in lock
// order; everything else waits for a restart.
func (a *application) reload(ctx context.Context) func(*config.Config, fsnotify.Event, error) {
	return func(cfg *config.Config, event fsnotify.Event, err error) {
		op := logging.StartOperation(a.logger.With("file", event.Name), "config_reload")
		if err == nil {
			err = a.applyAppConfig(ctx, cfg.App)
		}
		if a.metrics != nil {
			a.metrics.ConfigReloaded(err)
		}
		if err != nil {
			op.EndWithError(ctx, apperrors.Wrap(err, "configuration reload rejected"))
			return
		}
		op.End(ctx)
		a.logger.Debug(ctx, "configuration reloaded",
			"teacher", cfg.App.Teacher,
			"students", len(cfg.App.Students),
		)
	}
}

func (a *application) applyAppConfig(ctx context.Context, app config.AppConfig) error {
	if err := appstate.SetTeacher(ctx, a.store, app.Teacher); err != nil {
		return err
	}
	return state.MustGet[appstate.Roster](a.store).Store(ctx, appstate.Roster(app.Students))
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Logging.Format,
		Output:    os.Stderr,
		Component: "roster",
	}), nil
}
