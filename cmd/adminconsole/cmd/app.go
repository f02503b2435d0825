package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/funpik/adminconsole/pkg/config"
	"github.com/funpik/adminconsole/pkg/environment"
	"github.com/funpik/adminconsole/pkg/factory"
	"github.com/funpik/adminconsole/pkg/session"
	"github.com/funpik/adminconsole/pkg/shared/logging"
)

// errNotLoggedIn is returned by commands that need a session.
var errNotLoggedIn = errors.New("not logged in (run: adminconsole login)")

// loadConfig reads the configuration file. When the file is missing and
// --config was not given, the built-in defaults are used.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.NewFileLoader(cfgFile).Load()
	if errors.Is(err, config.ErrConfigFileNotFound) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if ephemeral {
		cfg.Storage.Type = "memory"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level := logging.ParseLevel(cfg.Logging.Level)
	logger, err := logging.NewLoggerWithFile("main", level, cfg.Logging.Color, cfg.Logging.File.Rotation())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// openApp loads configuration and wires the console. The caller must
// Close the returned app.
func openApp(cmd *cobra.Command, opts session.Options) (*factory.App, logging.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	flags, err := environment.LoadBuildFlags(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	app, err := factory.Build(factory.NewDefaultFactory(logger), cfg, flags, opts)
	if err != nil {
		return nil, nil, err
	}
	return app, logger, nil
}

// requireSession starts the session and fails unless it is authenticated.
func requireSession(ctx context.Context, app *factory.App) (session.Snapshot, error) {
	app.Start(ctx)
	snap := app.Controller.Snapshot()
	if !snap.IsAuthenticated {
		return snap, errNotLoggedIn
	}
	return snap, nil
}

// printNotifier reports extension outcomes to the operator.
type printNotifier struct {
	out io.Writer
}

func (n printNotifier) ExtendSucceeded(timeLeft int64) {
	fmt.Fprintf(n.out, "✓ Session extended (%s left)\n", formatSeconds(timeLeft, true))
}

func (n printNotifier) ExtendFailed(err error) {
	fmt.Fprintf(n.out, "✗ Failed to extend the session, logging out: %v\n", err)
}

// formatSeconds renders a countdown as m:ss or h:mm:ss.
func formatSeconds(seconds int64, known bool) string {
	if !known {
		return "unknown"
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
