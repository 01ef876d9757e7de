package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nhle/bell/internal/app"
	"github.com/nhle/bell/internal/credential"
	"github.com/nhle/bell/internal/logging"
	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/store"
)

// sessionTTL is how long an idle session's cache is kept before pruning.
const sessionTTL = 7 * 24 * time.Hour

func runWidget(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	opts, err := model.LoadOptions(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	logger, closer, err := logging.New(logging.Config{Level: logLevel, Path: logPath()})
	if err != nil {
		return err
	}
	defer closer.Close()

	if opts.WidgetKey == "" && opts.SubscriberID != "" {
		opts.WidgetKey = keyringWidgetKey(opts.SubscriberID, logger)
	}

	st, err := store.NewSQLiteStore(dbPath(), resolveSessionID())
	if err != nil {
		return err
	}
	defer st.Close()

	if n, err := st.PruneSessions(ctx, time.Now().Add(-sessionTTL)); err != nil {
		logger.Warn().Err(err).Msg("pruning sessions")
	} else if n > 0 {
		logger.Info().Int("sessions", n).Msg("pruned idle sessions")
	}

	session, err := app.NewSession(ctx, *opts, app.Deps{Store: st, Logger: logger})
	if err != nil {
		if model.IsConfigError(err) {
			logger.Error().Err(err).Msg("no widget shown")
			return fmt.Errorf("%w (run `bell setup` to configure)", err)
		}
		return err
	}

	programOpts, cleanup, err := programOptions(session.Config())
	if err != nil {
		session.Close()
		return err
	}
	defer cleanup()

	p := tea.NewProgram(app.New(session), programOpts...)
	final, err := p.Run()
	if m, ok := final.(app.Model); ok {
		m.Session().Close()
	}
	if err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

// programOptions returns the program options for cfg. Compact widgets
// render inline on the target terminal instead of taking over the screen.
func programOptions(cfg model.Config) ([]tea.ProgramOption, func(), error) {
	if !cfg.Compact {
		return []tea.ProgramOption{
			tea.WithAltScreen(),
			tea.WithMouseAllMotion(),
		}, func() {}, nil
	}

	tty, err := os.OpenFile(cfg.TargetElement, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, &model.ConfigError{
			Field:   "targetElement",
			Message: fmt.Sprintf("opening %s: %v", cfg.TargetElement, err),
		}
	}
	return []tea.ProgramOption{
		tea.WithInput(tty),
		tea.WithOutput(tty),
		tea.WithMouseAllMotion(),
	}, func() { tty.Close() }, nil
}

// keyringWidgetKey reads the stored widget key. Keyring failures leave the
// key empty so the usual config error is reported.
func keyringWidgetKey(subscriberID string, logger zerolog.Logger) string {
	vault, err := credential.Open()
	if err != nil {
		logger.Warn().Err(err).Msg("keyring unavailable")
		return ""
	}
	key, err := vault.WidgetKey(subscriberID)
	if err != nil {
		logger.Warn().Err(err).Msg("reading widget key")
		return ""
	}
	return key
}
