package app

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/bell/internal/audio"
	"github.com/nhle/bell/internal/browser"
	"github.com/nhle/bell/internal/client"
	"github.com/nhle/bell/internal/inbox"
	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/realtime"
	"github.com/nhle/bell/internal/store"
	appsync "github.com/nhle/bell/internal/sync"
)

// Channel is the realtime connection as the widget uses it.
type Channel interface {
	appsync.Broadcaster
	ConnectCmd() tea.Cmd
	WaitForEvent() tea.Cmd
	Toggle() tea.Cmd
	State() realtime.State
	Close()
}

// Deps are the collaborators a session is built from. Backend and Channel
// default to the real HTTP and websocket clients when nil.
type Deps struct {
	Store   store.Store
	Backend appsync.Backend
	Channel Channel
	Player  audio.Player
	Open    func(url string) error
	Logger  zerolog.Logger
}

// Session is the explicit context of one widget instance: the resolved
// configuration, its storage, the notification store and the engine that
// keeps them in sync. It is built once at start and rebuilt on reset.
type Session struct {
	Options model.Options
	Inbox   *inbox.Store
	Engine  *appsync.Engine
	Channel Channel
	Player  audio.Player
	Open    func(url string) error
	Logger  zerolog.Logger

	store      store.Store
	baseLogger zerolog.Logger
	firstRun   bool
}

// NewSession resolves opts against the persisted settings, invalidates the
// session cache when the location changed and loads what is left of it.
// A *model.ConfigError means no widget should be shown.
func NewSession(ctx context.Context, opts model.Options, deps Deps) (*Session, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("app.NewSession: store is required")
	}

	persisted, err := deps.Store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	res, err := model.Resolve(opts, persisted)
	if err != nil {
		return nil, err
	}
	cfg := res.Config

	logger := deps.Logger.With().
		Str("subscriber", cfg.SubscriberID).
		Str("location", cfg.LocationID).
		Logger()

	backend := deps.Backend
	if backend == nil {
		backend = client.FromConfig(cfg)
	}
	channel := deps.Channel
	if channel == nil {
		channel = realtime.New(cfg, logger)
	}
	player := deps.Player
	if player == nil {
		player = audio.NewBellPlayer(os.Stderr)
	}
	open := deps.Open
	if open == nil {
		open = browser.Open
	}

	notifications := inbox.New()
	engine := appsync.New(cfg, backend, deps.Store, notifications, channel, logger)
	if err := engine.Prepare(ctx, res.LocationChanged); err != nil {
		return nil, err
	}

	logger.Info().
		Bool("first_run", res.FirstRun).
		Bool("location_changed", res.LocationChanged).
		Int("cached", notifications.Total()).
		Msg("session ready")

	return &Session{
		Options:    opts,
		Inbox:      notifications,
		Engine:     engine,
		Channel:    channel,
		Player:     player,
		Open:       open,
		Logger:     logger,
		store:      deps.Store,
		baseLogger: deps.Logger,
		firstRun:   res.FirstRun,
	}, nil
}

// Config returns the current effective configuration.
func (s *Session) Config() model.Config {
	return s.Engine.Config()
}

// FirstRun reports whether no settings had been persisted before.
func (s *Session) FirstRun() bool {
	return s.firstRun
}

// Reset clears both storages and rebuilds the session from the original
// options. The realtime connection is kept: identity never changes on reset.
func (s *Session) Reset(ctx context.Context) (*Session, error) {
	s.Engine.Stop()
	if err := s.store.ClearAll(ctx); err != nil {
		return nil, fmt.Errorf("clearing storage: %w", err)
	}

	return NewSession(ctx, s.Options, Deps{
		Store:   s.store,
		Backend: s.Engine.Backend(),
		Channel: s.Channel,
		Player:  s.Player,
		Open:    s.Open,
		Logger:  s.baseLogger,
	})
}

// Close stops background work and drops the connection.
func (s *Session) Close() {
	s.Engine.Stop()
	s.Channel.Close()
}
