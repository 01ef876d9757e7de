package sync

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nhle/bell/internal/client"
	"github.com/nhle/bell/internal/inbox"
	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/store"
)

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// localPrefix marks notifications synthesized by the widget itself. They
// never reach the backend and are not cached.
const localPrefix = "local:"

// ErrorNotificationID is the id of the synthesized fetch failure notice.
const ErrorNotificationID = localPrefix + "api-key-error"

// Backend is the subset of the REST client the engine needs.
type Backend interface {
	ListNotifications(ctx context.Context, lastFetched time.Time) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) (*client.Message, error)
	Dismiss(ctx context.Context, id string) (*client.Message, error)
}

// Broadcaster tells sibling widget instances about local changes.
type Broadcaster interface {
	EmitMarkRead(id string) error
	EmitDismiss(id string) error
}

// FetchResultMsg is a tea.Msg sent when a fetch-and-merge completes.
type FetchResultMsg struct {
	// Fetched is the number of entries the server returned.
	Fetched int

	// First is true on the first successful fetch of the session.
	First bool

	// Periodic is true when the scheduled refresh produced the result.
	Periodic bool

	Err error
}

// ActionResultMsg is a tea.Msg reporting the outcome of a mark-read or
// dismiss issued from the UI.
type ActionResultMsg struct {
	Action string
	ID     string
	Err    error
}

// Action names carried by ActionResultMsg.
const (
	ActionMarkRead = "mark-read"
	ActionDismiss  = "dismiss"
)

// Engine reconciles the notification store with the backend and keeps the
// session cache in step with every store mutation.
type Engine struct {
	backend     Backend
	persist     store.Store
	inbox       *inbox.Store
	broadcaster Broadcaster
	logger      zerolog.Logger
	now         func() time.Time

	// cacheMu orders cache writes so a later snapshot is never overwritten
	// by an earlier one.
	cacheMu gosync.Mutex

	mu          gosync.Mutex
	cfg         model.Config
	fetchedOnce bool
	offline     bool
	scheduler   *cron.Cron
	resultCh    chan FetchResultMsg
	stopCh      chan struct{}
}

// New creates an engine for cfg. broadcaster may be nil.
func New(
	cfg model.Config,
	backend Backend,
	persist store.Store,
	notifications *inbox.Store,
	broadcaster Broadcaster,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		backend:     backend,
		persist:     persist,
		inbox:       notifications,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "sync").Logger(),
		now:         time.Now,
		cfg:         cfg,
		resultCh:    make(chan FetchResultMsg, 16),
		stopCh:      make(chan struct{}),
	}
}

// Config returns a copy of the current effective configuration.
func (e *Engine) Config() model.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Backend returns the backend the engine talks to.
func (e *Engine) Backend() Backend {
	return e.backend
}

// Inbox returns the store the engine mutates.
func (e *Engine) Inbox() *inbox.Store {
	return e.inbox
}

// Offline reports whether the last fetch failed.
func (e *Engine) Offline() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offline
}

// UpdateSettings applies fn to the configuration and persists the result.
func (e *Engine) UpdateSettings(ctx context.Context, fn func(cfg *model.Config)) (model.Config, error) {
	e.mu.Lock()
	fn(&e.cfg)
	cfg := e.cfg
	e.mu.Unlock()

	if err := e.persist.SaveSettings(ctx, cfg); err != nil {
		return cfg, fmt.Errorf("saving settings: %w", err)
	}
	return cfg, nil
}

// Prepare runs before the first fetch. When the location changed it drops
// the session cache and watermark, then loads whatever cache remains into
// the store and persists the effective settings.
func (e *Engine) Prepare(ctx context.Context, locationChanged bool) error {
	if locationChanged {
		if err := e.OnLocationChanged(ctx); err != nil {
			return err
		}
	}

	cached, err := e.persist.LoadCachedNotifications(ctx)
	if err != nil {
		return fmt.Errorf("loading cache: %w", err)
	}
	e.inbox.MergeRemote(cached)

	if err := e.persist.SaveSettings(ctx, e.Config()); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// OnLocationChanged invalidates the session cache and last-fetch watermark
// so a new location never shows another location's notifications.
func (e *Engine) OnLocationChanged(ctx context.Context) error {
	e.logger.Info().Str("location", e.Config().LocationID).Msg("location changed, clearing cache")
	e.inbox.Replace(nil)
	if err := e.persist.ClearCache(ctx); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}

// FetchAndMerge pulls notifications newer than the watermark and merges them
// into the store. On failure it synthesizes an error notification instead.
func (e *Engine) FetchAndMerge(ctx context.Context) FetchResultMsg {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	watermark, err := e.persist.LoadWatermark(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("loading watermark")
	}

	started := e.now()
	remote, err := e.backend.ListNotifications(ctx, watermark)
	if err != nil {
		e.fail(ctx, err)
		return FetchResultMsg{Err: err}
	}

	e.inbox.MergeRemote(remote)
	e.inbox.Remove(ErrorNotificationID)
	e.persistCache(ctx)

	if err := e.persist.SaveWatermark(ctx, started); err != nil {
		e.logger.Warn().Err(err).Msg("saving watermark")
	}

	e.mu.Lock()
	first := !e.fetchedOnce
	e.fetchedOnce = true
	e.offline = false
	e.mu.Unlock()

	e.logger.Debug().Int("fetched", len(remote)).Int("total", e.inbox.Total()).Msg("fetch merged")
	return FetchResultMsg{Fetched: len(remote), First: first}
}

// fail records a fetch failure: an error notification goes straight into
// the store, the widget is marked offline and reminders are silenced.
func (e *Engine) fail(ctx context.Context, err error) {
	e.logger.Error().Err(err).Msg("fetching notifications")

	text := "Unable to load notifications. Check the widget key and subscriber id."
	if client.IsAuthError(err) {
		text = "The notification service rejected the widget key."
	}

	e.inbox.Add(model.Notification{
		ID:         ErrorNotificationID,
		Title:      "API Key Error",
		Text:       text,
		AlertLevel: model.AlertError,
		Timestamp:  e.now().Unix(),
	})

	e.mu.Lock()
	e.offline = true
	reminding := e.cfg.AudioReminder
	e.mu.Unlock()

	if reminding {
		if _, err := e.UpdateSettings(ctx, func(cfg *model.Config) { cfg.AudioReminder = false }); err != nil {
			e.logger.Warn().Err(err).Msg("disabling reminders")
		}
	}
}

// IsLocal reports whether id belongs to a widget-synthesized notification.
func IsLocal(id string) bool {
	return strings.HasPrefix(id, localPrefix)
}

// MarkRead marks id read on the server and, once confirmed, locally. The
// change is then broadcast to sibling widgets.
func (e *Engine) MarkRead(ctx context.Context, id string) error {
	n, ok := e.inbox.Get(id)
	if !ok || n.Read {
		return nil
	}

	if !IsLocal(id) {
		if _, err := e.backend.MarkRead(ctx, id); err != nil {
			e.logger.Error().Err(err).Str("id", id).Msg("mark-read")
			return fmt.Errorf("marking %s read: %w", id, err)
		}
	}

	if !e.inbox.MarkRead(id) {
		return nil
	}
	e.persistCache(ctx)
	e.broadcast(id, e.broadcasterMarkRead)
	return nil
}

// Dismiss dismisses id on the server and, once confirmed, removes it
// locally and broadcasts the removal.
func (e *Engine) Dismiss(ctx context.Context, id string) error {
	if !e.inbox.Has(id) {
		return nil
	}

	if !IsLocal(id) {
		if _, err := e.backend.Dismiss(ctx, id); err != nil {
			e.logger.Error().Err(err).Str("id", id).Msg("dismiss")
			return fmt.Errorf("dismissing %s: %w", id, err)
		}
	}

	if !e.inbox.Remove(id) {
		return nil
	}
	e.persistCache(ctx)
	e.broadcast(id, e.broadcasterDismiss)
	return nil
}

func (e *Engine) broadcasterMarkRead(id string) error { return e.broadcaster.EmitMarkRead(id) }
func (e *Engine) broadcasterDismiss(id string) error  { return e.broadcaster.EmitDismiss(id) }

func (e *Engine) broadcast(id string, emit func(string) error) {
	if e.broadcaster == nil || IsLocal(id) {
		return
	}
	if err := emit(id); err != nil {
		e.logger.Warn().Err(err).Str("id", id).Msg("broadcast")
	}
}

// Deliver inserts an inbound notification into the store.
func (e *Engine) Deliver(ctx context.Context, n model.Notification) {
	e.inbox.Add(n)
	e.persistCache(ctx)
}

// ApplyRemoteDismiss removes id after a sibling dismissed it. Unknown ids
// are ignored.
func (e *Engine) ApplyRemoteDismiss(ctx context.Context, id string) bool {
	if !e.inbox.Remove(id) {
		return false
	}
	e.persistCache(ctx)
	return true
}

// ApplyRemoteMarkRead marks id read after a sibling did. Unknown or already
// read ids are ignored.
func (e *Engine) ApplyRemoteMarkRead(ctx context.Context, id string) bool {
	if !e.inbox.MarkRead(id) {
		return false
	}
	e.persistCache(ctx)
	return true
}

// persistCache writes the store (minus local notices) to the session cache.
func (e *Engine) persistCache(ctx context.Context) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	snap := e.inbox.Snapshot()
	out := snap[:0]
	for _, n := range snap {
		if !IsLocal(n.ID) {
			out = append(out, n)
		}
	}
	if err := e.persist.SaveCachedNotifications(ctx, out); err != nil {
		e.logger.Error().Err(err).Msg("saving cache")
	}
}

// Start schedules the periodic refresh when a refresh interval is set and
// returns a command that waits for its results. The refresh exists to purge
// notifications that expired server-side.
func (e *Engine) Start() tea.Cmd {
	e.mu.Lock()
	if e.scheduler != nil {
		e.mu.Unlock()
		return e.waitForResult()
	}
	every := e.cfg.RefreshEvery()
	if every <= 0 {
		e.mu.Unlock()
		return nil
	}
	if min := model.MinRefreshInterval * time.Second; every < min {
		every = min
	}

	e.scheduler = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	e.scheduler.Schedule(cron.Every(every), cron.FuncJob(func() {
		result := e.FetchAndMerge(context.Background())
		result.Periodic = true
		e.sendResult(result)
	}))
	e.scheduler.Start()
	e.mu.Unlock()

	e.logger.Info().Dur("every", every).Msg("periodic refresh scheduled")
	return e.waitForResult()
}

// Stop halts the periodic refresh.
func (e *Engine) Stop() {
	e.mu.Lock()
	scheduler := e.scheduler
	e.scheduler = nil
	if scheduler != nil {
		close(e.stopCh)
		e.stopCh = make(chan struct{})
	}
	e.mu.Unlock()

	if scheduler == nil {
		return
	}
	// A running job may still need e.mu, so wait outside the lock.
	<-scheduler.Stop().Done()
}

// RefreshCmd returns a command that fetches immediately.
func (e *Engine) RefreshCmd() tea.Cmd {
	return func() tea.Msg {
		return e.FetchAndMerge(context.Background())
	}
}

// MarkReadCmd runs MarkRead in the background.
func (e *Engine) MarkReadCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return ActionResultMsg{Action: ActionMarkRead, ID: id, Err: e.MarkRead(context.Background(), id)}
	}
}

// DismissCmd runs Dismiss in the background.
func (e *Engine) DismissCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return ActionResultMsg{Action: ActionDismiss, ID: id, Err: e.Dismiss(context.Background(), id)}
	}
}

// sendResult sends a FetchResultMsg on the result channel without blocking.
func (e *Engine) sendResult(msg FetchResultMsg) {
	select {
	case e.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the scheduler
	}
}

// waitForResult returns a tea.Cmd that waits for the next periodic result.
func (e *Engine) waitForResult() tea.Cmd {
	e.mu.Lock()
	stop := e.stopCh
	e.mu.Unlock()

	return func() tea.Msg {
		select {
		case result := <-e.resultCh:
			return result
		case <-stop:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next periodic
// refresh result. Call it after handling each FetchResultMsg that came from
// the scheduler.
func (e *Engine) WaitForNextResult() tea.Cmd {
	e.mu.Lock()
	running := e.scheduler != nil
	e.mu.Unlock()
	if !running {
		return nil
	}
	return e.waitForResult()
}
