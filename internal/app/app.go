package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bell/internal/audio"
	"github.com/nhle/bell/internal/keys"
	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/realtime"
	appsync "github.com/nhle/bell/internal/sync"
	"github.com/nhle/bell/internal/theme"
	"github.com/nhle/bell/internal/ui"
	helpview "github.com/nhle/bell/internal/ui/help"
	inboxview "github.com/nhle/bell/internal/ui/inbox"
	"github.com/nhle/bell/internal/ui/modal"
	"github.com/nhle/bell/internal/ui/toast"
)

// StaggerDelay separates the per-entry calls of mark-all-read and
// dismiss-all.
const StaggerDelay = 150 * time.Millisecond

// shakeDuration is how long the bell shakes for a silent reminder.
const shakeDuration = time.Second

// deliverMsg inserts a notification into the store once its delivery delay
// has passed.
type deliverMsg struct {
	notification model.Notification
}

// reminderTickMsg fires every reminder interval.
type reminderTickMsg struct {
	gen int
}

// shakeDoneMsg stops the bell shake.
type shakeDoneMsg struct {
	gen int
}

// staggerMsg carries the remaining ids of a bulk action.
type staggerMsg struct {
	action string
	ids    []string
	gen    int
}

// resetDoneMsg carries the rebuilt session after reset-to-defaults.
type resetDoneMsg struct {
	session *Session
	err     error
}

// openedMsg reports the outcome of opening an action URL.
type openedMsg struct {
	url string
	err error
}

// Model is the root Bubble Tea model of the widget.
type Model struct {
	session   *Session
	keys      *keys.KeyMap
	layout    ui.Layout
	inboxView inboxview.Model
	toasts    toast.Model
	modal     modal.Model
	helpView  helpview.Model

	showInbox bool
	showHelp  bool
	status    realtime.State
	notice    string
	ready     bool
	resetting bool

	shaking     bool
	shakeGen    int
	reminderGen int
	staggerGen  int

	initCmd tea.Cmd
}

// New creates the root model for a prepared session.
func New(s *Session) Model {
	km := keys.DefaultKeyMap()
	cfg := s.Config()
	cols, rows := cfg.Cells()

	theme.ApplyDisplayMode(cfg.DisplayMode)

	m := Model{
		session:   s,
		keys:      km,
		layout:    newLayout(cfg, cols, rows),
		inboxView: inboxview.New(km, cols, rows),
		toasts:    toast.New(cfg.ToastPosition, cols),
		modal:     modal.New(km, cols, rows),
		helpView:  helpview.New(km, cols, rows),
		status:    s.Channel.State(),
	}
	m.resize(cols, rows)
	m.initCmd = tea.Batch(m.inboxView.SetEntries(s.Inbox.Snapshot()), m.scheduleReminder())
	return m
}

func newLayout(cfg model.Config, width, height int) ui.Layout {
	l := ui.NewLayout(width, height)
	if cfg.Compact {
		l.StatusBarHeight = 0
	}
	return l
}

// Init starts the first fetch, the periodic refresh, the realtime
// connection and the reminder timer.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.initCmd,
		m.session.Engine.RefreshCmd(),
		m.session.Engine.Start(),
		m.session.Channel.ConnectCmd(),
		m.session.Channel.WaitForEvent(),
	)
}

// Session returns the current session.
func (m Model) Session() *Session { return m.session }

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		cols, rows := m.session.Config().Cells()
		m.resize(min(cols, msg.Width), min(rows, msg.Height))
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case realtime.EventMsg:
		cmd := m.handleEvent(msg)
		return m, tea.Batch(cmd, m.session.Channel.WaitForEvent())

	case realtime.StatusMsg:
		m.status = msg.State
		if msg.Err != nil {
			m.notice = "connection failed"
		}
		return m, m.session.Channel.WaitForEvent()

	case appsync.FetchResultMsg:
		cmd := m.refreshInbox()
		if msg.Err == nil && msg.First && m.session.Config().ShowInboxOnLoad {
			m.showInbox = true
		}
		var wait tea.Cmd
		if msg.Periodic {
			wait = m.session.Engine.WaitForNextResult()
		}
		return m, tea.Batch(cmd, wait)

	case appsync.ActionResultMsg:
		if msg.Err != nil {
			m.notice = fmt.Sprintf("%s failed", msg.Action)
		}
		cmd := m.refreshInbox()
		return m, cmd

	case deliverMsg:
		m.session.Engine.Deliver(context.Background(), msg.notification)
		cmd := m.refreshInbox()
		return m, cmd

	case reminderTickMsg:
		if msg.gen != m.reminderGen {
			return m, nil
		}
		cmd := m.remind()
		next := m.scheduleReminder()
		return m, tea.Batch(cmd, next)

	case shakeDoneMsg:
		if msg.gen == m.shakeGen {
			m.shaking = false
		}
		return m, nil

	case staggerMsg:
		if msg.gen != m.staggerGen {
			return m, nil
		}
		return m, m.stagger(msg.action, msg.ids)

	case resetDoneMsg:
		m.resetting = false
		if msg.err != nil {
			m.notice = "reset failed"
			m.session.Logger.Error().Err(msg.err).Msg("reset")
			return m, nil
		}
		return m.adopt(msg.session)

	case openedMsg:
		if msg.err != nil {
			m.notice = "could not open link"
			m.session.Logger.Warn().Err(msg.err).Str("url", msg.url).Msg("open")
		}
		return m, nil

	case toast.ShowMsg, toast.ExpireMsg, toast.RemoveMsg:
		var cmd tea.Cmd
		m.toasts, cmd = m.toasts.Update(msg)
		return m, cmd

	case inboxview.MarkReadRequestMsg:
		return m, m.session.Engine.MarkReadCmd(msg.ID)

	case inboxview.DismissRequestMsg:
		return m, m.session.Engine.DismissCmd(msg.ID)

	case inboxview.OpenRequestMsg:
		return m, m.open(msg.URL)

	case inboxview.CloseMsg:
		m.showInbox = false
		return m, nil

	case modal.OpenRequestMsg:
		return m, m.open(msg.URL)

	case modal.ClosedMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.inboxView, cmd = m.inboxView.Update(msg)
	return m, cmd
}

// handleNotification applies the delivery policy. Blockers always go
// through the modal and are stored at once; with toast alerts on, the store
// insert waits until the toast's countdown has run; otherwise the entry is
// stored immediately.
func (m *Model) handleNotification(n model.Notification) tea.Cmd {
	cfg := m.session.Config()
	cmds := []tea.Cmd{m.play(audio.ForNotification(cfg, n.AlertLevel))}

	switch {
	case n.AlertLevel.IsBlocker():
		m.modal = m.modal.Show(n)
		cmds = append(cmds, deliverAfter(n, 0))

	case cfg.ToastAlert:
		var cmd tea.Cmd
		m.toasts, cmd = m.toasts.Push(n, cfg.ToastFor())
		cmds = append(cmds, cmd, deliverAfter(n, cfg.ToastFor()))

	default:
		cmds = append(cmds, deliverAfter(n, 0))
	}
	return tea.Batch(cmds...)
}

func deliverAfter(n model.Notification, d time.Duration) tea.Cmd {
	if d <= 0 {
		return func() tea.Msg { return deliverMsg{notification: n} }
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return deliverMsg{notification: n}
	})
}

// handleEvent routes an inbound realtime event. Dismiss and mark-read for
// ids this widget does not hold are ignored.
func (m *Model) handleEvent(ev realtime.EventMsg) tea.Cmd {
	ctx := context.Background()
	switch ev.Kind {
	case realtime.EventNotification:
		return m.handleNotification(ev.Notification)

	case realtime.EventDismiss:
		m.modal = m.modal.Drop(ev.ID)
		if m.session.Engine.ApplyRemoteDismiss(ctx, ev.ID) {
			return m.refreshInbox()
		}

	case realtime.EventMarkRead:
		if m.session.Engine.ApplyRemoteMarkRead(ctx, ev.ID) {
			return m.refreshInbox()
		}
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) && msg.String() == "ctrl+c" {
		return m, m.quit()
	}

	if m.modal.Visible() {
		var cmd tea.Cmd
		m.modal, cmd = m.modal.Update(msg)
		return m, cmd
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) {
			m.showHelp = false
		} else if key.Matches(msg, m.keys.Quit) {
			return m, m.quit()
		}
		return m, nil
	}

	m.notice = ""
	ctx := context.Background()
	engine := m.session.Engine

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.ToggleInbox):
		m.showInbox = !m.showInbox
		return m, nil

	case key.Matches(msg, m.keys.DismissToast):
		m.toasts = m.toasts.DismissNewest()
		return m, nil

	case key.Matches(msg, m.keys.MarkAllRead):
		m.staggerGen++
		return m, m.stagger(appsync.ActionMarkRead, m.session.Inbox.UnreadIDs())

	case key.Matches(msg, m.keys.DismissAll):
		m.staggerGen++
		return m, m.stagger(appsync.ActionDismiss, m.session.Inbox.IDs())

	case key.Matches(msg, m.keys.ToggleAudio):
		m.updateSettings(ctx, func(c *model.Config) { c.AudioAlert = !c.AudioAlert })
		return m, nil

	case key.Matches(msg, m.keys.ToggleReminder):
		m.updateSettings(ctx, func(c *model.Config) { c.AudioReminder = !c.AudioReminder })
		return m, nil

	case key.Matches(msg, m.keys.CycleToast):
		cfg := m.updateSettings(ctx, func(c *model.Config) { c.ToastPosition = c.ToastPosition.Next() })
		m.toasts.SetPosition(cfg.ToastPosition)
		return m, nil

	case key.Matches(msg, m.keys.CycleDisplay):
		cfg := m.updateSettings(ctx, func(c *model.Config) { c.DisplayMode = c.DisplayMode.Next() })
		theme.ApplyDisplayMode(cfg.DisplayMode)
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		if m.resetting {
			return m, nil
		}
		m.resetting = true
		m.staggerGen++
		s := m.session
		return m, func() tea.Msg {
			next, err := s.Reset(context.Background())
			return resetDoneMsg{session: next, err: err}
		}

	case key.Matches(msg, m.keys.ToggleConnection):
		cmd := m.session.Channel.Toggle()
		m.status = m.session.Channel.State()
		return m, cmd

	case key.Matches(msg, m.keys.Refresh):
		return m, engine.RefreshCmd()
	}

	if !m.showInbox {
		return m, nil
	}
	var cmd tea.Cmd
	m.inboxView, cmd = m.inboxView.Update(msg)
	return m, cmd
}

func (m *Model) updateSettings(ctx context.Context, fn func(*model.Config)) model.Config {
	cfg, err := m.session.Engine.UpdateSettings(ctx, fn)
	if err != nil {
		m.notice = "settings not saved"
		m.session.Logger.Warn().Err(err).Msg("saving settings")
	}
	return cfg
}

// handleMouse pauses toasts while the pointer is over the toast zone.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionMotion {
		return m, nil
	}

	top, bottom := m.toastZone()
	over := msg.X < m.layout.Width && msg.Y >= top && msg.Y < bottom
	if over {
		m.toasts = m.toasts.Hover()
		return m, nil
	}
	var cmd tea.Cmd
	m.toasts, cmd = m.toasts.Leave()
	return m, cmd
}

// toastZone returns the rows [top, bottom) the toast zone occupies.
func (m Model) toastZone() (int, int) {
	h := m.toasts.Height()
	if h == 0 {
		return 0, 0
	}
	if m.toasts.Position().IsTop() {
		top := m.layout.HeaderHeight
		return top, top + h
	}
	bottom := m.layout.HeaderHeight + m.layout.ContentHeight()
	return bottom - h, bottom
}

// stagger issues the action for the first id and schedules the rest.
func (m Model) stagger(action string, ids []string) tea.Cmd {
	if len(ids) == 0 {
		return nil
	}

	var first tea.Cmd
	switch action {
	case appsync.ActionMarkRead:
		first = m.session.Engine.MarkReadCmd(ids[0])
	case appsync.ActionDismiss:
		first = m.session.Engine.DismissCmd(ids[0])
	}

	rest := ids[1:]
	if len(rest) == 0 {
		return first
	}
	gen := m.staggerGen
	next := tea.Tick(StaggerDelay, func(time.Time) tea.Msg {
		return staggerMsg{action: action, ids: rest, gen: gen}
	})
	return tea.Batch(first, next)
}

func (m *Model) scheduleReminder() tea.Cmd {
	m.reminderGen++
	gen := m.reminderGen
	return tea.Tick(m.session.Config().ReminderEvery(), func(time.Time) tea.Msg {
		return reminderTickMsg{gen: gen}
	})
}

// remind plays the reminder cue. A silent cue shakes the bell instead.
func (m *Model) remind() tea.Cmd {
	cue := audio.ForReminder(m.session.Config(), m.session.Inbox.Unread())
	if cue == audio.CueNone {
		return nil
	}
	if cue.Silent() {
		m.shaking = true
		m.shakeGen++
		gen := m.shakeGen
		return tea.Tick(shakeDuration, func(time.Time) tea.Msg {
			return shakeDoneMsg{gen: gen}
		})
	}
	return m.play(cue)
}

func (m Model) play(cue audio.Cue) tea.Cmd {
	if cue == audio.CueNone {
		return nil
	}
	player, logger := m.session.Player, m.session.Logger
	return func() tea.Msg {
		if err := player.Play(cue); err != nil {
			logger.Warn().Err(err).Stringer("cue", cue).Msg("play")
		}
		return nil
	}
}

func (m Model) open(url string) tea.Cmd {
	if url == "" {
		return nil
	}
	open := m.session.Open
	return func() tea.Msg {
		return openedMsg{url: url, err: open(url)}
	}
}

// refreshInbox re-renders the panel from the store.
func (m *Model) refreshInbox() tea.Cmd {
	return m.inboxView.SetEntries(m.session.Inbox.Snapshot())
}

// adopt switches to a rebuilt session and restarts its background work.
func (m Model) adopt(s *Session) (tea.Model, tea.Cmd) {
	m.session = s
	cfg := s.Config()
	theme.ApplyDisplayMode(cfg.DisplayMode)
	m.toasts = m.toasts.Clear()
	m.toasts.SetPosition(cfg.ToastPosition)
	m.modal = m.modal.Clear()
	m.showInbox = false
	m.notice = "settings reset"

	cmds := []tea.Cmd{
		m.refreshInbox(),
		m.scheduleReminder(),
		s.Engine.RefreshCmd(),
		s.Engine.Start(),
	}
	return m, tea.Batch(cmds...)
}

func (m Model) quit() tea.Cmd {
	m.session.Close()
	return tea.Quit
}

func (m *Model) resize(width, height int) {
	m.layout = newLayout(m.session.Config(), width, height)
	contentHeight := m.layout.ContentHeight()
	m.inboxView.SetSize(width-4, contentHeight-2)
	m.toasts.SetWidth(width)
	m.modal.SetSize(width, contentHeight)
	m.helpView.SetSize(width, contentHeight)
}

// View renders the widget.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	cfg := m.session.Config()
	header := m.layout.RenderHeader(
		ui.Bell(m.session.Inbox.Unread(), m.shaking),
		cfg.WidgetTitle,
		m.statusText(cfg),
	)

	body := m.renderBody()

	statusBar := ""
	if !cfg.Compact {
		statusBar = m.layout.RenderStatusBar(m.keyHints(), cfg.Branded)
	}
	return m.layout.RenderWithFrame(header, body, statusBar)
}

// renderBody fills the content area: the active panel plus the toast zone.
func (m Model) renderBody() string {
	height := m.layout.ContentHeight()
	toasts := m.toasts.View()
	panelHeight := height - m.toasts.Height()
	if panelHeight < 0 {
		panelHeight = 0
	}

	var content string
	switch {
	case m.modal.Visible():
		mv := m.modal
		mv.SetSize(m.layout.Width, panelHeight)
		content = mv.View()
	case m.showHelp:
		hv := m.helpView
		hv.SetSize(m.layout.Width, panelHeight)
		content = hv.View()
	case m.showInbox:
		iv := m.inboxView
		iv.SetSize(m.layout.Width-4, panelHeight-2)
		content = theme.PanelStyle.Width(m.layout.Width - 2).Render(iv.View())
	}

	if m.session.Config().Compact && content == "" && toasts == "" {
		return ""
	}

	content = lipgloss.NewStyle().
		Width(m.layout.Width).
		Height(panelHeight).
		MaxHeight(panelHeight).
		Render(content)
	if panelHeight == 0 {
		content = ""
	}
	return m.layout.PlaceToasts(content, toasts, m.toasts.Position().IsTop())
}

func (m Model) statusText(cfg model.Config) string {
	var flags []string
	if cfg.AudioAlert {
		flags = append(flags, "♪")
	}
	if cfg.AudioReminder {
		flags = append(flags, "↻")
	}

	status := m.status.String()
	if m.session.Engine.Offline() {
		status = realtime.Disconnected.String()
	}
	flags = append(flags, status)
	return strings.Join(flags, " ")
}

func (m Model) keyHints() string {
	if m.notice != "" {
		return m.notice
	}
	if m.modal.Visible() {
		return "enter/esc close | o open"
	}
	if m.showHelp {
		return "? close help | esc back"
	}
	return m.helpView.ShortView()
}
