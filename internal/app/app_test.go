package app

import (
	"context"
	"strings"
	gosync "sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bell/internal/audio"
	"github.com/nhle/bell/internal/client"
	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/realtime"
	"github.com/nhle/bell/internal/store"
	appsync "github.com/nhle/bell/internal/sync"
	"github.com/nhle/bell/internal/ui/modal"
	"github.com/nhle/bell/internal/ui/toast"
	"github.com/nhle/bell/tests/testutil"
)

type fakeBackend struct {
	mu         gosync.Mutex
	list       []model.Notification
	markedRead []string
	dismissed  []string
}

func (f *fakeBackend) ListNotifications(context.Context, time.Time) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list, nil
}

func (f *fakeBackend) MarkRead(_ context.Context, id string) (*client.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedRead = append(f.markedRead, id)
	return &client.Message{Message: "ok"}, nil
}

func (f *fakeBackend) Dismiss(_ context.Context, id string) (*client.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed = append(f.dismissed, id)
	return &client.Message{Message: "ok"}, nil
}

func (f *fakeBackend) calls() (read, dismissed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.markedRead...), append([]string(nil), f.dismissed...)
}

// fakeChannel stands in for the websocket client.
type fakeChannel struct {
	mu     gosync.Mutex
	state  realtime.State
	closed int
	emits  []string
}

func (c *fakeChannel) EmitMarkRead(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emits = append(c.emits, "read:"+id)
	return nil
}

func (c *fakeChannel) EmitDismiss(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emits = append(c.emits, "dismiss:"+id)
	return nil
}

func (c *fakeChannel) ConnectCmd() tea.Cmd   { return nil }
func (c *fakeChannel) WaitForEvent() tea.Cmd { return nil }

func (c *fakeChannel) Toggle() tea.Cmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == realtime.Connected {
		c.state = realtime.Disconnected
	} else {
		c.state = realtime.Connected
	}
	return nil
}

func (c *fakeChannel) State() realtime.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

type harness struct {
	model   Model
	backend *fakeBackend
	channel *fakeChannel
	player  *testutil.CueRecorder
	store   store.Store
	opened  []string
}

func options() model.Options {
	opts := model.DefaultOptions()
	opts.SubscriberID = "sub-1"
	opts.WidgetKey = "key-1"
	opts.LocationID = "loc-1"
	return opts
}

func newHarness(t *testing.T, opts model.Options) *harness {
	t.Helper()

	h := &harness{
		backend: &fakeBackend{},
		channel: &fakeChannel{state: realtime.Connected},
		player:  &testutil.CueRecorder{},
		store:   testutil.NewTestStore(t, "test-session"),
	}
	s, err := NewSession(context.Background(), opts, Deps{
		Store:   h.store,
		Backend: h.backend,
		Channel: h.channel,
		Player:  h.player,
		Open: func(url string) error {
			h.opened = append(h.opened, url)
			return nil
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	h.model = New(s)
	h.send(tea.WindowSizeMsg{Width: 120, Height: 60})
	return h
}

// send feeds msg to the model and returns the command it produced.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

func (h *harness) key(s string) tea.Cmd {
	return h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// drain runs cmd and any batched commands, collecting the messages that
// arrive within d. Long timers are left behind.
func drain(cmd tea.Cmd, d time.Duration) []tea.Msg {
	if cmd == nil {
		return nil
	}

	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-ch:
	case <-time.After(d):
		return nil
	}

	switch msg := msg.(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, drain(c, d)...)
		}
		return out
	default:
		return []tea.Msg{msg}
	}
}

func find[T tea.Msg](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func notification(id string, level model.AlertLevel) model.Notification {
	return model.Notification{
		ID:         id,
		Title:      "Title " + id,
		Text:       "Body " + id,
		AlertLevel: level,
		Timestamp:  time.Now().Unix(),
	}
}

func TestNewSessionRejectsMissingIdentity(t *testing.T) {
	opts := options()
	opts.SubscriberID = ""

	_, err := NewSession(context.Background(), opts, Deps{
		Store:   testutil.NewTestStore(t, "s"),
		Backend: &fakeBackend{},
		Channel: &fakeChannel{},
		Player:  &testutil.CueRecorder{},
		Logger:  zerolog.Nop(),
	})
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
}

func TestBlockerShowsModalAndStoresImmediately(t *testing.T) {
	opts := options()
	opts.AudioAlert = true
	h := newHarness(t, opts)

	n := notification("b1", model.AlertBlocker)
	cmd := h.send(realtime.EventMsg{Kind: realtime.EventNotification, Notification: n})

	assert.True(t, h.model.modal.Visible())
	assert.Equal(t, 0, h.model.toasts.Len(), "blockers never toast")

	msgs := drain(cmd, 50*time.Millisecond)
	deliver, ok := find[deliverMsg](msgs)
	require.True(t, ok)
	h.send(deliver)

	assert.Equal(t, 1, h.model.session.Inbox.Unread())
	assert.Equal(t, []audio.Cue{audio.CueBlocker}, h.player.Cues())

	assert.Contains(t, h.model.View(), "Title b1")
}

func TestToastDelaysDelivery(t *testing.T) {
	opts := options()
	opts.ToastAlert = true
	h := newHarness(t, opts)

	n := notification("t1", model.AlertInfo)
	cmd := h.send(realtime.EventMsg{Kind: realtime.EventNotification, Notification: n})

	assert.Equal(t, 1, h.model.toasts.Len())
	assert.Equal(t, 0, h.model.session.Inbox.Total())

	msgs := drain(cmd, 50*time.Millisecond)
	_, ok := find[deliverMsg](msgs)
	assert.False(t, ok, "delivery waits for the toast duration")
	assert.Empty(t, h.player.Cues(), "audio alert is off")

	h.send(deliverMsg{notification: n})
	assert.Equal(t, 1, h.model.session.Inbox.Total())
}

func TestNotificationWithoutToastStoresImmediately(t *testing.T) {
	h := newHarness(t, options())

	cmd := h.send(realtime.EventMsg{Kind: realtime.EventNotification, Notification: notification("n1", model.AlertSuccess)})
	assert.Equal(t, 0, h.model.toasts.Len())

	deliver, ok := find[deliverMsg](drain(cmd, 50*time.Millisecond))
	require.True(t, ok)
	h.send(deliver)
	assert.True(t, h.model.session.Inbox.Has("n1"))
}

func TestRemoteEvents(t *testing.T) {
	h := newHarness(t, options())
	h.send(deliverMsg{notification: notification("a", model.AlertInfo)})
	h.send(deliverMsg{notification: notification("b", model.AlertInfo)})

	h.send(realtime.EventMsg{Kind: realtime.EventMarkRead, ID: "a"})
	got, ok := h.model.session.Inbox.Get("a")
	require.True(t, ok)
	assert.True(t, got.Read)

	h.send(realtime.EventMsg{Kind: realtime.EventDismiss, ID: "b"})
	assert.False(t, h.model.session.Inbox.Has("b"))

	h.send(realtime.EventMsg{Kind: realtime.EventDismiss, ID: "unknown"})
	assert.Equal(t, 1, h.model.session.Inbox.Total())

	read, dismissed := h.backend.calls()
	assert.Empty(t, read, "remote changes are not sent back")
	assert.Empty(t, dismissed)
}

func TestRemoteDismissDropsBlocker(t *testing.T) {
	h := newHarness(t, options())
	n := notification("b1", model.AlertBlocker)
	h.send(realtime.EventMsg{Kind: realtime.EventNotification, Notification: n})
	h.send(deliverMsg{notification: n})
	require.True(t, h.model.modal.Visible())

	h.send(realtime.EventMsg{Kind: realtime.EventDismiss, ID: "b1"})
	assert.False(t, h.model.modal.Visible())
	assert.False(t, h.model.session.Inbox.Has("b1"))
}

func TestShowInboxOnLoadOnlyOnFirstFetch(t *testing.T) {
	opts := options()
	opts.ShowInboxOnLoad = true
	h := newHarness(t, opts)
	require.False(t, h.model.showInbox)

	h.send(appsync.FetchResultMsg{First: true})
	assert.True(t, h.model.showInbox)

	h.key("i")
	require.False(t, h.model.showInbox)

	h.send(appsync.FetchResultMsg{})
	assert.False(t, h.model.showInbox)
}

func TestShowInboxOnLoadDisabled(t *testing.T) {
	h := newHarness(t, options())
	h.send(appsync.FetchResultMsg{First: true})
	assert.False(t, h.model.showInbox)
}

func TestReminderShakesWhenSilent(t *testing.T) {
	opts := options()
	opts.AudioReminder = true
	h := newHarness(t, opts)
	h.send(deliverMsg{notification: notification("a", model.AlertInfo)})

	h.send(reminderTickMsg{gen: h.model.reminderGen - 1})
	assert.False(t, h.model.shaking, "stale ticks are ignored")

	h.send(reminderTickMsg{gen: h.model.reminderGen})
	assert.True(t, h.model.shaking)
	assert.Empty(t, h.player.Cues())
	assert.Contains(t, h.model.View(), "((")

	h.send(shakeDoneMsg{gen: h.model.shakeGen})
	assert.False(t, h.model.shaking)
}

func TestReminderPlaysWhenAudible(t *testing.T) {
	opts := options()
	opts.AudioReminder = true
	opts.AudioAlert = true
	h := newHarness(t, opts)
	h.send(deliverMsg{notification: notification("a", model.AlertInfo)})

	cmd := h.send(reminderTickMsg{gen: h.model.reminderGen})
	drain(cmd, 50*time.Millisecond)

	assert.False(t, h.model.shaking)
	assert.Equal(t, []audio.Cue{audio.CueReminder}, h.player.Cues())
}

func TestReminderNeedsUnread(t *testing.T) {
	opts := options()
	opts.AudioReminder = true
	opts.AudioAlert = true
	h := newHarness(t, opts)

	cmd := h.send(reminderTickMsg{gen: h.model.reminderGen})
	drain(cmd, 50*time.Millisecond)
	assert.Empty(t, h.player.Cues())
	assert.False(t, h.model.shaking)
}

func TestMarkAllReadIsStaggered(t *testing.T) {
	h := newHarness(t, options())
	h.send(deliverMsg{notification: notification("a", model.AlertInfo)})
	h.send(deliverMsg{notification: notification("b", model.AlertInfo)})

	msgs := drain(h.key("M"), StaggerDelay*3)
	_, ok := find[appsync.ActionResultMsg](msgs)
	require.True(t, ok)
	next, ok := find[staggerMsg](msgs)
	require.True(t, ok)
	require.Len(t, next.ids, 1)

	read, _ := h.backend.calls()
	require.Len(t, read, 1)

	drain(h.send(next), 50*time.Millisecond)
	read, _ = h.backend.calls()
	assert.ElementsMatch(t, []string{"a", "b"}, read)
}

func TestStaleStaggerIsDropped(t *testing.T) {
	h := newHarness(t, options())
	cmd := h.send(staggerMsg{action: appsync.ActionDismiss, ids: []string{"x"}, gen: h.model.staggerGen + 1})
	assert.Nil(t, cmd)
}

func TestInboxActionsGoThroughEngine(t *testing.T) {
	h := newHarness(t, options())
	h.send(deliverMsg{notification: notification("a", model.AlertInfo)})
	h.key("i")
	require.True(t, h.model.showInbox)

	msgs := drain(h.key("d"), 50*time.Millisecond)
	require.Len(t, msgs, 1)
	cmd := h.send(msgs[0])
	res, ok := find[appsync.ActionResultMsg](drain(cmd, 50*time.Millisecond))
	require.True(t, ok)
	require.NoError(t, res.Err)

	h.send(res)
	assert.False(t, h.model.session.Inbox.Has("a"))
	_, dismissed := h.backend.calls()
	assert.Equal(t, []string{"a"}, dismissed)
	assert.Contains(t, h.channel.emits, "dismiss:a")
}

func TestTogglesArePersisted(t *testing.T) {
	h := newHarness(t, options())
	ctx := context.Background()

	h.key("s")
	h.key("R")
	h.key("p")
	h.key("t")

	cfg := h.model.session.Config()
	assert.True(t, cfg.AudioAlert)
	assert.True(t, cfg.AudioReminder)
	assert.Equal(t, model.ToastBottomRight.Next(), cfg.ToastPosition)
	assert.Equal(t, model.DisplayAuto.Next(), cfg.DisplayMode)
	assert.Equal(t, cfg.ToastPosition, h.model.toasts.Position())

	saved, err := h.store.LoadSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.True(t, saved.AudioAlert)
	assert.True(t, saved.AudioReminder)
	assert.Equal(t, cfg.ToastPosition, saved.ToastPosition)
	assert.Equal(t, cfg.DisplayMode, saved.DisplayMode)
}

func TestResetRestoresOptions(t *testing.T) {
	h := newHarness(t, options())
	h.send(deliverMsg{notification: notification("a", model.AlertInfo)})
	h.key("s")
	require.True(t, h.model.session.Config().AudioAlert)

	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlR})
	done, ok := find[resetDoneMsg](drain(cmd, time.Second))
	require.True(t, ok)
	require.NoError(t, done.err)

	h.send(done)
	assert.False(t, h.model.session.Config().AudioAlert)
	assert.Equal(t, 0, h.model.session.Inbox.Total())
	assert.True(t, h.model.session.FirstRun())
}

func TestModalTakesKeysFirst(t *testing.T) {
	h := newHarness(t, options())
	n := notification("b1", model.AlertBlocker)
	n.ActionURL = "https://example.com/b1"
	h.send(realtime.EventMsg{Kind: realtime.EventNotification, Notification: n})

	h.key("i")
	assert.False(t, h.model.showInbox)

	req, ok := find[modal.OpenRequestMsg](drain(h.key("o"), 50*time.Millisecond))
	require.True(t, ok)
	opened, ok := find[openedMsg](drain(h.send(req), 50*time.Millisecond))
	require.True(t, ok)
	require.NoError(t, opened.err)
	assert.Equal(t, []string{"https://example.com/b1"}, h.opened)

	h.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, h.model.modal.Visible())
	read, dismissed := h.backend.calls()
	assert.Empty(t, read)
	assert.Empty(t, dismissed, "closing the modal never dismisses")
}

func TestMouseOverToastsPauses(t *testing.T) {
	opts := options()
	opts.ToastAlert = true
	h := newHarness(t, opts)
	cmd := h.send(realtime.EventMsg{Kind: realtime.EventNotification, Notification: notification("t1", model.AlertInfo)})
	show, ok := find[toast.ShowMsg](drain(cmd, 50*time.Millisecond))
	require.True(t, ok)
	h.send(show)

	top, bottom := h.model.toastZone()
	require.Less(t, top, bottom)

	h.send(tea.MouseMsg{X: 1, Y: top, Action: tea.MouseActionMotion})
	assert.True(t, h.model.toasts.Hovered())

	h.send(tea.MouseMsg{X: 1, Y: 0, Action: tea.MouseActionMotion})
	assert.False(t, h.model.toasts.Hovered())
}

func TestViewShowsHeaderAndStatus(t *testing.T) {
	h := newHarness(t, options())
	h.send(deliverMsg{notification: notification("a", model.AlertInfo)})

	view := h.model.View()
	assert.Contains(t, view, "Inbox")
	assert.Contains(t, view, "online")
	assert.Contains(t, view, "powered by bell")

	h.key("c")
	assert.Contains(t, h.model.View(), "offline")
}

func TestQuitClosesSession(t *testing.T) {
	h := newHarness(t, options())
	cmd := h.key("q")
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
	assert.Equal(t, 1, h.channel.closed)
}

func TestCompactHidesStatusBar(t *testing.T) {
	opts := options()
	opts.Compact = true
	opts.TargetElement = "/dev/tty"
	h := newHarness(t, opts)

	view := h.model.View()
	assert.NotContains(t, view, "powered by bell")
	assert.Equal(t, 1, len(strings.Split(view, "\n")), "only the bell row without a panel")
}
