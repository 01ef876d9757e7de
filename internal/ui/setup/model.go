// Package setup is the first-run form that writes the options file and
// stores the widget key in the keyring.
package setup

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bell/internal/client"
	"github.com/nhle/bell/internal/model"
	"github.com/nhle/bell/internal/theme"
)

// Mode is the current screen of the setup flow.
type Mode int

const (
	ModeForm       Mode = iota // Editing fields
	ModeValidating             // Testing the credentials
	ModeResult                 // Showing a failed check
	ModeDone                   // Saved or aborted
)

const checkTimeout = 15 * time.Second

// ValidateResultMsg carries the outcome of the connection check.
type ValidateResultMsg struct {
	Err error
}

// savedMsg is sent after the options and key were written.
type savedMsg struct {
	err error
}

// KeyStore persists the widget key outside the options file.
type KeyStore interface {
	SetWidgetKey(subscriberID, key string) error
}

// Deps wires the form to its side effects.
type Deps struct {
	// ConfigPath is where the options file is written.
	ConfigPath string

	Keys KeyStore

	// Check tests the entered credentials against the service. Nil uses a
	// list request through the REST client.
	Check func(ctx context.Context, opts model.Options) error
}

// values holds what the form fields are bound to. It sits behind a pointer
// so every copy of Model sees the same input.
type values struct {
	opts      model.Options
	widgetKey string
}

// Model is the Bubble Tea model of the setup flow.
type Model struct {
	mode    Mode
	deps    Deps
	form    *huh.Form
	spinner spinner.Model

	values *values

	checkErr error
	saveErr  error
	saved    bool

	width, height int
}

// New builds the form prefilled from opts. The widget key is never
// prefilled.
func New(opts model.Options, deps Deps) Model {
	if deps.Check == nil {
		deps.Check = CheckConnection
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		mode:    ModeForm,
		deps:    deps,
		spinner: sp,
		values:  &values{opts: opts},
		width:   80,
		height:  24,
	}
	m.values.opts.WidgetKey = ""
	m.form = m.buildForm()
	return m
}

// CheckConnection lists notifications with the given credentials.
func CheckConnection(ctx context.Context, opts model.Options) error {
	c := client.New(opts.APIURL, opts.WidgetKey, opts.SubscriberID, opts.LocationID)
	_, err := c.ListNotifications(ctx, time.Time{})
	return err
}

// Saved reports whether the options were written.
func (m Model) Saved() bool { return m.saved }

// Options returns the entered options, without the widget key.
func (m Model) Options() model.Options {
	o := m.values.opts
	o.WidgetKey = ""
	return o
}

// Mode returns the current screen.
func (m Model) Mode() Mode { return m.mode }

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages and dispatches based on the current mode.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ValidateResultMsg:
		if msg.Err != nil {
			m.checkErr = msg.Err
			m.mode = ModeResult
			return m, nil
		}
		return m, m.save()

	case savedMsg:
		if msg.err != nil {
			m.saveErr = msg.err
			m.mode = ModeResult
			return m, nil
		}
		m.saved = true
		m.mode = ModeDone
		return m, tea.Quit

	case spinner.TickMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.mode = ModeDone
			return m, tea.Quit
		}
		switch m.mode {
		case ModeValidating:
			if msg.String() == "esc" {
				m.mode = ModeResult
				m.checkErr = fmt.Errorf("check cancelled")
			}
			return m, nil
		case ModeResult:
			return m.handleResultKeys(msg)
		}
	}

	if m.mode != ModeForm {
		return m, nil
	}
	return m.updateForm(msg)
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.startCheck()
	case huh.StateAborted:
		m.mode = ModeDone
		return m, tea.Quit
	}
	return m, cmd
}

func (m Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		return m.startCheck()
	case "s":
		return m, m.save()
	case "e":
		m.mode = ModeForm
		m.checkErr = nil
		m.saveErr = nil
		m.form = m.buildForm()
		return m, m.form.Init()
	case "esc", "q":
		m.mode = ModeDone
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) startCheck() (tea.Model, tea.Cmd) {
	m.mode = ModeValidating
	m.checkErr = nil
	m.saveErr = nil

	check := m.deps.Check
	opts := m.values.opts
	opts.WidgetKey = m.values.widgetKey
	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
			defer cancel()
			return ValidateResultMsg{Err: check(ctx, opts)}
		},
	)
}

// save writes the options file and then the widget key.
func (m Model) save() tea.Cmd {
	path, keys := m.deps.ConfigPath, m.deps.Keys
	opts := m.Options()
	widgetKey := m.values.widgetKey
	return func() tea.Msg {
		if err := model.SaveOptions(path, opts); err != nil {
			return savedMsg{err: err}
		}
		if keys != nil && widgetKey != "" {
			if err := keys.SetWidgetKey(opts.SubscriberID, widgetKey); err != nil {
				return savedMsg{err: fmt.Errorf("storing widget key: %w", err)}
			}
		}
		return savedMsg{}
	}
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Subscriber ID").
				Value(&m.values.opts.SubscriberID).
				Validate(validateRequired("Subscriber ID")),
			huh.NewInput().
				Title("Widget Key").
				Description("Stored in the system keyring").
				EchoMode(huh.EchoModePassword).
				Value(&m.values.widgetKey).
				Validate(validateRequired("Widget key")),
			huh.NewInput().
				Title("Location").
				Placeholder("default").
				Value(&m.values.opts.LocationID),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API URL").
				Placeholder("https://notify.example.com").
				Value(&m.values.opts.APIURL).
				Validate(validateURL("http", "https")),
			huh.NewInput().
				Title("Socket URL").
				Placeholder("wss://notify.example.com").
				Value(&m.values.opts.SocketURL).
				Validate(validateURL("ws", "wss")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&m.values.opts.WidgetTitle),
			huh.NewConfirm().
				Title("Show toasts for new notifications?").
				Value(&m.values.opts.ToastAlert),
			huh.NewConfirm().
				Title("Ring the terminal bell?").
				Value(&m.values.opts.AudioAlert),
			huh.NewSelect[string]().
				Title("Display mode").
				Options(
					huh.NewOption("Follow the terminal", string(model.DisplayAuto)),
					huh.NewOption("Light", string(model.DisplayLight)),
					huh.NewOption("Dark", string(model.DisplayDark)),
				).
				Value(&m.values.opts.DisplayMode),
		),
	).WithWidth(m.formWidth())
}

// View renders the current screen.
func (m Model) View() string {
	style := lipgloss.NewStyle().Padding(1, 2)

	switch m.mode {
	case ModeForm:
		return style.Render(m.form.View())

	case ModeValidating:
		return style.Render(fmt.Sprintf(
			"%s Checking credentials...\n\nPress esc to cancel.",
			m.spinner.View(),
		))

	case ModeResult:
		err := m.checkErr
		title := "Connection failed"
		hints := "r retry | s save anyway | e edit | esc quit"
		if m.saveErr != nil {
			err = m.saveErr
			title = "Saving failed"
			hints = "s retry | e edit | esc quit"
		}
		errStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorRed)
		return style.Render(errStyle.Render(title) + "\n\n" +
			err.Error() + "\n\n" +
			theme.HelpStyle.Render(hints))

	default:
		if m.saved {
			ok := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen)
			return style.Render(ok.Render("Saved to " + m.deps.ConfigPath))
		}
		return ""
	}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateURL(schemes ...string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("URL is required")
		}
		parsed, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid URL: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("URL must include scheme and host")
		}
		for _, scheme := range schemes {
			if parsed.Scheme == scheme {
				return nil
			}
		}
		return fmt.Errorf("URL scheme must be one of %s", strings.Join(schemes, ", "))
	}
}
