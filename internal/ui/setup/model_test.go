package setup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bell/internal/model"
)

type memKeys map[string]string

func (k memKeys) SetWidgetKey(subscriberID, key string) error {
	k[subscriberID] = key
	return nil
}

func newModel(t *testing.T, check func(context.Context, model.Options) error) (Model, memKeys, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	keys := memKeys{}

	opts := model.DefaultOptions()
	opts.SubscriberID = "sub-1"
	opts.WidgetKey = "must-not-leak"
	opts.APIURL = "https://api.example.com"

	m := New(opts, Deps{ConfigPath: path, Keys: keys, Check: check})
	m.values.widgetKey = "secret-widget-key"
	return m, keys, path
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestWidgetKeyIsNeverPrefilled(t *testing.T) {
	m, _, _ := newModel(t, nil)
	assert.Empty(t, m.Options().WidgetKey)
	assert.Equal(t, "sub-1", m.Options().SubscriberID)
}

func TestSuccessfulCheckSavesOptionsAndKey(t *testing.T) {
	m, keys, path := newModel(t, func(context.Context, model.Options) error { return nil })

	m, cmd := step(t, m, ValidateResultMsg{})
	require.NotNil(t, cmd)
	m, cmd = step(t, m, cmd())

	assert.True(t, m.Saved())
	assert.Equal(t, ModeDone, m.Mode())
	require.NotNil(t, cmd)
	_, quit := cmd().(tea.QuitMsg)
	assert.True(t, quit)

	assert.Equal(t, "secret-widget-key", keys["sub-1"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sub-1")
	assert.NotContains(t, string(data), "secret-widget-key")
	assert.NotContains(t, string(data), "must-not-leak")
}

func TestStartCheckPassesKeyToChecker(t *testing.T) {
	var seen model.Options
	m, _, _ := newModel(t, func(_ context.Context, opts model.Options) error {
		seen = opts
		return nil
	})

	next, cmd := m.startCheck()
	assert.Equal(t, ModeValidating, next.(Model).Mode())

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	var result tea.Msg
	for _, c := range batch {
		if msg, ok := c().(ValidateResultMsg); ok {
			result = msg
		}
	}
	require.NotNil(t, result)
	assert.Equal(t, "secret-widget-key", seen.WidgetKey)
}

func TestFailedCheckOffersSaveAnyway(t *testing.T) {
	m, keys, path := newModel(t, nil)

	m, _ = step(t, m, ValidateResultMsg{Err: errors.New("401 unauthorized")})
	assert.Equal(t, ModeResult, m.Mode())
	assert.Contains(t, m.View(), "Connection failed")
	assert.Contains(t, m.View(), "401 unauthorized")

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)
	m, _ = step(t, m, cmd())

	assert.True(t, m.Saved())
	assert.Equal(t, "secret-widget-key", keys["sub-1"])
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestEscapeFromResultQuitsWithoutSaving(t *testing.T) {
	m, keys, path := newModel(t, nil)
	m, _ = step(t, m, ValidateResultMsg{Err: errors.New("boom")})

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, ModeDone, m.Mode())
	assert.False(t, m.Saved())
	assert.Empty(t, keys)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestValidateURL(t *testing.T) {
	httpOnly := validateURL("http", "https")
	assert.NoError(t, httpOnly("https://api.example.com"))
	assert.Error(t, httpOnly(""))
	assert.Error(t, httpOnly("api.example.com"))
	assert.Error(t, httpOnly("wss://api.example.com"))

	assert.NoError(t, validateURL("ws", "wss")("wss://rt.example.com"))
}
