package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// MinRefreshInterval is the floor applied to a nonzero refresh interval,
// since every refresh is a network call.
const MinRefreshInterval = 300

// Terminal cell size used to translate pixel dimensions into cells.
const (
	cellWidthPx  = 6
	cellHeightPx = 16
)

// ToastPosition is one of the six compass positions of the toast zone.
type ToastPosition string

const (
	ToastTopLeft      ToastPosition = "top-left"
	ToastTopCenter    ToastPosition = "top-center"
	ToastTopRight     ToastPosition = "top-right"
	ToastBottomLeft   ToastPosition = "bottom-left"
	ToastBottomCenter ToastPosition = "bottom-center"
	ToastBottomRight  ToastPosition = "bottom-right"
)

// toastCycle is the fixed order used when cycling toast positions.
var toastCycle = []ToastPosition{
	ToastBottomRight,
	ToastBottomCenter,
	ToastBottomLeft,
	ToastTopLeft,
	ToastTopCenter,
	ToastTopRight,
}

// Valid reports whether p is one of the six known positions.
func (p ToastPosition) Valid() bool {
	for _, c := range toastCycle {
		if c == p {
			return true
		}
	}
	return false
}

// Next returns the following position in the cycle. Unknown positions
// restart the cycle at bottom-right.
func (p ToastPosition) Next() ToastPosition {
	for i, c := range toastCycle {
		if c == p {
			return toastCycle[(i+1)%len(toastCycle)]
		}
	}
	return ToastBottomRight
}

// IsTop reports whether the toast zone sits above the content.
func (p ToastPosition) IsTop() bool {
	return strings.HasPrefix(string(p), "top-")
}

// Horizontal returns "left", "center" or "right".
func (p ToastPosition) Horizontal() string {
	_, h, _ := strings.Cut(string(p), "-")
	return h
}

// DisplayMode selects the colour scheme.
type DisplayMode string

const (
	DisplayLight DisplayMode = "light"
	DisplayDark  DisplayMode = "dark"
	DisplayAuto  DisplayMode = "auto"
)

// Next cycles light -> dark -> auto -> light.
func (d DisplayMode) Next() DisplayMode {
	switch d {
	case DisplayLight:
		return DisplayDark
	case DisplayDark:
		return DisplayAuto
	default:
		return DisplayLight
	}
}

// Options is the caller-supplied widget configuration.
type Options struct {
	SubscriberID     string `mapstructure:"subscriberId" yaml:"subscriberId" json:"subscriberId"`
	WidgetKey        string `mapstructure:"widgetKey" yaml:"-" json:"-"`
	LocationID       string `mapstructure:"locationId" yaml:"locationId" json:"locationId"`
	WidgetTitle      string `mapstructure:"widgetTitle" yaml:"widgetTitle" json:"widgetTitle"`
	AudioAlert       bool   `mapstructure:"audioAlert" yaml:"audioAlert" json:"audioAlert"`
	AudioReminder    bool   `mapstructure:"audioReminder" yaml:"audioReminder" json:"audioReminder"`
	ReminderInterval int    `mapstructure:"reminderInterval" yaml:"reminderInterval" json:"reminderInterval"`
	ToastAlert       bool   `mapstructure:"toastAlert" yaml:"toastAlert" json:"toastAlert"`
	ToastPosition    string `mapstructure:"toastPosition" yaml:"toastPosition" json:"toastPosition"`
	ToastDuration    int    `mapstructure:"toastDuration" yaml:"toastDuration" json:"toastDuration"`
	Width            string `mapstructure:"width" yaml:"width" json:"width"`
	Height           string `mapstructure:"height" yaml:"height" json:"height"`
	ShowInboxOnLoad  bool   `mapstructure:"showInboxOnLoad" yaml:"showInboxOnLoad" json:"showInboxOnLoad"`
	RefreshInterval  int    `mapstructure:"refreshInterval" yaml:"refreshInterval" json:"refreshInterval"`
	Branded          bool   `mapstructure:"branded" yaml:"branded" json:"branded"`
	Compact          bool   `mapstructure:"compact" yaml:"compact" json:"compact"`
	TargetElement    string `mapstructure:"targetElement" yaml:"targetElement" json:"targetElement"`
	APIURL           string `mapstructure:"apiUrl" yaml:"apiUrl" json:"apiUrl"`
	SocketURL        string `mapstructure:"socketUrl" yaml:"socketUrl" json:"socketUrl"`
	DisplayMode      string `mapstructure:"displayMode" yaml:"displayMode" json:"displayMode"`
}

// Config is the effective configuration of one widget instance. Only
// AudioAlert, AudioReminder, ToastAlert, ToastPosition and DisplayMode
// change after resolution.
type Config struct {
	SubscriberID     string        `json:"subscriberId"`
	WidgetKey        string        `json:"-"`
	LocationID       string        `json:"locationId"`
	WidgetTitle      string        `json:"widgetTitle"`
	AudioAlert       bool          `json:"audioAlert"`
	AudioReminder    bool          `json:"audioReminder"`
	ReminderInterval int           `json:"reminderInterval"`
	ToastAlert       bool          `json:"toastAlert"`
	ToastPosition    ToastPosition `json:"toastPosition"`
	ToastDuration    int           `json:"toastDuration"`
	Width            string        `json:"width"`
	Height           string        `json:"height"`
	ShowInboxOnLoad  bool          `json:"showInboxOnLoad"`
	RefreshInterval  int           `json:"refreshInterval"`
	Branded          bool          `json:"branded"`
	Compact          bool          `json:"compact"`
	TargetElement    string        `json:"targetElement"`
	APIURL           string        `json:"apiUrl"`
	SocketURL        string        `json:"socketUrl"`
	DisplayMode      DisplayMode   `json:"displayMode"`
}

// Settings is the durable snapshot of a Config.
type Settings = Config

// ReminderEvery returns the reminder cadence.
func (c Config) ReminderEvery() time.Duration {
	return time.Duration(c.ReminderInterval) * time.Second
}

// ToastFor returns how long a toast stays visible.
func (c Config) ToastFor() time.Duration {
	return time.Duration(c.ToastDuration) * time.Second
}

// RefreshEvery returns the periodic refresh period, or zero when disabled.
func (c Config) RefreshEvery() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}

// Cells converts the configured pixel dimensions into terminal cells.
func (c Config) Cells() (cols, rows int) {
	return parsePixels(c.Width, 300) / cellWidthPx, parsePixels(c.Height, 400) / cellHeightPx
}

func parsePixels(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// ConfigError reports a configuration that cannot produce a widget.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %s", e.Field, e.Message)
}

// IsConfigError reports whether err (or any error in its chain) is a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// Resolution is the outcome of resolving options against persisted settings.
type Resolution struct {
	Config Config

	// FirstRun is true when no settings had been persisted yet.
	FirstRun bool

	// LocationChanged is true when the persisted location differs from
	// the caller's, meaning session caches must be dropped.
	LocationChanged bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		LocationID:       "default",
		WidgetTitle:      "Inbox",
		ReminderInterval: 180,
		ToastPosition:    string(ToastBottomRight),
		ToastDuration:    4,
		Width:            "300px",
		Height:           "400px",
		Branded:          true,
		DisplayMode:      string(DisplayAuto),
	}
}

// Resolve merges caller options with previously persisted settings into one
// effective configuration. Persisted settings win over caller options, except
// for the identity fields and endpoints, which always come from the caller.
func Resolve(opts Options, persisted *Settings) (*Resolution, error) {
	if strings.TrimSpace(opts.SubscriberID) == "" {
		return nil, &ConfigError{Field: "subscriberId", Message: "subscriber id is required"}
	}
	if strings.TrimSpace(opts.WidgetKey) == "" {
		return nil, &ConfigError{Field: "widgetKey", Message: "widget key is required"}
	}
	if opts.Compact && strings.TrimSpace(opts.TargetElement) == "" {
		return nil, &ConfigError{Field: "targetElement", Message: "target element is required in compact mode"}
	}

	cfg := fromOptions(opts)
	res := &Resolution{FirstRun: persisted == nil}

	if persisted != nil {
		prev := *persisted
		res.LocationChanged = prev.LocationID != "" && prev.LocationID != cfg.LocationID

		prev.SubscriberID = cfg.SubscriberID
		prev.WidgetKey = cfg.WidgetKey
		prev.LocationID = cfg.LocationID
		prev.APIURL = cfg.APIURL
		prev.SocketURL = cfg.SocketURL
		prev.Compact = cfg.Compact
		prev.TargetElement = cfg.TargetElement
		cfg = prev
	}

	res.Config = normalize(cfg)
	return res, nil
}

func fromOptions(o Options) Config {
	return Config{
		SubscriberID:     strings.TrimSpace(o.SubscriberID),
		WidgetKey:        strings.TrimSpace(o.WidgetKey),
		LocationID:       o.LocationID,
		WidgetTitle:      o.WidgetTitle,
		AudioAlert:       o.AudioAlert,
		AudioReminder:    o.AudioReminder,
		ReminderInterval: o.ReminderInterval,
		ToastAlert:       o.ToastAlert,
		ToastPosition:    ToastPosition(o.ToastPosition),
		ToastDuration:    o.ToastDuration,
		Width:            o.Width,
		Height:           o.Height,
		ShowInboxOnLoad:  o.ShowInboxOnLoad,
		RefreshInterval:  o.RefreshInterval,
		Branded:          o.Branded,
		Compact:          o.Compact,
		TargetElement:    o.TargetElement,
		APIURL:           strings.TrimRight(o.APIURL, "/"),
		SocketURL:        strings.TrimRight(o.SocketURL, "/"),
		DisplayMode:      DisplayMode(o.DisplayMode),
	}
}

// normalize fills zero values with defaults and enforces minimums.
func normalize(c Config) Config {
	def := DefaultOptions()
	if c.LocationID == "" {
		c.LocationID = def.LocationID
	}
	if c.WidgetTitle == "" {
		c.WidgetTitle = def.WidgetTitle
	}
	if c.ReminderInterval <= 0 {
		c.ReminderInterval = def.ReminderInterval
	}
	if !c.ToastPosition.Valid() {
		c.ToastPosition = ToastPosition(def.ToastPosition)
	}
	if c.ToastDuration <= 0 {
		c.ToastDuration = def.ToastDuration
	}
	if c.Width == "" {
		c.Width = def.Width
	}
	if c.Height == "" {
		c.Height = def.Height
	}
	if c.RefreshInterval < 0 {
		c.RefreshInterval = 0
	}
	if c.RefreshInterval > 0 && c.RefreshInterval < MinRefreshInterval {
		c.RefreshInterval = MinRefreshInterval
	}
	switch c.DisplayMode {
	case DisplayLight, DisplayDark, DisplayAuto:
	default:
		c.DisplayMode = DisplayAuto
	}
	return c
}

// DefaultConfigPath returns the default path for the options file,
// located at ~/.config/bell/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "bell", "config.yaml")
}

// DefaultStateDir returns the directory holding the database and log file.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", "bell")
}

// newViper returns a viper instance with every option key defaulted so that
// environment overrides (BELL_*) are picked up by Unmarshal.
func newViper(path string) *viper.Viper {
	def := DefaultOptions()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("bell")
	v.AutomaticEnv()

	v.SetDefault("subscriberId", "")
	v.SetDefault("widgetKey", "")
	v.SetDefault("locationId", def.LocationID)
	v.SetDefault("widgetTitle", def.WidgetTitle)
	v.SetDefault("audioAlert", false)
	v.SetDefault("audioReminder", false)
	v.SetDefault("reminderInterval", def.ReminderInterval)
	v.SetDefault("toastAlert", false)
	v.SetDefault("toastPosition", def.ToastPosition)
	v.SetDefault("toastDuration", def.ToastDuration)
	v.SetDefault("width", def.Width)
	v.SetDefault("height", def.Height)
	v.SetDefault("showInboxOnLoad", false)
	v.SetDefault("refreshInterval", 0)
	v.SetDefault("branded", def.Branded)
	v.SetDefault("compact", false)
	v.SetDefault("targetElement", "")
	v.SetDefault("apiUrl", "")
	v.SetDefault("socketUrl", "")
	v.SetDefault("displayMode", def.DisplayMode)
	return v
}

// LoadOptions reads options from the YAML file at path, the BELL_*
// environment and any flags that were explicitly set. A missing file is not
// an error.
func LoadOptions(path string, flags *pflag.FlagSet) (*Options, error) {
	v := newViper(path)

	if flags != nil {
		// Only bind flags that were set so their zero values do not
		// shadow the file.
		var bindErr error
		flags.Visit(func(f *pflag.Flag) {
			if err := v.BindPFlag(flagKey(f.Name), f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("binding flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	opts := DefaultOptions()
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &opts, nil
}

// flagKey maps a kebab-case flag name such as "subscriber-id" onto its
// option key "subscriberId".
func flagKey(name string) string {
	parts := strings.Split(name, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// SaveOptions writes opts to a YAML file at path, creating parent
// directories if needed. The widget key is never written.
func SaveOptions(path string, opts Options) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("subscriberId", opts.SubscriberID)
	v.Set("locationId", opts.LocationID)
	v.Set("widgetTitle", opts.WidgetTitle)
	v.Set("audioAlert", opts.AudioAlert)
	v.Set("audioReminder", opts.AudioReminder)
	v.Set("reminderInterval", opts.ReminderInterval)
	v.Set("toastAlert", opts.ToastAlert)
	v.Set("toastPosition", opts.ToastPosition)
	v.Set("toastDuration", opts.ToastDuration)
	v.Set("width", opts.Width)
	v.Set("height", opts.Height)
	v.Set("showInboxOnLoad", opts.ShowInboxOnLoad)
	v.Set("refreshInterval", opts.RefreshInterval)
	v.Set("branded", opts.Branded)
	v.Set("compact", opts.Compact)
	v.Set("targetElement", opts.TargetElement)
	v.Set("apiUrl", opts.APIURL)
	v.Set("socketUrl", opts.SocketURL)
	v.Set("displayMode", opts.DisplayMode)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
