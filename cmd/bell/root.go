package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nhle/bell/internal/model"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	cfgFile   string
	stateDir  string
	sessionID string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "bell",
	Short: "Terminal notification inbox with toasts, blockers and reminders",
	Long: `bell shows a subscriber's notifications for one location in a small
terminal widget. New notifications arrive over a realtime channel and are
announced with toasts, blocking dialogs and the terminal bell.`,
	SilenceUsage: true,
	RunE:         runWidget,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of bell",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bell %s\n", Version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", model.DefaultConfigPath(), "options file path")
	pf.StringVar(&stateDir, "state-dir", model.DefaultStateDir(), "directory for the database and log file")
	pf.StringVar(&sessionID, "session", "", "session id scoping the notification cache (default: parent process id)")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	addOptionFlags(rootCmd.Flags())
	rootCmd.AddCommand(versionCmd)
}

// addOptionFlags declares one flag per widget option. Only flags that are
// set on the command line override the options file.
func addOptionFlags(fs *pflag.FlagSet) {
	def := model.DefaultOptions()

	fs.String("subscriber-id", "", "subscriber the widget belongs to")
	fs.String("widget-key", "", "widget key (default: read from the keyring)")
	fs.String("location-id", def.LocationID, "location scope")
	fs.String("widget-title", def.WidgetTitle, "title shown in the header")
	fs.Bool("audio-alert", false, "ring the bell for new notifications")
	fs.Bool("audio-reminder", false, "remind about unread notifications")
	fs.Int("reminder-interval", def.ReminderInterval, "reminder interval in seconds")
	fs.Bool("toast-alert", false, "show a toast for new notifications")
	fs.String("toast-position", def.ToastPosition, "toast position (top-left, top-center, top-right, bottom-left, bottom-center, bottom-right)")
	fs.Int("toast-duration", def.ToastDuration, "toast duration in seconds")
	fs.String("width", def.Width, "widget width in pixels")
	fs.String("height", def.Height, "widget height in pixels")
	fs.Bool("show-inbox-on-load", false, "open the inbox after the first fetch")
	fs.Int("refresh-interval", 0, "periodic refresh in seconds (0 disables, minimum 300)")
	fs.Bool("branded", def.Branded, "show the powered-by mark")
	fs.Bool("compact", false, "render inline on the target terminal")
	fs.String("target-element", "", "terminal device used in compact mode")
	fs.String("api-url", "", "notification service base URL")
	fs.String("socket-url", "", "realtime channel URL")
	fs.String("display-mode", def.DisplayMode, "display mode (light, dark, auto)")
}

// resolveSessionID returns the --session value, or an id derived from the
// parent process so every shell gets its own cache.
func resolveSessionID() string {
	if sessionID != "" {
		return sessionID
	}
	return fmt.Sprintf("ppid-%d", os.Getppid())
}

func dbPath() string {
	return filepath.Join(stateDir, "bell.db")
}

func logPath() string {
	return filepath.Join(stateDir, "bell.log")
}
