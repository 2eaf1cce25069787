package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"schedwidget/internal/config"
	appLog "schedwidget/internal/log"
	"schedwidget/internal/store"
)

const defaultConfigPath = "/etc/schedwidget/config.yaml"

// App carries persistent flag values and the lazily loaded config.
type App struct {
	ConfigPath string
	BackendURL string
	LogLevel   string
	Pretty     bool

	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "schedwidget",
		Short:        "Schedule widget host, reminder poller and reference backend",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Serve the widget page and run the reminder poller
  schedwidget serve

  # Run the bundled backend on its own
  schedwidget backend --db ./var/schedule.db

  # Scriptable commands
  schedwidget list
  schedwidget add --name Dentist --date 2024-05-01 --time 09:30
  echo "Sure, schedule/Dentist/2024-05-01/09:30/checkup" | schedwidget parse
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if app.LogLevel != "" {
			appLog.SetLevel(appLog.ParseLevel(app.LogLevel))
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("SCHEDWIDGET_CONFIG", defaultConfigPath), "Path to YAML config file (created with defaults on first run)")
	cmd.PersistentFlags().StringVar(&app.BackendURL, "backend", envOr("SCHEDWIDGET_BACKEND", ""), "Schedule backend base URL (overrides backend_url)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("SCHEDWIDGET_LOG_LEVEL", ""), "Log level (debug|info|warn|error; overrides log_level)")
	cmd.PersistentFlags().BoolVar(&app.Pretty, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newBackendCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newParseCmd(app))
	cmd.AddCommand(newLegacyCmd(app))
	cmd.AddCommand(newRemindCmd(app))
	cmd.AddCommand(newExportICSCmd(app))
	cmd.AddCommand(newImportICSCmd(app))
	cmd.AddCommand(newSnapshotCmd(app))

	return cmd
}

// config loads the config file once and applies flag overrides.
func (a *App) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config %s: %w", a.ConfigPath, err)
		}
		// First run could not persist the defaults; keep going with them.
		appLog.Warn("could not write default config", "path", a.ConfigPath, "err", err.Error())
	}
	if a.BackendURL != "" {
		cfg.BackendURL = a.BackendURL
	}
	if a.LogLevel != "" {
		cfg.LogLevel = a.LogLevel
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	a.cfg = cfg
	return cfg, nil
}

func (a *App) client() (*store.Client, *config.Config, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}
	c, err := store.NewClient(cfg.BackendURL, cfg.RequestTimeout)
	if err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if app.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(map[string]any{"data": v})
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

// today returns midnight of the current day in loc.
func today(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}
