package cli

import (
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"schedwidget/internal/backend"
	appLog "schedwidget/internal/log"
)

func newBackendCmd(app *App) *cobra.Command {
	var listen, dbPath string

	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Run the bundled schedule backend (sqlite)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.config()
			if err != nil {
				return writeErr(cmd, err)
			}
			if listen == "" {
				listen = cfg.Backend.Listen
			}
			if dbPath == "" {
				dbPath = cfg.Backend.DBPath
			}
			if cfg.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			st, err := backend.OpenSQLite(dbPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			router := backend.NewRouter(st, backend.Options{
				AdminPassword: cfg.Backend.AdminPassword,
				CORS:          cfg.Backend.CORS,
				Location:      cfg.Location(),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			appLog.Info("backend config", "listen", listen, "db", dbPath, "cors", cfg.Backend.CORS,
				"legacy_view", cfg.Backend.AdminPassword != "")
			notifySystemd(daemon.SdNotifyReady)
			err = backend.Run(ctx, listen, router)
			notifySystemd(daemon.SdNotifyStopping)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides backend.listen)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides backend.db_path)")
	return cmd
}
