package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"schedwidget/internal/config"
	appLog "schedwidget/internal/log"
	"schedwidget/internal/notify"
	"schedwidget/internal/reminder"
	"schedwidget/internal/web"
	"schedwidget/internal/widget"
)

func newServeCmd(app *App) *cobra.Command {
	var listen string
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the widget page and run the reminder poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			w := widget.New(client)
			webSink := notify.NewWeb(0)
			notifier := buildNotifier(cfg, webSink)

			poller, err := reminder.New(client, w, notifier, pollerConfig(cfg), reminder.NewMetrics(reg))
			if err != nil {
				return writeErr(cmd, err)
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"backend_url", cfg.BackendURL,
				"timezone", cfg.Timezone,
				"poll", cfg.Poll,
				"notify_web", cfg.Notify.Web,
				"notify_log", cfg.Notify.Log,
				"notify_telegram", cfg.Notify.Telegram != nil,
			)

			// First paint comes from here; a failure keeps the empty list.
			w.Refresh(ctx)
			if err := poller.Start(ctx); err != nil {
				return writeErr(cmd, err)
			}
			defer poller.Stop()

			if !noWatch {
				go func() {
					err := config.Watch(ctx, app.ConfigPath, func(next *config.Config) {
						appLog.SetLevel(appLog.ParseLevel(next.LogLevel))
						if err := poller.Reconfigure(next.Poll, next.Windows); err != nil {
							appLog.Error("config reload rejected", err)
						}
					})
					if err != nil && !errors.Is(err, context.Canceled) {
						appLog.Warn("config watch stopped", "err", err.Error())
					}
				}()
			}

			srv := web.NewServer(cfg, web.Deps{
				Widget:   w,
				Web:      webSink,
				Legacy:   client,
				Gatherer: reg,
			})

			notifySystemd(daemon.SdNotifyReady)
			err = srv.Run(ctx)
			notifySystemd(daemon.SdNotifyStopping)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return writeErr(cmd, err)
			}
			appLog.Info("schedwidget exiting")
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload the config file on change")
	return cmd
}

// buildNotifier assembles the configured sinks. web may be nil.
func buildNotifier(cfg *config.Config, web *notify.Web) notify.Multi {
	var sinks notify.Multi
	if cfg.Notify.Web && web != nil {
		sinks = append(sinks, web)
	}
	if cfg.Notify.Log {
		sinks = append(sinks, notify.Log{})
	}
	if tc := cfg.Notify.Telegram; tc != nil && tc.Token != "" {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:      tc.Token,
			ChatID:     tc.ChatID,
			RatePerSec: tc.RatePerSec,
		})
		if err != nil {
			appLog.Error("telegram notifier disabled", err)
		} else {
			sinks = append(sinks, tg)
		}
	}
	return sinks
}

func pollerConfig(cfg *config.Config) reminder.Config {
	return reminder.Config{
		Schedule:    cfg.Poll,
		Windows:     cfg.Windows,
		Location:    cfg.Location(),
		TickTimeout: cfg.RequestTimeout,
	}
}

func notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		appLog.Warn("sd_notify failed", "state", state, "err", err.Error())
		return
	}
	if sent {
		appLog.Debug("sd_notify sent", "state", state)
	}
}
