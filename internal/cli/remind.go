package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
	"schedwidget/internal/notify"
	"schedwidget/internal/reminder"
)

// remindSink reports popup-window hits on the log; there is no page to
// show them on.
type remindSink struct {
	raised []model.Item
}

func (s *remindSink) ReplaceList([]model.Item) {}

func (s *remindSink) RaiseReminder(it model.Item) {
	s.raised = append(s.raised, it)
	appLog.Info("schedule item starting now", "id", it.ID, "name", it.Name, "date", it.Date, "time", it.Time)
}

func newRemindCmd(app *App) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Run the reminder poller without the widget page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			sink := &remindSink{}
			notifier := buildNotifier(cfg, nil)
			if len(notifier) == 0 {
				notifier = notify.Multi{notify.Log{}}
			}

			poller, err := reminder.New(client, sink, notifier, pollerConfig(cfg), nil)
			if err != nil {
				return writeErr(cmd, err)
			}

			if once {
				if err := poller.Tick(cmd.Context()); err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"now": sink.raised})
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := poller.Start(ctx); err != nil {
				return writeErr(cmd, err)
			}
			<-ctx.Done()
			poller.Stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run a single tick and exit")
	return cmd
}
