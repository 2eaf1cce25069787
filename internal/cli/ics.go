package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"schedwidget/internal/ics"
	appLog "schedwidget/internal/log"
)

func newExportICSCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Export the schedule as iCalendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := client.List(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			body, skipped := ics.Export(items, cfg.Location(), time.Now())
			if skipped > 0 {
				appLog.Warn("items without a valid date/time were not exported", "count", skipped)
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write([]byte(body))
				return err
			}
			if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"path": out, "events": len(items) - skipped})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (stdout when empty)")
	return cmd
}

func newImportICSCmd(app *App) *cobra.Command {
	var (
		days    int
		maxOcc  int
		dryRun  bool
		pastDay int
	)

	cmd := &cobra.Command{
		Use:   "import-ics <url-or-file>",
		Short: "Add the events of an ICS feed (recurrences expanded) to the schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmd.Context()

			body, err := ics.Load(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			events, err := ics.Parse(body)
			if err != nil {
				return writeErr(cmd, err)
			}

			loc := cfg.Location()
			start := today(loc).AddDate(0, 0, -pastDay)
			res, err := ics.Expand(events, ics.ExpandConfig{
				Location:               loc,
				RangeStart:             start,
				RangeEnd:               today(loc).AddDate(0, 0, days),
				MaxOccurrencesPerEvent: maxOcc,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			if len(res.Truncated) > 0 {
				appLog.Warn("recurrence expansion truncated", "uids", res.Truncated)
			}

			added := 0
			if !dryRun {
				for _, f := range res.Fields {
					if err := client.Add(ctx, f); err != nil {
						return writeErr(cmd, err)
					}
					added++
				}
			}
			return writeOut(cmd, app, map[string]any{
				"events":    len(events),
				"items":     res.Fields,
				"added":     added,
				"truncated": res.Truncated,
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Import occurrences up to this many days ahead")
	cmd.Flags().IntVar(&pastDay, "backfill", 0, "Also import occurrences this many days back")
	cmd.Flags().IntVar(&maxOcc, "max-occurrences", 500, "Cap on occurrences per recurring event")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be added without adding")
	return cmd
}
