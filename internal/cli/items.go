package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"schedwidget/internal/model"
	"schedwidget/internal/suggest"
	"schedwidget/internal/widget"
)

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schedule items from the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := client.List(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, items)
		},
	}
}

func newAddCmd(app *App) *cobra.Command {
	var f model.Fields

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a schedule item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			w := widget.New(client)
			eff := w.SubmitForm(cmd.Context(), f)
			if eff.Err != nil {
				return writeErr(cmd, eff.Err)
			}
			if eff.RefreshErr != nil {
				warnStale(cmd, eff.RefreshErr)
			}
			return writeOut(cmd, app, w.Snapshot())
		},
	}
	cmd.Flags().StringVar(&f.Name, "name", "", "Item name (required)")
	cmd.Flags().StringVar(&f.Date, "date", "", "Date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.Time, "time", "", "Time, HH:MM (required)")
	cmd.Flags().StringVar(&f.Description, "description", "", "Description")
	return cmd
}

func newDeleteCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a schedule item (asks for confirmation)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			confirmer := widget.ConfirmFunc(func(prompt string) bool {
				if yes {
					return true
				}
				return promptYes(cmd.ErrOrStderr(), cmd.InOrStdin(), prompt)
			})

			w := widget.New(client)
			eff := w.Delete(cmd.Context(), args[0], confirmer)
			if eff.Err != nil {
				return writeErr(cmd, eff.Err)
			}
			if !eff.Requested {
				return writeOut(cmd, app, map[string]any{"deleted": false})
			}
			if eff.RefreshErr != nil {
				warnStale(cmd, eff.RefreshErr)
			}
			return writeOut(cmd, app, map[string]any{"deleted": true, "items": w.Snapshot()})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not prompt")
	return cmd
}

// warnStale reports a list fetch that failed after the change was saved.
// Retrying would duplicate the change, so it is not an error exit.
func warnStale(cmd *cobra.Command, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "saved, but refreshing the list failed: %v\n", err)
}

// promptYes asks prompt on out and reads one answer line from in.
func promptYes(out io.Writer, in io.Reader, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func newParseCmd(app *App) *cobra.Command {
	var add bool

	cmd := &cobra.Command{
		Use:   "parse [text]",
		Short: "Extract a schedule hint from assistant text (stdin when no argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := argOrStdin(cmd, args)
			if err != nil {
				return writeErr(cmd, err)
			}

			if !add {
				res := suggest.Extract(text)
				return writeOut(cmd, app, map[string]any{
					"suggestion":   res.Suggestion,
					"display_text": res.DisplayText,
				})
			}

			client, _, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			w := widget.New(client)
			shown := w.HandleResponse(text)
			confirmed := w.ConfirmSuggestion(cmd.Context())
			if confirmed.Err != nil {
				return writeErr(cmd, confirmed.Err)
			}
			out := map[string]any{
				"suggestion":   shown.Popup.Pending,
				"display_html": shown.DisplayHTML,
				"added":        confirmed.Requested,
			}
			if confirmed.RefreshErr != nil {
				warnStale(cmd, confirmed.RefreshErr)
				out["refresh_error"] = confirmed.RefreshErr.Error()
			}
			return writeOut(cmd, app, out)
		},
	}
	cmd.Flags().BoolVar(&add, "add", false, "Add the extracted suggestion to the backend")
	return cmd
}

func argOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func newLegacyCmd(app *App) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Show the password-protected alternate listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			if password == "" {
				password = cfg.LegacyPassword
			}
			resp, err := client.Legacy(cmd.Context(), password)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, resp.Items)
		},
	}
	cmd.Flags().StringVar(&password, "password", envOr("SCHEDWIDGET_LEGACY_PASSWORD", ""), "Password (defaults to legacy_password)")
	return cmd
}
