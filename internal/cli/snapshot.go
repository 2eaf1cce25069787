package cli

import (
	"time"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"

	"schedwidget/internal/capture"
)

func newSnapshotCmd(app *App) *cobra.Command {
	var (
		url       string
		out       string
		width     int
		height    int
		timeout   time.Duration
		noSandbox bool
		ink       bool
		planesDir string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the widget page as a PNG with headless Chromium",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				cfg, err := app.config()
				if err != nil {
					return writeErr(cmd, err)
				}
				url = "http://" + cfg.Listen + "/"
			}
			opts := capture.Options{
				URL:        url,
				OutputPath: out,
				Width:      width,
				Height:     height,
				Timeout:    timeout,
				Ink:        ink,
				PlanesDir:  planesDir,
			}
			if noSandbox {
				opts.ExecAllocatorOptions = append(opts.ExecAllocatorOptions, chromedp.NoSandbox)
			}
			if err := capture.WidgetPNG(cmd.Context(), opts); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"path": out, "url": url})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Widget page URL (defaults to http://<listen>/)")
	cmd.Flags().StringVarP(&out, "out", "o", "./widget.png", "Output PNG path")
	cmd.Flags().IntVar(&width, "width", capture.DefaultWidth, "Viewport width")
	cmd.Flags().IntVar(&height, "height", capture.DefaultHeight, "Viewport height")
	cmd.Flags().DurationVar(&timeout, "timeout", capture.DefaultTimeout, "Capture timeout")
	cmd.Flags().BoolVar(&ink, "ink", false, "Reduce the PNG to black/red/white for e-ink panels")
	cmd.Flags().StringVar(&planesDir, "planes-dir", "", "With --ink, also write packed black.bin/red.bin here")
	cmd.Flags().BoolVar(&noSandbox, "no-sandbox", false, "Disable the Chromium sandbox (containers)")
	return cmd
}
