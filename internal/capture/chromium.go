// Package capture takes headless screenshots of the widget page.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"schedwidget/internal/convert"
	appLog "schedwidget/internal/log"
)

// Default viewport for a widget snapshot.
const (
	DefaultWidth   = 480
	DefaultHeight  = 800
	DefaultTimeout = 30 * time.Second
)

// ReadySelector matches once the page has rendered the schedule list.
const ReadySelector = `[data-ready="true"]`

// Options defines parameters for a snapshot.
type Options struct {
	// URL of the widget page, e.g. "http://127.0.0.1:8080/".
	URL string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Width and Height are the viewport in pixels. Zero uses the defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture.
	Timeout time.Duration

	// Ink reduces the PNG to the black/red/white e-ink palette.
	Ink bool
	// InkLuma is the black cutoff for Ink; zero uses convert.DefaultBlackLuma.
	InkLuma float64
	// PlanesDir, if set with Ink, also receives black.bin and red.bin
	// (packed 1bpp planes).
	PlanesDir string

	// ExecAllocatorOptions are passed to the Chromium allocator, e.g.
	// chromedp.Flag("no-sandbox", true) in containers.
	ExecAllocatorOptions []chromedp.ExecAllocatorOption
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// WidgetPNG loads the page in headless Chromium, waits until ReadySelector
// is visible and writes a full-page PNG to opts.OutputPath.
func WidgetPNG(parentCtx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], opts.ExecAllocatorOptions...)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	start := time.Now()
	var shot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Let the last paint land.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&shot, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if opts.Ink {
		var err error
		if shot, err = inkify(shot, opts); err != nil {
			return err
		}
	}

	if err := writeFile(opts.OutputPath, shot); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("widget snapshot written", "path", opts.OutputPath, "bytes", len(shot), "ink", opts.Ink, "took", time.Since(start).String())
	return nil
}

// inkify quantizes a PNG screenshot and optionally dumps packed planes.
func inkify(shot []byte, opts Options) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("capture: decode screenshot: %w", err)
	}
	q := convert.Quantize(img, opts.InkLuma)

	if opts.PlanesDir != "" {
		black, red, stride, err := convert.Pack(q)
		if err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		if err := writeFile(filepath.Join(opts.PlanesDir, "black.bin"), black); err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		if err := writeFile(filepath.Join(opts.PlanesDir, "red.bin"), red); err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		appLog.Debug("ink planes written", "dir", opts.PlanesDir, "stride", stride, "height", q.Bounds().Dy())
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, q); err != nil {
		return nil, fmt.Errorf("capture: encode ink PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
