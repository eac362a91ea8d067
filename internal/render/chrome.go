// Package render turns timesheet email HTML into PNG screenshots with a
// headless Chrome.
package render

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"invoicer/internal/errs"
	"invoicer/internal/logger"
)

// ChromeConfig configures the headless browser.
type ChromeConfig struct {
	ExecPath string // empty to let chromedp find Chrome
	Width    int
	Height   int
	Timeout  time.Duration
}

// DefaultChromeConfig returns a 700x1100 window with a 30 second budget per
// screenshot.
func DefaultChromeConfig() ChromeConfig {
	return ChromeConfig{
		Width:   700,
		Height:  1100,
		Timeout: 30 * time.Second,
	}
}

// ChromeRenderer screenshots HTML pages in a fresh headless Chrome each time.
type ChromeRenderer struct {
	config ChromeConfig
	log    zerolog.Logger
}

// NewChromeRenderer creates a renderer. Zero fields of cfg take their
// DefaultChromeConfig values.
func NewChromeRenderer(cfg ChromeConfig) *ChromeRenderer {
	defaults := DefaultChromeConfig()
	if cfg.Width <= 0 {
		cfg.Width = defaults.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = defaults.Height
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &ChromeRenderer{
		config: cfg,
		log:    logger.WithComponent("render"),
	}
}

// RenderHTMLToImage writes html to a temporary file, loads it in Chrome and
// saves a viewport screenshot to outputPath. The temporary file is always
// removed.
func (r *ChromeRenderer) RenderHTMLToImage(ctx context.Context, html, outputPath string) error {
	const op = "RenderHTMLToImage"

	tmp, err := os.CreateTemp("", "timesheet-*.html")
	if err != nil {
		return errs.IO(op, err, "failed to create temp HTML file")
	}
	tmpPath := tmp.Name()
	defer func() {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
			r.log.Warn().Err(removeErr).Str("path", tmpPath).Msg("Failed to remove temp HTML file")
		}
	}()

	if _, err := tmp.WriteString(html); err != nil {
		_ = tmp.Close()
		return errs.IO(op, err, "failed to write temp HTML file")
	}
	if err := tmp.Close(); err != nil {
		return errs.IO(op, err, "failed to close temp HTML file")
	}

	r.log.Debug().Str("temp_file", tmpPath).Msg("Created temp HTML file")

	image, err := r.screenshot(ctx, fileURL(tmpPath))
	if err != nil {
		return errs.External(op, err, "failed to capture screenshot")
	}

	if err := os.WriteFile(outputPath, image, 0o644); err != nil {
		return errs.IO(op, err, "failed to save screenshot")
	}

	r.log.Info().
		Str("path", outputPath).
		Int("bytes", len(image)).
		Msg("Saved screenshot")

	return nil
}

func (r *ChromeRenderer) screenshot(ctx context.Context, pageURL string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.WindowSize(r.config.Width, r.config.Height),
	)
	if r.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.config.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, r.config.Timeout)
	defer cancelTimeout()

	var image []byte
	err := chromedp.Run(timeoutCtx,
		chromedp.EmulateViewport(int64(r.config.Width), int64(r.config.Height)),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.CaptureScreenshot(&image),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome run failed: %w", err)
	}
	return image, nil
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
