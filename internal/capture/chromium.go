package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"evently/internal/calendar"
	appLog "evently/internal/log"
)

// Default snapshot parameters. The viewport fits a five-row month grid.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 960
	DefaultTimeout = 30 * time.Second

	readySelector = `[data-ready="true"]`
)

// Options defines one headless snapshot of the /calendar page.
type Options struct {
	// BaseURL is the server root, e.g. "http://127.0.0.1:8080".
	BaseURL string

	// Cursor selects the month. The zero value means the server's current
	// month.
	Cursor *calendar.Cursor

	// Registrations renders the signed-in user's registrations instead of
	// the whole catalog.
	Registrations bool

	// OutputPath is where the PNG is written.
	OutputPath string

	Width   int
	Height  int
	Timeout time.Duration
}

func (o Options) normalize() (Options, error) {
	if o.BaseURL == "" {
		return o, errors.New("capture: base URL is required")
	}
	if o.OutputPath == "" {
		return o, errors.New("capture: output path is required")
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
	return o, nil
}

// PageURL builds the /calendar URL for a snapshot.
func PageURL(base string, cur *calendar.Cursor, registrations bool) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("capture: base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("capture: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/calendar"

	q := url.Values{}
	if cur != nil {
		q.Set("year", strconv.Itoa(cur.Year))
		q.Set("month", strconv.Itoa(cur.Month))
	}
	if registrations {
		q.Set("source", "registrations")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Snapshot launches headless Chromium via chromedp, opens the calendar page,
// waits until its root element reports data-ready="true" and writes a
// full-page PNG to opts.OutputPath.
func Snapshot(parentCtx context.Context, opts Options) error {
	opts, err := opts.normalize()
	if err != nil {
		return err
	}
	target, err := PageURL(opts.BaseURL, opts.Cursor, opts.Registrations)
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	started := time.Now()
	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("calendar snapshot written", "url", target, "path", opts.OutputPath, "bytes", len(png), "took_ms", time.Since(started).Milliseconds())
	return nil
}
