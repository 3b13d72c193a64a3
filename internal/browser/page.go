// internal/browser/page.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Navigate loads the URL and waits for the document to become ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation to %q timed out after %s: %w", url, navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation to %q failed: %w", url, err)
	}
	return nil
}

// Wait pauses the session for the given number of seconds.
func (s *Session) Wait(ctx context.Context, seconds float64) error {
	duration := time.Duration(seconds * float64(time.Second))
	s.logger.Debug("Waiting", zap.Duration("duration", duration))

	waitCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	select {
	case <-time.After(duration):
		return nil
	case <-waitCtx.Done():
		return waitCtx.Err()
	}
}

// Refresh reloads the current page and waits for readiness.
func (s *Session) Refresh(ctx context.Context) error {
	return s.runActions(ctx,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Scroll moves the viewport. Directions: up, down, top, bottom, or a signed
// pixel amount.
func (s *Session) Scroll(ctx context.Context, direction string) error {
	if pixels, err := strconv.Atoi(direction); err == nil {
		script := fmt.Sprintf(`window.scrollBy({top: %d, behavior: 'instant'});`, pixels)
		if err := s.runActions(ctx, chromedp.Evaluate(script, nil)); err != nil {
			return fmt.Errorf("scroll failed: %w", err)
		}
		return nil
	}

	var script string
	switch direction {
	case "down":
		script = `window.scrollBy({top: window.innerHeight * 0.8, behavior: 'instant'});`
	case "up":
		script = `window.scrollBy({top: -window.innerHeight * 0.8, behavior: 'instant'});`
	case "bottom":
		script = `window.scrollTo({top: document.body.scrollHeight, behavior: 'instant'});`
	case "top":
		script = `window.scrollTo({top: 0, behavior: 'instant'});`
	default:
		return fmt.Errorf("invalid scroll direction %q (supported: up, down, top, bottom)", direction)
	}

	if err := s.runActions(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// Screenshot captures the viewport as PNG at path, creating parent
// directories as needed.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.runActions(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("screenshot capture failed: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create screenshot directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("could not write screenshot: %w", err)
	}

	s.logger.Debug("Saved screenshot", zap.String("path", path))
	return nil
}

// GetPageText returns the rendered text of the whole document, used as page
// context for snippet generation.
func (s *Session) GetPageText(ctx context.Context) (string, error) {
	var text string
	if err := s.runActions(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text)); err != nil {
		return "", fmt.Errorf("could not read page text: %w", err)
	}
	return text, nil
}

// ExecuteScript evaluates JavaScript in the page. args are exposed to the
// script as the __args array. An undefined result comes back as nil.
func (s *Session) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("could not encode script arguments: %w", err)
	}

	wrapped := fmt.Sprintf(`(function() {
		var __ret = (function(__args) { %s }).call(null, %s);
		return __ret === undefined ? null : __ret;
	})()`, script, string(argsJSON))

	var result any
	if err := s.runActions(ctx, chromedp.Evaluate(wrapped, &result)); err != nil {
		return nil, fmt.Errorf("script evaluation failed: %w", err)
	}
	return result, nil
}

// GetCurrentURL returns the document location.
func (s *Session) GetCurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.runActions(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("could not read location: %w", err)
	}
	return url, nil
}

// GetTitle returns the document title.
func (s *Session) GetTitle(ctx context.Context) (string, error) {
	var title string
	if err := s.runActions(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("could not read title: %w", err)
	}
	return title, nil
}
