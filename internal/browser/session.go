// internal/browser/session.go

// Package browser provides the chromedp-backed implementation of
// schemas.Environment. A Session owns one browser process with one tab; the
// execution engine drives it exclusively through the capability surface.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pilotweb/pilot-cli/api/schemas"
	"github.com/pilotweb/pilot-cli/internal/config"
)

// Session is an active browser tab.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	allocCancel context.CancelFunc

	cfg    config.BrowserConfig
	logger *zap.Logger

	mu       sync.Mutex
	isClosed bool
}

var _ schemas.Environment = (*Session)(nil)

// NewSession launches a browser and connects a fresh tab. The returned
// session stays alive until Close; startCtx only bounds the launch itself.
func NewSession(startCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()

	opts := allocatorOptions(cfg)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          sessionID,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		cfg:         cfg,
		logger:      logger.Named("browser").With(zap.String("session_id", sessionID)),
	}

	// Establish the CDP connection eagerly so launch failures surface here,
	// not on the first action.
	launchCtx, launchCancel := CombineContext(tabCtx, startCtx)
	defer launchCancel()
	if err := chromedp.Run(launchCtx); err != nil {
		s.teardown()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	s.logger.Info("Browser session started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// allocatorOptions builds the exec allocator flags from configuration.
func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Close terminates the browser. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session")

	// Ask the browser to shut down cleanly before cancelling contexts.
	closeCtx, cancel := context.WithTimeout(Detach(s.ctx), 10*time.Second)
	defer cancel()
	if err := chromedp.Cancel(closeCtx); err != nil {
		s.logger.Debug("Graceful browser shutdown failed", zap.Error(err))
	}

	s.teardown()
	return nil
}

func (s *Session) teardown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// runActions executes chromedp actions under both the session lifetime and
// the caller's context, bounded by the configured action timeout.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	timeout := s.cfg.ActionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	actCtx, actCancel := context.WithTimeout(runCtx, timeout)
	defer actCancel()

	return chromedp.Run(actCtx, actions...)
}
